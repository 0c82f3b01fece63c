package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/services"
)

const maxWebhookBodySize = 64 * 1024

// WebhookHandlers receives supplier notifications. Authentication is the
// router's concern: the webhook group carries HMAC middleware instead of
// operator tokens.
type WebhookHandlers struct {
	receipts services.ReceiptService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(receipts services.ReceiptService) *WebhookHandlers {
	return &WebhookHandlers{receipts: receipts}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/suppliers/ship-notice", h.shipNotice)
}

type shipNoticeRequest struct {
	ReceiptID  string `json:"receipt_id"`
	Carrier    string `json:"carrier"`
	TrackingNo string `json:"tracking_no"`
	ShippedAt  string `json:"shipped_at"`
}

type shipNoticeResponse struct {
	ReceiptID  string             `json:"receipt_id"`
	Status     string             `json:"status"`
	ShipNotice *shipNoticePayload `json:"ship_notice,omitempty"`
}

func (h *WebhookHandlers) shipNotice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req shipNoticeRequest
	if err := decodeJSONBody(r, maxWebhookBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.ShipNoticeCommand{
		ReceiptID:  strings.TrimSpace(req.ReceiptID),
		Carrier:    strings.TrimSpace(req.Carrier),
		TrackingNo: strings.TrimSpace(req.TrackingNo),
	}
	if cmd.ReceiptID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "receipt_id is required", http.StatusBadRequest))
		return
	}
	if raw := strings.TrimSpace(req.ShippedAt); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipped_at must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.ShippedAt = ts
	}

	receipt, err := h.receipts.RecordShipNotice(ctx, cmd)
	if err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	response := shipNoticeResponse{
		ReceiptID: receipt.ID,
		Status:    string(receipt.Status),
	}
	if receipt.ShipNotice != nil {
		response.ShipNotice = &shipNoticePayload{
			Carrier:    receipt.ShipNotice.Carrier,
			TrackingNo: receipt.ShipNotice.TrackingNo,
			ShippedAt:  formatTime(receipt.ShipNotice.ShippedAt),
			ReportedAt: formatTime(receipt.ShipNotice.ReportedAt),
		}
	}
	writeJSONResponse(w, http.StatusOK, response)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/services"
)

const (
	defaultReceiptPageSize = 20
	maxReceiptPageSize     = 100
	maxReceiptBodySize     = 256 * 1024
	maxTransitionBodySize  = 16 * 1024
	maxAttachmentBodySize  = 16 * 1024
)

var validReceiptStatuses = map[domain.ReceiptStatus]struct{}{
	domain.ReceiptStatusDraft:     {},
	domain.ReceiptStatusApproved:  {},
	domain.ReceiptStatusSent:      {},
	domain.ReceiptStatusReceived:  {},
	domain.ReceiptStatusCompleted: {},
	domain.ReceiptStatusCanceled:  {},
}

// ReceiptHandlers exposes the purchase receipt lifecycle endpoints for
// authenticated operators.
type ReceiptHandlers struct {
	authn       *auth.Authenticator
	receipts    services.ReceiptService
	attachments services.AttachmentService
}

// NewReceiptHandlers constructs a new ReceiptHandlers instance.
func NewReceiptHandlers(authn *auth.Authenticator, receipts services.ReceiptService, attachments services.AttachmentService) *ReceiptHandlers {
	return &ReceiptHandlers{
		authn:       authn,
		receipts:    receipts,
		attachments: attachments,
	}
}

// Routes registers the /purchase-receipts endpoints.
func (h *ReceiptHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listReceipts)
	r.Post("/", h.createDraft)
	r.Get("/{receiptID}", h.getReceipt)
	r.Patch("/{receiptID}", h.updateDraft)
	r.Delete("/{receiptID}", h.deleteReceipt)
	r.Post("/{receiptID}:approve", h.transitionHandler(h.approve))
	r.Post("/{receiptID}:send", h.transitionHandler(h.send))
	r.Post("/{receiptID}:receive", h.receiveReceipt)
	r.Post("/{receiptID}:complete", h.transitionHandler(h.complete))
	r.Post("/{receiptID}:cancel", h.transitionHandler(h.cancel))
	r.Post("/{receiptID}/attachments:sign-upload", h.signAttachmentUpload)
	r.Post("/{receiptID}/attachments:sign-download", h.signAttachmentDownload)
	r.Post("/{receiptID}/attachments:confirm", h.confirmAttachmentUpload)
}

type receiptLineRequest struct {
	PartRef     string `json:"part_ref"`
	SKU         string `json:"sku"`
	Description string `json:"description"`
	OrderedQty  int64  `json:"ordered_qty"`
	UnitCost    int64  `json:"unit_cost"`
}

type createReceiptRequest struct {
	SupplierRef string               `json:"supplier_ref"`
	Currency    string               `json:"currency"`
	Notes       string               `json:"notes"`
	Metadata    map[string]any       `json:"metadata"`
	Lines       []receiptLineRequest `json:"lines"`
}

type updateReceiptRequest struct {
	SupplierRef       *string               `json:"supplier_ref"`
	Notes             *string               `json:"notes"`
	Metadata          map[string]any        `json:"metadata"`
	Lines             *[]receiptLineRequest `json:"lines"`
	ExpectedUpdatedAt string                `json:"expected_updated_at"`
}

type transitionReceiptRequest struct {
	Reason string `json:"reason"`
}

type receiveLineRequest struct {
	LineID      string `json:"line_id"`
	ReceivedQty int64  `json:"received_qty"`
}

type receiveReceiptRequest struct {
	ReceivedDate string               `json:"received_date"`
	QualityCheck *bool                `json:"quality_check"`
	Lines        []receiveLineRequest `json:"lines"`
}

func (h *ReceiptHandlers) listReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
		return
	}

	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()

	statuses := make([]domain.ReceiptStatus, 0)
	for _, raw := range parseFilterValues(query["status"]) {
		status := domain.ReceiptStatus(raw)
		if _, ok := validReceiptStatuses[status]; !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter contains an unknown status", http.StatusBadRequest))
			return
		}
		statuses = append(statuses, status)
	}

	var from, to *time.Time
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		from = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		to = &ts
	}

	pageSize, err := parsePageSize(query.Get("page_size"), defaultReceiptPageSize, maxReceiptPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.ReceiptListFilter{
		SupplierRef: strings.TrimSpace(query.Get("supplier_ref")),
		Status:      statuses,
		From:        from,
		To:          to,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	page, err := h.receipts.ListReceipts(ctx, filter)
	if err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	items := make([]receiptSummaryPayload, 0, len(page.Items))
	for _, receipt := range page.Items {
		items = append(items, buildReceiptSummary(receipt))
	}

	writeJSONResponse(w, http.StatusOK, receiptListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *ReceiptHandlers) createDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createReceiptRequest
	if err := decodeJSONBody(r, maxReceiptBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.CreateReceiptCommand{
		SupplierRef: strings.TrimSpace(req.SupplierRef),
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Notes:       req.Notes,
		Metadata:    cloneMap(req.Metadata),
		Lines:       buildLineInputs(req.Lines),
		ActorID:     identity.UID,
	}

	receipt, err := h.receipts.CreateDraft(ctx, cmd)
	if err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, receiptResponse{Receipt: buildReceiptPayload(receipt)})
}

func (h *ReceiptHandlers) getReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
		return
	}

	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	receipt, err := h.receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, receiptResponse{Receipt: buildReceiptPayload(receipt)})
}

func (h *ReceiptHandlers) updateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	var req updateReceiptRequest
	if err := decodeJSONBody(r, maxReceiptBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.UpdateDraftReceiptCommand{
		ReceiptID:   receiptID,
		SupplierRef: cloneStringPointer(req.SupplierRef),
		Notes:       cloneStringPointer(req.Notes),
		Metadata:    cloneMap(req.Metadata),
		ActorID:     identity.UID,
	}
	if req.Lines != nil {
		cmd.Lines = buildLineInputs(*req.Lines)
	}
	if raw := strings.TrimSpace(req.ExpectedUpdatedAt); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected_updated_at must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.ExpectedUpdatedAt = &ts
	}

	receipt, err := h.receipts.UpdateDraft(ctx, cmd)
	if err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, receiptResponse{Receipt: buildReceiptPayload(receipt)})
}

func (h *ReceiptHandlers) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.receipts.Delete(ctx, services.TransitionReceiptCommand{
		ReceiptID: receiptID,
		ActorID:   identity.UID,
	}); err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type transitionFunc func(ctx context.Context, cmd services.TransitionReceiptCommand) (services.PurchaseReceipt, error)

func (h *ReceiptHandlers) approve(ctx context.Context, cmd services.TransitionReceiptCommand) (services.PurchaseReceipt, error) {
	return h.receipts.Approve(ctx, cmd)
}

func (h *ReceiptHandlers) send(ctx context.Context, cmd services.TransitionReceiptCommand) (services.PurchaseReceipt, error) {
	return h.receipts.Send(ctx, cmd)
}

func (h *ReceiptHandlers) complete(ctx context.Context, cmd services.TransitionReceiptCommand) (services.PurchaseReceipt, error) {
	return h.receipts.Complete(ctx, cmd)
}

func (h *ReceiptHandlers) cancel(ctx context.Context, cmd services.TransitionReceiptCommand) (services.PurchaseReceipt, error) {
	return h.receipts.Cancel(ctx, cmd)
}

func (h *ReceiptHandlers) transitionHandler(apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.receipts == nil {
			httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
			return
		}

		identity, ok := requireIdentity(ctx, w)
		if !ok {
			return
		}

		receiptID, ok := requireReceiptID(ctx, w, r)
		if !ok {
			return
		}

		var req transitionReceiptRequest
		body, err := readLimitedBody(r, maxTransitionBodySize)
		if err != nil && !errors.Is(err, errEmptyBody) {
			writeBodyError(w, r, err)
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
				return
			}
		}

		receipt, err := apply(ctx, services.TransitionReceiptCommand{
			ReceiptID: receiptID,
			ActorID:   identity.UID,
			Reason:    strings.TrimSpace(req.Reason),
		})
		if err != nil {
			writeReceiptError(ctx, w, err)
			return
		}

		writeJSONResponse(w, http.StatusOK, receiptResponse{Receipt: buildReceiptPayload(receipt)})
	}
}

func (h *ReceiptHandlers) receiveReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receipt_service_unavailable", "receipt service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	var req receiveReceiptRequest
	if err := decodeJSONBody(r, maxTransitionBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.ReceiveReceiptCommand{
		ReceiptID:    receiptID,
		QualityCheck: req.QualityCheck,
		ActorID:      identity.UID,
	}
	if raw := strings.TrimSpace(req.ReceivedDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "received_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.ReceivedDate = ts
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, services.ReceivedLineInput{
			LineID:      strings.TrimSpace(line.LineID),
			ReceivedQty: line.ReceivedQty,
		})
	}

	receipt, err := h.receipts.Receive(ctx, cmd)
	if err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, receiptResponse{Receipt: buildReceiptPayload(receipt)})
}

type signUploadRequest struct {
	Kind        string `json:"kind"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type signDownloadRequest struct {
	AttachmentID string `json:"attachment_id"`
}

type confirmUploadRequest struct {
	Kind        string `json:"kind"`
	StoragePath string `json:"storage_path"`
	ContentType string `json:"content_type"`
}

func (h *ReceiptHandlers) signAttachmentUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.attachments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("attachment_service_unavailable", "attachment service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	var req signUploadRequest
	if err := decodeJSONBody(r, maxAttachmentBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	asset, err := h.attachments.IssueSignedUpload(ctx, services.SignAttachmentUploadCommand{
		ReceiptID:   receiptID,
		Kind:        req.Kind,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeAttachmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, signedAssetResponse{Asset: buildSignedAssetPayload(asset)})
}

func (h *ReceiptHandlers) signAttachmentDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.attachments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("attachment_service_unavailable", "attachment service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	var req signDownloadRequest
	if err := decodeJSONBody(r, maxAttachmentBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	asset, err := h.attachments.IssueSignedDownload(ctx, services.SignAttachmentDownloadCommand{
		ReceiptID:    receiptID,
		AttachmentID: req.AttachmentID,
		ActorID:      identity.UID,
	})
	if err != nil {
		writeAttachmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, signedAssetResponse{Asset: buildSignedAssetPayload(asset)})
}

func (h *ReceiptHandlers) confirmAttachmentUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.attachments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("attachment_service_unavailable", "attachment service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	var req confirmUploadRequest
	if err := decodeJSONBody(r, maxAttachmentBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	receipt, err := h.attachments.ConfirmUpload(ctx, services.ConfirmAttachmentUploadCommand{
		ReceiptID:   receiptID,
		Kind:        req.Kind,
		StoragePath: req.StoragePath,
		ContentType: req.ContentType,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeAttachmentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, receiptResponse{Receipt: buildReceiptPayload(receipt)})
}

type receiptListResponse struct {
	Items         []receiptSummaryPayload `json:"items"`
	NextPageToken string                  `json:"next_page_token,omitempty"`
}

type receiptSummaryPayload struct {
	ID            string `json:"id"`
	ReceiptNumber string `json:"receipt_number"`
	SupplierRef   string `json:"supplier_ref"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	TotalCost     int64  `json:"total_cost"`
	LineCount     int    `json:"line_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

type receiptResponse struct {
	Receipt receiptPayload `json:"receipt"`
}

type receiptPayload struct {
	ID            string                     `json:"id"`
	ReceiptNumber string                     `json:"receipt_number"`
	SupplierRef   string                     `json:"supplier_ref"`
	Status        string                     `json:"status"`
	Lines         []receiptLinePayload       `json:"lines"`
	Currency      string                     `json:"currency"`
	TotalCost     int64                      `json:"total_cost"`
	ReceivedDate  string                     `json:"received_date,omitempty"`
	QualityCheck  *bool                      `json:"quality_check,omitempty"`
	ShipNotice    *shipNoticePayload         `json:"ship_notice,omitempty"`
	Attachments   []receiptAttachmentPayload `json:"attachments,omitempty"`
	Notes         string                     `json:"notes,omitempty"`
	Metadata      map[string]any             `json:"metadata,omitempty"`
	CreatedBy     string                     `json:"created_by,omitempty"`
	ApprovedAt    string                     `json:"approved_at,omitempty"`
	SentAt        string                     `json:"sent_at,omitempty"`
	ReceivedAt    string                     `json:"received_at,omitempty"`
	CompletedAt   string                     `json:"completed_at,omitempty"`
	CanceledAt    string                     `json:"canceled_at,omitempty"`
	CreatedAt     string                     `json:"created_at"`
	UpdatedAt     string                     `json:"updated_at,omitempty"`
}

type receiptLinePayload struct {
	LineID      string `json:"line_id"`
	PartRef     string `json:"part_ref"`
	SKU         string `json:"sku,omitempty"`
	Description string `json:"description,omitempty"`
	OrderedQty  int64  `json:"ordered_qty"`
	ReceivedQty int64  `json:"received_qty"`
	UnitCost    int64  `json:"unit_cost"`
	Currency    string `json:"currency,omitempty"`
}

type shipNoticePayload struct {
	Carrier    string `json:"carrier"`
	TrackingNo string `json:"tracking_no,omitempty"`
	ShippedAt  string `json:"shipped_at,omitempty"`
	ReportedAt string `json:"reported_at,omitempty"`
}

type receiptAttachmentPayload struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	StoragePath string `json:"storage_path"`
	ContentType string `json:"content_type,omitempty"`
	UploadedBy  string `json:"uploaded_by,omitempty"`
	UploadedAt  string `json:"uploaded_at,omitempty"`
}

type signedAssetResponse struct {
	Asset signedAssetPayload `json:"asset"`
}

type signedAssetPayload struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	StoragePath string            `json:"storage_path"`
	ExpiresAt   string            `json:"expires_at"`
}

func buildReceiptSummary(receipt services.PurchaseReceipt) receiptSummaryPayload {
	return receiptSummaryPayload{
		ID:            strings.TrimSpace(receipt.ID),
		ReceiptNumber: strings.TrimSpace(receipt.ReceiptNumber),
		SupplierRef:   strings.TrimSpace(receipt.SupplierRef),
		Status:        strings.TrimSpace(string(receipt.Status)),
		Currency:      strings.ToUpper(strings.TrimSpace(receipt.Currency)),
		TotalCost:     receipt.TotalCost,
		LineCount:     len(receipt.Lines),
		CreatedAt:     formatTime(receipt.CreatedAt),
		UpdatedAt:     formatTime(receipt.UpdatedAt),
	}
}

func buildReceiptPayload(receipt services.PurchaseReceipt) receiptPayload {
	payload := receiptPayload{
		ID:            strings.TrimSpace(receipt.ID),
		ReceiptNumber: strings.TrimSpace(receipt.ReceiptNumber),
		SupplierRef:   strings.TrimSpace(receipt.SupplierRef),
		Status:        strings.TrimSpace(string(receipt.Status)),
		Lines:         make([]receiptLinePayload, 0, len(receipt.Lines)),
		Currency:      strings.ToUpper(strings.TrimSpace(receipt.Currency)),
		TotalCost:     receipt.TotalCost,
		ReceivedDate:  formatTime(pointerTime(receipt.ReceivedDate)),
		Notes:         receipt.Notes,
		Metadata:      cloneMap(receipt.Metadata),
		CreatedBy:     strings.TrimSpace(receipt.CreatedBy),
		ApprovedAt:    formatTime(pointerTime(receipt.ApprovedAt)),
		SentAt:        formatTime(pointerTime(receipt.SentAt)),
		ReceivedAt:    formatTime(pointerTime(receipt.ReceivedAt)),
		CompletedAt:   formatTime(pointerTime(receipt.CompletedAt)),
		CanceledAt:    formatTime(pointerTime(receipt.CanceledAt)),
		CreatedAt:     formatTime(receipt.CreatedAt),
		UpdatedAt:     formatTime(receipt.UpdatedAt),
	}

	if receipt.QualityCheck != nil {
		check := *receipt.QualityCheck
		payload.QualityCheck = &check
	}

	if receipt.ShipNotice != nil {
		payload.ShipNotice = &shipNoticePayload{
			Carrier:    strings.TrimSpace(receipt.ShipNotice.Carrier),
			TrackingNo: strings.TrimSpace(receipt.ShipNotice.TrackingNo),
			ShippedAt:  formatTime(receipt.ShipNotice.ShippedAt),
			ReportedAt: formatTime(receipt.ShipNotice.ReportedAt),
		}
	}

	for _, line := range receipt.Lines {
		payload.Lines = append(payload.Lines, receiptLinePayload{
			LineID:      line.LineID,
			PartRef:     line.PartRef,
			SKU:         line.SKU,
			Description: line.Description,
			OrderedQty:  line.OrderedQty,
			ReceivedQty: line.ReceivedQty,
			UnitCost:    line.UnitCost,
			Currency:    line.Currency,
		})
	}

	if len(receipt.Attachments) > 0 {
		attachments := make([]receiptAttachmentPayload, 0, len(receipt.Attachments))
		for _, attachment := range receipt.Attachments {
			attachments = append(attachments, receiptAttachmentPayload{
				ID:          attachment.ID,
				Kind:        attachment.Kind,
				StoragePath: attachment.StoragePath,
				ContentType: attachment.ContentType,
				UploadedBy:  attachment.UploadedBy,
				UploadedAt:  formatTime(attachment.UploadedAt),
			})
		}
		payload.Attachments = attachments
	}

	return payload
}

func buildSignedAssetPayload(asset services.SignedAsset) signedAssetPayload {
	return signedAssetPayload{
		URL:         asset.URL,
		Method:      asset.Method,
		Headers:     asset.Headers,
		StoragePath: asset.StoragePath,
		ExpiresAt:   formatTime(asset.ExpiresAt),
	}
}

func buildLineInputs(lines []receiptLineRequest) []services.ReceiptLineInput {
	inputs := make([]services.ReceiptLineInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, services.ReceiptLineInput{
			PartRef:     strings.TrimSpace(line.PartRef),
			SKU:         strings.TrimSpace(line.SKU),
			Description: strings.TrimSpace(line.Description),
			OrderedQty:  line.OrderedQty,
			UnitCost:    line.UnitCost,
		})
	}
	return inputs
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func requireReceiptID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	receiptID := strings.TrimSpace(chi.URLParam(r, "receiptID"))
	if receiptID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "receipt id is required", http.StatusBadRequest))
		return "", false
	}
	return receiptID, true
}

func writeReceiptError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReceiptInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReceiptNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("receipt_not_found", "purchase receipt not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReceiptMissingPayload):
		httpx.WriteError(ctx, w, httpx.NewError("receipt_missing_payload", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrReceiptConflict):
		httpx.WriteError(ctx, w, httpx.NewError("receipt_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrReceiptInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("receipt_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("receipt_error", "failed to process receipt request", http.StatusInternalServerError))
	}
}

func writeAttachmentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAttachmentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAttachmentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("attachment_not_found", "attachment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReceiptNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("receipt_not_found", "purchase receipt not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAttachmentStorageFailure):
		httpx.WriteError(ctx, w, httpx.NewError("attachment_storage_failure", "failed to sign storage request", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("attachment_error", "failed to process attachment request", http.StatusInternalServerError))
	}
}

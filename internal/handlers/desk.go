package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/lifecycle"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/services"
)

const maxDeskBodySize = 16 * 1024

// DeskHandlers exposes the staged-transition desk for POS terminals. Each
// receipt gets an independent controller; staging never touches the backend
// and only an explicit confirm issues the remote call.
type DeskHandlers struct {
	authn    *auth.Authenticator
	registry *lifecycle.Registry
	receipts services.ReceiptService
}

// NewDeskHandlers constructs a new DeskHandlers instance.
func NewDeskHandlers(authn *auth.Authenticator, registry *lifecycle.Registry, receipts services.ReceiptService) *DeskHandlers {
	return &DeskHandlers{
		authn:    authn,
		registry: registry,
		receipts: receipts,
	}
}

// Routes registers the /desk endpoints.
func (h *DeskHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/refresh-token", h.refreshToken)
	r.Get("/receipts/{receiptID}/transition", h.getTransition)
	r.Post("/receipts/{receiptID}/transition", h.stageTransition)
	r.Post("/receipts/{receiptID}/transition:confirm", h.confirmTransition)
	r.Post("/receipts/{receiptID}/transition:abandon", h.abandonTransition)
}

type stageTransitionRequest struct {
	Action  string                      `json:"action"`
	Payload *deskReceivePayloadRequest  `json:"payload"`
}

type deskReceivePayloadRequest struct {
	ReceivedDate string               `json:"received_date"`
	QualityCheck *bool                `json:"quality_check"`
	Lines        []receiveLineRequest `json:"lines"`
}

type deskTransitionResponse struct {
	Pending          *deskPendingPayload `json:"pending"`
	AvailableActions []string            `json:"available_actions,omitempty"`
	RefreshToken     uint64              `json:"refresh_token"`
	Receipt          *receiptPayload     `json:"receipt,omitempty"`
}

type deskPendingPayload struct {
	Action        string                   `json:"action"`
	ReceiptID     string                   `json:"receipt_id"`
	ReceiptNumber string                   `json:"receipt_number,omitempty"`
	Status        string                   `json:"status"`
	TargetStatus  string                   `json:"target_status,omitempty"`
	Confirmed     bool                     `json:"confirmed"`
	InFlight      bool                     `json:"in_flight"`
	Attempts      int                      `json:"attempts,omitempty"`
	LastError     string                   `json:"last_error,omitempty"`
	Payload       *deskReceivePayloadData  `json:"payload,omitempty"`
}

type deskReceivePayloadData struct {
	ReceivedDate string               `json:"received_date"`
	QualityCheck *bool                `json:"quality_check"`
	Lines        []receiveLineRequest `json:"lines,omitempty"`
}

type refreshTokenResponse struct {
	RefreshToken uint64 `json:"refresh_token"`
}

func (h *DeskHandlers) refreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.registry == nil {
		httpx.WriteError(ctx, w, httpx.NewError("desk_unavailable", "transition desk unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, refreshTokenResponse{RefreshToken: h.registry.RefreshToken()})
}

func (h *DeskHandlers) getTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.registry == nil || h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("desk_unavailable", "transition desk unavailable", http.StatusServiceUnavailable))
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

	ctrl := h.registry.Controller(receiptID)
	response := h.buildDeskResponse(ctrl)
	response.AvailableActions = kindStrings(lifecycle.LegalKinds(receipt.Status))
	payload := buildReceiptPayload(receipt)
	response.Receipt = &payload

	writeJSONResponse(w, http.StatusOK, response)
}

func (h *DeskHandlers) stageTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.registry == nil || h.receipts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("desk_unavailable", "transition desk unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	var req stageTransitionRequest
	if err := decodeJSONBody(r, maxDeskBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	kind, ok := lifecycle.ParseKind(strings.ToLower(strings.TrimSpace(req.Action)))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "action must be one of approve, send, receive, complete, cancel, delete", http.StatusBadRequest))
		return
	}

	receipt, err := h.receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		writeReceiptError(ctx, w, err)
		return
	}

	ctrl := h.registry.Controller(receiptID)
	ref := lifecycle.ReceiptRef{
		ID:            receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		Status:        receipt.Status,
	}
	if err := ctrl.Request(ref, kind); err != nil {
		writeDeskError(ctx, w, err)
		return
	}

	if kind == lifecycle.KindReceive && req.Payload != nil {
		payload, perr := buildReceivePayload(*req.Payload)
		if perr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", perr.Error(), http.StatusBadRequest))
			return
		}
		if err := ctrl.SetPayload(payload); err != nil {
			writeDeskError(ctx, w, err)
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, h.buildDeskResponse(ctrl))
}

func (h *DeskHandlers) confirmTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.registry == nil {
		httpx.WriteError(ctx, w, httpx.NewError("desk_unavailable", "transition desk unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	ctrl := h.registry.Controller(receiptID)
	pending, hasPending := ctrl.Pending()

	err := ctrl.Confirm(ctx)
	switch {
	case err == nil:
		if hasPending {
			if target, ok := lifecycle.Target(pending.Kind); ok && isTerminalStatus(target) {
				h.registry.Release(receiptID)
			}
		}
		response := h.buildDeskResponse(ctrl)
		if h.receipts != nil {
			if receipt, ferr := h.receipts.GetReceipt(ctx, receiptID); ferr == nil {
				payload := buildReceiptPayload(receipt)
				response.Receipt = &payload
				response.AvailableActions = kindStrings(lifecycle.LegalKinds(receipt.Status))
			}
		}
		writeJSONResponse(w, http.StatusOK, response)
	case errors.Is(err, lifecycle.ErrTransitionInFlight):
		// Duplicate click: no second remote call was made, report the
		// unchanged pending request as a silent no-op.
		writeJSONResponse(w, http.StatusOK, h.buildDeskResponse(ctrl))
	default:
		writeDeskError(ctx, w, err)
	}
}

func (h *DeskHandlers) abandonTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.registry == nil {
		httpx.WriteError(ctx, w, httpx.NewError("desk_unavailable", "transition desk unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	receiptID, ok := requireReceiptID(ctx, w, r)
	if !ok {
		return
	}

	ctrl := h.registry.Controller(receiptID)
	if err := ctrl.Abandon(); err != nil {
		writeDeskError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.buildDeskResponse(ctrl))
}

func (h *DeskHandlers) buildDeskResponse(ctrl *lifecycle.Controller) deskTransitionResponse {
	response := deskTransitionResponse{RefreshToken: h.registry.RefreshToken()}
	if pending, ok := ctrl.Pending(); ok {
		response.Pending = buildPendingPayload(pending)
	}
	return response
}

func buildPendingPayload(pending lifecycle.TransitionRequest) *deskPendingPayload {
	payload := &deskPendingPayload{
		Action:        string(pending.Kind),
		ReceiptID:     pending.Receipt.ID,
		ReceiptNumber: pending.Receipt.ReceiptNumber,
		Status:        string(pending.Receipt.Status),
		Confirmed:     pending.Confirmed,
		InFlight:      pending.InFlight,
		Attempts:      pending.Attempts,
		LastError:     pending.LastError,
	}
	if target, ok := lifecycle.Target(pending.Kind); ok {
		payload.TargetStatus = string(target)
	}
	if pending.Payload != nil {
		data := &deskReceivePayloadData{
			ReceivedDate: formatTime(pending.Payload.ReceivedDate),
			QualityCheck: pending.Payload.QualityCheck,
		}
		for _, line := range pending.Payload.Lines {
			data.Lines = append(data.Lines, receiveLineRequest{
				LineID:      line.LineID,
				ReceivedQty: line.ReceivedQty,
			})
		}
		payload.Payload = data
	}
	return payload
}

func buildReceivePayload(req deskReceivePayloadRequest) (lifecycle.ReceivePayload, error) {
	payload := lifecycle.ReceivePayload{QualityCheck: req.QualityCheck}
	if raw := strings.TrimSpace(req.ReceivedDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return lifecycle.ReceivePayload{}, errors.New("payload.received_date must be a valid RFC3339 timestamp")
		}
		payload.ReceivedDate = ts
	}
	for _, line := range req.Lines {
		payload.Lines = append(payload.Lines, lifecycle.ReceivedLine{
			LineID:      strings.TrimSpace(line.LineID),
			ReceivedQty: line.ReceivedQty,
		})
	}
	return payload, nil
}

func kindStrings(kinds []lifecycle.Kind) []string {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]string, len(kinds))
	for i, kind := range kinds {
		out[i] = string(kind)
	}
	return out
}

func isTerminalStatus(status domain.ReceiptStatus) bool {
	switch status {
	case domain.ReceiptStatusCompleted, domain.ReceiptStatusCanceled, domain.ReceiptStatusDeleted:
		return true
	default:
		return false
	}
}

func writeDeskError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		httpx.WriteError(ctx, w, httpx.NewError("desk_illegal_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, lifecycle.ErrTransitionInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("desk_transition_in_flight", "a transition is already executing for this receipt", http.StatusConflict))
	case errors.Is(err, lifecycle.ErrNoPendingTransition):
		httpx.WriteError(ctx, w, httpx.NewError("desk_no_pending_transition", "no transition is staged for this receipt", http.StatusConflict))
	case errors.Is(err, lifecycle.ErrMissingPayload):
		httpx.WriteError(ctx, w, httpx.NewError("desk_missing_payload", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, lifecycle.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, lifecycle.ErrRemoteFailure):
		httpx.WriteError(ctx, w, httpx.NewError("desk_remote_failure", "the backend rejected or failed the transition", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("desk_error", "failed to process desk request", http.StatusInternalServerError))
	}
}

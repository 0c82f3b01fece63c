package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/services"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
	maxCounterBodySize   = 4 * 1024
)

// SystemHandlers exposes operational endpoints: the audit trail for
// operators and counter allocation for internal jobs.
type SystemHandlers struct {
	authn  *auth.Authenticator
	system services.SystemService
}

// NewSystemHandlers constructs a new SystemHandlers instance.
func NewSystemHandlers(authn *auth.Authenticator, system services.SystemService) *SystemHandlers {
	return &SystemHandlers{authn: authn, system: system}
}

// Routes registers the /system endpoints.
func (h *SystemHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/audit-logs", h.listAuditLogs)
}

// InternalRoutes registers job-facing endpoints. The router applies OIDC
// middleware to this group; no operator identity is present.
func (h *SystemHandlers) InternalRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/counters:next", h.nextCounterValue)
}

type nextCounterRequest struct {
	CounterID string `json:"counter_id"`
	Step      int64  `json:"step"`
}

type nextCounterResponse struct {
	CounterID string `json:"counter_id"`
	Value     int64  `json:"value"`
}

func (h *SystemHandlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_service_unavailable", "system service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()

	filter := services.AuditLogFilter{
		TargetRef: strings.TrimSpace(query.Get("target_ref")),
		Actor:     strings.TrimSpace(query.Get("actor")),
		Action:    strings.TrimSpace(query.Get("action")),
	}
	if raw := strings.TrimSpace(query.Get("occurred_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "occurred_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("occurred_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "occurred_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.To = &ts
	}

	pageSize, err := parsePageSize(query.Get("page_size"), defaultAuditPageSize, maxAuditPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.Pagination = services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}

	page, err := h.system.ListAuditLogs(ctx, filter)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_log_error", "failed to list audit logs", http.StatusInternalServerError))
		return
	}

	items := make([]auditLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, auditLogPayload{
			ID:         entry.ID,
			Actor:      entry.Actor,
			Action:     entry.Action,
			TargetRef:  entry.TargetRef,
			Detail:     cloneMap(entry.Detail),
			OccurredAt: formatTime(entry.OccurredAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, auditLogListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *SystemHandlers) nextCounterValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_service_unavailable", "system service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req nextCounterRequest
	if err := decodeJSONBody(r, maxCounterBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	counterID := strings.TrimSpace(req.CounterID)
	if counterID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "counter_id is required", http.StatusBadRequest))
		return
	}

	value, err := h.system.NextCounterValue(ctx, services.CounterCommand{
		CounterID: counterID,
		Step:      req.Step,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("counter_error", err.Error(), http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, nextCounterResponse{
		CounterID: counterID,
		Value:     value,
	})
}

type auditLogListResponse struct {
	Items         []auditLogPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type auditLogPayload struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor,omitempty"`
	Action     string         `json:"action"`
	TargetRef  string         `json:"target_ref,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt string         `json:"occurred_at"`
}

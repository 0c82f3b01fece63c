package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/services"
)

const (
	defaultLowStockPageSize = 20
	maxLowStockPageSize     = 100
	maxStockQueryRefs       = 50
	maxAdjustBodySize       = 16 * 1024
)

// InventoryHandlers exposes stock positions and manual adjustments.
type InventoryHandlers struct {
	authn           *auth.Authenticator
	inventory       services.InventoryService
	lowStockEnabled bool
}

// InventoryOption customises inventory handler construction.
type InventoryOption func(*InventoryHandlers)

// WithLowStockReport toggles the low-stock report endpoint.
func WithLowStockReport(enabled bool) InventoryOption {
	return func(h *InventoryHandlers) {
		h.lowStockEnabled = enabled
	}
}

// NewInventoryHandlers constructs a new InventoryHandlers instance.
func NewInventoryHandlers(authn *auth.Authenticator, inventory services.InventoryService, opts ...InventoryOption) *InventoryHandlers {
	h := &InventoryHandlers{
		authn:           authn,
		inventory:       inventory,
		lowStockEnabled: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/stocks", h.queryStocks)
	r.Get("/stocks/{partID}", h.getStock)
	r.Post("/stocks/{partID}:adjust", h.adjustStock)
	if h.lowStockEnabled {
		r.Get("/low-stock", h.listLowStock)
	}
}

type adjustStockRequest struct {
	Delta  int64  `json:"delta"`
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// queryStocks resolves positions for an explicit set of part refs. The
// inventory store is keyed per part; there is no unbounded list surface.
func (h *InventoryHandlers) queryStocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	refs := parseFilterValues(r.URL.Query()["part_ref"])
	if len(refs) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one part_ref is required", http.StatusBadRequest))
		return
	}
	if len(refs) > maxStockQueryRefs {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "too many part refs in a single query", http.StatusBadRequest))
		return
	}

	items := make([]stockPayload, 0, len(refs))
	for _, ref := range refs {
		stock, err := h.inventory.GetStock(ctx, ref)
		if err != nil {
			if errors.Is(err, services.ErrInventoryStockNotFound) {
				continue
			}
			writeInventoryError(ctx, w, err)
			return
		}
		items = append(items, buildStockPayload(stock))
	}

	writeJSONResponse(w, http.StatusOK, stockListResponse{Items: items})
}

func (h *InventoryHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	partID, ok := requirePartID(ctx, w, r)
	if !ok {
		return
	}

	stock, err := h.inventory.GetStock(ctx, partID)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stockResponse{Stock: buildStockPayload(stock)})
}

func (h *InventoryHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	partID, ok := requirePartID(ctx, w, r)
	if !ok {
		return
	}

	var req adjustStockRequest
	if err := decodeJSONBody(r, maxAdjustBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	stock, err := h.inventory.AdjustStock(ctx, services.AdjustStockCommand{
		PartRef: partID,
		SKU:     strings.TrimSpace(req.SKU),
		Delta:   req.Delta,
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: identity.UID,
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stockResponse{Stock: buildStockPayload(stock)})
}

func (h *InventoryHandlers) listLowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()

	threshold := 0
	if raw := strings.TrimSpace(query.Get("threshold")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "threshold must be a non-negative integer", http.StatusBadRequest))
			return
		}
		threshold = value
	}

	pageSize, err := parsePageSize(query.Get("page_size"), defaultLowStockPageSize, maxLowStockPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.inventory.ListLowStock(ctx, services.LowStockFilter{
		Threshold: threshold,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	items := make([]stockPayload, 0, len(page.Items))
	for _, stock := range page.Items {
		items = append(items, buildStockPayload(stock))
	}

	writeJSONResponse(w, http.StatusOK, stockListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

type stockListResponse struct {
	Items         []stockPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type stockResponse struct {
	Stock stockPayload `json:"stock"`
}

type stockPayload struct {
	PartRef     string `json:"part_ref"`
	SKU         string `json:"sku,omitempty"`
	OnHand      int64  `json:"on_hand"`
	Reserved    int64  `json:"reserved"`
	Available   int64  `json:"available"`
	SafetyStock int64  `json:"safety_stock"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func buildStockPayload(stock services.PartStock) stockPayload {
	return stockPayload{
		PartRef:     strings.TrimSpace(stock.PartRef),
		SKU:         strings.TrimSpace(stock.SKU),
		OnHand:      stock.OnHand,
		Reserved:    stock.Reserved,
		Available:   stock.Available,
		SafetyStock: stock.SafetyStock,
		UpdatedAt:   formatTime(stock.UpdatedAt),
	}
}

func requirePartID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	partID := strings.TrimSpace(chi.URLParam(r, "partID"))
	if partID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "part id is required", http.StatusBadRequest))
		return "", false
	}
	return partID, true
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryStockNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("stock_not_found", "stock position not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "failed to process inventory request", http.StatusInternalServerError))
	}
}

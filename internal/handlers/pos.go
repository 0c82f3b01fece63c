package handlers

import (
	"context"
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
	defaultSalePageSize = 20
	maxSalePageSize     = 100
	maxCartBodySize     = 16 * 1024
)

var validTenderKinds = map[domain.TenderKind]struct{}{
	domain.TenderCash:    {},
	domain.TenderCard:    {},
	domain.TenderAccount: {},
}

// POSHandlers exposes register cart and sale endpoints for authenticated
// counter operators.
type POSHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
	sales services.SaleService
}

// NewPOSHandlers constructs a new POSHandlers instance.
func NewPOSHandlers(authn *auth.Authenticator, carts services.CartService, sales services.SaleService) *POSHandlers {
	return &POSHandlers{
		authn: authn,
		carts: carts,
		sales: sales,
	}
}

// Routes registers the /pos endpoints.
func (h *POSHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/carts/{registerID}", h.getCart)
	r.Delete("/carts/{registerID}", h.clearCart)
	r.Post("/carts/{registerID}/items", h.addItem)
	r.Patch("/carts/{registerID}/items/{lineID}", h.updateItem)
	r.Delete("/carts/{registerID}/items/{lineID}", h.removeItem)
	r.Post("/carts/{registerID}:checkout", h.checkout)
	r.Get("/sales", h.listSales)
	r.Get("/sales/{saleID}", h.getSale)
}

type addCartItemRequest struct {
	PartRef   string `json:"part_ref"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

type updateCartItemRequest struct {
	Qty int64 `json:"qty"`
}

type checkoutRequest struct {
	Tender string `json:"tender"`
}

func (h *POSHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	registerID, ok := requireRegisterID(ctx, w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, registerID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *POSHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	registerID, ok := requireRegisterID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, registerID); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *POSHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	registerID, ok := requireRegisterID(ctx, w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		RegisterID: registerID,
		PartRef:    strings.TrimSpace(req.PartRef),
		SKU:        strings.TrimSpace(req.SKU),
		Name:       strings.TrimSpace(req.Name),
		Qty:        req.Qty,
		UnitPrice:  req.UnitPrice,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *POSHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	registerID, ok := requireRegisterID(ctx, w, r)
	if !ok {
		return
	}
	lineID := strings.TrimSpace(chi.URLParam(r, "lineID"))
	if lineID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "line id is required", http.StatusBadRequest))
		return
	}

	var req updateCartItemRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cart, err := h.carts.UpdateItemQty(ctx, services.UpdateCartItemCommand{
		RegisterID: registerID,
		LineID:     lineID,
		Qty:        req.Qty,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *POSHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	registerID, ok := requireRegisterID(ctx, w, r)
	if !ok {
		return
	}
	lineID := strings.TrimSpace(chi.URLParam(r, "lineID"))
	if lineID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "line id is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		RegisterID: registerID,
		LineID:     lineID,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *POSHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	registerID, ok := requireRegisterID(ctx, w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	tender := domain.TenderKind(strings.ToLower(strings.TrimSpace(req.Tender)))
	if _, ok := validTenderKinds[tender]; !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tender must be one of cash, card, account", http.StatusBadRequest))
		return
	}

	sale, err := h.carts.Checkout(ctx, services.CheckoutCommand{
		RegisterID: registerID,
		Tender:     tender,
		ActorID:    identity.UID,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, saleResponse{Sale: buildSalePayload(sale)})
}

func (h *POSHandlers) listSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sales == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sale_service_unavailable", "sale service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("sold_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sold_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("sold_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sold_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize, err := parsePageSize(query.Get("page_size"), defaultSalePageSize, maxSalePageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.sales.ListSales(ctx, services.SaleFilter{
		RegisterID: strings.TrimSpace(query.Get("register_id")),
		DateRange:  dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}

	items := make([]salePayload, 0, len(page.Items))
	for _, sale := range page.Items {
		items = append(items, buildSalePayload(sale))
	}

	writeJSONResponse(w, http.StatusOK, saleListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *POSHandlers) getSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sales == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sale_service_unavailable", "sale service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	saleID := strings.TrimSpace(chi.URLParam(r, "saleID"))
	if saleID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sale id is required", http.StatusBadRequest))
		return
	}

	sale, err := h.sales.GetSale(ctx, saleID)
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, saleResponse{Sale: buildSalePayload(sale)})
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	RegisterID string            `json:"register_id"`
	Currency   string            `json:"currency"`
	Lines      []cartLinePayload `json:"lines"`
	Subtotal   int64             `json:"subtotal"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	LineID    string `json:"line_id"`
	PartRef   string `json:"part_ref"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name,omitempty"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

type saleListResponse struct {
	Items         []salePayload `json:"items"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type saleResponse struct {
	Sale salePayload `json:"sale"`
}

type salePayload struct {
	ID         string            `json:"id"`
	SaleNumber string            `json:"sale_number"`
	RegisterID string            `json:"register_id"`
	Lines      []saleLinePayload `json:"lines"`
	Currency   string            `json:"currency"`
	Total      int64             `json:"total"`
	Tender     string            `json:"tender"`
	SoldBy     string            `json:"sold_by,omitempty"`
	SoldAt     string            `json:"sold_at,omitempty"`
	CreatedAt  string            `json:"created_at"`
}

type saleLinePayload struct {
	PartRef   string `json:"part_ref"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name,omitempty"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

func buildCartPayload(cart services.RegisterCart) cartPayload {
	payload := cartPayload{
		ID:         strings.TrimSpace(cart.ID),
		RegisterID: strings.TrimSpace(cart.RegisterID),
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Lines:      make([]cartLinePayload, 0, len(cart.Lines)),
		Subtotal:   cart.Subtotal,
		UpdatedAt:  formatTime(cart.UpdatedAt),
	}
	for _, line := range cart.Lines {
		payload.Lines = append(payload.Lines, cartLinePayload{
			LineID:    line.LineID,
			PartRef:   line.PartRef,
			SKU:       line.SKU,
			Name:      line.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}
	return payload
}

func buildSalePayload(sale services.Sale) salePayload {
	payload := salePayload{
		ID:         strings.TrimSpace(sale.ID),
		SaleNumber: strings.TrimSpace(sale.SaleNumber),
		RegisterID: strings.TrimSpace(sale.RegisterID),
		Lines:      make([]saleLinePayload, 0, len(sale.Lines)),
		Currency:   strings.ToUpper(strings.TrimSpace(sale.Currency)),
		Total:      sale.Total,
		Tender:     string(sale.Tender),
		SoldBy:     strings.TrimSpace(sale.SoldBy),
		SoldAt:     formatTime(sale.SoldAt),
		CreatedAt:  formatTime(sale.CreatedAt),
	}
	for _, line := range sale.Lines {
		payload.Lines = append(payload.Lines, saleLinePayload{
			PartRef:   line.PartRef,
			SKU:       line.SKU,
			Name:      line.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}
	return payload
}

func requireRegisterID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	registerID := strings.TrimSpace(chi.URLParam(r, "registerID"))
	if registerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "register id is required", http.StatusBadRequest))
		return "", false
	}
	return registerID, true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("cart_insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCartEmptyCheckout):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no lines to check out", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

func writeSaleError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrSaleInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSaleNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("sale_not_found", "sale not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("sale_error", "failed to process sale request", http.StatusInternalServerError))
	}
}

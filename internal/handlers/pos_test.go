package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/services"
)

type stubCartService struct {
	getFn      func(context.Context, string) (services.RegisterCart, error)
	addFn      func(context.Context, services.AddCartItemCommand) (services.RegisterCart, error)
	updateFn   func(context.Context, services.UpdateCartItemCommand) (services.RegisterCart, error)
	removeFn   func(context.Context, services.RemoveCartItemCommand) (services.RegisterCart, error)
	clearFn    func(context.Context, string) error
	checkoutFn func(context.Context, services.CheckoutCommand) (services.Sale, error)
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, registerID string) (services.RegisterCart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, registerID)
	}
	return services.RegisterCart{}, errors.New("not implemented")
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.RegisterCart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.RegisterCart{}, errors.New("not implemented")
}

func (s *stubCartService) UpdateItemQty(ctx context.Context, cmd services.UpdateCartItemCommand) (services.RegisterCart, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.RegisterCart{}, errors.New("not implemented")
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.RegisterCart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.RegisterCart{}, errors.New("not implemented")
}

func (s *stubCartService) ClearCart(ctx context.Context, registerID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, registerID)
	}
	return errors.New("not implemented")
}

func (s *stubCartService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.Sale, error) {
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, cmd)
	}
	return services.Sale{}, errors.New("not implemented")
}

type stubSaleService struct {
	getFn  func(context.Context, string) (services.Sale, error)
	listFn func(context.Context, services.SaleFilter) (domain.CursorPage[services.Sale], error)
}

func (s *stubSaleService) GetSale(ctx context.Context, saleID string) (services.Sale, error) {
	if s.getFn != nil {
		return s.getFn(ctx, saleID)
	}
	return services.Sale{}, errors.New("not implemented")
}

func (s *stubSaleService) ListSales(ctx context.Context, filter services.SaleFilter) (domain.CursorPage[services.Sale], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Sale]{}, nil
}

func newPOSRouter(carts services.CartService, sales services.SaleService) chi.Router {
	handler := NewPOSHandlers(nil, carts, sales)
	router := chi.NewRouter()
	router.Route("/pos", handler.Routes)
	return router
}

func TestPOSHandlersGetCartSuccess(t *testing.T) {
	now := time.Date(2025, 5, 2, 11, 0, 0, 0, time.UTC)
	carts := &stubCartService{
		getFn: func(ctx context.Context, registerID string) (services.RegisterCart, error) {
			if registerID != "reg-1" {
				t.Fatalf("unexpected register id %s", registerID)
			}
			return services.RegisterCart{
				ID:         "cart-reg-1",
				RegisterID: "reg-1",
				Currency:   "eur",
				Lines: []services.CartLine{
					{LineID: "cl1", PartRef: "part-1", SKU: "SKU-1", Name: "Brake pad", Qty: 2, UnitPrice: 4500},
				},
				Subtotal:  9000,
				UpdatedAt: now,
			}, nil
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodGet, "/pos/carts/reg-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Cart.ID != "cart-reg-1" || resp.Cart.RegisterID != "reg-1" {
		t.Fatalf("unexpected cart %#v", resp.Cart)
	}
	if resp.Cart.Currency != "EUR" {
		t.Fatalf("expected currency uppercased, got %s", resp.Cart.Currency)
	}
	if resp.Cart.Subtotal != 9000 {
		t.Fatalf("expected subtotal 9000, got %d", resp.Cart.Subtotal)
	}
	if len(resp.Cart.Lines) != 1 || resp.Cart.Lines[0].Qty != 2 {
		t.Fatalf("unexpected lines %#v", resp.Cart.Lines)
	}
}

func TestPOSHandlersGetCartUnauthenticated(t *testing.T) {
	router := newPOSRouter(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/pos/carts/reg-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestPOSHandlersGetCartServiceUnavailable(t *testing.T) {
	router := newPOSRouter(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/pos/carts/reg-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestPOSHandlersAddItemSuccess(t *testing.T) {
	var captured services.AddCartItemCommand
	carts := &stubCartService{
		addFn: func(ctx context.Context, cmd services.AddCartItemCommand) (services.RegisterCart, error) {
			captured = cmd
			return services.RegisterCart{
				ID:         "cart-reg-1",
				RegisterID: cmd.RegisterID,
				Lines: []services.CartLine{
					{LineID: "cl1", PartRef: cmd.PartRef, Qty: cmd.Qty, UnitPrice: cmd.UnitPrice},
				},
				Subtotal: cmd.Qty * cmd.UnitPrice,
			}, nil
		},
	}

	body := `{"part_ref":"part-1","sku":"SKU-1","name":"Brake pad","qty":2,"unit_price":4500}`
	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodPost, "/pos/carts/reg-1/items", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.RegisterID != "reg-1" || captured.PartRef != "part-1" || captured.Qty != 2 {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestPOSHandlersAddItemInsufficientStock(t *testing.T) {
	carts := &stubCartService{
		addFn: func(ctx context.Context, cmd services.AddCartItemCommand) (services.RegisterCart, error) {
			return services.RegisterCart{}, services.ErrCartInsufficientStock
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodPost, "/pos/carts/reg-1/items", strings.NewReader(`{"part_ref":"part-1","qty":99}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestPOSHandlersAddItemInvalidJSON(t *testing.T) {
	router := newPOSRouter(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/pos/carts/reg-1/items", strings.NewReader(`{"part_ref":`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPOSHandlersUpdateItemSuccess(t *testing.T) {
	var captured services.UpdateCartItemCommand
	carts := &stubCartService{
		updateFn: func(ctx context.Context, cmd services.UpdateCartItemCommand) (services.RegisterCart, error) {
			captured = cmd
			return services.RegisterCart{RegisterID: cmd.RegisterID}, nil
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodPatch, "/pos/carts/reg-1/items/cl1", strings.NewReader(`{"qty":5}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.RegisterID != "reg-1" || captured.LineID != "cl1" || captured.Qty != 5 {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestPOSHandlersRemoveItemNotFound(t *testing.T) {
	carts := &stubCartService{
		removeFn: func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.RegisterCart, error) {
			return services.RegisterCart{}, services.ErrCartNotFound
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodDelete, "/pos/carts/reg-1/items/cl9", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestPOSHandlersClearCartSuccess(t *testing.T) {
	var cleared string
	carts := &stubCartService{
		clearFn: func(ctx context.Context, registerID string) error {
			cleared = registerID
			return nil
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodDelete, "/pos/carts/reg-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if cleared != "reg-1" {
		t.Fatalf("expected register reg-1 cleared, got %s", cleared)
	}
}

func TestPOSHandlersCheckoutSuccess(t *testing.T) {
	now := time.Date(2025, 5, 2, 12, 30, 0, 0, time.UTC)
	var captured services.CheckoutCommand

	carts := &stubCartService{
		checkoutFn: func(ctx context.Context, cmd services.CheckoutCommand) (services.Sale, error) {
			captured = cmd
			return services.Sale{
				ID:         "sale_001",
				SaleNumber: "S-2025-000007",
				RegisterID: cmd.RegisterID,
				Currency:   "eur",
				Total:      9000,
				Tender:     cmd.Tender,
				SoldBy:     cmd.ActorID,
				SoldAt:     now,
				CreatedAt:  now,
				Lines: []services.SaleLine{
					{PartRef: "part-1", Qty: 2, UnitPrice: 4500, LineTotal: 9000},
				},
			}, nil
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodPost, "/pos/carts/reg-1:checkout", strings.NewReader(`{"tender":"card"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if captured.RegisterID != "reg-1" || captured.Tender != domain.TenderCard || captured.ActorID != "op-1" {
		t.Fatalf("unexpected command %#v", captured)
	}

	var resp saleResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Sale.ID != "sale_001" || resp.Sale.SaleNumber != "S-2025-000007" {
		t.Fatalf("unexpected sale %#v", resp.Sale)
	}
	if resp.Sale.Tender != "card" || resp.Sale.Total != 9000 {
		t.Fatalf("unexpected sale details %#v", resp.Sale)
	}
	if len(resp.Sale.Lines) != 1 || resp.Sale.Lines[0].LineTotal != 9000 {
		t.Fatalf("unexpected sale lines %#v", resp.Sale.Lines)
	}
}

func TestPOSHandlersCheckoutInvalidTender(t *testing.T) {
	var checkoutCalled bool
	carts := &stubCartService{
		checkoutFn: func(ctx context.Context, cmd services.CheckoutCommand) (services.Sale, error) {
			checkoutCalled = true
			return services.Sale{}, nil
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodPost, "/pos/carts/reg-1:checkout", strings.NewReader(`{"tender":"crypto"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if checkoutCalled {
		t.Fatalf("checkout must not be called for unknown tender")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPOSHandlersCheckoutEmptyCart(t *testing.T) {
	carts := &stubCartService{
		checkoutFn: func(ctx context.Context, cmd services.CheckoutCommand) (services.Sale, error) {
			return services.Sale{}, services.ErrCartEmptyCheckout
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodPost, "/pos/carts/reg-1:checkout", strings.NewReader(`{"tender":"cash"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestPOSHandlersCheckoutStockConflict(t *testing.T) {
	carts := &stubCartService{
		checkoutFn: func(ctx context.Context, cmd services.CheckoutCommand) (services.Sale, error) {
			return services.Sale{}, services.ErrCartInsufficientStock
		},
	}

	router := newPOSRouter(carts, nil)
	req := httptest.NewRequest(http.MethodPost, "/pos/carts/reg-1:checkout", strings.NewReader(`{"tender":"cash"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestPOSHandlersListSalesSuccess(t *testing.T) {
	soldAfter := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var capturedFilter services.SaleFilter

	sales := &stubSaleService{
		listFn: func(ctx context.Context, filter services.SaleFilter) (domain.CursorPage[services.Sale], error) {
			capturedFilter = filter
			return domain.CursorPage[services.Sale]{
				Items: []services.Sale{
					{ID: "sale_001", SaleNumber: "S-2025-000007", RegisterID: "reg-1", Total: 9000, Tender: domain.TenderCash},
				},
				NextPageToken: "tok-next",
			}, nil
		},
	}

	router := newPOSRouter(nil, sales)
	req := httptest.NewRequest(http.MethodGet, "/pos/sales?register_id=reg-1&sold_after=2025-05-01T00:00:00Z&page_size=10", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedFilter.RegisterID != "reg-1" {
		t.Fatalf("expected register filter reg-1, got %s", capturedFilter.RegisterID)
	}
	if capturedFilter.DateRange.From == nil || !capturedFilter.DateRange.From.Equal(soldAfter) {
		t.Fatalf("expected sold_after %s, got %#v", soldAfter.Format(time.RFC3339), capturedFilter.DateRange.From)
	}
	if capturedFilter.Pagination.PageSize != 10 {
		t.Fatalf("expected page size 10, got %d", capturedFilter.Pagination.PageSize)
	}

	var resp saleListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "sale_001" {
		t.Fatalf("unexpected items %#v", resp.Items)
	}
	if resp.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token tok-next, got %s", resp.NextPageToken)
	}
}

func TestPOSHandlersListSalesInvalidDate(t *testing.T) {
	router := newPOSRouter(nil, &stubSaleService{})
	req := httptest.NewRequest(http.MethodGet, "/pos/sales?sold_after=not-a-date", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPOSHandlersGetSaleNotFound(t *testing.T) {
	sales := &stubSaleService{
		getFn: func(ctx context.Context, saleID string) (services.Sale, error) {
			return services.Sale{}, services.ErrSaleNotFound
		},
	}

	router := newPOSRouter(nil, sales)
	req := httptest.NewRequest(http.MethodGet, "/pos/sales/sale_missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

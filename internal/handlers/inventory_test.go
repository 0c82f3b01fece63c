package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/services"
)

type stubInventoryService struct {
	checkFn    func(context.Context, string, int64) (bool, error)
	getFn      func(context.Context, string) (services.PartStock, error)
	lowStockFn func(context.Context, services.LowStockFilter) (domain.CursorPage[services.PartStock], error)
	adjustFn   func(context.Context, services.AdjustStockCommand) (services.PartStock, error)
	applyFn    func(context.Context, services.ApplyReceiptStockCommand) error
	commitFn   func(context.Context, services.CommitSaleStockCommand) error
}

func (s *stubInventoryService) CheckStock(ctx context.Context, partRef string, qty int64) (bool, error) {
	if s.checkFn != nil {
		return s.checkFn(ctx, partRef, qty)
	}
	return false, errors.New("not implemented")
}

func (s *stubInventoryService) GetStock(ctx context.Context, partRef string) (services.PartStock, error) {
	if s.getFn != nil {
		return s.getFn(ctx, partRef)
	}
	return services.PartStock{}, errors.New("not implemented")
}

func (s *stubInventoryService) ListLowStock(ctx context.Context, filter services.LowStockFilter) (domain.CursorPage[services.PartStock], error) {
	if s.lowStockFn != nil {
		return s.lowStockFn(ctx, filter)
	}
	return domain.CursorPage[services.PartStock]{}, nil
}

func (s *stubInventoryService) AdjustStock(ctx context.Context, cmd services.AdjustStockCommand) (services.PartStock, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, cmd)
	}
	return services.PartStock{}, errors.New("not implemented")
}

func (s *stubInventoryService) ApplyReceipt(ctx context.Context, cmd services.ApplyReceiptStockCommand) error {
	if s.applyFn != nil {
		return s.applyFn(ctx, cmd)
	}
	return errors.New("not implemented")
}

func (s *stubInventoryService) CommitSale(ctx context.Context, cmd services.CommitSaleStockCommand) error {
	if s.commitFn != nil {
		return s.commitFn(ctx, cmd)
	}
	return errors.New("not implemented")
}

func newInventoryRouter(inventory services.InventoryService, opts ...InventoryOption) chi.Router {
	handler := NewInventoryHandlers(nil, inventory, opts...)
	router := chi.NewRouter()
	router.Route("/inventory", handler.Routes)
	return router
}

func TestInventoryHandlersQueryStocksSuccess(t *testing.T) {
	now := time.Date(2025, 5, 3, 9, 0, 0, 0, time.UTC)
	inventory := &stubInventoryService{
		getFn: func(ctx context.Context, partRef string) (services.PartStock, error) {
			switch partRef {
			case "part-1":
				return services.PartStock{PartRef: "part-1", SKU: "SKU-1", OnHand: 10, Reserved: 2, Available: 8, SafetyStock: 3, UpdatedAt: now}, nil
			case "part-2":
				return services.PartStock{}, services.ErrInventoryStockNotFound
			default:
				t.Fatalf("unexpected part ref %s", partRef)
				return services.PartStock{}, nil
			}
		},
	}

	router := newInventoryRouter(inventory)
	req := httptest.NewRequest(http.MethodGet, "/inventory/stocks?part_ref=part-1,part-2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp stockListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected missing refs skipped, got %d items", len(resp.Items))
	}
	item := resp.Items[0]
	if item.PartRef != "part-1" || item.OnHand != 10 || item.Available != 8 {
		t.Fatalf("unexpected stock payload %#v", item)
	}
}

func TestInventoryHandlersQueryStocksRequiresRefs(t *testing.T) {
	router := newInventoryRouter(&stubInventoryService{})
	req := httptest.NewRequest(http.MethodGet, "/inventory/stocks", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestInventoryHandlersQueryStocksRejectsTooManyRefs(t *testing.T) {
	refs := make([]string, maxStockQueryRefs+1)
	for i := range refs {
		refs[i] = fmt.Sprintf("part-%d", i)
	}
	router := newInventoryRouter(&stubInventoryService{})
	req := httptest.NewRequest(http.MethodGet, "/inventory/stocks?part_ref="+strings.Join(refs, ","), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestInventoryHandlersGetStockSuccess(t *testing.T) {
	inventory := &stubInventoryService{
		getFn: func(ctx context.Context, partRef string) (services.PartStock, error) {
			return services.PartStock{PartRef: partRef, OnHand: 4, Available: 4}, nil
		},
	}

	router := newInventoryRouter(inventory)
	req := httptest.NewRequest(http.MethodGet, "/inventory/stocks/part-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp stockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Stock.PartRef != "part-1" || resp.Stock.OnHand != 4 {
		t.Fatalf("unexpected stock %#v", resp.Stock)
	}
}

func TestInventoryHandlersGetStockNotFound(t *testing.T) {
	inventory := &stubInventoryService{
		getFn: func(ctx context.Context, partRef string) (services.PartStock, error) {
			return services.PartStock{}, services.ErrInventoryStockNotFound
		},
	}

	router := newInventoryRouter(inventory)
	req := httptest.NewRequest(http.MethodGet, "/inventory/stocks/part-missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestInventoryHandlersAdjustStockSuccess(t *testing.T) {
	var captured services.AdjustStockCommand
	inventory := &stubInventoryService{
		adjustFn: func(ctx context.Context, cmd services.AdjustStockCommand) (services.PartStock, error) {
			captured = cmd
			return services.PartStock{PartRef: cmd.PartRef, OnHand: 7, Available: 7}, nil
		},
	}

	body := `{"delta":-3,"sku":"SKU-1","reason":"damaged in transit"}`
	router := newInventoryRouter(inventory)
	req := httptest.NewRequest(http.MethodPost, "/inventory/stocks/part-1:adjust", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.PartRef != "part-1" || captured.Delta != -3 || captured.Reason != "damaged in transit" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.ActorID != "op-1" {
		t.Fatalf("expected actor op-1, got %s", captured.ActorID)
	}
}

func TestInventoryHandlersAdjustStockInsufficient(t *testing.T) {
	inventory := &stubInventoryService{
		adjustFn: func(ctx context.Context, cmd services.AdjustStockCommand) (services.PartStock, error) {
			return services.PartStock{}, services.ErrInventoryInsufficientStock
		},
	}

	router := newInventoryRouter(inventory)
	req := httptest.NewRequest(http.MethodPost, "/inventory/stocks/part-1:adjust", strings.NewReader(`{"delta":-99}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestInventoryHandlersListLowStockSuccess(t *testing.T) {
	var capturedFilter services.LowStockFilter
	inventory := &stubInventoryService{
		lowStockFn: func(ctx context.Context, filter services.LowStockFilter) (domain.CursorPage[services.PartStock], error) {
			capturedFilter = filter
			return domain.CursorPage[services.PartStock]{
				Items: []services.PartStock{
					{PartRef: "part-1", OnHand: 1, Available: 1, SafetyStock: 5},
				},
			}, nil
		},
	}

	router := newInventoryRouter(inventory)
	req := httptest.NewRequest(http.MethodGet, "/inventory/low-stock?threshold=5&page_size=10", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedFilter.Threshold != 5 || capturedFilter.Pagination.PageSize != 10 {
		t.Fatalf("unexpected filter %#v", capturedFilter)
	}

	var resp stockListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].SafetyStock != 5 {
		t.Fatalf("unexpected items %#v", resp.Items)
	}
}

func TestInventoryHandlersListLowStockInvalidThreshold(t *testing.T) {
	router := newInventoryRouter(&stubInventoryService{})
	req := httptest.NewRequest(http.MethodGet, "/inventory/low-stock?threshold=-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestInventoryHandlersLowStockDisabled(t *testing.T) {
	router := newInventoryRouter(&stubInventoryService{}, WithLowStockReport(false))
	req := httptest.NewRequest(http.MethodGet, "/inventory/low-stock", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withOperator(req))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 when report disabled, got %d", rr.Code)
	}
}

func TestInventoryHandlersUnauthenticated(t *testing.T) {
	router := newInventoryRouter(&stubInventoryService{})
	req := httptest.NewRequest(http.MethodGet, "/inventory/stocks/part-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

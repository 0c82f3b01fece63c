package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

type stubCartRepository struct {
	getFunc     func(ctx context.Context, registerID string) (domain.RegisterCart, error)
	upsertFunc  func(ctx context.Context, cart domain.RegisterCart) (domain.RegisterCart, error)
	replaceFunc func(ctx context.Context, registerID string, lines []domain.CartLine) (domain.RegisterCart, error)
}

func (s *stubCartRepository) GetCart(ctx context.Context, registerID string) (domain.RegisterCart, error) {
	if s.getFunc == nil {
		return domain.RegisterCart{}, stubRepositoryError{notFound: true}
	}
	return s.getFunc(ctx, registerID)
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.RegisterCart) (domain.RegisterCart, error) {
	if s.upsertFunc == nil {
		return cart, nil
	}
	return s.upsertFunc(ctx, cart)
}

func (s *stubCartRepository) ReplaceLines(ctx context.Context, registerID string, lines []domain.CartLine) (domain.RegisterCart, error) {
	if s.replaceFunc == nil {
		return domain.RegisterCart{ID: registerID, RegisterID: registerID, Lines: lines}, nil
	}
	return s.replaceFunc(ctx, registerID, lines)
}

type cartStubSaleRepository struct {
	insertFunc func(ctx context.Context, sale domain.Sale) error
}

func (s *cartStubSaleRepository) Insert(ctx context.Context, sale domain.Sale) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, sale)
}

func (s *cartStubSaleRepository) FindByID(context.Context, string) (domain.Sale, error) {
	return domain.Sale{}, stubRepositoryError{notFound: true}
}

func (s *cartStubSaleRepository) List(context.Context, repositories.SaleListFilter) (domain.CursorPage[domain.Sale], error) {
	return domain.CursorPage[domain.Sale]{}, nil
}

type cartStubCounterService struct {
	nextSaleFunc func(ctx context.Context) (string, error)
}

func (s *cartStubCounterService) Next(context.Context, string, string, CounterGenerationOptions) (CounterValue, error) {
	return CounterValue{}, nil
}

func (s *cartStubCounterService) NextReceiptNumber(context.Context) (string, error) {
	return "PR-2025-000001", nil
}

func (s *cartStubCounterService) NextSaleNumber(ctx context.Context) (string, error) {
	if s.nextSaleFunc == nil {
		return "POS-2025-000001", nil
	}
	return s.nextSaleFunc(ctx)
}

func cartFixture(registerID string, now time.Time) domain.RegisterCart {
	return domain.RegisterCart{
		ID:         registerID,
		RegisterID: registerID,
		Currency:   "USD",
		Lines: []domain.CartLine{
			{LineID: "cln_1", PartRef: "prt_padset", SKU: "BRK-001", Name: "Brake pad set", Qty: 2, UnitPrice: 3500},
		},
		UpdatedAt: now.Add(-time.Minute),
	}
}

func newCartServiceForTest(t *testing.T, repo repositories.CartRepository, inventory InventoryService, deps CartServiceDeps) CartService {
	t.Helper()
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	if deps.Repository == nil {
		deps.Repository = repo
	}
	if deps.Inventory == nil {
		deps.Inventory = inventory
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return now }
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "000TESTLINE" }
	}
	svc, err := NewCartService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}
	return svc
}

func TestCartServiceGetOrCreateCartReturnsExisting(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			if registerID != "reg-1" {
				t.Fatalf("unexpected register id %q", registerID)
			}
			cart := cartFixture(registerID, now)
			cart.Currency = "usd"
			return cart, nil
		},
	}
	svc := newCartServiceForTest(t, repo, &stubInventoryService{}, CartServiceDeps{})

	cart, err := svc.GetOrCreateCart(context.Background(), " reg-1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Currency != "USD" {
		t.Fatalf("expected currency uppercased USD, got %q", cart.Currency)
	}
	if cart.Subtotal != 2*3500 {
		t.Fatalf("expected subtotal %d, got %d", 2*3500, cart.Subtotal)
	}
}

func TestCartServiceGetOrCreateCartLazyCreates(t *testing.T) {
	var upserted domain.RegisterCart
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.RegisterCart, error) {
			return domain.RegisterCart{}, stubRepositoryError{notFound: true}
		},
		upsertFunc: func(_ context.Context, cart domain.RegisterCart) (domain.RegisterCart, error) {
			upserted = cart
			return cart, nil
		},
	}
	svc := newCartServiceForTest(t, repo, &stubInventoryService{}, CartServiceDeps{DefaultCurrency: "usd"})

	cart, err := svc.GetOrCreateCart(context.Background(), "reg-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted.ID != "reg-7" {
		t.Fatalf("expected upserted cart id reg-7, got %q", upserted.ID)
	}
	if cart.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %q", cart.Currency)
	}
	if len(cart.Lines) != 0 {
		t.Fatalf("expected empty lines")
	}
	if cart.UpdatedAt.IsZero() {
		t.Fatalf("expected updated at set")
	}
}

func TestCartServiceGetOrCreateCartInvalidRegister(t *testing.T) {
	svc := newCartServiceForTest(t, &stubCartRepository{}, &stubInventoryService{}, CartServiceDeps{})

	_, err := svc.GetOrCreateCart(context.Background(), "   ")
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceAddItemCreatesLine(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	var replaced []domain.CartLine
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return domain.RegisterCart{ID: registerID, RegisterID: registerID, Currency: "USD", Lines: []domain.CartLine{}, UpdatedAt: now}, nil
		},
		replaceFunc: func(_ context.Context, registerID string, lines []domain.CartLine) (domain.RegisterCart, error) {
			replaced = lines
			return domain.RegisterCart{ID: registerID, RegisterID: registerID, Currency: "USD", Lines: lines, UpdatedAt: now}, nil
		},
	}

	var checkedPart string
	var checkedQty int64
	inventory := &stubInventoryService{
		checkStockFn: func(_ context.Context, partRef string, qty int64) (bool, error) {
			checkedPart = partRef
			checkedQty = qty
			return true, nil
		},
	}
	svc := newCartServiceForTest(t, repo, inventory, CartServiceDeps{})

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		RegisterID: "reg-1",
		PartRef:    "prt_filter",
		SKU:        "FLT-220",
		Name:       "Oil filter",
		Qty:        3,
		UnitPrice:  899,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if checkedPart != "prt_filter" || checkedQty != 3 {
		t.Fatalf("stock check saw %q qty %d", checkedPart, checkedQty)
	}
	if len(replaced) != 1 {
		t.Fatalf("expected 1 line persisted, got %d", len(replaced))
	}
	if replaced[0].LineID != "cln_000TESTLINE" {
		t.Fatalf("unexpected line id %q", replaced[0].LineID)
	}
	if cart.Subtotal != 3*899 {
		t.Fatalf("expected subtotal %d, got %d", 3*899, cart.Subtotal)
	}
}

func TestCartServiceAddItemMergesQuantity(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	var replaced []domain.CartLine
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return cartFixture(registerID, now), nil
		},
		replaceFunc: func(_ context.Context, registerID string, lines []domain.CartLine) (domain.RegisterCart, error) {
			replaced = lines
			return domain.RegisterCart{ID: registerID, RegisterID: registerID, Currency: "USD", Lines: lines, UpdatedAt: now}, nil
		},
	}

	var checkedQty int64
	inventory := &stubInventoryService{
		checkStockFn: func(_ context.Context, _ string, qty int64) (bool, error) {
			checkedQty = qty
			return true, nil
		},
	}
	svc := newCartServiceForTest(t, repo, inventory, CartServiceDeps{})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		RegisterID: "reg-1",
		PartRef:    "PRT_PADSET",
		Qty:        3,
		UnitPrice:  3600,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if checkedQty != 5 {
		t.Fatalf("expected stock check against merged qty 5, got %d", checkedQty)
	}
	if len(replaced) != 1 {
		t.Fatalf("expected merged single line, got %d", len(replaced))
	}
	if replaced[0].Qty != 5 {
		t.Fatalf("expected merged qty 5, got %d", replaced[0].Qty)
	}
	if replaced[0].UnitPrice != 3600 {
		t.Fatalf("expected refreshed unit price, got %d", replaced[0].UnitPrice)
	}
}

func TestCartServiceAddItemInsufficientStockLeavesCart(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	replaceCalls := 0
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return cartFixture(registerID, now), nil
		},
		replaceFunc: func(context.Context, string, []domain.CartLine) (domain.RegisterCart, error) {
			replaceCalls++
			return domain.RegisterCart{}, nil
		},
	}
	inventory := &stubInventoryService{
		checkStockFn: func(context.Context, string, int64) (bool, error) {
			return false, nil
		},
	}
	svc := newCartServiceForTest(t, repo, inventory, CartServiceDeps{})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		RegisterID: "reg-1",
		PartRef:    "prt_padset",
		Qty:        10,
		UnitPrice:  3500,
	})
	if !errors.Is(err, ErrCartInsufficientStock) {
		t.Fatalf("expected ErrCartInsufficientStock, got %v", err)
	}
	if replaceCalls != 0 {
		t.Fatalf("cart must not be persisted on failed stock check, got %d calls", replaceCalls)
	}
}

func TestCartServiceAddItemStockCheckFailure(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	replaceCalls := 0
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return cartFixture(registerID, now), nil
		},
		replaceFunc: func(context.Context, string, []domain.CartLine) (domain.RegisterCart, error) {
			replaceCalls++
			return domain.RegisterCart{}, nil
		},
	}
	inventory := &stubInventoryService{
		checkStockFn: func(context.Context, string, int64) (bool, error) {
			return false, errors.New("inventory backend down")
		},
	}
	var logged []string
	svc := newCartServiceForTest(t, repo, inventory, CartServiceDeps{
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		RegisterID: "reg-1",
		PartRef:    "prt_padset",
		Qty:        1,
		UnitPrice:  3500,
	})
	if !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable, got %v", err)
	}
	if replaceCalls != 0 {
		t.Fatalf("expected no persistence, got %d calls", replaceCalls)
	}
	if len(logged) != 1 || logged[0] != "cart.stock_check_failed" {
		t.Fatalf("unexpected log events %v", logged)
	}
}

func TestCartServiceAddItemValidation(t *testing.T) {
	svc := newCartServiceForTest(t, &stubCartRepository{}, &stubInventoryService{}, CartServiceDeps{})

	cases := []struct {
		name string
		cmd  AddCartItemCommand
	}{
		{name: "missing register", cmd: AddCartItemCommand{PartRef: "prt_x", Qty: 1}},
		{name: "missing part", cmd: AddCartItemCommand{RegisterID: "reg-1", Qty: 1}},
		{name: "zero qty", cmd: AddCartItemCommand{RegisterID: "reg-1", PartRef: "prt_x"}},
		{name: "negative price", cmd: AddCartItemCommand{RegisterID: "reg-1", PartRef: "prt_x", Qty: 1, UnitPrice: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddItem(context.Background(), tc.cmd)
			if !errors.Is(err, ErrCartInvalidInput) {
				t.Fatalf("expected ErrCartInvalidInput, got %v", err)
			}
		})
	}
}

func TestCartServiceUpdateItemQtyChecksStockOnIncrease(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	checkCalls := 0
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return cartFixture(registerID, now), nil
		},
	}
	inventory := &stubInventoryService{
		checkStockFn: func(_ context.Context, partRef string, qty int64) (bool, error) {
			checkCalls++
			if partRef != "prt_padset" || qty != 6 {
				t.Fatalf("stock check saw %q qty %d", partRef, qty)
			}
			return true, nil
		},
	}
	svc := newCartServiceForTest(t, repo, inventory, CartServiceDeps{})

	cart, err := svc.UpdateItemQty(context.Background(), UpdateCartItemCommand{
		RegisterID: "reg-1",
		LineID:     "cln_1",
		Qty:        6,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checkCalls != 1 {
		t.Fatalf("expected 1 stock check, got %d", checkCalls)
	}
	if cart.Lines[0].Qty != 6 {
		t.Fatalf("expected qty 6, got %d", cart.Lines[0].Qty)
	}

	checkCalls = 0
	if _, err := svc.UpdateItemQty(context.Background(), UpdateCartItemCommand{
		RegisterID: "reg-1",
		LineID:     "cln_1",
		Qty:        1,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checkCalls != 0 {
		t.Fatalf("decrease must not hit inventory, got %d checks", checkCalls)
	}
}

func TestCartServiceUpdateItemQtyUnknownLine(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return cartFixture(registerID, now), nil
		},
	}
	svc := newCartServiceForTest(t, repo, &stubInventoryService{}, CartServiceDeps{})

	_, err := svc.UpdateItemQty(context.Background(), UpdateCartItemCommand{
		RegisterID: "reg-1",
		LineID:     "cln_missing",
		Qty:        2,
	})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartServiceRemoveItem(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	var replaced []domain.CartLine
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return cartFixture(registerID, now), nil
		},
		replaceFunc: func(_ context.Context, registerID string, lines []domain.CartLine) (domain.RegisterCart, error) {
			replaced = lines
			return domain.RegisterCart{ID: registerID, RegisterID: registerID, Currency: "USD", Lines: lines, UpdatedAt: now}, nil
		},
	}
	svc := newCartServiceForTest(t, repo, &stubInventoryService{}, CartServiceDeps{})

	cart, err := svc.RemoveItem(context.Background(), RemoveCartItemCommand{
		RegisterID: "reg-1",
		LineID:     "CLN_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replaced) != 0 {
		t.Fatalf("expected empty lines persisted, got %d", len(replaced))
	}
	if cart.Subtotal != 0 {
		t.Fatalf("expected zero subtotal, got %d", cart.Subtotal)
	}
}

func TestCartServiceCheckoutRecordsSaleAndClearsCart(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	cart := domain.RegisterCart{
		ID:         "reg-1",
		RegisterID: "reg-1",
		Currency:   "USD",
		Lines: []domain.CartLine{
			{LineID: "cln_1", PartRef: "prt_padset", SKU: "BRK-001", Name: "Brake pad set", Qty: 2, UnitPrice: 3500},
			{LineID: "cln_2", PartRef: "prt_filter", SKU: "FLT-220", Name: "Oil filter", Qty: 1, UnitPrice: 899},
		},
		UpdatedAt: now.Add(-time.Minute),
	}

	var clearedLines []domain.CartLine
	clearCalled := false
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.RegisterCart, error) {
			return cart, nil
		},
		replaceFunc: func(_ context.Context, _ string, lines []domain.CartLine) (domain.RegisterCart, error) {
			clearCalled = true
			clearedLines = lines
			return domain.RegisterCart{ID: "reg-1", RegisterID: "reg-1", Currency: "USD", Lines: lines, UpdatedAt: now}, nil
		},
	}

	var committed CommitSaleStockCommand
	inventory := &stubInventoryService{
		commitSaleFn: func(_ context.Context, cmd CommitSaleStockCommand) error {
			committed = cmd
			return nil
		},
	}

	var inserted domain.Sale
	sales := &cartStubSaleRepository{
		insertFunc: func(_ context.Context, sale domain.Sale) error {
			inserted = sale
			return nil
		},
	}

	unit := &stubUnitOfWork{}
	svc := newCartServiceForTest(t, repo, inventory, CartServiceDeps{
		Sales:      sales,
		Counters:   &cartStubCounterService{},
		UnitOfWork: unit,
	})

	sale, err := svc.Checkout(context.Background(), CheckoutCommand{
		RegisterID: "reg-1",
		Tender:     domain.TenderCard,
		ActorID:    "usr_counter",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sale.ID != "sal_000TESTLINE" {
		t.Fatalf("unexpected sale id %q", sale.ID)
	}
	if sale.SaleNumber != "POS-2025-000001" {
		t.Fatalf("unexpected sale number %q", sale.SaleNumber)
	}
	if sale.Total != 2*3500+899 {
		t.Fatalf("unexpected total %d", sale.Total)
	}
	if sale.Tender != domain.TenderCard {
		t.Fatalf("unexpected tender %q", sale.Tender)
	}
	if len(sale.Lines) != 2 || sale.Lines[0].LineTotal != 7000 {
		t.Fatalf("unexpected sale lines %+v", sale.Lines)
	}
	if committed.SaleID != sale.ID || len(committed.Lines) != 2 {
		t.Fatalf("unexpected stock commit %+v", committed)
	}
	if inserted.ID != sale.ID {
		t.Fatalf("sale repo saw %q", inserted.ID)
	}
	if !clearCalled || len(clearedLines) != 0 {
		t.Fatalf("expected cart cleared, called=%v lines=%d", clearCalled, len(clearedLines))
	}
	if unit.calls != 1 {
		t.Fatalf("expected 1 transaction, got %d", unit.calls)
	}
}

func TestCartServiceCheckoutEmptyCart(t *testing.T) {
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return domain.RegisterCart{ID: registerID, RegisterID: registerID, Currency: "USD", Lines: []domain.CartLine{}}, nil
		},
	}
	svc := newCartServiceForTest(t, repo, &stubInventoryService{}, CartServiceDeps{
		Sales:    &cartStubSaleRepository{},
		Counters: &cartStubCounterService{},
	})

	_, err := svc.Checkout(context.Background(), CheckoutCommand{
		RegisterID: "reg-1",
		Tender:     domain.TenderCash,
	})
	if !errors.Is(err, ErrCartEmptyCheckout) {
		t.Fatalf("expected ErrCartEmptyCheckout, got %v", err)
	}
}

func TestCartServiceCheckoutRejectsUnknownTender(t *testing.T) {
	svc := newCartServiceForTest(t, &stubCartRepository{}, &stubInventoryService{}, CartServiceDeps{
		Sales:    &cartStubSaleRepository{},
		Counters: &cartStubCounterService{},
	})

	_, err := svc.Checkout(context.Background(), CheckoutCommand{
		RegisterID: "reg-1",
		Tender:     TenderKind("crypto"),
	})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceCheckoutInsufficientStockAborts(t *testing.T) {
	now := time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)
	commitCalls := 0
	insertCalls := 0
	repo := &stubCartRepository{
		getFunc: func(_ context.Context, registerID string) (domain.RegisterCart, error) {
			return cartFixture(registerID, now), nil
		},
	}
	inventory := &stubInventoryService{
		checkStockFn: func(context.Context, string, int64) (bool, error) {
			return false, nil
		},
		commitSaleFn: func(context.Context, CommitSaleStockCommand) error {
			commitCalls++
			return nil
		},
	}
	sales := &cartStubSaleRepository{
		insertFunc: func(context.Context, domain.Sale) error {
			insertCalls++
			return nil
		},
	}
	svc := newCartServiceForTest(t, repo, inventory, CartServiceDeps{
		Sales:    sales,
		Counters: &cartStubCounterService{},
	})

	_, err := svc.Checkout(context.Background(), CheckoutCommand{
		RegisterID: "reg-1",
		Tender:     domain.TenderCash,
	})
	if !errors.Is(err, ErrCartInsufficientStock) {
		t.Fatalf("expected ErrCartInsufficientStock, got %v", err)
	}
	if commitCalls != 0 || insertCalls != 0 {
		t.Fatalf("expected no commit or insert, got %d/%d", commitCalls, insertCalls)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartInventoryRequired  = errors.New("cart service: inventory service is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartInsufficientStock indicates on-hand inventory cannot cover the requested quantity.
var ErrCartInsufficientStock = errors.New("cart service: insufficient stock")

// ErrCartEmptyCheckout indicates checkout was attempted on a register with no lines.
var ErrCartEmptyCheckout = errors.New("cart service: cart is empty")

const saleIDPrefix = "sal_"
const cartLineIDPrefix = "cln_"

// CartServiceDeps wires the repositories and inventory dependencies for register cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Inventory       InventoryService
	Sales           repositories.SaleRepository
	Counters        CounterService
	UnitOfWork      repositories.UnitOfWork
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	repo       repositories.CartRepository
	inventory  InventoryService
	sales      repositories.SaleRepository
	counters   CounterService
	unitOfWork repositories.UnitOfWork
	newID      func() string
	now        func() time.Time
	currency   string
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Inventory == nil {
		return nil, errCartInventoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	service := &cartService{
		repo:       deps.Repository,
		inventory:  deps.Inventory,
		sales:      deps.Sales,
		counters:   deps.Counters,
		unitOfWork: unit,
		newID:      idGen,
		now:        func() time.Time { return deps.Clock().UTC() },
		currency:   defaultCurrency,
		logger:     logger,
	}
	return service, nil
}

// GetOrCreateCart loads the active cart for the register, creating an empty cart when absent.
func (s *cartService) GetOrCreateCart(ctx context.Context, registerID string) (RegisterCart, error) {
	if s == nil || s.repo == nil {
		return RegisterCart{}, ErrCartUnavailable
	}

	rid := strings.TrimSpace(registerID)
	if rid == "" {
		return RegisterCart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, rid)
	if err != nil {
		if isRepoNotFound(err) {
			saved, err := s.repo.UpsertCart(ctx, s.newCart(rid))
			if err != nil {
				return RegisterCart{}, s.translateRepoError(err)
			}
			cart = saved
		} else {
			return RegisterCart{}, s.translateRepoError(err)
		}
	}

	return s.normaliseCart(cart, rid), nil
}

// AddItem appends a part to the register cart, merging quantity into an
// existing line for the same part. Stock is verified before the cart is
// touched, so an insufficient check leaves the cart exactly as it was.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (RegisterCart, error) {
	if s == nil || s.repo == nil {
		return RegisterCart{}, ErrCartUnavailable
	}

	rid := strings.TrimSpace(cmd.RegisterID)
	if rid == "" {
		return RegisterCart{}, ErrCartInvalidInput
	}

	partRef := strings.TrimSpace(cmd.PartRef)
	if partRef == "" {
		return RegisterCart{}, fmt.Errorf("%w: part ref is required", ErrCartInvalidInput)
	}
	if cmd.Qty <= 0 {
		return RegisterCart{}, fmt.Errorf("%w: qty must be greater than zero", ErrCartInvalidInput)
	}
	if cmd.UnitPrice < 0 {
		return RegisterCart{}, fmt.Errorf("%w: unit price must be non-negative", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, rid)
	if err != nil {
		if isRepoNotFound(err) {
			cart = s.newCart(rid)
		} else {
			return RegisterCart{}, s.translateRepoError(err)
		}
	}
	cart = s.normaliseCart(cart, rid)

	lines := cloneCartLines(cart.Lines)
	idx := indexOfCartLineByPart(lines, partRef)

	wantQty := cmd.Qty
	if idx >= 0 {
		wantQty += lines[idx].Qty
	}

	ok, err := s.inventory.CheckStock(ctx, partRef, wantQty)
	if err != nil {
		s.logger(ctx, "cart.stock_check_failed", map[string]any{
			"registerID": rid,
			"partRef":    partRef,
			"error":      err.Error(),
		})
		return RegisterCart{}, ErrCartUnavailable
	}
	if !ok {
		return RegisterCart{}, fmt.Errorf("%w: part %s qty %d", ErrCartInsufficientStock, partRef, wantQty)
	}

	if idx >= 0 {
		lines[idx].Qty = wantQty
		lines[idx].UnitPrice = cmd.UnitPrice
	} else {
		lines = append(lines, domain.CartLine{
			LineID:    cartLineIDPrefix + s.newID(),
			PartRef:   partRef,
			SKU:       strings.TrimSpace(cmd.SKU),
			Name:      strings.TrimSpace(cmd.Name),
			Qty:       cmd.Qty,
			UnitPrice: cmd.UnitPrice,
		})
	}

	saved, err := s.repo.ReplaceLines(ctx, rid, lines)
	if err != nil {
		return RegisterCart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, rid), nil
}

// UpdateItemQty replaces the quantity on an existing cart line. Increases are
// checked against stock the same way AddItem is.
func (s *cartService) UpdateItemQty(ctx context.Context, cmd UpdateCartItemCommand) (RegisterCart, error) {
	if s == nil || s.repo == nil {
		return RegisterCart{}, ErrCartUnavailable
	}

	rid := strings.TrimSpace(cmd.RegisterID)
	if rid == "" {
		return RegisterCart{}, ErrCartInvalidInput
	}
	lineID := strings.TrimSpace(cmd.LineID)
	if lineID == "" {
		return RegisterCart{}, ErrCartInvalidInput
	}
	if cmd.Qty <= 0 {
		return RegisterCart{}, fmt.Errorf("%w: qty must be greater than zero", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, rid)
	if err != nil {
		if isRepoNotFound(err) {
			return RegisterCart{}, ErrCartNotFound
		}
		return RegisterCart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, rid)

	lines := cloneCartLines(cart.Lines)
	idx := indexOfCartLine(lines, lineID)
	if idx < 0 {
		return RegisterCart{}, ErrCartNotFound
	}

	if cmd.Qty > lines[idx].Qty {
		ok, err := s.inventory.CheckStock(ctx, lines[idx].PartRef, cmd.Qty)
		if err != nil {
			s.logger(ctx, "cart.stock_check_failed", map[string]any{
				"registerID": rid,
				"partRef":    lines[idx].PartRef,
				"error":      err.Error(),
			})
			return RegisterCart{}, ErrCartUnavailable
		}
		if !ok {
			return RegisterCart{}, fmt.Errorf("%w: part %s qty %d", ErrCartInsufficientStock, lines[idx].PartRef, cmd.Qty)
		}
	}

	lines[idx].Qty = cmd.Qty

	saved, err := s.repo.ReplaceLines(ctx, rid, lines)
	if err != nil {
		return RegisterCart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, rid), nil
}

// RemoveItem drops a line from the register cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (RegisterCart, error) {
	if s == nil || s.repo == nil {
		return RegisterCart{}, ErrCartUnavailable
	}

	rid := strings.TrimSpace(cmd.RegisterID)
	if rid == "" {
		return RegisterCart{}, ErrCartInvalidInput
	}
	lineID := strings.TrimSpace(cmd.LineID)
	if lineID == "" {
		return RegisterCart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, rid)
	if err != nil {
		if isRepoNotFound(err) {
			return RegisterCart{}, ErrCartNotFound
		}
		return RegisterCart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, rid)

	lines := cloneCartLines(cart.Lines)
	idx := indexOfCartLine(lines, lineID)
	if idx < 0 {
		return RegisterCart{}, ErrCartNotFound
	}
	lines = append(lines[:idx], lines[idx+1:]...)

	saved, err := s.repo.ReplaceLines(ctx, rid, lines)
	if err != nil {
		return RegisterCart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, rid), nil
}

// ClearCart empties the register cart without recording a sale.
func (s *cartService) ClearCart(ctx context.Context, registerID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}

	rid := strings.TrimSpace(registerID)
	if rid == "" {
		return ErrCartInvalidInput
	}

	if _, err := s.repo.ReplaceLines(ctx, rid, []domain.CartLine{}); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	return nil
}

// Checkout settles the register cart into an immutable sale. Stock is
// re-verified and decremented in the same transaction that records the sale,
// so a failed commit leaves both the cart and inventory untouched.
func (s *cartService) Checkout(ctx context.Context, cmd CheckoutCommand) (Sale, error) {
	if s == nil || s.repo == nil {
		return Sale{}, ErrCartUnavailable
	}
	if s.sales == nil || s.counters == nil {
		return Sale{}, ErrCartUnavailable
	}

	rid := strings.TrimSpace(cmd.RegisterID)
	if rid == "" {
		return Sale{}, ErrCartInvalidInput
	}
	tender, err := parseTenderKind(cmd.Tender)
	if err != nil {
		return Sale{}, err
	}

	cart, err := s.repo.GetCart(ctx, rid)
	if err != nil {
		if isRepoNotFound(err) {
			return Sale{}, ErrCartEmptyCheckout
		}
		return Sale{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, rid)
	if len(cart.Lines) == 0 {
		return Sale{}, ErrCartEmptyCheckout
	}

	for _, line := range cart.Lines {
		ok, err := s.inventory.CheckStock(ctx, line.PartRef, line.Qty)
		if err != nil {
			s.logger(ctx, "cart.stock_check_failed", map[string]any{
				"registerID": rid,
				"partRef":    line.PartRef,
				"error":      err.Error(),
			})
			return Sale{}, ErrCartUnavailable
		}
		if !ok {
			return Sale{}, fmt.Errorf("%w: part %s qty %d", ErrCartInsufficientStock, line.PartRef, line.Qty)
		}
	}

	number, err := s.counters.NextSaleNumber(ctx)
	if err != nil {
		return Sale{}, ErrCartUnavailable
	}

	now := s.now()
	sale := Sale{
		ID:         saleIDPrefix + s.newID(),
		SaleNumber: number,
		RegisterID: rid,
		Lines:      saleLinesFromCart(cart.Lines),
		Currency:   cart.Currency,
		Total:      cartSubtotal(cart.Lines),
		Tender:     tender,
		SoldBy:     strings.TrimSpace(cmd.ActorID),
		SoldAt:     now,
		CreatedAt:  now,
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.inventory.CommitSale(txCtx, CommitSaleStockCommand{
			SaleID:  sale.ID,
			Lines:   sale.Lines,
			ActorID: cmd.ActorID,
		}); err != nil {
			return err
		}
		if err := s.sales.Insert(txCtx, sale); err != nil {
			return s.translateRepoError(err)
		}
		if _, err := s.repo.ReplaceLines(txCtx, rid, []domain.CartLine{}); err != nil {
			return s.translateRepoError(err)
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	return sale, nil
}

func (s *cartService) newCart(registerID string) domain.RegisterCart {
	now := s.now()
	return domain.RegisterCart{
		ID:         registerID,
		RegisterID: registerID,
		Currency:   s.currency,
		Lines:      []domain.CartLine{},
		UpdatedAt:  now,
	}
}

func (s *cartService) normaliseCart(cart domain.RegisterCart, registerID string) domain.RegisterCart {
	if cart.ID = strings.TrimSpace(cart.ID); cart.ID == "" {
		cart.ID = registerID
	}
	cart.RegisterID = strings.TrimSpace(firstNonEmpty(cart.RegisterID, registerID))
	cart.Currency = strings.ToUpper(strings.TrimSpace(firstNonEmpty(cart.Currency, s.currency)))
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	cart.Subtotal = cartSubtotal(cart.Lines)
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = s.now()
	}
	return cart
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}

func parseTenderKind(kind TenderKind) (TenderKind, error) {
	switch kind {
	case domain.TenderCash, domain.TenderCard, domain.TenderAccount:
		return kind, nil
	case "":
		return "", fmt.Errorf("%w: tender is required", ErrCartInvalidInput)
	default:
		return "", fmt.Errorf("%w: unknown tender %q", ErrCartInvalidInput, kind)
	}
}

func cartSubtotal(lines []domain.CartLine) int64 {
	var subtotal int64
	for _, line := range lines {
		if line.Qty <= 0 || line.UnitPrice < 0 {
			continue
		}
		subtotal += line.UnitPrice * line.Qty
	}
	return subtotal
}

func saleLinesFromCart(lines []domain.CartLine) []domain.SaleLine {
	out := make([]domain.SaleLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.SaleLine{
			PartRef:   line.PartRef,
			SKU:       line.SKU,
			Name:      line.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			LineTotal: line.UnitPrice * line.Qty,
		})
	}
	return out
}

func cloneCartLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return []domain.CartLine{}
	}
	dup := make([]domain.CartLine, len(lines))
	copy(dup, lines)
	return dup
}

func indexOfCartLine(lines []domain.CartLine, lineID string) int {
	target := strings.TrimSpace(lineID)
	if target == "" {
		return -1
	}
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line.LineID), target) {
			return i
		}
	}
	return -1
}

func indexOfCartLineByPart(lines []domain.CartLine, partRef string) int {
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line.PartRef), partRef) {
			return i
		}
	}
	return -1
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

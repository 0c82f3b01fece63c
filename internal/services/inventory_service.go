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

const stockEventIDPrefix = "stk_"

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryInsufficientStock indicates the requested quantity exceeds availability.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryStockNotFound indicates the part has no stock record.
	ErrInventoryStockNotFound = errors.New("inventory: stock not found")
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory   repositories.InventoryRepository
	Events      StockEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo   repositories.InventoryRepository
	events StockEventPublisher
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		repo:   deps.Inventory,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CheckStock reports whether available stock covers the requested quantity. A
// part without a stock record counts as zero available rather than an error.
func (s *inventoryService) CheckStock(ctx context.Context, partRef string, qty int64) (bool, error) {
	partRef = strings.TrimSpace(partRef)
	if partRef == "" {
		return false, fmt.Errorf("%w: part ref is required", ErrInventoryInvalidInput)
	}
	if qty <= 0 {
		return false, fmt.Errorf("%w: qty must be positive", ErrInventoryInvalidInput)
	}

	stock, err := s.repo.GetStock(ctx, partRef)
	if err != nil {
		if isStockNotFound(err) {
			return false, nil
		}
		return false, s.mapRepositoryError(err)
	}

	return availableQty(stock) >= qty, nil
}

func (s *inventoryService) GetStock(ctx context.Context, partRef string) (PartStock, error) {
	partRef = strings.TrimSpace(partRef)
	if partRef == "" {
		return PartStock{}, fmt.Errorf("%w: part ref is required", ErrInventoryInvalidInput)
	}

	stock, err := s.repo.GetStock(ctx, partRef)
	if err != nil {
		return PartStock{}, s.mapRepositoryError(err)
	}
	stock.Available = availableQty(stock)
	return stock, nil
}

func (s *inventoryService) ListLowStock(ctx context.Context, filter LowStockFilter) (domain.CursorPage[PartStock], error) {
	page, err := s.repo.ListLowStock(ctx, repositories.LowStockQuery{
		Threshold: filter.Threshold,
		PageSize:  filter.Pagination.PageSize,
		PageToken: filter.Pagination.PageToken,
	})
	if err != nil {
		return domain.CursorPage[PartStock]{}, s.mapRepositoryError(err)
	}

	for i := range page.Items {
		page.Items[i].Available = availableQty(page.Items[i])
	}
	return page, nil
}

// AdjustStock applies a signed manual correction to a single part.
func (s *inventoryService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (PartStock, error) {
	partRef := strings.TrimSpace(cmd.PartRef)
	if partRef == "" {
		return PartStock{}, fmt.Errorf("%w: part ref is required", ErrInventoryInvalidInput)
	}
	if cmd.Delta == 0 {
		return PartStock{}, fmt.Errorf("%w: delta cannot be zero", ErrInventoryInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return PartStock{}, fmt.Errorf("%w: reason is required", ErrInventoryInvalidInput)
	}

	now := s.now()
	result, err := s.repo.ApplyDeltas(ctx, repositories.StockDeltaRequest{
		Deltas: []repositories.StockDelta{{
			PartRef: partRef,
			SKU:     strings.TrimSpace(cmd.SKU),
			Delta:   cmd.Delta,
		}},
		SourceRef: "adjustment",
		Now:       now,
	})
	if err != nil {
		return PartStock{}, s.mapRepositoryError(err)
	}

	stock := result.Stocks[partRef]
	stock.Available = availableQty(stock)

	s.publishStockEvent(ctx, domain.StockEvent{
		ID:         stockEventIDPrefix + s.newID(),
		Type:       domain.StockEventAdjusted,
		PartRef:    partRef,
		SKU:        stock.SKU,
		Delta:      cmd.Delta,
		OnHand:     stock.OnHand,
		SourceRef:  "adjustment",
		Actor:      strings.TrimSpace(cmd.ActorID),
		Reason:     reason,
		OccurredAt: now,
	})

	return stock, nil
}

// ApplyReceipt increments on-hand for every received line of a purchase
// receipt. Intended to run inside the transaction that marks the receipt
// received.
func (s *inventoryService) ApplyReceipt(ctx context.Context, cmd ApplyReceiptStockCommand) error {
	receiptID := strings.TrimSpace(cmd.ReceiptID)
	if receiptID == "" {
		return fmt.Errorf("%w: receipt id is required", ErrInventoryInvalidInput)
	}

	deltas := make([]repositories.StockDelta, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		if line.ReceivedQty <= 0 {
			continue
		}
		deltas = append(deltas, repositories.StockDelta{
			PartRef: line.PartRef,
			SKU:     line.SKU,
			Delta:   line.ReceivedQty,
		})
	}
	if len(deltas) == 0 {
		return nil
	}

	now := s.now()
	result, err := s.repo.ApplyDeltas(ctx, repositories.StockDeltaRequest{
		Deltas:    deltas,
		SourceRef: receiptID,
		Now:       now,
	})
	if err != nil {
		return s.mapRepositoryError(err)
	}

	for _, delta := range deltas {
		stock := result.Stocks[delta.PartRef]
		s.publishStockEvent(ctx, domain.StockEvent{
			ID:         stockEventIDPrefix + s.newID(),
			Type:       domain.StockEventReceived,
			PartRef:    delta.PartRef,
			SKU:        delta.SKU,
			Delta:      delta.Delta,
			OnHand:     stock.OnHand,
			SourceRef:  receiptID,
			Actor:      strings.TrimSpace(cmd.ActorID),
			OccurredAt: now,
		})
	}

	return nil
}

// CommitSale decrements on-hand for every line of a completed POS sale. The
// repository rejects the whole request if any part would drop below zero.
func (s *inventoryService) CommitSale(ctx context.Context, cmd CommitSaleStockCommand) error {
	saleID := strings.TrimSpace(cmd.SaleID)
	if saleID == "" {
		return fmt.Errorf("%w: sale id is required", ErrInventoryInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}

	deltas := make([]repositories.StockDelta, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		if line.Qty <= 0 {
			return fmt.Errorf("%w: qty for %s must be positive", ErrInventoryInvalidInput, line.PartRef)
		}
		deltas = append(deltas, repositories.StockDelta{
			PartRef: line.PartRef,
			SKU:     line.SKU,
			Delta:   -line.Qty,
		})
	}

	now := s.now()
	result, err := s.repo.ApplyDeltas(ctx, repositories.StockDeltaRequest{
		Deltas:    deltas,
		SourceRef: saleID,
		Now:       now,
	})
	if err != nil {
		return s.mapRepositoryError(err)
	}

	for _, delta := range deltas {
		stock := result.Stocks[delta.PartRef]
		s.publishStockEvent(ctx, domain.StockEvent{
			ID:         stockEventIDPrefix + s.newID(),
			Type:       domain.StockEventSold,
			PartRef:    delta.PartRef,
			SKU:        delta.SKU,
			Delta:      delta.Delta,
			OnHand:     stock.OnHand,
			SourceRef:  saleID,
			Actor:      strings.TrimSpace(cmd.ActorID),
			OccurredAt: now,
		})
	}

	return nil
}

func (s *inventoryService) now() time.Time {
	return s.clock()
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.Message)
		case repositories.InventoryErrorStockNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryStockNotFound, invErr.Message)
		}
	}

	return err
}

func (s *inventoryService) publishStockEvent(ctx context.Context, event domain.StockEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStockEvent(ctx, event); err != nil {
		s.logger(ctx, "inventory.event.publish.failed", map[string]any{
			"type":    string(event.Type),
			"partRef": event.PartRef,
			"error":   err.Error(),
		})
	}
}

func isStockNotFound(err error) bool {
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		return invErr.Code == repositories.InventoryErrorStockNotFound
	}
	return isRepoNotFound(err)
}

func availableQty(stock domain.PartStock) int64 {
	available := stock.OnHand - stock.Reserved
	if available < 0 {
		return 0
	}
	return available
}

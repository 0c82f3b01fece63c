package repositories

import (
	"context"
	"time"

	domain "github.com/partsdesk/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Receipts() ReceiptRepository
	Carts() CartRepository
	Inventory() InventoryRepository
	Sales() SaleRepository
	Parts() PartRepository
	Suppliers() SupplierRepository
	VehicleModels() VehicleModelRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReceiptRepository persists purchase receipt documents.
type ReceiptRepository interface {
	Insert(ctx context.Context, receipt domain.PurchaseReceipt) error
	Update(ctx context.Context, receipt domain.PurchaseReceipt) error
	Delete(ctx context.Context, receiptID string) error
	FindByID(ctx context.Context, receiptID string) (domain.PurchaseReceipt, error)
	List(ctx context.Context, filter ReceiptListFilter) (domain.CursorPage[domain.PurchaseReceipt], error)
}

// CartRepository owns register cart persistence with optimistic locking guarantees.
type CartRepository interface {
	GetCart(ctx context.Context, registerID string) (domain.RegisterCart, error)
	UpsertCart(ctx context.Context, cart domain.RegisterCart) (domain.RegisterCart, error)
	ReplaceLines(ctx context.Context, registerID string, lines []domain.CartLine) (domain.RegisterCart, error)
}

// InventoryRepository manages stock levels with transactional floor checks.
type InventoryRepository interface {
	GetStock(ctx context.Context, partRef string) (domain.PartStock, error)
	ApplyDeltas(ctx context.Context, req StockDeltaRequest) (StockDeltaResult, error)
	UpsertStock(ctx context.Context, stock domain.PartStock) (domain.PartStock, error)
	ListLowStock(ctx context.Context, query LowStockQuery) (domain.CursorPage[domain.PartStock], error)
}

// StockDeltaRequest applies signed quantity changes to one or more parts in a
// single transaction. Parts whose resulting on-hand would drop below zero
// cause the whole request to fail.
type StockDeltaRequest struct {
	Deltas    []StockDelta
	SourceRef string
	Now       time.Time
}

// StockDelta is a single signed movement for one part.
type StockDelta struct {
	PartRef string
	SKU     string
	Delta   int64
}

// StockDeltaResult reports the updated stock positions keyed by part ref.
type StockDeltaResult struct {
	Stocks map[string]domain.PartStock
}

// LowStockQuery controls pagination and threshold filtering for low stock listings.
type LowStockQuery struct {
	Threshold int
	PageSize  int
	PageToken string
}

// SaleRepository stores immutable POS sale records.
type SaleRepository interface {
	Insert(ctx context.Context, sale domain.Sale) error
	FindByID(ctx context.Context, saleID string) (domain.Sale, error)
	List(ctx context.Context, filter SaleListFilter) (domain.CursorPage[domain.Sale], error)
}

// PartRepository stores the parts catalog.
type PartRepository interface {
	Upsert(ctx context.Context, part domain.Part) (domain.Part, error)
	Delete(ctx context.Context, partID string) error
	FindByID(ctx context.Context, partID string) (domain.Part, error)
	List(ctx context.Context, filter PartListFilter) (domain.CursorPage[domain.Part], error)
}

// SupplierRepository stores supplier records.
type SupplierRepository interface {
	Upsert(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error)
	Delete(ctx context.Context, supplierID string) error
	FindByID(ctx context.Context, supplierID string) (domain.Supplier, error)
	List(ctx context.Context, filter SupplierListFilter) (domain.CursorPage[domain.Supplier], error)
}

// VehicleModelRepository stores the vehicle fitment catalog.
type VehicleModelRepository interface {
	Upsert(ctx context.Context, model domain.VehicleModel) (domain.VehicleModel, error)
	Delete(ctx context.Context, modelID string) error
	FindByID(ctx context.Context, modelID string) (domain.VehicleModel, error)
	List(ctx context.Context, filter VehicleModelListFilter) (domain.CursorPage[domain.VehicleModel], error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type ReceiptListFilter struct {
	SupplierRef string
	Status      []string
	DateRange   domain.RangeQuery[time.Time]
	Pagination  domain.Pagination
}

type SaleListFilter struct {
	RegisterID string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type PartListFilter struct {
	SKU         *string
	SupplierRef *string
	VehicleRef  *string
	ActiveOnly  bool
	Pagination  domain.Pagination
}

type SupplierListFilter struct {
	ActiveOnly bool
	Pagination domain.Pagination
}

type VehicleModelListFilter struct {
	Make       *string
	Pagination domain.Pagination
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

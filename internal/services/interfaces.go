package services

import (
	"context"
	"time"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	PurchaseReceipt    = domain.PurchaseReceipt
	ReceiptStatus      = domain.ReceiptStatus
	ReceiptLine        = domain.ReceiptLine
	ReceiptAttachment  = domain.ReceiptAttachment
	ReceiptEvent       = domain.ReceiptEvent
	ShipNotice         = domain.ShipNotice
	Part               = domain.Part
	Supplier           = domain.Supplier
	VehicleModel       = domain.VehicleModel
	Address            = domain.Address
	PartStock          = domain.PartStock
	StockEvent         = domain.StockEvent
	StockEventType     = domain.StockEventType
	RegisterCart       = domain.RegisterCart
	CartLine           = domain.CartLine
	Sale               = domain.Sale
	SaleLine           = domain.SaleLine
	TenderKind         = domain.TenderKind
	AuditLogEntry      = domain.AuditLogEntry
	SystemHealthReport = domain.SystemHealthReport
	SignedAsset        = domain.SignedAssetResponse
)

// ReceiptService owns the authoritative purchase receipt lifecycle: drafting,
// the transition graph, and the side effects each transition applies.
type ReceiptService interface {
	CreateDraft(ctx context.Context, cmd CreateReceiptCommand) (PurchaseReceipt, error)
	GetReceipt(ctx context.Context, receiptID string) (PurchaseReceipt, error)
	ListReceipts(ctx context.Context, filter ReceiptListFilter) (domain.CursorPage[PurchaseReceipt], error)
	UpdateDraft(ctx context.Context, cmd UpdateDraftReceiptCommand) (PurchaseReceipt, error)
	Approve(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error)
	Send(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error)
	Receive(ctx context.Context, cmd ReceiveReceiptCommand) (PurchaseReceipt, error)
	Complete(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error)
	Cancel(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error)
	Delete(ctx context.Context, cmd TransitionReceiptCommand) error
	RecordShipNotice(ctx context.Context, cmd ShipNoticeCommand) (PurchaseReceipt, error)
	AttachDocument(ctx context.Context, cmd AttachDocumentCommand) (PurchaseReceipt, error)
}

// CartService manages per-register POS carts while enforcing stock checks.
type CartService interface {
	GetOrCreateCart(ctx context.Context, registerID string) (RegisterCart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (RegisterCart, error)
	UpdateItemQty(ctx context.Context, cmd UpdateCartItemCommand) (RegisterCart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (RegisterCart, error)
	ClearCart(ctx context.Context, registerID string) error
	Checkout(ctx context.Context, cmd CheckoutCommand) (Sale, error)
}

// InventoryService centralizes stock queries and movements.
type InventoryService interface {
	CheckStock(ctx context.Context, partRef string, qty int64) (bool, error)
	GetStock(ctx context.Context, partRef string) (PartStock, error)
	ListLowStock(ctx context.Context, filter LowStockFilter) (domain.CursorPage[PartStock], error)
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (PartStock, error)
	ApplyReceipt(ctx context.Context, cmd ApplyReceiptStockCommand) error
	CommitSale(ctx context.Context, cmd CommitSaleStockCommand) error
}

// CatalogService manages parts, suppliers, and vehicle models for admin-facing operations.
type CatalogService interface {
	ListParts(ctx context.Context, filter PartFilter) (domain.CursorPage[Part], error)
	GetPart(ctx context.Context, partID string) (Part, error)
	UpsertPart(ctx context.Context, cmd UpsertPartCommand) (Part, error)
	DeletePart(ctx context.Context, partID string) error
	ListSuppliers(ctx context.Context, filter SupplierFilter) (domain.CursorPage[Supplier], error)
	GetSupplier(ctx context.Context, supplierID string) (Supplier, error)
	UpsertSupplier(ctx context.Context, cmd UpsertSupplierCommand) (Supplier, error)
	DeleteSupplier(ctx context.Context, supplierID string) error
	ListVehicleModels(ctx context.Context, filter VehicleModelFilter) (domain.CursorPage[VehicleModel], error)
	UpsertVehicleModel(ctx context.Context, cmd UpsertVehicleModelCommand) (VehicleModel, error)
	DeleteVehicleModel(ctx context.Context, modelID string) error
}

// AttachmentService issues signed URLs for receipt documents and records
// confirmed uploads on the owning receipt.
type AttachmentService interface {
	IssueSignedUpload(ctx context.Context, cmd SignAttachmentUploadCommand) (SignedAsset, error)
	IssueSignedDownload(ctx context.Context, cmd SignAttachmentDownloadCommand) (SignedAsset, error)
	ConfirmUpload(ctx context.Context, cmd ConfirmAttachmentUploadCommand) (PurchaseReceipt, error)
}

// SaleService exposes read access to completed POS sales.
type SaleService interface {
	GetSale(ctx context.Context, saleID string) (Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) (domain.CursorPage[Sale], error)
}

// CounterService hands out transaction-safe sequence values and formatted document numbers.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextReceiptNumber(ctx context.Context) (string, error)
	NextSaleNumber(ctx context.Context) (string, error)
}

// AuditLogService centralizes immutable audit log persistence and retrieval.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
}

// SystemService aggregates utility endpoints such as readiness reporting.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	ListAuditLogs(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// StockEventPublisher accepts stock change notifications for downstream processing.
type StockEventPublisher interface {
	PublishStockEvent(ctx context.Context, event StockEvent) error
}

// Command and DTO definitions ------------------------------------------------

type ReceiptLineInput struct {
	PartRef     string
	SKU         string
	Description string
	OrderedQty  int64
	UnitCost    int64
}

type CreateReceiptCommand struct {
	SupplierRef string
	Lines       []ReceiptLineInput
	Currency    string
	Notes       string
	Metadata    map[string]any
	ActorID     string
}

type UpdateDraftReceiptCommand struct {
	ReceiptID         string
	SupplierRef       *string
	Lines             []ReceiptLineInput
	Notes             *string
	Metadata          map[string]any
	ExpectedUpdatedAt *time.Time
	ActorID           string
}

type TransitionReceiptCommand struct {
	ReceiptID string
	ActorID   string
	Reason    string
}

type ReceivedLineInput struct {
	LineID      string
	ReceivedQty int64
}

type ReceiveReceiptCommand struct {
	ReceiptID    string
	ReceivedDate time.Time
	QualityCheck *bool
	Lines        []ReceivedLineInput
	ActorID      string
}

type ShipNoticeCommand struct {
	ReceiptID  string
	Carrier    string
	TrackingNo string
	ShippedAt  time.Time
}

type AttachDocumentCommand struct {
	ReceiptID   string
	Kind        string
	StoragePath string
	ContentType string
	ActorID     string
}

type ReceiptListFilter struct {
	SupplierRef string
	Status      []ReceiptStatus
	From        *time.Time
	To          *time.Time
	Pagination  Pagination
}

type AddCartItemCommand struct {
	RegisterID string
	PartRef    string
	SKU        string
	Name       string
	Qty        int64
	UnitPrice  int64
}

type UpdateCartItemCommand struct {
	RegisterID string
	LineID     string
	Qty        int64
}

type RemoveCartItemCommand struct {
	RegisterID string
	LineID     string
}

type CheckoutCommand struct {
	RegisterID string
	Tender     TenderKind
	ActorID    string
}

type LowStockFilter struct {
	Threshold  int
	Pagination Pagination
}

type AdjustStockCommand struct {
	PartRef string
	SKU     string
	Delta   int64
	Reason  string
	ActorID string
}

type ApplyReceiptStockCommand struct {
	ReceiptID string
	Lines     []ReceiptLine
	ActorID   string
}

type CommitSaleStockCommand struct {
	SaleID  string
	Lines   []SaleLine
	ActorID string
}

type PartFilter struct {
	SKU         *string
	SupplierRef *string
	VehicleRef  *string
	ActiveOnly  bool
	Pagination  Pagination
}

type UpsertPartCommand struct {
	PartID       string
	SKU          string
	Name         string
	Descriptions map[string]string
	FitmentHTML  string
	UnitPrice    int64
	Currency     string
	SupplierRefs []string
	VehicleRefs  []string
	Active       *bool
	Metadata     map[string]any
}

type SupplierFilter struct {
	ActiveOnly bool
	Pagination Pagination
}

type UpsertSupplierCommand struct {
	SupplierID   string
	Name         string
	ContactName  string
	ContactEmail string
	ContactPhone string
	Address      *Address
	LeadTimeDays int
	NotesHTML    string
	Active       *bool
}

type VehicleModelFilter struct {
	Make       *string
	Pagination Pagination
}

type UpsertVehicleModelCommand struct {
	ModelID  string
	Make     string
	Model    string
	YearFrom int
	YearTo   int
}

type SaleFilter = repositories.SaleListFilter

type SignAttachmentUploadCommand struct {
	ReceiptID   string
	Kind        string
	FileName    string
	ContentType string
	SizeBytes   int64
	ActorID     string
}

type SignAttachmentDownloadCommand struct {
	ReceiptID    string
	AttachmentID string
	ActorID      string
}

type ConfirmAttachmentUploadCommand struct {
	ReceiptID   string
	Kind        string
	StoragePath string
	ContentType string
	ActorID     string
}

type AuditLogRecord struct {
	Actor     string
	Action    string
	TargetRef string
	Detail    map[string]any
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	Action     string
	From       *time.Time
	To         *time.Time
	Pagination Pagination
}

// CounterCommand requests the next value of a named counter in scope:name form.
type CounterCommand struct {
	CounterID string
	Step      int64
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
	Prefix       string
	Suffix       string
	PadLength    int
	Formatter    func(now time.Time, seq int64) string
}

// CounterValue reports the raw and formatted value handed out by a counter.
type CounterValue struct {
	Value     int64
	Formatted string
}

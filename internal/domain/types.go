package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage bundles a page of results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ReceiptStatus enumerates the purchase receipt lifecycle states.
type ReceiptStatus string

const (
	// ReceiptStatusDraft marks a receipt still being assembled and editable.
	ReceiptStatusDraft ReceiptStatus = "draft"
	// ReceiptStatusApproved marks a receipt signed off for ordering.
	ReceiptStatusApproved ReceiptStatus = "approved"
	// ReceiptStatusSent marks a receipt dispatched to the supplier.
	ReceiptStatusSent ReceiptStatus = "sent"
	// ReceiptStatusReceived marks goods checked in against the receipt.
	ReceiptStatusReceived ReceiptStatus = "received"
	// ReceiptStatusCompleted marks a reconciled, closed receipt.
	ReceiptStatusCompleted ReceiptStatus = "completed"
	// ReceiptStatusCanceled marks a receipt abandoned before completion.
	ReceiptStatusCanceled ReceiptStatus = "canceled"
	// ReceiptStatusDeleted is the terminal state of a discarded draft. Deleted
	// receipts are removed from the store; the constant exists so transition
	// tables can express delete legality.
	ReceiptStatusDeleted ReceiptStatus = "deleted"
)

// ReceiptLine is a single part ordered (and later received) on a receipt.
type ReceiptLine struct {
	LineID      string
	PartRef     string
	SKU         string
	Description string
	OrderedQty  int64
	ReceivedQty int64
	UnitCost    int64
	Currency    string
}

// ReceiptAttachment records a stored document linked to a receipt.
type ReceiptAttachment struct {
	ID          string
	Kind        string
	StoragePath string
	ContentType string
	UploadedBy  string
	UploadedAt  time.Time
}

// ShipNotice captures supplier dispatch metadata reported via webhook.
type ShipNotice struct {
	Carrier    string
	TrackingNo string
	ShippedAt  time.Time
	ReportedAt time.Time
}

// PurchaseReceipt is the unified purchase order and goods receipt record.
type PurchaseReceipt struct {
	ID            string
	ReceiptNumber string
	SupplierRef   string
	Status        ReceiptStatus
	Lines         []ReceiptLine
	Currency      string
	TotalCost     int64
	ReceivedDate  *time.Time
	QualityCheck  *bool
	ShipNotice    *ShipNotice
	Attachments   []ReceiptAttachment
	Notes         string
	Metadata      map[string]any
	CreatedBy     string
	ApprovedAt    *time.Time
	SentAt        *time.Time
	ReceivedAt    *time.Time
	CompletedAt   *time.Time
	CanceledAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReceiptEvent notifies downstream consumers about lifecycle changes.
type ReceiptEvent struct {
	Type           string
	ReceiptID      string
	ReceiptNumber  string
	PreviousStatus ReceiptStatus
	CurrentStatus  ReceiptStatus
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// Part describes a catalog entry for a stocked auto part.
type Part struct {
	ID           string
	SKU          string
	Name         string
	Descriptions map[string]string
	FitmentHTML  string
	UnitPrice    int64
	Currency     string
	SupplierRefs []string
	VehicleRefs  []string
	Active       bool
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Supplier describes a parts vendor the store orders from.
type Supplier struct {
	ID           string
	Name         string
	ContactName  string
	ContactEmail string
	ContactPhone string
	Address      *Address
	LeadTimeDays int
	NotesHTML    string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VehicleModel identifies a vehicle a part may fit.
type VehicleModel struct {
	ID        string
	Make      string
	Model     string
	YearFrom  int
	YearTo    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address captures postal contact details for suppliers.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// PartStock is the authoritative on-hand position for one part.
type PartStock struct {
	PartRef     string
	SKU         string
	OnHand      int64
	Reserved    int64
	Available   int64
	SafetyStock int64
	UpdatedAt   time.Time
}

// StockEventType enumerates the causes of a stock movement.
type StockEventType string

const (
	// StockEventReceived records goods checked in from a purchase receipt.
	StockEventReceived StockEventType = "received"
	// StockEventSold records a POS checkout decrement.
	StockEventSold StockEventType = "sold"
	// StockEventAdjusted records a manual operator correction.
	StockEventAdjusted StockEventType = "adjusted"
)

// StockEvent is the immutable record of a single stock movement.
type StockEvent struct {
	ID         string
	Type       StockEventType
	PartRef    string
	SKU        string
	Delta      int64
	OnHand     int64
	SourceRef  string
	Actor      string
	Reason     string
	OccurredAt time.Time
}

// CartLine is one part queued for sale on a POS register.
type CartLine struct {
	LineID    string
	PartRef   string
	SKU       string
	Name      string
	Qty       int64
	UnitPrice int64
}

// RegisterCart holds the in-progress sale for one POS register.
type RegisterCart struct {
	ID         string
	RegisterID string
	Currency   string
	Lines      []CartLine
	Subtotal   int64
	UpdatedAt  time.Time
}

// TenderKind labels how a completed sale was settled. Payment capture is
// handled outside this system; the sale only records the label.
type TenderKind string

const (
	// TenderCash marks a sale settled in cash at the counter.
	TenderCash TenderKind = "cash"
	// TenderCard marks a sale settled by card terminal.
	TenderCard TenderKind = "card"
	// TenderAccount marks a sale billed to a trade account.
	TenderAccount TenderKind = "account"
)

// SaleLine is the immutable copy of a cart line at checkout time.
type SaleLine struct {
	PartRef   string
	SKU       string
	Name      string
	Qty       int64
	UnitPrice int64
	LineTotal int64
}

// Sale is the immutable record of a completed POS checkout.
type Sale struct {
	ID         string
	SaleNumber string
	RegisterID string
	Lines      []SaleLine
	Currency   string
	Total      int64
	Tender     TenderKind
	SoldBy     string
	SoldAt     time.Time
	CreatedAt  time.Time
}

// AuditLogEntry records an operator-visible action for later review.
type AuditLogEntry struct {
	ID         string
	Actor      string
	Action     string
	TargetRef  string
	Detail     map[string]any
	OccurredAt time.Time
}

// Health status values reported by dependency probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probe results for readiness checks.
type SystemHealthReport struct {
	Status      string
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
	Checks      map[string]SystemHealthCheck
}

// SignedAssetResponse carries a signed URL plus the metadata clients need to use it.
type SignedAssetResponse struct {
	URL         string
	Method      string
	Headers     map[string]string
	StoragePath string
	ExpiresAt   time.Time
}

package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/partsdesk/api/internal/domain"
	pfirestore "github.com/partsdesk/api/internal/platform/firestore"
	"github.com/partsdesk/api/internal/platform/pagination"
	"github.com/partsdesk/api/internal/repositories"
)

const receiptsCollection = "purchaseReceipts"

// ReceiptRepository persists purchase receipt documents.
type ReceiptRepository struct {
	base *pfirestore.BaseRepository[receiptDocument]
}

// NewReceiptRepository constructs a Firestore-backed receipt repository.
func NewReceiptRepository(provider *pfirestore.Provider) (*ReceiptRepository, error) {
	if provider == nil {
		return nil, errors.New("receipt repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[receiptDocument](provider, receiptsCollection, nil, nil)
	return &ReceiptRepository{base: base}, nil
}

// Insert stores a new receipt document. The ID must be unique.
func (r *ReceiptRepository) Insert(ctx context.Context, receipt domain.PurchaseReceipt) error {
	if r == nil || r.base == nil {
		return errors.New("receipt repository not initialised")
	}
	receiptID := strings.TrimSpace(receipt.ID)
	if receiptID == "" {
		return errors.New("receipt repository: receipt id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, receiptID)
	if err != nil {
		return err
	}
	doc := encodeReceiptDocument(receipt)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("receipts.insert", err)
	}
	return nil
}

// Update replaces the persisted receipt state with the provided snapshot.
func (r *ReceiptRepository) Update(ctx context.Context, receipt domain.PurchaseReceipt) error {
	if r == nil || r.base == nil {
		return errors.New("receipt repository not initialised")
	}
	receiptID := strings.TrimSpace(receipt.ID)
	if receiptID == "" {
		return errors.New("receipt repository: receipt id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, receiptID)
	if err != nil {
		return err
	}
	doc := encodeReceiptDocument(receipt)
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("receipts.update", err)
	}
	return nil
}

// Delete removes the receipt document outright. Only drafts reach this path;
// the service layer enforces legality.
func (r *ReceiptRepository) Delete(ctx context.Context, receiptID string) error {
	if r == nil || r.base == nil {
		return errors.New("receipt repository not initialised")
	}
	receiptID = strings.TrimSpace(receiptID)
	if receiptID == "" {
		return errors.New("receipt repository: receipt id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, receiptID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("receipts.delete", err)
	}
	return nil
}

// FindByID fetches a single receipt.
func (r *ReceiptRepository) FindByID(ctx context.Context, receiptID string) (domain.PurchaseReceipt, error) {
	if r == nil || r.base == nil {
		return domain.PurchaseReceipt{}, errors.New("receipt repository not initialised")
	}
	receiptID = strings.TrimSpace(receiptID)
	if receiptID == "" {
		return domain.PurchaseReceipt{}, errors.New("receipt repository: receipt id is required")
	}
	doc, err := r.base.Get(ctx, receiptID)
	if err != nil {
		return domain.PurchaseReceipt{}, err
	}
	return decodeReceiptDocument(receiptID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns receipts ordered by most recent creation, optionally filtered
// by supplier, status, and creation date range.
func (r *ReceiptRepository) List(ctx context.Context, filter repositories.ReceiptListFilter) (domain.CursorPage[domain.PurchaseReceipt], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.PurchaseReceipt]{}, errors.New("receipt repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := pagination.DecodeTimeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.PurchaseReceipt]{}, fmt.Errorf("receipt repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statusFilters := normaliseStatuses(filter.Status)
	supplierRef := strings.TrimSpace(filter.SupplierRef)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if supplierRef != "" {
			q = q.Where("supplierRef", "==", supplierRef)
		}

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		if filter.DateRange.From != nil && !filter.DateRange.From.IsZero() {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil && !filter.DateRange.To.IsZero() {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.PurchaseReceipt]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = pagination.EncodeTimeCursor(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.PurchaseReceipt, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeReceiptDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.PurchaseReceipt]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type receiptDocument struct {
	ReceiptNumber string                       `firestore:"receiptNumber"`
	SupplierRef   string                       `firestore:"supplierRef"`
	Status        string                       `firestore:"status"`
	Lines         []receiptLineDocument        `firestore:"lines"`
	Currency      string                       `firestore:"currency"`
	TotalCost     int64                        `firestore:"totalCost"`
	ReceivedDate  *time.Time                   `firestore:"receivedDate,omitempty"`
	QualityCheck  *bool                        `firestore:"qualityCheck,omitempty"`
	ShipNotice    *shipNoticeDocument          `firestore:"shipNotice,omitempty"`
	Attachments   []receiptAttachmentDocument  `firestore:"attachments,omitempty"`
	Notes         string                       `firestore:"notes,omitempty"`
	Metadata      map[string]any               `firestore:"metadata,omitempty"`
	CreatedBy     string                       `firestore:"createdBy,omitempty"`
	ApprovedAt    *time.Time                   `firestore:"approvedAt,omitempty"`
	SentAt        *time.Time                   `firestore:"sentAt,omitempty"`
	ReceivedAt    *time.Time                   `firestore:"receivedAt,omitempty"`
	CompletedAt   *time.Time                   `firestore:"completedAt,omitempty"`
	CanceledAt    *time.Time                   `firestore:"canceledAt,omitempty"`
	CreatedAt     time.Time                    `firestore:"createdAt"`
	UpdatedAt     time.Time                    `firestore:"updatedAt"`
}

type receiptLineDocument struct {
	LineID      string `firestore:"lineId"`
	PartRef     string `firestore:"partRef"`
	SKU         string `firestore:"sku"`
	Description string `firestore:"description,omitempty"`
	OrderedQty  int64  `firestore:"orderedQty"`
	ReceivedQty int64  `firestore:"receivedQty"`
	UnitCost    int64  `firestore:"unitCost"`
	Currency    string `firestore:"currency"`
}

type shipNoticeDocument struct {
	Carrier    string    `firestore:"carrier"`
	TrackingNo string    `firestore:"trackingNo,omitempty"`
	ShippedAt  time.Time `firestore:"shippedAt"`
	ReportedAt time.Time `firestore:"reportedAt"`
}

type receiptAttachmentDocument struct {
	ID          string    `firestore:"id"`
	Kind        string    `firestore:"kind,omitempty"`
	StoragePath string    `firestore:"storagePath"`
	ContentType string    `firestore:"contentType,omitempty"`
	UploadedBy  string    `firestore:"uploadedBy,omitempty"`
	UploadedAt  time.Time `firestore:"uploadedAt"`
}

func encodeReceiptDocument(receipt domain.PurchaseReceipt) receiptDocument {
	lines := make([]receiptLineDocument, len(receipt.Lines))
	for i, line := range receipt.Lines {
		lines[i] = receiptLineDocument{
			LineID:      strings.TrimSpace(line.LineID),
			PartRef:     strings.TrimSpace(line.PartRef),
			SKU:         strings.TrimSpace(line.SKU),
			Description: strings.TrimSpace(line.Description),
			OrderedQty:  line.OrderedQty,
			ReceivedQty: line.ReceivedQty,
			UnitCost:    line.UnitCost,
			Currency:    strings.ToUpper(strings.TrimSpace(line.Currency)),
		}
	}

	doc := receiptDocument{
		ReceiptNumber: strings.TrimSpace(receipt.ReceiptNumber),
		SupplierRef:   strings.TrimSpace(receipt.SupplierRef),
		Status:        strings.TrimSpace(string(receipt.Status)),
		Lines:         lines,
		Currency:      strings.ToUpper(strings.TrimSpace(receipt.Currency)),
		TotalCost:     receipt.TotalCost,
		ReceivedDate:  normalizeTimePointer(receipt.ReceivedDate),
		QualityCheck:  receipt.QualityCheck,
		Notes:         strings.TrimSpace(receipt.Notes),
		Metadata:      cloneMap(receipt.Metadata),
		CreatedBy:     strings.TrimSpace(receipt.CreatedBy),
		ApprovedAt:    normalizeTimePointer(receipt.ApprovedAt),
		SentAt:        normalizeTimePointer(receipt.SentAt),
		ReceivedAt:    normalizeTimePointer(receipt.ReceivedAt),
		CompletedAt:   normalizeTimePointer(receipt.CompletedAt),
		CanceledAt:    normalizeTimePointer(receipt.CanceledAt),
		CreatedAt:     receipt.CreatedAt.UTC(),
		UpdatedAt:     receipt.UpdatedAt.UTC(),
	}

	if receipt.ShipNotice != nil {
		doc.ShipNotice = &shipNoticeDocument{
			Carrier:    strings.TrimSpace(receipt.ShipNotice.Carrier),
			TrackingNo: strings.TrimSpace(receipt.ShipNotice.TrackingNo),
			ShippedAt:  receipt.ShipNotice.ShippedAt.UTC(),
			ReportedAt: receipt.ShipNotice.ReportedAt.UTC(),
		}
	}

	if len(receipt.Attachments) > 0 {
		doc.Attachments = make([]receiptAttachmentDocument, len(receipt.Attachments))
		for i, att := range receipt.Attachments {
			doc.Attachments[i] = receiptAttachmentDocument{
				ID:          strings.TrimSpace(att.ID),
				Kind:        strings.TrimSpace(att.Kind),
				StoragePath: strings.TrimSpace(att.StoragePath),
				ContentType: strings.TrimSpace(att.ContentType),
				UploadedBy:  strings.TrimSpace(att.UploadedBy),
				UploadedAt:  att.UploadedAt.UTC(),
			}
		}
	}

	return doc
}

func decodeReceiptDocument(id string, doc receiptDocument, createdAt, updatedAt time.Time) domain.PurchaseReceipt {
	lines := make([]domain.ReceiptLine, len(doc.Lines))
	for i, line := range doc.Lines {
		lines[i] = domain.ReceiptLine{
			LineID:      strings.TrimSpace(line.LineID),
			PartRef:     strings.TrimSpace(line.PartRef),
			SKU:         strings.TrimSpace(line.SKU),
			Description: strings.TrimSpace(line.Description),
			OrderedQty:  line.OrderedQty,
			ReceivedQty: line.ReceivedQty,
			UnitCost:    line.UnitCost,
			Currency:    strings.TrimSpace(line.Currency),
		}
	}

	receipt := domain.PurchaseReceipt{
		ID:            strings.TrimSpace(id),
		ReceiptNumber: strings.TrimSpace(doc.ReceiptNumber),
		SupplierRef:   strings.TrimSpace(doc.SupplierRef),
		Status:        domain.ReceiptStatus(strings.TrimSpace(doc.Status)),
		Lines:         lines,
		Currency:      strings.TrimSpace(doc.Currency),
		TotalCost:     doc.TotalCost,
		ReceivedDate:  normalizeTimePointer(doc.ReceivedDate),
		QualityCheck:  doc.QualityCheck,
		Notes:         strings.TrimSpace(doc.Notes),
		Metadata:      cloneMap(doc.Metadata),
		CreatedBy:     strings.TrimSpace(doc.CreatedBy),
		ApprovedAt:    normalizeTimePointer(doc.ApprovedAt),
		SentAt:        normalizeTimePointer(doc.SentAt),
		ReceivedAt:    normalizeTimePointer(doc.ReceivedAt),
		CompletedAt:   normalizeTimePointer(doc.CompletedAt),
		CanceledAt:    normalizeTimePointer(doc.CanceledAt),
		CreatedAt:     chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:     chooseTime(doc.UpdatedAt, updatedAt),
	}

	if doc.ShipNotice != nil {
		receipt.ShipNotice = &domain.ShipNotice{
			Carrier:    strings.TrimSpace(doc.ShipNotice.Carrier),
			TrackingNo: strings.TrimSpace(doc.ShipNotice.TrackingNo),
			ShippedAt:  doc.ShipNotice.ShippedAt,
			ReportedAt: doc.ShipNotice.ReportedAt,
		}
	}

	if len(doc.Attachments) > 0 {
		receipt.Attachments = make([]domain.ReceiptAttachment, len(doc.Attachments))
		for i, att := range doc.Attachments {
			receipt.Attachments[i] = domain.ReceiptAttachment{
				ID:          strings.TrimSpace(att.ID),
				Kind:        strings.TrimSpace(att.Kind),
				StoragePath: strings.TrimSpace(att.StoragePath),
				ContentType: strings.TrimSpace(att.ContentType),
				UploadedBy:  strings.TrimSpace(att.UploadedBy),
				UploadedAt:  att.UploadedAt,
			}
		}
	}

	return receipt
}



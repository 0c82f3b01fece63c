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

const salesCollection = "sales"

// SaleRepository stores immutable POS sale records.
type SaleRepository struct {
	base *pfirestore.BaseRepository[saleDocument]
}

// NewSaleRepository constructs a Firestore-backed sale repository.
func NewSaleRepository(provider *pfirestore.Provider) (*SaleRepository, error) {
	if provider == nil {
		return nil, errors.New("sale repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[saleDocument](provider, salesCollection, nil, nil)
	return &SaleRepository{base: base}, nil
}

// Insert creates the sale document. Sales are never updated after checkout.
func (r *SaleRepository) Insert(ctx context.Context, sale domain.Sale) error {
	if r == nil || r.base == nil {
		return errors.New("sale repository not initialised")
	}
	saleID := strings.TrimSpace(sale.ID)
	if saleID == "" {
		return errors.New("sale repository: sale id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, saleID)
	if err != nil {
		return err
	}
	doc := encodeSaleDocument(sale)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("sales.insert", err)
	}
	return nil
}

// FindByID fetches a single sale.
func (r *SaleRepository) FindByID(ctx context.Context, saleID string) (domain.Sale, error) {
	if r == nil || r.base == nil {
		return domain.Sale{}, errors.New("sale repository not initialised")
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.Sale{}, errors.New("sale repository: sale id is required")
	}
	doc, err := r.base.Get(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return decodeSaleDocument(saleID, doc.Data, doc.CreateTime), nil
}

// List returns sales ordered by most recent first, optionally filtered by
// register and sale date range.
func (r *SaleRepository) List(ctx context.Context, filter repositories.SaleListFilter) (domain.CursorPage[domain.Sale], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Sale]{}, errors.New("sale repository not initialised")
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
			return domain.CursorPage[domain.Sale]{}, fmt.Errorf("sale repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	registerID := strings.TrimSpace(filter.RegisterID)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if registerID != "" {
			q = q.Where("registerId", "==", registerID)
		}
		if filter.DateRange.From != nil && !filter.DateRange.From.IsZero() {
			q = q.Where("soldAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil && !filter.DateRange.To.IsZero() {
			q = q.Where("soldAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("soldAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Sale]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.SoldAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = pagination.EncodeTimeCursor(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Sale, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeSaleDocument(doc.ID, doc.Data, doc.CreateTime))
	}

	return domain.CursorPage[domain.Sale]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type saleDocument struct {
	SaleNumber string             `firestore:"saleNumber"`
	RegisterID string             `firestore:"registerId"`
	Lines      []saleLineDocument `firestore:"lines"`
	Currency   string             `firestore:"currency"`
	Total      int64              `firestore:"total"`
	Tender     string             `firestore:"tender"`
	SoldBy     string             `firestore:"soldBy,omitempty"`
	SoldAt     time.Time          `firestore:"soldAt"`
	CreatedAt  time.Time          `firestore:"createdAt"`
}

type saleLineDocument struct {
	PartRef   string `firestore:"partRef"`
	SKU       string `firestore:"sku,omitempty"`
	Name      string `firestore:"name,omitempty"`
	Qty       int64  `firestore:"qty"`
	UnitPrice int64  `firestore:"unitPrice"`
	LineTotal int64  `firestore:"lineTotal"`
}

func encodeSaleDocument(sale domain.Sale) saleDocument {
	lines := make([]saleLineDocument, len(sale.Lines))
	for i, line := range sale.Lines {
		lines[i] = saleLineDocument{
			PartRef:   strings.TrimSpace(line.PartRef),
			SKU:       strings.TrimSpace(line.SKU),
			Name:      strings.TrimSpace(line.Name),
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		}
	}
	return saleDocument{
		SaleNumber: strings.TrimSpace(sale.SaleNumber),
		RegisterID: strings.TrimSpace(sale.RegisterID),
		Lines:      lines,
		Currency:   strings.ToUpper(strings.TrimSpace(sale.Currency)),
		Total:      sale.Total,
		Tender:     strings.TrimSpace(string(sale.Tender)),
		SoldBy:     strings.TrimSpace(sale.SoldBy),
		SoldAt:     sale.SoldAt.UTC(),
		CreatedAt:  sale.CreatedAt.UTC(),
	}
}

func decodeSaleDocument(id string, doc saleDocument, createdAt time.Time) domain.Sale {
	lines := make([]domain.SaleLine, len(doc.Lines))
	for i, line := range doc.Lines {
		lines[i] = domain.SaleLine{
			PartRef:   strings.TrimSpace(line.PartRef),
			SKU:       strings.TrimSpace(line.SKU),
			Name:      strings.TrimSpace(line.Name),
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		}
	}
	return domain.Sale{
		ID:         strings.TrimSpace(id),
		SaleNumber: strings.TrimSpace(doc.SaleNumber),
		RegisterID: strings.TrimSpace(doc.RegisterID),
		Lines:      lines,
		Currency:   strings.TrimSpace(doc.Currency),
		Total:      doc.Total,
		Tender:     domain.TenderKind(strings.TrimSpace(doc.Tender)),
		SoldBy:     strings.TrimSpace(doc.SoldBy),
		SoldAt:     doc.SoldAt,
		CreatedAt:  chooseTime(doc.CreatedAt, createdAt),
	}
}



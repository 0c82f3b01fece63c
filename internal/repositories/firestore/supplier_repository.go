package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/partsdesk/api/internal/domain"
	pfirestore "github.com/partsdesk/api/internal/platform/firestore"
	"github.com/partsdesk/api/internal/repositories"
)

const suppliersCollection = "suppliers"

// SupplierRepository stores supplier records.
type SupplierRepository struct {
	base *pfirestore.BaseRepository[supplierDocument]
}

// NewSupplierRepository constructs a Firestore-backed supplier repository.
func NewSupplierRepository(provider *pfirestore.Provider) (*SupplierRepository, error) {
	if provider == nil {
		return nil, errors.New("supplier repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[supplierDocument](provider, suppliersCollection, nil, nil)
	return &SupplierRepository{base: base}, nil
}

// Upsert stores the supplier document keyed by supplier ID.
func (r *SupplierRepository) Upsert(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	if r == nil || r.base == nil {
		return domain.Supplier{}, errors.New("supplier repository not initialised")
	}
	supplierID := strings.TrimSpace(supplier.ID)
	if supplierID == "" {
		return domain.Supplier{}, errors.New("supplier repository: supplier id is required")
	}
	doc := encodeSupplierDocument(supplier)
	if _, err := r.base.Set(ctx, supplierID, doc); err != nil {
		return domain.Supplier{}, err
	}
	return decodeSupplierDocument(supplierID, doc, doc.CreatedAt, doc.UpdatedAt), nil
}

// Delete removes the supplier record.
func (r *SupplierRepository) Delete(ctx context.Context, supplierID string) error {
	if r == nil || r.base == nil {
		return errors.New("supplier repository not initialised")
	}
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return errors.New("supplier repository: supplier id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, supplierID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("suppliers.delete", err)
	}
	return nil
}

// FindByID fetches a single supplier.
func (r *SupplierRepository) FindByID(ctx context.Context, supplierID string) (domain.Supplier, error) {
	if r == nil || r.base == nil {
		return domain.Supplier{}, errors.New("supplier repository not initialised")
	}
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return domain.Supplier{}, errors.New("supplier repository: supplier id is required")
	}
	doc, err := r.base.Get(ctx, supplierID)
	if err != nil {
		return domain.Supplier{}, err
	}
	return decodeSupplierDocument(supplierID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List pages through suppliers ordered by name.
func (r *SupplierRepository) List(ctx context.Context, filter repositories.SupplierListFilter) (domain.CursorPage[domain.Supplier], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Supplier]{}, errors.New("supplier repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	startAfter := strings.TrimSpace(filter.Pagination.PageToken)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		q = q.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if startAfter != "" {
			q = q.StartAfter(startAfter)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Supplier]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		valueDocs = valueDocs[:len(valueDocs)-1]
		nextToken = valueDocs[len(valueDocs)-1].Data.Name
	}

	items := make([]domain.Supplier, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeSupplierDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Supplier]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type supplierDocument struct {
	Name         string           `firestore:"name"`
	ContactName  string           `firestore:"contactName,omitempty"`
	ContactEmail string           `firestore:"contactEmail,omitempty"`
	ContactPhone string           `firestore:"contactPhone,omitempty"`
	Address      *addressDocument `firestore:"address,omitempty"`
	LeadTimeDays int              `firestore:"leadTimeDays"`
	NotesHTML    string           `firestore:"notesHtml,omitempty"`
	Active       bool             `firestore:"active"`
	CreatedAt    time.Time        `firestore:"createdAt"`
	UpdatedAt    time.Time        `firestore:"updatedAt"`
}

type addressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city,omitempty"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
}

func encodeSupplierDocument(supplier domain.Supplier) supplierDocument {
	doc := supplierDocument{
		Name:         strings.TrimSpace(supplier.Name),
		ContactName:  strings.TrimSpace(supplier.ContactName),
		ContactEmail: strings.TrimSpace(supplier.ContactEmail),
		ContactPhone: strings.TrimSpace(supplier.ContactPhone),
		LeadTimeDays: supplier.LeadTimeDays,
		NotesHTML:    supplier.NotesHTML,
		Active:       supplier.Active,
		CreatedAt:    supplier.CreatedAt.UTC(),
		UpdatedAt:    supplier.UpdatedAt.UTC(),
	}
	if supplier.Address != nil {
		doc.Address = &addressDocument{
			Line1:      strings.TrimSpace(supplier.Address.Line1),
			Line2:      strings.TrimSpace(supplier.Address.Line2),
			City:       strings.TrimSpace(supplier.Address.City),
			Region:     strings.TrimSpace(supplier.Address.Region),
			PostalCode: strings.TrimSpace(supplier.Address.PostalCode),
			Country:    strings.TrimSpace(supplier.Address.Country),
		}
	}
	return doc
}

func decodeSupplierDocument(id string, doc supplierDocument, createdAt, updatedAt time.Time) domain.Supplier {
	supplier := domain.Supplier{
		ID:           strings.TrimSpace(id),
		Name:         strings.TrimSpace(doc.Name),
		ContactName:  strings.TrimSpace(doc.ContactName),
		ContactEmail: strings.TrimSpace(doc.ContactEmail),
		ContactPhone: strings.TrimSpace(doc.ContactPhone),
		LeadTimeDays: doc.LeadTimeDays,
		NotesHTML:    doc.NotesHTML,
		Active:       doc.Active,
		CreatedAt:    chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:    chooseTime(doc.UpdatedAt, updatedAt),
	}
	if doc.Address != nil {
		supplier.Address = &domain.Address{
			Line1:      strings.TrimSpace(doc.Address.Line1),
			Line2:      strings.TrimSpace(doc.Address.Line2),
			City:       strings.TrimSpace(doc.Address.City),
			Region:     strings.TrimSpace(doc.Address.Region),
			PostalCode: strings.TrimSpace(doc.Address.PostalCode),
			Country:    strings.TrimSpace(doc.Address.Country),
		}
	}
	return supplier
}

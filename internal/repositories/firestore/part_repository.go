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

const partsCollection = "parts"

// PartRepository stores the parts catalog.
type PartRepository struct {
	base *pfirestore.BaseRepository[partDocument]
}

// NewPartRepository constructs a Firestore-backed part repository.
func NewPartRepository(provider *pfirestore.Provider) (*PartRepository, error) {
	if provider == nil {
		return nil, errors.New("part repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[partDocument](provider, partsCollection, nil, nil)
	return &PartRepository{base: base}, nil
}

// Upsert stores the part document keyed by part ID.
func (r *PartRepository) Upsert(ctx context.Context, part domain.Part) (domain.Part, error) {
	if r == nil || r.base == nil {
		return domain.Part{}, errors.New("part repository not initialised")
	}
	partID := strings.TrimSpace(part.ID)
	if partID == "" {
		return domain.Part{}, errors.New("part repository: part id is required")
	}
	doc := encodePartDocument(part)
	if _, err := r.base.Set(ctx, partID, doc); err != nil {
		return domain.Part{}, err
	}
	return decodePartDocument(partID, doc, doc.CreatedAt, doc.UpdatedAt), nil
}

// Delete removes the part from the catalog.
func (r *PartRepository) Delete(ctx context.Context, partID string) error {
	if r == nil || r.base == nil {
		return errors.New("part repository not initialised")
	}
	partID = strings.TrimSpace(partID)
	if partID == "" {
		return errors.New("part repository: part id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, partID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("parts.delete", err)
	}
	return nil
}

// FindByID fetches a single part.
func (r *PartRepository) FindByID(ctx context.Context, partID string) (domain.Part, error) {
	if r == nil || r.base == nil {
		return domain.Part{}, errors.New("part repository not initialised")
	}
	partID = strings.TrimSpace(partID)
	if partID == "" {
		return domain.Part{}, errors.New("part repository: part id is required")
	}
	doc, err := r.base.Get(ctx, partID)
	if err != nil {
		return domain.Part{}, err
	}
	return decodePartDocument(partID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List pages through the catalog ordered by SKU.
func (r *PartRepository) List(ctx context.Context, filter repositories.PartListFilter) (domain.CursorPage[domain.Part], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Part]{}, errors.New("part repository not initialised")
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
		if filter.SKU != nil {
			if sku := strings.TrimSpace(*filter.SKU); sku != "" {
				q = q.Where("sku", "==", sku)
			}
		}
		if filter.SupplierRef != nil {
			if ref := strings.TrimSpace(*filter.SupplierRef); ref != "" {
				q = q.Where("supplierRefs", "array-contains", ref)
			}
		}
		if filter.VehicleRef != nil {
			if ref := strings.TrimSpace(*filter.VehicleRef); ref != "" {
				q = q.Where("vehicleRefs", "array-contains", ref)
			}
		}
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		q = q.OrderBy("sku", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if startAfter != "" {
			q = q.StartAfter(startAfter)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Part]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		valueDocs = valueDocs[:len(valueDocs)-1]
		nextToken = valueDocs[len(valueDocs)-1].Data.SKU
	}

	items := make([]domain.Part, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodePartDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Part]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type partDocument struct {
	SKU          string            `firestore:"sku"`
	Name         string            `firestore:"name"`
	Descriptions map[string]string `firestore:"descriptions,omitempty"`
	FitmentHTML  string            `firestore:"fitmentHtml,omitempty"`
	UnitPrice    int64             `firestore:"unitPrice"`
	Currency     string            `firestore:"currency"`
	SupplierRefs []string          `firestore:"supplierRefs,omitempty"`
	VehicleRefs  []string          `firestore:"vehicleRefs,omitempty"`
	Active       bool              `firestore:"active"`
	Metadata     map[string]any    `firestore:"metadata,omitempty"`
	CreatedAt    time.Time         `firestore:"createdAt"`
	UpdatedAt    time.Time         `firestore:"updatedAt"`
}

func encodePartDocument(part domain.Part) partDocument {
	return partDocument{
		SKU:          strings.TrimSpace(part.SKU),
		Name:         strings.TrimSpace(part.Name),
		Descriptions: cloneStringMap(part.Descriptions),
		FitmentHTML:  part.FitmentHTML,
		UnitPrice:    part.UnitPrice,
		Currency:     strings.ToUpper(strings.TrimSpace(part.Currency)),
		SupplierRefs: cloneStrings(part.SupplierRefs),
		VehicleRefs:  cloneStrings(part.VehicleRefs),
		Active:       part.Active,
		Metadata:     cloneMap(part.Metadata),
		CreatedAt:    part.CreatedAt.UTC(),
		UpdatedAt:    part.UpdatedAt.UTC(),
	}
}

func decodePartDocument(id string, doc partDocument, createdAt, updatedAt time.Time) domain.Part {
	return domain.Part{
		ID:           strings.TrimSpace(id),
		SKU:          strings.TrimSpace(doc.SKU),
		Name:         strings.TrimSpace(doc.Name),
		Descriptions: cloneStringMap(doc.Descriptions),
		FitmentHTML:  doc.FitmentHTML,
		UnitPrice:    doc.UnitPrice,
		Currency:     strings.TrimSpace(doc.Currency),
		SupplierRefs: cloneStrings(doc.SupplierRefs),
		VehicleRefs:  cloneStrings(doc.VehicleRefs),
		Active:       doc.Active,
		Metadata:     cloneMap(doc.Metadata),
		CreatedAt:    chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:    chooseTime(doc.UpdatedAt, updatedAt),
	}
}

func cloneStringMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

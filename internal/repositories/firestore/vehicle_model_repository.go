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

const vehicleModelsCollection = "vehicleModels"

// VehicleModelRepository stores the vehicle fitment catalog.
type VehicleModelRepository struct {
	base *pfirestore.BaseRepository[vehicleModelDocument]
}

// NewVehicleModelRepository constructs a Firestore-backed vehicle model repository.
func NewVehicleModelRepository(provider *pfirestore.Provider) (*VehicleModelRepository, error) {
	if provider == nil {
		return nil, errors.New("vehicle model repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[vehicleModelDocument](provider, vehicleModelsCollection, nil, nil)
	return &VehicleModelRepository{base: base}, nil
}

// Upsert stores the vehicle model keyed by model ID.
func (r *VehicleModelRepository) Upsert(ctx context.Context, model domain.VehicleModel) (domain.VehicleModel, error) {
	if r == nil || r.base == nil {
		return domain.VehicleModel{}, errors.New("vehicle model repository not initialised")
	}
	modelID := strings.TrimSpace(model.ID)
	if modelID == "" {
		return domain.VehicleModel{}, errors.New("vehicle model repository: model id is required")
	}
	doc := encodeVehicleModelDocument(model)
	if _, err := r.base.Set(ctx, modelID, doc); err != nil {
		return domain.VehicleModel{}, err
	}
	return decodeVehicleModelDocument(modelID, doc, doc.CreatedAt, doc.UpdatedAt), nil
}

// Delete removes the vehicle model.
func (r *VehicleModelRepository) Delete(ctx context.Context, modelID string) error {
	if r == nil || r.base == nil {
		return errors.New("vehicle model repository not initialised")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return errors.New("vehicle model repository: model id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, modelID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("vehicleModels.delete", err)
	}
	return nil
}

// FindByID fetches a single vehicle model.
func (r *VehicleModelRepository) FindByID(ctx context.Context, modelID string) (domain.VehicleModel, error) {
	if r == nil || r.base == nil {
		return domain.VehicleModel{}, errors.New("vehicle model repository not initialised")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return domain.VehicleModel{}, errors.New("vehicle model repository: model id is required")
	}
	doc, err := r.base.Get(ctx, modelID)
	if err != nil {
		return domain.VehicleModel{}, err
	}
	return decodeVehicleModelDocument(modelID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List pages through vehicle models ordered by make then model.
func (r *VehicleModelRepository) List(ctx context.Context, filter repositories.VehicleModelListFilter) (domain.CursorPage[domain.VehicleModel], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.VehicleModel]{}, errors.New("vehicle model repository not initialised")
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
		if filter.Make != nil {
			if maker := strings.TrimSpace(*filter.Make); maker != "" {
				q = q.Where("make", "==", maker)
			}
		}
		q = q.OrderBy(firestore.DocumentID, firestore.Asc)
		if startAfter != "" {
			q = q.StartAfter(startAfter)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.VehicleModel]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		valueDocs = valueDocs[:len(valueDocs)-1]
		nextToken = valueDocs[len(valueDocs)-1].ID
	}

	items := make([]domain.VehicleModel, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeVehicleModelDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.VehicleModel]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type vehicleModelDocument struct {
	Make      string    `firestore:"make"`
	Model     string    `firestore:"model"`
	YearFrom  int       `firestore:"yearFrom"`
	YearTo    int       `firestore:"yearTo"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func encodeVehicleModelDocument(model domain.VehicleModel) vehicleModelDocument {
	return vehicleModelDocument{
		Make:      strings.TrimSpace(model.Make),
		Model:     strings.TrimSpace(model.Model),
		YearFrom:  model.YearFrom,
		YearTo:    model.YearTo,
		CreatedAt: model.CreatedAt.UTC(),
		UpdatedAt: model.UpdatedAt.UTC(),
	}
}

func decodeVehicleModelDocument(id string, doc vehicleModelDocument, createdAt, updatedAt time.Time) domain.VehicleModel {
	return domain.VehicleModel{
		ID:        strings.TrimSpace(id),
		Make:      strings.TrimSpace(doc.Make),
		Model:     strings.TrimSpace(doc.Model),
		YearFrom:  doc.YearFrom,
		YearTo:    doc.YearTo,
		CreatedAt: chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt: chooseTime(doc.UpdatedAt, updatedAt),
	}
}

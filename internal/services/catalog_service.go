package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/platform/textutil"
	"github.com/partsdesk/api/internal/repositories"
)

const (
	partIDPrefix         = "prt_"
	supplierIDPrefix     = "sup_"
	vehicleModelIDPrefix = "veh_"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog mutation.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogNotFound indicates the requested catalog entity does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
	// ErrCatalogConflict indicates a concurrent modification prevented the mutation.
	ErrCatalogConflict = errors.New("catalog service: conflict")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Parts         repositories.PartRepository
	Suppliers     repositories.SupplierRepository
	VehicleModels repositories.VehicleModelRepository
	Audit         AuditLogService
	Clock         func() time.Time
	IDGenerator   func() string
}

type catalogService struct {
	parts         repositories.PartRepository
	suppliers     repositories.SupplierRepository
	vehicleModels repositories.VehicleModelRepository
	audit         AuditLogService
	clock         func() time.Time
	newID         func() string
	htmlPolicy    *bluemonday.Policy
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Parts == nil {
		return nil, errors.New("catalog service: part repository is required")
	}
	if deps.Suppliers == nil {
		return nil, errors.New("catalog service: supplier repository is required")
	}
	if deps.VehicleModels == nil {
		return nil, errors.New("catalog service: vehicle model repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &catalogService{
		parts:         deps.Parts,
		suppliers:     deps.Suppliers,
		vehicleModels: deps.VehicleModels,
		audit:         deps.Audit,
		clock:         func() time.Time { return clock().UTC() },
		newID:         idGen,
		htmlPolicy:    newCatalogHTMLPolicy(),
	}, nil
}

func newCatalogHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

func (s *catalogService) ListParts(ctx context.Context, filter PartFilter) (domain.CursorPage[Part], error) {
	repoFilter := repositories.PartListFilter{
		SKU:         normalizeFilterPointer(filter.SKU),
		SupplierRef: normalizeFilterPointer(filter.SupplierRef),
		VehicleRef:  normalizeFilterPointer(filter.VehicleRef),
		ActiveOnly:  filter.ActiveOnly,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	}
	page, err := s.parts.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Part]{}, s.translateCatalogError(err)
	}
	return page, nil
}

func (s *catalogService) GetPart(ctx context.Context, partID string) (Part, error) {
	partID = strings.TrimSpace(partID)
	if partID == "" {
		return Part{}, fmt.Errorf("%w: part id is required", ErrCatalogInvalidInput)
	}
	part, err := s.parts.FindByID(ctx, partID)
	if err != nil {
		return Part{}, s.translateCatalogError(err)
	}
	return part, nil
}

func (s *catalogService) UpsertPart(ctx context.Context, cmd UpsertPartCommand) (Part, error) {
	sku := strings.TrimSpace(cmd.SKU)
	name := strings.TrimSpace(cmd.Name)
	if sku == "" {
		return Part{}, fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}
	if name == "" {
		return Part{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if cmd.UnitPrice < 0 {
		return Part{}, fmt.Errorf("%w: unit price must be non-negative", ErrCatalogInvalidInput)
	}

	descriptions, err := s.normalizeDescriptions(cmd.Descriptions)
	if err != nil {
		return Part{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return Part{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrCatalogInvalidInput)
	}

	now := s.clock()
	part := Part{
		ID:           strings.TrimSpace(cmd.PartID),
		SKU:          sku,
		Name:         name,
		Descriptions: descriptions,
		FitmentHTML:  s.sanitizeHTML(cmd.FitmentHTML),
		UnitPrice:    cmd.UnitPrice,
		Currency:     currency,
		SupplierRefs: normalizeRefs(cmd.SupplierRefs),
		VehicleRefs:  normalizeRefs(cmd.VehicleRefs),
		Active:       true,
		Metadata:     cloneMap(cmd.Metadata),
		UpdatedAt:    now,
	}
	if cmd.Active != nil {
		part.Active = *cmd.Active
	}

	action := "part.update"
	if part.ID == "" {
		part.ID = partIDPrefix + s.newID()
		part.CreatedAt = now
		action = "part.create"
	} else {
		existing, err := s.parts.FindByID(ctx, part.ID)
		if err != nil {
			return Part{}, s.translateCatalogError(err)
		}
		part.CreatedAt = existing.CreatedAt
	}

	saved, err := s.parts.Upsert(ctx, part)
	if err != nil {
		return Part{}, s.translateCatalogError(err)
	}

	s.recordAudit(ctx, action, "/parts/"+saved.ID, map[string]any{"sku": saved.SKU})
	return saved, nil
}

func (s *catalogService) DeletePart(ctx context.Context, partID string) error {
	partID = strings.TrimSpace(partID)
	if partID == "" {
		return fmt.Errorf("%w: part id is required", ErrCatalogInvalidInput)
	}
	if err := s.parts.Delete(ctx, partID); err != nil {
		return s.translateCatalogError(err)
	}
	s.recordAudit(ctx, "part.delete", "/parts/"+partID, nil)
	return nil
}

func (s *catalogService) ListSuppliers(ctx context.Context, filter SupplierFilter) (domain.CursorPage[Supplier], error) {
	page, err := s.suppliers.List(ctx, repositories.SupplierListFilter{
		ActiveOnly: filter.ActiveOnly,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Supplier]{}, s.translateCatalogError(err)
	}
	return page, nil
}

func (s *catalogService) GetSupplier(ctx context.Context, supplierID string) (Supplier, error) {
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return Supplier{}, fmt.Errorf("%w: supplier id is required", ErrCatalogInvalidInput)
	}
	supplier, err := s.suppliers.FindByID(ctx, supplierID)
	if err != nil {
		return Supplier{}, s.translateCatalogError(err)
	}
	return supplier, nil
}

func (s *catalogService) UpsertSupplier(ctx context.Context, cmd UpsertSupplierCommand) (Supplier, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Supplier{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if cmd.LeadTimeDays < 0 {
		return Supplier{}, fmt.Errorf("%w: lead time must be non-negative", ErrCatalogInvalidInput)
	}
	email := strings.TrimSpace(cmd.ContactEmail)
	if email != "" && !strings.Contains(email, "@") {
		return Supplier{}, fmt.Errorf("%w: contact email is malformed", ErrCatalogInvalidInput)
	}

	now := s.clock()
	supplier := Supplier{
		ID:           strings.TrimSpace(cmd.SupplierID),
		Name:         name,
		ContactName:  strings.TrimSpace(cmd.ContactName),
		ContactEmail: email,
		ContactPhone: strings.TrimSpace(cmd.ContactPhone),
		Address:      normalizeAddress(cmd.Address),
		LeadTimeDays: cmd.LeadTimeDays,
		NotesHTML:    s.sanitizeHTML(cmd.NotesHTML),
		Active:       true,
		UpdatedAt:    now,
	}
	if cmd.Active != nil {
		supplier.Active = *cmd.Active
	}

	action := "supplier.update"
	if supplier.ID == "" {
		supplier.ID = supplierIDPrefix + s.newID()
		supplier.CreatedAt = now
		action = "supplier.create"
	} else {
		existing, err := s.suppliers.FindByID(ctx, supplier.ID)
		if err != nil {
			return Supplier{}, s.translateCatalogError(err)
		}
		supplier.CreatedAt = existing.CreatedAt
	}

	saved, err := s.suppliers.Upsert(ctx, supplier)
	if err != nil {
		return Supplier{}, s.translateCatalogError(err)
	}

	s.recordAudit(ctx, action, "/suppliers/"+saved.ID, nil)
	return saved, nil
}

func (s *catalogService) DeleteSupplier(ctx context.Context, supplierID string) error {
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return fmt.Errorf("%w: supplier id is required", ErrCatalogInvalidInput)
	}
	if err := s.suppliers.Delete(ctx, supplierID); err != nil {
		return s.translateCatalogError(err)
	}
	s.recordAudit(ctx, "supplier.delete", "/suppliers/"+supplierID, nil)
	return nil
}

func (s *catalogService) ListVehicleModels(ctx context.Context, filter VehicleModelFilter) (domain.CursorPage[VehicleModel], error) {
	page, err := s.vehicleModels.List(ctx, repositories.VehicleModelListFilter{
		Make: normalizeFilterPointer(filter.Make),
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[VehicleModel]{}, s.translateCatalogError(err)
	}
	return page, nil
}

func (s *catalogService) UpsertVehicleModel(ctx context.Context, cmd UpsertVehicleModelCommand) (VehicleModel, error) {
	maker := strings.TrimSpace(cmd.Make)
	model := strings.TrimSpace(cmd.Model)
	if maker == "" || model == "" {
		return VehicleModel{}, fmt.Errorf("%w: make and model are required", ErrCatalogInvalidInput)
	}
	if cmd.YearFrom < 0 || cmd.YearTo < 0 {
		return VehicleModel{}, fmt.Errorf("%w: years must be non-negative", ErrCatalogInvalidInput)
	}
	if cmd.YearTo != 0 && cmd.YearFrom != 0 && cmd.YearTo < cmd.YearFrom {
		return VehicleModel{}, fmt.Errorf("%w: year range is inverted", ErrCatalogInvalidInput)
	}

	now := s.clock()
	vehicle := VehicleModel{
		ID:        strings.TrimSpace(cmd.ModelID),
		Make:      maker,
		Model:     model,
		YearFrom:  cmd.YearFrom,
		YearTo:    cmd.YearTo,
		UpdatedAt: now,
	}

	action := "vehicle_model.update"
	if vehicle.ID == "" {
		vehicle.ID = vehicleModelIDPrefix + s.newID()
		vehicle.CreatedAt = now
		action = "vehicle_model.create"
	} else {
		existing, err := s.vehicleModels.FindByID(ctx, vehicle.ID)
		if err != nil {
			return VehicleModel{}, s.translateCatalogError(err)
		}
		vehicle.CreatedAt = existing.CreatedAt
	}

	saved, err := s.vehicleModels.Upsert(ctx, vehicle)
	if err != nil {
		return VehicleModel{}, s.translateCatalogError(err)
	}

	s.recordAudit(ctx, action, "/vehicle-models/"+saved.ID, nil)
	return saved, nil
}

func (s *catalogService) DeleteVehicleModel(ctx context.Context, modelID string) error {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return fmt.Errorf("%w: model id is required", ErrCatalogInvalidInput)
	}
	if err := s.vehicleModels.Delete(ctx, modelID); err != nil {
		return s.translateCatalogError(err)
	}
	s.recordAudit(ctx, "vehicle_model.delete", "/vehicle-models/"+modelID, nil)
	return nil
}

func (s *catalogService) sanitizeHTML(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(s.htmlPolicy.Sanitize(trimmed))
}

// normalizeDescriptions canonicalises language-tag keys so "en_US" and
// "en-US" collapse to the same entry.
func (s *catalogService) normalizeDescriptions(descriptions map[string]string) (map[string]string, error) {
	trimmed := textutil.NormalizeStringMap(descriptions)
	if len(trimmed) == 0 {
		return nil, nil
	}
	result := make(map[string]string, len(trimmed))
	for tag, text := range trimmed {
		canonical := strings.ReplaceAll(tag, "_", "-")
		parsed, err := language.Parse(canonical)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid description language %q", ErrCatalogInvalidInput, tag)
		}
		result[parsed.String()] = text
	}
	return result, nil
}

func (s *catalogService) recordAudit(ctx context.Context, action, targetRef string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditLogRecord{
		Actor:     "system",
		Action:    action,
		TargetRef: targetRef,
		Detail:    detail,
	})
}

func (s *catalogService) translateCatalogError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		}
	}
	return err
}

func normalizeFilterPointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeRefs(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(refs))
	result := make([]string, 0, len(refs))
	for _, ref := range refs {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func normalizeAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	normalized := Address{
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		Region:     strings.TrimSpace(addr.Region),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
	}
	if normalized == (Address{}) {
		return nil
	}
	return &normalized
}

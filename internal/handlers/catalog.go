package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/services"
)

const (
	defaultCatalogPageSize = 20
	maxCatalogPageSize     = 100
	maxCatalogBodySize     = 256 * 1024
)

// CatalogHandlers exposes CRUD endpoints for parts, suppliers, and vehicle
// models. Mutations require the admin role; reads need any operator.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{authn: authn, catalog: catalog}
}

// Routes registers the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(rt chi.Router) {
		if h.authn != nil {
			rt.Use(h.authn.RequireFirebaseAuth())
		}
		rt.Get("/parts", h.listParts)
		rt.Get("/parts/{partID}", h.getPart)
		rt.Get("/suppliers", h.listSuppliers)
		rt.Get("/suppliers/{supplierID}", h.getSupplier)
		rt.Get("/vehicle-models", h.listVehicleModels)
	})
	r.Group(func(rt chi.Router) {
		if h.authn != nil {
			rt.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
		}
		rt.Post("/parts", h.createPart)
		rt.Patch("/parts/{partID}", h.updatePart)
		rt.Delete("/parts/{partID}", h.deletePart)
		rt.Post("/suppliers", h.createSupplier)
		rt.Patch("/suppliers/{supplierID}", h.updateSupplier)
		rt.Delete("/suppliers/{supplierID}", h.deleteSupplier)
		rt.Post("/vehicle-models", h.createVehicleModel)
		rt.Patch("/vehicle-models/{modelID}", h.updateVehicleModel)
		rt.Delete("/vehicle-models/{modelID}", h.deleteVehicleModel)
	})
}

type upsertPartRequest struct {
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Descriptions map[string]string `json:"descriptions"`
	FitmentHTML  string            `json:"fitment_html"`
	UnitPrice    int64             `json:"unit_price"`
	Currency     string            `json:"currency"`
	SupplierRefs []string          `json:"supplier_refs"`
	VehicleRefs  []string          `json:"vehicle_refs"`
	Active       *bool             `json:"active"`
	Metadata     map[string]any    `json:"metadata"`
}

type upsertSupplierRequest struct {
	Name         string          `json:"name"`
	ContactName  string          `json:"contact_name"`
	ContactEmail string          `json:"contact_email"`
	ContactPhone string          `json:"contact_phone"`
	Address      *addressRequest `json:"address"`
	LeadTimeDays int             `json:"lead_time_days"`
	NotesHTML    string          `json:"notes_html"`
	Active       *bool           `json:"active"`
}

type addressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type upsertVehicleModelRequest struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	YearFrom int    `json:"year_from"`
	YearTo   int    `json:"year_to"`
}

func (h *CatalogHandlers) listParts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultCatalogPageSize, maxCatalogPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.PartFilter{
		ActiveOnly: parseBoolParam(query.Get("active_only")),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}
	if sku := strings.TrimSpace(query.Get("sku")); sku != "" {
		filter.SKU = &sku
	}
	if supplier := strings.TrimSpace(query.Get("supplier_ref")); supplier != "" {
		filter.SupplierRef = &supplier
	}
	if vehicle := strings.TrimSpace(query.Get("vehicle_ref")); vehicle != "" {
		filter.VehicleRef = &vehicle
	}

	page, err := h.catalog.ListParts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err, "part")
		return
	}

	items := make([]partPayload, 0, len(page.Items))
	for _, part := range page.Items {
		items = append(items, buildPartPayload(part))
	}
	writeJSONResponse(w, http.StatusOK, partListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) getPart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	partID, ok := requirePartID(ctx, w, r)
	if !ok {
		return
	}

	part, err := h.catalog.GetPart(ctx, partID)
	if err != nil {
		writeCatalogError(ctx, w, err, "part")
		return
	}
	writeJSONResponse(w, http.StatusOK, partResponse{Part: buildPartPayload(part)})
}

func (h *CatalogHandlers) createPart(w http.ResponseWriter, r *http.Request) {
	h.savePart(w, r, "")
}

func (h *CatalogHandlers) updatePart(w http.ResponseWriter, r *http.Request) {
	h.savePart(w, r, chi.URLParam(r, "partID"))
}

func (h *CatalogHandlers) savePart(w http.ResponseWriter, r *http.Request, partID string) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	var req upsertPartRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	part, err := h.catalog.UpsertPart(ctx, services.UpsertPartCommand{
		PartID:       strings.TrimSpace(partID),
		SKU:          strings.TrimSpace(req.SKU),
		Name:         strings.TrimSpace(req.Name),
		Descriptions: req.Descriptions,
		FitmentHTML:  req.FitmentHTML,
		UnitPrice:    req.UnitPrice,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		SupplierRefs: req.SupplierRefs,
		VehicleRefs:  req.VehicleRefs,
		Active:       req.Active,
		Metadata:     cloneMap(req.Metadata),
	})
	if err != nil {
		writeCatalogError(ctx, w, err, "part")
		return
	}

	writeJSONResponse(w, upsertStatus(r), partResponse{Part: buildPartPayload(part)})
}

func (h *CatalogHandlers) deletePart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	partID, ok := requirePartID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeletePart(ctx, partID); err != nil {
		writeCatalogError(ctx, w, err, "part")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) listSuppliers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultCatalogPageSize, maxCatalogPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListSuppliers(ctx, services.SupplierFilter{
		ActiveOnly: parseBoolParam(query.Get("active_only")),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeCatalogError(ctx, w, err, "supplier")
		return
	}

	items := make([]supplierPayload, 0, len(page.Items))
	for _, supplier := range page.Items {
		items = append(items, buildSupplierPayload(supplier))
	}
	writeJSONResponse(w, http.StatusOK, supplierListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) getSupplier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	supplierID := strings.TrimSpace(chi.URLParam(r, "supplierID"))
	if supplierID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "supplier id is required", http.StatusBadRequest))
		return
	}

	supplier, err := h.catalog.GetSupplier(ctx, supplierID)
	if err != nil {
		writeCatalogError(ctx, w, err, "supplier")
		return
	}
	writeJSONResponse(w, http.StatusOK, supplierResponse{Supplier: buildSupplierPayload(supplier)})
}

func (h *CatalogHandlers) createSupplier(w http.ResponseWriter, r *http.Request) {
	h.saveSupplier(w, r, "")
}

func (h *CatalogHandlers) updateSupplier(w http.ResponseWriter, r *http.Request) {
	h.saveSupplier(w, r, chi.URLParam(r, "supplierID"))
}

func (h *CatalogHandlers) saveSupplier(w http.ResponseWriter, r *http.Request, supplierID string) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	var req upsertSupplierRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.UpsertSupplierCommand{
		SupplierID:   strings.TrimSpace(supplierID),
		Name:         strings.TrimSpace(req.Name),
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		LeadTimeDays: req.LeadTimeDays,
		NotesHTML:    req.NotesHTML,
		Active:       req.Active,
	}
	if req.Address != nil {
		cmd.Address = &services.Address{
			Line1:      strings.TrimSpace(req.Address.Line1),
			Line2:      strings.TrimSpace(req.Address.Line2),
			City:       strings.TrimSpace(req.Address.City),
			Region:     strings.TrimSpace(req.Address.Region),
			PostalCode: strings.TrimSpace(req.Address.PostalCode),
			Country:    strings.ToUpper(strings.TrimSpace(req.Address.Country)),
		}
	}

	supplier, err := h.catalog.UpsertSupplier(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err, "supplier")
		return
	}

	writeJSONResponse(w, upsertStatus(r), supplierResponse{Supplier: buildSupplierPayload(supplier)})
}

func (h *CatalogHandlers) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	supplierID := strings.TrimSpace(chi.URLParam(r, "supplierID"))
	if supplierID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "supplier id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeleteSupplier(ctx, supplierID); err != nil {
		writeCatalogError(ctx, w, err, "supplier")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) listVehicleModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultCatalogPageSize, maxCatalogPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.VehicleModelFilter{
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}
	if maker := strings.TrimSpace(query.Get("make")); maker != "" {
		filter.Make = &maker
	}

	page, err := h.catalog.ListVehicleModels(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err, "vehicle model")
		return
	}

	items := make([]vehicleModelPayload, 0, len(page.Items))
	for _, model := range page.Items {
		items = append(items, buildVehicleModelPayload(model))
	}
	writeJSONResponse(w, http.StatusOK, vehicleModelListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) createVehicleModel(w http.ResponseWriter, r *http.Request) {
	h.saveVehicleModel(w, r, "")
}

func (h *CatalogHandlers) updateVehicleModel(w http.ResponseWriter, r *http.Request) {
	h.saveVehicleModel(w, r, chi.URLParam(r, "modelID"))
}

func (h *CatalogHandlers) saveVehicleModel(w http.ResponseWriter, r *http.Request, modelID string) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	var req upsertVehicleModelRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	model, err := h.catalog.UpsertVehicleModel(ctx, services.UpsertVehicleModelCommand{
		ModelID:  strings.TrimSpace(modelID),
		Make:     strings.TrimSpace(req.Make),
		Model:    strings.TrimSpace(req.Model),
		YearFrom: req.YearFrom,
		YearTo:   req.YearTo,
	})
	if err != nil {
		writeCatalogError(ctx, w, err, "vehicle model")
		return
	}

	writeJSONResponse(w, upsertStatus(r), vehicleModelResponse{VehicleModel: buildVehicleModelPayload(model)})
}

func (h *CatalogHandlers) deleteVehicleModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	modelID := strings.TrimSpace(chi.URLParam(r, "modelID"))
	if modelID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "vehicle model id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeleteVehicleModel(ctx, modelID); err != nil {
		writeCatalogError(ctx, w, err, "vehicle model")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

type partListResponse struct {
	Items         []partPayload `json:"items"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type partResponse struct {
	Part partPayload `json:"part"`
}

type partPayload struct {
	ID           string            `json:"id"`
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	FitmentHTML  string            `json:"fitment_html,omitempty"`
	UnitPrice    int64             `json:"unit_price"`
	Currency     string            `json:"currency"`
	SupplierRefs []string          `json:"supplier_refs,omitempty"`
	VehicleRefs  []string          `json:"vehicle_refs,omitempty"`
	Active       bool              `json:"active"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
}

type supplierListResponse struct {
	Items         []supplierPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type supplierResponse struct {
	Supplier supplierPayload `json:"supplier"`
}

type supplierPayload struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ContactName  string          `json:"contact_name,omitempty"`
	ContactEmail string          `json:"contact_email,omitempty"`
	ContactPhone string          `json:"contact_phone,omitempty"`
	Address      *addressPayload `json:"address,omitempty"`
	LeadTimeDays int             `json:"lead_time_days"`
	NotesHTML    string          `json:"notes_html,omitempty"`
	Active       bool            `json:"active"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
}

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type vehicleModelListResponse struct {
	Items         []vehicleModelPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type vehicleModelResponse struct {
	VehicleModel vehicleModelPayload `json:"vehicle_model"`
}

type vehicleModelPayload struct {
	ID        string `json:"id"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	YearFrom  int    `json:"year_from,omitempty"`
	YearTo    int    `json:"year_to,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildPartPayload(part services.Part) partPayload {
	return partPayload{
		ID:           strings.TrimSpace(part.ID),
		SKU:          strings.TrimSpace(part.SKU),
		Name:         strings.TrimSpace(part.Name),
		Descriptions: part.Descriptions,
		FitmentHTML:  part.FitmentHTML,
		UnitPrice:    part.UnitPrice,
		Currency:     strings.ToUpper(strings.TrimSpace(part.Currency)),
		SupplierRefs: part.SupplierRefs,
		VehicleRefs:  part.VehicleRefs,
		Active:       part.Active,
		Metadata:     cloneMap(part.Metadata),
		CreatedAt:    formatTime(part.CreatedAt),
		UpdatedAt:    formatTime(part.UpdatedAt),
	}
}

func buildSupplierPayload(supplier services.Supplier) supplierPayload {
	payload := supplierPayload{
		ID:           strings.TrimSpace(supplier.ID),
		Name:         strings.TrimSpace(supplier.Name),
		ContactName:  strings.TrimSpace(supplier.ContactName),
		ContactEmail: strings.TrimSpace(supplier.ContactEmail),
		ContactPhone: strings.TrimSpace(supplier.ContactPhone),
		LeadTimeDays: supplier.LeadTimeDays,
		NotesHTML:    supplier.NotesHTML,
		Active:       supplier.Active,
		CreatedAt:    formatTime(supplier.CreatedAt),
		UpdatedAt:    formatTime(supplier.UpdatedAt),
	}
	if supplier.Address != nil {
		payload.Address = &addressPayload{
			Line1:      supplier.Address.Line1,
			Line2:      supplier.Address.Line2,
			City:       supplier.Address.City,
			Region:     supplier.Address.Region,
			PostalCode: supplier.Address.PostalCode,
			Country:    supplier.Address.Country,
		}
	}
	return payload
}

func buildVehicleModelPayload(model services.VehicleModel) vehicleModelPayload {
	return vehicleModelPayload{
		ID:        strings.TrimSpace(model.ID),
		Make:      strings.TrimSpace(model.Make),
		Model:     strings.TrimSpace(model.Model),
		YearFrom:  model.YearFrom,
		YearTo:    model.YearTo,
		CreatedAt: formatTime(model.CreatedAt),
		UpdatedAt: formatTime(model.UpdatedAt),
	}
}

func upsertStatus(r *http.Request) int {
	if r.Method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}

func parseBoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error, entity string) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_not_found", entity+" not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process "+entity+" request", http.StatusInternalServerError))
	}
}

package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/partsdesk/api/internal/lifecycle"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/config"
	pstorage "github.com/partsdesk/api/internal/platform/storage"
	"github.com/partsdesk/api/internal/repositories"
	"github.com/partsdesk/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Receipts    services.ReceiptService
	Attachments services.AttachmentService
	Carts       services.CartService
	Sales       services.SaleService
	Inventory   services.InventoryService
	Catalog     services.CatalogService
	Counters    services.CounterService
	System      services.SystemService
	Audit       services.AuditLogService
}

// Container wires repositories, services, and the transition desk registry for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Transitions  *lifecycle.Registry
}

// ContainerOption customises optional collaborators before services are built.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	storage         *pstorage.Client
	receiptEvents   services.ReceiptEventPublisher
	stockEvents     services.StockEventPublisher
	build           services.BuildInfo
	logger          func(ctx context.Context, event string, fields map[string]any)
	defaultCurrency string
	clock           func() time.Time
}

// WithStorageClient supplies the signed URL client backing attachment uploads.
// Without it the attachment service is left unset and attachment endpoints
// report unavailable.
func WithStorageClient(client *pstorage.Client) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.storage = client
	}
}

// WithReceiptEventPublisher wires the publisher notified on receipt transitions.
func WithReceiptEventPublisher(pub services.ReceiptEventPublisher) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.receiptEvents = pub
	}
}

// WithStockEventPublisher wires the publisher notified on stock movements.
func WithStockEventPublisher(pub services.StockEventPublisher) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.stockEvents = pub
	}
}

// WithBuildInfo records build metadata surfaced by the system service.
func WithBuildInfo(build services.BuildInfo) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.build = build
	}
}

// WithServiceLogger installs the structured logging sink passed to services.
func WithServiceLogger(logger func(ctx context.Context, event string, fields map[string]any)) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.logger = logger
	}
}

// WithDefaultCurrency overrides the currency assumed for carts created without one.
func WithDefaultCurrency(currency string) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.defaultCurrency = currency
	}
}

// WithClock overrides the time source used by every service, mainly for tests.
func WithClock(clock func() time.Time) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.clock = clock
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides Firestore-backed
// repositories, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...ContainerOption) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	cc := containerConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cc)
		}
	}
	if cc.clock == nil {
		cc.clock = time.Now
	}

	svc, err := buildServices(reg, cfg, cc)
	if err != nil {
		return nil, err
	}

	transitions, err := buildTransitionRegistry(svc.Receipts)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		Transitions:  transitions,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, cc containerConfig) (Services, error) {
	var svc Services

	auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository: reg.AuditLogs(),
		Clock:      cc.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build audit log service: %w", err)
	}
	svc.Audit = auditSvc

	counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: reg.Counters(),
		Clock:      cc.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build counter service: %w", err)
	}
	svc.Counters = counterSvc

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: reg.Inventory(),
		Events:    cc.stockEvents,
		Clock:     cc.clock,
		Logger:    cc.logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	receiptSvc, err := services.NewReceiptService(services.ReceiptServiceDeps{
		Receipts:   reg.Receipts(),
		Counters:   reg.Counters(),
		Inventory:  inventorySvc,
		UnitOfWork: reg,
		Clock:      cc.clock,
		Events:     cc.receiptEvents,
		Logger:     cc.logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build receipt service: %w", err)
	}
	svc.Receipts = receiptSvc

	if cc.storage != nil {
		bucket := strings.TrimSpace(cfg.Storage.DocumentsBucket)
		attachmentSvc, err := services.NewAttachmentService(services.AttachmentServiceDeps{
			Receipts: receiptSvc,
			Storage:  cc.storage,
			Bucket:   bucket,
			Clock:    cc.clock,
			Logger:   cc.logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build attachment service: %w", err)
		}
		svc.Attachments = attachmentSvc
	}

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository:      reg.Carts(),
		Inventory:       inventorySvc,
		Sales:           reg.Sales(),
		Counters:        counterSvc,
		UnitOfWork:      reg,
		Clock:           cc.clock,
		DefaultCurrency: cc.defaultCurrency,
		Logger:          cc.logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Carts = cartSvc

	saleSvc, err := services.NewSaleService(services.SaleServiceDeps{
		Sales: reg.Sales(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build sale service: %w", err)
	}
	svc.Sales = saleSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Parts:         reg.Parts(),
		Suppliers:     reg.Suppliers(),
		VehicleModels: reg.VehicleModels(),
		Audit:         auditSvc,
		Clock:         cc.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	build := cc.build
	if build.Environment == "" {
		build.Environment = cfg.Security.Environment
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            cc.clock,
		Build:            build,
		Audit:            auditSvc,
		Counters:         counterSvc,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

func buildTransitionRegistry(receipts services.ReceiptService) (*lifecycle.Registry, error) {
	client, err := services.NewReceiptTransitionClient(receipts,
		services.WithTransitionActorResolver(func(ctx context.Context) string {
			if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
				return identity.UID
			}
			return ""
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("build transition client: %w", err)
	}

	registry, err := lifecycle.NewRegistry(client)
	if err != nil {
		return nil, fmt.Errorf("build transition registry: %w", err)
	}
	return registry, nil
}

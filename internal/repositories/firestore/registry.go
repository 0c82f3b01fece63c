package firestore

import (
	"context"
	"errors"
	"fmt"

	firestorev1 "cloud.google.com/go/firestore"

	pfirestore "github.com/partsdesk/api/internal/platform/firestore"
	"github.com/partsdesk/api/internal/repositories"
)

// RegistryOption customises the Firestore-backed repository registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	health repositories.HealthRepository
}

// WithHealthRepository overrides the default Firestore ping health repository.
func WithHealthRepository(health repositories.HealthRepository) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.health = health
	}
}

// Registry wires every Firestore repository behind the repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	receipts      *ReceiptRepository
	carts         *CartRepository
	inventory     *InventoryRepository
	sales         *SaleRepository
	parts         *PartRepository
	suppliers     *SupplierRepository
	vehicleModels *VehicleModelRepository
	auditLogs     *AuditLogRepository
	counters      *CounterRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the full repository set from a shared Firestore provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry: firestore provider is required")
	}

	cfg := registryConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	reg := &Registry{provider: provider}

	var err error
	if reg.receipts, err = NewReceiptRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.inventory, err = NewInventoryRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.sales, err = NewSaleRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.parts, err = NewPartRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.suppliers, err = NewSupplierRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.vehicleModels, err = NewVehicleModelRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.auditLogs, err = NewAuditLogRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, fmt.Errorf("repository registry: %w", err)
	}

	if cfg.health != nil {
		reg.health = cfg.health
	} else {
		health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
			{
				Name: "firestore",
				Check: func(ctx context.Context) error {
					_, err := provider.Client(ctx)
					return err
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("repository registry: %w", err)
		}
		reg.health = health
	}

	return reg, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Receipts() repositories.ReceiptRepository         { return r.receipts }
func (r *Registry) Carts() repositories.CartRepository               { return r.carts }
func (r *Registry) Inventory() repositories.InventoryRepository      { return r.inventory }
func (r *Registry) Sales() repositories.SaleRepository               { return r.sales }
func (r *Registry) Parts() repositories.PartRepository               { return r.parts }
func (r *Registry) Suppliers() repositories.SupplierRepository       { return r.suppliers }
func (r *Registry) VehicleModels() repositories.VehicleModelRepository {
	return r.vehicleModels
}
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }
func (r *Registry) Counters() repositories.CounterRepository   { return r.counters }
func (r *Registry) Health() repositories.HealthRepository      { return r.health }

// RunInTx executes fn inside a single Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("repository registry not initialised")
	}
	if fn == nil {
		return errors.New("repository registry: transaction body is required")
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestorev1.Transaction) error {
		return fn(txCtx)
	})
}

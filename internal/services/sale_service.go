package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

var (
	// ErrSaleInvalidInput signals the caller provided invalid arguments.
	ErrSaleInvalidInput = errors.New("sale: invalid input")
	// ErrSaleNotFound indicates the sale record could not be located.
	ErrSaleNotFound = errors.New("sale: not found")
)

// SaleServiceDeps bundles the collaborators required to construct a sale service.
type SaleServiceDeps struct {
	Sales repositories.SaleRepository
}

type saleService struct {
	repo repositories.SaleRepository
}

// NewSaleService wires dependencies into a concrete SaleService implementation.
func NewSaleService(deps SaleServiceDeps) (SaleService, error) {
	if deps.Sales == nil {
		return nil, errors.New("sale service: sale repository is required")
	}
	return &saleService{repo: deps.Sales}, nil
}

func (s *saleService) GetSale(ctx context.Context, saleID string) (Sale, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return Sale{}, fmt.Errorf("%w: sale id is required", ErrSaleInvalidInput)
	}

	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		if isRepoNotFound(err) {
			return Sale{}, fmt.Errorf("%w: %s", ErrSaleNotFound, saleID)
		}
		return Sale{}, err
	}
	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context, filter SaleFilter) (domain.CursorPage[Sale], error) {
	filter.RegisterID = strings.TrimSpace(filter.RegisterID)
	return s.repo.List(ctx, filter)
}

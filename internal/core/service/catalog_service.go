package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/port"
)

// CatalogService manages the shared product catalog. Products are never
// deleted, only deactivated, so inventory rows created from them stay valid.
type CatalogService struct {
	catalog port.CatalogRepository
}

func NewCatalogService(catalog port.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) Create(ctx context.Context, code, name string, defaultPrice decimal.Decimal) (*domain.CatalogProduct, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: product_code and name are required", domain.ErrInvalidInput)
	}
	if defaultPrice.IsNegative() {
		return nil, fmt.Errorf("%w: default_price must not be negative", domain.ErrInvalidInput)
	}

	product := domain.CatalogProduct{
		Code:         code,
		Name:         name,
		DefaultPrice: defaultPrice.Round(2),
		Active:       true,
	}
	id, err := s.catalog.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	product.ID = id
	return &product, nil
}

func (s *CatalogService) SetActive(ctx context.Context, id int64, active bool) (*domain.CatalogProduct, error) {
	if err := s.catalog.SetProductActive(ctx, id, active); err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *CatalogService) List(ctx context.Context, includeInactive bool) ([]domain.CatalogProduct, error) {
	return s.catalog.ListProducts(ctx, includeInactive)
}

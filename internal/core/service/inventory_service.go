package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/port"
)

// InventoryService manages per-event listings of catalog products. Product
// activity is checked here, at listing time, not again at order time.
type InventoryService struct {
	catalog port.CatalogRepository
	events  port.EventRepository
	items   port.InventoryRepository
}

func NewInventoryService(catalog port.CatalogRepository, events port.EventRepository, items port.InventoryRepository) *InventoryService {
	return &InventoryService{catalog: catalog, events: events, items: items}
}

// AddToEvent lists a catalog product, resolved by code, for an event. The
// price defaults to the catalog default when not given.
func (s *InventoryService) AddToEvent(ctx context.Context, eventID int64, productCode string, initialStock int, price *decimal.Decimal) (*domain.InventoryItem, error) {
	if initialStock < 0 {
		return nil, fmt.Errorf("%w: initial_stock must not be negative", domain.ErrInvalidInput)
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}

	product, err := s.catalog.GetProductByCode(ctx, productCode)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: code %q", domain.ErrProductNotFound, productCode)
	}
	if !product.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductInactive, product.Name)
	}

	item := domain.InventoryItem{
		EventID:          eventID,
		CatalogProductID: product.ID,
		Price:            product.DefaultPrice,
		InitialStock:     initialStock,
	}
	if price != nil {
		if price.IsNegative() {
			return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
		}
		item.Price = price.Round(2)
	}

	id, err := s.items.AddItem(ctx, item)
	if err != nil {
		return nil, err
	}
	item.ID = id
	return &item, nil
}

// Update patches price and/or initial stock in place. Existing committed
// orders are not re-validated against a lowered stock: available stock may go
// negative and listings will show it that way.
func (s *InventoryService) Update(ctx context.Context, itemID int64, price *decimal.Decimal, stock *int) (*domain.InventoryItem, error) {
	if price == nil && stock == nil {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if price != nil && price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if stock != nil && *stock < 0 {
		return nil, fmt.Errorf("%w: initial_stock must not be negative", domain.ErrInvalidInput)
	}

	if err := s.items.UpdateItem(ctx, itemID, price, stock); err != nil {
		return nil, err
	}
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

// Remove deletes a listing. Listings referenced by any order line are kept;
// only event deletion cascades through orders.
func (s *InventoryService) Remove(ctx context.Context, itemID int64) error {
	return s.items.RemoveItem(ctx, itemID)
}

func (s *InventoryService) ListForEvent(ctx context.Context, eventID int64) ([]domain.InventoryListing, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return s.items.ListForEvent(ctx, eventID)
}

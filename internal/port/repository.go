package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/core/domain"
)

type CatalogRepository interface {
	// CreateProduct inserts a catalog product, failing with
	// domain.ErrDuplicateCode when the code is taken.
	CreateProduct(ctx context.Context, p domain.CatalogProduct) (int64, error)

	// GetProduct returns nil without error when the id is unknown.
	GetProduct(ctx context.Context, id int64) (*domain.CatalogProduct, error)

	// GetProductByCode returns nil without error when the code is unknown.
	GetProductByCode(ctx context.Context, code string) (*domain.CatalogProduct, error)

	SetProductActive(ctx context.Context, id int64, active bool) error

	// ListProducts returns products ordered by code, skipping inactive ones
	// unless includeInactive is set.
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.CatalogProduct, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, e domain.Event) (int64, error)

	// GetEvent returns nil without error when the id is unknown.
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)

	// ListEvents filters by status when status is non-empty, ordered by date
	// descending.
	ListEvents(ctx context.Context, status domain.EventStatus) ([]domain.Event, error)

	UpdateEvent(ctx context.Context, e domain.Event) error

	UpdateEventStatus(ctx context.Context, id int64, status domain.EventStatus) error

	// DeleteEvent removes the event and cascades its inventory items, orders
	// and order lines. Nothing else in the system cascades.
	DeleteEvent(ctx context.Context, id int64) error
}

type InventoryRepository interface {
	// AddItem inserts a listing, failing with domain.ErrDuplicateListing when
	// the (event, catalog product) pair already exists.
	AddItem(ctx context.Context, item domain.InventoryItem) (int64, error)

	// GetItem returns nil without error when the id is unknown.
	GetItem(ctx context.Context, id int64) (*domain.InventoryItem, error)

	// UpdateItem patches price and/or initial stock in place. A lowered stock
	// may drive available stock negative; that is surfaced, not prevented.
	UpdateItem(ctx context.Context, id int64, price *decimal.Decimal, stock *int) error

	// RemoveItem fails with domain.ErrHasOrders while any order line
	// references the item.
	RemoveItem(ctx context.Context, id int64) error

	// ListForEvent joins items with catalog fields and derived available
	// stock (initial stock minus pending+completed commitments).
	ListForEvent(ctx context.Context, eventID int64) ([]domain.InventoryListing, error)
}

type OrderRepository interface {
	// PlaceOrder runs the serializable check-then-commit: it resolves and
	// locks every line's inventory item, verifies the item belongs to
	// order.EventID, compares requested quantity against available stock over
	// pending+completed orders, and only then persists the order with all its
	// lines. Admission is all-or-nothing; on any rejection nothing is
	// written. Returns the stored order with lines and computed total.
	PlaceOrder(ctx context.Context, order domain.Order, lines []domain.LineInput) (*domain.Order, error)

	// GetOrder matches both order id and event id; nil without error when no
	// such pair exists.
	GetOrder(ctx context.Context, eventID int64, orderID string) (*domain.Order, error)

	// ListOrders filters by status when non-empty, newest first.
	ListOrders(ctx context.Context, eventID int64, status domain.OrderStatus) ([]domain.Order, error)

	UpdateOrderStatus(ctx context.Context, eventID int64, orderID string, status domain.OrderStatus) error

	// SumQuantitiesByItem aggregates order line quantities per inventory item
	// for the event, restricted to the given statuses.
	SumQuantitiesByItem(ctx context.Context, eventID int64, statuses []domain.OrderStatus) (map[int64]int, error)

	// CompletedOrderTotals returns the completed order count and the sum of
	// their total amounts for the event.
	CompletedOrderTotals(ctx context.Context, eventID int64) (int, decimal.Decimal, error)
}

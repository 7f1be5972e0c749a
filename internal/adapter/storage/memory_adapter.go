package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/core/domain"
)

// MemoryStore is an in-memory implementation of every repository port. A
// single mutex covers all state, which trivially serializes the
// check-then-commit of PlaceOrder. Used by unit tests and the stress command;
// production runs on the MySQL adapter.
type MemoryStore struct {
	mu sync.Mutex

	products map[int64]domain.CatalogProduct
	events   map[int64]domain.Event
	items    map[int64]domain.InventoryItem
	orders   map[string]domain.Order
	orderSeq map[string]int64 // insertion order, ties listing sort

	nextProductID int64
	nextEventID   int64
	nextItemID    int64
	nextLineID    int64
	nextSeq       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]domain.CatalogProduct),
		events:   make(map[int64]domain.Event),
		items:    make(map[int64]domain.InventoryItem),
		orders:   make(map[string]domain.Order),
		orderSeq: make(map[string]int64),
	}
}

// --- CatalogRepository ---

func (s *MemoryStore) CreateProduct(_ context.Context, p domain.CatalogProduct) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.Code == p.Code {
			return 0, fmt.Errorf("%w: %q", domain.ErrDuplicateCode, p.Code)
		}
	}
	s.nextProductID++
	p.ID = s.nextProductID
	s.products[p.ID] = p
	return p.ID, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*domain.CatalogProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) GetProductByCode(_ context.Context, code string) (*domain.CatalogProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) SetProductActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Active = active
	s.products[id] = p
	return nil
}

func (s *MemoryStore) ListProducts(_ context.Context, includeInactive bool) ([]domain.CatalogProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CatalogProduct, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active && !includeInactive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// --- EventRepository ---

func (s *MemoryStore) CreateEvent(_ context.Context, e domain.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	e.ID = s.nextEventID
	s.events[e.ID] = e
	return e.ID, nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, status domain.EventStatus) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateEvent(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; !ok {
		return domain.ErrEventNotFound
	}
	s.events[e.ID] = e
	return nil
}

func (s *MemoryStore) UpdateEventStatus(_ context.Context, id int64, status domain.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	e.Status = status
	s.events[id] = e
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return domain.ErrEventNotFound
	}
	delete(s.events, id)
	for itemID, item := range s.items {
		if item.EventID == id {
			delete(s.items, itemID)
		}
	}
	for orderID, order := range s.orders {
		if order.EventID == id {
			delete(s.orders, orderID)
			delete(s.orderSeq, orderID)
		}
	}
	return nil
}

// --- InventoryRepository ---

func (s *MemoryStore) AddItem(_ context.Context, item domain.InventoryItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.EventID == item.EventID && existing.CatalogProductID == item.CatalogProductID {
			return 0, domain.ErrDuplicateListing
		}
	}
	s.nextItemID++
	item.ID = s.nextItemID
	s.items[item.ID] = item
	return item.ID, nil
}

func (s *MemoryStore) GetItem(_ context.Context, id int64) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *MemoryStore) UpdateItem(_ context.Context, id int64, price *decimal.Decimal, stock *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	if price != nil {
		item.Price = price.Round(2)
	}
	if stock != nil {
		item.InitialStock = *stock
	}
	s.items[id] = item
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	for _, order := range s.orders {
		for _, line := range order.Lines {
			if line.InventoryItemID == id {
				return domain.ErrHasOrders
			}
		}
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ListForEvent(_ context.Context, eventID int64) ([]domain.InventoryListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	committed := s.sumByItemLocked(eventID, func(st domain.OrderStatus) bool { return st.CountsAgainstStock() })

	out := make([]domain.InventoryListing, 0)
	for _, item := range s.items {
		if item.EventID != eventID {
			continue
		}
		product := s.products[item.CatalogProductID]
		out = append(out, domain.InventoryListing{
			InventoryItem:  item,
			Code:           product.Code,
			Name:           product.Name,
			AvailableStock: item.AvailableStock(committed[item.ID]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- OrderRepository ---

func (s *MemoryStore) PlaceOrder(_ context.Context, order domain.Order, lines []domain.LineInput) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Resolve every line before touching anything; admission is
	// all-or-nothing.
	resolved := make(map[int64]domain.InventoryItem, len(lines))
	for _, l := range lines {
		item, ok := s.items[l.InventoryItemID]
		if !ok || item.EventID != order.EventID {
			return nil, fmt.Errorf("%w: item %d", domain.ErrItemNotFound, l.InventoryItemID)
		}
		resolved[item.ID] = item
	}

	committed := s.sumByItemLocked(order.EventID, func(st domain.OrderStatus) bool { return st.CountsAgainstStock() })
	available := make(map[int64]int, len(resolved))
	for id, item := range resolved {
		available[id] = item.AvailableStock(committed[id])
	}
	for _, l := range lines {
		if l.Quantity > available[l.InventoryItemID] {
			return nil, &domain.InsufficientStockError{
				ItemID:    l.InventoryItemID,
				Requested: l.Quantity,
				Available: available[l.InventoryItemID],
			}
		}
		available[l.InventoryItemID] -= l.Quantity
	}

	order.TotalAmount = domain.OrderTotal(resolved, lines)
	order.Lines = make([]domain.OrderLine, 0, len(lines))
	for _, l := range lines {
		s.nextLineID++
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:              s.nextLineID,
			OrderID:         order.ID,
			InventoryItemID: l.InventoryItemID,
			Quantity:        l.Quantity,
		})
	}

	s.nextSeq++
	s.orders[order.ID] = order
	s.orderSeq[order.ID] = s.nextSeq

	stored := order
	return &stored, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, eventID int64, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.EventID != eventID {
		return nil, nil
	}
	return &order, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, eventID int64, status domain.OrderStatus) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0)
	for _, order := range s.orders {
		if order.EventID != eventID {
			continue
		}
		if status != "" && order.Status != status {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.orderSeq[out[i].ID] > s.orderSeq[out[j].ID]
	})
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, eventID int64, orderID string, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.EventID != eventID {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	s.orders[orderID] = order
	return nil
}

func (s *MemoryStore) SumQuantitiesByItem(_ context.Context, eventID int64, statuses []domain.OrderStatus) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := make(map[domain.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		allowed[st] = true
	}
	return s.sumByItemLocked(eventID, func(st domain.OrderStatus) bool { return allowed[st] }), nil
}

func (s *MemoryStore) CompletedOrderTotals(_ context.Context, eventID int64) (int, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	total := decimal.Zero
	for _, order := range s.orders {
		if order.EventID != eventID || order.Status != domain.OrderStatusCompleted {
			continue
		}
		count++
		total = total.Add(order.TotalAmount)
	}
	return count, total, nil
}

// sumByItemLocked aggregates line quantities per inventory item over the
// event's orders whose status passes the filter. Caller holds s.mu.
func (s *MemoryStore) sumByItemLocked(eventID int64, include func(domain.OrderStatus) bool) map[int64]int {
	sums := make(map[int64]int)
	for _, order := range s.orders {
		if order.EventID != eventID || !include(order.Status) {
			continue
		}
		for _, line := range order.Lines {
			sums[line.InventoryItemID] += line.Quantity
		}
	}
	return sums
}

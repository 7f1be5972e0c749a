package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/boothsale?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return db
}

// seedMySQLEvent creates a throwaway event with one listed product and
// registers cleanup. Event deletion cascades everything the test created.
func seedMySQLEvent(t *testing.T, db *sql.DB, adapter *MySQLAdapter, stock int) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	eventID, err := adapter.CreateEvent(ctx, domain.Event{
		Name:   "mysql-test-event",
		Date:   time.Now(),
		Status: domain.EventStatusActive,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	code := "MYSQL-T-" + time.Now().Format("20060102150405.000000")
	productID, err := adapter.CreateProduct(ctx, domain.CatalogProduct{
		Code:         code,
		Name:         "mysql test product",
		DefaultPrice: decimal.RequireFromString("5.00"),
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	itemID, err := adapter.AddItem(ctx, domain.InventoryItem{
		EventID:          eventID,
		CatalogProductID: productID,
		Price:            decimal.RequireFromString("5.00"),
		InitialStock:     stock,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
		db.ExecContext(ctx, `DELETE FROM catalog_products WHERE id = ?`, productID)
	})
	return eventID, itemID
}

func TestMySQLPlaceOrder_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, itemID := seedMySQLEvent(t, db, adapter, 10)

	placed, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
		[]domain.LineInput{{InventoryItemID: itemID, Quantity: 3}})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if placed.TotalAmount.String() != "15" {
		t.Errorf("expected total 15, got %s", placed.TotalAmount)
	}

	// Verify order and line rows exist
	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, placed.ID).Scan(&count)
	if count != 1 {
		t.Error("order not found in database")
	}
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_lines WHERE order_id = ?`, placed.ID).Scan(&count)
	if count != 1 {
		t.Error("order line not found in database")
	}
}

func TestMySQLPlaceOrder_InsufficientStock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, itemID := seedMySQLEvent(t, db, adapter, 2)

	_, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
		[]domain.LineInput{{InventoryItemID: itemID, Quantity: 3}})

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Available != 2 || stockErr.Requested != 3 {
		t.Errorf("unexpected detail: %+v", stockErr)
	}

	// All-or-nothing: no rows may exist
	var count int
	db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE event_id = ?`, eventID).Scan(&count)
	if count != 0 {
		t.Errorf("expected no persisted orders, got %d", count)
	}
}

func TestMySQLPlaceOrder_CrossEventLine(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	_, foreignItemID := seedMySQLEvent(t, db, adapter, 10)
	eventID, _ := seedMySQLEvent(t, db, adapter, 10)

	_, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
		[]domain.LineInput{{InventoryItemID: foreignItemID, Quantity: 1}})
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound for cross-event line, got: %v", err)
	}
}

func TestMySQLPlaceOrder_Concurrent(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	initialStock := 10
	totalRequests := 25
	eventID, itemID := seedMySQLEvent(t, db, adapter, initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
				[]domain.LineInput{{InventoryItemID: itemID, Quantity: 1}})
			if err == nil {
				successCount.Add(1)
			} else if !errors.Is(err, domain.ErrInsufficientStock) && !errors.Is(err, domain.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful orders, got %d", initialStock, successCount.Load())
	}

	var committed sql.NullInt64
	db.QueryRowContext(ctx, `
		SELECT SUM(ol.quantity) FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.status IN ('pending', 'completed') AND ol.inventory_item_id = ?`, itemID,
	).Scan(&committed)
	if committed.Int64 != int64(initialStock) {
		t.Errorf("expected committed quantity %d, got %d", initialStock, committed.Int64)
	}
}

func TestMySQLCreateProduct_DuplicateCode(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	code := "MYSQL-DUP-" + time.Now().Format("20060102150405.000000")
	id, err := adapter.CreateProduct(ctx, domain.CatalogProduct{
		Code: code, Name: "first", DefaultPrice: decimal.New(1, 0), Active: true,
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM catalog_products WHERE id = ?`, id)
	})

	_, err = adapter.CreateProduct(ctx, domain.CatalogProduct{
		Code: code, Name: "second", DefaultPrice: decimal.New(2, 0), Active: true,
	})
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Errorf("expected ErrDuplicateCode, got: %v", err)
	}
}

func TestMySQLAddItem_DuplicateListing(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, itemID := seedMySQLEvent(t, db, adapter, 10)

	item, err := adapter.GetItem(ctx, itemID)
	if err != nil || item == nil {
		t.Fatalf("get item: %v", err)
	}

	_, err = adapter.AddItem(ctx, domain.InventoryItem{
		EventID:          eventID,
		CatalogProductID: item.CatalogProductID,
		Price:            decimal.New(1, 0),
		InitialStock:     5,
	})
	if !errors.Is(err, domain.ErrDuplicateListing) {
		t.Errorf("expected ErrDuplicateListing, got: %v", err)
	}
}

func TestMySQLUpdateOrderStatus_WrongEvent(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, itemID := seedMySQLEvent(t, db, adapter, 10)
	otherEventID, _ := seedMySQLEvent(t, db, adapter, 10)

	placed, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
		[]domain.LineInput{{InventoryItemID: itemID, Quantity: 1}})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	err = adapter.UpdateOrderStatus(ctx, otherEventID, placed.ID, domain.OrderStatusCompleted)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestMySQLRemoveItem_HasOrders(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, itemID := seedMySQLEvent(t, db, adapter, 10)

	if _, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
		[]domain.LineInput{{InventoryItemID: itemID, Quantity: 1}}); err != nil {
		t.Fatalf("place order: %v", err)
	}

	err := adapter.RemoveItem(ctx, itemID)
	if !errors.Is(err, domain.ErrHasOrders) {
		t.Errorf("expected ErrHasOrders, got: %v", err)
	}
}

// Removal races admission for the same item. Whatever interleaving wins, a
// committed order must keep its lines: removal either precedes the order
// (which then fails ItemNotFound) or observes its lines and backs off with
// ErrHasOrders. It must never cascade a committed order's lines away.
func TestMySQLRemoveItem_ConcurrentWithOrders(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, itemID := seedMySQLEvent(t, db, adapter, 100)

	var wg sync.WaitGroup
	placers := 10
	removers := 5

	for i := 0; i < placers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
				[]domain.LineInput{{InventoryItemID: itemID, Quantity: 1}})
			if err != nil &&
				!errors.Is(err, domain.ErrItemNotFound) &&
				!errors.Is(err, domain.ErrConflict) {
				t.Errorf("unexpected place error: %v", err)
			}
		}()
	}
	for i := 0; i < removers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := adapter.RemoveItem(ctx, itemID)
			if err != nil &&
				!errors.Is(err, domain.ErrHasOrders) &&
				!errors.Is(err, domain.ErrItemNotFound) {
				t.Errorf("unexpected remove error: %v", err)
			}
		}()
	}

	wg.Wait()

	// No committed order may have lost its lines to a cascade.
	var orphaned int
	db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders o
		WHERE o.event_id = ?
		  AND NOT EXISTS (SELECT 1 FROM order_lines ol WHERE ol.order_id = o.id)`, eventID,
	).Scan(&orphaned)
	if orphaned != 0 {
		t.Errorf("found %d orders with cascaded-away lines", orphaned)
	}

	// If the item survived with orders, removal must still refuse.
	var orderCount int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE event_id = ?`, eventID).Scan(&orderCount)
	item, err := adapter.GetItem(ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item == nil && orderCount != 0 {
		t.Errorf("item removed despite %d committed orders", orderCount)
	}
}

func TestMySQLUpdateEvent(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, _ := seedMySQLEvent(t, db, adapter, 10)

	event, err := adapter.GetEvent(ctx, eventID)
	if err != nil || event == nil {
		t.Fatalf("get event: %v", err)
	}

	event.Name = "renamed event"
	event.Location = "hall B"
	if err := adapter.UpdateEvent(ctx, *event); err != nil {
		t.Fatalf("update event: %v", err)
	}
	updated, err := adapter.GetEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("reread event: %v", err)
	}
	if updated.Name != "renamed event" || updated.Location != "hall B" {
		t.Errorf("update not applied: %+v", updated)
	}

	// A write that changes nothing affects zero rows but is not a miss.
	if err := adapter.UpdateEvent(ctx, *updated); err != nil {
		t.Errorf("no-op update must succeed, got: %v", err)
	}

	missing := *updated
	missing.ID = 999999999
	if err := adapter.UpdateEvent(ctx, missing); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got: %v", err)
	}
}

func TestMySQLDeleteEvent_Cascades(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	eventID, itemID := seedMySQLEvent(t, db, adapter, 10)

	placed, err := adapter.PlaceOrder(ctx, pendingOrder(eventID),
		[]domain.LineInput{{InventoryItemID: itemID, Quantity: 1}})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if err := adapter.DeleteEvent(ctx, eventID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, placed.ID).Scan(&count)
	if count != 0 {
		t.Error("expected order cascaded with event")
	}
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_items WHERE id = ?`, itemID).Scan(&count)
	if count != 0 {
		t.Error("expected inventory item cascaded with event")
	}
}

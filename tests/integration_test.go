package tests

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
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/adapter/storage"
	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/boothsale?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb),
		db:    storage.NewMySQLAdapter(db),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

// seedEvent provisions an active event with one listed product through the
// storage adapter and tears everything down afterwards.
func seedEvent(t *testing.T, env *testEnv, stock int) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	eventID, err := env.db.CreateEvent(ctx, domain.Event{
		Name:   "integration-event",
		Date:   time.Now(),
		Status: domain.EventStatusActive,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	code := "INT-" + uuid.New().String()[:8]
	productID, err := env.db.CreateProduct(ctx, domain.CatalogProduct{
		Code:         code,
		Name:         "integration product",
		DefaultPrice: decimal.RequireFromString("7.50"),
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	itemID, err := env.db.AddItem(ctx, domain.InventoryItem{
		EventID:          eventID,
		CatalogProductID: productID,
		Price:            decimal.RequireFromString("7.50"),
		InitialStock:     stock,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	t.Cleanup(func() {
		env.mysql.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
		env.mysql.ExecContext(ctx, `DELETE FROM catalog_products WHERE id = ?`, productID)
		env.cache.InvalidateStats(ctx, eventID)
	})
	return eventID, itemID
}

func TestIntegration_FullOrderFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	initialStock := 10
	totalRequests := 30
	eventID, itemID := seedEvent(t, env, initialStock)

	svc := service.NewOrderService(env.db, env.cache, nil)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, service.PlaceOrderInput{
				EventID:   eventID,
				RequestID: uuid.New().String(),
				Lines:     []domain.LineInput{{InventoryItemID: itemID, Quantity: 1}},
			})
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

	// Verify the ledger admitted exactly the stock
	var committed sql.NullInt64
	env.mysql.QueryRowContext(ctx, `
		SELECT SUM(ol.quantity) FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.event_id = ? AND o.status IN ('pending', 'completed')`, eventID,
	).Scan(&committed)
	if committed.Int64 != int64(initialStock) {
		t.Errorf("expected committed quantity %d, got %d", initialStock, committed.Int64)
	}

	// One more attempt must be rejected with the sold-out detail
	_, err := svc.PlaceOrder(ctx, service.PlaceOrderInput{
		EventID: eventID,
		Lines:   []domain.LineInput{{InventoryItemID: itemID, Quantity: 1}},
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Available != 0 {
		t.Errorf("expected 0 available, got %d", stockErr.Available)
	}
}

func TestIntegration_IdempotencyPreventsDoubleOrder(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	eventID, itemID := seedEvent(t, env, 10)

	requestID := "same-request-id-" + uuid.New().String()
	env.redis.Del(ctx, "order-request:"+requestID)

	svc := service.NewOrderService(env.db, env.cache, nil)

	input := service.PlaceOrderInput{
		EventID:   eventID,
		RequestID: requestID,
		Lines:     []domain.LineInput{{InventoryItemID: itemID, Quantity: 1}},
	}

	if _, err := svc.PlaceOrder(ctx, input); err != nil {
		t.Fatalf("first order failed: %v", err)
	}

	_, err := svc.PlaceOrder(ctx, input)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	// Exactly one order may exist
	var count int
	env.mysql.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE event_id = ?`, eventID).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 order, got %d", count)
	}
}

func TestIntegration_StatsCacheInvalidatedByOrders(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	eventID, itemID := seedEvent(t, env, 10)

	orders := service.NewOrderService(env.db, env.cache, nil)
	reports := service.NewReportService(env.db, env.db, env.db, env.cache, nil)

	// Warm the cache with an empty snapshot
	before, err := reports.EventStats(ctx, eventID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if before.Summary.CompletedOrderCount != 0 {
		t.Fatalf("expected clean event, got %+v", before.Summary)
	}

	placed, err := orders.PlaceOrder(ctx, service.PlaceOrderInput{
		EventID: eventID,
		Lines:   []domain.LineInput{{InventoryItemID: itemID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := orders.UpdateStatus(ctx, eventID, placed.ID, domain.OrderStatusCompleted); err != nil {
		t.Fatalf("complete order: %v", err)
	}

	// The write must have dropped the cached snapshot
	after, err := reports.EventStats(ctx, eventID)
	if err != nil {
		t.Fatalf("stats after order: %v", err)
	}
	if after.Summary.CompletedOrderCount != 1 || after.Summary.TotalItemsSold != 2 {
		t.Errorf("stale stats served: %+v", after.Summary)
	}
	if after.Summary.TotalRevenue.String() != "15" {
		t.Errorf("expected revenue 15, got %s", after.Summary.TotalRevenue)
	}
}

func TestIntegration_CancelRestoresStock(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	eventID, itemID := seedEvent(t, env, 1)

	svc := service.NewOrderService(env.db, env.cache, nil)

	placed, err := svc.PlaceOrder(ctx, service.PlaceOrderInput{
		EventID: eventID,
		Lines:   []domain.LineInput{{InventoryItemID: itemID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Pending order holds the unit
	_, err = svc.PlaceOrder(ctx, service.PlaceOrderInput{
		EventID: eventID,
		Lines:   []domain.LineInput{{InventoryItemID: itemID, Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected hold to block second order, got: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, eventID, placed.ID, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Cancellation releases it
	if _, err := svc.PlaceOrder(ctx, service.PlaceOrderInput{
		EventID: eventID,
		Lines:   []domain.LineInput{{InventoryItemID: itemID, Quantity: 1}},
	}); err != nil {
		t.Errorf("expected order to succeed after cancellation, got: %v", err)
	}
}

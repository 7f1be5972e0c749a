package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/core/domain"
)

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrDeadlock       = 1213
	mysqlErrLockWait       = 1205

	// PlaceOrder retries on deadlock this many times before surfacing
	// domain.ErrConflict. Admission never blocks indefinitely.
	maxPlaceOrderAttempts = 3
)

// MySQLAdapter implements every repository port against a transactional
// relational store. PlaceOrder is the only operation needing mutual
// exclusion: it locks the affected inventory rows inside one transaction so
// that concurrent orders for the same items serialize.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func isMySQLErr(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

// --- CatalogRepository ---

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.CatalogProduct) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO catalog_products (product_code, name, default_price, is_active)
		VALUES (?, ?, ?, ?)`,
		p.Code, p.Name, p.DefaultPrice, p.Active,
	)
	if isMySQLErr(err, mysqlErrDuplicateEntry) {
		return 0, fmt.Errorf("%w: %q", domain.ErrDuplicateCode, p.Code)
	}
	if err != nil {
		return 0, fmt.Errorf("insert catalog product: %w", err)
	}
	return res.LastInsertId()
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.CatalogProduct, error) {
	return m.scanProduct(m.db.QueryRowContext(ctx, `
		SELECT id, product_code, name, default_price, is_active
		FROM catalog_products WHERE id = ?`, id))
}

func (m *MySQLAdapter) GetProductByCode(ctx context.Context, code string) (*domain.CatalogProduct, error) {
	return m.scanProduct(m.db.QueryRowContext(ctx, `
		SELECT id, product_code, name, default_price, is_active
		FROM catalog_products WHERE product_code = ?`, code))
}

func (m *MySQLAdapter) scanProduct(row *sql.Row) (*domain.CatalogProduct, error) {
	var p domain.CatalogProduct
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.DefaultPrice, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query catalog product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) SetProductActive(ctx context.Context, id int64, active bool) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE catalog_products SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("update catalog product: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		// RowsAffected is zero both for a missing row and for a no-op write.
		existing, err := m.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrProductNotFound
		}
	}
	return nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, includeInactive bool) ([]domain.CatalogProduct, error) {
	query := `
		SELECT id, product_code, name, default_price, is_active
		FROM catalog_products`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY product_code`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list catalog products: %w", err)
	}
	defer rows.Close()

	var out []domain.CatalogProduct
	for rows.Next() {
		var p domain.CatalogProduct
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.DefaultPrice, &p.Active); err != nil {
			return nil, fmt.Errorf("scan catalog product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- EventRepository ---

func (m *MySQLAdapter) CreateEvent(ctx context.Context, e domain.Event) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO events (name, date, location, status)
		VALUES (?, ?, ?, ?)`,
		e.Name, e.Date, e.Location, e.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

func (m *MySQLAdapter) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	var e domain.Event
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, date, location, status
		FROM events WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Date, &e.Location, &e.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return &e, nil
}

func (m *MySQLAdapter) ListEvents(ctx context.Context, status domain.EventStatus) ([]domain.Event, error) {
	query := `SELECT id, name, date, location, status FROM events`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Location, &e.Status); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateEvent(ctx context.Context, e domain.Event) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE events SET name = ?, date = ?, location = ? WHERE id = ?`,
		e.Name, e.Date, e.Location, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return m.checkEventExists(ctx, res, e.ID)
}

func (m *MySQLAdapter) UpdateEventStatus(ctx context.Context, id int64, status domain.EventStatus) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE events SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	return m.checkEventExists(ctx, res, id)
}

func (m *MySQLAdapter) checkEventExists(ctx context.Context, res sql.Result, id int64) error {
	if rows, _ := res.RowsAffected(); rows > 0 {
		return nil
	}
	existing, err := m.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrEventNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteEvent(ctx context.Context, id int64) error {
	// Foreign keys cascade the event's inventory items, orders and order
	// lines; single-item removal never cascades (see RemoveItem).
	res, err := m.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// --- InventoryRepository ---

func (m *MySQLAdapter) AddItem(ctx context.Context, item domain.InventoryItem) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory_items (event_id, catalog_product_id, price, initial_stock)
		VALUES (?, ?, ?, ?)`,
		item.EventID, item.CatalogProductID, item.Price, item.InitialStock,
	)
	if isMySQLErr(err, mysqlErrDuplicateEntry) {
		return 0, domain.ErrDuplicateListing
	}
	if err != nil {
		return 0, fmt.Errorf("insert inventory item: %w", err)
	}
	return res.LastInsertId()
}

func (m *MySQLAdapter) GetItem(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := m.db.QueryRowContext(ctx, `
		SELECT id, event_id, catalog_product_id, price, initial_stock
		FROM inventory_items WHERE id = ?`, id,
	).Scan(&item.ID, &item.EventID, &item.CatalogProductID, &item.Price, &item.InitialStock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory item: %w", err)
	}
	return &item, nil
}

func (m *MySQLAdapter) UpdateItem(ctx context.Context, id int64, price *decimal.Decimal, stock *int) error {
	sets := []string{}
	args := []any{}
	if price != nil {
		sets = append(sets, "price = ?")
		args = append(args, price.Round(2))
	}
	if stock != nil {
		sets = append(sets, "initial_stock = ?")
		args = append(args, *stock)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := m.db.ExecContext(ctx,
		`UPDATE inventory_items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		existing, err := m.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrItemNotFound
		}
	}
	return nil
}

func (m *MySQLAdapter) RemoveItem(ctx context.Context, id int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Take the same row lock PlaceOrder takes, so an in-flight admission
	// either finishes before the reference count runs or waits until the
	// delete has committed. Counting outside the lock would let a concurrent
	// order commit lines between the count and the delete, and the delete
	// would then cascade them away.
	var locked int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM inventory_items WHERE id = ? FOR UPDATE`, id,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("lock inventory item: %w", err)
	}

	var refs int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM order_lines WHERE inventory_item_id = ?`, id,
	).Scan(&refs); err != nil {
		return fmt.Errorf("count order lines: %w", err)
	}
	if refs > 0 {
		return domain.ErrHasOrders
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit item removal: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListForEvent(ctx context.Context, eventID int64) ([]domain.InventoryListing, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT i.id, i.event_id, i.catalog_product_id, i.price, i.initial_stock,
		       p.product_code, p.name,
		       COALESCE(c.committed, 0)
		FROM inventory_items i
		JOIN catalog_products p ON p.id = i.catalog_product_id
		LEFT JOIN (
			SELECT ol.inventory_item_id, SUM(ol.quantity) AS committed
			FROM order_lines ol
			JOIN orders o ON o.id = ol.order_id
			WHERE o.status IN ('pending', 'completed')
			GROUP BY ol.inventory_item_id
		) c ON c.inventory_item_id = i.id
		WHERE i.event_id = ?
		ORDER BY i.id`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryListing
	for rows.Next() {
		var l domain.InventoryListing
		var committed int
		if err := rows.Scan(&l.ID, &l.EventID, &l.CatalogProductID, &l.Price, &l.InitialStock,
			&l.Code, &l.Name, &committed); err != nil {
			return nil, fmt.Errorf("scan inventory listing: %w", err)
		}
		l.AvailableStock = l.InventoryItem.AvailableStock(committed)
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- OrderRepository ---

// PlaceOrder runs the check-then-commit as one transaction: lock the
// affected inventory rows, sum quantities already committed by pending and
// completed orders, admit only if every line fits, then insert the order
// with all its lines. Deadlocks are retried a bounded number of times.
func (m *MySQLAdapter) PlaceOrder(ctx context.Context, order domain.Order, lines []domain.LineInput) (*domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxPlaceOrderAttempts; attempt++ {
		placed, err := m.tryPlaceOrder(ctx, order, lines)
		if isMySQLErr(err, mysqlErrDeadlock) || isMySQLErr(err, mysqlErrLockWait) {
			lastErr = err
			continue
		}
		return placed, err
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrConflict, lastErr)
}

func (m *MySQLAdapter) tryPlaceOrder(ctx context.Context, order domain.Order, lines []domain.LineInput) (*domain.Order, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	itemIDs := uniqueItemIDs(lines)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}

	// Ascending id order gives every competing transaction the same lock
	// acquisition order.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_id, catalog_product_id, price, initial_stock
		FROM inventory_items
		WHERE id IN (`+placeholders+`)
		ORDER BY id
		FOR UPDATE`, args...)
	if err != nil {
		return nil, fmt.Errorf("lock inventory items: %w", err)
	}
	items := make(map[int64]domain.InventoryItem, len(itemIDs))
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.EventID, &item.CatalogProductID, &item.Price, &item.InitialStock); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items[item.ID] = item
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock inventory items: %w", err)
	}

	for _, l := range lines {
		item, ok := items[l.InventoryItemID]
		if !ok || item.EventID != order.EventID {
			return nil, fmt.Errorf("%w: item %d", domain.ErrItemNotFound, l.InventoryItemID)
		}
	}

	// The committed sums are stable for the duration of the transaction:
	// every writer locks the item rows above before appending lines.
	committed := make(map[int64]int, len(itemIDs))
	sumRows, err := tx.QueryContext(ctx, `
		SELECT ol.inventory_item_id, COALESCE(SUM(ol.quantity), 0)
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.status IN ('pending', 'completed')
		  AND ol.inventory_item_id IN (`+placeholders+`)
		GROUP BY ol.inventory_item_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum committed quantities: %w", err)
	}
	for sumRows.Next() {
		var itemID int64
		var qty int
		if err := sumRows.Scan(&itemID, &qty); err != nil {
			sumRows.Close()
			return nil, fmt.Errorf("scan committed quantity: %w", err)
		}
		committed[itemID] = qty
	}
	sumRows.Close()
	if err := sumRows.Err(); err != nil {
		return nil, fmt.Errorf("sum committed quantities: %w", err)
	}

	available := make(map[int64]int, len(items))
	for id, item := range items {
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

	order.TotalAmount = domain.OrderTotal(items, lines)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, event_id, status, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.EventID, order.Status, order.TotalAmount,
		order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	order.Lines = make([]domain.OrderLine, 0, len(lines))
	for _, l := range lines {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, inventory_item_id, quantity)
			VALUES (?, ?, ?)`,
			order.ID, l.InventoryItemID, l.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}
		lineID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("order line id: %w", err)
		}
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:              lineID,
			OrderID:         order.ID,
			InventoryItemID: l.InventoryItemID,
			Quantity:        l.Quantity,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return &order, nil
}

func uniqueItemIDs(lines []domain.LineInput) []int64 {
	seen := make(map[int64]bool, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.InventoryItemID] {
			seen[l.InventoryItemID] = true
			ids = append(ids, l.InventoryItemID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, eventID int64, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, event_id, status, total_amount, created_at, updated_at
		FROM orders WHERE id = ? AND event_id = ?`, orderID, eventID,
	).Scan(&o.ID, &o.EventID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	lines, err := m.orderLines(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return &o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, eventID int64, status domain.OrderStatus) ([]domain.Order, error) {
	query := `
		SELECT id, event_id, status, total_amount, created_at, updated_at
		FROM orders WHERE event_id = ?`
	args := []any{eventID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	var ids []string
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.EventID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	lines, err := m.orderLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func (m *MySQLAdapter) orderLines(ctx context.Context, orderIDs []string) (map[string][]domain.OrderLine, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, inventory_item_id, quantity
		FROM order_lines WHERE order_id IN (`+placeholders+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.InventoryItemID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, eventID int64, orderID string, status domain.OrderStatus) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW(6)
		WHERE id = ? AND event_id = ?`,
		status, orderID, eventID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		existing, err := m.GetOrder(ctx, eventID, orderID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrOrderNotFound
		}
	}
	return nil
}

func (m *MySQLAdapter) SumQuantitiesByItem(ctx context.Context, eventID int64, statuses []domain.OrderStatus) (map[int64]int, error) {
	if len(statuses) == 0 {
		return map[int64]int{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := []any{eventID}
	for _, st := range statuses {
		args = append(args, st)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT ol.inventory_item_id, COALESCE(SUM(ol.quantity), 0)
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.event_id = ? AND o.status IN (`+placeholders+`)
		GROUP BY ol.inventory_item_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var itemID int64
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("scan quantity sum: %w", err)
		}
		out[itemID] = qty
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CompletedOrderTotals(ctx context.Context, eventID int64) (int, decimal.Decimal, error) {
	var count int
	var total decimal.Decimal
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders WHERE event_id = ? AND status = 'completed'`, eventID,
	).Scan(&count, &total)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("completed order totals: %w", err)
	}
	return count, total, nil
}

package domain

import "github.com/shopspring/decimal"

// InventoryItem lists a catalog product for one event with its own price and
// initial stock. Remaining stock is never stored; it is always derived from
// the order ledger so there is a single source of truth.
type InventoryItem struct {
	ID               int64
	EventID          int64
	CatalogProductID int64
	Price            decimal.Decimal
	InitialStock     int
}

// AvailableStock is initial stock minus the quantity committed by pending and
// completed orders. It can legitimately read negative after a manual stock
// reduction; the admission algorithm never drives it negative on its own.
func (i InventoryItem) AvailableStock(committed int) int {
	return i.InitialStock - committed
}

// InventoryListing is an item joined with its catalog fields and derived
// stock, as returned by listing queries.
type InventoryListing struct {
	InventoryItem
	Code           string
	Name           string
	AvailableStock int
}

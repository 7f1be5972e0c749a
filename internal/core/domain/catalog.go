package domain

import "github.com/shopspring/decimal"

// CatalogProduct is a reusable product template shared across events.
// Deactivation hides it from new listings but never deletes it: historical
// inventory rows must stay resolvable.
type CatalogProduct struct {
	ID           int64
	Code         string
	Name         string
	DefaultPrice decimal.Decimal
	Active       bool
}

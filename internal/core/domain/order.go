package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CountsAgainstStock reports whether orders in this status hold stock.
// Pending orders count deliberately: two simultaneous pending orders must not
// both believe they have the last unit.
func (s OrderStatus) CountsAgainstStock() bool {
	return s == OrderStatusPending || s == OrderStatusCompleted
}

type Order struct {
	ID          string
	EventID     int64
	Status      OrderStatus
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []OrderLine
}

type OrderLine struct {
	ID              int64
	OrderID         string
	InventoryItemID int64
	Quantity        int
}

// LineInput is one (item, quantity) pair of an order request.
type LineInput struct {
	InventoryItemID int64
	Quantity        int
}

// ValidateLines checks the shape of an order request before any storage work:
// at least one line, every quantity positive.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidQuantity, l.InventoryItemID, l.Quantity)
		}
	}
	return nil
}

// OrderTotal sums quantity × price across lines and rounds half-up to two
// decimal places. Rounding happens once on the sum, not per line.
func OrderTotal(items map[int64]InventoryItem, lines []LineInput) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		item := items[l.InventoryItemID]
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Round(2)
}

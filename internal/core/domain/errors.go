package domain

import (
	"errors"
	"fmt"
)

var (
	// Validation failures: the caller must correct the request.
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyOrder      = errors.New("order has no lines")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidStatus   = errors.New("invalid status")

	// Referenced entity is absent. Not retryable.
	ErrEventNotFound   = errors.New("event not found")
	ErrProductNotFound = errors.New("catalog product not found")
	ErrItemNotFound    = errors.New("inventory item not found")
	ErrOrderNotFound   = errors.New("order not found")

	// Conflicts: may be retryable after re-reading state, except
	// ErrInsufficientStock which is terminal for the request.
	ErrDuplicateCode     = errors.New("product code already exists")
	ErrDuplicateListing  = errors.New("product already listed for this event")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrProductInactive   = errors.New("catalog product is inactive")
	ErrHasOrders         = errors.New("inventory item is referenced by orders")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("concurrent commit conflict")
)

// InsufficientStockError identifies the offending line of a rejected order.
// It unwraps to ErrInsufficientStock so callers can match with errors.Is.
type InsufficientStockError struct {
	ItemID    int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/port"
)

const idempotencyKeyPrefix = "order-request:"

// OrderService is the reservation engine: it admits or rejects order
// requests against derived available stock and owns order status updates.
// The serializable check-then-commit itself lives behind
// port.OrderRepository.PlaceOrder.
type OrderService struct {
	orders port.OrderRepository
	cache  port.CacheRepository
	log    *zap.Logger
}

// NewOrderService wires the engine. cache may be nil; idempotency checks and
// stats invalidation are then skipped.
func NewOrderService(orders port.OrderRepository, cache port.CacheRepository, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{orders: orders, cache: cache, log: log}
}

type PlaceOrderInput struct {
	EventID int64
	// RequestID, when set, deduplicates client retries of the same submission.
	RequestID string
	Lines     []domain.LineInput
}

// PlaceOrder validates the request shape, then delegates the atomic
// admission to the repository. Either every line is satisfiable and the whole
// order is persisted, or nothing is written.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if err := domain.ValidateLines(in.Lines); err != nil {
		return nil, err
	}

	if in.RequestID != "" && s.cache != nil {
		ok, err := s.cache.SetIdempotency(ctx, idempotencyKeyPrefix+in.RequestID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	now := time.Now()
	order := domain.Order{
		ID:        uuid.New().String(),
		EventID:   in.EventID,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	placed, err := s.orders.PlaceOrder(ctx, order, in.Lines)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, in.EventID)
	s.log.Info("order placed",
		zap.String("order_id", placed.ID),
		zap.Int64("event_id", placed.EventID),
		zap.Int("lines", len(placed.Lines)),
		zap.String("total", placed.TotalAmount.StringFixed(2)),
	)
	return placed, nil
}

// UpdateStatus sets an order's status. Any transition between valid statuses
// is permitted, including completed back to pending; see the design notes.
func (s *OrderService) UpdateStatus(ctx context.Context, eventID int64, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	if err := s.orders.UpdateOrderStatus(ctx, eventID, orderID, status); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, eventID)
	s.log.Info("order status updated",
		zap.String("order_id", orderID),
		zap.Int64("event_id", eventID),
		zap.String("status", string(status)),
	)
	return s.orders.GetOrder(ctx, eventID, orderID)
}

func (s *OrderService) Get(ctx context.Context, eventID int64, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, eventID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// List returns the event's orders newest first, optionally filtered by
// status. An unknown status value is ignored rather than rejected, matching
// the listing filter's lenient behavior.
func (s *OrderService) List(ctx context.Context, eventID int64, status domain.OrderStatus) ([]domain.Order, error) {
	if status != "" && !domain.ValidOrderStatus(status) {
		status = ""
	}
	return s.orders.ListOrders(ctx, eventID, status)
}

func (s *OrderService) invalidateStats(ctx context.Context, eventID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStats(ctx, eventID); err != nil {
		s.log.Warn("stats cache invalidation failed", zap.Int64("event_id", eventID), zap.Error(err))
	}
}

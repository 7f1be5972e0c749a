package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/port"
)

const statsCacheTTL = 30 * time.Second

// ReportService derives sales views by replaying the order ledger against
// event inventory. It is read-only: repeated calls with no intervening writes
// return identical results, and it never mutates store state.
type ReportService struct {
	events port.EventRepository
	items  port.InventoryRepository
	orders port.OrderRepository
	cache  port.CacheRepository
	log    *zap.Logger
}

// NewReportService wires the aggregator. cache may be nil; every read then
// recomputes from the store.
func NewReportService(events port.EventRepository, items port.InventoryRepository, orders port.OrderRepository, cache port.CacheRepository, log *zap.Logger) *ReportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportService{events: events, items: items, orders: orders, cache: cache, log: log}
}

// EventStats computes per-item sold counts and revenue plus an overall
// summary. Sold counts consider completed orders only; pending orders reduce
// available stock but contribute nothing here. Cache-aside: a snapshot is
// served from cache until a ledger write invalidates it or the TTL expires.
func (s *ReportService) EventStats(ctx context.Context, eventID int64) (*domain.EventStats, error) {
	if s.cache != nil {
		stats, found, err := s.cache.GetStats(ctx, eventID)
		if err != nil {
			s.log.Warn("stats cache read failed", zap.Int64("event_id", eventID), zap.Error(err))
		} else if found {
			return stats, nil
		}
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}

	listings, err := s.items.ListForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sold, err := s.orders.SumQuantitiesByItem(ctx, eventID, []domain.OrderStatus{domain.OrderStatusCompleted})
	if err != nil {
		return nil, err
	}
	orderCount, revenue, err := s.orders.CompletedOrderTotals(ctx, eventID)
	if err != nil {
		return nil, err
	}

	stats := &domain.EventStats{
		EventID: eventID,
		Event: domain.EventInfo{
			ID:       event.ID,
			Name:     event.Name,
			Date:     event.Date.Format("2006-01-02"),
			Location: event.Location,
			Status:   event.Status,
		},
		Summary: domain.EventSummary{
			TotalRevenue:        revenue.Round(2),
			CompletedOrderCount: orderCount,
		},
		Items: make([]domain.ItemSales, 0, len(listings)),
	}

	totalSold := 0
	for _, l := range listings {
		soldCount := sold[l.ID]
		totalSold += soldCount
		stats.Items = append(stats.Items, domain.ItemSales{
			ItemID:       l.ID,
			Code:         l.Code,
			Name:         l.Name,
			Price:        l.Price,
			InitialStock: l.InitialStock,
			SoldCount:    soldCount,
			CurrentStock: l.InitialStock - soldCount,
			Revenue:      l.Price.Mul(decimal.NewFromInt(int64(soldCount))).Round(2),
		})
	}
	stats.Summary.TotalItemsSold = totalSold

	if s.cache != nil {
		if err := s.cache.SetStats(ctx, eventID, stats, statsCacheTTL); err != nil {
			s.log.Warn("stats cache write failed", zap.Int64("event_id", eventID), zap.Error(err))
		}
	}
	return stats, nil
}

package port

import (
	"context"
	"time"

	"github.com/rl1809/booth-sale/internal/core/domain"
)

type CacheRepository interface {
	// GetStats returns the cached snapshot for the event, with found=false on
	// a miss.
	GetStats(ctx context.Context, eventID int64) (*domain.EventStats, bool, error)

	// SetStats stores a snapshot with a TTL.
	SetStats(ctx context.Context, eventID int64, stats *domain.EventStats, ttl time.Duration) error

	// InvalidateStats drops the snapshot; called on every ledger write.
	InvalidateStats(ctx context.Context, eventID int64) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}

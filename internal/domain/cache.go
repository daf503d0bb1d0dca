package domain

import (
	"context"
	"time"
)

// MarketListCache holds recently fetched market lists keyed by query.
type MarketListCache interface {
	SetMarkets(ctx context.Context, key string, markets []Market, ttl time.Duration) error
	// GetMarkets returns the cached list and whether it is still fresh. A
	// stale list is returned with fresh=false; a missing one with ErrNotFound.
	GetMarkets(ctx context.Context, key string) (markets []Market, fresh bool, err error)
}

// SelectionStore is the client-local key/value store that remembers which
// evaluation account a user last selected.
type SelectionStore interface {
	Get(ctx context.Context, scope string) (string, error)
	Set(ctx context.Context, scope, value string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for account events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// staleRetention is how long a market list outlives its freshness TTL so it
// can still be served when the upstream API is down.
const staleRetention = time.Hour

// MarketListCache implements domain.MarketListCache. Each entry is a JSON
// document carrying its own fresh-until time; the Redis TTL is longer so a
// stale copy survives as a fallback.
//
// Key schema:
//
//	markets:{key} - JSON {fresh_until, markets}
type MarketListCache struct {
	c   *Client
	now func() time.Time
}

type marketListEntry struct {
	FreshUntil time.Time       `json:"fresh_until"`
	Markets    []domain.Market `json:"markets"`
}

// NewMarketListCache creates a MarketListCache backed by the given Client.
func NewMarketListCache(c *Client) *MarketListCache {
	return &MarketListCache{c: c, now: time.Now}
}

// SetMarkets stores markets as fresh for ttl.
func (mc *MarketListCache) SetMarkets(ctx context.Context, key string, markets []domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(marketListEntry{FreshUntil: mc.now().Add(ttl), Markets: markets})
	if err != nil {
		return fmt.Errorf("redis: marshal markets %s: %w", key, err)
	}
	if err := mc.c.Underlying().Set(ctx, mc.c.key("markets:", key), data, ttl+staleRetention).Err(); err != nil {
		return fmt.Errorf("redis: set markets %s: %w", key, err)
	}
	return nil
}

// GetMarkets returns the cached list and whether it is still fresh.
func (mc *MarketListCache) GetMarkets(ctx context.Context, key string) ([]domain.Market, bool, error) {
	data, err := mc.c.Underlying().Get(ctx, mc.c.key("markets:", key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, fmt.Errorf("redis: markets %s: %w", key, domain.ErrNotFound)
		}
		return nil, false, fmt.Errorf("redis: get markets %s: %w", key, err)
	}

	var entry marketListEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("redis: unmarshal markets %s: %w", key, err)
	}
	return entry.Markets, mc.now().Before(entry.FreshUntil), nil
}

var _ domain.MarketListCache = (*MarketListCache)(nil)

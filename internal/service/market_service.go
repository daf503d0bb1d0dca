package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// MarketSource lists and searches prediction markets.
type MarketSource interface {
	GetMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error)
	SearchMarkets(ctx context.Context, query string) ([]domain.Market, error)
	GetEvents(ctx context.Context, limit int) ([]domain.MarketEvent, error)
}

// MarketService serves the trading terminal's market list. The top list is
// cached for ttl; when a refresh fails a stale copy is served instead.
type MarketService struct {
	source MarketSource
	cache  domain.MarketListCache
	ttl    time.Duration
	limit  int
	logger *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(source MarketSource, cache domain.MarketListCache, ttl time.Duration, limit int, logger *slog.Logger) *MarketService {
	if limit <= 0 {
		limit = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{
		source: source,
		cache:  cache,
		ttl:    ttl,
		limit:  limit,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

const topMarketsKey = "top"

// ListMarkets returns the most traded open markets.
func (s *MarketService) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	cached, fresh, cerr := s.cache.GetMarkets(ctx, topMarketsKey)
	if cerr == nil && fresh {
		return cached, nil
	}
	if cerr != nil && !errors.Is(cerr, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "market_service: cache read failed", slog.String("error", cerr.Error()))
	}

	markets, err := s.source.GetMarkets(ctx, s.limit, 0)
	if err != nil {
		if cerr == nil {
			s.logger.WarnContext(ctx, "market_service: serving stale markets",
				slog.Int("count", len(cached)),
				slog.String("error", err.Error()),
			)
			return cached, nil
		}
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}

	if err := s.cache.SetMarkets(ctx, topMarketsKey, markets, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache write failed", slog.String("error", err.Error()))
	}
	return markets, nil
}

// Search returns markets whose title contains query. Blank queries return
// the top list.
func (s *MarketService) Search(ctx context.Context, query string) ([]domain.Market, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return s.ListMarkets(ctx)
	}
	markets, err := s.source.SearchMarkets(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("market_service: search %q: %w", q, err)
	}
	return markets, nil
}

// Events returns the most traded open events.
func (s *MarketService) Events(ctx context.Context, limit int) ([]domain.MarketEvent, error) {
	events, err := s.source.GetEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: events: %w", err)
	}
	return events, nil
}

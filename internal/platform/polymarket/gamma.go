package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// GammaClient reads market discovery data from the Gamma API.
type GammaClient struct {
	baseURL string
	fetcher *MirrorFetcher
}

// NewGammaClient creates a Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, fetcher *MirrorFetcher) *GammaClient {
	return &GammaClient{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// GetMarkets returns active, open markets ordered by volume, highest first.
func (g *GammaClient) GetMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume")
	params.Set("ascending", "false")

	body, err := g.fetcher.Get(ctx, g.baseURL+"/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}
	return parseMarkets(body), nil
}

// SearchMarkets returns up to 20 open markets whose title contains query.
func (g *GammaClient) SearchMarkets(ctx context.Context, query string) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("limit", "20")
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("title_contains", query)

	body, err := g.fetcher.Get(ctx, g.baseURL+"/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: search markets %q: %w", query, err)
	}
	return parseMarkets(body), nil
}

// GetEvents returns active events ordered by volume.
func (g *GammaClient) GetEvents(ctx context.Context, limit int) ([]domain.MarketEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume")
	params.Set("ascending", "false")

	body, err := g.fetcher.Get(ctx, g.baseURL+"/events?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get events: %w", err)
	}
	raw := decodeArray[APIEvent](body)
	events := make([]domain.MarketEvent, 0, len(raw))
	for _, e := range raw {
		events = append(events, ParseEvent(e))
	}
	return events, nil
}

// GetProfile returns the public profile for wallet. The endpoint answers
// with either an object or a one-element array; an empty answer is
// domain.ErrNotFound.
func (g *GammaClient) GetProfile(ctx context.Context, wallet string) (domain.Profile, error) {
	params := url.Values{}
	params.Set("user", wallet)

	body, err := g.fetcher.Get(ctx, g.baseURL+"/profiles?"+params.Encode())
	if err != nil {
		return domain.Profile{}, fmt.Errorf("polymarket/gamma: get profile %s: %w", wallet, err)
	}

	var p APIProfile
	if list := decodeArray[APIProfile](body); len(list) > 0 {
		p = list[0]
	} else if err := json.Unmarshal(body, &p); err != nil || p == (APIProfile{}) {
		return domain.Profile{}, fmt.Errorf("polymarket/gamma: profile %s: %w", wallet, domain.ErrNotFound)
	}
	return p.ToDomain(wallet), nil
}

func parseMarkets(body json.RawMessage) []domain.Market {
	raw := decodeArray[APIMarket](body)
	markets := make([]domain.Market, 0, len(raw))
	for _, m := range raw {
		markets = append(markets, ParseMarket(m))
	}
	return markets
}

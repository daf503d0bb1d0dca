package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// recordLimit is the page size the Data API allows for positions and
// activity.
const recordLimit = "500"

// DataClient reads an external account's holdings and trade history from
// the Data API.
type DataClient struct {
	baseURL string
	fetcher *MirrorFetcher
}

// NewDataClient creates a Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string, fetcher *MirrorFetcher) *DataClient {
	return &DataClient{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// Positions returns every position held by wallet, including dust.
func (d *DataClient) Positions(ctx context.Context, wallet string) ([]domain.Position, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("sizeThreshold", "0")
	params.Set("limit", recordLimit)

	body, err := d.fetcher.Get(ctx, d.baseURL+"/positions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: positions %s: %w", wallet, err)
	}
	return decodeArray[domain.Position](body), nil
}

// Activity returns wallet's most recent trades.
func (d *DataClient) Activity(ctx context.Context, wallet string) ([]domain.Activity, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("limit", recordLimit)
	params.Set("type", "TRADE")

	body, err := d.fetcher.Get(ctx, d.baseURL+"/activity?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: activity %s: %w", wallet, err)
	}
	return decodeArray[domain.Activity](body), nil
}

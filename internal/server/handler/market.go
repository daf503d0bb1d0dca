package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// MarketService defines what the market handler needs. It is declared
// locally so the handler package does not depend on the concrete service.
type MarketService interface {
	ListMarkets(ctx context.Context) ([]domain.Market, error)
	Search(ctx context.Context, query string) ([]domain.Market, error)
	Events(ctx context.Context, limit int) ([]domain.MarketEvent, error)
}

// MarketHandler serves the trading terminal's market lists.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// ListMarkets returns the top markets, or those matching q.
// GET /api/markets?q=election
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list markets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": toMarketsJSON(markets)})
}

// ListEvents returns the most traded open events.
// GET /api/events?limit=20
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.markets.Events(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeServiceError(w, r, h.logger, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toEventsJSON(events)})
}

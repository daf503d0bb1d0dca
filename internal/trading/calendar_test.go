package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func closedTrade(id string, at time.Time, pnl float64) domain.Trade {
	return domain.Trade{ID: id, Status: domain.TradeClosed, ClosedAt: &at, PnL: &pnl}
}

func TestCalendar(t *testing.T) {
	trades := []domain.Trade{
		closedTrade("a", time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC), 40),
		closedTrade("b", time.Date(2026, 2, 3, 18, 0, 0, 0, time.UTC), -15.5),
		closedTrade("c", time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), -30),
		closedTrade("d", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 99),
		{ID: "open", Status: domain.TradeOpen},
	}

	c := Calendar(trades, 2026, time.February, nil)
	assert.Equal(t, 28, c.DaysInMonth)
	assert.Equal(t, time.Sunday, c.FirstDay)
	assert.Equal(t, map[int]float64{3: 24.5, 10: -30}, c.DailyPnL)
	assert.Equal(t, []string{"a", "b"}, c.DailyTrades[3])
	assert.Equal(t, -5.5, c.TotalPnL)
	assert.Equal(t, 2, c.TradingDays)
	assert.Equal(t, 1, c.WinDays)
	assert.Equal(t, 1, c.LossDays)
	assert.Equal(t, 24.5, c.BestDay)
	assert.Equal(t, -30.0, c.WorstDay)
}

func TestCalendarEmptyMonth(t *testing.T) {
	c := Calendar(nil, 2026, time.January, time.UTC)
	assert.Equal(t, 31, c.DaysInMonth)
	assert.Zero(t, c.TotalPnL)
	assert.Zero(t, c.BestDay)
	assert.Zero(t, c.WorstDay)
}

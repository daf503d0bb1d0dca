package evaluation

import (
	"math"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

const day = 24 * time.Hour

// Progress is the dashboard view of how far an account is through its
// evaluation.
type Progress struct {
	DrawdownUsedPct   float64 `json:"drawdown_used_pct"`
	DrawdownLimitPct  float64 `json:"drawdown_limit_pct"`
	Profit            float64 `json:"profit"`
	ProfitTarget      float64 `json:"profit_target"`
	ProfitProgressPct float64 `json:"profit_progress_pct"`
	ConsistencyPct    float64 `json:"consistency_pct"`
	ConsistencyOK     bool    `json:"consistency_ok"`
	TradesCount       int     `json:"trades_count"`
	MinTrades         int     `json:"min_trades"`
	DaysUsed          int     `json:"days_used"`
	DaysTotal         int     `json:"days_total"`
}

// ProgressOf derives dashboard metrics for a. Only now depends on the clock.
func ProgressOf(a domain.Account, now time.Time) Progress {
	p := Progress{
		DrawdownUsedPct:  DrawdownPct(a.HighWaterMark, a.Balance),
		DrawdownLimitPct: a.MaxDrawdownPct,
		Profit:           domain.Round2(a.Balance - a.StartingBalance),
		ProfitTarget:     domain.Round2(a.StartingBalance * a.ProfitTargetPct / 100),
		ConsistencyOK:    true,
		TradesCount:      a.TradesCount,
		MinTrades:        a.MinTrades,
		DaysUsed:         int(now.Sub(a.CreatedAt) / day),
		DaysTotal:        int(a.ExpiresAt.Sub(a.CreatedAt) / day),
	}
	if p.ProfitTarget > 0 {
		p.ProfitProgressPct = math.Min(100, math.Max(0, p.Profit)/p.ProfitTarget*100)
	}
	if a.TotalProfit > 0 {
		p.ConsistencyPct = ConsistencyPct(a.LargestTradeProfit, a.TotalProfit)
		p.ConsistencyOK = domain.ShareAtMostPct(a.LargestTradeProfit, a.TotalProfit, a.ConsistencyRulePct)
	}
	return p
}

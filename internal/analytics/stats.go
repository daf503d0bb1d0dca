// Package analytics aggregates an external market account's positions and
// activity into portfolio statistics.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Price bounds at which a market is treated as resolved.
const (
	ResolvedLow  = 0.01
	ResolvedHigh = 0.99
)

// Weekdays lists the day-of-week buckets in Sunday-first order.
var Weekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// CumulativePoint is one day of the running P&L series.
type CumulativePoint struct {
	Date string  `json:"date"`
	PnL  float64 `json:"pnl"`
}

// Stats is an immutable snapshot of portfolio performance.
type Stats struct {
	CumulativePnL     []CumulativePoint  `json:"cum_pnl"`
	TotalRealizedPnL  float64            `json:"total_realized_pnl"`
	TotalCurrentValue float64            `json:"total_current_value"`
	TotalCashPnL      float64            `json:"total_cash_pnl"`
	TotalInitialValue float64            `json:"total_initial_value"`
	WinRate           float64            `json:"win_rate"`
	Won               int                `json:"won"`
	Lost              int                `json:"lost"`
	TotalClosed       int                `json:"total_closed"`
	Open              []domain.Position  `json:"open"`
	Best              *domain.Position   `json:"best,omitempty"`
	Worst             *domain.Position   `json:"worst,omitempty"`
	TotalVolume       float64            `json:"total_volume"`
	TotalTrades       int                `json:"total_trades"`
	DayPerformance    map[string]float64 `json:"day_perf"`
	Positions         []domain.Position  `json:"positions"`
}

// Compute aggregates positions and activity using the current time for
// activity entries that carry no timestamp.
func Compute(positions []domain.Position, activity []domain.Activity) Stats {
	return ComputeAt(time.Now(), positions, activity)
}

// ComputeAt is Compute with an explicit clock. It never fails; malformed
// fields contribute zero.
func ComputeAt(now time.Time, positions []domain.Position, activity []domain.Activity) Stats {
	trades := tradesOf(activity)

	s := Stats{
		CumulativePnL:  cumulative(now, trades),
		DayPerformance: dayPerformance(now, trades),
		TotalTrades:    len(trades),
		Positions:      positions,
		Open:           []domain.Position{},
	}
	if s.Positions == nil {
		s.Positions = []domain.Position{}
	}

	for _, t := range trades {
		s.TotalVolume += math.Abs(cashOf(t))
	}

	for i := range positions {
		p := positions[i]
		s.TotalRealizedPnL += p.RealizedPnl.Float()
		s.TotalCurrentValue += p.CurrentValue.Float()
		s.TotalCashPnL += p.CashPnl.Float()
		s.TotalInitialValue += p.InitialValue.Float()

		switch {
		case IsClosed(p):
			s.TotalClosed++
			if IsWon(p) {
				s.Won++
			}
		case IsOpen(p):
			s.Open = append(s.Open, p)
		}

		if !p.CashPnl.Valid {
			continue
		}
		if s.Best == nil || p.CashPnl.Value > s.Best.CashPnl.Value {
			best := p
			s.Best = &best
		}
		if s.Worst == nil || p.CashPnl.Value < s.Worst.CashPnl.Value {
			worst := p
			s.Worst = &worst
		}
	}

	s.Lost = s.TotalClosed - s.Won
	if s.TotalClosed > 0 {
		s.WinRate = float64(s.Won) / float64(s.TotalClosed) * 100
	}
	return s
}

// IsClosed reports whether the position's market has resolved.
func IsClosed(p domain.Position) bool {
	price := p.CurPrice.Float()
	return bool(p.Redeemable) || price <= ResolvedLow || price >= ResolvedHigh
}

// IsOpen reports whether the position is still live.
func IsOpen(p domain.Position) bool {
	price := p.CurPrice.Float()
	return !bool(p.Redeemable) && price > ResolvedLow && price < ResolvedHigh
}

// IsWon reports whether a closed position ended in profit.
func IsWon(p domain.Position) bool {
	return p.CurPrice.Float() >= ResolvedHigh || p.CashPnl.Float() > 0
}

func tradesOf(activity []domain.Activity) []domain.Activity {
	out := make([]domain.Activity, 0, len(activity))
	for _, a := range activity {
		if a.Type == "TRADE" || a.Side != "" {
			out = append(out, a)
		}
	}
	return out
}

// cashOf prefers the cash field and falls back to usdcSize when cash is
// absent or zero.
func cashOf(a domain.Activity) float64 {
	if c := a.Cash.Float(); c != 0 {
		return c
	}
	return a.UsdcSize.Float()
}

// signedCash applies the sell-positive, buy-negative convention. Other sides
// contribute nothing.
func signedCash(a domain.Activity) float64 {
	switch strings.ToUpper(a.Side) {
	case "SELL":
		return cashOf(a)
	case "BUY":
		return -cashOf(a)
	}
	return 0
}

func timestampOf(now time.Time, a domain.Activity) time.Time {
	ts := a.Timestamp.Float()
	if ts == 0 {
		return now.UTC()
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func cumulative(now time.Time, trades []domain.Activity) []CumulativePoint {
	sorted := make([]domain.Activity, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Float() < sorted[j].Timestamp.Float()
	})

	daily := map[string]float64{}
	for _, t := range sorted {
		day := timestampOf(now, t).Format(time.DateOnly)
		daily[day] = domain.AddMoney(daily[day], signedCash(t))
	}

	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)

	out := make([]CumulativePoint, 0, len(days))
	var cum float64
	for _, d := range days {
		cum = domain.AddMoney(cum, daily[d])
		out = append(out, CumulativePoint{Date: d, PnL: domain.Round2(cum)})
	}
	return out
}

func dayPerformance(now time.Time, trades []domain.Activity) map[string]float64 {
	perf := make(map[string]float64, len(Weekdays))
	for _, d := range Weekdays {
		perf[d] = 0
	}
	for _, t := range trades {
		d := Weekdays[timestampOf(now, t).Weekday()]
		perf[d] = domain.AddMoney(perf[d], signedCash(t))
	}
	return perf
}

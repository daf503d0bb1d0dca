package trading

import (
	"math"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// MonthCalendar is the closed-trade P&L of one calendar month, bucketed by
// day of month.
type MonthCalendar struct {
	Year        int              `json:"year"`
	Month       time.Month       `json:"month"`
	DaysInMonth int              `json:"days_in_month"`
	FirstDay    time.Weekday     `json:"first_weekday"`
	DailyPnL    map[int]float64  `json:"daily_pnl"`
	DailyTrades map[int][]string `json:"daily_trades"`
	TotalPnL    float64          `json:"total_pnl"`
	TradingDays int              `json:"trading_days"`
	WinDays     int              `json:"win_days"`
	LossDays    int              `json:"loss_days"`
	BestDay     float64          `json:"best_day"`
	WorstDay    float64          `json:"worst_day"`
}

// Calendar buckets closed trades by the day they closed in loc. BestDay is
// never below 0 and WorstDay never above 0.
func Calendar(trades []domain.Trade, year int, month time.Month, loc *time.Location) MonthCalendar {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	c := MonthCalendar{
		Year:        year,
		Month:       month,
		DaysInMonth: first.AddDate(0, 1, -1).Day(),
		FirstDay:    first.Weekday(),
		DailyPnL:    map[int]float64{},
		DailyTrades: map[int][]string{},
	}

	for _, t := range trades {
		if t.Status != domain.TradeClosed || t.ClosedAt == nil {
			continue
		}
		at := t.ClosedAt.In(loc)
		if at.Year() != year || at.Month() != month {
			continue
		}
		var pnl float64
		if t.PnL != nil {
			pnl = *t.PnL
		}
		d := at.Day()
		c.DailyPnL[d] = domain.AddMoney(c.DailyPnL[d], pnl)
		c.DailyTrades[d] = append(c.DailyTrades[d], t.ID)
	}

	for _, v := range c.DailyPnL {
		c.TotalPnL = domain.AddMoney(c.TotalPnL, v)
		switch {
		case v > 0:
			c.WinDays++
		case v < 0:
			c.LossDays++
		}
		c.BestDay = math.Max(c.BestDay, v)
		c.WorstDay = math.Min(c.WorstDay, v)
	}
	c.TradingDays = len(c.DailyPnL)
	return c
}

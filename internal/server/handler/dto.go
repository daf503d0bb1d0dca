package handler

import (
	"time"

	"github.com/alanyoungcy/polyedge/internal/analytics"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/evaluation"
	"github.com/alanyoungcy/polyedge/internal/service"
)

type accountJSON struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	EvalType           string    `json:"eval_type"`
	AccountSize        float64   `json:"account_size"`
	ProfitTargetPct    float64   `json:"profit_target_pct"`
	MaxDrawdownPct     float64   `json:"max_drawdown_pct"`
	ConsistencyRulePct float64   `json:"consistency_rule_pct"`
	MinTrades          int       `json:"min_trades"`
	Phase              int       `json:"phase"`
	Status             string    `json:"status"`
	StartingBalance    float64   `json:"starting_balance"`
	Balance            float64   `json:"current_balance"`
	HighWaterMark      float64   `json:"high_water_mark"`
	TradesCount        int       `json:"trades_count"`
	TotalProfit        float64   `json:"total_profit"`
	TotalLoss          float64   `json:"total_loss"`
	LargestTradeProfit float64   `json:"largest_trade_profit"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
	Version            int64     `json:"version"`
}

func toAccountJSON(a domain.Account) accountJSON {
	return accountJSON{
		ID:                 a.ID,
		UserID:             a.UserID,
		EvalType:           string(a.EvalType),
		AccountSize:        a.AccountSize,
		ProfitTargetPct:    a.ProfitTargetPct,
		MaxDrawdownPct:     a.MaxDrawdownPct,
		ConsistencyRulePct: a.ConsistencyRulePct,
		MinTrades:          a.MinTrades,
		Phase:              a.Phase,
		Status:             string(a.Status),
		StartingBalance:    a.StartingBalance,
		Balance:            a.Balance,
		HighWaterMark:      a.HighWaterMark,
		TradesCount:        a.TradesCount,
		TotalProfit:        a.TotalProfit,
		TotalLoss:          a.TotalLoss,
		LargestTradeProfit: a.LargestTradeProfit,
		CreatedAt:          a.CreatedAt,
		ExpiresAt:          a.ExpiresAt,
		Version:            a.Version,
	}
}

type accountViewJSON struct {
	Account  accountJSON         `json:"account"`
	Progress evaluation.Progress `json:"progress"`
}

func toAccountViewJSON(v service.AccountView) accountViewJSON {
	return accountViewJSON{Account: toAccountJSON(v.Account), Progress: v.Progress}
}

type tradeJSON struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"evaluation_id"`
	ContractName string     `json:"contract_name"`
	Side         string     `json:"side"`
	TradeSize    float64    `json:"trade_size"`
	EntryPrice   float64    `json:"entry_price"`
	Commission   float64    `json:"commission"`
	Status       string     `json:"status"`
	OpenedAt     time.Time  `json:"opened_at"`
	ExitPrice    *float64   `json:"exit_price,omitempty"`
	PnL          *float64   `json:"pnl,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

func toTradeJSON(t domain.Trade) tradeJSON {
	return tradeJSON{
		ID:           t.ID,
		AccountID:    t.AccountID,
		ContractName: t.ContractName,
		Side:         string(t.Side),
		TradeSize:    t.TradeSize,
		EntryPrice:   t.EntryPrice,
		Commission:   t.Commission,
		Status:       string(t.Status),
		OpenedAt:     t.OpenedAt,
		ExitPrice:    t.ExitPrice,
		PnL:          t.PnL,
		ClosedAt:     t.ClosedAt,
	}
}

func toTradesJSON(trades []domain.Trade) []tradeJSON {
	out := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeJSON(t))
	}
	return out
}

type marketJSON struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Slug      string   `json:"slug"`
	Category  string   `json:"category"`
	YesPrice  float64  `json:"yes_price"`
	NoPrice   float64  `json:"no_price"`
	Outcomes  []string `json:"outcomes"`
	Volume    float64  `json:"volume"`
	Liquidity float64  `json:"liquidity"`
	EndDate   string   `json:"end_date,omitempty"`
	Image     string   `json:"image,omitempty"`
	Active    bool     `json:"active"`
}

func toMarketsJSON(markets []domain.Market) []marketJSON {
	out := make([]marketJSON, 0, len(markets))
	for _, m := range markets {
		out = append(out, marketJSON{
			ID:        m.ID,
			Question:  m.Question,
			Slug:      m.Slug,
			Category:  m.Category,
			YesPrice:  m.YesPrice,
			NoPrice:   m.NoPrice,
			Outcomes:  m.Outcomes,
			Volume:    m.Volume,
			Liquidity: m.Liquidity,
			EndDate:   m.EndDate,
			Image:     m.Image,
			Active:    m.Active,
		})
	}
	return out
}

type eventJSON struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Slug    string       `json:"slug"`
	Markets []marketJSON `json:"markets"`
}

func toEventsJSON(events []domain.MarketEvent) []eventJSON {
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON{ID: e.ID, Title: e.Title, Slug: e.Slug, Markets: toMarketsJSON(e.Markets)})
	}
	return out
}

type profileJSON struct {
	Address   string     `json:"address"`
	Name      string     `json:"name,omitempty"`
	Pseudonym string     `json:"pseudonym,omitempty"`
	Bio       string     `json:"bio,omitempty"`
	Image     string     `json:"image,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type reportJSON struct {
	Wallet  string          `json:"wallet"`
	Profile *profileJSON    `json:"profile,omitempty"`
	Stats   analytics.Stats `json:"stats"`
}

func toReportJSON(r service.PortfolioReport) reportJSON {
	out := reportJSON{Wallet: r.Wallet, Stats: r.Stats}
	if p := r.Profile; p != nil {
		out.Profile = &profileJSON{
			Address:   p.Address,
			Name:      p.Name,
			Pseudonym: p.Pseudonym,
			Bio:       p.Bio,
			Image:     p.Image,
			CreatedAt: p.CreatedAt,
		}
	}
	return out
}

type leaderboardJSON struct {
	Rank        int     `json:"rank"`
	Trader      string  `json:"trader"`
	AccountSize float64 `json:"account_size"`
	EvalType    string  `json:"eval_type"`
	ReturnPct   float64 `json:"return_pct"`
	TradesCount int     `json:"trades_count"`
	Status      string  `json:"status"`
}

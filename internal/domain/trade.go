package domain

import "time"

// Side is the outcome a simulated trade is long on.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is YES or NO.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// TradeStatus is open until the trade is closed; closed trades are immutable.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is a simulated position taken inside an evaluation account. Prices
// are probabilities in (0,1).
type Trade struct {
	ID           string
	AccountID    string
	UserID       string
	ContractName string
	Side         Side
	TradeSize    float64
	EntryPrice   float64
	Commission   float64
	Status       TradeStatus
	OpenedAt     time.Time
	ExitPrice    *float64
	PnL          *float64
	ClosedAt     *time.Time
}

// Package trading opens and closes simulated trades against an evaluation
// account.
package trading

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/evaluation"
)

const (
	// CommissionRate is charged on trade size when a trade opens.
	CommissionRate = 0.01
	// MaxTradeFraction caps a single trade relative to the account balance.
	MaxTradeFraction = 0.15
)

// OpenInput is the user's order ticket. Prices are entered in cents.
type OpenInput struct {
	ContractName    string
	Side            domain.Side
	TradeSize       float64
	EntryPriceCents float64
}

// CentsToPrice converts a cent quote into a probability, rejecting anything
// outside the open interval (0,1).
func CentsToPrice(cents float64) (float64, error) {
	p := cents / 100
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, domain.NewValidationError(domain.KindInvalidPrice, "price must be 1-99¢, got %v", cents)
	}
	return p, nil
}

// Commission is the fee charged when a trade of the given size opens.
func Commission(size float64) float64 {
	return domain.Round2(size * CommissionRate)
}

// ValidateOpen checks in against acct and returns the entry price.
func ValidateOpen(acct domain.Account, in OpenInput) (float64, error) {
	if !acct.Status.Tradable() {
		return 0, domain.NewValidationError(domain.KindAccountInactive, "account is %s", acct.Status)
	}
	if strings.TrimSpace(in.ContractName) == "" {
		return 0, domain.NewValidationError(domain.KindMissingName, "contract name is required")
	}
	if math.IsNaN(in.TradeSize) || in.TradeSize <= 0 {
		return 0, domain.NewValidationError(domain.KindInvalidSize, "trade size must be positive")
	}
	entry, err := CentsToPrice(in.EntryPriceCents)
	if err != nil {
		return 0, err
	}
	if !domain.WithinFraction(in.TradeSize, acct.Balance, MaxTradeFraction) {
		return 0, domain.NewValidationError(domain.KindSizeTooLarge,
			"max position size is 15%% of balance ($%s)",
			domain.FractionOf(acct.Balance, MaxTradeFraction).StringFixed(2))
	}
	if !in.Side.Valid() {
		return 0, domain.NewValidationError(domain.KindInvalidSide, "side must be YES or NO, got %q", in.Side)
	}
	return entry, nil
}

// OpenTrade validates in, creates an open trade and deducts its commission
// from the account balance. The high-water mark is left alone. acct is not
// modified; on error nothing is returned.
func OpenTrade(acct domain.Account, in OpenInput, now time.Time) (domain.Trade, domain.Account, error) {
	entry, err := ValidateOpen(acct, in)
	if err != nil {
		return domain.Trade{}, domain.Account{}, err
	}

	trade := domain.Trade{
		ID:           uuid.NewString(),
		AccountID:    acct.ID,
		UserID:       acct.UserID,
		ContractName: strings.TrimSpace(in.ContractName),
		Side:         in.Side,
		TradeSize:    in.TradeSize,
		EntryPrice:   entry,
		Commission:   Commission(in.TradeSize),
		Status:       domain.TradeOpen,
		OpenedAt:     now,
	}

	next := acct
	next.Balance = domain.AddMoney(acct.Balance, -trade.Commission)
	return trade, next, nil
}

// PnL is the profit of a position closed at exit, rounded to cents.
func PnL(side domain.Side, entry, exit, size float64) float64 {
	var pnl float64
	switch side {
	case domain.SideNo:
		pnl = (entry - exit) * (size / (1 - entry))
	default:
		pnl = (exit - entry) * (size / entry)
	}
	return domain.Round2(pnl)
}

// CloseResult is everything a close produces.
type CloseResult struct {
	Trade    domain.Trade
	Decision evaluation.Decision
}

// CloseTrade marks trade closed at the given exit quote and runs the rule
// engine once over the resulting P&L.
func CloseTrade(acct domain.Account, trade domain.Trade, exitPriceCents float64, now time.Time, opts evaluation.Options) (CloseResult, error) {
	if trade.AccountID != acct.ID {
		return CloseResult{}, fmt.Errorf("trading: trade %s on account %s: %w", trade.ID, acct.ID, domain.ErrNotFound)
	}
	if !acct.Status.Tradable() {
		return CloseResult{}, domain.NewValidationError(domain.KindAccountInactive, "account is %s", acct.Status)
	}
	exit, err := CentsToPrice(exitPriceCents)
	if err != nil {
		return CloseResult{}, err
	}
	if trade.Status != domain.TradeOpen {
		return CloseResult{}, domain.NewValidationError(domain.KindTradeClosed, "trade %s is already closed", trade.ID)
	}

	pnl := PnL(trade.Side, trade.EntryPrice, exit, trade.TradeSize)
	closedAt := now
	closed := trade
	closed.Status = domain.TradeClosed
	closed.ExitPrice = &exit
	closed.PnL = &pnl
	closed.ClosedAt = &closedAt

	return CloseResult{
		Trade:    closed,
		Decision: evaluation.Apply(acct, pnl, now, opts),
	}, nil
}

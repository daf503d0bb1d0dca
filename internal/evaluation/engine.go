// Package evaluation implements the rule engine that decides drawdown
// failures, profit-target passes and phase promotions after every closed
// trade.
package evaluation

import (
	"math"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Precedence controls how a drawdown failure interacts with a profit-target
// pass reached on the same trade.
type Precedence int

const (
	// LastCheckWins runs the target check after the drawdown check and lets
	// a pass overwrite a failure written by the same trade. Promotion never
	// touches status, so a failed account promoted in the same step stays
	// failed.
	LastCheckWins Precedence = iota
	// FailureFirst skips the target check once drawdown has failed the
	// account.
	FailureFirst
)

// ParsePrecedence maps the config spelling to a Precedence. Unknown values
// fall back to LastCheckWins.
func ParsePrecedence(s string) Precedence {
	if s == "failure_first" {
		return FailureFirst
	}
	return LastCheckWins
}

func (p Precedence) String() string {
	if p == FailureFirst {
		return "failure_first"
	}
	return "last_check_wins"
}

// Options tunes Apply.
type Options struct {
	Precedence Precedence
}

// Outcome summarises the transition Apply made.
type Outcome string

const (
	OutcomeNone     Outcome = "none"
	OutcomeFailed   Outcome = "failed"
	OutcomePassed   Outcome = "passed"
	OutcomePromoted Outcome = "promoted"
	// OutcomeRejected means the account was terminal and nothing changed.
	OutcomeRejected Outcome = "rejected"
)

// Decision is the result of applying one closed trade to an account.
type Decision struct {
	Account          domain.Account
	Outcome          Outcome
	DrawdownPct      float64
	ProfitPct        float64
	ConsistencyPct   float64
	DrawdownBreached bool
	TargetReached    bool
	Promoted         bool
}

// Apply folds the P&L of one closed trade into e and evaluates the
// drawdown, profit-target, minimum-trade and consistency rules. e is the
// account as it was before the trade closed; it is not modified.
func Apply(e domain.Account, pnl float64, now time.Time, opts Options) Decision {
	if !e.Status.Tradable() {
		return Decision{Account: e, Outcome: OutcomeRejected}
	}

	next := e
	next.Balance = domain.AddMoney(e.Balance, pnl)
	next.HighWaterMark = math.Max(e.HighWaterMark, next.Balance)
	if pnl > 0 {
		next.TotalProfit = domain.AddMoney(e.TotalProfit, pnl)
		next.LargestTradeProfit = math.Max(e.LargestTradeProfit, pnl)
	}
	if pnl < 0 {
		next.TotalLoss = domain.AddMoney(e.TotalLoss, math.Abs(pnl))
	}
	next.TradesCount = e.TradesCount + 1

	d := Decision{
		DrawdownPct: DrawdownPct(next.HighWaterMark, next.Balance),
		ProfitPct:   ProfitPct(next.StartingBalance, next.Balance),
	}

	// Funded accounts only keep books.
	if e.Status == domain.StatusFunded {
		d.Account = next
		d.Outcome = OutcomeNone
		return d
	}

	// Thresholds are compared exactly; the float ratios are for display.
	if domain.DeclineAtLeastPct(next.HighWaterMark, next.Balance, e.MaxDrawdownPct) {
		next.Status = domain.StatusFailed
		d.DrawdownBreached = true
	}

	checkTarget := !(d.DrawdownBreached && opts.Precedence == FailureFirst)
	if checkTarget && domain.GainAtLeastPct(next.StartingBalance, next.Balance, e.ProfitTargetPct) &&
		next.TradesCount >= e.MinTrades {
		d.TargetReached = true
		d.ConsistencyPct = ConsistencyPct(next.LargestTradeProfit, next.TotalProfit)
		if domain.ShareAtMostPct(next.LargestTradeProfit, next.TotalProfit, e.ConsistencyRulePct) {
			switch {
			case e.EvalType == domain.EvalTwoStep && e.Phase == 1:
				promote(&next, now)
				d.Promoted = true
			default:
				next.Status = domain.StatusPassed
			}
		}
	} else {
		d.ConsistencyPct = ConsistencyPct(next.LargestTradeProfit, next.TotalProfit)
	}

	d.Account = next
	switch {
	case next.Status == domain.StatusFailed:
		d.Outcome = OutcomeFailed
	case next.Status == domain.StatusPassed:
		d.Outcome = OutcomePassed
	case d.Promoted:
		d.Outcome = OutcomePromoted
	default:
		d.Outcome = OutcomeNone
	}
	return d
}

// promote resets a 2-step account in place under phase-2 rules.
func promote(a *domain.Account, now time.Time) {
	a.Phase = 2
	a.ProfitTargetPct = domain.PhaseTwoProfitTargetPct
	a.TotalProfit = 0
	a.TotalLoss = 0
	a.LargestTradeProfit = 0
	a.TradesCount = 0
	a.Balance = a.StartingBalance
	a.HighWaterMark = a.StartingBalance
	a.ExpiresAt = now.Add(domain.EvaluationWindow)
}

// DrawdownPct is the decline from the high-water mark in percent, 0 when the
// mark is not positive.
func DrawdownPct(hwm, balance float64) float64 {
	if hwm <= 0 {
		return 0
	}
	return (hwm - balance) / hwm * 100
}

// ProfitPct is the return on the starting balance in percent, 0 when the
// starting balance is not positive.
func ProfitPct(starting, balance float64) float64 {
	if starting <= 0 {
		return 0
	}
	return (balance - starting) / starting * 100
}

// ConsistencyPct is the share of total profit contributed by the single
// largest winning trade, 0 when there is no profit.
func ConsistencyPct(largest, totalProfit float64) float64 {
	if totalProfit == 0 {
		return 0
	}
	return largest / totalProfit * 100
}

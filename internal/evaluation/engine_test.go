package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func account(evalType domain.EvalType, mutate func(*domain.Account)) domain.Account {
	a := domain.NewAccount("user-1", evalType, 10_000, t0)
	a.ID = "acct-1"
	if mutate != nil {
		mutate(&a)
	}
	return a
}

func TestApplyBookkeeping(t *testing.T) {
	a := account(domain.EvalOneStep, nil)

	d := Apply(a, 125.5, t0, Options{})
	assert.Equal(t, OutcomeNone, d.Outcome)
	assert.Equal(t, 10_125.5, d.Account.Balance)
	assert.Equal(t, 10_125.5, d.Account.HighWaterMark)
	assert.Equal(t, 125.5, d.Account.TotalProfit)
	assert.Equal(t, 125.5, d.Account.LargestTradeProfit)
	assert.Zero(t, d.Account.TotalLoss)
	assert.Equal(t, 1, d.Account.TradesCount)

	d = Apply(d.Account, -25.5, t0, Options{})
	assert.Equal(t, 10_100.0, d.Account.Balance)
	assert.Equal(t, 10_125.5, d.Account.HighWaterMark)
	assert.Equal(t, 125.5, d.Account.TotalProfit)
	assert.Equal(t, 25.5, d.Account.TotalLoss)
	assert.Equal(t, 2, d.Account.TradesCount)

	// Input is not mutated.
	assert.Equal(t, 10_000.0, a.Balance)
	assert.Zero(t, a.TradesCount)
}

func TestApplyDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		pnl     float64
		outcome Outcome
		status  domain.AccountStatus
	}{
		{"just below limit", -599.99, OutcomeNone, domain.StatusActive},
		{"exactly at limit", -600, OutcomeFailed, domain.StatusFailed},
		{"beyond limit", -2_000, OutcomeFailed, domain.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Apply(account(domain.EvalOneStep, nil), tt.pnl, t0, Options{})
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.status, d.Account.Status)
		})
	}
}

func TestApplyDrawdownLimitWithCents(t *testing.T) {
	tests := []struct {
		hwm    float64
		pnl    float64
		status domain.AccountStatus
	}{
		{10_001, -600.06, domain.StatusFailed},
		{10_004, -600.24, domain.StatusFailed},
		{10_005, -600.30, domain.StatusFailed},
		{10_001, -600.05, domain.StatusActive},
	}
	for _, tt := range tests {
		a := account(domain.EvalOneStep, func(a *domain.Account) {
			a.Balance = tt.hwm
			a.HighWaterMark = tt.hwm
		})
		d := Apply(a, tt.pnl, t0, Options{})
		assert.Equal(t, tt.status, d.Account.Status, "hwm %v pnl %v", tt.hwm, tt.pnl)
		assert.Equal(t, tt.status == domain.StatusFailed, d.DrawdownBreached)
	}
}

func TestApplyDrawdownMeasuredFromHighWaterMark(t *testing.T) {
	a := account(domain.EvalOneStep, func(a *domain.Account) {
		a.Balance = 10_500
		a.HighWaterMark = 10_500
	})
	// 10500 -> 9870 is a 6% drawdown even though it is only 1.3% below start.
	d := Apply(a, -630, t0, Options{})
	assert.True(t, d.DrawdownBreached)
	assert.Equal(t, domain.StatusFailed, d.Account.Status)
}

func TestFailedAccountStaysFailed(t *testing.T) {
	d := Apply(account(domain.EvalOneStep, nil), -700, t0, Options{})
	require.Equal(t, domain.StatusFailed, d.Account.Status)

	next := Apply(d.Account, 5_000, t0, Options{})
	assert.Equal(t, OutcomeRejected, next.Outcome)
	assert.Equal(t, d.Account, next.Account)
}

func TestOneStepPassRequiresAllConditions(t *testing.T) {
	base := func(a *domain.Account) {
		a.TradesCount = 4
		a.TotalProfit = 1_000
		a.LargestTradeProfit = 200
		a.Balance = 11_000
		a.HighWaterMark = 11_000
	}

	tests := []struct {
		name    string
		mutate  func(*domain.Account)
		outcome Outcome
	}{
		{"all satisfied", base, OutcomePassed},
		{"too few trades", func(a *domain.Account) { base(a); a.TradesCount = 3 }, OutcomeNone},
		{"target not reached", func(a *domain.Account) {
			base(a)
			a.Balance = 10_500
			a.HighWaterMark = 10_500
		}, OutcomeNone},
		{"profit too concentrated", func(a *domain.Account) { base(a); a.LargestTradeProfit = 400 }, OutcomeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Apply(account(domain.EvalOneStep, tt.mutate), 100, t0, Options{})
			assert.Equal(t, tt.outcome, d.Outcome)
			if tt.outcome == OutcomePassed {
				assert.Equal(t, domain.StatusPassed, d.Account.Status)
			} else {
				assert.Equal(t, domain.StatusActive, d.Account.Status)
			}
		})
	}
}

// Each row closes the trade that lands exactly on the 10% target with the
// largest trade at exactly 20% of total profit.
func TestOneStepPassAtExactTarget(t *testing.T) {
	tests := []struct {
		starting float64
		prior    float64
		pnl      float64
		outcome  Outcome
	}{
		{10_003, 800.24, 200.06, OutcomePassed},
		{10_004, 800.32, 200.08, OutcomePassed},
		{10_008, 800.64, 200.16, OutcomePassed},
		{10_003, 800.24, 200.05, OutcomeNone},
	}
	for _, tt := range tests {
		a := account(domain.EvalOneStep, func(a *domain.Account) {
			a.StartingBalance = tt.starting
			a.Balance = domain.AddMoney(tt.starting, tt.prior)
			a.HighWaterMark = a.Balance
			a.TradesCount = 4
			a.TotalProfit = tt.prior
			a.LargestTradeProfit = tt.pnl
		})
		d := Apply(a, tt.pnl, t0, Options{})
		assert.Equal(t, tt.outcome, d.Outcome, "starting %v pnl %v", tt.starting, tt.pnl)
		assert.Equal(t, tt.outcome == OutcomePassed, d.TargetReached)
	}
}

func TestConsistencyFailureKeepsEvaluating(t *testing.T) {
	a := account(domain.EvalOneStep, func(a *domain.Account) {
		a.TradesCount = 4
		a.TotalProfit = 1_000
		a.LargestTradeProfit = 400
		a.Balance = 11_000
		a.HighWaterMark = 11_000
	})
	d := Apply(a, 100, t0, Options{})
	assert.True(t, d.TargetReached)
	assert.InDelta(t, 400.0/1_100*100, d.ConsistencyPct, 1e-9)
	assert.Equal(t, domain.StatusActive, d.Account.Status)
}

func TestTwoStepPromotion(t *testing.T) {
	a := account(domain.EvalTwoStep, func(a *domain.Account) {
		a.TradesCount = 1
		a.TotalProfit = 400
		a.LargestTradeProfit = 400
		a.TotalLoss = 50
		a.Balance = 10_400
		a.HighWaterMark = 10_400
	})
	now := t0.Add(10 * 24 * time.Hour)

	d := Apply(a, 400, now, Options{})
	require.Equal(t, OutcomePromoted, d.Outcome)
	got := d.Account
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, 2, got.Phase)
	assert.Equal(t, 4.0, got.ProfitTargetPct)
	assert.Equal(t, 10_000.0, got.Balance)
	assert.Equal(t, 10_000.0, got.HighWaterMark)
	assert.Zero(t, got.TradesCount)
	assert.Zero(t, got.TotalProfit)
	assert.Zero(t, got.TotalLoss)
	assert.Zero(t, got.LargestTradeProfit)
	assert.Equal(t, now.Add(30*24*time.Hour), got.ExpiresAt)
	assert.Equal(t, a.CreatedAt, got.CreatedAt)
}

func TestTwoStepPhaseTwoPass(t *testing.T) {
	a := account(domain.EvalTwoStep, func(a *domain.Account) {
		a.Phase = 2
		a.ProfitTargetPct = 4
		a.TradesCount = 1
		a.TotalProfit = 300
		a.LargestTradeProfit = 300
		a.Balance = 10_300
		a.HighWaterMark = 10_300
	})
	d := Apply(a, 300, t0, Options{})
	assert.Equal(t, OutcomePassed, d.Outcome)
	assert.Equal(t, domain.StatusPassed, d.Account.Status)
	assert.Equal(t, 2, d.Account.Phase)
}

// A trade that both breaches drawdown and reaches the target is resolved by
// the precedence option. The default lets the later target check overwrite
// the failure.
func TestSimultaneousFailAndPass(t *testing.T) {
	a := account(domain.EvalOneStep, func(a *domain.Account) {
		a.TradesCount = 4
		a.TotalProfit = 2_000
		a.LargestTradeProfit = 300
		a.Balance = 11_400
		a.HighWaterMark = 12_000
	})

	d := Apply(a, -300, t0, Options{Precedence: LastCheckWins})
	assert.True(t, d.DrawdownBreached)
	assert.True(t, d.TargetReached)
	assert.Equal(t, domain.StatusPassed, d.Account.Status)
	assert.Equal(t, OutcomePassed, d.Outcome)

	d = Apply(a, -300, t0, Options{Precedence: FailureFirst})
	assert.True(t, d.DrawdownBreached)
	assert.False(t, d.TargetReached)
	assert.Equal(t, domain.StatusFailed, d.Account.Status)
	assert.Equal(t, OutcomeFailed, d.Outcome)
}

func TestFailedPhaseOnePromotionKeepsFailedStatus(t *testing.T) {
	a := account(domain.EvalTwoStep, func(a *domain.Account) {
		a.TradesCount = 1
		a.TotalProfit = 1_500
		a.LargestTradeProfit = 700
		a.Balance = 11_300
		a.HighWaterMark = 12_000
	})
	d := Apply(a, -500, t0, Options{})
	assert.True(t, d.Promoted)
	assert.Equal(t, OutcomeFailed, d.Outcome)
	assert.Equal(t, domain.StatusFailed, d.Account.Status)
	assert.Equal(t, 2, d.Account.Phase)
	assert.Equal(t, 10_000.0, d.Account.Balance)
}

func TestFundedAccountsOnlyKeepBooks(t *testing.T) {
	a := account(domain.EvalOneStep, func(a *domain.Account) { a.Status = domain.StatusFunded })

	d := Apply(a, -5_000, t0, Options{})
	assert.Equal(t, OutcomeNone, d.Outcome)
	assert.Equal(t, domain.StatusFunded, d.Account.Status)
	assert.Equal(t, 5_000.0, d.Account.Balance)
	assert.Equal(t, 5_000.0, d.Account.TotalLoss)
	assert.Equal(t, 1, d.Account.TradesCount)
}

func TestRatioHelpersGuardZero(t *testing.T) {
	assert.Zero(t, DrawdownPct(0, -10))
	assert.Zero(t, ProfitPct(0, 100))
	assert.Zero(t, ConsistencyPct(50, 0))
	assert.Equal(t, 25.0, ConsistencyPct(50, 200))
}

func TestParsePrecedence(t *testing.T) {
	assert.Equal(t, FailureFirst, ParsePrecedence("failure_first"))
	assert.Equal(t, LastCheckWins, ParsePrecedence("last_check_wins"))
	assert.Equal(t, LastCheckWins, ParsePrecedence(""))
	assert.Equal(t, "failure_first", FailureFirst.String())
}

func TestProgressOf(t *testing.T) {
	a := account(domain.EvalOneStep, func(a *domain.Account) {
		a.Balance = 10_500
		a.HighWaterMark = 10_600
		a.TotalProfit = 700
		a.LargestTradeProfit = 210
		a.TradesCount = 3
	})

	p := ProgressOf(a, t0.Add(3*24*time.Hour+time.Hour))
	assert.Equal(t, 500.0, p.Profit)
	assert.Equal(t, 1_000.0, p.ProfitTarget)
	assert.InDelta(t, 50, p.ProfitProgressPct, 1e-9)
	assert.InDelta(t, 100.0/10_600*100, p.DrawdownUsedPct, 1e-9)
	assert.InDelta(t, 30, p.ConsistencyPct, 1e-9)
	assert.False(t, p.ConsistencyOK)
	assert.Equal(t, 3, p.DaysUsed)
	assert.Equal(t, 30, p.DaysTotal)

	a.Balance = 9_000
	p = ProgressOf(a, t0)
	assert.Zero(t, p.ProfitProgressPct)
}

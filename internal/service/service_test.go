package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/evaluation"
	"github.com/alanyoungcy/polyedge/internal/store/memory"
	"github.com/alanyoungcy/polyedge/internal/trading"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.AccountEvent
}

func (n *recordingNotifier) AccountEvent(_ context.Context, ev domain.AccountEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived map[string]int
}

func (a *recordingArchiver) ArchiveAccount(_ context.Context, acct domain.Account, trades []domain.Trade) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archived == nil {
		a.archived = map[string]int{}
	}
	a.archived[acct.ID] = len(trades)
	return "archive/" + acct.ID, nil
}

type testEnv struct {
	db       *memory.DB
	svc      *EvaluationService
	clock    *fakeClock
	bus      *memory.SignalBus
	notifier *recordingNotifier
	archiver *recordingArchiver
}

func newTestEnv(t *testing.T, rules evaluation.Options) *testEnv {
	t.Helper()
	db := memory.NewDB()
	env := &testEnv{
		db:       db,
		clock:    &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		bus:      memory.NewSignalBus(),
		notifier: &recordingNotifier{},
		archiver: &recordingArchiver{},
	}
	env.svc = NewEvaluationService(EvaluationDeps{
		Accounts: db.Accounts(),
		Trades:   db.Trades(),
		Ledger:   db.Ledger(),
		Audit:    db.Audit(),
		Locks:    memory.NewLockManager(),
		Bus:      env.bus,
		Notifier: env.notifier,
		Archiver: env.archiver,
	}, EvaluationOptions{Rules: rules, ArchiveOnClose: true}, nil)
	env.svc.now = env.clock.Now
	return env
}

func drainKinds(t *testing.T, ch <-chan []byte) []string {
	t.Helper()
	var kinds []string
	for {
		select {
		case msg := <-ch:
			var ev domain.AccountEvent
			require.NoError(t, json.Unmarshal(msg, &ev))
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()

	_, err := env.svc.CreateAccount(ctx, "u1", "3-step", 1000)
	assert.Equal(t, domain.KindInvalidEvalType, domain.ValidationKindOf(err))

	_, err = env.svc.CreateAccount(ctx, "u1", domain.EvalOneStep, 0)
	assert.Equal(t, domain.KindInvalidAccountSize, domain.ValidationKindOf(err))

	_, err = env.svc.CreateAccount(ctx, "", domain.EvalOneStep, 1000)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	acct, err := env.svc.CreateAccount(ctx, "u1", domain.EvalOneStep, 25000)
	require.NoError(t, err)
	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, 10.0, acct.ProfitTargetPct)
	assert.Equal(t, 5, acct.MinTrades)
	assert.Equal(t, env.clock.Now().Add(30*24*time.Hour), acct.ExpiresAt)
}

func TestTwoStepPromotionFlow(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	sess := Session{UserID: "trader-1"}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := env.bus.Subscribe(subCtx, domain.ChannelAccountEvents)
	require.NoError(t, err)

	acct, err := env.svc.CreateAccount(ctx, sess.UserID, domain.EvalTwoStep, 10000)
	require.NoError(t, err)

	trade, after, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "BTC above 120k?", Side: domain.SideYes, TradeSize: 1000, EntryPriceCents: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, trade.Commission)
	assert.Equal(t, 9990.0, after.Balance)
	assert.Equal(t, 10000.0, after.HighWaterMark)
	assert.Equal(t, int64(1), after.Version)

	env.clock.Advance(time.Hour)
	res, err := env.svc.CloseTrade(ctx, sess, acct.ID, trade.ID, 80)
	require.NoError(t, err)
	assert.Equal(t, 600.0, *res.Trade.PnL)
	assert.Equal(t, evaluation.OutcomeNone, res.Decision.Outcome)
	assert.Equal(t, 10590.0, res.Decision.Account.Balance)

	trade2, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "ETH flips BTC?", Side: domain.SideYes, TradeSize: 1200, EntryPriceCents: 40,
	})
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	res, err = env.svc.CloseTrade(ctx, sess, acct.ID, trade2.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, 600.0, *res.Trade.PnL)
	require.Equal(t, evaluation.OutcomePromoted, res.Decision.Outcome)

	view, err := env.svc.GetAccount(ctx, sess, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Account.Phase)
	assert.Equal(t, domain.StatusActive, view.Account.Status)
	assert.Equal(t, 10000.0, view.Account.Balance)
	assert.Equal(t, 4.0, view.Account.ProfitTargetPct)
	assert.Equal(t, 0, view.Account.TradesCount)
	assert.Equal(t, int64(4), view.Account.Version)
	assert.Equal(t, 0.0, view.Progress.DrawdownUsedPct)

	trades, err := env.svc.ListTrades(ctx, sess, acct.ID, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, trades, 2, "phase one trades stay listed")

	assert.Equal(t, []string{
		domain.EventCreated,
		domain.EventTradeOpened, domain.EventTradeClosed,
		domain.EventTradeOpened, domain.EventTradeClosed,
		domain.EventPromoted,
	}, drainKinds(t, events))
	assert.Equal(t, []string{domain.EventPromoted}, env.notifier.kinds())
	assert.Empty(t, env.archiver.archived, "promotion is not terminal")
}

func TestDrawdownFailureFlow(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	sess := Session{UserID: "trader-2"}

	acct, err := env.svc.CreateAccount(ctx, sess.UserID, domain.EvalOneStep, 1000)
	require.NoError(t, err)

	losing, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "Rain in Paris?", Side: domain.SideYes, TradeSize: 150, EntryPriceCents: 50,
	})
	require.NoError(t, err)
	other, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "Snow in Rome?", Side: domain.SideNo, TradeSize: 10, EntryPriceCents: 50,
	})
	require.NoError(t, err)

	res, err := env.svc.CloseTrade(ctx, sess, acct.ID, losing.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, -120.0, *res.Trade.PnL)
	assert.Equal(t, evaluation.OutcomeFailed, res.Decision.Outcome)
	assert.Equal(t, domain.StatusFailed, res.Decision.Account.Status)

	_, err = env.svc.CloseTrade(ctx, sess, acct.ID, other.ID, 50)
	assert.Equal(t, domain.KindAccountInactive, domain.ValidationKindOf(err))

	_, _, err = env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "x", Side: domain.SideYes, TradeSize: 1, EntryPriceCents: 50,
	})
	assert.Equal(t, domain.KindAccountInactive, domain.ValidationKindOf(err))

	assert.Equal(t, []string{domain.EventFailed}, env.notifier.kinds())
	assert.Equal(t, 2, env.archiver.archived[acct.ID])
}

func TestOpenTrade_ValidationLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	sess := Session{UserID: "u"}
	acct, err := env.svc.CreateAccount(ctx, sess.UserID, domain.EvalOneStep, 1000)
	require.NoError(t, err)

	cases := []struct {
		in   trading.OpenInput
		kind domain.ValidationKind
	}{
		{trading.OpenInput{ContractName: " ", Side: domain.SideYes, TradeSize: 10, EntryPriceCents: 50}, domain.KindMissingName},
		{trading.OpenInput{ContractName: "a", Side: domain.SideYes, TradeSize: 0, EntryPriceCents: 50}, domain.KindInvalidSize},
		{trading.OpenInput{ContractName: "a", Side: domain.SideYes, TradeSize: 10, EntryPriceCents: 100}, domain.KindInvalidPrice},
		{trading.OpenInput{ContractName: "a", Side: domain.SideYes, TradeSize: 151, EntryPriceCents: 50}, domain.KindSizeTooLarge},
		{trading.OpenInput{ContractName: "a", Side: "MAYBE", TradeSize: 10, EntryPriceCents: 50}, domain.KindInvalidSide},
	}
	for _, tc := range cases {
		_, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, tc.in)
		assert.Equal(t, tc.kind, domain.ValidationKindOf(err))
		assert.ErrorIs(t, err, domain.ErrValidation)
	}

	stored, err := env.db.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, stored.Balance)
	assert.Equal(t, int64(0), stored.Version)
}

func TestAccountsAreScopedToOwner(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	acct, err := env.svc.CreateAccount(ctx, "owner", domain.EvalOneStep, 1000)
	require.NoError(t, err)

	_, err = env.svc.GetAccount(ctx, Session{UserID: "intruder"}, acct.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = env.svc.OpenTrade(ctx, Session{UserID: "intruder"}, acct.ID, trading.OpenInput{
		ContractName: "a", Side: domain.SideYes, TradeSize: 10, EntryPriceCents: 50,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.ListAccounts(ctx, Session{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestConcurrentOpensAreSerialized(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	sess := Session{UserID: "u"}
	acct, err := env.svc.CreateAccount(ctx, sess.UserID, domain.EvalOneStep, 10000)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
				ContractName: "parallel", Side: domain.SideYes, TradeSize: 10, EntryPriceCents: 50,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := env.db.Accounts().GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stored.Version)
	assert.Equal(t, 9999.0, stored.Balance)
}

func TestCloseTrade_AlreadyClosed(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	sess := Session{UserID: "u"}
	acct, err := env.svc.CreateAccount(ctx, sess.UserID, domain.EvalOneStep, 10000)
	require.NoError(t, err)
	trade, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "a", Side: domain.SideNo, TradeSize: 100, EntryPriceCents: 30,
	})
	require.NoError(t, err)

	_, err = env.svc.CloseTrade(ctx, sess, acct.ID, trade.ID, 20)
	require.NoError(t, err)
	_, err = env.svc.CloseTrade(ctx, sess, acct.ID, trade.ID, 20)
	assert.Equal(t, domain.KindTradeClosed, domain.ValidationKindOf(err))

	_, err = env.svc.CloseTrade(ctx, sess, acct.ID, "missing", 20)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	sess := Session{UserID: "u"}
	acct, err := env.svc.CreateAccount(ctx, sess.UserID, domain.EvalOneStep, 10000)
	require.NoError(t, err)
	trade, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "a", Side: domain.SideYes, TradeSize: 100, EntryPriceCents: 50,
	})
	require.NoError(t, err)
	_, err = env.svc.CloseTrade(ctx, sess, acct.ID, trade.ID, 60)
	require.NoError(t, err)

	cal, err := env.svc.Calendar(ctx, sess, acct.ID, 2026, time.March, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cal.DailyPnL[2])
	assert.Equal(t, 1, cal.TradingDays)

	_, err = env.svc.Calendar(ctx, sess, acct.ID, 2026, 13, time.UTC)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExpirySweep(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	due, err := env.svc.CreateAccount(ctx, "u", domain.EvalOneStep, 1000)
	require.NoError(t, err)
	env.clock.Advance(10 * 24 * time.Hour)
	fresh, err := env.svc.CreateAccount(ctx, "u", domain.EvalOneStep, 1000)
	require.NoError(t, err)

	env.clock.Advance(21 * 24 * time.Hour)
	sweeper := NewExpirySweeper(env.svc, time.Minute, nil)
	assert.Equal(t, 1, sweeper.SweepOnce(ctx))
	assert.Equal(t, 0, sweeper.SweepOnce(ctx))

	got, err := env.db.Accounts().GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
	got, err = env.db.Accounts().GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	assert.Equal(t, []string{domain.EventExpired}, env.notifier.kinds())
	assert.Contains(t, env.archiver.archived, due.ID)
}

func TestExpirySweeperRunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewExpirySweeper(env.svc, 10*time.Millisecond, nil).Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestLeaderboardService(t *testing.T) {
	env := newTestEnv(t, evaluation.Options{})
	ctx := context.Background()
	sess := Session{UserID: "alice"}
	acct, err := env.svc.CreateAccount(ctx, sess.UserID, domain.EvalOneStep, 1000)
	require.NoError(t, err)
	_, err = env.svc.CreateAccount(ctx, "bob", domain.EvalOneStep, 1000)
	require.NoError(t, err)

	trade, _, err := env.svc.OpenTrade(ctx, sess, acct.ID, trading.OpenInput{
		ContractName: "a", Side: domain.SideYes, TradeSize: 100, EntryPriceCents: 50,
	})
	require.NoError(t, err)
	_, err = env.svc.CloseTrade(ctx, sess, acct.ID, trade.ID, 55)
	require.NoError(t, err)

	rows, err := NewLeaderboardService(env.db.Leaderboard()).Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1, "accounts without trades are not ranked")
	assert.Equal(t, "alice", rows[0].Trader)
	assert.Equal(t, 0.9, rows[0].ReturnPct)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/store/memory"
)

const (
	testWallet      = "0x52908400098527886e0f7030069857d2e4169ee7"
	testWalletCheck = "0x52908400098527886E0F7030069857D2E4169EE7"
)

type fakePortfolio struct {
	positions   []domain.Position
	activity    []domain.Activity
	err         error
	queriedWith atomic.Value
}

func (f *fakePortfolio) Positions(_ context.Context, wallet string) ([]domain.Position, error) {
	f.queriedWith.Store(wallet)
	return f.positions, f.err
}

func (f *fakePortfolio) Activity(_ context.Context, _ string) ([]domain.Activity, error) {
	return f.activity, f.err
}

type fakeProfiles struct {
	profile domain.Profile
	err     error
}

func (f *fakeProfiles) GetProfile(_ context.Context, _ string) (domain.Profile, error) {
	return f.profile, f.err
}

func TestNormalizeWallet(t *testing.T) {
	got, err := NormalizeWallet("  " + testWallet + " ")
	require.NoError(t, err)
	assert.Equal(t, testWalletCheck, got)

	for _, bad := range []string{"", "52908400098527886e0f7030069857d2e4169ee7", "0x1234", "0xZZ908400098527886e0f7030069857d2e4169ee7"} {
		_, err := NormalizeWallet(bad)
		assert.Equal(t, domain.KindInvalidWallet, domain.ValidationKindOf(err), bad)
	}
}

func TestAnalyticsService_LinkAndReport(t *testing.T) {
	db := memory.NewDB()
	data := &fakePortfolio{
		positions: []domain.Position{
			{Title: "won", CurPrice: domain.Num(1), CashPnl: domain.Num(40), Redeemable: true},
			{Title: "lost", CurPrice: domain.Num(0), CashPnl: domain.Num(-15)},
			{Title: "live", CurPrice: domain.Num(0.5), CashPnl: domain.Num(3)},
		},
		activity: []domain.Activity{
			{Type: "TRADE", Timestamp: domain.Num(1_700_000_000), Cash: domain.Num(20)},
		},
	}
	profiles := &fakeProfiles{profile: domain.Profile{Address: testWallet, Name: "whale"}}
	svc := NewAnalyticsService(data, profiles, db.Profiles(), nil)
	ctx := context.Background()
	sess := Session{UserID: "u1"}

	_, err := svc.MyReport(ctx, sess)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	linked, err := svc.LinkWallet(ctx, sess, testWallet)
	require.NoError(t, err)
	assert.Equal(t, testWalletCheck, linked)

	report, err := svc.MyReport(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, testWalletCheck, report.Wallet)
	assert.Equal(t, testWallet, data.queriedWith.Load())
	require.NotNil(t, report.Profile)
	assert.Equal(t, "whale", report.Profile.Name)
	assert.Equal(t, 2, report.Stats.TotalClosed)
	assert.Equal(t, 1, report.Stats.Won)
	assert.Len(t, report.Stats.Open, 1)
	assert.Equal(t, 1, report.Stats.TotalTrades)
	assert.Equal(t, 20.0, report.Stats.TotalVolume)
}

func TestAnalyticsService_Failures(t *testing.T) {
	ctx := context.Background()

	svc := NewAnalyticsService(&fakePortfolio{}, &fakeProfiles{err: errors.New("boom")}, memory.NewDB().Profiles(), nil)
	report, err := svc.Report(ctx, testWallet)
	require.NoError(t, err, "a failing profile lookup does not fail the report")
	assert.Nil(t, report.Profile)

	svc = NewAnalyticsService(&fakePortfolio{err: domain.ErrExternalService}, nil, memory.NewDB().Profiles(), nil)
	_, err = svc.Report(ctx, testWallet)
	assert.ErrorIs(t, err, domain.ErrExternalService)

	_, err = svc.Report(ctx, "not-a-wallet")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.LinkWallet(ctx, Session{}, testWallet)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

type fakeMarkets struct {
	calls   atomic.Int32
	markets []domain.Market
	err     error
}

func (f *fakeMarkets) GetMarkets(_ context.Context, _, _ int) ([]domain.Market, error) {
	f.calls.Add(1)
	return f.markets, f.err
}

func (f *fakeMarkets) SearchMarkets(_ context.Context, q string) ([]domain.Market, error) {
	return []domain.Market{{ID: "search", Question: q}}, f.err
}

func (f *fakeMarkets) GetEvents(_ context.Context, _ int) ([]domain.MarketEvent, error) {
	return []domain.MarketEvent{{ID: "ev"}}, f.err
}

func TestMarketService_CachesTopList(t *testing.T) {
	src := &fakeMarkets{markets: []domain.Market{{ID: "m1"}}}
	svc := NewMarketService(src, memory.NewMarketListCache(), time.Minute, 10, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.ListMarkets(ctx)
		require.NoError(t, err)
		assert.Equal(t, "m1", got[0].ID)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	got, err := svc.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, "m1", got[0].ID)

	got, err = svc.Search(ctx, "election")
	require.NoError(t, err)
	assert.Equal(t, "election", got[0].Question)

	events, err := svc.Events(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMarketService_ServesStaleOnFailure(t *testing.T) {
	src := &fakeMarkets{markets: []domain.Market{{ID: "m1"}}}
	// A negative ttl makes every cached entry immediately stale.
	svc := NewMarketService(src, memory.NewMarketListCache(), -time.Second, 10, nil)
	ctx := context.Background()

	_, err := svc.ListMarkets(ctx)
	require.NoError(t, err)

	src.err = domain.ErrExternalService
	got, err := svc.ListMarkets(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestMarketService_ColdCacheFailure(t *testing.T) {
	src := &fakeMarkets{err: domain.ErrExternalService}
	svc := NewMarketService(src, memory.NewMarketListCache(), time.Minute, 10, nil)
	_, err := svc.ListMarkets(context.Background())
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestSelectionService(t *testing.T) {
	db := memory.NewDB()
	ctx := context.Background()
	sess := Session{UserID: "u1"}
	svc := NewSelectionService(db.Accounts(), memory.NewSelectionStore(), nil)

	_, err := svc.Selected(ctx, sess)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := domain.NewAccount(sess.UserID, domain.EvalOneStep, 1000, t0)
	older.ID = "older"
	newer := domain.NewAccount(sess.UserID, domain.EvalTwoStep, 5000, t0.Add(time.Hour))
	newer.ID = "newer"
	require.NoError(t, db.Accounts().Create(ctx, older))
	require.NoError(t, db.Accounts().Create(ctx, newer))

	got, err := svc.Selected(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "newer", got.ID)

	got, err = svc.Select(ctx, sess, "older")
	require.NoError(t, err)
	assert.Equal(t, "older", got.ID)

	got, err = svc.Selected(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "older", got.ID, "selection survives a reload")

	_, err = svc.Select(ctx, sess, "someone-elses")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLeaderboardService_ClampsLimit(t *testing.T) {
	db := memory.NewDB()
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		a := domain.NewAccount("u", domain.EvalOneStep, 1000, time.Unix(int64(i), 0))
		a.ID = fmt.Sprintf("acct-%03d", i)
		a.TradesCount = 1
		require.NoError(t, db.Accounts().Create(ctx, a))
	}
	svc := NewLeaderboardService(db.Leaderboard())

	rows, err := svc.Top(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 50)

	rows, err = svc.Top(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, rows, 100)
}

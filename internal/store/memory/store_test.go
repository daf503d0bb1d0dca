package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func seed(t *testing.T, db *DB, id, user string, created time.Time) domain.Account {
	t.Helper()
	a := domain.NewAccount(user, domain.EvalOneStep, 10_000, created)
	a.ID = id
	require.NoError(t, db.Accounts().Create(context.Background(), a))
	return a
}

func TestAccountsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, db, "old", "u1", base)
	seed(t, db, "new", "u1", base.Add(time.Hour))
	seed(t, db, "other", "u2", base)

	got, err := db.Accounts().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	require.NoError(t, db.Accounts().UpdateStatus(ctx, "old", domain.StatusFailed, 0))
	got, err = db.Accounts().ListByUser(ctx, "u1", domain.StatusActive, domain.StatusFunded)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)

	err = db.Accounts().Create(ctx, got[0])
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestLedgerVersionCheck(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	a := seed(t, db, "a", "u1", time.Now())

	trade := domain.Trade{ID: "t1", AccountID: "a", Status: domain.TradeOpen}
	next := a
	next.Balance -= 1
	next.Version = a.Version + 1
	require.NoError(t, db.Ledger().ApplyOpen(ctx, trade, next))

	// A second write computed from the same stale read must fail.
	stale := a
	stale.Balance -= 2
	stale.Version = a.Version + 1
	err := db.Ledger().ApplyOpen(ctx, domain.Trade{ID: "t2", AccountID: "a"}, stale)
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored, err := db.Accounts().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 9_999.0, stored.Balance)
	_, err = db.Trades().GetByID(ctx, "t2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	closed := trade
	closed.Status = domain.TradeClosed
	after := stored
	after.Version++
	require.NoError(t, db.Ledger().ApplyClose(ctx, closed, after))

	again := after
	again.Version++
	err = db.Ledger().ApplyClose(ctx, closed, again)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLeaderboardRanksByReturn(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	now := time.Now()

	for id, bal := range map[string]float64{"a": 10_500, "b": 11_000, "c": 9_000} {
		a := seed(t, db, id, "user-"+id, now)
		a.Balance = bal
		a.TradesCount = 3
		a.Version = 1
		require.NoError(t, db.Ledger().ApplyOpen(ctx, domain.Trade{ID: "t-" + id, AccountID: id}, a))
	}
	seed(t, db, "idle", "user-idle", now)

	rows, err := db.Leaderboard().List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "user-b", rows[0].Trader)
	assert.Equal(t, 10.0, rows[0].ReturnPct)
	assert.Equal(t, "user-a", rows[1].Trader)
}

func TestLockManagerSerializes(t *testing.T) {
	ctx := context.Background()
	m := NewLockManager()

	unlock, err := m.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(short, "k", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock() // idempotent
	unlock2, err := m.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	unlock2()
}

func TestMarketListCacheFreshness(t *testing.T) {
	ctx := context.Background()
	c := NewMarketListCache()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	_, _, err := c.GetMarkets(ctx, "top")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, c.SetMarkets(ctx, "top", []domain.Market{{ID: "m1"}}, 30*time.Second))
	got, fresh, err := c.GetMarkets(ctx, "top")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Len(t, got, 1)

	clock = clock.Add(31 * time.Second)
	_, fresh, err = c.GetMarkets(ctx, "top")
	require.NoError(t, err)
	assert.False(t, fresh)
}

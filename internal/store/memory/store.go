// Package memory provides in-process implementations of the domain store,
// lock, bus and KV interfaces. They back store = "memory" mode, the admin
// CLI's dry runs and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// DB is a shared in-memory dataset. The typed stores returned by its
// accessors all read and write the same maps under one lock, so the ledger
// can update a trade and its account atomically.
type DB struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	trades   map[string]domain.Trade
	order    []string // trade ids in insertion order
	wallets  map[string]string
	audit    []domain.AuditEntry
}

// NewDB creates an empty dataset.
func NewDB() *DB {
	return &DB{
		accounts: make(map[string]domain.Account),
		trades:   make(map[string]domain.Trade),
		wallets:  make(map[string]string),
	}
}

func (db *DB) Accounts() *AccountStore { return &AccountStore{db: db} }
func (db *DB) Trades() *TradeStore { return &TradeStore{db: db} }
func (db *DB) Ledger() *Ledger { return &Ledger{db: db} }
func (db *DB) Leaderboard() *LeaderboardStore { return &LeaderboardStore{db: db} }
func (db *DB) Profiles() *ProfileStore { return &ProfileStore{db: db} }
func (db *DB) Audit() *AuditStore { return &AuditStore{db: db} }

// AccountStore implements domain.AccountStore.
type AccountStore struct{ db *DB }

func (s *AccountStore) Create(_ context.Context, acct domain.Account) error {
	if acct.ID == "" {
		return fmt.Errorf("memory: create account: empty id")
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.accounts[acct.ID]; ok {
		return fmt.Errorf("memory: create account %s: %w", acct.ID, domain.ErrAlreadyExists)
	}
	s.db.accounts[acct.ID] = acct
	return nil
}

func (s *AccountStore) GetByID(_ context.Context, id string) (domain.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	acct, ok := s.db.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("memory: account %s: %w", id, domain.ErrNotFound)
	}
	return acct, nil
}

func (s *AccountStore) ListByUser(_ context.Context, userID string, statuses ...domain.AccountStatus) ([]domain.Account, error) {
	want := make(map[domain.AccountStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.db.mu.RLock()
	out := make([]domain.Account, 0)
	for _, a := range s.db.accounts {
		if a.UserID != userID {
			continue
		}
		if len(want) > 0 && !want[a.Status] {
			continue
		}
		out = append(out, a)
	}
	s.db.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (s *AccountStore) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Account, error) {
	s.db.mu.RLock()
	out := make([]domain.Account, 0)
	for _, a := range s.db.accounts {
		if a.Status.Tradable() && a.ExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AccountStore) UpdateStatus(_ context.Context, id string, status domain.AccountStatus, expectedVersion int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	acct, ok := s.db.accounts[id]
	if !ok {
		return fmt.Errorf("memory: account %s: %w", id, domain.ErrNotFound)
	}
	if acct.Version != expectedVersion {
		return fmt.Errorf("memory: account %s at version %d, expected %d: %w", id, acct.Version, expectedVersion, domain.ErrConflict)
	}
	acct.Status = status
	acct.Version++
	s.db.accounts[id] = acct
	return nil
}

// TradeStore implements domain.TradeStore.
type TradeStore struct{ db *DB }

func (s *TradeStore) GetByID(_ context.Context, id string) (domain.Trade, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	t, ok := s.db.trades[id]
	if !ok {
		return domain.Trade{}, fmt.Errorf("memory: trade %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// ListByAccount returns the account's trades newest first.
func (s *TradeStore) ListByAccount(_ context.Context, accountID string, opts domain.ListOpts) ([]domain.Trade, error) {
	s.db.mu.RLock()
	out := make([]domain.Trade, 0)
	for i := len(s.db.order) - 1; i >= 0; i-- {
		t := s.db.trades[s.db.order[i]]
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	s.db.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return paginate(out, opts), nil
}

// Ledger implements domain.Ledger.
type Ledger struct{ db *DB }

func (l *Ledger) ApplyOpen(_ context.Context, trade domain.Trade, acct domain.Account) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	if err := l.checkVersion(acct); err != nil {
		return err
	}
	if _, ok := l.db.trades[trade.ID]; ok {
		return fmt.Errorf("memory: trade %s: %w", trade.ID, domain.ErrAlreadyExists)
	}
	l.db.trades[trade.ID] = trade
	l.db.order = append(l.db.order, trade.ID)
	l.db.accounts[acct.ID] = acct
	return nil
}

func (l *Ledger) ApplyClose(_ context.Context, trade domain.Trade, acct domain.Account) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	if err := l.checkVersion(acct); err != nil {
		return err
	}
	cur, ok := l.db.trades[trade.ID]
	if !ok {
		return fmt.Errorf("memory: trade %s: %w", trade.ID, domain.ErrNotFound)
	}
	if cur.Status != domain.TradeOpen {
		return fmt.Errorf("memory: trade %s already closed: %w", trade.ID, domain.ErrConflict)
	}
	l.db.trades[trade.ID] = trade
	l.db.accounts[acct.ID] = acct
	return nil
}

// checkVersion must be called with the write lock held.
func (l *Ledger) checkVersion(acct domain.Account) error {
	cur, ok := l.db.accounts[acct.ID]
	if !ok {
		return fmt.Errorf("memory: account %s: %w", acct.ID, domain.ErrNotFound)
	}
	if cur.Version != acct.Version-1 {
		return fmt.Errorf("memory: account %s at version %d, write based on %d: %w",
			acct.ID, cur.Version, acct.Version-1, domain.ErrConflict)
	}
	return nil
}

// LeaderboardStore implements domain.LeaderboardStore over the same rows the
// Postgres view selects: every account that has closed at least one trade,
// ranked by return.
type LeaderboardStore struct{ db *DB }

func (s *LeaderboardStore) List(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.db.mu.RLock()
	out := make([]domain.LeaderboardEntry, 0)
	for _, a := range s.db.accounts {
		if a.TradesCount == 0 || a.StartingBalance <= 0 {
			continue
		}
		out = append(out, domain.LeaderboardEntry{
			Trader:      a.UserID,
			AccountSize: a.AccountSize,
			EvalType:    a.EvalType,
			ReturnPct:   domain.Round2((a.Balance - a.StartingBalance) / a.StartingBalance * 100),
			TradesCount: a.TradesCount,
			Status:      a.Status,
		})
	}
	s.db.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReturnPct != out[j].ReturnPct {
			return out[i].ReturnPct > out[j].ReturnPct
		}
		return out[i].Trader < out[j].Trader
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProfileStore implements domain.ProfileStore.
type ProfileStore struct{ db *DB }

func (s *ProfileStore) SetWallet(_ context.Context, userID, wallet string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.wallets[userID] = wallet
	return nil
}

func (s *ProfileStore) GetWallet(_ context.Context, userID string) (string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	w, ok := s.db.wallets[userID]
	if !ok {
		return "", fmt.Errorf("memory: wallet for %s: %w", userID, domain.ErrNotFound)
	}
	return w, nil
}

// AuditStore implements domain.AuditStore.
type AuditStore struct{ db *DB }

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.audit = append(s.db.audit, domain.AuditEntry{
		ID:        int64(len(s.db.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.db.mu.RLock()
	out := make([]domain.AuditEntry, 0, len(s.db.audit))
	for i := len(s.db.audit) - 1; i >= 0; i-- {
		out = append(out, s.db.audit[i])
	}
	s.db.mu.RUnlock()
	return paginate(out, opts), nil
}

func sortNewestFirst(accts []domain.Account) {
	sort.SliceStable(accts, func(i, j int) bool {
		if !accts[i].CreatedAt.Equal(accts[j].CreatedAt) {
			return accts[i].CreatedAt.After(accts[j].CreatedAt)
		}
		return accts[i].ID > accts[j].ID
	})
}

func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return in[:0]
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && len(in) > opts.Limit {
		in = in[:opts.Limit]
	}
	return in
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// AccountStore persists evaluation accounts.
type AccountStore interface {
	Create(ctx context.Context, acct Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	// ListByUser returns the user's accounts newest first, optionally limited
	// to the given statuses.
	ListByUser(ctx context.Context, userID string, statuses ...AccountStatus) ([]Account, error)
	// ListExpired returns tradable accounts whose ExpiresAt is before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Account, error)
	// UpdateStatus sets the status if the stored version still equals
	// expectedVersion, bumping the version. ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id string, status AccountStatus, expectedVersion int64) error
}

// TradeStore reads simulated trades.
type TradeStore interface {
	GetByID(ctx context.Context, id string) (Trade, error)
	ListByAccount(ctx context.Context, accountID string, opts ListOpts) ([]Trade, error)
}

// Ledger applies a trade mutation and the resulting account state in a single
// transaction. Both methods fail with ErrConflict when the stored account
// version differs from acct.Version-1, which means acct was computed from a
// stale read.
type Ledger interface {
	ApplyOpen(ctx context.Context, trade Trade, acct Account) error
	ApplyClose(ctx context.Context, trade Trade, acct Account) error
}

// LeaderboardStore reads the public leaderboard.
type LeaderboardStore interface {
	List(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// ProfileStore keeps the external wallet linked to each user.
type ProfileStore interface {
	SetWallet(ctx context.Context, userID, wallet string) error
	GetWallet(ctx context.Context, userID string) (string, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

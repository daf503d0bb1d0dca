package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountSelectCols = `id, user_id, eval_type, account_size,
	profit_target_pct, max_drawdown_pct, consistency_rule_pct, min_trades,
	phase, status, starting_balance, balance, high_water_mark,
	trades_count, total_profit, total_loss, largest_trade_profit,
	created_at, expires_at, version`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var evalType, status string
	err := row.Scan(
		&a.ID, &a.UserID, &evalType, &a.AccountSize,
		&a.ProfitTargetPct, &a.MaxDrawdownPct, &a.ConsistencyRulePct, &a.MinTrades,
		&a.Phase, &status, &a.StartingBalance, &a.Balance, &a.HighWaterMark,
		&a.TradesCount, &a.TotalProfit, &a.TotalLoss, &a.LargestTradeProfit,
		&a.CreatedAt, &a.ExpiresAt, &a.Version,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.EvalType = domain.EvalType(evalType)
	a.Status = domain.AccountStatus(status)
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]domain.Account, error) {
	defer rows.Close()
	out := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a new evaluation account.
func (s *AccountStore) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO evaluations (
			id, user_id, eval_type, account_size,
			profit_target_pct, max_drawdown_pct, consistency_rule_pct, min_trades,
			phase, status, starting_balance, balance, high_water_mark,
			trades_count, total_profit, total_loss, largest_trade_profit,
			created_at, expires_at, version
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20
		)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.UserID, string(a.EvalType), a.AccountSize,
		a.ProfitTargetPct, a.MaxDrawdownPct, a.ConsistencyRulePct, a.MinTrades,
		a.Phase, string(a.Status), a.StartingBalance, a.Balance, a.HighWaterMark,
		a.TradesCount, a.TotalProfit, a.TotalLoss, a.LargestTradeProfit,
		a.CreatedAt, a.ExpiresAt, a.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: create account %s: %w", a.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create account %s: %w", a.ID, err)
	}
	return nil
}

// GetByID retrieves a single account.
func (s *AccountStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountSelectCols+` FROM evaluations WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, fmt.Errorf("postgres: account %s: %w", id, domain.ErrNotFound)
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, err)
	}
	return a, nil
}

// ListByUser returns the user's accounts newest first.
func (s *AccountStore) ListByUser(ctx context.Context, userID string, statuses ...domain.AccountStatus) ([]domain.Account, error) {
	query := `SELECT ` + accountSelectCols + ` FROM evaluations WHERE user_id = $1`
	args := []any{userID}
	if len(statuses) > 0 {
		ss := make([]string, len(statuses))
		for i, st := range statuses {
			ss[i] = string(st)
		}
		query += ` AND status = ANY($2)`
		args = append(args, ss)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list accounts for %s: %w", userID, err)
	}
	accts, err := collectAccounts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan accounts: %w", err)
	}
	return accts, nil
}

// ListExpired returns active or funded accounts past their expiry.
func (s *AccountStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountSelectCols+` FROM evaluations
		 WHERE status IN ('active', 'funded') AND expires_at < $1
		 ORDER BY expires_at ASC
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired accounts: %w", err)
	}
	accts, err := collectAccounts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expired accounts: %w", err)
	}
	return accts, nil
}

// UpdateStatus sets status when the stored version matches.
func (s *AccountStore) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, expectedVersion int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE evaluations SET status = $2, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $3`, id, string(status), expectedVersion)
	if err != nil {
		return fmt.Errorf("postgres: update account %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// missOrConflict explains a zero-row versioned update.
func (s *AccountStore) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM evaluations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check account %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("postgres: account %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("postgres: account %s: %w", id, domain.ErrConflict)
}

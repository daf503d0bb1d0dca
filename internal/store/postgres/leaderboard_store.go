package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// LeaderboardStore reads the leaderboard view.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

// List returns the top rows by return.
func (s *LeaderboardStore) List(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT trader, account_size, eval_type, return_pct, trades_count, status
		 FROM leaderboard ORDER BY return_pct DESC, trader ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		var evalType, status string
		if err := rows.Scan(&e.Trader, &e.AccountSize, &evalType, &e.ReturnPct, &e.TradesCount, &status); err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard row: %w", err)
		}
		e.EvalType = domain.EvalType(evalType)
		e.Status = domain.AccountStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ProfileStore keeps per-user profile fields.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// SetWallet links an external wallet address to the user.
func (s *ProfileStore) SetWallet(ctx context.Context, userID, wallet string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, polymarket_wallet) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET polymarket_wallet = EXCLUDED.polymarket_wallet, updated_at = NOW()`,
		userID, wallet)
	if err != nil {
		return fmt.Errorf("postgres: set wallet for %s: %w", userID, err)
	}
	return nil
}

// GetWallet returns the linked wallet, or ErrNotFound.
func (s *ProfileStore) GetWallet(ctx context.Context, userID string) (string, error) {
	var wallet *string
	err := s.pool.QueryRow(ctx, `SELECT polymarket_wallet FROM profiles WHERE user_id = $1`, userID).Scan(&wallet)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (wallet == nil || *wallet == "")) {
		return "", fmt.Errorf("postgres: wallet for %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get wallet for %s: %w", userID, err)
	}
	return *wallet, nil
}

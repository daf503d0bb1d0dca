package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, evaluation_id, user_id, contract_name, side,
	trade_size, entry_price, commission, status, opened_at,
	exit_price, pnl, closed_at`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var side, status string
	err := row.Scan(
		&t.ID, &t.AccountID, &t.UserID, &t.ContractName, &side,
		&t.TradeSize, &t.EntryPrice, &t.Commission, &status, &t.OpenedAt,
		&t.ExitPrice, &t.PnL, &t.ClosedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Side = domain.Side(side)
	t.Status = domain.TradeStatus(status)
	return t, nil
}

// GetByID retrieves a single trade.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx, `SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, fmt.Errorf("postgres: trade %s: %w", id, domain.ErrNotFound)
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByAccount returns an account's trades newest first, including those
// from before a phase promotion.
func (s *TradeStore) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE evaluation_id = $1 ORDER BY opened_at DESC, id`
	args := []any{accountID}
	argIdx := 2
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", accountID, err)
	}
	defer rows.Close()

	out := make([]domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades rows: %w", err)
	}
	return out, nil
}

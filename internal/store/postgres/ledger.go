package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Ledger implements domain.Ledger. Each call writes the trade row and the
// account row in one transaction; the account update is guarded by its
// version so a write computed from a stale read is rejected.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a new Ledger backed by the given pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

const updateAccountState = `
	UPDATE evaluations SET
		profit_target_pct    = $3,
		phase                = $4,
		status               = $5,
		balance              = $6,
		high_water_mark      = $7,
		trades_count         = $8,
		total_profit         = $9,
		total_loss           = $10,
		largest_trade_profit = $11,
		expires_at           = $12,
		version              = $13,
		updated_at           = NOW()
	WHERE id = $1 AND version = $2`

func updateAccount(ctx context.Context, tx pgx.Tx, a domain.Account) error {
	tag, err := tx.Exec(ctx, updateAccountState,
		a.ID, a.Version-1,
		a.ProfitTargetPct, a.Phase, string(a.Status),
		a.Balance, a.HighWaterMark,
		a.TradesCount, a.TotalProfit, a.TotalLoss, a.LargestTradeProfit,
		a.ExpiresAt, a.Version,
	)
	if err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s moved past version %d: %w", a.ID, a.Version-1, domain.ErrConflict)
	}
	return nil
}

// ApplyOpen inserts trade and writes acct.
func (l *Ledger) ApplyOpen(ctx context.Context, t domain.Trade, acct domain.Account) error {
	const insert = `
		INSERT INTO trades (
			id, evaluation_id, user_id, contract_name, side,
			trade_size, entry_price, commission, status, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	err := withTx(ctx, l.pool, func(tx pgx.Tx) error {
		if err := updateAccount(ctx, tx, acct); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insert,
			t.ID, t.AccountID, t.UserID, t.ContractName, string(t.Side),
			t.TradeSize, t.EntryPrice, t.Commission, string(t.Status), t.OpenedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: apply open %s: %w", t.ID, err)
	}
	return nil
}

// ApplyClose closes trade and writes acct. A trade that is no longer open is
// reported as ErrConflict.
func (l *Ledger) ApplyClose(ctx context.Context, t domain.Trade, acct domain.Account) error {
	const closeTrade = `
		UPDATE trades SET status = 'closed', exit_price = $2, pnl = $3, closed_at = $4
		WHERE id = $1 AND status = 'open'`

	err := withTx(ctx, l.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, closeTrade, t.ID, t.ExitPrice, t.PnL, t.ClosedAt)
		if err != nil {
			return fmt.Errorf("close trade: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("trade %s is not open: %w", t.ID, domain.ErrConflict)
		}
		return updateAccount(ctx, tx, acct)
	})
	if err != nil {
		return fmt.Errorf("postgres: apply close %s: %w", t.ID, err)
	}
	return nil
}

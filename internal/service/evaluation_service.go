package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/evaluation"
	"github.com/alanyoungcy/polyedge/internal/trading"
)

// EventNotifier receives account events worth telling a human about.
type EventNotifier interface {
	AccountEvent(ctx context.Context, ev domain.AccountEvent) error
}

// EvaluationDeps are the collaborators of EvaluationService. Bus, Notifier
// and Archiver are optional.
type EvaluationDeps struct {
	Accounts domain.AccountStore
	Trades   domain.TradeStore
	Ledger   domain.Ledger
	Audit    domain.AuditStore
	Locks    domain.LockManager
	Bus      domain.SignalBus
	Notifier EventNotifier
	Archiver domain.Archiver
}

// EvaluationOptions tunes EvaluationService.
type EvaluationOptions struct {
	Rules   evaluation.Options
	LockTTL time.Duration
	// ArchiveOnClose uploads an account and its trades once it reaches a
	// terminal status.
	ArchiveOnClose bool
}

// EvaluationService runs trades against evaluation accounts. Writes to one
// account are serialized by a per-account lock, and every ledger write
// carries the next account version so a stale write fails with
// domain.ErrConflict.
type EvaluationService struct {
	deps   EvaluationDeps
	opts   EvaluationOptions
	now    func() time.Time
	logger *slog.Logger
}

// NewEvaluationService creates an EvaluationService.
func NewEvaluationService(deps EvaluationDeps, opts EvaluationOptions, logger *slog.Logger) *EvaluationService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluationService{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		logger: logger.With(slog.String("component", "evaluation_service")),
	}
}

// AccountView is an account with its dashboard progress.
type AccountView struct {
	Account  domain.Account
	Progress evaluation.Progress
}

// CreateAccount grants userID a fresh evaluation using the programme preset.
func (s *EvaluationService) CreateAccount(ctx context.Context, userID string, evalType domain.EvalType, size float64) (domain.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Account{}, fmt.Errorf("evaluation_service: create: %w", domain.ErrUnauthorized)
	}
	if !evalType.Valid() {
		return domain.Account{}, domain.NewValidationError(domain.KindInvalidEvalType, "eval type must be 1-step or 2-step, got %q", evalType)
	}
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return domain.Account{}, domain.NewValidationError(domain.KindInvalidAccountSize, "account size must be positive")
	}

	acct := domain.NewAccount(userID, evalType, size, s.now().UTC())
	acct.ID = uuid.NewString()
	if err := s.deps.Accounts.Create(ctx, acct); err != nil {
		return domain.Account{}, fmt.Errorf("evaluation_service: create account: %w", err)
	}

	s.logger.InfoContext(ctx, "evaluation_service: account created",
		slog.String("account_id", acct.ID),
		slog.String("user_id", userID),
		slog.String("eval_type", string(evalType)),
		slog.Float64("size", size),
	)
	s.audit(ctx, domain.EventCreated, map[string]any{
		"account_id": acct.ID,
		"user_id":    userID,
		"eval_type":  string(evalType),
		"size":       size,
	})
	s.publish(ctx, eventFor(domain.EventCreated, acct, nil, s.now()))
	return acct, nil
}

// ListAccounts returns the caller's accounts newest first.
func (s *EvaluationService) ListAccounts(ctx context.Context, sess Session) ([]domain.Account, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	accts, err := s.deps.Accounts.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("evaluation_service: list accounts: %w", err)
	}
	return accts, nil
}

// GetAccount returns one of the caller's accounts with its progress.
func (s *EvaluationService) GetAccount(ctx context.Context, sess Session, accountID string) (AccountView, error) {
	acct, err := s.ownedAccount(ctx, sess, accountID)
	if err != nil {
		return AccountView{}, err
	}
	return AccountView{Account: acct, Progress: evaluation.ProgressOf(acct, s.now())}, nil
}

// ListTrades returns an account's trades newest first.
func (s *EvaluationService) ListTrades(ctx context.Context, sess Session, accountID string, opts domain.ListOpts) ([]domain.Trade, error) {
	if _, err := s.ownedAccount(ctx, sess, accountID); err != nil {
		return nil, err
	}
	trades, err := s.deps.Trades.ListByAccount(ctx, accountID, opts)
	if err != nil {
		return nil, fmt.Errorf("evaluation_service: list trades: %w", err)
	}
	return trades, nil
}

// Calendar returns the month's closed-trade P&L for an account, bucketed in
// loc.
func (s *EvaluationService) Calendar(ctx context.Context, sess Session, accountID string, year int, month time.Month, loc *time.Location) (trading.MonthCalendar, error) {
	if month < time.January || month > time.December {
		return trading.MonthCalendar{}, fmt.Errorf("evaluation_service: calendar month %d: %w", month, domain.ErrValidation)
	}
	trades, err := s.ListTrades(ctx, sess, accountID, domain.ListOpts{})
	if err != nil {
		return trading.MonthCalendar{}, err
	}
	return trading.Calendar(trades, year, month, loc), nil
}

// OpenTrade opens a simulated trade and charges its commission.
func (s *EvaluationService) OpenTrade(ctx context.Context, sess Session, accountID string, in trading.OpenInput) (domain.Trade, domain.Account, error) {
	if err := sess.validate(); err != nil {
		return domain.Trade{}, domain.Account{}, err
	}
	unlock, err := s.lock(ctx, accountID)
	if err != nil {
		return domain.Trade{}, domain.Account{}, err
	}
	defer unlock()

	acct, err := s.ownedAccount(ctx, sess, accountID)
	if err != nil {
		return domain.Trade{}, domain.Account{}, err
	}

	now := s.now().UTC()
	trade, next, err := trading.OpenTrade(acct, in, now)
	if err != nil {
		return domain.Trade{}, domain.Account{}, err
	}
	next.Version = acct.Version + 1
	if err := s.deps.Ledger.ApplyOpen(ctx, trade, next); err != nil {
		return domain.Trade{}, domain.Account{}, fmt.Errorf("evaluation_service: open trade: %w", err)
	}

	s.logger.InfoContext(ctx, "evaluation_service: trade opened",
		slog.String("account_id", acct.ID),
		slog.String("trade_id", trade.ID),
		slog.String("side", string(trade.Side)),
		slog.Float64("size", trade.TradeSize),
		slog.Float64("entry", trade.EntryPrice),
	)
	s.audit(ctx, domain.EventTradeOpened, map[string]any{
		"account_id": acct.ID,
		"trade_id":   trade.ID,
		"size":       trade.TradeSize,
		"commission": trade.Commission,
	})
	s.publish(ctx, eventFor(domain.EventTradeOpened, next, &trade, now))
	return trade, next, nil
}

// CloseTrade closes an open trade at exitPriceCents, applies the P&L and
// runs the evaluation rules.
func (s *EvaluationService) CloseTrade(ctx context.Context, sess Session, accountID, tradeID string, exitPriceCents float64) (trading.CloseResult, error) {
	if err := sess.validate(); err != nil {
		return trading.CloseResult{}, err
	}
	unlock, err := s.lock(ctx, accountID)
	if err != nil {
		return trading.CloseResult{}, err
	}
	defer unlock()

	acct, err := s.ownedAccount(ctx, sess, accountID)
	if err != nil {
		return trading.CloseResult{}, err
	}
	trade, err := s.deps.Trades.GetByID(ctx, tradeID)
	if err != nil {
		return trading.CloseResult{}, fmt.Errorf("evaluation_service: get trade %s: %w", tradeID, err)
	}

	now := s.now().UTC()
	res, err := trading.CloseTrade(acct, trade, exitPriceCents, now, s.opts.Rules)
	if err != nil {
		return trading.CloseResult{}, err
	}
	res.Decision.Account.Version = acct.Version + 1
	if err := s.deps.Ledger.ApplyClose(ctx, res.Trade, res.Decision.Account); err != nil {
		return trading.CloseResult{}, fmt.Errorf("evaluation_service: close trade: %w", err)
	}

	next := res.Decision.Account
	s.logger.InfoContext(ctx, "evaluation_service: trade closed",
		slog.String("account_id", acct.ID),
		slog.String("trade_id", trade.ID),
		slog.Float64("pnl", *res.Trade.PnL),
		slog.String("outcome", string(res.Decision.Outcome)),
		slog.String("status", string(next.Status)),
	)
	s.audit(ctx, domain.EventTradeClosed, map[string]any{
		"account_id": acct.ID,
		"trade_id":   trade.ID,
		"pnl":        *res.Trade.PnL,
		"outcome":    string(res.Decision.Outcome),
	})
	s.publish(ctx, eventFor(domain.EventTradeClosed, next, &res.Trade, now))

	if kind := outcomeEvent(res.Decision.Outcome); kind != "" {
		ev := eventFor(kind, next, &res.Trade, now)
		s.audit(ctx, kind, map[string]any{"account_id": acct.ID, "phase": next.Phase, "status": string(next.Status)})
		s.publish(ctx, ev)
		s.notify(ctx, ev)
	}
	if !next.Status.Tradable() {
		s.archive(ctx, next)
	}
	return res, nil
}

// ExpireDue moves tradable accounts whose window has closed to expired and
// returns how many it changed. Accounts modified concurrently are skipped
// and picked up by the next sweep.
func (s *EvaluationService) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	due, err := s.deps.Accounts.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("evaluation_service: list expired: %w", err)
	}

	expired := 0
	for _, acct := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := s.expireOne(ctx, acct, now); err != nil {
			s.logger.WarnContext(ctx, "evaluation_service: expire failed",
				slog.String("account_id", acct.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *EvaluationService) expireOne(ctx context.Context, acct domain.Account, now time.Time) error {
	unlock, err := s.lock(ctx, acct.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.deps.Accounts.UpdateStatus(ctx, acct.ID, domain.StatusExpired, acct.Version); err != nil {
		return err
	}
	acct.Status = domain.StatusExpired
	acct.Version++

	s.logger.InfoContext(ctx, "evaluation_service: account expired",
		slog.String("account_id", acct.ID),
		slog.Time("expires_at", acct.ExpiresAt),
	)
	ev := eventFor(domain.EventExpired, acct, nil, now)
	s.audit(ctx, domain.EventExpired, map[string]any{"account_id": acct.ID})
	s.publish(ctx, ev)
	s.notify(ctx, ev)
	s.archive(ctx, acct)
	return nil
}

// ownedAccount loads accountID and hides accounts of other users behind
// domain.ErrNotFound.
func (s *EvaluationService) ownedAccount(ctx context.Context, sess Session, accountID string) (domain.Account, error) {
	if err := sess.validate(); err != nil {
		return domain.Account{}, err
	}
	acct, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("evaluation_service: get account %s: %w", accountID, err)
	}
	if acct.UserID != sess.UserID {
		return domain.Account{}, fmt.Errorf("evaluation_service: account %s: %w", accountID, domain.ErrNotFound)
	}
	return acct, nil
}

func (s *EvaluationService) lock(ctx context.Context, accountID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTTL)
	defer cancel()
	unlock, err := s.deps.Locks.Acquire(lockCtx, "account:"+accountID, s.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("evaluation_service: lock account %s: %w", accountID, err)
	}
	return unlock, nil
}

func (s *EvaluationService) audit(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "evaluation_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *EvaluationService) publish(ctx context.Context, ev domain.AccountEvent) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, domain.ChannelAccountEvents, payload); err != nil {
		s.logger.WarnContext(ctx, "evaluation_service: publish event failed",
			slog.String("kind", ev.Kind),
			slog.String("error", err.Error()),
		)
	}
}

func (s *EvaluationService) notify(ctx context.Context, ev domain.AccountEvent) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.AccountEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "evaluation_service: notify failed",
			slog.String("kind", ev.Kind),
			slog.String("error", err.Error()),
		)
	}
}

// archive uploads a terminal account. Failures are logged; the ledger is
// already committed.
func (s *EvaluationService) archive(ctx context.Context, acct domain.Account) {
	if s.deps.Archiver == nil || !s.opts.ArchiveOnClose {
		return
	}
	trades, err := s.deps.Trades.ListByAccount(ctx, acct.ID, domain.ListOpts{})
	if err != nil {
		s.logger.WarnContext(ctx, "evaluation_service: archive list trades failed",
			slog.String("account_id", acct.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	path, err := s.deps.Archiver.ArchiveAccount(ctx, acct, trades)
	if err != nil {
		s.logger.WarnContext(ctx, "evaluation_service: archive failed",
			slog.String("account_id", acct.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "evaluation_service: account archived",
		slog.String("account_id", acct.ID),
		slog.String("path", path),
	)
}

func outcomeEvent(o evaluation.Outcome) string {
	switch o {
	case evaluation.OutcomeFailed:
		return domain.EventFailed
	case evaluation.OutcomePassed:
		return domain.EventPassed
	case evaluation.OutcomePromoted:
		return domain.EventPromoted
	}
	return ""
}

func eventFor(kind string, acct domain.Account, trade *domain.Trade, now time.Time) domain.AccountEvent {
	ev := domain.AccountEvent{
		Kind:      kind,
		AccountID: acct.ID,
		UserID:    acct.UserID,
		Status:    string(acct.Status),
		Phase:     acct.Phase,
		Balance:   acct.Balance,
		Timestamp: now,
	}
	if trade != nil {
		ev.TradeID = trade.ID
		if trade.PnL != nil {
			ev.PnL = *trade.PnL
		}
	}
	return ev
}

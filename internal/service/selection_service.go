package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyedge/internal/accounts"
	"github.com/alanyoungcy/polyedge/internal/domain"
)

// SelectionService remembers which evaluation account each user is
// working in.
type SelectionService struct {
	accounts domain.AccountStore
	store    domain.SelectionStore
	logger   *slog.Logger
}

func NewSelectionService(accts domain.AccountStore, store domain.SelectionStore, logger *slog.Logger) *SelectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelectionService{
		accounts: accts,
		store:    store,
		logger:   logger.With(slog.String("component", "selection_service")),
	}
}

// registry loads the caller's accounts and restores the saved selection.
func (s *SelectionService) registry(ctx context.Context, sess Session) (*accounts.Registry, error) {
	if err := sess.validate(); err != nil {
		return nil, err
	}
	list, err := s.accounts.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("selection_service: list accounts: %w", err)
	}
	reg := accounts.NewRegistry(sess.UserID, s.store)
	reg.Load(list)
	if err := reg.RestoreSelection(ctx); err != nil {
		s.logger.WarnContext(ctx, "selection_service: restore failed", slog.String("error", err.Error()))
	}
	return reg, nil
}

// Selected returns the caller's selected account, or domain.ErrNotFound
// when the user has no accounts.
func (s *SelectionService) Selected(ctx context.Context, sess Session) (domain.Account, error) {
	reg, err := s.registry(ctx, sess)
	if err != nil {
		return domain.Account{}, err
	}
	acct := reg.Selected()
	if acct == nil {
		return domain.Account{}, fmt.Errorf("selection_service: no accounts for %s: %w", sess.UserID, domain.ErrNotFound)
	}
	return *acct, nil
}

// Select makes accountID the caller's selected account.
func (s *SelectionService) Select(ctx context.Context, sess Session, accountID string) (domain.Account, error) {
	reg, err := s.registry(ctx, sess)
	if err != nil {
		return domain.Account{}, err
	}
	var selected domain.Account
	reg.OnChange(func(a *domain.Account) {
		if a != nil {
			s.logger.InfoContext(ctx, "selection_service: account selected",
				slog.String("user_id", sess.UserID),
				slog.String("account_id", a.ID),
			)
		}
	})
	if err := reg.Select(ctx, accountID); err != nil {
		return domain.Account{}, err
	}
	if a := reg.Selected(); a != nil {
		selected = *a
	}
	return selected, nil
}

// Package accounts tracks a user's evaluation accounts and which one is
// currently selected.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// ChangeFunc is called after the selection changes. acct is nil when the
// selected id is not in the loaded list.
type ChangeFunc func(acct *domain.Account)

// Registry holds one user's accounts and the selected account id. It is not
// safe for concurrent use; each session owns its own Registry.
type Registry struct {
	scope      string
	store      domain.SelectionStore
	accounts   []domain.Account
	selectedID string
	onChange   ChangeFunc
}

// NewRegistry creates a Registry that persists its selection under scope.
// store may be nil, in which case nothing is persisted.
func NewRegistry(scope string, store domain.SelectionStore) *Registry {
	return &Registry{scope: scope, store: store}
}

// OnChange registers the change listener, replacing any previous one.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.onChange = fn
}

// Load replaces the account list. accounts must be newest first. When
// nothing is selected yet, the first active or funded account is selected,
// else the first account.
func (r *Registry) Load(accounts []domain.Account) {
	r.accounts = accounts
	if r.selectedID != "" || len(accounts) == 0 {
		return
	}
	r.selectedID = accounts[0].ID
	for _, a := range accounts {
		if a.Status.Tradable() {
			r.selectedID = a.ID
			return
		}
	}
}

// Accounts returns the loaded list.
func (r *Registry) Accounts() []domain.Account {
	return r.accounts
}

// SelectedID returns the selected account id, or "".
func (r *Registry) SelectedID() string {
	return r.selectedID
}

// Selected returns the selected account, or nil when it is not loaded.
func (r *Registry) Selected() *domain.Account {
	return r.find(r.selectedID)
}

// Select makes id the selected account, persists it and notifies the
// listener. Selecting the current account does nothing. An id that is not
// loaded fails with ErrNotFound. A persistence failure is returned after the
// in-memory selection and the listener have already been updated.
func (r *Registry) Select(ctx context.Context, id string) error {
	if r.selectedID == id {
		return nil
	}
	if r.find(id) == nil {
		return fmt.Errorf("accounts: select %s: %w", id, domain.ErrNotFound)
	}
	r.selectedID = id

	var err error
	if r.store != nil {
		if serr := r.store.Set(ctx, r.scope, id); serr != nil {
			err = fmt.Errorf("accounts: persist selection: %w", serr)
		}
	}
	if r.onChange != nil {
		r.onChange(r.Selected())
	}
	return err
}

// RestoreSelection re-applies the persisted selection if that account is
// still loaded; otherwise the current selection stays.
func (r *Registry) RestoreSelection(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	saved, err := r.store.Get(ctx, r.scope)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("accounts: restore selection: %w", err)
	}
	if saved != "" && r.find(saved) != nil {
		r.selectedID = saved
	}
	return nil
}

func (r *Registry) find(id string) *domain.Account {
	for i := range r.accounts {
		if r.accounts[i].ID == id {
			return &r.accounts[i]
		}
	}
	return nil
}

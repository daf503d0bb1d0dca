package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// SelectionStore implements domain.SelectionStore with plain string keys
// that never expire.
//
// Key schema:
//
//	selected_account:{scope} - account id
type SelectionStore struct {
	c *Client
}

func NewSelectionStore(c *Client) *SelectionStore {
	return &SelectionStore{c: c}
}

// Get returns the stored value, or ErrNotFound.
func (s *SelectionStore) Get(ctx context.Context, scope string) (string, error) {
	v, err := s.c.Underlying().Get(ctx, s.c.key("selected_account:", scope)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("redis: selection %s: %w", scope, domain.ErrNotFound)
		}
		return "", fmt.Errorf("redis: get selection %s: %w", scope, err)
	}
	return v, nil
}

func (s *SelectionStore) Set(ctx context.Context, scope, value string) error {
	if err := s.c.Underlying().Set(ctx, s.c.key("selected_account:", scope), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set selection %s: %w", scope, err)
	}
	return nil
}

var _ domain.SelectionStore = (*SelectionStore)(nil)

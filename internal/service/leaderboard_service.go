package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

const maxLeaderboardRows = 100

// LeaderboardService reads the public leaderboard.
type LeaderboardService struct {
	store domain.LeaderboardStore
}

func NewLeaderboardService(store domain.LeaderboardStore) *LeaderboardService {
	return &LeaderboardService{store: store}
}

// Top returns up to limit rows ranked by return; limit is clamped to 1..100
// and defaults to 50.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > maxLeaderboardRows:
		limit = maxLeaderboardRows
	}
	rows, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard_service: list: %w", err)
	}
	return rows, nil
}

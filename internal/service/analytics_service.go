package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyedge/internal/analytics"
	"github.com/alanyoungcy/polyedge/internal/domain"
)

// PortfolioSource reads an external account's positions and trades.
type PortfolioSource interface {
	Positions(ctx context.Context, wallet string) ([]domain.Position, error)
	Activity(ctx context.Context, wallet string) ([]domain.Activity, error)
}

// ProfileSource reads public market profiles.
type ProfileSource interface {
	GetProfile(ctx context.Context, wallet string) (domain.Profile, error)
}

// PortfolioReport is the analytics dashboard for one wallet.
type PortfolioReport struct {
	Wallet  string
	Profile *domain.Profile
	Stats   analytics.Stats
}

// AnalyticsService computes portfolio analytics for external wallets.
type AnalyticsService struct {
	data     PortfolioSource
	profiles ProfileSource
	links    domain.ProfileStore
	now      func() time.Time
	logger   *slog.Logger
}

// NewAnalyticsService creates an AnalyticsService. profiles may be nil.
func NewAnalyticsService(data PortfolioSource, profiles ProfileSource, links domain.ProfileStore, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		data:     data,
		profiles: profiles,
		links:    links,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "analytics_service")),
	}
}

// NormalizeWallet validates a 0x address and returns its checksummed form.
func NormalizeWallet(wallet string) (string, error) {
	w := strings.TrimSpace(wallet)
	hasPrefix := strings.HasPrefix(w, "0x") || strings.HasPrefix(w, "0X")
	if !hasPrefix || !common.IsHexAddress(w) {
		return "", domain.NewValidationError(domain.KindInvalidWallet, "wallet must be a 0x-prefixed 40 hex digit address")
	}
	return common.HexToAddress(w).Hex(), nil
}

// LinkWallet stores the caller's external wallet.
func (s *AnalyticsService) LinkWallet(ctx context.Context, sess Session, wallet string) (string, error) {
	if err := sess.validate(); err != nil {
		return "", err
	}
	w, err := NormalizeWallet(wallet)
	if err != nil {
		return "", err
	}
	if err := s.links.SetWallet(ctx, sess.UserID, w); err != nil {
		return "", fmt.Errorf("analytics_service: link wallet: %w", err)
	}
	s.logger.InfoContext(ctx, "analytics_service: wallet linked",
		slog.String("user_id", sess.UserID),
		slog.String("wallet", w),
	)
	return w, nil
}

// LinkedWallet returns the caller's wallet, or domain.ErrNotFound.
func (s *AnalyticsService) LinkedWallet(ctx context.Context, sess Session) (string, error) {
	if err := sess.validate(); err != nil {
		return "", err
	}
	w, err := s.links.GetWallet(ctx, sess.UserID)
	if err != nil {
		return "", fmt.Errorf("analytics_service: linked wallet: %w", err)
	}
	return w, nil
}

// MyReport builds the report for the caller's linked wallet.
func (s *AnalyticsService) MyReport(ctx context.Context, sess Session) (PortfolioReport, error) {
	w, err := s.LinkedWallet(ctx, sess)
	if err != nil {
		return PortfolioReport{}, err
	}
	return s.Report(ctx, w)
}

// Report fetches positions, activity and profile concurrently and
// aggregates them. A missing or failing profile does not fail the report.
func (s *AnalyticsService) Report(ctx context.Context, wallet string) (PortfolioReport, error) {
	w, err := NormalizeWallet(wallet)
	if err != nil {
		return PortfolioReport{}, err
	}
	// The data API keys wallets in lower case.
	query := strings.ToLower(w)

	var (
		positions []domain.Position
		activity  []domain.Activity
		profile   *domain.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.data.Positions(gctx, query)
		positions = p
		return err
	})
	g.Go(func() error {
		a, err := s.data.Activity(gctx, query)
		activity = a
		return err
	})
	if s.profiles != nil {
		g.Go(func() error {
			p, err := s.profiles.GetProfile(gctx, query)
			switch {
			case err == nil:
				profile = &p
			case errors.Is(err, context.Canceled):
			default:
				s.logger.DebugContext(gctx, "analytics_service: profile unavailable",
					slog.String("wallet", w),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PortfolioReport{}, fmt.Errorf("analytics_service: report %s: %w", w, err)
	}

	return PortfolioReport{
		Wallet:  w,
		Profile: profile,
		Stats:   analytics.ComputeAt(s.now(), positions, activity),
	}, nil
}

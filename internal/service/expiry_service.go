package service

import (
	"context"
	"log/slog"
	"time"
)

// sweepBatch bounds how many accounts one sweep expires.
const sweepBatch = 100

// ExpirySweeper periodically expires accounts whose evaluation window has
// closed.
type ExpirySweeper struct {
	evals    *EvaluationService
	interval time.Duration
	logger   *slog.Logger
}

func NewExpirySweeper(evals *EvaluationService, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirySweeper{
		evals:    evals,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry_sweeper")),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "expiry sweeper starting", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiry sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce expires every due account, batch by batch.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := s.evals.ExpireDue(ctx, sweepBatch)
		total += n
		if err != nil {
			s.logger.ErrorContext(ctx, "expiry sweep failed", slog.String("error", err.Error()))
			break
		}
		if n < sweepBatch {
			break
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "expiry sweep complete", slog.Int("expired", total))
	}
	return total
}

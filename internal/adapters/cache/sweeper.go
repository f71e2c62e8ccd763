package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/jsamuelsen/stockquote-service/internal/platform/config"
)

// Sweepable is a cache that can drop its expired entries in bulk.
type Sweepable interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// Sweeper periodically removes expired entries. Reads already ignore expired
// entries, so sweeping only reclaims space.
type Sweeper struct {
	cron   *cron.Cron
	target Sweepable
	logger *slog.Logger
}

// NewSweeper registers a sweep of target on schedule ("@every 5m", "0 */10 * * * *").
func NewSweeper(schedule string, target Sweepable, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sweeper{
		cron:   cron.New(cron.WithParser(config.ScheduleParser)),
		target: target,
		logger: logger.With(slog.String("component", "cache.Sweeper")),
	}

	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("registering sweep %q: %w", schedule, err)
	}

	return s, nil
}

// Sweep runs one pass.
func (s *Sweeper) Sweep() {
	n, err := s.target.DeleteExpired(context.Background())
	if err != nil {
		s.logger.Warn("cache sweep failed", slog.Any("error", err))
		return
	}

	if n > 0 {
		s.logger.Debug("cache sweep removed expired entries", slog.Int("removed", n))
	}
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("cache sweeper started")
}

// Stop halts the schedule and waits for a running sweep, or for ctx to end.
// It is a no-op on a nil Sweeper so callers need not track whether one runs.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil {
		return
	}

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}

	s.logger.Info("cache sweeper stopped")
}

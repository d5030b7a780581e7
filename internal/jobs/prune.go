package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Pruner removes stale rows older than now.
type Pruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// NewScheduler returns a UTC scheduler where a job never overlaps its previous run.
func NewScheduler() *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return s
}

// SchedulePrune registers p to run every interval, starting on scheduler start.
func SchedulePrune(s *gocron.Scheduler, interval time.Duration, p Pruner, logger *zap.Logger) (*gocron.Job, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return s.Every(interval).Tag("prune-refresh-tokens").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		PruneOnce(ctx, p, time.Now().UTC(), logger)
	})
}

// PruneOnce runs a single prune and logs the outcome.
func PruneOnce(ctx context.Context, p Pruner, now time.Time, logger *zap.Logger) int64 {
	n, err := p.Prune(ctx, now)
	if err != nil {
		logger.Error("refresh token prune failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		logger.Info("pruned refresh tokens", zap.Int64("count", n))
	}
	return n
}

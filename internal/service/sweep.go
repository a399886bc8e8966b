package service

import (
	"context"
	"time"

	"github.com/degencred/credbot/internal/metrics"
	"github.com/degencred/credbot/internal/models"
)

// RunSweeper calls SweepOverdue every interval until ctx is done. Failures
// are logged and the next tick tries again.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration, onDefault models.DefaultCallback) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Infof("Overdue sweeper started, interval %s", interval)
	s.sweepOnce(ctx, onDefault)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Overdue sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx, onDefault)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context, onDefault models.DefaultCallback) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SweepRuns.WithLabelValues("panic").Inc()
			s.logger.Errorf("Sweep panicked: %v", r)
		}
	}()

	defaulted, err := s.SweepOverdue(ctx, s.now())
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
	} else {
		metrics.SweepRuns.WithLabelValues("ok").Inc()
	}
	if len(defaulted) > 0 {
		s.logger.Infof("Sweep defaulted %d loan(s)", len(defaulted))
	}
	if onDefault == nil {
		return
	}
	for i := range defaulted {
		onDefault(&defaulted[i])
	}
}

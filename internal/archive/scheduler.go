package archive

import (
	"context"
	"time"

	"gift-platform/internal/logger"
)

// Scheduler runs the pipeline on a fixed interval in the background.
type Scheduler struct {
	Pipeline *Pipeline
	Interval time.Duration
	Log      *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
	s.Log.Infow("archival scheduler started", "interval", s.Interval)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.Log.Infow("archival scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.Pipeline.Run(ctx); err != nil {
		s.Log.Errorw("scheduled archival failed", "error", err)
	}
}

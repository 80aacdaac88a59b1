package settlement

import (
	"context"
	"errors"
	"time"

	"gift-platform/internal/logger"
	"gift-platform/internal/reconcile"
)

const (
	defaultMatchAttempts = 5
	retryBackoff         = 5 * time.Millisecond
)

// Service drives an inbound signal through reconciliation and settlement.
type Service struct {
	reconciler *reconcile.Reconciler
	controller *Controller
	log        *logger.Logger
	attempts   int
}

func NewService(r *reconcile.Reconciler, c *Controller, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{reconciler: r, controller: c, log: log, attempts: defaultMatchAttempts}
}

// HandleSignal settles the gift sig pays for. A heuristic match that loses
// its gift to a concurrent settlement is reconciled again, so one signal
// consumes at most one gift.
func (s *Service) HandleSignal(ctx context.Context, sig reconcile.Signal) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		m, err := s.reconciler.Reconcile(ctx, sig)
		if err != nil {
			return nil, err
		}
		out := Outcome{
			Method:    string(m.Method),
			Heuristic: m.Method.Heuristic(),
		}
		if m.Method != reconcile.MethodReference {
			out.Fingerprint = m.Fingerprint
		}

		res, err := s.controller.Settle(ctx, m.Gift.Ref, out)
		if !errors.Is(err, ErrStaleMatch) {
			return res, err
		}
		s.log.Infow("matched gift settled concurrently, reconciling again",
			"ref", m.Gift.Ref, "attempt", attempt)
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return nil, lastErr
}

// Reconciler exposes the reconciler so transports can authenticate a signal
// before decoding it.
func (s *Service) Reconciler() *reconcile.Reconciler {
	return s.reconciler
}

// Controller exposes the lifecycle controller for gateway-verified updates.
func (s *Service) Controller() *Controller {
	return s.controller
}

// Package settlement owns the gift state machine: PENDING moves once to PAID,
// FAILED or CANCELLED, and a PAID gift emits exactly one settlement effect.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gift-platform/internal/apperr"
	"gift-platform/internal/logger"
	"gift-platform/internal/mediaqueue"
	"gift-platform/internal/models"
	"gift-platform/internal/reconcile"
	"gift-platform/internal/store"
)

var (
	ErrGiftNotFound   = apperr.New(apperr.CategoryNotFound, "GIFT_NOT_FOUND", "gift not found")
	ErrGiftClosed     = apperr.New(apperr.CategoryConflict, "GIFT_CLOSED", "gift is no longer payable")
	ErrNotCancellable = apperr.New(apperr.CategoryConflict, "NOT_CANCELLABLE", "settled gifts cannot be cancelled")
	ErrInvalidStatus  = apperr.New(apperr.CategoryValidation, "INVALID_STATUS", "gift can only be closed as FAILED or CANCELLED")
	// ErrStaleMatch means a heuristic match lost its gift to a concurrent
	// settlement; the signal should be reconciled again.
	ErrStaleMatch = apperr.New(apperr.CategoryConflict, "STALE_MATCH", "matched gift was settled concurrently")
)

//go:generate mockgen -destination=mocks/mock_settlement.go -package=mocks gift-platform/internal/settlement Notifier,Refresher

// Notifier emits the donation notification for a settled gift.
type Notifier interface {
	NotifyGift(ctx context.Context, g *models.Gift) error
}

// Enqueuer places a settled gift's media request on its creator's queue.
type Enqueuer interface {
	EnqueueFromGift(ctx context.Context, g *models.Gift) (*models.MediaQueueItem, bool, error)
}

// Refresher rebuilds the creator's leaderboard for the month containing at.
type Refresher interface {
	RefreshCreator(ctx context.Context, creatorID int64, creatorHandle string, at time.Time) error
}

type Store interface {
	store.Gifts
	QueueItemByGift(ctx context.Context, ref string) (*models.MediaQueueItem, error)
}

// Outcome is the settlement metadata a matched signal carries. Heuristic
// marks matches that could have picked another gift.
type Outcome struct {
	GatewayTxID string
	Method      string
	Heuristic   bool
	Fingerprint string
	PaidAt      time.Time
}

// MethodGateway marks gifts confirmed through the gateway status query.
const MethodGateway = "gateway"

const anonymousBinding = "anon:"

// Effect names the side effect a settlement produced.
type Effect string

const (
	EffectNotified Effect = "notified"
	EffectQueued   Effect = "queued"
	EffectNone     Effect = "none"
)

type Result struct {
	Gift      *models.Gift
	Duplicate bool
	Effect    Effect
}

type Controller struct {
	store     Store
	notifier  Notifier
	enqueuer  Enqueuer
	refresher Refresher
	log       *logger.Logger
	now       func() time.Time

	refreshTimeout time.Duration
	wg             sync.WaitGroup
}

type Option func(*Controller)

func WithRefresher(r Refresher) Option {
	return func(c *Controller) { c.refresher = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(st Store, notifier Notifier, enqueuer Enqueuer, log *logger.Logger, opts ...Option) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	c := &Controller{
		store:          st,
		notifier:       notifier,
		enqueuer:       enqueuer,
		log:            log,
		now:            time.Now,
		refreshTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settle moves ref to PAID and emits its settlement effect. A gift that is
// already PAID is a duplicate delivery: only effects not yet recorded run.
func (c *Controller) Settle(ctx context.Context, ref string, out Outcome) (*Result, error) {
	g, err := c.gift(ctx, ref)
	if err != nil {
		return nil, err
	}
	log := c.log.With("ref", ref, "method", out.Method)

	switch g.Status {
	case models.GiftPaid:
		if out.Heuristic {
			return nil, ErrStaleMatch
		}
		log.Infow("duplicate settlement delivery")
		return c.settled(ctx, g, true)
	case models.GiftPending:
	default:
		return nil, apperr.Wrap(ErrGiftClosed, nil, fmt.Sprintf("gift %s is %s", ref, g.Status))
	}

	// Every heuristic match binds the gift, so a gift is consumed by at most
	// one signal. Signals without a fingerprint get a one-off binding.
	claimed := false
	binding := out.Fingerprint
	if out.Heuristic && binding == "" {
		binding = anonymousBinding + uuid.NewString()
	}
	if out.Heuristic {
		owner, created, err := c.store.ClaimSignal(ctx, binding, ref, c.now())
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrStaleMatch
		}
		if err != nil {
			return nil, apperr.Persistence("claim signal", err)
		}
		if owner != ref {
			return nil, ErrStaleMatch
		}
		claimed = created
	}

	paidAt := out.PaidAt
	if paidAt.IsZero() {
		paidAt = c.now()
	}
	ok, err := c.store.MarkPaid(ctx, ref, store.PaidUpdate{GatewayTxID: out.GatewayTxID, MatchMethod: out.Method, PaidAt: paidAt})
	if err != nil {
		return nil, apperr.Persistence("mark gift paid", err)
	}
	if !ok {
		g, err = c.gift(ctx, ref)
		if err != nil {
			return nil, err
		}
		if out.Heuristic && !(out.Fingerprint != "" && g.Status == models.GiftPaid && paidThroughSignal(g)) {
			if claimed {
				if err := c.store.ReleaseSignal(ctx, binding, ref); err != nil {
					return nil, apperr.Persistence("release signal", err)
				}
			}
			return nil, ErrStaleMatch
		}
		// Lost to a concurrent delivery of the same payment.
		if g.Status != models.GiftPaid {
			return nil, apperr.Wrap(ErrGiftClosed, nil, fmt.Sprintf("gift %s is %s", ref, g.Status))
		}
		return c.settled(ctx, g, true)
	}

	log.Infow("gift settled", "amount", g.Amount, "creator_id", g.CreatorID)
	g, err = c.gift(ctx, ref)
	if err != nil {
		return nil, err
	}
	return c.settled(ctx, g, false)
}

// settled completes the gift's effects and schedules a leaderboard refresh
// for the first transition, or for a redelivery that finished effects an
// earlier attempt left undone.
func (c *Controller) settled(ctx context.Context, g *models.Gift, duplicate bool) (*Result, error) {
	res, err := c.completeEffects(ctx, g, duplicate)
	if err != nil {
		return nil, err
	}
	if !duplicate || res.Effect != EffectNone {
		c.refreshAsync(g)
	}
	return res, nil
}

// completeEffects emits whichever effect has not been recorded yet. The
// media path and the notification path are mutually exclusive per gift.
func (c *Controller) completeEffects(ctx context.Context, g *models.Gift, duplicate bool) (*Result, error) {
	res := &Result{Gift: g, Duplicate: duplicate, Effect: EffectNone}
	now := c.now()

	if g.MediaShare.Enabled && !g.MediaShare.Processed {
		queued, err := c.enqueueMedia(ctx, g)
		if err != nil {
			return nil, err
		}
		if _, err := c.store.MarkMediaProcessed(ctx, g.Ref, now); err != nil {
			return nil, apperr.Persistence("mark media processed", err)
		}
		g.MediaShare.Processed = true
		if queued {
			if _, err := c.store.ClaimNotification(ctx, g.Ref, now); err != nil {
				return nil, apperr.Persistence("record settlement effect", err)
			}
			res.Effect = EffectQueued
			return res, nil
		}
	}

	claimed, err := c.store.ClaimNotification(ctx, g.Ref, now)
	if err != nil {
		return nil, apperr.Persistence("claim notification", err)
	}
	if !claimed {
		return res, nil
	}
	if g.MediaShare.Enabled {
		// A previous attempt queued the media but stopped before recording it.
		if _, err := c.store.QueueItemByGift(ctx, g.Ref); err == nil {
			res.Effect = EffectQueued
			return res, nil
		}
	}

	res.Effect = EffectNotified
	if c.notifier == nil {
		return res, nil
	}
	if err := c.notifier.NotifyGift(ctx, g); err != nil {
		c.log.Warnw("donation notification failed", "ref", g.Ref, "creator_id", g.CreatorID, "error", err)
	}
	return res, nil
}

// enqueueMedia reports whether the media request was queued. An invalid
// media URL is not an error; the gift falls back to a notification.
func (c *Controller) enqueueMedia(ctx context.Context, g *models.Gift) (bool, error) {
	if c.enqueuer == nil {
		return false, nil
	}
	_, _, err := c.enqueuer.EnqueueFromGift(ctx, g)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mediaqueue.ErrInvalidMedia):
		c.log.Warnw("media request rejected, notifying instead", "ref", g.Ref, "url", g.MediaShare.URL, "error", err)
		return false, nil
	}
	return false, err
}

// Close moves a PENDING gift to FAILED or CANCELLED. Repeating the same close
// is a no-op; a PAID gift is never cancellable.
func (c *Controller) Close(ctx context.Context, ref string, status models.GiftStatus) (*models.Gift, error) {
	if status != models.GiftFailed && status != models.GiftCancelled {
		return nil, ErrInvalidStatus
	}
	g, err := c.gift(ctx, ref)
	if err != nil {
		return nil, err
	}
	if g.Status == models.GiftPending {
		ok, err := c.store.MarkClosed(ctx, ref, status, c.now())
		if err != nil {
			return nil, apperr.Persistence("close gift", err)
		}
		if g, err = c.gift(ctx, ref); err != nil {
			return nil, err
		}
		if ok {
			c.log.Infow("gift closed", "ref", ref, "status", status)
			return g, nil
		}
	}

	switch g.Status {
	case status:
		return g, nil
	case models.GiftPaid:
		return nil, ErrNotCancellable
	}
	return nil, apperr.Wrap(ErrGiftClosed, nil, fmt.Sprintf("gift %s is already %s", ref, g.Status))
}

// paidThroughSignal reports whether g was settled by a signal bound to it.
// A gift is bound to at most one signal, so that signal is the caller's.
func paidThroughSignal(g *models.Gift) bool {
	m := reconcile.Method(g.MatchMethod)
	return m == reconcile.MethodSignal || m.Heuristic()
}

func (c *Controller) refreshAsync(g *models.Gift) {
	if c.refresher == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()
		if err := c.refresher.RefreshCreator(ctx, g.CreatorID, g.CreatorHandle, g.CreatedAt); err != nil {
			c.log.Warnw("leaderboard refresh failed", "creator_id", g.CreatorID, "error", err)
		}
	}()
}

// Wait blocks until in-flight leaderboard refreshes finish.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Gift loads ref, mapping a missing gift to ErrGiftNotFound.
func (c *Controller) Gift(ctx context.Context, ref string) (*models.Gift, error) {
	return c.gift(ctx, ref)
}

func (c *Controller) gift(ctx context.Context, ref string) (*models.Gift, error) {
	g, err := c.store.GiftByRef(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGiftNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("lookup gift", err)
	}
	return g, nil
}

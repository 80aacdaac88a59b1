// Package reconcile turns an inbound payment signal into exactly one pending
// (or already settled) gift. It never writes gift state; the settlement
// package owns transitions.
package reconcile

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"gift-platform/internal/apperr"
	"gift-platform/internal/logger"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

// Method records how a signal was attributed to its gift.
type Method string

const (
	MethodReference Method = "reference"
	MethodSignal    Method = "signal"
	MethodAmount    Method = "amount"
	MethodFallback  Method = "fallback"
)

// Heuristic reports whether the match could have picked a different gift had
// the store looked different a moment later.
func (m Method) Heuristic() bool {
	return m == MethodAmount || m == MethodFallback
}

var (
	ErrUnauthorized       = apperr.New(apperr.CategoryAuthentication, "INVALID_SECRET", "missing or invalid webhook secret")
	ErrUnsupportedChannel = apperr.New(apperr.CategoryValidation, "UNSUPPORTED_CHANNEL", "payment channel is not served")
	ErrNoMatch            = apperr.New(apperr.CategoryNotFound, "NO_MATCH", "no pending gift matches the signal")
	ErrGiftClosed         = apperr.New(apperr.CategoryConflict, "GIFT_CLOSED", "gift is no longer payable")
)

type Config struct {
	Secret              string
	Channel             string
	Lookback            time.Duration
	SentinelAmount      int64
	AllowAmountFallback bool
}

// Match is the gift a signal resolved to.
type Match struct {
	Gift            *models.Gift
	Method          Method
	Amount          int64
	AmountDefaulted bool
	Channel         string
	Fingerprint     string
	// Duplicate is set when the gift was already PAID before this signal.
	Duplicate bool
}

type Reconciler struct {
	gifts store.Gifts
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
}

func New(gifts store.Gifts, cfg Config, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Nop()
	}
	cfg.Channel = NormalizeChannel(cfg.Channel)
	return &Reconciler{gifts: gifts, cfg: cfg, log: log, now: time.Now}
}

// Authenticate checks the shared secret carried by a signal. No secret
// configured means every caller is accepted.
func (r *Reconciler) Authenticate(secret string) error {
	if r.cfg.Secret == "" {
		return nil
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(r.cfg.Secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Normalize applies the configured served channel and sentinel amount.
func (r *Reconciler) Normalize(sig Signal) Normalized {
	return Normalize(sig, r.cfg.Channel, r.cfg.SentinelAmount)
}

// Reconcile authenticates sig and resolves it to a gift.
func (r *Reconciler) Reconcile(ctx context.Context, sig Signal) (*Match, error) {
	if err := r.Authenticate(sig.Secret); err != nil {
		return nil, err
	}
	n := r.Normalize(sig)
	log := r.log.With("ref", n.Ref, "amount", n.Amount, "channel", n.Channel)
	if len(n.Extracted) > 0 {
		log.Infow("recovered signal fields from raw text", "fields", n.Extracted)
	}
	if n.AmountDefaulted {
		log.Warnw("signal amount missing, using sentinel")
	}
	if n.Channel != r.cfg.Channel {
		return nil, apperr.Wrap(ErrUnsupportedChannel, nil, fmt.Sprintf("channel %q is not served", n.Channel))
	}
	return r.match(ctx, n, log)
}

func (r *Reconciler) match(ctx context.Context, n Normalized, log *logger.Logger) (*Match, error) {
	m := &Match{
		Amount:          n.Amount,
		AmountDefaulted: n.AmountDefaulted,
		Channel:         n.Channel,
		Fingerprint:     n.Fingerprint(),
	}

	if n.Ref != "" {
		g, err := r.gifts.GiftByRef(ctx, n.Ref)
		switch {
		case err == nil:
			return r.byReference(m, g)
		case !errors.Is(err, store.ErrNotFound):
			return nil, apperr.Persistence("lookup gift by ref", err)
		}
		log.Infow("signal reference unknown, falling back to amount")
	}

	if m.Fingerprint != "" {
		ref, err := r.gifts.SignalGift(ctx, m.Fingerprint)
		switch {
		case err == nil:
			g, err := r.gifts.GiftByRef(ctx, ref)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Persistence("lookup signalled gift", err)
			}
			// An archived gift has left the live table; the signal was still consumed.
			if err == nil {
				m.Gift = g
				m.Method = MethodSignal
				m.Duplicate = g.Status == models.GiftPaid
				return m, nil
			}
			return nil, apperr.Wrap(ErrNoMatch, nil, "signal already consumed by an archived gift")
		case !errors.Is(err, store.ErrNotFound):
			return nil, apperr.Persistence("lookup signal fingerprint", err)
		}
	}

	since := r.now().Add(-r.cfg.Lookback)

	// A sentinel amount says nothing about the gift; only the opt-in
	// fallback below may attribute such a signal.
	var candidates []models.Gift
	if !n.AmountDefaulted {
		var err error
		candidates, err = r.gifts.PendingByAmount(ctx, n.Amount, n.Channel, since)
		if err != nil {
			return nil, apperr.Persistence("lookup pending by amount", err)
		}
	}
	if len(candidates) > 0 {
		if len(candidates) > 1 {
			log.Warnw("several pending gifts share the amount, taking the most recent", "candidates", len(candidates))
		}
		m.Gift = &candidates[0]
		m.Method = MethodAmount
		return m, nil
	}

	if r.cfg.AllowAmountFallback && n.AmountDefaulted {
		g, err := r.gifts.LatestPending(ctx, n.Channel, since)
		switch {
		case err == nil:
			log.Warnw("attributing signal to most recent pending gift", "gift_ref", g.Ref)
			m.Gift = g
			m.Method = MethodFallback
			return m, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, apperr.Persistence("lookup latest pending", err)
		}
	}

	log.Warnw("no gift matches signal")
	return nil, ErrNoMatch
}

func (r *Reconciler) byReference(m *Match, g *models.Gift) (*Match, error) {
	switch g.Status {
	case models.GiftPending:
	case models.GiftPaid:
		m.Duplicate = true
	default:
		return nil, apperr.Wrap(ErrGiftClosed, nil, fmt.Sprintf("gift %s is %s", g.Ref, g.Status))
	}
	m.Gift = g
	m.Method = MethodReference
	return m, nil
}

package settlement

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"gift-platform/internal/models"
	"gift-platform/internal/reconcile"
	"gift-platform/internal/store/memstore"
)

type countingNotifier struct {
	calls atomic.Int64
}

func (n *countingNotifier) NotifyGift(context.Context, *models.Gift) error {
	n.calls.Add(1)
	return nil
}

// Concurrent same-amount pending gifts, each signal delivered twice at once.
// A signal may fail under contention, but it never consumes two gifts and no
// gift is consumed by two signals.
func TestSameAmountSignalsConsumeAtMostOneGift(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("each signal consumes at most one gift", prop.ForAll(
		func(pending, signals int) bool {
			st := memstore.New()
			notifier := &countingNotifier{}
			c := NewController(st, notifier, nil, nil)
			r := reconcile.New(st, reconcile.Config{Channel: "gopay", Lookback: time.Hour}, nil)
			svc := NewService(r, c, nil)
			ctx := context.Background()

			base := time.Now()
			for i := 0; i < pending; i++ {
				err := st.CreateGift(ctx, &models.Gift{
					ID: fmt.Sprintf("id-%d", i), Ref: fmt.Sprintf("DONP%03d", i), Amount: 50000,
					CreatorID: 1, CreatorHandle: "alice", Channel: "gopay", Status: models.GiftPending,
					CreatedAt: base.Add(-time.Duration(i) * time.Second),
				})
				if err != nil {
					return false
				}
			}

			var (
				mu       sync.Mutex
				consumed = make(map[int]map[string]bool)
				wg       sync.WaitGroup
			)
			for s := 0; s < signals; s++ {
				sig := reconcile.Signal{
					Amount:     "50000",
					RawText:    fmt.Sprintf("GoPay: Rp 50.000 received #%d", s),
					ReceivedAt: base.Add(time.Duration(s) * time.Millisecond).Format(time.RFC3339Nano),
				}
				for delivery := 0; delivery < 2; delivery++ {
					wg.Add(1)
					go func(s int) {
						defer wg.Done()
						res, err := svc.HandleSignal(ctx, sig)
						if err != nil {
							return
						}
						mu.Lock()
						defer mu.Unlock()
						if consumed[s] == nil {
							consumed[s] = make(map[string]bool)
						}
						consumed[s][res.Gift.Ref] = true
					}(s)
				}
			}
			wg.Wait()

			owners := make(map[string]int)
			for s, refs := range consumed {
				if len(refs) > 1 {
					return false
				}
				for ref := range refs {
					if prev, ok := owners[ref]; ok && prev != s {
						return false
					}
					owners[ref] = s
				}
			}

			paid := 0
			for i := 0; i < pending; i++ {
				g, err := st.GiftByRef(ctx, fmt.Sprintf("DONP%03d", i))
				if err != nil {
					return false
				}
				if g.Status == models.GiftPaid {
					paid++
					if _, ok := owners[g.Ref]; !ok {
						return false
					}
				}
			}
			return paid == len(owners) && paid <= signals && notifier.calls.Load() == int64(paid)
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

// Signals without a usable amount against concurrent pending gifts at the
// sentinel amount. Half carry raw text and are delivered twice; the rest have
// no fingerprint and are delivered once.
func TestDefaultedAmountSignals(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	type delivery struct {
		signal int
		sig    reconcile.Signal
	}

	run := func(pending, signals int, fallback bool) (*memstore.Store, *countingNotifier, map[int]map[string]bool, bool) {
		st := memstore.New()
		notifier := &countingNotifier{}
		c := NewController(st, notifier, nil, nil)
		r := reconcile.New(st, reconcile.Config{Channel: "gopay", Lookback: time.Hour, AllowAmountFallback: fallback}, nil)
		svc := NewService(r, c, nil)
		ctx := context.Background()

		base := time.Now()
		for i := 0; i < pending; i++ {
			err := st.CreateGift(ctx, &models.Gift{
				ID: fmt.Sprintf("id-%d", i), Ref: fmt.Sprintf("DONF%03d", i), Amount: 1000,
				CreatorID: 1, CreatorHandle: "alice", Channel: "gopay", Status: models.GiftPending,
				CreatedAt: base.Add(-time.Duration(i) * time.Second),
			})
			if err != nil {
				return nil, nil, nil, false
			}
		}

		var deliveries []delivery
		for s := 0; s < signals; s++ {
			if s%2 == 0 {
				sig := reconcile.Signal{
					RawText:    "payment received",
					ReceivedAt: base.Add(time.Duration(s) * time.Millisecond).Format(time.RFC3339Nano),
				}
				deliveries = append(deliveries, delivery{s, sig}, delivery{s, sig})
				continue
			}
			deliveries = append(deliveries, delivery{s, reconcile.Signal{}})
		}

		var (
			mu       sync.Mutex
			consumed = make(map[int]map[string]bool)
			wg       sync.WaitGroup
		)
		for _, d := range deliveries {
			wg.Add(1)
			go func(d delivery) {
				defer wg.Done()
				res, err := svc.HandleSignal(ctx, d.sig)
				if err != nil {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if consumed[d.signal] == nil {
					consumed[d.signal] = make(map[string]bool)
				}
				consumed[d.signal][res.Gift.Ref] = true
			}(d)
		}
		wg.Wait()
		return st, notifier, consumed, true
	}

	properties.Property("fallback consumes each gift for at most one signal", prop.ForAll(
		func(pending, signals int) bool {
			st, notifier, consumed, ok := run(pending, signals, true)
			if !ok {
				return false
			}
			owners := make(map[string]int)
			for s, refs := range consumed {
				if len(refs) > 1 {
					return false
				}
				for ref := range refs {
					if prev, seen := owners[ref]; seen && prev != s {
						return false
					}
					owners[ref] = s
				}
			}

			paid := 0
			for i := 0; i < pending; i++ {
				g, err := st.GiftByRef(context.Background(), fmt.Sprintf("DONF%03d", i))
				if err != nil {
					return false
				}
				if g.Status == models.GiftPaid {
					paid++
					if _, ok := owners[g.Ref]; !ok {
						return false
					}
				}
			}
			return paid == len(owners) && paid <= signals && notifier.calls.Load() == int64(paid)
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
	))

	properties.Property("a defaulted amount never matches without the fallback", prop.ForAll(
		func(pending, signals int) bool {
			st, notifier, consumed, ok := run(pending, signals, false)
			if !ok || len(consumed) != 0 || notifier.calls.Load() != 0 {
				return false
			}
			for i := 0; i < pending; i++ {
				g, err := st.GiftByRef(context.Background(), fmt.Sprintf("DONF%03d", i))
				if err != nil || g.Status != models.GiftPending {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

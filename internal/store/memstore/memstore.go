// Package memstore provides an in-memory implementation of store.Store.
// It enforces the same unique keys and conditional writes as the Postgres
// store and backs service tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

type leaderboardKey struct {
	creatorID int64
	monthKey  string
}

// Store implements store.Store with maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	creators     map[int64]*models.Creator
	gifts        map[string]*models.Gift // key: ref
	signals      map[string]string
	history      map[string]*models.HistoricalGift // key: original gift id
	leaderboards map[leaderboardKey]*models.MonthlyLeaderboard
	queue        map[string]*models.MediaQueueItem // key: item id
	queueByGift  map[string]string
	maxPosition  map[int64]int64

	// FailArchive, when set, is consulted before the live gift is deleted.
	// Tests use it to simulate a crash between the two archival writes.
	FailArchive func(h *models.HistoricalGift) error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		creators:     make(map[int64]*models.Creator),
		gifts:        make(map[string]*models.Gift),
		signals:      make(map[string]string),
		history:      make(map[string]*models.HistoricalGift),
		leaderboards: make(map[leaderboardKey]*models.MonthlyLeaderboard),
		queue:        make(map[string]*models.MediaQueueItem),
		queueByGift:  make(map[string]string),
		maxPosition:  make(map[int64]int64),
	}
}

func (s *Store) Close() error { return nil }

// AddCreator seeds a creator; there is no creator registration in the core.
func (s *Store) AddCreator(c models.Creator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creators[c.ID] = &c
}

func (s *Store) CreatorByID(_ context.Context, id int64) (*models.Creator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creators[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CreatorByUsername(_ context.Context, username string) (*models.Creator, error) {
	return s.findCreator(func(c *models.Creator) bool { return c.Username == username })
}

func (s *Store) CreatorByWidgetToken(_ context.Context, token string) (*models.Creator, error) {
	return s.findCreator(func(c *models.Creator) bool { return token != "" && c.WidgetSecretToken == token })
}

func (s *Store) findCreator(match func(*models.Creator) bool) (*models.Creator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.creators {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// Gifts

func (s *Store) CreateGift(_ context.Context, g *models.Gift) error {
	if g.Amount <= 0 {
		return fmt.Errorf("insert gift: amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gifts[g.Ref]; ok {
		return store.ErrDuplicate
	}
	cp := *g
	s.gifts[g.Ref] = &cp
	return nil
}

func (s *Store) GiftByRef(_ context.Context, ref string) (*models.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gifts[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneGift(g), nil
}

func (s *Store) PendingByAmount(_ context.Context, amount int64, channel string, since time.Time) ([]models.Gift, error) {
	return s.selectGifts(func(g *models.Gift) bool {
		return g.Status == models.GiftPending && g.Amount == amount && g.Channel == channel && !g.CreatedAt.Before(since)
	}, true), nil
}

func (s *Store) LatestPending(_ context.Context, channel string, since time.Time) (*models.Gift, error) {
	gifts := s.selectGifts(func(g *models.Gift) bool {
		return g.Status == models.GiftPending && g.Channel == channel && !g.CreatedAt.Before(since)
	}, true)
	if len(gifts) == 0 {
		return nil, store.ErrNotFound
	}
	return &gifts[0], nil
}

func (s *Store) MarkPaid(_ context.Context, ref string, u store.PaidUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gifts[ref]
	if !ok || g.Status != models.GiftPending {
		return false, nil
	}
	paidAt := u.PaidAt
	g.Status = models.GiftPaid
	g.GatewayTxID = u.GatewayTxID
	g.MatchMethod = u.MatchMethod
	g.PaidAt = &paidAt
	g.PayoutEligible = true
	g.UpdatedAt = u.PaidAt
	return true, nil
}

func (s *Store) MarkClosed(_ context.Context, ref string, status models.GiftStatus, at time.Time) (bool, error) {
	if status != models.GiftFailed && status != models.GiftCancelled {
		return false, fmt.Errorf("mark gift closed: invalid status %s", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gifts[ref]
	if !ok || g.Status != models.GiftPending {
		return false, nil
	}
	g.Status = status
	g.UpdatedAt = at
	return true, nil
}

func (s *Store) ClaimNotification(_ context.Context, ref string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gifts[ref]
	if !ok || g.Status != models.GiftPaid || g.NotifiedAt != nil {
		return false, nil
	}
	g.NotifiedAt = &at
	g.UpdatedAt = at
	return true, nil
}

func (s *Store) MarkMediaProcessed(_ context.Context, ref string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gifts[ref]
	if !ok || g.MediaShare.Processed {
		return false, nil
	}
	g.MediaShare.Processed = true
	g.UpdatedAt = at
	return true, nil
}

func (s *Store) PaidCreatedBefore(_ context.Context, cutoff time.Time) ([]models.Gift, error) {
	return s.selectGifts(func(g *models.Gift) bool {
		return g.Status == models.GiftPaid && g.CreatedAt.Before(cutoff)
	}, false), nil
}

func (s *Store) PaidForCreatorBetween(_ context.Context, creatorID int64, from, to time.Time) ([]models.Gift, error) {
	return s.selectGifts(func(g *models.Gift) bool {
		return g.Status == models.GiftPaid && g.CreatorID == creatorID && !g.CreatedAt.Before(from) && g.CreatedAt.Before(to)
	}, false), nil
}

func (s *Store) SignalGift(_ context.Context, fingerprint string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.signals[fingerprint]
	if !ok {
		return "", store.ErrNotFound
	}
	return ref, nil
}

func (s *Store) ClaimSignal(_ context.Context, fingerprint, ref string, _ time.Time) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.signals[fingerprint]; ok {
		return owner, false, nil
	}
	for _, bound := range s.signals {
		if bound == ref {
			return "", false, store.ErrDuplicate
		}
	}
	s.signals[fingerprint] = ref
	return ref, true, nil
}

func (s *Store) ReleaseSignal(_ context.Context, fingerprint, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signals[fingerprint] == ref {
		delete(s.signals, fingerprint)
	}
	return nil
}

// selectGifts returns copies of matching gifts ordered by creation time.
func (s *Store) selectGifts(match func(*models.Gift) bool, newestFirst bool) []models.Gift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Gift
	for _, g := range s.gifts {
		if match(g) {
			out = append(out, *cloneGift(g))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneGift(g *models.Gift) *models.Gift {
	cp := *g
	if g.PaidAt != nil {
		t := *g.PaidAt
		cp.PaidAt = &t
	}
	if g.NotifiedAt != nil {
		t := *g.NotifiedAt
		cp.NotifiedAt = &t
	}
	return &cp
}

// History

func (s *Store) ArchiveGift(_ context.Context, h *models.HistoricalGift) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := false
	if _, ok := s.history[h.OriginalGiftID]; !ok {
		cp := *h
		s.history[h.OriginalGiftID] = &cp
		created = true
	}
	if s.FailArchive != nil {
		if err := s.FailArchive(h); err != nil {
			return created, err
		}
	}
	for ref, g := range s.gifts {
		if g.ID == h.OriginalGiftID && g.Status == models.GiftPaid {
			delete(s.gifts, ref)
		}
	}
	return created, nil
}

func (s *Store) HistoryForMonth(_ context.Context, creatorID int64, monthKey string) ([]models.HistoricalGift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.HistoricalGift
	for _, h := range s.history {
		if h.CreatorID == creatorID && h.MonthKey == monthKey {
			out = append(out, *h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// HistoryCount returns how many historical rows exist.
func (s *Store) HistoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Leaderboards

func (s *Store) UpsertLeaderboard(_ context.Context, lb *models.MonthlyLeaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *lb
	cp.TopDonors = append(models.DonorRanks{}, lb.TopDonors...)
	s.leaderboards[leaderboardKey{lb.CreatorID, lb.MonthKey}] = &cp
	return nil
}

func (s *Store) Leaderboard(_ context.Context, creatorID int64, monthKey string) (*models.MonthlyLeaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lb, ok := s.leaderboards[leaderboardKey{creatorID, monthKey}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *lb
	cp.TopDonors = append(models.DonorRanks{}, lb.TopDonors...)
	return &cp, nil
}

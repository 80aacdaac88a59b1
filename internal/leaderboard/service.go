package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gift-platform/internal/apperr"
	"gift-platform/internal/logger"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

var (
	ErrCreatorNotFound = apperr.New(apperr.CategoryNotFound, "CREATOR_NOT_FOUND", "creator not found")
	ErrInvalidMonth    = apperr.New(apperr.CategoryValidation, "INVALID_MONTH", "month must be formatted YYYY-MM")
)

const defaultTopN = 10

type Store interface {
	CreatorByUsername(ctx context.Context, username string) (*models.Creator, error)
	HistoryForMonth(ctx context.Context, creatorID int64, monthKey string) ([]models.HistoricalGift, error)
	PaidForCreatorBetween(ctx context.Context, creatorID int64, from, to time.Time) ([]models.Gift, error)
	store.Leaderboards
}

type Service struct {
	store Store
	cache Cache
	loc   *time.Location
	topN  int
	log   *logger.Logger
	now   func() time.Time
}

// NewService wires the aggregation. cache may be nil.
func NewService(st Store, cache Cache, loc *time.Location, topN int, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if topN <= 0 {
		topN = defaultTopN
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: st, cache: cache, loc: loc, topN: topN, log: log, now: time.Now}
}

// MonthKey returns the platform month containing t.
func (s *Service) MonthKey(t time.Time) string {
	_, _, key := models.MonthKeyOf(t, s.loc)
	return key
}

// Build derives the leaderboard from history plus still-live PAID gifts
// without persisting it.
func (s *Service) Build(ctx context.Context, creatorID int64, creatorHandle, monthKey string) (*models.MonthlyLeaderboard, error) {
	from, to, err := MonthBounds(monthKey, s.loc)
	if err != nil {
		return nil, apperr.Wrap(ErrInvalidMonth, err, "")
	}
	history, err := s.store.HistoryForMonth(ctx, creatorID, monthKey)
	if err != nil {
		return nil, apperr.Persistence("load gift history", err)
	}
	live, err := s.store.PaidForCreatorBetween(ctx, creatorID, from, to)
	if err != nil {
		return nil, apperr.Persistence("load paid gifts", err)
	}

	contributions := make([]Contribution, 0, len(history)+len(live))
	for _, h := range history {
		contributions = append(contributions, FromHistory(h))
	}
	for _, g := range live {
		contributions = append(contributions, FromLive(g))
	}
	return Compute(creatorID, creatorHandle, monthKey, contributions, s.topN, s.loc, s.now()), nil
}

// Recompute rebuilds and stores the row for one creator and month.
func (s *Service) Recompute(ctx context.Context, creatorID int64, creatorHandle, monthKey string) (*models.MonthlyLeaderboard, error) {
	lb, err := s.Build(ctx, creatorID, creatorHandle, monthKey)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertLeaderboard(ctx, lb); err != nil {
		return nil, apperr.Persistence("store leaderboard", err)
	}
	s.cacheSet(ctx, lb)
	s.log.Debugw("leaderboard recomputed", "creator_id", creatorID, "month", monthKey,
		"total", lb.TotalAmount, "gifts", lb.GiftCount)
	return lb, nil
}

// RefreshCreator recomputes the month containing at.
func (s *Service) RefreshCreator(ctx context.Context, creatorID int64, creatorHandle string, at time.Time) error {
	_, err := s.Recompute(ctx, creatorID, creatorHandle, s.MonthKey(at))
	return err
}

// Get serves a creator's leaderboard for monthKey (current month when
// empty): cache, then the materialized row, then a live recompute.
func (s *Service) Get(ctx context.Context, creatorHandle, monthKey string) (*models.MonthlyLeaderboard, error) {
	if monthKey == "" {
		monthKey = s.MonthKey(s.now())
	}
	if _, err := models.ParseMonthKey(monthKey, s.loc); err != nil {
		return nil, apperr.Wrap(ErrInvalidMonth, err, fmt.Sprintf("invalid month %q", monthKey))
	}
	creator, err := s.store.CreatorByUsername(ctx, creatorHandle)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCreatorNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("lookup creator", err)
	}

	if s.cache != nil {
		lb, err := s.cache.Get(ctx, creator.ID, monthKey)
		if err != nil {
			s.log.Warnw("leaderboard cache read failed", "creator_id", creator.ID, "error", err)
		} else if lb != nil {
			return lb, nil
		}
	}

	lb, err := s.store.Leaderboard(ctx, creator.ID, monthKey)
	switch {
	case err == nil:
		s.cacheSet(ctx, lb)
		return lb, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Persistence("load leaderboard", err)
	}

	lb, err = s.Build(ctx, creator.ID, creator.Username, monthKey)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, lb)
	return lb, nil
}

func (s *Service) cacheSet(ctx context.Context, lb *models.MonthlyLeaderboard) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, lb); err != nil {
		s.log.Warnw("leaderboard cache write failed", "creator_id", lb.CreatorID, "error", err)
	}
}

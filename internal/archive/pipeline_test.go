package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-platform/internal/leaderboard"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
	"gift-platform/internal/store/memstore"
)

var wib = time.FixedZone("WIB", 7*60*60)

var runAt = time.Date(2026, 9, 20, 12, 0, 0, 0, wib)

type recordingSink struct {
	mu    sync.Mutex
	gifts []models.HistoricalGift
}

func (s *recordingSink) RecordArchived(_ context.Context, gifts []models.HistoricalGift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gifts = append(s.gifts, gifts...)
	return nil
}

func newTestPipeline(t *testing.T, sink Sink) (*Pipeline, *memstore.Store, *leaderboard.Service) {
	t.Helper()
	st := memstore.New()
	st.AddCreator(models.Creator{ID: 1, Username: "alice"})
	st.AddCreator(models.Creator{ID: 2, Username: "bob"})
	lb := leaderboard.NewService(st, nil, wib, 10, nil)
	p := NewPipeline(st, lb, sink, Config{Retention: 24 * time.Hour, Location: wib}, nil)
	p.now = func() time.Time { return runAt }
	return p, st, lb
}

func seed(t *testing.T, st *memstore.Store, ref string, creatorID int64, amount int64, status models.GiftStatus, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	handle := map[int64]string{1: "alice", 2: "bob"}[creatorID]
	require.NoError(t, st.CreateGift(ctx, &models.Gift{
		ID: "id-" + ref, Ref: ref, Amount: amount, DonorName: "Budi", CreatorID: creatorID, CreatorHandle: handle,
		Channel: "gopay", Status: models.GiftPending, CreatedAt: createdAt, UpdatedAt: createdAt,
	}))
	switch status {
	case models.GiftPaid:
		_, err := st.MarkPaid(ctx, ref, store.PaidUpdate{MatchMethod: "reference", PaidAt: createdAt})
		require.NoError(t, err)
	case models.GiftFailed, models.GiftCancelled:
		_, err := st.MarkClosed(ctx, ref, status, createdAt)
		require.NoError(t, err)
	}
}

func TestRunArchivesOnlyOldPaidGifts(t *testing.T) {
	sink := &recordingSink{}
	p, st, _ := newTestPipeline(t, sink)
	ctx := context.Background()

	seed(t, st, "DONOLD1", 1, 50000, models.GiftPaid, runAt.Add(-48*time.Hour))
	seed(t, st, "DONOLD2", 2, 20000, models.GiftPaid, runAt.Add(-30*time.Hour))
	seed(t, st, "DONFRESH", 1, 10000, models.GiftPaid, runAt.Add(-time.Hour))
	seed(t, st, "DONPEND", 1, 10000, models.GiftPending, runAt.Add(-72*time.Hour))
	seed(t, st, "DONCANC", 1, 10000, models.GiftCancelled, runAt.Add(-72*time.Hour))

	summary, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Archived)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.AlreadyArchived)
	assert.Equal(t, 2, summary.LeaderboardUpdated)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 2, st.HistoryCount())
	assert.Len(t, sink.gifts, 2)

	for _, ref := range []string{"DONOLD1", "DONOLD2"} {
		_, err := st.GiftByRef(ctx, ref)
		assert.ErrorIs(t, err, store.ErrNotFound, ref)
	}
	for _, ref := range []string{"DONFRESH", "DONPEND", "DONCANC"} {
		_, err := st.GiftByRef(ctx, ref)
		assert.NoError(t, err, ref)
	}

	history, err := st.HistoryForMonth(ctx, 1, "2026-09")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "id-DONOLD1", history[0].OriginalGiftID)
	assert.Equal(t, 2026, history[0].Year)
	assert.Equal(t, 9, history[0].Month)
	assert.Equal(t, runAt, history[0].ArchivedAt)

	// Archived plus still-live current-month gifts, each once.
	row, err := st.Leaderboard(ctx, 1, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, int64(60000), row.TotalAmount)
	assert.Equal(t, 2, row.GiftCount)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	p, st, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	seed(t, st, "DON1", 1, 50000, models.GiftPaid, runAt.Add(-48*time.Hour))
	seed(t, st, "DON2", 1, 25000, models.GiftPaid, runAt.Add(-36*time.Hour))

	_, err := p.Run(ctx)
	require.NoError(t, err)
	first, err := st.Leaderboard(ctx, 1, "2026-09")
	require.NoError(t, err)

	summary, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.LeaderboardUpdated)
	assert.Equal(t, 2, st.HistoryCount())

	second, err := st.Leaderboard(ctx, 1, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Equal(t, int64(75000), second.TotalAmount)
}

func TestRunRecoversFromPartialPriorFailure(t *testing.T) {
	p, st, lb := newTestPipeline(t, nil)
	ctx := context.Background()
	seed(t, st, "DON1", 1, 50000, models.GiftPaid, runAt.Add(-48*time.Hour))

	// The copy is written but the live row survives.
	st.FailArchive = func(*models.HistoricalGift) error { return errors.New("connection lost") }
	summary, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Errors, 1)
	assert.Equal(t, 1, st.HistoryCount())
	_, err = st.GiftByRef(ctx, "DON1")
	require.NoError(t, err)

	// Both copies are visible now, yet the gift counts once.
	row, err := lb.Recompute(ctx, 1, "alice", "2026-09")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), row.TotalAmount)

	st.FailArchive = nil
	summary, err = p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Archived)
	assert.Equal(t, 1, summary.AlreadyArchived)
	assert.Equal(t, 1, summary.LeaderboardUpdated)
	assert.Equal(t, 1, st.HistoryCount())

	_, err = st.GiftByRef(ctx, "DON1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	row, err = st.Leaderboard(ctx, 1, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), row.TotalAmount)
	assert.Equal(t, 1, row.GiftCount)
}

func TestRunContinuesPastFailures(t *testing.T) {
	p, st, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	seed(t, st, "DONBAD", 1, 50000, models.GiftPaid, runAt.Add(-48*time.Hour))
	seed(t, st, "DONOK", 2, 20000, models.GiftPaid, runAt.Add(-48*time.Hour))

	st.FailArchive = func(h *models.HistoricalGift) error {
		if h.Ref == "DONBAD" {
			return errors.New("disk full")
		}
		return nil
	}
	summary, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Archived)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "DONBAD")
	assert.Equal(t, 1, summary.LeaderboardUpdated)
}

func TestRunRecomputesArchivedMonth(t *testing.T) {
	p, st, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	seed(t, st, "DONAUG", 1, 40000, models.GiftPaid, time.Date(2026, 8, 31, 22, 0, 0, 0, wib))

	summary, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.LeaderboardUpdated)

	aug, err := st.Leaderboard(ctx, 1, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(40000), aug.TotalAmount)

	sep, err := st.Leaderboard(ctx, 1, "2026-09")
	require.NoError(t, err)
	assert.Zero(t, sep.TotalAmount)
}

func TestSchedulerRunsPipeline(t *testing.T) {
	p, st, _ := newTestPipeline(t, nil)
	seed(t, st, "DON1", 1, 50000, models.GiftPaid, runAt.Add(-48*time.Hour))

	s := &Scheduler{Pipeline: p, Interval: 10 * time.Millisecond, Log: p.log}
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return st.HistoryCount() == 1 }, time.Second, 5*time.Millisecond)
}

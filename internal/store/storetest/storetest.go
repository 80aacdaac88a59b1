// Package storetest is the behavioural contract every store.Store
// implementation runs in its own tests.
package storetest

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

// Harness is a fresh, empty store plus a way to seed creators.
type Harness struct {
	Store      store.Store
	AddCreator func(t *testing.T, c models.Creator)
}

// Run executes the contract against stores built by newHarness.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	tests := map[string]func(*testing.T, Harness){
		"Gifts":         testGifts,
		"PendingLookup": testPendingLookup,
		"Transitions":   testTransitions,
		"Signals":       testSignals,
		"Archive":       testArchive,
		"Leaderboards":  testLeaderboards,
		"Queue":         testQueue,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.AddCreator(t, models.Creator{ID: 1, Username: "alice", WidgetSecretToken: "w-alice", TelegramChatID: "42"})
			h.AddCreator(t, models.Creator{ID: 2, Username: "bob", WidgetSecretToken: "w-bob"})
			fn(t, h)
		})
	}
}

var base = time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

func newGift(ref string, amount int64, creatorID int64, createdAt time.Time) *models.Gift {
	handle := "alice"
	if creatorID == 2 {
		handle = "bob"
	}
	return &models.Gift{
		ID:            uuid.NewString(),
		Ref:           ref,
		Amount:        amount,
		DonorName:     "Rina",
		Message:       "semangat",
		CreatorID:     creatorID,
		CreatorHandle: handle,
		Channel:       "gopay",
		Status:        models.GiftPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func create(t *testing.T, st store.Store, g *models.Gift) *models.Gift {
	t.Helper()
	require.NoError(t, st.CreateGift(context.Background(), g))
	return g
}

func testGifts(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	c, err := st.CreatorByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "42", c.TelegramChatID)
	c, err = st.CreatorByWidgetToken(ctx, "w-bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", c.Username)
	_, err = st.CreatorByID(ctx, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)

	g := newGift("DONAAA111", 50000, 1, base)
	g.MediaShare = models.MediaShare{Enabled: true, URL: "https://youtu.be/dQw4w9WgXcQ", RequestedSeconds: 30}
	create(t, st, g)

	dup := newGift("DONAAA111", 1000, 1, base)
	assert.ErrorIs(t, st.CreateGift(ctx, dup), store.ErrDuplicate)

	got, err := st.GiftByRef(ctx, "DONAAA111")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, int64(50000), got.Amount)
	assert.Equal(t, models.GiftPending, got.Status)
	assert.True(t, got.MediaShare.Enabled)
	assert.Equal(t, 30, got.MediaShare.RequestedSeconds)
	assert.True(t, base.Equal(got.CreatedAt))

	_, err = st.GiftByRef(ctx, "DONNOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testPendingLookup(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store
	create(t, st, newGift("DONOLD001", 25000, 1, base.Add(-2*time.Hour)))
	create(t, st, newGift("DONMID001", 25000, 1, base.Add(-20*time.Minute)))
	create(t, st, newGift("DONNEW001", 25000, 2, base.Add(-time.Minute)))
	create(t, st, newGift("DONOTH001", 30000, 1, base))
	other := newGift("DONOVO001", 25000, 1, base)
	other.Channel = "ovo"
	create(t, st, other)

	gifts, err := st.PendingByAmount(ctx, 25000, "gopay", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, gifts, 2)
	assert.Equal(t, "DONNEW001", gifts[0].Ref)
	assert.Equal(t, "DONMID001", gifts[1].Ref)

	latest, err := st.LatestPending(ctx, "gopay", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "DONOTH001", latest.Ref)

	_, err = st.LatestPending(ctx, "dana", base.Add(-time.Hour))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTransitions(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store
	create(t, st, newGift("DONPAY001", 10000, 1, base))
	create(t, st, newGift("DONCAN001", 10000, 1, base))

	ok, err := st.ClaimNotification(ctx, "DONPAY001", base)
	require.NoError(t, err)
	assert.False(t, ok, "pending gifts cannot be notified")

	ok, err = st.MarkPaid(ctx, "DONPAY001", store.PaidUpdate{GatewayTxID: "tx-1", MatchMethod: "reference", PaidAt: base})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.MarkPaid(ctx, "DONPAY001", store.PaidUpdate{MatchMethod: "amount", PaidAt: base})
	require.NoError(t, err)
	assert.False(t, ok)

	g, err := st.GiftByRef(ctx, "DONPAY001")
	require.NoError(t, err)
	assert.Equal(t, models.GiftPaid, g.Status)
	assert.Equal(t, "tx-1", g.GatewayTxID)
	assert.Equal(t, "reference", g.MatchMethod)
	assert.True(t, g.PayoutEligible)
	require.NotNil(t, g.PaidAt)

	ok, err = st.MarkClosed(ctx, "DONPAY001", models.GiftCancelled, base)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = st.ClaimNotification(ctx, "DONPAY001", base)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.ClaimNotification(ctx, "DONPAY001", base)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = st.MarkMediaProcessed(ctx, "DONPAY001", base)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.MarkMediaProcessed(ctx, "DONPAY001", base)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = st.MarkClosed(ctx, "DONCAN001", models.GiftCancelled, base)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.MarkPaid(ctx, "DONCAN001", store.PaidUpdate{PaidAt: base})
	require.NoError(t, err)
	assert.False(t, ok)

	paid, err := st.PaidCreatedBefore(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "DONPAY001", paid[0].Ref)

	paid, err = st.PaidForCreatorBetween(ctx, 1, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, paid, 1)
	paid, err = st.PaidForCreatorBetween(ctx, 2, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, paid)
}

func testSignals(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store
	create(t, st, newGift("DONSIG001", 20000, 1, base))
	create(t, st, newGift("DONSIG002", 20000, 1, base))

	_, err := st.SignalGift(ctx, "fp-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	owner, created, err := st.ClaimSignal(ctx, "fp-1", "DONSIG001", base)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "DONSIG001", owner)

	owner, created, err = st.ClaimSignal(ctx, "fp-1", "DONSIG002", base)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "DONSIG001", owner)

	_, _, err = st.ClaimSignal(ctx, "fp-2", "DONSIG001", base)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	ref, err := st.SignalGift(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "DONSIG001", ref)

	// Releasing with the wrong owner keeps the binding.
	require.NoError(t, st.ReleaseSignal(ctx, "fp-1", "DONSIG002"))
	_, err = st.SignalGift(ctx, "fp-1")
	require.NoError(t, err)

	require.NoError(t, st.ReleaseSignal(ctx, "fp-1", "DONSIG001"))
	_, err = st.SignalGift(ctx, "fp-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testArchive(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store
	g := create(t, st, newGift("DONARC001", 40000, 1, base))
	_, err := st.MarkPaid(ctx, g.Ref, store.PaidUpdate{MatchMethod: "reference", PaidAt: base})
	require.NoError(t, err)
	g, err = st.GiftByRef(ctx, g.Ref)
	require.NoError(t, err)

	hist := models.NewHistoricalGift(uuid.NewString(), g, time.UTC, base.Add(48*time.Hour))
	created, err := st.ArchiveGift(ctx, hist)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = st.GiftByRef(ctx, g.Ref)
	assert.ErrorIs(t, err, store.ErrNotFound)

	again := models.NewHistoricalGift(uuid.NewString(), g, time.UTC, base.Add(72*time.Hour))
	created, err = st.ArchiveGift(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	rows, err := st.HistoryForMonth(ctx, 1, "2026-09")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, g.ID, rows[0].OriginalGiftID)
	assert.Equal(t, int64(40000), rows[0].Amount)
	assert.Equal(t, 2026, rows[0].Year)
	assert.Equal(t, 9, rows[0].Month)

	rows, err = st.HistoryForMonth(ctx, 1, "2026-08")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Late on the last day of September in UTC is October in Jakarta. A
	// retry under another timezone must not add a second copy.
	late := create(t, st, newGift("DONARC002", 15000, 1, time.Date(2026, 9, 30, 20, 0, 0, 0, time.UTC)))
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	created, err = st.ArchiveGift(ctx, models.NewHistoricalGift(uuid.NewString(), late, time.UTC, base))
	require.NoError(t, err)
	assert.True(t, created)
	created, err = st.ArchiveGift(ctx, models.NewHistoricalGift(uuid.NewString(), late, jakarta, base))
	require.NoError(t, err)
	assert.False(t, created)

	rows, err = st.HistoryForMonth(ctx, 1, "2026-10")
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = st.HistoryForMonth(ctx, 1, "2026-09")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func testLeaderboards(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	_, err := st.Leaderboard(ctx, 1, "2026-09")
	assert.ErrorIs(t, err, store.ErrNotFound)

	lb := &models.MonthlyLeaderboard{
		CreatorID:     1,
		CreatorHandle: "alice",
		MonthKey:      "2026-09",
		TopDonors:     models.DonorRanks{{Rank: 1, Name: "Rina", TotalAmount: 40000, GiftCount: 2, LastGiftAt: base}},
		TotalAmount:   40000,
		GiftCount:     2,
		UniqueDonors:  1,
		PeakDay:       "2026-09-15",
		PeakDayAmount: 40000,
		ComputedAt:    base,
	}
	require.NoError(t, st.UpsertLeaderboard(ctx, lb))

	lb.TotalAmount = 55000
	lb.TopDonors = models.DonorRanks{}
	require.NoError(t, st.UpsertLeaderboard(ctx, lb))

	got, err := st.Leaderboard(ctx, 1, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, int64(55000), got.TotalAmount)
	assert.Empty(t, got.TopDonors)
	assert.Equal(t, "2026-09-15", got.PeakDay)
}

func newItem(ref string, creatorID int64) *models.MediaQueueItem {
	return &models.MediaQueueItem{
		ID:               uuid.NewString(),
		SourceGiftRef:    ref,
		CreatorID:        creatorID,
		CreatorHandle:    "alice",
		DonorName:        "Rina",
		Amount:           50000,
		VideoID:          "dQw4w9WgXcQ",
		VideoURL:         "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		RequestedSeconds: 120,
		CreatedAt:        base,
	}
}

func testQueue(t *testing.T, h Harness) {
	ctx := context.Background()
	st := h.Store

	first := newItem("DONQ001", 1)
	created, err := st.EnqueueItem(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), first.QueuePosition)

	second := newItem("DONQ002", 1)
	_, err = st.EnqueueItem(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.QueuePosition)

	again := newItem("DONQ001", 1)
	created, err = st.EnqueueItem(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	ok, err := st.StartPlaying(ctx, first.ID, base)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = st.StartPlaying(ctx, second.ID, base)
	assert.ErrorIs(t, err, store.ErrPlaying)

	ok, err = st.FinishItem(ctx, first.ID, models.QueuePlayed, base, 100, "")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.FinishItem(ctx, first.ID, models.QueueSkipped, base, 0, "late")
	require.NoError(t, err)
	assert.False(t, ok)

	done, err := st.QueueItem(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePlayed, done.Status)
	assert.Equal(t, 100, done.ActualSeconds)

	third := newItem("DONQ003", 1)
	_, err = st.EnqueueItem(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.QueuePosition)

	active, err := st.ActiveItems(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, third.ID, active[1].ID)

	byGift, err := st.QueueItemByGift(ctx, "DONQ002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byGift.ID)
	_, err = st.QueueItem(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

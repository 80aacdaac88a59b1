package mediaqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-platform/internal/apperr"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
	"gift-platform/internal/store/memstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ int64, kind string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind)
}

func newTestEngine(t *testing.T) (*Engine, *memstore.Store, *recordingPublisher) {
	t.Helper()
	st := memstore.New()
	pub := &recordingPublisher{}
	return NewEngine(st, pub, nil), st, pub
}

func paidGift(t *testing.T, st *memstore.Store, ref string, amount int64, url string) *models.Gift {
	t.Helper()
	now := time.Now()
	g := &models.Gift{
		ID:            "id-" + ref,
		Ref:           ref,
		Amount:        amount,
		DonorName:     "Sari",
		CreatorID:     7,
		CreatorHandle: "alice",
		Channel:       "gopay",
		Status:        models.GiftPending,
		MediaShare:    models.MediaShare{Enabled: true, URL: url},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ctx := context.Background()
	require.NoError(t, st.CreateGift(ctx, g))
	_, err := st.MarkPaid(ctx, ref, store.PaidUpdate{GatewayTxID: "tx-" + ref, MatchMethod: "reference", PaidAt: now})
	require.NoError(t, err)
	out, err := st.GiftByRef(ctx, ref)
	require.NoError(t, err)
	return out
}

func TestEnqueueTierDurationsAndPositions(t *testing.T) {
	e, st, pub := newTestEngine(t)
	ctx := context.Background()

	amounts := []int64{10000, 60000, 150000}
	want := []int{30, 120, 300}
	for i, amount := range amounts {
		g := paidGift(t, st, fmt.Sprintf("DON%d", amount), amount, "https://youtu.be/dQw4w9WgXcQ")
		item, created, err := e.EnqueueFromGift(ctx, g)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, want[i], item.RequestedSeconds)
		assert.Equal(t, int64(i+1), item.QueuePosition)
		assert.Equal(t, models.QueuePending, item.Status)
		assert.Equal(t, "dQw4w9WgXcQ", item.VideoID)
	}
	assert.Len(t, pub.events, 3)
}

func TestEnqueueFromGiftIsIdempotent(t *testing.T) {
	e, st, pub := newTestEngine(t)
	ctx := context.Background()
	g := paidGift(t, st, "DON1", 25000, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")

	first, created, err := e.EnqueueFromGift(ctx, g)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := e.EnqueueFromGift(ctx, g)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.QueuePosition, second.QueuePosition)
	assert.Len(t, pub.events, 1)
}

func TestEnqueueRejectsInvalidMedia(t *testing.T) {
	e, st, _ := newTestEngine(t)
	g := paidGift(t, st, "DON1", 25000, "https://vimeo.com/12345")

	_, _, err := e.EnqueueFromGift(context.Background(), g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMedia)
	assert.Equal(t, 400, apperr.StatusOf(err))
}

func TestQueuePositionsNeverReused(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	a, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, "DONA", 5000, "youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)
	b, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, "DONB", 5000, "youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)

	_, err = e.Advance(ctx, b.ID, models.QueuePlayed, 15, 7)
	require.NoError(t, err)

	c, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, "DONC", 5000, "youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)
	assert.Greater(t, c.QueuePosition, b.QueuePosition)
	assert.Greater(t, b.QueuePosition, a.QueuePosition)

	active, err := e.ListActive(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, c.ID, active[1].ID)
}

func TestEnqueueRef(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	paidGift(t, st, "DONPAID", 50000, "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, st.CreateGift(ctx, &models.Gift{
		ID: "id-pending", Ref: "DONPENDING", Amount: 50000, CreatorID: 7, CreatorHandle: "alice",
		Channel: "gopay", Status: models.GiftPending, CreatedAt: time.Now(),
	}))

	_, err := e.EnqueueRef(ctx, "DONMISSING", 7)
	assert.ErrorIs(t, err, ErrGiftNotFound)

	_, err = e.EnqueueRef(ctx, "DONPENDING", 7)
	assert.ErrorIs(t, err, ErrGiftNotPaid)

	_, err = e.EnqueueRef(ctx, "DONPAID", 8)
	assert.ErrorIs(t, err, ErrNotOwner)

	item, err := e.EnqueueRef(ctx, "DONPAID", 7)
	require.NoError(t, err)
	assert.Equal(t, 120, item.RequestedSeconds)

	g, err := st.GiftByRef(ctx, "DONPAID")
	require.NoError(t, err)
	assert.True(t, g.MediaShare.Processed)

	_, err = e.EnqueueRef(ctx, "DONPAID", 7)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestAdvanceLifecycle(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	item, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, "DON1", 10000, "youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)

	playing, err := e.Advance(ctx, item.ID, models.QueuePlaying, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePlaying, playing.Status)
	assert.NotNil(t, playing.StartedAt)

	// Repeating the same transition converges.
	again, err := e.Advance(ctx, item.ID, models.QueuePlaying, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, playing.StartedAt, again.StartedAt)

	played, err := e.Advance(ctx, item.ID, models.QueuePlayed, 28, 7)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePlayed, played.Status)
	assert.Equal(t, 28, played.ActualSeconds)
	assert.NotNil(t, played.PlayedAt)

	_, err = e.Advance(ctx, item.ID, models.QueuePlayed, 28, 7)
	assert.NoError(t, err)

	_, err = e.Advance(ctx, item.ID, models.QueuePlaying, 0, 7)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.Skip(ctx, item.ID, "too loud", 7)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.Advance(ctx, "missing", models.QueuePlayed, 0, 7)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestSkipOnlyByOwner(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	item, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, "DON1", 10000, "youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)

	_, err = e.Skip(ctx, item.ID, "", 99)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, 403, apperr.StatusOf(err))

	skipped, err := e.Skip(ctx, item.ID, "off topic", 7)
	require.NoError(t, err)
	assert.Equal(t, models.QueueSkipped, skipped.Status)
	assert.Equal(t, "off topic", skipped.SkipReason)
}

func TestOnlyOneItemPlaysAtATime(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 8; i++ {
		item, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, fmt.Sprintf("DON%d", i), 10000, "youtu.be/dQw4w9WgXcQ"))
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.Advance(ctx, id, models.QueuePlaying, 0, 7)
			if err == nil {
				mu.Lock()
				started++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyPlaying)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, started)

	active, err := e.ListActive(ctx, "alice")
	require.NoError(t, err)
	playing := 0
	for _, item := range active {
		if item.Status == models.QueuePlaying {
			playing++
		}
	}
	assert.Equal(t, 1, playing)
}

func TestNext(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	next, err := e.Next(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, next)

	a, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, "DONA", 10000, "youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)
	b, _, err := e.EnqueueFromGift(ctx, paidGift(t, st, "DONB", 10000, "youtu.be/dQw4w9WgXcQ"))
	require.NoError(t, err)

	next, err = e.Next(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, next.ID)

	_, err = e.Advance(ctx, b.ID, models.QueuePlaying, 0, 7)
	require.NoError(t, err)
	next, err = e.Next(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, b.ID, next.ID)
}

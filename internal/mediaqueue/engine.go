// Package mediaqueue runs each creator's server-authoritative playback queue.
// The engine holds no timers; a display surface polls it and reports back.
package mediaqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gift-platform/internal/apperr"
	"gift-platform/internal/logger"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

var (
	ErrItemNotFound      = apperr.New(apperr.CategoryNotFound, "QUEUE_ITEM_NOT_FOUND", "queue item not found")
	ErrGiftNotFound      = apperr.New(apperr.CategoryNotFound, "GIFT_NOT_FOUND", "gift not found")
	ErrGiftNotPaid       = apperr.New(apperr.CategoryConflict, "GIFT_NOT_PAID", "gift is not settled")
	ErrAlreadyQueued     = apperr.New(apperr.CategoryConflict, "ALREADY_QUEUED", "gift is already queued")
	ErrAlreadyPlaying    = apperr.New(apperr.CategoryConflict, "ALREADY_PLAYING", "another item is already playing")
	ErrInvalidTransition = apperr.New(apperr.CategoryConflict, "INVALID_TRANSITION", "queue item cannot move to that status")
	ErrNotOwner          = apperr.New(apperr.CategoryForbidden, "NOT_OWNER", "queue item belongs to another creator")
)

// Event kinds published when a queue changes.
const (
	EventQueued  = "queue.added"
	EventUpdated = "queue.updated"
)

// Publisher receives queue changes for the creator's overlay. Delivery is
// best effort.
type Publisher interface {
	Publish(creatorID int64, kind string, payload any)
}

type Store interface {
	store.Queue
	GiftByRef(ctx context.Context, ref string) (*models.Gift, error)
	MarkMediaProcessed(ctx context.Context, ref string, at time.Time) (bool, error)
}

type Engine struct {
	store     Store
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewEngine(st Store, publisher Publisher, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{store: st, publisher: publisher, log: log, now: time.Now}
}

// EnqueueFromGift turns the gift's media request into a queue item. It is
// idempotent per gift: the second call returns the existing item and false.
func (e *Engine) EnqueueFromGift(ctx context.Context, g *models.Gift) (*models.MediaQueueItem, bool, error) {
	videoID, videoURL, err := ParseVideoURL(g.MediaShare.URL)
	if err != nil {
		e.log.Warnw("rejecting media request", "ref", g.Ref, "url", g.MediaShare.URL, "error", err)
		return nil, false, err
	}

	item := &models.MediaQueueItem{
		ID:               uuid.NewString(),
		SourceGiftRef:    g.Ref,
		CreatorID:        g.CreatorID,
		CreatorHandle:    g.CreatorHandle,
		DonorName:        g.DonorName,
		Amount:           g.Amount,
		Message:          g.Message,
		VideoID:          videoID,
		VideoURL:         videoURL,
		RequestedSeconds: DurationFor(g.Amount, g.MediaShare.RequestedSeconds),
		CreatedAt:        e.now(),
	}
	created, err := e.store.EnqueueItem(ctx, item)
	if err != nil {
		return nil, false, apperr.Persistence("enqueue media item", err)
	}
	if created {
		e.log.Infow("media queued", "ref", g.Ref, "creator_id", g.CreatorID,
			"position", item.QueuePosition, "seconds", item.RequestedSeconds)
		e.publish(item, EventQueued)
	}
	return item, created, nil
}

// EnqueueRef queues the media request of a settled gift on behalf of its
// creator.
func (e *Engine) EnqueueRef(ctx context.Context, ref string, requesterCreatorID int64) (*models.MediaQueueItem, error) {
	g, err := e.store.GiftByRef(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGiftNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("lookup gift", err)
	}
	if g.CreatorID != requesterCreatorID {
		return nil, ErrNotOwner
	}
	if g.Status != models.GiftPaid {
		return nil, apperr.Wrap(ErrGiftNotPaid, nil, fmt.Sprintf("gift %s is %s", ref, g.Status))
	}

	if _, err := e.store.QueueItemByGift(ctx, ref); err == nil {
		return nil, ErrAlreadyQueued
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Persistence("lookup queued gift", err)
	}

	item, created, err := e.EnqueueFromGift(ctx, g)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrAlreadyQueued
	}
	if _, err := e.store.MarkMediaProcessed(ctx, ref, e.now()); err != nil {
		return nil, apperr.Persistence("mark media processed", err)
	}
	return item, nil
}

func (e *Engine) ListActive(ctx context.Context, creatorHandle string) ([]models.MediaQueueItem, error) {
	items, err := e.store.ActiveItems(ctx, creatorHandle)
	if err != nil {
		return nil, apperr.Persistence("list queue", err)
	}
	if items == nil {
		items = []models.MediaQueueItem{}
	}
	return items, nil
}

// Next returns the item the display surface should show: the playing one,
// else the lowest positioned pending one. Nil when the queue is empty.
func (e *Engine) Next(ctx context.Context, creatorHandle string) (*models.MediaQueueItem, error) {
	items, err := e.ListActive(ctx, creatorHandle)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Status == models.QueuePlaying {
			return &items[i], nil
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Advance moves an item to target. Repeating the same transition returns the
// item unchanged; PLAYED and SKIPPED are final.
func (e *Engine) Advance(ctx context.Context, id string, target models.QueueStatus, actualSeconds int, requesterCreatorID int64) (*models.MediaQueueItem, error) {
	return e.transition(ctx, id, target, actualSeconds, "", requesterCreatorID)
}

// Skip ends an item that has not been played, at the owning creator's request.
func (e *Engine) Skip(ctx context.Context, id, reason string, requesterCreatorID int64) (*models.MediaQueueItem, error) {
	if reason == "" {
		reason = "skipped by creator"
	}
	return e.transition(ctx, id, models.QueueSkipped, 0, reason, requesterCreatorID)
}

func (e *Engine) transition(ctx context.Context, id string, target models.QueueStatus, actualSeconds int, reason string, requesterCreatorID int64) (*models.MediaQueueItem, error) {
	item, err := e.item(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.CreatorID != requesterCreatorID {
		return nil, ErrNotOwner
	}
	if item.Status == target {
		return item, nil
	}

	now := e.now()
	var changed bool
	switch target {
	case models.QueuePlaying:
		if item.Status != models.QueuePending {
			return nil, invalidTransition(item, target)
		}
		changed, err = e.store.StartPlaying(ctx, id, now)
		if errors.Is(err, store.ErrPlaying) {
			return nil, ErrAlreadyPlaying
		}
	case models.QueuePlayed, models.QueueSkipped:
		if item.Status.Finished() {
			return nil, invalidTransition(item, target)
		}
		changed, err = e.store.FinishItem(ctx, id, target, now, actualSeconds, reason)
	default:
		return nil, invalidTransition(item, target)
	}
	if err != nil {
		return nil, apperr.Persistence("advance queue item", err)
	}

	// A concurrent caller may have moved the item first.
	item, err = e.item(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		if item.Status == target {
			return item, nil
		}
		return nil, invalidTransition(item, target)
	}

	e.log.Infow("queue item advanced", "id", id, "creator_id", item.CreatorID, "status", target)
	e.publish(item, EventUpdated)
	return item, nil
}

func (e *Engine) item(ctx context.Context, id string) (*models.MediaQueueItem, error) {
	item, err := e.store.QueueItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("lookup queue item", err)
	}
	return item, nil
}

func (e *Engine) publish(item *models.MediaQueueItem, kind string) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(item.CreatorID, kind, item)
}

func invalidTransition(item *models.MediaQueueItem, target models.QueueStatus) error {
	return apperr.Wrap(ErrInvalidTransition, nil, fmt.Sprintf("queue item %s is %s, cannot become %s", item.ID, item.Status, target))
}

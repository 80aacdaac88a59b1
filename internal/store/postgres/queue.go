package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gift-platform/internal/models"
	"gift-platform/internal/store"
)

const queueColumns = `id, source_gift_ref, creator_id, creator_handle, donor_name, amount, message,
	video_id, video_url, requested_seconds, actual_seconds, queue_position, status, skip_reason,
	started_at, played_at, created_at`

// enqueueAttempts bounds retries when two enqueues for the same creator race
// for the same position.
const enqueueAttempts = 5

func (d *DB) EnqueueItem(ctx context.Context, item *models.MediaQueueItem) (bool, error) {
	for attempt := 1; attempt <= enqueueAttempts; attempt++ {
		var position int64
		err := d.db.GetContext(ctx, &position, `
			INSERT INTO media_queue_items
			  (id, source_gift_ref, creator_id, creator_handle, donor_name, amount, message,
			   video_id, video_url, requested_seconds, queue_position, status, created_at)
			SELECT $1::uuid, $2::text, $3::bigint, $4::text, $5::text, $6::bigint, $7::text,
			       $8::text, $9::text, $10::integer,
			       COALESCE(MAX(queue_position), 0) + 1, 'PENDING', $11::timestamptz
			FROM media_queue_items WHERE creator_id = $3::bigint
			ON CONFLICT (source_gift_ref) DO NOTHING
			RETURNING queue_position`,
			item.ID, item.SourceGiftRef, item.CreatorID, item.CreatorHandle, item.DonorName,
			item.Amount, item.Message, item.VideoID, item.VideoURL, item.RequestedSeconds, item.CreatedAt)

		switch {
		case err == nil:
			item.QueuePosition = position
			item.Status = models.QueuePending
			return true, nil
		case errors.Is(err, sql.ErrNoRows):
			existing, err := d.QueueItemByGift(ctx, item.SourceGiftRef)
			if err != nil {
				return false, err
			}
			*item = *existing
			return false, nil
		}

		if code, constraint := pgCode(err); code == codeUniqueViolation && constraint == "media_queue_items_position_key" {
			continue
		}
		return false, fmt.Errorf("insert queue item: %w", err)
	}
	return false, fmt.Errorf("insert queue item: position contention for creator %d", item.CreatorID)
}

func (d *DB) QueueItem(ctx context.Context, id string) (*models.MediaQueueItem, error) {
	var item models.MediaQueueItem
	if err := d.db.GetContext(ctx, &item, `SELECT `+queueColumns+` FROM media_queue_items WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (d *DB) QueueItemByGift(ctx context.Context, ref string) (*models.MediaQueueItem, error) {
	var item models.MediaQueueItem
	if err := d.db.GetContext(ctx, &item, `SELECT `+queueColumns+` FROM media_queue_items WHERE source_gift_ref = $1`, ref); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (d *DB) ActiveItems(ctx context.Context, creatorHandle string) ([]models.MediaQueueItem, error) {
	var items []models.MediaQueueItem
	query := `SELECT ` + queueColumns + ` FROM media_queue_items
		WHERE creator_handle = $1 AND status IN ('PENDING', 'PLAYING')
		ORDER BY queue_position ASC, created_at ASC`
	if err := d.db.SelectContext(ctx, &items, query, creatorHandle); err != nil {
		return nil, fmt.Errorf("select active queue items: %w", err)
	}
	return items, nil
}

func (d *DB) StartPlaying(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE media_queue_items q
		SET status = 'PLAYING', started_at = $2
		WHERE q.id = $1 AND q.status = 'PENDING'
		  AND NOT EXISTS (
		    SELECT 1 FROM media_queue_items p
		    WHERE p.creator_id = q.creator_id AND p.status = 'PLAYING'
		  )`, id, at)
	if err != nil {
		// The partial unique index catches the race the NOT EXISTS misses.
		if code, _ := pgCode(err); code == codeUniqueViolation {
			return false, store.ErrPlaying
		}
		return false, fmt.Errorf("start playing: %w", err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return ok, err
	}

	// Nothing changed: either the item is not PENDING or another is playing.
	var playing bool
	err = d.db.GetContext(ctx, &playing, `
		SELECT EXISTS (
		  SELECT 1 FROM media_queue_items p
		  JOIN media_queue_items q ON q.creator_id = p.creator_id
		  WHERE q.id = $1 AND q.status = 'PENDING' AND p.status = 'PLAYING'
		)`, id)
	if err != nil {
		return false, fmt.Errorf("check playing item: %w", err)
	}
	if playing {
		return false, store.ErrPlaying
	}
	return false, nil
}

func (d *DB) FinishItem(ctx context.Context, id string, status models.QueueStatus, at time.Time, actualSeconds int, reason string) (bool, error) {
	if !status.Finished() {
		return false, fmt.Errorf("finish queue item: invalid status %s", status)
	}
	res, err := d.db.ExecContext(ctx, `
		UPDATE media_queue_items
		SET status = $2, played_at = $3,
		    actual_seconds = CASE WHEN $4::integer > 0 THEN $4::integer ELSE actual_seconds END,
		    skip_reason = $5
		WHERE id = $1 AND status IN ('PENDING', 'PLAYING')`,
		id, status, at, actualSeconds, reason)
	if err != nil {
		return false, fmt.Errorf("finish queue item: %w", err)
	}
	return affected(res)
}

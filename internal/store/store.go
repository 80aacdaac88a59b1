// Package store defines the persistence contract of the settlement core. All
// cross-request exclusivity lives here as unique keys and conditional writes;
// callers never hold locks across requests.
package store

import (
	"context"
	"errors"
	"time"

	"gift-platform/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrPlaying is returned when a creator already has a PLAYING item.
	ErrPlaying = errors.New("store: another item is already playing")
)

// PaidUpdate is the settlement metadata persisted with PENDING -> PAID.
type PaidUpdate struct {
	GatewayTxID string
	MatchMethod string
	PaidAt      time.Time
}

type Creators interface {
	CreatorByID(ctx context.Context, id int64) (*models.Creator, error)
	CreatorByUsername(ctx context.Context, username string) (*models.Creator, error)
	CreatorByWidgetToken(ctx context.Context, token string) (*models.Creator, error)
}

type Gifts interface {
	// CreateGift inserts a PENDING gift; ErrDuplicate when ref exists.
	CreateGift(ctx context.Context, g *models.Gift) error
	GiftByRef(ctx context.Context, ref string) (*models.Gift, error)
	// PendingByAmount lists PENDING gifts for channel created at or after
	// since, most recent first.
	PendingByAmount(ctx context.Context, amount int64, channel string, since time.Time) ([]models.Gift, error)
	LatestPending(ctx context.Context, channel string, since time.Time) (*models.Gift, error)

	// MarkPaid moves ref from PENDING to PAID. It reports false when the
	// gift was no longer PENDING.
	MarkPaid(ctx context.Context, ref string, u PaidUpdate) (bool, error)
	// MarkClosed moves ref from PENDING to FAILED or CANCELLED.
	MarkClosed(ctx context.Context, ref string, status models.GiftStatus, at time.Time) (bool, error)
	// ClaimNotification records that the gift's settlement effect was
	// emitted. Only the first caller gets true.
	ClaimNotification(ctx context.Context, ref string, at time.Time) (bool, error)
	MarkMediaProcessed(ctx context.Context, ref string, at time.Time) (bool, error)

	PaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Gift, error)
	PaidForCreatorBetween(ctx context.Context, creatorID int64, from, to time.Time) ([]models.Gift, error)

	// SignalGift returns the gift ref a signal fingerprint already consumed.
	SignalGift(ctx context.Context, fingerprint string) (string, error)
	// ClaimSignal binds fingerprint to ref unless it is already bound. It
	// returns the owning ref and whether this call created the binding;
	// ErrDuplicate when ref is already bound to another fingerprint.
	ClaimSignal(ctx context.Context, fingerprint, ref string, at time.Time) (string, bool, error)
	// ReleaseSignal drops the binding when it still points at ref.
	ReleaseSignal(ctx context.Context, fingerprint, ref string) error
}

type History interface {
	// ArchiveGift stores h unless a copy of the same original gift exists,
	// then deletes the live gift once the copy is known to be present. The
	// bool reports whether this call created the copy.
	ArchiveGift(ctx context.Context, h *models.HistoricalGift) (bool, error)
	HistoryForMonth(ctx context.Context, creatorID int64, monthKey string) ([]models.HistoricalGift, error)
}

type Leaderboards interface {
	UpsertLeaderboard(ctx context.Context, lb *models.MonthlyLeaderboard) error
	Leaderboard(ctx context.Context, creatorID int64, monthKey string) (*models.MonthlyLeaderboard, error)
}

type Queue interface {
	// EnqueueItem assigns the next queue position and inserts item. When an
	// item for the same source gift exists, item is overwritten with it and
	// false is returned.
	EnqueueItem(ctx context.Context, item *models.MediaQueueItem) (bool, error)
	QueueItem(ctx context.Context, id string) (*models.MediaQueueItem, error)
	QueueItemByGift(ctx context.Context, ref string) (*models.MediaQueueItem, error)
	// ActiveItems returns PENDING and PLAYING items ordered by position then
	// creation time.
	ActiveItems(ctx context.Context, creatorHandle string) ([]models.MediaQueueItem, error)
	// StartPlaying moves a PENDING item to PLAYING; ErrPlaying when the
	// creator already has a PLAYING item. Reports false when the item was
	// not PENDING.
	StartPlaying(ctx context.Context, id string, at time.Time) (bool, error)
	// FinishItem moves a PENDING or PLAYING item to PLAYED or SKIPPED.
	FinishItem(ctx context.Context, id string, status models.QueueStatus, at time.Time, actualSeconds int, reason string) (bool, error)
}

// Store is the full persistence handle, constructed once and injected.
type Store interface {
	Creators
	Gifts
	History
	Leaderboards
	Queue
	Close() error
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// We use 'db' tags for sqlx to automatically map
// the database column names (snake_case) to our Go fields (CamelCase).

// Creator represents a creator's public profile and overlay settings.
type Creator struct {
	ID                int64     `db:"id" json:"id"`
	Username          string    `db:"username" json:"username"`
	DisplayName       string    `db:"display_name" json:"display_name"`
	WidgetSecretToken string    `db:"widget_secret_token" json:"-"`
	TelegramChatID    string    `db:"telegram_chat_id" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// GiftStatus is the one canonical lifecycle vocabulary for gifts.
type GiftStatus string

const (
	GiftPending   GiftStatus = "PENDING"
	GiftPaid      GiftStatus = "PAID"
	GiftFailed    GiftStatus = "FAILED"
	GiftCancelled GiftStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s GiftStatus) Terminal() bool {
	return s == GiftPaid || s == GiftFailed || s == GiftCancelled
}

// ParseGiftStatus maps every spelling seen in older gift records onto the
// canonical enum. An empty value is PENDING.
func ParseGiftStatus(raw string) (GiftStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending", "unpaid", "waiting":
		return GiftPending, nil
	case "paid", "settled", "settlement", "capture", "success":
		return GiftPaid, nil
	case "failed", "failure", "error":
		return GiftFailed, nil
	case "cancelled", "canceled", "cancel", "expire", "expired", "deny", "denied":
		return GiftCancelled, nil
	}
	return "", fmt.Errorf("unknown gift status %q", raw)
}

// MediaShare is the optional media-share request a donor attaches to a gift.
type MediaShare struct {
	Enabled          bool   `db:"media_enabled" json:"media_enabled"`
	URL              string `db:"media_url" json:"media_url,omitempty"`
	RequestedSeconds int    `db:"media_requested_seconds" json:"media_requested_seconds,omitempty"`
	Processed        bool   `db:"media_processed" json:"media_processed"`
}

// Gift represents a single monetary contribution, live until archived.
type Gift struct {
	ID            string     `db:"id" json:"id"`
	Ref           string     `db:"ref" json:"ref"`
	Amount        int64      `db:"amount" json:"amount"`
	DonorName     string     `db:"donor_name" json:"donor_name"`
	Message       string     `db:"message" json:"message"`
	CreatorID     int64      `db:"creator_id" json:"creator_id"`
	CreatorHandle string     `db:"creator_handle" json:"creator_handle"`
	Channel       string     `db:"channel" json:"channel"`
	Status        GiftStatus `db:"status" json:"status"`
	MediaShare
	GatewayTxID    string     `db:"gateway_tx_id" json:"gateway_tx_id,omitempty"`
	MatchMethod    string     `db:"match_method" json:"match_method,omitempty"`
	PaidAt         *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	NotifiedAt     *time.Time `db:"notified_at" json:"notified_at,omitempty"`
	PayoutEligible bool       `db:"payout_eligible" json:"payout_eligible"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// HistoricalGift is the immutable archival copy of a settled gift. The
// temporal keys come from the gift's original creation time.
type HistoricalGift struct {
	ID             string     `db:"id" json:"id"`
	OriginalGiftID string     `db:"original_gift_id" json:"original_gift_id"`
	Ref            string     `db:"ref" json:"ref"`
	Amount         int64      `db:"amount" json:"amount"`
	DonorName      string     `db:"donor_name" json:"donor_name"`
	Message        string     `db:"message" json:"message"`
	CreatorID      int64      `db:"creator_id" json:"creator_id"`
	CreatorHandle  string     `db:"creator_handle" json:"creator_handle"`
	Channel        string     `db:"channel" json:"channel"`
	Status         GiftStatus `db:"status" json:"status"`
	MediaURL       string     `db:"media_url" json:"media_url,omitempty"`
	GatewayTxID    string     `db:"gateway_tx_id" json:"gateway_tx_id,omitempty"`
	PayoutEligible bool       `db:"payout_eligible" json:"payout_eligible"`
	Year           int        `db:"year" json:"year"`
	Month          int        `db:"month" json:"month"`
	MonthKey       string     `db:"month_key" json:"month_key"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	PaidAt         *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	ArchivedAt     time.Time  `db:"archived_at" json:"archived_at"`
}

// NewHistoricalGift builds the archival copy of g. loc decides which calendar
// month the gift belongs to.
func NewHistoricalGift(id string, g *Gift, loc *time.Location, archivedAt time.Time) *HistoricalGift {
	year, month, key := MonthKeyOf(g.CreatedAt, loc)
	return &HistoricalGift{
		ID:             id,
		OriginalGiftID: g.ID,
		Ref:            g.Ref,
		Amount:         g.Amount,
		DonorName:      g.DonorName,
		Message:        g.Message,
		CreatorID:      g.CreatorID,
		CreatorHandle:  g.CreatorHandle,
		Channel:        g.Channel,
		Status:         g.Status,
		MediaURL:       g.MediaShare.URL,
		GatewayTxID:    g.GatewayTxID,
		PayoutEligible: g.PayoutEligible,
		Year:           year,
		Month:          month,
		MonthKey:       key,
		CreatedAt:      g.CreatedAt,
		PaidAt:         g.PaidAt,
		ArchivedAt:     archivedAt,
	}
}

// MonthKeyOf returns the calendar year, month and "YYYY-MM" key of t in loc.
func MonthKeyOf(t time.Time, loc *time.Location) (int, int, string) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return local.Year(), int(local.Month()), fmt.Sprintf("%04d-%02d", local.Year(), int(local.Month()))
}

// ParseMonthKey returns the first instant of the month named by key in loc.
func ParseMonthKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01", key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	return t, nil
}

// QueueStatus is the playback state of a media queue item.
type QueueStatus string

const (
	QueuePending QueueStatus = "PENDING"
	QueuePlaying QueueStatus = "PLAYING"
	QueuePlayed  QueueStatus = "PLAYED"
	QueueSkipped QueueStatus = "SKIPPED"
)

func (s QueueStatus) Finished() bool {
	return s == QueuePlayed || s == QueueSkipped
}

// ParseQueueStatus accepts any casing of the four queue states.
func ParseQueueStatus(raw string) (QueueStatus, error) {
	s := QueueStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case QueuePending, QueuePlaying, QueuePlayed, QueueSkipped:
		return s, nil
	}
	return "", fmt.Errorf("unknown queue status %q", raw)
}

// MediaQueueItem is one playback request on a creator's overlay.
type MediaQueueItem struct {
	ID               string      `db:"id" json:"id"`
	SourceGiftRef    string      `db:"source_gift_ref" json:"source_gift_ref"`
	CreatorID        int64       `db:"creator_id" json:"creator_id"`
	CreatorHandle    string      `db:"creator_handle" json:"creator_handle"`
	DonorName        string      `db:"donor_name" json:"donor_name"`
	Amount           int64       `db:"amount" json:"amount"`
	Message          string      `db:"message" json:"message"`
	VideoID          string      `db:"video_id" json:"video_id"`
	VideoURL         string      `db:"video_url" json:"video_url"`
	RequestedSeconds int         `db:"requested_seconds" json:"requested_seconds"`
	ActualSeconds    int         `db:"actual_seconds" json:"actual_seconds,omitempty"`
	QueuePosition    int64       `db:"queue_position" json:"queue_position"`
	Status           QueueStatus `db:"status" json:"status"`
	SkipReason       string      `db:"skip_reason" json:"skip_reason,omitempty"`
	StartedAt        *time.Time  `db:"started_at" json:"started_at,omitempty"`
	PlayedAt         *time.Time  `db:"played_at" json:"played_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

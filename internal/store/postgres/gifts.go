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

const giftColumns = `id, ref, amount, donor_name, message, creator_id, creator_handle, channel, status,
	media_enabled, media_url, media_requested_seconds, media_processed,
	gateway_tx_id, match_method, paid_at, notified_at, payout_eligible, created_at, updated_at`

func (d *DB) CreateGift(ctx context.Context, g *models.Gift) error {
	query := `
		INSERT INTO gifts
		  (id, ref, amount, donor_name, message, creator_id, creator_handle, channel, status,
		   media_enabled, media_url, media_requested_seconds, media_processed,
		   payout_eligible, created_at, updated_at)
		VALUES
		  (:id, :ref, :amount, :donor_name, :message, :creator_id, :creator_handle, :channel, :status,
		   :media_enabled, :media_url, :media_requested_seconds, :media_processed,
		   :payout_eligible, :created_at, :updated_at)
	`
	if _, err := d.db.NamedExecContext(ctx, query, g); err != nil {
		if code, _ := pgCode(err); code == codeUniqueViolation {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert gift: %w", err)
	}
	return nil
}

func (d *DB) GiftByRef(ctx context.Context, ref string) (*models.Gift, error) {
	var g models.Gift
	if err := d.db.GetContext(ctx, &g, `SELECT `+giftColumns+` FROM gifts WHERE ref = $1`, ref); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (d *DB) PendingByAmount(ctx context.Context, amount int64, channel string, since time.Time) ([]models.Gift, error) {
	var gifts []models.Gift
	query := `SELECT ` + giftColumns + ` FROM gifts
		WHERE status = 'PENDING' AND amount = $1 AND channel = $2 AND created_at >= $3
		ORDER BY created_at DESC`
	if err := d.db.SelectContext(ctx, &gifts, query, amount, channel, since); err != nil {
		return nil, fmt.Errorf("select pending by amount: %w", err)
	}
	return gifts, nil
}

func (d *DB) LatestPending(ctx context.Context, channel string, since time.Time) (*models.Gift, error) {
	var g models.Gift
	query := `SELECT ` + giftColumns + ` FROM gifts
		WHERE status = 'PENDING' AND channel = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT 1`
	if err := d.db.GetContext(ctx, &g, query, channel, since); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (d *DB) MarkPaid(ctx context.Context, ref string, u store.PaidUpdate) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE gifts
		SET status = 'PAID', gateway_tx_id = $2, match_method = $3, paid_at = $4,
		    payout_eligible = TRUE, updated_at = $4
		WHERE ref = $1 AND status = 'PENDING'`,
		ref, u.GatewayTxID, u.MatchMethod, u.PaidAt)
	if err != nil {
		return false, fmt.Errorf("mark gift paid: %w", err)
	}
	return affected(res)
}

func (d *DB) MarkClosed(ctx context.Context, ref string, status models.GiftStatus, at time.Time) (bool, error) {
	if status != models.GiftFailed && status != models.GiftCancelled {
		return false, fmt.Errorf("mark gift closed: invalid status %s", status)
	}
	res, err := d.db.ExecContext(ctx, `
		UPDATE gifts SET status = $2, updated_at = $3
		WHERE ref = $1 AND status = 'PENDING'`,
		ref, status, at)
	if err != nil {
		return false, fmt.Errorf("mark gift closed: %w", err)
	}
	return affected(res)
}

func (d *DB) ClaimNotification(ctx context.Context, ref string, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE gifts SET notified_at = $2, updated_at = $2
		WHERE ref = $1 AND status = 'PAID' AND notified_at IS NULL`,
		ref, at)
	if err != nil {
		return false, fmt.Errorf("claim gift notification: %w", err)
	}
	return affected(res)
}

func (d *DB) MarkMediaProcessed(ctx context.Context, ref string, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE gifts SET media_processed = TRUE, updated_at = $2
		WHERE ref = $1 AND media_processed = FALSE`,
		ref, at)
	if err != nil {
		return false, fmt.Errorf("mark media processed: %w", err)
	}
	return affected(res)
}

func (d *DB) PaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Gift, error) {
	var gifts []models.Gift
	query := `SELECT ` + giftColumns + ` FROM gifts
		WHERE status = 'PAID' AND created_at < $1
		ORDER BY created_at ASC`
	if err := d.db.SelectContext(ctx, &gifts, query, cutoff); err != nil {
		return nil, fmt.Errorf("select archivable gifts: %w", err)
	}
	return gifts, nil
}

func (d *DB) PaidForCreatorBetween(ctx context.Context, creatorID int64, from, to time.Time) ([]models.Gift, error) {
	var gifts []models.Gift
	query := `SELECT ` + giftColumns + ` FROM gifts
		WHERE status = 'PAID' AND creator_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC`
	if err := d.db.SelectContext(ctx, &gifts, query, creatorID, from, to); err != nil {
		return nil, fmt.Errorf("select paid gifts for creator: %w", err)
	}
	return gifts, nil
}

func (d *DB) SignalGift(ctx context.Context, fingerprint string) (string, error) {
	var ref string
	err := d.db.GetContext(ctx, &ref, `SELECT gift_ref FROM settlement_signals WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return "", notFound(err)
	}
	return ref, nil
}

func (d *DB) ClaimSignal(ctx context.Context, fingerprint, ref string, at time.Time) (string, bool, error) {
	var owner string
	err := d.db.GetContext(ctx, &owner, `
		INSERT INTO settlement_signals (fingerprint, gift_ref, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING gift_ref`,
		fingerprint, ref, at)
	switch {
	case err == nil:
		return owner, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		if code, _ := pgCode(err); code == codeUniqueViolation {
			return "", false, store.ErrDuplicate
		}
		return "", false, fmt.Errorf("claim settlement signal: %w", err)
	}
	owner, err = d.SignalGift(ctx, fingerprint)
	if err != nil {
		return "", false, fmt.Errorf("load settlement signal: %w", err)
	}
	return owner, false, nil
}

func (d *DB) ReleaseSignal(ctx context.Context, fingerprint, ref string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM settlement_signals WHERE fingerprint = $1 AND gift_ref = $2`, fingerprint, ref)
	if err != nil {
		return fmt.Errorf("release settlement signal: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"gift-platform/internal/models"
)

func (d *DB) UpsertLeaderboard(ctx context.Context, lb *models.MonthlyLeaderboard) error {
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO monthly_leaderboards
		  (creator_id, creator_handle, month_key, top_donors, total_amount, gift_count,
		   unique_donors, peak_day, peak_day_amount, computed_at)
		VALUES
		  (:creator_id, :creator_handle, :month_key, :top_donors, :total_amount, :gift_count,
		   :unique_donors, :peak_day, :peak_day_amount, :computed_at)
		ON CONFLICT (creator_id, month_key) DO UPDATE SET
		  creator_handle  = EXCLUDED.creator_handle,
		  top_donors      = EXCLUDED.top_donors,
		  total_amount    = EXCLUDED.total_amount,
		  gift_count      = EXCLUDED.gift_count,
		  unique_donors   = EXCLUDED.unique_donors,
		  peak_day        = EXCLUDED.peak_day,
		  peak_day_amount = EXCLUDED.peak_day_amount,
		  computed_at     = EXCLUDED.computed_at`, lb)
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}
	return nil
}

func (d *DB) Leaderboard(ctx context.Context, creatorID int64, monthKey string) (*models.MonthlyLeaderboard, error) {
	var lb models.MonthlyLeaderboard
	err := d.db.GetContext(ctx, &lb, `
		SELECT creator_id, creator_handle, month_key, top_donors, total_amount, gift_count,
		       unique_donors, peak_day, peak_day_amount, computed_at
		FROM monthly_leaderboards
		WHERE creator_id = $1 AND month_key = $2`, creatorID, monthKey)
	if err != nil {
		return nil, notFound(err)
	}
	return &lb, nil
}

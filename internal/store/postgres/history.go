package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gift-platform/internal/models"
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ensurePartition creates the monthly partition for key. Rows never land in
// the default partition because every insert path calls this first.
func (d *DB) ensurePartition(ctx context.Context, key string) error {
	if _, ok := d.partitions.Load(key); ok {
		return nil
	}
	if !monthKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid month key %q", key)
	}
	name := "historical_gifts_" + strings.ReplaceAll(key, "-", "_")
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s PARTITION OF historical_gifts FOR VALUES IN ('%s')`, name, key)
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		// A concurrent archiver may have won the race.
		if code, _ := pgCode(err); code != codeDuplicateTable {
			return fmt.Errorf("create history partition %s: %w", name, err)
		}
	}
	d.partitions.Store(key, struct{}{})
	return nil
}

func (d *DB) ArchiveGift(ctx context.Context, h *models.HistoricalGift) (bool, error) {
	if err := d.ensurePartition(ctx, h.MonthKey); err != nil {
		return false, err
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	// month_key follows the configured timezone, so the primary key alone
	// cannot stop a second copy landing in another partition.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, h.OriginalGiftID); err != nil {
		return false, fmt.Errorf("lock historical gift: %w", err)
	}

	var present bool
	err = tx.GetContext(ctx, &present,
		`SELECT EXISTS (SELECT 1 FROM historical_gifts WHERE original_gift_id = $1)`, h.OriginalGiftID)
	if err != nil {
		return false, fmt.Errorf("check historical gift: %w", err)
	}

	created := false
	if !present {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO historical_gifts
			  (id, original_gift_id, ref, amount, donor_name, message, creator_id, creator_handle, channel,
			   status, media_url, gateway_tx_id, payout_eligible, year, month, month_key,
			   created_at, paid_at, archived_at)
			VALUES
			  (:id, :original_gift_id, :ref, :amount, :donor_name, :message, :creator_id, :creator_handle, :channel,
			   :status, :media_url, :gateway_tx_id, :payout_eligible, :year, :month, :month_key,
			   :created_at, :paid_at, :archived_at)`, h)
		if err != nil {
			return false, fmt.Errorf("insert historical gift: %w", err)
		}
		created = true
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM gifts WHERE id = $1 AND status = 'PAID'`, h.OriginalGiftID); err != nil {
		return false, fmt.Errorf("delete live gift: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit archive tx: %w", err)
	}
	return created, nil
}

func (d *DB) HistoryForMonth(ctx context.Context, creatorID int64, monthKey string) ([]models.HistoricalGift, error) {
	var rows []models.HistoricalGift
	query := `
		SELECT id, original_gift_id, ref, amount, donor_name, message, creator_id, creator_handle, channel,
		       status, media_url, gateway_tx_id, payout_eligible, year, month, month_key,
		       created_at, paid_at, archived_at
		FROM historical_gifts
		WHERE creator_id = $1 AND month_key = $2
		ORDER BY created_at ASC`
	if err := d.db.SelectContext(ctx, &rows, query, creatorID, monthKey); err != nil {
		return nil, fmt.Errorf("select history for month: %w", err)
	}
	return rows, nil
}

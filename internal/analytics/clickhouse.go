// Package analytics mirrors archived gifts into ClickHouse for reporting.
// The mirror is append-only and best effort; Postgres history stays the
// source of truth.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"gift-platform/internal/models"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS archived_gifts (
		original_gift_id String,
		ref              String,
		creator_id       Int64,
		creator_handle   String,
		donor_name       String,
		amount           Int64,
		channel          LowCardinality(String),
		status           LowCardinality(String),
		month_key        String,
		created_at       DateTime64(3, 'UTC'),
		paid_at          Nullable(DateTime64(3, 'UTC')),
		archived_at      DateTime64(3, 'UTC')
	)
	ENGINE = ReplacingMergeTree(archived_at)
	PARTITION BY month_key
	ORDER BY (creator_id, original_gift_id)`

type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseSink implements archive.Sink.
type ClickHouseSink struct {
	conn driver.Conn
}

func Open(ctx context.Context, opts Options) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     2,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create archived_gifts: %w", err)
	}
	return &ClickHouseSink{conn: conn}, nil
}

func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// RecordArchived appends one row per gift. ReplacingMergeTree collapses a
// gift mirrored twice.
func (s *ClickHouseSink) RecordArchived(ctx context.Context, gifts []models.HistoricalGift) error {
	if len(gifts) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO archived_gifts (original_gift_id, ref, creator_id, creator_handle, donor_name, amount,
			channel, status, month_key, created_at, paid_at, archived_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, h := range gifts {
		if err := batch.Append(row(h)...); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	return batch.Send()
}

// MonthTotal is one creator's archived volume for a month.
type MonthTotal struct {
	MonthKey string
	Amount   int64
	Gifts    uint64
}

// MonthlyTotals reports a creator's archived volume per month, oldest first.
func (s *ClickHouseSink) MonthlyTotals(ctx context.Context, creatorID int64) ([]MonthTotal, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT month_key, sum(amount), count()
		FROM archived_gifts FINAL
		WHERE creator_id = ?
		GROUP BY month_key
		ORDER BY month_key`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []MonthTotal
	for rows.Next() {
		var t MonthTotal
		if err := rows.Scan(&t.MonthKey, &t.Amount, &t.Gifts); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func row(h models.HistoricalGift) []any {
	var paidAt *time.Time
	if h.PaidAt != nil {
		t := h.PaidAt.UTC()
		paidAt = &t
	}
	return []any{
		h.OriginalGiftID,
		h.Ref,
		h.CreatorID,
		h.CreatorHandle,
		h.DonorName,
		h.Amount,
		h.Channel,
		string(h.Status),
		h.MonthKey,
		h.CreatedAt.UTC(),
		paidAt,
		h.ArchivedAt.UTC(),
	}
}

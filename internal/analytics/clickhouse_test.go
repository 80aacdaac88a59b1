package analytics

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-platform/internal/models"
)

func sampleGift() models.HistoricalGift {
	created := time.Date(2026, 9, 2, 10, 0, 0, 0, time.FixedZone("WIB", 7*60*60))
	return models.HistoricalGift{
		OriginalGiftID: "b9c7a3a4-4a43-4b1c-9f0e-5d8c1d6e2f10",
		Ref:            "DON123",
		Amount:         50000,
		DonorName:      "Budi",
		CreatorID:      1,
		CreatorHandle:  "alice",
		Channel:        "gopay",
		Status:         models.GiftPaid,
		MonthKey:       "2026-09",
		CreatedAt:      created,
		ArchivedAt:     created.Add(48 * time.Hour),
	}
}

func TestRowNormalizesTimesToUTC(t *testing.T) {
	values := row(sampleGift())
	require.Len(t, values, 12)
	assert.Equal(t, "PAID", values[7])
	assert.Equal(t, time.UTC, values[9].(time.Time).Location())
	assert.Nil(t, values[10].(*time.Time))
}

func TestClickHouseSink(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("TEST_CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("TEST_CLICKHOUSE_ADDR not set")
	}

	ctx := context.Background()
	sink, err := Open(ctx, Options{Addr: addr, Database: "default", Username: "default"})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.conn.Exec(ctx, "TRUNCATE TABLE archived_gifts"))

	g := sampleGift()
	require.NoError(t, sink.RecordArchived(ctx, []models.HistoricalGift{g}))
	require.NoError(t, sink.RecordArchived(ctx, []models.HistoricalGift{g}))

	totals, err := sink.MonthlyTotals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "2026-09", totals[0].MonthKey)
	assert.Equal(t, int64(50000), totals[0].Amount)
	assert.Equal(t, uint64(1), totals[0].Gifts)
}

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"gift-platform/internal/models"
	"gift-platform/internal/store/storetest"
)

// TEST_DATABASE_DSN must point at a throwaway database: every subtest
// truncates all tables.
func testDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	return dsn
}

func TestMigrationsRoundTrip(t *testing.T) {
	dsn := testDSN(t)
	require.NoError(t, RunMigrations(dsn))
	require.NoError(t, RollbackMigrations(dsn))
	require.NoError(t, RunMigrations(dsn))
	require.NoError(t, RunMigrations(dsn), "second run is a no-op")
}

func TestContract(t *testing.T) {
	dsn := testDSN(t)
	require.NoError(t, RunMigrations(dsn))

	storetest.Run(t, func(t *testing.T) storetest.Harness {
		db, err := Open(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		db.SQL().MustExec(`TRUNCATE creators, gifts, settlement_signals, historical_gifts,
			monthly_leaderboards, media_queue_items RESTART IDENTITY CASCADE`)

		return storetest.Harness{
			Store: db,
			AddCreator: func(t *testing.T, c models.Creator) {
				_, err := db.SQL().Exec(`INSERT INTO creators (id, username, display_name, widget_secret_token, telegram_chat_id)
					VALUES ($1, $2, $3, $4, $5)`, c.ID, c.Username, c.DisplayName, c.WidgetSecretToken, c.TelegramChatID)
				require.NoError(t, err)
			},
		}
	})
}

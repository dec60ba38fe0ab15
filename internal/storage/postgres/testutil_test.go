package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies
// the schema. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applySchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applySchema creates the tables inline. The migrations package embeds
// the same SQL but importing it here would be a cycle.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ranked_entries (
			id                    BIGSERIAL PRIMARY KEY,
			period_days           INT NOT NULL,
			address               TEXT NOT NULL,
			rank                  INT NOT NULL,
			score                 DOUBLE PRECISION NOT NULL,
			weight                DOUBLE PRECISION NOT NULL DEFAULT 0,
			filtered              BOOLEAN NOT NULL DEFAULT FALSE,
			filter_reason         TEXT,
			win_rate              DOUBLE PRECISION NOT NULL DEFAULT 0,
			executed_orders       INT NOT NULL DEFAULT 0,
			realized_pnl          DOUBLE PRECISION NOT NULL DEFAULT 0,
			efficiency            DOUBLE PRECISION NOT NULL DEFAULT 0,
			pnl_consistency       DOUBLE PRECISION NOT NULL DEFAULT 0,
			remark                TEXT NOT NULL DEFAULT '',
			labels                JSONB,
			stat_open_positions   INT,
			stat_closed_positions INT,
			stat_avg_pos_duration DOUBLE PRECISION,
			stat_total_pnl        DOUBLE PRECISION,
			stat_max_drawdown     DOUBLE PRECISION,
			meta                  JSONB,
			fetched_at            BIGINT NOT NULL,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_ranked_entries_period_address
			ON ranked_entries (period_days, lower(address))`,
		`CREATE TABLE IF NOT EXISTS pnl_points (
			id           BIGSERIAL PRIMARY KEY,
			period_days  INT NOT NULL,
			address      TEXT NOT NULL,
			source       TEXT NOT NULL,
			window_name  TEXT NOT NULL,
			point_ts     BIGINT NOT NULL,
			pnl_value    DOUBLE PRECISION,
			equity_value DOUBLE PRECISION,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ix_pnl_points_period_address
			ON pnl_points (period_days, lower(address), source, window_name, point_ts)`,
	}

	for _, stmt := range stmts {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply schema")
	}
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}

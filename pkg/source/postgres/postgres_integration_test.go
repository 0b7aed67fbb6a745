//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/querykit/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("querykit_test"),
		tcpostgres.WithUsername("querykit_test"),
		tcpostgres.WithPassword("querykit_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestSource_Integration(t *testing.T) {
	connStr := startPostgres(t)
	ctx := context.Background()

	src, err := New(ctx, Config{URL: connStr, QueryTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	_, err = src.pool.Exec(ctx, `
		CREATE TABLE posts (
			id           integer PRIMARY KEY,
			community_id integer NOT NULL,
			title        text NOT NULL,
			deleted_at   timestamptz
		);
		INSERT INTO posts VALUES
			(1, 10, 'hello', NULL),
			(2, 10, 'removed', now()),
			(3, 20, 'elsewhere', NULL);
	`)
	require.NoError(t, err)

	rows, err := src.Select(ctx, "posts", map[string]any{"community_id": 10, "deleted_at": nil})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0]["title"])

	rows, err = src.Select(ctx, "posts", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = src.Select(ctx, "posts", map[string]any{"community_id": 99})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = src.Select(ctx, "missing_table", nil)
	assert.ErrorIs(t, err, source.ErrUnknownTable)

	require.NoError(t, src.Ping(ctx))
}

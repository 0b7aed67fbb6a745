package apiclient

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/querykit/pkg/api"
	"github.com/marmos91/querykit/pkg/api/auth"
	"github.com/marmos91/querykit/pkg/app"
	"github.com/marmos91/querykit/pkg/source"
)

func TestClient_AgainstRouter(t *testing.T) {
	rt, err := app.New(app.Config{PoolSize: 1}, source.NewMemory(map[string][]source.Row{
		"events": {
			{"id": 1, "community_id": 7},
			{"id": 2, "community_id": 8},
		},
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret-key-for-testing-only-32chars"})
	require.NoError(t, err)
	token, err := svc.IssueToken("cli", auth.RoleServiceRole, time.Minute)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(rt, svc))
	defer server.Close()

	ctx := context.Background()
	client := New(server.URL).WithToken(token)

	res, err := client.Query(ctx, "events", map[string]string{"community_id": "7"}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	stats, err := client.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Size)
	require.Len(t, stats.Keys, 1)

	require.NoError(t, client.InvalidateKey(ctx, stats.Keys[0]))

	var apiErr *APIError
	err = client.InvalidateKey(ctx, stats.Keys[0])
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())

	pr, err := client.Preload(ctx, "high", app.QueryURL("events", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, pr.Accepted)
	require.Eventually(t, func() bool {
		s, err := client.Stats(ctx)
		return err == nil && s.Preload.Completed == 1
	}, time.Second, 5*time.Millisecond)

	removed, err := client.InvalidateTable(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ws, err := client.WorkerStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ws.Pool.Size)
	assert.Equal(t, "transform", ws.Pool.Name)

	require.NoError(t, client.Navigate(ctx, "/"))
	_, err = client.ClearCache(ctx)
	require.NoError(t, err)
}

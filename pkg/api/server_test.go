package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/querykit/pkg/api/handlers"
	"github.com/marmos91/querykit/pkg/app"
	"github.com/marmos91/querykit/pkg/source"
)

const testSecret = "test-secret-key-for-testing-only-32chars"

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newTestRuntime(t *testing.T) *app.Runtime {
	t.Helper()
	rt, err := app.New(app.Config{PoolSize: 1}, source.NewMemory(map[string][]source.Row{
		"posts": {{"id": 1, "title": "hello"}},
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestNewServer_RequiresSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")

	_, err := NewServer(APIConfig{JWT: JWTConfig{Secret: "short"}}, nil)
	assert.Error(t, err)

	t.Setenv(EnvJWTSecret, testSecret)
	srv, err := NewServer(APIConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, srv.Port())
}

func TestAPIServer_Lifecycle(t *testing.T) {
	cfg := APIConfig{
		Port:         freePort(t),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
		JWT:          JWTConfig{Secret: testSecret},
	}
	server, err := NewServer(cfg, newTestRuntime(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx) }()

	base := fmt.Sprintf("http://localhost:%d", cfg.Port)
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(base + "/health/ready")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body handlers.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.NoError(t, server.Stop(context.Background()), "second stop is a no-op")
}

func TestAPIServer_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	server, err := NewServer(APIConfig{
		Port: l.Addr().(*net.TCPAddr).Port,
		JWT:  JWTConfig{Secret: testSecret},
	}, nil)
	require.NoError(t, err)

	err = server.Start(context.Background())
	assert.ErrorContains(t, err, "failed to listen")
}

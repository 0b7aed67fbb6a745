package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, Gatherer())

	reg := InitRegistry()
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, InitRegistry(), "second init must return the same registry")
	assert.NotNil(t, GetRegistry())
}

func TestRegisterOrReuse(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "querykit_test_total", Help: "test"})
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "querykit_test_total", Help: "test"})

	got := RegisterOrReuse(reg, first)
	assert.Same(t, first, got)

	got = RegisterOrReuse(reg, second)
	assert.Same(t, first, got, "re-registration should hand back the existing collector")
}

func TestServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "querykit_handler_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	srv := NewServer(0, reg)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "querykit_handler_test_total 3")
}

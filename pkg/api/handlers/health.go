package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/querykit/pkg/app"
)

// HealthHandler handles the unauthenticated probe endpoints.
type HealthHandler struct {
	runtime *app.Runtime
}

// NewHealthHandler creates a new health handler. A nil runtime makes the
// readiness probe fail.
func NewHealthHandler(rt *app.Runtime) *HealthHandler {
	return &HealthHandler{runtime: rt}
}

// Liveness handles GET /health. It succeeds while the process serves HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "querykit",
	}))
}

// Readiness handles GET /health/ready. It returns 503 until the source (and
// object store, when configured) answer.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.runtime == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("runtime not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.runtime.Ready(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	stats := h.runtime.Stats()
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"source":        h.runtime.Source().Name(),
		"latency":       time.Since(start).String(),
		"cache_entries": stats.Cache.Size,
		"workers":       stats.Pool.Size,
	}))
}

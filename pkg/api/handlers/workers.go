package handlers

import (
	"net/http"

	"github.com/marmos91/querykit/pkg/app"
	"github.com/marmos91/querykit/pkg/workerpool"
)

// WorkersResponse is the body of GET /api/v1/workers/stats.
type WorkersResponse struct {
	Pool    workerpool.Stats        `json:"pool"`
	Offload workerpool.OffloadStats `json:"offload"`
}

// StatsHandler exposes component statistics.
type StatsHandler struct {
	runtime *app.Runtime
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(rt *app.Runtime) *StatsHandler {
	return &StatsHandler{runtime: rt}
}

// Workers handles GET /api/v1/workers/stats.
func (h *StatsHandler) Workers(w http.ResponseWriter, r *http.Request) {
	stats := h.runtime.Stats()
	WriteJSONOK(w, WorkersResponse{Pool: stats.Pool, Offload: stats.Offload})
}

// All handles GET /api/v1/stats.
func (h *StatsHandler) All(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.runtime.Stats())
}

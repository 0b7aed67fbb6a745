package handlers

import (
	"net/http"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/pkg/app"
	"github.com/marmos91/querykit/pkg/preload"
)

// maxPreloadResources bounds a single preload request.
const maxPreloadResources = 1000

// PreloadRequest is the body of POST /api/v1/preload. URLs take Priority;
// Resources carry their own.
type PreloadRequest struct {
	URLs      []string           `json:"urls,omitempty"`
	Priority  preload.Priority   `json:"priority,omitempty"`
	Resources []preload.Resource `json:"resources,omitempty"`
}

// PreloadResponse reports how many resources were queued. The difference
// to Requested was deduplicated or dropped.
type PreloadResponse struct {
	Requested int `json:"requested"`
	Accepted  int `json:"accepted"`
}

// NavigateRequest is the body of POST /api/v1/navigate.
type NavigateRequest struct {
	Route string `json:"route"`
}

// PreloadHandler schedules preloads.
type PreloadHandler struct {
	runtime *app.Runtime
}

// NewPreloadHandler creates a new preload handler.
func NewPreloadHandler(rt *app.Runtime) *PreloadHandler {
	return &PreloadHandler{runtime: rt}
}

// Preload handles POST /api/v1/preload. It returns 202 without waiting.
func (h *PreloadHandler) Preload(w http.ResponseWriter, r *http.Request) {
	var req PreloadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	resources := make([]preload.Resource, 0, len(req.URLs)+len(req.Resources))
	for _, u := range req.URLs {
		resources = append(resources, preload.Resource{URL: u, Priority: req.Priority})
	}
	resources = append(resources, req.Resources...)

	if len(resources) == 0 {
		BadRequest(w, "At least one URL is required")
		return
	}
	if len(resources) > maxPreloadResources {
		BadRequest(w, "Too many resources")
		return
	}
	for _, res := range resources {
		if res.URL == "" {
			BadRequest(w, "Empty URL")
			return
		}
	}

	accepted := h.runtime.Preload(resources...)
	logger.DebugCtx(r.Context(), "Preload requested via API",
		logger.KeyEntries, len(resources),
		logger.KeyQueued, accepted)

	WriteJSON(w, http.StatusAccepted, PreloadResponse{
		Requested: len(resources),
		Accepted:  accepted,
	})
}

// Navigate handles POST /api/v1/navigate, firing the route's preload hints.
func (h *PreloadHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Route == "" {
		BadRequest(w, "Route is required")
		return
	}

	h.runtime.Navigate(req.Route)
	w.WriteHeader(http.StatusAccepted)
}

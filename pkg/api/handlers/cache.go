package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/pkg/app"
)

// InvalidateResponse reports how many cache entries were removed.
type InvalidateResponse struct {
	Removed int `json:"removed"`
}

// CacheHandler exposes query cache administration.
type CacheHandler struct {
	runtime *app.Runtime
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(rt *app.Runtime) *CacheHandler {
	return &CacheHandler{runtime: rt}
}

// Stats handles GET /api/v1/cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.runtime.Cache().Stats())
}

// DeleteKey handles DELETE /api/v1/cache/keys/{key}. The key is
// path-escaped by the client since cache keys contain '&' and '='.
func (h *CacheHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	if key == "" {
		BadRequest(w, "Cache key required")
		return
	}

	cache := h.runtime.Cache()
	if _, ok := cache.Peek(key); !ok {
		NotFound(w, "Cache key not found")
		return
	}
	cache.Invalidate(key)

	logger.InfoCtx(r.Context(), "Cache key invalidated via API", logger.KeyKey, key)
	WriteNoContent(w)
}

// Invalidate handles DELETE /api/v1/cache?prefix=... or ?all=true.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	cache := h.runtime.Cache()
	query := r.URL.Query()

	if all, _ := strconv.ParseBool(query.Get("all")); all {
		removed := cache.Stats().Size
		cache.Clear()
		logger.InfoCtx(r.Context(), "Cache cleared via API", logger.KeyEvicted, removed)
		WriteJSONOK(w, InvalidateResponse{Removed: removed})
		return
	}

	prefix := query.Get("prefix")
	if prefix == "" {
		BadRequest(w, "Either prefix or all=true is required")
		return
	}

	removed := cache.InvalidatePrefix(prefix)
	logger.InfoCtx(r.Context(), "Cache prefix invalidated via API",
		logger.KeyPrefix, prefix,
		logger.KeyEvicted, removed)
	WriteJSONOK(w, InvalidateResponse{Removed: removed})
}

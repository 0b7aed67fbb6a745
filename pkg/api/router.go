package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
	"github.com/marmos91/querykit/pkg/api/auth"
	"github.com/marmos91/querykit/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/querykit/pkg/api/middleware"
	"github.com/marmos91/querykit/pkg/app"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Server spans and request logging (trace ids flow into the log context)
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /api/v1/query/{table} - Cached table read (any valid token)
//   - GET /api/v1/stats - All component statistics (service_role)
//   - GET /api/v1/cache/stats - Cache statistics (service_role)
//   - DELETE /api/v1/cache - Prefix or full invalidation (service_role)
//   - DELETE /api/v1/cache/keys/{key} - Single key invalidation (service_role)
//   - GET /api/v1/workers/stats - Pool and offload statistics (service_role)
//   - POST /api/v1/preload - Schedule preloads (service_role)
//   - POST /api/v1/navigate - Fire route preload hints (service_role)
func NewRouter(rt *app.Runtime, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(rt)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	queryHandler := handlers.NewQueryHandler(rt)
	cacheHandler := handlers.NewCacheHandler(rt)
	statsHandler := handlers.NewStatsHandler(rt)
	preloadHandler := handlers.NewPreloadHandler(rt)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiMiddleware.JWTAuth(jwtService))

		r.Get("/query/{table}", queryHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.RequireServiceRole())

			r.Get("/stats", statsHandler.All)
			r.Get("/workers/stats", statsHandler.Workers)

			r.Route("/cache", func(r chi.Router) {
				r.Get("/stats", cacheHandler.Stats)
				r.Delete("/", cacheHandler.Invalidate)
				r.Delete("/keys/{key}", cacheHandler.DeleteKey)
			})

			r.Post("/preload", preloadHandler.Preload)
			r.Post("/navigate", preloadHandler.Navigate)
		})
	})

	return r
}

// requestLogger wraps each request in a server span and logs it with the
// internal logger: start at DEBUG, completion at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := telemetry.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := telemetry.StartSpan(ctx, telemetry.SpanAPIRequest, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		lc := logger.NewLogContext(middleware.GetReqID(ctx), r.RemoteAddr).
			WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
		lc.Route = r.URL.Path
		ctx = logger.WithContext(ctx, lc)

		logger.DebugCtx(ctx, "API request started", logger.KeyMethod, r.Method)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		telemetry.SetAttributes(ctx, telemetry.HTTPRequest(r.Method, route, ww.Status())...)
		telemetry.SetAttributes(ctx, telemetry.ClientIP(r.RemoteAddr))

		logger.InfoCtx(ctx, "API request completed",
			logger.KeyMethod, r.Method,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, time.Since(start).Milliseconds(),
		)
	})
}

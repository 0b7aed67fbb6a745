package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/querykit/pkg/querycache"
)

// Transport performs a single preload. Implementations must be safe for
// concurrent use.
type Transport interface {
	Preload(ctx context.Context, r Resource) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, r Resource) error

// Preload calls f(ctx, r).
func (f TransportFunc) Preload(ctx context.Context, r Resource) error {
	return f(ctx, r)
}

// ============================================================================
// HTTP
// ============================================================================

// maxDiscard bounds how much of a response body is read to let the
// connection be reused.
const maxDiscard = 4 << 20

// HTTPTransport warms HTTP caches by issuing a GET marked as a prefetch.
// The response body is discarded.
type HTTPTransport struct {
	Client *http.Client
	Header http.Header

	// MaxBody caps how much of the body is drained. Zero means 4 MiB.
	MaxBody int64
}

// NewHTTPTransport returns an HTTPTransport whose client times out after
// timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

// Preload fetches r.URL. Any non-2xx status is an error.
func (t *HTTPTransport) Preload(ctx context.Context, r Resource) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return fmt.Errorf("preload request: %w", err)
	}
	for name, values := range t.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Sec-Purpose", "prefetch")
	req.Header.Set("Priority", httpPriority(r.Priority))

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("preload %s: %w", r.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	limit := t.MaxBody
	if limit <= 0 {
		limit = maxDiscard
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, limit))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("preload %s: unexpected status %d", r.URL, resp.StatusCode)
	}
	return nil
}

// httpPriority renders p as an RFC 9218 Priority header value.
func httpPriority(p Priority) string {
	switch p {
	case PriorityHigh:
		return "u=1"
	case PriorityLow:
		return "u=6, i"
	default:
		return "u=3"
	}
}

// ============================================================================
// Query cache
// ============================================================================

// Resolver maps a preload URL onto a query cache key and the fetcher that
// loads it. It returns ErrUnresolvable for URLs it does not handle.
type Resolver interface {
	Resolve(rawURL string) (key string, fetch querycache.Fetcher, err error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(rawURL string) (string, querycache.Fetcher, error)

// Resolve calls f(rawURL).
func (f ResolverFunc) Resolve(rawURL string) (string, querycache.Fetcher, error) {
	return f(rawURL)
}

// CacheTransport warms a QueryCache: the URL is resolved to a key and
// fetcher and handed to Prefetch, which is a no-op for fresh entries.
type CacheTransport struct {
	Cache    *querycache.QueryCache
	Resolver Resolver
	Options  []querycache.Option
}

// Preload resolves r.URL and prefetches it into the cache.
func (t *CacheTransport) Preload(ctx context.Context, r Resource) error {
	key, fetch, err := t.Resolver.Resolve(r.URL)
	if err != nil {
		return err
	}
	return t.Cache.Prefetch(ctx, key, fetch, t.Options...)
}

// ============================================================================
// Mux
// ============================================================================

// Mux dispatches preloads to a transport chosen by URL scheme. Relative URLs
// (no scheme) go to the fallback transport when one is set.
type Mux struct {
	mu       sync.RWMutex
	byScheme map[string]Transport
	fallback Transport
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{byScheme: make(map[string]Transport)}
}

// Handle registers t for scheme (case-insensitive), replacing any previous
// registration.
func (m *Mux) Handle(scheme string, t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byScheme[strings.ToLower(scheme)] = t
}

// HandleDefault sets the transport used for URLs without a registered scheme.
func (m *Mux) HandleDefault(t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = t
}

// Schemes returns the registered schemes.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byScheme))
	for s := range m.byScheme {
		out = append(out, s)
	}
	return out
}

// Preload routes r to the transport registered for its scheme.
func (m *Mux) Preload(ctx context.Context, r Resource) error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("preload %q: %w", r.URL, err)
	}

	m.mu.RLock()
	t, ok := m.byScheme[strings.ToLower(u.Scheme)]
	if !ok {
		t = m.fallback
	}
	m.mu.RUnlock()

	if t == nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return t.Preload(ctx, r)
}

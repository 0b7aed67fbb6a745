package preload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/querykit/internal/logger"
)

// Trigger defaults.
const (
	DefaultSettleDelay    = time.Second
	DefaultViewportMargin = 200
	DefaultLookahead      = 5
)

// ============================================================================
// Route
// ============================================================================

// RoutePreloader issues low-priority hints for the routes commonly visited
// after the current one. The hint fires after a settle delay so it does not
// compete with the page that was just navigated to.
type RoutePreloader struct {
	s      *Scheduler
	routes map[string][]string
	settle time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewRoutePreloader creates a RoutePreloader. routes maps a route to the
// URLs likely to follow it. A settle of zero selects DefaultSettleDelay.
func NewRoutePreloader(s *Scheduler, routes map[string][]string, settle time.Duration) *RoutePreloader {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &RoutePreloader{s: s, routes: routes, settle: settle}
}

// Navigate records a navigation to route. A pending hint from the previous
// navigation is cancelled.
func (p *RoutePreloader) Navigate(route string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++

	urls := p.routes[route]
	if len(urls) == 0 {
		return
	}

	gen := p.gen
	p.timer = time.AfterFunc(p.settle, func() {
		p.mu.Lock()
		current := p.gen == gen
		p.mu.Unlock()
		if !current {
			return
		}
		n := p.s.Preload(urls, PriorityLow)
		logger.Debug("Route preload scheduled", "route", route, "accepted", n)
	})
}

// Stop cancels any pending hint.
func (p *RoutePreloader) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
}

// ============================================================================
// Hover
// ============================================================================

// HoverTarget preloads its URLs at high priority on the first hover or
// focus. Later calls do nothing.
type HoverTarget struct {
	s     *Scheduler
	urls  []string
	fired atomic.Bool
}

// NewHoverTarget creates a HoverTarget for urls.
func NewHoverTarget(s *Scheduler, urls ...string) *HoverTarget {
	return &HoverTarget{s: s, urls: urls}
}

// Hover reports whether this call triggered the preload.
func (h *HoverTarget) Hover() bool {
	if !h.fired.CompareAndSwap(false, true) {
		return false
	}
	h.s.Preload(h.urls, PriorityHigh)
	return true
}

// ============================================================================
// Viewport
// ============================================================================

// Rect is an axis-aligned rectangle in layout coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Grow returns r expanded by margin on every side.
func (r Rect) Grow(margin float64) Rect {
	return Rect{
		X:      r.X - margin,
		Y:      r.Y - margin,
		Width:  r.Width + 2*margin,
		Height: r.Height + 2*margin,
	}
}

// Intersects reports whether r and o overlap. Touching edges count.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.X+o.Width && o.X <= r.X+r.Width &&
		r.Y <= o.Y+o.Height && o.Y <= r.Y+r.Height
}

// ViewportTarget preloads its URLs at normal priority the first time its
// element comes within margin of the viewport. Observation stops after that.
type ViewportTarget struct {
	s      *Scheduler
	urls   []string
	margin float64
	done   atomic.Bool
}

// NewViewportTarget creates a ViewportTarget. A negative margin selects
// DefaultViewportMargin.
func NewViewportTarget(s *Scheduler, margin float64, urls ...string) *ViewportTarget {
	if margin < 0 {
		margin = DefaultViewportMargin
	}
	return &ViewportTarget{s: s, urls: urls, margin: margin}
}

// Observe checks element against the viewport grown by the margin and reports
// whether this call triggered the preload.
func (v *ViewportTarget) Observe(element, viewport Rect) bool {
	if v.done.Load() || !element.Intersects(viewport.Grow(v.margin)) {
		return false
	}
	if !v.done.CompareAndSwap(false, true) {
		return false
	}
	v.s.Preload(v.urls, PriorityNormal)
	return true
}

// Observing reports whether the target is still waiting for its first
// intersection.
func (v *ViewportTarget) Observing() bool {
	return !v.done.Load()
}

// ============================================================================
// Pagination
// ============================================================================

// PageURLs returns the resources backing a page.
type PageURLs func(page int) []string

// PaginationPreloader schedules the neighbouring pages of the current page
// for idle-time preload. Pages are numbered from 1.
type PaginationPreloader struct {
	s          *Scheduler
	urls       PageURLs
	totalPages int
	idle       IdleOptions

	mu      sync.Mutex
	current int
}

// NewPaginationPreloader creates a PaginationPreloader. totalPages of zero
// means the last page is unknown.
func NewPaginationPreloader(s *Scheduler, urls PageURLs, totalPages int, idle IdleOptions) *PaginationPreloader {
	return &PaginationPreloader{s: s, urls: urls, totalPages: totalPages, idle: idle}
}

// PageChanged schedules page+1 and page-1 when page differs from the last
// page seen. It returns the neighbouring pages that were scheduled.
func (p *PaginationPreloader) PageChanged(page int) []int {
	p.mu.Lock()
	if page == p.current {
		p.mu.Unlock()
		return nil
	}
	p.current = page
	p.mu.Unlock()

	var pages []int
	if p.totalPages == 0 || page+1 <= p.totalPages {
		pages = append(pages, page+1)
	}
	if page-1 >= 1 {
		pages = append(pages, page-1)
	}

	var urls []string
	for _, n := range pages {
		urls = append(urls, p.urls(n)...)
	}
	p.s.PreloadWhenIdle(context.Background(), urls, p.idle)
	return pages
}

// ============================================================================
// Scroll
// ============================================================================

// ScrollPreloader preloads a window of items ahead of the current index in
// the direction the user is scrolling.
type ScrollPreloader struct {
	s         *Scheduler
	lookahead int

	mu    sync.Mutex
	items []string
	last  int
	up    bool
}

// NewScrollPreloader creates a ScrollPreloader over items. A lookahead of
// zero selects DefaultLookahead.
func NewScrollPreloader(s *Scheduler, items []string, lookahead int) *ScrollPreloader {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &ScrollPreloader{s: s, items: items, lookahead: lookahead}
}

// SetItems replaces the list, for example after another page was appended.
func (p *ScrollPreloader) SetItems(items []string) {
	p.mu.Lock()
	p.items = items
	p.mu.Unlock()
}

// IndexChanged recomputes the lookahead window for index i and schedules it
// at low priority. Moving to a higher index scrolls down and preloads the
// following items, nearest first; a lower index preloads the preceding ones.
// An unchanged index keeps the previous direction.
func (p *ScrollPreloader) IndexChanged(i int) []string {
	p.mu.Lock()
	switch {
	case i > p.last:
		p.up = false
	case i < p.last:
		p.up = true
	}
	p.last = i
	window := p.windowLocked(i)
	p.mu.Unlock()

	p.s.Preload(window, PriorityLow)
	return window
}

func (p *ScrollPreloader) windowLocked(i int) []string {
	var window []string
	if p.up {
		for j := i - 1; j >= 0 && j >= i-p.lookahead; j-- {
			if j < len(p.items) {
				window = append(window, p.items[j])
			}
		}
		return window
	}
	for j := i + 1; j < len(p.items) && j <= i+p.lookahead; j++ {
		if j >= 0 {
			window = append(window, p.items[j])
		}
	}
	return window
}

package apiclient

// QueryOptions are the reserved parameters of a query request.
type QueryOptions struct {
	Sort   string
	Desc   bool
	Limit  int
	Offset int
	Search string
	Select []string
}

// QueryResult is a table read.
type QueryResult struct {
	Table string           `json:"table"`
	Key   string           `json:"key"`
	Count int              `json:"count"`
	Rows  []map[string]any `json:"rows"`
}

// CacheStats describes the query cache.
type CacheStats struct {
	Size    int      `json:"size"`
	Keys    []string `json:"keys"`
	Pending int      `json:"pending"`
}

// PoolStats describes the transform worker pool.
type PoolStats struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Available int    `json:"available"`
	Busy      int    `json:"busy"`
	Queued    int    `json:"queued"`
}

// OffloadStats describes ephemeral offload workers.
type OffloadStats struct {
	Capacity int `json:"capacity"`
	Running  int `json:"running"`
}

// WorkerStats is the body of GET /api/v1/workers/stats.
type WorkerStats struct {
	Pool    PoolStats    `json:"pool"`
	Offload OffloadStats `json:"offload"`
}

// PreloadStats describes the preload scheduler.
type PreloadStats struct {
	PendingHigh   int `json:"pending_high"`
	PendingNormal int `json:"pending_normal"`
	PendingLow    int `json:"pending_low"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	Dropped       int `json:"dropped"`
}

// Stats aggregates every component.
type Stats struct {
	Cache   CacheStats   `json:"cache"`
	Pool    PoolStats    `json:"pool"`
	Offload OffloadStats `json:"offload"`
	Preload PreloadStats `json:"preload"`
}

// Resource is a URL to preload with a priority of low, normal or high.
type Resource struct {
	URL      string `json:"url"`
	Priority string `json:"priority,omitempty"`
}

// PreloadResult reports how many resources were queued.
type PreloadResult struct {
	Requested int `json:"requested"`
	Accepted  int `json:"accepted"`
}

type preloadRequest struct {
	URLs      []string   `json:"urls,omitempty"`
	Priority  string     `json:"priority,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
}

type invalidateResponse struct {
	Removed int `json:"removed"`
}

package config

import (
	"strings"
	"time"

	"github.com/marmos91/querykit/pkg/preload"
	"github.com/marmos91/querykit/pkg/querycache"
	"github.com/marmos91/querykit/pkg/workerpool"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.API.ApplyDefaults()
	applyCacheDefaults(&cfg.Cache)
	applyWorkersDefaults(&cfg.Workers)
	applyPreloadDefaults(&cfg.Preload)
	applySourceDefaults(&cfg.Source)
	applyStorageDefaults(&cfg.Storage)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets the port only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.StaleTime == 0 {
		cfg.StaleTime = querycache.DefaultStaleTime
	}
	if cfg.CacheTime == 0 {
		cfg.CacheTime = querycache.DefaultCacheTime
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
}

// applyWorkersDefaults leaves PoolSize at zero so the pool sizes itself to
// the host.
func applyWorkersDefaults(cfg *WorkersConfig) {
	if cfg.OffloadTimeout == 0 {
		cfg.OffloadTimeout = workerpool.DefaultOffloadTimeout
	}
}

func applyPreloadDefaults(cfg *PreloadConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = preload.DefaultWorkers
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = preload.DefaultQueueSize
	}
	if cfg.LowRate == 0 {
		cfg.LowRate = preload.DefaultLowRate
	}
	if cfg.DedupeWindow == 0 {
		cfg.DedupeWindow = preload.DefaultDedupeWindow
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = preload.DefaultRequestTimeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = preload.DefaultSettleDelay
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 4 * MiB
	}
}

func applySourceDefaults(cfg *SourceConfig) {
	if cfg.Type == "" {
		cfg.Type = SourceMemory
	}
	if cfg.Type == SourcePostgres && cfg.Postgres.Schema == "" {
		cfg.Postgres.Schema = "public"
	}
	if cfg.Type == SourceREST && cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.MaxObjectSize == 0 {
		cfg.MaxObjectSize = 16 * MiB
	}
}

// GetDefaultConfig returns a Config with every default applied. The default
// source is an empty in-memory source.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Source: SourceConfig{Type: SourceMemory},
	}
	ApplyDefaults(cfg)
	return cfg
}

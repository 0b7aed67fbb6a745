package config

import (
	"context"
	"fmt"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
	"github.com/marmos91/querykit/pkg/app"
	"github.com/marmos91/querykit/pkg/metrics"
	"github.com/marmos91/querykit/pkg/preload"
	"github.com/marmos91/querykit/pkg/querycache"
	"github.com/marmos91/querykit/pkg/source"
	"github.com/marmos91/querykit/pkg/source/postgres"
	"github.com/marmos91/querykit/pkg/source/rest"
	"github.com/marmos91/querykit/pkg/source/storage"
)

// InitializeRuntime builds a started app.Runtime from cfg: it opens the
// configured source and object store and registers component metrics when
// metrics are enabled.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	rt, err := config.InitializeRuntime(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize runtime: %v", err)
//	}
//	defer rt.Close(ctx)
func InitializeRuntime(ctx context.Context, cfg *Config) (*app.Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	logger.Debug("Initializing runtime from configuration", logger.KeySource, cfg.Source.Type)

	src, err := cfg.OpenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", cfg.Source.Type, err)
	}

	opts := []app.Option{app.WithHTTPTransport(cfg.HTTPTransport())}
	if reg := metrics.GetRegistry(); reg != nil {
		opts = append(opts, app.WithRegisterer(reg))
	}

	if cfg.Storage.Enabled {
		store, err := cfg.OpenObjectStore(ctx)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("failed to open object store: %w", err)
		}
		opts = append(opts, app.WithObjectStore(store))
		logger.Info("Object store enabled", logger.KeyBucket, store.Bucket())
	}

	rt, err := app.New(cfg.AppConfig(), src, opts...)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return rt, nil
}

// OpenSource creates the table source selected by Source.Type.
func (c *Config) OpenSource(ctx context.Context) (source.Source, error) {
	switch c.Source.Type {
	case SourceMemory, "":
		tables := make(map[string][]source.Row, len(c.Source.Memory.Tables))
		for name, rows := range c.Source.Memory.Tables {
			tables[name] = rows
		}
		return source.NewMemory(tables), nil

	case SourcePostgres:
		pg := c.Source.Postgres
		return postgres.New(ctx, postgres.Config{
			URL:             pg.URL,
			Schema:          pg.Schema,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
			MaxConnIdleTime: pg.MaxConnIdleTime,
			QueryTimeout:    pg.QueryTimeout,
		})

	case SourceREST:
		r := c.Source.REST
		return rest.New(rest.Config{
			URL:     r.URL,
			APIKey:  r.APIKey,
			Schema:  r.Schema,
			Timeout: r.Timeout,
		})

	default:
		return nil, fmt.Errorf("unknown source type: %q", c.Source.Type)
	}
}

// OpenObjectStore creates the S3 store. Storage must be enabled.
func (c *Config) OpenObjectStore(ctx context.Context) (*storage.Store, error) {
	if !c.Storage.Enabled {
		return nil, fmt.Errorf("storage is not enabled")
	}
	s := c.Storage
	return storage.NewFromConfig(ctx, storage.Config{
		Bucket:          s.Bucket,
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		KeyPrefix:       s.KeyPrefix,
		ForcePathStyle:  s.ForcePathStyle,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		MaxObjectSize:   int64(s.MaxObjectSize),
	})
}

// AppConfig converts the cache, workers and preload sections.
func (c *Config) AppConfig() app.Config {
	return app.Config{
		Cache: querycache.Config{
			StaleTime:       c.Cache.StaleTime,
			CacheTime:       c.Cache.CacheTime,
			CleanupInterval: c.Cache.CleanupInterval,
		},
		PoolSize:         c.Workers.PoolSize,
		OffloadThreshold: c.Workers.OffloadThreshold,
		OffloadTimeout:   c.Workers.OffloadTimeout,
		Preload: preload.Config{
			Workers:              c.Preload.Workers,
			QueueSize:            c.Preload.QueueSize,
			LowRate:              c.Preload.LowRate,
			LowBurst:             c.Preload.LowBurst,
			DedupeWindow:         c.Preload.DedupeWindow,
			RequestTimeout:       c.Preload.RequestTimeout,
			DisableIdleDetection: c.Preload.DisableIdleDetection,
		},
		Routes:      c.Preload.Routes,
		SettleDelay: c.Preload.SettleDelay,
	}
}

// HTTPTransport returns the transport used for http(s) preloads.
func (c *Config) HTTPTransport() *preload.HTTPTransport {
	t := preload.NewHTTPTransport(c.Preload.RequestTimeout)
	t.MaxBody = int64(c.Preload.MaxBodySize)
	return t
}

// TelemetryConfig converts the telemetry section for telemetry.Init.
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Enabled = c.Telemetry.Enabled
	tc.Endpoint = c.Telemetry.Endpoint
	tc.Insecure = c.Telemetry.Insecure
	tc.SampleRate = c.Telemetry.SampleRate
	if version != "" {
		tc.ServiceVersion = version
	}
	return tc
}

// ProfilingConfig converts the profiling section for telemetry.InitProfiling.
func (c *Config) ProfilingConfig(version string) telemetry.ProfilingConfig {
	p := c.Telemetry.Profiling
	return telemetry.ProfilingConfig{
		Enabled:        p.Enabled,
		ServiceName:    "querykit",
		ServiceVersion: version,
		Endpoint:       p.Endpoint,
		ProfileTypes:   p.ProfileTypes,
	}
}

// InitializeMetrics creates the metrics registry when metrics are enabled and
// returns a server for it, or nil when disabled. It must run before
// InitializeRuntime so components register their collectors.
func InitializeMetrics(cfg *Config) *metrics.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	reg := metrics.InitRegistry()
	logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	return metrics.NewServer(cfg.Metrics.Port, reg)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
	"github.com/marmos91/querykit/pkg/api"
	"github.com/marmos91/querykit/pkg/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the QueryKit server",
	Long: `Start the QueryKit server in the foreground.

The server opens the configured source, starts the cache, worker pool and
preloader, and serves the admin API and (when enabled) Prometheus metrics.
SIGINT or SIGTERM trigger a graceful shutdown bounded by shutdown_timeout.

Examples:
  # Start with the default config
  querykit start

  # Start with a custom config file
  querykit start --config /etc/querykit/config.yaml

  # Override values from the environment
  QUERYKIT_LOGGING_LEVEL=DEBUG QUERYKIT_SOURCE_TYPE=postgres \
  QUERYKIT_SOURCE_POSTGRES_URL=postgres://localhost/app querykit start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process ID to this file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.TelemetryConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Must run before the runtime so components find the registry.
	metricsServer := config.InitializeMetrics(cfg)

	rt, err := config.InitializeRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := rt.Close(shutdownCtx); err != nil {
			logger.Error("Runtime shutdown error", logger.KeyError, err)
		}
	}()

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.API.IsEnabled() {
		apiServer, err := api.NewServer(cfg.API, rt)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		g.Go(func() error { return apiServer.Start(gctx) })
	} else {
		logger.Info("API server disabled")
	}

	if metricsServer != nil {
		g.Go(func() error { return metricsServer.Start(gctx) })
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	// With nothing to serve, wait for the signal directly.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", logger.KeyError, err)
		return err
	}
	logger.Info("Shutdown signal received, stopping")
	return nil
}

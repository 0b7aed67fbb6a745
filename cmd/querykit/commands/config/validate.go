package config

import (
	"fmt"

	"github.com/marmos91/querykit/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the QueryKit configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  querykit config validate
  querykit config validate --config /etc/querykit/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.API.IsEnabled() && !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured - the API server will refuse to start")
	}
	if cfg.Source.Type == config.SourceMemory && len(cfg.Source.Memory.Tables) == 0 {
		warnings = append(warnings, "memory source has no tables - every query will fail with unknown table")
	}
	if cfg.Preload.LowRate < 0 {
		warnings = append(warnings, "low-priority preloads are not rate limited")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Source:          %s\n", cfg.Source.Type)
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.API.Port)
	_, _ = fmt.Fprintf(out, "  Stale/cache:     %s / %s\n", cfg.Cache.StaleTime, cfg.Cache.CacheTime)
	_, _ = fmt.Fprintf(out, "  Preload routes:  %d\n", len(cfg.Preload.Routes))
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

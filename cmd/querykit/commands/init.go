package commands

import (
	"fmt"

	"github.com/marmos91/querykit/internal/cli/prompt"
	"github.com/marmos91/querykit/pkg/api"
	"github.com/marmos91/querykit/pkg/config"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a QueryKit configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/querykit/config.yaml.
Use --config to specify a custom path, and --interactive to be asked for the
source, API port and cache timings instead of writing the commented sample.

Examples:
  # Initialize with default location
  querykit init

  # Walk through the main settings
  querykit init --interactive

  # Initialize with custom path, replacing an existing file
  querykit init --config /etc/querykit/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the main settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	var err error
	if initInteractive {
		err = runInteractiveInit(configPath)
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return nil
		}
	} else {
		err = config.InitConfigToPath(configPath, initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: querykit start")
	fmt.Printf("  3. Or specify custom config: querykit start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT secret has been generated for development use.")
	fmt.Println("  To accept tokens from your auth provider, set its secret instead:")
	fmt.Printf("    export %s=<project JWT secret>\n", api.EnvJWTSecret)

	return nil
}

func runInteractiveInit(path string) error {
	cfg := config.GetDefaultConfig()

	sourceType, err := prompt.Select("Data source", []string{config.SourceMemory, config.SourcePostgres, config.SourceREST})
	if err != nil {
		return err
	}
	cfg.Source.Type = sourceType

	switch sourceType {
	case config.SourcePostgres:
		if cfg.Source.Postgres.URL, err = prompt.InputRequired("PostgreSQL URL", "postgres://localhost:5432/postgres"); err != nil {
			return err
		}
		if cfg.Source.Postgres.Schema, err = prompt.InputRequired("Schema", "public"); err != nil {
			return err
		}
	case config.SourceREST:
		if cfg.Source.REST.URL, err = prompt.InputRequired("Project URL", ""); err != nil {
			return err
		}
		if cfg.Source.REST.APIKey, err = prompt.Secret("API key"); err != nil {
			return err
		}
	}

	if cfg.API.Port, err = prompt.InputPort("Admin API port", cfg.API.Port); err != nil {
		return err
	}
	if cfg.Cache.StaleTime, err = prompt.InputDuration("Stale time", cfg.Cache.StaleTime); err != nil {
		return err
	}
	if cfg.Cache.CacheTime, err = prompt.InputDuration("Cache time", cfg.Cache.CacheTime); err != nil {
		return err
	}

	metricsOn, err := prompt.Confirm("Enable Prometheus metrics", false)
	if err != nil {
		return err
	}
	if metricsOn {
		cfg.Metrics.Enabled = true
		config.ApplyDefaults(cfg)
	}

	if cfg.API.JWT.Secret, err = config.NewJWTSecret(); err != nil {
		return err
	}

	// Secrets may be left for the environment, so the file is not validated here.
	return config.WriteConfig(cfg, path, initForce)
}

package config

import (
	"github.com/marmos91/querykit/internal/cli/output"
	"github.com/marmos91/querykit/pkg/config"
	"github.com/spf13/cobra"
)

var showSecrets bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective configuration: file values, environment overrides
and defaults. Secrets are redacted unless --show-secrets is given.

Outputs YAML unless -o json is given.

Examples:
  querykit config show
  querykit config show -o json
  querykit config show --config /etc/querykit/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secrets in clear text")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	outputFlag, _ := cmd.Flags().GetString("output")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}
	if !showSecrets {
		redact(cfg)
	}

	format, err := output.ParseFormat(outputFlag)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}

const redacted = "********"

func redact(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.API.JWT.Secret,
		&cfg.Source.Postgres.URL,
		&cfg.Source.REST.APIKey,
		&cfg.Storage.SecretAccessKey,
	} {
		if *s != "" {
			*s = redacted
		}
	}
}

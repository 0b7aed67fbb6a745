package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the rules that span sections.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry.profiling.endpoint is required when profiling is enabled")
	}

	if err := validateSource(&cfg.Source); err != nil {
		return err
	}

	if cfg.Storage.Enabled && cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if (cfg.Storage.AccessKeyID == "") != (cfg.Storage.SecretAccessKey == "") {
		return fmt.Errorf("storage.access_key_id and storage.secret_access_key must be set together")
	}

	for route, urls := range cfg.Preload.Routes {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("preload.routes: route %q must start with /", route)
		}
		for _, u := range urls {
			if u == "" {
				return fmt.Errorf("preload.routes[%s]: empty URL", route)
			}
		}
	}
	return nil
}

func validateSource(cfg *SourceConfig) error {
	switch cfg.Type {
	case SourcePostgres:
		if cfg.Postgres.URL == "" {
			return fmt.Errorf("source.postgres.url is required for the postgres source (or set %s_SOURCE_POSTGRES_URL)", EnvPrefix)
		}
		if cfg.Postgres.MinConns > 0 && cfg.Postgres.MaxConns > 0 && cfg.Postgres.MinConns > cfg.Postgres.MaxConns {
			return fmt.Errorf("source.postgres.min_conns (%d) exceeds max_conns (%d)", cfg.Postgres.MinConns, cfg.Postgres.MaxConns)
		}
	case SourceREST:
		if cfg.REST.URL == "" {
			return fmt.Errorf("source.rest.url is required for the rest source")
		}
		if cfg.REST.APIKey == "" {
			return fmt.Errorf("source.rest.api_key is required for the rest source (or set %s_SOURCE_REST_API_KEY)", EnvPrefix)
		}
	}
	return nil
}

// formatValidationErrors reports every failing field with its tag, e.g.
// "Config.Logging.Level failed on 'oneof' (got \"TRACE\")".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msg += fmt.Sprintf(" (got %v)", fe.Value())
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Package cmdutil provides shared utilities for querykit commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/marmos91/querykit/internal/cli/output"
	"github.com/marmos91/querykit/pkg/api"
	"github.com/marmos91/querykit/pkg/api/auth"
	"github.com/marmos91/querykit/pkg/apiclient"
	"github.com/marmos91/querykit/pkg/config"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	ServerURL  string
	Token      string
	Output     string
	NoColor    bool
	Timeout    time.Duration
}

// cliTokenTTL bounds the tokens minted from the local config.
const cliTokenTTL = 5 * time.Minute

// GetAuthenticatedClient returns a client for the admin API.
//
// --server and --token win. Otherwise the server URL is derived from the
// configured API port and a short-lived service_role token is signed with
// the configured JWT secret.
func GetAuthenticatedClient() (*apiclient.Client, error) {
	if Flags.ServerURL != "" && Flags.Token != "" {
		return apiclient.New(Flags.ServerURL).WithToken(Flags.Token), nil
	}

	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, err
	}

	url := Flags.ServerURL
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d", cfg.API.Port)
	}

	token := Flags.Token
	if token == "" {
		token, err = MintToken(cfg, auth.RoleServiceRole)
		if err != nil {
			return nil, err
		}
	}
	return apiclient.New(url).WithToken(token), nil
}

// MintToken signs a token for role with the configured JWT secret.
func MintToken(cfg *config.Config, role auth.Role) (string, error) {
	if !cfg.API.HasJWTSecret() {
		return "", fmt.Errorf("no JWT secret configured: pass --token or set %s", api.EnvJWTSecret)
	}
	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret: cfg.API.GetJWTSecret(),
		Issuer: cfg.API.JWT.Issuer,
	})
	if err != nil {
		return "", err
	}
	return svc.IssueToken("querykit-cli", role, cliTokenTTL)
}

// Context returns a context bounded by --timeout.
func Context() (context.Context, context.CancelFunc) {
	if Flags.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), Flags.Timeout)
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// Printer returns a printer for stdout in the selected format.
func Printer() (*output.Printer, error) {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, !Flags.NoColor), nil
}

// PrintOutput prints data in the selected format. For tables it prints
// emptyMsg when isEmpty is set and otherwise renders tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintResourceWithSuccess prints data as JSON or YAML, or successMsg in
// table mode.
func PrintResourceWithSuccess(w io.Writer, data any, successMsg string) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		output.NewPrinter(w, format, !Flags.NoColor).Success(successMsg)
		return nil
	}
}

// ParseCommaSeparatedList splits s on commas, trimming spaces and dropping
// empty items.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseFilters parses "column=value" arguments.
func ParseFilters(args []string) (map[string]string, error) {
	filters := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid filter %q: expected column=value", arg)
		}
		filters[strings.TrimSpace(k)] = v
	}
	return filters, nil
}

// EmptyOr returns fallback if s is empty.
func EmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

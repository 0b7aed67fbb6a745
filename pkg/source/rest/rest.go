// Package rest provides a source.Source backed by a PostgREST endpoint, such
// as the REST API of a hosted Supabase project.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
	"github.com/marmos91/querykit/pkg/source"
)

// Config configures the PostgREST client.
type Config struct {
	// URL is the project base URL; tables are read from {URL}/rest/v1/{table}.
	URL string

	// APIKey is sent as the apikey header and as the bearer token.
	APIKey string

	// Schema selects a non-default schema through Accept-Profile.
	Schema string

	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration
}

// Error is a PostgREST error response.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest %d: %s", e.Status, e.Message)
}

// Source reads tables over HTTP.
type Source struct {
	base   *url.URL
	apiKey string
	schema string
	client *http.Client
}

// New creates a PostgREST source.
func New(cfg Config) (*Source, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid rest url %q", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{
		base:   base,
		apiKey: cfg.APIKey,
		schema: cfg.Schema,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name implements source.Source.
func (s *Source) Name() string { return "rest" }

// Select implements source.Source.
func (s *Source) Select(ctx context.Context, table string, params map[string]any) ([]source.Row, error) {
	if err := source.ValidateQuery(table, params); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSourceSpan(ctx, s.Name(), table)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.selectURL(table, params), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	if s.schema != "" {
		req.Header.Set("Accept-Profile", s.schema)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("rest select %s: %w", table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := decodeError(resp)
		telemetry.RecordError(ctx, err)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %v", source.ErrUnknownTable, table, err)
		}
		return nil, err
	}

	// Numbers stay json.Number so bigint ids survive the round trip.
	rows := []source.Row{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}

	telemetry.SetAttributes(ctx, telemetry.SourceRows(len(rows)))
	logger.DebugCtx(ctx, "PostgREST select", logger.KeyTable, table, logger.KeyRows, len(rows))
	return rows, nil
}

// Close implements source.Source.
func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// selectURL renders the PostgREST filter syntax: col=eq.value, or col=is.null
// for nil values.
func (s *Source) selectURL(table string, params map[string]any) string {
	q := url.Values{}
	q.Set("select", "*")
	for _, col := range source.SortedKeys(params) {
		q.Set(col, filterValue(params[col]))
	}

	u := *s.base
	u.Path = u.Path + "/rest/v1/" + table
	u.RawQuery = q.Encode()
	return u.String()
}

func filterValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "is.null"
	case string:
		return "eq." + x
	case bool:
		if x {
			return "is.true"
		}
		return "is.false"
	default:
		return fmt.Sprintf("eq.%v", x)
	}
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &Error{Status: resp.StatusCode}
	if err := json.Unmarshal(body, e); err != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
	}
	return e
}

var _ source.Source = (*Source)(nil)

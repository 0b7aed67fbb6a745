package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/pkg/api/middleware"
	"github.com/marmos91/querykit/pkg/app"
	"github.com/marmos91/querykit/pkg/source"
	"github.com/marmos91/querykit/pkg/workerpool"
)

// Query parameters with a fixed meaning; every other parameter is an
// equality filter.
const (
	paramSort   = "sort"
	paramDesc   = "desc"
	paramLimit  = "limit"
	paramOffset = "offset"
	paramSearch = "search"
	paramSelect = "select"
)

// QueryResponse is the body of GET /api/v1/query/{table}.
type QueryResponse struct {
	Table string       `json:"table"`
	Key   string       `json:"key"`
	Count int          `json:"count"`
	Rows  []source.Row `json:"rows"`
}

// QueryHandler serves cached table reads.
type QueryHandler struct {
	runtime *app.Runtime
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(rt *app.Runtime) *QueryHandler {
	return &QueryHandler{runtime: rt}
}

// Get handles GET /api/v1/query/{table}.
func (h *QueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(chi.URLParam(r, "table"), r.URL.Query())
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	rows, err := h.runtime.Query(r.Context(), q)
	if err != nil {
		writeQueryError(r.Context(), w, q.Table, err)
		return
	}
	if rows == nil {
		rows = []source.Row{}
	}

	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		logger.DebugCtx(r.Context(), "Query served",
			logger.KeyTable, q.Table,
			logger.KeyRows, len(rows),
			logger.KeySubject, claims.Subject)
	}

	WriteJSONOK(w, QueryResponse{
		Table: q.Table,
		Key:   q.Key(),
		Count: len(rows),
		Rows:  rows,
	})
}

// parseQuery builds a Query from the table path segment and URL values.
// Filters take the first value of each parameter.
func parseQuery(table string, values url.Values) (app.Query, error) {
	q := app.Query{Table: table}

	for name, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		switch name {
		case paramSort:
			q.Transform.SortBy = v
		case paramDesc:
			desc, err := strconv.ParseBool(v)
			if err != nil {
				return q, fmt.Errorf("invalid %s: %q", paramDesc, v)
			}
			q.Transform.Desc = desc
		case paramLimit, paramOffset:
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return q, fmt.Errorf("invalid %s: %q", name, v)
			}
			if name == paramLimit {
				q.Transform.Limit = n
			} else {
				q.Transform.Offset = n
			}
		case paramSearch:
			q.Transform.Search = v
		case paramSelect:
			for _, f := range strings.Split(v, ",") {
				if f = strings.TrimSpace(f); f != "" {
					q.Transform.Fields = append(q.Transform.Fields, f)
				}
			}
		default:
			if q.Params == nil {
				q.Params = make(map[string]any)
			}
			q.Params[name] = v
		}
	}
	return q, nil
}

// writeQueryError maps runtime errors to problem responses.
func writeQueryError(ctx context.Context, w http.ResponseWriter, table string, err error) {
	var taskErr *workerpool.TaskError
	switch {
	case errors.Is(err, source.ErrInvalidIdentifier):
		BadRequest(w, err.Error())
	case errors.Is(err, source.ErrUnknownTable):
		NotFound(w, fmt.Sprintf("Table %q not found", table))
	case errors.Is(err, context.DeadlineExceeded):
		GatewayTimeout(w, "Query timed out")
	case errors.Is(err, app.ErrClosed), errors.Is(err, source.ErrClosed), errors.Is(err, workerpool.ErrPoolTerminated):
		ServiceUnavailable(w, "Runtime is shutting down")
	case errors.As(err, &taskErr):
		logger.ErrorCtx(ctx, "Query transform failed", logger.KeyTable, table, logger.KeyError, err.Error())
		InternalServerError(w, "Failed to transform rows")
	default:
		logger.WarnCtx(ctx, "Query failed", logger.KeyTable, table, logger.KeyError, err.Error())
		BadGateway(w, "Source query failed")
	}
}

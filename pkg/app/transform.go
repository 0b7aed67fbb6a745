package app

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/querykit/pkg/source"
)

// Transform is a post-processing step applied to cached rows. Rows are
// cached untransformed, so queries that differ only in their transform share
// one cache entry.
type Transform struct {
	// SortBy orders rows by a column. Rows missing the column sort last.
	SortBy string `json:"sort_by,omitempty"`
	Desc   bool   `json:"desc,omitempty"`

	// Search keeps rows where any string column contains the text
	// (case-insensitive).
	Search string `json:"search,omitempty"`

	// Fields projects rows onto the listed columns.
	Fields []string `json:"fields,omitempty"`

	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// IsZero reports whether t leaves rows unchanged.
func (t Transform) IsZero() bool {
	return t.SortBy == "" && t.Search == "" && len(t.Fields) == 0 && t.Offset == 0 && t.Limit == 0
}

// TransformInput is the worker input for ApplyTransform.
type TransformInput struct {
	Rows      []source.Row
	Transform Transform
}

// ApplyTransform filters, sorts, pages and projects rows. It does not modify
// the input rows and returns newly allocated row maps. It is the worker function of the runtime's transform pool.
func ApplyTransform(ctx context.Context, in TransformInput) ([]source.Row, error) {
	t := in.Transform
	if t.Offset < 0 || t.Limit < 0 {
		return nil, fmt.Errorf("invalid page offset=%d limit=%d", t.Offset, t.Limit)
	}

	rows := make([]source.Row, 0, len(in.Rows))
	needle := strings.ToLower(t.Search)
	for _, row := range in.Rows {
		if needle == "" || rowContains(row, needle) {
			rows = append(rows, row)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if t.SortBy != "" {
		slices.SortStableFunc(rows, func(a, b source.Row) int {
			av, aok := a[t.SortBy]
			bv, bok := b[t.SortBy]
			switch {
			case !aok || av == nil:
				if !bok || bv == nil {
					return 0
				}
				return 1
			case !bok || bv == nil:
				return -1
			}
			c := compareValues(av, bv)
			if t.Desc {
				return -c
			}
			return c
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if t.Offset >= len(rows) {
		rows = rows[:0]
	} else {
		rows = rows[t.Offset:]
	}
	if t.Limit > 0 && t.Limit < len(rows) {
		rows = rows[:t.Limit]
	}

	if len(t.Fields) > 0 {
		projected := make([]source.Row, len(rows))
		for i, row := range rows {
			p := make(source.Row, len(t.Fields))
			for _, f := range t.Fields {
				if v, ok := row[f]; ok {
					p[f] = v
				}
			}
			projected[i] = p
		}
		rows = projected
	} else {
		for i, row := range rows {
			rows[i] = maps.Clone(row)
		}
	}
	return rows, nil
}

// cloneRows copies rows so callers never share maps with the cache.
func cloneRows(rows []source.Row) []source.Row {
	out := make([]source.Row, len(rows))
	for i, row := range rows {
		out[i] = maps.Clone(row)
	}
	return out
}

func rowContains(row source.Row, needle string) bool {
	for _, v := range row {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// compareValues orders numbers numerically, times chronologically, strings
// lexically and false before true. Mixed kinds fall back to their string
// forms.
func compareValues(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

package source

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sync"
)

// Memory is an in-process Source over fixed tables. It backs tests and the
// "memory" source kind used for local development.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
	closed bool
}

// NewMemory creates a Memory source. The rows are copied.
func NewMemory(tables map[string][]Row) *Memory {
	m := &Memory{tables: make(map[string][]Row, len(tables))}
	for name, rows := range tables {
		m.tables[name] = cloneRows(rows)
	}
	return m
}

// Name implements Source.
func (m *Memory) Name() string { return "memory" }

// Select implements Source.
func (m *Memory) Select(ctx context.Context, table string, params map[string]any) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateQuery(table, params); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if matches(row, params) {
			out = append(out, maps.Clone(row))
		}
	}
	return out, nil
}

// Put replaces the rows of table.
func (m *Memory) Put(table string, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = cloneRows(rows)
}

// Close implements Source.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func matches(row Row, params map[string]any) bool {
	for k, want := range params {
		got, ok := row[k]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

// equalValues compares loosely so that a query string "42" matches a stored
// int 42.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out
}

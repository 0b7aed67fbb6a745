// Package source defines the backends queries are read from.
//
// A Source answers equality-filtered selects against a named table. The
// query cache sits in front of it; sources themselves do no caching.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// Row is a single record keyed by column name.
type Row = map[string]any

// Source is a table-oriented read backend.
type Source interface {
	// Name identifies the backend kind ("postgres", "rest", "memory").
	Name() string

	// Select returns the rows of table whose columns equal every entry of
	// params. A nil param value matches NULL.
	Select(ctx context.Context, table string, params map[string]any) ([]Row, error)

	// Close releases the backend's resources.
	Close() error
}

var (
	// ErrInvalidIdentifier is returned for table or column names that are not
	// plain identifiers.
	ErrInvalidIdentifier = errors.New("source: invalid identifier")

	// ErrUnknownTable is returned when the backend has no such table.
	ErrUnknownTable = errors.New("source: unknown table")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("source: closed")
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier checks that name is a plain SQL identifier.
func ValidateIdentifier(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// ValidateQuery checks the table name and every param name.
func ValidateQuery(table string, params map[string]any) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	for name := range params {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// SortedKeys returns the param names in lexical order so that generated
// queries are stable.
func SortedKeys(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

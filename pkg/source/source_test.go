package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"posts", "community_members", "_private", "T1"} {
		assert.NoError(t, ValidateIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1posts", "posts;drop", "a b", `"quoted"`, "posts.id"} {
		assert.ErrorIs(t, ValidateIdentifier(bad), ErrInvalidIdentifier, bad)
	}
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, ValidateQuery("posts", map[string]any{"author_id": 1}))
	assert.ErrorIs(t, ValidateQuery("posts", map[string]any{"id=1 or": 1}), ErrInvalidIdentifier)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]any{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, SortedKeys(nil))
}

func TestMemory(t *testing.T) {
	m := NewMemory(map[string][]Row{
		"posts": {
			{"id": 1, "community_id": 10, "title": "hello", "deleted_at": nil},
			{"id": 2, "community_id": 10, "title": "again", "deleted_at": "2024-01-01"},
			{"id": 3, "community_id": 20, "title": "other"},
		},
	})
	ctx := context.Background()

	rows, err := m.Select(ctx, "posts", map[string]any{"community_id": "10"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(ctx, "posts", map[string]any{"community_id": 10, "deleted_at": nil})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0]["title"])

	// Returned rows are copies.
	rows[0]["title"] = "mutated"
	rows, err = m.Select(ctx, "posts", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "hello", rows[0]["title"])

	_, err = m.Select(ctx, "events", nil)
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = m.Select(ctx, "posts;", nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	m.Put("events", []Row{{"id": 1}})
	rows, err = m.Select(ctx, "events", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, m.Close())
	_, err = m.Select(ctx, "posts", nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, "memory", m.Name())
}

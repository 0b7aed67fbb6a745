package app

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/querykit/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posts() []source.Row {
	return []source.Row{
		{"id": int64(3), "title": "Gardening club", "likes": 12},
		{"id": int64(1), "title": "Community garden", "likes": nil},
		{"id": int64(2), "title": "Book swap", "likes": 40},
	}
}

func ids(rows []source.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r["id"]
	}
	return out
}

func TestApplyTransform(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		tr   Transform
		want []any
	}{
		{"Zero", Transform{}, []any{int64(3), int64(1), int64(2)}},
		{"SortAsc", Transform{SortBy: "id"}, []any{int64(1), int64(2), int64(3)}},
		{"SortDesc", Transform{SortBy: "id", Desc: true}, []any{int64(3), int64(2), int64(1)}},
		{"NilSortsLast", Transform{SortBy: "likes"}, []any{int64(3), int64(2), int64(1)}},
		{"Search", Transform{Search: "GARDEN"}, []any{int64(3), int64(1)}},
		{"Page", Transform{SortBy: "id", Offset: 1, Limit: 1}, []any{int64(2)}},
		{"OffsetPastEnd", Transform{Offset: 10}, []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ApplyTransform(ctx, TransformInput{Rows: posts(), Transform: tt.tr})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(rows))
		})
	}
}

func TestApplyTransform_Projection(t *testing.T) {
	in := posts()
	rows, err := ApplyTransform(context.Background(), TransformInput{
		Rows:      in,
		Transform: Transform{Fields: []string{"id", "missing"}, Limit: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []source.Row{{"id": int64(3)}}, rows)
	assert.Contains(t, in[0], "title", "input rows are not modified")
}

func TestApplyTransform_DoesNotAliasInput(t *testing.T) {
	in := posts()
	rows, err := ApplyTransform(context.Background(), TransformInput{Rows: in, Transform: Transform{SortBy: "id"}})
	require.NoError(t, err)

	rows[0]["title"] = "changed"
	for _, row := range in {
		assert.NotEqual(t, "changed", row["title"])
	}
}

func TestApplyTransform_Errors(t *testing.T) {
	_, err := ApplyTransform(context.Background(), TransformInput{Transform: Transform{Limit: -1}})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ApplyTransform(ctx, TransformInput{Rows: posts()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompareValues(t *testing.T) {
	now := time.Now()
	assert.Equal(t, -1, compareValues(1, 2.5))
	assert.Equal(t, 1, compareValues(int64(10), uint8(9)))
	assert.Equal(t, -1, compareValues("a", "b"))
	assert.Equal(t, -1, compareValues(now, now.Add(time.Second)))
	assert.Equal(t, -1, compareValues(false, true))
	assert.Equal(t, 0, compareValues(true, true))
	assert.Equal(t, -1, compareValues(1, "x"), "mixed kinds compare as strings")
}

func TestTransform_IsZero(t *testing.T) {
	assert.True(t, Transform{}.IsZero())
	assert.True(t, Transform{Desc: true}.IsZero(), "direction alone does nothing")
	assert.False(t, Transform{Fields: []string{"id"}}.IsZero())
}

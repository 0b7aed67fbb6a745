package workerpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosureName(t *testing.T) {
	tests := []struct {
		name    string
		closure bool
	}{
		{"github.com/marmos91/querykit/pkg/app.ApplyTransform", false},
		{"main.main", false},
		{"github.com/marmos91/querykit/pkg/app.(*Runtime).Query.func1", true},
		{"github.com/marmos91/querykit/pkg/app.init.func2.1", true},
		{"github.com/marmos91/querykit/pkg/app.transformer.Apply-fm", true},
		{"pkg.functional", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.closure, closureName.MatchString(tt.name))
		})
	}
}

func TestInvoke(t *testing.T) {
	out, err := invoke(context.Background(), double, 4)
	require.NoError(t, err)
	assert.Equal(t, 8, out)

	out, err = invoke(context.Background(), explode, 4)
	assert.ErrorIs(t, err, ErrTaskPanic)
	assert.True(t, isPanic(err))
	assert.Zero(t, out)

	_, err = invoke(context.Background(), evenOnly, 3)
	assert.False(t, isPanic(err))
}

func TestDefaultSize(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultSize(), 1)
}

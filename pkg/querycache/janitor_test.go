package querycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)

	c.Set("short", 1, WithCacheTime(time.Second))
	c.Set("long", 2, WithCacheTime(time.Hour))

	clock.Advance(time.Second)
	assert.Equal(t, 1, c.purgeExpired())
	assert.Equal(t, []string{"long"}, c.Stats().Keys)
}

func TestJanitorRunsOnInterval(t *testing.T) {
	clock := newFakeClock()
	c := New(Config{Clock: clock, CleanupInterval: 5 * time.Millisecond})

	c.Set("k", 1, WithCacheTime(time.Millisecond))
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return c.Stats().Size == 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
}

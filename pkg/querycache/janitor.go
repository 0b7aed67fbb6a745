package querycache

import (
	"time"

	"github.com/marmos91/querykit/internal/logger"
)

func (c *QueryCache) janitor(interval time.Duration) {
	defer c.background.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.purgeExpired(); n > 0 {
				logger.Debug("Query cache janitor removed expired entries", logger.KeyEvicted, n)
			}
		}
	}
}

// purgeExpired removes entries past their ExpireAt and returns how many were
// removed.
func (c *QueryCache) purgeExpired() int {
	now := c.clock.Now()

	c.mu.Lock()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpireAt) {
			delete(c.entries, key)
			removed++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.metrics.recordEvictions(evictExpired, removed)
	c.metrics.setEntries(size)
	return removed
}

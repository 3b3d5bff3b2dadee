package service

import (
	"sync"

	"udf_feed/internal/helper"
	"udf_feed/internal/models"
)

// LastBarCache keeps the most recent bar per (symbol, resolution) for the
// process lifetime. It never rolls back to an older bar.
type LastBarCache struct {
	mu   sync.RWMutex
	bars map[string]models.Bar
}

func NewLastBarCache() *LastBarCache {
	return &LastBarCache{bars: make(map[string]models.Bar)}
}

func (c *LastBarCache) Get(symbol, resolution string) (models.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bars[helper.SeriesKey(symbol, resolution)]
	return b, ok
}

// Set stores bar unless the cached one is newer. Reports whether it was stored.
func (c *LastBarCache) Set(symbol, resolution string, bar models.Bar) bool {
	key := helper.SeriesKey(symbol, resolution)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.bars[key]; ok && cur.Time > bar.Time {
		return false
	}
	c.bars[key] = bar
	return true
}

func (c *LastBarCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bars)
}

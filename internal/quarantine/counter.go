// Package quarantine tracks requests whose translations keep coming back
// malformed and spills them to a side log for manual inspection.
package quarantine

import (
	"maps"
	"sync"
)

// DefaultThreshold is the mismatch count after which a pair is logged.
const DefaultThreshold = 10

// Counter counts consecutive malformed translations per request. Counts only
// go away through Clear.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCounter(snapshot map[string]int) *Counter {
	c := &Counter{counts: maps.Clone(snapshot)}
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	return c
}

// Increment bumps the count for content and returns the new value.
func (c *Counter) Increment(content string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[content]++
	return c.counts[content]
}

func (c *Counter) Count(content string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[content]
}

// Clear forgets content after it translated successfully.
func (c *Counter) Clear(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, content)
}

func (c *Counter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}

func (c *Counter) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

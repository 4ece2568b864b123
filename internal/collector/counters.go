package collector

import (
	"sync"
	"sync/atomic"
)

// MethodCounters counts calls per method name. Counters are created on first use and never removed.
// Increments on different keys never contend on a shared lock.
type MethodCounters struct {
	counts sync.Map // string -> *atomic.Int64
}

// Increment adds one call for method and returns the updated count.
func (c *MethodCounters) Increment(method string) int64 {
	if counter, ok := c.counts.Load(method); ok {
		return counter.(*atomic.Int64).Add(1)
	}

	counter, _ := c.counts.LoadOrStore(method, new(atomic.Int64))

	return counter.(*atomic.Int64).Add(1)
}

// Count returns the number of calls observed for method so far.
func (c *MethodCounters) Count(method string) int64 {
	counter, ok := c.counts.Load(method)
	if !ok {
		return 0
	}

	return counter.(*atomic.Int64).Load()
}

// Snapshot copies all counters. Values are read one by one, so the copy is not an atomic view across methods.
func (c *MethodCounters) Snapshot() map[string]int64 {
	snapshot := make(map[string]int64)

	c.counts.Range(func(key, value any) bool {
		snapshot[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return snapshot
}

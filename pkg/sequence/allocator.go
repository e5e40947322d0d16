// Package sequence hands out per-key ordinals that are unique for the life of a run.
package sequence

import "sync"

// Allocator issues 1, 2, 3... independently for each slug. It is safe for
// concurrent use; the lock is held only for the increment.
type Allocator struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewAllocator creates an empty allocator
func NewAllocator() *Allocator {
	return &Allocator{counts: make(map[string]int)}
}

// Next returns the next ordinal for slug, starting at 1
func (a *Allocator) Next(slug string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counts[slug]++
	return a.counts[slug]
}

// Peek returns the last ordinal issued for slug, 0 if none
func (a *Allocator) Peek(slug string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[slug]
}

// Snapshot returns a copy of the current counters
func (a *Allocator) Snapshot() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

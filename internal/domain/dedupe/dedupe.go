// Package dedupe tracks business keys seen within a batch.
package dedupe

import (
	"sync"
)

// Tracker records keys so later occurrences can be recognised as duplicates.
// It is unbounded: eviction would let a duplicate through.
type Tracker[K comparable] struct {
	mu   sync.Mutex
	seen map[K]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker[K comparable](opts ...Option) *Tracker[K] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Tracker[K]{seen: make(map[K]struct{}, o.capacity)}
}

// SeenAndRecord atomically checks if key was seen and records it if not.
// Returns true if key was already seen, false if it was newly recorded.
func (t *Tracker[K]) SeenAndRecord(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[key]; ok {
		return true
	}
	t.seen[key] = struct{}{}
	return false
}

// FirstSeen keeps the first item for every key and reports how many later
// duplicates were dropped. Items for which key reports false are passed
// through untouched.
func FirstSeen[T any, K comparable](items []T, key func(T) (K, bool)) ([]T, int) {
	t := NewTracker[K](WithCapacity(len(items)))
	out := make([]T, 0, len(items))
	dropped := 0
	for _, it := range items {
		k, ok := key(it)
		if ok && t.SeenAndRecord(k) {
			dropped++
			continue
		}
		out = append(out, it)
	}
	return out, dropped
}

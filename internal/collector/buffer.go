package collector

import (
	"sort"
	"sync"
)

// Buffer is the rolling in-memory window shared by stream collectors. The
// socket reader inserts, the persistence timer snapshots; the mutex
// serializes the two.
type Buffer[T any] struct {
	mu sync.Mutex
	m  map[uint64]entry[T]
}

type entry[T any] struct {
	v      T
	timeMs int64
}

func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{m: make(map[uint64]entry[T])}
}

// Insert adds or replaces the record at id.
func (b *Buffer[T]) Insert(id uint64, v T, timeMs int64) {
	b.mu.Lock()
	b.m[id] = entry[T]{v: v, timeMs: timeMs}
	b.mu.Unlock()
}

// Snapshot returns all records sorted by time descending, so readers see a
// stable ordering per snapshot.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	entries := make([]entry[T], 0, len(b.m))
	for _, e := range b.m {
		entries = append(entries, e)
	}
	b.mu.Unlock()

	// insertion order is not preserved by the map; sort newest first
	sortEntries(entries)
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.v
	}
	return out
}

// Evict drops records older than cutoffMs and returns how many were removed.
func (b *Buffer[T]) Evict(cutoffMs int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, e := range b.m {
		if e.timeMs < cutoffMs {
			delete(b.m, id)
			n++
		}
	}
	return n
}

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}

func sortEntries[T any](es []entry[T]) {
	sort.Slice(es, func(i, j int) bool { return es[i].timeMs > es[j].timeMs })
}

package dedup

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rohmanhakim/threadwatch/pkg/collections"
)

/*
Window remembers recently handled identities across a fixed number of
generations. Generation 0 is the newest.

  - Add puts an id into generation 0 and removes it from any older one
  - Rotate drops the oldest generation and opens a new empty generation 0
  - an id is remembered for depth rotations after its last Add

Every id lives in exactly one generation.
*/
type Window struct {
	mu          sync.Mutex
	generations []collections.Set[string]
}

// Entry is one remembered id and the generation holding it.
type Entry struct {
	Generation int
	ID         string
}

func NewWindow(depth int) (*Window, error) {
	if depth < 1 {
		return nil, &DedupError{
			Message: fmt.Sprintf("depth must be at least 1, got %d", depth),
			Cause:   ErrCauseInvalidDepth,
		}
	}
	generations := make([]collections.Set[string], depth)
	for i := range generations {
		generations[i] = collections.NewSet[string]()
	}
	return &Window{generations: generations}, nil
}

func (w *Window) Depth() int {
	return len(w.generations)
}

func (w *Window) Add(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, generation := range w.generations[1:] {
		generation.Remove(id)
	}
	w.generations[0].Add(id)
}

// Contains does not refresh the id.
func (w *Window) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, generation := range w.generations {
		if generation.Contains(id) {
			return true
		}
	}
	return false
}

func (w *Window) Rotate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	copy(w.generations[1:], w.generations[:len(w.generations)-1])
	w.generations[0] = collections.NewSet[string]()
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, generation := range w.generations {
		total += generation.Size()
	}
	return total
}

// Snapshot lists every entry, newest generation first and ids sorted
// within a generation.
func (w *Window) Snapshot() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	entries := make([]Entry, 0)
	for genID, generation := range w.generations {
		ids := generation.Items()
		slices.Sort(ids)
		for _, id := range ids {
			entries = append(entries, Entry{Generation: genID, ID: id})
		}
	}
	return entries
}

// restore places id at generation unless a newer generation already holds
// it. Generations beyond the depth are ignored.
func (w *Window) restore(generation int, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if generation < 0 || generation >= len(w.generations) {
		return false
	}
	for _, newer := range w.generations[:generation] {
		if newer.Contains(id) {
			return false
		}
	}
	for _, older := range w.generations[generation+1:] {
		older.Remove(id)
	}
	w.generations[generation].Add(id)
	return true
}

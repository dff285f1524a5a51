// Package visit holds which countries are marked as visited and in which color.
package visit

import (
	"sort"
	"sync"

	"wandermap/pkg/country"
)

// Entry is one visited country.
type Entry struct {
	ID    country.ID `json:"id"`
	Color string     `json:"color"`
}

// Snapshot is an immutable view of the visit state at one revision.
// The zero value is an empty snapshot.
type Snapshot struct {
	revision uint64
	colors   map[country.ID]string
}

// Revision increases with every mutation of the store that produced it.
func (s Snapshot) Revision() uint64 { return s.revision }

// Color returns the color assigned to id.
func (s Snapshot) Color(id country.ID) (string, bool) {
	c, ok := s.colors[id]
	return c, ok
}

// Has reports whether id is visited.
func (s Snapshot) Has(id country.ID) bool {
	_, ok := s.colors[id]
	return ok
}

// Count returns the number of visited countries.
func (s Snapshot) Count() int { return len(s.colors) }

// Entries returns the visits ordered by id.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.colors))
	for id, c := range s.colors {
		out = append(out, Entry{ID: id, Color: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Equal reports whether both snapshots hold the same entries, ignoring revision.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.colors) != len(o.colors) {
		return false
	}
	for id, c := range s.colors {
		if oc, ok := o.colors[id]; !ok || oc != c {
			return false
		}
	}
	return true
}

// Store is the single source of truth for visit state. Every mutation
// replaces the current snapshot with a new one; published snapshots are
// never modified.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current snapshot.
func (st *Store) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Count returns the number of visited countries.
func (st *Store) Count() int {
	return st.Snapshot().Count()
}

// Toggle removes id if it is visited, otherwise marks it visited with color.
func (st *Store) Toggle(id country.ID, color string) Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.copyLocked(len(st.current.colors) + 1)
	if _, ok := next[id]; ok {
		delete(next, id)
	} else {
		next[id] = color
	}
	return st.publishLocked(next)
}

// Recolor assigns color to every visited country without changing the set.
func (st *Store) Recolor(color string) Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.copyLocked(len(st.current.colors))
	for id := range next {
		next[id] = color
	}
	return st.publishLocked(next)
}

func (st *Store) copyLocked(capacity int) map[country.ID]string {
	next := make(map[country.ID]string, capacity)
	for id, c := range st.current.colors {
		next[id] = c
	}
	return next
}

func (st *Store) publishLocked(colors map[country.ID]string) Snapshot {
	st.current = Snapshot{revision: st.current.revision + 1, colors: colors}
	return st.current
}

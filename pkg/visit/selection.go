package visit

import (
	"sort"

	"wandermap/pkg/country"
)

// Selection is an immutable set of countries flagged by search. It is
// independent of visit state.
type Selection struct {
	ids map[country.ID]struct{}
}

// Has reports whether id is selected.
func (s Selection) Has(id country.ID) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected countries.
func (s Selection) Len() int { return len(s.ids) }

// IDs returns the selected identifiers in sorted order.
func (s Selection) IDs() []country.ID {
	out := make([]country.ID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Toggle returns a new selection with id added or removed.
func (s Selection) Toggle(id country.ID) Selection {
	next := make(map[country.ID]struct{}, len(s.ids)+1)
	for k := range s.ids {
		next[k] = struct{}{}
	}
	if _, ok := next[id]; ok {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}
	return Selection{ids: next}
}

// Package geometry loads country outlines from a configured source and
// exposes them as an immutable snapshot keyed by canonical country ID.
package geometry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"wandermap/pkg/country"
)

// Country is one named outline. Each polygon is an outer ring followed by
// its holes, in (lon, lat).
type Country struct {
	ID    country.ID
	Name  string
	Shape orb.MultiPolygon
}

// Source produces the geometry snapshot for a session.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
}

// LoadError is the single error surfaced for any failed load.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load geometry from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Snapshot is an immutable, ordered set of countries.
type Snapshot struct {
	countries []Country
	bounds    []orb.Bound
	index     map[country.ID]int
}

// NewSnapshot drops excluded IDs and indexes the rest. Order is preserved.
// On duplicate IDs the first feature wins.
func NewSnapshot(countries []Country, exclude []country.ID) *Snapshot {
	skip := make(map[country.ID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	s := &Snapshot{index: make(map[country.ID]int, len(countries))}
	for _, c := range countries {
		if _, ok := skip[c.ID]; ok {
			continue
		}
		if _, dup := s.index[c.ID]; dup {
			slog.Debug("Geometry: duplicate country id, keeping first", "id", c.ID, "name", c.Name)
			continue
		}
		s.index[c.ID] = len(s.countries)
		s.countries = append(s.countries, c)
		s.bounds = append(s.bounds, c.Shape.Bound())
	}
	return s
}

// Countries returns the countries in source order. The slice must not be modified.
func (s *Snapshot) Countries() []Country { return s.countries }

// Lookup returns the country with the given ID.
func (s *Snapshot) Lookup(id country.ID) (Country, bool) {
	i, ok := s.index[id]
	if !ok {
		return Country{}, false
	}
	return s.countries[i], true
}

// CountryAt returns the country whose outline contains the geographic
// point. Where outlines overlap the first in source order wins.
func (s *Snapshot) CountryAt(lon, lat float64) (Country, bool) {
	pt := orb.Point{lon, lat}
	for i, c := range s.countries {
		if !s.bounds[i].Contains(pt) {
			continue
		}
		if planar.MultiPolygonContains(c.Shape, pt) {
			return c, true
		}
	}
	return Country{}, false
}

// Len returns the number of countries.
func (s *Snapshot) Len() int { return len(s.countries) }

// Shapes returns every outline, for bound computation.
func (s *Snapshot) Shapes() []orb.MultiPolygon {
	out := make([]orb.MultiPolygon, len(s.countries))
	for i, c := range s.countries {
		out[i] = c.Shape
	}
	return out
}

// resolveID maps whatever identifier a source carries onto the canonical
// namespace: numeric codes are padded, alpha-3 codes are translated, and a
// feature without either is keyed by its name.
func resolveID(raw, alpha3, name string) country.ID {
	if id := country.Normalize(raw); id != "" {
		if tr, ok := country.FromAlpha3(string(id)); ok {
			return tr
		}
		return id
	}
	if alpha3 != "" {
		if id, ok := country.FromAlpha3(alpha3); ok {
			return id
		}
	}
	if name == "" {
		return ""
	}
	return country.Synthetic(name)
}

// finish wraps the outcome of a source load into the public contract.
func finish(source string, countries []Country, exclude []country.ID, err error) (*Snapshot, error) {
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	snap := NewSnapshot(countries, exclude)
	if snap.Len() == 0 {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("no country geometry found")}
	}
	slog.Info("Geometry loaded", "source", source, "countries", snap.Len(), "excluded", len(countries)-snap.Len())
	return snap, nil
}

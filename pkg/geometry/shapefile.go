package geometry

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"wandermap/pkg/country"
)

// ShapefileSource reads polygon records and their DBF attributes.
type ShapefileSource struct {
	Path    string
	Exclude []country.ID
}

func (s *ShapefileSource) Name() string { return "shapefile" }

func (s *ShapefileSource) Load(ctx context.Context) (*Snapshot, error) {
	countries, err := ReadShapefile(ctx, s.Path)
	return finish(s.Path, countries, s.Exclude, err)
}

// ReadShapefile converts every polygon record of a shapefile. Identifiers
// come from ISO_N3 or ISO_A3 attributes, names from NAME or ADMIN.
func ReadShapefile(ctx context.Context, path string) ([]Country, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer r.Close()

	fields := r.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("shapefile %s has no attribute table (missing or empty .dbf)", path)
	}
	col := make(map[string]int, len(fields))
	for i, f := range fields {
		col[strings.ToUpper(strings.TrimRight(f.String(), "\x00"))] = i
	}
	attr := func(n int, keys ...string) string {
		for _, k := range keys {
			if i, ok := col[k]; ok {
				v := strings.TrimSpace(strings.TrimRight(r.ReadAttribute(n, i), "\x00"))
				if v != "" && v != "-99" {
					return v
				}
			}
		}
		return ""
	}

	var out []Country
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, p := r.Shape()
		poly, ok := p.(*shp.Polygon)
		if !ok {
			continue
		}

		shape := assemblePolygons(poly)
		if len(shape) == 0 {
			continue
		}
		name := attr(n, "NAME", "ADMIN", "NAME_LONG")
		id := resolveID(attr(n, "ISO_N3", "ISO_N3_EH"), attr(n, "ISO_A3", "ISO_A3_EH", "ADM0_A3"), name)
		if id == "" {
			continue
		}
		out = append(out, Country{ID: id, Name: name, Shape: shape})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	return out, nil
}

// assemblePolygons groups shapefile parts into polygons. Outer rings are
// clockwise; each counter-clockwise ring becomes a hole of the outer ring
// that contains it.
func assemblePolygons(s *shp.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	var holes []orb.Ring

	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}

		if ring.Orientation() == orb.CCW {
			holes = append(holes, ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}

	for _, h := range holes {
		placed := false
		for i := range mp {
			if planar.RingContains(mp[i][0], h[0]) {
				mp[i] = append(mp[i], h)
				placed = true
				break
			}
		}
		if !placed {
			// A lone counter-clockwise ring is an outer ring written the other way round.
			mp = append(mp, orb.Polygon{h})
		}
	}
	return mp
}

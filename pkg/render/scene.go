package render

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"wandermap/pkg/country"
	"wandermap/pkg/geometry"
	"wandermap/pkg/projection"
)

// Viewport is the drawing surface size in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Shape is a country outline in viewport pixels.
type Shape struct {
	ID    country.ID
	Name  string
	Polys orb.MultiPolygon
	Bound orb.Bound
	D     string
}

// Scene is the projected, fitted geometry of one load. It is immutable and
// shared by every render of the session.
type Scene struct {
	shapes   []Shape
	index    map[country.ID]int
	viewport Viewport
}

// NewScene projects every country once, fits the result into vp and keeps
// the pixel-space outlines. Excluded IDs take no part in drawing or fit.
// Countries without a usable ring are skipped.
func NewScene(snap *geometry.Snapshot, m *projection.Mercator, vp Viewport, margin float64, exclude []country.ID) (*Scene, error) {
	skip := make(map[country.ID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	var projected []Shape
	for _, c := range snap.Countries() {
		if _, ok := skip[c.ID]; ok {
			continue
		}
		mp := projectShape(m, c.Shape)
		if len(mp) == 0 {
			continue
		}
		projected = append(projected, Shape{ID: c.ID, Name: c.Name, Polys: mp})
	}

	shapes := make([]orb.MultiPolygon, len(projected))
	for i := range projected {
		shapes[i] = projected[i].Polys
	}
	bound, ok := projection.BoundOf(shapes)
	if !ok {
		return nil, fmt.Errorf("no drawable geometry: %w", projection.ErrDegenerateBound)
	}
	fit, err := projection.ComputeFit(bound, vp.Width, vp.Height, margin)
	if err != nil {
		return nil, fmt.Errorf("failed to fit map: %w", err)
	}

	s := &Scene{
		shapes:   projected,
		index:    make(map[country.ID]int, len(projected)),
		viewport: vp,
	}
	for i := range s.shapes {
		sh := &s.shapes[i]
		for _, poly := range sh.Polys {
			for _, ring := range poly {
				for k, pt := range ring {
					ring[k] = fit.Apply(pt)
				}
			}
		}
		sh.Bound = sh.Polys.Bound()
		sh.D = pathData(sh.Polys)
		s.index[sh.ID] = i
	}
	return s, nil
}

// projectShape projects each polygon. Rings split at the antimeridian
// become separate polygons; holes follow the piece that contains them.
func projectShape(m *projection.Mercator, mp orb.MultiPolygon) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		first := len(out)
		for _, piece := range m.ProjectRing(poly[0]) {
			if drawable(piece) {
				out = append(out, orb.Polygon{piece})
			}
		}
		if len(out) == first {
			continue
		}
		for _, hole := range poly[1:] {
			for _, piece := range m.ProjectRing(hole) {
				if !drawable(piece) {
					continue
				}
				owner := first
				for i := first; i < len(out); i++ {
					if planar.RingContains(out[i][0], piece[0]) {
						owner = i
						break
					}
				}
				out[owner] = append(out[owner], piece)
			}
		}
	}
	return out
}

// drawable reports whether a closed ring has at least three distinct vertices.
func drawable(r orb.Ring) bool {
	if len(r) < 4 {
		return false
	}
	distinct := 0
	for i := 1; i < len(r); i++ {
		if r[i] != r[i-1] {
			distinct++
		}
	}
	return distinct >= 3
}

func pathData(mp orb.MultiPolygon) string {
	var b []byte
	for _, poly := range mp {
		for _, ring := range poly {
			for i, pt := range ring {
				if i == len(ring)-1 && pt == ring[0] {
					break
				}
				if i == 0 {
					b = append(b, 'M')
				} else {
					b = append(b, 'L')
				}
				b = strconv.AppendFloat(b, pt[0], 'f', 2, 64)
				b = append(b, ',')
				b = strconv.AppendFloat(b, pt[1], 'f', 2, 64)
			}
			b = append(b, 'Z')
		}
	}
	return string(b)
}

// Shapes returns the drawable shapes in paint order.
func (s *Scene) Shapes() []Shape { return s.shapes }

// Shape returns the shape for id.
func (s *Scene) Shape(id country.ID) (Shape, bool) {
	i, ok := s.index[id]
	if !ok {
		return Shape{}, false
	}
	return s.shapes[i], true
}

// Viewport returns the surface size the scene was fitted to.
func (s *Scene) Viewport() Viewport { return s.viewport }

// HitTest returns the topmost shape under (x, y).
func (s *Scene) HitTest(x, y float64) (Shape, bool) {
	pt := orb.Point{x, y}
	for i := len(s.shapes) - 1; i >= 0; i-- {
		sh := s.shapes[i]
		if !sh.Bound.Contains(pt) {
			continue
		}
		if planar.MultiPolygonContains(sh.Polys, pt) {
			return sh, true
		}
	}
	return Shape{}, false
}

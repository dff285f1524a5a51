package projection

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultMargin is the share of the viewport the fitted map may occupy.
const DefaultMargin = 0.9

// Fit is the uniform scale and translation applied after projection.
type Fit struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// Apply maps an intrinsic pixel coordinate into the viewport.
func (f Fit) Apply(p orb.Point) orb.Point {
	return orb.Point{f.TranslateX + f.Scale*p[0], f.TranslateY + f.Scale*p[1]}
}

// Invert maps a viewport coordinate back into intrinsic pixel space.
func (f Fit) Invert(p orb.Point) orb.Point {
	return orb.Point{(p[0] - f.TranslateX) / f.Scale, (p[1] - f.TranslateY) / f.Scale}
}

// ComputeFit derives the transform that centers b in a width x height
// viewport, scaled so the larger relative extent fills margin of it.
func ComputeFit(b orb.Bound, width, height, margin float64) (Fit, error) {
	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	if !finite(dx) || !finite(dy) || dx < 0 || dy < 0 || (dx == 0 && dy == 0) {
		return Fit{}, ErrDegenerateBound
	}
	if width <= 0 || height <= 0 {
		return Fit{}, ErrDegenerateBound
	}

	ratio := math.Inf(1)
	if dx > 0 {
		ratio = width / dx
	}
	if dy > 0 {
		ratio = math.Min(ratio, height/dy)
	}
	scale := margin * ratio

	center := b.Center()
	return Fit{
		Scale:      scale,
		TranslateX: width/2 - scale*center[0],
		TranslateY: height/2 - scale*center[1],
	}, nil
}

// BoundOf returns the bound of all shapes; ok is false when there is no vertex.
func BoundOf(shapes []orb.MultiPolygon) (b orb.Bound, ok bool) {
	for _, mp := range shapes {
		for _, poly := range mp {
			for _, ring := range poly {
				for _, pt := range ring {
					if !ok {
						b = orb.Bound{Min: pt, Max: pt}
						ok = true
						continue
					}
					b = b.Extend(pt)
				}
			}
		}
	}
	return b, ok
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

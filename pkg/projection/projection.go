// Package projection maps geographic coordinates onto the map canvas.
package projection

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// MaxLatitude is the Mercator latitude limit in degrees.
const MaxLatitude = 85.05112878

// ErrDegenerateBound is returned when a bound has no usable extent.
var ErrDegenerateBound = errors.New("bound has no extent")

// Params are the fixed parameters of a session's projection.
type Params struct {
	CenterLon float64 // degrees
	CenterLat float64 // degrees
	Scale     float64 // pixels per radian
	Rotation  float64 // longitude shift in degrees
	Width     float64
	Height    float64
}

// Mercator is a rotated spherical Mercator projection. The output space is
// the intrinsic (un-fitted) pixel space: the center point lands on the
// middle of the Width x Height canvas.
type Mercator struct {
	p      Params
	rotate float64 // radians
	cx, cy float64 // raw projection of the center, scaled
}

// New creates a projection for p.
func New(p Params) *Mercator {
	m := &Mercator{p: p, rotate: p.Rotation * math.Pi / 180}
	cx, cy := raw(p.CenterLon*math.Pi/180, p.CenterLat*math.Pi/180)
	m.cx = p.Scale * cx
	m.cy = p.Scale * cy
	return m
}

// Project converts (lon, lat) in degrees into intrinsic pixel coordinates.
func (m *Mercator) Project(lon, lat float64) (x, y float64) {
	lambda := wrap(lon*math.Pi/180 + m.rotate)
	rx, ry := raw(lambda, clampLat(lat)*math.Pi/180)
	x = m.p.Width/2 - m.cx + m.p.Scale*rx
	y = m.p.Height/2 + m.cy - m.p.Scale*ry
	return x, y
}

// ProjectPoint is Project for orb points ([lon, lat]).
func (m *Mercator) ProjectPoint(p orb.Point) orb.Point {
	x, y := m.Project(p[0], p[1])
	return orb.Point{x, y}
}

// ProjectRing projects every vertex of r. A ring that crosses the
// antimeridian of the rotated projection comes back as several closed
// pieces; the discontinuity is not clipped.
func (m *Mercator) ProjectRing(r orb.Ring) []orb.Ring {
	if len(r) == 0 {
		return nil
	}

	var pieces []orb.Ring
	current := make(orb.Ring, 0, len(r))
	prevLambda := wrap(r[0][0]*math.Pi/180 + m.rotate)
	for i, pt := range r {
		lambda := wrap(pt[0]*math.Pi/180 + m.rotate)
		if i > 0 && math.Abs(lambda-prevLambda) > math.Pi {
			pieces = append(pieces, current)
			current = make(orb.Ring, 0, len(r)-i)
		}
		current = append(current, m.ProjectPoint(pt))
		prevLambda = lambda
	}
	pieces = append(pieces, current)

	for i := range pieces {
		pieces[i] = closeRing(pieces[i])
	}
	return pieces
}

// raw is the unit Mercator projection of radians.
func raw(lambda, phi float64) (x, y float64) {
	return lambda, math.Log(math.Tan(math.Pi/4 + phi/2))
}

// wrap normalises a longitude in radians into [-π, π).
func wrap(lambda float64) float64 {
	lambda = math.Mod(lambda+math.Pi, 2*math.Pi)
	if lambda < 0 {
		lambda += 2 * math.Pi
	}
	return lambda - math.Pi
}

func clampLat(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

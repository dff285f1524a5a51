// Package topology decodes TopoJSON documents into absolute polygon rings.
package topology

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

var (
	// ErrNoObject is returned when the requested object is missing from the document.
	ErrNoObject = errors.New("topology object not found")
	// ErrNotTopology is returned for documents whose type is not "Topology".
	ErrNotTopology = errors.New("document is not a topology")
)

// Transform holds the quantization parameters of a topology.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// Document is the subset of the TopoJSON format the decoder understands.
type Document struct {
	Type      string                     `json:"type"`
	Transform *Transform                 `json:"transform,omitempty"`
	Arcs      [][][]float64              `json:"arcs"`
	Objects   map[string]json.RawMessage `json:"objects"`
}

// Geometry is one TopoJSON geometry object.
type Geometry struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
	Arcs       json.RawMessage `json:"arcs,omitempty"`
	Geometries []Geometry      `json:"geometries,omitempty"`
}

// Feature is a decoded geometry with absolute coordinates.
type Feature struct {
	ID    string
	Name  string
	Shape orb.MultiPolygon
}

// Decode parses a TopoJSON document and returns the polygonal features of
// the named object. Non-polygonal geometries are skipped.
func Decode(data []byte, object string) ([]Feature, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if doc.Type != "Topology" {
		return nil, fmt.Errorf("%w: type %q", ErrNotTopology, doc.Type)
	}

	raw, ok := doc.Objects[object]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoObject, object)
	}

	var root Geometry
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse topology object %q: %w", object, err)
	}

	d := &decoder{arcs: decodeArcs(doc.Arcs, doc.Transform)}
	var features []Feature
	if err := d.collect(&root, &features); err != nil {
		return nil, err
	}
	return features, nil
}

type decoder struct {
	arcs [][]orb.Point
}

func (d *decoder) collect(g *Geometry, out *[]Feature) error {
	switch g.Type {
	case "GeometryCollection":
		for i := range g.Geometries {
			if err := d.collect(&g.Geometries[i], out); err != nil {
				return err
			}
		}
		return nil
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return fmt.Errorf("invalid polygon arcs: %w", err)
		}
		poly, err := d.polygon(rings)
		if err != nil {
			return err
		}
		*out = append(*out, newFeature(g, orb.MultiPolygon{poly}))
		return nil
	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return fmt.Errorf("invalid multipolygon arcs: %w", err)
		}
		mp := make(orb.MultiPolygon, 0, len(polys))
		for _, rings := range polys {
			poly, err := d.polygon(rings)
			if err != nil {
				return err
			}
			mp = append(mp, poly)
		}
		*out = append(*out, newFeature(g, mp))
		return nil
	default:
		// Points, lines and null geometries carry no area.
		return nil
	}
}

func (d *decoder) polygon(rings [][]int) (orb.Polygon, error) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, arcs := range rings {
		ring, err := d.ring(arcs)
		if err != nil {
			return nil, err
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

// ring stitches arcs together; consecutive arcs share their joining point,
// so the last point of the ring so far is dropped before each append.
func (d *decoder) ring(arcs []int) (orb.Ring, error) {
	var ring orb.Ring
	for _, idx := range arcs {
		reverse := idx < 0
		if reverse {
			idx = ^idx
		}
		if idx >= len(d.arcs) {
			return nil, fmt.Errorf("arc index %d out of range (%d arcs)", idx, len(d.arcs))
		}

		if len(ring) > 0 {
			ring = ring[:len(ring)-1]
		}
		arc := d.arcs[idx]
		if reverse {
			for i := len(arc) - 1; i >= 0; i-- {
				ring = append(ring, arc[i])
			}
		} else {
			ring = append(ring, arc...)
		}
	}

	// A ring of one degenerate arc still needs four positions.
	for len(ring) > 0 && len(ring) < 4 {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// decodeArcs converts quantized delta-encoded arcs into absolute positions.
func decodeArcs(arcs [][][]float64, t *Transform) [][]orb.Point {
	out := make([][]orb.Point, len(arcs))
	for i, arc := range arcs {
		pts := make([]orb.Point, 0, len(arc))
		var x, y float64
		for _, pos := range arc {
			if len(pos) < 2 {
				continue
			}
			if t == nil {
				pts = append(pts, orb.Point{pos[0], pos[1]})
				continue
			}
			x += pos[0]
			y += pos[1]
			pts = append(pts, orb.Point{
				x*t.Scale[0] + t.Translate[0],
				y*t.Scale[1] + t.Translate[1],
			})
		}
		out[i] = pts
	}
	return out
}

func newFeature(g *Geometry, shape orb.MultiPolygon) Feature {
	f := Feature{ID: rawID(g.ID), Shape: shape}
	if name, ok := g.Properties["name"].(string); ok {
		f.Name = name
	}
	return f
}

// rawID accepts string or numeric identifiers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

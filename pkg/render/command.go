package render

import (
	"github.com/paulmach/orb"

	"wandermap/pkg/country"
)

// Op names a drawing instruction.
type Op string

const (
	OpClear       Op = "clear"
	OpPath        Op = "path"
	OpMessage     Op = "message"
	OpStyle       Op = "style"
	OpTooltipShow Op = "tooltip_show"
	OpTooltipMove Op = "tooltip_move"
	OpTooltipHide Op = "tooltip_hide"
	OpPulse       Op = "pulse"
)

// Command is one instruction for a drawing surface. Only the fields that
// matter for Op are set.
type Command struct {
	Op          Op         `json:"op" msgpack:"op"`
	ID          country.ID `json:"id,omitempty" msgpack:"id,omitempty"`
	D           string     `json:"d,omitempty" msgpack:"d,omitempty"`
	Fill        string     `json:"fill,omitempty" msgpack:"fill,omitempty"`
	Stroke      string     `json:"stroke,omitempty" msgpack:"stroke,omitempty"`
	StrokeWidth float64    `json:"stroke_width,omitempty" msgpack:"stroke_width,omitempty"`
	Text        string     `json:"text,omitempty" msgpack:"text,omitempty"`
	X           float64    `json:"x,omitempty" msgpack:"x,omitempty"`
	Y           float64    `json:"y,omitempty" msgpack:"y,omitempty"`
	Color       string     `json:"color,omitempty" msgpack:"color,omitempty"`
	Scale       float64    `json:"scale,omitempty" msgpack:"scale,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty" msgpack:"duration_ms,omitempty"`

	// Shape is the pixel-space outline behind D, for in-process rasterisers.
	Shape orb.MultiPolygon `json:"-" msgpack:"-"`
}

// SelectionEvent is emitted when a country is clicked.
type SelectionEvent struct {
	ID   country.ID `json:"id"`
	Name string     `json:"name"`
}

// Package render turns the projected scene and the visit state into
// drawing commands.
package render

import (
	"log/slog"

	"wandermap/pkg/country"
	"wandermap/pkg/visit"
)

// Frame is everything a full redraw depends on besides the scene.
type Frame struct {
	Visits    visit.Snapshot
	Selection visit.Selection
	Hover     country.ID
	Style     Style
}

// Render paints the whole map. It is pure: the same scene and frame always
// produce the same commands. A nil scene yields a blank surface.
func Render(scene *Scene, f Frame) []Command {
	if scene == nil {
		return []Command{{Op: OpClear}}
	}

	out := make([]Command, 0, len(scene.shapes)+1)
	out = append(out, Command{Op: OpClear})
	for _, sh := range scene.shapes {
		fill, stroke, width := PathStyle(sh.ID, f)
		out = append(out, Command{
			Op:          OpPath,
			ID:          sh.ID,
			D:           sh.D,
			Fill:        fill,
			Stroke:      stroke,
			StrokeWidth: width,
			Shape:       sh.Polys,
		})
	}
	return out
}

// ErrorFrame replaces the map with a centered error message.
func ErrorFrame(vp Viewport, st Style) []Command {
	return []Command{
		{Op: OpClear},
		{Op: OpMessage, Text: ErrorMessage, X: vp.Width / 2, Y: vp.Height / 2, Color: st.ErrorColor},
	}
}

// PathStyle resolves the paint for id under frame f.
func PathStyle(id country.ID, f Frame) (fill, stroke string, width float64) {
	st := f.Style
	color, visited := f.Visits.Color(id)

	fill = st.UnvisitedFill
	if visited {
		fill = color
	}
	stroke = st.Stroke
	width = st.StrokeWidth
	if f.Selection.Has(id) {
		width = st.SelectedStrokeWidth
	}

	if f.Hover != "" && f.Hover == id {
		width = st.HoverStrokeWidth
		if !visited {
			fill = st.HoverFill
		} else if b, ok := Brighten(color, BrightenFactor); ok {
			fill = b
		} else {
			slog.Debug("Render: unparseable color, hover keeps original", "id", id, "color", color)
		}
	}
	return fill, stroke, width
}

package render

import (
	"wandermap/pkg/country"
)

// Interaction tracks pointer state for one host and emits incremental
// command batches. It never touches visit data. Not safe for concurrent
// use; the owner serialises calls.
type Interaction struct {
	hover   country.ID
	tooltip bool
	tip     Command
}

// Hover returns the country under the pointer, if any.
func (in *Interaction) Hover() country.ID { return in.hover }

// TooltipVisible reports whether a tooltip is currently shown.
func (in *Interaction) TooltipVisible() bool { return in.tooltip }

// Tooltip returns a tooltip_show command reproducing the visible tooltip at
// the last pointer position.
func (in *Interaction) Tooltip() (Command, bool) {
	if !in.tooltip {
		return Command{}, false
	}
	return in.tip, true
}

// Move updates hover for a pointer at (x, y). f carries the current visit
// state; its Hover field is ignored.
func (in *Interaction) Move(scene *Scene, x, y float64, f Frame) []Command {
	if scene == nil {
		return nil
	}
	sh, hit := scene.HitTest(x, y)
	ty := y - f.Style.TooltipOffset

	if hit && sh.ID == in.hover {
		in.tip.X, in.tip.Y = x, ty
		return []Command{{Op: OpTooltipMove, X: x, Y: ty}}
	}

	var out []Command
	if in.hover != "" {
		out = append(out, in.restyle(in.hover, "", f))
	}
	if !hit {
		in.hover = ""
		if in.tooltip {
			in.tooltip = false
			out = append(out, Command{Op: OpTooltipHide})
		}
		return out
	}

	in.hover = sh.ID
	in.tooltip = true
	in.tip = Command{Op: OpTooltipShow, ID: sh.ID, Text: displayName(sh), X: x, Y: ty}
	return append(out, in.restyle(sh.ID, sh.ID, f), in.tip)
}

// Leave clears hover when the pointer exits the surface.
func (in *Interaction) Leave(f Frame) []Command {
	var out []Command
	if in.hover != "" {
		out = append(out, in.restyle(in.hover, "", f))
		in.hover = ""
	}
	if in.tooltip {
		in.tooltip = false
		out = append(out, Command{Op: OpTooltipHide})
	}
	return out
}

// Click reports the country under (x, y) and a pulse for it.
func (in *Interaction) Click(scene *Scene, x, y float64, st Style) (SelectionEvent, []Command, bool) {
	if scene == nil {
		return SelectionEvent{}, nil, false
	}
	sh, hit := scene.HitTest(x, y)
	if !hit {
		return SelectionEvent{}, nil, false
	}
	ev := SelectionEvent{ID: sh.ID, Name: displayName(sh)}
	return ev, []Command{{
		Op:         OpPulse,
		ID:         sh.ID,
		Scale:      st.PulseScale,
		DurationMS: st.PulseDuration.Milliseconds(),
	}}, true
}

// Reset forgets pointer state, returning the commands that undo it.
func (in *Interaction) Reset() []Command {
	in.hover = ""
	if !in.tooltip {
		return nil
	}
	in.tooltip = false
	return []Command{{Op: OpTooltipHide}}
}

func (in *Interaction) restyle(id, hover country.ID, f Frame) Command {
	f.Hover = hover
	fill, stroke, width := PathStyle(id, f)
	return Command{Op: OpStyle, ID: id, Fill: fill, Stroke: stroke, StrokeWidth: width}
}

func displayName(sh Shape) string {
	if sh.Name != "" {
		return sh.Name
	}
	return country.DisplayName(sh.ID)
}

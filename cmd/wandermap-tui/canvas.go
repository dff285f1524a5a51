package main

import (
	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"wandermap/pkg/country"
	"wandermap/pkg/render"
	"wandermap/pkg/session"
)

type pathState struct {
	shape orb.MultiPolygon
	bound orb.Bound
	fill  string
}

// canvas mirrors the drawing surface from the batches a session sends.
// It is only touched from the event loop.
type canvas struct {
	viewport render.Viewport
	order    []country.ID
	paths    map[country.ID]*pathState
	message  string
	tooltip  string
	pulse    country.ID
	revision uint64
}

func newCanvas(vp render.Viewport) *canvas {
	return &canvas{viewport: vp, paths: make(map[country.ID]*pathState)}
}

// apply folds one batch into the canvas. Full batches replace everything.
func (c *canvas) apply(b session.Batch) {
	if b.Full {
		c.order = c.order[:0]
		c.paths = make(map[country.ID]*pathState, len(b.Commands))
		c.message = ""
		c.tooltip = ""
		c.pulse = ""
	}
	c.revision = b.Revision

	for _, cmd := range b.Commands {
		switch cmd.Op {
		case render.OpClear:
			c.order = c.order[:0]
			c.paths = make(map[country.ID]*pathState)
			c.message = ""
		case render.OpPath:
			c.order = append(c.order, cmd.ID)
			c.paths[cmd.ID] = &pathState{shape: cmd.Shape, bound: cmd.Shape.Bound(), fill: cmd.Fill}
		case render.OpStyle:
			if p, ok := c.paths[cmd.ID]; ok {
				p.fill = cmd.Fill
			}
		case render.OpMessage:
			c.message = cmd.Text
		case render.OpTooltipShow, render.OpTooltipMove:
			if cmd.Text != "" {
				c.tooltip = cmd.Text
			}
		case render.OpTooltipHide:
			c.tooltip = ""
		case render.OpPulse:
			c.pulse = cmd.ID
		}
	}
}

// fillAt returns the fill of the topmost path under (x, y) in viewport pixels.
func (c *canvas) fillAt(x, y float64) (country.ID, string, bool) {
	pt := orb.Point{x, y}
	for i := len(c.order) - 1; i >= 0; i-- {
		p := c.paths[c.order[i]]
		if p == nil || !p.bound.Contains(pt) {
			continue
		}
		if planar.MultiPolygonContains(p.shape, pt) {
			return c.order[i], p.fill, true
		}
	}
	return "", "", false
}

// toViewport maps the center of terminal cell (col, row) on a cols x rows
// grid to viewport pixels.
func (c *canvas) toViewport(col, row, cols, rows int) (float64, float64) {
	if cols <= 0 || rows <= 0 {
		return 0, 0
	}
	x := (float64(col) + 0.5) * c.viewport.Width / float64(cols)
	y := (float64(row) + 0.5) * c.viewport.Height / float64(rows)
	return x, y
}

// draw paints the map into the top rows of the screen.
func (c *canvas) draw(s tcell.Screen, cols, rows int, background string) {
	bg := tcell.StyleDefault.Background(tcell.GetColor(background))
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, y := c.toViewport(col, row, cols, rows)
			id, fill, ok := c.fillAt(x, y)
			if !ok {
				s.SetContent(col, row, ' ', nil, bg)
				continue
			}
			ch := ' '
			if id == c.pulse {
				ch = '░'
			}
			s.SetContent(col, row, ch, nil, tcell.StyleDefault.Background(tcell.GetColor(fill)))
		}
	}
	if c.message != "" {
		drawText(s, (cols-len(c.message))/2, rows/2, c.message, tcell.StyleDefault.Foreground(tcell.ColorRed))
	}
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	if x < 0 {
		x = 0
	}
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

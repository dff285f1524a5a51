package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandermap/pkg/country"
	"wandermap/pkg/render"
	"wandermap/pkg/session"
)

func rect(x0, y0, x1, y1 float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}}
}

func fullBatch() session.Batch {
	return session.Batch{
		Revision: 3,
		Full:     true,
		Commands: []render.Command{
			{Op: render.OpClear},
			{Op: render.OpPath, ID: "392", Fill: "#2196F3", Shape: rect(0, 0, 50, 50)},
			{Op: render.OpPath, ID: "276", Fill: "#f5f5f5", Shape: rect(40, 0, 100, 50)},
		},
	}
}

func TestCanvas_ApplyAndFillAt(t *testing.T) {
	c := newCanvas(render.Viewport{Width: 100, Height: 50})
	c.apply(fullBatch())
	assert.Equal(t, uint64(3), c.revision)

	id, fill, ok := c.fillAt(10, 10)
	require.True(t, ok)
	assert.Equal(t, country.ID("392"), id)
	assert.Equal(t, "#2196F3", fill)

	id, _, ok = c.fillAt(45, 10)
	require.True(t, ok)
	assert.Equal(t, country.ID("276"), id, "later paths are on top")

	_, _, ok = c.fillAt(150, 10)
	assert.False(t, ok)
}

func TestCanvas_Patches(t *testing.T) {
	c := newCanvas(render.Viewport{Width: 100, Height: 50})
	c.apply(fullBatch())

	c.apply(session.Batch{Revision: 3, Commands: []render.Command{
		{Op: render.OpStyle, ID: "276", Fill: "#e5e5e5"},
		{Op: render.OpTooltipShow, ID: "276", Text: "Germany"},
		{Op: render.OpStyle, ID: "999", Fill: "#000000"},
	}})
	_, fill, _ := c.fillAt(80, 10)
	assert.Equal(t, "#e5e5e5", fill)
	assert.Equal(t, "Germany", c.tooltip)

	c.apply(session.Batch{Revision: 3, Commands: []render.Command{{Op: render.OpTooltipHide}}})
	assert.Empty(t, c.tooltip)

	c.apply(session.Batch{Revision: 3, Commands: []render.Command{{Op: render.OpPulse, ID: "392"}}})
	assert.Equal(t, country.ID("392"), c.pulse)

	c.apply(session.Batch{Revision: 3, Commands: []render.Command{{Op: render.OpTooltipShow, ID: "276", Text: "Germany"}}})
	c.apply(fullBatch())
	assert.Empty(t, c.pulse, "full frame clears transient state")
	assert.Empty(t, c.tooltip)

	withTip := fullBatch()
	withTip.Commands = append(withTip.Commands, render.Command{Op: render.OpTooltipShow, ID: "392", Text: "Japan"})
	c.apply(withTip)
	assert.Equal(t, "Japan", c.tooltip)
}

func TestCanvas_ErrorMessage(t *testing.T) {
	c := newCanvas(render.Viewport{Width: 100, Height: 50})
	c.apply(fullBatch())
	c.apply(session.Batch{Full: true, Commands: render.ErrorFrame(c.viewport, render.DefaultStyle())})

	assert.Equal(t, render.ErrorMessage, c.message)
	_, _, ok := c.fillAt(10, 10)
	assert.False(t, ok)
}

func TestCanvas_ToViewport(t *testing.T) {
	c := newCanvas(render.Viewport{Width: 1200, Height: 800})
	x, y := c.toViewport(0, 0, 120, 40)
	assert.InDelta(t, 5, x, 1e-9)
	assert.InDelta(t, 10, y, 1e-9)

	x, y = c.toViewport(119, 39, 120, 40)
	assert.InDelta(t, 1195, x, 1e-9)
	assert.InDelta(t, 790, y, 1e-9)

	x, y = c.toViewport(3, 3, 0, 0)
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestCanvas_Draw(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(10, 5)

	c := newCanvas(render.Viewport{Width: 100, Height: 50})
	c.apply(fullBatch())
	c.apply(session.Batch{Revision: 3, Commands: []render.Command{{Op: render.OpPulse, ID: "392"}}})
	c.draw(screen, 10, 5, "#ffffff")

	mainc, _, style, _ := screen.GetContent(1, 1)
	_, bg, _ := style.Decompose()
	assert.Equal(t, tcell.GetColor("#2196F3"), bg)
	assert.Equal(t, '░', mainc)

	_, _, style, _ = screen.GetContent(9, 4)
	_, bg, _ = style.Decompose()
	assert.Equal(t, tcell.GetColor("#f5f5f5"), bg)
}

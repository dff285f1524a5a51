// Package export writes a rendered frame out as an SVG document or a PNG image.
package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"wandermap/pkg/render"
)

// MaxScale bounds the PNG upscale factor.
const MaxScale = 4

// ErrInvalidScale is returned for a PNG scale outside (0, MaxScale].
var ErrInvalidScale = errors.New("invalid export scale")

// SVG writes cmds as a standalone SVG document. Tooltip and pulse commands
// are transient and left out.
func SVG(w io.Writer, cmds []render.Command, vp render.Viewport, background string) error {
	var b bytes.Buffer
	width, height := num(vp.Width), num(vp.Height)

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&b, `<rect width="%s" height="%s" fill="%s"/>`+"\n", width, height, attr(background))

	for _, c := range cmds {
		switch c.Op {
		case render.OpPath:
			fmt.Fprintf(&b, `<path data-id="%s" d="%s" fill="%s" stroke="%s" stroke-width="%s" fill-rule="evenodd"/>`+"\n",
				attr(string(c.ID)), c.D, attr(c.Fill), attr(c.Stroke), num(c.StrokeWidth))
		case render.OpMessage:
			fmt.Fprintf(&b, `<text x="%s" y="%s" fill="%s" text-anchor="middle" dominant-baseline="middle" font-family="sans-serif" font-size="16">%s</text>`+"\n",
				num(c.X), num(c.Y), attr(c.Color), attr(c.Text))
		}
	}
	b.WriteString("</svg>\n")

	_, err := w.Write(b.Bytes())
	return err
}

// PNG rasterises cmds at scale times the viewport size.
func PNG(w io.Writer, cmds []render.Command, vp render.Viewport, scale float64, background string) error {
	if scale <= 0 || scale > MaxScale || math.IsNaN(scale) {
		return fmt.Errorf("%w: %g", ErrInvalidScale, scale)
	}
	width := int(math.Ceil(vp.Width * scale))
	height := int(math.Ceil(vp.Height * scale))
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport %gx%g", vp.Width, vp.Height)
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(parseColor(background, color.White))
	dc.Clear()
	dc.SetFillRuleEvenOdd()

	for _, c := range cmds {
		switch c.Op {
		case render.OpPath:
			for _, poly := range c.Shape {
				for _, ring := range poly {
					dc.NewSubPath()
					for i, pt := range ring {
						if i == 0 {
							dc.MoveTo(pt[0]*scale, pt[1]*scale)
						} else {
							dc.LineTo(pt[0]*scale, pt[1]*scale)
						}
					}
					dc.ClosePath()
				}
			}
			dc.SetColor(parseColor(c.Fill, color.Black))
			dc.FillPreserve()
			dc.SetColor(parseColor(c.Stroke, color.Black))
			dc.SetLineWidth(c.StrokeWidth * scale)
			dc.Stroke()
		case render.OpMessage:
			dc.SetColor(parseColor(c.Color, color.Black))
			dc.DrawStringAnchored(c.Text, c.X*scale, c.Y*scale, 0.5, 0.5)
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func parseColor(hex string, fallback color.Color) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fallback
	}
	return c
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func attr(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

package render

import (
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"wandermap/pkg/config"
)

// ErrorMessage is drawn in place of the map when geometry cannot be loaded.
const ErrorMessage = "Error loading map data. Please try refreshing the page."

// BrightenFactor lightens a visited color on hover: (1/0.7)^0.2 per channel.
var BrightenFactor = math.Pow(1/0.7, 0.2)

// Style holds every paint value the renderer uses.
type Style struct {
	UnvisitedFill       string
	HoverFill           string
	Stroke              string
	StrokeWidth         float64
	SelectedStrokeWidth float64
	HoverStrokeWidth    float64
	ErrorColor          string
	TooltipOffset       float64
	PulseScale          float64
	PulseDuration       time.Duration
}

// DefaultStyle returns the stock palette.
func DefaultStyle() Style {
	return StyleFromConfig(config.DefaultConfig().Style)
}

// StyleFromConfig maps the style section of the config.
func StyleFromConfig(c config.StyleConfig) Style {
	return Style{
		UnvisitedFill:       c.UnvisitedFill,
		HoverFill:           c.HoverFill,
		Stroke:              c.Stroke,
		StrokeWidth:         c.StrokeWidth,
		SelectedStrokeWidth: c.SelectedStrokeWidth,
		HoverStrokeWidth:    c.HoverStrokeWidth,
		ErrorColor:          c.ErrorColor,
		TooltipOffset:       c.TooltipOffset,
		PulseScale:          c.PulseScale,
		PulseDuration:       c.PulseDuration.D(),
	}
}

// Brighten scales each RGB channel by k and clamps. Colors that cannot be
// parsed are returned unchanged with ok set to false.
func Brighten(hex string, k float64) (out string, ok bool) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return hex, false
	}
	return colorful.Color{R: c.R * k, G: c.G * k, B: c.B * k}.Clamped().Hex(), true
}

package session

import (
	"wandermap/pkg/config"
	"wandermap/pkg/country"
	"wandermap/pkg/geometry"
	"wandermap/pkg/projection"
	"wandermap/pkg/render"
)

// OptionsFromConfig builds session options for src from the application config.
func OptionsFromConfig(cfg *config.Config, src geometry.Source) Options {
	exclude := make([]country.ID, 0, len(cfg.Geometry.Exclude))
	for _, raw := range cfg.Geometry.Exclude {
		if id := country.Normalize(raw); id != "" {
			exclude = append(exclude, id)
		}
	}

	p := cfg.Projection
	return Options{
		Source: src,
		Projection: projection.Params{
			CenterLon: p.CenterLon,
			CenterLat: p.CenterLat,
			Scale:     p.Scale,
			Rotation:  p.Rotation,
			Width:     p.Width,
			Height:    p.Height,
		},
		Margin:       p.Margin,
		Exclude:      exclude,
		Style:        render.StyleFromConfig(cfg.Style),
		DefaultColor: cfg.Visits.DefaultColor,
	}
}

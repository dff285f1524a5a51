package geometry

import (
	"context"
	"fmt"
	"log/slog"

	"wandermap/pkg/config"
	"wandermap/pkg/country"
)

// NewSource builds the source selected by cfg. f is only used for remote sources.
func NewSource(cfg config.GeometryConfig, f Fetcher) (Source, error) {
	exclude := make([]country.ID, 0, len(cfg.Exclude))
	for _, raw := range cfg.Exclude {
		exclude = append(exclude, country.Normalize(raw))
	}

	switch cfg.Source {
	case config.SourceTopoJSONURL:
		if f == nil {
			return nil, fmt.Errorf("source %s needs a fetcher", cfg.Source)
		}
		return &TopologyURLSource{Fetcher: f, URL: cfg.URL, Object: cfg.Object, Exclude: exclude}, nil
	case config.SourceTopoJSONFile:
		return &TopologyFileSource{Path: cfg.Path, Object: cfg.Object, Exclude: exclude}, nil
	case config.SourceGeoJSONFile:
		return &GeoJSONFileSource{Path: cfg.Path, Exclude: exclude}, nil
	case config.SourceShapefile:
		return &ShapefileSource{Path: cfg.Path, Exclude: exclude}, nil
	default:
		return nil, fmt.Errorf("unknown geometry source %q", cfg.Source)
	}
}

// LoadRecorder persists the outcome of each load attempt.
type LoadRecorder interface {
	RecordLoad(ctx context.Context, source string, countries int, loadErr error) error
}

// Recorded wraps src so every load attempt is written to rec.
func Recorded(src Source, rec LoadRecorder) Source {
	return &recordedSource{Source: src, rec: rec}
}

type recordedSource struct {
	Source
	rec LoadRecorder
}

func (r *recordedSource) Load(ctx context.Context) (*Snapshot, error) {
	snap, err := r.Source.Load(ctx)
	n := 0
	if snap != nil {
		n = snap.Len()
	}
	// The caller's context may already be cancelled here.
	if rerr := r.rec.RecordLoad(context.Background(), r.Source.Name(), n, err); rerr != nil {
		slog.Warn("Failed to record geometry load", "error", rerr)
	}
	return snap, err
}

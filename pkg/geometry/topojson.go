package geometry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"wandermap/pkg/country"
	"wandermap/pkg/topology"
)

// Fetcher retrieves a remote payload, optionally through a cache.
type Fetcher interface {
	Get(ctx context.Context, url, cacheKey string) ([]byte, error)
}

// TopologyURLSource downloads a TopoJSON topology.
type TopologyURLSource struct {
	Fetcher Fetcher
	URL     string
	Object  string
	Exclude []country.ID
}

func (s *TopologyURLSource) Name() string { return "topojson-url" }

func (s *TopologyURLSource) Load(ctx context.Context) (*Snapshot, error) {
	key := "topology:" + s.URL
	data, err := s.Fetcher.Get(ctx, s.URL, key)
	if err != nil {
		return finish(s.URL, nil, nil, fmt.Errorf("fetch: %w", err))
	}
	countries, err := decodeTopology(data, s.Object)
	if err != nil {
		// Drop the cached body so the next load refetches.
		if inv, ok := s.Fetcher.(invalidator); ok {
			if ierr := inv.Invalidate(ctx, key); ierr != nil {
				slog.Warn("Failed to drop cached topology", "url", s.URL, "error", ierr)
			}
		}
	}
	return finish(s.URL, countries, s.Exclude, err)
}

type invalidator interface {
	Invalidate(ctx context.Context, cacheKey string) error
}

// TopologyFileSource reads a TopoJSON topology from disk.
type TopologyFileSource struct {
	Path    string
	Object  string
	Exclude []country.ID
}

func (s *TopologyFileSource) Name() string { return "topojson-file" }

func (s *TopologyFileSource) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Source: s.Path, Err: err}
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return finish(s.Path, nil, nil, err)
	}
	countries, err := decodeTopology(data, s.Object)
	return finish(s.Path, countries, s.Exclude, err)
}

func decodeTopology(data []byte, object string) ([]Country, error) {
	features, err := topology.Decode(data, object)
	if err != nil {
		return nil, err
	}
	out := make([]Country, 0, len(features))
	for _, f := range features {
		id := resolveID(f.ID, "", f.Name)
		if id == "" {
			continue
		}
		out = append(out, Country{ID: id, Name: f.Name, Shape: f.Shape})
	}
	return out, nil
}

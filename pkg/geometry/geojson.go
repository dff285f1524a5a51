package geometry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"wandermap/pkg/country"
)

// GeoJSONFileSource reads a FeatureCollection, e.g. Natural Earth admin-0.
type GeoJSONFileSource struct {
	Path    string
	Exclude []country.ID
}

func (s *GeoJSONFileSource) Name() string { return "geojson-file" }

func (s *GeoJSONFileSource) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Source: s.Path, Err: err}
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return finish(s.Path, nil, nil, err)
	}
	countries, err := DecodeGeoJSON(data)
	return finish(s.Path, countries, s.Exclude, err)
}

// DecodeGeoJSON converts polygonal features of a FeatureCollection.
// Other geometry types are skipped.
func DecodeGeoJSON(data []byte) ([]Country, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	out := make([]Country, 0, len(fc.Features))
	for _, f := range fc.Features {
		var shape orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			shape = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			shape = g
		default:
			continue
		}

		name := featureName(f.Properties)
		id := resolveID(featureID(f), getISOAlpha3(f.Properties), name)
		if id == "" {
			continue
		}
		out = append(out, Country{ID: id, Name: name, Shape: shape})
	}
	return out, nil
}

func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	for _, key := range []string{"id", "ISO_N3", "iso_n3", "ISO_N3_EH"} {
		if s := getStringProp(f.Properties, key); s != "" && s != "-99" {
			return s
		}
	}
	return ""
}

func featureName(props geojson.Properties) string {
	for _, key := range []string{"name", "NAME", "ADMIN", "admin"} {
		if s := getStringProp(props, key); s != "" {
			return s
		}
	}
	return ""
}

// getStringProp safely extracts a string property from GeoJSON properties.
func getStringProp(props geojson.Properties, key string) string {
	if val, ok := props[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case json.Number:
			return string(v)
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// getISOAlpha3 reads ISO_A3, falling back to ISO_A3_EH when Natural Earth
// reports -99 (France, Norway, Kosovo and a few others).
func getISOAlpha3(props geojson.Properties) string {
	for _, key := range []string{"ISO_A3", "iso_a3", "ISO_A3_EH", "iso_a3_eh", "ADM0_A3"} {
		if code := getStringProp(props, key); code != "" && code != "-99" {
			return code
		}
	}
	return ""
}

// EncodeGeoJSON emits one feature per country carrying id, name and, when
// known, the alpha-3 code. DecodeGeoJSON reads the result back unchanged.
func EncodeGeoJSON(countries []Country) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range countries {
		f := geojson.NewFeature(c.Shape)
		f.ID = string(c.ID)
		f.Properties["id"] = string(c.ID)
		f.Properties["name"] = c.Name
		if a3, ok := country.Alpha3(c.ID); ok {
			f.Properties["iso_a3"] = a3
		}
		fc.Append(f)
	}
	return fc
}

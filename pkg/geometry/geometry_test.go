package geometry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandermap/pkg/config"
	"wandermap/pkg/country"
)

const worldTopology = `{
  "type": "Topology",
  "arcs": [
    [[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]],
    [[20, 0], [30, 0], [30, 10], [20, 10], [20, 0]],
    [[0, -80], [10, -80], [10, -70], [0, -70], [0, -80]],
    [[40, 0], [45, 0], [45, 5], [40, 5], [40, 0]]
  ],
  "objects": {
    "countries": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "id": "392", "properties": {"name": "Japan"}, "arcs": [[0]]},
        {"type": "Polygon", "id": 276, "properties": {"name": "Germany"}, "arcs": [[1]]},
        {"type": "Polygon", "id": "010", "properties": {"name": "Antarctica"}, "arcs": [[2]]},
        {"type": "Polygon", "properties": {"name": "Somaliland"}, "arcs": [[3]]}
      ]
    }
  }
}`

type fakeFetcher struct {
	body []byte
	err  error
	keys []string
}

func (f *fakeFetcher) Get(ctx context.Context, url, cacheKey string) ([]byte, error) {
	f.keys = append(f.keys, cacheKey)
	return f.body, f.err
}

type invalidatingFetcher struct {
	fakeFetcher
	dropped []string
}

func (f *invalidatingFetcher) Invalidate(ctx context.Context, cacheKey string) error {
	f.dropped = append(f.dropped, cacheKey)
	return nil
}

type fakeRecorder struct {
	sources []string
	counts  []int
	errs    []error
}

func (r *fakeRecorder) RecordLoad(ctx context.Context, source string, n int, err error) error {
	r.sources = append(r.sources, source)
	r.counts = append(r.counts, n)
	r.errs = append(r.errs, err)
	return nil
}

func ids(s *Snapshot) []country.ID {
	var out []country.ID
	for _, c := range s.Countries() {
		out = append(out, c.ID)
	}
	return out
}

func TestTopologyURLSource(t *testing.T) {
	f := &fakeFetcher{body: []byte(worldTopology)}
	src := &TopologyURLSource{Fetcher: f, URL: "https://example.test/countries.json", Object: "countries", Exclude: []country.ID{"010"}}

	snap, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []country.ID{"392", "276", "name:Somaliland"}, ids(snap))
	assert.Equal(t, []string{"topology:https://example.test/countries.json"}, f.keys)

	jp, ok := snap.Lookup("392")
	require.True(t, ok)
	assert.Equal(t, "Japan", jp.Name)

	_, ok = snap.Lookup("010")
	assert.False(t, ok, "excluded ids never reach the snapshot")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  Source
	}{
		{
			name: "FetchFailure",
			src:  &TopologyURLSource{Fetcher: &fakeFetcher{err: errors.New("connection refused")}, URL: "u", Object: "countries"},
		},
		{
			name: "MalformedPayload",
			src:  &TopologyURLSource{Fetcher: &fakeFetcher{body: []byte("<html>")}, URL: "u", Object: "countries"},
		},
		{
			name: "MissingObject",
			src:  &TopologyURLSource{Fetcher: &fakeFetcher{body: []byte(worldTopology)}, URL: "u", Object: "land"},
		},
		{
			name: "EverythingExcluded",
			src: &TopologyURLSource{
				Fetcher: &fakeFetcher{body: []byte(worldTopology)}, URL: "u", Object: "countries",
				Exclude: []country.ID{"392", "276", "010", "name:Somaliland"},
			},
		},
		{
			name: "MissingFile",
			src:  &GeoJSONFileSource{Path: filepath.Join(t.TempDir(), "nope.geojson")},
		},
		{
			name: "MissingShapefile",
			src:  &ShapefileSource{Path: filepath.Join(t.TempDir(), "nope.shp")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := tt.src.Load(context.Background())
			assert.Nil(t, snap, "no partial geometry")
			var le *LoadError
			require.True(t, errors.As(err, &le), "got %T: %v", err, err)
			assert.NotEmpty(t, le.Source)
		})
	}
}

func TestTopologyURLSource_DropsBadCache(t *testing.T) {
	bad := &invalidatingFetcher{fakeFetcher: fakeFetcher{body: []byte("<html>")}}
	_, err := (&TopologyURLSource{Fetcher: bad, URL: "u", Object: "countries"}).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"topology:u"}, bad.dropped)

	good := &invalidatingFetcher{fakeFetcher: fakeFetcher{body: []byte(worldTopology)}}
	_, err = (&TopologyURLSource{Fetcher: good, URL: "u", Object: "countries"}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, good.dropped)

	failed := &invalidatingFetcher{fakeFetcher: fakeFetcher{err: errors.New("offline")}}
	_, err = (&TopologyURLSource{Fetcher: failed, URL: "u", Object: "countries"}).Load(context.Background())
	require.Error(t, err)
	assert.Empty(t, failed.dropped, "nothing cached on fetch failure")
}

func TestTopologyFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	require.NoError(t, os.WriteFile(path, []byte(worldTopology), 0o644))

	snap, err := (&TopologyFileSource{Path: path, Object: "countries"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())
	assert.Len(t, snap.Shapes(), 4)
}

func TestGeoJSONFileSource(t *testing.T) {
	const fc = `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {"NAME": "France", "ISO_N3": "-99", "ISO_A3": "-99", "ISO_A3_EH": "FRA"},
	     "geometry": {"type": "Polygon", "coordinates": [[[0,40],[5,40],[5,50],[0,50],[0,40]]]}},
	    {"type": "Feature", "id": 392, "properties": {"name": "Japan"},
	     "geometry": {"type": "MultiPolygon", "coordinates": [[[[130,30],[140,30],[140,40],[130,40],[130,30]]]]}},
	    {"type": "Feature", "properties": {"name": "Road"},
	     "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]}},
	    {"type": "Feature", "properties": {"ADMIN": "Antarctica", "ISO_N3": "010"},
	     "geometry": {"type": "Polygon", "coordinates": [[[0,-80],[5,-80],[5,-70],[0,-70],[0,-80]]]}}
	  ]
	}`
	path := filepath.Join(t.TempDir(), "admin0.geojson")
	require.NoError(t, os.WriteFile(path, []byte(fc), 0o644))

	snap, err := (&GeoJSONFileSource{Path: path, Exclude: []country.ID{"010"}}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []country.ID{"250", "392"}, ids(snap))

	fr, _ := snap.Lookup("250")
	assert.Equal(t, "France", fr.Name)
}

func writeShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 40),
		shp.StringField("ISO_A3", 3),
		shp.StringField("ISO_N3", 3),
	}))

	rows := []struct {
		parts [][]shp.Point
		attrs []string
	}{
		{
			// Clockwise outer ring with a counter-clockwise hole
			parts: [][]shp.Point{
				{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}},
				{{X: 2, Y: 2}, {X: 8, Y: 2}, {X: 8, Y: 8}, {X: 2, Y: 8}, {X: 2, Y: 2}},
			},
			attrs: []string{"Lesotho", "LSO", "426"},
		},
		{
			parts: [][]shp.Point{
				{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}},
			},
			attrs: []string{"Norway", "NOR", "-99"},
		},
	}

	for i, row := range rows {
		poly := shp.Polygon(*shp.NewPolyLine(row.parts))
		w.Write(&poly)
		for j, v := range row.attrs {
			require.NoError(t, w.WriteAttribute(i, j, v))
		}
	}
	closeShapefile(t, w, path)
}

// closeShapefile closes w and moves the attribute table next to the .shp.
// go-shp names it "<base>dbf" without the dot.
func closeShapefile(t *testing.T, w *shp.Writer, path string) {
	t.Helper()
	w.Close()
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	_, err := os.Stat(base + ".dbf")
	require.NoError(t, err)
}

func TestShapefileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin0.shp")
	writeShapefile(t, path)

	snap, err := (&ShapefileSource{Path: path}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []country.ID{"426", "578"}, ids(snap))

	ls, _ := snap.Lookup("426")
	assert.Equal(t, "Lesotho", ls.Name)
	require.Len(t, ls.Shape, 1)
	assert.Len(t, ls.Shape[0], 2, "hole attached to its outer ring")
}

func TestShapefileSource_MissingAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin0.shp")
	writeShapefile(t, path)
	require.NoError(t, os.Remove(strings.TrimSuffix(path, ".shp")+".dbf"))

	_, err := ReadShapefile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attribute table")
}

func TestAssemblePolygons_LoneCCWRing(t *testing.T) {
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}, {X: 0, Y: 0}},
	}))
	mp := assemblePolygons(&poly)
	require.Len(t, mp, 1)
	assert.Equal(t, orb.Point{0, 0}, mp[0][0][0])
}

func TestResolveID(t *testing.T) {
	tests := []struct {
		raw, alpha3, name string
		want              country.ID
	}{
		{"392", "", "Japan", "392"},
		{"4", "", "Afghanistan", "004"},
		{"JPN", "", "Japan", "392"},
		{"", "DEU", "Germany", "276"},
		{"", "", "Somaliland", "name:Somaliland"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveID(tt.raw, tt.alpha3, tt.name), "%+v", tt)
	}
}

func TestNewSnapshot_Duplicates(t *testing.T) {
	snap := NewSnapshot([]Country{
		{ID: "392", Name: "Japan"},
		{ID: "392", Name: "Japan (dup)"},
		{ID: "010", Name: "Antarctica"},
	}, []country.ID{"010"})

	assert.Equal(t, 1, snap.Len())
	jp, _ := snap.Lookup("392")
	assert.Equal(t, "Japan", jp.Name)
}

func TestNewSource(t *testing.T) {
	base := config.DefaultConfig().Geometry

	tests := []struct {
		name    string
		mutate  func(*config.GeometryConfig)
		fetcher Fetcher
		want    string
		wantErr bool
	}{
		{name: "URL", fetcher: &fakeFetcher{}, want: "topojson-url"},
		{name: "URL_NoFetcher", wantErr: true},
		{name: "TopoFile", mutate: func(c *config.GeometryConfig) { c.Source = config.SourceTopoJSONFile }, want: "topojson-file"},
		{name: "GeoJSON", mutate: func(c *config.GeometryConfig) { c.Source = config.SourceGeoJSONFile }, want: "geojson-file"},
		{name: "Shapefile", mutate: func(c *config.GeometryConfig) { c.Source = config.SourceShapefile }, want: "shapefile"},
		{name: "Unknown", mutate: func(c *config.GeometryConfig) { c.Source = "ftp" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			src, err := NewSource(cfg, tt.fetcher)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Name())
		})
	}
}

func TestRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	good := Recorded(&TopologyURLSource{Fetcher: &fakeFetcher{body: []byte(worldTopology)}, URL: "u", Object: "countries"}, rec)
	bad := Recorded(&TopologyURLSource{Fetcher: &fakeFetcher{err: errors.New("boom")}, URL: "u", Object: "countries"}, rec)

	_, err := good.Load(context.Background())
	require.NoError(t, err)
	_, err = bad.Load(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"topojson-url", "topojson-url"}, rec.sources)
	assert.Equal(t, []int{4, 0}, rec.counts)
	assert.Nil(t, rec.errs[0])
	assert.Error(t, rec.errs[1])
}

func TestSnapshot_CountryAt(t *testing.T) {
	lesotho := orb.MultiPolygon{{
		{{27, -30}, {29, -30}, {29, -28}, {27, -28}, {27, -30}},
	}}
	southAfrica := orb.MultiPolygon{{
		{{16, -35}, {33, -35}, {33, -22}, {16, -22}, {16, -35}},
		{{27, -30}, {27, -28}, {29, -28}, {29, -30}, {27, -30}},
	}}
	snap := NewSnapshot([]Country{
		{ID: "710", Name: "South Africa", Shape: southAfrica},
		{ID: "426", Name: "Lesotho", Shape: lesotho},
	}, nil)

	tests := []struct {
		name     string
		lon, lat float64
		want     country.ID
		found    bool
	}{
		{"Enclave", 28, -29, "426", true},
		{"Surrounding", 20, -30, "710", true},
		{"Ocean", 0, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := snap.CountryAt(tt.lon, tt.lat)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, c.ID)
		})
	}
}

func TestEncodeGeoJSON_RoundTrip(t *testing.T) {
	in := []Country{
		{ID: "392", Name: "Japan", Shape: orb.MultiPolygon{{{{130, 30}, {140, 30}, {140, 40}, {130, 40}, {130, 30}}}}},
		{ID: country.Synthetic("Kosovo"), Name: "Kosovo", Shape: orb.MultiPolygon{{{{20, 42}, {21, 42}, {21, 43}, {20, 43}, {20, 42}}}}},
	}
	fc := EncodeGeoJSON(in)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "JPN", fc.Features[0].Properties["iso_a3"])
	assert.NotContains(t, fc.Features[1].Properties, "iso_a3")

	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	out, err := DecodeGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].ID, out[0].ID)
	assert.Equal(t, in[1].ID, out[1].ID)
	assert.Equal(t, "Kosovo", out[1].Name)
}

package topology

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareTopology = `{
  "type": "Topology",
  "transform": {"scale": [0.5, 2], "translate": [100, -50]},
  "arcs": [
    [[0, 0], [10, 0], [0, 10]],
    [[10, 10], [-10, 0], [0, -10]],
    [[20, 0], [4, 0], [0, 4], [-4, 0], [0, -4]]
  ],
  "objects": {
    "countries": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "id": "392", "properties": {"name": "Japan"}, "arcs": [[0, 1]]},
        {"type": "MultiPolygon", "id": 4, "properties": {"name": "Afghanistan"}, "arcs": [[[-3]], [[2]]]},
        {"type": null, "id": "010", "properties": {"name": "Antarctica"}},
        {"type": "GeometryCollection", "geometries": [
          {"type": "Polygon", "properties": {"name": "Nameless"}, "arcs": [[2]]}
        ]}
      ]
    }
  }
}`

func TestDecode(t *testing.T) {
	features, err := Decode([]byte(squareTopology), "countries")
	require.NoError(t, err)
	require.Len(t, features, 3)

	japan := features[0]
	assert.Equal(t, "392", japan.ID)
	assert.Equal(t, "Japan", japan.Name)
	require.Len(t, japan.Shape, 1)
	want := orb.Ring{
		{100, -50}, {105, -50}, {105, -30}, {100, -30}, {100, -50},
	}
	assert.Equal(t, want, japan.Shape[0][0])

	afg := features[1]
	assert.Equal(t, "4", afg.ID)
	require.Len(t, afg.Shape, 2)
	// The first polygon uses the reversed arc.
	assert.Equal(t, afg.Shape[1][0][0], afg.Shape[0][0][len(afg.Shape[0][0])-1])
	assert.Equal(t, orb.Point{110, -50}, afg.Shape[1][0][0])
	assert.Equal(t, orb.Point{112, -50}, afg.Shape[1][0][1])

	nameless := features[2]
	assert.Equal(t, "", nameless.ID)
	assert.Equal(t, "Nameless", nameless.Name)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		object  string
		wantErr error
	}{
		{name: "Malformed", data: `{"type":`, object: "countries"},
		{name: "WrongType", data: `{"type":"FeatureCollection"}`, object: "countries", wantErr: ErrNotTopology},
		{name: "MissingObject", data: `{"type":"Topology","arcs":[],"objects":{}}`, object: "countries", wantErr: ErrNoObject},
		{
			name:   "ArcOutOfRange",
			data:   `{"type":"Topology","arcs":[],"objects":{"countries":{"type":"Polygon","arcs":[[5]]}}}`,
			object: "countries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.object)
			require.Error(t, err)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecode_Untransformed(t *testing.T) {
	data := `{"type":"Topology","arcs":[[[1,1],[2,1],[2,2],[1,1]]],"objects":{"o":{"type":"Polygon","id":"x","arcs":[[0]]}}}`
	features, err := Decode([]byte(data), "o")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, orb.Ring{{1, 1}, {2, 1}, {2, 2}, {1, 1}}, features[0].Shape[0][0])
}

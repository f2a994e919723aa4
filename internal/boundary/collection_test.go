package boundary

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestElementFeatures(t *testing.T) {
	tract := Element{
		Kind: KindWay,
		ID:   42,
		Tags: map[string]string{"boundary": "census", "name": "Tract 12"},
		// Open way; closed on conversion.
		Geometry: latlons(sw, se, ne, nw),
	}
	els := []Element{
		tract,
		{Kind: "node", ID: 7},
		cityRelation(),
		{Kind: KindWay, ID: 8},
	}

	features, issues := ElementFeatures(els)
	require.Len(t, features, 2)

	way := features[0]
	assert.Equal(t, int64(42), way.Properties["osmId"])
	assert.Equal(t, "way", way.Properties["osmType"])
	assert.Equal(t, "census", way.Properties["boundary"])
	assert.Equal(t, "Tract 12", way.Properties["name"])
	poly, ok := way.Polygon()
	require.True(t, ok)
	assertSameRing(t, Ring{sw, se, ne, nw, sw}, ringFromGeom(poly.LinearRing(0)))

	rel := features[1]
	assert.Equal(t, int64(119557), rel.Properties["osmId"])
	assert.Equal(t, "relation", rel.Properties["osmType"])
	poly, ok = rel.Polygon()
	require.True(t, ok)
	assertSameRing(t, Ring{sw, se, ne, nw, sw}, ringFromGeom(poly.LinearRing(0)))

	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Index)
	assert.Equal(t, CodeUnsupportedElement, issues[0].Code)
	assert.Equal(t, "way/8", issues[1].ID)
	assert.Equal(t, CodeMissingGeometry, issues[1].Code)
}

func TestTractFeatures(t *testing.T) {
	poly, err := square(0, 0, 1, 1).Polygon()
	require.NoError(t, err)

	in := []Feature{
		{Geometry: poly, Properties: map[string]any{
			"TRACT": "001100", "GEOID": "13121001100", "NAME": "Census Tract 11",
			"STATE": "13", "COUNTY": "121", "AREALAND": 1234.0, "AREAWATER": 0.0,
		}},
		{Geometry: poly, Properties: map[string]any{
			"TRACT": "", "TRACTCE": "001200", "GEOID": "13121001200",
			"STATEFP": "13", "COUNTYFP": "121",
		}},
	}

	out := TractFeatures(in)
	require.Len(t, out, 2)

	p := out[0].Properties
	assert.Equal(t, "001100", p["tractId"])
	assert.Equal(t, "13121001100", p["geoid"])
	assert.Equal(t, "Census Tract 11", p["name"])
	assert.Equal(t, "13", p["state"])
	assert.Equal(t, "121", p["county"])
	assert.Equal(t, 1234.0, p["areaLand"])
	assert.Equal(t, 0.0, p["areaWater"])
	assert.Equal(t, in[0].Properties, p["_original"])
	assert.Same(t, poly, out[0].Geometry)

	p = out[1].Properties
	assert.Equal(t, "001200", p["tractId"])
	assert.Equal(t, "13", p["state"])
	assert.Equal(t, "121", p["county"])
	assert.Nil(t, p["name"])
}

func TestFeatureCollection_MarshalJSON(t *testing.T) {
	poly, err := square(0, 0, 1, 1).Polygon()
	require.NoError(t, err)
	fc := FeatureCollection{
		Features:   []Feature{{Geometry: poly, Properties: map[string]any{"geoid": "1"}}},
		Properties: map[string]any{"count": 1, "source": SourceTIGERwebTracts},
	}

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "Feature", doc.Features[0].Type)
	assert.Equal(t, "Polygon", doc.Features[0].Geometry.Type)
	assert.Equal(t, 1.0, doc.Properties["count"])
	assert.Equal(t, SourceTIGERwebTracts, doc.Properties["source"])

	polys, err := ReadFeatureCollection(strings.NewReader(string(data)), nil)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Equal(t, "1", polys[0].ID)

	data, err = json.Marshal(FeatureCollection{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestReadFeatures_KeepsMultiPolygons(t *testing.T) {
	const fc = `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"GEOID":"13121001100"},"geometry":{"type":"MultiPolygon","coordinates":[
	    [[[0,0],[1,0],[1,1],[0,1],[0,0]]],
	    [[[2,0],[3,0],[3,1],[2,1],[2,0]]]
	  ]}},
	  {"type":"Feature","properties":{"GEOID":"x"},"geometry":{"type":"Point","coordinates":[0,0]}},
	  {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
	]}`

	features, err := ReadFeatures(strings.NewReader(fc))
	require.NoError(t, err)
	require.Len(t, features, 2)

	mp, ok := features[0].Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, "13121001100", features[0].Properties["GEOID"])
	assert.NotNil(t, features[1].Properties)

	_, err = ReadFeatures(strings.NewReader("{"))
	assert.Error(t, err)
}

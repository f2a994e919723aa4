package boundary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

var (
	fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	sw       = Coord{-84, 33}
	se       = Coord{-83, 33}
	ne       = Coord{-83, 34}
	nw       = Coord{-84, 34}
)

func testAssembler(opts Options) *Assembler {
	opts.Now = func() time.Time { return fixedNow }
	return NewAssembler(opts)
}

func cityRelation() Element {
	return Element{
		Kind: KindRelation,
		ID:   119557,
		Tags: map[string]string{"name": "Atlanta", "admin_level": "8", "boundary": "administrative"},
		Members: []Member{
			{Type: "way", Ref: 3, Role: RoleOuter, Geometry: latlons(ne, nw)},
			{Type: "way", Ref: 1, Role: RoleOuter, Geometry: latlons(sw, se)},
			{Type: "way", Ref: 9, Role: "inner", Geometry: latlons(Coord{-83.6, 33.4}, Coord{-83.4, 33.6})},
			{Type: "way", Ref: 4, Role: RoleOuter, Geometry: latlons(sw, nw)},
			{Type: "way", Ref: 2, Role: RoleOuter, Geometry: latlons(ne, se)},
		},
	}
}

func TestAssemble_EmptyBatch(t *testing.T) {
	_, err := testAssembler(Options{}).Assemble(Batch{Name: "Nowhere"})
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.True(t, CodeOf(err).Fatal())
}

func TestAssemble_RelationEndToEnd(t *testing.T) {
	res, err := testAssembler(Options{}).Assemble(Batch{
		Name:       "Atlanta",
		AdminLevel: 8,
		Elements:   []Element{cityRelation()},
	})
	require.NoError(t, err)

	poly, ok := res.Feature.Polygon()
	require.True(t, ok)
	require.Equal(t, 1, poly.NumLinearRings())
	got := ringFromGeom(poly.LinearRing(0))
	assertSameRing(t, Ring{sw, se, ne, nw, sw}, got)

	assert.Equal(t, BBox{SW: sw, NE: ne}, res.BBox)
	assert.Equal(t, Coord{-83.5, 33.5}, res.Center)

	props := res.Feature.Properties
	assert.Equal(t, "Atlanta", props["name"])
	assert.Equal(t, "8", props["adminLevel"])
	assert.Equal(t, []string{"relation/119557"}, props["identifiers"])
	assert.Equal(t, [2][2]float64{{-84, 33}, {-83, 34}}, props["bounds"])
	assert.Equal(t, [2]float64{-83.5, 33.5}, props["center"])
	assert.Equal(t, "2024-03-01T17:00:00Z", props["generatedAt"])
	assert.Equal(t, ProvenanceOverpass, props["provenance"])
	source, ok := props["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(119557), source["id"])

	assert.Equal(t, 1, res.Report.Groups)
	assert.Empty(t, res.Report.Issues)
}

func TestAssemble_FeatureJSON(t *testing.T) {
	res, err := testAssembler(Options{Provenance: "test"}).Assemble(Batch{
		Name:     "Atlanta",
		Elements: []Element{cityRelation()},
	})
	require.NoError(t, err)

	data, err := json.Marshal(res.Feature)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Geometry struct {
			Type string `json:"type"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Feature", doc.Type)
	assert.Equal(t, "Polygon", doc.Geometry.Type)
	assert.Equal(t, "test", doc.Properties["provenance"])
	assert.NotContains(t, doc.Properties, "adminLevel")
	assert.Equal(t, []any{[]any{-84.0, 33.0}, []any{-83.0, 34.0}}, doc.Properties["bounds"])

	var back Feature
	require.NoError(t, json.Unmarshal(data, &back))
	_, ok := back.Polygon()
	assert.True(t, ok)
}

func TestAssemble_SingleElementSignal(t *testing.T) {
	rel := Element{
		Kind:    KindRelation,
		ID:      5,
		Members: []Member{{Type: "way", Ref: 1, Role: "inner", Geometry: latlons(sw, se)}},
	}
	_, err := testAssembler(Options{}).Assemble(Batch{Name: "x", Elements: []Element{rel}})
	assert.ErrorIs(t, err, ErrNoOuterMembers)

	_, err = testAssembler(Options{}).Assemble(Batch{Name: "x", Elements: []Element{rel, {Kind: KindWay, ID: 2}}})
	assert.ErrorIs(t, err, ErrNoGeometry)
}

func TestAssemble_RecoverableIssuesRecorded(t *testing.T) {
	res, err := testAssembler(Options{}).Assemble(Batch{
		Name: "Atlanta",
		Elements: []Element{
			{Kind: "node", ID: 1},
			cityRelation(),
			{Kind: KindWay, ID: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Report.Issues, 2)
	assert.Equal(t, CodeUnsupportedElement, res.Report.Issues[0].Code)
	assert.Equal(t, 0, res.Report.Issues[0].Index)
	assert.Equal(t, CodeMissingGeometry, res.Report.Issues[1].Code)
	assert.Equal(t, "way/2", res.Report.Issues[1].ID)
}

func TestAssemble_DissolvesPolygons(t *testing.T) {
	res, err := testAssembler(Options{Center: CenterCentroid}).Assemble(Batch{
		Name:        "Unit",
		Identifiers: []string{"13121"},
		Polygons:    quadrants(),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Report.Merged)
	assert.Equal(t, 4, res.Report.Candidates)
	assert.InDelta(t, 0.5, res.Center[0], 1e-9)
	assert.InDelta(t, 0.5, res.Center[1], 1e-9)
	assert.Equal(t, ProvenanceDissolve, res.Feature.Properties["provenance"])
	assert.Equal(t, []string{"13121", "sw", "se", "ne", "nw"}, res.Feature.Properties["identifiers"])
	assert.NotContains(t, res.Feature.Properties, "source")
}

func TestAssemble_BoundsCoverDroppedParts(t *testing.T) {
	res, err := testAssembler(Options{}).Assemble(Batch{
		Name: "Split",
		Polygons: []SourcePolygon{
			{ID: "big", Ring: square(0, 0, 1, 1)},
			{ID: "island", Ring: square(3, 2, 3.5, 2.5)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.DroppedParts)

	poly, ok := res.Feature.Polygon()
	require.True(t, ok)
	assertUnitSquare(t, ringFromGeom(poly.LinearRing(0)))

	assert.Equal(t, BBox{SW: Coord{0, 0}, NE: Coord{3.5, 2.5}}, res.BBox)
	assert.Equal(t, [2][2]float64{{0, 0}, {3.5, 2.5}}, res.Feature.Properties["bounds"])
	assert.Equal(t, Coord{1.75, 1.25}, res.Center)
}

func TestAssemble_Diagnostic(t *testing.T) {
	res, err := testAssembler(Options{Diagnostic: true}).Assemble(Batch{
		Name:     "Madison County",
		Elements: []Element{cityRelation()},
	})
	require.NoError(t, err)
	mls, ok := res.Feature.Geometry.(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 4, mls.NumLineStrings())
	assert.Equal(t, BBox{SW: sw, NE: ne}, res.BBox)
}

func TestAssemble_WaysAreDissolved(t *testing.T) {
	left := Element{Kind: KindWay, ID: 1, Geometry: latlons(ptA, Coord{0.5, 0}, Coord{0.5, 1}, ptD)}
	right := Element{Kind: KindWay, ID: 2, Geometry: latlons(Coord{0.5, 0}, ptB, ptC, Coord{0.5, 1})}
	res, err := testAssembler(Options{}).Assemble(Batch{Name: "Two halves", Elements: []Element{left, right}})
	require.NoError(t, err)

	poly, ok := res.Feature.Polygon()
	require.True(t, ok)
	assertUnitSquare(t, ringFromGeom(poly.LinearRing(0)))
	assert.Equal(t, []string{"way/1", "way/2"}, res.Feature.Properties["identifiers"])
}

func TestParseCenterMode(t *testing.T) {
	m, err := ParseCenterMode("")
	require.NoError(t, err)
	assert.Equal(t, CenterMidpoint, m)

	m, err = ParseCenterMode("centroid")
	require.NoError(t, err)
	assert.Equal(t, CenterCentroid, m)

	_, err = ParseCenterMode("median")
	assert.Error(t, err)
}

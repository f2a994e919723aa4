package tiger

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/boundary-cli/internal/boundary"
)

// clockwise unit square with its lower-left corner at (x, y).
func squarePart(x, y float64) []shp.Point {
	return []shp.Point{{X: x, Y: y}, {X: x, Y: y + 1}, {X: x + 1, Y: y + 1}, {X: x + 1, Y: y}, {X: x, Y: y}}
}

func polygonShape(parts ...[]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(parts))
	return &p
}

type record struct {
	geoid string
	shape *shp.Polygon
}

func writeShapefile(t *testing.T, records []record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tl_2024_13_bg.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("GEOID", 12),
		shp.StringField("NAMELSAD", 20),
	}))
	for _, r := range records {
		n := w.Write(r.shape)
		require.NoError(t, w.WriteAttribute(int(n), 0, r.geoid))
		require.NoError(t, w.WriteAttribute(int(n), 1, "Block Group 1"))
	}
	w.Close()
	return path
}

func TestReadPolygons(t *testing.T) {
	path := writeShapefile(t, []record{
		{"131210001001", polygonShape(squarePart(0, 0))},
		{"131210001002", polygonShape(squarePart(1, 0))},
		{"130890201001", polygonShape(squarePart(5, 5))},
	})

	polys, err := ReadPolygons(path, Filter{})
	require.NoError(t, err)
	require.Len(t, polys, 3)
	assert.Equal(t, "131210001001", polys[0].ID)
	assert.Equal(t, "Block Group 1", polys[0].Properties["NAMELSAD"])
	assert.NoError(t, polys[0].Ring.Validate())
}

func TestReadPolygons_Filter(t *testing.T) {
	path := writeShapefile(t, []record{
		{"131210001001", polygonShape(squarePart(0, 0))},
		{"131210001002", polygonShape(squarePart(1, 0))},
		{"130890201001", polygonShape(squarePart(5, 5))},
	})

	polys, err := ReadPolygons(path, Filter{GEOIDPrefix: "13121"})
	require.NoError(t, err)
	require.Len(t, polys, 2)

	res, err := boundary.Dissolver{}.Dissolve(polys)
	require.NoError(t, err)
	bbox, err := boundary.BoundsOfNested(res.Ring)
	require.NoError(t, err)
	assert.Equal(t, boundary.Coord{0, 0}, bbox.SW)
	assert.Equal(t, boundary.Coord{2, 1}, bbox.NE)
}

func TestReadPolygons_MultiPart(t *testing.T) {
	path := writeShapefile(t, []record{
		{"131210001001", polygonShape(squarePart(0, 0), squarePart(3, 0))},
	})

	polys, err := ReadPolygons(path, Filter{})
	require.NoError(t, err)
	require.Len(t, polys, 2)
	assert.Equal(t, "131210001001#0", polys[0].ID)
	assert.Equal(t, "131210001001#1", polys[1].ID)
}

func TestReadPolygons_DropsHoles(t *testing.T) {
	hole := []shp.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1}}
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 0}, {X: 0, Y: 0}}
	path := writeShapefile(t, []record{
		{"131210001001", polygonShape(outer, hole)},
	})

	polys, err := ReadPolygons(path, Filter{})
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Len(t, polys[0].Ring, 5)
}

func TestReadPolygons_Missing(t *testing.T) {
	_, err := ReadPolygons(filepath.Join(t.TempDir(), "nope.shp"), Filter{})
	assert.Error(t, err)
}

func TestPolygonToMultiPolygon_Orientation(t *testing.T) {
	x, y := -84.55, 33.65
	west := []shp.Point{{X: x, Y: y}, {X: x, Y: y + 0.1}, {X: x + 0.1, Y: y + 0.1}, {X: x + 0.1, Y: y}, {X: x, Y: y}}
	east := []shp.Point{{X: x + 0.2, Y: y}, {X: x + 0.2, Y: y + 0.1}, {X: x + 0.3, Y: y + 0.1}, {X: x + 0.3, Y: y}, {X: x + 0.2, Y: y}}
	hole := []shp.Point{{X: x + 0.02, Y: y + 0.02}, {X: x + 0.05, Y: y + 0.02}, {X: x + 0.05, Y: y + 0.05}, {X: x + 0.02, Y: y + 0.05}, {X: x + 0.02, Y: y + 0.02}}

	mp := polygonToMultiPolygon(polygonShape(west, hole, east))
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.InDelta(t, x, mp.Polygon(0).FlatCoords()[0], 1e-12)
	assert.InDelta(t, x+0.2, mp.Polygon(1).FlatCoords()[0], 1e-12)

	// A lone part is an outer ring whatever its winding.
	mp = polygonToMultiPolygon(polygonShape(hole))
	require.NotNil(t, mp)
	assert.Equal(t, 1, mp.NumPolygons())
}

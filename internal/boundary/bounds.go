package boundary

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Extent is the running state of a bounds fold. The zero value holds no
// coordinates.
type Extent struct {
	box BBox
	n   int
}

// Extend returns a new extent that also covers c.
func (e Extent) Extend(c Coord) Extent {
	if e.n == 0 {
		return Extent{box: BBox{SW: c, NE: c}, n: 1}
	}
	return Extent{
		box: BBox{
			SW: Coord{math.Min(e.box.SW[0], c[0]), math.Min(e.box.SW[1], c[1])},
			NE: Coord{math.Max(e.box.NE[0], c[0]), math.Max(e.box.NE[1], c[1])},
		},
		n: e.n + 1,
	}
}

// Count returns the number of folded coordinates.
func (e Extent) Count() int { return e.n }

// BBox returns the folded box, or EmptyGeometry when nothing was folded.
func (e Extent) BBox() (BBox, error) {
	if e.n == 0 {
		return BBox{}, newError(CodeEmptyGeometry, "no coordinates to bound")
	}
	return e.box, nil
}

// BoundsOf returns the bounding box of every vertex in g.
func BoundsOf(g geom.T) (BBox, error) {
	return extendGeom(Extent{}, g).BBox()
}

func extendGeom(e Extent, g geom.T) Extent {
	if g == nil {
		return e
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for _, child := range gc.Geoms() {
			e = extendGeom(e, child)
		}
		return e
	}
	flat, stride := g.FlatCoords(), g.Stride()
	if stride < 2 {
		return e
	}
	for i := 0; i+1 < len(flat); i += stride {
		e = e.Extend(Coord{flat[i], flat[i+1]})
	}
	return e
}

// BoundsOfNested walks an arbitrarily nested coordinate tree, as found in
// decoded GeoJSON "coordinates" members, and returns its bounding box. A
// leaf is any sequence of at least two numbers whose first two entries are
// longitude and latitude.
func BoundsOfNested(v any) (BBox, error) {
	return extendNested(Extent{}, v).BBox()
}

func extendNested(e Extent, v any) Extent {
	switch t := v.(type) {
	case Coord:
		return e.Extend(t)
	case []Coord:
		for _, c := range t {
			e = e.Extend(c)
		}
	case Ring:
		return extendNested(e, []Coord(t))
	case Segment:
		return extendNested(e, []Coord(t))
	case [][]Coord:
		for _, cs := range t {
			e = extendNested(e, cs)
		}
	case []float64:
		if len(t) >= 2 {
			return e.Extend(Coord{t[0], t[1]})
		}
	case [][]float64:
		for _, c := range t {
			e = extendNested(e, c)
		}
	case []any:
		if c, ok := numericPair(t); ok {
			return e.Extend(c)
		}
		for _, child := range t {
			e = extendNested(e, child)
		}
	}
	return e
}

func numericPair(vs []any) (Coord, bool) {
	if len(vs) < 2 {
		return Coord{}, false
	}
	lon, ok1 := vs[0].(float64)
	lat, ok2 := vs[1].(float64)
	if !ok1 || !ok2 {
		return Coord{}, false
	}
	return Coord{lon, lat}, true
}

// Midpoint returns the centre of the box.
func Midpoint(b BBox) Coord {
	return Coord{(b.SW[0] + b.NE[0]) / 2, (b.SW[1] + b.NE[1]) / 2}
}

// AreaCentroid returns the area-weighted centroid of g. Polygonal input with
// no area, and empty input, are EmptyGeometry.
func AreaCentroid(g geom.T) (Coord, error) {
	if g == nil || g.Empty() {
		return Coord{}, newError(CodeEmptyGeometry, "no geometry to take a centroid of")
	}
	switch t := g.(type) {
	case *geom.Polygon:
		if t.Area() == 0 {
			return Coord{}, newError(CodeEmptyGeometry, "polygon has zero area")
		}
	case *geom.MultiPolygon:
		if t.Area() == 0 {
			return Coord{}, newError(CodeEmptyGeometry, "multipolygon has zero area")
		}
	}
	c, err := xy.Centroid(g)
	if err != nil {
		return Coord{}, newError(CodeEmptyGeometry, "%v", err)
	}
	out := Coord{c.X(), c.Y()}
	if math.IsNaN(out[0]) || math.IsNaN(out[1]) {
		return Coord{}, newError(CodeEmptyGeometry, "centroid is undefined")
	}
	return out, nil
}

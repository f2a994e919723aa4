// Package boundary assembles administrative boundary polygons from raw
// provider geometry: it parses way/relation elements, stitches relation
// segments into closed rings, dissolves tiled polygons into one outline and
// derives the bounding box and centre used for map fitting.
package boundary

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Coord is a (longitude, latitude) pair. Coordinates are compared exactly.
type Coord [2]float64

// Lon returns the longitude.
func (c Coord) Lon() float64 { return c[0] }

// Lat returns the latitude.
func (c Coord) Lat() float64 { return c[1] }

// Valid reports whether both values are finite and inside WGS84 ranges.
func (c Coord) Valid() bool {
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c[0] >= -180 && c[0] <= 180 && c[1] >= -90 && c[1] <= 90
}

// Segment is an open coordinate path whose direction relative to its
// neighbours is unknown.
type Segment []Coord

// First returns the first coordinate.
func (s Segment) First() Coord { return s[0] }

// Last returns the last coordinate.
func (s Segment) Last() Coord { return s[len(s)-1] }

// Reversed returns a reversed copy of the segment.
func (s Segment) Reversed() Segment {
	out := make(Segment, len(s))
	for i, c := range s {
		out[len(s)-1-i] = c
	}
	return out
}

// Ring is a closed coordinate loop: at least four coordinates with the first
// equal to the last.
type Ring []Coord

// Closed reports whether the first and last coordinates are identical.
func (r Ring) Closed() bool {
	return len(r) > 0 && r[0] == r[len(r)-1]
}

// Validate checks ring closure, length and that the ring spans at least
// three distinct coordinates.
func (r Ring) Validate() error {
	if len(r) < 4 {
		return newError(CodeDegenerateRing, "ring has %d coordinates, need at least 4", len(r))
	}
	if !r.Closed() {
		return newError(CodeDegenerateRing, "ring is not closed")
	}
	distinct := make(map[Coord]struct{}, len(r))
	for _, c := range r {
		if !c.Valid() {
			return newError(CodeInvalidCoordinate, "ring coordinate %v out of range", c)
		}
		distinct[c] = struct{}{}
	}
	if len(distinct) < 3 {
		return newError(CodeDegenerateRing, "ring has %d distinct coordinates, need at least 3", len(distinct))
	}
	return nil
}

// geomCoords converts the ring to go-geom coordinates.
func (r Ring) geomCoords() []geom.Coord {
	out := make([]geom.Coord, len(r))
	for i, c := range r {
		out[i] = geom.Coord{c[0], c[1]}
	}
	return out
}

// Polygon returns the ring as a go-geom polygon with no holes.
func (r Ring) Polygon() (*geom.Polygon, error) {
	return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{r.geomCoords()})
}

// closeRing returns coords with the first coordinate appended when the
// sequence is open.
func closeRing(coords []Coord) Ring {
	out := make(Ring, len(coords), len(coords)+1)
	copy(out, coords)
	if len(out) > 0 && out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

// SourcePolygon is one input polygon (outer ring only) with provider
// identifiers and properties.
type SourcePolygon struct {
	ID         string
	Ring       Ring
	Properties map[string]any
}

// BBox is an axis-aligned bounding box given by its south-west and
// north-east corners.
type BBox struct {
	SW Coord
	NE Coord
}

// Corners returns the box as [[swLon, swLat], [neLon, neLat]].
func (b BBox) Corners() [2][2]float64 {
	return [2][2]float64{{b.SW[0], b.SW[1]}, {b.NE[0], b.NE[1]}}
}

// Contains reports whether c lies inside or on the edge of the box.
func (b BBox) Contains(c Coord) bool {
	return c[0] >= b.SW[0] && c[0] <= b.NE[0] && c[1] >= b.SW[1] && c[1] <= b.NE[1]
}

package boundary

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature is an assembled boundary: one geometry plus its property map.
type Feature struct {
	Geometry   geom.T
	Properties map[string]any
}

// MarshalJSON encodes f as a GeoJSON Feature.
func (f Feature) MarshalJSON() ([]byte, error) {
	gf := &geojson.Feature{Geometry: f.Geometry, Properties: f.Properties}
	return gf.MarshalJSON()
}

// UnmarshalJSON decodes a GeoJSON Feature.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var gf geojson.Feature
	if err := gf.UnmarshalJSON(data); err != nil {
		return eris.Wrap(err, "boundary: decode feature")
	}
	f.Geometry = gf.Geometry
	f.Properties = gf.Properties
	return nil
}

// Polygon returns the feature geometry when it is a polygon.
func (f Feature) Polygon() (*geom.Polygon, bool) {
	p, ok := f.Geometry.(*geom.Polygon)
	return p, ok
}

// ReadFeatureCollection decodes a GeoJSON FeatureCollection into source
// polygons. keep, when non-nil, selects features by their properties.
// Multi-polygons contribute one source polygon per part; holes are ignored.
func ReadFeatureCollection(r io.Reader, keep func(props map[string]any) bool) ([]SourcePolygon, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "boundary: decode feature collection")
	}

	var out []SourcePolygon
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if keep != nil && !keep(f.Properties) {
			continue
		}
		id := FeatureID(f.Properties, f.ID)
		if id == "" {
			id = "feature/" + strconv.Itoa(i)
		}
		out = append(out, SourcePolygons(id, f.Properties, f.Geometry)...)
	}
	return out, nil
}

// FeatureID picks a stable identifier from common Census property names,
// falling back to the feature id.
func FeatureID(props map[string]any, fallback string) string {
	for _, k := range []string{"GEOID", "GEOID20", "GEOID10", "geoid"} {
		if v, ok := props[k]; ok {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			case float64:
				return strconv.FormatFloat(t, 'f', -1, 64)
			}
		}
	}
	return fallback
}

// SourcePolygons splits a polygonal geometry into outer-ring source
// polygons. Non-polygonal geometries yield nothing.
func SourcePolygons(id string, props map[string]any, g geom.T) []SourcePolygon {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil
		}
		return []SourcePolygon{{ID: id, Ring: ringFromGeom(t.LinearRing(0)), Properties: props}}
	case *geom.MultiPolygon:
		out := make([]SourcePolygon, 0, t.NumPolygons())
		for k := 0; k < t.NumPolygons(); k++ {
			p := t.Polygon(k)
			if p.NumLinearRings() == 0 {
				continue
			}
			partID := id
			if t.NumPolygons() > 1 {
				partID = id + "#" + strconv.Itoa(k)
			}
			out = append(out, SourcePolygon{ID: partID, Ring: ringFromGeom(p.LinearRing(0)), Properties: props})
		}
		return out
	default:
		return nil
	}
}

func ringFromGeom(lr *geom.LinearRing) Ring {
	flat, stride := lr.FlatCoords(), lr.Stride()
	coords := make([]Coord, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		coords = append(coords, Coord{flat[i], flat[i+1]})
	}
	return closeRing(coords)
}

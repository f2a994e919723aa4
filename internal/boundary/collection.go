package boundary

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Collection sources recorded in census tract files.
const (
	SourceOSMTracts      = "OpenStreetMap via Overpass API"
	SourceTIGERwebTracts = "US Census Bureau TIGERweb"
)

// FeatureCollection is a GeoJSON FeatureCollection carrying collection-level
// properties (count, source, generatedAt and the query that produced it).
type FeatureCollection struct {
	Features   []Feature
	Properties map[string]any
}

// MarshalJSON encodes fc as a GeoJSON FeatureCollection with a top-level
// properties member.
func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	features := fc.Features
	if features == nil {
		features = []Feature{}
	}
	return json.Marshal(struct {
		Type       string         `json:"type"`
		Features   []Feature      `json:"features"`
		Properties map[string]any `json:"properties,omitempty"`
	}{"FeatureCollection", features, fc.Properties})
}

// ElementFeatures converts Overpass elements into one feature each. Ways are
// closed; relations have their outer members stitched. Elements that yield
// no ring are reported as issues and left out.
func ElementFeatures(els []Element) ([]Feature, []Issue) {
	var (
		out    []Feature
		issues []Issue
	)
	for i, e := range els {
		ring, err := elementRing(e)
		if err != nil {
			issues = append(issues, issueFrom(i, e.Ref(), err))
			continue
		}
		poly, err := ring.Polygon()
		if err != nil {
			issues = append(issues, issueFrom(i, e.Ref(), newError(CodeDegenerateRing, "%s: %v", e.Ref(), err)))
			continue
		}

		props := make(map[string]any, len(e.Tags)+2)
		props["osmId"] = e.ID
		props["osmType"] = string(e.Kind)
		for k, v := range e.Tags {
			props[k] = v
		}
		out = append(out, Feature{Geometry: poly, Properties: props})
	}
	return out, issues
}

func elementRing(e Element) (Ring, error) {
	p, err := ParseElement(e)
	if err != nil {
		return nil, err
	}
	if e.Kind == KindWay {
		return p.Ring, nil
	}
	st, err := Stitch(p.Segments)
	if err != nil {
		return nil, err
	}
	if err := st.Ring.Validate(); err != nil {
		return nil, err
	}
	return st.Ring, nil
}

// TractFeatures copies TIGERweb tract features with a normalised property
// set. The service's own attributes are kept under _original.
func TractFeatures(features []Feature) []Feature {
	out := make([]Feature, 0, len(features))
	for _, f := range features {
		p := f.Properties
		out = append(out, Feature{
			Geometry: f.Geometry,
			Properties: map[string]any{
				"tractId":   firstOf(p, "TRACT", "TRACTCE"),
				"geoid":     p["GEOID"],
				"name":      p["NAME"],
				"state":     firstOf(p, "STATE", "STATEFP"),
				"county":    firstOf(p, "COUNTY", "COUNTYFP"),
				"areaLand":  p["AREALAND"],
				"areaWater": p["AREAWATER"],
				"_original": p,
			},
		})
	}
	return out
}

// firstOf returns the first non-empty value among keys.
func firstOf(p map[string]any, keys ...string) any {
	for _, k := range keys {
		switch v := p[k].(type) {
		case nil:
		case string:
			if v != "" {
				return v
			}
		default:
			return v
		}
	}
	return nil
}

// ReadFeatures decodes the polygonal features of a GeoJSON
// FeatureCollection without splitting multi-polygons.
func ReadFeatures(r io.Reader) ([]Feature, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "boundary: decode feature collection")
	}

	out := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		switch f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			continue
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		out = append(out, Feature{Geometry: f.Geometry, Properties: props})
	}
	return out, nil
}

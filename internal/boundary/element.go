package boundary

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
)

// ElementKind is the provider element type.
type ElementKind string

// Element kinds understood by the parser.
const (
	KindWay      ElementKind = "way"
	KindRelation ElementKind = "relation"
)

// RoleOuter is the member role that bounds a relation's filled area.
const RoleOuter = "outer"

// LatLon is a resolved node position as returned by Overpass "out geom".
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Member is one relation member with its role and resolved geometry.
type Member struct {
	Type     string   `json:"type"`
	Ref      int64    `json:"ref"`
	Role     string   `json:"role"`
	Geometry []LatLon `json:"geometry,omitempty"`
}

// Element is one raw way or relation from a relation-based geometry source.
type Element struct {
	Kind     ElementKind       `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"`
	Members  []Member          `json:"members,omitempty"`
}

// Ref returns the provider reference, e.g. "relation/119557".
func (e Element) Ref() string {
	return string(e.Kind) + "/" + strconv.FormatInt(e.ID, 10)
}

// SourceProperties returns the element's identity and tags under the
// namespaced shape stored in Feature properties.
func (e Element) SourceProperties() map[string]any {
	tags := make(map[string]any, len(e.Tags))
	for k, v := range e.Tags {
		tags[k] = v
	}
	return map[string]any{
		"id":   e.ID,
		"type": string(e.Kind),
		"tags": tags,
	}
}

// Parsed is the parser output: a closed ring for ways, outer segments for
// relations.
type Parsed struct {
	Element  Element
	Ring     Ring
	Segments []Segment
	// Notes are member-level problems that did not prevent parsing.
	Notes []Issue
}

// ParseElement converts one raw element into a ring candidate (ways) or a
// set of outer segments (relations). Returned errors are *Error values.
func ParseElement(e Element) (Parsed, error) {
	switch e.Kind {
	case KindWay:
		return parseWay(e)
	case KindRelation:
		return parseRelation(e)
	default:
		return Parsed{}, newError(CodeUnsupportedElement, "%s: unsupported element kind %q", e.Ref(), e.Kind)
	}
}

func parseWay(e Element) (Parsed, error) {
	if len(e.Geometry) == 0 {
		return Parsed{}, newError(CodeMissingGeometry, "%s has no coordinate geometry", e.Ref())
	}
	coords, err := toCoords(e.Geometry)
	if err != nil {
		return Parsed{}, newError(CodeInvalidCoordinate, "%s: %v", e.Ref(), err)
	}
	ring := closeRing(coords)
	if err := ring.Validate(); err != nil {
		return Parsed{}, newError(CodeDegenerateRing, "%s: %v", e.Ref(), err)
	}
	return Parsed{Element: e, Ring: ring}, nil
}

func parseRelation(e Element) (Parsed, error) {
	p := Parsed{Element: e}
	outer := 0
	for i, m := range e.Members {
		if m.Role != RoleOuter {
			continue
		}
		outer++
		memberRef := fmt.Sprintf("%s/%d", m.Type, m.Ref)
		if len(m.Geometry) < 2 {
			p.Notes = append(p.Notes, Issue{
				Index: i,
				ID:    memberRef,
				Code:  CodeMissingGeometry,
				Msg:   fmt.Sprintf("outer member %s has %d coordinates", memberRef, len(m.Geometry)),
			})
			continue
		}
		coords, err := toCoords(m.Geometry)
		if err != nil {
			p.Notes = append(p.Notes, Issue{Index: i, ID: memberRef, Code: CodeInvalidCoordinate, Msg: err.Error()})
			continue
		}
		p.Segments = append(p.Segments, Segment(coords))
	}

	if outer == 0 {
		return Parsed{}, newError(CodeNoOuterMembers, "%s has no outer members", e.Ref())
	}
	if len(p.Segments) == 0 {
		return Parsed{}, newError(CodeMissingGeometry, "%s: none of %d outer members carry geometry", e.Ref(), outer)
	}
	return p, nil
}

func toCoords(pts []LatLon) ([]Coord, error) {
	out := make([]Coord, 0, len(pts))
	for _, p := range pts {
		c := Coord{p.Lon, p.Lat}
		if !c.Valid() {
			return nil, eris.Errorf("coordinate (%v, %v) out of range", p.Lon, p.Lat)
		}
		out = append(out, c)
	}
	return out, nil
}

package boundary

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// CenterMode selects how the boundary centre is derived.
type CenterMode string

// Centre modes.
const (
	CenterMidpoint CenterMode = "midpoint"
	CenterCentroid CenterMode = "centroid"
)

// ParseCenterMode validates a configured centre mode. Empty means midpoint.
func ParseCenterMode(s string) (CenterMode, error) {
	switch CenterMode(s) {
	case "", CenterMidpoint:
		return CenterMidpoint, nil
	case CenterCentroid:
		return CenterCentroid, nil
	default:
		return "", eris.Errorf("boundary: unknown center mode %q", s)
	}
}

// Default provenance strings.
const (
	ProvenanceOverpass = "OpenStreetMap via Overpass API"
	ProvenanceDissolve = "Dissolved from source polygons"
)

// Options configures an Assembler.
type Options struct {
	// Now stamps generatedAt. Defaults to time.Now.
	Now        func() time.Time
	Center     CenterMode
	Diagnostic bool
	Provenance string
	Dissolver  Dissolver
}

// Batch is everything known about one region.
type Batch struct {
	Name string
	// AdminLevel is the provider admin level; zero when unknown.
	AdminLevel  int
	Identifiers []string
	Elements    []Element
	Polygons    []SourcePolygon
	// Attributes are caller-supplied extras, e.g. state and country,
	// stored under the "attributes" property.
	Attributes map[string]any
}

// Report summarises what assembly kept and dropped.
type Report struct {
	Elements       int     `json:"elements"`
	Polygons       int     `json:"polygons"`
	Candidates     int     `json:"candidates"`
	Groups         int     `json:"groups"`
	ForcedClosures int     `json:"forcedClosures"`
	Merged         int     `json:"merged"`
	DroppedParts   int     `json:"droppedParts"`
	Issues         []Issue `json:"issues,omitempty"`
	Skipped        []Issue `json:"skipped,omitempty"`
}

// Result is an assembled boundary.
type Result struct {
	Feature Feature
	BBox    BBox
	Center  Coord
	Report  Report
}

// Assembler turns a batch of raw geometry into one boundary feature.
type Assembler struct {
	opts Options
}

// NewAssembler returns an assembler with defaults applied.
func NewAssembler(opts Options) *Assembler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Center == "" {
		opts.Center = CenterMidpoint
	}
	return &Assembler{opts: opts}
}

// Assemble builds one boundary feature from b. Item-level problems are
// recorded in the report; the returned error is always a *Error.
func (a *Assembler) Assemble(b Batch) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "boundary.assemble"),
		zap.String("name", b.Name),
	)
	if len(b.Elements) == 0 && len(b.Polygons) == 0 {
		return nil, newError(CodeEmptyBatch, "batch %q has no elements or polygons", b.Name)
	}

	rep := Report{Elements: len(b.Elements), Polygons: len(b.Polygons)}
	var (
		candidates []SourcePolygon
		segments   []Segment
		signal     error
		primary    *Element
		used       []string
	)
	record := func(i int, id string, err error) {
		if signal == nil {
			signal = err
		}
		rep.Issues = append(rep.Issues, issueFrom(i, id, err))
		log.Warn("element dropped",
			zap.Int("index", i),
			zap.String("id", id),
			zap.Error(err),
		)
	}

	for i := range b.Elements {
		e := b.Elements[i]
		parsed, err := ParseElement(e)
		if err != nil {
			record(i, e.Ref(), err)
			continue
		}
		rep.Issues = append(rep.Issues, parsed.Notes...)
		if primary == nil {
			primary = &b.Elements[i]
		}

		switch e.Kind {
		case KindWay:
			candidates = append(candidates, SourcePolygon{ID: e.Ref(), Ring: parsed.Ring, Properties: e.SourceProperties()})
			used = append(used, e.Ref())
		case KindRelation:
			if a.opts.Diagnostic {
				segments = append(segments, parsed.Segments...)
				used = append(used, e.Ref())
				continue
			}
			sr, err := Stitch(parsed.Segments)
			rep.Groups += sr.Groups
			if sr.ForcedClosure {
				rep.ForcedClosures++
			}
			if err != nil {
				record(i, e.Ref(), err)
				continue
			}
			if sr.Groups > 1 {
				log.Warn("relation has disconnected outer segments, concatenated",
					zap.String("id", e.Ref()),
					zap.Int("groups", sr.Groups),
				)
			}
			candidates = append(candidates, SourcePolygon{ID: e.Ref(), Ring: sr.Ring, Properties: e.SourceProperties()})
			used = append(used, e.Ref())
		}
	}

	if a.opts.Diagnostic && len(segments) > 0 {
		return a.diagnostic(b, segments, primary, used, rep)
	}

	candidates = append(candidates, b.Polygons...)
	for _, p := range b.Polygons {
		if p.ID != "" {
			used = append(used, p.ID)
		}
	}
	rep.Candidates = len(candidates)

	if len(candidates) == 0 {
		if len(b.Elements) == 1 && signal != nil {
			if e, ok := signal.(*Error); ok {
				return nil, e
			}
		}
		return nil, newError(CodeNoGeometry, "no usable geometry among %d elements", len(b.Elements))
	}

	var ring Ring
	var extent *BBox
	if len(candidates) == 1 && candidates[0].Ring.Validate() == nil {
		ring = candidates[0].Ring
		rep.Merged = 1
	} else {
		dr, err := a.opts.Dissolver.Dissolve(candidates)
		rep.Skipped = dr.Skipped
		if err != nil {
			return nil, err
		}
		ring = dr.Ring
		rep.Merged = dr.Merged
		rep.DroppedParts = dr.DroppedParts
		extent = &dr.BBox
	}

	poly, err := ring.Polygon()
	if err != nil {
		return nil, newError(CodeDegenerateRing, "build polygon: %v", err)
	}
	res, err := a.finish(b, poly, extent, primary, used, rep)
	if err != nil {
		return nil, err
	}
	log.Info("boundary assembled",
		zap.Int("candidates", rep.Candidates),
		zap.Int("merged", rep.Merged),
		zap.Int("issues", len(rep.Issues)),
		zap.Int("skipped", len(rep.Skipped)),
	)
	return res, nil
}

// diagnostic emits every outer segment as a MultiLineString without
// stitching, for inspecting broken relations.
func (a *Assembler) diagnostic(b Batch, segments []Segment, primary *Element, used []string, rep Report) (*Result, error) {
	lines := make([][]geom.Coord, len(segments))
	for i, s := range segments {
		lines[i] = Ring(s).geomCoords()
	}
	mls, err := geom.NewMultiLineString(geom.XY).SetCoords(lines)
	if err != nil {
		return nil, newError(CodeNoSegments, "build line geometry: %v", err)
	}
	rep.Candidates = len(segments)
	return a.finish(b, mls, nil, primary, used, rep)
}

// finish builds the feature. extent, when set, overrides the bounds of g so
// parts dropped from a multi-part union still count toward them.
func (a *Assembler) finish(b Batch, g geom.T, extent *BBox, primary *Element, used []string, rep Report) (*Result, error) {
	box, err := BoundsOf(g)
	if err != nil {
		return nil, err
	}
	if extent != nil {
		box = *extent
	}
	center := Midpoint(box)
	if a.opts.Center == CenterCentroid {
		if center, err = AreaCentroid(g); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(b.Identifiers)+len(used))
	ids = append(ids, b.Identifiers...)
	ids = append(ids, used...)

	props := map[string]any{
		"name":        b.Name,
		"identifiers": ids,
		"bounds":      box.Corners(),
		"center":      [2]float64{center[0], center[1]},
		"generatedAt": a.opts.Now().UTC().Format(time.RFC3339),
		"provenance":  a.provenance(b),
	}
	if b.AdminLevel > 0 {
		props["adminLevel"] = strconv.Itoa(b.AdminLevel)
	}
	if primary != nil {
		props["source"] = primary.SourceProperties()
	}
	if len(b.Attributes) > 0 {
		props["attributes"] = b.Attributes
	}

	return &Result{
		Feature: Feature{Geometry: g, Properties: props},
		BBox:    box,
		Center:  center,
		Report:  rep,
	}, nil
}

func (a *Assembler) provenance(b Batch) string {
	switch {
	case a.opts.Provenance != "":
		return a.opts.Provenance
	case len(b.Elements) > 0:
		return ProvenanceOverpass
	default:
		return ProvenanceDissolve
	}
}

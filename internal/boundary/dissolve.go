package boundary

import (
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultProgressEvery = 50

// Outcome is the result of one union step: Merged or Skipped.
type Outcome interface {
	outcome()
}

// Merged carries the grown accumulator.
type Merged struct {
	Acc polyclip.Polygon
}

// Skipped records an input that was left out of the union.
type Skipped struct {
	Index  int
	ID     string
	Reason error
}

func (Merged) outcome()  {}
func (Skipped) outcome() {}

// Dissolver folds many adjacent polygons into one outline.
type Dissolver struct {
	// Workers > 1 folds contiguous chunks concurrently before merging the
	// partial results.
	Workers int
	// ProgressEvery controls the debug progress cadence. Zero means 50.
	ProgressEvery int
}

// DissolveResult is the single dissolved ring plus what was left out.
type DissolveResult struct {
	Ring    Ring
	Merged  int
	Skipped []Issue
	// DroppedParts counts contours discarded when reducing the union to its
	// largest part.
	DroppedParts int
	// BBox covers every contour of the union, including dropped parts.
	BBox BBox
}

// partial is a chunk-level fold result over polys[first:end].
type partial struct {
	acc     polyclip.Polygon
	first   int
	end     int
	merged  int
	skipped []Issue
}

// mergePartials unions two chunk accumulators.
var mergePartials = unionPolygons

// Dissolve unions polygons left to right. Invalid inputs and failed unions
// are skipped and reported; the fold only fails when nothing can seed it.
func (d Dissolver) Dissolve(polys []SourcePolygon) (DissolveResult, error) {
	log := zap.L().With(zap.String("component", "boundary.dissolve"))
	if len(polys) == 0 {
		return DissolveResult{}, newError(CodeNoPolygonsToMerge, "no polygons supplied")
	}

	var parts []partial
	if d.Workers > 1 && len(polys) >= 2*d.Workers {
		var err error
		parts, err = d.foldParallel(log, polys)
		if err != nil {
			return DissolveResult{}, err
		}
	} else {
		parts = []partial{d.foldRange(log, nil, polys, 0)}
	}

	res := DissolveResult{}
	var acc polyclip.Polygon
	for _, p := range parts {
		if acc == nil || p.acc == nil {
			if acc == nil {
				acc = p.acc
			}
			res.Merged += p.merged
			res.Skipped = append(res.Skipped, p.skipped...)
			continue
		}
		switch o := mergePartials(acc, p.acc).(type) {
		case Merged:
			acc = o.Acc
			res.Merged += p.merged
			res.Skipped = append(res.Skipped, p.skipped...)
		case Skipped:
			log.Warn("partial merge failed, folding its inputs one by one",
				zap.Int("first_index", p.first),
				zap.Int("end_index", p.end),
				zap.Error(o.Reason),
			)
			refold := d.foldRange(log, acc, polys[p.first:p.end], p.first)
			acc = refold.acc
			res.Merged += refold.merged
			res.Skipped = append(res.Skipped, refold.skipped...)
		}
	}

	if acc == nil {
		return res, newError(CodeNoPolygonsToMerge, "none of %d polygons could seed the union", len(polys))
	}

	ring, dropped, err := largestContour(acc)
	if err != nil {
		return res, err
	}
	res.Ring = ring
	res.DroppedParts = dropped
	if res.BBox, err = contourExtent(acc).BBox(); err != nil {
		return res, err
	}
	if dropped > 0 {
		log.Warn("union produced several contours, keeping the largest",
			zap.Int("dropped", dropped),
		)
	}
	log.Info("dissolve complete",
		zap.Int("inputs", len(polys)),
		zap.Int("merged", res.Merged),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func (d Dissolver) progressEvery() int {
	if d.ProgressEvery > 0 {
		return d.ProgressEvery
	}
	return defaultProgressEvery
}

// foldRange folds polys sequentially into acc, which may be nil. offset is
// the index of polys[0] in the caller's input, used for reporting. The
// returned merged count covers polys only.
func (d Dissolver) foldRange(log *zap.Logger, acc polyclip.Polygon, polys []SourcePolygon, offset int) partial {
	p := partial{acc: acc, first: offset, end: offset + len(polys)}
	every := d.progressEvery()

	for i, sp := range polys {
		idx := offset + i
		var out Outcome
		if p.acc == nil {
			out = seedStep(idx, sp)
		} else {
			out = unionStep(p.acc, idx, sp)
		}

		switch o := out.(type) {
		case Merged:
			p.acc = o.Acc
			p.merged++
		case Skipped:
			p.skipped = append(p.skipped, issueFrom(o.Index, o.ID, o.Reason))
			log.Warn("polygon skipped",
				zap.Int("index", o.Index),
				zap.String("id", o.ID),
				zap.Error(o.Reason),
			)
		}

		if (i+1)%every == 0 {
			log.Debug("dissolve progress",
				zap.Int("processed", idx+1),
				zap.Int("merged", p.merged),
			)
		}
	}
	return p
}

func (d Dissolver) foldParallel(log *zap.Logger, polys []SourcePolygon) ([]partial, error) {
	size := (len(polys) + d.Workers - 1) / d.Workers
	chunks := (len(polys) + size - 1) / size
	parts := make([]partial, chunks)

	g := new(errgroup.Group)
	g.SetLimit(d.Workers)
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, len(polys))
		g.Go(func() error {
			parts[c] = d.foldRange(log, nil, polys[lo:hi], lo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("parallel chunks folded",
		zap.Int("chunks", chunks),
		zap.Int("workers", d.Workers),
	)
	return parts, nil
}

// seedStep validates sp and turns it into the initial accumulator.
func seedStep(index int, sp SourcePolygon) Outcome {
	if err := sp.Ring.Validate(); err != nil {
		return Skipped{Index: index, ID: sp.ID, Reason: err}
	}
	return Merged{Acc: polyclip.Polygon{toContour(sp.Ring)}}
}

// unionStep merges next into acc. It never modifies acc; on failure acc is
// still the caller's current accumulator.
func unionStep(acc polyclip.Polygon, index int, next SourcePolygon) Outcome {
	if err := next.Ring.Validate(); err != nil {
		return Skipped{Index: index, ID: next.ID, Reason: err}
	}
	out := unionPolygons(acc, polyclip.Polygon{toContour(next.Ring)})
	if s, ok := out.(Skipped); ok {
		s.Index = index
		s.ID = next.ID
		return s
	}
	return out
}

func unionPolygons(a, b polyclip.Polygon) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Skipped{Reason: newError(CodeUnionFailed, "union panicked: %v", r)}
		}
	}()
	res := a.Construct(polyclip.UNION, b)
	if len(res) == 0 || res.NumVertices() == 0 {
		return Skipped{Reason: newError(CodeUnionFailed, "union produced an empty result")}
	}
	if err := checkUnion(a, b, res); err != nil {
		return Skipped{Reason: err}
	}
	return Merged{Acc: res}
}

const (
	// unionAreaTolerance is the relative area a union may lose to rounding.
	unionAreaTolerance = 1e-6
	// unionBoundsTolerance is in degrees.
	unionBoundsTolerance = 1e-9
)

// checkUnion rejects results the clipper corrupted: a union covers at least
// the larger input's area and the bounding boxes of both inputs.
func checkUnion(a, b, res polyclip.Polygon) error {
	origin := a.BoundingBox().Min
	floor := math.Max(polygonArea(a, origin), polygonArea(b, origin))
	got := polygonArea(res, origin)
	if got < floor*(1-unionAreaTolerance) {
		return newError(CodeUnionFailed, "union area %.3g is below input area %.3g", got, floor)
	}
	rb := res.BoundingBox()
	for _, in := range []polyclip.Rectangle{a.BoundingBox(), b.BoundingBox()} {
		if in.Min.X < rb.Min.X-unionBoundsTolerance || in.Min.Y < rb.Min.Y-unionBoundsTolerance ||
			in.Max.X > rb.Max.X+unionBoundsTolerance || in.Max.Y > rb.Max.Y+unionBoundsTolerance {
			return newError(CodeUnionFailed, "union bounds do not cover its inputs")
		}
	}
	return nil
}

// polygonArea is the even-odd area of p. A contour inside an odd number of
// larger contours is a hole. Coordinates are shifted by origin first so the
// shoelace sum keeps its precision at real-world longitudes.
func polygonArea(p polyclip.Polygon, origin polyclip.Point) float64 {
	areas := make([]float64, len(p))
	boxes := make([]polyclip.Rectangle, len(p))
	for i, c := range p {
		areas[i] = contourArea(c, origin)
		boxes[i] = c.BoundingBox()
	}

	var total float64
	for i, c := range p {
		if len(c) < 3 {
			continue
		}
		depth := 0
		for j, o := range p {
			if i == j || len(o) < 3 || areas[j] <= areas[i] || !rectCovers(boxes[j], boxes[i]) {
				continue
			}
			if o.Contains(c[0]) {
				depth++
			}
		}
		if depth%2 == 1 {
			total -= areas[i]
		} else {
			total += areas[i]
		}
	}
	return total
}

func contourArea(c polyclip.Contour, origin polyclip.Point) float64 {
	if len(c) < 3 {
		return 0
	}
	flat := make([]float64, 0, 2*len(c)+2)
	for _, pt := range c {
		flat = append(flat, pt.X-origin.X, pt.Y-origin.Y)
	}
	flat = append(flat, flat[0], flat[1])
	return math.Abs(geom.NewLinearRingFlat(geom.XY, flat).Area())
}

func rectCovers(outer, inner polyclip.Rectangle) bool {
	return outer.Min.X <= inner.Min.X && outer.Min.Y <= inner.Min.Y &&
		outer.Max.X >= inner.Max.X && outer.Max.Y >= inner.Max.Y
}

// contourExtent folds every vertex of p.
func contourExtent(p polyclip.Polygon) Extent {
	var e Extent
	for _, c := range p {
		if len(c) < 3 {
			continue
		}
		for _, pt := range c {
			e = e.Extend(Coord{pt.X, pt.Y})
		}
	}
	return e
}

// toContour drops the closing coordinate; polyclip contours are implicitly
// closed.
func toContour(r Ring) polyclip.Contour {
	c := make(polyclip.Contour, 0, len(r)-1)
	for _, pt := range r[:len(r)-1] {
		c = append(c, polyclip.Point{X: pt[0], Y: pt[1]})
	}
	return c
}

func contourRing(c polyclip.Contour) Ring {
	coords := make([]Coord, len(c))
	for i, pt := range c {
		coords[i] = Coord{pt.X, pt.Y}
	}
	return closeRing(coords)
}

func ringArea(r Ring) float64 {
	lr, err := geom.NewLinearRing(geom.XY).SetCoords(r.geomCoords())
	if err != nil {
		return 0
	}
	return math.Abs(lr.Area())
}

// largestContour reduces a union result to its largest part by absolute
// area. Holes and disjoint islands are counted in dropped.
func largestContour(p polyclip.Polygon) (Ring, int, error) {
	var (
		best     Ring
		bestArea = -1.0
		kept     int
	)
	for _, c := range p {
		if len(c) < 3 {
			continue
		}
		kept++
		r := contourRing(c)
		if a := ringArea(r); a > bestArea {
			best, bestArea = r, a
		}
	}
	if best == nil {
		return nil, 0, newError(CodeNoPolygonsToMerge, "union left no usable contour")
	}
	if err := best.Validate(); err != nil {
		return nil, 0, err
	}
	return best, kept - 1, nil
}

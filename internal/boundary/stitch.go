package boundary

// ringBuilder is the stitching state: an ordered coordinate chain whose
// first and last coordinates are its two open ends. Every method returns a
// new builder and leaves the receiver untouched.
type ringBuilder struct {
	coords []Coord
}

func newRingBuilder(seed Segment) ringBuilder {
	coords := make([]Coord, len(seed))
	copy(coords, seed)
	return ringBuilder{coords: coords}
}

func (b ringBuilder) head() Coord { return b.coords[0] }

func (b ringBuilder) tail() Coord { return b.coords[len(b.coords)-1] }

// closed reports whether the chain already returns to its start.
func (b ringBuilder) closed() bool {
	return len(b.coords) > 1 && b.head() == b.tail()
}

func (b ringBuilder) appendCoords(cs []Coord) ringBuilder {
	out := make([]Coord, 0, len(b.coords)+len(cs))
	out = append(out, b.coords...)
	out = append(out, cs...)
	return ringBuilder{coords: out}
}

func (b ringBuilder) prependCoords(cs []Coord) ringBuilder {
	out := make([]Coord, 0, len(b.coords)+len(cs))
	out = append(out, cs...)
	out = append(out, b.coords...)
	return ringBuilder{coords: out}
}

// attach joins seg to whichever open end it touches, trying the tail before
// the head and reversing seg when its orientation runs against the chain.
// The shared join coordinate is kept once.
func (b ringBuilder) attach(seg Segment) (ringBuilder, bool) {
	switch {
	case seg.First() == b.tail():
		return b.appendCoords(seg[1:]), true
	case seg.Last() == b.tail():
		return b.appendCoords(seg.Reversed()[1:]), true
	case seg.Last() == b.head():
		return b.prependCoords(seg[:len(seg)-1]), true
	case seg.First() == b.head():
		rev := seg.Reversed()
		return b.prependCoords(rev[:len(rev)-1]), true
	default:
		return b, false
	}
}

// concat appends chain unchanged, dropping a duplicated join coordinate.
func (b ringBuilder) concat(chain []Coord) ringBuilder {
	if len(chain) > 0 && chain[0] == b.tail() {
		chain = chain[1:]
	}
	return b.appendCoords(chain)
}

// close force-closes the chain by repeating its first coordinate.
func (b ringBuilder) close() (Ring, bool) {
	if b.closed() {
		return Ring(b.coords), false
	}
	return Ring(b.appendCoords([]Coord{b.head()}).coords), true
}

// StitchResult is the outcome of joining one relation's outer segments.
type StitchResult struct {
	Ring Ring
	// Groups is the number of disconnected segment chains found. Values
	// above one mean the ring concatenates disjoint parts.
	Groups int
	// ForcedClosure is set when the last coordinate had to be appended.
	ForcedClosure bool
}

// StitchGroups grows one chain per connected group of segments. A group is
// seeded with the first unconsumed segment in discovery order and grown from
// both open ends until no unconsumed segment touches either end or the chain
// closes on itself.
func StitchGroups(segments []Segment) [][]Coord {
	used := make([]bool, len(segments))
	var groups [][]Coord

	for seed := range segments {
		if used[seed] || len(segments[seed]) == 0 {
			continue
		}
		used[seed] = true
		b := newRingBuilder(segments[seed])

		for !b.closed() {
			grown := false
			for i, seg := range segments {
				if used[i] || len(seg) < 2 {
					continue
				}
				next, ok := b.attach(seg)
				if !ok {
					continue
				}
				b = next
				used[i] = true
				grown = true
				break
			}
			if !grown {
				break
			}
		}
		groups = append(groups, b.coords)
	}
	return groups
}

// Stitch joins an unordered set of outer segments into one closed ring.
// Disconnected groups are concatenated in discovery order rather than split
// into separate rings; use StitchGroups to inspect them individually. The
// result is force-closed when its ends differ.
func Stitch(segments []Segment) (StitchResult, error) {
	groups := StitchGroups(segments)
	if len(groups) == 0 {
		return StitchResult{}, newError(CodeNoSegments, "no segments to stitch")
	}

	b := newRingBuilder(groups[0])
	for _, g := range groups[1:] {
		b = b.concat(g)
	}

	ring, forced := b.close()
	res := StitchResult{Ring: ring, Groups: len(groups), ForcedClosure: forced}
	if err := ring.Validate(); err != nil {
		return res, err
	}
	return res, nil
}

package bgp

// SegmentType enumerates the four AS_PATH segment kinds (§3).
type SegmentType uint8

const (
	AsSequence SegmentType = 2
	AsSet      SegmentType = 1
	AsConfedSequence SegmentType = 4
	AsConfedSet      SegmentType = 3
)

func (t SegmentType) String() string {
	switch t {
	case AsSequence:
		return "AS_SEQUENCE"
	case AsSet:
		return "AS_SET"
	case AsConfedSequence:
		return "AS_CONFED_SEQUENCE"
	case AsConfedSet:
		return "AS_CONFED_SET"
	default:
		return "UNKNOWN"
	}
}

// Segment is one ordered run of ASNs tagged with a segment type. Sets treat
// their ASNs as unordered for equality purposes, but the slice still
// preserves the order they were decoded in so re-encoding is byte-stable.
type Segment struct {
	Type SegmentType
	Asns []Asn
}

func (s Segment) isSet() bool {
	return s.Type == AsSet || s.Type == AsConfedSet
}

func (s Segment) isConfed() bool {
	return s.Type == AsConfedSequence || s.Type == AsConfedSet
}

// AsPath is an ordered sequence of segments (§3).
type AsPath struct {
	Segments []Segment
}

// Len returns the AS_PATH length as used in BGP best-path route-length
// comparisons: each AS_SEQUENCE contributes 1 per ASN, each non-empty
// AS_SET contributes 1 regardless of member count, and each
// AS_CONFED_SEQUENCE/AS_CONFED_SET contributes 0.
func (p AsPath) Len() int {
	n := 0
	for _, seg := range p.Segments {
		switch seg.Type {
		case AsSequence:
			n += len(seg.Asns)
		case AsSet:
			if len(seg.Asns) > 0 {
				n++
			}
		case AsConfedSequence, AsConfedSet:
			// contributes 0
		}
	}
	return n
}

// Coalesce merges adjacent segments of the same type and drops empty
// segments, without touching membership within a segment.
func (p AsPath) Coalesce() AsPath {
	var out []Segment
	for _, seg := range p.Segments {
		if len(seg.Asns) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Type == seg.Type {
			out[n-1].Asns = append(append([]Asn{}, out[n-1].Asns...), seg.Asns...)
			continue
		}
		out = append(out, Segment{Type: seg.Type, Asns: append([]Asn{}, seg.Asns...)})
	}
	return AsPath{Segments: out}
}

// DedupCoalesce is Coalesce plus de-duplication of ASNs within each
// resulting segment (preserving first occurrence order) and collapse of
// any singleton AS_SET into an AS_SEQUENCE of one.
func (p AsPath) DedupCoalesce() AsPath {
	coalesced := p.Coalesce()
	out := make([]Segment, 0, len(coalesced.Segments))
	for _, seg := range coalesced.Segments {
		seen := make(map[uint32]bool, len(seg.Asns))
		deduped := make([]Asn, 0, len(seg.Asns))
		for _, a := range seg.Asns {
			if seen[a.Value] {
				continue
			}
			seen[a.Value] = true
			deduped = append(deduped, a)
		}
		t := seg.Type
		if t == AsSet && len(deduped) == 1 {
			t = AsSequence
		}
		out = append(out, Segment{Type: t, Asns: deduped})
	}
	return AsPath{Segments: out}
}

// Origin returns the origin ASN(s) of the path: the last element of the
// final AS_SEQUENCE, or every member of the final segment if it is a set.
// Returns nil for an empty path.
func (p AsPath) Origin() []Asn {
	if len(p.Segments) == 0 {
		return nil
	}
	last := p.Segments[len(p.Segments)-1]
	if len(last.Asns) == 0 {
		return nil
	}
	if last.isSet() {
		return append([]Asn{}, last.Asns...)
	}
	return []Asn{last.Asns[len(last.Asns)-1]}
}

// RouteCount returns the number of concrete ASN sequences this path
// expands to when every AS_SET is replaced by one of its members — the
// Cartesian product of each set segment's cardinality, with sequence
// segments contributing a factor of 1. Capped representation: returns
// false if the true count would overflow 64 bits.
func (p AsPath) RouteCount() (count uint64, ok bool) {
	count = 1
	for _, seg := range p.Segments {
		if !seg.isSet() || len(seg.Asns) == 0 {
			continue
		}
		n := uint64(len(seg.Asns))
		next := count * n
		if count != 0 && next/count != n {
			return 0, false // overflow
		}
		count = next
	}
	return count, true
}

// Routes expands the AS_PATH into every concrete route it represents,
// enumerating all combinations of its AS_SET segments. Order of the
// returned slice is unspecified; each element is the full concatenated
// ASN sequence across all segments (confed segments included) for that
// combination. The combination count is bounded by RouteCount; callers
// with a pathological number of large sets should check RouteCount first.
func (p AsPath) Routes() [][]Asn {
	count, ok := p.RouteCount()
	if !ok || count == 0 {
		count = 1
	}
	routes := make([][]Asn, 0, count)
	var build func(segIdx int, prefix []Asn)
	build = func(segIdx int, prefix []Asn) {
		if segIdx == len(p.Segments) {
			routes = append(routes, append([]Asn{}, prefix...))
			return
		}
		seg := p.Segments[segIdx]
		if !seg.isSet() {
			build(segIdx+1, append(prefix, seg.Asns...))
			return
		}
		if len(seg.Asns) == 0 {
			build(segIdx+1, prefix)
			return
		}
		for _, a := range seg.Asns {
			build(segIdx+1, append(prefix, a))
		}
	}
	build(0, nil)
	return routes
}

// MergeAs4Path reconciles an AS_PATH decoded with 2-byte ASNs against an
// AS4_PATH attribute carrying the same path with 4-byte ASNs (RFC 6793).
// If the 4-byte path is empty or longer than the 2-byte (outer) path, the
// outer path is returned unchanged. Otherwise the leading route-length
// units of the outer path that AS4_PATH lacks are prepended to AS4_PATH
// (none when both have the same length, so AS4_PATH is returned as is).
func MergeAs4Path(outer, as4 AsPath) AsPath {
	if len(as4.Segments) == 0 {
		return outer
	}
	if as4.Len() > outer.Len() {
		return outer
	}

	delta := outer.Len() - as4.Len()
	var prepend []Asn

	// Walk the outer path's leading AS_SEQUENCE/AS_SET elements (including
	// confederation segments, which RFC 6793 says to carry along "if
	// adjacent to a prepended segment") to recover the first `delta`
	// route-length units that AS4_PATH dropped.
	taken := 0
	for _, seg := range outer.Segments {
		if taken >= delta {
			break
		}
		switch seg.Type {
		case AsSequence:
			for _, a := range seg.Asns {
				if taken >= delta {
					break
				}
				prepend = append(prepend, a)
				taken++
			}
		case AsSet:
			if len(seg.Asns) > 0 && taken < delta {
				prepend = append(prepend, seg.Asns...)
				taken++
			}
		case AsConfedSequence, AsConfedSet:
			// Confederation segments contribute 0 to route length; while
			// fewer than delta units have been taken, their ASNs are copied
			// into the prepended AS_SEQUENCE.
			prepend = append(prepend, seg.Asns...)
		}
	}

	if len(prepend) == 0 {
		return as4
	}

	merged := AsPath{Segments: append([]Segment{{Type: AsSequence, Asns: prepend}}, as4.Segments...)}
	return merged.Coalesce()
}

// Package filter implements elem-level predicates and their boolean
// composition: a Filter is an AND of Predicates, and a Group is an
// OR of Filters — matching the "AND within a filter, OR across filters"
// composition rule used throughout the CLI's -p/-o/-a/... flags.
package filter

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
)

// MatchMode controls how a Prefix predicate relates its target prefix to
// an elem's prefix.
type MatchMode uint8

const (
	MatchExact MatchMode = iota
	MatchOrLonger
	MatchOrShorter
)

func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(s) {
	case "exact", "":
		return MatchExact, nil
	case "orlonger":
		return MatchOrLonger, nil
	case "orshorter":
		return MatchOrShorter, nil
	default:
		return 0, fmt.Errorf("filter: unknown match mode %q", s)
	}
}

// Predicate is one elem-level test. Implementations are value types so a
// Filter (a slice of Predicate) can be copied and compared cheaply.
type Predicate interface {
	Matches(e bgpelem.BgpElem) bool
	String() string
}

type OriginAsnPredicate struct{ Asn bgp.Asn }

func (p OriginAsnPredicate) Matches(e bgpelem.BgpElem) bool {
	for _, a := range e.OriginAsns() {
		if a.Equal(p.Asn) {
			return true
		}
	}
	return false
}
func (p OriginAsnPredicate) String() string { return fmt.Sprintf("origin_asn=%s", p.Asn) }

type PrefixPredicate struct {
	Prefix netip.Prefix
	Mode   MatchMode
}

func (p PrefixPredicate) Matches(e bgpelem.BgpElem) bool {
	ep := e.Prefix.Prefix
	switch p.Mode {
	case MatchOrLonger:
		return p.Prefix.Overlaps(ep) && ep.Bits() >= p.Prefix.Bits() && p.Prefix.Contains(ep.Addr())
	case MatchOrShorter:
		return p.Prefix.Overlaps(ep) && ep.Bits() <= p.Prefix.Bits() && ep.Contains(p.Prefix.Addr())
	default:
		return ep == p.Prefix
	}
}
func (p PrefixPredicate) String() string { return fmt.Sprintf("prefix=%s mode=%d", p.Prefix, p.Mode) }

type PeerIpPredicate struct{ Ip netip.Addr }

func (p PeerIpPredicate) Matches(e bgpelem.BgpElem) bool { return e.PeerIp == p.Ip }
func (p PeerIpPredicate) String() string                { return fmt.Sprintf("peer_ip=%s", p.Ip) }

type PeerAsnPredicate struct{ Asn bgp.Asn }

func (p PeerAsnPredicate) Matches(e bgpelem.BgpElem) bool { return e.PeerAsn.Equal(p.Asn) }
func (p PeerAsnPredicate) String() string                 { return fmt.Sprintf("peer_asn=%s", p.Asn) }

type TsStartPredicate struct{ Ts float64 }

func (p TsStartPredicate) Matches(e bgpelem.BgpElem) bool { return e.Timestamp >= p.Ts }
func (p TsStartPredicate) String() string                 { return fmt.Sprintf("ts_start=%f", p.Ts) }

type TsEndPredicate struct{ Ts float64 }

func (p TsEndPredicate) Matches(e bgpelem.BgpElem) bool { return e.Timestamp <= p.Ts }
func (p TsEndPredicate) String() string                 { return fmt.Sprintf("ts_end=%f", p.Ts) }

// AsPathPredicate matches an elem whose AS path, rendered as
// space-separated ASNs, matches a regular expression — the same
// convention as grepping bgpdump's -O output.
type AsPathPredicate struct{ Re *regexp.Regexp }

func (p AsPathPredicate) Matches(e bgpelem.BgpElem) bool {
	if e.AsPath == nil {
		return false
	}
	return p.Re.MatchString(asPathString(*e.AsPath))
}
func (p AsPathPredicate) String() string { return fmt.Sprintf("as_path=%s", p.Re.String()) }

func asPathString(path bgp.AsPath) string {
	parts := make([]string, 0, len(path.Segments))
	for _, seg := range path.Segments {
		asns := make([]string, len(seg.Asns))
		for i, a := range seg.Asns {
			asns[i] = strconv.FormatUint(uint64(a.Value), 10)
		}
		if seg.Type == bgp.AsSet || seg.Type == bgp.AsConfedSet {
			parts = append(parts, "{"+strings.Join(asns, ",")+"}")
		} else {
			parts = append(parts, strings.Join(asns, " "))
		}
	}
	return strings.Join(parts, " ")
}

type ElemTypePredicate struct{ Type bgpelem.ElemType }

func (p ElemTypePredicate) Matches(e bgpelem.BgpElem) bool { return e.ElemType == p.Type }
func (p ElemTypePredicate) String() string                 { return fmt.Sprintf("elem_type=%s", p.Type) }

// Filter is a conjunction ("AND") of predicates; an elem satisfies a
// Filter only if every predicate in it matches.
type Filter struct {
	Predicates []Predicate
}

func New(preds ...Predicate) Filter { return Filter{Predicates: preds} }

func (f Filter) Matches(e bgpelem.BgpElem) bool {
	for _, p := range f.Predicates {
		if !p.Matches(e) {
			return false
		}
	}
	return true
}

// Group is a disjunction ("OR") of Filters — the multiple-filters-or-logic
// pattern: an elem matches the group if it matches any one filter in it.
// An empty Group matches everything.
type Group []Filter

func (g Group) Matches(e bgpelem.BgpElem) bool {
	if len(g) == 0 {
		return true
	}
	for _, f := range g {
		if f.Matches(e) {
			return true
		}
	}
	return false
}

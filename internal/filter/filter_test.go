package filter

import (
	"net/netip"
	"regexp"
	"testing"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
)

func elemWithPath(prefix string, asns ...uint32) bgpelem.BgpElem {
	path := bgp.AsPath{Segments: []bgp.Segment{{Type: bgp.AsSequence}}}
	for _, a := range asns {
		path.Segments[0].Asns = append(path.Segments[0].Asns, bgp.NewAsn4(a))
	}
	return bgpelem.BgpElem{
		ElemType: bgpelem.ElemAnnounce,
		Prefix:   bgp.NetworkPrefix{Prefix: netip.MustParsePrefix(prefix)},
		AsPath:   &path,
		PeerIp:   netip.MustParseAddr("192.0.2.1"),
	}
}

func TestPrefixMatchModes(t *testing.T) {
	e := elemWithPath("198.51.100.0/25", 100)
	exact := New(PrefixPredicate{Prefix: netip.MustParsePrefix("198.51.100.0/24"), Mode: MatchExact})
	if exact.Matches(e) {
		t.Fatal("exact should not match a more-specific prefix")
	}
	orLonger := New(PrefixPredicate{Prefix: netip.MustParsePrefix("198.51.100.0/24"), Mode: MatchOrLonger})
	if !orLonger.Matches(e) {
		t.Fatal("orlonger should match a more-specific prefix inside the target")
	}
	orShorter := New(PrefixPredicate{Prefix: netip.MustParsePrefix("198.51.100.0/26"), Mode: MatchOrShorter})
	if !orShorter.Matches(e) {
		t.Fatal("orshorter should match a less-specific prefix covering the target")
	}
}

func TestOriginAsnAndGroupOrLogic(t *testing.T) {
	e := elemWithPath("203.0.113.0/24", 64500, 64501)
	f1 := New(OriginAsnPredicate{Asn: bgp.NewAsn2(1)})
	f2 := New(OriginAsnPredicate{Asn: bgp.NewAsn2(64501)})
	group := Group{f1, f2}
	if !group.Matches(e) {
		t.Fatal("group should match via f2 even though f1 does not match")
	}
	if f1.Matches(e) {
		t.Fatal("f1 alone should not match")
	}
}

func TestAsPathRegex(t *testing.T) {
	e := elemWithPath("203.0.113.0/24", 200612, 174, 1299)
	re := regexp.MustCompile(`^200612 174 1299$`)
	f := New(AsPathPredicate{Re: re})
	if !f.Matches(e) {
		t.Fatal("expected as_path regex to match")
	}
}

func TestEmptyGroupMatchesEverything(t *testing.T) {
	e := elemWithPath("203.0.113.0/24", 1)
	var g Group
	if !g.Matches(e) {
		t.Fatal("empty group should match everything")
	}
}

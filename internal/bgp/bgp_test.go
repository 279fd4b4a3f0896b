package bgp

import (
	"net/netip"
	"testing"

	"github.com/route-beacon/mrtkit/internal/wire"
)

func TestDecodeAttributesOriginAsPathNextHop(t *testing.T) {
	var buf []byte
	// ORIGIN = IGP
	buf = append(buf, FlagTransitive, uint8(AttrOrigin), 1, 0)
	// AS_PATH: one AS_SEQUENCE of {65001, 65002}, 2-byte ASNs
	buf = append(buf, FlagTransitive, uint8(AttrAsPath), 6,
		uint8(AsSequence), 2, 0xFD, 0xE9, 0xFD, 0xEA)
	// NEXT_HOP = 192.0.2.1
	buf = append(buf, FlagTransitive, uint8(AttrNextHop), 4, 192, 0, 2, 1)

	attrs, err := DecodeAttributes(wire.NewReader(buf), AttrContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(attrs.List) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs.List))
	}

	origin, ok := attrs.Origin()
	if !ok || origin != OriginIgp {
		t.Fatalf("origin = %v, %v", origin, ok)
	}

	path, ok := attrs.AsPath()
	if !ok {
		t.Fatal("expected AS_PATH")
	}
	if path.Len() != 2 {
		t.Fatalf("path len = %d", path.Len())
	}
	origins := path.Origin()
	if len(origins) != 1 || origins[0].Value != 65002 {
		t.Fatalf("origin asn = %+v", origins)
	}

	nh, ok := attrs.NextHop()
	if !ok || nh != netip.MustParseAddr("192.0.2.1") {
		t.Fatalf("next hop = %v, %v", nh, ok)
	}
}

func TestEncodeAttributesRoundTrip(t *testing.T) {
	attrs := Attributes{}
	attrs.add(FlagTransitive, AttrOrigin, OriginValue{Origin: OriginEgp})
	attrs.add(FlagTransitive, AttrAsPath, AsPathValue{
		Path: AsPath{Segments: []Segment{{Type: AsSequence, Asns: []Asn{NewAsn2(100), NewAsn2(200)}}}},
	})
	attrs.add(FlagOptional|FlagTransitive, AttrCommunities, CommunitiesValue{
		Communities: []Community{DecodeCommunity(CommunityNoExport), DecodeCommunity(100<<16 | 200)},
	})

	w := wire.NewWriter(64)
	EncodeAttributes(w, attrs, AttrContext{})

	decoded, err := DecodeAttributes(wire.NewReader(w.Bytes()), AttrContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.List) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(decoded.List))
	}
	origin, _ := decoded.Origin()
	if origin != OriginEgp {
		t.Fatalf("origin = %v", origin)
	}
	comms := decoded.Communities()
	if len(comms) != 2 || comms[0].Name != "NO_EXPORT" {
		t.Fatalf("communities = %+v", comms)
	}
}

func TestMergeAs4Path(t *testing.T) {
	outer := AsPath{Segments: []Segment{
		{Type: AsSequence, Asns: []Asn{NewAsn2(1), NewAsn2(23456), NewAsn2(23456), NewAsn2(3)}},
	}}
	as4 := AsPath{Segments: []Segment{
		{Type: AsSequence, Asns: []Asn{NewAsn4(70000), NewAsn4(3)}},
	}}

	merged := MergeAs4Path(outer, as4)
	if merged.Len() != 4 {
		t.Fatalf("merged len = %d", merged.Len())
	}
	got := merged.Segments[0].Asns
	want := []uint32{1, 23456, 70000, 3}
	if len(got) != len(want) {
		t.Fatalf("merged asns = %+v", got)
	}
	for i, a := range got {
		if a.Value != want[i] {
			t.Fatalf("merged[%d] = %d, want %d", i, a.Value, want[i])
		}
	}
}

func TestAsPathRoutes(t *testing.T) {
	path := AsPath{Segments: []Segment{
		{Type: AsSet, Asns: []Asn{NewAsn2(1), NewAsn2(2)}},
		{Type: AsSequence, Asns: []Asn{NewAsn2(3)}},
	}}
	count, ok := path.RouteCount()
	if !ok || count != 2 {
		t.Fatalf("route count = %d, %v", count, ok)
	}
	routes := path.Routes()
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
}

func TestDecodeUpdateWithdrawAndAnnounce(t *testing.T) {
	var body []byte
	// withdrawn routes length + one /24
	body = append(body, 0, 4, 24, 203, 0, 113)
	// path attr length + ORIGIN
	body = append(body, 0, 4, FlagTransitive, uint8(AttrOrigin), 1, 0)
	// NLRI: one /24
	body = append(body, 24, 198, 51, 100)

	upd, err := DecodeUpdate(body, AttrContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(upd.Withdrawn) != 1 || upd.Withdrawn[0].Prefix.String() != "203.0.113.0/24" {
		t.Fatalf("withdrawn = %+v", upd.Withdrawn)
	}
	if len(upd.Nlri) != 1 || upd.Nlri[0].Prefix.String() != "198.51.100.0/24" {
		t.Fatalf("nlri = %+v", upd.Nlri)
	}
}

func TestDecodeOpenCapabilities(t *testing.T) {
	var caps []byte
	caps = append(caps, CapAs4, 4, 0, 1, 0x86, 0xA0) // ASN 100000
	caps = append(caps, CapMultiprotocol, 4, 0, 2, 0, 1)

	var capParam []byte
	capParam = append(capParam, 2, uint8(len(caps)))
	capParam = append(capParam, caps...)

	var body []byte
	body = append(body, 4)       // version
	body = append(body, 0xFB, 0xFF) // ASN 64511 (reserved for docs; fine here)
	body = append(body, 0, 180) // hold time
	body = append(body, 10, 0, 0, 1)
	body = append(body, uint8(len(capParam)))
	body = append(body, capParam...)

	open, err := DecodeOpen(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if open.Asn4() != 100000 {
		t.Fatalf("asn4 = %d", open.Asn4())
	}
	var found bool
	for _, c := range open.Capabilities {
		if afi, safi, ok := c.Multiprotocol(); ok {
			found = true
			if afi != AfiIpv6 || safi != SafiUnicast {
				t.Fatalf("multiprotocol = %d/%d", afi, safi)
			}
		}
	}
	if !found {
		t.Fatal("expected multiprotocol capability")
	}
}

package bgpelem

import (
	"net/netip"
	"testing"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/mrtformat"
)

func TestFromRibFlattensPerPeer(t *testing.T) {
	table := mrtformat.PeerIndexTable{
		Peers: []mrtformat.PeerEntry{
			{IpAddr: netip.MustParseAddr("192.0.2.1"), Asn: bgp.NewAsn2(65001)},
			{IpAddr: netip.MustParseAddr("192.0.2.2"), Asn: bgp.NewAsn2(65002)},
		},
	}
	var attrs bgp.Attributes
	attrs.List = append(attrs.List, bgp.Attribute{TypeCode: bgp.AttrOrigin, Value: bgp.OriginValue{Origin: bgp.OriginIgp}})

	rec := mrtformat.RibSubtypeRecord{
		Prefix: bgp.NetworkPrefix{Prefix: netip.MustParsePrefix("198.51.100.0/24")},
		Entries: []mrtformat.RibEntry{
			{PeerIndex: 0, Attributes: attrs},
			{PeerIndex: 1, Attributes: attrs},
		},
	}

	elems := FromRib(123.0, table, rec)
	if len(elems) != 2 {
		t.Fatalf("expected 2 elems, got %d", len(elems))
	}
	if elems[0].PeerAsn.Value != 65001 || elems[1].PeerAsn.Value != 65002 {
		t.Fatalf("peer asns = %d, %d", elems[0].PeerAsn.Value, elems[1].PeerAsn.Value)
	}
	if elems[0].Origin == nil || *elems[0].Origin != bgp.OriginIgp {
		t.Fatalf("origin = %v", elems[0].Origin)
	}
}

func TestFromUpdateWithdrawAndAnnounce(t *testing.T) {
	upd := bgp.UpdateMessage{
		Withdrawn: []bgp.NetworkPrefix{{Prefix: netip.MustParsePrefix("203.0.113.0/24")}},
		Nlri:      []bgp.NetworkPrefix{{Prefix: netip.MustParsePrefix("198.51.100.0/24")}},
	}
	elems := FromUpdate(1.0, netip.MustParseAddr("192.0.2.1"), bgp.NewAsn2(65001), upd)
	if len(elems) != 2 {
		t.Fatalf("expected 2 elems, got %d", len(elems))
	}
	if elems[0].ElemType != ElemWithdraw {
		t.Fatalf("elem 0 type = %v", elems[0].ElemType)
	}
	if elems[1].ElemType != ElemAnnounce {
		t.Fatalf("elem 1 type = %v", elems[1].ElemType)
	}
}

package mrtformat

import (
	"net/netip"
	"testing"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/wire"
)

func TestPeerIndexTableRoundTrip(t *testing.T) {
	table := PeerIndexTable{
		CollectorBgpId: netip.MustParseAddr("192.0.2.1"),
		ViewName:       "default",
		Peers: []PeerEntry{
			{BgpId: netip.MustParseAddr("192.0.2.2"), IpAddr: netip.MustParseAddr("192.0.2.2"), Asn: bgp.NewAsn2(65001)},
			{BgpId: netip.MustParseAddr("192.0.2.3"), IpAddr: netip.MustParseAddr("2001:db8::3"), Asn: bgp.NewAsn4(400000)},
		},
	}

	w := wire.NewWriter(64)
	EncodePeerIndexTable(w, table)
	decoded, err := DecodePeerIndexTable(w.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ViewName != "default" || len(decoded.Peers) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Peers[1].Asn.Value != 400000 || !decoded.Peers[1].Asn.Is4Byte {
		t.Fatalf("peer 1 asn = %+v", decoded.Peers[1].Asn)
	}
	if decoded.Peers[1].IpAddr.String() != "2001:db8::3" {
		t.Fatalf("peer 1 addr = %v", decoded.Peers[1].IpAddr)
	}
}

func TestRibSubtypeRecordRoundTrip(t *testing.T) {
	rec := RibSubtypeRecord{
		Subtype:        SubtypeRibIpv4Unicast,
		SequenceNumber: 7,
		Prefix:         bgp.NetworkPrefix{Prefix: netip.MustParsePrefix("198.51.100.0/24")},
		Entries: []RibEntry{
			{PeerIndex: 0, OriginatedTime: 1000, Attributes: func() bgp.Attributes {
				var a bgp.Attributes
				w := wire.NewWriter(8)
				bgp.EncodeAttributes(w, a, bgp.AttrContext{})
				return a
			}()},
		},
	}

	w := wire.NewWriter(64)
	EncodeRibSubtypeRecord(w, rec)
	decoded, err := DecodeRibSubtypeRecord(SubtypeRibIpv4Unicast, w.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix.Prefix.String() != "198.51.100.0/24" {
		t.Fatalf("prefix = %v", decoded.Prefix)
	}
	if len(decoded.Entries) != 1 || decoded.Entries[0].OriginatedTime != 1000 {
		t.Fatalf("entries = %+v", decoded.Entries)
	}
}

func TestDecodeRecordFullArchive(t *testing.T) {
	// Build a minimal two-record archive: a PEER_INDEX_TABLE followed by a
	// RIB_IPV4_UNICAST record referencing its one peer.
	table := PeerIndexTable{
		CollectorBgpId: netip.MustParseAddr("192.0.2.1"),
		Peers:          []PeerEntry{{BgpId: netip.MustParseAddr("192.0.2.9"), IpAddr: netip.MustParseAddr("192.0.2.9"), Asn: bgp.NewAsn2(65010)}},
	}
	tableBody := wire.NewWriter(32)
	EncodePeerIndexTable(tableBody, table)

	rib := RibSubtypeRecord{
		Subtype: SubtypeRibIpv4Unicast,
		Prefix:  bgp.NetworkPrefix{Prefix: netip.MustParsePrefix("203.0.113.0/24")},
		Entries: []RibEntry{{PeerIndex: 0}},
	}
	ribBody := wire.NewWriter(32)
	EncodeRibSubtypeRecord(ribBody, rib)

	archive := wire.NewWriter(128)
	EncodeCommonHeader(archive, CommonHeader{Type: TypeTableDumpV2, Subtype: SubtypePeerIndexTable}, tableBody.Len())
	archive.Write(tableBody.Bytes())
	EncodeCommonHeader(archive, CommonHeader{Type: TypeTableDumpV2, Subtype: SubtypeRibIpv4Unicast}, ribBody.Len())
	archive.Write(ribBody.Bytes())

	r := wire.NewReader(archive.Bytes())
	rec1, err := DecodeRecord(r)
	if err != nil {
		t.Fatalf("decode record 1: %v", err)
	}
	if _, ok := rec1.Body.(PeerIndexTable); !ok {
		t.Fatalf("record 1 body type = %T", rec1.Body)
	}

	rec2, err := DecodeRecord(r)
	if err != nil {
		t.Fatalf("decode record 2: %v", err)
	}
	ribRec, ok := rec2.Body.(RibSubtypeRecord)
	if !ok {
		t.Fatalf("record 2 body type = %T", rec2.Body)
	}
	if ribRec.Prefix.Prefix.String() != "203.0.113.0/24" {
		t.Fatalf("rib prefix = %v", ribRec.Prefix)
	}
	if r.Len() != 0 {
		t.Fatalf("expected archive fully consumed, %d bytes left", r.Len())
	}
}

package iter

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/mrtformat"
	"github.com/route-beacon/mrtkit/internal/wire"
)

func buildArchive(t *testing.T) []byte {
	t.Helper()
	table := mrtformat.PeerIndexTable{
		CollectorBgpId: netip.MustParseAddr("192.0.2.1"),
		Peers:          []mrtformat.PeerEntry{{BgpId: netip.MustParseAddr("192.0.2.9"), IpAddr: netip.MustParseAddr("192.0.2.9"), Asn: bgp.NewAsn2(65010)}},
	}
	tableBody := wire.NewWriter(32)
	mrtformat.EncodePeerIndexTable(tableBody, table)

	rib := mrtformat.RibSubtypeRecord{
		Subtype: mrtformat.SubtypeRibIpv4Unicast,
		Prefix:  bgp.NetworkPrefix{Prefix: netip.MustParsePrefix("203.0.113.0/24")},
		Entries: []mrtformat.RibEntry{{PeerIndex: 0}},
	}
	ribBody := wire.NewWriter(32)
	mrtformat.EncodeRibSubtypeRecord(ribBody, rib)

	archive := wire.NewWriter(128)
	mrtformat.EncodeCommonHeader(archive, mrtformat.CommonHeader{Type: mrtformat.TypeTableDumpV2, Subtype: mrtformat.SubtypePeerIndexTable}, tableBody.Len())
	archive.Write(tableBody.Bytes())
	mrtformat.EncodeCommonHeader(archive, mrtformat.CommonHeader{Type: mrtformat.TypeTableDumpV2, Subtype: mrtformat.SubtypeRibIpv4Unicast}, ribBody.Len())
	archive.Write(ribBody.Bytes())
	return archive.Bytes()
}

func TestDecoderRecordsWalksWholeArchive(t *testing.T) {
	d := NewDecoder(bytes.NewReader(buildArchive(t)))
	var kinds []string
	for rec, err := range d.Records() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		switch rec.Body.(type) {
		case mrtformat.PeerIndexTable:
			kinds = append(kinds, "peer_index")
		case mrtformat.RibSubtypeRecord:
			kinds = append(kinds, "rib")
		default:
			t.Fatalf("unexpected body type %T", rec.Body)
		}
	}
	if len(kinds) != 2 || kinds[0] != "peer_index" || kinds[1] != "rib" {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestDecoderElemsResolvesPeerFromPrecedingTable(t *testing.T) {
	d := NewDecoder(bytes.NewReader(buildArchive(t)))
	var elems []bgpelem.BgpElem
	for e, err := range d.Elems() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		elems = append(elems, e)
	}
	if len(elems) != 1 {
		t.Fatalf("expected 1 elem, got %d", len(elems))
	}
	if elems[0].PeerAsn.Value != 65010 {
		t.Fatalf("peer asn = %d", elems[0].PeerAsn.Value)
	}
	if elems[0].Prefix.Prefix.String() != "203.0.113.0/24" {
		t.Fatalf("prefix = %v", elems[0].Prefix)
	}
}

func TestDecoderCoreDumperCountsOffsets(t *testing.T) {
	d := NewDecoder(bytes.NewReader(buildArchive(t)))
	var entries []CoreDumpEntry
	for e, err := range d.CoreDumper() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Offset != 0 {
		t.Fatalf("first record offset = %d", entries[0].Offset)
	}
	wantSecond := int64(mrtformat.CommonHeaderLen + entries[0].BodyLen)
	if entries[1].Offset != wantSecond {
		t.Fatalf("second record offset = %d, want %d", entries[1].Offset, wantSecond)
	}
}

func TestDecoderUpdatesSkipsNonMessageRecords(t *testing.T) {
	d := NewDecoder(bytes.NewReader(buildArchive(t)))
	var n int
	for _, err := range d.Updates() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n++
	}
	if n != 0 {
		t.Fatalf("expected no UPDATE events from a RIB-only archive, got %d", n)
	}
}

package mrtformat

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/wire"
)

// TableDumpRecord is a decoded legacy TABLE_DUMP (v1, RFC 6396 §4.2) body:
// the Zebra-era single-peer-per-record RIB dump format, superseded by
// TABLE_DUMP_V2 but still produced by some archives. The peer ASN is always
// 2 bytes; the prefix and peer address are 4 or 16 bytes per the subtype's
// AFI. There is no ADD-PATH variant of this format.
type TableDumpRecord struct {
	ViewNumber     uint16
	SequenceNumber uint16
	Prefix         netip.Prefix
	Status         uint8
	OriginatedTime uint32
	PeerIp         netip.Addr
	PeerAsn        bgp.Asn
	Attributes     bgp.Attributes
}

func DecodeTableDumpRecord(subtype Subtype, body []byte) (TableDumpRecord, error) {
	v6 := subtype == SubtypeTableDumpAfiIpv6
	r := wire.NewReader(body)

	view, err := r.U16()
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated view number")
	}
	seq, err := r.U16()
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated sequence number")
	}

	addrLen := 4
	if v6 {
		addrLen = 16
	}
	prefixBytes, err := r.Bytes(addrLen)
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated prefix address")
	}
	prefixLen, err := r.U8()
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated prefix length")
	}
	addr, ok := netip.AddrFromSlice(prefixBytes)
	if !ok {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: bad prefix address length %d", len(prefixBytes))
	}
	pfx, err := addr.Prefix(int(prefixLen))
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: invalid prefix length %d: %v", prefixLen, err)
	}

	status, err := r.U8()
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated status")
	}
	originated, err := r.U32()
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated originated time")
	}

	peerBytes, err := r.Bytes(addrLen)
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated peer address")
	}
	peerIp, ok := netip.AddrFromSlice(peerBytes)
	if !ok {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: bad peer address length %d", len(peerBytes))
	}

	peerAsnRaw, err := r.U16()
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated peer asn")
	}

	attrBytes, err := r.LengthPrefixed16()
	if err != nil {
		return TableDumpRecord{}, wire.NewParseError("TABLE_DUMP: truncated attribute length")
	}
	attrs, err := bgp.DecodeAttributes(wire.NewReader(attrBytes), bgp.AttrContext{})
	if err != nil {
		return TableDumpRecord{}, err
	}

	return TableDumpRecord{
		ViewNumber:     view,
		SequenceNumber: seq,
		Prefix:         pfx,
		Status:         status,
		OriginatedTime: originated,
		PeerIp:         peerIp,
		PeerAsn:        bgp.NewAsn2(peerAsnRaw),
		Attributes:     attrs,
	}, nil
}

func EncodeTableDumpRecord(w *wire.Writer, rec TableDumpRecord) {
	w.U16(rec.ViewNumber)
	w.U16(rec.SequenceNumber)
	w.Write(rec.Prefix.Addr().AsSlice())
	w.U8(uint8(rec.Prefix.Bits()))
	w.U8(rec.Status)
	w.U32(rec.OriginatedTime)
	w.Write(rec.PeerIp.AsSlice())
	w.U16(uint16(rec.PeerAsn.Value))
	ar := wire.NewWriter(64)
	bgp.EncodeAttributes(ar, rec.Attributes, bgp.AttrContext{})
	w.U16(uint16(ar.Len()))
	w.Write(ar.Bytes())
}

package mrtformat

import (
	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/wire"
)

// RibEntry is one peer's route for a RIB prefix (RFC 6396 §4.3.4). Path
// attributes in TABLE_DUMP_V2 are always encoded with 4-byte ASNs
// regardless of what the originating session negotiated.
type RibEntry struct {
	PeerIndex      uint16
	OriginatedTime uint32
	Attributes     bgp.Attributes
}

// RibSubtypeRecord is a decoded RIB_IPV4_UNICAST / RIB_IPV4_MULTICAST /
// RIB_IPV6_UNICAST / RIB_IPV6_MULTICAST / RIB_GENERIC body (and their
// _ADDPATH mirrors).
type RibSubtypeRecord struct {
	Subtype        Subtype
	SequenceNumber uint32
	Afi            uint16
	Safi           uint8
	Prefix         bgp.NetworkPrefix
	Entries        []RibEntry
}

func ribAfiSafi(s Subtype) (afi uint16, safi uint8, generic bool) {
	switch s {
	case SubtypeRibIpv4Unicast, SubtypeRibIpv4UnicastAddPath:
		return bgp.AfiIpv4, bgp.SafiUnicast, false
	case SubtypeRibIpv4Multicast, SubtypeRibIpv4MulticastAddPath:
		return bgp.AfiIpv4, bgp.SafiMulticast, false
	case SubtypeRibIpv6Unicast, SubtypeRibIpv6UnicastAddPath:
		return bgp.AfiIpv6, bgp.SafiUnicast, false
	case SubtypeRibIpv6Multicast, SubtypeRibIpv6MulticastAddPath:
		return bgp.AfiIpv6, bgp.SafiMulticast, false
	default:
		return 0, 0, true // RIB_GENERIC / RIB_GENERIC_ADDPATH: AFI/SAFI are on the wire
	}
}

// DecodeRibSubtypeRecord decodes a TABLE_DUMP_V2 RIB body for the given
// subtype.
func DecodeRibSubtypeRecord(subtype Subtype, body []byte) (RibSubtypeRecord, error) {
	r := wire.NewReader(body)
	seq, err := r.U32()
	if err != nil {
		return RibSubtypeRecord{}, wire.NewParseError("RIB: truncated sequence number")
	}

	addPath := subtype.isAddPath()
	afi, safi, generic := ribAfiSafi(subtype)
	if generic {
		a, err := r.U16()
		if err != nil {
			return RibSubtypeRecord{}, wire.NewParseError("RIB_GENERIC: truncated AFI")
		}
		s, err := r.U8()
		if err != nil {
			return RibSubtypeRecord{}, wire.NewParseError("RIB_GENERIC: truncated SAFI")
		}
		afi, safi = a, s
	}

	prefix, err := bgp.DecodePrefix(r, afi == bgp.AfiIpv6, addPath)
	if err != nil {
		return RibSubtypeRecord{}, err
	}

	entryCount, err := r.U16()
	if err != nil {
		return RibSubtypeRecord{}, wire.NewParseError("RIB: truncated entry count")
	}

	entries := make([]RibEntry, 0, entryCount)
	for i := 0; i < int(entryCount); i++ {
		peerIdx, err := r.U16()
		if err != nil {
			return RibSubtypeRecord{}, wire.NewParseError("RIB: truncated entry %d peer index", i)
		}
		originated, err := r.U32()
		if err != nil {
			return RibSubtypeRecord{}, wire.NewParseError("RIB: truncated entry %d originated time", i)
		}
		attrBytes, err := r.LengthPrefixed16()
		if err != nil {
			return RibSubtypeRecord{}, wire.NewParseError("RIB: truncated entry %d attribute length", i)
		}
		attrs, err := bgp.DecodeAttributes(wire.NewReader(attrBytes), bgp.AttrContext{Asn4: true, AddPath: addPath})
		if err != nil {
			return RibSubtypeRecord{}, err
		}
		entries = append(entries, RibEntry{PeerIndex: peerIdx, OriginatedTime: originated, Attributes: attrs})
	}

	return RibSubtypeRecord{
		Subtype:        subtype,
		SequenceNumber: seq,
		Afi:            afi,
		Safi:           safi,
		Prefix:         prefix,
		Entries:        entries,
	}, nil
}

func EncodeRibSubtypeRecord(w *wire.Writer, rec RibSubtypeRecord) {
	addPath := rec.Subtype.isAddPath()
	_, _, generic := ribAfiSafi(rec.Subtype)

	w.U32(rec.SequenceNumber)
	if generic {
		w.U16(rec.Afi)
		w.U8(rec.Safi)
	}
	bgp.EncodePrefix(w, rec.Prefix, addPath)
	w.U16(uint16(len(rec.Entries)))
	for _, e := range rec.Entries {
		w.U16(e.PeerIndex)
		w.U32(e.OriginatedTime)
		ar := wire.NewWriter(64)
		bgp.EncodeAttributes(ar, e.Attributes, bgp.AttrContext{Asn4: true, AddPath: addPath})
		w.U16(uint16(ar.Len()))
		w.Write(ar.Bytes())
	}
}

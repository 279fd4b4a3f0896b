// Package mrtformat implements the MRT binary archive container (RFC 6396,
// RFC 6397 TABLE_DUMP, RFC 8050 extended timestamps): the common header,
// PEER_INDEX_TABLE, TABLE_DUMP / TABLE_DUMP_V2 RIB bodies, and the BGP4MP
// family that carries live BGP traffic. It knows nothing about Kafka,
// Postgres, or any other collaborator — only how to walk the container
// format and hand back typed records built on top of internal/bgp.
package mrtformat

import "github.com/route-beacon/mrtkit/internal/wire"

// Type is an MRT top-level record type (RFC 6396 §3).
type Type uint16

const (
	TypeTableDump    Type = 12
	TypeTableDumpV2  Type = 13
	TypeBgp4mp       Type = 16
	TypeBgp4mpEt     Type = 17
)

// Subtype is interpreted relative to the enclosing Type.
type Subtype uint16

// TABLE_DUMP (v1) subtypes: the AFI of the dump.
const (
	SubtypeTableDumpAfiIpv4 Subtype = 1
	SubtypeTableDumpAfiIpv6 Subtype = 2
)

// TABLE_DUMP_V2 subtypes (RFC 6396 §4.3, RFC 8050 §3 for the _ADDPATH
// mirrors).
const (
	SubtypePeerIndexTable        Subtype = 1
	SubtypeRibIpv4Unicast        Subtype = 2
	SubtypeRibIpv4Multicast      Subtype = 3
	SubtypeRibIpv6Unicast        Subtype = 4
	SubtypeRibIpv6Multicast      Subtype = 5
	SubtypeRibGeneric            Subtype = 6
	SubtypeGeoPeerTable          Subtype = 7
	SubtypeRibIpv4UnicastAddPath Subtype = 8
	SubtypeRibIpv4MulticastAddPath Subtype = 9
	SubtypeRibIpv6UnicastAddPath Subtype = 10
	SubtypeRibIpv6MulticastAddPath Subtype = 11
	SubtypeRibGenericAddPath     Subtype = 12
)

// BGP4MP / BGP4MP_ET subtypes (RFC 6396 §4.4, RFC 8050 §2 for the
// _ADDPATH mirrors).
const (
	SubtypeBgp4mpStateChange         Subtype = 0
	SubtypeBgp4mpMessage             Subtype = 1
	SubtypeBgp4mpMessageAs4          Subtype = 4
	SubtypeBgp4mpStateChangeAs4      Subtype = 5
	SubtypeBgp4mpMessageLocal        Subtype = 6
	SubtypeBgp4mpMessageAs4Local     Subtype = 7
	SubtypeBgp4mpMessageAddPath      Subtype = 8
	SubtypeBgp4mpMessageAs4AddPath   Subtype = 9
	SubtypeBgp4mpMessageLocalAddPath Subtype = 10
	SubtypeBgp4mpMessageAs4LocalAddPath Subtype = 11
)

// isAddPath reports whether a BGP4MP subtype carries ADD-PATH NLRI.
func (s Subtype) isAddPath() bool {
	switch s {
	case SubtypeBgp4mpMessageAddPath, SubtypeBgp4mpMessageAs4AddPath,
		SubtypeBgp4mpMessageLocalAddPath, SubtypeBgp4mpMessageAs4LocalAddPath:
		return true
	default:
		return false
	}
}

// isAs4 reports whether a BGP4MP subtype carries 4-byte peer/local ASNs.
func (s Subtype) isAs4() bool {
	switch s {
	case SubtypeBgp4mpMessageAs4, SubtypeBgp4mpStateChangeAs4,
		SubtypeBgp4mpMessageAs4Local, SubtypeBgp4mpMessageAs4AddPath,
		SubtypeBgp4mpMessageAs4LocalAddPath:
		return true
	default:
		return false
	}
}

// isExtendedTimestamp reports whether Type carries a 4-byte microsecond
// field immediately after the common header (RFC 8050).
func (t Type) isExtendedTimestamp() bool { return t == TypeBgp4mpEt }

// CommonHeaderLen is the fixed portion of every MRT record: 4-byte
// timestamp, 2-byte type, 2-byte subtype, 4-byte length.
const CommonHeaderLen = 12

// CommonHeader is the fixed header preceding every MRT record's body.
type CommonHeader struct {
	Timestamp   uint32
	Type        Type
	Subtype     Subtype
	Length      uint32 // length of the body, NOT counting this header or the ET microsecond field
	Microsecond uint32 // only meaningful when Type.isExtendedTimestamp()
}

// DecodeCommonHeader reads the 12-byte common header and, for an
// extended-timestamp type, the 4-byte microsecond field that follows it.
// The returned Length is the size of the record body alone (the
// microsecond field, when present, is already accounted for and excluded).
func DecodeCommonHeader(r *wire.Reader) (CommonHeader, error) {
	ts, err := r.U32()
	if err != nil {
		return CommonHeader{}, wire.NewParseError("mrt: common header truncated")
	}
	typ, err := r.U16()
	if err != nil {
		return CommonHeader{}, wire.NewParseError("mrt: common header truncated")
	}
	subtype, err := r.U16()
	if err != nil {
		return CommonHeader{}, wire.NewParseError("mrt: common header truncated")
	}
	length, err := r.U32()
	if err != nil {
		return CommonHeader{}, wire.NewParseError("mrt: common header truncated")
	}

	h := CommonHeader{Timestamp: ts, Type: Type(typ), Subtype: Subtype(subtype), Length: length}
	if h.Type.isExtendedTimestamp() {
		if length < 4 {
			return CommonHeader{}, wire.NewParseError("mrt: extended-timestamp record shorter than microsecond field")
		}
		usec, err := r.U32()
		if err != nil {
			return CommonHeader{}, wire.NewParseError("mrt: extended timestamp truncated")
		}
		h.Microsecond = usec
		h.Length = length - 4
	}
	return h, nil
}

// EncodeCommonHeader writes h's 12-byte header, plus the microsecond field
// when h.Type carries one. bodyLen is the length of the body that follows
// (excluding the microsecond field); it is what gets written to the
// on-wire Length field for non-ET types, and bodyLen+4 for ET types.
func EncodeCommonHeader(w *wire.Writer, h CommonHeader, bodyLen int) {
	w.U32(h.Timestamp)
	w.U16(uint16(h.Type))
	w.U16(uint16(h.Subtype))
	if h.Type.isExtendedTimestamp() {
		w.U32(uint32(bodyLen) + 4)
		w.U32(h.Microsecond)
	} else {
		w.U32(uint32(bodyLen))
	}
}

// TimestampSeconds returns the record's timestamp as a fractional number
// of seconds since the epoch, folding in the microsecond field for
// extended-timestamp records.
func (h CommonHeader) TimestampSeconds() float64 {
	return float64(h.Timestamp) + float64(h.Microsecond)/1e6
}

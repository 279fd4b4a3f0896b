package bgp

import (
	"fmt"
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/wire"
)

// Well-known community values (§4.C).
const (
	CommunityNoExport          uint32 = 0xFFFFFF01
	CommunityNoAdvertise       uint32 = 0xFFFFFF02
	CommunityNoExportSubconfed uint32 = 0xFFFFFF03
)

// Community is a plain 32-bit community, decoded into a symbolic name when
// it matches one of the three well-known values.
type Community struct {
	Value  uint32
	Name   string // "NO_EXPORT", "NO_ADVERTISE", "NO_EXPORT_SUBCONFED", or ""
}

func DecodeCommunity(v uint32) Community {
	c := Community{Value: v}
	switch v {
	case CommunityNoExport:
		c.Name = "NO_EXPORT"
	case CommunityNoAdvertise:
		c.Name = "NO_ADVERTISE"
	case CommunityNoExportSubconfed:
		c.Name = "NO_EXPORT_SUBCONFED"
	}
	return c
}

func (c Community) String() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%d:%d", c.Value>>16, c.Value&0xFFFF)
}

// ExtCommunityKind dispatches on the high octet of an 8-byte extended
// community (§4.C).
type ExtCommunityKind uint8

const (
	ExtTwoOctetAS ExtCommunityKind = iota
	ExtIPv4
	ExtFourOctetAS
	ExtOpaque
	ExtRaw
)

// ExtCommunity is an 8-byte extended community (RFC 4360).
type ExtCommunity struct {
	Kind        ExtCommunityKind
	Transitive  bool
	Subtype     uint8
	Global      uint32 // 2-octet or 4-octet ASN, depending on Kind
	GlobalIP    netip.Addr
	Local       uint32
	Raw         [8]byte
}

func DecodeExtCommunity(b []byte) ExtCommunity {
	var raw [8]byte
	copy(raw[:], b)

	typeHigh := b[0]
	transitive := typeHigh&0x40 == 0
	base := typeHigh &^ 0x40
	subtype := b[1]

	ec := ExtCommunity{Transitive: transitive, Subtype: subtype, Raw: raw}
	switch base {
	case 0x00:
		ec.Kind = ExtTwoOctetAS
		ec.Global = uint32(beU16(b[2:4]))
		ec.Local = beU32(b[4:8])
	case 0x01:
		ec.Kind = ExtIPv4
		ip, _ := netip.AddrFromSlice(b[2:6])
		ec.GlobalIP = ip
		ec.Local = uint32(beU16(b[6:8]))
	case 0x02:
		ec.Kind = ExtFourOctetAS
		ec.Global = beU32(b[2:6])
		ec.Local = uint32(beU16(b[6:8]))
	case 0x03:
		ec.Kind = ExtOpaque
	default:
		ec.Kind = ExtRaw
	}
	return ec
}

func (c ExtCommunity) Encode() [8]byte { return c.Raw }

// Ipv6ExtCommunity is the 20-byte IPv6 variant of an extended community
// (RFC 5701): 1-byte type, 1-byte subtype, 16-byte IPv6 global admin,
// 2-byte local admin.
type Ipv6ExtCommunity struct {
	Type    uint8
	Subtype uint8
	Global  netip.Addr
	Local   uint16
}

func DecodeIpv6ExtCommunity(b []byte) Ipv6ExtCommunity {
	ip, _ := netip.AddrFromSlice(b[2:18])
	return Ipv6ExtCommunity{
		Type:    b[0],
		Subtype: b[1],
		Global:  ip,
		Local:   beU16(b[18:20]),
	}
}

// LargeCommunity is a 12-byte large community (RFC 8092): three uint32s.
type LargeCommunity struct {
	Global uint32
	Local1 uint32
	Local2 uint32
}

func DecodeLargeCommunity(b []byte) LargeCommunity {
	return LargeCommunity{
		Global: beU32(b[0:4]),
		Local1: beU32(b[4:8]),
		Local2: beU32(b[8:12]),
	}
}

func (c LargeCommunity) String() string {
	return fmt.Sprintf("%d:%d:%d", c.Global, c.Local1, c.Local2)
}

func (c LargeCommunity) Encode() [12]byte {
	var b [12]byte
	putU32(b[0:4], c.Global)
	putU32(b[4:8], c.Local1)
	putU32(b[8:12], c.Local2)
	return b
}

// MetaCommunity wraps any of the four community shapes into one iteration
// item so callers can walk a mixed set uniformly.
type MetaCommunity struct {
	Plain    *Community
	Ext      *ExtCommunity
	Ipv6Ext  *Ipv6ExtCommunity
	Large    *LargeCommunity
}

func beU16(b []byte) uint16 { r, _ := wire.NewReader(b).U16(); return r }
func beU32(b []byte) uint32 { r, _ := wire.NewReader(b).U32(); return r }

func putU32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

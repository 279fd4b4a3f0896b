package bgp

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/wire"
)

// AttrContext carries the two pieces of outer framing that change how an
// attribute's bytes are interpreted but are never themselves present in
// the attribute TLV: whether AS numbers are 2-byte or 4-byte (decided by
// the enclosing MRT subtype or BGP capability, never by the UPDATE itself)
// and whether NLRI fields carry an ADD-PATH identifier (§3, §9).
type AttrContext struct {
	Asn4    bool
	AddPath bool
}

// DecodeAttributes walks a packed path-attribute section until the reader
// is exhausted. Per §9's leniency note, a single malformed attribute's
// error is returned alongside whatever attributes decoded successfully
// before it so callers can still use a partially-decoded UPDATE.
func DecodeAttributes(r *wire.Reader, ctx AttrContext) (Attributes, error) {
	var attrs Attributes
	for r.Len() > 0 {
		if r.Len() < 2 {
			return attrs, wire.NewParseError("attr header truncated, %d bytes left", r.Len())
		}
		flags, err := r.U8()
		if err != nil {
			return attrs, err
		}
		typeCode, err := r.U8()
		if err != nil {
			return attrs, err
		}

		var length int
		if flags&FlagExtendedLength != 0 {
			l, err := r.U16()
			if err != nil {
				return attrs, wire.NewParseError("extended attr length truncated for type %d", typeCode)
			}
			length = int(l)
		} else {
			l, err := r.U8()
			if err != nil {
				return attrs, wire.NewParseError("attr length truncated for type %d", typeCode)
			}
			length = int(l)
		}

		body, err := r.Bytes(length)
		if err != nil {
			return attrs, wire.NewParseError("attr %d data truncated: need %d, have %d", typeCode, length, r.Len())
		}

		v, err := decodeAttrValue(AttrType(typeCode), flags, body, ctx)
		if err != nil {
			return attrs, err
		}
		attrs.add(flags, AttrType(typeCode), v)
	}
	return attrs, nil
}

func decodeAttrValue(t AttrType, flags uint8, body []byte, ctx AttrContext) (AttrValue, error) {
	switch t {
	case AttrOrigin:
		return decodeOrigin(body)
	case AttrAsPath:
		return decodeAsPathAttr(body, ctx.Asn4)
	case AttrAs4Path:
		v, err := decodeAsPathAttr(body, true)
		if err != nil {
			return nil, err
		}
		v.Is4Byte = true
		return v, nil
	case AttrNextHop:
		return decodeNextHop(body)
	case AttrMultiExitDisc:
		return MultiExitDiscValue{Value: decodeU32Lenient(body)}, nil
	case AttrLocalPref:
		return LocalPrefValue{Value: decodeU32Lenient(body)}, nil
	case AttrAtomicAggregate:
		return AtomicAggregateValue{}, nil
	case AttrAggregator:
		return decodeAggregator(body, ctx.Asn4)
	case AttrAs4Aggregator:
		return decodeAggregator(body, true)
	case AttrCommunities:
		return decodeCommunities(body), nil
	case AttrExtCommunities:
		return decodeExtCommunities(body), nil
	case AttrIpv6ExtCommunities:
		return decodeIpv6ExtCommunities(body), nil
	case AttrLargeCommunities:
		return decodeLargeCommunities(body), nil
	case AttrOriginatorId:
		return decodeOriginatorId(body)
	case AttrClusterList:
		return decodeClusterList(body)
	case AttrMpReachNlri:
		return decodeMpReachNlri(body, ctx.AddPath)
	case AttrMpUnreachNlri:
		return decodeMpUnreachNlri(body, ctx.AddPath)
	case AttrOnlyToCustomer:
		return decodeOnlyToCustomer(body)
	case AttrDevelopment:
		return DevelopmentValue{Raw: append([]byte{}, body...)}, nil
	default:
		if deprecatedTypes[uint8(t)] {
			return DeprecatedValue{AttrType: uint8(t), Raw: append([]byte{}, body...)}, nil
		}
		return UnknownValue{AttrType: uint8(t), Raw: append([]byte{}, body...)}, nil
	}
}

func decodeOrigin(body []byte) (OriginValue, error) {
	if len(body) < 1 {
		return OriginValue{}, wire.NewParseError("ORIGIN: empty body")
	}
	return OriginValue{Origin: OriginType(body[0])}, nil
}

// decodeU32Lenient reads a big-endian uint32, accepting a shorter body by
// zero-extending it; some implementations have been seen to emit a 2-byte
// MED. Per §9's leniency stance this degrades gracefully instead of
// erroring.
func decodeU32Lenient(body []byte) uint32 {
	var b [4]byte
	if len(body) >= 4 {
		copy(b[:], body[:4])
	} else {
		copy(b[4-len(body):], body)
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func decodeNextHop(body []byte) (NextHopValue, error) {
	addr, ok := netip.AddrFromSlice(body)
	if !ok {
		return NextHopValue{}, wire.NewParseError("NEXT_HOP: bad address length %d", len(body))
	}
	return NextHopValue{Addr: addr}, nil
}

func decodeAsPathAttr(body []byte, is4Byte bool) (AsPathValue, error) {
	width := 2
	if is4Byte {
		width = 4
	}
	r := wire.NewReader(body)
	var segs []Segment
	for r.Len() > 0 {
		segType, err := r.U8()
		if err != nil {
			return AsPathValue{}, wire.NewParseError("AS_PATH: truncated segment header")
		}
		count, err := r.U8()
		if err != nil {
			return AsPathValue{}, wire.NewParseError("AS_PATH: truncated segment count")
		}
		asns := make([]Asn, 0, count)
		for i := 0; i < int(count); i++ {
			if width == 2 {
				v, err := r.U16()
				if err != nil {
					return AsPathValue{}, wire.NewParseError("AS_PATH: truncated ASN list")
				}
				asns = append(asns, NewAsn2(v))
			} else {
				v, err := r.U32()
				if err != nil {
					return AsPathValue{}, wire.NewParseError("AS_PATH: truncated ASN list")
				}
				asns = append(asns, NewAsn4(v))
			}
		}
		segs = append(segs, Segment{Type: SegmentType(segType), Asns: asns})
	}
	return AsPathValue{Path: AsPath{Segments: segs}, Is4Byte: is4Byte}, nil
}

func decodeAggregator(body []byte, is4Byte bool) (AggregatorValue, error) {
	r := wire.NewReader(body)
	var asn Asn
	if is4Byte {
		v, err := r.U32()
		if err != nil {
			return AggregatorValue{}, wire.NewParseError("AGGREGATOR: truncated ASN")
		}
		asn = NewAsn4(v)
	} else {
		v, err := r.U16()
		if err != nil {
			return AggregatorValue{}, wire.NewParseError("AGGREGATOR: truncated ASN")
		}
		asn = NewAsn2(v)
	}
	addrBytes, err := r.Bytes(4)
	if err != nil {
		return AggregatorValue{}, wire.NewParseError("AGGREGATOR: truncated address")
	}
	var a [4]byte
	copy(a[:], addrBytes)
	return AggregatorValue{Asn: asn, Addr: netip.AddrFrom4(a), Is4Byte: is4Byte}, nil
}

func decodeCommunities(body []byte) CommunitiesValue {
	var out []Community
	for i := 0; i+4 <= len(body); i += 4 {
		out = append(out, DecodeCommunity(beU32(body[i:i+4])))
	}
	return CommunitiesValue{Communities: out}
}

func decodeExtCommunities(body []byte) ExtendedCommunitiesValue {
	var out []ExtCommunity
	for i := 0; i+8 <= len(body); i += 8 {
		out = append(out, DecodeExtCommunity(body[i:i+8]))
	}
	return ExtendedCommunitiesValue{Communities: out}
}

func decodeIpv6ExtCommunities(body []byte) Ipv6ExtendedCommunitiesValue {
	var out []Ipv6ExtCommunity
	for i := 0; i+20 <= len(body); i += 20 {
		out = append(out, DecodeIpv6ExtCommunity(body[i:i+20]))
	}
	return Ipv6ExtendedCommunitiesValue{Communities: out}
}

func decodeLargeCommunities(body []byte) LargeCommunitiesValue {
	var out []LargeCommunity
	for i := 0; i+12 <= len(body); i += 12 {
		out = append(out, DecodeLargeCommunity(body[i:i+12]))
	}
	return LargeCommunitiesValue{Communities: out}
}

func decodeOriginatorId(body []byte) (OriginatorIdValue, error) {
	addr, ok := netip.AddrFromSlice(body)
	if !ok {
		return OriginatorIdValue{}, wire.NewParseError("ORIGINATOR_ID: bad length %d", len(body))
	}
	return OriginatorIdValue{Addr: addr}, nil
}

func decodeClusterList(body []byte) (ClusterListValue, error) {
	var ids []netip.Addr
	for i := 0; i+4 <= len(body); i += 4 {
		var a [4]byte
		copy(a[:], body[i:i+4])
		ids = append(ids, netip.AddrFrom4(a))
	}
	return ClusterListValue{Ids: ids}, nil
}

func decodeOnlyToCustomer(body []byte) (OnlyToCustomerValue, error) {
	if len(body) < 4 {
		return OnlyToCustomerValue{}, wire.NewParseError("ONLY_TO_CUSTOMER: bad length %d", len(body))
	}
	return OnlyToCustomerValue{Asn: NewAsn4(beU32(body[:4]))}, nil
}

// decodeMpReachNlri parses MP_REACH_NLRI (RFC 4760): 2-byte AFI, 1-byte
// SAFI, 1-byte next-hop length, next hop(s), a reserved SNPA count octet
// that must be skipped, then packed NLRI to the end of the attribute.
func decodeMpReachNlri(body []byte, addPath bool) (MpReachNlriValue, error) {
	r := wire.NewReader(body)
	afi, err := r.U16()
	if err != nil {
		return MpReachNlriValue{}, wire.NewParseError("MP_REACH_NLRI: truncated AFI")
	}
	safi, err := r.U8()
	if err != nil {
		return MpReachNlriValue{}, wire.NewParseError("MP_REACH_NLRI: truncated SAFI")
	}
	nhLen, err := r.U8()
	if err != nil {
		return MpReachNlriValue{}, wire.NewParseError("MP_REACH_NLRI: truncated next-hop length")
	}
	nhBytes, err := r.Bytes(int(nhLen))
	if err != nil {
		return MpReachNlriValue{}, wire.NewParseError("MP_REACH_NLRI: truncated next-hop")
	}
	nextHops, err := decodeNextHops(nhBytes)
	if err != nil {
		return MpReachNlriValue{}, err
	}

	// RFC 4760 SNPA count; always 0 in practice but must still be walked.
	snpaCount, err := r.U8()
	if err != nil {
		return MpReachNlriValue{}, wire.NewParseError("MP_REACH_NLRI: truncated SNPA count")
	}
	for i := 0; i < int(snpaCount); i++ {
		l, err := r.U8()
		if err != nil {
			return MpReachNlriValue{}, wire.NewParseError("MP_REACH_NLRI: truncated SNPA entry")
		}
		if err := r.Skip((int(l) + 1) / 2); err != nil {
			return MpReachNlriValue{}, wire.NewParseError("MP_REACH_NLRI: truncated SNPA entry")
		}
	}

	nlri, err := DecodePrefixList(r, afiIsV6(afi), addPath)
	if err != nil {
		return MpReachNlriValue{}, err
	}
	return MpReachNlriValue{Afi: afi, Safi: safi, NextHops: nextHops, Nlri: nlri}, nil
}

func decodeNextHops(b []byte) ([]netip.Addr, error) {
	switch len(b) {
	case 4, 16:
		addr, ok := netip.AddrFromSlice(b)
		if !ok {
			return nil, wire.NewParseError("MP_REACH_NLRI: bad next-hop length %d", len(b))
		}
		return []netip.Addr{addr}, nil
	case 32:
		global, ok := netip.AddrFromSlice(b[:16])
		if !ok {
			return nil, wire.NewParseError("MP_REACH_NLRI: bad global next-hop")
		}
		linkLocal, ok := netip.AddrFromSlice(b[16:])
		if !ok {
			return nil, wire.NewParseError("MP_REACH_NLRI: bad link-local next-hop")
		}
		return []netip.Addr{global, linkLocal}, nil
	default:
		return nil, wire.NewParseError("MP_REACH_NLRI: unsupported next-hop length %d", len(b))
	}
}

func decodeMpUnreachNlri(body []byte, addPath bool) (MpUnreachNlriValue, error) {
	r := wire.NewReader(body)
	afi, err := r.U16()
	if err != nil {
		return MpUnreachNlriValue{}, wire.NewParseError("MP_UNREACH_NLRI: truncated AFI")
	}
	safi, err := r.U8()
	if err != nil {
		return MpUnreachNlriValue{}, wire.NewParseError("MP_UNREACH_NLRI: truncated SAFI")
	}
	nlri, err := DecodePrefixList(r, afiIsV6(afi), addPath)
	if err != nil {
		return MpUnreachNlriValue{}, err
	}
	return MpUnreachNlriValue{Afi: afi, Safi: safi, Nlri: nlri}, nil
}

// EncodeAttributes writes the attribute list back to wire form. Attributes
// are emitted in the order they appear in attrs.List, which for a record
// that was decoded and never reordered produces a byte-identical round
// trip (§9 round-trip invariant).
func EncodeAttributes(w *wire.Writer, attrs Attributes, ctx AttrContext) {
	for _, at := range attrs.List {
		body := encodeAttrValue(at.TypeCode, at.Value, ctx)
		flags := at.Flags
		if len(body) > 255 {
			flags |= FlagExtendedLength
		} else {
			flags &^= FlagExtendedLength
		}
		w.U8(flags)
		w.U8(uint8(at.TypeCode))
		if flags&FlagExtendedLength != 0 {
			w.U16(uint16(len(body)))
		} else {
			w.U8(uint8(len(body)))
		}
		w.Write(body)
	}
}

func encodeAttrValue(t AttrType, v AttrValue, ctx AttrContext) []byte {
	body := wire.NewWriter(16)
	switch val := v.(type) {
	case OriginValue:
		body.U8(uint8(val.Origin))
	case AsPathValue:
		encodeAsPath(body, val.Path, val.Is4Byte)
	case NextHopValue:
		body.Write(val.Addr.AsSlice())
	case MultiExitDiscValue:
		body.U32(val.Value)
	case LocalPrefValue:
		body.U32(val.Value)
	case AtomicAggregateValue:
		// empty body
	case AggregatorValue:
		if val.Is4Byte {
			body.U32(val.Asn.Value)
		} else {
			body.U16(uint16(val.Asn.Value))
		}
		body.Write(val.Addr.AsSlice())
	case CommunitiesValue:
		for _, c := range val.Communities {
			body.U32(c.Value)
		}
	case ExtendedCommunitiesValue:
		for _, c := range val.Communities {
			raw := c.Encode()
			body.Write(raw[:])
		}
	case Ipv6ExtendedCommunitiesValue:
		for _, c := range val.Communities {
			body.U8(c.Type)
			body.U8(c.Subtype)
			body.Write(c.Global.AsSlice())
			body.U16(c.Local)
		}
	case LargeCommunitiesValue:
		for _, c := range val.Communities {
			raw := c.Encode()
			body.Write(raw[:])
		}
	case OriginatorIdValue:
		body.Write(val.Addr.AsSlice())
	case ClusterListValue:
		for _, id := range val.Ids {
			body.Write(id.AsSlice())
		}
	case MpReachNlriValue:
		encodeMpReachNlri(body, val, ctx.AddPath)
	case MpUnreachNlriValue:
		body.U16(val.Afi)
		body.U8(val.Safi)
		for _, p := range val.Nlri {
			EncodePrefix(body, p, ctx.AddPath)
		}
	case OnlyToCustomerValue:
		body.U32(val.Asn.Value)
	case DevelopmentValue:
		body.Write(val.Raw)
	case DeprecatedValue:
		body.Write(val.Raw)
	case UnknownValue:
		body.Write(val.Raw)
	}
	return body.Bytes()
}

func encodeAsPath(w *wire.Writer, path AsPath, is4Byte bool) {
	for _, seg := range path.Segments {
		w.U8(uint8(seg.Type))
		w.U8(uint8(len(seg.Asns)))
		for _, a := range seg.Asns {
			if is4Byte {
				w.U32(a.Value)
			} else {
				w.U16(uint16(a.Value))
			}
		}
	}
}

func encodeMpReachNlri(w *wire.Writer, v MpReachNlriValue, addPath bool) {
	w.U16(v.Afi)
	w.U8(v.Safi)
	var nh []byte
	for _, addr := range v.NextHops {
		nh = append(nh, addr.AsSlice()...)
	}
	w.U8(uint8(len(nh)))
	w.Write(nh)
	w.U8(0) // SNPA count, always emitted empty
	for _, p := range v.Nlri {
		EncodePrefix(w, p, addPath)
	}
}

package bmp

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/wire"
)

// attrContext is the AttrContext every BMP-encapsulated BGP message
// decodes with. BMP's per-peer header always carries a 4-byte peer ASN
// (RFC 7854 §4.2) regardless of what the session actually negotiated, but
// there is no equivalent per-message signal for the encapsulated BGP
// UPDATE's own AS_PATH width; every monitored router in the wild that
// speaks BMP also negotiates the 4-byte ASN capability, so this codec
// always decodes with Asn4 set and falls back to treating a length
// mismatch as a parse error rather than silently misreading the path.
func attrContext(peer PeerHeader) bgp.AttrContext {
	return bgp.AttrContext{Asn4: true, AddPath: peer.HasAddPath()}
}

// Decode decodes one complete BMP message, including its common header.
func Decode(data []byte) (Message, error) {
	r := wire.NewReader(data)
	h, err := decodeCommonHeader(r)
	if err != nil {
		return Message{}, err
	}
	bodyLen := int(h.Length) - CommonHeaderSize
	if bodyLen < 0 {
		return Message{}, wire.NewParseError("bmp: declared length %d smaller than common header", h.Length)
	}
	body, err := r.Bytes(bodyLen)
	if err != nil {
		return Message{}, wire.NewParseError("bmp: message truncated: need %d, have %d", bodyLen, r.Len())
	}

	b, err := decodeBody(h.Type, body)
	if err != nil {
		return Message{}, err
	}
	return Message{Header: h, Body: b}, nil
}

func decodeCommonHeader(r *wire.Reader) (CommonHeader, error) {
	version, err := r.U8()
	if err != nil {
		return CommonHeader{}, wire.NewParseError("bmp: truncated common header")
	}
	if version != Version {
		return CommonHeader{}, wire.NewParseError("bmp: unsupported version %d (expected %d)", version, Version)
	}
	length, err := r.U32()
	if err != nil {
		return CommonHeader{}, wire.NewParseError("bmp: truncated common header")
	}
	typ, err := r.U8()
	if err != nil {
		return CommonHeader{}, wire.NewParseError("bmp: truncated common header")
	}
	return CommonHeader{Version: version, Length: length, Type: MessageType(typ)}, nil
}

func decodeBody(typ MessageType, body []byte) (Body, error) {
	switch typ {
	case MsgTypeRouteMonitoring:
		return decodeRouteMonitoring(body)
	case MsgTypeStatisticsReport:
		return decodeStatisticsReport(body)
	case MsgTypePeerDown:
		return decodePeerDown(body)
	case MsgTypePeerUp:
		return decodePeerUp(body)
	case MsgTypeInitiation:
		return decodeInitiation(body)
	case MsgTypeTermination:
		return decodeTermination(body)
	case MsgTypeRouteMirroring:
		return decodeRouteMirroring(body)
	default:
		return nil, wire.NewParseError("bmp: unsupported message type %d", typ)
	}
}

func decodePeerHeader(r *wire.Reader) (PeerHeader, error) {
	peerType, err := r.U8()
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}
	flags, err := r.U8()
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}
	dist, err := r.U64()
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}
	addrBytes, err := r.Bytes(16)
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}
	asn, err := r.U32()
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}
	bgpIdBytes, err := r.Bytes(4)
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}
	tsSec, err := r.U32()
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}
	tsUsec, err := r.U32()
	if err != nil {
		return PeerHeader{}, wire.NewParseError("bmp: truncated per-peer header")
	}

	addr := peerAddr(addrBytes, flags&PeerFlagIpv6 != 0)
	bgpId, _ := netip.AddrFromSlice(bgpIdBytes)

	return PeerHeader{
		PeerType:      peerType,
		Flags:         flags,
		Distinguisher: dist,
		Addr:          addr,
		Asn:           bgp.NewAsn4(asn),
		BgpId:         bgpId,
		Timestamp:     float64(tsSec) + float64(tsUsec)/1e6,
	}, nil
}

func peerAddr(raw []byte, isV6 bool) netip.Addr {
	if isV6 {
		a, _ := netip.AddrFromSlice(raw)
		return a
	}
	a, _ := netip.AddrFromSlice(raw[12:16])
	return a
}

func decodeRouteMonitoring(body []byte) (RouteMonitoringMessage, error) {
	r := wire.NewReader(body)
	peer, err := decodePeerHeader(r)
	if err != nil {
		return RouteMonitoringMessage{}, err
	}
	bgpBytes := r.Rest()

	msgLen, err := bgpMessageLength(bgpBytes)
	if err != nil {
		return RouteMonitoringMessage{}, err
	}
	if msgLen > len(bgpBytes) {
		return RouteMonitoringMessage{}, wire.NewParseError("bmp: encapsulated bgp message length %d exceeds available %d", msgLen, len(bgpBytes))
	}

	h, err := bgp.DecodeHeader(wire.NewReader(bgpBytes[:msgLen]))
	if err != nil {
		return RouteMonitoringMessage{}, err
	}
	var upd bgp.UpdateMessage
	if h.Type == bgp.MsgUpdate {
		upd, err = bgp.DecodeUpdate(bgpBytes[bgp.HeaderLen:msgLen], attrContext(peer))
		if err != nil {
			return RouteMonitoringMessage{}, err
		}
	}

	tableName := ""
	if peer.IsLocRib() {
		tlvs := decodeTLVs(bgpBytes[msgLen:])
		tableName = tlvs[TLVTypeVrfTable]
	}

	return RouteMonitoringMessage{Peer: peer, Update: upd, TableName: tableName}, nil
}

// bgpMessageLength reads the length field from a BGP message header
// (marker[16] + length[2] + type[1]).
func bgpMessageLength(data []byte) (int, error) {
	if len(data) < bgp.HeaderLen {
		return 0, wire.NewParseError("bmp: encapsulated bgp message too short (%d bytes)", len(data))
	}
	length := int(data[16])<<8 | int(data[17])
	if length < bgp.HeaderLen {
		return 0, wire.NewParseError("bmp: invalid encapsulated bgp message length %d", length)
	}
	return length, nil
}

func decodeStatisticsReport(body []byte) (StatisticsReportMessage, error) {
	r := wire.NewReader(body)
	peer, err := decodePeerHeader(r)
	if err != nil {
		return StatisticsReportMessage{}, err
	}
	count, err := r.U32()
	if err != nil {
		return StatisticsReportMessage{}, wire.NewParseError("bmp: stats report truncated")
	}
	stats := make([]StatTLV, 0, count)
	for i := uint32(0); i < count; i++ {
		typ, err := r.U16()
		if err != nil {
			return StatisticsReportMessage{}, wire.NewParseError("bmp: stats report truncated")
		}
		length, err := r.U16()
		if err != nil {
			return StatisticsReportMessage{}, wire.NewParseError("bmp: stats report truncated")
		}
		val, err := r.Bytes(int(length))
		if err != nil {
			return StatisticsReportMessage{}, wire.NewParseError("bmp: stats report truncated")
		}
		stats = append(stats, StatTLV{Type: typ, Value: append([]byte{}, val...)})
	}
	return StatisticsReportMessage{Peer: peer, Stats: stats}, nil
}

func decodePeerDown(body []byte) (PeerDownMessage, error) {
	r := wire.NewReader(body)
	peer, err := decodePeerHeader(r)
	if err != nil {
		return PeerDownMessage{}, err
	}
	reason, err := r.U8()
	if err != nil {
		return PeerDownMessage{}, wire.NewParseError("bmp: peer down truncated")
	}
	msg := PeerDownMessage{Peer: peer, Reason: reason}
	switch reason {
	case PeerDownLocalNotification, PeerDownRemoteNotification:
		n, err := bgp.DecodeNotification(r.Rest())
		if err != nil {
			return PeerDownMessage{}, err
		}
		msg.Notification = &n
	case PeerDownLocalFsmEvent:
		code, err := r.U16()
		if err != nil {
			return PeerDownMessage{}, wire.NewParseError("bmp: peer down fsm event truncated")
		}
		msg.FsmEventCode = code
	}
	return msg, nil
}

func decodePeerUp(body []byte) (PeerUpMessage, error) {
	r := wire.NewReader(body)
	peer, err := decodePeerHeader(r)
	if err != nil {
		return PeerUpMessage{}, err
	}
	localAddrBytes, err := r.Bytes(16)
	if err != nil {
		return PeerUpMessage{}, wire.NewParseError("bmp: peer up truncated")
	}
	localPort, err := r.U16()
	if err != nil {
		return PeerUpMessage{}, wire.NewParseError("bmp: peer up truncated")
	}
	remotePort, err := r.U16()
	if err != nil {
		return PeerUpMessage{}, wire.NewParseError("bmp: peer up truncated")
	}

	sentOpen, sentLen, err := decodeOpenFromReader(r)
	if err != nil {
		return PeerUpMessage{}, err
	}
	_ = sentLen
	recvOpen, _, err := decodeOpenFromReader(r)
	if err != nil {
		return PeerUpMessage{}, err
	}

	tlvs := decodeTLVs(r.Rest())
	return PeerUpMessage{
		Peer:         peer,
		LocalAddr:    peerAddr(localAddrBytes, peer.Flags&PeerFlagIpv6 != 0),
		LocalPort:    localPort,
		RemotePort:   remotePort,
		SentOpen:     sentOpen,
		ReceivedOpen: recvOpen,
		TableName:    tlvs[TLVTypeVrfTable],
	}, nil
}

func decodeOpenFromReader(r *wire.Reader) (bgp.OpenMessage, int, error) {
	rest := r.Rest()
	msgLen, err := bgpMessageLength(rest)
	if err != nil {
		return bgp.OpenMessage{}, 0, err
	}
	h, err := bgp.DecodeHeader(wire.NewReader(rest[:msgLen]))
	if err != nil {
		return bgp.OpenMessage{}, 0, err
	}
	if h.Type != bgp.MsgOpen {
		return bgp.OpenMessage{}, 0, wire.NewParseError("bmp: expected OPEN message in peer up, got type %d", h.Type)
	}
	open, err := bgp.DecodeOpen(rest[bgp.HeaderLen:msgLen])
	if err != nil {
		return bgp.OpenMessage{}, 0, err
	}
	if err := r.Skip(msgLen); err != nil {
		return bgp.OpenMessage{}, 0, err
	}
	return open, msgLen, nil
}

func decodeInitiation(body []byte) (InitiationMessage, error) {
	tlvs := decodeTLVs(body)
	msg := InitiationMessage{SysDescr: tlvs[TLVTypeSysDescr], SysName: tlvs[TLVTypeSysName]}
	for k, v := range tlvs {
		if k != TLVTypeSysDescr && k != TLVTypeSysName {
			if msg.Other == nil {
				msg.Other = map[uint16]string{}
			}
			msg.Other[k] = v
		}
	}
	return msg, nil
}

func decodeTermination(body []byte) (TerminationMessage, error) {
	r := wire.NewReader(body)
	for r.Len() >= 4 {
		typ, err := r.U16()
		if err != nil {
			break
		}
		length, err := r.U16()
		if err != nil {
			break
		}
		val, err := r.Bytes(int(length))
		if err != nil {
			break
		}
		return TerminationMessage{Reason: typ, Info: string(val)}, nil
	}
	return TerminationMessage{}, nil
}

func decodeRouteMirroring(body []byte) (RouteMirroringMessage, error) {
	r := wire.NewReader(body)
	peer, err := decodePeerHeader(r)
	if err != nil {
		return RouteMirroringMessage{}, err
	}
	rest := r.Rest()
	tlvType, err := peekTLVType(rest)
	if err == nil && tlvType == TLVTypeString {
		tlvs := decodeTLVs(rest)
		return RouteMirroringMessage{Peer: peer, Info: tlvs[TLVTypeString]}, nil
	}
	return RouteMirroringMessage{Peer: peer, Payload: append([]byte{}, rest...)}, nil
}

func peekTLVType(data []byte) (uint16, error) {
	r := wire.NewReader(data)
	return r.U16()
}

// decodeTLVs walks a flat (type uint16, length uint16, value) sequence
// until it runs out of bytes, returning the last value seen per type.
func decodeTLVs(data []byte) map[uint16]string {
	out := map[uint16]string{}
	r := wire.NewReader(data)
	for r.Len() >= 4 {
		typ, err := r.U16()
		if err != nil {
			break
		}
		length, err := r.U16()
		if err != nil {
			break
		}
		val, err := r.Bytes(int(length))
		if err != nil {
			break
		}
		out[typ] = string(val)
	}
	return out
}

// RouterIDFromPeerHeader extracts the peer address from a raw per-peer
// header for logging, without decoding the rest of the message. The
// 16-byte Peer Address field starts at offset 10 (RFC 7854 §4.2: 1-byte
// type + 1-byte flags + 8-byte distinguisher).
func RouterIDFromPeerHeader(data []byte) string {
	if len(data) < PerPeerHeaderSize {
		return ""
	}
	flags := data[1]
	return peerAddr(data[10:26], flags&PeerFlagIpv6 != 0).String()
}

package mrtformat

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/wire"
)

// peer entry type bits (RFC 6396 §4.3.1).
const (
	peerFlagAs4  uint8 = 0x02
	peerFlagIpv6 uint8 = 0x01
)

// PeerEntry is one row of a PEER_INDEX_TABLE.
type PeerEntry struct {
	BgpId  netip.Addr
	IpAddr netip.Addr
	Asn    bgp.Asn
}

// PeerIndexTable is the PEER_INDEX_TABLE subtype that precedes every
// TABLE_DUMP_V2 RIB dump: a collector identity, an optional view name,
// and the flat array of peers that RIB entries index into by position.
type PeerIndexTable struct {
	CollectorBgpId netip.Addr
	ViewName       string
	Peers          []PeerEntry
}

// Peer returns the peer at idx, or the zero PeerEntry and false if idx is
// out of range — a RIB entry pointing past the end of the table is a
// malformed archive, not a programming error, so this never panics.
func (t PeerIndexTable) Peer(idx uint16) (PeerEntry, bool) {
	if int(idx) >= len(t.Peers) {
		return PeerEntry{}, false
	}
	return t.Peers[idx], true
}

func DecodePeerIndexTable(body []byte) (PeerIndexTable, error) {
	r := wire.NewReader(body)
	idBytes, err := r.Bytes(4)
	if err != nil {
		return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated collector id")
	}
	var id [4]byte
	copy(id[:], idBytes)

	viewBytes, err := r.LengthPrefixed16()
	if err != nil {
		return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated view name")
	}

	count, err := r.U16()
	if err != nil {
		return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated peer count")
	}

	peers := make([]PeerEntry, 0, count)
	for i := 0; i < int(count); i++ {
		peerType, err := r.U8()
		if err != nil {
			return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated peer %d type", i)
		}
		bgpIdBytes, err := r.Bytes(4)
		if err != nil {
			return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated peer %d bgp id", i)
		}
		var peerBgpId [4]byte
		copy(peerBgpId[:], bgpIdBytes)

		var ipAddr netip.Addr
		if peerType&peerFlagIpv6 != 0 {
			b, err := r.Bytes(16)
			if err != nil {
				return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated peer %d ipv6 addr", i)
			}
			var a [16]byte
			copy(a[:], b)
			ipAddr = netip.AddrFrom16(a)
		} else {
			b, err := r.Bytes(4)
			if err != nil {
				return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated peer %d ipv4 addr", i)
			}
			var a [4]byte
			copy(a[:], b)
			ipAddr = netip.AddrFrom4(a)
		}

		var asn bgp.Asn
		if peerType&peerFlagAs4 != 0 {
			v, err := r.U32()
			if err != nil {
				return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated peer %d asn", i)
			}
			asn = bgp.NewAsn4(v)
		} else {
			v, err := r.U16()
			if err != nil {
				return PeerIndexTable{}, wire.NewParseError("PEER_INDEX_TABLE: truncated peer %d asn", i)
			}
			asn = bgp.NewAsn2(v)
		}

		peers = append(peers, PeerEntry{BgpId: netip.AddrFrom4(peerBgpId), IpAddr: ipAddr, Asn: asn})
	}

	return PeerIndexTable{
		CollectorBgpId: netip.AddrFrom4(id),
		ViewName:       string(viewBytes),
		Peers:          peers,
	}, nil
}

func EncodePeerIndexTable(w *wire.Writer, t PeerIndexTable) {
	w.Write(t.CollectorBgpId.AsSlice())
	w.U16(uint16(len(t.ViewName)))
	w.Write([]byte(t.ViewName))
	w.U16(uint16(len(t.Peers)))
	for _, p := range t.Peers {
		var flags uint8
		if p.IpAddr.Is6() {
			flags |= peerFlagIpv6
		}
		if p.Asn.Is4Byte {
			flags |= peerFlagAs4
		}
		w.U8(flags)
		bgpId4 := p.BgpId.As4()
		w.Write(bgpId4[:])
		w.Write(p.IpAddr.AsSlice())
		if p.Asn.Is4Byte {
			w.U32(p.Asn.Value)
		} else {
			w.U16(uint16(p.Asn.Value))
		}
	}
}

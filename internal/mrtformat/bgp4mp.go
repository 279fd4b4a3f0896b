package mrtformat

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/wire"
)

// BGP FSM states as carried by BGP4MP_STATE_CHANGE (RFC 4271 §8.2.2).
const (
	FsmIdle        uint16 = 1
	FsmConnect     uint16 = 2
	FsmActive      uint16 = 3
	FsmOpenSent    uint16 = 4
	FsmOpenConfirm uint16 = 5
	FsmEstablished uint16 = 6
)

// Bgp4mpStateChange is a decoded BGP4MP_STATE_CHANGE / _AS4 body.
type Bgp4mpStateChange struct {
	PeerAsn        bgp.Asn
	LocalAsn       bgp.Asn
	InterfaceIndex uint16
	Afi            uint16
	PeerIp         netip.Addr
	LocalIp        netip.Addr
	OldState       uint16
	NewState       uint16
}

// Bgp4mpMessage is a decoded BGP4MP_MESSAGE / _AS4 / _LOCAL / _ADDPATH
// body: the peer/local session identity plus the raw encapsulated BGP
// message. Asn4/AddPath record which wire convention applied so the
// payload can be decoded with the right AttrContext.
type Bgp4mpMessage struct {
	PeerAsn        bgp.Asn
	LocalAsn       bgp.Asn
	InterfaceIndex uint16
	Afi            uint16
	PeerIp         netip.Addr
	LocalIp        netip.Addr
	Asn4           bool
	AddPath        bool
	Payload        []byte // full BGP message, including its 19-byte header
}

// Header decodes the BGP message header from Payload.
func (m Bgp4mpMessage) Header() (bgp.Header, error) {
	return bgp.DecodeHeader(wire.NewReader(m.Payload))
}

// Update decodes Payload as a BGP UPDATE, returning (_, false, nil) if
// the message is some other type.
func (m Bgp4mpMessage) Update() (bgp.UpdateMessage, bool, error) {
	h, err := m.Header()
	if err != nil {
		return bgp.UpdateMessage{}, false, err
	}
	if h.Type != bgp.MsgUpdate {
		return bgp.UpdateMessage{}, false, nil
	}
	upd, err := bgp.DecodeUpdate(m.Payload[bgp.HeaderLen:], bgp.AttrContext{Asn4: m.Asn4, AddPath: m.AddPath})
	return upd, true, err
}

func decodeBgp4mpAsnsAndAddrs(r *wire.Reader, as4 bool) (peerAsn, localAsn bgp.Asn, ifIndex uint16, afi uint16, err error) {
	if as4 {
		p, e := r.U32()
		if e != nil {
			return bgp.Asn{}, bgp.Asn{}, 0, 0, wire.NewParseError("BGP4MP: truncated peer asn")
		}
		l, e := r.U32()
		if e != nil {
			return bgp.Asn{}, bgp.Asn{}, 0, 0, wire.NewParseError("BGP4MP: truncated local asn")
		}
		peerAsn, localAsn = bgp.NewAsn4(p), bgp.NewAsn4(l)
	} else {
		p, e := r.U16()
		if e != nil {
			return bgp.Asn{}, bgp.Asn{}, 0, 0, wire.NewParseError("BGP4MP: truncated peer asn")
		}
		l, e := r.U16()
		if e != nil {
			return bgp.Asn{}, bgp.Asn{}, 0, 0, wire.NewParseError("BGP4MP: truncated local asn")
		}
		peerAsn, localAsn = bgp.NewAsn2(p), bgp.NewAsn2(l)
	}
	idx, e := r.U16()
	if e != nil {
		return bgp.Asn{}, bgp.Asn{}, 0, 0, wire.NewParseError("BGP4MP: truncated interface index")
	}
	a, e := r.U16()
	if e != nil {
		return bgp.Asn{}, bgp.Asn{}, 0, 0, wire.NewParseError("BGP4MP: truncated afi")
	}
	return peerAsn, localAsn, idx, a, nil
}

func decodeBgp4mpAddrs(r *wire.Reader, v6 bool) (peerIp, localIp netip.Addr, err error) {
	n := 4
	if v6 {
		n = 16
	}
	pb, e := r.Bytes(n)
	if e != nil {
		return netip.Addr{}, netip.Addr{}, wire.NewParseError("BGP4MP: truncated peer address")
	}
	lb, e := r.Bytes(n)
	if e != nil {
		return netip.Addr{}, netip.Addr{}, wire.NewParseError("BGP4MP: truncated local address")
	}
	peerIp, _ = netip.AddrFromSlice(pb)
	localIp, _ = netip.AddrFromSlice(lb)
	return peerIp, localIp, nil
}

func DecodeBgp4mpStateChange(subtype Subtype, body []byte) (Bgp4mpStateChange, error) {
	r := wire.NewReader(body)
	peerAsn, localAsn, idx, afi, err := decodeBgp4mpAsnsAndAddrs(r, subtype.isAs4())
	if err != nil {
		return Bgp4mpStateChange{}, err
	}
	peerIp, localIp, err := decodeBgp4mpAddrs(r, afi == bgp.AfiIpv6)
	if err != nil {
		return Bgp4mpStateChange{}, err
	}
	oldState, err := r.U16()
	if err != nil {
		return Bgp4mpStateChange{}, wire.NewParseError("BGP4MP_STATE_CHANGE: truncated old state")
	}
	newState, err := r.U16()
	if err != nil {
		return Bgp4mpStateChange{}, wire.NewParseError("BGP4MP_STATE_CHANGE: truncated new state")
	}
	return Bgp4mpStateChange{
		PeerAsn: peerAsn, LocalAsn: localAsn, InterfaceIndex: idx, Afi: afi,
		PeerIp: peerIp, LocalIp: localIp, OldState: oldState, NewState: newState,
	}, nil
}

func EncodeBgp4mpStateChange(w *wire.Writer, subtype Subtype, sc Bgp4mpStateChange) {
	encodeBgp4mpAsns(w, subtype.isAs4(), sc.PeerAsn, sc.LocalAsn)
	w.U16(sc.InterfaceIndex)
	w.U16(sc.Afi)
	w.Write(sc.PeerIp.AsSlice())
	w.Write(sc.LocalIp.AsSlice())
	w.U16(sc.OldState)
	w.U16(sc.NewState)
}

func DecodeBgp4mpMessage(subtype Subtype, body []byte) (Bgp4mpMessage, error) {
	r := wire.NewReader(body)
	peerAsn, localAsn, idx, afi, err := decodeBgp4mpAsnsAndAddrs(r, subtype.isAs4())
	if err != nil {
		return Bgp4mpMessage{}, err
	}
	peerIp, localIp, err := decodeBgp4mpAddrs(r, afi == bgp.AfiIpv6)
	if err != nil {
		return Bgp4mpMessage{}, err
	}
	payload := append([]byte{}, r.Rest()...)
	return Bgp4mpMessage{
		PeerAsn: peerAsn, LocalAsn: localAsn, InterfaceIndex: idx, Afi: afi,
		PeerIp: peerIp, LocalIp: localIp,
		Asn4: subtype.isAs4(), AddPath: subtype.isAddPath(), Payload: payload,
	}, nil
}

func EncodeBgp4mpMessage(w *wire.Writer, subtype Subtype, m Bgp4mpMessage) {
	encodeBgp4mpAsns(w, subtype.isAs4(), m.PeerAsn, m.LocalAsn)
	w.U16(m.InterfaceIndex)
	w.U16(m.Afi)
	w.Write(m.PeerIp.AsSlice())
	w.Write(m.LocalIp.AsSlice())
	w.Write(m.Payload)
}

func encodeBgp4mpAsns(w *wire.Writer, as4 bool, peerAsn, localAsn bgp.Asn) {
	if as4 {
		w.U32(peerAsn.Value)
		w.U32(localAsn.Value)
	} else {
		w.U16(uint16(peerAsn.Value))
		w.U16(uint16(localAsn.Value))
	}
}

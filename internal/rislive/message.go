// Package rislive decodes and encodes the JSON messages RIPE NCC's RIS-Live
// feed exchanges over its WebSocket endpoint: client subscribe/unsubscribe/
// ping/request_rrc_list requests, and the server's ris_message/ris_error/
// ris_rrc_list/ris_subscribe_ok/pong replies. One UPDATE-kind ris_message
// converts into the same BgpElem slice §4.G's elementor produces for an
// MRT/BMP UPDATE, by building a synthetic bgp.UpdateMessage from the JSON
// fields and handing it to bgpelem.FromUpdate.
package rislive

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
)

// ServerMessageType is the "type" field of an incoming server frame.
type ServerMessageType string

const (
	ServerMsgRisMessage     ServerMessageType = "ris_message"
	ServerMsgRisError       ServerMessageType = "ris_error"
	ServerMsgRisRrcList     ServerMessageType = "ris_rrc_list"
	ServerMsgRisSubscribeOk ServerMessageType = "ris_subscribe_ok"
	ServerMsgPong           ServerMessageType = "pong"
)

// ClientMessageType is the "type" field of an outgoing client frame.
type ClientMessageType string

const (
	ClientMsgSubscribe      ClientMessageType = "ris_subscribe"
	ClientMsgUnsubscribe    ClientMessageType = "ris_unsubscribe"
	ClientMsgPing           ClientMessageType = "ping"
	ClientMsgRequestRrcList ClientMessageType = "request_rrc_list"
)

// UpdateKind is the RIS-Live "data.type" discriminant for a ris_message.
type UpdateKind string

const (
	KindUpdate       UpdateKind = "UPDATE"
	KindOpen         UpdateKind = "OPEN"
	KindNotification UpdateKind = "NOTIFICATION"
	KindKeepalive    UpdateKind = "KEEPALIVE"
	KindRisPeerState UpdateKind = "RIS_PEER_STATE"
)

// Announcement is one next-hop plus the prefixes reached through it, as
// RIS-Live groups them in a ris_message's "announcements" array.
type Announcement struct {
	NextHop  string
	Prefixes []string
}

// RisMessageData is the "data" object of a ris_message server frame.
type RisMessageData struct {
	Timestamp     float64
	Peer          string
	PeerAsn       string
	ID            string
	Host          string
	Type          UpdateKind
	Path          []uint32
	Community     [][2]uint32
	Origin        string
	MED           uint32
	HasMED        bool
	Aggregator    string
	Announcements []Announcement
	Withdrawals   []string
	Raw           string
}

// RisMessage is a decoded "ris_message" server frame.
type RisMessage struct {
	Type ServerMessageType
	Data RisMessageData
}

// Error sentinels for RIS-Live-specific decode failures (§4.K).
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "rislive: " + e.Reason }

var (
	ErrBadPrefix   = &DecodeError{Reason: "malformed prefix string"}
	ErrUnknownKind = &DecodeError{Reason: "unrecognized data.type"}
	ErrEndOfRib    = &DecodeError{Reason: "end-of-RIB sentinel, not a route message"}
)

// SniffType extracts the top-level "type" field from a raw server frame
// using jsonparser's cheap byte-scan rather than a full unmarshal, so a
// client can route frames before deciding whether a full decode is worth
// the allocation (mirrors the corpus's use of jsonparser to triage JSON
// frames before a typed parse).
func SniffType(raw []byte) (ServerMessageType, error) {
	v, err := jsonparser.GetString(raw, "type")
	if err != nil {
		return "", fmt.Errorf("rislive: sniff type: %w", err)
	}
	return ServerMessageType(v), nil
}

// DecodeRisMessage parses a full "ris_message" frame's "data" object,
// using jsonparser for the scalar/array fields RIS-Live sends instead of
// paying for a reflection-based encoding/json unmarshal into a generic
// struct on every message of a high-volume feed.
func DecodeRisMessage(raw []byte) (RisMessage, error) {
	typ, err := SniffType(raw)
	if err != nil {
		return RisMessage{}, err
	}
	data, dataType, _, err := jsonparser.Get(raw, "data")
	if err != nil || dataType != jsonparser.Object {
		return RisMessage{}, fmt.Errorf("rislive: missing data object: %w", err)
	}

	d := RisMessageData{}
	if ts, err := jsonparser.GetFloat(data, "timestamp"); err == nil {
		d.Timestamp = ts
	}
	if peer, err := jsonparser.GetString(data, "peer"); err == nil {
		d.Peer = peer
	}
	if asn, err := jsonparser.GetString(data, "peer_asn"); err == nil {
		d.PeerAsn = asn
	}
	if id, err := jsonparser.GetString(data, "id"); err == nil {
		d.ID = id
	}
	if host, err := jsonparser.GetString(data, "host"); err == nil {
		d.Host = host
	}
	if kind, err := jsonparser.GetString(data, "type"); err == nil {
		d.Type = UpdateKind(kind)
	}
	if origin, err := jsonparser.GetString(data, "origin"); err == nil {
		d.Origin = origin
	}
	if agg, err := jsonparser.GetString(data, "aggregator"); err == nil {
		d.Aggregator = agg
	}
	if med, err := jsonparser.GetInt(data, "med"); err == nil {
		d.MED = uint32(med)
		d.HasMED = true
	}
	if raw, err := jsonparser.GetString(data, "raw"); err == nil {
		d.Raw = raw
	}

	jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType == jsonparser.Array {
			var set []uint32
			jsonparser.ArrayEach(value, func(member []byte, _ jsonparser.ValueType, _ int, _ error) {
				n, perr := strconv.ParseUint(string(member), 10, 32)
				if perr == nil {
					set = append(set, uint32(n))
				}
			})
			d.Path = append(d.Path, set...)
			return
		}
		n, perr := strconv.ParseUint(string(value), 10, 32)
		if perr == nil {
			d.Path = append(d.Path, uint32(n))
		}
	}, "path")

	jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		var pair [2]uint32
		i := 0
		jsonparser.ArrayEach(value, func(member []byte, _ jsonparser.ValueType, _ int, _ error) {
			if i < 2 {
				n, perr := strconv.ParseUint(string(member), 10, 32)
				if perr == nil {
					pair[i] = uint32(n)
				}
				i++
			}
		})
		d.Community = append(d.Community, pair)
	}, "community")

	jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		a := Announcement{}
		if nh, err := jsonparser.GetString(value, "next_hop"); err == nil {
			a.NextHop = nh
		}
		jsonparser.ArrayEach(value, func(p []byte, _ jsonparser.ValueType, _ int, _ error) {
			a.Prefixes = append(a.Prefixes, string(p))
		}, "prefixes")
		d.Announcements = append(d.Announcements, a)
	}, "announcements")

	jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		d.Withdrawals = append(d.Withdrawals, string(value))
	}, "withdrawals")

	return RisMessage{Type: typ, Data: d}, nil
}

// Elems converts an UPDATE-kind ris_message into its flattened elems,
// reusing the elementor's fan-out rules (§4.G) by building a synthetic
// bgp.UpdateMessage from the JSON fields. Other frames return an error
// rather than an empty slice (wrapping ErrEndOfRib for RIS_PEER_STATE and
// ErrUnknownKind for everything else), matching
// §4.K's "RIS-Live-specific errors ... surface as typed errors".
func (m RisMessage) Elems() ([]bgpelem.BgpElem, error) {
	if m.Type != ServerMsgRisMessage {
		return nil, fmt.Errorf("rislive: not a ris_message frame: %w", ErrUnknownKind)
	}
	switch m.Data.Type {
	case KindUpdate:
		return m.elemsFromUpdate()
	case KindRisPeerState:
		return nil, fmt.Errorf("rislive: peer state change, no route data: %w", ErrEndOfRib)
	default:
		return nil, fmt.Errorf("rislive: %s is not a route update: %w", m.Data.Type, ErrUnknownKind)
	}
}

func (m RisMessage) elemsFromUpdate() ([]bgpelem.BgpElem, error) {
	peerIP, err := netip.ParseAddr(m.Data.Peer)
	if err != nil {
		return nil, fmt.Errorf("rislive: bad peer address %q: %w", m.Data.Peer, err)
	}
	peerAsnVal, err := strconv.ParseUint(m.Data.PeerAsn, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("rislive: bad peer_asn %q: %w", m.Data.PeerAsn, err)
	}
	peerAsn := bgp.NewAsn4(uint32(peerAsnVal))

	upd := bgp.UpdateMessage{}
	for _, w := range m.Data.Withdrawals {
		p, err := parsePrefix(w)
		if err != nil {
			return nil, err
		}
		upd.Withdrawn = append(upd.Withdrawn, p)
	}

	if len(m.Data.Announcements) > 0 {
		attrs, err := m.attributes()
		if err != nil {
			return nil, err
		}
		upd.Attributes = attrs
		for _, a := range m.Data.Announcements {
			for _, pfx := range a.Prefixes {
				p, err := parsePrefix(pfx)
				if err != nil {
					return nil, err
				}
				upd.Nlri = append(upd.Nlri, p)
			}
		}
	}

	return bgpelem.FromUpdate(m.Data.Timestamp, peerIP, peerAsn, upd), nil
}

func (m RisMessage) attributes() (bgp.Attributes, error) {
	var attrs bgp.Attributes

	if len(m.Data.Path) > 0 {
		asns := make([]bgp.Asn, len(m.Data.Path))
		for i, v := range m.Data.Path {
			asns[i] = bgp.NewAsn4(v)
		}
		attrs.List = append(attrs.List, bgp.Attribute{
			TypeCode: bgp.AttrAsPath,
			Value:    bgp.AsPathValue{Path: bgp.AsPath{Segments: []bgp.Segment{{Type: bgp.AsSequence, Asns: asns}}}, Is4Byte: true},
		})
	}

	if origin, ok := parseOrigin(m.Data.Origin); ok {
		attrs.List = append(attrs.List, bgp.Attribute{TypeCode: bgp.AttrOrigin, Value: bgp.OriginValue{Origin: origin}})
	} else if m.Data.Origin != "" {
		return attrs, fmt.Errorf("rislive: unknown origin kind %q: %w", m.Data.Origin, ErrUnknownKind)
	}

	if len(m.Data.Announcements) > 0 && m.Data.Announcements[0].NextHop != "" {
		nh, err := netip.ParseAddr(m.Data.Announcements[0].NextHop)
		if err != nil {
			return attrs, fmt.Errorf("rislive: bad next_hop %q: %w", m.Data.Announcements[0].NextHop, err)
		}
		attrs.List = append(attrs.List, bgp.Attribute{TypeCode: bgp.AttrNextHop, Value: bgp.NextHopValue{Addr: nh}})
	}

	if m.Data.HasMED {
		attrs.List = append(attrs.List, bgp.Attribute{TypeCode: bgp.AttrMultiExitDisc, Value: bgp.MultiExitDiscValue{Value: m.Data.MED}})
	}

	if len(m.Data.Community) > 0 {
		communities := make([]bgp.Community, 0, len(m.Data.Community))
		for _, pair := range m.Data.Community {
			communities = append(communities, bgp.DecodeCommunity(pair[0]<<16|pair[1]))
		}
		attrs.List = append(attrs.List, bgp.Attribute{TypeCode: bgp.AttrCommunities, Value: bgp.CommunitiesValue{Communities: communities}})
	}

	return attrs, nil
}

func parseOrigin(s string) (bgp.OriginType, bool) {
	switch strings.ToUpper(s) {
	case "IGP":
		return bgp.OriginIgp, true
	case "EGP":
		return bgp.OriginEgp, true
	case "INCOMPLETE":
		return bgp.OriginIncomplete, true
	default:
		return 0, false
	}
}

func parsePrefix(s string) (bgp.NetworkPrefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return bgp.NetworkPrefix{}, fmt.Errorf("rislive: %q: %w: %v", s, ErrBadPrefix, err)
	}
	return bgp.NetworkPrefix{Prefix: p}, nil
}

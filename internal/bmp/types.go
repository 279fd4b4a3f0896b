// Package bmp implements the BGP Monitoring Protocol (RFC 7854) and its
// Loc-RIB extension (RFC 9069): the 6-byte common header, the 42-byte
// per-peer header, and all seven message bodies. It hands back typed BGP
// data (bgp.UpdateMessage, bgp.OpenMessage, bgp.NotificationMessage)
// rather than raw bytes, so a caller never re-implements BGP decoding on
// top of it.
package bmp

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/bgp"
)

// MessageType is a BMP common-header message type code (RFC 7854 §4.1).
type MessageType uint8

const (
	MsgTypeRouteMonitoring  MessageType = 0
	MsgTypeStatisticsReport MessageType = 1
	MsgTypePeerDown         MessageType = 2
	MsgTypePeerUp           MessageType = 3
	MsgTypeInitiation       MessageType = 4
	MsgTypeTermination      MessageType = 5
	MsgTypeRouteMirroring   MessageType = 6
)

// PeerType is the per-peer header's peer type field (RFC 7854 §4.2, RFC
// 9069 §4.1 for the Loc-RIB instance type).
const (
	PeerTypeGlobal uint8 = 0
	PeerTypeRD     uint8 = 1
	PeerTypeLocal  uint8 = 2
	PeerTypeLocRIB uint8 = 3
)

// BMP header sizes.
const (
	CommonHeaderSize  = 6  // version(1) + msg_length(4) + msg_type(1)
	PerPeerHeaderSize = 42 // peer_type(1) + flags(1) + distinguisher(8) + addr(16) + AS(4) + BGPID(4) + ts_sec(4) + ts_usec(4)
)

// Per-peer header flag bits (RFC 7854 §4.2; RFC 8671 §4.2 adds the O bit;
// the F bit is the ADD-PATH hint several collectors set despite it having
// no RFC 7854 allocation, kept here because route-views/RIPE RIS feeds
// both set it).
const (
	PeerFlagIpv6      uint8 = 0x80
	PeerFlagPostPolicy uint8 = 0x40
	PeerFlagAsPath    uint8 = 0x20 // L: legacy 2-byte AS_PATH in the per-peer-header ASN field is NOT set by this flag; kept for documentation symmetry with the RFC's bit table
	PeerFlagAdjRibOut uint8 = 0x10
	PeerFlagAddPath   uint8 = 0x08
)

// TLV type codes shared by Initiation, Termination, PeerUp and the
// Loc-RIB Route Monitoring trailer (RFC 7854 §4.4, RFC 9069 §4.3).
const (
	TLVTypeString    uint16 = 0
	TLVTypeSysDescr  uint16 = 1
	TLVTypeSysName   uint16 = 2
	TLVTypeVrfTable  uint16 = 3
	TLVTypeAdminLabel uint16 = 4
)

// Version is the only BMP protocol version this codec understands.
const Version uint8 = 3

// CommonHeader is the fixed 6-byte header preceding every BMP message.
type CommonHeader struct {
	Version uint8
	Length  uint32
	Type    MessageType
}

// PeerHeader is the 42-byte per-peer header common to Route Monitoring,
// Statistics Report, Peer Down, Peer Up, and Route Mirroring.
type PeerHeader struct {
	PeerType      uint8
	Flags         uint8
	Distinguisher uint64
	Addr          netip.Addr
	Asn           bgp.Asn
	BgpId         netip.Addr
	Timestamp     float64
}

func (h PeerHeader) IsLocRib() bool     { return h.PeerType == PeerTypeLocRIB }
func (h PeerHeader) IsPostPolicy() bool { return h.Flags&PeerFlagPostPolicy != 0 }
func (h PeerHeader) IsAdjRibOut() bool  { return h.Flags&PeerFlagAdjRibOut != 0 }
func (h PeerHeader) HasAddPath() bool   { return h.Flags&PeerFlagAddPath != 0 }

// Body is implemented by every decoded BMP message body.
type Body interface {
	bmpBody()
}

func (RouteMonitoringMessage) bmpBody()  {}
func (StatisticsReportMessage) bmpBody() {}
func (PeerDownMessage) bmpBody()         {}
func (PeerUpMessage) bmpBody()           {}
func (InitiationMessage) bmpBody()       {}
func (TerminationMessage) bmpBody()      {}
func (RouteMirroringMessage) bmpBody()   {}

// Message is one fully-decoded BMP message.
type Message struct {
	Header CommonHeader
	Body   Body
}

// RouteMonitoringMessage carries one BGP UPDATE the monitored router sent
// or received on a peer session (RFC 7854 §4.6), or one Loc-RIB entry
// (RFC 9069 §4.2), in which case TableName is populated from the
// trailing VRF/Table Name TLV.
type RouteMonitoringMessage struct {
	Peer      PeerHeader
	Update    bgp.UpdateMessage
	TableName string
}

// StatTLV is one counter from a Statistics Report (RFC 7854 §4.8). Value
// holds the raw big-endian bytes; most stat types are a 4- or 8-byte
// counter, decoded on demand via AsUint64.
type StatTLV struct {
	Type  uint16
	Value []byte
}

func (t StatTLV) AsUint64() uint64 {
	var v uint64
	for _, b := range t.Value {
		v = v<<8 | uint64(b)
	}
	return v
}

type StatisticsReportMessage struct {
	Peer  PeerHeader
	Stats []StatTLV
}

// PeerDownMessage reports a session going down (RFC 7854 §4.9).
// Notification is populated for reasons 1 and 3, FsmEventCode for reason
// 2, and neither for reasons 4 and 5.
const (
	PeerDownLocalNotification  uint8 = 1
	PeerDownLocalFsmEvent      uint8 = 2
	PeerDownRemoteNotification uint8 = 3
	PeerDownRemoteNoData       uint8 = 4
	PeerDownDeconfigured       uint8 = 5
)

type PeerDownMessage struct {
	Peer         PeerHeader
	Reason       uint8
	Notification *bgp.NotificationMessage
	FsmEventCode uint16
}

// PeerUpMessage reports a session establishing (RFC 7854 §4.10).
type PeerUpMessage struct {
	Peer         PeerHeader
	LocalAddr    netip.Addr
	LocalPort    uint16
	RemotePort   uint16
	SentOpen     bgp.OpenMessage
	ReceivedOpen bgp.OpenMessage
	TableName    string
}

// InitiationMessage announces the monitored router's identity (RFC 7854
// §4.3); SysDescr/SysName come from their dedicated TLVs, Other carries
// anything else by TLV type.
type InitiationMessage struct {
	SysDescr string
	SysName  string
	Other    map[uint16]string
}

// TerminationMessage announces a monitoring session closing (RFC 7854
// §4.5). Reason is the TLV type of whichever termination-reason TLV was
// present (commonly 0, administratively closed); Info carries its string
// payload.
type TerminationMessage struct {
	Reason uint16
	Info   string
}

// RouteMirroringMessage replays a BGP message the router could not parse
// itself, or reports that messages were lost (RFC 7854 §4.7). Payload is
// the raw BGP message bytes when present; Info carries the textual
// notification when the router is instead reporting a message-lost
// condition.
type RouteMirroringMessage struct {
	Peer    PeerHeader
	Payload []byte
	Info    string
}

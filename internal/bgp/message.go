package bgp

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/wire"
)

// MessageType is a BGP-4 message type code (RFC 4271 §4.1).
type MessageType uint8

const (
	MsgOpen         MessageType = 1
	MsgUpdate       MessageType = 2
	MsgNotification MessageType = 3
	MsgKeepalive    MessageType = 4
	MsgRouteRefresh MessageType = 5
)

// HeaderLen is the fixed BGP message header size: 16-byte marker, 2-byte
// length, 1-byte type.
const HeaderLen = 19

// Header is the common BGP message header.
type Header struct {
	Marker [16]byte
	Length uint16
	Type   MessageType
}

func DecodeHeader(r *wire.Reader) (Header, error) {
	m, err := r.Bytes(16)
	if err != nil {
		return Header{}, wire.NewParseError("message header truncated")
	}
	length, err := r.U16()
	if err != nil {
		return Header{}, wire.NewParseError("message header truncated")
	}
	typ, err := r.U8()
	if err != nil {
		return Header{}, wire.NewParseError("message header truncated")
	}
	if int(length) < HeaderLen {
		return Header{}, wire.NewParseError("message length %d shorter than header", length)
	}
	var h Header
	copy(h.Marker[:], m)
	h.Length = length
	h.Type = MessageType(typ)
	return h, nil
}

func EncodeHeader(w *wire.Writer, h Header) {
	if h.Marker == ([16]byte{}) {
		for i := 0; i < 16; i++ {
			w.U8(0xFF)
		}
	} else {
		w.Write(h.Marker[:])
	}
	w.U16(h.Length)
	w.U8(uint8(h.Type))
}

// Capability is one BGP OPEN optional parameter capability (RFC 5492).
type Capability struct {
	Code  uint8
	Value []byte
}

const (
	CapMultiprotocol uint8 = 1
	CapRouteRefresh  uint8 = 2
	CapAs4           uint8 = 65
	CapAddPath       uint8 = 69
)

// Multiprotocol decodes a MULTIPROTOCOL_EXTENSIONS capability (AFI/SAFI).
func (c Capability) Multiprotocol() (afi uint16, safi uint8, ok bool) {
	if c.Code != CapMultiprotocol || len(c.Value) < 4 {
		return 0, 0, false
	}
	return beU16(c.Value[0:2]), c.Value[3], true
}

// As4Asn decodes a FOUR_OCTET_AS capability's advertised ASN.
func (c Capability) As4Asn() (uint32, bool) {
	if c.Code != CapAs4 || len(c.Value) < 4 {
		return 0, false
	}
	return beU32(c.Value[0:4]), true
}

// AddPathEntry is one (AFI, SAFI, send/receive) tuple inside an ADD-PATH
// capability (RFC 7911).
type AddPathEntry struct {
	Afi     uint16
	Safi    uint8
	Send    bool
	Receive bool
}

// AddPathEntries decodes an ADD_PATH capability into its per-family entries.
func (c Capability) AddPathEntries() []AddPathEntry {
	if c.Code != CapAddPath {
		return nil
	}
	var out []AddPathEntry
	for i := 0; i+4 <= len(c.Value); i += 4 {
		dir := c.Value[i+3]
		out = append(out, AddPathEntry{
			Afi:     beU16(c.Value[i : i+2]),
			Safi:    c.Value[i+2],
			Send:    dir&0x1 != 0,
			Receive: dir&0x2 != 0,
		})
	}
	return out
}

// OpenMessage is a decoded BGP OPEN (RFC 4271 §4.2).
type OpenMessage struct {
	Version      uint8
	MyAsn        uint16 // always the 2-byte field; use Capabilities for the 4-byte ASN
	HoldTime     uint16
	BgpId        netip.Addr
	Capabilities []Capability
}

// Asn4 returns the 4-byte ASN advertised via capability, falling back to
// the 2-byte MyAsn field when no FOUR_OCTET_AS capability is present.
func (o OpenMessage) Asn4() uint32 {
	for _, c := range o.Capabilities {
		if asn, ok := c.As4Asn(); ok {
			return asn
		}
	}
	return uint32(o.MyAsn)
}

func DecodeOpen(body []byte) (OpenMessage, error) {
	r := wire.NewReader(body)
	version, err := r.U8()
	if err != nil {
		return OpenMessage{}, wire.NewParseError("OPEN: truncated version")
	}
	myAsn, err := r.U16()
	if err != nil {
		return OpenMessage{}, wire.NewParseError("OPEN: truncated ASN")
	}
	holdTime, err := r.U16()
	if err != nil {
		return OpenMessage{}, wire.NewParseError("OPEN: truncated hold time")
	}
	idBytes, err := r.Bytes(4)
	if err != nil {
		return OpenMessage{}, wire.NewParseError("OPEN: truncated BGP id")
	}
	var id [4]byte
	copy(id[:], idBytes)

	optLen, err := r.U8()
	if err != nil {
		return OpenMessage{}, wire.NewParseError("OPEN: truncated opt param length")
	}
	optBytes, err := r.Bytes(int(optLen))
	if err != nil {
		return OpenMessage{}, wire.NewParseError("OPEN: truncated opt params")
	}

	caps, err := decodeOptionalParams(optBytes)
	if err != nil {
		return OpenMessage{}, err
	}

	return OpenMessage{
		Version:      version,
		MyAsn:        myAsn,
		HoldTime:     holdTime,
		BgpId:        netip.AddrFrom4(id),
		Capabilities: caps,
	}, nil
}

// decodeOptionalParams walks BGP OPEN optional parameters (RFC 4271 §4.2
// and the RFC 9072 extended-length variant), flattening every CAPABILITY
// parameter's individual capabilities into one list.
func decodeOptionalParams(body []byte) ([]Capability, error) {
	r := wire.NewReader(body)
	var caps []Capability
	for r.Len() > 0 {
		if r.Len() >= 3 {
			// RFC 9072 extended optional parameter: type 255 signals that a
			// 2-byte length follows instead of 1-byte.
			peek := r.Rest()[0]
			if peek == 255 {
				if _, err := r.U8(); err != nil {
					return nil, err
				}
			}
		}
		paramType, err := r.U8()
		if err != nil {
			return nil, wire.NewParseError("OPEN: truncated opt param header")
		}
		paramLen, err := r.U8()
		if err != nil {
			return nil, wire.NewParseError("OPEN: truncated opt param length")
		}
		paramBody, err := r.Bytes(int(paramLen))
		if err != nil {
			return nil, wire.NewParseError("OPEN: truncated opt param body")
		}
		if paramType != 2 { // not a CAPABILITY parameter
			continue
		}
		cr := wire.NewReader(paramBody)
		for cr.Len() > 0 {
			code, err := cr.U8()
			if err != nil {
				return nil, wire.NewParseError("OPEN: truncated capability header")
			}
			l, err := cr.U8()
			if err != nil {
				return nil, wire.NewParseError("OPEN: truncated capability length")
			}
			val, err := cr.Bytes(int(l))
			if err != nil {
				return nil, wire.NewParseError("OPEN: truncated capability value")
			}
			caps = append(caps, Capability{Code: code, Value: append([]byte{}, val...)})
		}
	}
	return caps, nil
}

// UpdateMessage is a decoded BGP UPDATE (RFC 4271 §4.3).
type UpdateMessage struct {
	Withdrawn  []NetworkPrefix
	Attributes Attributes
	Nlri       []NetworkPrefix
}

func DecodeUpdate(body []byte, ctx AttrContext) (UpdateMessage, error) {
	r := wire.NewReader(body)
	withdrawnBytes, err := r.LengthPrefixed16()
	if err != nil {
		return UpdateMessage{}, wire.NewParseError("UPDATE: truncated withdrawn routes length")
	}
	withdrawn, err := DecodePrefixList(wire.NewReader(withdrawnBytes), false, ctx.AddPath)
	if err != nil {
		return UpdateMessage{}, err
	}

	attrBytes, err := r.LengthPrefixed16()
	if err != nil {
		return UpdateMessage{}, wire.NewParseError("UPDATE: truncated path attribute length")
	}
	attrs, err := DecodeAttributes(wire.NewReader(attrBytes), ctx)
	if err != nil {
		return UpdateMessage{}, err
	}

	nlri, err := DecodePrefixList(r, false, ctx.AddPath)
	if err != nil {
		return UpdateMessage{}, err
	}

	return UpdateMessage{Withdrawn: withdrawn, Attributes: attrs, Nlri: nlri}, nil
}

func EncodeUpdate(w *wire.Writer, m UpdateMessage, ctx AttrContext) {
	wr := wire.NewWriter(64)
	for _, p := range m.Withdrawn {
		EncodePrefix(wr, p, ctx.AddPath)
	}
	w.U16(uint16(wr.Len()))
	w.Write(wr.Bytes())

	ar := wire.NewWriter(64)
	EncodeAttributes(ar, m.Attributes, ctx)
	w.U16(uint16(ar.Len()))
	w.Write(ar.Bytes())

	for _, p := range m.Nlri {
		EncodePrefix(w, p, ctx.AddPath)
	}
}

// NotificationMessage is a decoded BGP NOTIFICATION (RFC 4271 §4.5).
type NotificationMessage struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

func DecodeNotification(body []byte) (NotificationMessage, error) {
	if len(body) < 2 {
		return NotificationMessage{}, wire.NewParseError("NOTIFICATION: truncated")
	}
	return NotificationMessage{Code: body[0], Subcode: body[1], Data: append([]byte{}, body[2:]...)}, nil
}

func EncodeNotification(w *wire.Writer, n NotificationMessage) {
	w.U8(n.Code)
	w.U8(n.Subcode)
	w.Write(n.Data)
}

var notificationCodeNames = map[uint8]string{
	1: "MessageHeaderError",
	2: "OpenMessageError",
	3: "UpdateMessageError",
	4: "HoldTimerExpired",
	5: "FiniteStateMachineError",
	6: "Cease",
}

// CodeName returns the IANA name of the NOTIFICATION error code, or
// "Unknown" for anything outside the registry.
func (n NotificationMessage) CodeName() string {
	if name, ok := notificationCodeNames[n.Code]; ok {
		return name
	}
	return "Unknown"
}

// Package rtr decodes and encodes RPKI-to-Router protocol PDUs (RFC 6810
// version 0, RFC 8210 version 1). It owns no socket and runs no session
// state machine: callers read length-delimited PDUs off their own
// connection and hand the bytes here one at a time.
package rtr

import (
	"fmt"
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/wire"
)

type PDUType uint8

const (
	PDUTypeSerialNotify PDUType = 0
	PDUTypeSerialQuery  PDUType = 1
	PDUTypeResetQuery   PDUType = 2
	PDUTypeCacheResponse PDUType = 3
	PDUTypeIPv4Prefix   PDUType = 4
	PDUTypeIPv6Prefix   PDUType = 6
	PDUTypeEndOfData    PDUType = 7
	PDUTypeCacheReset   PDUType = 8
	PDUTypeRouterKey    PDUType = 9
	PDUTypeErrorReport  PDUType = 10
)

// HeaderLen is the fixed 8-byte header every PDU starts with: version (1),
// pdu type (1), session id or zero (2), length (4, total including header).
const HeaderLen = 8

type Flags uint8

const FlagAnnounce Flags = 1 // bit 0 set: announcement; clear: withdrawal

// PDU is the closed set of RTR message bodies this codec understands.
type PDU interface {
	pdu()
	Type() PDUType
}

type SerialNotifyPDU struct {
	Version   uint8
	SessionID uint16
	Serial    uint32
}

type SerialQueryPDU struct {
	Version   uint8
	SessionID uint16
	Serial    uint32
}

type ResetQueryPDU struct {
	Version uint8
}

type CacheResponsePDU struct {
	Version   uint8
	SessionID uint16
}

type IPv4PrefixPDU struct {
	Version  uint8
	Flags    Flags
	PrefixLen uint8
	MaxLen   uint8
	Prefix   netip.Addr
	Asn      uint32
}

type IPv6PrefixPDU struct {
	Version  uint8
	Flags    Flags
	PrefixLen uint8
	MaxLen   uint8
	Prefix   netip.Addr
	Asn      uint32
}

type EndOfDataPDU struct {
	Version      uint8
	SessionID    uint16
	Serial       uint32
	RefreshInterval uint32 // version 1 only; zero under version 0
	RetryInterval   uint32
	ExpireInterval  uint32
}

type CacheResetPDU struct {
	Version uint8
}

type RouterKeyPDU struct {
	Version       uint8
	Flags         Flags
	SubjectKeyID  [20]byte
	Asn           uint32
	SubjectPublicKeyInfo []byte
}

type ErrorReportPDU struct {
	Version     uint8
	ErrorCode   uint16
	PDUCopy     []byte
	ErrorText   string
}

func (SerialNotifyPDU) pdu()   {}
func (SerialQueryPDU) pdu()    {}
func (ResetQueryPDU) pdu()     {}
func (CacheResponsePDU) pdu()  {}
func (IPv4PrefixPDU) pdu()     {}
func (IPv6PrefixPDU) pdu()     {}
func (EndOfDataPDU) pdu()      {}
func (CacheResetPDU) pdu()     {}
func (RouterKeyPDU) pdu()      {}
func (ErrorReportPDU) pdu()    {}

func (SerialNotifyPDU) Type() PDUType  { return PDUTypeSerialNotify }
func (SerialQueryPDU) Type() PDUType   { return PDUTypeSerialQuery }
func (ResetQueryPDU) Type() PDUType    { return PDUTypeResetQuery }
func (CacheResponsePDU) Type() PDUType { return PDUTypeCacheResponse }
func (IPv4PrefixPDU) Type() PDUType    { return PDUTypeIPv4Prefix }
func (IPv6PrefixPDU) Type() PDUType    { return PDUTypeIPv6Prefix }
func (EndOfDataPDU) Type() PDUType     { return PDUTypeEndOfData }
func (CacheResetPDU) Type() PDUType    { return PDUTypeCacheReset }
func (RouterKeyPDU) Type() PDUType     { return PDUTypeRouterKey }
func (ErrorReportPDU) Type() PDUType   { return PDUTypeErrorReport }

// PeekLength reads the 4-byte total length field out of an 8-byte header
// without consuming it, so a caller reading off a socket knows how many
// more bytes to buffer before calling Decode.
func PeekLength(header []byte) (uint32, error) {
	if len(header) < HeaderLen {
		return 0, wire.NewParseError("rtr: header shorter than 8 bytes")
	}
	r := wire.NewReader(header)
	r.Skip(4)
	return r.U32()
}

// Decode parses exactly one complete PDU (header + body); data must be
// precisely `length` bytes as declared in the header, neither more nor
// fewer, matching the "mismatches are ParseError" rule.
func Decode(data []byte) (PDU, error) {
	if len(data) < HeaderLen {
		return nil, wire.NewParseError("rtr: pdu shorter than header")
	}
	r := wire.NewReader(data)
	version, err := r.U8()
	if err != nil {
		return nil, err
	}
	typ, err := r.U8()
	if err != nil {
		return nil, err
	}
	sessionOrZero, err := r.U16()
	if err != nil {
		return nil, err
	}
	length, err := r.U32()
	if err != nil {
		return nil, err
	}
	if int(length) != len(data) {
		return nil, wire.NewParseError("rtr: pdu declares length %d but got %d bytes", length, len(data))
	}

	switch PDUType(typ) {
	case PDUTypeSerialNotify:
		serial, err := r.U32()
		if err != nil {
			return nil, err
		}
		return SerialNotifyPDU{Version: version, SessionID: sessionOrZero, Serial: serial}, nil
	case PDUTypeSerialQuery:
		serial, err := r.U32()
		if err != nil {
			return nil, err
		}
		return SerialQueryPDU{Version: version, SessionID: sessionOrZero, Serial: serial}, nil
	case PDUTypeResetQuery:
		return ResetQueryPDU{Version: version}, nil
	case PDUTypeCacheResponse:
		return CacheResponsePDU{Version: version, SessionID: sessionOrZero}, nil
	case PDUTypeIPv4Prefix:
		return decodeIPv4Prefix(r, version)
	case PDUTypeIPv6Prefix:
		return decodeIPv6Prefix(r, version)
	case PDUTypeEndOfData:
		return decodeEndOfData(r, version, sessionOrZero)
	case PDUTypeCacheReset:
		return CacheResetPDU{Version: version}, nil
	case PDUTypeRouterKey:
		return decodeRouterKey(r, version, length)
	case PDUTypeErrorReport:
		return decodeErrorReport(r, version, sessionOrZero)
	default:
		return nil, wire.NewParseError("rtr: unknown pdu type %d", typ)
	}
}

func decodeIPv4Prefix(r *wire.Reader, version uint8) (PDU, error) {
	flags, err := r.U8()
	if err != nil {
		return nil, err
	}
	prefixLen, err := r.U8()
	if err != nil {
		return nil, err
	}
	maxLen, err := r.U8()
	if err != nil {
		return nil, err
	}
	r.Skip(1) // zero
	addrBytes, err := r.Bytes(4)
	if err != nil {
		return nil, err
	}
	asn, err := r.U32()
	if err != nil {
		return nil, err
	}
	addr, ok := netip.AddrFromSlice(addrBytes)
	if !ok {
		return nil, wire.NewParseError("rtr: bad ipv4 prefix address")
	}
	return IPv4PrefixPDU{Version: version, Flags: Flags(flags), PrefixLen: prefixLen, MaxLen: maxLen, Prefix: addr, Asn: asn}, nil
}

func decodeIPv6Prefix(r *wire.Reader, version uint8) (PDU, error) {
	flags, err := r.U8()
	if err != nil {
		return nil, err
	}
	prefixLen, err := r.U8()
	if err != nil {
		return nil, err
	}
	maxLen, err := r.U8()
	if err != nil {
		return nil, err
	}
	r.Skip(1)
	addrBytes, err := r.Bytes(16)
	if err != nil {
		return nil, err
	}
	asn, err := r.U32()
	if err != nil {
		return nil, err
	}
	addr, ok := netip.AddrFromSlice(addrBytes)
	if !ok {
		return nil, wire.NewParseError("rtr: bad ipv6 prefix address")
	}
	return IPv6PrefixPDU{Version: version, Flags: Flags(flags), PrefixLen: prefixLen, MaxLen: maxLen, Prefix: addr, Asn: asn}, nil
}

func decodeEndOfData(r *wire.Reader, version uint8, sessionID uint16) (PDU, error) {
	serial, err := r.U32()
	if err != nil {
		return nil, err
	}
	pdu := EndOfDataPDU{Version: version, SessionID: sessionID, Serial: serial}
	if version >= 1 {
		refresh, err := r.U32()
		if err != nil {
			return nil, err
		}
		retry, err := r.U32()
		if err != nil {
			return nil, err
		}
		expire, err := r.U32()
		if err != nil {
			return nil, err
		}
		pdu.RefreshInterval, pdu.RetryInterval, pdu.ExpireInterval = refresh, retry, expire
	}
	return pdu, nil
}

func decodeRouterKey(r *wire.Reader, version uint8, length uint32) (PDU, error) {
	flags, err := r.U8()
	if err != nil {
		return nil, err
	}
	zero, err := r.U8()
	if err != nil {
		return nil, err
	}
	_ = zero
	ski, err := r.Bytes(20)
	if err != nil {
		return nil, err
	}
	asn, err := r.U32()
	if err != nil {
		return nil, err
	}
	remaining := int(length) - HeaderLen - 1 - 1 - 20 - 4
	if remaining < 0 {
		return nil, wire.NewParseError("rtr: router key pdu too short for subject public key")
	}
	spki, err := r.Bytes(remaining)
	if err != nil {
		return nil, err
	}
	pdu := RouterKeyPDU{Version: version, Flags: Flags(flags), Asn: asn, SubjectPublicKeyInfo: append([]byte(nil), spki...)}
	copy(pdu.SubjectKeyID[:], ski)
	return pdu, nil
}

func decodeErrorReport(r *wire.Reader, version uint8, errorCode uint16) (PDU, error) {
	pduLen, err := r.U32()
	if err != nil {
		return nil, err
	}
	pduCopy, err := r.Bytes(int(pduLen))
	if err != nil {
		return nil, err
	}
	textLen, err := r.U32()
	if err != nil {
		return nil, err
	}
	textBytes, err := r.Bytes(int(textLen))
	if err != nil {
		return nil, err
	}
	return ErrorReportPDU{Version: version, ErrorCode: errorCode, PDUCopy: append([]byte(nil), pduCopy...), ErrorText: string(textBytes)}, nil
}

// Encode serialises one PDU to wire bytes including its 8-byte header.
func Encode(p PDU) ([]byte, error) {
	switch v := p.(type) {
	case SerialNotifyPDU:
		w := wire.NewWriter(HeaderLen + 4)
		writeHeader(w, v.Version, PDUTypeSerialNotify, v.SessionID, HeaderLen+4)
		w.U32(v.Serial)
		return w.Bytes(), nil
	case SerialQueryPDU:
		w := wire.NewWriter(HeaderLen + 4)
		writeHeader(w, v.Version, PDUTypeSerialQuery, v.SessionID, HeaderLen+4)
		w.U32(v.Serial)
		return w.Bytes(), nil
	case ResetQueryPDU:
		w := wire.NewWriter(HeaderLen)
		writeHeader(w, v.Version, PDUTypeResetQuery, 0, HeaderLen)
		return w.Bytes(), nil
	case CacheResponsePDU:
		w := wire.NewWriter(HeaderLen)
		writeHeader(w, v.Version, PDUTypeCacheResponse, v.SessionID, HeaderLen)
		return w.Bytes(), nil
	case IPv4PrefixPDU:
		total := HeaderLen + 12
		w := wire.NewWriter(total)
		writeHeader(w, v.Version, PDUTypeIPv4Prefix, 0, total)
		w.U8(uint8(v.Flags))
		w.U8(v.PrefixLen)
		w.U8(v.MaxLen)
		w.U8(0)
		addr4 := v.Prefix.As4()
		w.Write(addr4[:])
		w.U32(v.Asn)
		return w.Bytes(), nil
	case IPv6PrefixPDU:
		total := HeaderLen + 24
		w := wire.NewWriter(total)
		writeHeader(w, v.Version, PDUTypeIPv6Prefix, 0, total)
		w.U8(uint8(v.Flags))
		w.U8(v.PrefixLen)
		w.U8(v.MaxLen)
		w.U8(0)
		addr16 := v.Prefix.As16()
		w.Write(addr16[:])
		w.U32(v.Asn)
		return w.Bytes(), nil
	case EndOfDataPDU:
		total := HeaderLen + 4
		if v.Version >= 1 {
			total += 12
		}
		w := wire.NewWriter(total)
		writeHeader(w, v.Version, PDUTypeEndOfData, v.SessionID, total)
		w.U32(v.Serial)
		if v.Version >= 1 {
			w.U32(v.RefreshInterval)
			w.U32(v.RetryInterval)
			w.U32(v.ExpireInterval)
		}
		return w.Bytes(), nil
	case CacheResetPDU:
		w := wire.NewWriter(HeaderLen)
		writeHeader(w, v.Version, PDUTypeCacheReset, 0, HeaderLen)
		return w.Bytes(), nil
	case RouterKeyPDU:
		total := HeaderLen + 1 + 1 + 20 + 4 + len(v.SubjectPublicKeyInfo)
		w := wire.NewWriter(total)
		writeHeader(w, v.Version, PDUTypeRouterKey, 0, total)
		w.U8(uint8(v.Flags))
		w.U8(0)
		w.Write(v.SubjectKeyID[:])
		w.U32(v.Asn)
		w.Write(v.SubjectPublicKeyInfo)
		return w.Bytes(), nil
	case ErrorReportPDU:
		total := HeaderLen + 4 + len(v.PDUCopy) + 4 + len(v.ErrorText)
		w := wire.NewWriter(total)
		writeHeader(w, v.Version, PDUTypeErrorReport, v.ErrorCode, total)
		w.U32(uint32(len(v.PDUCopy)))
		w.Write(v.PDUCopy)
		w.U32(uint32(len(v.ErrorText)))
		w.Write([]byte(v.ErrorText))
		return w.Bytes(), nil
	default:
		return nil, fmt.Errorf("rtr: unknown pdu type %T", p)
	}
}

func writeHeader(w *wire.Writer, version uint8, typ PDUType, sessionOrZero uint16, length int) {
	w.U8(version)
	w.U8(uint8(typ))
	w.U16(sessionOrZero)
	w.U32(uint32(length))
}

package mrtformat

import "github.com/route-beacon/mrtkit/internal/wire"

// Body is implemented by every decoded MRT record body this codec
// understands. As with bgp.AttrValue, the set is closed by convention.
type Body interface {
	mrtBody()
}

func (PeerIndexTable) mrtBody()    {}
func (RibSubtypeRecord) mrtBody()  {}
func (TableDumpRecord) mrtBody()   {}
func (Bgp4mpStateChange) mrtBody() {}
func (Bgp4mpMessage) mrtBody()     {}

// MrtRecord is one fully-decoded MRT record: its common header plus a
// typed body.
type MrtRecord struct {
	Header CommonHeader
	Body   Body
}

// DecodeRecord decodes one record's header and dispatches its body by
// (Type, Subtype). Unrecognized Type/Subtype combinations (ISIS, OSPFv3,
// the legacy RIP dumps) are out of scope for this codec (§ Non-goals);
// callers that need to skip them should use the raw iterator instead.
func DecodeRecord(r *wire.Reader) (MrtRecord, error) {
	h, err := DecodeCommonHeader(r)
	if err != nil {
		return MrtRecord{}, err
	}
	bodyBytes, err := r.Bytes(int(h.Length))
	if err != nil {
		return MrtRecord{}, wire.NewParseError("mrt: record body truncated: need %d, have %d", h.Length, r.Len())
	}

	body, err := decodeBody(h, bodyBytes)
	if err != nil {
		return MrtRecord{}, err
	}
	return MrtRecord{Header: h, Body: body}, nil
}

// DecodeBody dispatches a record body by (Type, Subtype) without also
// decoding the common header — used by streaming callers that already
// read the header off the wire to learn the body length.
func DecodeBody(h CommonHeader, bodyBytes []byte) (Body, error) {
	return decodeBody(h, bodyBytes)
}

func decodeBody(h CommonHeader, bodyBytes []byte) (Body, error) {
	switch h.Type {
	case TypeTableDump:
		return DecodeTableDumpRecord(h.Subtype, bodyBytes)
	case TypeTableDumpV2:
		switch h.Subtype {
		case SubtypePeerIndexTable:
			return DecodePeerIndexTable(bodyBytes)
		default:
			return DecodeRibSubtypeRecord(h.Subtype, bodyBytes)
		}
	case TypeBgp4mp, TypeBgp4mpEt:
		switch h.Subtype {
		case SubtypeBgp4mpStateChange, SubtypeBgp4mpStateChangeAs4:
			return DecodeBgp4mpStateChange(h.Subtype, bodyBytes)
		default:
			return DecodeBgp4mpMessage(h.Subtype, bodyBytes)
		}
	default:
		return nil, wire.NewParseError("mrt: unsupported record type %d/%d", h.Type, h.Subtype)
	}
}

// EncodeRecord writes rec back to wire form.
func EncodeRecord(w *wire.Writer, rec MrtRecord) {
	body := wire.NewWriter(64)
	switch b := rec.Body.(type) {
	case PeerIndexTable:
		EncodePeerIndexTable(body, b)
	case RibSubtypeRecord:
		EncodeRibSubtypeRecord(body, b)
	case TableDumpRecord:
		EncodeTableDumpRecord(body, b)
	case Bgp4mpStateChange:
		EncodeBgp4mpStateChange(body, rec.Header.Subtype, b)
	case Bgp4mpMessage:
		EncodeBgp4mpMessage(body, rec.Header.Subtype, b)
	}
	EncodeCommonHeader(w, rec.Header, body.Len())
	w.Write(body.Bytes())
}

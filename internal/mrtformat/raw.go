package mrtformat

import "github.com/route-beacon/mrtkit/internal/wire"

// RawRecord is a common header plus its undecoded body. This is the unit
// the raw iterator flavor yields: enough to skip forward through an
// archive, or to re-emit a record unmodified, without paying for body
// decode.
type RawRecord struct {
	Header CommonHeader
	Body   []byte
}

// DecodeRawRecord reads one record's header and body from r, leaving the
// cursor positioned at the start of the next record.
func DecodeRawRecord(r *wire.Reader) (RawRecord, error) {
	h, err := DecodeCommonHeader(r)
	if err != nil {
		return RawRecord{}, err
	}
	body, err := r.Bytes(int(h.Length))
	if err != nil {
		return RawRecord{}, wire.NewParseError("mrt: record body truncated: need %d, have %d", h.Length, r.Len())
	}
	return RawRecord{Header: h, Body: body}, nil
}

// Encode writes the record back out verbatim.
func (rr RawRecord) Encode(w *wire.Writer) {
	EncodeCommonHeader(w, rr.Header, len(rr.Body))
	w.Write(rr.Body)
}

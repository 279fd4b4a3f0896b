// Package iter provides the lazy, range-over-func decoder entry points:
// Raw (undecoded records), Records (strict, stops at first error),
// FallibleRecords (keeps going past a single bad record), Updates (only
// the live BGP4MP UPDATE traffic), and Elems (fully flattened BgpElem
// rows). All five walk the same underlying byte stream once; none loads
// the whole archive into memory.
package iter

import (
	"bufio"
	"encoding/binary"
	"io"
	"net/netip"
	stditer "iter"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/mrtformat"
	"github.com/route-beacon/mrtkit/internal/wire"
)

// Decoder reads one MRT archive from an underlying, already-decompressed
// byte stream. It never looks at the source's compression or transport;
// that is the ingest layer's job (§ Non-collaborators).
type Decoder struct {
	br   *bufio.Reader
	read int64
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{br: bufio.NewReaderSize(r, 64*1024)}
}

// Offset returns the number of bytes consumed from the underlying stream
// so far.
func (d *Decoder) Offset() int64 { return d.read }

func (d *Decoder) readFull(buf []byte) error {
	n, err := io.ReadFull(d.br, buf)
	d.read += int64(n)
	return err
}

// readCommonHeader reads exactly one record's common header, including
// the extended-timestamp microsecond field when the record's type calls
// for one, without needing the record's body in memory yet.
func (d *Decoder) readCommonHeader() (mrtformat.CommonHeader, error) {
	base := make([]byte, mrtformat.CommonHeaderLen)
	if err := d.readFull(base); err != nil {
		return mrtformat.CommonHeader{}, err
	}
	typ := binary.BigEndian.Uint16(base[4:6])
	full := base
	if mrtformat.Type(typ) == mrtformat.TypeBgp4mpEt {
		extra := make([]byte, 4)
		if err := d.readFull(extra); err != nil {
			return mrtformat.CommonHeader{}, err
		}
		full = append(full, extra...)
	}
	return mrtformat.DecodeCommonHeader(wire.NewReader(full))
}

// Raw yields every record's header plus undecoded body.
func (d *Decoder) Raw() stditer.Seq2[mrtformat.RawRecord, error] {
	return func(yield func(mrtformat.RawRecord, error) bool) {
		for {
			h, err := d.readCommonHeader()
			if err != nil {
				if err != io.EOF {
					yield(mrtformat.RawRecord{}, err)
				}
				return
			}
			body := make([]byte, h.Length)
			if err := d.readFull(body); err != nil {
				yield(mrtformat.RawRecord{}, err)
				return
			}
			if !yield(mrtformat.RawRecord{Header: h, Body: body}, nil) {
				return
			}
		}
	}
}

// Records yields fully-decoded records, stopping at the first decode
// error (after yielding it).
func (d *Decoder) Records() stditer.Seq2[mrtformat.MrtRecord, error] {
	return func(yield func(mrtformat.MrtRecord, error) bool) {
		for raw, err := range d.Raw() {
			if err != nil {
				yield(mrtformat.MrtRecord{}, err)
				return
			}
			body, err := mrtformat.DecodeBody(raw.Header, raw.Body)
			if err != nil {
				yield(mrtformat.MrtRecord{}, err)
				return
			}
			if !yield(mrtformat.MrtRecord{Header: raw.Header, Body: body}, nil) {
				return
			}
		}
	}
}

// FallibleResult is one FallibleRecords item: either a decoded record or
// an error, never both meaningfully populated.
type FallibleResult struct {
	Record mrtformat.MrtRecord
	Err    error
}

// FallibleRecords yields every record the archive's framing allows it to
// walk, even when an individual record's body fails to decode (its
// Length is still known, so the stream position survives the error and
// decoding resumes at the next record). A framing-level error — a
// corrupt header, truncated stream — still ends iteration, since at that
// point the next record's start position is unknown.
func (d *Decoder) FallibleRecords() stditer.Seq[FallibleResult] {
	return func(yield func(FallibleResult) bool) {
		for raw, err := range d.Raw() {
			if err != nil {
				if err != io.EOF {
					yield(FallibleResult{Err: err})
				}
				return
			}
			body, err := mrtformat.DecodeBody(raw.Header, raw.Body)
			if err != nil {
				if !yield(FallibleResult{Record: mrtformat.MrtRecord{Header: raw.Header}, Err: err}) {
					return
				}
				continue
			}
			if !yield(FallibleResult{Record: mrtformat.MrtRecord{Header: raw.Header, Body: body}}) {
				return
			}
		}
	}
}

// UpdateEvent is one live BGP UPDATE observed on a BGP4MP session.
type UpdateEvent struct {
	Timestamp float64
	PeerIp    netip.Addr
	PeerAsn   bgp.Asn
	Update    bgp.UpdateMessage
}

// Updates yields only BGP4MP_MESSAGE(_AS4/_LOCAL/_ADDPATH) records whose
// encapsulated BGP message is an UPDATE; every other record type
// (PEER_INDEX_TABLE, RIB dumps, KEEPALIVE/OPEN/NOTIFICATION, state
// changes) is skipped.
func (d *Decoder) Updates() stditer.Seq2[UpdateEvent, error] {
	return func(yield func(UpdateEvent, error) bool) {
		for rec, err := range d.Records() {
			if err != nil {
				yield(UpdateEvent{}, err)
				return
			}
			msg, ok := rec.Body.(mrtformat.Bgp4mpMessage)
			if !ok {
				continue
			}
			upd, isUpdate, err := msg.Update()
			if err != nil {
				if !yield(UpdateEvent{}, err) {
					return
				}
				continue
			}
			if !isUpdate {
				continue
			}
			ev := UpdateEvent{Timestamp: rec.Header.TimestampSeconds(), PeerIp: msg.PeerIp, PeerAsn: msg.PeerAsn, Update: upd}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Elems yields the fully flattened BgpElem view, tracking whichever
// PEER_INDEX_TABLE most recently preceded a TABLE_DUMP_V2 RIB record so
// peer indices resolve correctly.
func (d *Decoder) Elems() stditer.Seq2[bgpelem.BgpElem, error] {
	return func(yield func(bgpelem.BgpElem, error) bool) {
		var table mrtformat.PeerIndexTable
		for rec, err := range d.Records() {
			if err != nil {
				yield(bgpelem.BgpElem{}, err)
				return
			}
			switch b := rec.Body.(type) {
			case mrtformat.PeerIndexTable:
				table = b
			case mrtformat.RibSubtypeRecord:
				for _, e := range bgpelem.FromRib(rec.Header.TimestampSeconds(), table, b) {
					if !yield(e, nil) {
						return
					}
				}
			case mrtformat.TableDumpRecord:
				if !yield(bgpelem.FromTableDump(rec.Header.TimestampSeconds(), b), nil) {
					return
				}
			case mrtformat.Bgp4mpMessage:
				elems, err := bgpelem.FromBgp4mpMessage(rec.Header.TimestampSeconds(), b)
				if err != nil {
					if !yield(bgpelem.BgpElem{}, err) {
						return
					}
					continue
				}
				for _, e := range elems {
					if !yield(e, nil) {
						return
					}
				}
			}
		}
	}
}

// CoreDumpEntry is one CoreDumper summary row: enough to audit an
// archive's framing without paying for attribute decode.
type CoreDumpEntry struct {
	Offset  int64
	Header  mrtformat.CommonHeader
	BodyLen int
}

// CoreDumper walks an archive's raw framing only, yielding one summary
// entry per record: a fast check that an archive's framing holds together
// (every length field adds up) without building the typed attribute model
// at all. Record types and subtypes are not checked, and nothing is
// written to disk; it stops at the first framing error.
func (d *Decoder) CoreDumper() stditer.Seq2[CoreDumpEntry, error] {
	return func(yield func(CoreDumpEntry, error) bool) {
		for raw, err := range d.Raw() {
			if err != nil {
				yield(CoreDumpEntry{}, err)
				return
			}
			entry := CoreDumpEntry{Offset: d.read - mrtformat.CommonHeaderLen - int64(len(raw.Body)), Header: raw.Header, BodyLen: len(raw.Body)}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

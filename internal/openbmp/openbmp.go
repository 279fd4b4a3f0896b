// Package openbmp strips the OpenBMP collector framing that wraps a BMP
// message on the wire — the v2 10-byte header used by the OpenBMP
// collector itself, and the "OBMP"-magic v1.7 binary header goBMP emits
// when run with -bmp-raw=true — leaving the plain BMP message for
// internal/bmp to decode.
package openbmp

import (
	"math"

	"github.com/route-beacon/mrtkit/internal/wire"
)

const (
	HeaderSize      = 10 // v2: version(2) + collector_hash(4) + msg_len(4)
	versionExpected = 2

	v17Magic      = 0x4F424D50 // "OBMP"
	v17MinHdrSize = 12         // magic(4) + ver(2) + hdr_len(2) + msg_len(4)
)

// DecodeFrame strips an OpenBMP frame and returns the enclosed BMP
// message bytes. It auto-detects the v2 header from the v1.7 binary
// header by checking for the "OBMP" magic. maxPayloadBytes, when
// positive, rejects a frame declaring more payload than that as a
// defense against a corrupt length field driving an oversized
// allocation; 0 disables the check.
func DecodeFrame(data []byte, maxPayloadBytes int) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, wire.NewParseError("openbmp: frame too short (%d bytes, need %d)", len(data), HeaderSize)
	}

	if beU32(data[0:4]) == v17Magic {
		return decodeV17(data, maxPayloadBytes)
	}
	return decodeV2(data, maxPayloadBytes)
}

func decodeV2(data []byte, maxPayloadBytes int) ([]byte, error) {
	version := beU16(data[0:2])
	if version != versionExpected {
		return nil, wire.NewParseError("openbmp: unexpected version %d (expected %d)", version, versionExpected)
	}

	msgLen := beU32(data[6:10])
	if msgLen == 0 {
		return nil, wire.NewParseError("openbmp: msg_len is 0")
	}
	if uint64(msgLen) > uint64(math.MaxInt)-uint64(HeaderSize) {
		return nil, wire.NewParseError("openbmp: msg_len %d overflows addressable size", msgLen)
	}
	if maxPayloadBytes > 0 && int(msgLen) > maxPayloadBytes {
		return nil, wire.NewParseError("openbmp: msg_len %d exceeds max_payload_bytes %d", msgLen, maxPayloadBytes)
	}

	totalLen := HeaderSize + int(msgLen)
	if len(data) < totalLen {
		return nil, wire.NewParseError("openbmp: frame truncated (have %d, need %d)", len(data), totalLen)
	}
	return data[HeaderSize:totalLen], nil
}

// decodeV17 decodes the OpenBMP v1.7 binary header:
//
//	offset 0:    magic "OBMP" (4 bytes)
//	offset 4:    major version (1 byte)
//	offset 5:    minor version (1 byte)
//	offset 6:    header length (2 bytes) — total header size
//	offset 8:    BMP message length (4 bytes) — payload size
//	offset 12+:  flags, type, timestamps, hashes, router info (variable)
//	offset hdrLen: raw BMP message bytes
func decodeV17(data []byte, maxPayloadBytes int) ([]byte, error) {
	if len(data) < v17MinHdrSize {
		return nil, wire.NewParseError("openbmp v1.7: frame too short (%d bytes, need %d)", len(data), v17MinHdrSize)
	}

	hdrLen := beU16(data[6:8])
	msgLen := beU32(data[8:12])

	if hdrLen < v17MinHdrSize {
		return nil, wire.NewParseError("openbmp v1.7: header_len %d is too small", hdrLen)
	}
	if msgLen == 0 {
		return nil, wire.NewParseError("openbmp v1.7: msg_len is 0")
	}
	if uint64(msgLen) > uint64(math.MaxInt)-uint64(hdrLen) {
		return nil, wire.NewParseError("openbmp v1.7: msg_len %d overflows addressable size", msgLen)
	}
	if maxPayloadBytes > 0 && int(msgLen) > maxPayloadBytes {
		return nil, wire.NewParseError("openbmp v1.7: msg_len %d exceeds max_payload_bytes %d", msgLen, maxPayloadBytes)
	}

	totalLen := int(hdrLen) + int(msgLen)
	if len(data) < totalLen {
		return nil, wire.NewParseError("openbmp v1.7: frame truncated (have %d, need %d)", len(data), totalLen)
	}
	return data[hdrLen:totalLen], nil
}

func beU16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

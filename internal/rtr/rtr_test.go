package rtr

import (
	"net/netip"
	"testing"
)

func TestEncodeDecodeRoundTripIPv4Prefix(t *testing.T) {
	pdu := IPv4PrefixPDU{
		Version:   1,
		Flags:     FlagAnnounce,
		PrefixLen: 24,
		MaxLen:    24,
		Prefix:    netip.MustParseAddr("203.0.113.0"),
		Asn:       65010,
	}
	encoded, err := Encode(pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(IPv4PrefixPDU)
	if !ok {
		t.Fatalf("type = %T", decoded)
	}
	if got != pdu {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, pdu)
	}
}

func TestEncodeDecodeRoundTripIPv6Prefix(t *testing.T) {
	pdu := IPv6PrefixPDU{
		Version:   1,
		PrefixLen: 32,
		MaxLen:    48,
		Prefix:    netip.MustParseAddr("2001:db8::"),
		Asn:       65020,
	}
	encoded, err := Encode(pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.(IPv6PrefixPDU) != pdu {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestEndOfDataVersion1CarriesIntervals(t *testing.T) {
	pdu := EndOfDataPDU{Version: 1, SessionID: 7, Serial: 42, RefreshInterval: 3600, RetryInterval: 600, ExpireInterval: 7200}
	encoded, err := Encode(pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.(EndOfDataPDU) != pdu {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestEndOfDataVersion0OmitsIntervals(t *testing.T) {
	pdu := EndOfDataPDU{Version: 0, SessionID: 3, Serial: 9}
	encoded, err := Encode(pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != HeaderLen+4 {
		t.Fatalf("version 0 end-of-data length = %d, want %d", len(encoded), HeaderLen+4)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.(EndOfDataPDU).RefreshInterval != 0 {
		t.Fatal("expected zero refresh interval under version 0")
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	pdu := ResetQueryPDU{Version: 1}
	encoded, err := Encode(pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	encoded = append(encoded, 0xFF) // trailing garbage byte, length no longer matches
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected parse error for length mismatch")
	}
}

func TestErrorReportRoundTrip(t *testing.T) {
	inner, _ := Encode(SerialNotifyPDU{Version: 1, SessionID: 1, Serial: 5})
	pdu := ErrorReportPDU{Version: 1, ErrorCode: 2, PDUCopy: inner, ErrorText: "corrupt data"}
	encoded, err := Encode(pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(ErrorReportPDU)
	if got.ErrorText != "corrupt data" || string(got.PDUCopy) != string(inner) {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestPeekLength(t *testing.T) {
	encoded, _ := Encode(CacheResetPDU{Version: 1})
	n, err := PeekLength(encoded[:HeaderLen])
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if n != uint32(HeaderLen) {
		t.Fatalf("length = %d, want %d", n, HeaderLen)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	encoded, _ := Encode(CacheResetPDU{Version: 1})
	encoded[1] = 99
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected error for unknown pdu type")
	}
}

package bmp

import (
	"testing"

	"github.com/route-beacon/mrtkit/internal/wire"
)

func minimalBgpUpdate() []byte {
	// marker(16) + length(2) + type(1) + withdrawn_len(2) + path_attr_len(2)
	msg := make([]byte, 23)
	for i := 0; i < 16; i++ {
		msg[i] = 0xFF
	}
	msg[16], msg[17] = 0, 23
	msg[18] = 2 // UPDATE
	return msg
}

func buildPerPeerHeader(peerType uint8, flags uint8) []byte {
	w := wire.NewWriter(PerPeerHeaderSize)
	w.U8(peerType)
	w.U8(flags)
	w.U64(0)
	w.Write(make([]byte, 16))
	w.U32(65000)
	w.Write(make([]byte, 4))
	w.U32(0)
	w.U32(0)
	return w.Bytes()
}

func buildMessage(typ MessageType, body []byte) []byte {
	total := CommonHeaderSize + len(body)
	w := wire.NewWriter(total)
	w.U8(Version)
	w.U32(uint32(total))
	w.U8(uint8(typ))
	w.Write(body)
	return w.Bytes()
}

func buildTLV(typ uint16, value string) []byte {
	w := wire.NewWriter(4 + len(value))
	w.U16(typ)
	w.U16(uint16(len(value)))
	w.Write([]byte(value))
	return w.Bytes()
}

func TestDecodeRouteMonitoringLocRibWithTableName(t *testing.T) {
	body := append(buildPerPeerHeader(PeerTypeLocRIB, 0), minimalBgpUpdate()...)
	body = append(body, buildTLV(TLVTypeVrfTable, "inet.0")...)

	msg, err := Decode(buildMessage(MsgTypeRouteMonitoring, body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rm, ok := msg.Body.(RouteMonitoringMessage)
	if !ok {
		t.Fatalf("body type = %T", msg.Body)
	}
	if !rm.Peer.IsLocRib() {
		t.Fatal("expected loc-rib peer")
	}
	if rm.TableName != "inet.0" {
		t.Fatalf("table name = %q", rm.TableName)
	}
}

func TestDecodeRouteMonitoringAddPathFlag(t *testing.T) {
	body := append(buildPerPeerHeader(PeerTypeGlobal, PeerFlagAddPath), minimalBgpUpdate()...)
	msg, err := Decode(buildMessage(MsgTypeRouteMonitoring, body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rm := msg.Body.(RouteMonitoringMessage)
	if !rm.Peer.HasAddPath() {
		t.Fatal("expected add-path flag set")
	}
}

func TestDecodePeerDownNotification(t *testing.T) {
	body := buildPerPeerHeader(PeerTypeGlobal, 0)
	body = append(body, PeerDownLocalNotification, 6, 2) // cease, admin-shutdown-ish
	msg, err := Decode(buildMessage(MsgTypePeerDown, body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pd := msg.Body.(PeerDownMessage)
	if pd.Notification == nil || pd.Notification.Code != 6 {
		t.Fatalf("notification = %+v", pd.Notification)
	}
}

func TestDecodeTermination(t *testing.T) {
	body := buildTLV(0, "administratively closed")
	msg, err := Decode(buildMessage(MsgTypeTermination, body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	term := msg.Body.(TerminationMessage)
	if term.Info != "administratively closed" {
		t.Fatalf("info = %q", term.Info)
	}
}

func TestDecodeInitiation(t *testing.T) {
	body := append(buildTLV(TLVTypeSysName, "router1"), buildTLV(TLVTypeSysDescr, "vendor XR")...)
	msg, err := Decode(buildMessage(MsgTypeInitiation, body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	init := msg.Body.(InitiationMessage)
	if init.SysName != "router1" || init.SysDescr != "vendor XR" {
		t.Fatalf("init = %+v", init)
	}
}

func TestDecodeStatisticsReport(t *testing.T) {
	w := wire.NewWriter(8)
	w.U16(1)
	w.U16(4)
	w.U32(42)
	body := append(buildPerPeerHeader(PeerTypeGlobal, 0), append([]byte{0, 0, 0, 1}, w.Bytes()...)...)
	msg, err := Decode(buildMessage(MsgTypeStatisticsReport, body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	sr := msg.Body.(StatisticsReportMessage)
	if len(sr.Stats) != 1 || sr.Stats[0].AsUint64() != 42 {
		t.Fatalf("stats = %+v", sr.Stats)
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	w := wire.NewWriter(6)
	w.U8(2)
	w.U32(6)
	w.U8(uint8(MsgTypeRouteMonitoring))
	if _, err := Decode(w.Bytes()); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestRouterIDFromPeerHeaderIpv4MappedAndTooShort(t *testing.T) {
	hdr := buildPerPeerHeader(PeerTypeGlobal, 0)
	// Addr field starts at offset 10; set the v4-mapped bytes at 10+12..10+15.
	hdr[22] = 192
	hdr[23] = 168
	hdr[24] = 1
	hdr[25] = 1
	if got := RouterIDFromPeerHeader(hdr); got != "192.168.1.1" {
		t.Fatalf("router id = %q", got)
	}
	if got := RouterIDFromPeerHeader(hdr[:10]); got != "" {
		t.Fatalf("expected empty for short header, got %q", got)
	}
}

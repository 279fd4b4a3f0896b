package rislive

import (
	"strings"
	"testing"
)

const sampleUpdate = `{
  "type": "ris_message",
  "data": {
    "timestamp": 1690000000.5,
    "peer": "192.0.2.1",
    "peer_asn": "65010",
    "id": "1-ABC-123",
    "host": "rrc00",
    "type": "UPDATE",
    "path": [65010, 174, 1299, [31027, 198622]],
    "community": [[65010, 100], [65010, 200]],
    "origin": "igp",
    "announcements": [
      {"next_hop": "192.0.2.254", "prefixes": ["203.0.113.0/24", "203.0.114.0/24"]}
    ],
    "withdrawals": ["198.51.100.0/24"]
  }
}`

func TestSniffType(t *testing.T) {
	typ, err := SniffType([]byte(sampleUpdate))
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if typ != ServerMsgRisMessage {
		t.Fatalf("type = %q", typ)
	}
}

func TestDecodeRisMessageFields(t *testing.T) {
	msg, err := DecodeRisMessage([]byte(sampleUpdate))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Data.Peer != "192.0.2.1" || msg.Data.PeerAsn != "65010" {
		t.Fatalf("peer fields = %+v", msg.Data)
	}
	if len(msg.Data.Announcements) != 1 || len(msg.Data.Announcements[0].Prefixes) != 2 {
		t.Fatalf("announcements = %+v", msg.Data.Announcements)
	}
	if len(msg.Data.Withdrawals) != 1 || msg.Data.Withdrawals[0] != "198.51.100.0/24" {
		t.Fatalf("withdrawals = %+v", msg.Data.Withdrawals)
	}
}

func TestElemsFromUpdateProducesAnnouncementsAndWithdrawal(t *testing.T) {
	msg, err := DecodeRisMessage([]byte(sampleUpdate))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	elems, err := msg.Elems()
	if err != nil {
		t.Fatalf("elems: %v", err)
	}
	if len(elems) != 3 {
		t.Fatalf("elems len = %d, want 3", len(elems))
	}
	withdrawCount, announceCount := 0, 0
	for _, e := range elems {
		if e.ElemType.String() == "WITHDRAW" {
			withdrawCount++
		} else {
			announceCount++
			if e.AsPath == nil {
				t.Fatal("expected AS path on announce elem")
			}
		}
	}
	if withdrawCount != 1 || announceCount != 2 {
		t.Fatalf("withdraw=%d announce=%d", withdrawCount, announceCount)
	}
}

func TestElemsRejectsNonUpdateKind(t *testing.T) {
	msg := RisMessage{Type: ServerMsgRisMessage, Data: RisMessageData{Type: KindKeepalive}}
	if _, err := msg.Elems(); err == nil {
		t.Fatal("expected error for non-UPDATE kind")
	}
}

func TestElemsRejectsBadWithdrawalPrefix(t *testing.T) {
	msg := RisMessage{Type: ServerMsgRisMessage, Data: RisMessageData{Type: KindUpdate, Peer: "192.0.2.1", PeerAsn: "1", Withdrawals: []string{"not-a-prefix"}}}
	if _, err := msg.Elems(); err == nil {
		t.Fatal("expected error for malformed withdrawal prefix")
	}
}

func TestEncodeSubscribeOmitsZeroFields(t *testing.T) {
	b, err := EncodeSubscribe(SubscribeParams{Prefix: "203.0.113.0/24"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"type":"ris_subscribe"`) || !strings.Contains(s, `"prefix":"203.0.113.0/24"`) {
		t.Fatalf("encoded = %s", s)
	}
	if strings.Contains(s, `"peer"`) {
		t.Fatalf("expected omitted empty peer field: %s", s)
	}
}

package openbmp

import (
	"encoding/binary"
	"testing"
)

func buildV2Frame(version uint16, collectorHash uint32, payload []byte) []byte {
	frame := make([]byte, 10+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], version)
	binary.BigEndian.PutUint32(frame[2:6], collectorHash)
	binary.BigEndian.PutUint32(frame[6:10], uint32(len(payload)))
	copy(frame[10:], payload)
	return frame
}

func buildV17Frame(payload []byte) []byte {
	hdrLen := uint16(78)
	frame := make([]byte, int(hdrLen)+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], v17Magic)
	frame[4] = 1
	frame[5] = 7
	binary.BigEndian.PutUint16(frame[6:8], hdrLen)
	binary.BigEndian.PutUint32(frame[8:12], uint32(len(payload)))
	copy(frame[hdrLen:], payload)
	return frame
}

func TestDecodeFrameV2(t *testing.T) {
	payload := []byte{0x03, 0x00, 0x00, 0x00, 0x06, 0x04}
	frame := buildV2Frame(2, 0xAABBCCDD, payload)

	got, err := DecodeFrame(frame, 16*1024*1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %v, want %v", got, payload)
	}
}

func TestDecodeFrameV2Truncated(t *testing.T) {
	frame := buildV2Frame(2, 0, []byte{0x03, 0x00, 0x00, 0x00, 0x06, 0x04})
	if _, err := DecodeFrame(frame[:8], 0); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestDecodeFrameV2BadVersion(t *testing.T) {
	frame := buildV2Frame(99, 0, []byte{0x03})
	if _, err := DecodeFrame(frame, 0); err == nil {
		t.Fatal("expected error for bad version")
	}
}

func TestDecodeFrameV2OversizedPayload(t *testing.T) {
	frame := buildV2Frame(2, 0, []byte{0x03, 0x00, 0x00, 0x00, 0x06, 0x04})
	if _, err := DecodeFrame(frame, 2); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestDecodeFrameV2ZeroLength(t *testing.T) {
	frame := buildV2Frame(2, 0, nil)
	if _, err := DecodeFrame(frame, 0); err == nil {
		t.Fatal("expected error for zero msg_len")
	}
}

func TestDecodeFrameV17(t *testing.T) {
	payload := []byte{0x03, 0x00, 0x00, 0x00, 0x06, 0x04}
	frame := buildV17Frame(payload)

	got, err := DecodeFrame(frame, 16*1024*1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %v, want %v", got, payload)
	}
}

func TestDecodeFrameV17Truncated(t *testing.T) {
	frame := buildV17Frame([]byte{0x03, 0x00, 0x00, 0x00, 0x06, 0x04})
	if _, err := DecodeFrame(frame[:20], 0); err == nil {
		t.Fatal("expected error for truncated v1.7 frame")
	}
}

func TestDecodeFrameMultipleConcatenated(t *testing.T) {
	payload1 := []byte{0x01, 0x02, 0x03}
	payload2 := []byte{0x04, 0x05}
	frame1 := buildV2Frame(2, 0x11111111, payload1)
	frame2 := buildV2Frame(2, 0x22222222, payload2)
	combined := append(frame1, frame2...)

	got1, err := DecodeFrame(combined, 0)
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if len(got1) != 3 {
		t.Fatalf("frame 1 len = %d", len(got1))
	}

	got2, err := DecodeFrame(combined[len(frame1):], 0)
	if err != nil {
		t.Fatalf("frame 2: %v", err)
	}
	if len(got2) != 2 {
		t.Fatalf("frame 2 len = %d", len(got2))
	}
}

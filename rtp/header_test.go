package rtp

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	h := Header{Marker: true, PayloadType: 97, SequenceNumber: 0xBEEF, Timestamp: 0xCAFEBABE, SSRC: 0x12345678}
	packet := h.Pack(nil)
	packet = append(packet, []byte{1, 2, 3, 4}...)

	got, payload, ok := Unpack(packet, 97)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
	if string(payload) != "\x01\x02\x03\x04" {
		t.Fatalf("payload mismatch: %v", payload)
	}
}

func TestUnpackRejectsWrongPayloadType(t *testing.T) {
	h := Header{PayloadType: 96}
	packet := h.Pack(nil)
	if _, _, ok := Unpack(packet, 97); ok {
		t.Fatal("expected rejection on payload-type mismatch")
	}
}

func TestUnpackRejectsShortPacket(t *testing.T) {
	if _, _, ok := Unpack(make([]byte, 11), -1); ok {
		t.Fatal("expected rejection on short packet")
	}
}

func TestUnpackRejectsBadVersion(t *testing.T) {
	packet := make([]byte, HeaderSize)
	packet[0] = 0x40 // version 1
	if _, _, ok := Unpack(packet, -1); ok {
		t.Fatal("expected rejection on bad version")
	}
}

func TestValidMTUCeiling(t *testing.T) {
	if !Valid(make([]byte, HeaderSize), DefaultMTU) {
		t.Fatal("minimum-size packet should be valid")
	}
	if Valid(make([]byte, DefaultMTU+1), DefaultMTU) {
		t.Fatal("oversize packet should be invalid")
	}
	if Valid(make([]byte, HeaderSize-1), DefaultMTU) {
		t.Fatal("undersize packet should be invalid")
	}
}

func TestExpectedPTDisabled(t *testing.T) {
	h := Header{PayloadType: 5}
	packet := h.Pack(nil)
	if _, _, ok := Unpack(packet, -1); !ok {
		t.Fatal("expected acceptance when payload-type check disabled")
	}
}

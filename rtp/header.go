// Package rtp implements the minimal RTP (RFC 3550) framing this engine
// needs: fixed 12-byte header pack/unpack with network byte order, and
// validation against the AES67 profile (version 2, expected payload type,
// MTU ceiling). CSRCs, header extensions, and RTCP are not generated or
// parsed — the engine only ever emits a bare fixed header followed by PCM
// payload. On decode only the version bits and payload type are checked;
// the padding, extension and CSRC-count bits are not inspected, and the
// payload is always taken to start at byte 12.
package rtp

import "encoding/binary"

const (
	// HeaderSize is the fixed RTP header length in bytes.
	HeaderSize = 12

	version2Bit = 0x80
	markerBit   = 0x80
	ptMask      = 0x7f

	// DefaultMTU is the default packet size ceiling used by validation.
	DefaultMTU = 1500
)

// Header is the fixed 12-byte RTP header.
type Header struct {
	Marker         bool
	PayloadType    uint8 // 7 bits
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
}

// Pack appends the wire encoding of h to dst and returns the extended
// slice. CSRC count is always zero; padding and extension bits are never
// set.
func (h Header) Pack(dst []byte) []byte {
	var buf [HeaderSize]byte
	buf[0] = version2Bit // version=2, padding=0, extension=0, cc=0
	b1 := h.PayloadType & ptMask
	if h.Marker {
		b1 |= markerBit
	}
	buf[1] = b1
	binary.BigEndian.PutUint16(buf[2:4], h.SequenceNumber)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)
	return append(dst, buf[:]...)
}

// Unpack parses the fixed header from the front of packet and returns the
// header plus the payload slice (aliasing packet). It returns ok=false if
// packet is too short, the version bits are not 2, or payload type does not
// equal expectedPT. expectedPT of -1 disables the payload-type check.
func Unpack(packet []byte, expectedPT int) (h Header, payload []byte, ok bool) {
	if len(packet) < HeaderSize {
		return Header{}, nil, false
	}
	if packet[0]&0xc0 != version2Bit {
		return Header{}, nil, false
	}
	pt := packet[1] & ptMask
	if expectedPT >= 0 && int(pt) != expectedPT {
		return Header{}, nil, false
	}
	h = Header{
		Marker:         packet[1]&markerBit != 0,
		PayloadType:    pt,
		SequenceNumber: binary.BigEndian.Uint16(packet[2:4]),
		Timestamp:      binary.BigEndian.Uint32(packet[4:8]),
		SSRC:           binary.BigEndian.Uint32(packet[8:12]),
	}
	return h, packet[HeaderSize:], true
}

// Valid reports whether packet could plausibly hold a fixed RTP header
// within the given MTU ceiling, independent of payload type.
func Valid(packet []byte, mtu int) bool {
	return len(packet) >= HeaderSize && len(packet) <= mtu
}

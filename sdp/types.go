// Package sdp parses and emits AES67-profile SDP (RFC 4566) session
// descriptions, converting to and from a normalized Descriptor.
package sdp

import "github.com/aes67/audioengine/pcm"

// Direction is the media direction attribute of a session.
type Direction int

const (
	// DirectionUnspecified means no direction attribute was present.
	DirectionUnspecified Direction = iota
	SendOnly
	RecvOnly
	SendRecv
	Inactive
)

func (d Direction) String() string {
	switch d {
	case SendOnly:
		return "sendonly"
	case RecvOnly:
		return "recvonly"
	case SendRecv:
		return "sendrecv"
	case Inactive:
		return "inactive"
	default:
		return ""
	}
}

// ParseDirection maps an SDP direction attribute token to a Direction.
func ParseDirection(s string) (Direction, bool) {
	return parseDirection(s)
}

func parseDirection(s string) (Direction, bool) {
	switch s {
	case "sendonly":
		return SendOnly, true
	case "recvonly":
		return RecvOnly, true
	case "sendrecv":
		return SendRecv, true
	case "inactive":
		return Inactive, true
	default:
		return DirectionUnspecified, false
	}
}

// Origin holds the parsed o= line.
type Origin struct {
	Username       string
	SessionID      uint64
	SessionVersion uint64
	NetType        string
	AddrType       string
	Address        string
}

// Descriptor is the normalized, in-memory representation of an AES67 SDP
// session, per the data model: session name, origin, connection address,
// TTL, port, payload type, encoding, sample rate, channel count, ptime,
// frame count, optional source filter address, PTP domain, direction, and
// a free-form attribute map for anything this codec does not otherwise
// recognize.
type Descriptor struct {
	SessionName string
	Origin      Origin
	Info        string // optional i= line

	ConnAddrType string // "IP4"
	ConnAddress  string // multicast address, must be 239.0.0.0/8
	TTL          int    // 0..255; 0 means "not specified"

	TimingStart uint64
	TimingStop  uint64

	MediaType string // "audio"
	Port      int
	Proto     string // "RTP/AVP"
	PayloadType int  // 7-bit

	Encoding   pcm.Encoding
	SampleRate int
	Channels   int

	PTimeMs    float64
	FrameCount int

	SourceFilterAddr string // optional source-filter source address
	PTPDomain        int    // -1 for none, else 0..127
	PTPMasterMAC     string

	MediaClock string // optional mediaclk attribute value, verbatim

	Direction Direction

	// Unknown holds attribute lines (a=) this codec did not recognize,
	// preserved verbatim in encounter order for round-tripping.
	Unknown []Attribute
}

// Attribute is a raw a= line, split into key and optional value.
type Attribute struct {
	Key   string
	Value string // empty if the attribute had no ":value" part
	HasValue bool
}

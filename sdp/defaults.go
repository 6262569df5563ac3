package sdp

import (
	"net"

	"github.com/aes67/audioengine/pcm"
)

// DefaultTxSession builds the SDP descriptor the stream manager uses when
// constructing a transmit stream from current device state and caller-given
// parameters: encoding L24, payload type 97, ptime 1ms, sendonly direction.
// No PTP domain is set, so the emitted session carries no ts-refclk line.
func DefaultTxSession(name, originUID, connAddress string, port int, sampleRate, channels int) *Descriptor {
	framecount := sampleRate / 1000
	return &Descriptor{
		SessionName: name,
		Origin: Origin{
			Username:       originUID,
			SessionID:      1,
			SessionVersion: 1,
			NetType:        "IN",
			AddrType:       "IP4",
			Address:        originUID,
		},
		ConnAddrType: "IP4",
		ConnAddress:  connAddress,
		TTL:          32,
		MediaType:    "audio",
		Port:         port,
		Proto:        "RTP/AVP",
		PayloadType:  97,
		Encoding:     pcm.L24,
		SampleRate:   sampleRate,
		Channels:     channels,
		PTimeMs:      1,
		FrameCount:   framecount,
		// PTPDomain is left unset (-1); the manager does not fill in a
		// domain or master MAC afterwards.
		PTPDomain: -1,
		Direction: SendOnly,
	}
}

// PTPDomainID satisfies clock.StreamDescriptor so a *Descriptor can be
// passed directly to the clock service's stream-dispatch API.
func (d *Descriptor) PTPDomainID() int {
	return d.PTPDomain
}

// IsMulticast reports whether ConnAddress is in the 239.0.0.0/8 AES67
// administratively-scoped multicast range required by the data model.
func (d *Descriptor) IsMulticast() bool {
	ip := net.ParseIP(d.ConnAddress)
	if ip == nil {
		return false
	}
	ip4 := ip.To4()
	return ip4 != nil && ip4[0] == 239
}


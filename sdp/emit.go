package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// Emit renders d in the deterministic AES67 SDP line order: v, origin,
// session name, optional info, connection, timing, media, then attributes
// (rtpmap, ptime, framecount, direction, optional source-filter, optional
// ts-refclk, optional mediaclk), then any preserved unknown attributes.
func Emit(d *Descriptor) string {
	var b strings.Builder

	b.WriteString("v=0\n")
	fmt.Fprintf(&b, "o=%s %d %d %s %s %s\n",
		d.Origin.Username, d.Origin.SessionID, d.Origin.SessionVersion,
		d.Origin.NetType, d.Origin.AddrType, d.Origin.Address)
	fmt.Fprintf(&b, "s=%s\n", d.SessionName)
	if d.Info != "" {
		fmt.Fprintf(&b, "i=%s\n", d.Info)
	}

	connAddr := d.ConnAddress
	if d.TTL != 0 {
		connAddr = connAddr + "/" + strconv.Itoa(d.TTL)
	}
	fmt.Fprintf(&b, "c=%s %s %s\n", "IN", d.ConnAddrType, connAddr)
	fmt.Fprintf(&b, "t=%d %d\n", d.TimingStart, d.TimingStop)
	fmt.Fprintf(&b, "m=%s %d %s %d\n", d.MediaType, d.Port, d.Proto, d.PayloadType)

	rtpmap := fmt.Sprintf("a=rtpmap:%d %s/%d", d.PayloadType, d.Encoding.String(), d.SampleRate)
	if d.Channels > 1 {
		rtpmap += "/" + strconv.Itoa(d.Channels)
	}
	b.WriteString(rtpmap)
	b.WriteByte('\n')

	if d.PTimeMs != 0 {
		fmt.Fprintf(&b, "a=ptime:%s\n", formatFloat(d.PTimeMs))
	}
	if d.FrameCount != 0 {
		fmt.Fprintf(&b, "a=framecount:%d\n", d.FrameCount)
	}
	if dirStr := d.Direction.String(); dirStr != "" {
		fmt.Fprintf(&b, "a=%s\n", dirStr)
	}
	if d.SourceFilterAddr != "" {
		fmt.Fprintf(&b, "a=source-filter:incl IN IP4 %s %s\n", d.ConnAddress, d.SourceFilterAddr)
	}
	if d.PTPDomain >= 0 && d.PTPMasterMAC != "" {
		fmt.Fprintf(&b, "a=ts-refclk:ptp=IEEE1588-2008:%s:domain-nmbr=%d\n", d.PTPMasterMAC, d.PTPDomain)
	}
	if d.MediaClock != "" {
		fmt.Fprintf(&b, "a=mediaclk:%s\n", d.MediaClock)
	}

	for _, a := range d.Unknown {
		if a.HasValue {
			fmt.Fprintf(&b, "a=%s:%s\n", a.Key, a.Value)
		} else {
			fmt.Fprintf(&b, "a=%s\n", a.Key)
		}
	}

	return b.String()
}

// formatFloat renders a ptime value without a trailing ".0" when it is a
// whole number, matching the common "ptime:1" form seen on the wire.
func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

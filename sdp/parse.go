package sdp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aes67/audioengine/pcm"
)

var tsRefclkPTPRe = regexp.MustCompile(`^ptp=IEEE1588-2008:([0-9A-Fa-f-]+):domain-nmbr=(\d+)$`)

// Parse parses a newline-separated AES67 SDP blob (CRLF or LF line endings)
// into a Descriptor. It returns an error if any structurally required line
// is malformed or if post-parse validation fails.
func Parse(blob string) (*Descriptor, error) {
	lines := splitLines(blob)

	d := &Descriptor{
		ConnAddrType: "IP4",
		MediaType:    "audio",
		Proto:        "RTP/AVP",
		PTPDomain:    -1,
	}
	sawVersion := false
	sawOrigin := false
	sawSession := false
	sawConnection := false
	sawMedia := false

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		if len(line) < 2 || line[1] != '=' {
			return nil, fmt.Errorf("sdp: malformed line %q", line)
		}
		typ := line[0]
		value := line[2:]

		switch typ {
		case 'v':
			sawVersion = true
		case 'o':
			o, err := parseOrigin(value)
			if err != nil {
				return nil, err
			}
			d.Origin = o
			sawOrigin = true
		case 's':
			if value == "" {
				return nil, fmt.Errorf("sdp: empty session name")
			}
			d.SessionName = value
			sawSession = true
		case 'i':
			d.Info = value
		case 'c':
			if err := parseConnection(d, value); err != nil {
				return nil, err
			}
			sawConnection = true
		case 't':
			if err := parseTiming(d, value); err != nil {
				return nil, err
			}
		case 'm':
			if err := parseMedia(d, value); err != nil {
				return nil, err
			}
			sawMedia = true
		case 'a':
			if err := parseAttribute(d, value); err != nil {
				return nil, err
			}
		default:
			// Unknown line types are not part of the AES67 profile this
			// codec targets; ignore rather than fail.
		}
	}

	if !sawVersion {
		return nil, fmt.Errorf("sdp: missing v= line")
	}
	if !sawOrigin {
		return nil, fmt.Errorf("sdp: missing o= line")
	}
	if !sawSession {
		return nil, fmt.Errorf("sdp: missing s= line")
	}
	if !sawConnection {
		return nil, fmt.Errorf("sdp: missing c= line")
	}
	if !sawMedia {
		return nil, fmt.Errorf("sdp: missing m= line")
	}

	if err := validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

func parseOrigin(value string) (Origin, error) {
	f := strings.Fields(value)
	if len(f) != 6 {
		return Origin{}, fmt.Errorf("sdp: o= line requires 6 tokens, got %d", len(f))
	}
	sessID, err := strconv.ParseUint(f[1], 10, 64)
	if err != nil {
		return Origin{}, fmt.Errorf("sdp: o= session id: %w", err)
	}
	sessVer, err := strconv.ParseUint(f[2], 10, 64)
	if err != nil {
		return Origin{}, fmt.Errorf("sdp: o= session version: %w", err)
	}
	return Origin{
		Username:       f[0],
		SessionID:      sessID,
		SessionVersion: sessVer,
		NetType:        f[3],
		AddrType:       f[4],
		Address:        f[5],
	}, nil
}

func parseConnection(d *Descriptor, value string) error {
	f := strings.Fields(value)
	if len(f) != 3 {
		return fmt.Errorf("sdp: c= line requires 3 tokens, got %d", len(f))
	}
	d.ConnAddrType = f[1]
	addr := f[2]
	ttl := 0
	if idx := strings.IndexByte(addr, '/'); idx >= 0 {
		t, err := strconv.Atoi(addr[idx+1:])
		if err != nil {
			return fmt.Errorf("sdp: c= ttl: %w", err)
		}
		ttl = t
		addr = addr[:idx]
	}
	d.ConnAddress = addr
	d.TTL = ttl
	return nil
}

func parseTiming(d *Descriptor, value string) error {
	f := strings.Fields(value)
	if len(f) != 2 {
		return fmt.Errorf("sdp: t= line requires 2 tokens, got %d", len(f))
	}
	start, err := strconv.ParseUint(f[0], 10, 64)
	if err != nil {
		return fmt.Errorf("sdp: t= start: %w", err)
	}
	stop, err := strconv.ParseUint(f[1], 10, 64)
	if err != nil {
		return fmt.Errorf("sdp: t= stop: %w", err)
	}
	d.TimingStart = start
	d.TimingStop = stop
	return nil
}

func parseMedia(d *Descriptor, value string) error {
	f := strings.Fields(value)
	if len(f) != 4 {
		return fmt.Errorf("sdp: m= line requires 4 tokens, got %d", len(f))
	}
	port, err := strconv.Atoi(f[1])
	if err != nil {
		return fmt.Errorf("sdp: m= port: %w", err)
	}
	pt, err := strconv.Atoi(f[3])
	if err != nil {
		return fmt.Errorf("sdp: m= payload type: %w", err)
	}
	d.MediaType = f[0]
	d.Port = port
	d.Proto = f[2]
	d.PayloadType = pt
	return nil
}

func parseAttribute(d *Descriptor, value string) error {
	key := value
	val := ""
	hasValue := false
	if idx := strings.IndexByte(value, ':'); idx >= 0 {
		key = value[:idx]
		val = value[idx+1:]
		hasValue = true
	}

	switch key {
	case "rtpmap":
		return parseRtpmap(d, val)
	case "ptime":
		ms, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("sdp: ptime: %w", err)
		}
		d.PTimeMs = ms
	case "framecount":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("sdp: framecount: %w", err)
		}
		d.FrameCount = n
	case "source-filter":
		// "incl IN IP4 <dst> <src>"
		f := strings.Fields(val)
		if len(f) >= 5 && f[0] == "incl" {
			d.SourceFilterAddr = f[4]
		}
	case "ts-refclk":
		m := tsRefclkPTPRe.FindStringSubmatch(val)
		if m == nil {
			d.Unknown = append(d.Unknown, Attribute{Key: key, Value: val, HasValue: hasValue})
			return nil
		}
		d.PTPMasterMAC = m[1]
		domain, err := strconv.Atoi(m[2])
		if err != nil {
			return fmt.Errorf("sdp: ts-refclk domain: %w", err)
		}
		d.PTPDomain = domain
	case "mediaclk":
		d.MediaClock = val
	case "recvonly", "sendonly", "sendrecv", "inactive":
		dir, _ := parseDirection(key)
		d.Direction = dir
	default:
		d.Unknown = append(d.Unknown, Attribute{Key: key, Value: val, HasValue: hasValue})
	}
	return nil
}

func parseRtpmap(d *Descriptor, val string) error {
	f := strings.Fields(val)
	if len(f) != 2 {
		return fmt.Errorf("sdp: rtpmap requires 2 tokens, got %d", len(f))
	}
	pt, err := strconv.Atoi(f[0])
	if err != nil {
		return fmt.Errorf("sdp: rtpmap payload type: %w", err)
	}
	parts := strings.Split(f[1], "/")
	if len(parts) < 2 {
		return fmt.Errorf("sdp: rtpmap encoding/rate malformed: %q", f[1])
	}
	rate, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("sdp: rtpmap clock rate: %w", err)
	}
	channels := 1
	if len(parts) >= 3 {
		c, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("sdp: rtpmap channels: %w", err)
		}
		channels = c
	}
	d.PayloadType = pt
	d.Encoding = pcm.ParseEncoding(parts[0])
	d.SampleRate = rate
	d.Channels = channels
	return nil
}

func validate(d *Descriptor) error {
	if d.SessionName == "" {
		return fmt.Errorf("sdp: validation: empty session name")
	}
	if d.ConnAddress == "" {
		return fmt.Errorf("sdp: validation: missing connection address")
	}
	if d.Port == 0 {
		return fmt.Errorf("sdp: validation: port is zero")
	}
	if d.Encoding == pcm.Unknown {
		return fmt.Errorf("sdp: validation: unknown encoding")
	}
	if d.SampleRate == 0 {
		return fmt.Errorf("sdp: validation: sample rate is zero")
	}
	if d.Channels == 0 {
		return fmt.Errorf("sdp: validation: channel count is zero")
	}
	return nil
}

func splitLines(blob string) []string {
	blob = strings.ReplaceAll(blob, "\r\n", "\n")
	return strings.Split(blob, "\n")
}

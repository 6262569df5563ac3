package sdp

import (
	"reflect"
	"testing"

	"github.com/aes67/audioengine/pcm"
)

const riedelArtistSDP = "v=0\r\n" +
	"o=- 1 1 IN IP4 169.254.1.1\r\n" +
	"s=Riedel Artist IFB\r\n" +
	"c=IN IP4 239.1.1.1/32\r\n" +
	"t=0 0\r\n" +
	"m=audio 5004 RTP/AVP 96\r\n" +
	"a=rtpmap:96 L24/48000/8\r\n" +
	"a=ptime:1\r\n" +
	"a=framecount:48\r\n" +
	"a=sendonly\r\n" +
	"a=ts-refclk:ptp=IEEE1588-2008:00-1B-21-AC-B5-4F:domain-nmbr=0\r\n"

func TestParseRiedelArtist(t *testing.T) {
	d, err := Parse(riedelArtistSDP)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.SessionName != "Riedel Artist IFB" {
		t.Errorf("session name = %q", d.SessionName)
	}
	if d.Encoding != pcm.L24 {
		t.Errorf("encoding = %v, want L24", d.Encoding)
	}
	if d.Channels != 8 {
		t.Errorf("channels = %d, want 8", d.Channels)
	}
	if d.PTPDomain != 0 {
		t.Errorf("ptp domain = %d, want 0", d.PTPDomain)
	}
	if d.PTPMasterMAC != "00-1B-21-AC-B5-4F" {
		t.Errorf("ptp master mac = %q", d.PTPMasterMAC)
	}
}

func TestParseEmitParseRoundTrip(t *testing.T) {
	d, err := Parse(riedelArtistSDP)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	emitted := Emit(d)
	d2, err := Parse(emitted)
	if err != nil {
		t.Fatalf("re-parse of emitted SDP failed: %v\n%s", err, emitted)
	}
	if !reflect.DeepEqual(d, d2) {
		t.Fatalf("round trip mismatch:\nfirst:  %+v\nsecond: %+v", d, d2)
	}
}

func TestDefaultTxSessionRoundTrips(t *testing.T) {
	d := DefaultTxSession("studio-a", "device-uid-1", "239.2.2.2", 5004, 48000, 8)
	emitted := Emit(d)
	d2, err := Parse(emitted)
	if err != nil {
		t.Fatalf("parse of default tx session failed: %v\n%s", err, emitted)
	}
	if !reflect.DeepEqual(d, d2) {
		t.Fatalf("round trip mismatch:\nfirst:  %+v\nsecond: %+v", d, d2)
	}
}

func TestParseRejectsEmptySessionName(t *testing.T) {
	bad := "v=0\no=- 1 1 IN IP4 1.2.3.4\ns=\nc=IN IP4 239.1.1.1\nt=0 0\nm=audio 5004 RTP/AVP 96\na=rtpmap:96 L24/48000/2\n"
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for empty session name")
	}
}

func TestParseRejectsMissingConnection(t *testing.T) {
	bad := "v=0\no=- 1 1 IN IP4 1.2.3.4\ns=Test\nt=0 0\nm=audio 5004 RTP/AVP 96\na=rtpmap:96 L24/48000/2\n"
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for missing c= line")
	}
}

func TestParseRejectsZeroPort(t *testing.T) {
	bad := "v=0\no=- 1 1 IN IP4 1.2.3.4\ns=Test\nc=IN IP4 239.1.1.1\nt=0 0\nm=audio 0 RTP/AVP 96\na=rtpmap:96 L24/48000/2\n"
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for zero port")
	}
}

func TestParseRejectsUnknownEncoding(t *testing.T) {
	bad := "v=0\no=- 1 1 IN IP4 1.2.3.4\ns=Test\nc=IN IP4 239.1.1.1\nt=0 0\nm=audio 5004 RTP/AVP 96\na=rtpmap:96 OPUS/48000/2\n"
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestParsePreservesUnknownAttributes(t *testing.T) {
	blob := "v=0\no=- 1 1 IN IP4 1.2.3.4\ns=Test\nc=IN IP4 239.1.1.1\nt=0 0\nm=audio 5004 RTP/AVP 96\na=rtpmap:96 L16/48000/2\na=tool:custom-app/1.0\n"
	d, err := Parse(blob)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(d.Unknown) != 1 || d.Unknown[0].Key != "tool" || d.Unknown[0].Value != "custom-app/1.0" {
		t.Fatalf("unknown attribute not preserved: %+v", d.Unknown)
	}
	emitted := Emit(d)
	if !contains(emitted, "a=tool:custom-app/1.0") {
		t.Fatalf("emitted SDP missing preserved unknown attribute:\n%s", emitted)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestParseAcceptsLFOnly(t *testing.T) {
	lf := "v=0\no=- 1 1 IN IP4 1.2.3.4\ns=Test\nc=IN IP4 239.1.1.1\nt=0 0\nm=audio 5004 RTP/AVP 96\na=rtpmap:96 L16/48000/2\n"
	if _, err := Parse(lf); err != nil {
		t.Fatalf("LF-only SDP should parse: %v", err)
	}
}

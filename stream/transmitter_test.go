package stream

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aes67/audioengine/pcm"
	"github.com/aes67/audioengine/ring"
	"github.com/aes67/audioengine/router"
	"github.com/aes67/audioengine/rtp"
	"github.com/aes67/audioengine/transport"
)

func newTestOutputs() *[router.NumDeviceChannels]*ring.Ring {
	var outputs [router.NumDeviceChannels]*ring.Ring
	for c := range outputs {
		outputs[c] = ring.New(480)
	}
	return &outputs
}

func TestTransmitterEndToEnd(t *testing.T) {
	const addr = "239.255.81.1"
	const port = 18104

	desc := testDescriptor(addr, port, 2, pcm.L16)
	desc.PayloadType = 96
	mapping := router.Mapping{StreamID: uuid.New(), StreamName: "test", StreamChannelCount: 2, DeviceChannelStart: 0}
	outputs := newTestOutputs()

	// Pre-load several frames' worth of samples on both mapped channels so
	// the transmitter has real data to send, not silence.
	for i := 0; i < 48; i++ {
		outputs[0].Write([]float32{0.25})
		outputs[1].Write([]float32{-0.5})
	}

	tx := NewTransmitter(desc, mapping, outputs)
	if err := tx.Start(); err != nil {
		t.Skipf("multicast send unavailable in this environment: %v", err)
	}
	defer tx.Stop()

	rx, err := transport.NewReceiver(addr, port, 0)
	if err != nil {
		t.Skipf("multicast receive unavailable in this environment: %v", err)
	}
	defer rx.Close()

	buf := make([]byte, rtp.DefaultMTU)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := rx.Recv(buf)
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if n > rtp.HeaderSize {
			hdr, payload, ok := rtp.Unpack(buf[:n], 96)
			if !ok {
				t.Fatalf("unpack failed for packet of length %d", n)
			}
			samples, err := pcm.Decode(pcm.L16, nil, payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(samples) < 2 {
				t.Fatalf("too few samples decoded: %d", len(samples))
			}
			if samples[0] < 0.24 || samples[0] > 0.26 {
				t.Fatalf("channel 0 sample = %v, want ~0.25", samples[0])
			}
			if samples[1] > -0.49 || samples[1] < -0.51 {
				t.Fatalf("channel 1 sample = %v, want ~-0.5", samples[1])
			}
			_ = hdr
			return
		}
	}
	t.Skip("no multicast loopback observed in this environment")
}

func TestTransmitterRejectsNonMulticastAddress(t *testing.T) {
	desc := testDescriptor("10.0.0.9", 18105, 2, pcm.L16)
	mapping := router.Mapping{StreamID: uuid.New(), StreamName: "test", StreamChannelCount: 2, DeviceChannelStart: 0}
	tx := NewTransmitter(desc, mapping, newTestOutputs())
	if err := tx.Start(); err == nil {
		t.Fatal("expected an error starting a transmitter on a unicast address")
	}
}

// attachLoopbackConn opens a real send socket and wires it directly into tx,
// bypassing Start/sendLoop so sendOnePacket can be called synchronously and
// deterministically from the test goroutine.
func attachLoopbackConn(t *testing.T, tx *Transmitter, addr string, port int) {
	t.Helper()
	conn, err := transport.NewTransmitter(addr, port, 1, 0, "")
	if err != nil {
		t.Skipf("multicast send unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	tx.conn = conn
}

func TestTransmitterEmitsSilenceOnOverrun(t *testing.T) {
	desc := testDescriptor("239.255.81.2", 18106, 2, pcm.L16)
	mapping := router.Mapping{StreamID: uuid.New(), StreamName: "test", StreamChannelCount: 2, DeviceChannelStart: 0}
	outputs := newTestOutputs() // left empty: every read underflows

	tx := NewTransmitter(desc, mapping, outputs)
	attachLoopbackConn(t, tx, "239.255.81.2", 18106)
	tx.sendOnePacket()
	if tx.Stats().Overruns.Load() != 1 {
		t.Fatalf("overruns = %d, want 1", tx.Stats().Overruns.Load())
	}
}

func TestTransmitterSequenceAndTimestampAdvance(t *testing.T) {
	desc := testDescriptor("239.255.81.3", 18107, 1, pcm.L16)
	mapping := router.Mapping{StreamID: uuid.New(), StreamName: "test", StreamChannelCount: 1, DeviceChannelStart: 0}
	outputs := newTestOutputs()

	tx := NewTransmitter(desc, mapping, outputs)
	attachLoopbackConn(t, tx, "239.255.81.3", 18107)
	if tx.seq != 0 || tx.timestamp != 0 {
		t.Fatal("expected sequence and timestamp to start at zero")
	}
	tx.sendOnePacket()
	if tx.seq != 1 {
		t.Fatalf("seq after one packet = %d, want 1", tx.seq)
	}
	if tx.timestamp != uint32(tx.samplesPerPkt) {
		t.Fatalf("timestamp after one packet = %d, want %d", tx.timestamp, tx.samplesPerPkt)
	}
}

package stream

import (
	"math/rand"
	"sync"
	"time"

	"github.com/aes67/audioengine/aeserr"
	"github.com/aes67/audioengine/pcm"
	"github.com/aes67/audioengine/ring"
	"github.com/aes67/audioengine/router"
	"github.com/aes67/audioengine/rtp"
	"github.com/aes67/audioengine/sdp"
	"github.com/aes67/audioengine/transport"
)

// Transmitter is one TX pipeline: it gathers routed device output
// channels, encodes them per the descriptor's encoding, and sends one RTP
// packet per ptime interval, paced against an absolute deadline to avoid
// drift.
type Transmitter struct {
	desc    *sdp.Descriptor
	mapping router.Mapping
	outputs *[router.NumDeviceChannels]*ring.Ring
	stats   Statistics

	conn *transport.Transmitter

	ssrc           uint32
	seq            uint16
	timestamp      uint32
	samplesPerPkt  int
	interval       time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewTransmitter constructs a transmitter for desc/mapping, bound to the
// shared device output-ring array. It chooses a random SSRC immediately, as
// required by the data model.
func NewTransmitter(desc *sdp.Descriptor, mapping router.Mapping, outputs *[router.NumDeviceChannels]*ring.Ring) *Transmitter {
	ptimeMs := desc.PTimeMs
	if ptimeMs <= 0 {
		ptimeMs = 1
	}
	samplesPerPkt := int(float64(desc.SampleRate) / 1000.0 * ptimeMs)
	if samplesPerPkt <= 0 {
		samplesPerPkt = desc.SampleRate / 1000
	}
	return &Transmitter{
		desc:          desc,
		mapping:       mapping,
		outputs:       outputs,
		ssrc:          rand.Uint32(),
		samplesPerPkt: samplesPerPkt,
		interval:      time.Duration(ptimeMs * float64(time.Millisecond)),
		stopCh:        make(chan struct{}),
	}
}

// Start validates the descriptor and mapping, opens a multicast send
// socket, and launches the pacing goroutine.
func (t *Transmitter) Start() error {
	if err := t.mapping.Validate(); err != nil {
		return aeserr.Wrap(aeserr.MappingOutOfRange, "invalid mapping", err)
	}
	if !t.desc.IsMulticast() {
		return aeserr.New(aeserr.SDPValidation, "connection address is not in 239.0.0.0/8")
	}
	if t.samplesPerPkt <= 0 || t.samplesPerPkt > maxFramesPerPacket {
		return aeserr.New(aeserr.SDPValidation, "ptime/sample rate imply more than maxFramesPerPacket frames per packet")
	}
	conn, err := transport.NewTransmitter(t.desc.ConnAddress, t.desc.Port, t.desc.TTL, 0, "")
	if err != nil {
		return aeserr.Wrap(aeserr.NetworkSocket, "open send socket", err)
	}
	t.conn = conn

	t.wg.Add(1)
	go t.sendLoop()
	return nil
}

// Stop terminates the send loop and closes the socket. Idempotent.
func (t *Transmitter) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
	t.wg.Wait()
	if t.conn != nil {
		t.conn.Close()
	}
}

// Stats returns the transmitter's live counters.
func (t *Transmitter) Stats() *Statistics { return &t.stats }

func (t *Transmitter) sendLoop() {
	defer t.wg.Done()
	nextDeadline := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-timer.C:
		}

		nextDeadline = nextDeadline.Add(t.interval)
		t.sendOnePacket()

		delay := time.Until(nextDeadline)
		if delay < 0 {
			delay = 0
		}
		timer.Reset(delay)
	}
}

func (t *Transmitter) sendOnePacket() {
	channels := t.desc.Channels
	bytesPerSample := t.desc.Encoding.BytesPerSample()

	interleaved := make([]float32, t.samplesPerPkt*channels)
	deviceChannels := t.mapping.DeviceChannels()
	hadOverrun := false
	var scratch [maxFramesPerPacket]float32

	for s := 0; s < len(deviceChannels) && s < channels; s++ {
		dc := deviceChannels[s]
		col := scratch[:t.samplesPerPkt]
		var n int
		if dc >= 0 && dc < router.NumDeviceChannels {
			n = t.outputs[dc].Read(col)
		}
		if n < t.samplesPerPkt {
			for i := n; i < t.samplesPerPkt; i++ {
				col[i] = 0
			}
			hadOverrun = true
		}
		for f := 0; f < t.samplesPerPkt; f++ {
			interleaved[f*channels+s] = col[f]
		}
	}
	if hadOverrun {
		t.stats.Overruns.Add(1)
	}

	payload := make([]byte, 0, t.samplesPerPkt*channels*bytesPerSample)
	payload, err := pcm.Encode(t.desc.Encoding, payload, interleaved)
	if err != nil {
		t.stats.MalformedPackets.Add(1)
		return
	}

	hdr := rtp.Header{
		PayloadType:    uint8(t.desc.PayloadType),
		SequenceNumber: t.seq,
		Timestamp:      t.timestamp,
		SSRC:           t.ssrc,
	}
	packet := hdr.Pack(make([]byte, 0, rtp.HeaderSize+len(payload)))
	packet = append(packet, payload...)

	n, err := t.conn.Send(packet)
	if err != nil {
		// TX send errors are counted as malformed packets, per the
		// documented reuse of that counter for transmit failures.
		t.stats.MalformedPackets.Add(1)
	} else {
		t.stats.PacketsSent.Add(1)
		t.stats.BytesSent.Add(uint64(n))
	}

	t.seq++
	t.timestamp += uint32(t.samplesPerPkt)
}

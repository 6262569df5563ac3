package stream

import (
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

// maxFramesPerPacket bounds decode work per packet; packets implying more
// frames than this are treated as malformed, per the data model's ceiling.
const maxFramesPerPacket = 512

// connectedStaleness is how long a receiver may go without a packet before
// IsConnected reports false.
const connectedStaleness = time.Second

// Receiver is one RX pipeline: it owns a multicast socket and a dedicated
// goroutine that decodes incoming packets and routes them into the
// device's input rings.
type Receiver struct {
	desc    *sdp.Descriptor
	mapping router.Mapping
	inputs  *[router.NumDeviceChannels]*ring.Ring
	stats   Statistics

	conn *transport.Receiver

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	haveExpected bool
	expectedSeq  uint16
}

// NewReceiver constructs a receiver for desc/mapping, bound to the shared
// device input-ring array. It does not open a socket or start a goroutine;
// call Start for that.
func NewReceiver(desc *sdp.Descriptor, mapping router.Mapping, inputs *[router.NumDeviceChannels]*ring.Ring) *Receiver {
	return &Receiver{
		desc:    desc,
		mapping: mapping,
		inputs:  inputs,
		stopCh:  make(chan struct{}),
	}
}

// Start validates the descriptor and mapping, opens a multicast receive
// socket, and launches the receive loop goroutine.
func (r *Receiver) Start() error {
	if err := r.mapping.Validate(); err != nil {
		return aeserr.Wrap(aeserr.MappingOutOfRange, "invalid mapping", err)
	}
	if !r.desc.IsMulticast() {
		return aeserr.New(aeserr.SDPValidation, "connection address is not in 239.0.0.0/8")
	}
	conn, err := transport.NewReceiver(r.desc.ConnAddress, r.desc.Port, 0)
	if err != nil {
		return aeserr.Wrap(aeserr.NetworkSocket, "open receive socket", err)
	}
	r.conn = conn

	r.wg.Add(1)
	go r.receiveLoop()
	return nil
}

// Stop terminates the receive loop and closes the socket. Idempotent.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
	if r.conn != nil {
		r.conn.Close()
	}
}

// Stats returns the receiver's live counters.
func (r *Receiver) Stats() *Statistics { return &r.stats }

// IsConnected reports whether a packet has arrived in the last second.
func (r *Receiver) IsConnected() bool {
	return r.stats.TimeSinceLastPacket(time.Now()) < connectedStaleness
}

func (r *Receiver) receiveLoop() {
	defer r.wg.Done()
	buf := make([]byte, rtp.DefaultMTU)
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}
		n, err := r.conn.Recv(buf)
		if err != nil {
			r.stats.MalformedPackets.Add(1)
			continue
		}
		if n == 0 {
			continue
		}
		r.processPacket(buf[:n])
	}
}

func (r *Receiver) processPacket(packet []byte) {
	if !rtp.Valid(packet, rtp.DefaultMTU) {
		r.stats.MalformedPackets.Add(1)
		return
	}
	hdr, payload, ok := rtp.Unpack(packet, r.desc.PayloadType)
	if !ok {
		r.stats.MalformedPackets.Add(1)
		return
	}

	now := time.Now()
	r.stats.touch(now)
	r.stats.PacketsReceived.Add(1)
	r.stats.BytesReceived.Add(uint64(len(packet)))

	if !r.haveExpected {
		r.expectedSeq = hdr.SequenceNumber
		r.haveExpected = true
	}
	if hdr.SequenceNumber != r.expectedSeq {
		gap := hdr.SequenceNumber - r.expectedSeq // uint16 wraparound arithmetic
		r.stats.PacketsLost.Add(uint64(gap))
	}
	r.expectedSeq = hdr.SequenceNumber + 1

	bytesPerSample := r.desc.Encoding.BytesPerSample()
	if bytesPerSample == 0 {
		r.stats.MalformedPackets.Add(1)
		return
	}
	channels := r.desc.Channels
	bytesPerFrame := channels * bytesPerSample
	if bytesPerFrame == 0 || len(payload)%bytesPerFrame != 0 {
		r.stats.MalformedPackets.Add(1)
		return
	}
	frames := len(payload) / bytesPerFrame
	if frames == 0 || frames > maxFramesPerPacket {
		r.stats.MalformedPackets.Add(1)
		return
	}

	samples, err := pcm.Decode(r.desc.Encoding, nil, payload)
	if err != nil {
		r.stats.MalformedPackets.Add(1)
		return
	}

	r.route(samples, frames, channels)
}

// route de-interleaves the decoded frame block and writes each stream
// channel's column into its mapped device input ring, counting one
// underrun for the whole packet if any column short-writes.
func (r *Receiver) route(samples []float32, frames, channels int) {
	deviceChannels := r.mapping.DeviceChannels()
	hadUnderrun := false
	var scratch [maxFramesPerPacket]float32

	for s := 0; s < len(deviceChannels) && s < channels; s++ {
		col := scratch[:frames]
		for f := 0; f < frames; f++ {
			col[f] = samples[f*channels+s]
		}
		dc := deviceChannels[s]
		if dc < 0 || dc >= router.NumDeviceChannels {
			continue
		}
		n := r.inputs[dc].Write(col)
		if n < frames {
			hadUnderrun = true
		}
	}
	if hadUnderrun {
		r.stats.Underruns.Add(1)
	}
}

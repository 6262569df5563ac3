// Package bridge implements the real-time-safe host-audio-callback
// adapter: it moves samples between the device's 128 SPSC rings and a
// flat, host-interleaved buffer. Every method here runs on the host's
// real-time audio thread and must never allocate, lock, or perform a
// system call.
package bridge

import (
	"errors"
	"sync/atomic"

	"github.com/aes67/audioengine/ring"
)

// NumChannels is the fixed device channel count the bridge operates over.
const NumChannels = 128

// scratchCeiling bounds the per-call stack scratch buffer; callbacks
// requesting more frames than this are treated as a fault (silence/drop)
// rather than growing the buffer, since growing would allocate.
const scratchCeiling = 512

// ErrChannelCountMismatch is returned when a caller's channel stride does
// not equal NumChannels.
var ErrChannelCountMismatch = errors.New("bridge: channel count must be 128")

// ErrFramesExceedCeiling is returned when frames exceeds the fixed
// per-call scratch ceiling; the host buffer is still filled with
// silence (read path) or all of the callback's samples are discarded
// (write path).
var ErrFramesExceedCeiling = errors.New("bridge: frames exceeds scratch ceiling")

// Bridge holds the two ring arrays (input: network producer / host
// consumer; output: host producer / network consumer) and the RT-safe
// fault counters.
type Bridge struct {
	Inputs  [NumChannels]*ring.Ring
	Outputs [NumChannels]*ring.Ring

	inputUnderruns atomic.Uint64
	outputOverruns atomic.Uint64

	// Separate scratch buffers for the read and write paths: the host
	// callback may invoke both in the same audio period, so they must not
	// alias even though each individually is only ever touched by the RT
	// thread.
	scratchIn  [scratchCeiling]float32
	scratchOut [scratchCeiling]float32
}

// New allocates a Bridge with fresh rings of the given per-channel
// capacity for both directions. Allocation happens here, at construction
// time, off the RT thread.
func New(ringCapacity int) *Bridge {
	b := &Bridge{}
	for c := 0; c < NumChannels; c++ {
		b.Inputs[c] = ring.New(ringCapacity)
		b.Outputs[c] = ring.New(ringCapacity)
	}
	return b
}

// InputUnderruns returns the cumulative count of read callbacks that
// underflowed on at least one channel.
func (b *Bridge) InputUnderruns() uint64 { return b.inputUnderruns.Load() }

// OutputOverruns returns the cumulative count of write callbacks that
// overflowed on at least one channel.
func (b *Bridge) OutputOverruns() uint64 { return b.outputOverruns.Load() }

// OnReadInput fills out (a host-interleaved buffer of frames*channels
// samples) by draining frames samples from each input ring. channels must
// equal NumChannels. If any channel underflows, exactly one underrun is
// counted for the whole callback, and the missing tail on that channel is
// filled with silence.
func (b *Bridge) OnReadInput(out []float32, frames, channels int) error {
	if channels != NumChannels {
		zero(out)
		return ErrChannelCountMismatch
	}
	if frames > scratchCeiling {
		zero(out)
		b.inputUnderruns.Add(1)
		return ErrFramesExceedCeiling
	}

	hadUnderrun := false
	scratch := b.scratchIn[:frames]
	for c := 0; c < NumChannels; c++ {
		n := b.Inputs[c].Read(scratch)
		if n < frames {
			for i := n; i < frames; i++ {
				scratch[i] = 0
			}
			hadUnderrun = true
		}
		for f := 0; f < frames; f++ {
			out[f*NumChannels+c] = scratch[f]
		}
	}
	if hadUnderrun {
		b.inputUnderruns.Add(1)
	}
	return nil
}

// OnWriteOutput drains a host-interleaved buffer in (frames*channels
// samples) into the output rings. channels must equal NumChannels. If any
// channel's ring cannot accept all frames, the excess is dropped and
// exactly one overrun is counted for the whole callback.
func (b *Bridge) OnWriteOutput(in []float32, frames, channels int) error {
	if channels != NumChannels {
		return ErrChannelCountMismatch
	}
	if frames > scratchCeiling {
		b.outputOverruns.Add(1)
		return ErrFramesExceedCeiling
	}

	hadOverrun := false
	scratch := b.scratchOut[:frames]
	for c := 0; c < NumChannels; c++ {
		for f := 0; f < frames; f++ {
			scratch[f] = in[f*NumChannels+c]
		}
		n := b.Outputs[c].Write(scratch)
		if n < frames {
			hadOverrun = true
		}
	}
	if hadOverrun {
		b.outputOverruns.Add(1)
	}
	return nil
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

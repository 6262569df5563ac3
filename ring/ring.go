// Package ring implements a bounded single-producer/single-consumer queue
// of audio samples. It is the basis of every real-time boundary in the
// engine: the RT bridge, the receiver's per-channel write path, and the
// transmitter's per-channel read path all move samples through a Ring
// instead of a mutex-protected slice.
package ring

import "sync/atomic"

// Ring is a lock-free SPSC bounded queue of float32 samples. One slot of
// the backing array is always left empty so the write and read cursors
// can distinguish full from empty without a separate counter.
//
// write must only ever be called from the designated producer goroutine;
// read only from the designated consumer goroutine. Both are wait-free
// and allocation-free once constructed.
type Ring struct {
	buf []float32
	cap uint64 // len(buf), i.e. requested capacity + 1

	writeIdx atomic.Uint64
	_pad0    [56]byte // push readIdx onto its own cache line

	readIdx atomic.Uint64
	_pad1   [56]byte
}

// New returns a Ring able to hold capacity samples before reporting full.
// capacity must be ≥ 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf: make([]float32, capacity+1),
		cap: uint64(capacity + 1),
	}
}

// Capacity returns the usable capacity (excluding the reserved slot).
func (r *Ring) Capacity() int {
	return int(r.cap - 1)
}

// Write copies up to len(src) samples into the ring and returns the number
// actually written. It never blocks: if the ring is full it returns 0; if
// it has room for fewer samples than len(src) it writes a short prefix.
func (r *Ring) Write(src []float32) int {
	if len(src) == 0 {
		return 0
	}
	writeIdx := r.writeIdx.Load()
	readIdx := r.readIdx.Load()

	avail := r.availableWrite(writeIdx, readIdx)
	toWrite := len(src)
	if uint64(toWrite) > avail {
		toWrite = int(avail)
	}
	if toWrite == 0 {
		return 0
	}

	firstChunk := uint64(toWrite)
	if room := r.cap - writeIdx; firstChunk > room {
		firstChunk = room
	}
	copy(r.buf[writeIdx:writeIdx+firstChunk], src[:firstChunk])
	if firstChunk < uint64(toWrite) {
		secondChunk := uint64(toWrite) - firstChunk
		copy(r.buf[0:secondChunk], src[firstChunk:toWrite])
	}

	newWriteIdx := (writeIdx + uint64(toWrite)) % r.cap
	r.writeIdx.Store(newWriteIdx)
	return toWrite
}

// Read copies up to len(dst) samples out of the ring and returns the number
// actually read. It never blocks: an empty ring returns 0.
func (r *Ring) Read(dst []float32) int {
	if len(dst) == 0 {
		return 0
	}
	readIdx := r.readIdx.Load()
	writeIdx := r.writeIdx.Load()

	avail := r.availableRead(readIdx, writeIdx)
	toRead := len(dst)
	if uint64(toRead) > avail {
		toRead = int(avail)
	}
	if toRead == 0 {
		return 0
	}

	firstChunk := uint64(toRead)
	if room := r.cap - readIdx; firstChunk > room {
		firstChunk = room
	}
	copy(dst[:firstChunk], r.buf[readIdx:readIdx+firstChunk])
	if firstChunk < uint64(toRead) {
		secondChunk := uint64(toRead) - firstChunk
		copy(dst[firstChunk:toRead], r.buf[0:secondChunk])
	}

	newReadIdx := (readIdx + uint64(toRead)) % r.cap
	r.readIdx.Store(newReadIdx)
	return toRead
}

// Available returns the number of samples readable right now. Safe to call
// from either thread.
func (r *Ring) Available() int {
	writeIdx := r.writeIdx.Load()
	readIdx := r.readIdx.Load()
	return int(r.availableRead(readIdx, writeIdx))
}

// Free returns the number of samples writable right now. Safe to call from
// either thread.
func (r *Ring) Free() int {
	writeIdx := r.writeIdx.Load()
	readIdx := r.readIdx.Load()
	return int(r.availableWrite(writeIdx, readIdx))
}

// IsEmpty reports whether the ring currently holds no samples.
func (r *Ring) IsEmpty() bool { return r.Available() == 0 }

// IsFull reports whether the ring currently has no free slots.
func (r *Ring) IsFull() bool { return r.Free() == 0 }

// Reset drops all buffered samples. Not safe to call concurrently with a
// producer or consumer; only use it while the pipeline owning the ring is
// stopped.
func (r *Ring) Reset() {
	r.writeIdx.Store(0)
	r.readIdx.Store(0)
}

func (r *Ring) availableRead(readIdx, writeIdx uint64) uint64 {
	if writeIdx >= readIdx {
		return writeIdx - readIdx
	}
	return r.cap - readIdx + writeIdx
}

func (r *Ring) availableWrite(writeIdx, readIdx uint64) uint64 {
	if readIdx > writeIdx {
		return readIdx - writeIdx - 1
	}
	return r.cap - writeIdx + readIdx - 1
}

// Package router implements the 128-slot device-channel ownership table:
// which stream, if any, owns each of the device's channels, plus the
// per-stream mapping records that justify that ownership. It is a
// control-plane structure only — it never touches audio data.
package router

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NumDeviceChannels is the fixed channel budget of the logical device.
const NumDeviceChannels = 128

// Mapping describes how one stream's channels are placed onto device
// channels. Either ChannelMap is empty, meaning the stream occupies the
// sequential device-channel range [DeviceChannelStart, DeviceChannelStart+
// StreamChannelCount), or it has exactly StreamChannelCount entries, each a
// distinct device channel in [0, NumDeviceChannels).
type Mapping struct {
	StreamID           uuid.UUID
	StreamName         string
	StreamChannelCount int
	DeviceChannelStart int
	ChannelMap         []int // optional explicit permutation
}

// DeviceChannels returns the set of device channels this mapping claims, in
// stream-channel order.
func (m Mapping) DeviceChannels() []int {
	if len(m.ChannelMap) > 0 {
		out := make([]int, len(m.ChannelMap))
		copy(out, m.ChannelMap)
		return out
	}
	out := make([]int, m.StreamChannelCount)
	for i := range out {
		out[i] = m.DeviceChannelStart + i
	}
	return out
}

// Validate checks the structural invariants from the data model: non-null
// stream id, non-zero channel count, explicit map (if present) sized and
// ranged correctly, or sequential range within [0, 128).
func (m Mapping) Validate() error {
	if m.StreamID == uuid.Nil {
		return fmt.Errorf("router: mapping has null stream id")
	}
	if m.StreamChannelCount <= 0 {
		return fmt.Errorf("router: mapping has zero stream channel count")
	}
	if len(m.ChannelMap) > 0 {
		if len(m.ChannelMap) != m.StreamChannelCount {
			return fmt.Errorf("router: channel map size %d does not match stream channel count %d", len(m.ChannelMap), m.StreamChannelCount)
		}
		seen := make(map[int]bool, len(m.ChannelMap))
		for _, ch := range m.ChannelMap {
			if ch < 0 || ch >= NumDeviceChannels {
				return fmt.Errorf("router: channel map entry %d out of range [0, %d)", ch, NumDeviceChannels)
			}
			if seen[ch] {
				return fmt.Errorf("router: channel map has duplicate device channel %d", ch)
			}
			seen[ch] = true
		}
		return nil
	}
	if m.DeviceChannelStart < 0 || m.DeviceChannelStart >= NumDeviceChannels {
		return fmt.Errorf("router: device channel start %d out of range [0, %d)", m.DeviceChannelStart, NumDeviceChannels)
	}
	if m.DeviceChannelStart+m.StreamChannelCount > NumDeviceChannels {
		return fmt.Errorf("router: mapping [%d, %d) exceeds device channel budget %d",
			m.DeviceChannelStart, m.DeviceChannelStart+m.StreamChannelCount, NumDeviceChannels)
	}
	return nil
}

// Router owns the device-channel ownership table and the per-stream
// mapping records. All operations take a single mutex; it is never held
// across audio I/O.
type Router struct {
	mu     sync.RWMutex
	owners [NumDeviceChannels]uuid.UUID
	byID   map[uuid.UUID]Mapping
}

// New returns an empty Router with all channels free.
func New() *Router {
	return &Router{byID: make(map[uuid.UUID]Mapping)}
}

// Add validates mapping and, if none of its claimed device channels are
// already owned by any stream (including m.StreamID itself), stamps
// ownership and records the mapping. It refuses (returning an error,
// leaving state unchanged) on any overlap with an owned channel.
func (r *Router) Add(m Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	channels := m.DeviceChannels()
	for _, ch := range channels {
		if owner := r.owners[ch]; owner != uuid.Nil {
			return fmt.Errorf("router: device channel %d already owned by stream %s", ch, owner)
		}
	}
	for _, ch := range channels {
		r.owners[ch] = m.StreamID
	}
	r.byID[m.StreamID] = m
	return nil
}

// Update behaves like Add but additionally tolerates slots already owned by
// the same stream id (the common "add in place" case of changing which
// specific channels a stream owns).
func (r *Router) Update(m Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Release this stream's current ownership before checking for
	// conflicts against the new mapping, so shrinking/moving a mapping
	// never spuriously conflicts with itself.
	if old, ok := r.byID[m.StreamID]; ok {
		for _, ch := range old.DeviceChannels() {
			if r.owners[ch] == m.StreamID {
				r.owners[ch] = uuid.Nil
			}
		}
	}

	channels := m.DeviceChannels()
	for _, ch := range channels {
		if owner := r.owners[ch]; owner != uuid.Nil && owner != m.StreamID {
			// Restore prior ownership before returning the error.
			if old, ok := r.byID[m.StreamID]; ok {
				for _, c := range old.DeviceChannels() {
					r.owners[c] = m.StreamID
				}
			}
			return fmt.Errorf("router: device channel %d already owned by stream %s", ch, owner)
		}
	}
	for _, ch := range channels {
		r.owners[ch] = m.StreamID
	}
	r.byID[m.StreamID] = m
	return nil
}

// Remove frees every device channel owned by id and deletes its mapping
// record. It is a no-op if id is not present.
func (r *Router) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return
	}
	for _, ch := range m.DeviceChannels() {
		if r.owners[ch] == id {
			r.owners[ch] = uuid.Nil
		}
	}
	delete(r.byID, id)
}

// FindFreeBlock scans for the first contiguous run of at least n free
// device channels, starting at index 0, returning its start index. ok is
// false if no such run exists.
func (r *Router) FindFreeBlock(n int) (start int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findFreeBlockLocked(n)
}

func (r *Router) findFreeBlockLocked(n int) (int, bool) {
	if n <= 0 || n > NumDeviceChannels {
		return 0, false
	}
	run := 0
	for i := 0; i < NumDeviceChannels; i++ {
		if r.owners[i] == uuid.Nil {
			run++
			if run >= n {
				return i - run + 1, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

// DefaultMapping builds a sequential mapping for id starting at the first
// free block of n channels, or returns ok=false if none is available.
func (r *Router) DefaultMapping(id uuid.UUID, name string, n int) (Mapping, bool) {
	r.mu.RLock()
	start, ok := r.findFreeBlockLocked(n)
	r.mu.RUnlock()
	if !ok {
		return Mapping{}, false
	}
	return Mapping{
		StreamID:           id,
		StreamName:         name,
		StreamChannelCount: n,
		DeviceChannelStart: start,
	}, true
}

// OwnerOf returns the stream id owning device channel ch, or uuid.Nil if
// free.
func (r *Router) OwnerOf(ch int) uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ch < 0 || ch >= NumDeviceChannels {
		return uuid.Nil
	}
	return r.owners[ch]
}

// MappingFor returns the mapping record for id, if any.
func (r *Router) MappingFor(id uuid.UUID) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// FreeChannels returns the count of currently unowned device channels.
func (r *Router) FreeChannels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	free := 0
	for _, o := range r.owners {
		if o == uuid.Nil {
			free++
		}
	}
	return free
}

// UsedChannels returns the count of currently owned device channels.
func (r *Router) UsedChannels() int {
	return NumDeviceChannels - r.FreeChannels()
}

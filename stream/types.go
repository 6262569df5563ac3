// Package stream implements the receive and transmit pipelines (C9, C10)
// and the stream manager that owns their lifecycle (C12).
package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aes67/audioengine/router"
	"github.com/aes67/audioengine/sdp"
)

// DeviceConfig is the host-supplied configuration of the logical AES67
// device: sample rate, channel/stream budget, feature switches, and the
// identity fields surfaced in SDP origin lines and SAP announcements.
type DeviceConfig struct {
	SampleRate         float64
	BufferSize         int
	MaxChannels         int
	MaxStreams          int
	RingBufferSize      int
	PTPEnabled          bool
	SAPDiscoveryEnabled bool
	DeviceName          string
	ManufacturerName    string
	DeviceUID           string
	ConfigPath          string
	MappingsPath        string
}

// DefaultDeviceConfig mirrors the original driver's compiled-in defaults:
// 128 channels, 64 streams, 48 kHz, 64-frame host buffer, 480-sample rings.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate:          48000.0,
		BufferSize:          64,
		MaxChannels:         router.NumDeviceChannels,
		MaxStreams:          64,
		RingBufferSize:      480,
		PTPEnabled:          true,
		SAPDiscoveryEnabled: true,
		DeviceName:          "AES67 Engine",
		ManufacturerName:    "AES67",
		DeviceUID:           "aes67-engine-0",
		ConfigPath:          "/etc/aes67/config.json",
		MappingsPath:        "/etc/aes67/mappings.json",
	}
}

// Statistics are the per-stream cumulative counters from the data model.
// The counters are updated with atomics and the last-packet time is
// guarded by its own small mutex, so a caller can read a snapshot from any
// goroutine without touching the pipeline's internal locks.
type Statistics struct {
	PacketsReceived   atomic.Uint64
	PacketsSent       atomic.Uint64
	PacketsLost       atomic.Uint64
	MalformedPackets  atomic.Uint64
	OutOfOrderPackets atomic.Uint64 // never incremented: every sequence gap is counted in PacketsLost
	Underruns         atomic.Uint64
	Overruns          atomic.Uint64
	BytesReceived     atomic.Uint64
	BytesSent         atomic.Uint64
	JitterNs          atomic.Int64 // not updated by the receiver; stays zero
	LatencyNs         atomic.Int64 // not updated by the receiver; stays zero

	lastPacketMu   sync.RWMutex
	lastPacketTime time.Time
}

// Snapshot is a point-in-time, plain copy of Statistics suitable for
// serialization or display.
type Snapshot struct {
	PacketsReceived   uint64
	PacketsSent       uint64
	PacketsLost       uint64
	MalformedPackets  uint64
	OutOfOrderPackets uint64
	Underruns         uint64
	Overruns          uint64
	BytesReceived     uint64
	BytesSent         uint64
	JitterNs          int64
	LatencyNs         int64
	LastPacketTime    time.Time
}

func (s *Statistics) touch(now time.Time) {
	s.lastPacketMu.Lock()
	s.lastPacketTime = now
	s.lastPacketMu.Unlock()
}

// TimeSinceLastPacket returns the elapsed time since the last recorded
// packet, or a very large duration if none has ever been recorded.
func (s *Statistics) TimeSinceLastPacket(now time.Time) time.Duration {
	s.lastPacketMu.RLock()
	last := s.lastPacketTime
	s.lastPacketMu.RUnlock()
	if last.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return now.Sub(last)
}

// Snapshot copies the current counters into a plain value.
func (s *Statistics) Snapshot() Snapshot {
	s.lastPacketMu.RLock()
	last := s.lastPacketTime
	s.lastPacketMu.RUnlock()
	return Snapshot{
		PacketsReceived:   s.PacketsReceived.Load(),
		PacketsSent:       s.PacketsSent.Load(),
		PacketsLost:       s.PacketsLost.Load(),
		MalformedPackets:  s.MalformedPackets.Load(),
		OutOfOrderPackets: s.OutOfOrderPackets.Load(),
		Underruns:         s.Underruns.Load(),
		Overruns:          s.Overruns.Load(),
		BytesReceived:     s.BytesReceived.Load(),
		BytesSent:         s.BytesSent.Load(),
		JitterNs:          s.JitterNs.Load(),
		LatencyNs:         s.LatencyNs.Load(),
		LastPacketTime:    last,
	}
}

// PacketLossPercent computes loss percentage of the received+lost total.
func (sn Snapshot) PacketLossPercent() float64 {
	total := sn.PacketsReceived + sn.PacketsLost
	if total == 0 {
		return 0
	}
	return float64(sn.PacketsLost) / float64(total) * 100.0
}

// Kind distinguishes a managed stream's pipeline direction.
type Kind int

const (
	KindReceiver Kind = iota
	KindTransmitter
)

// Info is the observable record of a managed stream: descriptor, mapping,
// direction, and lifecycle status.
type Info struct {
	ID          uuid.UUID
	Kind        Kind
	Description string
	Descriptor  *sdp.Descriptor
	Mapping     router.Mapping
	IsActive    bool
	StartTime   time.Time
	Statistics  *Statistics
}

// IsConnected reports whether a packet has been seen inside the given
// staleness window (1s for receivers, per the data model).
func (i *Info) IsConnected(now time.Time, staleness time.Duration) bool {
	return i.Statistics.TimeSinceLastPacket(now) < staleness
}

// EventKind identifies which observer callback fired.
type EventKind int

const (
	EventStreamAdded EventKind = iota
	EventStreamRemoved
	EventStatusChanged
)

// Event is delivered to Manager observers outside any internal mutex.
type Event struct {
	Kind EventKind
	ID   uuid.UUID
	Info *Info
}

// Observer receives stream lifecycle notifications.
type Observer func(Event)

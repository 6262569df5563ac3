package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rs/zerolog"

	"github.com/aes67/audioengine/aeserr"
	"github.com/aes67/audioengine/clock"
	"github.com/aes67/audioengine/log"
	"github.com/aes67/audioengine/ring"
	"github.com/aes67/audioengine/router"
	"github.com/aes67/audioengine/sdp"
)

// pipeline is the shared shape of Receiver and Transmitter that Manager
// needs: no common base type, just the operations both happen to support.
type pipeline interface {
	Start() error
	Stop()
	Stats() *Statistics
}

type managedStream struct {
	info     *Info
	pipeline pipeline
}

// Manager owns the router, the managed-stream table, and the device
// sample-rate setting. It is the only admission path for new receivers and
// transmitters.
type Manager struct {
	mu sync.Mutex // admission mutex; held while a new pipeline is started, including its socket open

	router  *router.Router
	clock   *clock.Service
	cfg     DeviceConfig
	inputs  [router.NumDeviceChannels]*ring.Ring
	outputs [router.NumDeviceChannels]*ring.Ring

	streams map[uuid.UUID]*managedStream

	observersMu sync.RWMutex
	observers   []Observer

	logger zerolog.Logger
}

// New constructs a Manager with a fresh router, device-sized ring arrays,
// and the given device configuration and clock service.
func New(cfg DeviceConfig, clk *clock.Service) *Manager {
	m := &Manager{
		router:  router.New(),
		clock:   clk,
		cfg:     cfg,
		streams: make(map[uuid.UUID]*managedStream),
		logger:  log.Event("manager"),
	}
	for c := 0; c < router.NumDeviceChannels; c++ {
		m.inputs[c] = ring.New(cfg.RingBufferSize)
		m.outputs[c] = ring.New(cfg.RingBufferSize)
	}
	return m
}

// Inputs exposes the device input-ring array for the RT bridge to borrow.
func (m *Manager) Inputs() *[router.NumDeviceChannels]*ring.Ring { return &m.inputs }

// Outputs exposes the device output-ring array for the RT bridge to
// borrow.
func (m *Manager) Outputs() *[router.NumDeviceChannels]*ring.Ring { return &m.outputs }

// Subscribe registers an observer for stream lifecycle events.
func (m *Manager) Subscribe(o Observer) {
	m.observersMu.Lock()
	defer m.observersMu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Manager) notify(ev Event) {
	m.observersMu.RLock()
	obs := append([]Observer(nil), m.observers...)
	m.observersMu.RUnlock()
	for _, o := range obs {
		o(ev)
	}
}

// AddRx derives a default mapping from the router and admits a receive
// stream for desc.
func (m *Manager) AddRx(desc *sdp.Descriptor) (uuid.UUID, error) {
	id := uuid.New()
	mapping, ok := m.router.DefaultMapping(id, desc.SessionName, desc.Channels)
	if !ok {
		return uuid.Nil, aeserr.New(aeserr.MappingNoChannelsAvailable, "no free device channel block available")
	}
	return m.AddRxWithMapping(desc, mapping)
}

// AddRxWithMapping admits a receive stream under an explicit mapping.
func (m *Manager) AddRxWithMapping(desc *sdp.Descriptor, mapping router.Mapping) (uuid.UUID, error) {
	m.mu.Lock()

	if err := m.canAdd(desc); err != nil {
		m.mu.Unlock()
		return uuid.Nil, err
	}

	id := uuid.New()
	mapping.StreamID = id
	if mapping.StreamName == "" {
		mapping.StreamName = desc.SessionName
	}
	mapping.StreamChannelCount = desc.Channels

	if err := m.router.Add(mapping); err != nil {
		m.mu.Unlock()
		return uuid.Nil, aeserr.Wrap(aeserr.MappingOverlap, "router refused mapping", err)
	}

	rx := NewReceiver(desc, mapping, &m.inputs)
	if err := rx.Start(); err != nil {
		m.router.Remove(id)
		m.mu.Unlock()
		return uuid.Nil, err
	}

	info := &Info{
		ID:          id,
		Kind:        KindReceiver,
		Description: desc.Info,
		Descriptor:  desc,
		Mapping:     mapping,
		IsActive:    true,
		StartTime:   time.Now(),
		Statistics:  rx.Stats(),
	}
	m.streams[id] = &managedStream{info: info, pipeline: rx}
	m.mu.Unlock()

	m.logger.Info().Str("stream", id.String()).Str("name", desc.SessionName).Msg("rx stream added")
	m.notify(Event{Kind: EventStreamAdded, ID: id, Info: info})
	return id, nil
}

// AddTx constructs an SDP descriptor from current device state and the
// given parameters (encoding L24, payload type 97, ptime 1ms, per the
// documented transmit defaults) and admits a transmit stream.
func (m *Manager) AddTx(name, addr string, port, channels int, mapping *router.Mapping) (uuid.UUID, error) {
	m.mu.Lock()

	desc := sdp.DefaultTxSession(name, m.cfg.DeviceUID, addr, port, int(m.cfg.SampleRate), channels)
	if err := m.canAdd(desc); err != nil {
		m.mu.Unlock()
		return uuid.Nil, err
	}

	id := uuid.New()
	var mp router.Mapping
	if mapping != nil {
		mp = *mapping
		mp.StreamID = id
	} else {
		free, ok := m.router.DefaultMapping(id, name, channels)
		if !ok {
			m.mu.Unlock()
			return uuid.Nil, aeserr.New(aeserr.MappingNoChannelsAvailable, "no free device channel block available")
		}
		mp = free
	}
	mp.StreamChannelCount = channels
	if mp.StreamName == "" {
		mp.StreamName = name
	}

	if err := m.router.Add(mp); err != nil {
		m.mu.Unlock()
		return uuid.Nil, aeserr.Wrap(aeserr.MappingOverlap, "router refused mapping", err)
	}

	tx := NewTransmitter(desc, mp, &m.outputs)
	if err := tx.Start(); err != nil {
		m.router.Remove(id)
		m.mu.Unlock()
		return uuid.Nil, err
	}

	info := &Info{
		ID:          id,
		Kind:        KindTransmitter,
		Description: desc.Info,
		Descriptor:  desc,
		Mapping:     mp,
		IsActive:    true,
		StartTime:   time.Now(),
		Statistics:  tx.Stats(),
	}
	m.streams[id] = &managedStream{info: info, pipeline: tx}
	m.mu.Unlock()

	m.logger.Info().Str("stream", id.String()).Str("name", name).Msg("tx stream added")
	m.notify(Event{Kind: EventStreamAdded, ID: id, Info: info})
	return id, nil
}

// UpdateMapping re-targets an existing stream's channel mapping: the
// router is updated first, then the pipeline is stopped and rebuilt with
// the same descriptor and socket parameters.
func (m *Manager) UpdateMapping(id uuid.UUID, newMapping router.Mapping) error {
	m.mu.Lock()

	ms, ok := m.streams[id]
	if !ok {
		m.mu.Unlock()
		return aeserr.New(aeserr.StreamNotFound, id.String())
	}
	newMapping.StreamID = id
	if err := m.router.Update(newMapping); err != nil {
		m.mu.Unlock()
		return aeserr.Wrap(aeserr.MappingOverlap, "router refused updated mapping", err)
	}

	ms.pipeline.Stop()

	var np pipeline
	switch ms.info.Kind {
	case KindReceiver:
		rx := NewReceiver(ms.info.Descriptor, newMapping, &m.inputs)
		if err := rx.Start(); err != nil {
			m.mu.Unlock()
			return err
		}
		np = rx
	case KindTransmitter:
		tx := NewTransmitter(ms.info.Descriptor, newMapping, &m.outputs)
		if err := tx.Start(); err != nil {
			m.mu.Unlock()
			return err
		}
		np = tx
	}
	ms.pipeline = np
	ms.info.Mapping = newMapping
	ms.info.Statistics = np.Stats()
	m.mu.Unlock()

	m.notify(Event{Kind: EventStatusChanged, ID: id, Info: ms.info})
	return nil
}

// Remove stops and tears down the stream, releasing its router channels.
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	ms, ok := m.streams[id]
	if !ok {
		m.mu.Unlock()
		return aeserr.New(aeserr.StreamNotFound, id.String())
	}
	delete(m.streams, id)
	m.router.Remove(id)
	m.mu.Unlock()

	ms.pipeline.Stop()
	ms.info.IsActive = false

	m.logger.Info().Str("stream", id.String()).Msg("stream removed")
	m.notify(Event{Kind: EventStreamRemoved, ID: id, Info: ms.info})
	return nil
}

// RemoveAll tears down every managed stream.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Remove(id)
	}
}

// Get returns the observable Info for id.
func (m *Manager) Get(id uuid.UUID) (*Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.streams[id]
	if !ok {
		return nil, false
	}
	return ms.info, true
}

// List returns a snapshot slice of every managed stream's Info.
func (m *Manager) List() []*Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Info, 0, len(m.streams))
	for _, ms := range m.streams {
		out = append(out, ms.info)
	}
	return out
}

// SetDeviceSampleRate refuses if any live stream's declared rate differs
// from rate.
func (m *Manager) SetDeviceSampleRate(rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.streams {
		if float64(ms.info.Descriptor.SampleRate) != rate {
			return aeserr.New(aeserr.StreamSampleRateMismatch,
				fmt.Sprintf("stream %s declares %d Hz, device would move to %.0f Hz", ms.info.ID, ms.info.Descriptor.SampleRate, rate))
		}
	}
	m.cfg.SampleRate = rate
	return nil
}

func (m *Manager) canAdd(desc *sdp.Descriptor) error {
	if err := m.validateSampleRate(desc); err != nil {
		return err
	}
	if err := m.validateChannelAvailability(desc); err != nil {
		return err
	}
	if err := m.validateNetworkConfig(desc); err != nil {
		return err
	}
	return nil
}

func (m *Manager) validateSampleRate(desc *sdp.Descriptor) error {
	if float64(desc.SampleRate) != m.cfg.SampleRate {
		return aeserr.New(aeserr.StreamSampleRateMismatch,
			fmt.Sprintf("stream declares %d Hz, device is %.0f Hz", desc.SampleRate, m.cfg.SampleRate))
	}
	return nil
}

func (m *Manager) validateChannelAvailability(desc *sdp.Descriptor) error {
	if m.router.FreeChannels() < desc.Channels {
		return aeserr.New(aeserr.MappingNoChannelsAvailable,
			fmt.Sprintf("need %d channels, %d free", desc.Channels, m.router.FreeChannels()))
	}
	return nil
}

func (m *Manager) validateNetworkConfig(desc *sdp.Descriptor) error {
	if !desc.IsMulticast() {
		return aeserr.New(aeserr.SDPValidation, "connection address is not in 239.0.0.0/8")
	}
	if desc.Port == 0 {
		return aeserr.New(aeserr.SDPValidation, "port is zero")
	}
	return nil
}

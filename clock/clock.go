// Package clock implements the process-wide multi-domain clock service: a
// monotonic wall clock plus a table of per-PTP-domain offsets with a
// locked/unlocked state, dispatched by stream descriptor. A background
// DomainWorker per active domain maintains the table; see ptpworker.go for
// the two implementations (real PTP hardware clock, and a fixed-delay
// fallback placeholder).
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// DomainState is the atomically-read snapshot of one PTP domain's lock
// status, per the data model: locked bit, signed nanosecond offset, clock
// class/accuracy, and master identifier.
type DomainState struct {
	Locked      bool
	OffsetNs    int64
	ClockClass  uint8
	Accuracy    uint8
	MasterID    string
}

// DomainWorker maintains one domain's DomainState in the background. Real
// implementations poll hardware or a software PTP stack; Stop must be safe
// to call multiple times and must not block waiting on the network.
type DomainWorker interface {
	Domain() int
	State() DomainState
	Stop()
}

// Service is the process-wide clock singleton. Callers should be given an
// explicit *Service rather than reaching for a hidden global, so tests can
// construct independent instances.
type Service struct {
	mu      sync.RWMutex
	workers map[int]DomainWorker
	enabled atomic.Bool // global PTP switch; false forces monotonic fallback
}

// New returns a Service with PTP offsets enabled and no domains registered.
func New() *Service {
	s := &Service{workers: make(map[int]DomainWorker)}
	s.enabled.Store(true)
	return s
}

// nowBase anchors Now to the monotonic clock reading taken at process
// start; lastNow holds the most recent value Now returned.
var (
	nowBase = time.Now()
	lastNow atomic.Int64
)

// Now returns the current monotonic wall-clock time in nanoseconds. It is
// strictly increasing between calls on the same goroutine, as required by
// the invariant that now() never goes backward.
func (s *Service) Now() int64 {
	t := nowBase.UnixNano() + int64(time.Since(nowBase))
	for {
		prev := lastNow.Load()
		if t <= prev {
			t = prev + 1
		}
		if lastNow.CompareAndSwap(prev, t) {
			return t
		}
	}
}

// SetPTPEnabled flips the global switch; when disabled, NowForDomain and
// NowForStream always fall back to Now regardless of domain lock state.
func (s *Service) SetPTPEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// PTPEnabled reports the current state of the global switch.
func (s *Service) PTPEnabled() bool {
	return s.enabled.Load()
}

// RegisterDomain installs w as the background worker for its domain,
// replacing and stopping any prior worker for that domain.
func (s *Service) RegisterDomain(w DomainWorker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.workers[w.Domain()]; ok {
		old.Stop()
	}
	s.workers[w.Domain()] = w
}

// UnregisterDomain stops and removes the worker for domain, if any.
func (s *Service) UnregisterDomain(domain int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[domain]; ok {
		w.Stop()
		delete(s.workers, domain)
	}
}

// DomainState returns the current state for domain, or the zero value
// (unlocked, zero offset) if no worker is registered for it.
func (s *Service) DomainState(domain int) DomainState {
	s.mu.RLock()
	w, ok := s.workers[domain]
	s.mu.RUnlock()
	if !ok {
		return DomainState{}
	}
	return w.State()
}

// NowForDomain returns Now() plus the domain's offset when the domain is
// locked and the global switch is enabled; otherwise it returns Now().
// domain < 0 always uses the monotonic fallback.
func (s *Service) NowForDomain(domain int) int64 {
	now := s.Now()
	if domain < 0 || !s.enabled.Load() {
		return now
	}
	st := s.DomainState(domain)
	if !st.Locked {
		return now
	}
	return now + st.OffsetNs
}

// StreamDescriptor is the minimal view of an SDP descriptor the clock
// service needs to dispatch a timestamp request.
type StreamDescriptor interface {
	PTPDomainID() int
}

// NowForStream dispatches on sdp's PTP domain (−1 uses monotonic).
func (s *Service) NowForStream(sdp StreamDescriptor) int64 {
	return s.NowForDomain(sdp.PTPDomainID())
}

// Close stops every registered domain worker.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for domain, w := range s.workers {
		w.Stop()
		delete(s.workers, domain)
	}
}

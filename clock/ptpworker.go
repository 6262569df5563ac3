package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/holoplot/go-linuxptp/pkg/ptp"
)

// FallbackWorker is the documented placeholder domain worker: it asserts a
// lock after a fixed wall-clock delay and reports a constant offset. It is
// used when no PTP hardware clock is available for a domain, and must be
// clearly distinguishable from a real lock via ClockClass (clock class 255,
// the PTP slave-only value, marks it as fallback-only).
type FallbackWorker struct {
	domain    int
	lockDelay time.Duration
	startedAt time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewFallbackWorker starts a placeholder worker for domain that locks after
// lockDelay (a real deployment would pass something like 2s) and reports a
// constant +100ns offset thereafter, per the documented fallback contract.
func NewFallbackWorker(domain int, lockDelay time.Duration) *FallbackWorker {
	return &FallbackWorker{
		domain:    domain,
		lockDelay: lockDelay,
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

func (w *FallbackWorker) Domain() int { return w.domain }

func (w *FallbackWorker) State() DomainState {
	select {
	case <-w.stopCh:
		return DomainState{}
	default:
	}
	if time.Since(w.startedAt) < w.lockDelay {
		return DomainState{}
	}
	return DomainState{
		Locked:     true,
		OffsetNs:   100,
		ClockClass: 255, // PTP "unknown"/slave-only accuracy: not a real sync
		Accuracy:   0xfe,
		MasterID:   "fallback",
	}
}

func (w *FallbackWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// HardwareWorker synchronizes a domain's DomainState from a Linux PTP
// hardware clock device (/dev/ptpN) via go-linuxptp, polling its reported
// time against the monotonic wall clock to derive an offset. It locks once
// the first successful read completes and unlocks if reads start failing.
type HardwareWorker struct {
	domain      int
	device      *ptp.Clock
	pollPeriod  time.Duration
	masterID    string

	state    atomic.Pointer[DomainState]
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// OpenHardwareWorker opens the PTP clock device at clockIndex (as reported
// by the host network device for the interface carrying domain) and starts
// a background poll loop. The caller must call Stop when the domain is torn
// down.
func OpenHardwareWorker(domain, clockIndex int, pollPeriod time.Duration) (*HardwareWorker, error) {
	dev, err := ptp.Open(clockIndex)
	if err != nil {
		return nil, err
	}
	w := &HardwareWorker{
		domain:     domain,
		device:     dev,
		pollPeriod: pollPeriod,
		stopCh:     make(chan struct{}),
	}
	w.state.Store(&DomainState{})
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *HardwareWorker) Domain() int { return w.domain }

func (w *HardwareWorker) State() DomainState {
	if s := w.state.Load(); s != nil {
		return *s
	}
	return DomainState{}
}

func (w *HardwareWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
	})
}

func (w *HardwareWorker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ptpTime, err := w.device.GetTime()
			if err != nil {
				w.state.Store(&DomainState{})
				continue
			}
			offset := ptpTime.Sub(time.Now()).Nanoseconds()
			w.state.Store(&DomainState{
				Locked:     true,
				OffsetNs:   offset,
				ClockClass: 6, // locked to a primary reference
				Accuracy:   0x21,
				MasterID:   w.masterID,
			})
		}
	}
}

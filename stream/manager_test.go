package stream

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aes67/audioengine/clock"
	"github.com/aes67/audioengine/pcm"
)

func testDeviceConfig() DeviceConfig {
	cfg := DefaultDeviceConfig()
	cfg.SampleRate = 48000
	cfg.RingBufferSize = 480
	cfg.DeviceUID = "test-device"
	return cfg
}

func TestManagerAddRxAdmitsAndTracksStream(t *testing.T) {
	mgr := New(testDeviceConfig(), clock.New())
	defer mgr.RemoveAll()

	desc := testDescriptor("239.255.90.1", 19001, 2, pcm.L16)
	id, err := mgr.AddRx(desc)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}

	info, ok := mgr.Get(id)
	if !ok {
		t.Fatal("expected stream to be tracked after AddRx")
	}
	if info.Kind != KindReceiver || !info.IsActive {
		t.Fatalf("unexpected info: %+v", info)
	}
	if list := mgr.List(); len(list) != 1 {
		t.Fatalf("List() length = %d, want 1", len(list))
	}
}

func TestManagerAddRxRejectsSampleRateMismatch(t *testing.T) {
	mgr := New(testDeviceConfig(), clock.New())
	defer mgr.RemoveAll()

	desc := testDescriptor("239.255.90.2", 19002, 2, pcm.L16)
	desc.SampleRate = 44100
	if _, err := mgr.AddRx(desc); err == nil {
		t.Fatal("expected sample rate mismatch to be rejected")
	}
}

func TestManagerAddRxRejectsWhenChannelsExhausted(t *testing.T) {
	cfg := testDeviceConfig()
	mgr := New(cfg, clock.New())
	defer mgr.RemoveAll()

	desc := testDescriptor("239.255.90.3", 19003, 200, pcm.L16) // exceeds 128-channel budget
	if _, err := mgr.AddRx(desc); err == nil {
		t.Fatal("expected admission to fail when the device has insufficient free channels")
	}
}

func TestManagerRemoveFreesRouterChannels(t *testing.T) {
	mgr := New(testDeviceConfig(), clock.New())
	defer mgr.RemoveAll()

	desc := testDescriptor("239.255.90.4", 19004, 4, pcm.L16)
	id, err := mgr.AddRx(desc)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	before := mgr.router.FreeChannels()
	if err := mgr.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	after := mgr.router.FreeChannels()
	if after != before+4 {
		t.Fatalf("expected 4 channels freed, before=%d after=%d", before, after)
	}
	if _, ok := mgr.Get(id); ok {
		t.Fatal("expected stream to be untracked after Remove")
	}
}

func TestManagerRemoveUnknownStreamErrors(t *testing.T) {
	mgr := New(testDeviceConfig(), clock.New())
	if err := mgr.Remove(uuid.New()); err == nil {
		t.Fatal("expected error removing an unknown stream id")
	}
}

func TestManagerObserverFiresOnAddAndRemove(t *testing.T) {
	mgr := New(testDeviceConfig(), clock.New())
	defer mgr.RemoveAll()

	events := make(chan EventKind, 4)
	mgr.Subscribe(func(ev Event) { events <- ev.Kind })

	desc := testDescriptor("239.255.90.5", 19005, 2, pcm.L16)
	id, err := mgr.AddRx(desc)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	select {
	case ev := <-events:
		if ev != EventStreamAdded {
			t.Fatalf("first event = %v, want EventStreamAdded", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for add event")
	}

	_ = mgr.Remove(id)
	select {
	case ev := <-events:
		if ev != EventStreamRemoved {
			t.Fatalf("second event = %v, want EventStreamRemoved", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for remove event")
	}
}

func TestManagerSetDeviceSampleRateRejectsWithLiveMismatch(t *testing.T) {
	mgr := New(testDeviceConfig(), clock.New())
	defer mgr.RemoveAll()

	desc := testDescriptor("239.255.90.6", 19006, 2, pcm.L16)
	if _, err := mgr.AddRx(desc); err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	if err := mgr.SetDeviceSampleRate(96000); err == nil {
		t.Fatal("expected sample rate change to be rejected while a mismatched stream is live")
	}
}

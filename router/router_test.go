package router

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndOwnerOf(t *testing.T) {
	r := New()
	id := uuid.New()
	require.NoError(t, r.Add(Mapping{StreamID: id, StreamName: "a", StreamChannelCount: 8, DeviceChannelStart: 0}))
	for ch := 0; ch < 8; ch++ {
		assert.Equal(t, id, r.OwnerOf(ch), "channel %d not owned by %s", ch, id)
	}
	assert.Equal(t, uuid.Nil, r.OwnerOf(8), "channel 8 should be free")
}

func TestOverlapRefusal(t *testing.T) {
	r := New()
	a := uuid.New()
	b := uuid.New()
	require.NoError(t, r.Add(Mapping{StreamID: a, StreamChannelCount: 8, DeviceChannelStart: 0}))
	before := snapshot(r)

	err := r.Add(Mapping{StreamID: b, StreamChannelCount: 8, DeviceChannelStart: 4})
	require.Error(t, err, "expected overlap refusal")
	assert.Equal(t, before, snapshot(r), "router state must not change on a refused add")
}

func TestAutoAllocationAfterRemoval(t *testing.T) {
	r := New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	mustAdd(t, r, Mapping{StreamID: a, StreamChannelCount: 8, DeviceChannelStart: 0})
	mustAdd(t, r, Mapping{StreamID: b, StreamChannelCount: 8, DeviceChannelStart: 8})
	mustAdd(t, r, Mapping{StreamID: c, StreamChannelCount: 8, DeviceChannelStart: 16})

	r.Remove(b)

	m, ok := r.DefaultMapping(uuid.New(), "d", 8)
	require.True(t, ok, "expected a free block of 8")
	assert.Equal(t, 8, m.DeviceChannelStart)
}

func TestRouterFullRefusesDefaultMapping(t *testing.T) {
	r := New()
	for i := 0; i < NumDeviceChannels; i += 8 {
		mustAdd(t, r, Mapping{StreamID: uuid.New(), StreamChannelCount: 8, DeviceChannelStart: i})
	}
	_, ok := r.DefaultMapping(uuid.New(), "x", 1)
	assert.False(t, ok, "expected no free block when router is full")
}

func TestUpdateInPlaceSameStream(t *testing.T) {
	r := New()
	id := uuid.New()
	mustAdd(t, r, Mapping{StreamID: id, StreamChannelCount: 8, DeviceChannelStart: 0})
	require.NoError(t, r.Update(Mapping{StreamID: id, StreamChannelCount: 4, DeviceChannelStart: 0}))
	assert.Equal(t, uuid.Nil, r.OwnerOf(4), "channel 4 should have been released by the shrink")
	assert.Equal(t, id, r.OwnerOf(0), "channel 0 should still be owned")
}

func TestExplicitChannelMapValidation(t *testing.T) {
	m := Mapping{StreamID: uuid.New(), StreamChannelCount: 2, ChannelMap: []int{5, 5}}
	assert.Error(t, m.Validate(), "expected error for duplicate channel map entries")

	m2 := Mapping{StreamID: uuid.New(), StreamChannelCount: 2, ChannelMap: []int{5, 200}}
	assert.Error(t, m2.Validate(), "expected error for out-of-range channel map entry")

	m3 := Mapping{StreamID: uuid.New(), StreamChannelCount: 3, ChannelMap: []int{1, 2}}
	assert.Error(t, m3.Validate(), "expected error for size mismatch")
}

func TestRemoveIsNoOpWhenAbsent(t *testing.T) {
	r := New()
	r.Remove(uuid.New()) // must not panic
	assert.Equal(t, NumDeviceChannels, r.FreeChannels())
}

func mustAdd(t *testing.T, r *Router, m Mapping) {
	t.Helper()
	require.NoError(t, r.Add(m))
}

func snapshot(r *Router) [NumDeviceChannels]uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners
}

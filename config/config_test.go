package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/aes67/audioengine/pcm"
	"github.com/aes67/audioengine/router"
	"github.com/aes67/audioengine/sdp"
)

func sampleDescriptor() *sdp.Descriptor {
	return &sdp.Descriptor{
		SessionName:  "Test Session",
		ConnAddrType: "IP4",
		ConnAddress:  "239.1.2.3",
		TTL:          32,
		MediaType:    "audio",
		Port:         5004,
		Proto:        "RTP/AVP",
		PayloadType:  97,
		Encoding:     pcm.L24,
		SampleRate:   48000,
		Channels:     8,
		PTimeMs:      1,
		PTPDomain:    -1,
		Direction:    sdp.SendOnly,
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	desc := sampleDescriptor()
	rec := FromDescriptor(desc)
	back, err := rec.Descriptor()
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if back.SessionName != desc.SessionName || back.ConnAddress != desc.ConnAddress ||
		back.Encoding != desc.Encoding || back.Channels != desc.Channels ||
		back.Direction != desc.Direction {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, desc)
	}
}

func TestMappingRoundTrip(t *testing.T) {
	id := uuid.New()
	m := router.Mapping{
		StreamID:           id,
		StreamName:         "Stream A",
		StreamChannelCount: 4,
		DeviceChannelStart: 8,
	}
	rec := FromMapping(m)
	back, err := rec.Mapping()
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	if back.StreamID != id || back.StreamChannelCount != 4 || back.DeviceChannelStart != 8 {
		t.Fatalf("round trip mismatch: got %+v", back)
	}
}

func TestMappingRoundTripWithExplicitChannelMap(t *testing.T) {
	id := uuid.New()
	m := router.Mapping{
		StreamID:           id,
		StreamName:         "Stream B",
		StreamChannelCount: 3,
		ChannelMap:         []int{10, 12, 14},
	}
	rec := FromMapping(m)
	back, err := rec.Mapping()
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	if len(back.ChannelMap) != 3 || back.ChannelMap[1] != 12 {
		t.Fatalf("channel map not preserved: %+v", back.ChannelMap)
	}
}

func TestSaveLoadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	doc := &Document{
		Streams: []StreamRecord{
			{
				Enabled:          true,
				Description:      "studio feed",
				CreatedTimestamp: 1700000000,
				SDP:              FromDescriptor(sampleDescriptor()),
				Mapping: FromMapping(router.Mapping{
					StreamID:           uuid.New(),
					StreamName:         "studio feed",
					StreamChannelCount: 8,
					DeviceChannelStart: 0,
				}),
			},
		},
	}
	if err := Save(path, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != CurrentVersion {
		t.Fatalf("version = %q, want %q", loaded.Version, CurrentVersion)
	}
	if len(loaded.Streams) != 1 || loaded.Streams[0].Description != "studio feed" {
		t.Fatalf("unexpected streams: %+v", loaded.Streams)
	}
}

func TestLoadToleratesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{"version":"1.0","streams":[],"futureField":{"nested":true}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Version != "1.0" || len(doc.Streams) != 0 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestDescriptorRejectsUnknownEncoding(t *testing.T) {
	rec := SDPRecord{Encoding: "BOGUS"}
	if _, err := rec.Descriptor(); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

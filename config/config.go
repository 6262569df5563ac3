// Package config implements JSON persistence for the managed-stream table,
// replacing the ad-hoc regex-based JSON handling of the original driver
// with a conforming encoding/json round trip. The wire shape is a fixed
// contract: unknown fields are tolerated on read, and every field this
// package defines must survive a save/load cycle unchanged.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/aes67/audioengine/pcm"
	"github.com/aes67/audioengine/router"
	"github.com/aes67/audioengine/sdp"
)

// CurrentVersion is stamped into every document this package writes.
const CurrentVersion = "1.0"

// Document is the top-level persisted shape: a version tag and the list of
// managed streams.
type Document struct {
	Version string         `json:"version"`
	Streams []StreamRecord `json:"streams"`
}

// StreamRecord is one persisted managed stream: its enable state,
// human description, lifecycle timestamps, SDP descriptor, and channel
// mapping.
type StreamRecord struct {
	Enabled           bool          `json:"enabled"`
	Description       string        `json:"description"`
	CreatedTimestamp  uint64        `json:"createdTimestamp"`
	ModifiedTimestamp uint64        `json:"modifiedTimestamp"`
	SDP               SDPRecord     `json:"sdp"`
	Mapping           MappingRecord `json:"mapping"`
}

// SDPRecord is the wire form of an sdp.Descriptor, per the data model in
// §3, with encoding and direction rendered as their SDP string tokens
// rather than internal enum values so the document stays self-describing.
// It does not carry the descriptor's origin (o=) line, its timing (t=)
// values, or its unrecognized attributes; Descriptor leaves those at their
// zero values.
type SDPRecord struct {
	SessionName string `json:"sessionName"`
	Info        string `json:"info,omitempty"`

	ConnAddrType string `json:"connAddrType"`
	ConnAddress  string `json:"connAddress"`
	TTL          int    `json:"ttl,omitempty"`

	MediaType   string `json:"mediaType"`
	Port        int    `json:"port"`
	Proto       string `json:"proto"`
	PayloadType int    `json:"payloadType"`

	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`

	PTimeMs    float64 `json:"ptimeMs"`
	FrameCount int     `json:"frameCount,omitempty"`

	SourceFilterAddr string `json:"sourceFilterAddr,omitempty"`
	PTPDomain        int    `json:"ptpDomain"`
	PTPMasterMAC     string `json:"ptpMasterMac,omitempty"`

	MediaClock string `json:"mediaClock,omitempty"`
	Direction  string `json:"direction,omitempty"`
}

// MappingRecord is the wire form of a router.Mapping. StreamChannelOffset
// and DeviceChannelCount are carried for forward compatibility with
// partial-stream mappings the router does not yet implement; this package
// preserves them across a round trip without interpreting them.
type MappingRecord struct {
	StreamID            string `json:"streamID"`
	StreamName          string `json:"streamName"`
	StreamChannelCount  int    `json:"streamChannelCount"`
	StreamChannelOffset int    `json:"streamChannelOffset"`
	DeviceChannelStart  int    `json:"deviceChannelStart"`
	DeviceChannelCount  int    `json:"deviceChannelCount"`
	ChannelMap          []int  `json:"channelMap,omitempty"`
}

// FromDescriptor renders desc into its wire form.
func FromDescriptor(desc *sdp.Descriptor) SDPRecord {
	return SDPRecord{
		SessionName:      desc.SessionName,
		Info:             desc.Info,
		ConnAddrType:     desc.ConnAddrType,
		ConnAddress:      desc.ConnAddress,
		TTL:              desc.TTL,
		MediaType:        desc.MediaType,
		Port:             desc.Port,
		Proto:            desc.Proto,
		PayloadType:      desc.PayloadType,
		Encoding:         desc.Encoding.String(),
		SampleRate:       desc.SampleRate,
		Channels:         desc.Channels,
		PTimeMs:          desc.PTimeMs,
		FrameCount:       desc.FrameCount,
		SourceFilterAddr: desc.SourceFilterAddr,
		PTPDomain:        desc.PTPDomain,
		PTPMasterMAC:     desc.PTPMasterMAC,
		MediaClock:       desc.MediaClock,
		Direction:        desc.Direction.String(),
	}
}

// Descriptor reconstructs an sdp.Descriptor from its wire form.
func (r SDPRecord) Descriptor() (*sdp.Descriptor, error) {
	enc := pcm.ParseEncoding(r.Encoding)
	if enc == pcm.Unknown {
		return nil, fmt.Errorf("config: unknown encoding %q", r.Encoding)
	}
	direction, _ := sdp.ParseDirection(r.Direction)
	return &sdp.Descriptor{
		SessionName:      r.SessionName,
		Info:             r.Info,
		ConnAddrType:     r.ConnAddrType,
		ConnAddress:      r.ConnAddress,
		TTL:              r.TTL,
		MediaType:        r.MediaType,
		Port:             r.Port,
		Proto:            r.Proto,
		PayloadType:      r.PayloadType,
		Encoding:         enc,
		SampleRate:       r.SampleRate,
		Channels:         r.Channels,
		PTimeMs:          r.PTimeMs,
		FrameCount:       r.FrameCount,
		SourceFilterAddr: r.SourceFilterAddr,
		PTPDomain:        r.PTPDomain,
		PTPMasterMAC:     r.PTPMasterMAC,
		MediaClock:       r.MediaClock,
		Direction:        direction,
	}, nil
}

// FromMapping renders m into its wire form. StreamChannelOffset is always
// zero and DeviceChannelCount mirrors the claimed channel count, since the
// router does not currently support partial-stream mappings.
func FromMapping(m router.Mapping) MappingRecord {
	channels := m.DeviceChannels()
	return MappingRecord{
		StreamID:           m.StreamID.String(),
		StreamName:         m.StreamName,
		StreamChannelCount: m.StreamChannelCount,
		DeviceChannelStart: m.DeviceChannelStart,
		DeviceChannelCount: len(channels),
		ChannelMap:         m.ChannelMap,
	}
}

// Mapping reconstructs a router.Mapping from its wire form.
func (r MappingRecord) Mapping() (router.Mapping, error) {
	id, err := uuid.Parse(r.StreamID)
	if err != nil {
		return router.Mapping{}, fmt.Errorf("config: invalid stream id %q: %w", r.StreamID, err)
	}
	return router.Mapping{
		StreamID:           id,
		StreamName:         r.StreamName,
		StreamChannelCount: r.StreamChannelCount,
		DeviceChannelStart: r.DeviceChannelStart,
		ChannelMap:         r.ChannelMap,
	}, nil
}

// Save writes doc to path as indented JSON, stamping CurrentVersion if
// Version is unset.
func Save(path string, doc *Document) error {
	if doc.Version == "" {
		doc.Version = CurrentVersion
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Load reads and parses the document at path. Unknown JSON fields are
// silently ignored, per the external-interface contract.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &doc, nil
}

package stream

import (
	"time"

	"github.com/aes67/audioengine/config"
	"github.com/aes67/audioengine/sdp"
)

// SaveConfig writes every managed stream to path as a config.Document.
func (m *Manager) SaveConfig(path string) error {
	m.mu.Lock()
	doc := &config.Document{
		Version: config.CurrentVersion,
		Streams: make([]config.StreamRecord, 0, len(m.streams)),
	}
	for _, ms := range m.streams {
		info := ms.info
		doc.Streams = append(doc.Streams, config.StreamRecord{
			Enabled:           info.IsActive,
			Description:       info.Description,
			CreatedTimestamp:  uint64(info.StartTime.Unix()),
			ModifiedTimestamp: uint64(time.Now().Unix()),
			SDP:               config.FromDescriptor(info.Descriptor),
			Mapping:           config.FromMapping(info.Mapping),
		})
	}
	m.mu.Unlock()

	return config.Save(path, doc)
}

// LoadConfig reads a config.Document from path and admits every enabled
// stream it describes, using each record's own mapping rather than
// re-deriving one. Records that fail admission are skipped and do not
// abort the load; restored reports how many streams were successfully
// started.
func (m *Manager) LoadConfig(path string) (restored int, err error) {
	doc, err := config.Load(path)
	if err != nil {
		return 0, err
	}

	for _, rec := range doc.Streams {
		if !rec.Enabled {
			continue
		}
		desc, derr := rec.SDP.Descriptor()
		if derr != nil {
			m.logger.Warn().Err(derr).Msg("skipping stream record with invalid sdp")
			continue
		}
		mapping, merr := rec.Mapping.Mapping()
		if merr != nil {
			m.logger.Warn().Err(merr).Msg("skipping stream record with invalid mapping")
			continue
		}

		// A persisted SendOnly descriptor is ours to transmit; anything else
		// (RecvOnly, SendRecv, or unspecified) is admitted as a receiver.
		var admitErr error
		if desc.Direction == sdp.SendOnly {
			_, admitErr = m.AddTx(desc.SessionName, desc.ConnAddress, desc.Port, desc.Channels, &mapping)
		} else {
			_, admitErr = m.AddRxWithMapping(desc, mapping)
		}
		if admitErr != nil {
			m.logger.Warn().Err(admitErr).Str("stream", desc.SessionName).Msg("skipping stream record that failed admission")
			continue
		}
		restored++
	}
	return restored, nil
}

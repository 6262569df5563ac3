// Command aes67ctl is a small operator tool for the AES67 engine: it can
// start a device with a saved configuration, add an ad-hoc receive or
// transmit stream from the command line, and print live stream statistics.
// It exists for manual inspection and smoke testing, not as a supported
// control surface.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aes67/audioengine/clock"
	alog "github.com/aes67/audioengine/log"
	"github.com/aes67/audioengine/sap"
	"github.com/aes67/audioengine/sdp"
	"github.com/aes67/audioengine/stream"
)

func main() {
	configPath := flag.String("config", "", "load a saved stream configuration on startup")
	saveOnExit := flag.String("save-on-exit", "", "write the live stream configuration to this path on shutdown")
	sampleRate := flag.Float64("sample-rate", 48000, "device sample rate in Hz")
	ptpEnabled := flag.Bool("ptp", true, "enable the PTP clock service")
	sapEnabled := flag.Bool("sap", true, "enable the SAP discovery listener")
	pretty := flag.Bool("pretty", true, "use human-readable console logging instead of JSON")

	txName := flag.String("tx-name", "", "if set, start one ad-hoc transmit stream with this session name")
	txAddr := flag.String("tx-addr", "239.69.0.1", "multicast address for the ad-hoc transmit stream")
	txPort := flag.Int("tx-port", 5004, "UDP port for the ad-hoc transmit stream")
	txChannels := flag.Int("tx-channels", 2, "channel count for the ad-hoc transmit stream")

	rxSDPFile := flag.String("rx-sdp", "", "if set, parse this SDP file and start one ad-hoc receive stream")

	statsInterval := flag.Duration("stats-interval", 5*time.Second, "how often to log per-stream statistics; 0 disables")

	flag.Parse()

	alog.Init(*pretty, zerolog.InfoLevel)
	logger := alog.Event("aes67ctl")

	clk := clock.New()
	clk.SetPTPEnabled(*ptpEnabled)
	defer clk.Close()

	cfg := stream.DefaultDeviceConfig()
	cfg.SampleRate = *sampleRate
	cfg.PTPEnabled = *ptpEnabled
	cfg.SAPDiscoveryEnabled = *sapEnabled

	mgr := stream.New(cfg, clk)
	mgr.Subscribe(func(ev stream.Event) {
		logger.Info().
			Int("kind", int(ev.Kind)).
			Str("stream", ev.ID.String()).
			Msg("stream event")
	})

	if *configPath != "" {
		restored, err := mgr.LoadConfig(*configPath)
		if err != nil {
			logger.Error().Err(err).Str("path", *configPath).Msg("failed to load configuration")
		} else {
			logger.Info().Int("restored", restored).Str("path", *configPath).Msg("configuration loaded")
		}
	}

	if *txName != "" {
		id, err := mgr.AddTx(*txName, *txAddr, *txPort, *txChannels, nil)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start ad-hoc transmit stream")
		} else {
			logger.Info().Str("stream", id.String()).Msg("ad-hoc transmit stream started")
		}
	}

	if *rxSDPFile != "" {
		data, err := os.ReadFile(*rxSDPFile)
		if err != nil {
			logger.Error().Err(err).Str("path", *rxSDPFile).Msg("failed to read sdp file")
		} else {
			desc, perr := sdp.Parse(string(data))
			if perr != nil {
				logger.Error().Err(perr).Msg("failed to parse sdp file")
			} else {
				id, aerr := mgr.AddRx(desc)
				if aerr != nil {
					logger.Error().Err(aerr).Msg("failed to start ad-hoc receive stream")
				} else {
					logger.Info().Str("stream", id.String()).Msg("ad-hoc receive stream started")
				}
			}
		}
	}

	var sapListener *sap.Listener
	if *sapEnabled {
		sapListener = sap.New(sap.DefaultAddress, sap.DefaultPort)
		sapListener.OnDiscovery(func(desc *sdp.Descriptor) {
			logger.Info().Str("session", desc.SessionName).Str("addr", desc.ConnAddress).Msg("sap announcement discovered")
		})
		sapListener.OnDeletion(func(hash uint16) {
			logger.Info().Uint16("hash", hash).Msg("sap announcement withdrawn")
		})
		if err := sapListener.Start(); err != nil {
			logger.Error().Err(err).Msg("failed to start sap listener")
			sapListener = nil
		}
	}

	var statsTicker *time.Ticker
	statsDone := make(chan struct{})
	if *statsInterval > 0 {
		statsTicker = time.NewTicker(*statsInterval)
		go func() {
			for {
				select {
				case <-statsDone:
					return
				case <-statsTicker.C:
					logStats(logger, mgr)
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	if statsTicker != nil {
		statsTicker.Stop()
		close(statsDone)
	}
	if sapListener != nil {
		sapListener.Stop()
	}

	if *saveOnExit != "" {
		if err := mgr.SaveConfig(*saveOnExit); err != nil {
			logger.Error().Err(err).Str("path", *saveOnExit).Msg("failed to save configuration")
		} else {
			logger.Info().Str("path", *saveOnExit).Msg("configuration saved")
		}
	}
	mgr.RemoveAll()
}

func logStats(logger zerolog.Logger, mgr *stream.Manager) {
	for _, info := range mgr.List() {
		snap := info.Statistics.Snapshot()
		logger.Info().
			Str("stream", info.ID.String()).
			Str("name", info.Descriptor.SessionName).
			Uint64("received", snap.PacketsReceived).
			Uint64("sent", snap.PacketsSent).
			Uint64("lost", snap.PacketsLost).
			Float64("loss_pct", snap.PacketLossPercent()).
			Uint64("underruns", snap.Underruns).
			Uint64("overruns", snap.Overruns).
			Msg(fmt.Sprintf("stream stats (%s)", kindLabel(info.Kind)))
	}
}

func kindLabel(k stream.Kind) string {
	if k == stream.KindTransmitter {
		return "tx"
	}
	return "rx"
}

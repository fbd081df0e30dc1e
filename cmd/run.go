// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"nowplaying/internal/audio"
	"nowplaying/internal/config"
	"nowplaying/internal/log"
	"nowplaying/internal/mpris"
	"nowplaying/internal/observe"
	"nowplaying/internal/session"
	"nowplaying/internal/spectrum"
	"nowplaying/internal/transport"
	"nowplaying/internal/transport/udp"
	"nowplaying/internal/tui"
	"nowplaying/pkg/build"
)

const rateLogInterval = 5 * time.Second

// run starts capture, the session watcher and every enabled output, then
// blocks until ctx is done or the panel is closed.
//
// Startup (cold path): devices, outputs, capture stream, watcher.
// Concurrent phase (hot path): the PortAudio callback feeds the frame
// mailbox; forwarders, the UDP publisher and the panel read from it.
// Shutdown (cold path): deferred in reverse order of startup.
func run(ctx context.Context, cfg *config.Config, pick bool) error {
	l := log.Named("main")

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if pick {
		sel, ok, err := tui.PickDevice(nil)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	frames := spectrum.NewMailbox[spectrum.Output]()

	// Metrics
	var provider *observe.Provider
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		var err error
		provider, err = observe.InitProvider(observe.ProviderConfig{
			ServiceVersion: build.GetBuildInfo().Version,
		})
		if err != nil {
			return err
		}
		defer provider.Shutdown(context.Background())
		metricsHandler = provider.Handler()
		if !cfg.Transport.WebSocketEnabled {
			l.Warnf("metrics are served by the websocket server; enable it with --ws")
		}
	}

	// Outputs
	var frameOut, sessionOut transport.Multi
	var ws *transport.WebSocketTransport
	if cfg.Transport.WebSocketEnabled {
		ws = transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr, metricsHandler)
		defer ws.Close()
		frameOut = append(frameOut, ws)
		sessionOut = append(sessionOut, ws)
		g.Go(func() error { return ws.ListenAndServe(gctx) })
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, frames)
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
		defer publisher.Close()
	}
	if !cfg.UI.Enabled {
		lt := transport.NewLoggingTransport()
		sessionOut = append(sessionOut, lt)
		if !cfg.Transport.WebSocketEnabled && !cfg.Transport.UDPEnabled {
			frameOut = append(frameOut, lt)
		}
	}

	// Capture
	capture, err := audio.NewCapture(audio.Options{
		DeviceID:        cfg.Audio.InputDevice,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		Channels:        cfg.Audio.InputChannels,
		LowLatency:      cfg.Audio.LowLatency,
		Stereo:          cfg.Audio.Stereo,
		Spectrum:        cfg.SpectrumConfig(),
	}, frames.Put)
	if err != nil {
		return err
	}
	if err := capture.Start(); err != nil {
		return err
	}
	defer capture.Close()

	if len(frameOut) > 0 {
		g.Go(func() error { return forwardFrames(gctx, frames, frameOut) })
	}

	if cfg.Recording.Enabled {
		maxDuration := time.Duration(cfg.Recording.MaxDuration) * time.Second
		path, err := capture.StartRecording(cfg.Recording.OutputDir, cfg.Recording.BitDepth, maxDuration)
		if err != nil {
			return err
		}
		l.Infof("recording to %s", path)
		defer func() {
			if err := capture.StopRecording(); err != nil {
				l.Errorf("stopping recording: %v", err)
				return
			}
			l.Infof("recording saved to %s", path)
		}()
	}

	// Session watcher
	var watcher *session.Watcher
	var events chan session.Event
	if cfg.Session.Enabled {
		connector := &mpris.Connector{Player: cfg.Session.Player}
		defer connector.Close()
		if cfg.UI.Enabled {
			events = make(chan session.Event, 8)
		}
		watcher = session.New(connector, func(ev session.Event) {
			if len(sessionOut) > 0 {
				if err := sessionOut.Send(transport.NewSessionMessage(ev)); err != nil {
					l.Debugf("sending session snapshot: %v", err)
				}
			}
			if events != nil {
				select {
				case events <- ev:
				default:
				}
			}
		},
			session.WithDebounce(cfg.Session.Debounce),
			session.WithConnectRetry(cfg.Session.ConnectRetry),
		)
		defer watcher.Close()
		g.Go(func() error {
			err := watcher.Start(gctx)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, session.ErrClosed) {
				return nil
			}
			return err
		})
	}

	if provider != nil {
		src := observe.Sources{Pipeline: capture.Pipeline()}
		if watcher != nil {
			src.Watcher = watcher
		}
		if ws != nil {
			src.WebSocket = ws
		}
		reg, err := observe.Register(provider.MeterProvider, src)
		if err != nil {
			return err
		}
		defer reg.Unregister()
	}

	if log.Enabled(log.LevelDebug) {
		g.Go(func() error {
			logRates(gctx, l, capture)
			return nil
		})
	}

	if cfg.UI.Enabled {
		restore := logToFile(l)
		err := tui.RunPanel(gctx, tui.PanelOptions{
			Frames:            frames,
			Idle:              capture.Gate(),
			VisibilityTimeout: cfg.UI.VisibilityTimeout,
			OnReset:           capture.Reset,
		}, events)
		restore()
		cancel()
		return errors.Join(err, g.Wait())
	}

	l.Infof("running; press Ctrl+C to stop")
	<-gctx.Done()
	cancel()
	return g.Wait()
}

// forwardFrames sends each new mailbox value to out. Frames published while
// a send is in progress are coalesced into the latest one.
func forwardFrames(ctx context.Context, frames *spectrum.Mailbox[spectrum.Output], out transport.Transport) error {
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-frames.C():
		}
		v, seq := frames.Latest()
		if seq == last {
			continue
		}
		last = seq
		if err := out.Send(transport.NewFrameMessage(v)); err != nil {
			log.Debugf("forwarding frame: %v", err)
		}
	}
}

func logRates(ctx context.Context, l *log.Logger, capture *audio.Capture) {
	t := time.NewTicker(rateLogInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := capture.Pipeline().Stats()
			l.Debugf("callbacks/s=%d buffers=%d frames=%d errors=%d dropped=%d",
				capture.DataRate(), s.Buffers, s.Frames, s.Errors, s.Dropped)
		}
	}
}

// logToFile moves log output off the terminal while the panel owns it.
func logToFile(l *log.Logger) (restore func()) {
	path := filepath.Join(os.TempDir(), "nowplaying.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.Warnf("logging to terminal: %v", err)
		return func() {}
	}
	l.Infof("logging to %s", path)
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}
}

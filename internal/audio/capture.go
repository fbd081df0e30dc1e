// SPDX-License-Identifier: MIT

/*
Package audio captures loopback audio with PortAudio and feeds it to the
spectrum pipeline.

Thread Safety:
  - The PortAudio callback is the only writer of the analysis state.
  - Stream lifecycle calls (Start, Stop, SwitchDevice) are serialized by a mutex.
  - The recording tap is swapped atomically; the callback never blocks on it
    beyond the recorder's own short write lock.
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"nowplaying/internal/log"
	"nowplaying/internal/spectrum"
)

// Options configures a Capture.
type Options struct {
	DeviceID        int     // -1 for the default input
	SampleRate      float64 // 0 uses the device default
	FramesPerBuffer int
	Channels        int
	LowLatency      bool
	Stereo          bool
	Spectrum        spectrum.Config // SampleRate is filled from the stream
}

type streamParams struct {
	device          *portaudio.DeviceInfo
	channels        int
	sampleRate      float64
	framesPerBuffer int
	latency         time.Duration
}

type inputStream interface {
	Start() error
	Stop() error
	Close() error
}

type openFunc func(p streamParams, callback func(in []float32)) (inputStream, error)

func openPortAudio(p streamParams, callback func(in []float32)) (inputStream, error) {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   p.device,
			Channels: p.channels,
			Latency:  p.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: p.framesPerBuffer,
		SampleRate:      p.sampleRate,
	}
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Capture owns one PortAudio input stream at a time and pushes every
// callback buffer through a Pipeline.
type Capture struct {
	opts     Options
	pipeline *Pipeline
	log      *log.Logger

	open   openFunc
	lookup func(id int) (*portaudio.DeviceInfo, error)

	mu       sync.Mutex // guards the fields below
	stream   inputStream
	device   *portaudio.DeviceInfo
	deviceID int
	format   spectrum.Format

	// Written only by the callback, or while the stream is stopped.
	scratch []byte
	// The callback reads the active format through this pointer.
	active atomic.Pointer[spectrum.Format]

	tap  atomic.Pointer[Recorder]
	gate *ActivityGate
}

// NewCapture prepares a capture for opts. No stream is opened until Start.
func NewCapture(opts Options, handler OutputHandler) (*Capture, error) {
	if opts.Channels < 1 {
		return nil, fmt.Errorf("capture needs at least one channel, got %d", opts.Channels)
	}
	sc := opts.Spectrum
	if sc.SampleRate == 0 {
		sc.SampleRate = int(opts.SampleRate)
	}
	if sc.SampleRate == 0 {
		// Placeholder until Start resolves the device rate.
		sc.SampleRate = 48000
	}
	pipeline, err := NewPipeline(sc, opts.Stereo, handler)
	if err != nil {
		return nil, err
	}
	return &Capture{
		opts:     opts,
		pipeline: pipeline,
		log:      log.Named("capture"),
		open:     openPortAudio,
		lookup:   InputDevice,
		deviceID: opts.DeviceID,
		scratch:  make([]byte, 4*max(opts.FramesPerBuffer, 1)*opts.Channels),
		gate:     NewActivityGate(),
	}, nil
}

// Gate returns the signal activity gate.
func (c *Capture) Gate() *ActivityGate { return c.gate }

// Pipeline returns the analysis pipeline.
func (c *Capture) Pipeline() *Pipeline { return c.pipeline }

// Start opens and starts the configured device.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}
	device, err := c.lookup(c.deviceID)
	if err != nil {
		return err
	}
	return c.startLocked(device)
}

func (c *Capture) startLocked(device *portaudio.DeviceInfo) error {
	rate := c.opts.SampleRate
	if rate == 0 {
		rate = device.DefaultSampleRate
	}
	channels := min(c.opts.Channels, max(device.MaxInputChannels, 1))

	if int(rate) != c.pipeline.Config().SampleRate {
		if err := c.pipeline.SetSampleRate(int(rate)); err != nil {
			return err
		}
	}
	c.pipeline.Reset()
	c.pipeline.rate.Reset()

	latency := device.DefaultHighInputLatency
	if c.opts.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	c.format = spectrum.Format{Encoding: spectrum.EncodingFloat32, Channels: channels, SampleRate: int(rate)}
	format := c.format
	c.active.Store(&format)

	stream, err := c.open(streamParams{
		device:          device,
		channels:        channels,
		sampleRate:      rate,
		framesPerBuffer: c.opts.FramesPerBuffer,
		latency:         latency,
	}, c.process)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrDeviceGone, device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: starting %s: %v", ErrDeviceGone, device.Name, err)
	}

	c.stream = stream
	c.device = device
	c.log.Infof("stream started on %q (%d ch, %.0f Hz, %d frames/buffer)", device.Name, channels, rate, c.opts.FramesPerBuffer)
	return nil
}

// Stop stops and closes the stream. Stopping a stopped capture is a no-op.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Capture) stopLocked() error {
	if c.stream == nil {
		return nil
	}
	stream := c.stream
	c.stream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("stopping stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("closing stream: %w", err)
	}
	c.log.Infof("stream stopped")
	return nil
}

// Running reports whether a stream is open.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Device returns the device of the running stream.
func (c *Capture) Device() (Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return Device{}, false
	}
	return deviceFromInfo(c.deviceID, c.device), true
}

// SwitchDevice moves capture to another device. If the new device cannot be
// resolved or opened, the error wraps ErrDeviceGone and the previous stream
// is restored.
func (c *Capture) SwitchDevice(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.lookup(id)
	if err != nil {
		c.log.Warnf("switch to device %d ignored: %v", id, err)
		return err
	}

	prev, prevID, wasRunning := c.device, c.deviceID, c.stream != nil
	if err := c.stopLocked(); err != nil {
		c.log.Warnf("stopping previous stream: %v", err)
	}

	c.deviceID = id
	if err := c.startLocked(next); err != nil {
		c.log.Warnf("switch to device %d failed: %v", id, err)
		c.deviceID = prevID
		if wasRunning && prev != nil {
			if rerr := c.startLocked(prev); rerr != nil {
				return errors.Join(err, fmt.Errorf("restoring previous device: %w", rerr))
			}
		}
		return err
	}
	return nil
}

// Reset drops partial windows and smoothing history.
func (c *Capture) Reset() { c.pipeline.Reset() }

// SetConfiguration changes the FFT size and bar count while running.
func (c *Capture) SetConfiguration(fftSize, bars int) error {
	return c.pipeline.SetConfiguration(fftSize, bars)
}

// DataRate returns capture callbacks per second.
func (c *Capture) DataRate() int { return c.pipeline.DataRate() }

// process is the PortAudio callback. It only touches pre-allocated buffers
// unless the host delivers a larger buffer than configured.
func (c *Capture) process(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c.gate.Observe(in, time.Now())

	if rec := c.tap.Load(); rec != nil {
		if err := rec.Write(in); err != nil {
			c.log.Errorf("recording: %v", err)
		}
	}

	if need := 4 * len(in); need > len(c.scratch) {
		c.scratch = make([]byte, need)
	}
	n := spectrum.PutFloat32(c.scratch, in)
	_ = c.pipeline.Write(c.scratch, 0, n, *c.active.Load())
}

// StartRecording starts writing captured audio to a new WAV file in dir and
// returns its path.
func (c *Capture) StartRecording(dir string, bitDepth int, maxDuration time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tap.Load() != nil {
		return "", ErrAlreadyRecording
	}
	format := c.format
	if format.Channels == 0 {
		format = spectrum.Format{Channels: c.opts.Channels, SampleRate: c.pipeline.Config().SampleRate}
	}
	rec, err := NewRecorder(RecordingPath(dir, time.Now()), format.SampleRate, format.Channels, bitDepth, maxDuration)
	if err != nil {
		return "", err
	}
	c.tap.Store(rec)
	c.log.Infof("recording to %s", rec.Path())
	return rec.Path(), nil
}

// StopRecording finalizes the active recording, if any.
func (c *Capture) StopRecording() error {
	rec := c.tap.Swap(nil)
	if rec == nil {
		return nil
	}
	c.log.Infof("recording stopped: %s (%d frames)", rec.Path(), rec.Frames())
	return rec.Close()
}

// Close stops recording and the stream.
func (c *Capture) Close() error {
	return errors.Join(c.StopRecording(), c.Stop())
}

// SPDX-License-Identifier: MIT

// Package spectrum turns interleaved capture buffers into log-scaled,
// smoothed bar magnitudes. One frame is produced per full FFT window; the
// windows do not overlap.
package spectrum

import (
	"fmt"
	"sync/atomic"

	"nowplaying/pkg/bitint"
)

// Frame is one set of bar magnitudes in [0, 1]. The receiver owns it.
type Frame []float32

// FrameHandler receives mono frames.
type FrameHandler func(Frame)

// StereoFrameHandler receives per-channel frames.
type StereoFrameHandler func(left, right Frame)

// Config describes an aggregator. Zero MinHz and MaxHz select DefaultMinHz
// and MaxHzFor(SampleRate).
type Config struct {
	FFTSize    int
	Bars       int
	SampleRate int
	MinHz      float64
	MaxHz      float64
	Window     WindowFunc
}

// withDefaults fills the frequency range.
func (c Config) withDefaults() Config {
	if c.MinHz == 0 {
		c.MinHz = DefaultMinHz
	}
	if c.MaxHz == 0 {
		c.MaxHz = MaxHzFor(c.SampleRate)
	} else {
		c.MaxHz = min(c.MaxHz, float64(c.SampleRate)/2)
	}
	return c
}

// Validate reports ErrConfiguration for sizes the aggregator cannot run.
func (c Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.FFTSize) || c.FFTSize < 4 {
		return fmt.Errorf("%w: fft size %d is not a power of two >= 4", ErrConfiguration, c.FFTSize)
	}
	if c.Bars < 1 {
		return fmt.Errorf("%w: bar count %d", ErrConfiguration, c.Bars)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrConfiguration, c.SampleRate)
	}
	return nil
}

// layout is the immutable part of a configuration shared by every channel.
type layout struct {
	req    Config // as requested, before defaults
	cfg    Config
	window []float64
	bands  []FilterBand
}

func newLayout(cfg Config) (*layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	full := cfg.withDefaults()
	bands, err := BuildFilterBank(full.Bars, full.SampleRate, full.FFTSize, full.MinHz, full.MaxHz)
	if err != nil {
		return nil, err
	}
	return &layout{req: cfg, cfg: full, window: windowTable(full.FFTSize, full.Window), bands: bands}, nil
}

// Aggregator is the mono aggregator. Multi-channel input is downmixed by
// averaging. Feed must be called from one goroutine at a time; the
// configuration methods may be called from any goroutine.
type Aggregator struct {
	suspender
	lay atomic.Pointer[layout]
	st  atomic.Pointer[state]
}

// New builds a mono aggregator.
func New(cfg Config) (*Aggregator, error) {
	lay, err := newLayout(cfg)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{}
	a.lay.Store(lay)
	a.st.Store(newState(lay.cfg.FFTSize, lay.window, lay.bands))
	return a, nil
}

// Config returns the active configuration with defaults applied.
func (a *Aggregator) Config() Config { return a.lay.Load().cfg }

// Bands returns the active filter bank. The slice must not be modified.
func (a *Aggregator) Bands() []FilterBand { return a.lay.Load().bands }

// Feed consumes count bytes of buf starting at offset. It returns the most
// recent frame completed by this buffer, if any. A trailing partial sample
// frame is ignored. While a reconfiguration is in progress the buffer is
// dropped and Feed returns no frame.
func (a *Aggregator) Feed(buf []byte, offset, count int, format Format) (Frame, bool, error) {
	if err := format.validate(buf, offset, count); err != nil {
		return nil, false, err
	}
	if !a.enter() {
		return nil, false, nil
	}
	defer a.leave()

	lay := a.lay.Load()
	if format.SampleRate != 0 && format.SampleRate != lay.cfg.SampleRate {
		return nil, false, fmt.Errorf("%w: got %d Hz, configured %d Hz", ErrFormatMismatch, format.SampleRate, lay.cfg.SampleRate)
	}

	st := a.st.Load()
	bps := format.BytesPerSample()
	frameSize := format.FrameSize()
	scale := 1 / float64(format.Channels)
	completed := false
	for p := offset; p+frameSize <= offset+count; p += frameSize {
		var mono float64
		for ch := range format.Channels {
			mono += format.sampleAt(buf, p+ch*bps)
		}
		if st.push(mono * scale) {
			completed = true
		}
	}
	if !completed {
		return nil, false, nil
	}
	return st.snapshot(), true, nil
}

// SetConfiguration rebuilds the ring buffer, filter bank and smoothing
// history for a new FFT size and bar count. Partially filled windows are
// discarded. On error the previous configuration stays active.
func (a *Aggregator) SetConfiguration(fftSize, bars int) error {
	cfg := a.lay.Load().req
	cfg.FFTSize, cfg.Bars = fftSize, bars
	return a.apply(cfg)
}

// SetSampleRate rebuilds the filter bank for a new stream rate, as after a
// device switch. A configured MaxHz above the new Nyquist is lowered.
func (a *Aggregator) SetSampleRate(sampleRate int) error {
	cfg := a.lay.Load().req
	cfg.SampleRate = sampleRate
	return a.apply(cfg)
}

func (a *Aggregator) apply(cfg Config) error {
	lay, err := newLayout(cfg)
	if err != nil {
		return err
	}
	st := newState(lay.cfg.FFTSize, lay.window, lay.bands)

	a.suspend()
	defer a.resume()
	a.lay.Store(lay)
	a.st.Store(st)
	return nil
}

// Reset clears the ring buffer and smoothing history.
func (a *Aggregator) Reset() {
	a.suspend()
	defer a.resume()
	a.st.Load().reset()
}

// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"
	"time"

	"nowplaying/internal/log"
	"nowplaying/internal/spectrum"
)

// OutputHandler receives each frame produced by a Pipeline. It runs on the
// capture goroutine and must not block.
type OutputHandler func(spectrum.Output)

// Pipeline routes raw capture buffers through a mono or stereo aggregator
// and hands completed frames to a handler. Both the live capture and the
// offline WAV analyzer feed one.
type Pipeline struct {
	mono    *spectrum.Aggregator
	stereo  *spectrum.StereoAggregator
	handler OutputHandler
	rate    *spectrum.RateCounter
	log     *log.Logger

	frames  atomic.Uint64
	buffers atomic.Uint64
	errors  atomic.Uint64
}

// NewPipeline builds the aggregator for cfg. A nil handler discards frames.
func NewPipeline(cfg spectrum.Config, stereo bool, handler OutputHandler) (*Pipeline, error) {
	p := &Pipeline{
		handler: handler,
		rate:    spectrum.NewRateCounter(),
		log:     log.Named("pipeline"),
	}
	var err error
	if stereo {
		p.stereo, err = spectrum.NewStereo(cfg)
	} else {
		p.mono, err = spectrum.New(cfg)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Write feeds one capture buffer. Errors are counted and returned; the
// live capture path logs and drops them.
func (p *Pipeline) Write(buf []byte, offset, count int, format spectrum.Format) error {
	p.rate.Tick()
	p.buffers.Add(1)

	var out spectrum.Output
	var ok bool
	var err error
	if p.stereo != nil {
		out.Left, out.Right, ok, err = p.stereo.Feed(buf, offset, count, format)
	} else {
		out.Left, ok, err = p.mono.Feed(buf, offset, count, format)
	}
	if err != nil {
		if p.errors.Add(1) == 1 {
			p.log.Warnf("dropping buffer: %v", err)
		}
		return err
	}
	if !ok {
		return nil
	}
	p.frames.Add(1)
	if p.handler != nil {
		out.At = time.Now()
		p.handler(out)
	}
	return nil
}

// SetConfiguration changes the FFT size and bar count.
func (p *Pipeline) SetConfiguration(fftSize, bars int) error {
	if p.stereo != nil {
		return p.stereo.SetConfiguration(fftSize, bars)
	}
	return p.mono.SetConfiguration(fftSize, bars)
}

// SetSampleRate rebuilds the filter bank for a new stream rate.
func (p *Pipeline) SetSampleRate(sampleRate int) error {
	if p.stereo != nil {
		return p.stereo.SetSampleRate(sampleRate)
	}
	return p.mono.SetSampleRate(sampleRate)
}

// Reset drops partial windows and smoothing history.
func (p *Pipeline) Reset() {
	if p.stereo != nil {
		p.stereo.Reset()
		return
	}
	p.mono.Reset()
}

// Config returns the active aggregator configuration.
func (p *Pipeline) Config() spectrum.Config {
	if p.stereo != nil {
		return p.stereo.Config()
	}
	return p.mono.Config()
}

// Bands returns the active filter bank.
func (p *Pipeline) Bands() []spectrum.FilterBand {
	if p.stereo != nil {
		return p.stereo.Bands()
	}
	return p.mono.Bands()
}

// Stereo reports whether channels are analyzed separately.
func (p *Pipeline) Stereo() bool { return p.stereo != nil }

// DataRate returns capture buffers per second.
func (p *Pipeline) DataRate() int { return p.rate.Rate() }

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	Buffers uint64 // buffers written
	Frames  uint64 // frames emitted
	Errors  uint64 // buffers rejected
	Dropped uint64 // buffers skipped during reconfiguration
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Buffers: p.buffers.Load(),
		Frames:  p.frames.Load(),
		Errors:  p.errors.Load(),
	}
	if p.stereo != nil {
		s.Dropped = p.stereo.Dropped()
	} else {
		s.Dropped = p.mono.Dropped()
	}
	return s
}

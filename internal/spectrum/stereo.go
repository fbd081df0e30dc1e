// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"sync/atomic"
)

// stereoState pairs two channel states built from one layout.
type stereoState struct {
	left, right *state
}

func newStereoState(lay *layout) *stereoState {
	return &stereoState{
		left:  newState(lay.cfg.FFTSize, lay.window, lay.bands),
		right: newState(lay.cfg.FFTSize, lay.window, lay.bands),
	}
}

// StereoAggregator keeps the first two channels separate. Both channels
// share one filter bank and window table. Mono input feeds both sides;
// channels beyond the second are ignored.
type StereoAggregator struct {
	suspender
	lay atomic.Pointer[layout]
	st  atomic.Pointer[stereoState]
}

// NewStereo builds a stereo aggregator.
func NewStereo(cfg Config) (*StereoAggregator, error) {
	lay, err := newLayout(cfg)
	if err != nil {
		return nil, err
	}
	a := &StereoAggregator{}
	a.lay.Store(lay)
	a.st.Store(newStereoState(lay))
	return a, nil
}

func (a *StereoAggregator) Config() Config      { return a.lay.Load().cfg }
func (a *StereoAggregator) Bands() []FilterBand { return a.lay.Load().bands }

// Feed behaves like Aggregator.Feed but returns one frame per channel.
func (a *StereoAggregator) Feed(buf []byte, offset, count int, format Format) (left, right Frame, ok bool, err error) {
	if err := format.validate(buf, offset, count); err != nil {
		return nil, nil, false, err
	}
	if !a.enter() {
		return nil, nil, false, nil
	}
	defer a.leave()

	lay := a.lay.Load()
	if format.SampleRate != 0 && format.SampleRate != lay.cfg.SampleRate {
		return nil, nil, false, fmt.Errorf("%w: got %d Hz, configured %d Hz", ErrFormatMismatch, format.SampleRate, lay.cfg.SampleRate)
	}

	st := a.st.Load()
	bps := format.BytesPerSample()
	frameSize := format.FrameSize()
	rightOff := 0
	if format.Channels > 1 {
		rightOff = bps
	}
	completed := false
	for p := offset; p+frameSize <= offset+count; p += frameSize {
		// Both states share fftSize and cursor position, so they complete
		// on the same sample.
		l := st.left.push(format.sampleAt(buf, p))
		st.right.push(format.sampleAt(buf, p+rightOff))
		if l {
			completed = true
		}
	}
	if !completed {
		return nil, nil, false, nil
	}
	return st.left.snapshot(), st.right.snapshot(), true, nil
}

// SetConfiguration rebuilds both channels for a new FFT size and bar count.
func (a *StereoAggregator) SetConfiguration(fftSize, bars int) error {
	cfg := a.lay.Load().req
	cfg.FFTSize, cfg.Bars = fftSize, bars
	return a.apply(cfg)
}

// SetSampleRate rebuilds both channels for a new stream rate.
func (a *StereoAggregator) SetSampleRate(sampleRate int) error {
	cfg := a.lay.Load().req
	cfg.SampleRate = sampleRate
	return a.apply(cfg)
}

func (a *StereoAggregator) apply(cfg Config) error {
	lay, err := newLayout(cfg)
	if err != nil {
		return err
	}
	st := newStereoState(lay)

	a.suspend()
	defer a.resume()
	a.lay.Store(lay)
	a.st.Store(st)
	return nil
}

// Reset clears both channels.
func (a *StereoAggregator) Reset() {
	a.suspend()
	defer a.resume()
	st := a.st.Load()
	st.left.reset()
	st.right.reset()
}

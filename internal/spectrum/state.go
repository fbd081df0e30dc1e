// SPDX-License-Identifier: MIT
package spectrum

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	riseFactor = 0.8
	fallFactor = 0.7

	dbFloor   = -80.0
	powerBias = 1e-20
)

// state is the per-channel analysis state: a complex ring buffer filled at
// the write cursor, the transform, and the smoothing history. It is owned by
// the capture path and never shared between goroutines while in use.
type state struct {
	fftSize int
	invN2   float64 // 1/N^2: FFT output scaled by 1/N, squared for power
	buf     []complex128
	pos     int
	window  []float64    // shared, read-only
	bands   []FilterBand // shared, read-only
	fft     *fourier.CmplxFFT
	last    []float32
}

func newState(fftSize int, window []float64, bands []FilterBand) *state {
	return &state{
		fftSize: fftSize,
		invN2:   1 / (float64(fftSize) * float64(fftSize)),
		buf:     make([]complex128, fftSize),
		window:  window,
		bands:   bands,
		fft:     fourier.NewCmplxFFT(fftSize),
		last:    make([]float32, len(bands)),
	}
}

// push writes one windowed sample and reports whether it completed a window.
// On completion the transform has run, the cursor is back at zero and last
// holds the new smoothed bars.
func (s *state) push(x float64) bool {
	s.buf[s.pos] = complex(x*s.window[s.pos], 0)
	s.pos++
	if s.pos < s.fftSize {
		return false
	}
	s.pos = 0
	s.fft.Coefficients(s.buf, s.buf)
	s.computeBars()
	return true
}

func (s *state) computeBars() {
	usable := s.fftSize / 2
	for b, band := range s.bands {
		var sum, wsum float64
		for i := band.Left; i <= band.Right && i < usable; i++ {
			w := band.weight(i)
			if w <= 0 {
				continue
			}
			c := s.buf[i]
			sum += (real(c)*real(c) + imag(c)*imag(c)) * s.invN2 * w
			wsum += w
		}
		var power float64
		if wsum > 0 {
			power = sum / wsum
		}
		s.last[b] = smooth(s.last[b], normalize(power))
	}
}

func (s *state) reset() {
	clear(s.buf)
	clear(s.last)
	s.pos = 0
}

// snapshot returns a copy of the current bars for the consumer.
func (s *state) snapshot() Frame {
	f := make(Frame, len(s.last))
	copy(f, s.last)
	return f
}

// normalize maps a power value onto [0, 1] over an 80 dB range.
func normalize(power float64) float32 {
	db := 10 * math.Log10(power+powerBias)
	norm := (db - dbFloor) / -dbFloor
	return float32(min(max(norm, 0), 1))
}

// smooth moves prev toward next, faster on the way up than on the way down.
func smooth(prev, next float32) float32 {
	if next > prev {
		return prev + (next-prev)*riseFactor
	}
	return prev + (next-prev)*fallFactor
}

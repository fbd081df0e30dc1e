// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"math"

	"nowplaying/pkg/bitint"
)

const (
	// DefaultMinHz is the lowest band edge.
	DefaultMinHz = 20.0
	// DefaultMaxHz caps the highest band edge; it is further limited to
	// the Nyquist frequency of the stream.
	DefaultMaxHz = 18000.0
)

// FilterBand is a triangular weighting window over FFT bins. Weight rises
// from 0 at Left to 1 at Center and falls back to 0 at Right.
type FilterBand struct {
	Left   int
	Center int
	Right  int
}

// weight returns the triangular weight of bin i. Denominators are floored
// at 1 so degenerate bands (Left == Center) never divide by zero.
func (b FilterBand) weight(i int) float64 {
	if i <= b.Center {
		return float64(i-b.Left) / float64(max(1, b.Center-b.Left))
	}
	return float64(b.Right-i) / float64(max(1, b.Right-b.Center))
}

func (b FilterBand) String() string {
	return fmt.Sprintf("bins %d-%d-%d", b.Left, b.Center, b.Right)
}

// MaxHzFor returns the default upper band edge for a sample rate.
func MaxHzFor(sampleRate int) float64 {
	return math.Min(DefaultMaxHz, float64(sampleRate)/2)
}

// BuildFilterBank maps bars log-spaced triangular bands between minHz and
// maxHz onto the bins of an fftSize-point transform. The bin points are
// forced strictly increasing (bumped to the previous point + 1, clamped to
// the top bin), which matters at low frequencies where several log points
// round to the same bin.
func BuildFilterBank(bars, sampleRate, fftSize int, minHz, maxHz float64) ([]FilterBand, error) {
	if bars < 1 {
		return nil, fmt.Errorf("%w: bar count %d", ErrConfiguration, bars)
	}
	if !bitint.IsPowerOfTwo(fftSize) || fftSize < 4 {
		return nil, fmt.Errorf("%w: fft size %d is not a power of two >= 4", ErrConfiguration, fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrConfiguration, sampleRate)
	}
	if minHz <= 0 || maxHz <= minHz {
		return nil, fmt.Errorf("%w: frequency range %.1f..%.1f Hz", ErrConfiguration, minHz, maxHz)
	}

	usefulBins := fftSize / 2
	top := usefulBins - 1
	nyquist := float64(sampleRate) / 2

	freqToBin := func(f float64) int {
		bin := int(math.Round(f / nyquist * float64(top)))
		return min(max(bin, 0), top)
	}

	points := make([]int, bars+2)
	for i := range points {
		t := float64(i) / float64(bars+1)
		points[i] = freqToBin(minHz * math.Pow(maxHz/minHz, t))
	}
	for i := 1; i < len(points); i++ {
		if points[i] <= points[i-1] {
			points[i] = min(top, points[i-1]+1)
		}
	}

	bands := make([]FilterBand, bars)
	for b := range bands {
		bands[b] = FilterBand{Left: points[b], Center: points[b+1], Right: points[b+2]}
	}
	return bands, nil
}

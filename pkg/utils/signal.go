// SPDX-License-Identifier: MIT

// Package utils generates test signals and locates spectral peaks.
package utils

import "math"

// Sine returns frames of an interleaved float32 sine at freq Hz, starting at
// sample frame start. Every channel carries the same signal.
func Sine(freq float64, sampleRate, frames, channels int, amp float64, start int) []float32 {
	out := make([]float32, frames*channels)
	for i := range frames {
		v := float32(amp * math.Sin(2*math.Pi*freq*float64(start+i)/float64(sampleRate)))
		for ch := range channels {
			out[i*channels+ch] = v
		}
	}
	return out
}

// Tones returns a mono mix of sines at freqs. The mix is scaled so its peak
// never exceeds amp.
func Tones(sampleRate, frames int, amp float64, freqs ...float64) []float32 {
	out := make([]float32, frames)
	if len(freqs) == 0 {
		return out
	}
	scale := amp / float64(len(freqs))
	for i := range out {
		t := float64(i) / float64(sampleRate)
		var v float64
		for _, f := range freqs {
			v += math.Sin(2 * math.Pi * f * t)
		}
		out[i] = float32(v * scale)
	}
	return out
}

// PeakBin returns the index of the largest value in values[startBin:endBin+1].
// The range is clamped to the slice; an empty slice returns 0.
func PeakBin[T ~float32 | ~float64](values []T, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}
	startBin = max(startBin, 0)
	endBin = min(endBin, len(values)-1)
	if startBin > endBin {
		return startBin
	}

	peakBin := startBin
	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > values[peakBin] {
			peakBin = bin
		}
	}
	return peakBin
}

// Argmax returns the index of the largest value, preferring the first.
func Argmax[T ~float32 | ~float64](values []T) int {
	return PeakBin(values, 0, len(values)-1)
}

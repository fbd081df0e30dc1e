// SPDX-License-Identifier: MIT
package spectrum

import (
	"math"
	"testing"

	"nowplaying/pkg/utils"
)

// sineFloat32 returns frames of an interleaved float32 sine at freq Hz.
// Every channel carries the same signal.
func sineFloat32(freq float64, sampleRate, frames, channels int, amp float64, startFrame int) []byte {
	samples := utils.Sine(freq, sampleRate, frames, channels, amp, startFrame)
	buf := make([]byte, 4*len(samples))
	PutFloat32(buf, samples)
	return buf
}

func sinePCM16(freq float64, sampleRate, frames int, amp float64, startFrame int) []byte {
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(startFrame+i)/float64(sampleRate)))
	}
	buf := make([]byte, 2*len(samples))
	PutPCM16(buf, samples)
	return buf
}

func mustNew(t testing.TB, cfg Config) *Aggregator {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%+v): %v", cfg, err)
	}
	return a
}

func argmax(f Frame) int { return utils.Argmax(f) }

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

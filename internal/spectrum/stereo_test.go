// SPDX-License-Identifier: MIT
package spectrum

import (
	"math"
	"testing"
)

func TestStereoKeepsChannelsApart(t *testing.T) {
	cfg := defaultConfig()
	a, err := NewStereo(cfg)
	if err != nil {
		t.Fatal(err)
	}
	band := 16
	freq := float64(a.Bands()[band].Center) * 48000 / 2048

	// Tone on the left channel only.
	samples := make([]float32, 2*2048)
	var left, right Frame
	for w := range 4 {
		for i := range 2048 {
			samples[2*i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(w*2048+i)/48000))
			samples[2*i+1] = 0
		}
		buf := make([]byte, 4*len(samples))
		PutFloat32(buf, samples)
		l, r, ok, err := a.Feed(buf, 0, len(buf), floatStereo48k)
		if err != nil || !ok {
			t.Fatalf("Feed ok=%v err=%v", ok, err)
		}
		left, right = l, r
	}

	if got := argmax(left); got != band {
		t.Errorf("left peak = %d, want %d", got, band)
	}
	for i, v := range right {
		if v != 0 {
			t.Errorf("right bar %d = %v, want 0", i, v)
		}
	}
}

func TestStereoMonoInputFeedsBoth(t *testing.T) {
	a, err := NewStereo(Config{FFTSize: 512, Bars: 12, SampleRate: 48000})
	if err != nil {
		t.Fatal(err)
	}
	mono := Format{Encoding: EncodingFloat32, Channels: 1, SampleRate: 48000}
	buf := sineFloat32(2000, 48000, 512, 1, 0.5, 0)

	left, right, ok, err := a.Feed(buf, 0, len(buf), mono)
	if err != nil || !ok {
		t.Fatalf("Feed ok=%v err=%v", ok, err)
	}
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("bar %d differs: %v vs %v", i, left[i], right[i])
		}
	}
}

func TestStereoSetConfiguration(t *testing.T) {
	a, err := NewStereo(Config{FFTSize: 256, Bars: 8, SampleRate: 48000})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SetConfiguration(128, 4); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128*floatStereo48k.FrameSize())
	left, right, ok, err := a.Feed(buf, 0, len(buf), floatStereo48k)
	if err != nil || !ok {
		t.Fatalf("Feed ok=%v err=%v", ok, err)
	}
	if len(left) != 4 || len(right) != 4 {
		t.Errorf("frame lengths %d/%d, want 4/4", len(left), len(right))
	}
	a.Reset()
	if a.Dropped() != 0 {
		t.Errorf("Dropped = %d without concurrent feeds", a.Dropped())
	}
}

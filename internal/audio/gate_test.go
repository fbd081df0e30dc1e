// SPDX-License-Identifier: MIT
package audio

import (
	"testing"
	"time"
)

func TestGateEnable(t *testing.T) {
	g := NewActivityGate()
	now := time.Unix(100, 0)

	quiet := []float32{0.0001, -0.0002}
	if g.Observe(quiet, now) {
		t.Error("quiet buffer opened an enabled gate")
	}

	g.Disable()
	g.Disable() // idempotent
	if !g.Observe(quiet, now) {
		t.Error("disabled gate should report every buffer open")
	}

	g.Enable()
	g.Enable()
	if g.Observe(quiet, now.Add(time.Second)) {
		t.Error("re-enabled gate opened on a quiet buffer")
	}
}

func TestGateThresholdClamping(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{3, 1},
	}
	g := NewActivityGate()
	for _, tt := range tests {
		g.SetThreshold(tt.in)
		if got := g.Threshold(); got != tt.want {
			t.Errorf("SetThreshold(%v): Threshold() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGateNegativePeak(t *testing.T) {
	g := NewActivityGate()
	g.SetThreshold(0.5)
	if !g.Observe([]float32{0.1, -0.75, 0.2}, time.Unix(1, 0)) {
		t.Error("negative peak beyond threshold should open the gate")
	}
}

func TestGateIdle(t *testing.T) {
	g := NewActivityGate()
	start := time.Unix(1000, 0)

	if !g.Idle(time.Second, start) {
		t.Error("a gate that never opened is idle")
	}
	g.Observe([]float32{0.5}, start)
	if g.LastOpen() != start {
		t.Errorf("LastOpen = %v, want %v", g.LastOpen(), start)
	}
	if g.Idle(time.Second, start.Add(500*time.Millisecond)) {
		t.Error("idle too early")
	}
	g.Observe([]float32{0}, start.Add(900*time.Millisecond))
	if !g.Idle(time.Second, start.Add(time.Second)) {
		t.Error("expected idle one second after the last open")
	}
}

func TestGateObserveNoAllocs(t *testing.T) {
	g := NewActivityGate()
	buf := make([]float32, 1024)
	for i := range buf {
		buf[i] = float32(i%100) / 1000
	}
	now := time.Now()
	allocs := testing.AllocsPerRun(100, func() {
		g.Observe(buf, now)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Observe, got %.1f", allocs)
	}
}

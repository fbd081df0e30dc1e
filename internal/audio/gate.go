// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// DefaultGateThreshold is ~-60 dBFS.
const DefaultGateThreshold = 0.001

// ActivityGate tracks when the captured signal last rose above a threshold.
// It never blocks analysis; silence still produces all-zero frames. The
// panel uses it to tell a paused player from a quiet passage.
type ActivityGate struct {
	threshold atomic.Uint32 // float32 bits
	lastOpen  atomic.Int64  // unix nanos, 0 if never
	enabled   atomic.Bool
}

// NewActivityGate returns an enabled gate with DefaultGateThreshold.
func NewActivityGate() *ActivityGate {
	g := &ActivityGate{}
	g.SetThreshold(DefaultGateThreshold)
	g.enabled.Store(true)
	return g
}

func (g *ActivityGate) Enable()  { g.enabled.Store(true) }
func (g *ActivityGate) Disable() { g.enabled.Store(false) }

// SetThreshold sets the open level as a linear amplitude, clamped to
// [0, 1] where 0 opens on any non-zero sample.
func (g *ActivityGate) SetThreshold(threshold float64) {
	threshold = min(max(threshold, 0), 1)
	g.threshold.Store(math.Float32bits(float32(threshold)))
}

// Threshold returns the open level.
func (g *ActivityGate) Threshold() float64 {
	return float64(math.Float32frombits(g.threshold.Load()))
}

// Observe inspects one buffer and reports whether it opened the gate. A
// disabled gate reports every buffer as open.
func (g *ActivityGate) Observe(samples []float32, now time.Time) bool {
	if !g.enabled.Load() {
		g.lastOpen.Store(now.UnixNano())
		return true
	}
	threshold := math.Float32frombits(g.threshold.Load())
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}
	if peak > threshold {
		g.lastOpen.Store(now.UnixNano())
		return true
	}
	return false
}

// LastOpen returns when the gate last opened, or the zero time.
func (g *ActivityGate) LastOpen() time.Time {
	ns := g.lastOpen.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Idle reports whether the gate has stayed closed for at least d.
func (g *ActivityGate) Idle(d time.Duration, now time.Time) bool {
	last := g.LastOpen()
	return last.IsZero() || now.Sub(last) >= d
}

// SPDX-License-Identifier: MIT
package spectrum

import (
	"sync/atomic"
	"time"
)

// RateCounter measures how many times per second Tick is called, averaged
// over windows of at least one second. Tick is meant for the capture
// callback; Rate may be read from any goroutine.
type RateCounter struct {
	now   func() time.Time
	start time.Time
	count int
	rate  atomic.Int64
}

// NewRateCounter returns a counter using the wall clock.
func NewRateCounter() *RateCounter {
	return &RateCounter{now: time.Now}
}

// Tick records one event.
func (r *RateCounter) Tick() {
	now := r.now()
	if r.start.IsZero() {
		r.start = now
	}
	if elapsed := now.Sub(r.start); elapsed >= time.Second {
		r.rate.Store(int64(float64(r.count) / elapsed.Seconds()))
		r.count = 0
		r.start = now
	}
	r.count++
}

// Rate returns the events per second measured over the last full window.
func (r *RateCounter) Rate() int {
	return int(r.rate.Load())
}

// Reset forgets the current window and the last rate. It must not run
// concurrently with Tick.
func (r *RateCounter) Reset() {
	r.start = time.Time{}
	r.count = 0
	r.rate.Store(0)
}

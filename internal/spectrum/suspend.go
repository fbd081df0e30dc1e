// SPDX-License-Identifier: MIT
package spectrum

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// suspender lets a reconfiguring goroutine park the capture path without the
// capture path ever taking a lock. Feed announces itself in active before it
// looks at paused; suspend raises paused before it looks at active. With
// sequentially consistent atomics one of the two always sees the other.
type suspender struct {
	mu      sync.Mutex // serializes reconfigurations
	paused  atomic.Bool
	active  atomic.Int32
	dropped atomic.Uint64
}

// enter reports whether the caller may touch the analysis state. A false
// return means a reconfiguration is in progress and the buffer is dropped.
func (s *suspender) enter() bool {
	s.active.Add(1)
	if s.paused.Load() {
		s.active.Add(-1)
		s.dropped.Add(1)
		return false
	}
	return true
}

func (s *suspender) leave() {
	s.active.Add(-1)
}

// suspend blocks until no Feed is in flight and none can start.
func (s *suspender) suspend() {
	s.mu.Lock()
	s.paused.Store(true)
	for s.active.Load() != 0 {
		runtime.Gosched()
	}
}

func (s *suspender) resume() {
	s.paused.Store(false)
	s.mu.Unlock()
}

// Dropped returns how many buffers were skipped because they arrived during
// a reconfiguration.
func (s *suspender) Dropped() uint64 {
	return s.dropped.Load()
}

// SPDX-License-Identifier: MIT
package spectrum

import (
	"sync"
	"time"
)

// Output is what the capture path hands to consumers. Right is nil for mono.
type Output struct {
	Left  Frame
	Right Frame
	At    time.Time
}

// Stereo reports whether the output carries two channels.
func (o Output) Stereo() bool { return o.Right != nil }

// Mailbox holds only the latest value. Put never blocks, so a slow consumer
// sees fewer frames rather than stalling the producer.
type Mailbox[T any] struct {
	mu     sync.Mutex
	val    T
	seq    uint64
	notify chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Put replaces the held value and wakes one waiter.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	m.val = v
	m.seq++
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Latest returns the held value and its sequence number. Sequence 0 means
// nothing has been put yet.
func (m *Mailbox[T]) Latest() (T, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.val, m.seq
}

// C is signalled after Put. Several Puts may collapse into one signal.
func (m *Mailbox[T]) C() <-chan struct{} {
	return m.notify
}

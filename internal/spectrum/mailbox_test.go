// SPDX-License-Identifier: MIT
package spectrum

import (
	"sync"
	"testing"
	"time"
)

func TestMailboxKeepsLatest(t *testing.T) {
	m := NewMailbox[Output]()
	if _, seq := m.Latest(); seq != 0 {
		t.Fatalf("empty mailbox seq = %d", seq)
	}

	for i := range 5 {
		m.Put(Output{Left: Frame{float32(i)}})
	}
	out, seq := m.Latest()
	if seq != 5 || out.Left[0] != 4 {
		t.Errorf("Latest = %v, %d; want frame 4, seq 5", out.Left, seq)
	}
	if out.Stereo() {
		t.Error("mono output reported stereo")
	}

	// Five puts collapse into one pending notification.
	select {
	case <-m.C():
	default:
		t.Fatal("no notification after Put")
	}
	select {
	case <-m.C():
		t.Fatal("notifications were not collapsed")
	default:
	}
}

func TestMailboxConcurrentPut(t *testing.T) {
	m := NewMailbox[int]()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				m.Put(i*100 + j)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Put blocked")
	}
	if _, seq := m.Latest(); seq != 800 {
		t.Errorf("seq = %d, want 800", seq)
	}
}

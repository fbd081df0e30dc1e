// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"sync"
	"time"

	"nowplaying/internal/log"
	"nowplaying/internal/spectrum"
)

// DefaultInterval is roughly 30 packets per second.
const DefaultInterval = 33 * time.Millisecond

// Publisher samples the latest spectrum output on a fixed interval and sends
// it as a binary packet. Ticks with no new frame send nothing.
type Publisher struct {
	sender   *Sender
	mailbox  *spectrum.Mailbox[spectrum.Output]
	interval time.Duration
	log      *log.Logger

	mu   sync.Mutex // protects done during Start/Stop
	done chan struct{}
	wg   sync.WaitGroup

	// Touched only by the publisher goroutine.
	sequence uint32
	lastSeen uint64
	packet   []byte
}

// NewPublisher returns a publisher reading from mailbox. A non-positive
// interval falls back to DefaultInterval.
func NewPublisher(interval time.Duration, sender *Sender, mailbox *spectrum.Mailbox[spectrum.Output]) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp: publisher needs a sender")
	}
	if mailbox == nil {
		return nil, errors.New("udp: publisher needs a mailbox")
	}
	l := log.Named("udp")
	if interval <= 0 {
		l.Warnf("invalid interval %s, using %s", interval, DefaultInterval)
		interval = DefaultInterval
	}
	return &Publisher{
		sender:   sender,
		mailbox:  mailbox,
		interval: interval,
		log:      l,
	}, nil
}

// Start launches the publishing goroutine. Calling it while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	done := make(chan struct{})
	p.done = done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.log.Debugf("publishing every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// publish sends the newest frame if it has not been sent yet.
func (p *Publisher) publish() bool {
	out, seq := p.mailbox.Latest()
	if seq == 0 || seq == p.lastSeen {
		return false
	}
	p.lastSeen = seq
	p.sequence++
	p.packet = AppendPacket(p.packet[:0], p.sequence, out.At, out.Left, out.Right)
	if err := p.sender.Send(p.packet); err != nil {
		return false
	}
	if log.Enabled(log.LevelDebug) && p.sequence%300 == 0 {
		p.log.Debugf("sent packet %d (%d bytes)", p.sequence, len(p.packet))
	}
	return true
}

// Stop signals the goroutine and waits for it to exit. Safe to call more
// than once.
func (p *Publisher) Stop() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	p.wg.Wait()
}

// Close stops publishing and closes the sender.
func (p *Publisher) Close() error {
	p.Stop()
	return p.sender.Close()
}

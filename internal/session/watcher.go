// SPDX-License-Identifier: MIT

// Package session watches the system's "now playing" media session and
// publishes debounced snapshots of it.
//
// Provider notifications are merged into a pending set of SignalKinds. A
// single pump goroutine waits until the signals have been quiet for the
// debounce interval, swaps the pending set out and runs one refresh. A
// refresh records the session revision before reading from the provider and
// drops its result if the session was swapped in the meantime.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"nowplaying/internal/log"
)

const (
	DefaultDebounce     = 75 * time.Millisecond
	DefaultConnectRetry = 250 * time.Millisecond
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("session: watcher closed")

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet interval required before a refresh.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithConnectRetry sets the delay between manager acquisition attempts.
func WithConnectRetry(d time.Duration) Option {
	return func(w *Watcher) { w.retry = d }
}

// Stats is a point-in-time copy of the watcher counters.
type Stats struct {
	Signals   uint64 // signals accepted
	Refreshes uint64 // refreshes run
	Published uint64 // events delivered
	Stale     uint64 // refresh results dropped after a session swap
}

// Watcher tracks the current session of a Manager. All methods are safe for
// concurrent use.
type Watcher struct {
	connector Connector
	handler   Handler
	debounce  time.Duration
	retry     time.Duration
	log       *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// refreshSem admits one refresh at a time.
	refreshSem chan struct{}
	wg         sync.WaitGroup

	// startMu serializes Start so only one Connect is in flight.
	startMu sync.Mutex

	// publishMu is held from the revision check through the handler call.
	// setSession takes it before bumping the revision. Lock order:
	// publishMu, then mu.
	publishMu sync.Mutex

	mu            sync.Mutex
	closed        bool
	manager       Manager
	managerUnsub  func()
	session       Session
	sessionUnsubs []func()
	revision      uint32
	pending       SignalKind
	lastSignal    time.Time
	pumping       bool

	signals   atomic.Uint64
	refreshes atomic.Uint64
	published atomic.Uint64
	stale     atomic.Uint64
}

// New returns a watcher that reports to handler. Call Start to connect.
func New(connector Connector, handler Handler, opts ...Option) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		connector:  connector,
		handler:    handler,
		debounce:   DefaultDebounce,
		retry:      DefaultConnectRetry,
		log:        log.Named("session"),
		ctx:        ctx,
		cancel:     cancel,
		refreshSem: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start acquires the session manager, retrying until it succeeds, ctx is
// done or the watcher is closed. It then binds the current session and
// requests an initial refresh. Concurrent calls are serialized; calling
// Start again after success is a no-op and does not connect again.
func (w *Watcher) Start(ctx context.Context) error {
	w.startMu.Lock()
	defer w.startMu.Unlock()

	w.mu.Lock()
	closed, bound := w.closed, w.manager != nil
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if bound {
		return nil
	}

	var m Manager
	for {
		var err error
		m, err = w.connector.Connect(ctx)
		if err == nil {
			break
		}
		w.log.Debugf("acquiring session manager: %v", err)

		t := time.NewTimer(w.retry)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-w.ctx.Done():
			t.Stop()
			return ErrClosed
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.manager = m
	w.mu.Unlock()

	unsub := m.OnCurrentSessionChanged(func() {
		w.setSession(m.CurrentSession())
		w.Signal(SessionChanged)
	})
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		unsub()
		return ErrClosed
	}
	w.managerUnsub = unsub
	w.mu.Unlock()

	w.setSession(m.CurrentSession())
	w.Signal(RefreshRequested)
	return nil
}

// RequestRefresh asks for a full refresh.
func (w *Watcher) RequestRefresh() { w.Signal(RefreshRequested) }

// Signal merges kind into the pending set and makes sure the pump is
// running. Signals after Close are ignored.
func (w *Watcher) Signal(kind SignalKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signalLocked(kind)
}

func (w *Watcher) signalLocked(kind SignalKind) {
	if w.closed {
		return
	}
	w.signals.Add(1)
	w.pending |= kind
	w.lastSignal = time.Now()
	if !w.pumping {
		w.pumping = true
		w.wg.Add(1)
		go w.pump()
	}
}

// signalFrom is the entry point for per-session notifications. Callbacks
// from a session that has since been replaced are dropped.
func (w *Watcher) signalFrom(revision uint32, kind SignalKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.revision != revision {
		return
	}
	w.signalLocked(kind)
}

// setSession swaps the current session, bumps the revision and rebinds the
// per-session subscriptions. Sessions are compared by identity: a new object
// with the same ID is a new session.
func (w *Watcher) setSession(s Session) {
	w.publishMu.Lock()
	w.mu.Lock()
	if w.closed || w.session == s {
		w.mu.Unlock()
		w.publishMu.Unlock()
		return
	}
	old := w.sessionUnsubs
	w.sessionUnsubs = nil
	w.session = s
	w.revision++
	rev := w.revision
	w.mu.Unlock()
	w.publishMu.Unlock()

	for _, unsub := range old {
		unsub()
	}
	if s == nil {
		w.log.Debugf("no active session (revision %d)", rev)
		return
	}
	w.log.Debugf("session %q bound (revision %d)", s.ID(), rev)

	unsubs := []func(){
		s.OnMediaPropertiesChanged(func() { w.signalFrom(rev, MediaPropertiesChanged) }),
		s.OnPlaybackInfoChanged(func() { w.signalFrom(rev, PlaybackInfoChanged) }),
		s.OnTimelineChanged(func() { w.signalFrom(rev, TimelineChanged) }),
	}

	w.mu.Lock()
	if w.closed || w.revision != rev {
		w.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}
		return
	}
	w.sessionUnsubs = unsubs
	w.mu.Unlock()
}

// pump debounces pending signals and runs refreshes until none remain.
func (w *Watcher) pump() {
	defer w.wg.Done()

	for {
		w.mu.Lock()
		last := w.lastSignal
		w.mu.Unlock()

		if remaining := w.debounce - time.Since(last); remaining > 0 {
			t := time.NewTimer(remaining)
			select {
			case <-t.C:
			case <-w.ctx.Done():
				t.Stop()
				w.stopPump()
				return
			}
		}

		w.mu.Lock()
		if time.Since(w.lastSignal) < w.debounce {
			// A signal arrived while sleeping; wait again.
			w.mu.Unlock()
			continue
		}
		kinds := w.pending
		w.pending = None
		if kinds == None || w.closed {
			w.pumping = false
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		w.refresh(kinds)

		w.mu.Lock()
		if w.pending == None || w.closed {
			w.pumping = false
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) stopPump() {
	w.mu.Lock()
	w.pumping = false
	w.mu.Unlock()
}

// refresh reads the current session and publishes a snapshot unless the
// session was swapped while reading.
func (w *Watcher) refresh(kinds SignalKind) {
	select {
	case w.refreshSem <- struct{}{}:
	case <-w.ctx.Done():
		return
	}
	defer func() { <-w.refreshSem }()

	if w.ctx.Err() != nil {
		return
	}
	w.refreshes.Add(1)

	w.mu.Lock()
	m, s, rev := w.manager, w.session, w.revision
	w.mu.Unlock()

	if m == nil {
		return
	}
	if s == nil {
		w.publish(rev, Event{Kinds: kinds})
		return
	}

	snap := &Snapshot{Revision: rev, PlaybackStatus: StatusClosed}
	if id, err := s.AppID(); err == nil {
		snap.AppID = &id
	} else {
		w.log.Debugf("app id: %v", err)
	}
	if status, err := s.PlaybackInfo(); err == nil {
		snap.PlaybackStatus = status
	} else {
		w.log.Debugf("playback info: %v", err)
	}
	if tl, err := s.TimelineProperties(); err == nil {
		snap.Timeline = tl
	} else {
		w.log.Debugf("timeline: %v", err)
	}
	if kinds.Has(mediaPropertyKinds) {
		if props, err := s.MediaProperties(w.ctx); err == nil {
			snap.Title = &props.Title
			snap.Artist = &props.Artist
			snap.Thumbnail = props.Thumbnail
		} else {
			w.log.Debugf("media properties: %v", err)
		}
	}

	if w.ctx.Err() != nil {
		return
	}
	w.publish(rev, Event{Kinds: kinds, Snapshot: snap})
}

// publish delivers ev if rev is still current. The handler runs under
// publishMu, so a session swap cannot complete until it returns and no
// event for an older revision follows a newer one. The handler must not
// trigger a session swap synchronously.
func (w *Watcher) publish(rev uint32, ev Event) {
	w.publishMu.Lock()
	defer w.publishMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.revision != rev {
		current := w.revision
		w.mu.Unlock()
		w.stale.Add(1)
		w.log.Debugf("dropping refresh for revision %d (now %d)", rev, current)
		return
	}
	w.mu.Unlock()

	w.published.Add(1)
	if w.handler != nil {
		w.handler(ev)
	}
}

// Revision returns the current session revision.
func (w *Watcher) Revision() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.revision
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Signals:   w.signals.Load(),
		Refreshes: w.refreshes.Load(),
		Published: w.published.Load(),
		Stale:     w.stale.Load(),
	}
}

// Close cancels pending work, detaches every subscription and waits for the
// pump to exit. No event is delivered after Close returns.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.cancel()
	managerUnsub, sessionUnsubs := w.managerUnsub, w.sessionUnsubs
	w.manager, w.managerUnsub = nil, nil
	w.session, w.sessionUnsubs = nil, nil
	w.mu.Unlock()

	for _, unsub := range sessionUnsubs {
		unsub()
	}
	if managerUnsub != nil {
		managerUnsub()
	}
	w.wg.Wait()
	return nil
}

// SPDX-License-Identifier: MIT

// Package mock provides an in-memory session provider for tests and for
// running without a media bus.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"nowplaying/internal/session"
)

// subscribers is a set of callbacks keyed by registration order.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (s *subscribers) add(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func())
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) fire() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *subscribers) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// Session is a controllable session.Session.
type Session struct {
	id    string
	appID string

	mu       sync.Mutex
	props    session.MediaProperties
	status   session.PlaybackStatus
	timeline session.Timeline
	propsErr error
	appErr   error
	gate     chan struct{} // non-nil blocks MediaProperties until closed

	propsCalls atomic.Int32
	entered    chan struct{}

	mediaSubs, playbackSubs, timelineSubs subscribers
}

var _ session.Session = (*Session)(nil)

// NewSession returns a playing session with the given title.
func NewSession(id, appID, title, artist string) *Session {
	return &Session{
		id:      id,
		appID:   appID,
		props:   session.MediaProperties{Title: title, Artist: artist},
		status:  session.StatusPlaying,
		entered: make(chan struct{}, 16),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) AppID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appErr != nil {
		return "", s.appErr
	}
	return s.appID, nil
}

func (s *Session) OnMediaPropertiesChanged(fn func()) func() { return s.mediaSubs.add(fn) }
func (s *Session) OnPlaybackInfoChanged(fn func()) func()    { return s.playbackSubs.add(fn) }
func (s *Session) OnTimelineChanged(fn func()) func()        { return s.timelineSubs.add(fn) }

// MediaProperties blocks while the session is blocked, honoring ctx.
func (s *Session) MediaProperties(ctx context.Context) (session.MediaProperties, error) {
	s.propsCalls.Add(1)
	select {
	case s.entered <- struct{}{}:
	default:
	}

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return session.MediaProperties{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.propsErr != nil {
		return session.MediaProperties{}, s.propsErr
	}
	return s.props, nil
}

func (s *Session) PlaybackInfo() (session.PlaybackStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *Session) TimelineProperties() (session.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline, nil
}

// SetMediaProperties updates title and artist and notifies subscribers.
func (s *Session) SetMediaProperties(title, artist string) {
	s.mu.Lock()
	s.props.Title, s.props.Artist = title, artist
	s.mu.Unlock()
	s.mediaSubs.fire()
}

// SetPlaybackStatus updates the status and notifies subscribers.
func (s *Session) SetPlaybackStatus(status session.PlaybackStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.playbackSubs.fire()
}

// SetTimeline updates the timeline and notifies subscribers.
func (s *Session) SetTimeline(tl session.Timeline) {
	s.mu.Lock()
	s.timeline = tl
	s.mu.Unlock()
	s.timelineSubs.fire()
}

// FailMediaProperties makes MediaProperties return err; nil clears it.
func (s *Session) FailMediaProperties(err error) {
	s.mu.Lock()
	s.propsErr = err
	s.mu.Unlock()
}

// FailAppID makes AppID return err; nil clears it.
func (s *Session) FailAppID(err error) {
	s.mu.Lock()
	s.appErr = err
	s.mu.Unlock()
}

// Block makes MediaProperties wait until the returned release func runs.
func (s *Session) Block() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Entered is signalled each time MediaProperties is called.
func (s *Session) Entered() <-chan struct{} { return s.entered }

// MediaPropertiesCalls counts MediaProperties calls.
func (s *Session) MediaPropertiesCalls() int { return int(s.propsCalls.Load()) }

// Subscribers counts attached callbacks across all three notifications.
func (s *Session) Subscribers() int {
	return s.mediaSubs.len() + s.playbackSubs.len() + s.timelineSubs.len()
}

// Manager is a controllable session.Manager.
type Manager struct {
	mu      sync.Mutex
	current *Session
	subs    subscribers
}

var _ session.Manager = (*Manager)(nil)

// NewManager returns a manager whose current session is current, which may
// be nil.
func NewManager(current *Session) *Manager {
	return &Manager{current: current}
}

func (m *Manager) CurrentSession() session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current
}

func (m *Manager) OnCurrentSessionChanged(fn func()) func() { return m.subs.add(fn) }

// SetCurrent swaps the current session and notifies subscribers.
func (m *Manager) SetCurrent(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.subs.fire()
}

// Subscribers counts attached callbacks.
func (m *Manager) Subscribers() int { return m.subs.len() }

// ErrUnavailable is returned by a Connector while it is failing.
var ErrUnavailable = errors.New("mock: session manager unavailable")

// Connector hands out Manager after failing the first Failures attempts.
type Connector struct {
	Manager  *Manager
	Failures int

	calls atomic.Int32
}

var _ session.Connector = (*Connector)(nil)

func (c *Connector) Connect(ctx context.Context) (session.Manager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := int(c.calls.Add(1))
	if n <= c.Failures {
		return nil, fmt.Errorf("attempt %d: %w", n, ErrUnavailable)
	}
	return c.Manager, nil
}

// Calls counts Connect attempts.
func (c *Connector) Calls() int { return int(c.calls.Load()) }

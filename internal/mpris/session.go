// SPDX-License-Identifier: MIT
package mpris

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"nowplaying/internal/session"
)

// Session is one MPRIS player.
type Session struct {
	name   string
	obj    dbus.BusObject
	status atomic.Int32

	mediaSubs, playbackSubs, timelineSubs subscribers
}

var _ session.Session = (*Session)(nil)

func newSession(name string, obj dbus.BusObject) *Session {
	return &Session{name: name, obj: obj}
}

// ID is the player's well-known bus name, stable for its lifetime.
func (s *Session) ID() string { return s.name }

func (s *Session) AppID() (string, error) { return appID(s.name), nil }

func (s *Session) OnMediaPropertiesChanged(fn func()) func() { return s.mediaSubs.add(fn) }
func (s *Session) OnPlaybackInfoChanged(fn func()) func()    { return s.playbackSubs.add(fn) }
func (s *Session) OnTimelineChanged(fn func()) func()        { return s.timelineSubs.add(fn) }

func (s *Session) metadata(ctx context.Context) (map[string]dbus.Variant, error) {
	var v dbus.Variant
	err := s.obj.CallWithContext(ctx, propsIface+".Get", 0, playerIface, "Metadata").Store(&v)
	if err != nil {
		return nil, fmt.Errorf("mpris: %s metadata: %w", appID(s.name), err)
	}
	md, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("mpris: %s metadata has type %s", appID(s.name), v.Signature())
	}
	return md, nil
}

func (s *Session) MediaProperties(ctx context.Context) (session.MediaProperties, error) {
	md, err := s.metadata(ctx)
	if err != nil {
		return session.MediaProperties{}, err
	}
	props, _ := parseMetadata(md)
	return props, nil
}

func (s *Session) PlaybackInfo() (session.PlaybackStatus, error) {
	v, err := s.obj.GetProperty(playerIface + ".PlaybackStatus")
	if err != nil {
		return session.StatusClosed, fmt.Errorf("mpris: %s status: %w", appID(s.name), err)
	}
	str, _ := v.Value().(string)
	status := parseStatus(str)
	s.setStatus(status)
	return status, nil
}

// TimelineProperties combines the track length from Metadata with the
// Position property. Players without a length report an empty timeline.
func (s *Session) TimelineProperties() (session.Timeline, error) {
	md, err := s.metadata(context.Background())
	if err != nil {
		return session.Timeline{}, err
	}
	_, length := parseMetadata(md)
	tl := session.Timeline{End: length}

	v, err := s.obj.GetProperty(playerIface + ".Position")
	if err != nil {
		return tl, nil
	}
	if pos, ok := microseconds(v.Value()); ok {
		tl.Position = min(max(pos, 0), length)
	}
	return tl, nil
}

func (s *Session) setStatus(status session.PlaybackStatus) { s.status.Store(int32(status)) }

func (s *Session) cachedStatus() session.PlaybackStatus {
	return session.PlaybackStatus(s.status.Load())
}

// subscribers is a set of callbacks that can be fired together.
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
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
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

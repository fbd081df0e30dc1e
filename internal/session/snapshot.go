// SPDX-License-Identifier: MIT
package session

import "time"

// PlaybackStatus mirrors the states a media session reports.
type PlaybackStatus int

const (
	StatusClosed PlaybackStatus = iota
	StatusOpened
	StatusChanging
	StatusStopped
	StatusPlaying
	StatusPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpened:
		return "opened"
	case StatusChanging:
		return "changing"
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Thumbnail references artwork without loading it.
type Thumbnail struct {
	URL string
}

// Timeline is the position of the current item.
type Timeline struct {
	Start    time.Duration
	End      time.Duration
	Position time.Duration
}

// Snapshot is an immutable view of the active session at one revision.
// Optional fields are nil when the provider could not supply them.
type Snapshot struct {
	Revision       uint32
	AppID          *string
	Title          *string
	Artist         *string
	Thumbnail      *Thumbnail
	PlaybackStatus PlaybackStatus
	Timeline       Timeline
}

// HasTimeline reports whether the item has at least one second of timeline.
func (s *Snapshot) HasTimeline() bool {
	return s.Timeline.End-s.Timeline.Start >= time.Second
}

// Progress returns the position as a fraction of the timeline in [0, 1],
// or 0 without a timeline.
func (s *Snapshot) Progress() float64 {
	if !s.HasTimeline() {
		return 0
	}
	p := float64(s.Timeline.Position-s.Timeline.Start) / float64(s.Timeline.End-s.Timeline.Start)
	return min(max(p, 0), 1)
}

// Event is delivered to the watcher's handler. A nil Snapshot means there
// is no active session.
type Event struct {
	Kinds    SignalKind
	Snapshot *Snapshot
}

// Handler receives events. It may run on any goroutine.
type Handler func(Event)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TitleOrEmpty and ArtistOrEmpty ease display code.
func (s *Snapshot) TitleOrEmpty() string  { return deref(s.Title) }
func (s *Snapshot) ArtistOrEmpty() string { return deref(s.Artist) }

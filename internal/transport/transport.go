// SPDX-License-Identifier: MIT

// Package transport fans spectrum frames and session snapshots out to
// external consumers.
package transport

import (
	"errors"

	"nowplaying/internal/session"
	"nowplaying/internal/spectrum"
)

// Transport delivers messages to some consumer. Implementations must be safe
// for concurrent use and must not block the caller for long; dropping a
// message is preferred over stalling the capture path.
type Transport interface {
	Send(msg Message) error
	Close() error
}

// Message is either a *FrameMessage or a *SessionMessage.
type Message interface {
	MessageType() string
}

// FrameMessage carries one spectrum frame. Right is empty for mono.
type FrameMessage struct {
	Type  string    `json:"type"`
	At    int64     `json:"at"` // unix milliseconds
	Left  []float32 `json:"left"`
	Right []float32 `json:"right,omitempty"`
}

func (*FrameMessage) MessageType() string { return "spectrum" }

// NewFrameMessage wraps a capture output.
func NewFrameMessage(out spectrum.Output) *FrameMessage {
	return &FrameMessage{Type: "spectrum", At: out.At.UnixMilli(), Left: out.Left, Right: out.Right}
}

// SessionMessage carries a now-playing snapshot. Active is false when no
// media session exists, in which case the other fields are empty.
type SessionMessage struct {
	Type       string   `json:"type"`
	Kinds      []string `json:"kinds"`
	Active     bool     `json:"active"`
	Revision   uint32   `json:"revision,omitempty"`
	AppID      string   `json:"app_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Artist     string   `json:"artist,omitempty"`
	Thumbnail  string   `json:"thumbnail,omitempty"`
	Status     string   `json:"status,omitempty"`
	PositionMs int64    `json:"position_ms,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
}

func (*SessionMessage) MessageType() string { return "session" }

// NewSessionMessage flattens a watcher event.
func NewSessionMessage(ev session.Event) *SessionMessage {
	msg := &SessionMessage{Type: "session", Kinds: kindNames(ev.Kinds)}
	s := ev.Snapshot
	if s == nil {
		return msg
	}
	msg.Active = true
	msg.Revision = s.Revision
	if s.AppID != nil {
		msg.AppID = *s.AppID
	}
	msg.Title = s.TitleOrEmpty()
	msg.Artist = s.ArtistOrEmpty()
	if s.Thumbnail != nil {
		msg.Thumbnail = s.Thumbnail.URL
	}
	msg.Status = s.PlaybackStatus.String()
	if s.HasTimeline() {
		msg.PositionMs = (s.Timeline.Position - s.Timeline.Start).Milliseconds()
		msg.DurationMs = (s.Timeline.End - s.Timeline.Start).Milliseconds()
	}
	return msg
}

func kindNames(k session.SignalKind) []string {
	names := []string{}
	for _, kind := range []session.SignalKind{
		session.SessionChanged,
		session.MediaPropertiesChanged,
		session.PlaybackInfoChanged,
		session.TimelineChanged,
		session.RefreshRequested,
	} {
		if k.Has(kind) {
			names = append(names, kind.String())
		}
	}
	return names
}

// Multi sends every message to each of its transports.
type Multi []Transport

func (m Multi) Send(msg Message) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Transport = Multi(nil)
	_ Message   = (*FrameMessage)(nil)
	_ Message   = (*SessionMessage)(nil)
)

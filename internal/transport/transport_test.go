// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"reflect"
	"testing"

	"nowplaying/internal/session"
)

func TestNewSessionMessage(t *testing.T) {
	msg := NewSessionMessage(testEvent())
	want := &SessionMessage{
		Type:       "session",
		Kinds:      []string{"MediaPropertiesChanged"},
		Active:     true,
		Revision:   3,
		AppID:      "spotify",
		Title:      "Roygbiv",
		Artist:     "Boards of Canada",
		Status:     "playing",
		PositionMs: 30000,
		DurationMs: 150000,
	}
	if !reflect.DeepEqual(msg, want) {
		t.Errorf("NewSessionMessage() =\n%+v\nwant\n%+v", msg, want)
	}
}

func TestNewSessionMessageInactive(t *testing.T) {
	msg := NewSessionMessage(session.Event{Kinds: session.SessionChanged | session.RefreshRequested})
	if msg.Active || msg.Title != "" {
		t.Errorf("msg = %+v", msg)
	}
	if !reflect.DeepEqual(msg.Kinds, []string{"SessionChanged", "RefreshRequested"}) {
		t.Errorf("Kinds = %v", msg.Kinds)
	}
}

type recordingTransport struct {
	sent   []Message
	err    error
	closed bool
}

func (r *recordingTransport) Send(msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingTransport) Close() error {
	r.closed = true
	return r.err
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok, bad := &recordingTransport{}, &recordingTransport{err: boom}
	m := Multi{ok, bad}

	if err := m.Send(NewSessionMessage(session.Event{})); !errors.Is(err, boom) {
		t.Errorf("Send err = %v", err)
	}
	if len(ok.sent) != 1 || len(bad.sent) != 1 {
		t.Error("every transport should see the message")
	}
	if err := m.Close(); !errors.Is(err, boom) || !ok.closed || !bad.closed {
		t.Errorf("Close err = %v", err)
	}
}

func TestLoggingTransportNeverFails(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(NewSessionMessage(testEvent())); err != nil {
		t.Fatal(err)
	}
	if err := lt.Send(&FrameMessage{Left: []float32{0.5}}); err != nil {
		t.Fatal(err)
	}
	if err := lt.Close(); err != nil {
		t.Fatal(err)
	}
}

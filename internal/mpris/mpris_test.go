// SPDX-License-Identifier: MIT
package mpris

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"

	"nowplaying/internal/log"
	"nowplaying/internal/session"
)

// offlineManager builds a Manager with players registered but no bus, which
// is enough to drive handle directly.
func offlineManager(t *testing.T, players map[string]string) *Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := &Manager{
		log:     log.Named("mpris"),
		ctx:     ctx,
		cancel:  cancel,
		players: make(map[string]*Session),
		owners:  make(map[string]string),
	}
	for owner, name := range players {
		m.players[name] = newSession(name, nil)
		m.owners[owner] = name
	}
	return m
}

func propertiesChanged(sender string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Sender: sender,
		Path:   objectPath,
		Name:   propsIface + ".PropertiesChanged",
		Body:   []any{playerIface, changed, []string{}},
	}
}

func TestManagerStatusChangeSwitchesCurrent(t *testing.T) {
	const (
		mpv = "org.mpris.MediaPlayer2.mpv"
		vlc = "org.mpris.MediaPlayer2.vlc"
	)
	m := offlineManager(t, map[string]string{":1.10": mpv, ":1.11": vlc})
	m.reselect()
	if got := m.CurrentSession(); got == nil || got.ID() != mpv {
		t.Fatalf("initial current = %v, want mpv", got)
	}

	var switched, playback int
	m.OnCurrentSessionChanged(func() { switched++ })
	m.players[vlc].OnPlaybackInfoChanged(func() { playback++ })

	m.handle(propertiesChanged(":1.11", map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant("Playing"),
	}))

	if got := m.CurrentSession(); got == nil || got.ID() != vlc {
		t.Errorf("current = %v, want vlc", got)
	}
	if switched != 1 || playback != 1 {
		t.Errorf("switched=%d playback=%d, want 1 and 1", switched, playback)
	}

	// The same status again keeps the selection.
	m.handle(propertiesChanged(":1.11", map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant("Playing"),
	}))
	if switched != 1 {
		t.Errorf("switched = %d after a repeated status", switched)
	}
}

func TestManagerMetadataAndSeekSignals(t *testing.T) {
	const name = "org.mpris.MediaPlayer2.spotify"
	m := offlineManager(t, map[string]string{":1.5": name})
	s := m.players[name]

	var media, timeline int
	s.OnMediaPropertiesChanged(func() { media++ })
	unsub := s.OnTimelineChanged(func() { timeline++ })

	m.handle(propertiesChanged(":1.5", map[string]dbus.Variant{
		"Metadata": dbus.MakeVariant(map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("x")}),
	}))
	m.handle(&dbus.Signal{Sender: ":1.5", Path: objectPath, Name: playerIface + ".Seeked", Body: []any{int64(1000)}})
	if media != 1 || timeline != 2 {
		t.Errorf("media=%d timeline=%d, want 1 and 2", media, timeline)
	}

	// Unknown senders, other interfaces and detached callbacks are ignored.
	unsub()
	m.handle(&dbus.Signal{Sender: ":1.99", Name: playerIface + ".Seeked", Body: []any{int64(0)}})
	m.handle(&dbus.Signal{
		Sender: ":1.5",
		Name:   propsIface + ".PropertiesChanged",
		Body:   []any{"org.mpris.MediaPlayer2", map[string]dbus.Variant{"Metadata": dbus.MakeVariant("")}, []string{}},
	})
	m.handle(&dbus.Signal{Sender: ":1.5", Name: playerIface + ".Seeked", Body: []any{int64(0)}})
	if media != 1 || timeline != 2 {
		t.Errorf("media=%d timeline=%d after ignored signals", media, timeline)
	}
}

func TestManagerPlayerVanishes(t *testing.T) {
	const name = "org.mpris.MediaPlayer2.mpv"
	m := offlineManager(t, map[string]string{":1.7": name})
	m.reselect()

	var switched int
	m.OnCurrentSessionChanged(func() { switched++ })
	m.handle(&dbus.Signal{
		Sender: "org.freedesktop.DBus",
		Name:   "org.freedesktop.DBus.NameOwnerChanged",
		Body:   []any{name, ":1.7", ""},
	})

	if m.CurrentSession() != nil {
		t.Error("current session should be nil after the player exits")
	}
	if switched != 1 {
		t.Errorf("switched = %d, want 1", switched)
	}
	if len(m.Players()) != 0 || len(m.owners) != 0 {
		t.Errorf("players=%v owners=%v", m.Players(), m.owners)
	}
}

func TestCachedStatusDefaultsToClosed(t *testing.T) {
	s := newSession("org.mpris.MediaPlayer2.x", nil)
	if s.cachedStatus() != session.StatusClosed {
		t.Errorf("cachedStatus = %v", s.cachedStatus())
	}
	if id, err := s.AppID(); err != nil || id != "x" {
		t.Errorf("AppID = %q, %v", id, err)
	}
}

// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nowplaying/internal/audio"
	"nowplaying/internal/session"
	"nowplaying/internal/spectrum"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeIdler struct{ idle bool }

func (f fakeIdler) Idle(time.Duration, time.Time) bool { return f.idle }

func TestRenderBars(t *testing.T) {
	got := renderBars([]float64{0, 0.5, 1}, 10, 2)
	want := "    █\n  █ █"
	if got != want {
		t.Errorf("renderBars =\n%q\nwant\n%q", got, want)
	}
	if renderBars(nil, 10, 2) != "" {
		t.Error("no levels should render nothing")
	}
	// Narrow terminals drop the gaps.
	if got := renderBars([]float64{1, 1, 1}, 3, 1); got != "███" {
		t.Errorf("narrow = %q", got)
	}
}

func TestSpringFieldConverges(t *testing.T) {
	s := newSpringField(panelFPS, 8, 0.9)
	s.resize(2)
	for range 3 * panelFPS {
		s.step([]float32{1, 0.25})
	}
	if s.pos[0] < 0.95 || s.pos[1] < 0.2 || s.pos[1] > 0.3 {
		t.Errorf("pos = %v after 3s", s.pos)
	}
	for range 3 * panelFPS {
		s.step(nil)
	}
	if !s.settled() {
		t.Errorf("not settled: pos=%v vel=%v", s.pos, s.vel)
	}
}

func tick(t *testing.T, m PanelModel, clock *fakeClock) PanelModel {
	t.Helper()
	clock.advance(time.Second / panelFPS)
	next, cmd := m.Update(frameTickMsg(clock.now()))
	if cmd == nil {
		t.Fatal("frame tick should schedule the next tick")
	}
	return next.(PanelModel)
}

func TestPanelFollowsFramesAndHides(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	mb := spectrum.NewMailbox[spectrum.Output]()
	m := NewPanel(PanelOptions{Frames: mb, VisibilityTimeout: 5 * time.Second, Now: clock.now})

	mb.Put(spectrum.Output{Left: spectrum.Frame{1, 1, 1, 1}, Right: spectrum.Frame{1, 1, 1, 1}})
	for range panelFPS {
		m = tick(t, m, clock)
	}
	if m.Hidden() {
		t.Fatal("panel hidden while frames arrive")
	}
	if lv := m.Levels(); len(lv) != 4 || lv[0] < 0.9 {
		t.Fatalf("levels = %v", lv)
	}

	clock.advance(6 * time.Second)
	for range 3 * panelFPS {
		m = tick(t, m, clock)
	}
	if !m.Hidden() {
		t.Fatal("panel still visible after the visibility timeout")
	}
	if !strings.Contains(m.View(), "idle") {
		t.Errorf("hidden view = %q", m.View())
	}

	// A session change wakes it.
	next, _ := m.Update(SessionMsg(session.Event{Kinds: session.SessionChanged}))
	m = tick(t, next.(PanelModel), clock)
	if m.Hidden() {
		t.Error("session change should show the panel")
	}
}

func TestPanelHidesOnSilentInput(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewPanel(PanelOptions{Idle: fakeIdler{idle: true}, VisibilityTimeout: time.Second, Now: clock.now})
	m = tick(t, m, clock)
	if !m.Hidden() {
		t.Error("silent input should hide the panel")
	}
}

func TestPanelViewShowsSnapshot(t *testing.T) {
	title, artist, app := "Windowlicker", "Aphex Twin", "mpv"
	ev := session.Event{Kinds: session.MediaPropertiesChanged, Snapshot: &session.Snapshot{
		Title:          &title,
		Artist:         &artist,
		AppID:          &app,
		PlaybackStatus: session.StatusPaused,
		Timeline:       session.Timeline{End: 6 * time.Minute, Position: 90 * time.Second},
	}}
	m := NewPanel(PanelOptions{})
	next, _ := m.Update(SessionMsg(ev))
	view := next.(PanelModel).View()
	for _, want := range []string{"Windowlicker", "Aphex Twin", "paused", "mpv", "1:30 / 6:00"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}

	next, _ = m.Update(SessionMsg(session.Event{}))
	if !strings.Contains(next.(PanelModel).View(), "nothing playing") {
		t.Error("nil snapshot should show nothing playing")
	}
}

func TestPanelKeys(t *testing.T) {
	var resets int
	m := NewPanel(PanelOptions{OnReset: func() { resets++ }})
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); cmd != nil || resets != 1 {
		t.Errorf("reset: cmd=%v resets=%d", cmd, resets)
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce a QuitMsg")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{59*time.Second + 600*time.Millisecond, "1:00"},
		{61 * time.Minute, "1:01:00"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func pickerDevices() ([]audio.Device, error) {
	return []audio.Device{
		{ID: 0, Name: "Speakers (loopback)", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 1, Name: "HDMI Out", MaxOutputChannels: 8, DefaultSampleRate: 48000},
		{ID: 2, Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 32000},
	}, nil
}

func update(m DeviceListModel, msg tea.Msg) (DeviceListModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(DeviceListModel), cmd
}

func TestDevicePickerSelection(t *testing.T) {
	m := NewDeviceListModel(pickerDevices)
	m, _ = update(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(m, m.Init()())

	if len(m.devices) != 2 {
		t.Fatalf("devices = %v, want only inputs", m.devices)
	}
	if !strings.Contains(m.View(), "USB Mic") || strings.Contains(m.View(), "HDMI") {
		t.Errorf("list view = %q", m.View())
	}

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.activeScreen != ConfigScreen {
		t.Fatal("enter should open the config screen")
	}
	// 32 kHz is not a common rate, so it is offered first and preselected.
	if m.sampleRates[0] != 32000 || m.sampleRateIndex != 0 {
		t.Errorf("rates = %v index %d", m.sampleRates, m.sampleRateIndex)
	}

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("confirming should quit the picker")
	}
	sel, ok := m.Selection()
	if !ok || sel.DeviceID != 2 || sel.SampleRate != 44100 {
		t.Errorf("Selection() = %+v, %v", sel, ok)
	}
}

func TestDevicePickerBackAndError(t *testing.T) {
	m := NewDeviceListModel(pickerDevices)
	m, _ = update(m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(m, m.Init()())
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.sampleRates[m.sampleRateIndex] != 48000 {
		t.Errorf("default rate not preselected: %v[%d]", m.sampleRates, m.sampleRateIndex)
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.activeScreen != ListScreen {
		t.Error("esc should return to the list")
	}
	if _, ok := m.Selection(); ok {
		t.Error("no selection expected")
	}

	failing := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") })
	failing, _ = update(failing, tea.WindowSizeMsg{Width: 80, Height: 24})
	failing, _ = update(failing, failing.Init()())
	if !strings.Contains(failing.View(), "no host") {
		t.Errorf("error view = %q", failing.View())
	}
}

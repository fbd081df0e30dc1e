// SPDX-License-Identifier: MIT

// Package tui renders the now-playing panel and the device picker in the
// terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"nowplaying/internal/session"
	"nowplaying/internal/spectrum"
)

const (
	panelFPS       = 30
	defaultBarRows = 6
	minWidth       = 40
)

// Idler reports whether the audio input has been quiet for d.
// *audio.ActivityGate satisfies it.
type Idler interface {
	Idle(d time.Duration, now time.Time) bool
}

// SessionMsg carries a watcher event into the program.
type SessionMsg session.Event

type frameTickMsg time.Time

func frameTick() tea.Cmd {
	return tea.Tick(time.Second/panelFPS, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

type panelKeys struct {
	Reset key.Binding
	Quit  key.Binding
}

func (k panelKeys) ShortHelp() []key.Binding  { return []key.Binding{k.Reset, k.Quit} }
func (k panelKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var defaultPanelKeys = panelKeys{
	Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

// PanelOptions configures NewPanel.
type PanelOptions struct {
	Frames *spectrum.Mailbox[spectrum.Output]

	// Idle, when set, lets the panel hide once input has been silent for
	// VisibilityTimeout.
	Idle              Idler
	VisibilityTimeout time.Duration

	// OnReset runs when the user asks to clear the spectrum.
	OnReset func()

	// Now defaults to time.Now.
	Now func() time.Time
}

// PanelModel is the Bubble Tea model for the now-playing panel.
type PanelModel struct {
	opts     PanelOptions
	keys     panelKeys
	help     help.Model
	progress progress.Model

	springs  springField
	lastSeq  uint64
	latest   spectrum.Output
	snapshot *session.Snapshot

	// lastChange is the last time a new frame or snapshot arrived.
	lastChange time.Time
	hidden     bool

	width, rows int
}

// NewPanel creates the panel model.
func NewPanel(opts PanelOptions) PanelModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return PanelModel{
		opts:       opts,
		keys:       defaultPanelKeys,
		help:       help.New(),
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		springs:    newSpringField(panelFPS, 8, 0.9),
		lastChange: opts.Now(),
		width:      minWidth,
		rows:       defaultBarRows,
	}
}

func (m PanelModel) Init() tea.Cmd {
	return frameTick()
}

func (m PanelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			if m.opts.OnReset != nil {
				m.opts.OnReset()
			}
			m.latest = spectrum.Output{}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, minWidth)
		m.rows = max(defaultBarRows, (msg.Height-8)/2)
		return m, nil

	case SessionMsg:
		m.snapshot = msg.Snapshot
		m.lastChange = m.opts.Now()
		return m, nil

	case frameTickMsg:
		m = m.advance()
		return m, frameTick()
	}
	return m, nil
}

// advance pulls the newest frame, updates visibility and steps the bars.
func (m PanelModel) advance() PanelModel {
	now := m.opts.Now()
	if m.opts.Frames != nil {
		if out, seq := m.opts.Frames.Latest(); seq != m.lastSeq {
			m.lastSeq = seq
			m.latest = out
			m.lastChange = now
		}
	}

	m.hidden = false
	if m.opts.VisibilityTimeout > 0 && now.Sub(m.lastChange) > m.opts.VisibilityTimeout {
		m.hidden = true
	}
	if m.opts.Idle != nil && m.opts.VisibilityTimeout > 0 && m.opts.Idle.Idle(m.opts.VisibilityTimeout, now) {
		m.hidden = true
	}

	levels := mix(m.latest)
	if m.hidden {
		levels = nil
	}
	// springField holds slices; copy before mutating so earlier model
	// values stay intact.
	m.springs.pos = append([]float64(nil), m.springs.pos...)
	m.springs.vel = append([]float64(nil), m.springs.vel...)
	n := len(m.springs.pos)
	if len(levels) > 0 {
		n = len(levels)
	}
	m.springs.resize(n)
	m.springs.step(levels)
	return m
}

// mix averages stereo channels for display.
func mix(out spectrum.Output) []float32 {
	if !out.Stereo() {
		return out.Left
	}
	levels := make([]float32, min(len(out.Left), len(out.Right)))
	for i := range levels {
		levels[i] = (out.Left[i] + out.Right[i]) / 2
	}
	return levels
}

// Hidden reports whether the panel is blanked for inactivity.
func (m PanelModel) Hidden() bool { return m.hidden }

// Levels returns the animated bar heights.
func (m PanelModel) Levels() []float64 { return m.springs.pos }

func (m PanelModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + headerStyle.Render("now playing") + "\n\n")

	if m.hidden && m.springs.settled() {
		b.WriteString("  " + dimStyle.Render("idle") + "\n")
		b.WriteString("\n  " + m.help.View(m.keys) + "\n")
		return b.String()
	}

	s := m.snapshot
	switch {
	case s == nil:
		b.WriteString("  " + dimStyle.Render("nothing playing") + "\n\n")
	default:
		title := s.TitleOrEmpty()
		if title == "" {
			title = "Unknown title"
		}
		b.WriteString("  " + titleStyle.Render(title) + "\n")
		if artist := s.ArtistOrEmpty(); artist != "" {
			b.WriteString("  " + artistStyle.Render(artist) + "\n")
		}
		b.WriteString("  " + statusStyle.Render(statusLine(s)) + "\n")
		if s.HasTimeline() {
			m.progress.Width = m.width - 4
			b.WriteString("  " + m.progress.ViewAs(s.Progress()) + "\n")
		}
	}
	b.WriteString("\n")

	for _, line := range strings.Split(renderBars(m.springs.pos, m.width-4, m.rows), "\n") {
		b.WriteString("  " + barStyle.Render(line) + "\n")
	}
	b.WriteString("\n  " + m.help.View(m.keys) + "\n")
	return b.String()
}

func statusLine(s *session.Snapshot) string {
	icon := "■"
	switch s.PlaybackStatus {
	case session.StatusPlaying:
		icon = "▶"
	case session.StatusPaused:
		icon = "❚❚"
	}
	line := fmt.Sprintf("%s  %s", icon, s.PlaybackStatus)
	if s.AppID != nil && *s.AppID != "" {
		line += "  · " + *s.AppID
	}
	if s.HasTimeline() {
		line += fmt.Sprintf("  %s / %s", formatDuration(s.Timeline.Position-s.Timeline.Start), formatDuration(s.Timeline.End-s.Timeline.Start))
	}
	return line
}

func formatDuration(d time.Duration) string {
	d = max(d, 0).Round(time.Second)
	h := int(d / time.Hour)
	mnt := int(d/time.Minute) % 60
	sec := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mnt, sec)
	}
	return fmt.Sprintf("%d:%02d", mnt, sec)
}

// RunPanel runs the panel until the user quits or ctx is done. events, when
// non-nil, feeds session snapshots into the program.
func RunPanel(ctx context.Context, opts PanelOptions, events <-chan session.Event) error {
	p := tea.NewProgram(NewPanel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	done := make(chan struct{})
	defer close(done)
	if events != nil {
		go func() {
			for {
				select {
				case ev := <-events:
					p.Send(SessionMsg(ev))
				case <-done:
					return
				}
			}
		}()
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

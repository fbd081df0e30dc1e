// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nowplaying/internal/audio"
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	Name       string
	SampleRate float64
}

type pickerKeys struct {
	Up, Down, Enter, Back, Quit key.Binding
}

var defaultPickerKeys = pickerKeys{
	Up:    key.NewBinding(key.WithKeys("up", "k")),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Enter: key.NewBinding(key.WithKeys("enter")),
	Back:  key.NewBinding(key.WithKeys("esc")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// DeviceListModel lets the user pick a capture device and its sample rate.
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	keys          pickerKeys
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	sampleRates     []float64
	sampleRateIndex int

	chosen *Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a picker listing the devices returned by fetch
// that can record. A nil fetch uses audio.HostDevices.
func NewDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	if fetch == nil {
		fetch = audio.HostDevices
	}
	return DeviceListModel{fetch: fetch, keys: defaultPickerKeys, activeScreen: ListScreen}
}

func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		all, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		inputs := make([]audio.Device, 0, len(all))
		for _, d := range all {
			if d.MaxInputChannels > 0 {
				inputs = append(inputs, d)
			}
		}
		return devicesMsg{inputs}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.activeScreen == ListScreen {
			switch {
			case key.Matches(msg, m.keys.Up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, m.keys.Down):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, m.keys.Enter):
				if len(m.devices) > 0 {
					m.enterConfig()
				}
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Back):
				m.activeScreen = ListScreen
			case key.Matches(msg, m.keys.Up):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, m.keys.Down):
				if m.sampleRateIndex < len(m.sampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, m.keys.Enter):
				d := m.devices[m.selectedIndex]
				m.chosen = &Selection{DeviceID: d.ID, Name: d.Name, SampleRate: m.sampleRates[m.sampleRateIndex]}
				return m, tea.Quit
			}
		}
		m.refresh()
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// enterConfig offers the device default rate plus the common rates, with
// the default preselected.
func (m *DeviceListModel) enterConfig() {
	m.activeScreen = ConfigScreen
	def := m.devices[m.selectedIndex].DefaultSampleRate
	m.sampleRates = append([]float64(nil), commonSampleRates...)
	m.sampleRateIndex = -1
	for i, rate := range m.sampleRates {
		if rate == def {
			m.sampleRateIndex = i
		}
	}
	if m.sampleRateIndex < 0 {
		m.sampleRates = append([]float64{def}, m.sampleRates...)
		m.sampleRateIndex = 0
	}
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ListScreen {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderDeviceConfig())
	}
}

// Selection returns the confirmed choice, if any.
func (m DeviceListModel) Selection() (Selection, bool) {
	if m.chosen == nil {
		return Selection{}, false
	}
	return *m.chosen, true
}

func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, hint string
	if m.activeScreen == ListScreen {
		title = headerStyle.Render("Capture Devices")
		hint = statusStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = headerStyle.Render("Sample Rate")
		hint = statusStyle.Render("↑/↓: Change Value • Enter: Use • Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), hint)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No capture devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		info := fmt.Sprintf("[%d] %s (%s, %s)\n", device.ID, device.Name, device.Type(), device.HostAPI)
		info += fmt.Sprintf("    Input channels: %d, default rate: %.0f Hz, latency: %s\n",
			device.MaxInputChannels, device.DefaultSampleRate, device.LowInputLatency)
		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	for i, rate := range m.sampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz", marker, rate)
		if rate == device.DefaultSampleRate {
			line += " (default)"
		}
		line += "\n"
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// PickDevice runs the picker and returns the user's choice. ok is false when
// the user quit without choosing.
func PickDevice(fetch func() ([]audio.Device, error)) (sel Selection, ok bool, err error) {
	p := tea.NewProgram(NewDeviceListModel(fetch), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Selection{}, false, err
	}
	sel, ok = final.(DeviceListModel).Selection()
	return sel, ok, nil
}

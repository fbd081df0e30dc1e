// SPDX-License-Identifier: MIT

// Package mpris implements the session provider interfaces on top of the
// MPRIS D-Bus interface that Linux media players export on the session bus.
//
// One goroutine per Manager reads bus signals. Player appearance and
// disappearance come from NameOwnerChanged, state changes from
// PropertiesChanged and Seeked. Callbacks run on that goroutine with no
// locks held.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"nowplaying/internal/log"
	"nowplaying/internal/session"
)

// ErrNoBus is returned when the session bus cannot be reached.
var ErrNoBus = errors.New("mpris: session bus unavailable")

// Connector opens the session bus and returns a Manager. Player, when set,
// is the app id preferred over other players (e.g. "spotify").
type Connector struct {
	Player string

	mu      sync.Mutex
	manager *Manager
}

var _ session.Connector = (*Connector)(nil)

// Connect dials the session bus. Each call replaces any previous Manager.
func (c *Connector) Connect(ctx context.Context) (session.Manager, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoBus, err)
	}
	m, err := newManager(ctx, conn, c.Player)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c.mu.Lock()
	prev := c.manager
	c.manager = m
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return m, nil
}

// Close releases the bus connection of the last Manager.
func (c *Connector) Close() error {
	c.mu.Lock()
	m := c.manager
	c.manager = nil
	c.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Close()
}

// Manager tracks every MPRIS player on the bus and reports one of them as
// current.
type Manager struct {
	conn      *dbus.Conn
	preferred string
	log       *log.Logger
	signals   chan *dbus.Signal
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	players  map[string]*Session // by well-known name
	owners   map[string]string   // unique name -> well-known name
	current  *Session
	subs     subscribers
	closed   bool
	closeErr error
}

var _ session.Manager = (*Manager)(nil)

func newManager(ctx context.Context, conn *dbus.Conn, preferred string) (*Manager, error) {
	m := &Manager{
		conn:      conn,
		preferred: preferred,
		log:       log.Named("mpris"),
		signals:   make(chan *dbus.Signal, 64),
		players:   make(map[string]*Session),
		owners:    make(map[string]string),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface("org.freedesktop.DBus"), dbus.WithMatchMember("NameOwnerChanged")},
		{dbus.WithMatchInterface(propsIface), dbus.WithMatchMember("PropertiesChanged"), dbus.WithMatchObjectPath(objectPath)},
		{dbus.WithMatchInterface(playerIface), dbus.WithMatchMember("Seeked"), dbus.WithMatchObjectPath(objectPath)},
	}
	for _, opts := range matches {
		if err := conn.AddMatchSignalContext(ctx, opts...); err != nil {
			m.cancel()
			return nil, fmt.Errorf("mpris: add match: %w", err)
		}
	}
	conn.Signal(m.signals)

	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.RemoveSignal(m.signals)
		m.cancel()
		return nil, fmt.Errorf("mpris: list names: %w", err)
	}
	for _, name := range names {
		if isPlayerName(name) {
			m.addPlayer(ctx, name, "")
		}
	}
	m.mu.Lock()
	m.current = m.pickLocked()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.dispatch()
	return m, nil
}

// addPlayer registers a player. owner is looked up when empty.
func (m *Manager) addPlayer(ctx context.Context, name, owner string) {
	if owner == "" {
		if err := m.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner); err != nil {
			m.log.Debugf("owner of %s: %v", name, err)
			return
		}
	}
	s := newSession(name, m.conn.Object(name, objectPath))
	if status, err := s.PlaybackInfo(); err == nil {
		s.setStatus(status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.players[name] = s
	m.owners[owner] = name
	m.log.Debugf("player %s (%s) appeared", s.ID(), owner)
}

func (m *Manager) removePlayer(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, name)
	for owner, n := range m.owners {
		if n == name {
			delete(m.owners, owner)
		}
	}
	m.log.Debugf("player %s vanished", appID(name))
}

func (m *Manager) pickLocked() *Session {
	cands := make([]candidate, 0, len(m.players))
	for name, s := range m.players {
		cands = append(cands, candidate{name: name, status: s.cachedStatus()})
	}
	name, ok := pickCurrent(cands, m.preferred)
	if !ok {
		return nil
	}
	return m.players[name]
}

// reselect recomputes the current player and notifies subscribers when it
// changed.
func (m *Manager) reselect() {
	m.mu.Lock()
	next := m.pickLocked()
	changed := next != m.current
	m.current = next
	m.mu.Unlock()
	if changed {
		m.subs.fire()
	}
}

func (m *Manager) dispatch() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case sig, ok := <-m.signals:
			if !ok {
				return
			}
			m.handle(sig)
		}
	}
}

func (m *Manager) handle(sig *dbus.Signal) {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		var name, oldOwner, newOwner string
		if err := dbus.Store(sig.Body, &name, &oldOwner, &newOwner); err != nil || !isPlayerName(name) {
			return
		}
		if oldOwner != "" {
			m.removePlayer(name)
		}
		if newOwner != "" {
			m.addPlayer(m.ctx, name, newOwner)
		}
		m.reselect()

	case propsIface + ".PropertiesChanged":
		var iface string
		var changed map[string]dbus.Variant
		var invalidated []string
		if err := dbus.Store(sig.Body, &iface, &changed, &invalidated); err != nil || iface != playerIface {
			return
		}
		s := m.sessionFor(sig.Sender)
		if s == nil {
			return
		}
		if _, ok := changed["Metadata"]; ok {
			s.mediaSubs.fire()
			s.timelineSubs.fire()
		}
		if v, ok := changed["PlaybackStatus"]; ok {
			status, _ := v.Value().(string)
			s.setStatus(parseStatus(status))
			m.reselect()
			s.playbackSubs.fire()
		}

	case playerIface + ".Seeked":
		if s := m.sessionFor(sig.Sender); s != nil {
			s.timelineSubs.fire()
		}
	}
}

func (m *Manager) sessionFor(sender string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[m.owners[sender]]
}

// CurrentSession returns the chosen player, or nil when none is running.
func (m *Manager) CurrentSession() session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current
}

func (m *Manager) OnCurrentSessionChanged(fn func()) func() { return m.subs.add(fn) }

// Players returns the bus names of every known player.
func (m *Manager) Players() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.players))
	for _, s := range m.players {
		ids = append(ids, s.ID())
	}
	return ids
}

// Close stops signal dispatch and closes the bus connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return m.closeErr
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.conn.RemoveSignal(m.signals)
	m.wg.Wait()
	err := m.conn.Close()

	m.mu.Lock()
	m.closeErr = err
	m.mu.Unlock()
	return err
}

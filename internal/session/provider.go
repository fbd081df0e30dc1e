// SPDX-License-Identifier: MIT
package session

import "context"

// MediaProperties is what a session reports about the current item.
type MediaProperties struct {
	Title     string
	Artist    string
	Thumbnail *Thumbnail
}

// Session is one media source, such as a player. Subscriptions return a
// function that detaches the callback. Callbacks may run on any goroutine.
type Session interface {
	// ID identifies the session; two values with the same ID are the
	// same session.
	ID() string
	AppID() (string, error)

	OnMediaPropertiesChanged(fn func()) (unsubscribe func())
	OnPlaybackInfoChanged(fn func()) (unsubscribe func())
	OnTimelineChanged(fn func()) (unsubscribe func())

	MediaProperties(ctx context.Context) (MediaProperties, error)
	PlaybackInfo() (PlaybackStatus, error)
	TimelineProperties() (Timeline, error)
}

// Manager tracks which session is current.
type Manager interface {
	// CurrentSession returns nil when nothing is playing.
	CurrentSession() Session
	OnCurrentSessionChanged(fn func()) (unsubscribe func())
}

// Connector acquires a Manager. Acquisition may fail transiently. The
// Connector owns every Manager it returns and is responsible for releasing
// it; the watcher never closes one.
type Connector interface {
	Connect(ctx context.Context) (Manager, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Manager, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Manager, error) { return f(ctx) }

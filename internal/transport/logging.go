// SPDX-License-Identifier: MIT
package transport

import (
	"nowplaying/internal/log"
)

// LoggingTransport writes a one-line summary of each message at debug
// level. It is the fallback when no network transport is configured.
type LoggingTransport struct {
	log *log.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{log: log.Named("transport")}
	lt.log.Infof("using logging transport")
	return lt
}

// Send logs a summary of msg. Frame messages are skipped unless debug
// logging is on, since they arrive dozens of times per second.
func (lt *LoggingTransport) Send(msg Message) error {
	if !log.Enabled(log.LevelDebug) {
		if _, ok := msg.(*SessionMessage); !ok {
			return nil
		}
	}
	switch m := msg.(type) {
	case *FrameMessage:
		lt.log.Debugf("spectrum: %d bars, peak %.2f", len(m.Left), peak(m.Left, m.Right))
	case *SessionMessage:
		if !m.Active {
			lt.log.Infof("session: none (%v)", m.Kinds)
			return nil
		}
		lt.log.Infof("session %d: %q by %q [%s] via %s", m.Revision, m.Title, m.Artist, m.Status, m.AppID)
	}
	return nil
}

func peak(channels ...[]float32) float32 {
	var p float32
	for _, ch := range channels {
		for _, v := range ch {
			p = max(p, v)
		}
	}
	return p
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error { return nil }

var _ Transport = (*LoggingTransport)(nil)

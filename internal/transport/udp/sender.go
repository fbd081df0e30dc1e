// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"nowplaying/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp: sender closed")

// Sender writes datagrams to one target.
type Sender struct {
	mu     sync.Mutex // protects conn during Close
	conn   *net.UDPConn
	log    *log.Logger
	failed bool // a send error has been logged since the last success
}

// NewSender dials targetAddress, e.g. "127.0.0.1:9090". No local port is
// bound explicitly.
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %q: %w", targetAddress, err)
	}

	s := &Sender{conn: conn, log: log.Named("udp")}
	s.log.Infof("sending to %s", conn.RemoteAddr())
	return s, nil
}

// Send transmits data as one datagram. Only the first of a run of failures
// is logged, so an absent listener does not flood the log.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		if !s.failed {
			s.log.Warnf("send: %v", err)
			s.failed = true
		}
		return fmt.Errorf("udp: send: %w", err)
	}
	s.failed = false
	return nil
}

// Close closes the underlying UDP connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("udp: close: %w", err)
	}
	return nil
}

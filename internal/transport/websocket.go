// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"nowplaying/internal/log"
)

const (
	writeWait   = 2 * time.Second
	pongWait    = 30 * time.Second
	pingPeriod  = pongWait * 9 / 10
	clientQueue = 32
)

// WebSocketTransport broadcasts messages as JSON text frames to every client
// connected on /ws. It also serves /healthz and, when a metrics handler is
// supplied, /metrics.
type WebSocketTransport struct {
	addr     string
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	log      *log.Logger

	mu          sync.Mutex
	clients     map[*wsClient]struct{}
	lastSession []byte
	server      *http.Server
	closed      bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewWebSocketTransport creates a transport that will listen on addr.
// metrics may be nil.
func NewWebSocketTransport(addr string, metrics http.Handler) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The panel and local tools connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:     http.NewServeMux(),
		log:     log.Named("websocket"),
		clients: make(map[*wsClient]struct{}),
	}
	wst.mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.mux.HandleFunc("/healthz", wst.handleHealth)
	if metrics != nil {
		wst.mux.Handle("/metrics", metrics)
	}
	return wst
}

// Handler exposes the routes for embedding or testing.
func (wst *WebSocketTransport) Handler() http.Handler { return wst.mux }

// ListenAndServe serves until ctx is done or Close is called.
func (wst *WebSocketTransport) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("websocket: listen %s: %w", wst.addr, err)
	}

	srv := &http.Server{Handler: wst.mux, ReadHeaderTimeout: 5 * time.Second}
	wst.mu.Lock()
	if wst.closed {
		wst.mu.Unlock()
		ln.Close()
		return nil
	}
	wst.server = srv
	wst.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	wst.log.Infof("listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket: serve: %w", err)
	}
	return nil
}

func (wst *WebSocketTransport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": wst.Clients(),
	})
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}

	wst.mu.Lock()
	if wst.closed {
		wst.mu.Unlock()
		conn.Close()
		return
	}
	wst.clients[c] = struct{}{}
	if wst.lastSession != nil {
		// New clients learn the current track without waiting for a change.
		c.send <- wst.lastSession
	}
	n := len(wst.clients)
	wst.mu.Unlock()
	wst.log.Debugf("client %s connected, total: %d", conn.RemoteAddr(), n)

	go wst.writePump(c)
	go wst.readPump(c)
}

// readPump discards client input and notices disconnects.
func (wst *WebSocketTransport) readPump(c *wsClient) {
	defer wst.remove(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (wst *WebSocketTransport) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				wst.log.Debugf("write to %s: %v", c.conn.RemoteAddr(), err)
				wst.remove(c)
				return
			}
			wst.sent.Add(1)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				wst.remove(c)
				return
			}
		}
	}
}

func (wst *WebSocketTransport) remove(c *wsClient) {
	wst.mu.Lock()
	_, ok := wst.clients[c]
	delete(wst.clients, c)
	n := len(wst.clients)
	wst.mu.Unlock()
	c.close()
	if ok {
		wst.log.Debugf("client %s disconnected, total: %d", c.conn.RemoteAddr(), n)
	}
}

// Send queues msg for every client. Clients whose queue is full miss the
// message.
func (wst *WebSocketTransport) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("websocket: encode %s: %w", msg.MessageType(), err)
	}

	wst.mu.Lock()
	defer wst.mu.Unlock()
	if wst.closed {
		return nil
	}
	if _, ok := msg.(*SessionMessage); ok {
		wst.lastSession = data
	}
	for c := range wst.clients {
		select {
		case c.send <- data:
		default:
			wst.dropped.Add(1)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.mu.Lock()
	defer wst.mu.Unlock()
	return len(wst.clients)
}

// Dropped counts messages skipped for slow clients.
func (wst *WebSocketTransport) Dropped() uint64 { return wst.dropped.Load() }

// Close disconnects every client and stops the server.
func (wst *WebSocketTransport) Close() error {
	wst.mu.Lock()
	if wst.closed {
		wst.mu.Unlock()
		return nil
	}
	wst.closed = true
	clients := wst.clients
	wst.clients = make(map[*wsClient]struct{})
	srv := wst.server
	wst.mu.Unlock()

	for c := range clients {
		c.close()
	}
	if srv != nil {
		return srv.Close()
	}
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)

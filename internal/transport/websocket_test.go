// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nowplaying/internal/session"
	"nowplaying/internal/spectrum"
)

func newTestServer(t *testing.T, metrics http.Handler) (*WebSocketTransport, *httptest.Server) {
	t.Helper()
	wst := NewWebSocketTransport("127.0.0.1:0", metrics)
	srv := httptest.NewServer(wst.Handler())
	t.Cleanup(func() {
		wst.Close()
		srv.Close()
	})
	return wst, srv
}

func dial(t *testing.T, wst *WebSocketTransport, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	before := wst.Clients()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() == before {
		if time.Now().After(deadline) {
			t.Fatal("client was never registered")
		}
		time.Sleep(time.Millisecond)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func testEvent() session.Event {
	title, artist, app := "Roygbiv", "Boards of Canada", "spotify"
	return session.Event{
		Kinds: session.MediaPropertiesChanged,
		Snapshot: &session.Snapshot{
			Revision:       3,
			AppID:          &app,
			Title:          &title,
			Artist:         &artist,
			PlaybackStatus: session.StatusPlaying,
			Timeline:       session.Timeline{End: 150 * time.Second, Position: 30 * time.Second},
		},
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, srv := newTestServer(t, nil)
	a := dial(t, wst, srv)
	b := dial(t, wst, srv)

	out := spectrum.Output{Left: spectrum.Frame{0.25, 1}, At: time.UnixMilli(1234)}
	if err := wst.Send(NewFrameMessage(out)); err != nil {
		t.Fatal(err)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		m := readJSON(t, conn)
		if m["type"] != "spectrum" || m["at"] != float64(1234) {
			t.Errorf("frame message = %v", m)
		}
		left, _ := m["left"].([]any)
		if len(left) != 2 || left[1] != float64(1) {
			t.Errorf("left = %v", m["left"])
		}
		if _, ok := m["right"]; ok {
			t.Error("mono frame should omit right")
		}
	}
}

func TestWebSocketReplaysLastSession(t *testing.T) {
	wst, srv := newTestServer(t, nil)
	if err := wst.Send(NewSessionMessage(testEvent())); err != nil {
		t.Fatal(err)
	}
	// Frames are not replayed.
	wst.Send(NewFrameMessage(spectrum.Output{Left: spectrum.Frame{0}}))

	conn := dial(t, wst, srv)
	m := readJSON(t, conn)
	if m["type"] != "session" || m["title"] != "Roygbiv" || m["status"] != "playing" {
		t.Errorf("replayed message = %v", m)
	}
}

func TestWebSocketDisconnect(t *testing.T) {
	wst, srv := newTestServer(t, nil)
	conn := dial(t, wst, srv)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not removed after disconnect")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocketCloseRejectsSends(t *testing.T) {
	wst, srv := newTestServer(t, nil)
	conn := dial(t, wst, srv)
	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if wst.Clients() != 0 {
		t.Errorf("Clients = %d after Close", wst.Clients())
	}
	if err := wst.Send(NewSessionMessage(session.Event{})); err != nil {
		t.Errorf("Send after Close = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after Close = %v, want normal closure", err)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "frames_total 1\n")
	})
	_, srv := newTestServer(t, metrics)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]any
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" || health["clients"] != float64(0) {
		t.Errorf("health = %v", health)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "frames_total 1\n" {
		t.Errorf("metrics body = %q", body)
	}
}

// Package testhelpers provides shared utilities for exercising the relay
// over a real WebSocket connection in integration tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsechat/relay/internal/server"
	"github.com/pulsechat/relay/internal/storage"
)

// TestOrigin matches the default allowed origin so upgrades succeed.
const TestOrigin = "http://localhost:8080"

// readWait bounds every read in a test so a missing event fails fast instead
// of hanging the suite.
const readWait = 3 * time.Second

// StartRelay boots a full relay (hub, routes, HTTP server) for one test and
// tears it down afterwards.
func StartRelay(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := server.DefaultConfig()
	store, err := storage.NewPhotoStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating photo store: %v", err)
	}

	hub := server.NewHub(nil)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(2 * time.Second) })

	ts := httptest.NewServer(server.SetupRoutes(hub, cfg, store))
	t.Cleanup(ts.Close)
	return ts
}

// Dial opens a WebSocket connection to the relay with an allowed origin.
func Dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{TestOrigin}}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes one protocol frame.
func SendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling %s payload: %v", event, err)
	}
	frame, err := json.Marshal(server.Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshaling %s envelope: %v", event, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("sending %s: %v", event, err)
	}
}

// ReadEvent reads the next protocol frame, failing the test on timeout.
func ReadEvent(t *testing.T, conn *websocket.Conn) server.Envelope {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	env, err := server.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decoding frame %q: %v", raw, err)
	}
	return env
}

// WaitForEvent reads frames until one with the wanted event name arrives,
// skipping interleaved presence and membership traffic.
func WaitForEvent(t *testing.T, conn *websocket.Conn, event string) server.Envelope {
	t.Helper()

	for i := 0; i < 20; i++ {
		env := ReadEvent(t, conn)
		if env.Event == event {
			return env
		}
	}
	t.Fatalf("no %s event arrived", event)
	return server.Envelope{}
}

// AssertSilence verifies no frame arrives within the window. Used to prove a
// sender is excluded from its own fan-out.
func AssertSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected silence, got frame %q", raw)
	}
}

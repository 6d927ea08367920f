package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flexinfer/agentmon/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&discardWriter{}, nil))
}

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newEventServer returns a test server that upgrades the connection and
// writes each queued envelope, then holds the connection open.
func newEventServer(t *testing.T, envelopes []types.Envelope) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		for _, env := range envelopes {
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSSourceDispatch(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{"agent_id": "a"})
	server := newEventServer(t, []types.Envelope{
		{Event: types.EventAgentStatus, Data: payload},
		{Event: types.EventActionStart, Data: payload},
	})
	defer server.Close()

	src := NewWSSource(&WSConfig{
		URL:            wsURL(server),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         testLogger(),
	})

	var mu sync.Mutex
	received := make(map[string]int)
	done := make(chan struct{})
	for _, event := range []string{types.EventAgentStatus, types.EventActionStart} {
		event := event
		src.On(event, func(data json.RawMessage) {
			mu.Lock()
			received[event]++
			if received[types.EventAgentStatus] > 0 && received[types.EventActionStart] > 0 {
				select {
				case <-done:
				default:
					close(done)
				}
			}
			mu.Unlock()
		})
	}

	src.Start()
	defer src.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers did not receive both events")
	}

	mu.Lock()
	defer mu.Unlock()
	if received[types.EventAgentStatus] != 1 {
		t.Errorf("expected 1 status event, got %d", received[types.EventAgentStatus])
	}
}

func TestWSSourceConnectedFlag(t *testing.T) {
	server := newEventServer(t, nil)
	defer server.Close()

	connected := make(chan struct{})
	src := NewWSSource(&WSConfig{
		URL:            wsURL(server),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         testLogger(),
	})
	src.On(types.EventConnect, func(json.RawMessage) {
		close(connected)
	})

	if src.Connected() {
		t.Error("source should not report connected before Start")
	}

	src.Start()
	defer src.Close()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("source never connected")
	}

	if !src.Connected() {
		t.Error("source should report connected")
	}
}

func TestWSSourceEmitsDisconnect(t *testing.T) {
	// A server that drops the connection right after the upgrade.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	disconnected := make(chan struct{})
	var once sync.Once
	src := NewWSSource(&WSConfig{
		URL:               wsURL(server),
		ReconnectAttempts: 1,
		ReconnectDelay:    10 * time.Millisecond,
		Logger:            testLogger(),
	})
	src.On(types.EventDisconnect, func(json.RawMessage) {
		once.Do(func() { close(disconnected) })
	})

	src.Start()
	defer src.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect event never fired")
	}

	if src.Connected() {
		t.Error("source should report disconnected after drop")
	}
}

func TestWSSourceGivesUpAfterAttemptCap(t *testing.T) {
	// Nothing is listening on this address.
	src := NewWSSource(&WSConfig{
		URL:               "ws://127.0.0.1:1/ws",
		ReconnectAttempts: 2,
		ReconnectDelay:    5 * time.Millisecond,
		Logger:            testLogger(),
	})

	src.Start()

	select {
	case <-src.done:
		// Loop exited after exhausting its attempts.
	case <-time.After(2 * time.Second):
		t.Fatal("source did not give up after the attempt cap")
	}

	if src.Connected() {
		t.Error("source should report disconnected")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestWSSourceCloseBeforeStart(t *testing.T) {
	src := NewWSSource(&WSConfig{URL: "ws://127.0.0.1:1/ws", Logger: testLogger()})
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestWSSourceCloseStopsRetries(t *testing.T) {
	src := NewWSSource(&WSConfig{
		URL:               "ws://127.0.0.1:1/ws",
		ReconnectAttempts: 1000,
		ReconnectDelay:    10 * time.Millisecond,
		Logger:            testLogger(),
	})
	src.Start()

	closedIn := make(chan struct{})
	go func() {
		src.Close()
		close(closedIn)
	}()

	select {
	case <-closedIn:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the retry loop")
	}
}

func TestWSSourceCloseInterruptsDial(t *testing.T) {
	// A listener that accepts the TCP connection but never answers the
	// handshake keeps Dial blocked until its timeout.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	src := NewWSSource(&WSConfig{
		URL:            "ws://" + ln.Addr().String(),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         testLogger(),
	})
	src.Start()
	time.Sleep(50 * time.Millisecond)

	closedIn := make(chan struct{})
	go func() {
		src.Close()
		close(closedIn)
	}()

	select {
	case <-closedIn:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the in-flight dial")
	}
}

func TestWSSourceDropsUnframedMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"no_event_field":true}`))
		env, _ := json.Marshal(types.Envelope{
			Event: types.EventAgentStatus,
			Data:  json.RawMessage(`{"agent_id":"a"}`),
		})
		conn.WriteMessage(websocket.TextMessage, env)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	got := make(chan struct{})
	src := NewWSSource(&WSConfig{
		URL:            wsURL(server),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         testLogger(),
	})
	src.On(types.EventAgentStatus, func(data json.RawMessage) {
		close(got)
	})

	src.Start()
	defer src.Close()

	select {
	case <-got:
		// The framed event made it through; the junk before it was dropped
		// without killing the read loop.
	case <-time.After(2 * time.Second):
		t.Fatal("framed event never arrived")
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type handshake struct {
	path  string
	auth  string
	token string
}

// newWSServer upgrades every request and hands the connection to fn.
func newWSServer(t *testing.T, fn func(r *http.Request, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(r, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// drainUntilClosed blocks until the peer goes away.
func drainUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestNewSocket(t *testing.T) {
	s := NewSocket(Config{BaseURL: "https://hub.example.com/api"})
	if s.URL() != "wss://hub.example.com/ws" {
		t.Errorf("URL() = %q", s.URL())
	}
	if s.reconnectWait != ReconnectInterval {
		t.Errorf("reconnectWait = %v, want %v", s.reconnectWait, ReconnectInterval)
	}
	if s.dialer != websocket.DefaultDialer {
		t.Error("expected default dialer")
	}
	if s.Done() != nil {
		t.Error("Done() should be nil before Start")
	}
}

func TestSocket_Backoff(t *testing.T) {
	s := NewSocket(Config{BaseURL: "http://localhost:5000"})

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{9, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := s.backoff(tt.attempts); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestSocket_HandshakeAndInboundEvents(t *testing.T) {
	shakes := make(chan handshake, 1)
	srv := newWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		shakes <- handshake{
			path:  r.URL.Path,
			auth:  r.Header.Get("Authorization"),
			token: r.URL.Query().Get("token"),
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"id":"skipped"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"message","data":{"id":"m1"}}`))
		drainUntilClosed(conn)
	})

	events := make(chan Event, 4)
	s := NewSocket(Config{
		BaseURL:     srv.URL + "/api",
		TokenSource: func() string { return "jwt-token" },
		Handler: func(_ context.Context, ev Event) {
			events <- ev
		},
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, s.Connected(), "connection")

	hs := waitFor[handshake](t, shakes, "handshake")
	if hs.path != "/ws" {
		t.Errorf("path = %q, want /ws", hs.path)
	}
	if hs.auth != "Bearer jwt-token" {
		t.Errorf("Authorization = %q", hs.auth)
	}
	if hs.token != "jwt-token" {
		t.Errorf("token query = %q", hs.token)
	}

	ev := waitFor[Event](t, events, "event")
	if ev.Name != "message" {
		t.Errorf("event = %q, want message", ev.Name)
	}
	if string(ev.Data) != `{"id":"m1"}` {
		t.Errorf("data = %s", ev.Data)
	}
}

func TestSocket_NoTokenNoCredentials(t *testing.T) {
	shakes := make(chan handshake, 1)
	srv := newWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		shakes <- handshake{auth: r.Header.Get("Authorization"), token: r.URL.RawQuery}
		drainUntilClosed(conn)
	})

	s := NewSocket(Config{BaseURL: srv.URL, TokenSource: func() string { return "" }})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	hs := waitFor[handshake](t, shakes, "handshake")
	if hs.auth != "" || hs.token != "" {
		t.Errorf("unexpected credentials: %+v", hs)
	}
}

func TestSocket_Emit(t *testing.T) {
	srv := newWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		for {
			var in Event
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			_ = conn.WriteJSON(Event{Name: "ack:" + in.Name, Data: in.Data})
		}
	})

	events := make(chan Event, 1)
	s := NewSocket(Config{
		BaseURL: srv.URL,
		Handler: func(_ context.Context, ev Event) { events <- ev },
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	waitFor(t, s.Connected(), "connection")

	if err := s.Emit(context.Background(), "send_message", map[string]string{"text": "hi"}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	ev := waitFor[Event](t, events, "ack")
	if ev.Name != "ack:send_message" {
		t.Errorf("event = %q", ev.Name)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload["text"] != "hi" {
		t.Errorf("payload = %s (%v)", ev.Data, err)
	}
}

func TestSocket_EmitNotConnected(t *testing.T) {
	s := NewSocket(Config{BaseURL: "http://localhost:5000"})

	if err := s.Emit(context.Background(), "typing", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Emit(ctx, "typing", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Emit() error = %v, want context.Canceled", err)
	}
}

func TestSocket_Reconnects(t *testing.T) {
	var conns atomic.Int32
	srv := newWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			return
		}
		drainUntilClosed(conn)
	})

	s := NewSocket(Config{BaseURL: srv.URL})
	s.reconnectWait = 5 * time.Millisecond

	reconnects := make(chan struct{}, 4)
	s.OnReconnect(func(context.Context) {
		reconnects <- struct{}{}
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	waitFor[struct{}](t, reconnects, "first connect")
	waitFor[struct{}](t, reconnects, "reconnect")

	if s.LastError() == nil {
		t.Error("LastError() should record the dropped connection")
	}
}

func TestSocket_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSocket(Config{BaseURL: srv.URL})
	s.reconnectWait = time.Millisecond
	s.maxReconnectWait = 2 * time.Millisecond

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	waitFor(t, s.Done(), "loop exit")

	if got := hits.Load(); got != MaxReconnectAttempts {
		t.Errorf("dial attempts = %d, want %d", got, MaxReconnectAttempts)
	}
	if err := s.LastError(); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("LastError() = %v, want handshake status 401", err)
	}
	select {
	case <-s.Connected():
		t.Error("Connected() closed without a connection")
	default:
	}
}

func TestSocket_StartTwice(t *testing.T) {
	srv := newWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		drainUntilClosed(conn)
	})

	s := NewSocket(Config{BaseURL: srv.URL})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestSocket_StopIdempotent(t *testing.T) {
	s := NewSocket(Config{BaseURL: "http://127.0.0.1:1"})
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() before Start error = %v", err)
	}

	s.reconnectWait = time.Hour
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	stopped := make(chan struct{})
	go func() {
		_ = s.Stop()
		_ = s.Stop()
		close(stopped)
	}()
	waitFor[struct{}](t, stopped, "Stop")
}

func TestSocket_StopClosesLiveConnection(t *testing.T) {
	serverDone := make(chan struct{})
	srv := newWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		drainUntilClosed(conn)
		close(serverDone)
	})

	s := NewSocket(Config{BaseURL: srv.URL})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, s.Connected(), "connection")

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitFor[struct{}](t, serverDone, "server to observe close")

	if err := s.Emit(context.Background(), "typing", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit() after Stop error = %v, want ErrNotConnected", err)
	}
}

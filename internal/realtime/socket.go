package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smartcoophub/client-go/internal/api"
)

const (
	SocketPath           = "/ws"
	ReconnectInterval    = time.Second
	MaxReconnectInterval = 30 * time.Second
	MaxReconnectAttempts = 10

	writeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by Emit when no connection is live.
var ErrNotConnected = errors.New("realtime: not connected")

// Event is one frame on the socket.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Handler receives inbound events on the socket's reader goroutine.
type Handler func(ctx context.Context, ev Event)

// Config configures a Socket.
type Config struct {
	// BaseURL is the REST base URL; the socket origin is derived from it.
	BaseURL string
	// TokenSource returns the bearer token sent on each handshake.
	TokenSource func() string
	Handler     Handler
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	Logger *zap.Logger
}

// Socket is a self-reconnecting websocket client.
type Socket struct {
	url         string
	tokenSource func() string
	handler     Handler
	dialer      *websocket.Dialer
	logger      *zap.Logger

	reconnectWait    time.Duration
	maxReconnectWait time.Duration

	mu            sync.RWMutex
	conn          *websocket.Conn
	cancel        context.CancelFunc
	done          chan struct{}
	started       bool
	attempts      int
	lastError     error
	onReconnect   func(ctx context.Context)
	connected     chan struct{}
	connectedOnce sync.Once

	writeMu sync.Mutex
}

// NewSocket creates a socket. It does not dial until Start.
func NewSocket(cfg Config) *Socket {
	s := &Socket{
		url:              api.SocketOrigin(cfg.BaseURL) + SocketPath,
		tokenSource:      cfg.TokenSource,
		handler:          cfg.Handler,
		dialer:           cfg.Dialer,
		logger:           cfg.Logger,
		reconnectWait:    ReconnectInterval,
		maxReconnectWait: MaxReconnectInterval,
		connected:        make(chan struct{}),
	}
	if s.dialer == nil {
		s.dialer = websocket.DefaultDialer
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// URL returns the socket endpoint without credentials.
func (s *Socket) URL() string {
	return s.url
}

// Connected returns a channel that's closed when the first connection is established.
func (s *Socket) Connected() <-chan struct{} {
	return s.connected
}

// Done returns a channel that's closed when the connect loop exits, either
// after Stop or after giving up. It is nil before Start.
func (s *Socket) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// LastError returns the last connection error, if any.
func (s *Socket) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// OnReconnect sets a callback invoked after each successful connection,
// including the first.
func (s *Socket) OnReconnect(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

// Start launches the connect loop in the background.
func (s *Socket) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("realtime: socket already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.attempts = 0

	go s.connectLoop(ctx, s.done)
	return nil
}

// Stop closes the connection and waits for the connect loop to exit.
// Calling Stop more than once, or before Start, is a no-op.
func (s *Socket) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	conn, done := s.conn, s.done
	s.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	}
	<-done
	return nil
}

// Emit writes one event frame on the live connection.
func (s *Socket) Emit(ctx context.Context, event string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame := Event{Name: event}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event, err)
		}
		frame.Data = payload
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (s *Socket) connectLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connect(ctx)
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.attempts++
		attempts := s.attempts
		s.mu.Unlock()

		if attempts >= MaxReconnectAttempts {
			s.logger.Warn("realtime socket giving up",
				zap.String("url", s.url),
				zap.Int("attempts", attempts),
				zap.Error(err))
			return
		}

		wait := s.backoff(attempts)
		s.logger.Debug("realtime socket reconnecting",
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Socket) backoff(attempts int) time.Duration {
	wait := s.reconnectWait
	for i := 1; i < attempts && wait < s.maxReconnectWait; i++ {
		wait *= 2
	}
	if wait > s.maxReconnectWait {
		wait = s.maxReconnectWait
	}
	return wait
}

// connect dials once and reads until the connection drops. It always
// returns a non-nil error describing why the connection ended.
func (s *Socket) connect(ctx context.Context) error {
	target := s.url
	header := http.Header{}
	if s.tokenSource != nil {
		if token := s.tokenSource(); token != "" {
			header.Set("Authorization", "Bearer "+token)
			target += "?" + url.Values{"token": {token}}.Encode()
		}
	}

	conn, resp, err := s.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial %s: %w (status %d)", s.url, err, resp.StatusCode)
		}
		s.setError(err)
		return err
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return ctx.Err()
	}
	s.conn = conn
	s.attempts = 0
	onReconnect := s.onReconnect
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	s.connectedOnce.Do(func() {
		close(s.connected)
	})
	s.logger.Info("realtime socket connected", zap.String("url", s.url))

	if onReconnect != nil {
		onReconnect(ctx)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.setError(err)
			}
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
			continue
		}
		if s.handler != nil {
			s.handler(ctx, ev)
		}
	}
}

func (s *Socket) setError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

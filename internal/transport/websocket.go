package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flexinfer/agentmon/internal/metrics"
	"github.com/flexinfer/agentmon/pkg/types"
)

const (
	// DefaultReconnectAttempts bounds consecutive failed dials before the
	// source gives up.
	DefaultReconnectAttempts = 5

	// DefaultReconnectDelay is the fixed delay between dial attempts.
	DefaultReconnectDelay = 2 * time.Second
)

// WSConfig holds WebSocket source configuration.
type WSConfig struct {
	// URL is the ws:// or wss:// endpoint of the event stream.
	URL string

	// ReconnectAttempts caps consecutive failed dials (0 uses the default).
	ReconnectAttempts int

	// ReconnectDelay is the fixed delay between attempts (0 uses the default).
	ReconnectDelay time.Duration

	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// WSSource dials a fixed endpoint and delivers every framed event to the
// registered handlers. A dropped connection is redialed after the fixed
// delay, up to the attempt cap; a successful connect resets the counter.
type WSSource struct {
	dispatcher

	url      string
	attempts int
	delay    time.Duration
	dialer   *websocket.Dialer
	logger   *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	started   bool

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}

	// dialCtx is cancelled by Close so an in-flight handshake does not
	// hold Close for its full timeout.
	dialCtx    context.Context
	dialCancel context.CancelFunc
}

// NewWSSource creates a WebSocket source for the given configuration.
func NewWSSource(cfg *WSConfig) *WSSource {
	if cfg == nil {
		cfg = &WSConfig{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempts := cfg.ReconnectAttempts
	if attempts <= 0 {
		attempts = DefaultReconnectAttempts
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	dialCtx, dialCancel := context.WithCancel(context.Background())

	return &WSSource{
		url:        cfg.URL,
		attempts:   attempts,
		delay:      delay,
		dialer:     dialer,
		logger:     logger,
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
		dialCtx:    dialCtx,
		dialCancel: dialCancel,
	}
}

// Start begins the connect/read loop in the background. It does not wait
// for the first connection; handlers simply receive events once one exists.
func (s *WSSource) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Connected reports whether the source currently holds a live connection.
func (s *WSSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close disconnects and stops the reconnect loop. It blocks until the
// background goroutine has exited.
func (s *WSSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.dialCancel()
	})

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	started := s.started
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if started {
		<-s.done
	}
	return nil
}

func (s *WSSource) run() {
	defer close(s.done)

	failures := 0
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		conn, _, err := s.dialer.DialContext(s.dialCtx, s.url, nil)
		if err != nil {
			failures++
			metrics.ReconnectsTotal.Inc()
			if failures > s.attempts {
				s.logger.Error("giving up after repeated dial failures",
					slog.String("url", s.url),
					slog.Int("attempts", failures-1),
				)
				return
			}
			s.logger.Warn("dial failed, retrying",
				slog.String("url", s.url),
				slog.Int("attempt", failures),
				slog.String("error", err.Error()),
			)
			select {
			case <-s.closed:
				return
			case <-time.After(s.delay):
			}
			continue
		}

		select {
		case <-s.closed:
			conn.Close()
			return
		default:
		}

		failures = 0
		s.setConn(conn, true)
		s.logger.Info("connected", slog.String("url", s.url))
		s.emit(types.EventConnect, nil)

		s.readLoop(conn)

		s.setConn(nil, false)
		s.emit(types.EventDisconnect, nil)
		conn.Close()

		select {
		case <-s.closed:
			return
		case <-time.After(s.delay):
		}
	}
}

func (s *WSSource) setConn(conn *websocket.Conn, connected bool) {
	s.mu.Lock()
	s.conn = conn
	s.connected = connected
	s.mu.Unlock()

	if connected {
		metrics.SourceConnected.Set(1)
	} else {
		metrics.SourceConnected.Set(0)
	}
}

func (s *WSSource) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("read error", slog.String("error", err.Error()))
				}
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			s.logger.Debug("dropping unframed message")
			continue
		}
		s.emit(env.Event, env.Data)
	}
}

var _ Source = (*WSSource)(nil)

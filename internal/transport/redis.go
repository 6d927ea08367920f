package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/flexinfer/agentmon/internal/metrics"
	"github.com/flexinfer/agentmon/pkg/types"
)

// DefaultRedisChannels are the pub/sub channels subscribed to when none are
// configured.
var DefaultRedisChannels = []string{"agent:events"}

// RedisConfig holds Redis source configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Channels are the pub/sub channels carrying event envelopes.
	Channels []string

	Logger *slog.Logger
}

// RedisSource subscribes to pub/sub channels carrying the same event
// envelopes as the WebSocket stream. Reconnection is handled by go-redis
// internally; the connected flag tracks subscription health.
type RedisSource struct {
	dispatcher

	rdb      *redis.Client
	channels []string
	logger   *slog.Logger

	mu        sync.Mutex
	connected bool
	started   bool

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// NewRedisSource creates a Redis pub/sub source.
func NewRedisSource(cfg *RedisConfig) *RedisSource {
	if cfg == nil {
		cfg = &RedisConfig{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	channels := cfg.Channels
	if len(channels) == 0 {
		channels = DefaultRedisChannels
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisSource{
		rdb:      rdb,
		channels: channels,
		logger:   logger,
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the subscribe loop in the background.
func (s *RedisSource) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Connected reports whether the subscription is established.
func (s *RedisSource) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close stops the subscribe loop and closes the Redis client.
func (s *RedisSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	err := s.rdb.Close()
	if started {
		<-s.done
	}
	return err
}

func (s *RedisSource) run() {
	defer close(s.done)

	ctx := context.Background()
	pubsub := s.rdb.Subscribe(ctx, s.channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		s.logger.Error("failed to subscribe to Redis", slog.String("error", err.Error()))
		return
	}

	s.setConnected(true)
	s.logger.Info("subscribed to Redis channels", slog.Any("channels", s.channels))
	s.emit(types.EventConnect, nil)

	defer func() {
		s.setConnected(false)
		s.emit(types.EventDisconnect, nil)
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				s.logger.Warn("Redis channel closed")
				return
			}

			var env types.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Event == "" {
				s.logger.Debug("dropping unframed message", slog.String("channel", msg.Channel))
				continue
			}
			s.emit(env.Event, env.Data)

		case <-s.closed:
			return
		}
	}
}

func (s *RedisSource) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()

	if connected {
		metrics.SourceConnected.Set(1)
	} else {
		metrics.SourceConnected.Set(0)
	}
}

var _ Source = (*RedisSource)(nil)

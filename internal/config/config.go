// Package config provides configuration loading for the agentmon daemon.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the agentmon daemon.
type Config struct {
	// Event source
	Source            string // "websocket" or "redis"
	WSURL             string
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// Redis source
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannels []string

	// State
	FeedCap int

	// Debug/metrics HTTP server
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Source
		Source:            getEnv("AGENTMON_SOURCE", "websocket"),
		WSURL:             getEnv("AGENTMON_WS_URL", "ws://localhost:8080/ws/agents"),
		ReconnectAttempts: getInt("RECONNECT_ATTEMPTS", 5),
		ReconnectDelay:    getDuration("RECONNECT_DELAY", 2*time.Second),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisChannels: getStringSlice("REDIS_CHANNELS", []string{"agent:events"}),

		// State
		FeedCap: getInt("FEED_CAP", 20),

		// Server
		Port:          getEnv("PORT", "9090"),
		ReadTimeout:   getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownGrace: getDuration("SHUTDOWN_GRACE", 10*time.Second),

		// Tracing
		TracingEnabled: getBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		return strings.Split(val, ",")
	}
	return defaultVal
}

// Command agentmon ingests the console backend's agent-execution event
// stream and serves the reconstructed state over a read-only debug API,
// alongside Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flexinfer/agentmon/internal/config"
	"github.com/flexinfer/agentmon/internal/middleware"
	"github.com/flexinfer/agentmon/internal/tracing"
	"github.com/flexinfer/agentmon/internal/tracker"
	"github.com/flexinfer/agentmon/internal/transport"
)

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newSource(cfg *config.Config, logger *slog.Logger) transport.Source {
	if cfg.Source == "redis" {
		return transport.NewRedisSource(&transport.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channels: cfg.RedisChannels,
			Logger:   logger,
		})
	}
	return transport.NewWSSource(&transport.WSConfig{
		URL:               cfg.WSURL,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		Logger:            logger,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newRouter(trk *tracker.Tracker, tracingEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Tracing(tracingEnabled))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		if !trk.IsConnected() {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    status,
			"connected": trk.IsConnected(),
			"running":   trk.RunningCount(),
		})
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/state/runs", func(w http.ResponseWriter, r *http.Request) {
		runs := trk.RunningAgents()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count": len(runs),
			"runs":  runs,
		})
	}).Methods("GET")

	r.HandleFunc("/state/agents/{agent_id}/run", func(w http.ResponseWriter, r *http.Request) {
		agentID := mux.Vars(r)["agent_id"]
		run, ok := trk.GetRunningAgent(agentID)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent has no run in flight"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	}).Methods("GET")

	r.HandleFunc("/state/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, trk.RecentEvents())
	}).Methods("GET")

	r.HandleFunc("/state/executions/{execution_id}/actions", func(w http.ResponseWriter, r *http.Request) {
		executionID := mux.Vars(r)["execution_id"]
		writeJSON(w, http.StatusOK, trk.GetActionStates(executionID))
	}).Methods("GET")

	r.HandleFunc("/state/executions/{execution_id}/actions", func(w http.ResponseWriter, r *http.Request) {
		trk.ClearActionStates(mux.Vars(r)["execution_id"])
		w.WriteHeader(http.StatusNoContent)
	}).Methods("DELETE")

	r.HandleFunc("/state/executions/{execution_id}/output", func(w http.ResponseWriter, r *http.Request) {
		executionID := mux.Vars(r)["execution_id"]
		writeJSON(w, http.StatusOK, trk.GetAgentOutput(executionID))
	}).Methods("GET")

	r.HandleFunc("/state/executions/{execution_id}/output", func(w http.ResponseWriter, r *http.Request) {
		trk.ClearAgentOutput(mux.Vars(r)["execution_id"])
		w.WriteHeader(http.StatusNoContent)
	}).Methods("DELETE")

	r.HandleFunc("/state/actions/{action_id}/chunks", func(w http.ResponseWriter, r *http.Request) {
		actionID := mux.Vars(r)["action_id"]
		writeJSON(w, http.StatusOK, trk.GetStreamingChunks(actionID))
	}).Methods("GET")

	r.HandleFunc("/state/actions/{action_id}/chunks", func(w http.ResponseWriter, r *http.Request) {
		trk.ClearStreamingChunks(mux.Vars(r)["action_id"])
		w.WriteHeader(http.StatusNoContent)
	}).Methods("DELETE")

	return r
}

func main() {
	cfg := config.Load()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	tracingProvider, err := tracing.Init(context.Background(), &tracing.Config{
		ServiceName:    "agentmon",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     1.0,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", slog.String("error", err.Error()))
		// Continue without tracing
	}

	trk, err := tracker.New(&tracker.Config{
		FeedCap: cfg.FeedCap,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create tracker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	src := newSource(cfg, logger)
	trk.Bind(src)
	src.Start()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(trk, cfg.TracingEnabled),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("agentmon starting",
			slog.String("port", cfg.Port),
			slog.String("source", cfg.Source),
			slog.String("ws_url", cfg.WSURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := src.Close(); err != nil {
		logger.Error("source close error", slog.String("error", err.Error()))
	}

	if tracingProvider != nil {
		if err := tracingProvider.Shutdown(ctx); err != nil {
			logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("stopped")
}

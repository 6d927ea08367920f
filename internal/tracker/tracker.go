// Package tracker reconstructs per-agent, per-execution, per-action state
// from the live event stream. It owns the run registry, the action state
// table, the output buffers, and the recent event feed; consumers reach
// them only through the read accessors and clear operations here.
//
// Every state-mutation path suppresses its own failures: the transport is
// untrusted, events are best-effort telemetry, and a payload that cannot be
// applied is dropped (and counted) rather than raised. A RUNNING run or
// action stays RUNNING indefinitely if the server never sends a terminal
// event; no client-side staleness timeout is applied.
package tracker

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/flexinfer/agentmon/internal/actions"
	"github.com/flexinfer/agentmon/internal/feed"
	"github.com/flexinfer/agentmon/internal/metrics"
	"github.com/flexinfer/agentmon/internal/registry"
	"github.com/flexinfer/agentmon/internal/streambuf"
	"github.com/flexinfer/agentmon/internal/transport"
	"github.com/flexinfer/agentmon/internal/validator"
	"github.com/flexinfer/agentmon/pkg/types"
)

// Drop reasons recorded in metrics.
const (
	dropInvalidPayload = "invalid_payload"
	dropUnknownSlot    = "unknown_slot"
	dropUnknownAgent   = "unknown_agent"
)

// Config holds Tracker configuration.
type Config struct {
	// FeedCap bounds the recent event feed (0 uses the feed default).
	FeedCap int

	Logger *slog.Logger
}

// Tracker is the live state model. Create one with New, attach it to a
// transport with Bind, and read the reconstructed state through the
// accessors.
type Tracker struct {
	logger *slog.Logger

	registry *registry.Registry
	table    *actions.Table
	bufs     *streambuf.Buffers
	feed     *feed.Feed
	valid    *validator.Validator

	src transport.Source
}

// New creates a Tracker with empty state.
func New(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	valid, err := validator.New()
	if err != nil {
		return nil, err
	}

	return &Tracker{
		logger:   logger,
		registry: registry.New(),
		table:    actions.New(),
		bufs:     streambuf.New(),
		feed:     feed.New(cfg.FeedCap),
		valid:    valid,
	}, nil
}

// Bind registers the tracker's handlers on a source. Handlers are
// registered once; the source delivers events whenever it is connected.
func (t *Tracker) Bind(src transport.Source) {
	t.src = src
	for _, event := range []string{
		types.EventAgentStatus,
		types.EventActionStart,
		types.EventActionOutput,
		types.EventActionComplete,
		types.EventActionError,
		types.EventAgentOutput,
	} {
		event := event
		src.On(event, func(data json.RawMessage) {
			t.Handle(event, data)
		})
	}
}

// Handle applies one named event to the state model. Unknown events and
// payloads failing validation are dropped silently.
func (t *Tracker) Handle(event string, data json.RawMessage) {
	metrics.EventsReceivedTotal.WithLabelValues(event).Inc()

	if err := t.valid.Validate(event, data); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(dropInvalidPayload).Inc()
		t.logger.Debug("dropping invalid payload",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	switch event {
	case types.EventAgentStatus:
		t.handleStatus(data)
	case types.EventActionStart:
		t.handleActionStart(data)
	case types.EventActionOutput:
		t.handleActionOutput(data)
	case types.EventActionComplete:
		t.handleActionComplete(data)
	case types.EventActionError:
		t.handleActionError(data)
	case types.EventAgentOutput:
		t.handleLegacyOutput(data)
	}
}

func (t *Tracker) handleStatus(data json.RawMessage) {
	var p types.StatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(dropInvalidPayload).Inc()
		return
	}

	t.registry.UpsertFromStatus(&p)
	t.feed.Record(&p)
	metrics.TrackedRuns.Set(float64(t.registry.Len()))
}

func (t *Tracker) handleActionStart(data json.RawMessage) {
	var p types.ActionStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(dropInvalidPayload).Inc()
		return
	}

	t.table.StartAction(&p)
	if !t.registry.BumpProgress(p.AgentID, p.ActionIndex, p.TotalActions) {
		// No run record for this agent yet; the sequence still tracks the
		// action, only the progress counters are lost.
		metrics.EventsDroppedTotal.WithLabelValues(dropUnknownAgent).Inc()
	}
	metrics.TrackedExecutions.Set(float64(t.table.Len()))
}

func (t *Tracker) handleActionOutput(data json.RawMessage) {
	var p types.ActionOutputPayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(dropInvalidPayload).Inc()
		return
	}

	if !t.table.AppendOutput(p.ExecutionID, p.ActionIndex, p.Chunk) {
		metrics.EventsDroppedTotal.WithLabelValues(dropUnknownSlot).Inc()
	}

	// The raw chunk buffer is independent of the action table: the chunk is
	// recorded even when no slot exists for it.
	ts := time.Now().UTC()
	if p.Timestamp != nil {
		ts = *p.Timestamp
	}
	t.bufs.Append(p.ActionID, p.Chunk, ts)
}

func (t *Tracker) handleActionComplete(data json.RawMessage) {
	var p types.ActionCompletePayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(dropInvalidPayload).Inc()
		return
	}

	if !t.table.CompleteAction(&p) {
		metrics.EventsDroppedTotal.WithLabelValues(dropUnknownSlot).Inc()
	}
}

func (t *Tracker) handleActionError(data json.RawMessage) {
	var p types.ActionErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(dropInvalidPayload).Inc()
		return
	}

	if !t.table.FailAction(&p) {
		metrics.EventsDroppedTotal.WithLabelValues(dropUnknownSlot).Inc()
	}
}

func (t *Tracker) handleLegacyOutput(data json.RawMessage) {
	var p types.LegacyOutputPayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(dropInvalidPayload).Inc()
		return
	}

	t.bufs.AppendLegacy(p.ExecutionID, p.ActionIndex, p.Output)
}

// IsConnected reports whether the bound source holds a live connection.
func (t *Tracker) IsConnected() bool {
	if t.src == nil {
		return false
	}
	return t.src.Connected()
}

// RunningAgents returns all agents with a run in flight.
func (t *Tracker) RunningAgents() []types.AgentRun {
	return t.registry.Running()
}

// RunningCount returns the number of agents with a run in flight.
func (t *Tracker) RunningCount() int {
	return t.registry.Len()
}

// GetRunningAgent returns the current run for an agent, if any.
func (t *Tracker) GetRunningAgent(agentID string) (types.AgentRun, bool) {
	return t.registry.Get(agentID)
}

// RecentEvents returns the recent status feed, newest first.
func (t *Tracker) RecentEvents() []types.FeedEntry {
	return t.feed.Recent()
}

// GetActionStates returns the ordered action sequence for an execution,
// empty if the execution is unknown.
func (t *Tracker) GetActionStates(executionID string) []types.ActionRecord {
	return t.table.Get(executionID)
}

// GetStreamingChunks returns the raw chunk buffer for an action.
func (t *Tracker) GetStreamingChunks(actionID string) []types.OutputChunk {
	return t.bufs.Chunks(actionID)
}

// GetAgentOutput returns the legacy flat output log for an execution.
func (t *Tracker) GetAgentOutput(executionID string) []types.LegacyOutputLine {
	return t.bufs.Legacy(executionID)
}

// ClearActionStates drops the reconstructed sequence for an execution.
func (t *Tracker) ClearActionStates(executionID string) {
	t.table.Clear(executionID)
	metrics.TrackedExecutions.Set(float64(t.table.Len()))
}

// ClearStreamingChunks drops the raw chunk buffer for an action.
func (t *Tracker) ClearStreamingChunks(actionID string) {
	t.bufs.Clear(actionID)
}

// ClearAgentOutput drops the legacy flat output log for an execution.
func (t *Tracker) ClearAgentOutput(executionID string) {
	t.bufs.ClearLegacy(executionID)
}

// Reset drops all reconstructed state.
func (t *Tracker) Reset() {
	t.registry.Reset()
	t.table.Reset()
	t.bufs.Reset()
	t.feed.Reset()
	metrics.TrackedRuns.Set(0)
	metrics.TrackedExecutions.Set(0)
}

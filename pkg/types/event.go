package types

import (
	"encoding/json"
	"time"
)

// Inbound event names delivered by the console backend.
const (
	EventAgentStatus    = "agent:status"
	EventActionStart    = "agent:action-start"
	EventActionOutput   = "agent:action-output"
	EventActionComplete = "agent:action-complete"
	EventActionError    = "agent:action-error"
	// EventAgentOutput is the legacy flat-output event, still emitted by
	// older backends alongside the per-action stream.
	EventAgentOutput = "agent:output"

	// Synthetic transport events. They carry no payload; only the
	// connected flag is affected.
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Envelope frames every message on the wire: a named event plus its
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StatusPayload is the payload of agent:status.
type StatusPayload struct {
	AgentID     string     `json:"agent_id"`
	ExecutionID string     `json:"execution_id"`
	Status      RunStatus  `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ActionStartPayload is the payload of agent:action-start.
type ActionStartPayload struct {
	AgentID      string          `json:"agent_id"`
	ExecutionID  string          `json:"execution_id"`
	ActionID     string          `json:"action_id"`
	ActionIndex  int             `json:"action_index"`
	ActionType   ActionType      `json:"action_type,omitempty"`
	ActionConfig json.RawMessage `json:"action_config,omitempty"`
	TotalActions int             `json:"total_actions,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
}

// ActionOutputPayload is the payload of agent:action-output.
type ActionOutputPayload struct {
	ExecutionID string     `json:"execution_id"`
	ActionID    string     `json:"action_id"`
	ActionIndex int        `json:"action_index"`
	Chunk       string     `json:"chunk"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// ActionCompletePayload is the payload of agent:action-complete. Output is a
// pointer so an absent field can be told apart from an empty string: when
// present it is authoritative over the incrementally streamed output.
type ActionCompletePayload struct {
	ExecutionID string       `json:"execution_id"`
	ActionID    string       `json:"action_id,omitempty"`
	ActionIndex int          `json:"action_index"`
	ActionType  ActionType   `json:"action_type,omitempty"`
	Status      ActionStatus `json:"status,omitempty"`
	Output      *string      `json:"output,omitempty"`
	DurationMS  *int64       `json:"duration_ms,omitempty"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
}

// ActionErrorPayload is the payload of agent:action-error.
type ActionErrorPayload struct {
	ExecutionID string     `json:"execution_id"`
	ActionID    string     `json:"action_id,omitempty"`
	ActionIndex int        `json:"action_index"`
	ActionType  ActionType `json:"action_type,omitempty"`
	Error       string     `json:"error"`
	DurationMS  *int64     `json:"duration_ms,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// LegacyOutputPayload is the payload of agent:output.
type LegacyOutputPayload struct {
	AgentID     string `json:"agent_id,omitempty"`
	ExecutionID string `json:"execution_id"`
	ActionIndex int    `json:"action_index"`
	Output      string `json:"output"`
}

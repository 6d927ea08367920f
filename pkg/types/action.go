package types

import (
	"encoding/json"
	"time"
)

// MaxActionIndex bounds the action index accepted from the stream. The
// index sizes the gap-filled sequence, so an unbounded value would let a
// single event allocate an arbitrarily large slice.
const MaxActionIndex = 10000

// ActionRecord is one step (shell command, API call, tool invocation) within
// an execution. Records live in an ordered sequence addressed by ActionIndex;
// indices announced out of order are back-filled with pending placeholders so
// the sequence never has holes.
type ActionRecord struct {
	ActionID     string          `json:"action_id,omitempty"`
	ActionIndex  int             `json:"action_index"`
	ActionType   ActionType      `json:"action_type"`
	ActionConfig json.RawMessage `json:"action_config,omitempty"`
	Status       ActionStatus    `json:"status"`
	Output       string          `json:"output"`
	Error        string          `json:"error,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	// DurationMS is the server-reported duration in whole milliseconds.
	// It is never recomputed client-side.
	DurationMS *int64 `json:"duration_ms,omitempty"`
}

// Placeholder returns a synthesized pending record for a slot whose start
// event has not arrived yet.
func Placeholder(index int) ActionRecord {
	return ActionRecord{
		ActionIndex: index,
		ActionType:  ActionTypeUnknown,
		Status:      ActionStatusPending,
	}
}

// OutputChunk is a single delivered fragment of streaming text for one
// action, with its delivery timestamp.
type OutputChunk struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// LegacyOutputLine is one entry in the backward-compatible flat output log,
// keyed by execution rather than action.
type LegacyOutputLine struct {
	Timestamp   time.Time `json:"timestamp"`
	ActionIndex int       `json:"action_index"`
	Output      string    `json:"output"`
}

// FeedEntry is a denormalized status-change snapshot kept in the recent
// event feed for notification-style consumers.
type FeedEntry struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	ExecutionID string    `json:"execution_id"`
	Status      RunStatus `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

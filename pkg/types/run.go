// Package types provides shared types for the agentmon monitor.
package types

import (
	"time"
)

// RunStatus represents the current state of an agent run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Active reports whether the status represents a run that is still in flight.
func (s RunStatus) Active() bool {
	return s == RunStatusPending || s == RunStatusRunning
}

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ActionStatus represents the current state of a single action within a run.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

// ActionType categorizes what kind of step an action is.
type ActionType string

const (
	ActionTypeShell   ActionType = "shell"
	ActionTypeAPI     ActionType = "api"
	ActionTypeMCP     ActionType = "mcp"
	ActionTypeUnknown ActionType = "unknown"
)

// AgentRun is the live record for one in-progress execution of an agent.
// An agent has at most one AgentRun at a time; a terminal status removes
// the record rather than closing it.
type AgentRun struct {
	AgentID            string     `json:"agent_id"`
	ExecutionID        string     `json:"execution_id"`
	Status             RunStatus  `json:"status"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	Error              string     `json:"error,omitempty"`
	CurrentActionIndex int        `json:"current_action_index"`
	TotalActions       int        `json:"total_actions"`
}

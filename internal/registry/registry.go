// Package registry tracks which agents currently have a run in flight.
package registry

import (
	"sort"
	"sync"

	"github.com/flexinfer/agentmon/pkg/types"
)

// Registry maps agent IDs to their current run. An agent has at most one
// entry; a terminal status deletes the entry entirely. All inputs are
// untrusted network data, so malformed updates are dropped rather than
// treated as errors.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*types.AgentRun
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		runs: make(map[string]*types.AgentRun),
	}
}

// UpsertFromStatus applies an agent:status payload. A pending or running
// status replaces the agent's entry with a fresh record — counters reset to
// zero so a previous run's progress never leaks into the new one. Any other
// status removes the entry. Payloads without an agent ID are dropped.
func (r *Registry) UpsertFromStatus(p *types.StatusPayload) {
	if p == nil || p.AgentID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !p.Status.Active() {
		delete(r.runs, p.AgentID)
		return
	}

	r.runs[p.AgentID] = &types.AgentRun{
		AgentID:     p.AgentID,
		ExecutionID: p.ExecutionID,
		Status:      p.Status,
		StartedAt:   p.StartedAt,
		Error:       p.Error,
	}
}

// BumpProgress updates the action counters for an agent's current run. If
// the agent has no run record (the status event was missed or has not
// arrived yet) this is a no-op: progress cannot be tracked without a run.
// It reports whether a record was updated.
func (r *Registry) BumpProgress(agentID string, actionIndex, totalActions int) bool {
	if agentID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[agentID]
	if !ok {
		return false
	}
	run.CurrentActionIndex = actionIndex
	run.TotalActions = totalActions
	return true
}

// Get returns a copy of the agent's current run, if any.
func (r *Registry) Get(agentID string) (types.AgentRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[agentID]
	if !ok {
		return types.AgentRun{}, false
	}
	return *run, true
}

// Running returns copies of all current run records, ordered by agent ID
// for stable presentation.
func (r *Registry) Running() []types.AgentRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.AgentRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Len returns the number of agents with a run in flight.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

// Reset drops all run records.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = make(map[string]*types.AgentRun)
}

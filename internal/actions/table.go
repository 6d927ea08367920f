// Package actions maintains the per-execution ordered action sequences
// reconstructed from the live event stream.
package actions

import (
	"encoding/json"
	"sync"

	"github.com/flexinfer/agentmon/pkg/types"
)

// Table maps execution IDs to ordered action sequences. The authoritative
// key for placement within a sequence is the action index carried by the
// event, not arrival order: a start event for index 3 on a fresh execution
// back-fills indices 0-2 with pending placeholders so no slot is ever
// missing, and a later start for index 1 overwrites only its own slot.
//
// Event handlers may run from multiple goroutines, so every operation takes
// the table lock; no handler holds it across a blocking call.
type Table struct {
	mu   sync.RWMutex
	seqs map[string][]types.ActionRecord
}

// New creates an empty Table.
func New() *Table {
	return &Table{
		seqs: make(map[string][]types.ActionRecord),
	}
}

// StartAction applies an agent:action-start payload: it creates the
// execution's sequence if needed, gap-fills up to the announced index, and
// overwrites the slot with a fresh running record. A restart of an index
// that already holds a record discards that slot's accumulated output.
// Payloads without an execution ID or with an index outside
// [0, types.MaxActionIndex] are dropped.
func (t *Table) StartAction(p *types.ActionStartPayload) {
	if p == nil || p.ExecutionID == "" || p.ActionIndex < 0 || p.ActionIndex > types.MaxActionIndex {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seq := t.seqs[p.ExecutionID]
	for len(seq) <= p.ActionIndex {
		seq = append(seq, types.Placeholder(len(seq)))
	}

	actionType := p.ActionType
	if actionType == "" {
		actionType = types.ActionTypeUnknown
	}

	seq[p.ActionIndex] = types.ActionRecord{
		ActionID:     p.ActionID,
		ActionIndex:  p.ActionIndex,
		ActionType:   actionType,
		ActionConfig: p.ActionConfig,
		Status:       types.ActionStatusRunning,
		StartedAt:    p.StartedAt,
	}
	t.seqs[p.ExecutionID] = seq
}

// AppendOutput concatenates a chunk onto the slot's accumulated output. It
// reports false when the slot does not exist; the chunk cannot be attached
// to a record that was never started, and that is tolerated, not fatal.
func (t *Table) AppendOutput(executionID string, actionIndex int, chunk string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	seq, ok := t.seqs[executionID]
	if !ok || actionIndex < 0 || actionIndex >= len(seq) {
		return false
	}
	seq[actionIndex].Output += chunk
	return true
}

// CompleteAction finalizes a slot as completed. When the payload carries an
// output it replaces whatever was streamed incrementally: the complete
// event's output wins on conflict. Reports false when the slot is unknown.
func (t *Table) CompleteAction(p *types.ActionCompletePayload) bool {
	if p == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seq, ok := t.seqs[p.ExecutionID]
	if !ok || p.ActionIndex < 0 || p.ActionIndex >= len(seq) {
		return false
	}

	rec := &seq[p.ActionIndex]
	rec.Status = types.ActionStatusCompleted
	rec.EndedAt = p.EndedAt
	rec.DurationMS = p.DurationMS
	if p.Output != nil {
		rec.Output = *p.Output
	}
	return true
}

// FailAction finalizes a slot as failed, preserving the output accumulated
// so far. Reports false when the slot is unknown.
func (t *Table) FailAction(p *types.ActionErrorPayload) bool {
	if p == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seq, ok := t.seqs[p.ExecutionID]
	if !ok || p.ActionIndex < 0 || p.ActionIndex >= len(seq) {
		return false
	}

	rec := &seq[p.ActionIndex]
	rec.Status = types.ActionStatusFailed
	rec.Error = p.Error
	rec.EndedAt = p.EndedAt
	rec.DurationMS = p.DurationMS
	return true
}

// Get returns a copy of the execution's ordered sequence, empty if the
// execution is unknown. Mutations must go through the table, never through
// the returned slice.
func (t *Table) Get(executionID string) []types.ActionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seq, ok := t.seqs[executionID]
	if !ok {
		return nil
	}
	out := make([]types.ActionRecord, len(seq))
	copy(out, seq)
	// RawMessage shares its backing array, so the config bytes need their
	// own copy too.
	for i := range out {
		if out[i].ActionConfig != nil {
			cfg := make(json.RawMessage, len(out[i].ActionConfig))
			copy(cfg, out[i].ActionConfig)
			out[i].ActionConfig = cfg
		}
	}
	return out
}

// Clear removes the execution's sequence entirely.
func (t *Table) Clear(executionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seqs, executionID)
}

// Len returns the number of tracked executions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seqs)
}

// Reset drops all sequences.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seqs = make(map[string][]types.ActionRecord)
}

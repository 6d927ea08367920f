// Package streambuf holds raw streaming output independent of the
// reconstructed action records: per-action chunk buffers for consumers that
// need the untouched stream, and the legacy per-execution flat log kept for
// backward compatibility. The two representations are never reconciled.
package streambuf

import (
	"sync"
	"time"

	"github.com/flexinfer/agentmon/pkg/types"
)

// Buffers is a flat append-only store. Unlike the action table there is no
// synthesis or gap-filling here; entries are kept strictly in arrival order.
type Buffers struct {
	mu     sync.RWMutex
	chunks map[string][]types.OutputChunk      // keyed by action ID
	legacy map[string][]types.LegacyOutputLine // keyed by execution ID
}

// New creates empty Buffers.
func New() *Buffers {
	return &Buffers{
		chunks: make(map[string][]types.OutputChunk),
		legacy: make(map[string][]types.LegacyOutputLine),
	}
}

// Append records one delivered chunk for an action.
func (b *Buffers) Append(actionID, chunk string, ts time.Time) {
	if actionID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks[actionID] = append(b.chunks[actionID], types.OutputChunk{
		Text:      chunk,
		Timestamp: ts,
	})
}

// Chunks returns a copy of the action's chunk list in delivery order.
func (b *Buffers) Chunks(actionID string) []types.OutputChunk {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list, ok := b.chunks[actionID]
	if !ok {
		return nil
	}
	out := make([]types.OutputChunk, len(list))
	copy(out, list)
	return out
}

// Clear drops the chunk buffer for an action.
func (b *Buffers) Clear(actionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.chunks, actionID)
}

// AppendLegacy records one line in the flat per-execution output log.
func (b *Buffers) AppendLegacy(executionID string, actionIndex int, output string) {
	if executionID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.legacy[executionID] = append(b.legacy[executionID], types.LegacyOutputLine{
		Timestamp:   time.Now().UTC(),
		ActionIndex: actionIndex,
		Output:      output,
	})
}

// Legacy returns a copy of the execution's flat output log.
func (b *Buffers) Legacy(executionID string) []types.LegacyOutputLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list, ok := b.legacy[executionID]
	if !ok {
		return nil
	}
	out := make([]types.LegacyOutputLine, len(list))
	copy(out, list)
	return out
}

// ClearLegacy drops the flat output log for an execution.
func (b *Buffers) ClearLegacy(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.legacy, executionID)
}

// Reset drops everything.
func (b *Buffers) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = make(map[string][]types.OutputChunk)
	b.legacy = make(map[string][]types.LegacyOutputLine)
}

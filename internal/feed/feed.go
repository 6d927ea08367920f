// Package feed keeps a bounded, most-recent-first ring of status-change
// snapshots for notification-style consumers.
package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flexinfer/agentmon/pkg/types"
)

// DefaultCap is the number of entries retained when no cap is configured.
const DefaultCap = 20

// Feed records denormalized status snapshots, newest at index 0, oldest
// dropped once the cap is exceeded. It is deliberately decoupled from the
// run registry: a terminal status still produces an entry here even though
// it removes the registry record.
type Feed struct {
	mu      sync.RWMutex
	cap     int
	entries []types.FeedEntry
}

// New creates a Feed retaining at most cap entries. A non-positive cap
// falls back to DefaultCap.
func New(cap int) *Feed {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Feed{cap: cap}
}

// Record prepends a snapshot of the status payload and truncates to the
// cap. Payloads without an agent ID are dropped.
func (f *Feed) Record(p *types.StatusPayload) {
	if p == nil || p.AgentID == "" {
		return
	}

	entry := types.FeedEntry{
		ID:          uuid.NewString(),
		AgentID:     p.AgentID,
		ExecutionID: p.ExecutionID,
		Status:      p.Status,
		Timestamp:   time.Now().UTC(),
		Error:       p.Error,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append([]types.FeedEntry{entry}, f.entries...)
	if len(f.entries) > f.cap {
		f.entries = f.entries[:f.cap]
	}
}

// Recent returns a copy of the entries, newest first.
func (f *Feed) Recent() []types.FeedEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]types.FeedEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len returns the number of retained entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Reset drops all entries.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
}

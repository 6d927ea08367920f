package registry

import (
	"testing"
	"time"

	"github.com/flexinfer/agentmon/pkg/types"
)

func TestUpsertFromStatus(t *testing.T) {
	t.Run("running status creates entry", func(t *testing.T) {
		r := New()
		now := time.Now().UTC()
		r.UpsertFromStatus(&types.StatusPayload{
			AgentID:     "agent-a",
			ExecutionID: "exec-1",
			Status:      types.RunStatusRunning,
			StartedAt:   &now,
		})

		run, ok := r.Get("agent-a")
		if !ok {
			t.Fatal("expected run for agent-a")
		}
		if run.ExecutionID != "exec-1" {
			t.Errorf("expected execution exec-1, got %q", run.ExecutionID)
		}
		if run.Status != types.RunStatusRunning {
			t.Errorf("expected running status, got %q", run.Status)
		}
	})

	t.Run("pending status creates entry", func(t *testing.T) {
		r := New()
		r.UpsertFromStatus(&types.StatusPayload{
			AgentID:     "agent-a",
			ExecutionID: "exec-1",
			Status:      types.RunStatusPending,
		})

		if _, ok := r.Get("agent-a"); !ok {
			t.Error("expected run for pending status")
		}
	})

	t.Run("reentry replaces rather than merges", func(t *testing.T) {
		r := New()
		r.UpsertFromStatus(&types.StatusPayload{
			AgentID:     "agent-a",
			ExecutionID: "exec-1",
			Status:      types.RunStatusRunning,
		})
		r.BumpProgress("agent-a", 3, 5)

		// A second running status for the same agent must reset counters.
		r.UpsertFromStatus(&types.StatusPayload{
			AgentID:     "agent-a",
			ExecutionID: "exec-2",
			Status:      types.RunStatusRunning,
		})

		run, ok := r.Get("agent-a")
		if !ok {
			t.Fatal("expected run for agent-a")
		}
		if run.ExecutionID != "exec-2" {
			t.Errorf("expected execution exec-2, got %q", run.ExecutionID)
		}
		if run.CurrentActionIndex != 0 || run.TotalActions != 0 {
			t.Errorf("expected counters reset, got index=%d total=%d",
				run.CurrentActionIndex, run.TotalActions)
		}
	})

	t.Run("terminal status removes entry", func(t *testing.T) {
		statuses := []types.RunStatus{
			types.RunStatusCompleted,
			types.RunStatusFailed,
			types.RunStatusCancelled,
		}

		for _, status := range statuses {
			t.Run(string(status), func(t *testing.T) {
				r := New()
				r.UpsertFromStatus(&types.StatusPayload{
					AgentID:     "agent-a",
					ExecutionID: "exec-1",
					Status:      types.RunStatusRunning,
				})
				r.UpsertFromStatus(&types.StatusPayload{
					AgentID:     "agent-a",
					ExecutionID: "exec-1",
					Status:      status,
				})

				if _, ok := r.Get("agent-a"); ok {
					t.Errorf("expected no run after %s", status)
				}
			})
		}
	})

	t.Run("terminal status for unknown agent is a no-op", func(t *testing.T) {
		r := New()
		r.UpsertFromStatus(&types.StatusPayload{
			AgentID:     "agent-x",
			ExecutionID: "exec-9",
			Status:      types.RunStatusCompleted,
		})
		if r.Len() != 0 {
			t.Errorf("expected empty registry, got %d entries", r.Len())
		}
	})

	t.Run("missing agent id is dropped", func(t *testing.T) {
		r := New()
		r.UpsertFromStatus(&types.StatusPayload{
			ExecutionID: "exec-1",
			Status:      types.RunStatusRunning,
		})
		r.UpsertFromStatus(nil)

		if r.Len() != 0 {
			t.Errorf("expected empty registry, got %d entries", r.Len())
		}
	})
}

func TestBumpProgress(t *testing.T) {
	t.Run("updates counters in place", func(t *testing.T) {
		r := New()
		r.UpsertFromStatus(&types.StatusPayload{
			AgentID:     "agent-a",
			ExecutionID: "exec-1",
			Status:      types.RunStatusRunning,
		})

		if !r.BumpProgress("agent-a", 2, 7) {
			t.Fatal("expected bump to succeed")
		}

		run, _ := r.Get("agent-a")
		if run.CurrentActionIndex != 2 {
			t.Errorf("expected index 2, got %d", run.CurrentActionIndex)
		}
		if run.TotalActions != 7 {
			t.Errorf("expected total 7, got %d", run.TotalActions)
		}
	})

	t.Run("no-op without a run record", func(t *testing.T) {
		r := New()
		if r.BumpProgress("agent-missing", 1, 3) {
			t.Error("expected bump to report false")
		}
		if r.Len() != 0 {
			t.Error("bump must not create entries")
		}
	})
}

func TestRunning(t *testing.T) {
	r := New()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		r.UpsertFromStatus(&types.StatusPayload{
			AgentID:     id,
			ExecutionID: "exec-" + id,
			Status:      types.RunStatusRunning,
		})
	}

	runs := r.Running()
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if runs[i].AgentID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, runs[i].AgentID)
		}
	}

	// Mutating the returned slice must not affect the registry.
	runs[0].ExecutionID = "tampered"
	run, _ := r.Get("alpha")
	if run.ExecutionID != "exec-alpha" {
		t.Error("returned slice must be a copy")
	}
}

func TestReset(t *testing.T) {
	r := New()
	r.UpsertFromStatus(&types.StatusPayload{
		AgentID:     "agent-a",
		ExecutionID: "exec-1",
		Status:      types.RunStatusRunning,
	})
	r.Reset()

	if r.Len() != 0 {
		t.Errorf("expected empty registry after reset, got %d", r.Len())
	}
}

package validator

import (
	"testing"

	"github.com/flexinfer/agentmon/pkg/types"
)

func TestValidate(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name    string
		event   string
		payload string
		wantErr bool
	}{
		{
			name:    "valid status",
			event:   types.EventAgentStatus,
			payload: `{"agent_id":"a","execution_id":"e1","status":"running"}`,
		},
		{
			name:    "status missing agent_id",
			event:   types.EventAgentStatus,
			payload: `{"execution_id":"e1","status":"running"}`,
			wantErr: true,
		},
		{
			name:    "status with unknown enum value",
			event:   types.EventAgentStatus,
			payload: `{"agent_id":"a","execution_id":"e1","status":"exploded"}`,
			wantErr: true,
		},
		{
			name:    "valid action start",
			event:   types.EventActionStart,
			payload: `{"agent_id":"a","execution_id":"e1","action_id":"a0","action_index":3,"action_type":"shell","total_actions":5}`,
		},
		{
			name:    "action start with negative index",
			event:   types.EventActionStart,
			payload: `{"agent_id":"a","execution_id":"e1","action_id":"a0","action_index":-1}`,
			wantErr: true,
		},
		{
			name:    "action start with string index",
			event:   types.EventActionStart,
			payload: `{"agent_id":"a","execution_id":"e1","action_id":"a0","action_index":"3"}`,
			wantErr: true,
		},
		{
			name:    "action start with index beyond the bound",
			event:   types.EventActionStart,
			payload: `{"agent_id":"a","execution_id":"e1","action_id":"a0","action_index":1000000000}`,
			wantErr: true,
		},
		{
			name:    "valid action output",
			event:   types.EventActionOutput,
			payload: `{"execution_id":"e1","action_id":"a0","action_index":0,"chunk":"hello"}`,
		},
		{
			name:    "action output missing chunk",
			event:   types.EventActionOutput,
			payload: `{"execution_id":"e1","action_id":"a0","action_index":0}`,
			wantErr: true,
		},
		{
			name:    "valid action complete without output",
			event:   types.EventActionComplete,
			payload: `{"execution_id":"e1","action_index":0,"duration_ms":1200}`,
		},
		{
			name:    "valid action error",
			event:   types.EventActionError,
			payload: `{"execution_id":"e1","action_index":0,"error":"exit 1"}`,
		},
		{
			name:    "action error missing error field",
			event:   types.EventActionError,
			payload: `{"execution_id":"e1","action_index":0}`,
			wantErr: true,
		},
		{
			name:    "valid legacy output",
			event:   types.EventAgentOutput,
			payload: `{"agent_id":"a","execution_id":"e1","action_index":0,"output":"line"}`,
		},
		{
			name:    "unknown event name",
			event:   "agent:telemetry",
			payload: `{}`,
			wantErr: true,
		},
		{
			name:    "undecodable JSON",
			event:   types.EventAgentStatus,
			payload: `{not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

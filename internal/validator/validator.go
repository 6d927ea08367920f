// Package validator provides JSON schema validation for inbound event
// payloads. Events are best-effort telemetry from an untrusted transport;
// a payload that fails its schema is dropped by the caller, never surfaced
// as an error to the stream.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flexinfer/agentmon/pkg/types"
)

// Validator holds one compiled schema per inbound event kind.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles the embedded event schemas.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	sources := map[string]string{
		types.EventAgentStatus:    statusSchemaJSON,
		types.EventActionStart:    actionStartSchemaJSON,
		types.EventActionOutput:   actionOutputSchemaJSON,
		types.EventActionComplete: actionCompleteSchemaJSON,
		types.EventActionError:    actionErrorSchemaJSON,
		types.EventAgentOutput:    legacyOutputSchemaJSON,
	}

	schemas := make(map[string]*jsonschema.Schema, len(sources))
	for event, src := range sources {
		// Resource names are resolved as URLs, so the colon in event
		// names cannot appear in them.
		name := strings.ReplaceAll(event, ":", "-") + ".json"
		if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("add schema for %s: %w", event, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", event, err)
		}
		schemas[event] = schema
	}

	return &Validator{schemas: schemas}, nil
}

// Validate checks a raw payload against the schema for its event kind.
// Unknown event names and undecodable JSON fail validation.
func (v *Validator) Validate(event string, data []byte) error {
	schema, ok := v.schemas[event]
	if !ok {
		return fmt.Errorf("unknown event %q", event)
	}

	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("payload for %s: %w", event, err)
	}
	return nil
}

const statusSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["agent_id", "execution_id", "status"],
  "properties": {
    "agent_id": {"type": "string", "minLength": 1},
    "execution_id": {"type": "string", "minLength": 1},
    "status": {"enum": ["pending", "running", "completed", "failed", "cancelled"]},
    "started_at": {"type": "string"},
    "ended_at": {"type": "string"},
    "error": {"type": "string"}
  }
}`

// The action_index maximum mirrors types.MaxActionIndex.
const actionStartSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["agent_id", "execution_id", "action_id", "action_index"],
  "properties": {
    "agent_id": {"type": "string", "minLength": 1},
    "execution_id": {"type": "string", "minLength": 1},
    "action_id": {"type": "string", "minLength": 1},
    "action_index": {"type": "integer", "minimum": 0, "maximum": 10000},
    "action_type": {"type": "string"},
    "total_actions": {"type": "integer", "minimum": 0},
    "started_at": {"type": "string"}
  }
}`

const actionOutputSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["execution_id", "action_id", "action_index", "chunk"],
  "properties": {
    "execution_id": {"type": "string", "minLength": 1},
    "action_id": {"type": "string", "minLength": 1},
    "action_index": {"type": "integer", "minimum": 0, "maximum": 10000},
    "chunk": {"type": "string"},
    "timestamp": {"type": "string"}
  }
}`

const actionCompleteSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["execution_id", "action_index"],
  "properties": {
    "execution_id": {"type": "string", "minLength": 1},
    "action_id": {"type": "string"},
    "action_index": {"type": "integer", "minimum": 0, "maximum": 10000},
    "action_type": {"type": "string"},
    "status": {"type": "string"},
    "output": {"type": "string"},
    "duration_ms": {"type": "integer", "minimum": 0},
    "ended_at": {"type": "string"}
  }
}`

const actionErrorSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["execution_id", "action_index", "error"],
  "properties": {
    "execution_id": {"type": "string", "minLength": 1},
    "action_id": {"type": "string"},
    "action_index": {"type": "integer", "minimum": 0, "maximum": 10000},
    "action_type": {"type": "string"},
    "error": {"type": "string"},
    "duration_ms": {"type": "integer", "minimum": 0},
    "ended_at": {"type": "string"}
  }
}`

const legacyOutputSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["execution_id", "action_index", "output"],
  "properties": {
    "agent_id": {"type": "string"},
    "execution_id": {"type": "string", "minLength": 1},
    "action_index": {"type": "integer", "minimum": 0, "maximum": 10000},
    "output": {"type": "string"}
  }
}`

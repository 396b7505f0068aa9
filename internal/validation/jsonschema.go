// Package validation checks workflow definitions at load time, before they
// are persisted. A definition that passes here never surprises a run with a
// malformed document: the runner trusts stored definitions.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/treline/relay/pkg/schema"
)

// workflowSchemaJSON is the JSON Schema for WorkflowDefinition validation.
// Embedded as a constant to avoid filesystem dependencies.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://relay.treline.dev/schemas/workflow.json",
  "type": "object",
  "required": ["name", "trigger", "steps"],
  "properties": {
    "id": { "type": "string" },
    "tenant_id": { "type": "string" },
    "name": {
      "type": "string",
      "minLength": 1,
      "maxLength": 200
    },
    "description": { "type": "string" },
    "trigger": { "$ref": "#/$defs/trigger" },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    },
    "is_active": { "type": "boolean" }
  },
  "additionalProperties": false,
  "$defs": {
    "trigger": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {
          "type": "string",
          "enum": ["event", "schedule", "manual"]
        },
        "event": { "type": "string" },
        "cron": { "type": "string" }
      },
      "additionalProperties": false
    },
    "step": {
      "type": "object",
      "required": ["id", "actions"],
      "properties": {
        "id": {
          "type": "string",
          "minLength": 1
        },
        "condition": { "$ref": "#/$defs/condition" },
        "actions": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/action" }
        }
      },
      "additionalProperties": false
    },
    "condition": {
      "type": "object",
      "required": ["field", "operator"],
      "properties": {
        "field": {
          "type": "string",
          "minLength": 1
        },
        "operator": {
          "type": "string",
          "minLength": 1
        },
        "value": {}
      },
      "additionalProperties": false
    },
    "action": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {
          "type": "string",
          "minLength": 1
        },
        "config": { "type": "object" }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates WorkflowDefinition documents against the
// embedded JSON Schema. It is safe for concurrent use.
type JSONSchemaValidator struct {
	workflowSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the workflow
// schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(workflowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal workflow schema: %w", err)
	}
	if err := c.AddResource("https://relay.treline.dev/schemas/workflow.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add workflow schema resource: %w", err)
	}

	wfSchema, err := c.Compile("https://relay.treline.dev/schemas/workflow.json")
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}

	return &JSONSchemaValidator{workflowSchema: wfSchema}, nil
}

// ValidateDefinition validates a WorkflowDefinition against the workflow
// JSON Schema.
func (v *JSONSchemaValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}

	doc, err := toJSONValue(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize workflow definition").WithCause(err)
	}

	if err := v.workflowSchema.Validate(doc); err != nil {
		return toEngineError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toEngineError converts a jsonschema.ValidationError into an EngineError
// carrying one message per leaf violation.
func toEngineError(err error) *schema.EngineError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

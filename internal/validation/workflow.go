package validation

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/treline/relay/internal/actions"
	"github.com/treline/relay/pkg/schema"
)

// HandlerSource resolves action handlers for config validation.
// Satisfied by *actions.Registry; may be nil to skip handler checks.
type HandlerSource interface {
	Get(at schema.ActionType) (actions.Handler, error)
}

// WorkflowValidator runs the two-stage definition pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (trigger coherence, step IDs, operators, action configs)
type WorkflowValidator struct {
	jsonSchema *JSONSchemaValidator
	handlers   HandlerSource
	cronParser cron.Parser
}

// NewWorkflowValidator creates a WorkflowValidator.
func NewWorkflowValidator(handlers HandlerSource) (*WorkflowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{
		jsonSchema: jsv,
		handlers:   handlers,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: the semantic stage assumes shape.
func (wv *WorkflowValidator) Validate(def *schema.WorkflowDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow definition is nil")
		return r
	}

	result := wv.validateStructural(def)
	if !result.Valid() {
		return result
	}

	result.Merge(wv.validateSemantic(def))
	return result
}

// ValidateDefinition reduces the result to an error, nil when valid.
func (wv *WorkflowValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	return wv.Validate(def).ToError()
}

func (wv *WorkflowValidator) validateStructural(def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := wv.jsonSchema.ValidateDefinition(def)
	if err == nil {
		return result
	}

	engErr, ok := err.(*schema.EngineError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if engErr.Details != nil {
		if violations, ok := engErr.Details["violations"].([]string); ok {
			for _, v := range violations {
				result.AddError("/", schema.ErrCodeValidation, v)
			}
			return result
		}
	}
	result.AddError("/", schema.ErrCodeValidation, engErr.Message)
	return result
}

// validateSemantic checks what JSON Schema cannot express: trigger coherence,
// duplicate step IDs, operator membership, and per-action config rules.
func (wv *WorkflowValidator) validateSemantic(def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	wv.validateTrigger(&def.Trigger, result)

	seen := make(map[string]struct{}, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)

		if _, dup := seen[step.ID]; dup {
			result.AddError(path+".id", schema.ErrCodeValidation,
				fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = struct{}{}

		if step.Condition != nil && !schema.KnownOperator(step.Condition.Operator) {
			result.AddError(path+".condition.operator", schema.ErrCodeValidation,
				fmt.Sprintf("unknown operator %q", step.Condition.Operator))
		}

		for j := range step.Actions {
			wv.validateAction(&step.Actions[j], fmt.Sprintf("%s.actions[%d]", path, j), result)
		}
	}

	return result
}

func (wv *WorkflowValidator) validateTrigger(trigger *schema.Trigger, result *schema.ValidationResult) {
	switch trigger.Type {
	case schema.TriggerEvent:
		if trigger.Event == "" {
			result.AddError("trigger.event", schema.ErrCodeValidation,
				"event trigger requires an event name")
		} else if !schema.KnownEvent(trigger.Event) {
			result.AddWarning("trigger.event", schema.ErrCodeValidation,
				fmt.Sprintf("event %q is not a bundled event name", trigger.Event))
		}
		if trigger.Cron != "" {
			result.AddError("trigger.cron", schema.ErrCodeValidation,
				"event trigger must not carry a cron expression")
		}
	case schema.TriggerSchedule:
		if trigger.Cron == "" {
			result.AddError("trigger.cron", schema.ErrCodeValidation,
				"schedule trigger requires a cron expression")
		} else if _, err := wv.cronParser.Parse(trigger.Cron); err != nil {
			result.AddError("trigger.cron", schema.ErrCodeValidation,
				fmt.Sprintf("invalid cron expression %q: %s", trigger.Cron, err))
		}
		if trigger.Event != "" {
			result.AddError("trigger.event", schema.ErrCodeValidation,
				"schedule trigger must not carry an event name")
		}
	case schema.TriggerManual:
		if trigger.Event != "" || trigger.Cron != "" {
			result.AddError("trigger", schema.ErrCodeValidation,
				"manual trigger must not carry an event name or cron expression")
		}
	}
}

func (wv *WorkflowValidator) validateAction(action *schema.WorkflowAction, path string, result *schema.ValidationResult) {
	if wv.handlers == nil {
		return
	}

	handler, err := wv.handlers.Get(action.Type)
	if err != nil {
		result.AddError(path+".type", schema.ErrCodeUnsupportedAction,
			fmt.Sprintf("unsupported action type %q", action.Type))
		return
	}

	if err := handler.Validate(action.Config); err != nil {
		result.AddError(path+".config", schema.ErrCodeValidation, err.Error())
	}
}

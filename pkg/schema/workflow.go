package schema

import "encoding/json"

// WorkflowDefinition is a named, tenant-scoped automation rule. Definitions
// are created by tenant admins and stored as JSON; the engine only reads them.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Trigger     Trigger        `json:"trigger"`
	Steps       []WorkflowStep `json:"steps"`
	IsActive    bool           `json:"is_active"`
}

// Trigger binds a definition to an event name, a cron schedule, or manual runs.
type Trigger struct {
	Type  TriggerType `json:"type"`
	Event string      `json:"event,omitempty"` // required when Type == TriggerEvent
	Cron  string      `json:"cron,omitempty"`  // required when Type == TriggerSchedule
}

// TriggerType enumerates how a workflow is started.
type TriggerType string

const (
	TriggerEvent    TriggerType = "event"
	TriggerSchedule TriggerType = "schedule"
	TriggerManual   TriggerType = "manual"
)

// WorkflowStep is one conditionally-gated unit within a definition.
// A step with no condition always executes its actions.
type WorkflowStep struct {
	ID        string           `json:"id"`
	Condition *Condition       `json:"condition,omitempty"`
	Actions   []WorkflowAction `json:"actions"`
}

// Condition compares a dotted field path in the trigger data against a value.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Operator enumerates the supported comparison operators.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
)

// KnownOperator reports whether op is a member of the closed operator set.
func KnownOperator(op Operator) bool {
	switch op {
	case OpEquals, OpContains, OpGreaterThan, OpLessThan, OpIn:
		return true
	}
	return false
}

// WorkflowAction is one declared side effect. Config is decoded into the
// per-type config struct by the matching handler and validated at
// definition-load time, so malformed configuration never reaches a run.
type WorkflowAction struct {
	Type   ActionType      `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// ActionType enumerates the closed set of action kinds.
type ActionType string

const (
	ActionSendMessage    ActionType = "send_message"
	ActionCreateTask     ActionType = "create_task"
	ActionUpdateRecord   ActionType = "update_record"
	ActionAssignOwner    ActionType = "assign_owner"
	ActionEnrollSequence ActionType = "enroll_sequence"
	ActionNotify         ActionType = "notify"
	ActionWebhook        ActionType = "webhook"
)

// MessageConfig configures a send_message action.
type MessageConfig struct {
	To      string `json:"to,omitempty"` // empty: delivery resolves the contact's address
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// TaskConfig configures a create_task action.
type TaskConfig struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"` // RFC 3339; empty: 24h from run
	Priority    string `json:"priority,omitempty"` // low | medium | high
}

// UpdateRecordConfig configures an update_record action.
type UpdateRecordConfig struct {
	Updates map[string]any `json:"updates"`
}

// AssignOwnerConfig configures an assign_owner action. An empty OwnerID
// delegates the choice to the external allocation capability.
type AssignOwnerConfig struct {
	OwnerID string `json:"owner_id,omitempty"`
}

// EnrollSequenceConfig configures an enroll_sequence action.
type EnrollSequenceConfig struct {
	SequenceID string `json:"sequence_id"`
}

// NotifyConfig configures a notify action.
type NotifyConfig struct {
	Type    string `json:"type,omitempty"` // info | warning | error
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// WebhookConfig configures a webhook action.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"` // default POST
	Headers map[string]string `json:"headers,omitempty"`
	Timeout string            `json:"timeout,omitempty"` // Go duration, default 30s
}

// TriggerContext is the payload handed into one run. It is constructed fresh
// per triggering event and discarded after the execution record is persisted.
type TriggerContext struct {
	TenantID string         `json:"tenant_id"`
	Data     map[string]any `json:"data"`
}

// ExecutionSummary aggregates the outcome of one run.
type ExecutionSummary struct {
	ExecutedActions int      `json:"executed_actions"`
	Errors          []string `json:"errors"`
}

// Failed reports whether any action in the run produced an error.
func (s ExecutionSummary) Failed() bool { return len(s.Errors) > 0 }

package store

import (
	"encoding/json"
	"time"

	"github.com/treline/relay/pkg/schema"
)

// Workflow is the persisted representation of a workflow definition.
type Workflow struct {
	Definition schema.WorkflowDefinition `json:"definition"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// Execution is the append-only audit record produced once per run.
// Rows are only ever inserted, never updated.
type Execution struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflow_id"`
	TenantID    string                 `json:"tenant_id"`
	Status      schema.ExecutionStatus `json:"status"`
	TriggerData json.RawMessage        `json:"trigger_data,omitempty"`
	Result      json.RawMessage        `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Task is a follow-up task created by the create_task action.
type Task struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ContactID   string    `json:"contact_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is an in-app alert created by the notify action.
type Notification struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message,omitempty"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
}

// WorkflowFilter specifies criteria for listing workflow definitions.
type WorkflowFilter struct {
	TenantID    string             `json:"tenant_id,omitempty"`
	TriggerType schema.TriggerType `json:"trigger_type,omitempty"` // empty matches all
	Event       string             `json:"event,omitempty"`
	Active      *bool              `json:"active,omitempty"`
	Limit       int                `json:"limit,omitempty"`
}

// WorkflowUpdate specifies mutable fields of a workflow definition.
type WorkflowUpdate struct {
	Name        *string               `json:"name,omitempty"`
	Description *string               `json:"description,omitempty"`
	IsActive    *bool                 `json:"is_active,omitempty"`
	Steps       []schema.WorkflowStep `json:"steps,omitempty"`
}

// ExecutionFilter specifies criteria for listing execution records.
type ExecutionFilter struct {
	TenantID   string                  `json:"tenant_id,omitempty"`
	WorkflowID string                  `json:"workflow_id,omitempty"`
	Status     *schema.ExecutionStatus `json:"status,omitempty"`
	Since      *time.Time              `json:"since,omitempty"`
	Limit      int                     `json:"limit,omitempty"`
}

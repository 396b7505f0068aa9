package actions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/pkg/schema"
)

// TaskCreator writes a follow-up task. Implemented by the store.
type TaskCreator interface {
	CreateTask(ctx context.Context, task *store.Task) error
}

// CreateTaskHandler implements the "create_task" action.
type CreateTaskHandler struct {
	tasks TaskCreator
}

// NewCreateTaskHandler creates a create_task handler.
func NewCreateTaskHandler(tasks TaskCreator) *CreateTaskHandler {
	return &CreateTaskHandler{tasks: tasks}
}

func (h *CreateTaskHandler) Type() schema.ActionType { return schema.ActionCreateTask }

func (h *CreateTaskHandler) Validate(config json.RawMessage) error {
	var cfg schema.TaskConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}
	if cfg.DueDate != "" {
		if _, err := time.Parse(time.RFC3339, cfg.DueDate); err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "create_task: invalid due_date %q", cfg.DueDate).WithCause(err)
		}
	}
	switch cfg.Priority {
	case "", "low", "medium", "high":
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "create_task: invalid priority %q", cfg.Priority)
	}
	return nil
}

func (h *CreateTaskHandler) Execute(ctx context.Context, req Request) error {
	var cfg schema.TaskConfig
	if err := decodeConfig(req.Config, &cfg); err != nil {
		return err
	}

	cid, ok := contactID(req.Trigger)
	if !ok {
		return schema.NewError(schema.ErrCodeMissingField, "create_task: contact id required")
	}

	title := cfg.Title
	if title == "" {
		title = "Follow up"
	}
	due := time.Now().UTC().Add(24 * time.Hour)
	if cfg.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, cfg.DueDate)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "create_task: invalid due_date %q", cfg.DueDate).WithCause(err)
		}
		due = parsed
	}
	priority := cfg.Priority
	if priority == "" {
		priority = "medium"
	}

	task := &store.Task{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		ContactID:   cid,
		Title:       title,
		Description: cfg.Description,
		DueDate:     due,
		Status:      "pending",
		Priority:    priority,
	}
	if err := h.tasks.CreateTask(ctx, task); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "create_task: %v", err).WithCause(err)
	}
	return nil
}

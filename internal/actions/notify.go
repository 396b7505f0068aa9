package actions

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/pkg/schema"
)

// NotificationWriter writes an in-app notification record. Implemented by
// the store.
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *store.Notification) error
}

// NotifyHandler implements the "notify" action.
type NotifyHandler struct {
	notifications NotificationWriter
}

// NewNotifyHandler creates a notify handler.
func NewNotifyHandler(notifications NotificationWriter) *NotifyHandler {
	return &NotifyHandler{notifications: notifications}
}

func (h *NotifyHandler) Type() schema.ActionType { return schema.ActionNotify }

func (h *NotifyHandler) Validate(config json.RawMessage) error {
	var cfg schema.NotifyConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}
	switch cfg.Type {
	case "", "info", "warning", "error":
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "notify: invalid type %q", cfg.Type)
}

func (h *NotifyHandler) Execute(ctx context.Context, req Request) error {
	var cfg schema.NotifyConfig
	if err := decodeConfig(req.Config, &cfg); err != nil {
		return err
	}

	ntype := cfg.Type
	if ntype == "" {
		ntype = "info"
	}
	title := cfg.Title
	if title == "" {
		title = "Workflow notification"
	}

	n := &store.Notification{
		ID:           uuid.New().String(),
		TenantID:     req.TenantID,
		Type:         ntype,
		Title:        title,
		Message:      cfg.Message,
		TargetUserID: cfg.UserID,
		IsRead:       false,
	}
	if err := h.notifications.CreateNotification(ctx, n); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "notify: %v", err).WithCause(err)
	}
	return nil
}

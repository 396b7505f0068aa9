package actions

import (
	"context"
	"encoding/json"

	"github.com/treline/relay/pkg/schema"
)

// OutboundMessage is the payload handed to the messaging subsystem.
type OutboundMessage struct {
	To        string `json:"to,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
	ContactID string `json:"contactId"`
}

// MessageSender delivers an outbound email/SMS message. Implemented by the
// gateway client; delivery resolves the contact's address when To is empty.
type MessageSender interface {
	SendMessage(ctx context.Context, tenantID string, msg OutboundMessage) error
}

// SendMessageHandler implements the "send_message" action.
type SendMessageHandler struct {
	sender MessageSender
}

// NewSendMessageHandler creates a send_message handler.
func NewSendMessageHandler(sender MessageSender) *SendMessageHandler {
	return &SendMessageHandler{sender: sender}
}

func (h *SendMessageHandler) Type() schema.ActionType { return schema.ActionSendMessage }

func (h *SendMessageHandler) Validate(config json.RawMessage) error {
	var cfg schema.MessageConfig
	return decodeConfig(config, &cfg)
}

func (h *SendMessageHandler) Execute(ctx context.Context, req Request) error {
	var cfg schema.MessageConfig
	if err := decodeConfig(req.Config, &cfg); err != nil {
		return err
	}

	cid, ok := contactID(req.Trigger)
	if !ok {
		return schema.NewError(schema.ErrCodeMissingField, "send_message: contact id required")
	}

	msg := OutboundMessage{
		To:        cfg.To,
		Subject:   cfg.Subject,
		Body:      cfg.Body,
		ContactID: cid,
	}
	if err := h.sender.SendMessage(ctx, req.TenantID, msg); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "send_message: %v", err).WithCause(err)
	}
	return nil
}

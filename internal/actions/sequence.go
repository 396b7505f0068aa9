package actions

import (
	"context"
	"encoding/json"

	"github.com/treline/relay/pkg/schema"
)

// SequenceEnroller enrolls a contact in a named nurture sequence (external).
type SequenceEnroller interface {
	EnrollInSequence(ctx context.Context, tenantID, contactID, sequenceID string) error
}

// EnrollSequenceHandler implements the "enroll_sequence" action.
type EnrollSequenceHandler struct {
	sequences SequenceEnroller
}

// NewEnrollSequenceHandler creates an enroll_sequence handler.
func NewEnrollSequenceHandler(sequences SequenceEnroller) *EnrollSequenceHandler {
	return &EnrollSequenceHandler{sequences: sequences}
}

func (h *EnrollSequenceHandler) Type() schema.ActionType { return schema.ActionEnrollSequence }

func (h *EnrollSequenceHandler) Validate(config json.RawMessage) error {
	var cfg schema.EnrollSequenceConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}
	if cfg.SequenceID == "" {
		return schema.NewError(schema.ErrCodeValidation, "enroll_sequence: missing required field 'sequence_id'")
	}
	return nil
}

func (h *EnrollSequenceHandler) Execute(ctx context.Context, req Request) error {
	var cfg schema.EnrollSequenceConfig
	if err := decodeConfig(req.Config, &cfg); err != nil {
		return err
	}
	if cfg.SequenceID == "" {
		return schema.NewError(schema.ErrCodeValidation, "enroll_sequence: missing required field 'sequence_id'")
	}

	cid, ok := contactID(req.Trigger)
	if !ok {
		return schema.NewError(schema.ErrCodeMissingField, "enroll_sequence: contact id required")
	}

	if err := h.sequences.EnrollInSequence(ctx, req.TenantID, cid, cfg.SequenceID); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "enroll_sequence: %v", err).WithCause(err)
	}
	return nil
}

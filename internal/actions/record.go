package actions

import (
	"context"
	"encoding/json"

	"github.com/treline/relay/pkg/schema"
)

// RecordMutator applies a field-update document to a business record.
// The mutation itself is an external capability.
type RecordMutator interface {
	UpdateRecord(ctx context.Context, tenantID, recordID string, updates map[string]any) error
}

// UpdateRecordHandler implements the "update_record" action.
type UpdateRecordHandler struct {
	records RecordMutator
}

// NewUpdateRecordHandler creates an update_record handler.
func NewUpdateRecordHandler(records RecordMutator) *UpdateRecordHandler {
	return &UpdateRecordHandler{records: records}
}

func (h *UpdateRecordHandler) Type() schema.ActionType { return schema.ActionUpdateRecord }

func (h *UpdateRecordHandler) Validate(config json.RawMessage) error {
	var cfg schema.UpdateRecordConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}
	if len(cfg.Updates) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "update_record: updates document is empty")
	}
	return nil
}

func (h *UpdateRecordHandler) Execute(ctx context.Context, req Request) error {
	var cfg schema.UpdateRecordConfig
	if err := decodeConfig(req.Config, &cfg); err != nil {
		return err
	}
	if len(cfg.Updates) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "update_record: updates document is empty")
	}

	rid, ok := recordID(req.Trigger)
	if !ok {
		return schema.NewError(schema.ErrCodeMissingField, "update_record: record id required")
	}

	if err := h.records.UpdateRecord(ctx, req.TenantID, rid, cfg.Updates); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "update_record: %v", err).WithCause(err)
	}
	return nil
}

package actions

import (
	"context"
	"encoding/json"

	"github.com/treline/relay/pkg/schema"
)

// OwnerAssigner reassigns ownership of a business record. Allocation picks
// the best owner when the definition does not name one; both capabilities
// are external.
type OwnerAssigner interface {
	AssignOwner(ctx context.Context, tenantID, recordID, ownerID string) error
	AllocateOwner(ctx context.Context, tenantID, recordID string) (string, error)
}

// AssignOwnerHandler implements the "assign_owner" action.
type AssignOwnerHandler struct {
	owners OwnerAssigner
}

// NewAssignOwnerHandler creates an assign_owner handler.
func NewAssignOwnerHandler(owners OwnerAssigner) *AssignOwnerHandler {
	return &AssignOwnerHandler{owners: owners}
}

func (h *AssignOwnerHandler) Type() schema.ActionType { return schema.ActionAssignOwner }

func (h *AssignOwnerHandler) Validate(config json.RawMessage) error {
	var cfg schema.AssignOwnerConfig
	return decodeConfig(config, &cfg)
}

func (h *AssignOwnerHandler) Execute(ctx context.Context, req Request) error {
	var cfg schema.AssignOwnerConfig
	if err := decodeConfig(req.Config, &cfg); err != nil {
		return err
	}

	rid, ok := recordID(req.Trigger)
	if !ok {
		return schema.NewError(schema.ErrCodeMissingField, "assign_owner: record id required")
	}

	ownerID := cfg.OwnerID
	if ownerID == "" {
		allocated, err := h.owners.AllocateOwner(ctx, req.TenantID, rid)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeExecution, "assign_owner: allocation: %v", err).WithCause(err)
		}
		ownerID = allocated
	}

	if err := h.owners.AssignOwner(ctx, req.TenantID, rid, ownerID); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "assign_owner: %v", err).WithCause(err)
	}
	return nil
}

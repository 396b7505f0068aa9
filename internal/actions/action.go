// Package actions implements the action dispatcher: a closed registry of
// handlers, one per action type, each performing a single category of side
// effect against an external collaborator.
package actions

import (
	"context"
	"encoding/json"

	"github.com/treline/relay/internal/condition"
	"github.com/treline/relay/pkg/schema"
)

// Handler executes one category of side effect. Handlers are independent of
// each other and of the runner's control flow: they never retry internally
// and never partially apply an effect they cannot roll back.
type Handler interface {
	Type() schema.ActionType

	// Validate checks the action config at definition-load time so that
	// malformed configuration is rejected before any run.
	Validate(config json.RawMessage) error

	Execute(ctx context.Context, req Request) error
}

// Request is the data provided to a handler at execution time.
type Request struct {
	TenantID string
	Config   json.RawMessage
	Trigger  map[string]any
}

// contactID extracts the subject contact identifier from the trigger data,
// accepting either a flat contactId or a nested contact.id.
func contactID(trigger map[string]any) (string, bool) {
	if v, ok := condition.Lookup(trigger, "contactId"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if v, ok := condition.Lookup(trigger, "contact.id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// recordID extracts the subject record identifier, preferring an explicit
// recordId over the contact fallback.
func recordID(trigger map[string]any) (string, bool) {
	if v, ok := condition.Lookup(trigger, "recordId"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return contactID(trigger)
}

// decodeConfig unmarshals an action config document into its typed struct.
// An empty config decodes to the zero value.
func decodeConfig(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "malformed action config").WithCause(err)
	}
	return nil
}

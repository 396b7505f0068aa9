package actions

import (
	"context"
	"sort"
	"sync"

	"github.com/treline/relay/pkg/schema"
)

// Registry is the thread-safe handler registry and action dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.ActionType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[schema.ActionType]Handler),
	}
}

// Register adds a handler to the registry. Returns error on duplicate type.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return schema.NewError(schema.ErrCodeValidation, "handler is nil")
	}
	at := h.Type()
	if at == "" {
		return schema.NewError(schema.ErrCodeValidation, "handler action type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[at]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "handler for %q already registered", at)
	}

	r.handlers[at] = h
	return nil
}

// Get retrieves a handler by action type.
func (r *Registry) Get(at schema.ActionType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[at]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedAction, "unsupported action type %q", at)
	}
	return h, nil
}

// Has checks if a handler is registered for the action type.
func (r *Registry) Has(at schema.ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[at]
	return ok
}

// Types returns the registered action types, sorted.
func (r *Registry) Types() []schema.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]schema.ActionType, 0, len(r.handlers))
	for at := range r.handlers {
		types = append(types, at)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch routes one action to its handler. An unknown action type is a
// deterministic failure; handler errors are returned as-is for the runner
// to accumulate. Dispatch never panics on malformed input.
func (r *Registry) Dispatch(ctx context.Context, action schema.WorkflowAction, trigger map[string]any, tenantID string) error {
	h, err := r.Get(action.Type)
	if err != nil {
		return err
	}
	return h.Execute(ctx, Request{
		TenantID: tenantID,
		Config:   action.Config,
		Trigger:  trigger,
	})
}

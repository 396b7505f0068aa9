// Package engine orchestrates single workflow runs: step walking, condition
// gating, action dispatch, and audit recording.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/treline/relay/internal/condition"
	"github.com/treline/relay/internal/logging"
	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/pkg/schema"
)

// DefaultActionTimeout bounds each action dispatch. A timed-out action is
// reported as that action's failure, not a run failure.
const DefaultActionTimeout = 30 * time.Second

// DefinitionSource loads workflow definitions. Satisfied by store.Store.
type DefinitionSource interface {
	GetWorkflow(ctx context.Context, tenantID, id string) (*store.Workflow, error)
}

// Dispatcher routes one action to its handler. Satisfied by *actions.Registry.
type Dispatcher interface {
	Dispatch(ctx context.Context, action schema.WorkflowAction, trigger map[string]any, tenantID string) error
}

// RunnerConfig holds configuration for the Runner.
type RunnerConfig struct {
	ActionTimeout time.Duration // per-action bound; 0 = DefaultActionTimeout
}

// Runner executes one workflow definition against one trigger context.
type Runner struct {
	definitions DefinitionSource
	dispatcher  Dispatcher
	recorder    *Recorder
	config      RunnerConfig
	logger      *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(definitions DefinitionSource, dispatcher Dispatcher, recorder *Recorder, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	return &Runner{
		definitions: definitions,
		dispatcher:  dispatcher,
		recorder:    recorder,
		config:      cfg,
		logger:      logger,
	}
}

// Run executes the workflow's steps in declared order against the trigger
// data. A failing action never aborts the step or the run: automation side
// effects are independent, so the remaining actions and steps still execute
// and every failure is accumulated into the summary. The outcome is always
// handed to the recorder, regardless of how many actions failed.
//
// The only errors returned to the caller are "nothing ran" conditions:
// definition missing, owned by another tenant, or inactive. No execution
// record is written for those.
func (r *Runner) Run(ctx context.Context, workflowID, tenantID string, trigger map[string]any) (*schema.ExecutionSummary, error) {
	ctx = logging.WithTenantID(logging.WithWorkflowID(ctx, workflowID), tenantID)
	log := logging.LogWith(ctx, r.logger)

	wf, err := r.definitions.GetWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		var engErr *schema.EngineError
		if errors.As(err, &engErr) && engErr.Code == schema.ErrCodeNotFound {
			return nil, schema.NewError(schema.ErrCodeNotFound, "workflow not found or inactive").WithWorkflow(workflowID)
		}
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load workflow: %v", err).WithCause(err).WithWorkflow(workflowID)
	}

	def := &wf.Definition
	if def.TenantID != tenantID || !def.IsActive {
		return nil, schema.NewError(schema.ErrCodeInactive, "workflow not found or inactive").WithWorkflow(workflowID)
	}

	if trigger == nil {
		trigger = map[string]any{}
	}
	tc := schema.TriggerContext{TenantID: tenantID, Data: trigger}

	summary := &schema.ExecutionSummary{Errors: []string{}}

	for _, step := range def.Steps {
		if !condition.Evaluate(step.Condition, tc.Data) {
			log.Debug("step condition not met, skipping", slog.String("step_id", step.ID))
			continue
		}

		for _, action := range step.Actions {
			if err := r.dispatch(ctx, action, tc); err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("action %s failed: %s", action.Type, errorMessage(err)))
				log.Warn("workflow action failed",
					slog.String("step_id", step.ID),
					slog.String("action_type", string(action.Type)),
					slog.String("error", err.Error()),
				)
				continue
			}
			summary.ExecutedActions++
		}
	}

	r.recorder.Record(ctx, workflowID, tenantID, tc.Data, summary)

	log.Info("workflow run finished",
		slog.Int("executed_actions", summary.ExecutedActions),
		slog.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// dispatch invokes one action under the per-action timeout bound.
func (r *Runner) dispatch(ctx context.Context, action schema.WorkflowAction, tc schema.TriggerContext) error {
	actionCtx, cancel := context.WithTimeout(ctx, r.config.ActionTimeout)
	defer cancel()
	return r.dispatcher.Dispatch(actionCtx, action, tc.Data, tc.TenantID)
}

// errorMessage prefers the structured message over the full [CODE]-prefixed
// rendering for the audit trail.
func errorMessage(err error) string {
	var engErr *schema.EngineError
	if errors.As(err, &engErr) {
		return engErr.Message
	}
	return err.Error()
}

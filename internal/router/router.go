// Package router fans triggering events out to the workflow definitions
// bound to them, and matches cron-bound definitions against scheduler ticks.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/treline/relay/internal/logging"
	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/pkg/schema"
)

// WorkflowRunner runs a single workflow definition. Satisfied by
// *engine.Runner.
type WorkflowRunner interface {
	Run(ctx context.Context, workflowID, tenantID string, trigger map[string]any) (*schema.ExecutionSummary, error)
}

// DefinitionLister lists workflow definitions. Satisfied by store.Store.
type DefinitionLister interface {
	ListWorkflows(ctx context.Context, filter store.WorkflowFilter) ([]*store.Workflow, error)
}

// Config holds configuration for the Router.
type Config struct {
	// MaxConcurrentRuns bounds runs in flight across all events and ticks.
	// Zero or negative means unlimited.
	MaxConcurrentRuns int64
}

// Router resolves which definitions a trigger reaches and runs each one.
// One definition failing never stops the others: the fan-out is fail-open,
// mirroring the runner's own per-action semantics.
type Router struct {
	definitions DefinitionLister
	runner      WorkflowRunner
	parser      cron.Parser
	limiter     *semaphore.Weighted // nil when unlimited
	logger      *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(definitions DefinitionLister, runner WorkflowRunner, cfg Config, logger *slog.Logger) *Router {
	var limiter *semaphore.Weighted
	if cfg.MaxConcurrentRuns > 0 {
		limiter = semaphore.NewWeighted(cfg.MaxConcurrentRuns)
	}
	return &Router{
		definitions: definitions,
		runner:      runner,
		parser:      cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		limiter:     limiter,
		logger:      logger,
	}
}

// OnEvent runs every active definition the tenant has bound to the event,
// in listing order. A definition whose run fails is logged and skipped; the
// returned error covers only the lookup itself.
func (r *Router) OnEvent(ctx context.Context, tenantID, event string, data map[string]any) error {
	ctx = logging.WithEvent(logging.WithTenantID(ctx, tenantID), event)

	active := true
	workflows, err := r.definitions.ListWorkflows(ctx, store.WorkflowFilter{
		TenantID:    tenantID,
		TriggerType: schema.TriggerEvent,
		Event:       event,
		Active:      &active,
	})
	if err != nil {
		return fmt.Errorf("list workflows for event %q: %w", event, err)
	}
	if len(workflows) == 0 {
		return nil
	}

	r.logger.InfoContext(ctx, "routing event",
		slog.Int("workflows", len(workflows)),
	)

	for _, wf := range workflows {
		r.runOne(ctx, wf, data)
	}
	return nil
}

// OnSchedule runs every active cron-bound definition whose expression
// matches the tick, at minute granularity. Unparseable expressions are
// logged and skipped; validation rejects them at definition load, so one
// here means the stored document predates the current rules.
func (r *Router) OnSchedule(ctx context.Context, tick time.Time) error {
	active := true
	workflows, err := r.definitions.ListWorkflows(ctx, store.WorkflowFilter{
		TriggerType: schema.TriggerSchedule,
		Active:      &active,
	})
	if err != nil {
		return fmt.Errorf("list scheduled workflows: %w", err)
	}

	trigger := map[string]any{
		"scheduledAt": tick.UTC().Format(time.RFC3339),
	}

	for _, wf := range workflows {
		due, err := r.matches(wf.Definition.Trigger.Cron, tick)
		if err != nil {
			r.logger.Error("invalid cron expression on stored workflow",
				slog.String("workflow_id", wf.Definition.ID),
				slog.String("cron", wf.Definition.Trigger.Cron),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !due {
			continue
		}
		r.runOne(logging.WithTenantID(ctx, wf.Definition.TenantID), wf, trigger)
	}
	return nil
}

// runOne runs a single definition under the concurrency limiter.
func (r *Router) runOne(ctx context.Context, wf *store.Workflow, data map[string]any) {
	if r.limiter != nil {
		if err := r.limiter.Acquire(ctx, 1); err != nil {
			r.logger.Error("run limiter wait aborted",
				slog.String("workflow_id", wf.Definition.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		defer r.limiter.Release(1)
	}

	summary, err := r.runner.Run(ctx, wf.Definition.ID, wf.Definition.TenantID, data)
	if err != nil {
		r.logger.Error("workflow run failed",
			slog.String("workflow_id", wf.Definition.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if summary.Failed() {
		r.logger.Warn("workflow run completed with action failures",
			slog.String("workflow_id", wf.Definition.ID),
			slog.Int("executed_actions", summary.ExecutedActions),
			slog.Int("failed_actions", len(summary.Errors)),
		)
	}
}

// matches reports whether the cron expression fires in the tick's minute.
func (r *Router) matches(expr string, tick time.Time) (bool, error) {
	schedule, err := r.parser.Parse(expr)
	if err != nil {
		return false, err
	}
	minute := tick.Truncate(time.Minute)
	return schedule.Next(minute.Add(-time.Second)).Equal(minute), nil
}

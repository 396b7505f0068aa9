package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/pkg/schema"
)

// ExecutionAppender persists audit records. Satisfied by store.Store.
type ExecutionAppender interface {
	AppendExecution(ctx context.Context, exec *store.Execution) error
}

// Recorder persists one append-only execution record per run. Audit writes
// are fire-and-forget from the run's perspective: a persistence failure is
// logged on the audit channel and counted, never propagated, so an audit
// outage cannot take down the event path that invoked the workflow.
type Recorder struct {
	sink    ExecutionAppender
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewRecorder creates a Recorder.
func NewRecorder(sink ExecutionAppender, logger *slog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Record writes the audit record for one run. Status is FAILED iff the
// summary carries at least one error.
func (r *Recorder) Record(ctx context.Context, workflowID, tenantID string, trigger map[string]any, summary *schema.ExecutionSummary) {
	status := schema.ExecutionCompleted
	errText := ""
	if summary.Failed() {
		status = schema.ExecutionFailed
		errText = joinErrors(summary.Errors)
	}

	triggerData, err := json.Marshal(trigger)
	if err != nil {
		triggerData = nil
	}
	result, err := json.Marshal(summary)
	if err != nil {
		result = nil
	}

	exec := &store.Execution{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		TenantID:    tenantID,
		Status:      status,
		TriggerData: triggerData,
		Result:      result,
		Error:       errText,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.sink.AppendExecution(ctx, exec); err != nil {
		r.dropped.Add(1)
		r.logger.Error("audit sink unavailable, execution record dropped",
			slog.String("channel", "audit"),
			slog.String("workflow_id", workflowID),
			slog.String("tenant_id", tenantID),
			slog.Int64("dropped_total", r.dropped.Load()),
			slog.String("error", err.Error()),
		)
	}
}

// Dropped returns the number of execution records lost to audit-sink
// failures since startup.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func joinErrors(errs []string) string {
	return strings.Join(errs, "; ")
}

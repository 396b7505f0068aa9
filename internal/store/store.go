package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Workflow definitions. Reads are tenant-scoped: a definition is only
	// visible to the tenant that owns it.
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, tenantID, id string) (*Workflow, error)
	UpdateWorkflow(ctx context.Context, tenantID, id string, update WorkflowUpdate) error
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, tenantID, id string) error

	// Execution audit records (append-only, never updated).
	AppendExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)

	// Side-effect sinks used by action handlers.
	CreateTask(ctx context.Context, task *Task) error
	CreateNotification(ctx context.Context, n *Notification) error

	// Maintenance and lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

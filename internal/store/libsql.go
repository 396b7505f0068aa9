package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/treline/relay/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate applies pending schema migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, s.db)
}

// --- Workflow definitions ---

const workflowColumns = `id, tenant_id, name, description, trigger_type, trigger_event, trigger_cron, steps, is_active, created_at, updated_at`

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	def := &wf.Definition
	steps, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (`+workflowColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.TenantID, def.Name, nullStr(def.Description),
		string(def.Trigger.Type), nullStr(def.Trigger.Event), nullStr(def.Trigger.Cron),
		string(steps), boolToInt(def.IsActive),
		timeOrNow(wf.CreatedAt), timeOrNow(wf.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, tenantID, id string) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ? AND tenant_id = ?`, id, tenantID,
	)
	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow", id)
	}
	return wf, err
}

func (s *LibSQLStore) UpdateWorkflow(ctx context.Context, tenantID, id string, update WorkflowUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullStr(*update.Description))
	}
	if update.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolToInt(*update.IsActive))
	}
	if update.Steps != nil {
		steps, err := json.Marshal(update.Steps)
		if err != nil {
			return fmt.Errorf("marshal steps: %w", err)
		}
		sets = append(sets, "steps = ?")
		args = append(args, string(steps))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id, tenantID)

	query := fmt.Sprintf("UPDATE workflows SET %s WHERE id = ? AND tenant_id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	var where []string
	var args []any

	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.TriggerType != "" {
		where = append(where, "trigger_type = ?")
		args = append(args, string(filter.TriggerType))
	}
	if filter.Event != "" {
		where = append(where, "trigger_event = ?")
		args = append(args, filter.Event)
	}
	if filter.Active != nil {
		where = append(where, "is_active = ?")
		args = append(args, boolToInt(*filter.Active))
	}

	query := `SELECT ` + workflowColumns + ` FROM workflows`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (s *LibSQLStore) DeleteWorkflow(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(sc scanner) (*Workflow, error) {
	wf := &Workflow{}
	def := &wf.Definition
	var (
		description, triggerEvent, triggerCron sql.NullString
		triggerType, stepsJSON                 string
		isActive                               int
	)
	if err := sc.Scan(&def.ID, &def.TenantID, &def.Name, &description,
		&triggerType, &triggerEvent, &triggerCron, &stepsJSON, &isActive,
		&wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	def.Description = description.String
	def.Trigger = schema.Trigger{
		Type:  schema.TriggerType(triggerType),
		Event: triggerEvent.String,
		Cron:  triggerCron.String,
	}
	def.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(stepsJSON), &def.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return wf, nil
}

// --- Execution audit records ---

func (s *LibSQLStore) AppendExecution(ctx context.Context, exec *Execution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, workflow_id, tenant_id, status, trigger_data, result, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.WorkflowID, exec.TenantID, string(exec.Status),
		nullRaw(exec.TriggerData), nullRaw(exec.Result), nullStr(exec.Error),
		timeOrNow(exec.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	var where []string
	var args []any

	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, workflow_id, tenant_id, status, trigger_data, result, error, created_at FROM executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e := &Execution{}
		var status string
		var triggerData, result, errText sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.TenantID, &status,
			&triggerData, &result, &errText, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = schema.ExecutionStatus(status)
		e.TriggerData = rawOrNil(triggerData)
		e.Result = rawOrNil(result)
		e.Error = errText.String
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// --- Side-effect sinks ---

func (s *LibSQLStore) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	status := task.Status
	if status == "" {
		status = "pending"
	}
	priority := task.Priority
	if priority == "" {
		priority = "medium"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, tenant_id, contact_id, title, description, due_date, status, priority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.TenantID, task.ContactID, task.Title, nullStr(task.Description),
		task.DueDate, status, priority, timeOrNow(task.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	ntype := n.Type
	if ntype == "" {
		ntype = "info"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, tenant_id, type, title, message, target_user_id, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.TenantID, ntype, n.Title, nullStr(n.Message), nullStr(n.TargetUserID),
		boolToInt(n.IsRead), timeOrNow(n.CreatedAt),
	)
	return err
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

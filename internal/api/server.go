// Package api is the HTTP adapter in front of the engine: event ingest,
// workflow definition management, and execution diagnostics. Authentication
// and the rest of the application's HTTP surface live upstream; requests
// arrive here already tenant-stamped via the X-Tenant-ID header.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/treline/relay/internal/logging"
	"github.com/treline/relay/internal/seed"
	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/internal/validation"
	"github.com/treline/relay/pkg/schema"
)

const headerTenantID = "X-Tenant-ID"

// maxBodyBytes bounds request bodies. Definitions and event payloads are
// small documents; anything larger is malformed or hostile.
const maxBodyBytes = 1 << 20

// EventRouter fans an event out to its workflows. Satisfied by *router.Router.
type EventRouter interface {
	OnEvent(ctx context.Context, tenantID, event string, data map[string]any) error
}

// Server handles the engine's HTTP surface.
type Server struct {
	store     store.Store
	events    EventRouter
	validator *validation.WorkflowValidator
	logger    *slog.Logger
}

// NewServer creates a Server.
func NewServer(st store.Store, events EventRouter, validator *validation.WorkflowValidator, logger *slog.Logger) *Server {
	return &Server{
		store:     st,
		events:    events,
		validator: validator,
		logger:    logger,
	}
}

// Handler returns the route table. CORS and outer middleware are applied by
// the caller.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/events/{event}", s.handleEvent)
	mux.HandleFunc("POST /v1/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("POST /v1/workflows/seed", s.handleSeedWorkflows)
	mux.HandleFunc("GET /v1/workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /v1/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("PUT /v1/workflows/{id}", s.handleUpdateWorkflow)
	mux.HandleFunc("DELETE /v1/workflows/{id}", s.handleDeleteWorkflow)
	mux.HandleFunc("GET /v1/executions", s.handleListExecutions)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvent ingests one business event and fans it out. The response is
// 202: runs happen before the reply (the fan-out is synchronous) but their
// per-action outcomes are reported through execution records, not here.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	event := r.PathValue("event")

	var payload map[string]any
	if err := s.readJSON(w, r, &payload); err != nil {
		return
	}

	ctx := logging.WithEvent(logging.WithTenantID(r.Context(), tenantID), event)
	if err := s.events.OnEvent(ctx, tenantID, event, payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var def schema.WorkflowDefinition
	if err := s.readJSON(w, r, &def); err != nil {
		return
	}
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	def.TenantID = tenantID

	if result := s.validator.Validate(&def); !result.Valid() {
		s.writeJSON(w, http.StatusBadRequest, result)
		return
	}

	now := time.Now().UTC()
	wf := &store.Workflow{Definition: def, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateWorkflow(r.Context(), wf); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, wf)
}

// handleSeedWorkflows installs a vertical's starter bundle for the tenant.
// Seeding is fail-open, so a partial install reports per-definition errors
// in the result rather than failing the request.
func (s *Server) handleSeedWorkflows(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req struct {
		Vertical string `json:"vertical"`
	}
	if err := s.readJSON(w, r, &req); err != nil {
		return
	}

	result, err := seed.Apply(r.Context(), s.store, tenantID, seed.Vertical(req.Vertical), s.logger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}

	filter := store.WorkflowFilter{TenantID: tenantID}
	if event := r.URL.Query().Get("event"); event != "" {
		filter.Event = event
	}
	if active := r.URL.Query().Get("active"); active != "" {
		val := active == "true"
		filter.Active = &val
	}

	workflows, err := s.store.ListWorkflows(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if workflows == nil {
		workflows = []*store.Workflow{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"workflows": workflows})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}

	wf, err := s.store.GetWorkflow(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wf)
}

// handleUpdateWorkflow applies a partial update. The merged definition goes
// through the same validation pipeline as a freshly created one, so an
// update can never degrade a stored definition below load-time rules.
func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var update store.WorkflowUpdate
	if err := s.readJSON(w, r, &update); err != nil {
		return
	}

	existing, err := s.store.GetWorkflow(r.Context(), tenantID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	merged := existing.Definition
	if update.Name != nil {
		merged.Name = *update.Name
	}
	if update.Description != nil {
		merged.Description = *update.Description
	}
	if update.IsActive != nil {
		merged.IsActive = *update.IsActive
	}
	if update.Steps != nil {
		merged.Steps = update.Steps
	}

	if result := s.validator.Validate(&merged); !result.Valid() {
		s.writeJSON(w, http.StatusBadRequest, result)
		return
	}

	if err := s.store.UpdateWorkflow(r.Context(), tenantID, id, update); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.store.GetWorkflow(r.Context(), tenantID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteWorkflow(r.Context(), tenantID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.tenant(w, r)
	if !ok {
		return
	}

	filter := store.ExecutionFilter{TenantID: tenantID, Limit: 100}
	if workflowID := r.URL.Query().Get("workflow_id"); workflowID != "" {
		filter.WorkflowID = workflowID
	}
	if status := r.URL.Query().Get("status"); status != "" {
		st := schema.ExecutionStatus(status)
		filter.Status = &st
	}

	executions, err := s.store.ListExecutions(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if executions == nil {
		executions = []*store.Execution{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"executions": executions})
}

// tenant extracts the tenant header, replying 400 when absent.
func (s *Server) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.Header.Get(headerTenantID)
	if tenantID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody(schema.ErrCodeValidation,
			fmt.Sprintf("missing %s header", headerTenantID)))
		return "", false
	}
	return tenantID, true
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(schema.ErrCodeValidation,
			"invalid JSON body: "+err.Error()))
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", slog.String("error", err.Error()))
	}
}

// writeError maps engine error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := schema.ErrCodeExecution
	message := err.Error()

	var engErr *schema.EngineError
	if errors.As(err, &engErr) {
		code = engErr.Code
		message = engErr.Message
		switch engErr.Code {
		case schema.ErrCodeNotFound:
			status = http.StatusNotFound
		case schema.ErrCodeValidation, schema.ErrCodeUnsupportedAction, schema.ErrCodeMissingField:
			status = http.StatusBadRequest
		case schema.ErrCodeInactive:
			status = http.StatusConflict
		case schema.ErrCodeConflict:
			status = http.StatusConflict
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	s.writeJSON(w, status, errorBody(code, message))
}

func errorBody(code, message string) map[string]any {
	return map[string]any{
		"error": map[string]string{"code": code, "message": message},
	}
}

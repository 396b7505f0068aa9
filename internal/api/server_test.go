package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treline/relay/internal/actions"
	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/internal/validation"
	"github.com/treline/relay/pkg/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore satisfies store.Store for api tests.
type mockStore struct {
	store.Store
	workflows  map[string]*store.Workflow
	executions []*store.Execution
}

func newMockStore() *mockStore {
	return &mockStore{workflows: make(map[string]*store.Workflow)}
}

func (m *mockStore) CreateWorkflow(_ context.Context, wf *store.Workflow) error {
	if _, exists := m.workflows[wf.Definition.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "workflow %q already exists", wf.Definition.ID)
	}
	cp := *wf
	m.workflows[wf.Definition.ID] = &cp
	return nil
}

func (m *mockStore) GetWorkflow(_ context.Context, tenantID, id string) (*store.Workflow, error) {
	wf, ok := m.workflows[id]
	if !ok || wf.Definition.TenantID != tenantID {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	cp := *wf
	return &cp, nil
}

func (m *mockStore) UpdateWorkflow(_ context.Context, tenantID, id string, update store.WorkflowUpdate) error {
	wf, ok := m.workflows[id]
	if !ok || wf.Definition.TenantID != tenantID {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	if update.Name != nil {
		wf.Definition.Name = *update.Name
	}
	if update.Description != nil {
		wf.Definition.Description = *update.Description
	}
	if update.IsActive != nil {
		wf.Definition.IsActive = *update.IsActive
	}
	if update.Steps != nil {
		wf.Definition.Steps = update.Steps
	}
	return nil
}

func (m *mockStore) ListWorkflows(_ context.Context, filter store.WorkflowFilter) ([]*store.Workflow, error) {
	var result []*store.Workflow
	for _, wf := range m.workflows {
		if filter.TenantID != "" && wf.Definition.TenantID != filter.TenantID {
			continue
		}
		if filter.Event != "" && wf.Definition.Trigger.Event != filter.Event {
			continue
		}
		if filter.Active != nil && wf.Definition.IsActive != *filter.Active {
			continue
		}
		result = append(result, wf)
	}
	return result, nil
}

func (m *mockStore) DeleteWorkflow(_ context.Context, tenantID, id string) error {
	wf, ok := m.workflows[id]
	if !ok || wf.Definition.TenantID != tenantID {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	delete(m.workflows, id)
	return nil
}

func (m *mockStore) ListExecutions(_ context.Context, filter store.ExecutionFilter) ([]*store.Execution, error) {
	var result []*store.Execution
	for _, exec := range m.executions {
		if filter.TenantID != "" && exec.TenantID != filter.TenantID {
			continue
		}
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != nil && exec.Status != *filter.Status {
			continue
		}
		result = append(result, exec)
	}
	return result, nil
}

type eventCall struct {
	tenantID string
	event    string
	data     map[string]any
}

type fakeEventRouter struct {
	calls []eventCall
	err   error
}

func (f *fakeEventRouter) OnEvent(_ context.Context, tenantID, event string, data map[string]any) error {
	f.calls = append(f.calls, eventCall{tenantID, event, data})
	return f.err
}

func newTestServer(t *testing.T) (*httptest.Server, *mockStore, *fakeEventRouter) {
	t.Helper()
	registry := actions.NewRegistry()
	require.NoError(t, registry.Register(actions.NewCreateTaskHandler(nil)))
	validator, err := validation.NewWorkflowValidator(registry)
	require.NoError(t, err)

	st := newMockStore()
	events := &fakeEventRouter{}
	srv := httptest.NewServer(NewServer(st, events, validator, testLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv, st, events
}

func do(t *testing.T, method, url, tenantID, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

const validWorkflowJSON = `{
	"name": "hot lead follow up",
	"trigger": {"type": "event", "event": "contact.created"},
	"steps": [{
		"id": "s1",
		"condition": {"field": "source", "operator": "equals", "value": "webform"},
		"actions": [{"type": "create_task", "config": {"title": "Call new lead"}}]
	}],
	"is_active": true
}`

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngestEvent(t *testing.T) {
	srv, _, events := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/events/deal.updated", "tenant-1",
		`{"dealId":"d-1","changes":{"stage":"won"}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, events.calls, 1)
	got := events.calls[0]
	assert.Equal(t, "tenant-1", got.tenantID)
	assert.Equal(t, "deal.updated", got.event)
	assert.Equal(t, "d-1", got.data["dealId"])
}

func TestIngestEvent_MissingTenantHeader(t *testing.T) {
	srv, _, events := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/events/deal.updated", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, events.calls)
}

func TestIngestEvent_MalformedBody(t *testing.T) {
	srv, _, events := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/events/deal.updated", "tenant-1", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, events.calls)
}

func TestIngestEvent_RouterError(t *testing.T) {
	srv, _, events := newTestServer(t)
	events.err = errors.New("store closed")

	resp := do(t, http.MethodPost, srv.URL+"/v1/events/deal.updated", "tenant-1", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCreateWorkflow(t *testing.T) {
	srv, st, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows", "tenant-1", validWorkflowJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created store.Workflow
	decode(t, resp, &created)
	assert.NotEmpty(t, created.Definition.ID)
	assert.Equal(t, "tenant-1", created.Definition.TenantID)
	assert.Len(t, st.workflows, 1)
}

func TestCreateWorkflow_InvalidDefinition(t *testing.T) {
	srv, st, _ := newTestServer(t)

	// Unknown operator fails the validation pipeline.
	body := strings.Replace(validWorkflowJSON, `"equals"`, `"matches_regex"`, 1)
	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows", "tenant-1", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, st.workflows)

	var result schema.ValidationResult
	decode(t, resp, &result)
	assert.NotEmpty(t, result.Errors())
}

func TestGetWorkflow_TenantScoped(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows", "tenant-1", validWorkflowJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created store.Workflow
	decode(t, resp, &created)

	resp = do(t, http.MethodGet, srv.URL+"/v1/workflows/"+created.Definition.ID, "tenant-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Another tenant cannot see it.
	resp = do(t, http.MethodGet, srv.URL+"/v1/workflows/"+created.Definition.ID, "tenant-2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListWorkflows(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows", "tenant-1", validWorkflowJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/v1/workflows", "tenant-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Workflows []*store.Workflow `json:"workflows"`
	}
	decode(t, resp, &listed)
	assert.Len(t, listed.Workflows, 1)

	resp = do(t, http.MethodGet, srv.URL+"/v1/workflows", "tenant-2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &listed)
	assert.Empty(t, listed.Workflows)
}

func TestUpdateWorkflow(t *testing.T) {
	srv, st, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows", "tenant-1", validWorkflowJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created store.Workflow
	decode(t, resp, &created)
	id := created.Definition.ID

	resp = do(t, http.MethodPut, srv.URL+"/v1/workflows/"+id, "tenant-1", `{"is_active": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated store.Workflow
	decode(t, resp, &updated)
	assert.False(t, updated.Definition.IsActive)
	assert.False(t, st.workflows[id].Definition.IsActive)
}

func TestUpdateWorkflow_RejectsInvalidMerge(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows", "tenant-1", validWorkflowJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created store.Workflow
	decode(t, resp, &created)

	// Steps replacing the definition's must still validate.
	resp = do(t, http.MethodPut, srv.URL+"/v1/workflows/"+created.Definition.ID, "tenant-1",
		`{"steps": [{"id": "s1", "actions": [{"type": "launch_rocket"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	srv, st, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows", "tenant-1", validWorkflowJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created store.Workflow
	decode(t, resp, &created)

	resp = do(t, http.MethodDelete, srv.URL+"/v1/workflows/"+created.Definition.ID, "tenant-1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, st.workflows)

	resp = do(t, http.MethodDelete, srv.URL+"/v1/workflows/"+created.Definition.ID, "tenant-1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListExecutions(t *testing.T) {
	srv, st, _ := newTestServer(t)
	st.executions = []*store.Execution{
		{ID: "e-1", WorkflowID: "wf-1", TenantID: "tenant-1", Status: schema.ExecutionCompleted},
		{ID: "e-2", WorkflowID: "wf-1", TenantID: "tenant-1", Status: schema.ExecutionFailed},
		{ID: "e-3", WorkflowID: "wf-9", TenantID: "tenant-2", Status: schema.ExecutionCompleted},
	}

	resp := do(t, http.MethodGet, srv.URL+"/v1/executions", "tenant-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Executions []*store.Execution `json:"executions"`
	}
	decode(t, resp, &listed)
	assert.Len(t, listed.Executions, 2)

	resp = do(t, http.MethodGet, srv.URL+"/v1/executions?status=FAILED", "tenant-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &listed)
	require.Len(t, listed.Executions, 1)
	assert.Equal(t, "e-2", listed.Executions[0].ID)
}

func TestSeedWorkflows(t *testing.T) {
	srv, st, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows/seed", "tenant-1",
		`{"vertical":"fintech"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Created int      `json:"created"`
		Errors  []string `json:"errors"`
	}
	decode(t, resp, &result)
	assert.Equal(t, 3, result.Created)
	assert.Empty(t, result.Errors)

	for _, wf := range st.workflows {
		assert.Equal(t, "tenant-1", wf.Definition.TenantID)
	}
}

func TestSeedWorkflows_UnknownVertical(t *testing.T) {
	srv, st, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/workflows/seed", "tenant-1",
		`{"vertical":"hospitality"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, st.workflows)
}

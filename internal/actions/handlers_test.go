package actions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/pkg/schema"
)

// --- collaborator fakes ---

type fakeSender struct {
	err    error
	tenant string
	msg    OutboundMessage
}

func (f *fakeSender) SendMessage(_ context.Context, tenantID string, msg OutboundMessage) error {
	f.tenant = tenantID
	f.msg = msg
	return f.err
}

type fakeTaskCreator struct {
	err  error
	task *store.Task
}

func (f *fakeTaskCreator) CreateTask(_ context.Context, task *store.Task) error {
	f.task = task
	return f.err
}

type fakeMutator struct {
	err      error
	recordID string
	updates  map[string]any
}

func (f *fakeMutator) UpdateRecord(_ context.Context, _, recordID string, updates map[string]any) error {
	f.recordID = recordID
	f.updates = updates
	return f.err
}

type fakeOwners struct {
	allocated   string
	allocateErr error
	assignErr   error
	assignedTo  string
	recordID    string
	allocCalls  int
}

func (f *fakeOwners) AssignOwner(_ context.Context, _, recordID, ownerID string) error {
	f.recordID = recordID
	f.assignedTo = ownerID
	return f.assignErr
}

func (f *fakeOwners) AllocateOwner(_ context.Context, _, _ string) (string, error) {
	f.allocCalls++
	return f.allocated, f.allocateErr
}

type fakeEnroller struct {
	err        error
	contactID  string
	sequenceID string
}

func (f *fakeEnroller) EnrollInSequence(_ context.Context, _, contactID, sequenceID string) error {
	f.contactID = contactID
	f.sequenceID = sequenceID
	return f.err
}

type fakeNotifier struct {
	err error
	n   *store.Notification
}

func (f *fakeNotifier) CreateNotification(_ context.Context, n *store.Notification) error {
	f.n = n
	return f.err
}

func missingFieldErr(t *testing.T, err error) {
	t.Helper()
	var engErr *schema.EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, schema.ErrCodeMissingField, engErr.Code)
}

// --- send_message ---

func TestSendMessage_Success(t *testing.T) {
	sender := &fakeSender{}
	h := NewSendMessageHandler(sender)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   json.RawMessage(`{"subject":"Welcome","body":"Hi there"}`),
		Trigger:  map[string]any{"contact": map[string]any{"id": "c-42"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", sender.tenant)
	assert.Equal(t, "c-42", sender.msg.ContactID)
	assert.Equal(t, "Welcome", sender.msg.Subject)
}

func TestSendMessage_MissingContact(t *testing.T) {
	h := NewSendMessageHandler(&fakeSender{})
	err := h.Execute(context.Background(), Request{TenantID: "tenant-1", Trigger: map[string]any{}})
	require.Error(t, err)
	missingFieldErr(t, err)
}

func TestSendMessage_DeliveryFailure(t *testing.T) {
	h := NewSendMessageHandler(&fakeSender{err: errors.New("smtp unavailable")})
	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp unavailable")
}

// --- create_task ---

func TestCreateTask_Defaults(t *testing.T) {
	creator := &fakeTaskCreator{}
	h := NewCreateTaskHandler(creator)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.NoError(t, err)
	require.NotNil(t, creator.task)
	assert.Equal(t, "Follow up", creator.task.Title)
	assert.Equal(t, "medium", creator.task.Priority)
	assert.Equal(t, "pending", creator.task.Status)
	assert.NotEmpty(t, creator.task.ID)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), creator.task.DueDate, time.Minute)
}

func TestCreateTask_ExplicitConfig(t *testing.T) {
	creator := &fakeTaskCreator{}
	h := NewCreateTaskHandler(creator)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   json.RawMessage(`{"title":"Call back","priority":"high","due_date":"2026-09-02T09:00:00Z"}`),
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Call back", creator.task.Title)
	assert.Equal(t, "high", creator.task.Priority)
	assert.Equal(t, time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC), creator.task.DueDate)
}

func TestCreateTask_Validate(t *testing.T) {
	h := NewCreateTaskHandler(&fakeTaskCreator{})

	assert.NoError(t, h.Validate(nil))
	assert.NoError(t, h.Validate(json.RawMessage(`{"priority":"low"}`)))
	assert.Error(t, h.Validate(json.RawMessage(`{"priority":"urgent"}`)))
	assert.Error(t, h.Validate(json.RawMessage(`{"due_date":"tomorrow"}`)))
	assert.Error(t, h.Validate(json.RawMessage(`not json`)))
}

func TestCreateTask_MissingContact(t *testing.T) {
	h := NewCreateTaskHandler(&fakeTaskCreator{})
	err := h.Execute(context.Background(), Request{TenantID: "tenant-1", Trigger: nil})
	require.Error(t, err)
	missingFieldErr(t, err)
}

// --- update_record ---

func TestUpdateRecord_Success(t *testing.T) {
	mut := &fakeMutator{}
	h := NewUpdateRecordHandler(mut)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   json.RawMessage(`{"updates":{"stage":"won"}}`),
		Trigger:  map[string]any{"recordId": "d-7"},
	})
	require.NoError(t, err)
	assert.Equal(t, "d-7", mut.recordID)
	assert.Equal(t, map[string]any{"stage": "won"}, mut.updates)
}

func TestUpdateRecord_ContactFallback(t *testing.T) {
	mut := &fakeMutator{}
	h := NewUpdateRecordHandler(mut)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   json.RawMessage(`{"updates":{"status":"qualified"}}`),
		Trigger:  map[string]any{"contactId": "c-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c-3", mut.recordID)
}

func TestUpdateRecord_EmptyUpdatesRejected(t *testing.T) {
	h := NewUpdateRecordHandler(&fakeMutator{})
	assert.Error(t, h.Validate(json.RawMessage(`{}`)))
	assert.Error(t, h.Validate(json.RawMessage(`{"updates":{}}`)))
	assert.NoError(t, h.Validate(json.RawMessage(`{"updates":{"stage":"won"}}`)))
}

// --- assign_owner ---

func TestAssignOwner_Explicit(t *testing.T) {
	owners := &fakeOwners{}
	h := NewAssignOwnerHandler(owners)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   json.RawMessage(`{"owner_id":"rep-9"}`),
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rep-9", owners.assignedTo)
	assert.Zero(t, owners.allocCalls)
}

func TestAssignOwner_AutoAllocation(t *testing.T) {
	owners := &fakeOwners{allocated: "rep-2"}
	h := NewAssignOwnerHandler(owners)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, owners.allocCalls)
	assert.Equal(t, "rep-2", owners.assignedTo)
}

func TestAssignOwner_AllocationFailure(t *testing.T) {
	owners := &fakeOwners{allocateErr: errors.New("no reps available")}
	h := NewAssignOwnerHandler(owners)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reps available")
	assert.Empty(t, owners.assignedTo)
}

// --- enroll_sequence ---

func TestEnrollSequence_Success(t *testing.T) {
	enr := &fakeEnroller{}
	h := NewEnrollSequenceHandler(enr)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   json.RawMessage(`{"sequence_id":"seq-onboarding"}`),
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c-1", enr.contactID)
	assert.Equal(t, "seq-onboarding", enr.sequenceID)
}

func TestEnrollSequence_MissingSequenceID(t *testing.T) {
	h := NewEnrollSequenceHandler(&fakeEnroller{})
	assert.Error(t, h.Validate(json.RawMessage(`{}`)))
	assert.Error(t, h.Validate(nil))

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.Error(t, err)
}

// --- notify ---

func TestNotify_Defaults(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewNotifyHandler(notifier)

	err := h.Execute(context.Background(), Request{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.NotNil(t, notifier.n)
	assert.Equal(t, "info", notifier.n.Type)
	assert.Equal(t, "Workflow notification", notifier.n.Title)
	assert.False(t, notifier.n.IsRead)
	assert.NotEmpty(t, notifier.n.ID)
}

func TestNotify_ExplicitConfig(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewNotifyHandler(notifier)

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   json.RawMessage(`{"type":"warning","title":"Deal Won","message":"Stage moved","user_id":"u-1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "warning", notifier.n.Type)
	assert.Equal(t, "Deal Won", notifier.n.Title)
	assert.Equal(t, "u-1", notifier.n.TargetUserID)
}

func TestNotify_InvalidType(t *testing.T) {
	h := NewNotifyHandler(&fakeNotifier{})
	assert.Error(t, h.Validate(json.RawMessage(`{"type":"shout"}`)))
}

// --- webhook ---

func TestWebhook_PostsTriggerPayload(t *testing.T) {
	var received map[string]any
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Signature")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewWebhookHandler(nil)
	cfg, _ := json.Marshal(map[string]any{
		"url":     srv.URL,
		"headers": map[string]string{"X-Signature": "abc"},
	})

	err := h.Execute(context.Background(), Request{
		TenantID: "tenant-1",
		Config:   cfg,
		Trigger:  map[string]any{"contactId": "c-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", gotHeader)
	assert.Equal(t, "workflow.triggered", received["event"])
	assert.Equal(t, "tenant-1", received["tenantId"])
	assert.Equal(t, map[string]any{"contactId": "c-1"}, received["data"])
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := NewWebhookHandler(nil)
	cfg, _ := json.Marshal(map[string]any{"url": srv.URL})

	err := h.Execute(context.Background(), Request{TenantID: "tenant-1", Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhook_Validate(t *testing.T) {
	h := NewWebhookHandler(nil)

	assert.Error(t, h.Validate(json.RawMessage(`{}`)))
	assert.Error(t, h.Validate(json.RawMessage(`{"url":"ftp://example.com"}`)))
	assert.Error(t, h.Validate(json.RawMessage(`{"url":"https://example.com","method":"TRACE"}`)))
	assert.Error(t, h.Validate(json.RawMessage(`{"url":"https://example.com","timeout":"soon"}`)))
	assert.NoError(t, h.Validate(json.RawMessage(`{"url":"https://example.com","method":"put","timeout":"5s"}`)))
}

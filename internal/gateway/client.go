// Package gateway is the HTTP client for the CRM core service. Messaging,
// record mutation, owner assignment, and sequence enrollment live outside the
// engine; action handlers reach them through this client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/treline/relay/internal/actions"
	"github.com/treline/relay/pkg/schema"
)

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBody    = 4 * 1024
	headerTenantID  = "X-Tenant-ID"
	headerAuthToken = "Authorization"
)

// Config configures the gateway client.
type Config struct {
	BaseURL string
	APIKey  string        // optional bearer token for service-to-service auth
	Timeout time.Duration // per-request bound; 0 = defaultTimeout
}

// Client posts JSON to the CRM core endpoints. It implements the actions
// package collaborator interfaces.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var (
	_ actions.MessageSender    = (*Client)(nil)
	_ actions.RecordMutator    = (*Client)(nil)
	_ actions.OwnerAssigner    = (*Client)(nil)
	_ actions.SequenceEnroller = (*Client)(nil)
)

// NewClient creates a Client against the configured base URL.
func NewClient(cfg Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid gateway base URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// SendMessage hands an outbound message to the messaging subsystem. Delivery
// resolves the contact's address when To is empty.
func (c *Client) SendMessage(ctx context.Context, tenantID string, msg actions.OutboundMessage) error {
	return c.post(ctx, tenantID, "/v1/messages", msg)
}

// UpdateRecord applies a partial update to a CRM record.
func (c *Client) UpdateRecord(ctx context.Context, tenantID, recordID string, updates map[string]any) error {
	return c.post(ctx, tenantID, "/v1/records/"+url.PathEscape(recordID), map[string]any{
		"updates": updates,
	})
}

// AssignOwner sets the owner of a record.
func (c *Client) AssignOwner(ctx context.Context, tenantID, recordID, ownerID string) error {
	return c.post(ctx, tenantID, "/v1/records/"+url.PathEscape(recordID)+"/owner", map[string]any{
		"ownerId": ownerID,
	})
}

// AllocateOwner asks the CRM core to pick an owner for the record. The
// allocation policy (round-robin, load-based) is the core's concern.
func (c *Client) AllocateOwner(ctx context.Context, tenantID, recordID string) (string, error) {
	var result struct {
		OwnerID string `json:"ownerId"`
	}
	err := c.postDecode(ctx, tenantID, "/v1/records/"+url.PathEscape(recordID)+"/owner/allocate", struct{}{}, &result)
	if err != nil {
		return "", err
	}
	if result.OwnerID == "" {
		return "", schema.NewError(schema.ErrCodeExecution, "owner allocation returned no owner")
	}
	return result.OwnerID, nil
}

// EnrollInSequence enrolls a contact into an outreach sequence.
func (c *Client) EnrollInSequence(ctx context.Context, tenantID, contactID, sequenceID string) error {
	return c.post(ctx, tenantID, "/v1/sequences/"+url.PathEscape(sequenceID)+"/enrollments", map[string]any{
		"contactId": contactID,
	})
}

func (c *Client) post(ctx context.Context, tenantID, path string, payload any) error {
	return c.postDecode(ctx, tenantID, path, payload, nil)
}

func (c *Client) postDecode(ctx context.Context, tenantID, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "encode gateway payload").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "build gateway request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerTenantID, tenantID)
	if c.apiKey != "" {
		req.Header.Set(headerAuthToken, "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "gateway request to %s failed", path).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return schema.NewErrorf(schema.ErrCodeExecution,
			"gateway request to %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return schema.NewErrorf(schema.ErrCodeExecution, "decode gateway response from %s", path).WithCause(err)
		}
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

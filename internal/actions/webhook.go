package actions

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/treline/relay/pkg/schema"
)

const (
	defaultWebhookTimeout  = 30 * time.Second
	maxWebhookResponseBody = 1 * 1024 * 1024 // discarded, but bounded
)

// WebhookHandler implements the "webhook" action: an outbound HTTP call to a
// tenant-configured URL with the trigger context embedded in the payload.
type WebhookHandler struct {
	client *http.Client
}

// NewWebhookHandler creates a webhook handler. A nil client uses a default
// transport; per-call timeouts come from the action config.
func NewWebhookHandler(client *http.Client) *WebhookHandler {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookHandler{client: client}
}

func (h *WebhookHandler) Type() schema.ActionType { return schema.ActionWebhook }

func (h *WebhookHandler) Validate(config json.RawMessage) error {
	var cfg schema.WebhookConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return schema.NewError(schema.ErrCodeValidation, "webhook: missing required field 'url'")
	}
	u, err := url.ParseRequestURI(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return schema.NewErrorf(schema.ErrCodeValidation, "webhook: invalid url %q", cfg.URL)
	}
	switch strings.ToUpper(cfg.Method) {
	case "", http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "webhook: invalid method %q", cfg.Method)
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "webhook: invalid timeout %q", cfg.Timeout).WithCause(err)
		}
	}
	return nil
}

func (h *WebhookHandler) Execute(ctx context.Context, req Request) error {
	var cfg schema.WebhookConfig
	if err := decodeConfig(req.Config, &cfg); err != nil {
		return err
	}
	if err := h.Validate(req.Config); err != nil {
		return err
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	timeout := defaultWebhookTimeout
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil {
			timeout = d
		}
	}

	payload, err := json.Marshal(map[string]any{
		"event":    "workflow.triggered",
		"tenantId": req.TenantID,
		"data":     req.Trigger,
	})
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "webhook: failed to marshal payload").WithCause(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, cfg.URL, strings.NewReader(string(payload)))
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "webhook: failed to create request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "webhook: request failed: %v", err).WithCause(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxWebhookResponseBody))

	if resp.StatusCode >= 400 {
		return schema.NewErrorf(schema.ErrCodeExecution, "webhook: endpoint returned %d", resp.StatusCode)
	}
	return nil
}

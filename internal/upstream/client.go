package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"commerce-search-api/internal/models"
)

// Client talks to the upstream API family: a search base URL for catalog
// reads and an agent base URL for the conversational endpoints. Read
// endpoints authenticate with the public key as a query parameter, elevated
// reads with basic auth (secret token as username, empty password) and
// writes with a bearer secret token.
//
// An instance is safe to share across sequential calls; the only mutable
// state is the cached credential-verification flag.
type Client struct {
	cfg      Config
	http     *http.Client
	upload   *http.Client
	stream   *http.Client
	verified bool
}

type authMode int

const (
	authPublic authMode = iota
	authBasic
	authBearer
)

func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		upload: &http.Client{Timeout: cfg.UploadTimeout},
		// the streaming client holds connections open for the duration of
		// an SSE exchange, so no overall timeout
		stream: &http.Client{},
	}, nil
}

func (c *Client) AgentDomain() string       { return c.cfg.AgentDomain }
func (c *Client) HasSecretToken() bool      { return c.cfg.SecretToken != "" }
func (c *Client) RetryDelay() time.Duration { return c.cfg.RetryDelay }

// Get performs a public read against the search base with the fixed-delay
// retry policy for idempotent calls.
func (c *Client) Get(ctx context.Context, path string, params Params, attr *Attribution) (map[string]any, error) {
	return c.getWithRetry(ctx, c.cfg.SearchBaseURL, path, params, attr, authPublic)
}

// GetAdmin performs an elevated read (collections admin, task status) with
// basic-auth secret credentials, verifying them lazily first.
func (c *Client) GetAdmin(ctx context.Context, path string, params Params) (map[string]any, error) {
	if c.cfg.SecretToken == "" {
		return nil, &models.ConfigurationError{Setting: "secret token", Reason: "required for authenticated endpoints"}
	}
	if err := c.EnsureVerified(ctx); err != nil {
		return nil, err
	}
	return c.getWithRetry(ctx, c.cfg.SearchBaseURL, path, params, nil, authBasic)
}

// AgentFetch issues one agent request and classifies the complete body as
// JSON or SSE. Agent calls are not retried.
func (c *Client) AgentFetch(ctx context.Context, path string, params Params, attr *Attribution) (*Body, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.AgentBaseURL, path, params, attr, authPublic, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read agent response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, string(raw))
	}

	return SniffBody(raw)
}

// AgentStream opens a true streaming agent connection. The caller owns the
// returned body; closing it is the only way to abort the stream early.
func (c *Client) AgentStream(ctx context.Context, path string, params Params, attr *Attribution) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.AgentBaseURL, path, params, attr, authPublic, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent stream request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, string(raw))
	}

	return resp.Body, nil
}

// UploadFile is one part of a multipart catalog upload.
type UploadFile struct {
	Field    string
	Name     string
	Contents io.Reader
}

// Upload sends a multipart write (catalog upload) with bearer credentials.
// Writes are never retried by this layer.
func (c *Client) Upload(ctx context.Context, method, path string, params Params, files []UploadFile) (map[string]any, error) {
	if err := c.EnsureVerified(ctx); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, fmt.Errorf("build multipart body: %w", err)
		}
		if _, err := io.Copy(part, f.Contents); err != nil {
			return nil, fmt.Errorf("copy %s into multipart body: %w", f.Field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, method, c.cfg.SearchBaseURL, path, params, nil, authBearer, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.doJSON(c.upload, req)
}

// SendJSON sends a bearer-authenticated JSON write (item indexing).
func (c *Client) SendJSON(ctx context.Context, method, path string, params Params, payload any) (map[string]any, error) {
	if err := c.EnsureVerified(ctx); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := c.newRequest(ctx, method, c.cfg.SearchBaseURL, path, params, nil, authBearer, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doJSON(c.http, req)
}

// Verify makes the one-shot credential check and caches the outcome. A
// failure resets the flag so a later call retries; it is not a permanent
// poison state.
func (c *Client) Verify(ctx context.Context) error {
	if c.cfg.SecretToken == "" {
		return &models.ConfigurationError{Setting: "secret token", Reason: "required for credential verification"}
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.SearchBaseURL, "/v1/verify", Params{}, nil, authBasic, nil)
	if err != nil {
		return err
	}
	if _, err := c.doJSON(c.http, req); err != nil {
		c.verified = false
		return err
	}

	c.verified = true
	return nil
}

// EnsureVerified verifies credentials lazily before the first authenticated
// request of this instance's lifetime.
func (c *Client) EnsureVerified(ctx context.Context) error {
	if c.verified {
		return nil
	}
	return c.Verify(ctx)
}

func (c *Client) newRequest(ctx context.Context, method, base, path string, params Params, attr *Attribution, mode authMode, body io.Reader) (*http.Request, error) {
	// enrich a copy so the caller's parameter set is never aliased
	merged := make(Params, len(params)+6)
	for k, v := range params {
		merged[k] = v
	}
	merged["key"] = c.cfg.APIKey
	merged["_dt"] = time.Now().UnixMilli()
	attr.applyParams(merged)

	url := strings.TrimSuffix(base, "/") + path + "?" + merged.Encode().Encode()
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	switch mode {
	case authBasic:
		req.SetBasicAuth(c.cfg.SecretToken, "")
	case authBearer:
		req.Header.Set("Authorization", "Bearer "+c.cfg.SecretToken)
	}
	attr.applyHeaders(req.Header)

	return req, nil
}

// getWithRetry applies the fixed-count, fixed-delay retry policy. Only
// transport failures and 5xx responses are retried.
func (c *Client) getWithRetry(ctx context.Context, base, path string, params Params, attr *Attribution, mode authMode) (map[string]any, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			log.Printf("Retrying %s (attempt %d/%d)", path, attempt+1, c.cfg.RetryCount+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		req, err := c.newRequest(ctx, http.MethodGet, base, path, params, attr, mode, nil)
		if err != nil {
			return nil, err
		}

		result, err := c.doJSON(c.http, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) doJSON(client *http.Client, req *http.Request) (map[string]any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, string(raw))
	}

	decoded := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return decoded, nil
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	return decoded, nil
}

func statusError(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &models.RateLimitError{StatusCode: status}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &models.AuthenticationError{StatusCode: status}
	default:
		return &models.UpstreamRequestError{StatusCode: status, Body: body}
	}
}

func retryable(err error) bool {
	var upstreamErr *models.UpstreamRequestError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode >= 500
	}
	var rateErr *models.RateLimitError
	var authErr *models.AuthenticationError
	if errors.As(err, &rateErr) || errors.As(err, &authErr) {
		return false
	}
	// transport-level failure
	return true
}

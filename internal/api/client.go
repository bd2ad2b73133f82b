// Package api is the console's HTTP client for the Wg Gen Plus backend.
// Every call returns either the decoded payload or an *APIError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
)

// HeaderName carries the session token on authenticated requests.
const HeaderName = "x-wg-gen-plus-auth"

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// DefaultTimeout is used when no http.Client is supplied.
	DefaultTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads. Config files and
	// resource lists are small.
	maxAPIResponseBytes = 4 * 1024 * 1024
)

// TokenSource supplies the current session token. The token store
// satisfies it.
type TokenSource interface {
	Token() string
}

// Client talks to the backend REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	logger     *slog.Logger

	retries      int
	retryBackoff time.Duration

	mu        sync.RWMutex
	authToken string
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host, so the auth header never reaches a
// third-party domain.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewHTTPClient returns an http.Client with the given timeout and the
// same-host redirect policy.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: sameHostRedirectPolicy,
	}
}

// NewClient creates an API client rooted at baseURL. If httpClient is nil
// a default one is created. The auth header stays empty until SetHeader
// is called.
func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		logger:     logger,
	}
}

// SetHeader copies the stored token into the header attached to every
// subsequent request. Call it after each token change. When the store
// holds no token the header is dropped.
func (c *Client) SetHeader() {
	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}

	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

// SetRetry makes GET requests retry up to n times when they fail with a
// transient error, waiting backoff, then twice that, and so on. Write
// verbs are never retried.
func (c *Client) SetRetry(n int, backoff time.Duration) {
	c.retries = max(n, 0)
	c.retryBackoff = backoff
}

// Get fetches path and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

// GetRaw fetches path and returns the body untouched.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	return c.doRetry(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPut, path, body, out)
}

// Patch sends body as JSON and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPatch, path, body, out)
}

// Delete removes the resource at path. out may be nil.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	respBody, err := c.doRetry(ctx, method, path, body)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decoding response from %s: %v", errs.ErrAPIResponse, path, err)
	}

	return nil
}

// doRetry sends a request through do, repeating idempotent GETs that
// fail with a transient error.
func (c *Client) doRetry(ctx context.Context, method, path string, body any) ([]byte, error) {
	respBody, err := c.do(ctx, method, path, body)
	if method != http.MethodGet {
		return respBody, err
	}

	backoff := c.retryBackoff

	for attempt := 1; attempt <= c.retries && err != nil && IsTransient(err); attempt++ {
		c.logger.Debug("retrying api request",
			slog.String("path", path),
			slog.Int("status", StatusCode(err)),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}

		backoff *= 2
		respBody, err = c.do(ctx, method, path, body)
	}

	return respBody, err
}

// do sends one request. body is JSON-encoded when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	// Write verbs always declare JSON, whatever the transport defaults are.
	if body != nil || method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.authToken
	c.mu.RUnlock()

	if token != "" {
		req.Header.Set(HeaderName, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return nil, &APIError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, &APIError{Method: method, Path: path, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Payload:    parsePayload(respBody),
			Body:       sanitizeResponseBody(respBody),
			Err:        errs.ErrAPIRequest,
		}
	}

	return respBody, nil
}

// Package gateway is the single configured HTTP client all stores issue
// requests through. It attaches the bearer token, enforces the request
// timeout, and records client-side metrics. There is deliberately no
// retry, no deduplication, and no backoff: each store catches failures
// and degrades on its own.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"renomarket.org/internal/config"
	"renomarket.org/internal/ids"
	"renomarket.org/internal/obs"
)

var (
	// ErrNotFound maps 404s; stores render an empty state on it.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized maps 401/403; the guard owns the consequence.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError carries a non-2xx response the sentinels don't cover.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// TokenSource supplies the current bearer token. An empty token means the
// request goes out unauthenticated (the backend will reject protected paths).
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to a TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client is the remote data gateway.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds the gateway from config. The http.Client may be overridden
// with WithHTTPClient for tests.
func New(cfg config.Config, tokens TokenSource, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.APIBaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	c := &Client{
		base:    base,
		http:    &http.Client{},
		tokens:  tokens,
		timeout: cfg.RequestTimeout,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Mutating verbs carry an Idempotency-Key so an accidental duplicate cannot
// double-apply on the server.

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", ids.New())
	}
	c.authorize(req)

	done := obs.RequestStarted()
	start := time.Now()
	resp, err := c.http.Do(req)
	done()
	if err != nil {
		obs.ObserveRequest(method, path, 0, time.Since(start))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	obs.ObserveRequest(method, path, resp.StatusCode, time.Since(start))

	if err := statusError(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := strings.TrimSpace(c.tokens.Token()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		msg = body.Error
		if msg == "" {
			msg = body.Message
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// Upload sends a file as multipart form data and returns the stored URL.
// Chat attachments go through here before the realtime emit.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("multipart copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+"/api/uploads", &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Idempotency-Key", ids.New())
	c.authorize(req)

	done := obs.RequestStarted()
	start := time.Now()
	resp, err := c.http.Do(req)
	done()
	if err != nil {
		obs.ObserveRequest(http.MethodPost, "/api/uploads", 0, time.Since(start))
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	obs.ObserveRequest(http.MethodPost, "/api/uploads", resp.StatusCode, time.Since(start))

	if err := statusError(resp); err != nil {
		return UploadResult{}, err
	}
	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	return result, nil
}

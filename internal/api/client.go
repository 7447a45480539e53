// Package api is a typed client for the remote finance API.
//
// Credentials are never stored on the client: every authenticated call
// receives them explicitly, so one Client serves all users concurrently.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fincontrol/internal/log"
)

// Credentials identify the caller to the API.
type Credentials struct {
	Token  string
	UserID string
}

// Valid reports whether both the token and the user ID are present.
func (c Credentials) Valid() bool {
	return c.Token != "" && c.UserID != ""
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	retryDelay time.Duration
	http       *http.Client
	logger     *log.Logger
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 7 * time.Second
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		http:       opts.HTTPClient,
		logger:     opts.Logger.WithComponent(log.ComponentAPI),
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the API answers at all; any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping api: %w", err)
	}
	resp.Body.Close()
	return nil
}

type request struct {
	method string
	path   string
	cred   *Credentials
	body   any
	// retry allows one more attempt after a network error or 5xx.
	retry bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if r.cred != nil && !r.cred.Valid() {
		return ErrNoCredentials
	}
	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
	}

	attempts := 1
	if r.retry {
		attempts = 2
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.logger.WarnContext(ctx, "Retrying API request",
				log.FieldMethod, r.method,
				log.FieldEndpoint, r.path,
				log.FieldAttempt, attempt+1,
				log.FieldError, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		lastErr = c.once(ctx, r, payload, out)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, r request, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.cred != nil {
		req.Header.Set("Authorization", "Bearer "+r.cred.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &netError{err: fmt.Errorf("%s %s: %w", r.method, r.path, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &netError{err: fmt.Errorf("read %s %s: %w", r.method, r.path, err)}
	}

	c.logger.DebugContext(ctx, "API request completed",
		log.FieldMethod, r.method,
		log.FieldEndpoint, r.path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", r.method, r.path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &Error{Method: r.method, Endpoint: r.path, Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// netError marks transport failures, which are worth one retry.
type netError struct{ err error }

func (e *netError) Error() string { return e.err.Error() }
func (e *netError) Unwrap() error { return e.err }

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne *netError
	if errors.As(err, &ne) {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// errorMessage pulls a human message out of an error body such as
// {"error":"..."} or {"message":"..."}.
func errorMessage(body []byte) string {
	var m struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if s, ok := m.Error.(string); ok && s != "" {
			return s
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

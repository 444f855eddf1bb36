// Package api is the HTTP client for the task REST API. It
// attaches the bearer token, refreshes it once on 401 and translates every
// failure into *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RefreshPath is the token refresh endpoint.
const RefreshPath = "/api/auth/refresh"

const authPrefix = "/api/auth/"

// TokenSource holds the bearer token. It is read on every request.
type TokenSource interface {
	Get() (string, bool)
	Save(token string) error
	Remove() error
}

// Signal is notified when a refresh fails and the session ends.
type Signal interface {
	Publish()
}

// Client is a JSON client for the REST API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	signal     Signal
	log        *logrus.Entry
	metrics    *Metrics

	refresh refreshGroup
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l.WithField("component", "api_client") }
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUnauthorizedSignal sets the signal published when a refresh fails.
func WithUnauthorizedSignal(s Signal) Option {
	return func(c *Client) { c.signal = s }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		log:    logrus.NewEntry(discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request and decodes the response data into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPut, path, body, result)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPatch, path, body, result)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends one request. A 401 on an authenticated, non-auth endpoint
// triggers at most one token refresh and one retry.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return unknownError("encoding request body", err)
		}
		payload = data
	}

	token, hasToken := c.tokens.Get()
	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && hasToken && !strings.HasPrefix(path, authPrefix) {
		fresh, err := c.refreshToken(ctx, token)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload, fresh)
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			return unauthorizedError(errorFromResponse(resp))
		}
	}

	return decodeResponse(resp, result)
}

type response struct {
	status int
	body   []byte
}

// send performs a single HTTP round trip. Only transport failures are
// returned as errors; every status code is handed back to the caller.
func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	payload []byte,
	token string,
) (*response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, unknownError("creating request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(method, path, 0, time.Since(start))
		c.log.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Debug("request failed")
		return nil, networkError(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.observe(method, path, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, networkError(fmt.Errorf("reading response body: %w", err))
	}

	c.log.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("request completed")

	return &response{status: resp.StatusCode, body: data}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func decodeResponse(resp *response, result any) error {
	if resp.status < 200 || resp.status >= 300 {
		return errorFromResponse(resp)
	}
	if result == nil || resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return unknownError("decoding response", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return unknownError("decoding response data", err)
	}
	return nil
}

// errorFromResponse classifies a non-2xx response. A structured error body
// supplies code and message; anything else falls back to "HTTP <status>".
func errorFromResponse(resp *response) *Error {
	apiErr := &Error{
		Kind:    KindServer,
		Status:  resp.status,
		Message: fmt.Sprintf("HTTP %d", resp.status),
	}

	var env envelope
	if json.Unmarshal(resp.body, &env) == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
		if len(env.Error.Details) > 0 {
			var details any
			if json.Unmarshal(env.Error.Details, &details) == nil {
				apiErr.Details = details
			}
		}
	}

	switch {
	case resp.status == http.StatusUnauthorized:
		apiErr.Kind = KindUnauthorized
	case resp.status >= 400 && resp.status < 500 && apiErr.Code != "":
		apiErr.Kind = KindValidation
	}
	return apiErr
}

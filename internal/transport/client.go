// Package transport speaks the playground service's HTTP protocol: starting
// runs, streaming program output as server-sent events, relaying stdin lines
// and formatting source.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asheshgoplani/play-deck/internal/logging"
)

var transportLog = logging.ForComponent(logging.CompTransport)

const (
	// HeaderPreviousSession tells the service which run a new request supersedes.
	HeaderPreviousSession = "X-Previous-Session"
	// HeaderRequestID correlates client and server logs.
	HeaderRequestID = "X-Request-ID"

	// DefaultTimeout bounds request/response calls. Output streams are not
	// subject to it; they live as long as the run.
	DefaultTimeout = 30 * time.Second
)

// Client talks to one playground service.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	stream  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for request/response calls. Its
// Transport is also used for streams, without the timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
		c.stream = &http.Client{Transport: hc.Transport}
	}
}

// WithTimeout sets the request/response timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		stream:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Run starts a new run of code. previousID names the run being superseded and
// may be empty. The returned id is opaque.
func (c *Client) Run(ctx context.Context, code, previousID string) (string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/run", nil, map[string]string{"code": code})
	if err != nil {
		return "", err
	}
	req.Header.Set(HeaderPreviousSession, previousID)

	resp, err := c.do(c.http, req)
	if err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", newRequestError("run", resp)
	}

	var payload struct {
		SessionID json.RawMessage `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("run: decode response: %w", err)
	}
	id, err := decodeSessionID(payload.SessionID)
	if err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	return id, nil
}

// OpenStream opens the program-output stream for a session. Cancelling ctx
// closes the connection.
func (c *Client) OpenStream(ctx context.Context, sessionID string) (*Stream, error) {
	query := url.Values{"sessionId": {sessionID}}
	req, err := c.newRequest(ctx, http.MethodGet, "/program-output", query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(c.stream, req)
	if err != nil {
		return nil, fmt.Errorf("program-output: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, newRequestError("program-output", resp)
	}
	return NewStream(resp.Body), nil
}

// SendInput relays one line of stdin to a running session.
func (c *Client) SendInput(ctx context.Context, sessionID, input string) error {
	query := url.Values{"sessionId": {sessionID}}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/send-input", query, map[string]string{"input": input})
	if err != nil {
		return err
	}

	resp, err := c.do(c.http, req)
	if err != nil {
		return fmt.Errorf("send-input: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return newRequestError("send-input", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Format asks the service to reformat code and returns the result.
func (c *Client) Format(ctx context.Context, code string) (string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/save", nil, map[string]string{"code": code})
	if err != nil {
		return "", err
	}

	resp, err := c.do(c.http, req)
	if err != nil {
		return "", fmt.Errorf("save: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", newRequestError("save", resp)
	}

	var payload struct {
		Code *string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("save: decode response: %w", err)
	}
	if payload.Code == nil {
		return "", fmt.Errorf("save: response has no code")
	}
	return *payload.Code, nil
}

// Health reports whether the service answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(c.http, req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return newRequestError("health", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := c.newRequest(ctx, method, path, query, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	return req, nil
}

func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		transportLog.Debug("request_failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.String("request_id", req.Header.Get(HeaderRequestID)),
			slog.String("error", err.Error()))
		return nil, err
	}
	transportLog.Debug("request_done",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("request_id", req.Header.Get(HeaderRequestID)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// decodeSessionID accepts a JSON string or number. The reference server
// hands out numeric ids; others use strings.
func decodeSessionID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("response has no sessionId")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("response has empty sessionId")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unexpected sessionId %s", raw)
	}
	return n.String(), nil
}

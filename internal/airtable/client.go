// Package airtable provides a minimal client for the Airtable Web API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the fixed host for the Airtable Web API.
const DefaultBaseURL = "https://api.airtable.com/v0"

// ErrCredentialRequired is returned before any network I/O when the client
// has no API key.
var ErrCredentialRequired = errors.New("airtable: credential required (set AIRTABLE_API_KEY)")

// Error is a non-2xx response from the Airtable API.
type Error struct {
	Message    string
	StatusCode int
	// Payload is the raw error body as returned by Airtable, if any.
	Payload json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("airtable: %s (status %d)", e.Message, e.StatusCode)
}

// Client is a minimal HTTP client for the Airtable Web API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host, used by tests to point at a fake.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.BaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTP = h }
}

// New returns a new client. No request timeout is set beyond the transport
// default; callers bound calls through the context.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{BaseURL: DefaultBaseURL, APIKey: apiKey, HTTP: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs exactly one round trip against the API. The path is joined
// to the base URL and may carry an encoded query string. On a non-2xx
// response it returns *Error; network-level failures are returned unchanged.
func (c *Client) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if c.APIKey == "" {
		return nil, ErrCredentialRequired
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("airtable: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(resp.StatusCode, data)
	}
	return data, nil
}

// newError extracts the Airtable-reported message, falling back to the HTTP
// status text. Airtable error bodies come as {"error":{"type","message"}} or
// {"error":"NOT_FOUND"}.
func newError(status int, body []byte) *Error {
	e := &Error{Message: http.StatusText(status), StatusCode: status}
	if len(body) > 0 {
		e.Payload = json.RawMessage(body)
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return e
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
		e.Message = detail.Message
		return e
	}
	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
		e.Message = plain
	}
	return e
}

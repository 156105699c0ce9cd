package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseClient holds one open streaming connection and a line reader over it.
type sseClient struct {
	cancel    context.CancelFunc
	body      *bufio.Reader
	closeBody func()
	sessionID string
}

func dialSSE(t *testing.T, baseURL string) *sseClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &sseClient{
		cancel:    cancel,
		body:      bufio.NewReader(resp.Body),
		closeBody: func() { _ = resp.Body.Close() },
	}
	t.Cleanup(c.close)

	event, data := c.nextEvent(t)
	require.Equal(t, "endpoint", event)
	require.Contains(t, data, "/message?sessionId=")
	c.sessionID = strings.TrimPrefix(data, "/message?sessionId=")
	return c
}

func (c *sseClient) close() {
	c.cancel()
	c.closeBody()
}

// nextEvent reads one SSE block, returning its event name and data. Comment
// lines come back with event "comment".
func (c *sseClient) nextEvent(t *testing.T) (string, string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	var event, data string
	for {
		go func() {
			line, err := c.body.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			lines <- strings.TrimRight(line, "\n")
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for an event")
		case err := <-errs:
			t.Fatalf("stream read failed: %v", err)
		case line := <-lines:
			switch {
			case line == "":
				if event != "" || data != "" {
					return event, data
				}
			case strings.HasPrefix(line, ":"):
				event, data = "comment", strings.TrimSpace(strings.TrimPrefix(line, ":"))
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}
}

func newStreamingServer(t *testing.T, heartbeat time.Duration) (*Server, string) {
	t.Helper()
	s := New(Config{APIKey: "k", Heartbeat: heartbeat})
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts.URL
}

func TestSSEHeartbeat(t *testing.T) {
	_, baseURL := newStreamingServer(t, 50*time.Millisecond)
	c := dialSSE(t, baseURL)

	event, data := c.nextEvent(t)
	assert.Equal(t, "comment", event)
	assert.Contains(t, data, "ping")
}

func TestSSEMessageRoundTrip(t *testing.T) {
	_, baseURL := newStreamingServer(t, time.Minute)
	c := dialSSE(t, baseURL)

	payload := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	resp, err := http.Post(baseURL+"/message?sessionId="+c.sessionID, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	event, data := c.nextEvent(t)
	require.Equal(t, "message", event)
	var rpc struct {
		Id     json.RawMessage `json:"id"`
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &rpc))
	assert.Equal(t, "1", string(rpc.Id))
	assert.Len(t, rpc.Result.Tools, 10)
}

func TestSSENotification(t *testing.T) {
	_, baseURL := newStreamingServer(t, time.Minute)
	c := dialSSE(t, baseURL)

	payload := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	resp, err := http.Post(baseURL+"/message?sessionId="+c.sessionID, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSSEUnknownSession(t *testing.T) {
	_, baseURL := newStreamingServer(t, time.Minute)

	payload := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	resp, err := http.Post(baseURL+"/message?sessionId=missing", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSSEDisconnectTeardown(t *testing.T) {
	s, baseURL := newStreamingServer(t, 50*time.Millisecond)
	first := dialSSE(t, baseURL)
	second := dialSSE(t, baseURL)
	require.Equal(t, 2, s.Streams())

	first.close()

	// The disconnected stream is deregistered within one interval.
	deadline := time.Now().Add(2 * time.Second)
	for s.Streams() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 live stream, got %d", s.Streams())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The surviving client keeps its heartbeat.
	event, data := second.nextEvent(t)
	assert.Equal(t, "comment", event)
	assert.Contains(t, data, "ping")
}

package airtable

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallHeaders(t *testing.T) {
	var gotAuth, gotContentType, gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	c := New("key123", WithBaseURL(backend.URL))
	data, err := c.Call(context.Background(), http.MethodGet, "/meta/bases/app1/tables", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected payload: %s", data)
	}
	if gotAuth != "Bearer key123" {
		t.Fatalf("expected bearer credential, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotContentType)
	}
	if gotPath != "/meta/bases/app1/tables" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestCallMissingCredential(t *testing.T) {
	calls := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer backend.Close()

	c := New("", WithBaseURL(backend.URL))
	_, err := c.Call(context.Background(), http.MethodGet, "/app1/tbl1", nil)
	if !errors.Is(err, ErrCredentialRequired) {
		t.Fatalf("expected ErrCredentialRequired, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no network I/O, got %d calls", calls)
	}
}

func TestCallRemoteError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"MODEL_ID_NOT_FOUND","message":"Record not found"}}`))
	}))
	defer backend.Close()

	c := New("key", WithBaseURL(backend.URL))
	_, err := c.Call(context.Background(), http.MethodGet, "/app1/tbl1/rec1", nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Record not found" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
	if len(apiErr.Payload) == 0 {
		t.Fatal("expected raw error payload to be retained")
	}
}

func TestCallRemoteErrorStringBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"NOT_AUTHORIZED"}`))
	}))
	defer backend.Close()

	c := New("key", WithBaseURL(backend.URL))
	_, err := c.Call(context.Background(), http.MethodGet, "/app1/tbl1", nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Message != "NOT_AUTHORIZED" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestCallNetworkErrorPassthrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // refuse connections

	c := New("key", WithBaseURL(backend.URL))
	_, err := c.Call(context.Background(), http.MethodGet, "/app1/tbl1", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		t.Fatalf("network failure must not carry a fabricated status code: %v", err)
	}
}

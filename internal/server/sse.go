package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
)

// handleSSE upgrades the request to a long-lived event stream. Each
// connection gets its own session and heartbeat; one client's slow call
// never blocks another client's stream.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	st := newStream(uuid.NewString(), s.session.NewHandler(r.Context(), nil))
	s.streams.add(st)
	defer func() {
		s.streams.remove(st.id)
		st.close()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Connection acknowledgement: tell the client where to post requests.
	if _, err := fmt.Fprintf(w, "event: endpoint\ndata: /message?sessionId=%s\n\n", st.id); err != nil {
		slog.Warn("sse: endpoint event failed", "session", st.id, "err", err)
		return
	}
	flusher.Flush()
	slog.Info("sse: client connected", "session", st.id)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Info("sse: client disconnected", "session", st.id)
			return
		case <-ticker.C:
			// Comment-framed keep-alive; every SSE client ignores it.
			if _, err := fmt.Fprintf(w, ": ping - %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
				slog.Warn("sse: heartbeat failed", "session", st.id, "err", err)
				return
			}
			flusher.Flush()
		case msg := <-st.out:
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg); err != nil {
				slog.Warn("sse: event write failed", "session", st.id, "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

// handleMessage accepts one jsonrpc request or notification for a connected
// stream and queues the response onto that stream. The response to the POST
// itself is always 202; protocol results travel over the event stream.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	st, ok := s.streams.get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	var message struct {
		Jsonrpc string          `json:"jsonrpc"`
		Id      any             `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &message); err != nil || message.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid jsonrpc message"})
		return
	}

	if message.Id == nil {
		st.handler.OnNotification(r.Context(), &jsonrpc.Notification{
			Jsonrpc: message.Jsonrpc,
			Method:  message.Method,
			Params:  message.Params,
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	request := &jsonrpc.Request{
		Jsonrpc: message.Jsonrpc,
		Id:      message.Id,
		Method:  message.Method,
		Params:  message.Params,
	}
	response := &jsonrpc.Response{Jsonrpc: jsonrpc.Version, Id: message.Id}
	st.handler.Serve(r.Context(), request, response)

	data, err := json.Marshal(response)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode response"})
		return
	}
	// A torn-down stream discards the result; there is no channel left to
	// deliver it on.
	if !st.deliver(data) {
		slog.Info("sse: response discarded, stream closed", "session", st.id, "method", message.Method)
	}
	w.WriteHeader(http.StatusAccepted)
}

// Package server provides the HTTP transport for the bridge: the SSE
// streaming channel, the message endpoint, and the plain REST facade that
// shares the same protocol session.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"airtable-mcp/internal/airtable"
	"airtable-mcp/internal/mcp"
	"airtable-mcp/internal/tool"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
)

// DefaultHeartbeat is the keep-alive interval for streaming connections.
const DefaultHeartbeat = 30 * time.Second

// knownRoutes is reported on unmatched paths.
var knownRoutes = []string{
	"GET /health",
	"GET /info",
	"GET /sse",
	"POST /message?sessionId=...",
	"GET /api/tools",
	"POST /api/tools/{toolName}",
	"POST /api/mcp",
}

// Config contains server configuration values.
type Config struct {
	Port   string
	APIKey string
	// APIBaseURL overrides the Airtable host, used by tests.
	APIBaseURL string
	// Heartbeat overrides DefaultHeartbeat, used by tests.
	Heartbeat time.Duration
}

// Server contains the configured router, the shared protocol session, and
// the live stream registry.
type Server struct {
	cfg       Config
	router    *chi.Mux
	session   *mcp.Session
	streams   *registry
	heartbeat time.Duration
}

// New constructs a Server with middleware and routes configured.
func New(cfg Config) *Server {
	var clientOpts []airtable.Option
	if cfg.APIBaseURL != "" {
		clientOpts = append(clientOpts, airtable.WithBaseURL(cfg.APIBaseURL))
	}
	tools := tool.New(airtable.New(cfg.APIKey, clientOpts...))

	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		session:   mcp.NewSession(mcp.Identity(), tools),
		streams:   newRegistry(),
		heartbeat: cfg.Heartbeat,
	}
	if s.heartbeat <= 0 {
		s.heartbeat = DefaultHeartbeat
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/info", s.handleInfo)

	s.router.Get("/sse", s.handleSSE)
	s.router.Post("/message", s.handleMessage)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{toolName}", s.handleCallTool)
		r.Post("/mcp", s.handlePassthrough)
	})

	s.router.NotFound(s.handleNotFound)

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// Streams reports the number of live streaming connections.
func (s *Server) Streams() int { return s.streams.count() }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := s.session.Info()
	writeJSON(w, http.StatusOK, map[string]string{
		"name":            info.Name,
		"version":         info.Version,
		"protocolVersion": schema.LatestProtocolVersion,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":  "not found",
		"routes": knownRoutes,
	})
}

// handleListTools serves the catalog through the same session as the
// streaming transport, via a synthetic tools/list request.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.serveFacade(w, r, schema.MethodToolsList, json.RawMessage(`{}`))
}

// handleCallTool invokes one tool; the request body carries the arguments.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	arguments := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&arguments); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	params, err := json.Marshal(schema.CallToolRequestParams{
		Name:      chi.URLParam(r, "toolName"),
		Arguments: arguments,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid arguments"})
		return
	}
	s.serveFacade(w, r, schema.MethodToolsCall, params)
}

// handlePassthrough gives ad-hoc access to any protocol method.
func (s *Server) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if body.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method is required"})
		return
	}
	if len(body.Params) == 0 {
		body.Params = json.RawMessage(`{}`)
	}
	s.serveFacade(w, r, body.Method, body.Params)
}

// serveFacade drives the protocol session with a synthetic request and
// translates the result/error envelope into a plain HTTP response.
func (s *Server) serveFacade(w http.ResponseWriter, r *http.Request, method string, params json.RawMessage) {
	request := &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Method: method, Params: params}
	response := &jsonrpc.Response{Jsonrpc: jsonrpc.Version}
	s.session.Serve(r.Context(), request, response)
	if response.Error != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": response.Error.Message,
			"code":  response.Error.Code,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(response.Result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

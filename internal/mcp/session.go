// Package mcp implements the protocol session: the jsonrpc handler exposing
// the tool catalog and dispatcher behind the MCP request kinds.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"airtable-mcp/internal/tool"

	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"
)

// Session serves the MCP request kinds for one connected client. It keeps no
// conversation state; identity and the tool service are shared and immutable.
type Session struct {
	info  schema.Implementation
	tools *tool.Service
}

// NewSession returns a session bound to the given server identity.
func NewSession(info schema.Implementation, tools *tool.Service) *Session {
	return &Session{info: info, tools: tools}
}

// Info returns the server identity advertised at initialization.
func (s *Session) Info() schema.Implementation { return s.info }

// NewHandler is a jsonrpc handler factory: one fresh session per transport
// connection.
func (s *Session) NewHandler(_ context.Context, _ transport.Transport) transport.Handler {
	return NewSession(s.info, s.tools)
}

// Serve handles one inbound jsonrpc request. Only initialize, ping,
// tools/list and tools/call are known; everything else is method-not-found.
func (s *Session) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	if request.Jsonrpc != jsonrpc.Version {
		response.Error = jsonrpc.NewInvalidRequest("invalid JSON-RPC version", nil)
		return
	}
	switch request.Method {
	case schema.MethodInitialize:
		s.setResult(response, &schema.InitializeResult{
			ProtocolVersion: schema.LatestProtocolVersion,
			ServerInfo:      s.info,
			Capabilities: schema.ServerCapabilities{
				Tools: &schema.ServerCapabilitiesTools{},
			},
		})
	case schema.MethodPing:
		s.setResult(response, &schema.PingResult{})
	case schema.MethodToolsList:
		s.setResult(response, &schema.ListToolsResult{Tools: s.tools.Tools()})
	case schema.MethodToolsCall:
		var params schema.CallToolRequestParams
		if err := json.Unmarshal(request.Params, &params); err != nil {
			response.Error = jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse params: %v", err), request.Params)
			return
		}
		s.setResult(response, s.tools.Dispatch(ctx, params.Name, params.Arguments))
	default:
		response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("method %q not found", request.Method), request.Params)
	}
}

func (s *Session) setResult(response *jsonrpc.Response, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		response.Error = jsonrpc.NewInternalError(err.Error(), nil)
		return
	}
	response.Result = data
}

// OnNotification handles inbound notifications; the session has nothing to
// track, so they are acknowledged by doing nothing.
func (s *Session) OnNotification(_ context.Context, notification *jsonrpc.Notification) {
	if notification.Method != schema.MethodNotificationInitialized {
		slog.Debug("ignoring notification", "method", notification.Method)
	}
}

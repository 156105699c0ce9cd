// Package tool holds the tool catalog advertised to MCP callers and the
// dispatcher that maps one tool invocation to one Airtable API call.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"airtable-mcp/internal/airtable"

	"github.com/viant/mcp-protocol/schema"
)

// definition binds one catalog entry to its dispatch branch. The catalog
// slice fixes the advertised order; byName gives the lookup.
type definition struct {
	tool schema.Tool
	run  func(ctx context.Context, args json.RawMessage) (string, error)
}

// Service resolves tool names to handlers once at construction.
type Service struct {
	client *airtable.Client
	defs   []*definition
	byName map[string]*definition
}

// New builds the catalog and its name lookup. The client may point at a test
// backend via airtable.WithBaseURL.
func New(client *airtable.Client) *Service {
	s := &Service{client: client}
	s.defs = s.definitions()
	s.byName = make(map[string]*definition, len(s.defs))
	for _, def := range s.defs {
		s.byName[def.tool.Name] = def
	}
	return s
}

// Tools returns the catalog in its advertised order. The slice is built once
// and never mutated, so it is safe for any number of concurrent callers.
func (s *Service) Tools() []schema.Tool {
	tools := make([]schema.Tool, len(s.defs))
	for i, def := range s.defs {
		tools[i] = def.tool
	}
	return tools
}

// Dispatch runs one tool invocation and always produces a result: every
// failure, local or remote, is converted into an IsError text block. An
// unrecognized name never reaches the network.
func (s *Service) Dispatch(ctx context.Context, name string, arguments map[string]any) *schema.CallToolResult {
	def, ok := s.byName[name]
	if !ok {
		return errorResult(fmt.Errorf("unknown tool %q", name))
	}
	raw, err := json.Marshal(arguments)
	if err != nil {
		return errorResult(fmt.Errorf("invalid arguments: %v", err))
	}
	text, err := def.run(ctx, raw)
	if err != nil {
		return errorResult(err)
	}
	return textResult(text)
}

func textResult(text string) *schema.CallToolResult {
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{{Type: "text", Text: text}},
	}
}

// errorResult renders a failure as a tool result. Remote failures keep their
// status code so the caller can tell API rejections from dispatcher faults.
func errorResult(err error) *schema.CallToolResult {
	var apiErr *airtable.Error
	var text string
	if errors.As(err, &apiErr) {
		text = fmt.Sprintf("Airtable API error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		if len(apiErr.Payload) > 0 {
			text += "\n" + string(apiErr.Payload)
		}
	} else {
		text = "Error: " + err.Error()
	}
	isError := true
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{{Type: "text", Text: text}},
		IsError: &isError,
	}
}

// prettyJSON re-indents a remote payload for the text content block.
func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	return nil
}

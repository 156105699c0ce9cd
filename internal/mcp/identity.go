package mcp

import "github.com/viant/mcp-protocol/schema"

// Server identity advertised at initialization and on /info.
const (
	Name    = "airtable-mcp"
	Version = "1.0.0"
)

// Identity returns the implementation descriptor shared by all transports.
func Identity() schema.Implementation {
	return schema.Implementation{Name: Name, Version: Version}
}

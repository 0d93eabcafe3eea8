package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with the login scoring tools
// registered.
func NewMCPServer(scorer Scorer, version string) *server.MCPServer {
	s := server.NewMCPServer("precog", version)
	h := NewHandlers(scorer)

	s.AddTool(ToolScoreLogin, h.HandleScoreLogin)
	s.AddTool(ToolMapProtocol, h.HandleMapProtocol)

	return s
}

// precog MCP server - exposes login risk scoring as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/precog/internal/config"
	"github.com/mbd888/precog/internal/decision"
	"github.com/mbd888/precog/internal/mcpserver"
)

// Version is set by ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so the client logs to stderr at the
	// configured PRECOG_LOG_LEVEL.
	client, err := decision.NewClient(cfg.ClientConfig(nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "decision client: %v\n", err)
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(client, Version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

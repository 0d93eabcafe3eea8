package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the precog MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolScoreLogin = mcp.NewTool("score_login",
	mcp.WithDescription(
		"Score a successful login against the Precognitive fraud-risk API. "+
			"Returns the decision (allow, review or reject), score, confidence, signals "+
			"and whether the login would be let through. If the scoring service is unreachable "+
			"the login is allowed and the signal 'unable-to-decision' is returned."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("Identity provider user id (e.g. 'auth0|5f1c...')")),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Authentication session id, sent as the event id")),
	mcp.WithString("protocol",
		mcp.Description("Authentication protocol (e.g. 'oidc-basic-profile', 'samlp', 'oauth2-refresh-token')")),
	mcp.WithString("ip_address",
		mcp.Description("Client IP address of the login request")),
	mcp.WithString("user_agent",
		mcp.Description("User-Agent header of the login request")),
)

var ToolMapProtocol = mcp.NewTool("map_protocol",
	mcp.WithDescription(
		"Look up the authentication type (password, single_sign_on or key) sent for a protocol. "+
			"Protocols without a category are reported as unmapped and are scored with a null type."),
	mcp.WithString("protocol",
		mcp.Required(),
		mcp.Description("Authentication protocol to look up")),
)

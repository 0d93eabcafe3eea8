package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/precog/internal/decision"
)

// Scorer is the part of decision.Client the tools need.
type Scorer interface {
	Decision(ctx context.Context, user *decision.User, authCtx *decision.AuthContext, opts ...decision.Option) (*decision.ScoringResponse, error)
}

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	scorer Scorer
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(scorer Scorer) *Handlers {
	return &Handlers{scorer: scorer}
}

// HandleScoreLogin scores one login and reports the verdict.
func (h *Handlers) HandleScoreLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	user := &decision.User{UserID: userID}
	authCtx := &decision.AuthContext{
		SessionID: sessionID,
		Protocol:  decision.Protocol(req.GetString("protocol", "")),
		Request: decision.RequestInfo{
			IP:        req.GetString("ip_address", ""),
			UserAgent: req.GetString("user_agent", ""),
		},
	}

	resp, err := h.scorer.Decision(ctx, user, authCtx)
	if err != nil {
		if errors.Is(err, decision.ErrInvalidRequest) {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid login: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Scoring failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatScore(resp)), nil
}

// HandleMapProtocol reports the authentication type for a protocol.
func (h *Handlers) HandleMapProtocol(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	protocol := req.GetString("protocol", "")
	if protocol == "" {
		return mcp.NewToolResultError("protocol is required"), nil
	}

	t, ok := decision.MapAuthenticationType(decision.Protocol(protocol))
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("Protocol %q is unmapped; authenticationType is sent as null.", protocol)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Protocol %q maps to authentication type %q.", protocol, t)), nil
}

func formatScore(resp *decision.ScoringResponse) string {
	var sb strings.Builder
	sb.WriteString("Login Score:\n")
	sb.WriteString(fmt.Sprintf("  Decision:   %s\n", resp.Decision))
	sb.WriteString(fmt.Sprintf("  Score:      %g\n", resp.Score))
	sb.WriteString(fmt.Sprintf("  Confidence: %g\n", resp.Confidence))
	if len(resp.Signals) > 0 {
		sb.WriteString(fmt.Sprintf("  Signals:    %s\n", strings.Join(resp.Signals, ", ")))
	}
	if decision.IsGoodLogin(resp) {
		sb.WriteString("  Allowed:    yes\n")
	} else {
		sb.WriteString("  Allowed:    no (confirmed fraudulent)\n")
	}
	if resp.IsFailOpen() {
		sb.WriteString("\nThe scoring service could not be reached; the login was allowed by default.\n")
	}
	return sb.String()
}

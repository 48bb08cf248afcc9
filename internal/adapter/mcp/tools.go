package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/match"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listOpenIntentsTool(),
		s.findMatchesTool(),
		s.getIntentMatchesTool(),
		s.registerAgentTool(),
		s.updateMatchStatusTool(),
	)
}

func (s *Server) listOpenIntentsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_open_intents",
		mcplib.WithDescription("List open intents, newest first. Private intents are redacted"),
		mcplib.WithString("category", mcplib.Description("Only intents in this category")),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of intents (default 20)")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListOpenIntents}
}

func (s *Server) findMatchesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("find_matches",
		mcplib.WithDescription("Score an open intent against available agents and persist matches"),
		mcplib.WithString("intent_id", mcplib.Required(), mcplib.Description("The intent ID to match")),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of matches (default 20)")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleFindMatches}
}

func (s *Server) getIntentMatchesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_intent_matches",
		mcplib.WithDescription("List the stored matches of an intent, best score first"),
		mcplib.WithString("intent_id", mcplib.Required(), mcplib.Description("The intent ID")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetIntentMatches}
}

func (s *Server) registerAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("register_agent",
		mcplib.WithDescription("Register an agent or update its profile. Registration is keyed by wallet address"),
		mcplib.WithString("wallet_address", mcplib.Required(), mcplib.Description("Agent identity key")),
		mcplib.WithString("name", mcplib.Required(), mcplib.Description("Display name")),
		mcplib.WithString("bio", mcplib.Description("Free-text description of what the agent does")),
		mcplib.WithArray("skills", mcplib.Description("Skill tags"), mcplib.Items(map[string]any{"type": "string"})),
		mcplib.WithString("owner_name", mcplib.Description("Name of the agent's owner")),
		mcplib.WithString("owner_contact", mcplib.Description("Contact for the agent's owner")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRegisterAgent}
}

func (s *Server) updateMatchStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("update_match_status",
		mcplib.WithDescription("Move a match to accepted, declined or contacted"),
		mcplib.WithString("match_id", mcplib.Required(), mcplib.Description("The match ID")),
		mcplib.WithString("status", mcplib.Required(), mcplib.Description("Target status")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleUpdateMatchStatus}
}

func (s *Server) handleListOpenIntents(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Intents == nil {
		return mcplib.NewToolResultError("intent lister not configured"), nil
	}
	args := req.GetArguments()
	category, _ := args["category"].(string)
	items, _, err := s.deps.Intents.List(ctx, intent.ListFilter{
		Status:   intent.StatusOpen,
		Category: category,
		Limit:    intArg(args, "limit"),
	}, "")
	if err != nil {
		return toolError("failed to list intents", err), nil
	}
	return marshalResult(items)
}

func (s *Server) handleFindMatches(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Matches == nil {
		return mcplib.NewToolResultError("matcher not configured"), nil
	}
	args := req.GetArguments()
	id, ok := args["intent_id"].(string)
	if !ok || id == "" {
		return mcplib.NewToolResultError("intent_id is required"), nil
	}
	res, err := s.deps.Matches.FindMatches(ctx, id, intArg(args, "limit"))
	if err != nil {
		return toolError(fmt.Sprintf("failed to match intent %s", id), err), nil
	}
	return marshalResult(res)
}

func (s *Server) handleGetIntentMatches(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Matches == nil {
		return mcplib.NewToolResultError("matcher not configured"), nil
	}
	id, ok := req.GetArguments()["intent_id"].(string)
	if !ok || id == "" {
		return mcplib.NewToolResultError("intent_id is required"), nil
	}
	items, err := s.deps.Matches.ListByIntent(ctx, id)
	if err != nil {
		return toolError(fmt.Sprintf("failed to list matches of %s", id), err), nil
	}
	return marshalResult(items)
}

func (s *Server) handleRegisterAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent registrar not configured"), nil
	}
	args := req.GetArguments()
	r := agent.RegisterRequest{
		Key:          stringArg(args, "wallet_address"),
		Name:         stringArg(args, "name"),
		Bio:          stringArg(args, "bio"),
		OwnerName:    stringArg(args, "owner_name"),
		OwnerContact: stringArg(args, "owner_contact"),
	}
	if raw, ok := args["skills"].([]any); ok {
		for _, v := range raw {
			if tag, ok := v.(string); ok {
				r.Skills = append(r.Skills, tag)
			}
		}
	}
	a, err := s.deps.Agents.Register(ctx, r)
	if err != nil {
		return toolError("failed to register agent", err), nil
	}
	return marshalResult(a)
}

func (s *Server) handleUpdateMatchStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Matches == nil {
		return mcplib.NewToolResultError("matcher not configured"), nil
	}
	args := req.GetArguments()
	id := stringArg(args, "match_id")
	if id == "" {
		return mcplib.NewToolResultError("match_id is required"), nil
	}
	m, err := s.deps.Matches.UpdateStatus(ctx, id, match.Status(stringArg(args, "status")))
	if err != nil {
		return toolError(fmt.Sprintf("failed to update match %s", id), err), nil
	}
	return marshalResult(m)
}

// toolError reports domain failures verbatim and hides internal ones.
func toolError(msg string, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrUpstreamUnavailable):
		return mcplib.NewToolResultErrorFromErr(msg, err)
	default:
		return mcplib.NewToolResultError(msg)
	}
}

func marshalResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads a JSON number argument; absent or non-positive values are 0.
func intArg(args map[string]any, key string) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return 0
}

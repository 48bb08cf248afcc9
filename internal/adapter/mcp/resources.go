package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/stats"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"intentmarket://intents/open",
			"Open Intents",
			mcplib.WithResourceDescription("The newest open intents, private ones redacted"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleOpenIntentsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"intentmarket://stats",
			"Marketplace Stats",
			mcplib.WithResourceDescription("Agent, intent and match counts"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatsResource,
	)
}

func (s *Server) handleOpenIntentsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Intents == nil {
		return jsonResource(req.Params.URI, `{"error":"intent lister not configured"}`), nil
	}
	items, _, err := s.deps.Intents.List(ctx, intent.ListFilter{Status: intent.StatusOpen}, "")
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, string(data)), nil
}

func (s *Server) handleStatsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Stats == nil {
		return jsonResource(req.Params.URI, `{"error":"stats reader not configured"}`), nil
	}
	counts, stale, err := s.deps.Stats.Get(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(struct {
		stats.Counts
		Stale bool `json:"stale,omitempty"`
	}{counts, stale})
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, string(data)), nil
}

func jsonResource(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}

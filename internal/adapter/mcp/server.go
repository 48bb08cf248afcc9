// Package mcp exposes the marketplace to AI agents over the Model Context
// Protocol using the streamable HTTP transport.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/match"
	"github.com/Strob0t/IntentMarket/internal/domain/stats"
	"github.com/Strob0t/IntentMarket/internal/service"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServerConfig holds the MCP listener settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// IntentLister lists intents; private intents are redacted for viewerKey.
type IntentLister interface {
	List(ctx context.Context, filter intent.ListFilter, viewerKey string) ([]intent.Intent, bool, error)
}

// Matcher runs matching passes and manages match rows.
type Matcher interface {
	FindMatches(ctx context.Context, intentID string, limit int) (*service.Result, error)
	ListByIntent(ctx context.Context, intentID string) ([]match.Match, error)
	UpdateStatus(ctx context.Context, id string, status match.Status) (*match.Match, error)
}

// AgentRegistrar registers agents.
type AgentRegistrar interface {
	Register(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error)
}

// StatsReader reads marketplace counts.
type StatsReader interface {
	Get(ctx context.Context) (stats.Counts, bool, error)
}

// ServerDeps are the services backing tools and resources. Any may be nil;
// the affected tools then return an error result.
type ServerDeps struct {
	Intents IntentLister
	Matches Matcher
	Agents  AgentRegistrar
	Stats   StatsReader
}

// Server wraps an MCP server and its HTTP listener.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the authenticated streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}

// Start binds cfg.Addr and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	slog.Info("mcp server stopping")
	return srv.Shutdown(ctx)
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
	}
}

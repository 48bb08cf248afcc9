// Package service implements business logic on top of ports.
package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/port/broadcast"
	"github.com/Strob0t/IntentMarket/internal/port/database"
)

// AgentService handles agent registration and lookup.
type AgentService struct {
	store database.Store
	hub   broadcast.Broadcaster
}

// NewAgentService creates a new AgentService.
func NewAgentService(store database.Store, hub broadcast.Broadcaster) *AgentService {
	return &AgentService{store: store, hub: hub}
}

// Register creates the agent or updates the one registered under the same
// key.
func (s *AgentService) Register(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	a, err := s.store.UpsertAgent(ctx, &req)
	if err != nil {
		return nil, err
	}

	slog.Info("agent registered", "agent_id", a.ID, "skills", len(a.Skills), "available", a.Available)
	s.hub.BroadcastEvent(ctx, ws.EventAgentRegistered, ws.AgentRegisteredEvent{
		AgentID:   a.ID,
		Name:      a.Name,
		Available: a.Available,
	})
	return a, nil
}

// List returns agents, newest first.
func (s *AgentService) List(ctx context.Context, filter agent.ListFilter) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx, filter)
}

// Get returns the agent registered under key.
func (s *AgentService) Get(ctx context.Context, key string) (*agent.Agent, error) {
	return s.store.GetAgentByKey(ctx, key)
}

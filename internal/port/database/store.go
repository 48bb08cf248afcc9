// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/match"
	"github.com/Strob0t/IntentMarket/internal/domain/stats"
)

// Store is the port interface for database operations.
//
// Implementations map missing rows to domain.ErrNotFound, uniqueness races
// to domain.ErrConflict and unreachable backends to
// domain.ErrUpstreamUnavailable.
type Store interface {
	// Agents
	UpsertAgent(ctx context.Context, req *agent.RegisterRequest) (*agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	GetAgentByKey(ctx context.Context, key string) (*agent.Agent, error)
	ListAgents(ctx context.Context, filter agent.ListFilter) ([]agent.Agent, error)

	// Intents
	CreateIntent(ctx context.Context, in *intent.Intent) (*intent.Intent, error)
	GetIntent(ctx context.Context, id string) (*intent.Intent, error)
	FindIntentBySourceURL(ctx context.Context, sourceURL string) (*intent.Intent, error)
	ListIntents(ctx context.Context, filter intent.ListFilter) ([]intent.Intent, error)
	UpdateIntentStatus(ctx context.Context, id string, status intent.Status) (*intent.Intent, error)
	// RefreshMatchCount sets match_count to the live number of matches
	// referencing the intent and returns it.
	RefreshMatchCount(ctx context.Context, intentID string) (int, error)

	// Matches
	// UpsertMatch inserts a proposed match for key or refreshes the score,
	// reason and type of the existing one. created reports an insert.
	UpsertMatch(ctx context.Context, key match.Key, data match.Upsert) (m *match.Match, created bool, err error)
	GetMatch(ctx context.Context, id string) (*match.Match, error)
	ListMatchesByIntent(ctx context.Context, intentID string) ([]match.Match, error)
	ListMatches(ctx context.Context, filter match.ListFilter) ([]match.Match, error)
	UpdateMatchStatus(ctx context.Context, id string, status match.Status) (*match.Match, error)

	// Stats
	Counts(ctx context.Context) (stats.Counts, error)
}

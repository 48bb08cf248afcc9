// Package databasetest provides an in-memory database.Store for tests of
// packages that sit above the service layer.
package databasetest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/match"
	"github.com/Strob0t/IntentMarket/internal/domain/stats"
	"github.com/Strob0t/IntentMarket/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store keeps agents, intents and matches in slices guarded by a mutex.
// Timestamps advance by one second per write so ordering is deterministic.
// Setting Down makes every call fail with domain.ErrUpstreamUnavailable.
type Store struct {
	mu      sync.Mutex
	agents  []agent.Agent
	intents []intent.Intent
	matches []match.Match
	now     time.Time
	down    bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// SetDown toggles simulated unavailability.
func (s *Store) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *Store) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *Store) check(op string) error {
	if s.down {
		return fmt.Errorf("%s: %w", op, domain.ErrUpstreamUnavailable)
	}
	return nil
}

func (s *Store) UpsertAgent(_ context.Context, req *agent.RegisterRequest) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("upsert agent"); err != nil {
		return nil, err
	}
	now := s.tick()
	for i := range s.agents {
		if s.agents[i].Key != req.Key {
			continue
		}
		a := &s.agents[i]
		a.Name, a.Bio, a.Skills = req.Name, req.Bio, req.Skills
		a.OwnerName, a.OwnerContact, a.Available = req.OwnerName, req.OwnerContact, req.IsAvailable()
		a.UpdatedAt = now
		cp := *a
		return &cp, nil
	}
	a := agent.Agent{
		ID: uuid.NewString(), Key: req.Key, Name: req.Name, Bio: req.Bio, Skills: req.Skills,
		OwnerName: req.OwnerName, OwnerContact: req.OwnerContact, Available: req.IsAvailable(),
		CreatedAt: now, UpdatedAt: now,
	}
	s.agents = append(s.agents, a)
	return &a, nil
}

func (s *Store) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	return s.findAgent("get agent", func(a *agent.Agent) bool { return a.ID == id })
}

func (s *Store) GetAgentByKey(_ context.Context, key string) (*agent.Agent, error) {
	return s.findAgent("get agent by key", func(a *agent.Agent) bool { return a.Key == key })
}

func (s *Store) findAgent(op string, pred func(*agent.Agent) bool) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return nil, err
	}
	for i := range s.agents {
		if pred(&s.agents[i]) {
			cp := s.agents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
}

func (s *Store) ListAgents(_ context.Context, f agent.ListFilter) ([]agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list agents"); err != nil {
		return nil, err
	}
	out := []agent.Agent{}
	for i := range s.agents {
		if f.AvailableOnly && !s.agents[i].Available {
			continue
		}
		out = append(out, s.agents[i])
	}
	return limit(out, f.Limit), nil
}

func (s *Store) CreateIntent(_ context.Context, in *intent.Intent) (*intent.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create intent"); err != nil {
		return nil, err
	}
	if in.SourceURL != "" {
		for i := range s.intents {
			if s.intents[i].SourceURL == in.SourceURL {
				return nil, fmt.Errorf("create intent: %w", domain.ErrConflict)
			}
		}
	}
	now := s.tick()
	cp := *in
	cp.ID = uuid.NewString()
	cp.Status = intent.StatusOpen
	cp.MatchCount = 0
	cp.CreatedAt, cp.UpdatedAt = now, now
	if cp.Requirements == nil {
		cp.Requirements = []string{}
	}
	s.intents = append(s.intents, cp)
	out := cp
	return &out, nil
}

func (s *Store) GetIntent(_ context.Context, id string) (*intent.Intent, error) {
	return s.findIntent("get intent", func(in *intent.Intent) bool { return in.ID == id })
}

func (s *Store) FindIntentBySourceURL(_ context.Context, sourceURL string) (*intent.Intent, error) {
	return s.findIntent("find intent by source", func(in *intent.Intent) bool { return in.SourceURL == sourceURL })
}

func (s *Store) findIntent(op string, pred func(*intent.Intent) bool) (*intent.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return nil, err
	}
	for i := range s.intents {
		if pred(&s.intents[i]) {
			cp := s.intents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
}

func (s *Store) ListIntents(_ context.Context, f intent.ListFilter) ([]intent.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list intents"); err != nil {
		return nil, err
	}
	out := []intent.Intent{}
	for i := range s.intents {
		in := s.intents[i]
		if (f.Status != "" && in.Status != f.Status) ||
			(f.Category != "" && in.Category != f.Category) ||
			(f.PosterKey != "" && in.PosterKey != f.PosterKey) {
			continue
		}
		out = append(out, in)
	}
	slices.SortStableFunc(out, func(a, b intent.Intent) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return limit(out, f.Limit), nil
}

func (s *Store) UpdateIntentStatus(_ context.Context, id string, status intent.Status) (*intent.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update intent status"); err != nil {
		return nil, err
	}
	for i := range s.intents {
		if s.intents[i].ID == id {
			s.intents[i].Status = status
			s.intents[i].UpdatedAt = s.tick()
			cp := s.intents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("update intent status: %w", domain.ErrNotFound)
}

func (s *Store) RefreshMatchCount(_ context.Context, intentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("refresh match count"); err != nil {
		return 0, err
	}
	n := 0
	for i := range s.matches {
		if s.matches[i].IntentID == intentID {
			n++
		}
	}
	for i := range s.intents {
		if s.intents[i].ID == intentID {
			s.intents[i].MatchCount = n
			return n, nil
		}
	}
	return 0, fmt.Errorf("refresh match count: %w", domain.ErrNotFound)
}

func (s *Store) UpsertMatch(_ context.Context, key match.Key, data match.Upsert) (*match.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("upsert match"); err != nil {
		return nil, false, err
	}
	now := s.tick()
	for i := range s.matches {
		if s.matches[i].Key() == key {
			m := &s.matches[i]
			m.Type, m.Score, m.Reason, m.UpdatedAt = data.Type, match.RoundScore(data.Score), data.Reason, now
			cp := *m
			return &cp, false, nil
		}
	}
	m := match.Match{
		ID: uuid.NewString(), IntentID: key.IntentID, CandidateKind: key.CandidateKind, CandidateID: key.CandidateID,
		Type: data.Type, Score: match.RoundScore(data.Score), Reason: data.Reason, Status: match.StatusProposed,
		CreatedAt: now, UpdatedAt: now,
	}
	s.matches = append(s.matches, m)
	return &m, true, nil
}

func (s *Store) GetMatch(_ context.Context, id string) (*match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get match"); err != nil {
		return nil, err
	}
	for i := range s.matches {
		if s.matches[i].ID == id {
			cp := s.matches[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get match: %w", domain.ErrNotFound)
}

func (s *Store) ListMatchesByIntent(ctx context.Context, intentID string) ([]match.Match, error) {
	return s.ListMatches(ctx, match.ListFilter{IntentID: intentID})
}

func (s *Store) ListMatches(_ context.Context, f match.ListFilter) ([]match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list matches"); err != nil {
		return nil, err
	}
	out := []match.Match{}
	for i := range s.matches {
		m := s.matches[i]
		if (f.IntentID != "" && m.IntentID != f.IntentID) || (f.Status != "" && m.Status != f.Status) {
			continue
		}
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b match.Match) int { return cmp.Compare(b.Score, a.Score) })
	return limit(out, f.Limit), nil
}

func (s *Store) UpdateMatchStatus(_ context.Context, id string, status match.Status) (*match.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update match status"); err != nil {
		return nil, err
	}
	for i := range s.matches {
		if s.matches[i].ID == id {
			s.matches[i].Status = status
			s.matches[i].UpdatedAt = s.tick()
			cp := s.matches[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("update match status: %w", domain.ErrNotFound)
}

func (s *Store) Counts(_ context.Context) (stats.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("counts"); err != nil {
		return stats.Counts{}, err
	}
	c := stats.Counts{Agents: len(s.agents), Intents: len(s.intents), Matches: len(s.matches)}
	for i := range s.agents {
		if s.agents[i].Available {
			c.AvailableAgents++
		}
	}
	for i := range s.intents {
		if s.intents[i].Status == intent.StatusOpen {
			c.OpenIntents++
		}
	}
	for i := range s.matches {
		if s.matches[i].Status == match.StatusAccepted {
			c.AcceptedMatches++
		}
	}
	return c, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

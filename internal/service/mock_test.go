package service

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
	"github.com/Strob0t/IntentMarket/internal/port/broadcast"
	"github.com/Strob0t/IntentMarket/internal/port/cache"
	"github.com/Strob0t/IntentMarket/internal/port/database"
	"github.com/Strob0t/IntentMarket/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ database.Store        = (*mockStore)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ cache.Cache           = (*mockCache)(nil)
)

// mockStore is an in-memory database.Store. Setting down makes every call
// fail with domain.ErrUpstreamUnavailable.
type mockStore struct {
	mu      sync.Mutex
	agents  []agent.Agent
	intents []intent.Intent
	matches []match.Match
	now     time.Time

	down        bool
	upsertErrs  []error // consumed one per UpsertMatch call
	upsertCalls int
	upsertHook  func() // called before each UpsertMatch, outside the lock
}

func newMockStore() *mockStore {
	return &mockStore{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *mockStore) unavailable(op string) error {
	return fmt.Errorf("%s: %w", op, domain.ErrUpstreamUnavailable)
}

func (m *mockStore) UpsertAgent(_ context.Context, req *agent.RegisterRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, m.unavailable("upsert agent")
	}
	now := m.tick()
	for i := range m.agents {
		if m.agents[i].Key == req.Key {
			a := &m.agents[i]
			a.Name, a.Bio, a.Skills = req.Name, req.Bio, req.Skills
			a.OwnerName, a.OwnerContact, a.Available = req.OwnerName, req.OwnerContact, req.IsAvailable()
			a.UpdatedAt = now
			cp := *a
			return &cp, nil
		}
	}
	a := agent.Agent{
		ID: uuid.NewString(), Key: req.Key, Name: req.Name, Bio: req.Bio, Skills: req.Skills,
		OwnerName: req.OwnerName, OwnerContact: req.OwnerContact, Available: req.IsAvailable(),
		CreatedAt: now, UpdatedAt: now,
	}
	m.agents = append(m.agents, a)
	return &a, nil
}

func (m *mockStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID == id {
			cp := m.agents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) GetAgentByKey(_ context.Context, key string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].Key == key {
			cp := m.agents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", key, domain.ErrNotFound)
}

func (m *mockStore) ListAgents(_ context.Context, f agent.ListFilter) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, m.unavailable("list agents")
	}
	out := []agent.Agent{}
	for i := range m.agents {
		if f.AvailableOnly && !m.agents[i].Available {
			continue
		}
		out = append(out, m.agents[i])
	}
	return out, nil
}

func (m *mockStore) CreateIntent(_ context.Context, in *intent.Intent) (*intent.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, m.unavailable("create intent")
	}
	if in.SourceURL != "" {
		for i := range m.intents {
			if m.intents[i].SourceURL == in.SourceURL {
				return nil, fmt.Errorf("create intent: %w", domain.ErrConflict)
			}
		}
	}
	now := m.tick()
	cp := *in
	cp.ID = uuid.NewString()
	cp.Status = intent.StatusOpen
	cp.MatchCount = 0
	cp.CreatedAt, cp.UpdatedAt = now, now
	if cp.Requirements == nil {
		cp.Requirements = []string{}
	}
	m.intents = append(m.intents, cp)
	out := cp
	return &out, nil
}

func (m *mockStore) GetIntent(_ context.Context, id string) (*intent.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, m.unavailable("get intent")
	}
	for i := range m.intents {
		if m.intents[i].ID == id {
			cp := m.intents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("intent %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) FindIntentBySourceURL(_ context.Context, url string) (*intent.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.intents {
		if m.intents[i].SourceURL == url {
			cp := m.intents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("intent by source %s: %w", url, domain.ErrNotFound)
}

func (m *mockStore) ListIntents(_ context.Context, f intent.ListFilter) ([]intent.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, m.unavailable("list intents")
	}
	out := []intent.Intent{}
	for i := range m.intents {
		in := m.intents[i]
		if (f.Status != "" && in.Status != f.Status) ||
			(f.Category != "" && in.Category != f.Category) ||
			(f.PosterKey != "" && in.PosterKey != f.PosterKey) {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

func (m *mockStore) UpdateIntentStatus(_ context.Context, id string, status intent.Status) (*intent.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.intents {
		if m.intents[i].ID == id {
			m.intents[i].Status = status
			m.intents[i].UpdatedAt = m.tick()
			cp := m.intents[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("intent %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) RefreshMatchCount(_ context.Context, intentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.matches {
		if m.matches[i].IntentID == intentID {
			n++
		}
	}
	for i := range m.intents {
		if m.intents[i].ID == intentID {
			m.intents[i].MatchCount = n
			return n, nil
		}
	}
	return 0, fmt.Errorf("intent %s: %w", intentID, domain.ErrNotFound)
}

func (m *mockStore) UpsertMatch(_ context.Context, key match.Key, data match.Upsert) (*match.Match, bool, error) {
	if m.upsertHook != nil {
		m.upsertHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if len(m.upsertErrs) > 0 {
		err := m.upsertErrs[0]
		m.upsertErrs = m.upsertErrs[1:]
		if err != nil {
			return nil, false, err
		}
	}
	now := m.tick()
	for i := range m.matches {
		if m.matches[i].Key() == key {
			mm := &m.matches[i]
			mm.Type, mm.Score, mm.Reason, mm.UpdatedAt = data.Type, match.RoundScore(data.Score), data.Reason, now
			cp := *mm
			return &cp, false, nil
		}
	}
	mm := match.Match{
		ID: uuid.NewString(), IntentID: key.IntentID, CandidateKind: key.CandidateKind, CandidateID: key.CandidateID,
		Type: data.Type, Score: match.RoundScore(data.Score), Reason: data.Reason, Status: match.StatusProposed,
		CreatedAt: now, UpdatedAt: now,
	}
	m.matches = append(m.matches, mm)
	return &mm, true, nil
}

func (m *mockStore) GetMatch(_ context.Context, id string) (*match.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.matches {
		if m.matches[i].ID == id {
			cp := m.matches[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("match %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) ListMatchesByIntent(ctx context.Context, intentID string) ([]match.Match, error) {
	return m.ListMatches(ctx, match.ListFilter{IntentID: intentID})
}

func (m *mockStore) ListMatches(_ context.Context, f match.ListFilter) ([]match.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []match.Match{}
	for i := range m.matches {
		mm := m.matches[i]
		if (f.IntentID != "" && mm.IntentID != f.IntentID) || (f.Status != "" && mm.Status != f.Status) {
			continue
		}
		out = append(out, mm)
	}
	slices.SortStableFunc(out, func(a, b match.Match) int { return cmp.Compare(b.Score, a.Score) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockStore) UpdateMatchStatus(_ context.Context, id string, status match.Status) (*match.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.matches {
		if m.matches[i].ID == id {
			m.matches[i].Status = status
			m.matches[i].UpdatedAt = m.tick()
			cp := m.matches[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("match %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) Counts(_ context.Context) (stats.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return stats.Counts{}, m.unavailable("counts")
	}
	var c stats.Counts
	c.Agents = len(m.agents)
	for i := range m.agents {
		if m.agents[i].Available {
			c.AvailableAgents++
		}
	}
	c.Intents = len(m.intents)
	for i := range m.intents {
		if m.intents[i].Status == intent.StatusOpen {
			c.OpenIntents++
		}
	}
	c.Matches = len(m.matches)
	for i := range m.matches {
		if m.matches[i].Status == match.StatusAccepted {
			c.AcceptedMatches++
		}
	}
	return c, nil
}

func (m *mockStore) setDown(down bool) {
	m.mu.Lock()
	m.down = down
	m.mu.Unlock()
}

func (m *mockStore) matchRows(intentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.matches {
		if m.matches[i].IntentID == intentID {
			n++
		}
	}
	return n
}

type mockQueue struct {
	mu        sync.Mutex
	published []struct {
		subject string
		data    []byte
	}
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.published))
	for i := range q.published {
		out[i] = q.published[i].subject
	}
	return out
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	b.events = append(b.events, eventType)
	b.mu.Unlock()
}

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/IntentMarket/internal/adapter/otel"
	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/match"
	"github.com/Strob0t/IntentMarket/internal/domain/matching"
	"github.com/Strob0t/IntentMarket/internal/port/broadcast"
	"github.com/Strob0t/IntentMarket/internal/port/database"
	"github.com/Strob0t/IntentMarket/internal/port/messagequeue"
)

// Pool selects where find-matches draws its candidates from.
type Pool string

const (
	PoolAgents  Pool = "agents"
	PoolIntents Pool = "intents"
)

// Result is the outcome of one find-matches run.
type Result struct {
	Matches    []match.Match `json:"matches"` // rows created or refreshed by this run
	Count      int           `json:"count"`
	Created    int           `json:"created"`
	Refreshed  int           `json:"refreshed"`
	Failed     int           `json:"failed"`
	Processed  int           `json:"processed"`
	Candidates int           `json:"candidates"`
	MatchCount int           `json:"match_count"`
	Cancelled  bool          `json:"cancelled,omitempty"`
}

// scored is a candidate that cleared the threshold.
type scored struct {
	key    match.Key
	name   string
	upsert match.Upsert
}

// MatchService coordinates scoring, match persistence and match status
// transitions.
type MatchService struct {
	store    database.Store
	queue    messagequeue.Queue
	hub      broadcast.Broadcaster
	settings func() config.Matching
	metrics  *otel.Metrics
	runs     runGroup
}

// NewMatchService creates a new MatchService. settings is read on every run
// so reloaded thresholds apply to the next call.
func NewMatchService(store database.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, settings func() config.Matching) *MatchService {
	return &MatchService{store: store, queue: queue, hub: hub, settings: settings}
}

// SetMetrics attaches metric instruments.
func (s *MatchService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

func (s *MatchService) engine(cfg config.Matching) matching.Engine {
	if cfg.RelatedCategories {
		return matching.Engine{Related: matching.DefaultRelated}
	}
	return matching.Engine{}
}

// FindMatches scores an open intent against all available agents. limit
// caps the rows kept; zero or less applies the configured default.
func (s *MatchService) FindMatches(ctx context.Context, intentID string, limit int) (*Result, error) {
	cfg := s.settings()
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	return s.Run(ctx, intentID, PoolAgents, cfg.AgentThreshold, limit)
}

// CrossMatch scores an open intent against the other open intents.
func (s *MatchService) CrossMatch(ctx context.Context, intentID string, limit int) (*Result, error) {
	cfg := s.settings()
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	return s.Run(ctx, intentID, PoolIntents, cfg.IntentThreshold, limit)
}

// Run executes one find-matches pass. Concurrent runs with identical
// arguments share a single execution. Candidates scoring at or below
// threshold are skipped; limit > 0 keeps only the best limit candidates.
//
// A cancelled ctx detaches this caller from a shared run. The run itself
// stops only once all of its callers are gone; rows already written stay
// and the last caller gets the partial Result with the context error.
func (s *MatchService) Run(ctx context.Context, intentID string, pool Pool, threshold float64, limit int) (*Result, error) {
	key := fmt.Sprintf("%s:%s:%g:%d", pool, intentID, threshold, limit)
	return s.runs.do(ctx, key, func(ctx context.Context) (*Result, error) {
		return s.run(ctx, intentID, pool, threshold, limit)
	})
}

func (s *MatchService) run(ctx context.Context, intentID string, pool Pool, threshold float64, limit int) (res *Result, err error) {
	start := time.Now()
	ctx, span := otel.StartFindSpan(ctx, intentID, string(pool))
	defer func() { otel.EndSpan(span, err) }()

	in, err := s.store.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if in.Status != intent.StatusOpen {
		return nil, fmt.Errorf("intent %s is %s, not open: %w", intentID, in.Status, domain.ErrNotFound)
	}

	cfg := s.settings()
	candidates, err := s.loadPool(ctx, in, pool)
	if err != nil {
		return nil, err
	}

	hits, err := s.score(ctx, in, candidates, threshold, cfg)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	res = &Result{Matches: []match.Match{}, Candidates: len(candidates)}
	for i := range hits {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		m, created, uerr := s.upsert(ctx, hits[i])
		res.Processed++
		if uerr != nil {
			res.Failed++
			slog.Warn("match upsert failed", "intent_id", intentID, "candidate_id", hits[i].key.CandidateID, "error", uerr)
			continue
		}
		m.CandidateName = hits[i].name
		res.Matches = append(res.Matches, *m)
		if created {
			res.Created++
		} else {
			res.Refreshed++
		}
		if s.metrics != nil {
			s.metrics.MatchScore.Record(ctx, m.Score)
		}
	}
	res.Count = len(res.Matches)

	// All upserts above have returned; the recount runs even if the caller
	// cancelled so match_count reflects whatever was written.
	n, cerr := s.store.RefreshMatchCount(context.WithoutCancel(ctx), intentID)
	if cerr != nil {
		slog.Error("refresh match count failed", "intent_id", intentID, "error", cerr)
	}
	res.MatchCount = n

	s.record(ctx, res, time.Since(start))
	slog.Info("find matches finished",
		"intent_id", intentID,
		"pool", pool,
		"candidates", res.Candidates,
		"created", res.Created,
		"refreshed", res.Refreshed,
		"failed", res.Failed,
		"skipped", res.Candidates-len(hits),
		"match_count", res.MatchCount,
	)

	if res.Count > 0 {
		s.announce(ctx, intentID, res)
	}

	if res.Cancelled {
		return res, fmt.Errorf("find matches for %s stopped after %d of %d: %w", intentID, res.Processed, len(hits), ctx.Err())
	}
	if cerr != nil {
		return res, cerr
	}
	return res, nil
}

// loadPool fetches the candidates of pool. The subject intent is never its
// own candidate.
func (s *MatchService) loadPool(ctx context.Context, in *intent.Intent, pool Pool) ([]candidateRef, error) {
	switch pool {
	case PoolAgents:
		agents, err := s.store.ListAgents(ctx, agent.ListFilter{AvailableOnly: true})
		if err != nil {
			return nil, err
		}
		refs := make([]candidateRef, len(agents))
		for i := range agents {
			refs[i] = candidateRef{
				kind:      match.CandidateAgent,
				id:        agents[i].ID,
				name:      agents[i].Name,
				candidate: matching.CandidateFromAgent(&agents[i]),
			}
		}
		return refs, nil
	case PoolIntents:
		intents, err := s.store.ListIntents(ctx, intent.ListFilter{Status: intent.StatusOpen})
		if err != nil {
			return nil, err
		}
		refs := make([]candidateRef, 0, len(intents))
		for i := range intents {
			if intents[i].ID == in.ID {
				continue
			}
			name := intents[i].Title
			if intents[i].IsPrivate {
				name = intent.RedactedTitle
			}
			refs = append(refs, candidateRef{
				kind:      match.CandidateIntent,
				id:        intents[i].ID,
				name:      name,
				candidate: matching.CandidateFromIntent(&intents[i]),
			})
		}
		return refs, nil
	}
	return nil, fmt.Errorf("unknown candidate pool %q: %w", pool, domain.ErrValidation)
}

type candidateRef struct {
	kind      match.CandidateKind
	id        string
	name      string
	candidate matching.Candidate
}

// score evaluates every candidate in parallel and returns those above
// threshold, best first. Ties are broken by candidate id so the kept set
// is stable under a limit.
func (s *MatchService) score(ctx context.Context, in *intent.Intent, refs []candidateRef, threshold float64, cfg config.Matching) ([]scored, error) {
	subject := matching.SubjectFromIntent(in)
	eng := s.engine(cfg)
	results := make([]*scored, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.ScoringWorkers, 1))
	for i := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := eng.Evaluate(subject, refs[i].candidate)
			if b.Total <= threshold {
				return nil
			}
			results[i] = &scored{
				key:  match.Key{IntentID: in.ID, CandidateKind: refs[i].kind, CandidateID: refs[i].id},
				name: refs[i].name,
				upsert: match.Upsert{
					Type:   classify(b.Total, len(b.MatchedTags), cfg),
					Score:  b.Total,
					Reason: matching.Explain(subject, refs[i].candidate, b.Total),
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score candidates for %s: %w", in.ID, err)
	}

	hits := make([]scored, 0, len(results))
	for _, r := range results {
		if r != nil {
			hits = append(hits, *r)
		}
	}
	slices.SortFunc(hits, func(a, b scored) int {
		if c := cmp.Compare(b.upsert.Score, a.upsert.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.key.CandidateID, b.key.CandidateID)
	})
	return hits, nil
}

// classify derives the match type tag from the score.
func classify(score float64, tagMatches int, cfg config.Matching) match.Type {
	switch {
	case score > cfg.BothThreshold:
		return match.TypeBoth
	case cfg.OwnerSuitableMinTags > 0 && tagMatches >= cfg.OwnerSuitableMinTags:
		return match.TypeOwnerSuitable
	default:
		return match.TypeAgentCanDeliver
	}
}

// upsert writes one hit, retrying once when a concurrent writer raced the
// conflict key.
func (s *MatchService) upsert(ctx context.Context, h scored) (*match.Match, bool, error) {
	m, created, err := s.store.UpsertMatch(ctx, h.key, h.upsert)
	if errors.Is(err, domain.ErrConflict) {
		m, created, err = s.store.UpsertMatch(ctx, h.key, h.upsert)
	}
	return m, created, err
}

func (s *MatchService) record(ctx context.Context, res *Result, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.FindRuns.Add(ctx, 1)
	s.metrics.MatchesCreated.Add(ctx, int64(res.Created))
	s.metrics.MatchesFailed.Add(ctx, int64(res.Failed))
	s.metrics.FindDuration.Record(ctx, elapsed.Seconds())
}

func (s *MatchService) announce(ctx context.Context, intentID string, res *Result) {
	ids := make([]string, len(res.Matches))
	for i := range res.Matches {
		ids[i] = res.Matches[i].ID
	}
	publishJSON(ctx, s.queue, messagequeue.SubjectMatchCreated, messagequeue.MatchCreatedPayload{
		IntentID:  intentID,
		MatchIDs:  ids,
		Created:   res.Created,
		Refreshed: res.Refreshed,
	})
	s.hub.BroadcastEvent(ctx, ws.EventMatchesFound, ws.MatchesFoundEvent{
		IntentID:   intentID,
		Created:    res.Created,
		Refreshed:  res.Refreshed,
		MatchCount: res.MatchCount,
	})
}

// UpdateStatus moves a match to status. Unknown targets fail with
// domain.ErrInvalidStatus and leave the row untouched.
func (s *MatchService) UpdateStatus(ctx context.Context, id string, status match.Status) (*match.Match, error) {
	cur, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := match.Transition(cur, status)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateMatchStatus(ctx, id, next.Status)
	if err != nil {
		return nil, err
	}

	slog.Info("match status changed", "match_id", id, "intent_id", updated.IntentID, "from", cur.Status, "to", updated.Status)
	publishJSON(ctx, s.queue, messagequeue.SubjectMatchStatus, messagequeue.MatchStatusPayload{
		MatchID:  id,
		IntentID: updated.IntentID,
		Status:   string(updated.Status),
	})
	s.hub.BroadcastEvent(ctx, ws.EventMatchStatus, ws.MatchStatusEvent{
		MatchID:  id,
		IntentID: updated.IntentID,
		Status:   string(updated.Status),
	})
	return updated, nil
}

// ListByIntent returns the matches of an existing intent, best score first.
func (s *MatchService) ListByIntent(ctx context.Context, intentID string) ([]match.Match, error) {
	if _, err := s.store.GetIntent(ctx, intentID); err != nil {
		return nil, err
	}
	return s.store.ListMatchesByIntent(ctx, intentID)
}

// List returns matches across intents.
func (s *MatchService) List(ctx context.Context, filter match.ListFilter) ([]match.Match, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("match status %q: %w", filter.Status, domain.ErrInvalidStatus)
	}
	return s.store.ListMatches(ctx, filter)
}

// HandleIntentCreated is the intents.created subscriber: it runs
// find-matches for the new intent when auto matching is enabled. Intents
// that are no longer open are acknowledged without work.
func (s *MatchService) HandleIntentCreated(ctx context.Context, _ string, data []byte) error {
	if !s.settings().AutoMatchOnCreate {
		return nil
	}
	var p messagequeue.IntentCreatedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode intent created: %w", err)
	}
	_, err := s.FindMatches(ctx, p.IntentID, 0)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("auto match skipped", "intent_id", p.IntentID, "reason", err)
		return nil
	}
	return err
}

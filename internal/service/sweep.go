package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/IntentMarket/internal/adapter/otel"
	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/port/broadcast"
	"github.com/Strob0t/IntentMarket/internal/port/database"
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Skipped bool `json:"skipped"` // previous pass still running
	Intents int  `json:"intents"`
	Created int  `json:"created"`
	Closed  int  `json:"closed"` // intents that left open status mid-sweep
	Failed  int  `json:"failed"`
}

// SweepService periodically cross-matches every open intent against the
// other open intents. Overlapping passes are dropped, not queued.
type SweepService struct {
	store       database.Store
	matches     *MatchService
	hub         broadcast.Broadcaster
	concurrency int
	running     atomic.Bool
	metrics     *otel.Metrics
}

// NewSweepService creates a new SweepService.
func NewSweepService(store database.Store, matches *MatchService, hub broadcast.Broadcaster, concurrency int) *SweepService {
	return &SweepService{store: store, matches: matches, hub: hub, concurrency: max(concurrency, 1)}
}

// SetMetrics attaches metric instruments.
func (s *SweepService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// RunOnce performs one pass. If a pass is already in progress it returns
// immediately with Skipped set.
func (s *SweepService) RunOnce(ctx context.Context) (rep SweepReport, err error) {
	if !s.running.CompareAndSwap(false, true) {
		slog.Info("sweep skipped, previous pass still running")
		if s.metrics != nil {
			s.metrics.SweepsSkipped.Add(ctx, 1)
		}
		return SweepReport{Skipped: true}, nil
	}
	defer s.running.Store(false)

	ctx, span := otel.StartSweepSpan(ctx)
	defer func() { otel.EndSpan(span, err) }()

	open, err := s.store.ListIntents(ctx, intent.ListFilter{Status: intent.StatusOpen})
	if err != nil {
		return rep, err
	}
	rep.Intents = len(open)

	var created, closed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range open {
		g.Go(func() error {
			res, err := s.matches.CrossMatch(gctx, open[i].ID, 0)
			if res != nil {
				created.Add(int64(res.Created))
			}
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrNotFound):
				closed.Add(1)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				failed.Add(1)
				slog.Warn("sweep cross match failed", "intent_id", open[i].ID, "error", err)
			}
			return nil
		})
	}
	err = g.Wait()

	rep.Created = int(created.Load())
	rep.Closed = int(closed.Load())
	rep.Failed = int(failed.Load())

	slog.Info("sweep finished", "intents", rep.Intents, "created", rep.Created, "closed", rep.Closed, "failed", rep.Failed)
	s.hub.BroadcastEvent(ctx, ws.EventSweepFinished, ws.SweepFinishedEvent{
		Intents: rep.Intents,
		Created: rep.Created,
		Failed:  rep.Failed,
	})
	return rep, err
}

// Start runs a pass every interval until ctx is cancelled. Each tick starts
// its pass in the background so a slow pass makes later ticks no-ops.
func (s *SweepService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("sweep scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() {
				if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
					slog.Error("sweep failed", "error", err)
				}
			}()
		}
	}
}

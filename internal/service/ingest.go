package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Strob0t/IntentMarket/internal/adapter/otel"
	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/port/database"
	"github.com/Strob0t/IntentMarket/internal/port/intentsource"
	"github.com/Strob0t/IntentMarket/internal/resilience"
)

// SourceReport counts what one source produced in a pass.
type SourceReport struct {
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"` // already ingested
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// IngestReport summarizes one ingestion pass.
type IngestReport struct {
	Busy    bool                    `json:"busy,omitempty"`
	Sources map[string]SourceReport `json:"sources"`
}

// IngestService pulls intents from external sources and creates them
// through IntentService. Each source sits behind its own circuit breaker.
type IngestService struct {
	store    database.Store
	intents  *IntentService
	sources  []intentsource.Source
	breakers map[string]*resilience.Breaker
	running  atomic.Bool
	metrics  *otel.Metrics
}

// NewIngestService creates a new IngestService.
func NewIngestService(store database.Store, intents *IntentService, cfg config.Breaker, sources ...intentsource.Source) *IngestService {
	breakers := make(map[string]*resilience.Breaker, len(sources))
	for _, src := range sources {
		b := resilience.NewBreaker(src.Name(), cfg.MaxFailures, cfg.Timeout)
		b.OnStateChange(func(name string, from, to resilience.State) {
			slog.Warn("ingest circuit changed", "source", name, "from", from, "to", to)
		})
		breakers[src.Name()] = b
	}
	return &IngestService{store: store, intents: intents, sources: sources, breakers: breakers}
}

// SetMetrics attaches metric instruments.
func (s *IngestService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// RunOnce fetches every source once. A pass already in progress makes
// this call a no-op with Busy set.
func (s *IngestService) RunOnce(ctx context.Context) (IngestReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return IngestReport{Busy: true}, nil
	}
	defer s.running.Store(false)

	rep := IngestReport{Sources: make(map[string]SourceReport, len(s.sources))}
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Sources[src.Name()] = s.runSource(ctx, src)
	}
	return rep, nil
}

func (s *IngestService) runSource(ctx context.Context, src intentsource.Source) (sr SourceReport) {
	ctx, span := otel.StartIngestSpan(ctx, src.Name())
	var spanErr error
	defer func() { otel.EndSpan(span, spanErr) }()

	var reqs []intent.CreateRequest
	err := s.breakers[src.Name()].Execute(ctx, func(ctx context.Context) error {
		got, err := src.Fetch(ctx)
		reqs = got
		return err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = fmt.Errorf("%s: %w: %w", src.Name(), domain.ErrUpstreamUnavailable, err)
		}
		spanErr = err
		sr.Error = err.Error()
		slog.Warn("ingest fetch failed", "source", src.Name(), "error", err)
		return sr
	}

	sr.Fetched = len(reqs)
	for i := range reqs {
		req := reqs[i]
		if req.SourceURL != "" {
			_, err := s.store.FindIntentBySourceURL(ctx, req.SourceURL)
			if err == nil {
				sr.Skipped++
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				sr.Failed++
				slog.Warn("ingest dedupe lookup failed", "source", src.Name(), "url", req.SourceURL, "error", err)
				continue
			}
		}

		_, err := s.intents.Create(ctx, req)
		switch {
		case err == nil:
			sr.Created++
		case errors.Is(err, domain.ErrConflict):
			sr.Skipped++
		default:
			sr.Failed++
			slog.Warn("ingest create failed", "source", src.Name(), "url", req.SourceURL, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.IntentsIngested.Add(ctx, int64(sr.Created))
	}
	slog.Info("ingest finished", "source", src.Name(), "fetched", sr.Fetched, "created", sr.Created, "skipped", sr.Skipped, "failed", sr.Failed)
	return sr
}

// Start runs a pass every interval until ctx is cancelled.
func (s *IngestService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("ingest scheduler started", "interval", interval, "sources", len(s.sources))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() {
				if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
					slog.Error("ingest failed", "error", err)
				}
			}()
		}
	}
}

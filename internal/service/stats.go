package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/stats"
	"github.com/Strob0t/IntentMarket/internal/port/cache"
	"github.com/Strob0t/IntentMarket/internal/port/database"
)

const (
	statsKey     = "stats:current"
	statsLastKey = "stats:last"
)

// StatsService serves marketplace counters through the cache.
type StatsService struct {
	store database.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewStatsService creates a new StatsService. Fresh counts are cached for ttl.
func NewStatsService(store database.Store, c cache.Cache, ttl time.Duration) *StatsService {
	return &StatsService{store: store, cache: c, ttl: ttl}
}

// Get returns current counts. A cached value younger than the TTL is served
// without touching the store. When the store is unreachable the last known
// counts are served with stale set.
func (s *StatsService) Get(ctx context.Context) (counts stats.Counts, stale bool, err error) {
	if s.cache != nil {
		if c, ok, _ := cache.GetJSON[stats.Counts](ctx, s.cache, statsKey); ok {
			return c, false, nil
		}
	}

	counts, err = s.store.Counts(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstreamUnavailable) || s.cache == nil {
			return stats.Counts{}, false, err
		}
		slog.Warn("stats store unavailable, serving last known counts", "error", err)
		last, _, _ := cache.GetJSON[stats.Counts](ctx, s.cache, statsLastKey)
		return last, true, nil
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, statsKey, counts, s.ttl); err != nil {
			slog.Debug("stats cache write failed", "error", err)
		}
		if err := cache.SetJSON(ctx, s.cache, statsLastKey, counts, fallbackTTL); err != nil {
			slog.Debug("stats cache write failed", "error", err)
		}
	}
	return counts, false, nil
}

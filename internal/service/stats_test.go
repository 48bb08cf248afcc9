package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
)

func TestStatsGet_CachesAndDegrades(t *testing.T) {
	store := newMockStore()
	c := newMockCache()
	svc := NewStatsService(store, c, time.Minute)
	ctx := context.Background()
	seedAgent(t, store, auditorAgent())
	seedIntent(t, store, auditorIntent())

	counts, stale, err := svc.Get(ctx)
	if err != nil || stale {
		t.Fatalf("Get: stale=%v err=%v", stale, err)
	}
	if counts.Agents != 1 || counts.AvailableAgents != 1 || counts.OpenIntents != 1 {
		t.Errorf("counts = %+v", counts)
	}

	// Fresh entry expired; the store is down; last known counts are served.
	_ = c.Delete(ctx, statsKey)
	store.setDown(true)
	counts, stale, err = svc.Get(ctx)
	if err != nil {
		t.Fatalf("degraded Get: %v", err)
	}
	if !stale || counts.Intents != 1 {
		t.Errorf("degraded counts = %+v stale=%v", counts, stale)
	}
}

func TestStatsGet_ServesFreshCacheWithoutStore(t *testing.T) {
	store := newMockStore()
	c := newMockCache()
	svc := NewStatsService(store, c, time.Minute)
	ctx := context.Background()

	if _, _, err := svc.Get(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertAgent(ctx, &agent.RegisterRequest{Key: "k", Name: "n"}); err != nil {
		t.Fatal(err)
	}
	counts, _, err := svc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Agents != 0 {
		t.Errorf("expected cached counts, got %+v", counts)
	}
}

func TestStatsGet_NoCachePropagatesUpstream(t *testing.T) {
	store := newMockStore()
	store.setDown(true)
	svc := NewStatsService(store, nil, time.Minute)
	if _, _, err := svc.Get(context.Background()); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("got %v, want ErrUpstreamUnavailable", err)
	}
}

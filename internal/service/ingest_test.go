package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
)

type fakeSource struct {
	name  string
	reqs  []intent.CreateRequest
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) ([]intent.CreateRequest, error) {
	f.calls++
	return f.reqs, f.err
}

func sourced(url, title string) intent.CreateRequest {
	return intent.CreateRequest{
		PosterKey:      "moltbook:alice",
		Title:          title,
		Description:    title + " please",
		Category:       "technical",
		SourcePlatform: "moltbook",
		SourceURL:      url,
	}
}

func TestIngestRunOnce_CreatesAndDedupes(t *testing.T) {
	store := newMockStore()
	intents := newTestIntentService(t, store, &mockQueue{}, nil)
	src := &fakeSource{name: "moltbook", reqs: []intent.CreateRequest{
		sourced("https://www.moltbook.com/posts/1", "Need an API client"),
		sourced("https://www.moltbook.com/posts/2", "Looking for a designer"),
	}}
	svc := NewIngestService(store, intents, config.Breaker{MaxFailures: 2, Timeout: time.Minute}, src)
	ctx := context.Background()

	rep, err := svc.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := rep.Sources["moltbook"]
	if got.Fetched != 2 || got.Created != 2 || got.Skipped != 0 {
		t.Fatalf("first pass = %+v", got)
	}

	rep, err = svc.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := rep.Sources["moltbook"]; got.Created != 0 || got.Skipped != 2 {
		t.Fatalf("second pass = %+v, want all skipped", got)
	}

	list, _ := store.ListIntents(ctx, intent.ListFilter{})
	if len(list) != 2 || list[0].SourcePlatform != "moltbook" {
		t.Errorf("stored intents = %+v", list)
	}
}

func TestIngestRunOnce_InvalidRecordCountsAsFailure(t *testing.T) {
	store := newMockStore()
	intents := newTestIntentService(t, store, &mockQueue{}, nil)
	bad := sourced("https://example.com/3", "")
	src := &fakeSource{name: "openclaw", reqs: []intent.CreateRequest{bad}}
	svc := NewIngestService(store, intents, config.Breaker{MaxFailures: 2, Timeout: time.Minute}, src)

	rep, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := rep.Sources["openclaw"]; got.Failed != 1 || got.Created != 0 {
		t.Errorf("report = %+v", got)
	}
}

func TestIngestRunOnce_BreakerOpensOnRepeatedFailures(t *testing.T) {
	store := newMockStore()
	intents := newTestIntentService(t, store, &mockQueue{}, nil)
	src := &fakeSource{name: "moltbook", err: errors.New("502 bad gateway")}
	svc := NewIngestService(store, intents, config.Breaker{MaxFailures: 2, Timeout: time.Hour}, src)
	ctx := context.Background()

	for range 3 {
		rep, err := svc.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if rep.Sources["moltbook"].Error == "" {
			t.Fatal("expected a source error in the report")
		}
	}
	if src.calls != 2 {
		t.Errorf("source called %d times, want 2 before the circuit opened", src.calls)
	}
}

func TestIngestRunOnce_BusyIsNoop(t *testing.T) {
	store := newMockStore()
	src := &fakeSource{name: "moltbook"}
	svc := NewIngestService(store, newTestIntentService(t, store, &mockQueue{}, nil), config.Breaker{MaxFailures: 1, Timeout: time.Minute}, src)

	svc.running.Store(true)
	rep, err := svc.RunOnce(context.Background())
	if err != nil || !rep.Busy {
		t.Fatalf("busy pass = %+v, %v", rep, err)
	}
	if src.calls != 0 {
		t.Error("source fetched during a busy pass")
	}
}

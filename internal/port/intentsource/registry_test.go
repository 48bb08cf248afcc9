package intentsource_test

import (
	"context"
	"slices"
	"testing"

	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/port/intentsource"
)

type testSource struct {
	name string
	url  string
}

func (s *testSource) Name() string { return s.name }
func (s *testSource) Fetch(context.Context) ([]intent.CreateRequest, error) {
	return nil, nil
}

func TestRegisterAndNew(t *testing.T) {
	intentsource.Register("test-source", func(cfg intentsource.Config) (intentsource.Source, error) {
		return &testSource{name: "test-source", url: cfg.URL}, nil
	})

	src, err := intentsource.New("test-source", intentsource.Config{URL: "http://example.test"})
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "test-source" {
		t.Fatalf("expected test-source, got %s", src.Name())
	}
	if got := src.(*testSource).url; got != "http://example.test" {
		t.Fatalf("config not passed through, url=%q", got)
	}
	if !slices.Contains(intentsource.Available(), "test-source") {
		t.Fatal("expected test-source in available sources")
	}
}

func TestNewUnknownSource(t *testing.T) {
	if _, err := intentsource.New("nonexistent", intentsource.Config{}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	factory := func(intentsource.Config) (intentsource.Source, error) { return &testSource{}, nil }
	intentsource.Register("dup-source", factory)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	intentsource.Register("dup-source", factory)
}

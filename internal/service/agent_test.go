package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
)

func TestAgentRegister_UpsertsByKey(t *testing.T) {
	store := newMockStore()
	hub := &mockBroadcaster{}
	svc := NewAgentService(store, hub)
	ctx := context.Background()

	first, err := svc.Register(ctx, agent.RegisterRequest{Key: " wallet-1 ", Name: "Auditor", Skills: []string{"solana", " ", "solana", "rust"}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if first.Key != "wallet-1" || len(first.Skills) != 2 || !first.Available {
		t.Errorf("normalized agent = %+v", first)
	}

	second, err := svc.Register(ctx, agent.RegisterRequest{Key: "wallet-1", Name: "Auditor v2"})
	if err != nil {
		t.Fatalf("Register again: %v", err)
	}
	if second.ID != first.ID || second.Name != "Auditor v2" {
		t.Errorf("re-register did not update in place: %+v", second)
	}

	list, err := svc.List(ctx, agent.ListFilter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if len(hub.events) != 2 || hub.events[0] != ws.EventAgentRegistered {
		t.Errorf("events = %v", hub.events)
	}
}

func TestAgentRegister_Validation(t *testing.T) {
	svc := NewAgentService(newMockStore(), &mockBroadcaster{})
	tests := []struct {
		name string
		req  agent.RegisterRequest
	}{
		{"missing key", agent.RegisterRequest{Name: "x"}},
		{"missing name", agent.RegisterRequest{Key: "k"}},
		{"control chars", agent.RegisterRequest{Key: "k", Name: "bad\x00name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.req); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestAgentGet(t *testing.T) {
	store := newMockStore()
	svc := NewAgentService(store, &mockBroadcaster{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, agent.RegisterRequest{Key: "k", Name: "n"}); err != nil {
		t.Fatal(err)
	}
	if a, err := svc.Get(ctx, "k"); err != nil || a.Name != "n" {
		t.Fatalf("Get = %+v, %v", a, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

package main

import (
	"slices"
	"testing"

	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/secrets"
)

func TestWSOriginPatterns(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"", "*"},
		{"*", "*"},
		{"http://localhost:3000", "localhost:3000"},
		{"https://intentmarket.example/", "intentmarket.example"},
	}
	for _, tt := range tests {
		got := wsOriginPatterns(tt.origin)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("wsOriginPatterns(%q) = %v, want [%s]", tt.origin, got, tt.want)
		}
	}
}

func TestBuildSources(t *testing.T) {
	t.Setenv(moltbookKeyEnv, "mb-key")
	vault, err := secrets.NewVault(secrets.EnvLoader(moltbookKeyEnv))
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults().Ingest
	cfg.Moltbook.Enabled = true
	cfg.OpenClaw.Enabled = false

	srcs, err := buildSources(cfg, vault)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(srcs))
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	if !slices.Equal(names, []string{"moltbook"}) {
		t.Fatalf("unexpected sources %v", names)
	}

	cfg.OpenClaw.Enabled = true
	cfg.OpenClaw.URL = ""
	if _, err := buildSources(cfg, vault); err == nil {
		t.Fatal("expected error for openclaw without url")
	}
}

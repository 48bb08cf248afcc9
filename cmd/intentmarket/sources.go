package main

// Source blank imports: each import activates a self-registering intent source.

import (
	"fmt"

	_ "github.com/Strob0t/IntentMarket/internal/adapter/moltbook"
	_ "github.com/Strob0t/IntentMarket/internal/adapter/openclaw"
	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/port/intentsource"
	"github.com/Strob0t/IntentMarket/internal/secrets"
)

// buildSources instantiates the enabled intent sources.
func buildSources(cfg config.Ingest, vault *secrets.Vault) ([]intentsource.Source, error) {
	type sourceEntry struct {
		name    string
		enabled bool
		conf    intentsource.Config
	}
	entries := []sourceEntry{
		{"moltbook", cfg.Moltbook.Enabled, intentsource.Config{
			URL:    cfg.Moltbook.URL,
			APIKey: vault.Get(moltbookKeyEnv),
			Limit:  cfg.Moltbook.Limit,
			Sorts:  cfg.Moltbook.Sorts,
		}},
		{"openclaw", cfg.OpenClaw.Enabled, intentsource.Config{
			URL:    cfg.OpenClaw.URL,
			APIKey: vault.Get(openclawKeyEnv),
			Limit:  cfg.OpenClaw.Limit,
		}},
	}

	var out []intentsource.Source
	for _, s := range entries {
		if !s.enabled {
			continue
		}
		s.conf.UserAgent = cfg.UserAgent
		s.conf.Timeout = cfg.Timeout
		src, err := intentsource.New(s.name, s.conf)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		out = append(out, src)
	}
	return out, nil
}

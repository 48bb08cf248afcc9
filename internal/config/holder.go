package config

import (
	"fmt"
	"sync/atomic"
)

// Holder gives concurrent readers the current Config and swaps in a new one
// on Reload. A failed reload keeps the previous config.
type Holder struct {
	cur  atomic.Pointer[Config]
	path string
}

// NewHolder wraps an already loaded config and the YAML path it came from.
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	h.cur.Store(cfg)
	return h
}

// Get returns the current config. Callers must not mutate it.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Matching returns the current matching settings.
func (h *Holder) Matching() Matching {
	return h.cur.Load().Matching
}

// Reload re-reads YAML and environment and swaps the result in if valid.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	h.cur.Store(cfg)
	return nil
}

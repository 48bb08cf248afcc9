package intentsource

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Config carries the settings a source factory needs.
type Config struct {
	URL       string
	APIKey    string
	Limit     int
	Sorts     []string
	UserAgent string
	Timeout   time.Duration
}

// Factory is a constructor function that creates a new Source instance.
type Factory func(cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a source factory available by name.
// It is typically called from an init() function in the adapter package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("intentsource: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New creates a new Source by name using the registered factory.
func New(name string, cfg Config) (Source, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("intentsource: unknown source %q", name)
	}
	return factory(cfg)
}

// Available returns the sorted names of all registered sources.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

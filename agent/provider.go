package agent

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds an Agent from configuration.
type Factory func(cfg Config) (Agent, error)

var providers = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// RegisterProvider makes a provider available to New under name. Registering
// the same name twice replaces the earlier factory.
func RegisterProvider(name string, factory Factory) {
	providers.mu.Lock()
	defer providers.mu.Unlock()
	providers.factories[name] = factory
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	providers.mu.RLock()
	defer providers.mu.RUnlock()

	names := make([]string, 0, len(providers.factories))
	for name := range providers.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New creates an agent using the factory registered for cfg.Provider.
func New(cfg *Config) (Agent, error) {
	providers.mu.RLock()
	factory, ok := providers.factories[cfg.Provider]
	providers.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	return factory(*cfg)
}

package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected store adapter.
type Factory func(logger *slog.Logger) Adapter

// ErrNoAdapterType is returned when a store config names no adapter.
var ErrNoAdapterType = errors.New("adapter type not specified")

// stores maps adapter names to factories. Adapters fill it from init().
var stores = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register makes a store adapter available under name. Registering the same
// name twice, or a nil factory, panics.
func Register(name string, factory Factory) {
	stores.Lock()
	defer stores.Unlock()

	if factory == nil {
		panic("adapter: Register factory is nil for " + name)
	}
	if _, dup := stores.factories[name]; dup {
		panic("adapter: Register called twice for " + name)
	}
	stores.factories[name] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	stores.RLock()
	defer stores.RUnlock()
	f, ok := stores.factories[name]
	return f, ok
}

// IsRegistered reports whether name has a registered factory.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered adapter names in sorted order.
func ListAdapters() []string {
	stores.RLock()
	defer stores.RUnlock()
	names := make([]string, 0, len(stores.factories))
	for name := range stores.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewAdapter builds the unconnected adapter named by cfg.Type.
// A nil logger is replaced by the adapter's discard logger.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoAdapterType
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// UnknownAdapterError is returned when cfg.Type names no registered adapter.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check dataset.adapter in pasture.yaml",
		e.Type, strings.Join(e.Available, ", "))
}

package introspect

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Introspector)
)

func init() {
	Register("duckdb", func(l *slog.Logger) Introspector { return NewDuckDB(l) })
	Register("postgres", func(l *slog.Logger) Introspector { return NewPostgres(l) })
	Register("mysql", func(l *slog.Logger) Introspector { return NewMySQL(l) })
	Register("sqlite", func(l *slog.Logger) Introspector { return NewSQLite(l) })
}

// Register adds an introspector factory to the registry.
func Register(name string, factory func(*slog.Logger) Introspector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an introspector factory by name.
func Get(name string) (func(*slog.Logger) Introspector, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates an introspector for cfg.Type.
// The logger parameter is passed to the constructor (nil uses discard logger).
func New(cfg Config, logger *slog.Logger) (Introspector, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("driver type not specified")
	}

	factory, ok := Get(strings.ToLower(cfg.Type))
	if !ok {
		return nil, &UnknownDriverError{
			Type:      cfg.Type,
			Available: List(),
		}
	}
	return factory(logger), nil
}

// List returns all registered driver names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a driver type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownDriverError is returned when an unknown driver type is requested.
type UnknownDriverError struct {
	Type      string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown driver type %q\nAvailable drivers: %v\nHint: Check connections[].type in cellsql.yaml", e.Type, e.Available)
}

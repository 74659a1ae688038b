package dialect

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Dialect registry
var (
	dialectsMu     sync.RWMutex
	dialects       = make(map[string]*Dialect)
	defaultDialect *Dialect
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

// Get returns a dialect by name.
func Get(name string) (*Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(name)]
	return d, ok
}

// MustGet returns a registered dialect or ErrDialectRequired.
func MustGet(name string) (*Dialect, error) {
	d, ok := Get(name)
	if !ok {
		return nil, ErrDialectRequired
	}
	return d, nil
}

// Register registers a dialect in the global registry.
func Register(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(d.Name)] = d
}

// List returns all registered dialect names (sorted).
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault sets the dialect returned by Default.
func SetDefault(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	defaultDialect = d
}

// Default returns the generic dialect used when nothing better is known.
func Default() *Dialect {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	return defaultDialect
}

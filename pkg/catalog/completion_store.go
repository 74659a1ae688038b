package catalog

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/leapstack-labs/cellsql/pkg/dialect"
)

// DefaultCacheCapacity is the number of derived schemas kept by default.
const DefaultCacheCapacity = 10

// CompletionConfig is everything a query completion source needs for one
// connection.
type CompletionConfig struct {
	Dialect       *dialect.Dialect
	Schema        *Namespace
	DefaultSchema string
	// DefaultTable is set only for a connection with exactly one table.
	DefaultTable string
}

// Config configures a SQLCompletionStore.
type Config struct {
	// Capacity bounds the derived-schema cache. Zero means DefaultCacheCapacity.
	Capacity int
	Logger   *slog.Logger
}

type cacheEntry struct {
	conn    *Connection
	derived *DerivedSchema
}

// SQLCompletionStore derives completion schemas from a connection store and
// caches them per connection name in an LRU. A single mutex guards the
// cache, since LRU bookkeeping mutates on every read.
type SQLCompletionStore struct {
	connections ConnectionStore
	tables      TableStore
	logger      *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, *cacheEntry]
}

// NewSQLCompletionStore creates a completion store over the given stores.
// tables may be nil when no local tables exist.
func NewSQLCompletionStore(connections ConnectionStore, tables TableStore, cfg Config) (*SQLCompletionStore, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCacheCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	cache, err := lru.New[string, *cacheEntry](cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	return &SQLCompletionStore{
		connections: connections,
		tables:      tables,
		logger:      cfg.Logger,
		cache:       cache,
	}, nil
}

// GetDialect returns the dialect for a connection. Unknown connections and
// unknown engine kinds resolve to the default dialect.
func (s *SQLCompletionStore) GetDialect(name string) *dialect.Dialect {
	if d, ok := s.PreferredDialect(name); ok {
		return d
	}
	return dialect.Default()
}

// PreferredDialect returns the dialect a connection asks for. It reports
// false for unknown connections and unknown engine kinds, in which case
// callers keep whatever dialect is already active.
func (s *SQLCompletionStore) PreferredDialect(name string) (*dialect.Dialect, bool) {
	conn, ok := s.connections.Connection(name)
	if !ok {
		return nil, false
	}
	return dialect.Guess(conn.Dialect)
}

// GetCompletionSource returns the completion configuration for a
// connection, or nil when the connection is unknown. The returned schema
// may be shared with the cache and must not be modified.
func (s *SQLCompletionStore) GetCompletionSource(name string) *CompletionConfig {
	conn, ok := s.connections.Connection(name)
	if !ok {
		return nil
	}

	derived := s.getOrCreate(conn)

	schema := derived.Schema
	if derived.ShouldMergeLocalTables && s.tables != nil {
		if local := s.tables.Tables(); len(local) > 0 {
			schema = schema.Clone()
			for _, t := range local {
				schema.SetIfAbsent(t.Name, Leaf(t.ColumnNames()))
			}
		}
	}

	cfg := &CompletionConfig{
		Dialect:       s.GetDialect(name),
		Schema:        schema,
		DefaultSchema: derived.DefaultSchema,
	}
	if table, ok := SingleTable(conn); ok {
		cfg.DefaultTable = table
	}
	return cfg
}

// Derived returns the cached derivation for a connection, computing it on
// a miss.
func (s *SQLCompletionStore) Derived(name string) (*DerivedSchema, error) {
	conn, ok := s.connections.Connection(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, name)
	}
	return s.getOrCreate(conn), nil
}

// getOrCreate returns the cached derivation for conn. An entry derived
// from a different connection value under the same name is a miss.
func (s *SQLCompletionStore) getOrCreate(conn *Connection) *DerivedSchema {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.cache.Get(conn.Name); ok && entry.conn == conn {
		return entry.derived
	}

	derived := DeriveSchema(conn)
	if evicted := s.cache.Add(conn.Name, &cacheEntry{conn: conn, derived: derived}); evicted {
		s.logger.Debug("evicted least recently used schema", slog.String("inserted", conn.Name))
	}
	s.logger.Debug("derived schema", slog.String("connection", conn.Name))
	return derived
}

// Invalidate drops cached derivations for the given connections.
func (s *SQLCompletionStore) Invalidate(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.cache.Remove(name)
	}
}

// Purge drops every cached derivation.
func (s *SQLCompletionStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

// Cached reports whether a derivation for name is cached, without
// touching its recency.
func (s *SQLCompletionStore) Cached(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Contains(name)
}

// Len returns the number of cached derivations.
func (s *SQLCompletionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

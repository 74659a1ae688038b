package catalog

import (
	"reflect"
	"sort"
	"sync"
)

// ConnectionStore resolves connections by name.
type ConnectionStore interface {
	Connection(name string) (*Connection, bool)
}

// TableStore lists locally known tables.
type TableStore interface {
	Tables() []Table
}

// MemoryStore holds the current catalog snapshot in memory. It implements
// both ConnectionStore and TableStore and is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	order       []string
	tables      []Table
	variables   []string
}

// NewMemoryStore creates a store seeded with the given connections.
func NewMemoryStore(conns ...*Connection) *MemoryStore {
	s := &MemoryStore{connections: make(map[string]*Connection)}
	for _, c := range conns {
		s.Upsert(c)
	}
	return s
}

// Connection returns the named connection.
func (s *MemoryStore) Connection(name string) (*Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[name]
	return c, ok
}

// Connections returns all connections in insertion order.
func (s *MemoryStore) Connections() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Connection, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.connections[name])
	}
	return out
}

// First returns the first connection in insertion order.
func (s *MemoryStore) First() (*Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, false
	}
	return s.connections[s.order[0]], true
}

// Tables returns the locally known tables.
func (s *MemoryStore) Tables() []Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Table(nil), s.tables...)
}

// Variables returns the known host variable names, sorted.
func (s *MemoryStore) Variables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.variables...)
}

// Upsert adds or replaces a single connection.
func (s *MemoryStore) Upsert(c *Connection) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[c.Name]; !ok {
		s.order = append(s.order, c.Name)
	}
	s.connections[c.Name] = c
}

// SetTables replaces the locally known tables.
func (s *MemoryStore) SetTables(tables []Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append([]Table(nil), tables...)
}

// Replace swaps in a whole snapshot and returns the names of connections
// that were added, removed or changed. Connections that are structurally
// unchanged keep their previous pointer, so derived caches keyed on the
// pointer stay warm across reloads.
func (s *MemoryStore) Replace(snap *Snapshot) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*Connection, len(snap.Connections))
	order := make([]string, 0, len(snap.Connections))
	changed := make(map[string]struct{})

	for i := range snap.Connections {
		c := snap.Connections[i]
		if _, dup := next[c.Name]; !dup {
			order = append(order, c.Name)
		}
		if prev, ok := s.connections[c.Name]; ok && reflect.DeepEqual(*prev, c) {
			next[c.Name] = prev
			continue
		}
		next[c.Name] = &c
		changed[c.Name] = struct{}{}
	}
	for name := range s.connections {
		if _, ok := next[name]; !ok {
			changed[name] = struct{}{}
		}
	}

	s.connections = next
	s.order = order
	s.tables = append([]Table(nil), snap.Tables...)
	s.variables = append([]string(nil), snap.Variables...)
	sort.Strings(s.variables)

	out := make([]string, 0, len(changed))
	for name := range changed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the current state.
func (s *MemoryStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		Tables:    append([]Table(nil), s.tables...),
		Variables: append([]string(nil), s.variables...),
	}
	for _, name := range s.order {
		snap.Connections = append(snap.Connections, *s.connections[name])
	}
	return snap
}

var (
	_ ConnectionStore = (*MemoryStore)(nil)
	_ TableStore      = (*MemoryStore)(nil)
)

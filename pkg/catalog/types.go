// Package catalog models data-catalog connections and derives the nested
// schema descriptions that drive query completion.
//
// Connections arrive as immutable snapshots from an owning subsystem (a
// catalog file, live introspection, or an API push). SQLCompletionStore
// derives a completion schema per connection lazily and keeps the most
// recently used derivations in a bounded LRU cache.
package catalog

import "errors"

// DefaultEngine is the name of the built-in in-process engine that query
// cells use when no engine argument is given. A cell bound to it carries
// no engine argument.
const DefaultEngine = "duckdb"

// ErrUnknownConnection is returned when a named connection is not in the store.
var ErrUnknownConnection = errors.New("unknown connection")

// Column is a table column.
type Column struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// Table is a table or view with its columns.
type Table struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []Column `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// ColumnNames returns the names of the table's columns in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema groups tables. A schemaless database carries a single schema whose
// name is one of SchemalessNames.
type Schema struct {
	Name   string  `yaml:"name" json:"name"`
	Tables []Table `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// Database groups schemas.
type Database struct {
	Name    string   `yaml:"name" json:"name"`
	Dialect string   `yaml:"dialect,omitempty" json:"dialect,omitempty"`
	Engine  string   `yaml:"engine,omitempty" json:"engine,omitempty"`
	Schemas []Schema `yaml:"schemas,omitempty" json:"schemas,omitempty"`
}

// Connection is a named data source: the engine a query cell can target.
// Connections are treated as immutable once handed to a store.
type Connection struct {
	// Name is the engine variable name referenced from cells.
	Name string `yaml:"name" json:"name"`
	// Dialect is the declared engine kind, e.g. postgresql or duckdb.
	Dialect         string     `yaml:"dialect" json:"dialect"`
	Source          string     `yaml:"source,omitempty" json:"source,omitempty"`
	DisplayName     string     `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Databases       []Database `yaml:"databases,omitempty" json:"databases,omitempty"`
	DefaultDatabase string     `yaml:"default_database,omitempty" json:"default_database,omitempty"`
	DefaultSchema   string     `yaml:"default_schema,omitempty" json:"default_schema,omitempty"`
}

// Label returns the display name, falling back to the connection name.
func (c *Connection) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// TableCount returns the total number of tables across all databases.
func (c *Connection) TableCount() int {
	n := 0
	for _, db := range c.Databases {
		for _, s := range db.Schemas {
			n += len(s.Tables)
		}
	}
	return n
}

// DefaultConnection returns the descriptor of the built-in engine.
func DefaultConnection() *Connection {
	return &Connection{
		Name:        DefaultEngine,
		Dialect:     "duckdb",
		Source:      "duckdb",
		DisplayName: "DuckDB (In-Memory)",
	}
}

// Snapshot is a complete catalog state: connections plus locally known
// tables (for example in-memory dataframes) and host variable names.
type Snapshot struct {
	Connections []Connection `yaml:"connections" json:"connections"`
	Tables      []Table      `yaml:"tables,omitempty" json:"tables,omitempty"`
	Variables   []string     `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Package introspect builds catalog connections from live databases.
//
// Each supported driver reads its information schema and returns a
// catalog.Connection whose databases, schemas, tables and columns mirror
// what the database reports. The result feeds the same snapshot path as a
// catalog file, so completion sees introspected and declared connections
// alike.
package introspect

import (
	"context"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Name is the engine variable name cells refer to.
	Name string

	// Type selects the driver (e.g., "duckdb", "postgres", "sqlite").
	Type string

	// Path is the file path for file-based databases (DuckDB, SQLite).
	// Use ":memory:" for in-memory databases.
	Path string

	// Host is the hostname for network-based databases
	Host string

	// Port is the port number for network-based databases
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Schemas restricts introspection to the listed schemas. Empty means all.
	Schemas []string

	// Options contains additional driver-specific options
	Options map[string]string

	// Params holds driver-specific structured configuration
	Params map[string]any
}

// Introspector reads the structure of one database.
type Introspector interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Introspect returns the connection descriptor for the connected database.
	Introspect(ctx context.Context) (*catalog.Connection, error)

	// DialectName returns the SQL dialect name for this driver.
	DialectName() string
}

package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// SQLite has no information schema; the schema layer is reported empty so
// the catalog treats the file as schemaless.
const sqliteColumnsQuery = `
	SELECT 'main', '', m.name, p.name, p.type
	FROM sqlite_master m
	JOIN pragma_table_info(m.name) p
	WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
	ORDER BY m.name, p.cid
`

// SQLite introspects SQLite database files.
type SQLite struct {
	BaseSQLIntrospector
}

// NewSQLite creates a new SQLite introspector.
func NewSQLite(logger *slog.Logger) *SQLite {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLite{BaseSQLIntrospector: BaseSQLIntrospector{Logger: logger}}
}

// DialectName returns the SQL dialect for this driver.
func (s *SQLite) DialectName() string {
	return "sqlite"
}

// Connect opens the database file read-only.
func (s *SQLite) Connect(ctx context.Context, cfg Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("sqlite connection %s: path is required", cfg.Name)
	}
	dsn := "file:" + cfg.Path + "?mode=ro"
	if cfg.Path == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.DB = db
	s.Cfg = cfg
	return nil
}

// Introspect lists the tables and views of the database file.
func (s *SQLite) Introspect(ctx context.Context) (*catalog.Connection, error) {
	rows, err := s.QueryColumns(ctx, sqliteColumnsQuery)
	if err != nil {
		return nil, err
	}
	conn := BuildConnection(s.Cfg, s.DialectName(), rows, "main", "")
	if len(conn.Databases) == 0 {
		conn.Databases = []catalog.Database{{Name: "main", Dialect: s.DialectName(), Schemas: []catalog.Schema{{Name: ""}}}}
	}
	return conn, nil
}

var _ Introspector = (*SQLite)(nil)

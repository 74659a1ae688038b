package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// ColumnRow is one row of an information-schema column listing.
type ColumnRow struct {
	Database string
	Schema   string
	Table    string
	Column   string
	Type     string
}

// BaseSQLIntrospector provides common database/sql functionality for
// introspectors. Embed it in concrete drivers to get Close and the
// column-listing helpers.
type BaseSQLIntrospector struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLIntrospector) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection", slog.String("connection", b.Cfg.Name))
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLIntrospector) IsConnected() bool {
	return b.DB != nil
}

// QueryColumns runs a query returning (database, schema, table, column,
// type) rows and collects them in order.
func (b *BaseSQLIntrospector) QueryColumns(ctx context.Context, query string, args ...any) ([]ColumnRow, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ColumnRow
	for rows.Next() {
		var r ColumnRow
		if err := rows.Scan(&r.Database, &r.Schema, &r.Table, &r.Column, &r.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return out, nil
}

// QueryString runs a query that returns a single string.
func (b *BaseSQLIntrospector) QueryString(ctx context.Context, query string) (string, error) {
	if b.DB == nil {
		return "", fmt.Errorf("database connection not established")
	}
	var s string
	if err := b.DB.QueryRowContext(ctx, query).Scan(&s); err != nil {
		return "", fmt.Errorf("failed to query %q: %w", query, err)
	}
	return s, nil
}

// BuildConnection groups column rows into a catalog connection. Row order is
// preserved at every level. Rows outside cfg.Schemas are dropped when a
// schema filter is configured.
func BuildConnection(cfg Config, dialectName string, rows []ColumnRow, defaultDB, defaultSchema string) *catalog.Connection {
	conn := &catalog.Connection{
		Name:            cfg.Name,
		Dialect:         dialectName,
		Source:          cfg.Type,
		DefaultDatabase: defaultDB,
		DefaultSchema:   defaultSchema,
	}

	allowed := make(map[string]struct{}, len(cfg.Schemas))
	for _, s := range cfg.Schemas {
		allowed[s] = struct{}{}
	}

	type key struct{ db, schema, table string }
	dbIdx := map[string]int{}
	schemaIdx := map[key]int{}
	tableIdx := map[key]int{}

	for _, r := range rows {
		if len(allowed) > 0 {
			if _, ok := allowed[r.Schema]; !ok {
				continue
			}
		}

		di, ok := dbIdx[r.Database]
		if !ok {
			di = len(conn.Databases)
			dbIdx[r.Database] = di
			conn.Databases = append(conn.Databases, catalog.Database{Name: r.Database, Dialect: dialectName})
		}
		db := &conn.Databases[di]

		sk := key{db: r.Database, schema: r.Schema}
		si, ok := schemaIdx[sk]
		if !ok {
			si = len(db.Schemas)
			schemaIdx[sk] = si
			db.Schemas = append(db.Schemas, catalog.Schema{Name: r.Schema})
		}
		schema := &db.Schemas[si]

		tk := key{db: r.Database, schema: r.Schema, table: r.Table}
		ti, ok := tableIdx[tk]
		if !ok {
			ti = len(schema.Tables)
			tableIdx[tk] = ti
			schema.Tables = append(schema.Tables, catalog.Table{Name: r.Table})
		}
		table := &schema.Tables[ti]
		table.Columns = append(table.Columns, catalog.Column{Name: r.Column, Type: r.Type})
	}

	return conn
}

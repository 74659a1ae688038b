package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

const postgresColumnsQuery = `
	SELECT table_catalog, table_schema, table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
	ORDER BY table_schema, table_name, ordinal_position
`

// Postgres introspects PostgreSQL databases.
type Postgres struct {
	BaseSQLIntrospector
}

// NewPostgres creates a new PostgreSQL introspector.
// If logger is nil, a discard logger is used.
func NewPostgres(logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{BaseSQLIntrospector: BaseSQLIntrospector{Logger: logger}}
}

// DialectName returns the SQL dialect for this driver.
func (p *Postgres) DialectName() string {
	return "postgresql"
}

// Connect establishes a connection to PostgreSQL.
func (p *Postgres) Connect(ctx context.Context, cfg Config) error {
	dsn := buildPostgresDSN(cfg)

	p.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	p.DB = db
	p.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// Introspect lists the tables of the connected database. Other databases
// on the server are not reachable over the same connection.
func (p *Postgres) Introspect(ctx context.Context) (*catalog.Connection, error) {
	current, err := p.QueryString(ctx, "SELECT current_database()")
	if err != nil {
		return nil, err
	}
	rows, err := p.QueryColumns(ctx, postgresColumnsQuery)
	if err != nil {
		return nil, err
	}
	return BuildConnection(p.Cfg, p.DialectName(), rows, current, "public"), nil
}

var _ Introspector = (*Postgres)(nil)

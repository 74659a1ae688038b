package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// MySQL has no catalog level above schemas, so every schema on the server
// is reported under the connected database and the connected database is
// the default schema.
const mysqlColumnsQuery = `
	SELECT DATABASE(), table_schema, table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
	ORDER BY table_schema, table_name, ordinal_position
`

// MySQL introspects MySQL and MariaDB servers.
type MySQL struct {
	BaseSQLIntrospector
}

// NewMySQL creates a new MySQL introspector.
func NewMySQL(logger *slog.Logger) *MySQL {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MySQL{BaseSQLIntrospector: BaseSQLIntrospector{Logger: logger}}
}

// DialectName returns the SQL dialect for this driver.
func (m *MySQL) DialectName() string {
	return "mysql"
}

// Connect establishes a connection to the server.
func (m *MySQL) Connect(ctx context.Context, cfg Config) error {
	if cfg.Database == "" {
		return fmt.Errorf("mysql connection %s: database is required", cfg.Name)
	}

	m.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("mysql", buildMySQLDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open mysql connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping mysql: %w", err)
	}

	m.DB = db
	m.Cfg = cfg
	return nil
}

// buildMySQLDSN constructs a go-sql-driver DSN. Options are passed through
// as DSN parameters.
func buildMySQLDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = host + ":" + strconv.Itoa(port)
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	if len(cfg.Options) > 0 {
		mc.Params = make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// Introspect lists the columns of every user schema on the server.
func (m *MySQL) Introspect(ctx context.Context) (*catalog.Connection, error) {
	rows, err := m.QueryColumns(ctx, mysqlColumnsQuery)
	if err != nil {
		return nil, err
	}
	return BuildConnection(m.Cfg, m.DialectName(), rows, m.Cfg.Database, m.Cfg.Database), nil
}

var _ Introspector = (*MySQL)(nil)

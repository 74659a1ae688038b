package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// DuckDBParams holds DuckDB-specific configuration.
// Parsed from Config.Params using mapstructure.
type DuckDBParams struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// ParseDuckDBParams decodes raw params into DuckDBParams.
func ParseDuckDBParams(raw map[string]any) (*DuckDBParams, error) {
	params := &DuckDBParams{}
	if len(raw) == 0 {
		return params, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           params,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return params, nil
}

const duckdbColumnsQuery = `
	SELECT table_catalog, table_schema, table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
	  AND table_catalog NOT IN ('system', 'temp')
	ORDER BY table_catalog, table_schema, table_name, ordinal_position
`

// DuckDB introspects DuckDB databases.
type DuckDB struct {
	BaseSQLIntrospector
}

// NewDuckDB creates a new DuckDB introspector.
// If logger is nil, a discard logger is used.
func NewDuckDB(logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDB{BaseSQLIntrospector: BaseSQLIntrospector{Logger: logger}}
}

// DialectName returns the SQL dialect for this driver.
func (d *DuckDB) DialectName() string {
	return "duckdb"
}

// Connect opens the DuckDB database and applies configured extensions and
// settings. Use ":memory:" as the path for an in-memory database.
func (d *DuckDB) Connect(ctx context.Context, cfg Config) error {
	params, err := ParseDuckDBParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	d.DB = db
	d.Cfg = cfg

	if err := d.setup(ctx, params); err != nil {
		_ = d.Close()
		d.DB = nil
		return err
	}
	return nil
}

func (d *DuckDB) setup(ctx context.Context, params *DuckDBParams) error {
	for _, ext := range params.Extensions {
		d.Logger.Debug("loading duckdb extension", slog.String("extension", ext))
		if _, err := d.DB.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(params.Settings))
	for k := range params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.ReplaceAll(params.Settings[k], "'", "''")
		if _, err := d.DB.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", k, v)); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

// Introspect lists every table of every attached database.
func (d *DuckDB) Introspect(ctx context.Context) (*catalog.Connection, error) {
	current, err := d.QueryString(ctx, "SELECT current_database()")
	if err != nil {
		return nil, err
	}
	rows, err := d.QueryColumns(ctx, duckdbColumnsQuery)
	if err != nil {
		return nil, err
	}
	return BuildConnection(d.Cfg, d.DialectName(), rows, current, "main"), nil
}

var _ Introspector = (*DuckDB)(nil)

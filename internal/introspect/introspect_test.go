package introspect

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/testutil"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

func columnRows(rows ...[]string) *sqlmock.Rows {
	r := sqlmock.NewRows([]string{"table_catalog", "table_schema", "table_name", "column_name", "data_type"})
	for _, row := range rows {
		r.AddRow(row[0], row[1], row[2], row[3], row[4])
	}
	return r
}

func TestPostgres_Introspect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(testutil.NewTestLogger(t))
	p.DB = db
	p.Cfg = Config{Name: "pg", Type: "postgres"}

	mock.ExpectQuery(`SELECT current_database\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"current_database"}).AddRow("shop"))
	mock.ExpectQuery(`FROM information_schema.columns`).
		WillReturnRows(columnRows(
			[]string{"shop", "public", "orders", "id", "integer"},
			[]string{"shop", "public", "orders", "total", "numeric"},
			[]string{"shop", "public", "users", "id", "integer"},
			[]string{"shop", "audit", "events", "at", "timestamp"},
		))

	conn, err := p.Introspect(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "pg", conn.Name)
	assert.Equal(t, "postgresql", conn.Dialect)
	assert.Equal(t, "shop", conn.DefaultDatabase)
	assert.Equal(t, "public", conn.DefaultSchema)
	require.Len(t, conn.Databases, 1)
	require.Len(t, conn.Databases[0].Schemas, 2)

	public := conn.Databases[0].Schemas[0]
	assert.Equal(t, "public", public.Name)
	require.Len(t, public.Tables, 2)
	assert.Equal(t, []string{"id", "total"}, public.Tables[0].ColumnNames())
	assert.Equal(t, "numeric", public.Tables[0].Columns[1].Type)
	assert.Equal(t, 3, conn.TableCount())
}

func TestMySQL_Introspect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewMySQL(testutil.NewTestLogger(t))
	m.DB = db
	m.Cfg = Config{Name: "shopdb", Type: "mysql", Database: "shop"}

	mock.ExpectQuery(`FROM information_schema.columns`).
		WillReturnRows(columnRows(
			[]string{"shop", "shop", "orders", "id", "int"},
			[]string{"shop", "shop", "orders", "total", "decimal"},
			[]string{"shop", "archive", "orders_2023", "id", "int"},
		))

	conn, err := m.Introspect(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "mysql", conn.Dialect)
	assert.Equal(t, "mysql", conn.Source)
	assert.Equal(t, "shop", conn.DefaultDatabase)
	assert.Equal(t, "shop", conn.DefaultSchema)
	require.Len(t, conn.Databases, 1)
	require.Len(t, conn.Databases[0].Schemas, 2)
	assert.Equal(t, "archive", conn.Databases[0].Schemas[1].Name)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn := buildMySQLDSN(Config{Database: "shop"})
	assert.True(t, strings.HasPrefix(dsn, "tcp(localhost:3306)/shop"), dsn)

	dsn = buildMySQLDSN(Config{
		Host: "db.internal", Port: 3307, Database: "shop",
		Username: "reader", Password: "secret",
		Options: map[string]string{"charset": "utf8mb4"},
	})
	assert.True(t, strings.HasPrefix(dsn, "reader:secret@tcp(db.internal:3307)/shop?"), dsn)
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestDuckDB_Introspect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := NewDuckDB(nil)
	d.DB = db
	d.Cfg = Config{Name: "lake", Type: "duckdb", Schemas: []string{"main"}}

	mock.ExpectQuery(`SELECT current_database\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"current_database"}).AddRow("memory"))
	mock.ExpectQuery(`FROM information_schema.columns`).
		WillReturnRows(columnRows(
			[]string{"memory", "main", "trips", "fare", "DOUBLE"},
			[]string{"memory", "staging", "raw", "line", "VARCHAR"},
		))

	conn, err := d.Introspect(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "duckdb", conn.Dialect)
	assert.Equal(t, "main", conn.DefaultSchema)
	require.Len(t, conn.Databases, 1)
	require.Len(t, conn.Databases[0].Schemas, 1, "schema filter drops staging")
	assert.Equal(t, "trips", conn.Databases[0].Schemas[0].Tables[0].Name)
}

func TestIntrospect_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(nil)
	p.DB = db
	mock.ExpectQuery(`SELECT current_database\(\)`).WillReturnError(errors.New("boom"))

	_, err = p.Introspect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestIntrospect_NotConnected(t *testing.T) {
	_, err := NewSQLite(nil).Introspect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection not established")
}

func TestSQLite_IntrospectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT);
		CREATE TABLE orders (id INTEGER, user_id INTEGER, total REAL);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	conn, err := Run(context.Background(), Config{Name: "app", Type: "sqlite", Path: path}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", conn.Dialect)
	require.Len(t, conn.Databases, 1)
	schema := conn.Databases[0].Schemas[0]
	assert.True(t, catalog.IsSchemaless(schema.Name))
	require.Len(t, schema.Tables, 2)
	assert.Equal(t, "orders", schema.Tables[0].Name)
	assert.Equal(t, []string{"id", "user_id", "total"}, schema.Tables[0].ColumnNames())
	assert.Equal(t, "users", schema.Tables[1].Name)

	derived := catalog.DeriveSchema(conn)
	_, ok := derived.Schema.Child("orders")
	assert.True(t, ok, "schemaless tables surface at the top level")
}

func TestSQLite_RequiresPath(t *testing.T) {
	err := NewSQLite(nil).Connect(context.Background(), Config{Name: "x", Type: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name: "basic connection",
			config: Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: Config{
				Host:     "prod.example.com",
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name:     "defaults",
			config:   Config{Database: "mydb"},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestParseDuckDBParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *DuckDBParams
		wantErr bool
	}{
		{name: "nil params returns empty struct", input: nil, want: &DuckDBParams{}},
		{
			name:  "extensions only",
			input: map[string]any{"extensions": []any{"httpfs", "json"}},
			want:  &DuckDBParams{Extensions: []string{"httpfs", "json"}},
		},
		{
			name:  "settings are weakly typed",
			input: map[string]any{"settings": map[string]any{"threads": 4}},
			want:  &DuckDBParams{Settings: map[string]string{"threads": "4"}},
		},
		{
			name:    "unknown key",
			input:   map[string]any{"secretz": true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuckDBParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"duckdb", "postgres", "mysql", "sqlite"} {
		assert.True(t, IsRegistered(name), name)
	}
	assert.False(t, IsRegistered("oracle"))
	assert.Subset(t, List(), []string{"duckdb", "postgres", "sqlite"})

	_, err := New(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "driver type not specified", err.Error())

	_, err = New(Config{Type: "oracle"}, nil)
	var unknown *UnknownDriverError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
	assert.Contains(t, err.Error(), "cellsql.yaml")

	in, err := New(Config{Type: "Postgres"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgresql", in.DialectName())
}

type fakeIntrospector struct {
	cfg  Config
	fail bool
}

func (f *fakeIntrospector) Connect(_ context.Context, cfg Config) error {
	f.cfg = cfg
	if cfg.Path == "fail" {
		f.fail = true
	}
	return nil
}

func (f *fakeIntrospector) Close() error        { return nil }
func (f *fakeIntrospector) DialectName() string { return "mysql" }

func (f *fakeIntrospector) Introspect(context.Context) (*catalog.Connection, error) {
	if f.fail {
		return nil, errors.New("introspection failed")
	}
	return &catalog.Connection{Name: f.cfg.Name, Dialect: f.DialectName()}, nil
}

func TestAll(t *testing.T) {
	Register("fake", func(*slog.Logger) Introspector { return &fakeIntrospector{} })

	cfgs := []Config{
		{Name: "a", Type: "fake"},
		{Name: "b", Type: "fake"},
		{Name: "c", Type: "fake"},
	}
	conns, err := All(context.Background(), cfgs, nil)
	require.NoError(t, err)
	require.Len(t, conns, 3)
	for i, c := range conns {
		assert.Equal(t, cfgs[i].Name, c.Name)
	}

	cfgs[1].Path = "fail"
	_, err = All(context.Background(), cfgs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection b")
}

func TestMerge(t *testing.T) {
	base := &catalog.Snapshot{
		Connections: []catalog.Connection{
			{Name: "duckdb", Dialect: "duckdb"},
			{Name: "pg", Dialect: "postgresql", Source: "file"},
		},
		Variables: []string{"limit"},
	}
	merged := Merge(base, []catalog.Connection{
		{Name: "pg", Dialect: "postgresql", Source: "postgres"},
		{Name: "lake", Dialect: "duckdb"},
	})

	require.Len(t, merged.Connections, 3)
	assert.Equal(t, "postgres", merged.Connections[1].Source)
	assert.Equal(t, "lake", merged.Connections[2].Name)
	assert.Equal(t, []string{"limit"}, merged.Variables)
	assert.Equal(t, "file", base.Connections[1].Source, "base is not modified")

	assert.Len(t, Merge(nil, nil).Connections, 0)
}

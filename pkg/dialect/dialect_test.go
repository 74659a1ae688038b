package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	d := NewDialect("Test").
		WithKeywords("select", "FROM").
		WithFunctions("sum").
		WithDataTypes("INT", "int", "TEXT").
		WithDocs(map[string]FunctionDoc{"sum": {Description: "adds"}}).
		Build()

	assert.Equal(t, "test", d.GetName())
	assert.Equal(t, []string{"FROM", "SELECT"}, d.Keywords())
	assert.True(t, d.IsKeyword("Select"))
	assert.True(t, d.IsFunction("SUM"))
	assert.Equal(t, []string{"INT", "TEXT"}, d.DataTypes())

	doc, ok := d.GetDoc("Sum")
	require.True(t, ok)
	assert.Equal(t, "adds", doc.Description)
}

func TestBuilder_Extends(t *testing.T) {
	base := NewDialect("base").WithKeywords("SELECT").DefaultSchema("main").Build()
	child := NewDialect("child").Extends(base).WithKeywords("QUALIFY").Build()

	assert.True(t, child.IsKeyword("SELECT"))
	assert.True(t, child.IsKeyword("QUALIFY"))
	assert.False(t, base.IsKeyword("QUALIFY"), "extending must not mutate the base")
	assert.Equal(t, "main", child.DefaultSchema)
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect string
		name    string
		want    string
	}{
		{Standard, "users", "users"},
		{Standard, "select", `"select"`},
		{Standard, "My Table", `"My Table"`},
		{Standard, `a"b`, `"a""b"`},
		{MySQL, "Order", "`Order`"},
		{MSSQL, "weird]name", "[weird]]name]"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.name, func(t *testing.T) {
			d, ok := Get(tt.dialect)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.QuoteIdentifierIfNeeded(tt.name))
		})
	}
}

func TestRegistry(t *testing.T) {
	names := List()
	for _, want := range []string{Standard, PostgreSQL, MySQL, SQLite, MSSQL, DuckDB, MariaDB, Cassandra, PLSQL} {
		assert.Contains(t, names, want)
	}

	d, ok := Get("DuckDB")
	require.True(t, ok)
	assert.Equal(t, DuckDB, d.Name)

	_, err := MustGet("nope")
	require.ErrorIs(t, err, ErrDialectRequired)

	assert.Equal(t, Standard, Default().Name)
}

func TestGuess(t *testing.T) {
	tests := []struct {
		kind string
		want string
		ok   bool
	}{
		{"postgresql", PostgreSQL, true},
		{"postgres", PostgreSQL, true},
		{"mysql", MySQL, true},
		{"sqlite", SQLite, true},
		{"mssql", MSSQL, true},
		{"sqlserver", MSSQL, true},
		{"duckdb", DuckDB, true},
		{"DuckDB", DuckDB, true},
		{"mariadb", MariaDB, true},
		{"cassandra", Cassandra, true},
		{"oracle", PLSQL, true},
		{"oracledb", PLSQL, true},
		{"snowflake", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			d, ok := Guess(tt.kind)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, d.Name)
			}
		})
	}

	assert.Equal(t, Standard, GuessOrDefault("bigquery").Name)
}

package dialect

import "strings"

// kindAliases maps the engine kinds a catalog connection may declare onto
// registered dialect names.
var kindAliases = map[string]string{
	"postgresql": PostgreSQL,
	"postgres":   PostgreSQL,
	"mysql":      MySQL,
	"sqlite":     SQLite,
	"mssql":      MSSQL,
	"sqlserver":  MSSQL,
	"duckdb":     DuckDB,
	"mariadb":    MariaDB,
	"cassandra":  Cassandra,
	"oracle":     PLSQL,
	"oracledb":   PLSQL,
}

// Guess maps a connection's declared engine kind to a dialect. Unknown
// kinds report false so callers can keep whatever dialect they have.
func Guess(kind string) (*Dialect, bool) {
	name, ok := kindAliases[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, false
	}
	return Get(name)
}

// GuessOrDefault is Guess falling back to the default dialect.
func GuessOrDefault(kind string) *Dialect {
	if d, ok := Guess(kind); ok {
		return d
	}
	return Default()
}

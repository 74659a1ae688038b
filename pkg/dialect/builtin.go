package dialect

// Built-in dialect names.
const (
	Standard   = "standard"
	PostgreSQL = "postgresql"
	MySQL      = "mysql"
	SQLite     = "sqlite"
	MSSQL      = "mssql"
	DuckDB     = "duckdb"
	MariaDB    = "mariadb"
	Cassandra  = "cassandra"
	PLSQL      = "plsql"
)

var standardKeywords = []string{
	"ADD", "ALL", "ALTER", "AND", "ANY", "AS", "ASC", "BETWEEN", "BY", "CASE",
	"CAST", "CHECK", "COLUMN", "CONSTRAINT", "CREATE", "CROSS", "CURRENT",
	"DEFAULT", "DELETE", "DESC", "DISTINCT", "DROP", "ELSE", "END", "ESCAPE",
	"EXCEPT", "EXISTS", "FALSE", "FETCH", "FILTER", "FIRST", "FOLLOWING",
	"FOR", "FOREIGN", "FROM", "FULL", "GROUP", "HAVING", "IN", "INDEX",
	"INNER", "INSERT", "INTERSECT", "INTO", "IS", "JOIN", "KEY", "LAST",
	"LATERAL", "LEFT", "LIKE", "LIMIT", "NATURAL", "NOT", "NULL", "NULLS",
	"OFFSET", "ON", "OR", "ORDER", "OUTER", "OVER", "PARTITION", "PRECEDING",
	"PRIMARY", "RANGE", "RECURSIVE", "REFERENCES", "RIGHT", "ROW", "ROWS",
	"SELECT", "SET", "TABLE", "THEN", "TRUE", "UNBOUNDED", "UNION", "UNIQUE",
	"UPDATE", "USING", "VALUES", "VIEW", "WHEN", "WHERE", "WINDOW", "WITH",
}

var standardFunctions = []string{
	"ABS", "AVG", "CEIL", "COALESCE", "COUNT", "CURRENT_DATE",
	"CURRENT_TIMESTAMP", "DENSE_RANK", "FLOOR", "LAG", "LEAD", "LENGTH",
	"LOWER", "MAX", "MIN", "NULLIF", "RANK", "ROUND", "ROW_NUMBER",
	"SUBSTRING", "SUM", "TRIM", "UPPER",
}

var standardTypes = []string{
	"BIGINT", "BOOLEAN", "CHAR", "DATE", "DECIMAL", "DOUBLE", "FLOAT",
	"INTEGER", "NUMERIC", "REAL", "SMALLINT", "TIME", "TIMESTAMP", "VARCHAR",
}

var standardDocs = map[string]FunctionDoc{
	"COUNT":    {Description: "Counts rows or non-null values.", Signatures: []string{"count(*) -> BIGINT", "count(expr) -> BIGINT"}, ReturnType: "BIGINT"},
	"SUM":      {Description: "Sums non-null values.", Signatures: []string{"sum(expr) -> NUMERIC"}},
	"AVG":      {Description: "Averages non-null values.", Signatures: []string{"avg(expr) -> DOUBLE"}, ReturnType: "DOUBLE"},
	"COALESCE": {Description: "Returns the first non-null argument.", Signatures: []string{"coalesce(a, b, ...) -> ANY"}},
	"SELECT":   {Description: "Retrieves rows from one or more tables."},
	"FROM":     {Description: "Names the tables a query reads from."},
	"WHERE":    {Description: "Filters rows with a boolean condition."},
	"JOIN":     {Description: "Combines rows from two tables on a condition."},
}

var (
	builtinStandard = NewDialect(Standard).
		DisplayName("Standard SQL").
		WithKeywords(standardKeywords...).
		WithFunctions(standardFunctions...).
		WithDataTypes(standardTypes...).
		WithDocs(standardDocs).
		Build()

	builtinPostgres = NewDialect(PostgreSQL).
		Extends(builtinStandard).
		DisplayName("PostgreSQL").
		DefaultSchema("public").
		WithKeywords("ILIKE", "RETURNING", "SIMILAR", "CONFLICT", "DO", "NOTHING", "MATERIALIZED", "ONLY").
		WithFunctions("ARRAY_AGG", "STRING_AGG", "JSONB_BUILD_OBJECT", "GENERATE_SERIES", "NOW", "TO_CHAR", "DATE_TRUNC").
		WithDataTypes("SERIAL", "BIGSERIAL", "TEXT", "JSONB", "UUID", "BYTEA", "TIMESTAMPTZ", "INTERVAL").
		WithDocs(map[string]FunctionDoc{
			"GENERATE_SERIES": {Description: "Generates a series of values.", Signatures: []string{"generate_series(start, stop[, step]) -> SETOF"}, ReturnType: "TABLE"},
			"DATE_TRUNC":      {Description: "Truncates a timestamp to the given precision.", Signatures: []string{"date_trunc(field, source) -> TIMESTAMP"}},
		}).
		Build()

	builtinMySQL = NewDialect(MySQL).
		Extends(builtinStandard).
		DisplayName("MySQL").
		Identifiers("`", "`", "``").
		WithKeywords("AUTO_INCREMENT", "DUPLICATE", "ENGINE", "IGNORE", "REGEXP", "SHOW", "STRAIGHT_JOIN", "USE").
		WithFunctions("CONCAT_WS", "DATE_FORMAT", "GROUP_CONCAT", "IFNULL", "NOW", "STR_TO_DATE").
		WithDataTypes("TINYINT", "MEDIUMINT", "TEXT", "LONGTEXT", "DATETIME", "ENUM", "JSON").
		Build()

	builtinMariaDB = NewDialect(MariaDB).
		Extends(builtinMySQL).
		DisplayName("MariaDB").
		WithKeywords("RETURNING", "SEQUENCE").
		Build()

	builtinSQLite = NewDialect(SQLite).
		Extends(builtinStandard).
		DisplayName("SQLite").
		DefaultSchema("main").
		WithKeywords("ATTACH", "AUTOINCREMENT", "GLOB", "PRAGMA", "VACUUM", "WITHOUT", "ROWID", "REPLACE").
		WithFunctions("DATETIME", "GROUP_CONCAT", "IFNULL", "JSON_EXTRACT", "STRFTIME", "TYPEOF").
		WithDataTypes("TEXT", "BLOB").
		Build()

	builtinMSSQL = NewDialect(MSSQL).
		Extends(builtinStandard).
		DisplayName("SQL Server").
		Identifiers("[", "]", "]]").
		DefaultSchema("dbo").
		WithKeywords("TOP", "NOLOCK", "OUTPUT", "PIVOT", "UNPIVOT", "APPLY", "MERGE").
		WithFunctions("DATEADD", "DATEDIFF", "GETDATE", "ISNULL", "LEN", "NEWID").
		WithDataTypes("NVARCHAR", "DATETIME2", "UNIQUEIDENTIFIER", "BIT", "MONEY").
		Build()

	builtinDuckDB = NewDialect(DuckDB).
		Extends(builtinStandard).
		DisplayName("DuckDB").
		DefaultSchema("main").
		WithKeywords("ASOF", "ATTACH", "DESCRIBE", "EXCLUDE", "ILIKE", "PIVOT", "POSITIONAL", "QUALIFY", "REPLACE", "SUMMARIZE", "UNPIVOT").
		WithFunctions("ARRAY_AGG", "LIST", "READ_CSV", "READ_CSV_AUTO", "READ_JSON", "READ_PARQUET", "STRING_AGG", "MEDIAN", "QUANTILE", "STRFTIME").
		WithDataTypes("HUGEINT", "LIST", "MAP", "STRUCT", "UUID", "BLOB", "JSON").
		WithDocs(map[string]FunctionDoc{
			"READ_CSV":     {Description: "Reads a CSV file as a table.", Signatures: []string{"read_csv(path, ...) -> TABLE"}, ReturnType: "TABLE"},
			"READ_PARQUET": {Description: "Reads Parquet files as a table.", Signatures: []string{"read_parquet(path) -> TABLE"}, ReturnType: "TABLE"},
			"QUALIFY":      {Description: "Filters rows on the result of window functions."},
		}).
		Build()

	builtinCassandra = NewDialect(Cassandra).
		Extends(builtinStandard).
		DisplayName("Cassandra CQL").
		WithKeywords("ALLOW", "APPLY", "BATCH", "KEYSPACE", "TTL", "WRITETIME", "TOKEN", "CLUSTERING").
		WithFunctions("NOW", "UUID", "TOTIMESTAMP", "TODATE").
		WithDataTypes("TEXT", "TIMEUUID", "COUNTER", "INET", "BLOB").
		Build()

	builtinPLSQL = NewDialect(PLSQL).
		Extends(builtinStandard).
		DisplayName("Oracle PL/SQL").
		WithKeywords("BEGIN", "CONNECT", "DECLARE", "DUAL", "MINUS", "PRIOR", "ROWNUM", "START", "SYSDATE").
		WithFunctions("DECODE", "NVL", "NVL2", "TO_CHAR", "TO_DATE", "LISTAGG").
		WithDataTypes("VARCHAR2", "NUMBER", "CLOB", "RAW").
		Build()
)

func init() {
	for _, d := range []*Dialect{
		builtinStandard,
		builtinPostgres,
		builtinMySQL,
		builtinMariaDB,
		builtinSQLite,
		builtinMSSQL,
		builtinDuckDB,
		builtinCassandra,
		builtinPLSQL,
	} {
		Register(d)
	}
	SetDefault(builtinStandard)
}

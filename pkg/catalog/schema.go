package catalog

// SchemalessNames lists schema names that mark a database whose schema
// layer carries no real grouping, such as SQLite files or flat catalogs.
var SchemalessNames = map[string]struct{}{
	"": {},
}

// IsSchemaless reports whether a schema name marks a schemaless database.
func IsSchemaless(name string) bool {
	_, ok := SchemalessNames[name]
	return ok
}

// DerivedSchema is the completion-ready view of one connection.
type DerivedSchema struct {
	// Schema is the namespace tree. Tables of the default database surface
	// without the database qualifier.
	Schema *Namespace
	// DefaultSchema is the namespace unqualified table names resolve in.
	DefaultSchema string
	// ShouldMergeLocalTables reports whether locally known tables may be
	// added at the top level of Schema.
	ShouldMergeLocalTables bool
}

// DefaultDatabase returns the declared default database, or the sole
// database when there is exactly one.
func DefaultDatabase(conn *Connection) *Database {
	for i := range conn.Databases {
		if conn.Databases[i].Name == conn.DefaultDatabase {
			return &conn.Databases[i]
		}
	}
	if len(conn.Databases) == 1 {
		return &conn.Databases[0]
	}
	return nil
}

// DeriveSchema builds the namespace tree for a connection. It is
// deterministic and does not retain conn.
func DeriveSchema(conn *Connection) *DerivedSchema {
	defaultDB := DefaultDatabase(conn)

	probe := defaultDB
	if probe == nil && len(conn.Databases) > 0 {
		probe = &conn.Databases[0]
	}
	if probe != nil && hasSchemalessSchema(probe) {
		return deriveSchemaless(conn, defaultDB)
	}

	// Other databases go in first so the default database's schemas replace
	// any database of the same name, whatever the listing order.
	root := NewNamespace()
	for i := range conn.Databases {
		db := &conn.Databases[i]
		if db == defaultDB {
			continue
		}
		dbNS := NewNamespace()
		for _, s := range db.Schemas {
			dbNS.Set(s.Name, tablesNamespace(s.Tables))
		}
		root.Set(db.Name, dbNS)
	}
	if defaultDB != nil {
		for _, s := range defaultDB.Schemas {
			root.Children[s.Name] = tablesNamespace(s.Tables)
		}
	}

	return &DerivedSchema{
		Schema:                 root,
		DefaultSchema:          conn.DefaultSchema,
		ShouldMergeLocalTables: true,
	}
}

func deriveSchemaless(conn *Connection, defaultDB *Database) *DerivedSchema {
	root := NewNamespace()
	for i := range conn.Databases {
		db := &conn.Databases[i]
		if db == defaultDB {
			continue
		}
		dbNS := NewNamespace()
		for _, s := range db.Schemas {
			for _, t := range s.Tables {
				dbNS.Set(t.Name, Leaf(t.ColumnNames()))
			}
		}
		root.Set(db.Name, dbNS)
	}
	if defaultDB != nil {
		for _, s := range defaultDB.Schemas {
			for _, t := range s.Tables {
				root.Children[t.Name] = Leaf(t.ColumnNames())
			}
		}
	}

	out := &DerivedSchema{Schema: root}
	if defaultDB != nil {
		out.DefaultSchema = defaultDB.Name
	}
	return out
}

func hasSchemalessSchema(db *Database) bool {
	for _, s := range db.Schemas {
		if IsSchemaless(s.Name) {
			return true
		}
	}
	return false
}

func tablesNamespace(tables []Table) *Namespace {
	ns := NewNamespace()
	for _, t := range tables {
		ns.Set(t.Name, Leaf(t.ColumnNames()))
	}
	return ns
}

// SingleTable returns the only table of a connection that has exactly one
// database holding exactly one schema with exactly one table.
func SingleTable(conn *Connection) (string, bool) {
	if len(conn.Databases) != 1 {
		return "", false
	}
	db := conn.Databases[0]
	if len(db.Schemas) != 1 || len(db.Schemas[0].Tables) != 1 {
		return "", false
	}
	return db.Schemas[0].Tables[0].Name, true
}

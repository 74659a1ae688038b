package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/testutil"
)

func newAdapters(t *testing.T) *Adapters {
	t.Helper()
	return NewAdapters(Options{Logger: testutil.NewTestLogger(t)})
}

func TestSQLAdapter_TransformOutCanonical(t *testing.T) {
	a := newAdapters(t)

	host, offset := a.SQL.TransformOut("SELECT * FROM t", SQLMetadata{
		DataframeName: "_df",
		QuotePrefix:   "f",
		CommentLines:  []string{},
		ShowOutput:    true,
		Engine:        "duckdb",
	})

	assert.Equal(t, "_df = mo.sql(\n    f\"\"\"\n    SELECT * FROM t\n    \"\"\"\n)", host)
	assert.Equal(t, len("_df = mo.sql(\n    f\"\"\"\n")+1, offset)
}

func TestSQLAdapter_TransformOutKeywords(t *testing.T) {
	a := newAdapters(t)

	host, _ := a.SQL.TransformOut("SELECT 1", SQLMetadata{
		DataframeName: "result",
		QuotePrefix:   "",
		CommentLines:  []string{"# first", "# second"},
		ShowOutput:    false,
		Engine:        "my_db",
	})

	want := "# first\n# second\nresult = mo.sql(\n    \"\"\"\n    SELECT 1\n    \"\"\",\n    output=False,\n    engine=my_db\n)"
	assert.Equal(t, want, host)
}

func TestSQLAdapter_TransformIn(t *testing.T) {
	a := newAdapters(t)

	sub, offset, meta := a.SQL.TransformIn(`_df = mo.sql(f"""SELECT 1""", engine=my_db, output=False)`)
	assert.Equal(t, "SELECT 1", sub)
	assert.Equal(t, 17, offset)

	m, ok := meta.(SQLMetadata)
	require.True(t, ok)
	assert.Equal(t, "_df", m.DataframeName)
	assert.Equal(t, "f", m.QuotePrefix)
	assert.Equal(t, "my_db", m.Engine)
	assert.False(t, m.ShowOutput)
	assert.Empty(t, m.CommentLines)

	assert.Equal(t, "my_db", a.Engines().Latest(), "non-default engines become the latest selection")
}

func TestSQLAdapter_TransformInDefaults(t *testing.T) {
	a := newAdapters(t)

	sub, offset, meta := a.SQL.TransformIn("")
	assert.Empty(t, sub)
	assert.Zero(t, offset)
	assert.Equal(t, a.SQL.DefaultMetadata(), meta)

	sub, _, meta = a.SQL.TransformIn(`_df = mo.sql(f"""SELECT 1""")`)
	assert.Equal(t, "SELECT 1", sub)
	m := meta.(SQLMetadata)
	assert.True(t, m.ShowOutput)
	assert.Equal(t, "duckdb", m.Engine)
	assert.Equal(t, "duckdb", a.Engines().Latest())
}

func TestSQLAdapter_TransformInFallback(t *testing.T) {
	a := newAdapters(t)

	tests := []struct {
		name string
		host string
		want string
	}{
		{"python", "x = 1", "x = 1"},
		{"markdown is unwrapped", "mo.md(\n    r\"\"\"\n    # Title\n    \"\"\"\n)", "# Title"},
		{"two calls", "a = mo.sql(\"x\")\nb = mo.sql(\"y\")", "a = mo.sql(\"x\")\nb = mo.sql(\"y\")"},
		{"surrounding whitespace", "\n\n  x = 1  \n", "x = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, _, meta := a.SQL.TransformIn(tt.host)
			assert.Equal(t, tt.want, sub)
			assert.IsType(t, SQLMetadata{}, meta)
		})
	}
}

func TestSQLAdapter_RoundTrip(t *testing.T) {
	a := newAdapters(t)

	hosts := map[string]string{
		"canonical":     "_df = mo.sql(\n    f\"\"\"\n    SELECT * FROM t\n    \"\"\"\n)",
		"keywords":      "_df = mo.sql(\n    f\"\"\"\n    SELECT 1\n    \"\"\",\n    output=False,\n    engine=my_db\n)",
		"comments":      "# load users\n# second line\nusers = mo.sql(\n    f\"\"\"\n    SELECT * FROM users\n    \"\"\"\n)",
		"multiline":     "_df = mo.sql(\n    f\"\"\"\n    SELECT a,\n      b\n    FROM t\n\n    WHERE a > {limit}\n    \"\"\"\n)",
		"escaped quote": "_df = mo.sql(\n    f\"\"\"\n    SELECT '\\\"\"\"'\n    \"\"\"\n)",
		"plain prefix":  "_df = mo.sql(\n    \"\"\"\n    SELECT 2\n    \"\"\"\n)",
	}
	for name, host := range hosts {
		t.Run(name, func(t *testing.T) {
			require.True(t, a.SQL.IsSupported(host))
			sub, _, meta := a.SQL.TransformIn(host)
			out, _ := a.SQL.TransformOut(sub, meta)
			assert.Equal(t, host, out)
		})
	}
}

func TestSQLAdapter_RoundTripNormalizes(t *testing.T) {
	a := newAdapters(t)

	host := `_df = mo.sql(f"""SELECT 1""")`
	sub, _, meta := a.SQL.TransformIn(host)
	out, _ := a.SQL.TransformOut(sub, meta)
	assert.Equal(t, "_df = mo.sql(\n    f\"\"\"\n    SELECT 1\n    \"\"\"\n)", out)

	sub2, _, meta2 := a.SQL.TransformIn(out)
	assert.Equal(t, sub, sub2)
	assert.Equal(t, meta, meta2)
}

func TestSQLAdapter_RoundTripMixedIndent(t *testing.T) {
	a := newAdapters(t)

	sub := "  SELECT a\n\tFROM t"
	meta := a.SQL.DefaultMetadata()
	host, _ := a.SQL.TransformOut(sub, meta)

	for i := 0; i < 3; i++ {
		gotSub, _, gotMeta := a.SQL.TransformIn(host)
		require.Equal(t, sub, gotSub, "cycle %d", i)

		next, _ := a.SQL.TransformOut(gotSub, gotMeta)
		require.Equal(t, host, next, "cycle %d", i)
		host = next
	}
}

func TestSQLAdapter_IsSupported(t *testing.T) {
	a := newAdapters(t)

	tests := []struct {
		name string
		host string
		want bool
	}{
		{"empty", "", true},
		{"whitespace", "  \n ", true},
		{"query", `_df = mo.sql(f"""SELECT 1""")`, true},
		{"query with comments", "# c\n_df = mo.sql(\"SELECT 1\")", true},
		{"no marker", "x = 1", false},
		{"two markers", "_df = mo.sql(\"a\")\n_df2 = mo.sql(\"b\")", false},
		{"trailing statement", "_df = mo.sql(\"a\")\nprint(_df)", false},
		{"not assigned", "mo.sql(\"a\")", false},
		{"attribute target", "self.df = mo.sql(\"a\")", false},
		{"marker in string", "x = \"mo.sql\"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.SQL.IsSupported(tt.host))
		})
	}
}

func TestSQLAdapter_DefaultCode(t *testing.T) {
	a := newAdapters(t)
	assert.Equal(t, `_df = mo.sql(f"""SELECT * FROM """)`, a.SQL.DefaultCode())
	assert.True(t, a.SQL.IsSupported(a.SQL.DefaultCode()))

	a.Engines().SetLatest("warehouse")
	assert.Equal(t, `_df = mo.sql(f"""SELECT * FROM """, engine=warehouse)`, a.SQL.DefaultCode())
	assert.Equal(t, "warehouse", a.SQL.DefaultMetadata().(SQLMetadata).Engine)
}

func TestFromQuery(t *testing.T) {
	assert.Equal(t, `_df = mo.sql(f"""SELECT 1""")`, FromQuery("  SELECT 1\n"))
}

func TestEngineState(t *testing.T) {
	s := NewEngineState()
	assert.Equal(t, "duckdb", s.Latest())

	s.InitFromConnections("pg", "mysql")
	assert.Equal(t, "pg", s.Latest())

	var seen []string
	s.OnChange(func(name string) { seen = append(seen, name) })
	s.SetLatest("mysql")
	s.SetLatest("mysql")
	s.SetLatest("")
	assert.Equal(t, "mysql", s.Latest())
	assert.Equal(t, []string{"mysql"}, seen)

	s.InitFromConnections("other")
	assert.Equal(t, "mysql", s.Latest(), "explicit selections win over initialization")
}

func TestMarkdownAdapter(t *testing.T) {
	a := newAdapters(t)
	md := a.Markdown

	host := "mo.md(\n    r\"\"\"\n    # Hello\n\n    Some *text*\n    \"\"\"\n)"
	require.True(t, md.IsSupported(host))

	sub, offset, meta := md.TransformIn(host)
	assert.Equal(t, "# Hello\n\nSome *text*", sub)
	assert.Equal(t, len("mo.md(\n    r\"\"\""), offset)
	assert.Equal(t, MarkdownMetadata{QuotePrefix: "r"}, meta)

	out, outOffset := md.TransformOut(sub, meta)
	assert.Equal(t, host, out)
	assert.Equal(t, len("mo.md(\n    r\"\"\"\n")+1, outOffset)
}

func TestMarkdownAdapter_Edges(t *testing.T) {
	md := newAdapters(t).Markdown

	out, offset := md.TransformOut("  ", MarkdownMetadata{QuotePrefix: "r"})
	assert.Equal(t, `mo.md("")`, out)
	assert.Zero(t, offset)

	sub, _, _ := md.TransformIn(`mo.md("")`)
	assert.Empty(t, sub)

	out, _ = md.TransformOut(`say """hi"""`, md.DefaultMetadata())
	assert.Contains(t, out, `say \"""hi\"""`)
	sub, _, _ = md.TransformIn(out)
	assert.Equal(t, `say """hi"""`, sub)

	tests := []struct {
		name string
		host string
		want bool
	}{
		{"empty", "", true},
		{"single line", `mo.md("hello")`, true},
		{"f-string", `mo.md(f"hello {name}")`, true},
		{"query", `_df = mo.sql("SELECT 1")`, false},
		{"assigned", `x = mo.md("hello")`, false},
		{"trailing code", "mo.md(\"a\")\nx = 1", false},
		{"keywords", `mo.md("a", style="b")`, false},
		{"not a string", `mo.md(text)`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, md.IsSupported(tt.host))
		})
	}
}

func TestPythonAdapter(t *testing.T) {
	var p PythonAdapter
	assert.True(t, p.IsSupported("anything at all"))

	sub, offset, meta := p.TransformIn("  x = 1\n")
	assert.Equal(t, "x = 1", sub)
	assert.Zero(t, offset)
	assert.Equal(t, PythonMetadata{}, meta)

	out, offset := p.TransformOut("x = 1", meta)
	assert.Equal(t, "x = 1", out)
	assert.Zero(t, offset)
}

func TestAdapters(t *testing.T) {
	a := newAdapters(t)

	types := make([]Type, 0, 3)
	for _, ad := range a.List() {
		types = append(types, ad.Type())
	}
	assert.Equal(t, Types, types)
	assert.Equal(t, 2, a.Index(SQL))
	assert.Equal(t, -1, a.Index("rust"))

	got, err := a.Get(Markdown)
	require.NoError(t, err)
	assert.Equal(t, Markdown, got.Type())

	_, err = a.Get("rust")
	var unknown *UnknownLanguageError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "rust", unknown.Name)
	assert.Contains(t, unknown.Available, "sql")

	assert.True(t, a.SQL.Extension().HasCompletion(CompleteKeywords))
	assert.False(t, a.Python.Extension().Dialect)
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" SQL ")
	require.NoError(t, err)
	assert.Equal(t, SQL, got)

	_, err = ParseType("cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"cobol"`)
}

func TestMetadataJSON(t *testing.T) {
	in := SQLMetadata{
		DataframeName: "users",
		QuotePrefix:   "f",
		CommentLines:  []string{"# hi"},
		ShowOutput:    false,
		Engine:        "pg",
	}
	data, err := MarshalMetadata(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dataframeName":"users","quotePrefix":"f","commentLines":["# hi"],"showOutput":false,"engine":"pg"}`, string(data))

	out, err := UnmarshalMetadata(SQL, data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := UnmarshalMetadata(SQL, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, empty.(SQLMetadata).CommentLines)

	py, err := UnmarshalMetadata(Python, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, PythonMetadata{}, py)

	_, err = UnmarshalMetadata("cobol", nil)
	require.Error(t, err)
}

package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/testutil"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/dialect"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

const canonicalHost = "_df = mo.sql(\n    f\"\"\"\n    SELECT 1\n    \"\"\"\n)"

type fixture struct {
	buf      *Buffer
	session  *Session
	adapters *language.Adapters
}

func newFixture(t *testing.T, host string) *fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	adapters := language.NewAdapters(language.Options{Logger: logger})

	mem := catalog.NewMemoryStore(
		&catalog.Connection{Name: "pg", Dialect: "postgres"},
		&catalog.Connection{Name: "snow", Dialect: "snowflake"},
	)
	store, err := catalog.NewSQLCompletionStore(mem, mem, catalog.Config{Logger: logger})
	require.NoError(t, err)

	buf := NewBuffer(host)
	return &fixture{
		buf:      buf,
		adapters: adapters,
		session:  NewSession(buf, adapters, Config{Dialects: store, Logger: logger}),
	}
}

func TestInitialAdapter(t *testing.T) {
	adapters := language.NewAdapters(language.Options{})

	tests := []struct {
		name string
		host string
		want language.Type
	}{
		{"empty", "  \n", language.Python},
		{"markdown", `mo.md("hello")`, language.Markdown},
		{"sql", `_df = mo.sql(f"""SELECT 1""")`, language.SQL},
		{"python", "x = 1", language.Python},
		{"two queries", "a = mo.sql(\"x\")\nb = mo.sql(\"y\")", language.Python},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InitialAdapter(adapters, tt.host).Type())
		})
	}
}

func TestSession_Detect(t *testing.T) {
	f := newFixture(t, `_df = mo.sql(f"""SELECT 1""", engine=pg)`)

	var formatting []bool
	f.buf.OnDispatch(func(tr Transaction) { formatting = append(formatting, tr.Formatting) })

	assert.Equal(t, language.SQL, f.session.Detect())
	assert.Equal(t, "SELECT 1", f.buf.Doc())
	assert.Equal(t, language.SQL, f.buf.Extension().Language)
	assert.Zero(t, f.buf.HistoryLen())
	assert.Contains(t, formatting, true)

	meta, ok := f.session.Metadata().(language.SQLMetadata)
	require.True(t, ok)
	assert.Equal(t, "pg", meta.Engine)
	assert.Equal(t, "pg", f.adapters.Engines().Latest())

	require.NotNil(t, f.session.Dialect())
	assert.Equal(t, dialect.PostgreSQL, f.session.Dialect().Name)
	assert.Equal(t, dialect.PostgreSQL, f.buf.Dialect().Name)
}

func TestSession_SwitchSameLanguageIsNoop(t *testing.T) {
	f := newFixture(t, canonicalHost)
	f.session.Detect()

	f.buf.Insert(" + 1")
	f.buf.SetCursor(3)
	before := struct {
		doc    string
		cursor int
		meta   language.Metadata
		hist   int
	}{f.buf.Doc(), f.buf.Cursor(), f.session.Metadata(), f.buf.HistoryLen()}
	require.Equal(t, 1, before.hist)

	for _, keep := range []bool{false, true} {
		changed, err := f.session.SwitchLanguage(language.SQL, keep)
		require.NoError(t, err)
		assert.False(t, changed)
	}

	assert.Equal(t, before.doc, f.buf.Doc())
	assert.Equal(t, before.cursor, f.buf.Cursor())
	assert.Equal(t, before.meta, f.session.Metadata())
	assert.Equal(t, before.hist, f.buf.HistoryLen())
}

func TestSession_SwitchRemapsCursor(t *testing.T) {
	f := newFixture(t, canonicalHost)
	f.session.Detect()
	require.Equal(t, "SELECT 1", f.buf.Doc())

	f.buf.SetCursor(3)
	changed, err := f.session.SwitchLanguage(language.Python, false)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, canonicalHost, f.buf.Doc())
	assert.Equal(t, 27, f.buf.Cursor())
	assert.Equal(t, language.PythonMetadata{}, f.session.Metadata())
	assert.Nil(t, f.session.Dialect())

	changed, err = f.session.SwitchLanguage(language.SQL, false)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "SELECT 1", f.buf.Doc())
	assert.Equal(t, 5, f.buf.Cursor())
}

func TestSession_LeavingSQLClearsViewDialect(t *testing.T) {
	for _, lang := range []language.Type{language.Python, language.Markdown} {
		t.Run(string(lang), func(t *testing.T) {
			f := newFixture(t, canonicalHost)
			f.session.Detect()
			require.NotNil(t, f.buf.Dialect())

			_, err := f.session.SwitchLanguage(lang, false)
			require.NoError(t, err)
			assert.Nil(t, f.session.Dialect())
			assert.Nil(t, f.buf.Dialect())

			_, err = f.session.SwitchLanguage(language.SQL, false)
			require.NoError(t, err)
			assert.NotNil(t, f.buf.Dialect())
		})
	}
}

func TestSession_SwitchClampsCursor(t *testing.T) {
	f := newFixture(t, "x = 1")
	f.buf.SetCursor(0)

	changed, err := f.session.SwitchLanguage(language.SQL, false)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "x = 1", f.buf.Doc())
	assert.Equal(t, 0, f.buf.Cursor())
}

func TestSession_SwitchKeepCode(t *testing.T) {
	f := newFixture(t, "SELECT 2")

	changed, err := f.session.SwitchLanguage(language.SQL, true)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "SELECT 2", f.buf.Doc())
	assert.Equal(t, f.adapters.SQL.DefaultMetadata(), f.session.Metadata())
	assert.Equal(t, language.SQL, f.buf.Extension().Language)

	assert.Equal(t, canonicalHost[:len("_df = mo.sql(")], f.session.HostCode()[:len("_df = mo.sql(")])
	assert.Contains(t, f.session.HostCode(), "    SELECT 2\n")
}

func TestSession_HistoryIsReset(t *testing.T) {
	f := newFixture(t, "x = 1")
	f.buf.Insert("\ny = 2")
	require.Equal(t, 1, f.buf.HistoryLen())

	_, err := f.session.SwitchLanguage(language.Markdown, false)
	require.NoError(t, err)
	assert.Zero(t, f.buf.HistoryLen())
	assert.False(t, f.buf.Undo(), "the switch itself is not undoable")

	f.buf.Insert("!")
	assert.Equal(t, 1, f.buf.HistoryLen(), "recording resumes after the switch")
}

func TestSession_Cycle(t *testing.T) {
	f := newFixture(t, `_df = mo.sql(f"""SELECT 1""")`)

	lang, ok := f.session.Cycle()
	assert.True(t, ok)
	assert.Equal(t, language.SQL, lang)
	assert.Equal(t, "SELECT 1", f.buf.Doc())

	lang, ok = f.session.Cycle()
	assert.True(t, ok)
	assert.Equal(t, language.Python, lang)
	assert.Equal(t, canonicalHost, f.buf.Doc())

	lang, ok = f.session.Cycle()
	assert.True(t, ok)
	assert.Equal(t, language.SQL, lang)
}

func TestSession_CycleNoop(t *testing.T) {
	f := newFixture(t, "x = 1")

	lang, ok := f.session.Cycle()
	assert.False(t, ok)
	assert.Equal(t, language.Python, lang)
	assert.Equal(t, "x = 1", f.buf.Doc())
}

func TestSession_CycleFromMarkdown(t *testing.T) {
	f := newFixture(t, `mo.md("# Title")`)
	require.Equal(t, language.Markdown, f.session.Detect())
	require.Equal(t, "# Title", f.buf.Doc())

	lang, ok := f.session.Cycle()
	assert.True(t, ok)
	assert.Equal(t, language.Python, lang)
	assert.Equal(t, "mo.md(\n    \"\"\"\n    # Title\n    \"\"\"\n)", f.buf.Doc())
}

func TestSession_DialectPreference(t *testing.T) {
	f := newFixture(t, `_df = mo.sql(f"""SELECT 1""", engine=pg)`)
	f.session.Detect()
	require.Equal(t, dialect.PostgreSQL, f.session.Dialect().Name)

	meta := f.session.Metadata().(language.SQLMetadata)
	meta.Engine = "snow"
	require.NoError(t, f.session.SetMetadata(meta))
	assert.Equal(t, dialect.PostgreSQL, f.session.Dialect().Name, "unknown kinds keep the installed dialect")

	meta.Engine = "missing"
	require.NoError(t, f.session.SetMetadata(meta))
	assert.Equal(t, dialect.PostgreSQL, f.session.Dialect().Name)

	assert.Contains(t, f.session.HostCode(), "engine=missing")
}

func TestSession_DialectFallback(t *testing.T) {
	f := newFixture(t, `_df = mo.sql(f"""SELECT 1""", engine=snow)`)
	f.session.Detect()
	require.NotNil(t, f.session.Dialect())
	assert.Equal(t, dialect.Standard, f.session.Dialect().Name)
}

func TestSession_Errors(t *testing.T) {
	f := newFixture(t, "x = 1")

	_, err := f.session.SwitchLanguage("cobol", false)
	var unknown *language.UnknownLanguageError
	require.ErrorAs(t, err, &unknown)

	err = f.session.SetMetadata(language.SQLMetadata{})
	require.Error(t, err)
	err = f.session.SetMetadata(nil)
	require.Error(t, err)
}

func TestBuffer(t *testing.T) {
	b := NewBuffer("abc")
	assert.Equal(t, 3, b.Cursor())

	b.SetCursor(1)
	b.Insert("X")
	assert.Equal(t, "aXbc", b.Doc())
	assert.Equal(t, 2, b.Cursor())

	b.SetCursor(100)
	assert.Equal(t, 4, b.Cursor())

	require.True(t, b.Undo())
	assert.Equal(t, "abc", b.Doc())
	assert.Equal(t, 1, b.Cursor())
	assert.False(t, b.Undo())

	short := "a"
	b.Dispatch(Transaction{Text: &short})
	assert.Equal(t, 1, b.Cursor(), "cursor is clamped to the new text")
}

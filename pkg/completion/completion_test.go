package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/dialect"
)

func labels(res *Result) []string {
	if res == nil {
		return nil
	}
	out := make([]string, len(res.Items))
	for i, it := range res.Items {
		out[i] = it.Label
	}
	return out
}

func at(text string) Context {
	return Context{Text: text, Pos: len(text)}
}

func testConfig(t *testing.T) *catalog.CompletionConfig {
	t.Helper()
	d, ok := dialect.Get(dialect.PostgreSQL)
	require.True(t, ok)

	schema := catalog.NewNamespace()
	public := catalog.NewNamespace()
	public.Set("users", catalog.Leaf([]string{"id", "email", "Created At"}))
	public.Set("orders", catalog.Leaf([]string{"id", "user_id", "total"}))
	schema.Set("public", public)
	raw := catalog.NewNamespace()
	raw.Set("events", catalog.Leaf([]string{"ts"}))
	wh := catalog.NewNamespace()
	wh.Set("raw", raw)
	schema.Set("warehouse", wh)
	schema.Set("df", catalog.Leaf([]string{"x"}))

	return &catalog.CompletionConfig{Dialect: d, Schema: schema, DefaultSchema: "public"}
}

func TestSchemaSource(t *testing.T) {
	src := SchemaSource(testConfig(t))

	tests := []struct {
		name string
		text string
		// pos is the cursor offset; -1 means end of text.
		pos  int
		want []string
	}{
		{"top level prefix", "SELECT * FROM u", -1, []string{"users"}},
		{"top level mixes schemas and default tables", "SELECT * FROM o", -1, []string{"orders"}},
		{"schema members", "SELECT * FROM public.", -1, []string{"orders", "users"}},
		{"qualified columns", "SELECT public.users.e", -1, []string{"email"}},
		{"default schema table columns", "SELECT users.", -1, []string{"Created At", "email", "id"}},
		{"nested database", "SELECT * FROM warehouse.raw.", -1, []string{"events"}},
		{"alias", "SELECT o.t FROM orders o", len("SELECT o.t"), []string{"total"}},
		{"alias with AS", "SELECT u. FROM public.users AS u", len("SELECT u."), []string{"Created At", "email", "id"}},
		{"local table", "SELECT * FROM d", -1, []string{"df"}},
		{"unknown parent", "SELECT nope.", -1, nil},
		{"no word", "SELECT ", -1, nil},
		{"inside interpolation", "SELECT * FROM {or", -1, nil},
		{"after closed interpolation", "SELECT * FROM {t} JOIN o", -1, []string{"orders"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := at(tt.text)
			if tt.pos >= 0 {
				ctx.Pos = tt.pos
			}
			assert.Equal(t, tt.want, labels(src.Complete(ctx)))
		})
	}
}

func TestSchemaSource_InsertAndFrom(t *testing.T) {
	res := SchemaSource(testConfig(t)).Complete(at("SELECT users.Cr"))
	require.NotNil(t, res)
	require.Len(t, res.Items, 1)
	assert.Equal(t, `"Created At"`, res.Items[0].InsertText())
	assert.Equal(t, KindColumn, res.Items[0].Kind)
	assert.Equal(t, len("SELECT users."), res.From)
}

func TestSchemaSource_DefaultTable(t *testing.T) {
	schema := catalog.NewNamespace()
	main := catalog.NewNamespace()
	main.Set("only", catalog.Leaf([]string{"alpha", "beta"}))
	schema.Set("main", main)

	src := SchemaSource(&catalog.CompletionConfig{Schema: schema, DefaultSchema: "main", DefaultTable: "only"})
	assert.Equal(t, []string{"alpha"}, labels(src.Complete(at("SELECT a"))))
}

func TestSchemaSource_NilConfig(t *testing.T) {
	assert.Nil(t, SchemaSource(nil).Complete(at("SELECT u")))
}

func TestKeywordSource(t *testing.T) {
	d := dialect.Default()
	src := KeywordSource(d)

	res := src.Complete(at("SEL"))
	assert.Equal(t, []string{"SELECT"}, labels(res))
	assert.Equal(t, 0, res.From)

	assert.Equal(t, []string{"select"}, labels(src.Complete(at("sel"))))
	assert.Nil(t, src.Complete(at("SELECT my_table.co")), "no keywords after a dot")
	assert.Nil(t, src.Complete(at("SELECT my_table.")))
	assert.Nil(t, src.Complete(at("SELECT ")), "nothing without a word unless explicit")

	explicit := src.Complete(Context{Text: "SELECT ", Pos: 7, Explicit: true})
	require.NotNil(t, explicit)
	assert.Contains(t, labels(explicit), "from")

	fn := src.Complete(at("SELECT COU"))
	require.NotNil(t, fn)
	assert.Equal(t, KindFunction, fn.Items[0].Kind)
	assert.Equal(t, "count(*) -> BIGINT", fn.Items[0].Detail)
}

func TestVariableSource(t *testing.T) {
	vars := func() []string { return []string{"limit", "min_total", "df"} }
	src := VariableSource(vars)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"inside braces", "SELECT * FROM t LIMIT {li", []string{"limit"}},
		{"empty braces", "WHERE total > {", []string{"df", "limit", "min_total"}},
		{"closed braces", "LIMIT {limit} ", nil},
		{"outside", "SELECT li", nil},
		{"escaped brace", "SELECT '{{li", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, labels(src.Complete(at(tt.text))))
		})
	}
}

type fakeCatalog struct {
	cfg *catalog.CompletionConfig
}

func (f fakeCatalog) GetDialect(string) *dialect.Dialect { return dialect.Default() }

func (f fakeCatalog) GetCompletionSource(name string) *catalog.CompletionConfig {
	if name != "pg" {
		return nil
	}
	return f.cfg
}

func TestProvider(t *testing.T) {
	p := &Provider{
		Catalog:   fakeCatalog{cfg: testConfig(t)},
		Variables: func() []string { return []string{"order_limit"} },
	}

	res := p.Complete("pg", at("SELECT * FROM or"))
	require.NotNil(t, res)
	assert.Equal(t, []string{"orders", "or", "order"}, labels(res), "schema entries come before keywords")

	res = p.Complete("missing", at("SELECT * FROM or"))
	assert.Equal(t, []string{"or", "order"}, labels(res))

	res = p.Complete("pg", at("LIMIT {ord"))
	assert.Equal(t, []string{"order_limit", "order"}, labels(res))
}

func TestCombine_DedupAndFrom(t *testing.T) {
	a := SourceFunc(func(Context) *Result {
		return &Result{From: 5, Items: []Item{{Label: "x"}, {Label: "y"}}}
	})
	b := SourceFunc(func(Context) *Result {
		return &Result{From: 3, Items: []Item{{Label: "X"}, {Label: "z"}}}
	})
	res := Combine(a, nil, b).Complete(Context{})
	require.NotNil(t, res)
	assert.Equal(t, 3, res.From)
	assert.Equal(t, []string{"x", "y", "z"}, labels(res))

	assert.Nil(t, Combine().Complete(Context{}))
}

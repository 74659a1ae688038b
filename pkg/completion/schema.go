package completion

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

var (
	// pathBefore matches a dotted identifier path ending at the cursor.
	pathBefore = regexp.MustCompile(`(?:[\w$]+\.)*[\w$]*$`)
	// tableRef matches a table reference with an optional alias.
	tableRef = regexp.MustCompile(`(?i)\b(?:from|join)\s+([\w$]+(?:\.[\w$]+)*)(?:\s+(?:as\s+)?([A-Za-z_]\w*))?`)
)

// SchemaSource completes tables and columns from a connection's completion
// config. A nil config yields no completions, and so does a cursor inside a
// {...} interpolation, which holds Python rather than SQL.
func SchemaSource(cfg *catalog.CompletionConfig) Source {
	return SourceFunc(func(ctx Context) *Result {
		if cfg == nil || cfg.Schema == nil || inInterpolation(ctx.Before()) {
			return nil
		}
		path, _ := ctx.MatchBefore(pathBefore)
		parent, word := splitPath(path)
		if parent == nil && word == "" && !ctx.Explicit {
			return nil
		}

		var items []Item
		if parent == nil {
			items = topLevel(cfg)
		} else {
			ns, ok := resolve(cfg, ctx.Text, parent)
			if !ok {
				return nil
			}
			items = children(cfg, ns)
		}

		items = filter(items, word)
		if len(items) == 0 {
			return nil
		}
		return &Result{From: ctx.Pos - len(word), Items: items}
	})
}

// splitPath splits "a.b.c" into parent [a b] and word c.
func splitPath(path string) ([]string, string) {
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return nil, parts[0]
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}

func topLevel(cfg *catalog.CompletionConfig) []Item {
	items := children(cfg, cfg.Schema)
	if cfg.DefaultSchema != "" {
		if ns, ok := cfg.Schema.Child(cfg.DefaultSchema); ok && !ns.IsLeaf() {
			items = append(items, children(cfg, ns)...)
		}
	}
	if cfg.DefaultTable != "" {
		if table, ok := findTable(cfg.Schema, cfg.DefaultTable); ok {
			items = append(items, columns(cfg, table)...)
		}
	}
	return items
}

// resolve finds the namespace a dotted parent path refers to. Paths are
// tried as aliases from the query, as written, then under the default
// schema.
func resolve(cfg *catalog.CompletionConfig, text string, parent []string) (*catalog.Namespace, bool) {
	if len(parent) == 1 {
		if target, ok := aliases(text)[strings.ToLower(parent[0])]; ok && target != parent[0] {
			if ns, ok := resolve(cfg, "", strings.Split(target, ".")); ok {
				return ns, true
			}
		}
	}
	joined := strings.Join(parent, ".")
	if ns, ok := cfg.Schema.Lookup(joined); ok {
		return ns, true
	}
	if cfg.DefaultSchema != "" {
		if ns, ok := cfg.Schema.Lookup(cfg.DefaultSchema + "." + joined); ok {
			return ns, true
		}
	}
	return nil, false
}

// aliases maps lower-cased aliases and bare table names referenced in
// FROM and JOIN clauses to the table path they stand for.
func aliases(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range tableRef.FindAllStringSubmatch(text, -1) {
		table := m[1]
		parts := strings.Split(table, ".")
		if last := parts[len(parts)-1]; last != table {
			out[strings.ToLower(last)] = table
		}
		if alias := m[2]; alias != "" && !isClauseKeyword(alias) {
			out[strings.ToLower(alias)] = table
		}
	}
	return out
}

var clauseKeywords = map[string]struct{}{
	"where": {}, "on": {}, "using": {}, "join": {}, "left": {}, "right": {},
	"inner": {}, "outer": {}, "full": {}, "cross": {}, "natural": {},
	"group": {}, "order": {}, "limit": {}, "having": {}, "union": {},
	"window": {}, "qualify": {}, "offset": {}, "except": {}, "intersect": {},
}

func isClauseKeyword(word string) bool {
	_, ok := clauseKeywords[strings.ToLower(word)]
	return ok
}

func children(cfg *catalog.CompletionConfig, ns *catalog.Namespace) []Item {
	if ns.IsLeaf() {
		return columns(cfg, ns)
	}
	items := make([]Item, 0, ns.Len())
	for _, name := range ns.Names() {
		child, _ := ns.Child(name)
		kind := KindNamespace
		if child.IsLeaf() {
			kind = KindTable
		}
		items = append(items, Item{Label: name, Kind: kind, Insert: quote(cfg, name)})
	}
	return items
}

func columns(cfg *catalog.CompletionConfig, table *catalog.Namespace) []Item {
	items := make([]Item, 0, len(table.Columns))
	for _, col := range table.Columns {
		items = append(items, Item{Label: col, Kind: KindColumn, Insert: quote(cfg, col)})
	}
	return items
}

// quote returns the quoted form of name when the dialect requires it, or
// "" when the label can be inserted as is.
func quote(cfg *catalog.CompletionConfig, name string) string {
	if cfg.Dialect == nil {
		return ""
	}
	if q := cfg.Dialect.QuoteIdentifierIfNeeded(name); q != name {
		return q
	}
	return ""
}

// findTable searches ns depth first for a table called name.
func findTable(ns *catalog.Namespace, name string) (*catalog.Namespace, bool) {
	if child, ok := ns.Child(name); ok && child.IsLeaf() {
		return child, true
	}
	for _, n := range ns.Names() {
		child, _ := ns.Child(n)
		if child.IsLeaf() {
			continue
		}
		if t, ok := findTable(child, name); ok {
			return t, true
		}
	}
	return nil, false
}

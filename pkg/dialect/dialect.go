// Package dialect provides SQL dialect descriptors used to drive keyword
// completion, hover documentation and identifier quoting for query cells.
//
// Dialects are built with the fluent Builder and registered by name in a
// process-wide registry. The built-in set mirrors the engines a catalog
// connection may declare.
package dialect

import (
	"sort"
	"strings"
)

// IdentifierConfig describes how a dialect quotes identifiers.
type IdentifierConfig struct {
	Quote    string // Opening quote: ", `, [
	QuoteEnd string // Closing quote, differs from Quote only for [ ]
	Escape   string // Escape sequence for the closing quote inside a name
}

// FunctionDoc contains documentation metadata for hover and completion detail.
type FunctionDoc struct {
	Description string
	Signatures  []string
	ReturnType  string
}

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name          string
	DisplayName   string
	Identifiers   IdentifierConfig
	DefaultSchema string

	keywords  map[string]struct{}
	functions map[string]struct{}
	dataTypes []string
	docs      map[string]FunctionDoc
}

// GetName returns the dialect name.
func (d *Dialect) GetName() string {
	return d.Name
}

// Keywords returns the dialect's keywords, sorted, upper case.
func (d *Dialect) Keywords() []string {
	return sortedKeys(d.keywords)
}

// Functions returns the dialect's built-in function names, sorted, upper case.
func (d *Dialect) Functions() []string {
	return sortedKeys(d.functions)
}

// DataTypes returns the dialect's data type names.
func (d *Dialect) DataTypes() []string {
	return append([]string(nil), d.dataTypes...)
}

// IsKeyword reports whether word is a keyword, case-insensitively.
func (d *Dialect) IsKeyword(word string) bool {
	_, ok := d.keywords[strings.ToUpper(word)]
	return ok
}

// IsFunction reports whether name is a built-in function, case-insensitively.
func (d *Dialect) IsFunction(name string) bool {
	_, ok := d.functions[strings.ToUpper(name)]
	return ok
}

// GetDoc returns documentation for a function or keyword.
func (d *Dialect) GetDoc(name string) (FunctionDoc, bool) {
	doc, ok := d.docs[strings.ToUpper(name)]
	return doc, ok
}

// QuoteIdentifier quotes name with the dialect's identifier quotes.
func (d *Dialect) QuoteIdentifier(name string) string {
	end := d.Identifiers.QuoteEnd
	if end == "" {
		end = d.Identifiers.Quote
	}
	escaped := name
	if d.Identifiers.Escape != "" {
		escaped = strings.ReplaceAll(name, end, d.Identifiers.Escape)
	}
	return d.Identifiers.Quote + escaped + end
}

// QuoteIdentifierIfNeeded quotes name only if it is a keyword or is not a
// plain lower-case identifier.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if name == "" {
		return name
	}
	if d.IsKeyword(name) || !isPlainIdentifier(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

func isPlainIdentifier(name string) bool {
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	d *Dialect
}

// NewDialect starts building a dialect with ANSI defaults.
func NewDialect(name string) *Builder {
	return &Builder{d: &Dialect{
		Name:        strings.ToLower(name),
		DisplayName: name,
		Identifiers: IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`},
		keywords:    make(map[string]struct{}),
		functions:   make(map[string]struct{}),
		docs:        make(map[string]FunctionDoc),
	}}
}

// Extends copies keywords, functions, data types and docs from base.
func (b *Builder) Extends(base *Dialect) *Builder {
	if base == nil {
		return b
	}
	for k := range base.keywords {
		b.d.keywords[k] = struct{}{}
	}
	for k := range base.functions {
		b.d.functions[k] = struct{}{}
	}
	for k, v := range base.docs {
		b.d.docs[k] = v
	}
	b.d.dataTypes = append(b.d.dataTypes, base.dataTypes...)
	b.d.DefaultSchema = base.DefaultSchema
	b.d.Identifiers = base.Identifiers
	return b
}

// DisplayName sets the human readable name.
func (b *Builder) DisplayName(name string) *Builder {
	b.d.DisplayName = name
	return b
}

// Identifiers sets identifier quoting.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.d.Identifiers = IdentifierConfig{Quote: quote, QuoteEnd: quoteEnd, Escape: escape}
	return b
}

// DefaultSchema sets the schema unqualified names resolve against.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.d.DefaultSchema = schema
	return b
}

// WithKeywords adds keywords.
func (b *Builder) WithKeywords(kws ...string) *Builder {
	for _, kw := range kws {
		b.d.keywords[strings.ToUpper(kw)] = struct{}{}
	}
	return b
}

// WithFunctions adds built-in function names.
func (b *Builder) WithFunctions(funcs ...string) *Builder {
	for _, f := range funcs {
		b.d.functions[strings.ToUpper(f)] = struct{}{}
	}
	return b
}

// WithDataTypes adds data type names.
func (b *Builder) WithDataTypes(types ...string) *Builder {
	b.d.dataTypes = append(b.d.dataTypes, types...)
	return b
}

// WithDocs adds documentation entries, keyed case-insensitively.
func (b *Builder) WithDocs(docs map[string]FunctionDoc) *Builder {
	for k, v := range docs {
		b.d.docs[strings.ToUpper(k)] = v
	}
	return b
}

// Build finalizes the dialect. Data types are deduplicated.
func (b *Builder) Build() *Dialect {
	seen := make(map[string]struct{}, len(b.d.dataTypes))
	types := b.d.dataTypes[:0]
	for _, t := range b.d.dataTypes {
		key := strings.ToUpper(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		types = append(types, t)
	}
	b.d.dataTypes = types
	return b.d
}

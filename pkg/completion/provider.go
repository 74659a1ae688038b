package completion

import (
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/dialect"
)

// Catalog is the part of the catalog cache completion needs.
type Catalog interface {
	GetDialect(name string) *dialect.Dialect
	GetCompletionSource(name string) *catalog.CompletionConfig
}

// Provider assembles the completion sources of a query cell.
type Provider struct {
	Catalog Catalog
	// Variables lists host variable names. It may be nil.
	Variables func() []string
}

// Source returns the combined source for a cell bound to engine: schema
// first, then variables, then dialect keywords.
func (p *Provider) Source(engine string) Source {
	return Combine(
		SchemaSource(p.Catalog.GetCompletionSource(engine)),
		VariableSource(p.Variables),
		KeywordSource(p.Catalog.GetDialect(engine)),
	)
}

// Complete runs the combined source for engine.
func (p *Provider) Complete(engine string, ctx Context) *Result {
	return p.Source(engine).Complete(ctx)
}

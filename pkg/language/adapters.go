package language

import (
	"log/slog"

	"github.com/leapstack-labs/cellsql/pkg/extract"
	"github.com/leapstack-labs/cellsql/pkg/syntax"
)

// Options configures a set of adapters.
type Options struct {
	// Parser parses host text. Nil defaults to the Python grammar.
	Parser syntax.Parser
	// Engines is the latest-engine slot shared by query cells.
	Engines *EngineState
	Logger  *slog.Logger
}

// Adapters is the fixed, ordered set of adapters sharing one parser and
// one latest-engine slot.
type Adapters struct {
	Python   PythonAdapter
	Markdown *MarkdownAdapter
	SQL      *SQLAdapter

	ordered []Adapter
}

// NewAdapters builds the adapter set.
func NewAdapters(opts Options) *Adapters {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Parser == nil {
		opts.Parser = syntax.NewPython()
	}
	extractor := extract.New(opts.Parser, opts.Logger)
	markdown := NewMarkdownAdapter(opts.Parser, opts.Logger)
	sql := NewSQLAdapter(extractor, markdown, opts.Engines, opts.Logger)

	a := &Adapters{Markdown: markdown, SQL: sql}
	a.ordered = []Adapter{a.Python, a.Markdown, a.SQL}
	return a
}

// List returns the adapters in cycle order.
func (a *Adapters) List() []Adapter {
	return append([]Adapter(nil), a.ordered...)
}

// Get returns the adapter for t.
func (a *Adapters) Get(t Type) (Adapter, error) {
	for _, ad := range a.ordered {
		if ad.Type() == t {
			return ad, nil
		}
	}
	return nil, &UnknownLanguageError{Name: string(t), Available: typeNames()}
}

// Index returns the cycle position of t, or -1.
func (a *Adapters) Index(t Type) int {
	for i, ad := range a.ordered {
		if ad.Type() == t {
			return i
		}
	}
	return -1
}

// Engines returns the shared latest-engine slot.
func (a *Adapters) Engines() *EngineState {
	return a.SQL.Engines()
}

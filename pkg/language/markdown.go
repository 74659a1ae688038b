package language

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/extract"
	"github.com/leapstack-labs/cellsql/pkg/syntax"
)

// MarkdownCallMarker is the callee text of a prose cell.
const MarkdownCallMarker = "mo.md"

// DefaultMarkdownQuotePrefix is the prefix of synthesized prose literals.
const DefaultMarkdownQuotePrefix = "r"

// MarkdownAdapter presents a cell that is wholly one mo.md call as prose.
type MarkdownAdapter struct {
	parser syntax.Parser
	logger *slog.Logger
}

// NewMarkdownAdapter creates a prose adapter. A nil parser defaults to the
// Python grammar.
func NewMarkdownAdapter(parser syntax.Parser, logger *slog.Logger) *MarkdownAdapter {
	if parser == nil {
		parser = syntax.NewPython()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MarkdownAdapter{parser: parser, logger: logger}
}

func (*MarkdownAdapter) adapter() {}

// Type implements Adapter.
func (*MarkdownAdapter) Type() Type { return Markdown }

// DefaultMetadata implements Adapter.
func (*MarkdownAdapter) DefaultMetadata() Metadata {
	return MarkdownMetadata{QuotePrefix: DefaultMarkdownQuotePrefix}
}

// DefaultCode implements Adapter.
func (*MarkdownAdapter) DefaultCode() string {
	return `mo.md(r"""` + "\n" + `""")`
}

// IsSupported reports whether host is empty or a single mo.md call with
// one string argument.
func (a *MarkdownAdapter) IsSupported(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		return true
	}
	if !strings.HasPrefix(host, MarkdownCallMarker+"(") {
		return false
	}
	_, _, ok := a.literal(host)
	return ok
}

// TransformIn unwraps the prose literal. Text that is not a prose cell is
// returned trimmed but otherwise untouched.
func (a *MarkdownAdapter) TransformIn(host string) (string, int, Metadata) {
	host = strings.TrimSpace(host)
	meta := MarkdownMetadata{QuotePrefix: DefaultMarkdownQuotePrefix}

	if host == "" {
		return "", 0, meta
	}
	node, lit, ok := a.literal(host)
	if !ok {
		return host, 0, meta
	}
	meta.QuotePrefix = lit.Prefix
	if lit.Content == "" {
		return "", 0, meta
	}
	body := extract.SafeDedent(extract.UnescapeTripleQuotes(lit.Content))
	return body, node.From + lit.PrefixLength(), meta
}

// TransformOut wraps text in an mo.md call. Empty text becomes mo.md("").
func (a *MarkdownAdapter) TransformOut(sub string, meta Metadata) (string, int) {
	if strings.TrimSpace(sub) == "" {
		return `mo.md("")`, 0
	}
	prefix := DefaultMarkdownQuotePrefix
	if m, ok := meta.(MarkdownMetadata); ok {
		prefix = m.QuotePrefix
	}

	start := MarkdownCallMarker + "(\n" + IndentUnit + prefix + `"""` + "\n"
	end := "\n" + IndentUnit + `"""` + "\n)"
	body := extract.Indent(extract.EscapeTripleQuotes(sub), IndentUnit)
	return start + body + end, len(start) + 1
}

// Extension implements Adapter.
func (*MarkdownAdapter) Extension() Extension {
	return Extension{Language: Markdown, Panel: true}
}

// literal finds the single string argument of a whole-cell mo.md call.
func (a *MarkdownAdapter) literal(host string) (*syntax.Node, extract.Literal, bool) {
	root, err := a.parser.Parse(context.Background(), host)
	if err != nil {
		a.logger.Warn("failed to parse cell", slog.String("error", err.Error()))
		return nil, extract.Literal{}, false
	}
	if root.HasError() {
		return nil, extract.Literal{}, false
	}

	stmts := root.Children
	if len(stmts) != 1 || stmts[0].Kind != syntax.KindExpressionStatement {
		return nil, extract.Literal{}, false
	}
	exprs := stmts[0].NamedChildren()
	if len(exprs) != 1 || exprs[0].Kind != syntax.KindCall {
		return nil, extract.Literal{}, false
	}
	call := exprs[0]
	if callee := call.ChildByField(syntax.FieldFunction); callee == nil || callee.Text(host) != MarkdownCallMarker {
		return nil, extract.Literal{}, false
	}
	argList := call.ChildByField(syntax.FieldArguments)
	if argList == nil || argList.Kind != syntax.KindArgumentList {
		return nil, extract.Literal{}, false
	}

	args := extract.ArgsKwargs(argList, host)
	if len(args.Positional) != 1 || len(args.Keywords) != 0 || args.Positional[0].Kind != syntax.KindString {
		return nil, extract.Literal{}, false
	}
	node := args.Positional[0]
	lit, ok := extract.ParseLiteral(node.Text(host))
	if !ok {
		return nil, extract.Literal{}, false
	}
	return node, lit, true
}

// Package extract recognizes the single-assignment escape-hatch call that
// embeds a query inside a Python cell:
//
//	_df = mo.sql(f"""SELECT 1""", engine=conn, output=False)
//
// Extraction is a pure function over an immutable syntax tree. Anything
// that does not match the expected shape yields nil rather than an error,
// leaving callers free to fall back to showing the host text.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/syntax"
)

// Fixed names recognized in host source.
const (
	// CallMarker is the callee text of the escape-hatch call. Matching is
	// textual: aliases of the module are not resolved.
	CallMarker = "mo.sql"
	// EngineKeyword selects an alternate engine for the query.
	EngineKeyword = "engine"
	// OutputKeyword toggles rendering of the query result.
	OutputKeyword = "output"
)

// Statement is an escape-hatch call extracted from host source.
type Statement struct {
	// VariableName is the bare identifier the result is bound to.
	VariableName string
	// Body is the unescaped, dedented query text.
	Body string
	// Engine is the raw source text of the engine argument, nil if absent.
	Engine *string
	// Output is the value of the output argument, nil if absent.
	Output *bool
	// BodyStart is the byte offset of the literal's content in the source.
	// It is 0 when the literal is empty.
	BodyStart int
	// QuotePrefix holds the literal's prefix letters (usually "f").
	QuotePrefix string
}

// Extract matches root against the escape-hatch shape and returns the
// extracted statement, or nil on any structural mismatch.
//
// The walk is depth-first and left to right and stops at the first node
// that does not fit: leading comments, then exactly one assignment of a
// call whose callee reads CallMarker, then nothing else.
func Extract(root *syntax.Node, src string) *Statement {
	if root == nil || root.HasError() {
		return nil
	}

	children := root.Children
	i := 0
	for i < len(children) && children[i].IsComment() {
		i++
	}
	if i >= len(children) {
		return nil
	}
	stmt := children[i]
	if stmt.To > len(src) || strings.TrimSpace(src[stmt.To:]) != "" {
		return nil
	}

	assign := singleAssignment(stmt)
	if assign == nil {
		return nil
	}
	target := assign.ChildByField(syntax.FieldLeft)
	if target == nil || target.Kind != syntax.KindIdentifier {
		return nil
	}
	call := assign.ChildByField(syntax.FieldRight)
	if call == nil || call.Kind != syntax.KindCall {
		return nil
	}
	if callee := call.ChildByField(syntax.FieldFunction); callee == nil || callee.Text(src) != CallMarker {
		return nil
	}
	argList := call.ChildByField(syntax.FieldArguments)
	if argList == nil || argList.Kind != syntax.KindArgumentList {
		return nil
	}

	args := ArgsKwargs(argList, src)
	if len(args.Positional) != 1 || args.Positional[0].Kind != syntax.KindString {
		return nil
	}
	strNode := args.Positional[0]
	lit, ok := ParseLiteral(strNode.Text(src))
	if !ok {
		return nil
	}

	out := &Statement{
		VariableName: target.Text(src),
		QuotePrefix:  lit.Prefix,
	}
	if kw, ok := args.Keyword(EngineKeyword); ok {
		engine := kw.Raw
		out.Engine = &engine
	}
	if kw, ok := args.Keyword(OutputKeyword); ok {
		visible := kw.Raw == "True"
		out.Output = &visible
	}

	if lit.Content == "" {
		return out
	}
	out.Body = SafeDedent(UnescapeTripleQuotes(lit.Content))
	out.BodyStart = strNode.From + lit.PrefixLength()
	return out
}

// singleAssignment unwraps an expression statement holding exactly one
// untyped assignment.
func singleAssignment(stmt *syntax.Node) *syntax.Node {
	if stmt.Kind != syntax.KindExpressionStatement {
		return nil
	}
	inner := stmt.NamedChildren()
	if len(inner) != 1 || inner[0].Kind != syntax.KindAssignment {
		return nil
	}
	if inner[0].ChildByField(syntax.FieldType) != nil {
		return nil
	}
	return inner[0]
}

// Extractor parses host source and extracts escape-hatch statements.
type Extractor struct {
	parser syntax.Parser
	logger *slog.Logger
}

// New creates an Extractor. A nil parser defaults to the Python grammar and
// a nil logger discards output.
func New(parser syntax.Parser, logger *slog.Logger) *Extractor {
	if parser == nil {
		parser = syntax.NewPython()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{parser: parser, logger: logger}
}

// Parse parses src and extracts its statement. Parse failures are logged
// and reported as nil, the same as a structural mismatch.
func (e *Extractor) Parse(ctx context.Context, src string) *Statement {
	root, err := e.parser.Parse(ctx, src)
	if err != nil {
		e.logger.Warn("failed to parse cell", slog.String("error", err.Error()))
		return nil
	}
	return Extract(root, src)
}

// Parser returns the parser used by the extractor.
func (e *Extractor) Parser() syntax.Parser {
	return e.parser
}

// CountMarker returns how many times CallMarker occurs in src.
func CountMarker(src string) int {
	return strings.Count(src, CallMarker)
}

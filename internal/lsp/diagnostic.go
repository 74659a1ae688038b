package lsp

import (
	"context"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/language"
	"github.com/leapstack-labs/cellsql/pkg/syntax"
)

const (
	diagnosticSource = "cellsql"
	codeSQLSyntax    = "sql-syntax"
	codePythonSyntax = "python-syntax"
	maxSnippetLen    = 24
)

// publishDiagnostics computes and publishes diagnostics for a document.
func (s *Server) publishDiagnostics(uri string) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}

	diagnostics := s.getDiagnostics(context.Background(), doc)
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// getDiagnostics reports syntax errors in the cell's active view. Markdown
// cells are never diagnosed.
func (s *Server) getDiagnostics(ctx context.Context, doc *Document) []Diagnostic {
	diagnostics := []Diagnostic{}
	if doc.Session == nil || strings.TrimSpace(doc.Content) == "" {
		return diagnostics
	}

	switch meta := doc.Session.Metadata().(type) {
	case language.SQLMetadata:
		src := doc.Content
		if isFormatString(meta.QuotePrefix) {
			src = maskPlaceholders(src)
		}
		// The SQL grammar is generic, so dialect features can trip it.
		return s.syntaxDiagnostics(ctx, doc, s.sqlParser, src, codeSQLSyntax, DiagnosticSeverityWarning)
	case language.PythonMetadata:
		return s.syntaxDiagnostics(ctx, doc, s.pythonParser, doc.Content, codePythonSyntax, DiagnosticSeverityError)
	}
	return diagnostics
}

func (s *Server) syntaxDiagnostics(ctx context.Context, doc *Document, parser syntax.Parser, src, code string, severity DiagnosticSeverity) []Diagnostic {
	diagnostics := []Diagnostic{}

	tree, err := parser.Parse(ctx, src)
	if err != nil {
		s.logger.Warn("Parse failed", "uri", doc.URI, "error", err)
		return diagnostics
	}

	for _, n := range tree.Errors() {
		diagnostics = append(diagnostics, Diagnostic{
			Range: Range{
				Start: doc.OffsetToPosition(n.From),
				End:   doc.OffsetToPosition(n.To),
			},
			Severity: severity,
			Code:     code,
			Source:   diagnosticSource,
			Message:  errorMessage(n, doc.Content),
		})
	}
	return diagnostics
}

func errorMessage(n *syntax.Node, src string) string {
	if n.Missing {
		return "syntax error: missing " + n.Kind
	}
	snippet := strings.TrimSpace(n.Text(src))
	if snippet == "" {
		return "syntax error"
	}
	if i := strings.IndexByte(snippet, '\n'); i >= 0 {
		snippet = snippet[:i]
	}
	if len(snippet) > maxSnippetLen {
		snippet = snippet[:maxSnippetLen] + "..."
	}
	return "syntax error near `" + snippet + "`"
}

func isFormatString(prefix string) bool {
	return strings.ContainsAny(prefix, "fF")
}

// maskPlaceholders blanks the {expr} blocks of an f-string body so the SQL
// grammar sees a literal in their place. Offsets are preserved: each block
// becomes a 0 followed by spaces. Escaped braces become spaces.
func maskPlaceholders(src string) string {
	b := []byte(src)
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '{':
			if i+1 < len(b) && b[i+1] == '{' {
				b[i], b[i+1] = ' ', ' '
				i++
				continue
			}
			end := closingBrace(b, i)
			if end < 0 {
				return string(b)
			}
			b[i] = '0'
			for j := i + 1; j <= end; j++ {
				if b[j] != '\n' {
					b[j] = ' '
				}
			}
			i = end
		case '}':
			if i+1 < len(b) && b[i+1] == '}' {
				b[i], b[i+1] = ' ', ' '
				i++
			}
		}
	}
	return string(b)
}

// closingBrace returns the index of the brace closing the block opened at
// start, honoring nesting, or -1.
func closingBrace(b []byte, start int) int {
	depth := 0
	for i := start; i < len(b); i++ {
		switch b[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

package language

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/extract"
)

// Defaults of a fresh query cell.
const (
	DefaultDataframeName  = "_df"
	DefaultSQLQuotePrefix = "f"
)

// SQLAdapter presents a cell that is wholly one mo.sql assignment as a
// query.
type SQLAdapter struct {
	extractor *extract.Extractor
	markdown  *MarkdownAdapter
	engines   *EngineState
	logger    *slog.Logger
}

// NewSQLAdapter creates a query adapter. markdown is the fallback used to
// unwrap cells that are not queries; engines is the latest-engine slot and
// is created when nil.
func NewSQLAdapter(extractor *extract.Extractor, markdown *MarkdownAdapter, engines *EngineState, logger *slog.Logger) *SQLAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if extractor == nil {
		extractor = extract.New(nil, logger)
	}
	if markdown == nil {
		markdown = NewMarkdownAdapter(extractor.Parser(), logger)
	}
	if engines == nil {
		engines = NewEngineState()
	}
	return &SQLAdapter{extractor: extractor, markdown: markdown, engines: engines, logger: logger}
}

func (*SQLAdapter) adapter() {}

// Type implements Adapter.
func (*SQLAdapter) Type() Type { return SQL }

// Engines returns the latest-engine slot the adapter reads and updates.
func (a *SQLAdapter) Engines() *EngineState { return a.engines }

// DefaultMetadata implements Adapter. The engine defaults to the latest
// selected one.
func (a *SQLAdapter) DefaultMetadata() Metadata {
	return a.defaultMetadata()
}

func (a *SQLAdapter) defaultMetadata() SQLMetadata {
	engine := a.engines.Latest()
	if engine == "" {
		engine = catalog.DefaultEngine
	}
	return SQLMetadata{
		DataframeName: DefaultDataframeName,
		QuotePrefix:   DefaultSQLQuotePrefix,
		CommentLines:  []string{},
		ShowOutput:    true,
		Engine:        engine,
	}
}

// DefaultCode implements Adapter.
func (a *SQLAdapter) DefaultCode() string {
	latest := a.engines.Latest()
	if latest == "" || latest == catalog.DefaultEngine {
		return `_df = mo.sql(f"""SELECT * FROM """)`
	}
	return `_df = mo.sql(f"""SELECT * FROM """, engine=` + latest + `)`
}

// FromQuery returns the host text of a new cell running query.
func FromQuery(query string) string {
	return `_df = mo.sql(f"""` + strings.TrimSpace(query) + `""")`
}

// IsSupported reports whether host is empty, or holds exactly one mo.sql
// occurrence that extracts cleanly.
func (a *SQLAdapter) IsSupported(host string) bool {
	if strings.TrimSpace(host) == "" {
		return true
	}
	return a.statement(host) != nil
}

// TransformIn extracts the query. Cells that are not queries are unwrapped
// as prose, if they are prose, and otherwise returned trimmed.
func (a *SQLAdapter) TransformIn(host string) (string, int, Metadata) {
	host = strings.TrimSpace(host)

	meta := a.defaultMetadata()
	meta.CommentLines = commentLines(host)

	if host == "" {
		return "", 0, meta
	}

	stmt := a.statement(host)
	if stmt == nil {
		sub, offset, _ := a.markdown.TransformIn(host)
		return sub, offset, meta
	}

	meta.DataframeName = stmt.VariableName
	meta.QuotePrefix = stmt.QuotePrefix
	meta.ShowOutput = stmt.Output == nil || *stmt.Output
	meta.Engine = catalog.DefaultEngine
	if stmt.Engine != nil {
		meta.Engine = *stmt.Engine
	}
	if meta.Engine != catalog.DefaultEngine {
		a.engines.SetLatest(meta.Engine)
	}

	return stmt.Body, stmt.BodyStart, meta
}

// TransformOut re-synthesizes the mo.sql assignment around sub.
func (a *SQLAdapter) TransformOut(sub string, meta Metadata) (string, int) {
	m, ok := meta.(SQLMetadata)
	if !ok {
		m = a.defaultMetadata()
	}
	name := m.DataframeName
	if name == "" {
		name = DefaultDataframeName
	}

	start := name + " = " + extract.CallMarker + "(\n" + IndentUnit + m.QuotePrefix + `"""` + "\n"

	var end strings.Builder
	end.WriteString("\n" + IndentUnit + `"""`)
	if !m.ShowOutput {
		end.WriteString(",\n" + IndentUnit + extract.OutputKeyword + "=False")
	}
	if m.Engine != "" && m.Engine != catalog.DefaultEngine {
		end.WriteString(",\n" + IndentUnit + extract.EngineKeyword + "=" + m.Engine)
	}
	end.WriteString("\n)")

	header := strings.Join(append(append([]string{}, m.CommentLines...), start), "\n")
	body := extract.Indent(extract.EscapeTripleQuotes(sub), IndentUnit)
	return header + body + end.String(), len(start) + 1
}

// Extension implements Adapter.
func (*SQLAdapter) Extension() Extension {
	return Extension{
		Language:   SQL,
		Completion: []CompletionSource{CompleteSchema, CompleteVariables, CompleteKeywords},
		Dialect:    true,
		Panel:      true,
	}
}

// Statement extracts the query of host, or nil when host is not a query
// cell.
func (a *SQLAdapter) Statement(host string) *extract.Statement {
	return a.statement(strings.TrimSpace(host))
}

func (a *SQLAdapter) statement(host string) *extract.Statement {
	if extract.CountMarker(host) != 1 {
		return nil
	}
	return a.extractor.Parse(context.Background(), host)
}

// commentLines returns the run of leading lines that start with #.
func commentLines(host string) []string {
	out := []string{}
	for _, line := range strings.Split(host, "\n") {
		if !strings.HasPrefix(line, "#") {
			break
		}
		out = append(out, line)
	}
	return out
}

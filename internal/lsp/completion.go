package lsp

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/completion"
	"github.com/leapstack-labs/cellsql/pkg/dialect"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// completionTriggerInvoked is the LSP trigger kind for an explicit request.
const completionTriggerInvoked = 1

var itemKinds = map[completion.Kind]CompletionItemKind{
	completion.KindNamespace: CompletionItemKindModule,
	completion.KindTable:     CompletionItemKindClass,
	completion.KindColumn:    CompletionItemKindField,
	completion.KindKeyword:   CompletionItemKindKeyword,
	completion.KindFunction:  CompletionItemKindFunction,
	completion.KindType:      CompletionItemKindTypeParameter,
	completion.KindVariable:  CompletionItemKindVariable,
}

// sqlMetadata returns the metadata of a document in the SQL view.
func sqlMetadata(doc *Document) (language.SQLMetadata, bool) {
	if doc == nil || doc.Session == nil {
		return language.SQLMetadata{}, false
	}
	meta, ok := doc.Session.Metadata().(language.SQLMetadata)
	return meta, ok
}

// getCompletions returns completion items for the given position. Only
// cells in the SQL view complete.
func (s *Server) getCompletions(params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	meta, ok := sqlMetadata(doc)
	if !ok {
		return []CompletionItem{}
	}

	offset := doc.PositionToOffset(params.Position)
	explicit := params.Context != nil && params.Context.TriggerKind == completionTriggerInvoked

	res := s.ws.Complete(meta.Engine, doc.Content, offset, explicit)
	if res == nil {
		return []CompletionItem{}
	}

	replace := Range{Start: doc.OffsetToPosition(res.From), End: params.Position}
	items := make([]CompletionItem, 0, len(res.Items))
	for i, item := range res.Items {
		items = append(items, CompletionItem{
			Label:    item.Label,
			Kind:     itemKinds[item.Kind],
			Detail:   item.Detail,
			SortText: fmt.Sprintf("%04d", i),
			TextEdit: &TextEdit{
				Range:   replace,
				NewText: item.InsertText(),
			},
		})
	}
	return items
}

// getHover returns documentation for the word under the cursor: a table's
// columns from the catalog, or a function or keyword from the dialect.
func (s *Server) getHover(params HoverParams) *Hover {
	doc := s.documents.Get(params.TextDocument.URI)
	meta, ok := sqlMetadata(doc)
	if !ok {
		return nil
	}

	word, rng := doc.GetWordAtPosition(params.Position)
	if word == "" {
		return nil
	}

	if content, ok := s.tableHover(meta.Engine, word); ok {
		return &Hover{
			Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: content},
			Range:    &rng,
		}
	}

	d := doc.Session.Dialect()
	if d == nil {
		d = dialect.Default()
	}
	fn, ok := d.GetDoc(word)
	if !ok {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** (%s)", strings.ToUpper(word), d.DisplayName)
	if len(fn.Signatures) > 0 {
		sb.WriteString("\n\n```sql\n")
		sb.WriteString(strings.Join(fn.Signatures, "\n"))
		sb.WriteString("\n```")
	}
	if fn.Description != "" {
		sb.WriteString("\n\n")
		sb.WriteString(fn.Description)
	}
	if fn.ReturnType != "" {
		fmt.Fprintf(&sb, "\n\nReturns `%s`", fn.ReturnType)
	}

	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: sb.String()},
		Range:    &rng,
	}
}

// tableHover lists the columns of a table visible to the engine.
func (s *Server) tableHover(engine, word string) (string, bool) {
	if engine == "" {
		engine = s.ws.Engines.Latest()
	}
	cfg := s.ws.Completion.GetCompletionSource(engine)
	if cfg == nil || cfg.Schema == nil {
		return "", false
	}

	table, path, ok := findTable(cfg, word)
	if !ok {
		return "", false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** table", path)
	if cols := table.Columns; len(cols) > 0 {
		sb.WriteString("\n\n")
		for _, c := range cols {
			fmt.Fprintf(&sb, "- `%s`\n", c)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), true
}

// findTable looks word up at the top level, then in the default schema.
func findTable(cfg *catalog.CompletionConfig, word string) (*catalog.Namespace, string, bool) {
	if ns, ok := cfg.Schema.Child(word); ok && ns.IsLeaf() {
		return ns, word, true
	}
	if cfg.DefaultSchema == "" {
		return nil, "", false
	}
	schema, ok := cfg.Schema.Child(cfg.DefaultSchema)
	if !ok {
		return nil, "", false
	}
	if ns, ok := schema.Child(word); ok && ns.IsLeaf() {
		return ns, cfg.DefaultSchema + "." + word, true
	}
	return nil, "", false
}

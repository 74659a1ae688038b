package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	sqllang "github.com/smacker/go-tree-sitter/sql"
)

// Parser turns source text into an immutable tree.
type Parser interface {
	Parse(ctx context.Context, src string) (*Node, error)
}

// SitterParser parses with a tree-sitter grammar.
type SitterParser struct {
	name string
	lang *sitter.Language
}

// NewPython returns a parser for the Python host language.
func NewPython() *SitterParser {
	return &SitterParser{name: "python", lang: python.GetLanguage()}
}

// NewSQL returns a parser for SQL cell bodies. It is only used for syntax
// diagnostics; the grammar is generic and knows nothing about dialects.
func NewSQL() *SitterParser {
	return &SitterParser{name: "sql", lang: sqllang.GetLanguage()}
}

// Name returns the grammar name.
func (p *SitterParser) Name() string {
	return p.name
}

// Parse parses src and converts the result into a Node tree.
// A fresh sitter.Parser is used per call, so SitterParser is safe for
// concurrent use.
func (p *SitterParser) Parse(ctx context.Context, src string) (*Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	tree, err := parser.ParseCtx(ctx, nil, []byte(src))
	if err != nil {
		return nil, fmt.Errorf("%s parse failed: %w", p.name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%s parser returned nil root", p.name)
	}
	return convert(root, ""), nil
}

func convert(n *sitter.Node, field string) *Node {
	count := int(n.ChildCount())
	out := &Node{
		Kind:    n.Type(),
		Field:   field,
		From:    int(n.StartByte()),
		To:      int(n.EndByte()),
		Named:   n.IsNamed(),
		Missing: n.IsMissing(),
	}
	if n.IsError() {
		out.Kind = KindError
	}
	if count > 0 {
		out.Children = make([]*Node, 0, count)
	}
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		out.Children = append(out.Children, convert(child, n.FieldNameForChild(i)))
	}
	return out
}

var (
	_ Parser = (*SitterParser)(nil)
)

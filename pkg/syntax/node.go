// Package syntax provides an immutable concrete syntax tree built from
// tree-sitter parses of cell sources.
//
// Trees are converted eagerly into plain Go values so that consumers can
// walk them with ordinary recursion, without holding onto cgo-backed
// cursors or worrying about tree lifetimes.
package syntax

import "strings"

// Node kinds produced by the Python grammar that cell tooling relies on.
const (
	KindModule              = "module"
	KindComment             = "comment"
	KindExpressionStatement = "expression_statement"
	KindAssignment          = "assignment"
	KindIdentifier          = "identifier"
	KindCall                = "call"
	KindAttribute           = "attribute"
	KindArgumentList        = "argument_list"
	KindKeywordArgument     = "keyword_argument"
	KindString              = "string"
	KindError               = "ERROR"
)

// Field names attached to children by the Python grammar.
const (
	FieldLeft      = "left"
	FieldRight     = "right"
	FieldType      = "type"
	FieldFunction  = "function"
	FieldArguments = "arguments"
	FieldName      = "name"
	FieldValue     = "value"
)

// Node is one node of a parsed tree. From and To are byte offsets into the
// source the tree was parsed from.
type Node struct {
	Kind     string
	Field    string
	From     int
	To       int
	Named    bool
	Missing  bool
	Children []*Node
}

// Text returns the source text covered by the node.
func (n *Node) Text(src string) string {
	if n == nil || n.From < 0 || n.To > len(src) || n.From > n.To {
		return ""
	}
	return src[n.From:n.To]
}

// NamedChildren returns the named children of n, skipping comments.
func (n *Node) NamedChildren() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Named && c.Kind != KindComment {
			out = append(out, c)
		}
	}
	return out
}

// ChildByField returns the first child carrying the given field name.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// IsComment reports whether n is a comment node.
func (n *Node) IsComment() bool {
	return n != nil && n.Kind == KindComment
}

// HasError reports whether n or any descendant is an error or missing node.
func (n *Node) HasError() bool {
	if n == nil {
		return false
	}
	if n.Kind == KindError || n.Missing {
		return true
	}
	for _, c := range n.Children {
		if c.HasError() {
			return true
		}
	}
	return false
}

// Errors collects every error or missing node in depth-first order.
// Descendants of an error node are not reported separately.
func (n *Node) Errors() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur == nil {
			return
		}
		if cur.Kind == KindError || cur.Missing {
			out = append(out, cur)
			return
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// String renders the tree as an S-expression of named nodes, mostly for
// debugging and test failure output.
func (n *Node) String() string {
	var sb strings.Builder
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur.Field != "" {
			sb.WriteString(cur.Field)
			sb.WriteString(": ")
		}
		sb.WriteString("(")
		sb.WriteString(cur.Kind)
		for _, c := range cur.Children {
			if !c.Named {
				continue
			}
			sb.WriteString(" ")
			walk(c)
		}
		sb.WriteString(")")
	}
	if n != nil {
		walk(n)
	}
	return sb.String()
}

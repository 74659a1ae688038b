package catalog

import (
	"encoding/json"
	"sort"
	"strings"
)

// Namespace is a node of a completion schema. Inner nodes map names to
// child namespaces; leaves hold the column names of a table.
type Namespace struct {
	Children map[string]*Namespace
	Columns  []string
}

// NewNamespace returns an empty inner namespace.
func NewNamespace() *Namespace {
	return &Namespace{Children: make(map[string]*Namespace)}
}

// Leaf returns a table namespace holding the given columns.
func Leaf(columns []string) *Namespace {
	return &Namespace{Columns: columns}
}

// IsLeaf reports whether n is a table.
func (n *Namespace) IsLeaf() bool {
	return n != nil && n.Children == nil
}

// Child returns the direct child with the given name.
func (n *Namespace) Child(name string) (*Namespace, bool) {
	if n == nil || n.Children == nil {
		return nil, false
	}
	c, ok := n.Children[name]
	return c, ok
}

// Lookup walks a dotted path such as "db.schema.table".
func (n *Namespace) Lookup(path string) (*Namespace, bool) {
	cur := n
	if path == "" {
		return cur, cur != nil
	}
	for _, part := range strings.Split(path, ".") {
		next, ok := cur.Child(part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Names returns the sorted child names.
func (n *Namespace) Names() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set stores child under name. If both the existing and the new child are
// inner namespaces their children are merged, with the new entries winning.
func (n *Namespace) Set(name string, child *Namespace) {
	if existing, ok := n.Children[name]; ok && !existing.IsLeaf() && !child.IsLeaf() {
		for k, v := range child.Children {
			existing.Set(k, v)
		}
		return
	}
	n.Children[name] = child
}

// SetIfAbsent stores child under name unless the name is taken.
func (n *Namespace) SetIfAbsent(name string, child *Namespace) {
	if _, ok := n.Children[name]; ok {
		return
	}
	n.Children[name] = child
}

// Clone returns a deep copy of n.
func (n *Namespace) Clone() *Namespace {
	if n == nil {
		return nil
	}
	if n.IsLeaf() {
		return Leaf(append([]string(nil), n.Columns...))
	}
	out := NewNamespace()
	for k, v := range n.Children {
		out.Children[k] = v.Clone()
	}
	return out
}

// Len returns the number of direct children (or columns for a leaf).
func (n *Namespace) Len() int {
	if n == nil {
		return 0
	}
	if n.IsLeaf() {
		return len(n.Columns)
	}
	return len(n.Children)
}

// MarshalJSON renders leaves as column arrays and inner nodes as objects.
func (n *Namespace) MarshalJSON() ([]byte, error) {
	if n.IsLeaf() {
		cols := n.Columns
		if cols == nil {
			cols = []string{}
		}
		return json.Marshal(cols)
	}
	return json.Marshal(n.Children)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (n *Namespace) UnmarshalJSON(data []byte) error {
	var cols []string
	if err := json.Unmarshal(data, &cols); err == nil {
		*n = Namespace{Columns: cols}
		return nil
	}
	var children map[string]*Namespace
	if err := json.Unmarshal(data, &children); err != nil {
		return err
	}
	if children == nil {
		children = make(map[string]*Namespace)
	}
	*n = Namespace{Children: children}
	return nil
}

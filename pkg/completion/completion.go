// Package completion produces completion candidates for query cells.
//
// Three sources are combined in priority order: catalog tables and
// columns for the active connection, host variables inside {} blocks of
// f-string queries, and the keywords of the active dialect.
package completion

import (
	"regexp"
	"sort"
	"strings"
)

// Kind classifies a completion item.
type Kind string

// Item kinds.
const (
	KindNamespace Kind = "namespace"
	KindTable     Kind = "table"
	KindColumn    Kind = "column"
	KindKeyword   Kind = "keyword"
	KindFunction  Kind = "function"
	KindType      Kind = "type"
	KindVariable  Kind = "variable"
)

// Item is one completion candidate.
type Item struct {
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
	// Insert is the text to insert when it differs from Label.
	Insert string `json:"insert,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// InsertText returns the text to insert for the item.
func (i Item) InsertText() string {
	if i.Insert != "" {
		return i.Insert
	}
	return i.Label
}

// Context is a completion request over a sub-language document.
type Context struct {
	// Text is the full document.
	Text string
	// Pos is the cursor byte offset.
	Pos int
	// Explicit is true when the user asked for completion rather than
	// typing triggering it.
	Explicit bool
}

// Before returns the document text before the cursor.
func (c Context) Before() string {
	pos := min(max(c.Pos, 0), len(c.Text))
	return c.Text[:pos]
}

// MatchBefore returns the match of re anchored at the cursor, if any. re
// must end in $.
func (c Context) MatchBefore(re *regexp.Regexp) (string, bool) {
	loc := re.FindStringIndex(c.Before())
	if loc == nil {
		return "", false
	}
	return c.Before()[loc[0]:loc[1]], true
}

// Result is a set of candidates replacing the text from From to the
// cursor.
type Result struct {
	From  int    `json:"from"`
	Items []Item `json:"items"`
}

// Source produces completions, or nil when it has nothing to offer.
type Source interface {
	Complete(ctx Context) *Result
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx Context) *Result

// Complete implements Source.
func (f SourceFunc) Complete(ctx Context) *Result { return f(ctx) }

// Combine consults every source in order and merges their results. The
// first source to offer a label keeps it; the earliest From wins.
func Combine(sources ...Source) Source {
	return SourceFunc(func(ctx Context) *Result {
		var out *Result
		seen := make(map[string]struct{})
		for _, src := range sources {
			if src == nil {
				continue
			}
			res := src.Complete(ctx)
			if res == nil || len(res.Items) == 0 {
				continue
			}
			if out == nil {
				out = &Result{From: res.From}
			}
			out.From = min(out.From, res.From)
			for _, item := range res.Items {
				key := strings.ToLower(item.Label)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out.Items = append(out.Items, item)
			}
		}
		return out
	})
}

var wordBefore = regexp.MustCompile(`\w*$`)

// filter keeps items whose label starts with prefix, case-insensitively,
// and sorts them by label.
func filter(items []Item, prefix string) []Item {
	p := strings.ToLower(prefix)
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.HasPrefix(strings.ToLower(it.Label), p) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

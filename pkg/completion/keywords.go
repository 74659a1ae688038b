package completion

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/dialect"
)

// afterDot matches a member access in progress, e.g. "my_table.co".
var afterDot = regexp.MustCompile(`\.\w*$`)

// KeywordSource completes the keywords, functions and types of a dialect.
// It stays silent after a dot, where only columns make sense.
func KeywordSource(d *dialect.Dialect) Source {
	return SourceFunc(func(ctx Context) *Result {
		if d == nil {
			return nil
		}
		if _, ok := ctx.MatchBefore(afterDot); ok {
			return nil
		}
		word, _ := ctx.MatchBefore(wordBefore)
		if word == "" && !ctx.Explicit {
			return nil
		}

		upper := word != "" && word == strings.ToUpper(word)
		label := func(s string) string {
			if upper {
				return strings.ToUpper(s)
			}
			return strings.ToLower(s)
		}

		var items []Item
		for _, kw := range d.Keywords() {
			items = append(items, Item{Label: label(kw), Kind: KindKeyword})
		}
		for _, fn := range d.Functions() {
			item := Item{Label: label(fn), Kind: KindFunction}
			if doc, ok := d.GetDoc(fn); ok && len(doc.Signatures) > 0 {
				item.Detail = doc.Signatures[0]
			}
			items = append(items, item)
		}
		for _, typ := range d.DataTypes() {
			items = append(items, Item{Label: label(typ), Kind: KindType})
		}

		items = filter(items, word)
		if len(items) == 0 {
			return nil
		}
		return &Result{From: ctx.Pos - len(word), Items: items}
	})
}

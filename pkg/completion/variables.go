package completion

import "strings"

// VariableSource completes host variable names inside an unclosed {}
// block, the interpolation syntax of f-string queries.
func VariableSource(variables func() []string) Source {
	return SourceFunc(func(ctx Context) *Result {
		if variables == nil || !inInterpolation(ctx.Before()) {
			return nil
		}
		word, _ := ctx.MatchBefore(wordBefore)

		var items []Item
		for _, name := range variables() {
			items = append(items, Item{Label: name, Kind: KindVariable})
		}
		items = filter(items, word)
		if len(items) == 0 {
			return nil
		}
		return &Result{From: ctx.Pos - len(word), Items: items}
	})
}

// inInterpolation reports whether text ends inside an open { block. A
// doubled {{ is a literal brace.
func inInterpolation(text string) bool {
	open := strings.LastIndexByte(text, '{')
	if open < 0 {
		return false
	}
	if strings.ContainsRune(text[open:], '}') {
		return false
	}
	return open == 0 || text[open-1] != '{'
}

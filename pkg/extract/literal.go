package extract

import "strings"

// Literal is a decomposed Python string literal.
type Literal struct {
	// Prefix holds the literal's prefix letters exactly as written (f, r, rf, ...).
	Prefix string
	// Quote is the opening and closing delimiter: """, ''', " or '.
	Quote string
	// Content is the raw text between the delimiters, escapes untouched.
	Content string
}

// PrefixLength is the byte distance from the start of the literal to the
// first byte of its content.
func (l Literal) PrefixLength() int {
	return len(l.Prefix) + len(l.Quote)
}

// IsTriple reports whether the literal uses triple quotes.
func (l Literal) IsTriple() bool {
	return len(l.Quote) == 3
}

// ParseLiteral splits the source text of a string literal into its parts.
// Byte strings are rejected since they cannot carry query text.
func ParseLiteral(text string) (Literal, bool) {
	i := 0
	for i < len(text) && i < 2 && strings.ContainsRune("rRuUfF", rune(text[i])) {
		i++
	}
	prefix, rest := text[:i], text[i:]

	var quote string
	switch {
	case strings.HasPrefix(rest, `"""`):
		quote = `"""`
	case strings.HasPrefix(rest, `'''`):
		quote = `'''`
	case strings.HasPrefix(rest, `"`):
		quote = `"`
	case strings.HasPrefix(rest, `'`):
		quote = `'`
	default:
		return Literal{}, false
	}

	if len(rest) < 2*len(quote) || !strings.HasSuffix(rest, quote) {
		return Literal{}, false
	}

	return Literal{
		Prefix:  prefix,
		Quote:   quote,
		Content: rest[len(quote) : len(rest)-len(quote)],
	}, true
}

// PrefixLength returns the prefix length of a literal's opening delimiter:
// f""" and f''' are 4, """ and ''' are 3, f" and f' are 2, " and ' are 1.
// Other prefix letters count the same way. It returns 0 when text does not
// start with a string literal.
func PrefixLength(text string) int {
	lit, ok := ParseLiteral(text)
	if !ok {
		return 0
	}
	return lit.PrefixLength()
}

// EscapeTripleQuotes escapes every """ so text can be embedded in a
// triple-quoted literal.
func EscapeTripleQuotes(text string) string {
	return strings.ReplaceAll(text, `"""`, `\"""`)
}

// UnescapeTripleQuotes reverses EscapeTripleQuotes.
func UnescapeTripleQuotes(text string) string {
	return strings.ReplaceAll(text, `\"""`, `"""`)
}

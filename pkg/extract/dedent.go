package extract

import (
	"errors"
	"strings"
)

// ErrInconsistentIndent is returned by Dedent when two non-blank lines are
// indented with different whitespace characters at the same column.
var ErrInconsistentIndent = errors.New("inconsistent indentation")

// Dedent wraps text in newlines, strips the whitespace prefix shared by all
// non-blank lines and trims the result. Whitespace-only lines become empty.
func Dedent(text string) (string, error) {
	lines := strings.Split("\n"+text+"\n", "\n")

	common, found := "", false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := leadingWhitespace(line)
		if !found {
			common, found = indent, true
			continue
		}
		var err error
		if common, err = sharedIndent(common, indent); err != nil {
			return "", err
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = line[len(common):]
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// SafeDedent is Dedent that never fails. On inconsistent indentation it
// drops the blank lines wrapping text and strips only the byte prefix the
// indents share, so re-indenting and dedenting again gives the same text.
func SafeDedent(text string) string {
	out, err := Dedent(text)
	if err != nil {
		return looseDedent(text)
	}
	return out
}

func looseDedent(text string) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	common, found := "", false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := leadingWhitespace(line)
		if !found {
			common, found = indent, true
			continue
		}
		n := 0
		for n < len(common) && n < len(indent) && common[n] == indent[n] {
			n++
		}
		common = common[:n]
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = line[len(common):]
	}
	return strings.Join(lines, "\n")
}

// Indent prefixes every non-empty line of text with unit.
func Indent(text, unit string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = unit + line
	}
	return strings.Join(lines, "\n")
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// sharedIndent returns the common prefix of two indents. A shorter indent
// that is a prefix of the longer one is fine; differing characters are not.
func sharedIndent(a, b string) (string, error) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return "", ErrInconsistentIndent
		}
	}
	return a[:n], nil
}

package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// FormatHeader returns a markdown heading.
func FormatHeader(level int, title string) string {
	level = min(max(level, 1), 6)
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// FormatCodeBlock returns a fenced markdown code block. The fence grows
// when the text itself contains backtick fences.
func FormatCodeBlock(lang, text string) string {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	return fence + lang + "\n" + strings.TrimSuffix(text, "\n") + "\n" + fence
}

// Title capitalizes each word of s for display.
func Title(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// Table writes rows under headers: a light box table in text mode, a
// markdown table otherwise.
func (r *Renderer) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		r.Muted("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

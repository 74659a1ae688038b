// Package output renders command results for terminals, agents and scripts.
//
// The effective mode follows the environment: styled text on a terminal,
// markdown when piped, and JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// OutputMode selects how results are rendered.
type OutputMode string

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode converts a configured output format to an OutputMode. Unknown and
// empty values fall back to ModeAuto.
func Mode(format string) OutputMode {
	switch m := OutputMode(strings.ToLower(strings.TrimSpace(format))); m {
	case ModeText, ModeMarkdown, ModeJSON:
		return m
	case "md":
		return ModeMarkdown
	default:
		return ModeAuto
	}
}

// Renderer writes command output in the effective mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   OutputMode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	profile := termenv.Ascii
	if isTTY {
		profile = termenv.NewOutput(out).EnvColorProfile()
	}
	lr := lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lr),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// EffectiveMode resolves ModeAuto: text on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Styles returns the renderer's styles.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the error writer.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section header. Text mode styles it, markdown mode
// writes a markdown heading.
func (r *Renderer) Header(level int, title string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, title))
		r.Println()
		return
	}
	style := r.styles.Header
	if level > 1 {
		style = r.styles.Subheader
	}
	r.Println(style.Render(title))
}

// KeyValue writes one labelled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Println(r.styles.Key.Render(key+":") + " " + value)
}

// Code writes a block of source text in the given language.
func (r *Renderer) Code(lang, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatCodeBlock(lang, text))
		return
	}
	r.Println(r.styles.Muted.Render(strings.Repeat("─", 40)))
	r.Println(strings.TrimSuffix(text, "\n"))
	r.Println(r.styles.Muted.Render(strings.Repeat("─", 40)))
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Warning writes a warning to the error writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error writes an error to the error writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
}

// Muted writes de-emphasized text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// StatusLine writes a labelled line with a status marker: success,
// warning, error or skipped.
func (r *Renderer) StatusLine(label, status, detail string) {
	var marker string
	switch status {
	case "success":
		marker = r.styles.Success.Render("✓")
	case "warning":
		marker = r.styles.Warning.Render("!")
	case "error":
		marker = r.styles.Error.Render("✗")
	default:
		marker = r.styles.Muted.Render("-")
	}
	line := marker + " " + label
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

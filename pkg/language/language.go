// Package language implements the views a cell can be edited in.
//
// A cell is always persisted as Python. An Adapter converts between that
// host text and the text shown to the user (the sub-language text) and
// back, reporting how far the cursor moves and which metadata must be
// carried across the round trip so nothing the user wrote is lost.
//
// The set of adapters is closed: Python (identity), Markdown (prose
// wrapped in mo.md) and SQL (queries wrapped in mo.sql).
package language

import (
	"fmt"
	"strings"
)

// Type names a sub-language.
type Type string

// Supported sub-languages, in cycle order.
const (
	Python   Type = "python"
	Markdown Type = "markdown"
	SQL      Type = "sql"
)

// Types lists every sub-language in cycle order.
var Types = []Type{Python, Markdown, SQL}

// ParseType resolves a language name case-insensitively.
func ParseType(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", &UnknownLanguageError{Name: name, Available: typeNames()}
}

func typeNames() []string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return names
}

// UnknownLanguageError is returned when an unknown language is requested.
type UnknownLanguageError struct {
	Name      string
	Available []string
}

func (e *UnknownLanguageError) Error() string {
	return fmt.Sprintf("unknown language %q\nAvailable languages: %v", e.Name, e.Available)
}

// CompletionSource names a completion provider an editor should install.
type CompletionSource string

// Completion providers.
const (
	// CompleteSchema completes tables and columns of the active connection.
	CompleteSchema CompletionSource = "schema"
	// CompleteVariables completes host variables inside {} blocks.
	CompleteVariables CompletionSource = "variables"
	// CompleteKeywords completes dialect keywords.
	CompleteKeywords CompletionSource = "keywords"
)

// Extension is the editor capability set an adapter needs while active.
type Extension struct {
	Language Type
	// Completion lists completion providers in priority order.
	Completion []CompletionSource
	// Dialect reports whether a SQL dialect must be installed.
	Dialect bool
	// Panel reports whether the language panel is shown.
	Panel bool
}

// HasCompletion reports whether src is among the extension's providers.
func (e Extension) HasCompletion(src CompletionSource) bool {
	for _, c := range e.Completion {
		if c == src {
			return true
		}
	}
	return false
}

// Adapter converts a cell between host text and one sub-language.
//
// TransformIn returns the sub-language text, the offset of that text's
// first byte within host, and the metadata needed to restore host.
// TransformOut returns the host text and the offset of the sub-language
// text's first byte within it. Neither fails: text an adapter cannot
// understand is passed through so user data is never discarded.
type Adapter interface {
	Type() Type
	DefaultMetadata() Metadata
	DefaultCode() string
	IsSupported(host string) bool
	TransformIn(host string) (sub string, offset int, meta Metadata)
	TransformOut(sub string, meta Metadata) (host string, offset int)
	Extension() Extension

	adapter()
}

// IndentUnit is the indentation applied to embedded bodies.
const IndentUnit = "    "

// Package editor drives language switching for a single cell editor.
//
// A Session owns the current adapter and its metadata and talks to the
// editor widget only through the View contract: read the document and the
// cursor, and dispatch transactions. Buffer is an in-memory View used by
// the REPL, the language server and tests.
package editor

import (
	"github.com/leapstack-labs/cellsql/pkg/dialect"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// View is the editor surface a Session needs.
type View interface {
	// Doc returns the full document text.
	Doc() string
	// Cursor returns the cursor byte offset.
	Cursor() int
	// Dispatch applies a transaction.
	Dispatch(tr Transaction)
}

// HistoryOp changes the undo history of a view.
type HistoryOp int

// History operations.
const (
	HistoryNone HistoryOp = iota
	// HistoryClear drops the undo history and stops recording.
	HistoryClear
	// HistoryRestore resumes recording with an empty history.
	HistoryRestore
)

// Transaction is one atomic update of a view. Nil fields are left alone.
// The history operation applies before the text change, so a replacement
// dispatched together with HistoryClear is not undoable.
type Transaction struct {
	Text         *string
	Selection    *int
	Extension    *language.Extension
	Dialect      *dialect.Dialect
	// ClearDialect uninstalls the view's dialect. Dialect wins when both
	// are set.
	ClearDialect bool
	History      HistoryOp
	// Formatting marks the change as not authored by the user.
	Formatting bool
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

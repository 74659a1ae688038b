package editor

import (
	"sync"

	"github.com/leapstack-labs/cellsql/pkg/dialect"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

type bufferState struct {
	text   string
	cursor int
}

// Buffer is an in-memory View with an undo history.
type Buffer struct {
	mu        sync.Mutex
	text      string
	cursor    int
	undo      []bufferState
	recording bool
	extension language.Extension
	dialect   *dialect.Dialect
	listeners []func(Transaction)
}

// NewBuffer returns a buffer holding text with the cursor at its end.
func NewBuffer(text string) *Buffer {
	return &Buffer{
		text:      text,
		cursor:    len(text),
		recording: true,
		extension: language.Extension{Language: language.Python},
	}
}

// Doc implements View.
func (b *Buffer) Doc() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Cursor implements View.
func (b *Buffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// Extension returns the installed capability set.
func (b *Buffer) Extension() language.Extension {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.extension
}

// Dialect returns the installed SQL dialect, or nil.
func (b *Buffer) Dialect() *dialect.Dialect {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dialect
}

// Dispatch implements View.
func (b *Buffer) Dispatch(tr Transaction) {
	b.mu.Lock()
	switch tr.History {
	case HistoryClear:
		b.undo = nil
		b.recording = false
	case HistoryRestore:
		b.undo = nil
		b.recording = true
	}
	if tr.Text != nil {
		b.record()
		b.text = *tr.Text
		b.cursor = clamp(b.cursor, 0, len(b.text))
	}
	if tr.Selection != nil {
		b.cursor = clamp(*tr.Selection, 0, len(b.text))
	}
	if tr.Extension != nil {
		b.extension = *tr.Extension
	}
	if tr.ClearDialect {
		b.dialect = nil
	}
	if tr.Dialect != nil {
		b.dialect = tr.Dialect
	}
	listeners := append([]func(Transaction){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(tr)
	}
}

// OnDispatch registers fn to observe every transaction, e.g. to skip
// reformatting for changes not authored by the user.
func (b *Buffer) OnDispatch(fn func(Transaction)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// SetText replaces the document as a user edit.
func (b *Buffer) SetText(text string) {
	b.Dispatch(Transaction{Text: &text})
}

// SetCursor moves the cursor, clamped to the document.
func (b *Buffer) SetCursor(pos int) {
	b.Dispatch(Transaction{Selection: &pos})
}

// Insert inserts text at the cursor as a user edit and moves the cursor
// past it.
func (b *Buffer) Insert(text string) {
	b.mu.Lock()
	pos := clamp(b.cursor, 0, len(b.text))
	next := b.text[:pos] + text + b.text[pos:]
	cursor := pos + len(text)
	b.mu.Unlock()

	b.Dispatch(Transaction{Text: &next, Selection: &cursor})
}

// Undo reverts the last recorded edit. It reports false when there is
// nothing to undo.
func (b *Buffer) Undo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.undo) == 0 {
		return false
	}
	last := b.undo[len(b.undo)-1]
	b.undo = b.undo[:len(b.undo)-1]
	b.text, b.cursor = last.text, last.cursor
	return true
}

// HistoryLen returns the number of undoable edits.
func (b *Buffer) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.undo)
}

func (b *Buffer) record() {
	if b.recording {
		b.undo = append(b.undo, bufferState{text: b.text, cursor: b.cursor})
	}
}

var _ View = (*Buffer)(nil)

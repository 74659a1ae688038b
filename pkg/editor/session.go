package editor

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/cellsql/pkg/dialect"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// DialectResolver resolves the dialect of a connection. It is satisfied by
// *catalog.SQLCompletionStore.
type DialectResolver interface {
	GetDialect(name string) *dialect.Dialect
	PreferredDialect(name string) (*dialect.Dialect, bool)
}

// Config configures a Session.
type Config struct {
	// Dialects resolves query dialects. Nil installs the default dialect.
	Dialects DialectResolver
	Logger   *slog.Logger
}

// Session is the per-cell editor state: the active adapter and its
// metadata. All methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	view     View
	adapters *language.Adapters
	current  language.Adapter
	meta     language.Metadata
	dialects DialectResolver
	dialect  *dialect.Dialect
	logger   *slog.Logger
}

// NewSession creates a session over view. The session starts in the Python
// view, so view must hold host text; call Detect to move to the best view.
func NewSession(view View, adapters *language.Adapters, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		view:     view,
		adapters: adapters,
		current:  adapters.Python,
		meta:     adapters.Python.DefaultMetadata(),
		dialects: cfg.Dialects,
		logger:   cfg.Logger,
	}
}

// InitialAdapter picks the view a cell opens in: Python for empty text,
// else Markdown, then SQL, then Python.
func InitialAdapter(adapters *language.Adapters, host string) language.Adapter {
	host = strings.TrimSpace(host)
	if host == "" {
		return adapters.Python
	}
	if adapters.Markdown.IsSupported(host) {
		return adapters.Markdown
	}
	if adapters.SQL.IsSupported(host) {
		return adapters.SQL
	}
	return adapters.Python
}

// Detect switches to the initial view for the current host text.
func (s *Session) Detect() language.Type {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, _ := s.current.TransformOut(s.view.Doc(), s.meta)
	next := InitialAdapter(s.adapters, host)
	if next.Type() != s.current.Type() {
		s.switchTo(next, false)
	}
	return next.Type()
}

// Language returns the active language.
func (s *Session) Language() language.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Type()
}

// Metadata returns the active metadata.
func (s *Session) Metadata() language.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// Dialect returns the installed dialect, or nil outside SQL.
func (s *Session) Dialect() *dialect.Dialect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialect
}

// HostCode returns the document converted to host text.
func (s *Session) HostCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	host, _ := s.current.TransformOut(s.view.Doc(), s.meta)
	return host
}

// SwitchLanguage moves the cell to lang. With keepCodeAsIs the text is not
// converted; metadata resets to the target defaults only when the language
// changes. Switching to the active language is a no-op. It reports whether
// the view changed.
func (s *Session) SwitchLanguage(lang language.Type, keepCodeAsIs bool) (bool, error) {
	next, err := s.adapters.Get(lang)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Type() == next.Type() {
		return false, nil
	}
	s.switchTo(next, keepCodeAsIs)
	return true, nil
}

// Cycle switches to the next adapter, in cycle order after the active
// one, that supports the current document. It reports false when only the
// active adapter does.
func (s *Session) Cycle() (language.Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.adapters.List()
	start := s.adapters.Index(s.current.Type())
	doc := s.view.Doc()

	for i := 1; i <= len(list); i++ {
		cand := list[(start+i)%len(list)]
		if !cand.IsSupported(doc) {
			continue
		}
		if cand.Type() == s.current.Type() {
			return cand.Type(), false
		}
		s.switchTo(cand, false)
		return cand.Type(), true
	}
	return s.current.Type(), false
}

// SetMetadata replaces the active metadata, e.g. when the user picks
// another engine. The metadata must belong to the active language.
func (s *Session) SetMetadata(meta language.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta == nil || meta.Language() != s.current.Type() {
		return fmt.Errorf("metadata for %v does not match active language %s", languageOf(meta), s.current.Type())
	}
	s.meta = meta
	if s.current.Type() == language.SQL {
		s.installDialect()
	}
	return nil
}

func languageOf(meta language.Metadata) string {
	if meta == nil {
		return "<nil>"
	}
	return string(meta.Language())
}

// switchTo runs the transition to next. The caller holds s.mu.
func (s *Session) switchTo(next language.Adapter, keepCodeAsIs bool) {
	prev := s.current
	meta := s.meta
	ext := next.Extension()

	tr := Transaction{
		Extension:  &ext,
		History:    HistoryClear,
		Formatting: true,
	}

	if keepCodeAsIs {
		if prev.Type() != next.Type() {
			meta = next.DefaultMetadata()
		}
	} else {
		code := s.view.Doc()
		cursor := s.view.Cursor()

		host, d1 := prev.TransformOut(code, s.meta)
		sub, d2, out := next.TransformIn(host)
		cursor = clamp(cursor+d1-d2, 0, len(sub))

		tr.Text = &sub
		tr.Selection = &cursor
		meta = out
	}

	s.current = next
	s.meta = meta
	s.view.Dispatch(tr)
	s.view.Dispatch(Transaction{History: HistoryRestore})

	s.logger.Debug("switched language",
		slog.String("from", string(prev.Type())),
		slog.String("to", string(next.Type())),
		slog.Bool("keep_code", keepCodeAsIs))

	if next.Type() == language.SQL {
		s.installDialect()
	} else if prev.Type() == language.SQL {
		s.dialect = nil
		s.view.Dispatch(Transaction{ClearDialect: true})
	}
}

// installDialect resolves the dialect of the metadata's engine. Engines
// with no preference keep the installed dialect. The caller holds s.mu.
func (s *Session) installDialect() {
	m, ok := s.meta.(language.SQLMetadata)
	if !ok {
		return
	}

	var d *dialect.Dialect
	if s.dialects == nil {
		d = dialect.Default()
	} else if preferred, ok := s.dialects.PreferredDialect(m.Engine); ok {
		d = preferred
	} else if s.dialect == nil {
		d = s.dialects.GetDialect(m.Engine)
	}
	if d == nil || d == s.dialect {
		return
	}
	s.dialect = d
	s.view.Dispatch(Transaction{Dialect: d})
	s.logger.Debug("installed dialect", slog.String("engine", m.Engine), slog.String("dialect", d.Name))
}

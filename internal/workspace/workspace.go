// Package workspace wires the catalog, the adapters, completion and
// persistence into one object shared by the CLI, the language server and
// the HTTP API.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/leapstack-labs/cellsql/internal/introspect"
	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/internal/watch"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/completion"
	"github.com/leapstack-labs/cellsql/pkg/editor"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// SnapshotHistory is how many catalog snapshots are kept in the state store.
const SnapshotHistory = 10

var (
	// ErrNoConnections is returned by Introspect when no live connection
	// is configured.
	ErrNoConnections = errors.New("no connections configured")
	// ErrNoCatalogFile is returned by Reload and Watch when no catalog file
	// is configured.
	ErrNoCatalogFile = errors.New("no catalog file configured")
)

// Config holds workspace configuration.
type Config struct {
	// CatalogFile is the YAML catalog snapshot (optional).
	CatalogFile string
	// StatePath is the path to the SQLite state database. Empty means in-memory.
	StatePath string
	// CacheCapacity bounds the derived-schema cache. Zero uses the default.
	CacheCapacity int
	// DefaultEngine pins the latest-engine slot when nothing is persisted.
	// The built-in engine does not pin it, so the catalog can seed it.
	DefaultEngine string
	// Connections are the live databases "catalog introspect" reads.
	Connections []introspect.Config
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Workspace is the shared runtime state.
type Workspace struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	listeners []func(changed []string)

	Store      state.Store
	Catalog    *catalog.MemoryStore
	Completion *catalog.SQLCompletionStore
	Engines    *language.EngineState
	Adapters   *language.Adapters
	Provider   *completion.Provider
}

// New opens the state store, loads the catalog and builds the adapters.
func New(ctx context.Context, cfg Config) (*Workspace, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("initializing workspace",
		slog.String("catalog_file", cfg.CatalogFile),
		slog.String("state_path", cfg.StatePath))

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = ":memory:"
	}
	if statePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(statePath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := state.OpenAndMigrate(statePath, store); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	mem := catalog.NewMemoryStore()
	cache, err := catalog.NewSQLCompletionStore(mem, mem, catalog.Config{
		Capacity: cfg.CacheCapacity,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	engines := language.NewEngineState()
	if latest, err := store.GetSetting(ctx, state.SettingLatestEngine); err == nil {
		engines.SetLatest(latest)
	} else if cfg.DefaultEngine != "" && cfg.DefaultEngine != catalog.DefaultEngine {
		// A configured engine other than the built-in one pins the slot.
		// Otherwise the first known connection in catalog order seeds it,
		// with the built-in engine first unless the catalog lists it.
		engines.SetLatest(cfg.DefaultEngine)
	}
	engines.OnChange(func(name string) {
		if err := store.SetSetting(context.Background(), state.SettingLatestEngine, name); err != nil {
			logger.Warn("failed to persist latest engine", slog.String("error", err.Error()))
		}
	})

	w := &Workspace{
		cfg:        cfg,
		logger:     logger,
		Store:      store,
		Catalog:    mem,
		Completion: cache,
		Engines:    engines,
		Adapters:   language.NewAdapters(language.Options{Engines: engines, Logger: logger}),
		Provider:   &completion.Provider{Catalog: cache, Variables: mem.Variables},
	}

	if err := w.loadInitialCatalog(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return w, nil
}

// loadInitialCatalog prefers the catalog file, then the last stored
// snapshot, then the built-in engine alone.
func (w *Workspace) loadInitialCatalog(ctx context.Context) error {
	if w.cfg.CatalogFile != "" {
		snap, err := catalog.LoadFile(w.cfg.CatalogFile)
		switch {
		case err == nil:
			_, err = w.Apply(ctx, w.cfg.CatalogFile, snap)
			return err
		case errors.Is(err, os.ErrNotExist):
			w.logger.Debug("catalog file not found", slog.String("path", w.cfg.CatalogFile))
		default:
			return err
		}
	}

	if stored, err := w.Store.LatestCatalogSnapshot(ctx); err == nil {
		w.apply(stored.Snapshot)
		return nil
	} else if !errors.Is(err, state.ErrNotFound) {
		return err
	}

	w.apply(&catalog.Snapshot{})
	return nil
}

// Apply installs snap, invalidates derived schemas of changed connections
// and records the snapshot. It returns the changed connection names.
func (w *Workspace) Apply(ctx context.Context, source string, snap *catalog.Snapshot) ([]string, error) {
	changed := w.apply(snap)
	if _, err := w.Store.SaveCatalogSnapshot(ctx, source, w.Catalog.Snapshot()); err != nil {
		return changed, err
	}
	if err := w.Store.PruneCatalogSnapshots(ctx, SnapshotHistory); err != nil {
		return changed, err
	}
	return changed, nil
}

func (w *Workspace) apply(snap *catalog.Snapshot) []string {
	snap = snap.WithDefaultConnection()
	changed := w.Catalog.Replace(snap)
	w.Completion.Invalidate(changed...)

	names := make([]string, 0, len(snap.Connections))
	for _, c := range snap.Connections {
		names = append(names, c.Name)
	}
	w.Engines.InitFromConnections(names...)

	if len(changed) > 0 {
		w.logger.Debug("catalog updated", slog.Any("changed", changed))
		w.mu.RLock()
		listeners := w.listeners
		w.mu.RUnlock()
		for _, fn := range listeners {
			fn(changed)
		}
	}
	return changed
}

// OnCatalogChange registers fn to run after every catalog update that
// changed at least one connection.
func (w *Workspace) OnCatalogChange(fn func(changed []string)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Introspect reads every configured live connection and merges the result
// into the current catalog.
func (w *Workspace) Introspect(ctx context.Context) ([]string, error) {
	if len(w.cfg.Connections) == 0 {
		return nil, ErrNoConnections
	}
	conns, err := introspect.All(ctx, w.cfg.Connections, w.logger)
	if err != nil {
		return nil, err
	}
	return w.Apply(ctx, "introspect", introspect.Merge(w.Catalog.Snapshot(), conns))
}

// Reload reads the catalog file again and applies it.
func (w *Workspace) Reload(ctx context.Context) ([]string, error) {
	if w.cfg.CatalogFile == "" {
		return nil, ErrNoCatalogFile
	}
	snap, err := catalog.LoadFile(w.cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	return w.Apply(ctx, w.cfg.CatalogFile, snap)
}

// CatalogFile returns the configured catalog file path, if any.
func (w *Workspace) CatalogFile() string {
	return w.cfg.CatalogFile
}

// Watch reloads the catalog file on change until ctx is done.
func (w *Workspace) Watch(ctx context.Context) error {
	if w.cfg.CatalogFile == "" {
		return ErrNoCatalogFile
	}
	watcher := watch.New(w.cfg.CatalogFile, func(snap *catalog.Snapshot) {
		if _, err := w.Apply(ctx, w.cfg.CatalogFile, snap); err != nil {
			w.logger.Warn("failed to record catalog snapshot", slog.String("error", err.Error()))
		}
	}, watch.WithLogger(w.logger))
	return watcher.Run(ctx)
}

// OpenCell returns a session over an in-memory buffer holding host, already
// switched to its detected language.
func (w *Workspace) OpenCell(host string) (*editor.Session, *editor.Buffer) {
	buf := editor.NewBuffer(host)
	session := w.NewSession(buf)
	session.Detect()
	return session, buf
}

// NewSession creates a session over view backed by the workspace catalog.
func (w *Workspace) NewSession(view editor.View) *editor.Session {
	return editor.NewSession(view, w.Adapters, editor.Config{
		Dialects: w.Completion,
		Logger:   w.logger,
	})
}

// SaveCell stores the session's cell under name, keeping the ID of an
// existing cell with that name.
func (w *Workspace) SaveCell(ctx context.Context, name string, session *editor.Session) (*state.Cell, error) {
	cell := &state.Cell{
		Name:     name,
		Language: session.Language(),
		HostCode: session.HostCode(),
		Metadata: session.Metadata(),
	}
	if err := w.Store.SaveCell(ctx, cell); err != nil {
		return nil, err
	}
	return cell, nil
}

// FindCell looks a stored cell up by ID, then by name.
func (w *Workspace) FindCell(ctx context.Context, ref string) (*state.Cell, error) {
	cell, err := w.Store.GetCell(ctx, ref)
	if err == nil {
		return cell, nil
	}
	if byName, nameErr := w.Store.GetCellByName(ctx, ref); nameErr == nil {
		return byName, nil
	}
	return nil, err
}

// RestoreCell opens a stored cell in the language it was saved in.
func (w *Workspace) RestoreCell(cell *state.Cell) (*editor.Session, *editor.Buffer, error) {
	buf := editor.NewBuffer(cell.HostCode)
	session := w.NewSession(buf)
	if cell.Language == "" {
		session.Detect()
		return session, buf, nil
	}
	if _, err := session.SwitchLanguage(cell.Language, false); err != nil {
		return nil, nil, err
	}
	if cell.Metadata != nil && cell.Metadata.Language() == cell.Language {
		if err := session.SetMetadata(cell.Metadata); err != nil {
			return nil, nil, err
		}
	}
	return session, buf, nil
}

// Complete returns completions for a query body bound to engine.
func (w *Workspace) Complete(engine, text string, pos int, explicit bool) *completion.Result {
	if engine == "" {
		engine = w.Engines.Latest()
	}
	return w.Provider.Complete(engine, completion.Context{Text: text, Pos: pos, Explicit: explicit})
}

// Logger returns the workspace logger.
func (w *Workspace) Logger() *slog.Logger {
	return w.logger
}

// Close releases the state store.
func (w *Workspace) Close() error {
	return w.Store.Close()
}

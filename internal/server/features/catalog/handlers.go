// Package catalog provides handlers for inspecting and updating the
// workspace catalog, and the SSE stream announcing catalog changes.
package catalog

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/cellsql/internal/server/features/common"
	"github.com/leapstack-labs/cellsql/internal/server/notifier"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/dialect"
)

// ConnectionSummary is one row of the connection list.
type ConnectionSummary struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	Dialect       string `json:"dialect"`
	Tables        int    `json:"tables"`
	DefaultSchema string `json:"default_schema,omitempty"`
	Cached        bool   `json:"cached"`
	Latest        bool   `json:"latest"`
}

// DialectInfo describes the dialect a connection resolves to.
type DialectInfo struct {
	Name          string   `json:"name"`
	DisplayName   string   `json:"display_name"`
	DefaultSchema string   `json:"default_schema,omitempty"`
	Quote         string   `json:"quote"`
	Keywords      []string `json:"keywords"`
	Functions     []string `json:"functions"`
	DataTypes     []string `json:"data_types"`
}

// SchemaResponse is the completion schema derived for a connection.
type SchemaResponse struct {
	Connection    string             `json:"connection"`
	DefaultSchema string             `json:"default_schema"`
	Schema        *catalog.Namespace `json:"schema"`
}

// ChangedResponse lists the connections an update invalidated.
type ChangedResponse struct {
	Changed []string `json:"changed"`
}

// Signals is the datastar signal payload pushed on every catalog change.
type Signals struct {
	Catalog struct {
		Changed     []string            `json:"changed"`
		Connections []ConnectionSummary `json:"connections"`
		Latest      string              `json:"latest"`
	} `json:"catalog"`
}

// Handlers provides HTTP handlers for the catalog feature.
type Handlers struct {
	ws       *workspace.Workspace
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ws *workspace.Workspace, notify *notifier.Notifier) *Handlers {
	return &Handlers{ws: ws, notifier: notify, logger: ws.Logger()}
}

// Snapshot returns the whole catalog.
func (h *Handlers) Snapshot(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, h.ws.Catalog.Snapshot())
}

// Replace installs a new catalog snapshot.
func (h *Handlers) Replace(w http.ResponseWriter, r *http.Request) {
	var snap catalog.Snapshot
	if err := common.DecodeJSON(r, &snap); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := snap.Validate(); err != nil {
		common.WriteError(w, common.BadRequest(err))
		return
	}
	changed, err := h.ws.Apply(r.Context(), "api", &snap)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, ChangedResponse{Changed: nonNil(changed)})
}

// Connections lists the known connections.
func (h *Handlers) Connections(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, h.summaries())
}

// Dialect describes the dialect of one connection.
func (h *Handlers) Dialect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.ws.Catalog.Connection(name); !ok {
		common.WriteError(w, fmt.Errorf("%w: %s", catalog.ErrUnknownConnection, name))
		return
	}
	d := h.ws.Completion.GetDialect(name)
	common.WriteJSON(w, http.StatusOK, dialectInfo(d))
}

// Schema returns the completion schema derived for one connection.
func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	derived, err := h.ws.Completion.Derived(name)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, SchemaResponse{
		Connection:    name,
		DefaultSchema: derived.DefaultSchema,
		Schema:        derived.Schema,
	})
}

// Reload re-reads the catalog file.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	changed, err := h.ws.Reload(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, ChangedResponse{Changed: nonNil(changed)})
}

// Introspect reads the configured live connections.
func (h *Handlers) Introspect(w http.ResponseWriter, r *http.Request) {
	changed, err := h.ws.Introspect(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.logger.Info("introspected connections", "changed", changed)
	common.WriteJSON(w, http.StatusOK, ChangedResponse{Changed: nonNil(changed)})
}

// Events is the long-lived SSE endpoint. Every catalog change patches the
// catalog signals of connected clients.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			if err := sse.MarshalAndPatchSignals(h.signals(ev)); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) signals(ev notifier.Event) Signals {
	var s Signals
	s.Catalog.Changed = nonNil(ev.Changed)
	s.Catalog.Connections = h.summaries()
	s.Catalog.Latest = h.ws.Engines.Latest()
	return s
}

func (h *Handlers) summaries() []ConnectionSummary {
	latest := h.ws.Engines.Latest()
	conns := h.ws.Catalog.Connections()
	out := make([]ConnectionSummary, 0, len(conns))
	for _, c := range conns {
		out = append(out, ConnectionSummary{
			Name:          c.Name,
			Label:         c.Label(),
			Dialect:       h.ws.Completion.GetDialect(c.Name).Name,
			Tables:        c.TableCount(),
			DefaultSchema: c.DefaultSchema,
			Cached:        h.ws.Completion.Cached(c.Name),
			Latest:        c.Name == latest,
		})
	}
	return out
}

func dialectInfo(d *dialect.Dialect) DialectInfo {
	return DialectInfo{
		Name:          d.Name,
		DisplayName:   d.DisplayName,
		DefaultSchema: d.DefaultSchema,
		Quote:         d.Identifiers.Quote,
		Keywords:      nonNil(d.Keywords()),
		Functions:     nonNil(d.Functions()),
		DataTypes:     nonNil(d.DataTypes()),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Package cells provides handlers for the persisted cells.
package cells

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/cellsql/internal/server/features/common"
	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// SaveRequest stores a cell. Without a language the cell is saved in the
// view its host text suggests.
type SaveRequest struct {
	Name     string `json:"name"`
	HostCode string `json:"host_code"`
	Language string `json:"language,omitempty"`
}

// CellResponse is a stored cell together with its view text.
type CellResponse struct {
	*state.Cell
	Text string `json:"text"`
}

// Handlers provides HTTP handlers for the cells feature.
type Handlers struct {
	ws     *workspace.Workspace
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ws *workspace.Workspace) *Handlers {
	return &Handlers{ws: ws, logger: ws.Logger()}
}

// List returns every stored cell ordered by name.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	cells, err := h.ws.Store.ListCells(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if cells == nil {
		cells = []*state.Cell{}
	}
	common.WriteJSON(w, http.StatusOK, cells)
}

// Get returns one cell opened in its saved view. The id may also be a
// cell name.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	cell, err := h.lookup(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	_, buf, err := h.ws.RestoreCell(cell)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, CellResponse{Cell: cell, Text: buf.Doc()})
}

// Save creates or replaces the cell with the given name.
func (h *Handlers) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		common.WriteError(w, common.BadRequest(fmt.Errorf("cell name is required")))
		return
	}

	session, buf := h.ws.OpenCell(req.HostCode)
	if req.Language != "" {
		lang, err := language.ParseType(req.Language)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		if _, err := session.SwitchLanguage(lang, false); err != nil {
			common.WriteError(w, err)
			return
		}
	}

	cell, err := h.ws.SaveCell(r.Context(), req.Name, session)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.logger.Info("saved cell", "name", cell.Name, "id", cell.ID, "language", cell.Language)
	common.WriteJSON(w, http.StatusOK, CellResponse{Cell: cell, Text: buf.Doc()})
}

// Delete removes a cell.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	cell, err := h.lookup(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.ws.Store.DeleteCell(r.Context(), cell.ID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) lookup(r *http.Request) (*state.Cell, error) {
	return h.ws.FindCell(r.Context(), chi.URLParam(r, "id"))
}

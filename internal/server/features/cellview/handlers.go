// Package cellview exposes the language adapters over HTTP: detecting a
// cell's view, converting between host and view text, switching views and
// completing queries.
package cellview

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/leapstack-labs/cellsql/internal/server/features/common"
	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/completion"
	"github.com/leapstack-labs/cellsql/pkg/editor"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// Transform directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// CellRequest names a cell by its host text. From, when set, is the view
// the cell is currently in; otherwise the view is detected.
type CellRequest struct {
	Host string `json:"host"`
	From string `json:"from,omitempty"`
}

// SwitchRequest moves a cell to another view.
type SwitchRequest struct {
	CellRequest
	Language     string `json:"language"`
	KeepCodeAsIs bool   `json:"keep_code_as_is,omitempty"`
}

// TransformRequest runs one adapter in one direction.
type TransformRequest struct {
	Language  string          `json:"language"`
	Direction string          `json:"direction"`
	Text      string          `json:"text"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// TransformResponse is the adapter output.
type TransformResponse struct {
	Text     string            `json:"text"`
	Offset   int               `json:"offset"`
	Metadata language.Metadata `json:"metadata"`
}

// CompleteRequest asks for completions in a query body.
type CompleteRequest struct {
	Engine   string `json:"engine,omitempty"`
	Text     string `json:"text"`
	Pos      int    `json:"pos"`
	Explicit bool   `json:"explicit,omitempty"`
}

// CellView is a cell as seen through its active view.
type CellView struct {
	Language language.Type     `json:"language"`
	Changed  bool              `json:"changed"`
	Text     string            `json:"text"`
	HostCode string            `json:"host_code"`
	Metadata language.Metadata `json:"metadata"`
	Dialect  string            `json:"dialect,omitempty"`
	// Supported reports, per language, whether it understands the cell.
	Supported map[language.Type]bool `json:"supported"`
	// Completion lists the completion providers the view installs.
	Completion []language.CompletionSource `json:"completion"`
}

// Handlers provides HTTP handlers for the cell view feature.
type Handlers struct {
	ws     *workspace.Workspace
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ws *workspace.Workspace) *Handlers {
	return &Handlers{ws: ws, logger: ws.Logger()}
}

// Detect opens a cell in the view its host text suggests.
func (h *Handlers) Detect(w http.ResponseWriter, r *http.Request) {
	var req CellRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	session, buf := h.ws.OpenCell(req.Host)
	common.WriteJSON(w, http.StatusOK, h.view(session, buf, false))
}

// Transform runs TransformIn or TransformOut of one adapter.
func (h *Handlers) Transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	lang, err := language.ParseType(req.Language)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	adapter, err := h.ws.Adapters.Get(lang)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	var resp TransformResponse
	switch req.Direction {
	case DirectionIn:
		resp.Text, resp.Offset, resp.Metadata = adapter.TransformIn(req.Text)
	case DirectionOut:
		meta := adapter.DefaultMetadata()
		if len(req.Metadata) > 0 {
			if meta, err = language.UnmarshalMetadata(lang, req.Metadata); err != nil {
				common.WriteError(w, common.BadRequest(err))
				return
			}
		}
		resp.Metadata = meta
		resp.Text, resp.Offset = adapter.TransformOut(req.Text, meta)
	default:
		common.WriteError(w, common.BadRequest(fmt.Errorf("direction must be %q or %q, got %q", DirectionIn, DirectionOut, req.Direction)))
		return
	}
	common.WriteJSON(w, http.StatusOK, resp)
}

// Switch moves a cell to the requested view.
func (h *Handlers) Switch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	target, err := language.ParseType(req.Language)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	session, buf, err := h.open(req.CellRequest)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	changed, err := session.SwitchLanguage(target, req.KeepCodeAsIs)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.logger.Debug("switched cell view", "language", target, "changed", changed, "keep_code_as_is", req.KeepCodeAsIs)
	common.WriteJSON(w, http.StatusOK, h.view(session, buf, changed))
}

// Cycle moves a cell to the next view that supports it.
func (h *Handlers) Cycle(w http.ResponseWriter, r *http.Request) {
	var req CellRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	session, buf, err := h.open(req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	_, changed := session.Cycle()
	common.WriteJSON(w, http.StatusOK, h.view(session, buf, changed))
}

// Complete returns completions for a query body.
func (h *Handlers) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.Pos < 0 || req.Pos > len(req.Text) {
		common.WriteError(w, common.BadRequest(fmt.Errorf("pos %d out of range [0, %d]", req.Pos, len(req.Text))))
		return
	}
	res := h.ws.Complete(req.Engine, req.Text, req.Pos, req.Explicit)
	if res == nil {
		res = &completion.Result{From: req.Pos, Items: []completion.Item{}}
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) open(req CellRequest) (*editor.Session, *editor.Buffer, error) {
	if req.From == "" {
		session, buf := h.ws.OpenCell(req.Host)
		return session, buf, nil
	}
	from, err := language.ParseType(req.From)
	if err != nil {
		return nil, nil, err
	}
	return h.ws.RestoreCell(&state.Cell{Language: from, HostCode: req.Host})
}

func (h *Handlers) view(session *editor.Session, buf *editor.Buffer, changed bool) CellView {
	host := session.HostCode()
	v := CellView{
		Language:   session.Language(),
		Changed:    changed,
		Text:       buf.Doc(),
		HostCode:   host,
		Metadata:   session.Metadata(),
		Supported:  make(map[language.Type]bool, len(language.Types)),
		Completion: buf.Extension().Completion,
	}
	if v.Completion == nil {
		v.Completion = []language.CompletionSource{}
	}
	if d := session.Dialect(); d != nil {
		v.Dialect = d.Name
	}
	for _, a := range h.ws.Adapters.List() {
		v.Supported[a.Type()] = a.IsSupported(host)
	}
	return v
}

package lsp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/language"
)

// Commands run through workspace/executeCommand.
const (
	// CommandSwitchLanguage takes [uri, language, keepCodeAsIs?].
	CommandSwitchLanguage = "cellsql.switchLanguage"
	// CommandCycleLanguage takes [uri].
	CommandCycleLanguage = "cellsql.cycleLanguage"
)

var languageTitles = map[language.Type]string{
	language.Python:   "Python",
	language.Markdown: "Markdown",
	language.SQL:      "SQL",
}

// handleCodeAction handles the textDocument/codeAction request.
func (s *Server) handleCodeAction(msg *JSONRPCMessage) error {
	var params CodeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	actions := s.getCodeActions(params)
	s.sendResponse(msg.ID, actions, nil)
	return nil
}

// getCodeActions offers a switch to every other language. Languages that
// understand the cell convert it; the rest keep the code as is.
func (s *Server) getCodeActions(params CodeActionParams) []CodeAction {
	actions := []CodeAction{}
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil || doc.Session == nil {
		return actions
	}

	current := doc.Session.Language()
	host := doc.Session.HostCode()

	for _, adapter := range s.ws.Adapters.List() {
		lang := adapter.Type()
		if lang == current {
			continue
		}
		title := languageTitles[lang]
		if adapter.IsSupported(host) {
			actions = append(actions, CodeAction{
				Title:       "Convert to " + title,
				Kind:        CodeActionKindRefactor,
				IsPreferred: lang != language.Python,
				Command: &Command{
					Title:     "Convert to " + title,
					Command:   CommandSwitchLanguage,
					Arguments: []any{params.TextDocument.URI, string(lang), false},
				},
			})
			continue
		}
		actions = append(actions, CodeAction{
			Title: "Switch to " + title + " (keep code as is)",
			Kind:  CodeActionKindRefactor,
			Command: &Command{
				Title:     "Switch to " + title,
				Command:   CommandSwitchLanguage,
				Arguments: []any{params.TextDocument.URI, string(lang), true},
			},
		})
	}
	return actions
}

// handleExecuteCommand runs the commands referenced by code actions.
func (s *Server) handleExecuteCommand(msg *JSONRPCMessage) error {
	var params ExecuteCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	var (
		uri  string
		lang string
		keep bool
	)
	args := []any{&uri, &lang, &keep}
	for i, raw := range params.Arguments {
		if i >= len(args) {
			break
		}
		if err := json.Unmarshal(raw, args[i]); err != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
			return err
		}
	}

	var (
		result *CellState
		rpcErr *JSONRPCError
	)
	switch params.Command {
	case CommandSwitchLanguage:
		result, rpcErr = s.switchLanguage(uri, lang, keep)
	case CommandCycleLanguage:
		result, rpcErr = s.cycleLanguage(uri)
	default:
		rpcErr = &JSONRPCError{Code: codeInvalidParams, Message: "unknown command: " + params.Command}
	}
	s.respond(msg, result, rpcErr)
	return nil
}

// --- Cell requests ---

func (s *Server) handleSwitchLanguage(msg *JSONRPCMessage) error {
	var params SwitchLanguageParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}
	result, rpcErr := s.switchLanguage(params.TextDocument.URI, params.Language, params.KeepCodeAsIs)
	s.respond(msg, result, rpcErr)
	return nil
}

func (s *Server) handleCycleLanguage(msg *JSONRPCMessage) error {
	var params CellParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}
	result, rpcErr := s.cycleLanguage(params.TextDocument.URI)
	s.respond(msg, result, rpcErr)
	return nil
}

func (s *Server) handleSetEngine(msg *JSONRPCMessage) error {
	var params SetEngineParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	doc, rpcErr := s.document(params.TextDocument.URI)
	if rpcErr != nil {
		s.respond(msg, nil, rpcErr)
		return nil
	}
	meta, ok := sqlMetadata(doc)
	if !ok {
		s.respond(msg, nil, &JSONRPCError{Code: codeInvalidParams, Message: "cell is not in the SQL view"})
		return nil
	}

	meta = meta.Clone()
	meta.Engine = params.Engine
	if err := doc.Session.SetMetadata(meta); err != nil {
		s.respond(msg, nil, &JSONRPCError{Code: codeInternalError, Message: err.Error()})
		return nil
	}
	s.ws.Engines.SetLatest(params.Engine)

	s.respond(msg, s.cellState(doc, true), nil)
	return nil
}

func (s *Server) handleHostCode(msg *JSONRPCMessage) error {
	var params CellParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}
	doc, rpcErr := s.document(params.TextDocument.URI)
	if rpcErr != nil {
		s.respond(msg, nil, rpcErr)
		return nil
	}
	s.respond(msg, s.cellState(doc, false), nil)
	return nil
}

func (s *Server) handleSaveCell(msg *JSONRPCMessage) error {
	var params CellParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}
	doc, rpcErr := s.document(params.TextDocument.URI)
	if rpcErr != nil {
		s.respond(msg, nil, rpcErr)
		return nil
	}

	name := params.Name
	if name == "" {
		name = cellName(doc.URI)
	}
	cell, err := s.ws.SaveCell(context.Background(), name, doc.Session)
	if err != nil {
		s.respond(msg, nil, &JSONRPCError{Code: codeInternalError, Message: err.Error()})
		return nil
	}
	s.logger.Info("Saved cell", "name", cell.Name, "id", cell.ID, "language", cell.Language)
	s.respond(msg, cell, nil)
	return nil
}

func (s *Server) switchLanguage(uri, lang string, keep bool) (*CellState, *JSONRPCError) {
	doc, rpcErr := s.document(uri)
	if rpcErr != nil {
		return nil, rpcErr
	}
	t, err := language.ParseType(lang)
	if err != nil {
		return nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	changed, err := doc.Session.SwitchLanguage(t, keep)
	if err != nil {
		return nil, &JSONRPCError{Code: codeInternalError, Message: err.Error()}
	}
	if changed {
		s.publishDiagnostics(uri)
	}
	return s.cellState(doc, changed), nil
}

func (s *Server) cycleLanguage(uri string) (*CellState, *JSONRPCError) {
	doc, rpcErr := s.document(uri)
	if rpcErr != nil {
		return nil, rpcErr
	}
	_, changed := doc.Session.Cycle()
	if changed {
		s.publishDiagnostics(uri)
	}
	return s.cellState(doc, changed), nil
}

func (s *Server) document(uri string) (*Document, *JSONRPCError) {
	doc := s.documents.Get(uri)
	if doc == nil || doc.Session == nil {
		return nil, &JSONRPCError{Code: codeInvalidParams, Message: "document not open: " + uri}
	}
	return doc, nil
}

func (s *Server) cellState(doc *Document, changed bool) *CellState {
	meta, err := language.MarshalMetadata(doc.Session.Metadata())
	if err != nil {
		s.logger.Warn("Failed to encode metadata", "uri", doc.URI, "error", err)
	}
	st := &CellState{
		URI:      doc.URI,
		Language: string(doc.Session.Language()),
		Changed:  changed,
		Text:     doc.Buffer.Doc(),
		HostCode: doc.Session.HostCode(),
		Metadata: meta,
	}
	if d := doc.Session.Dialect(); d != nil {
		st.Dialect = d.Name
	}
	return st
}

func (s *Server) respond(msg *JSONRPCMessage, result any, rpcErr *JSONRPCError) {
	if msg.ID == nil {
		return
	}
	if rpcErr != nil {
		s.sendResponse(msg.ID, nil, rpcErr)
		return
	}
	s.sendResponse(msg.ID, result, nil)
}

// cellName derives a cell name from a document URI: the file name
// without its extension.
func cellName(uri string) string {
	base := filepath.Base(URIToPath(uri))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

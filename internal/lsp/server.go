package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/cellsql/internal/config"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/editor"
	"github.com/leapstack-labs/cellsql/pkg/syntax"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// Options configures a Server.
type Options struct {
	// Workspace is used as is when set. Otherwise the server builds one from
	// the cellsql.yaml found at the client's root on initialize.
	Workspace *workspace.Workspace
	Logger    *slog.Logger
}

// Server implements the Language Server Protocol for notebook cells.
type Server struct {
	// Document management
	documents *DocumentStore

	// Project context
	ws            *workspace.Workspace
	ownsWorkspace bool
	projectRoot   string
	initialized   bool
	warning       string
	stopWatch     context.CancelFunc

	// Parsers for syntax diagnostics
	sqlParser    syntax.Parser
	pythonParser syntax.Parser

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
	nextID  atomic.Int64

	// Logging
	logger *slog.Logger

	// Shutdown state
	shutdown   bool
	shutdownMu sync.RWMutex
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		documents:    NewDocumentStore(),
		ws:           opts.Workspace,
		sqlParser:    syntax.NewSQL(),
		pythonParser: syntax.NewPython(),
		reader:       bufio.NewReader(reader),
		writer:       writer,
		logger:       logger,
	}
}

// Run starts the server's main loop, processing JSON-RPC messages until
// the client disconnects or sends exit.
func (s *Server) Run() error {
	s.logger.Info("cellsql LSP server starting")
	defer s.release()

	for {
		s.shutdownMu.RLock()
		if s.shutdown {
			s.shutdownMu.RUnlock()
			return nil
		}
		s.shutdownMu.RUnlock()

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("Client disconnected")
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				s.sendResponse(nil, nil, &JSONRPCError{Code: codeParseError, Message: err.Error()})
				continue
			}
			s.logger.Error("Error reading message", "error", err)
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			continue
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("Error handling message", "method", msg.Method, "error", err)
		}
	}
}

// release stops the catalog watcher and closes a workspace the server built.
func (s *Server) release() {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	if s.ownsWorkspace && s.ws != nil {
		_ = s.ws.Close()
		s.ws = nil
	}
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if strings.HasPrefix(line, "Content-Length: ") {
			lengthStr := strings.TrimPrefix(line, "Content-Length: ")
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// sendRequest sends a server-to-client request. Responses are not awaited.
func (s *Server) sendRequest(method string, params any) {
	raw := json.RawMessage(strconv.FormatInt(s.nextID.Add(1), 10))
	paramsBytes, _ := json.Marshal(params)
	s.writeMessage(&JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      &raw,
		Method:  method,
		Params:  paramsBytes,
	})
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	if msg.Method == "" {
		// Response to a server request, e.g. workspace/applyEdit.
		if msg.Error != nil {
			s.logger.Warn("Client rejected request", "code", msg.Error.Code, "message", msg.Error.Message)
		}
		return nil
	}
	s.logger.Debug("Received", "method", msg.Method)

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	}

	if s.ws == nil {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32002, Message: "server not initialized"})
		}
		return nil
	}

	switch msg.Method {
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "cellsql/switchLanguage":
		return s.handleSwitchLanguage(msg)
	case "cellsql/cycleLanguage":
		return s.handleCycleLanguage(msg)
	case "cellsql/setEngine":
		return s.handleSetEngine(msg)
	case "cellsql/hostCode":
		return s.handleHostCode(msg)
	case "cellsql/saveCell":
		return s.handleSaveCell(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.projectRoot = URIToPath(params.RootURI)
	s.logger.Info("Project root", "path", s.projectRoot)

	if s.ws == nil {
		s.openWorkspace()
	}

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save: &SaveOptions{
					IncludeText: false,
				},
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{".", " ", "{"},
			},
			HoverProvider: true,
			CodeActionProvider: &CodeActionOptions{
				CodeActionKinds: []CodeActionKind{CodeActionKindRefactor},
			},
			ExecuteCommandProvider: &ExecuteCommandOptions{
				Commands: []string{CommandSwitchLanguage, CommandCycleLanguage},
			},
		},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

// openWorkspace builds the workspace from the project config. Failures
// fall back to an in-memory workspace so editing still works.
func (s *Server) openWorkspace() {
	ctx := context.Background()
	s.ownsWorkspace = true

	var root string
	if s.projectRoot != "" {
		root = config.FindProjectRoot(s.projectRoot)
	}
	if root != "" {
		ws, err := openProject(ctx, root, s.logger)
		if err == nil {
			s.ws = ws
			s.projectRoot = root
			s.startWatch()
			return
		}
		s.warning = fmt.Sprintf("Failed to load cellsql.yaml: %v. Using an empty catalog.", err)
		s.logger.Warn("Failed to open project workspace", "root", root, "error", err)
	}

	ws, err := workspace.New(ctx, workspace.Config{Logger: s.logger})
	if err != nil {
		// The in-memory store cannot fail short of a broken driver.
		s.logger.Error("Failed to open in-memory workspace", "error", err)
		return
	}
	s.ws = ws
}

func openProject(ctx context.Context, root string, logger *slog.Logger) (*workspace.Workspace, error) {
	cfg, err := config.LoadFromDir(root)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &config.ProjectConfig{}
		cfg.ApplyDefaults()
	}
	return workspace.New(ctx, cfg.WorkspaceConfig(root, logger))
}

func (s *Server) startWatch() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	go func() {
		if err := s.ws.Watch(ctx); err != nil {
			s.logger.Debug("Catalog watcher stopped", "error", err)
		}
	}()
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	s.initialized = true
	s.logger.Info("Server initialized")

	if s.warning != "" {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeWarning,
			Message: s.warning,
		})
	}
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("Server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()
	s.logger.Info("Server exit")
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	doc := s.documents.Open(uri, params.TextDocument.Text, params.TextDocument.Version)
	doc.Buffer = editor.NewBuffer(params.TextDocument.Text)
	doc.Buffer.OnDispatch(s.syncView(uri))
	doc.Session = s.ws.NewSession(doc.Buffer)

	lang := doc.Session.Detect()
	s.logger.Info("Opened", "uri", uri, "language", lang)

	s.publishDiagnostics(uri)
	return nil
}

// syncView mirrors view replacements made by a language switch into the
// document store and the client.
func (s *Server) syncView(uri string) func(editor.Transaction) {
	return func(tr editor.Transaction) {
		if !tr.Formatting || tr.Text == nil {
			return
		}
		doc := s.documents.Get(uri)
		if doc == nil || doc.Content == *tr.Text {
			return
		}
		edit := TextEdit{Range: doc.fullRange(), NewText: *tr.Text}
		s.documents.Update(uri, *tr.Text, -1)
		s.sendRequest("workspace/applyEdit", &ApplyWorkspaceEditParams{
			Label: "Switch cell language",
			Edit:  WorkspaceEdit{Changes: map[string][]TextEdit{uri: {edit}}},
		})
	}
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.logger.Info("Closed", "uri", params.TextDocument.URI)

	// Clear diagnostics
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []Diagnostic{},
	})

	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	doc := s.documents.Get(uri)
	if doc == nil {
		return fmt.Errorf("document not open: %s", uri)
	}

	// We use full sync, so take the last change
	if len(params.ContentChanges) > 0 {
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		s.documents.Update(uri, text, params.TextDocument.Version)
		if doc.Buffer.Doc() != text {
			doc.Buffer.SetText(text)
		}
	}

	s.publishDiagnostics(uri)
	return nil
}

func (s *Server) handleDidSave(msg *JSONRPCMessage) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.logger.Debug("Saved", "uri", params.TextDocument.URI)
	s.publishDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	items := s.getCompletions(params)
	s.sendResponse(msg.ID, &CompletionList{Items: items}, nil)
	return nil
}

func (s *Server) handleHover(msg *JSONRPCMessage) error {
	var params HoverParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	hover := s.getHover(params)
	s.sendResponse(msg.ID, hover, nil)
	return nil
}

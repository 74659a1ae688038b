package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/testutil"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

const cellURI = "file:///nb/orders.py"

func testWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ctx := context.Background()
	ws, err := workspace.New(ctx, workspace.Config{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	_, err = ws.Apply(ctx, "test", &catalog.Snapshot{
		Connections: []catalog.Connection{{
			Name:            "pg",
			Dialect:         "postgresql",
			DefaultDatabase: "shop",
			DefaultSchema:   "public",
			Databases: []catalog.Database{{
				Name: "shop",
				Schemas: []catalog.Schema{{
					Name: "public",
					Tables: []catalog.Table{{
						Name:    "orders",
						Columns: []catalog.Column{{Name: "id"}, {Name: "total"}},
					}},
				}},
			}},
		}},
	})
	require.NoError(t, err)
	return ws
}

// client drives a server over in-memory pipes. Requests are queued with
// request/notify and the server runs once over all of them.
type client struct {
	t      *testing.T
	in     bytes.Buffer
	nextID int
}

func (c *client) write(msg map[string]any) {
	msg["jsonrpc"] = "2.0"
	body, err := json.Marshal(msg)
	require.NoError(c.t, err)
	fmt.Fprintf(&c.in, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

func (c *client) request(method string, params any) int {
	c.nextID++
	c.write(map[string]any{"id": c.nextID, "method": method, "params": params})
	return c.nextID
}

func (c *client) notify(method string, params any) {
	c.write(map[string]any{"method": method, "params": params})
}

// run feeds the queued messages to a server and returns its output.
func (c *client) run(ws *workspace.Workspace) []JSONRPCMessage {
	var out bytes.Buffer
	srv := NewServer(&c.in, &out, Options{Workspace: ws, Logger: testutil.NewTestLogger(c.t)})
	require.NoError(c.t, srv.Run())
	return readAll(c.t, &out)
}

func readAll(t *testing.T, r io.Reader) []JSONRPCMessage {
	t.Helper()
	br := bufio.NewReader(r)
	var msgs []JSONRPCMessage
	for {
		line, err := br.ReadString('\n')
		if err == io.EOF {
			return msgs
		}
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(line, "Content-Length: "), "header %q", line)
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length: ")))
		require.NoError(t, err)
		_, err = br.ReadString('\n') // blank separator
		require.NoError(t, err)

		body := make([]byte, n)
		_, err = io.ReadFull(br, body)
		require.NoError(t, err)

		var msg JSONRPCMessage
		require.NoError(t, json.Unmarshal(body, &msg))
		msgs = append(msgs, msg)
	}
}

func response(t *testing.T, msgs []JSONRPCMessage, id int, v any) {
	t.Helper()
	want := strconv.Itoa(id)
	for _, m := range msgs {
		if m.Method == "" && m.ID != nil && string(*m.ID) == want {
			require.Nil(t, m.Error, "response %d failed", id)
			require.NoError(t, json.Unmarshal(m.Result, v))
			return
		}
	}
	t.Fatalf("no response for request %d", id)
}

func responseError(t *testing.T, msgs []JSONRPCMessage, id int) *JSONRPCError {
	t.Helper()
	want := strconv.Itoa(id)
	for _, m := range msgs {
		if m.Method == "" && m.ID != nil && string(*m.ID) == want {
			return m.Error
		}
	}
	t.Fatalf("no response for request %d", id)
	return nil
}

func byMethod(msgs []JSONRPCMessage, method string) []JSONRPCMessage {
	var out []JSONRPCMessage
	for _, m := range msgs {
		if m.Method == method {
			out = append(out, m)
		}
	}
	return out
}

func openCell(c *client, text string) {
	c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: cellURI, LanguageID: "python", Version: 1, Text: text},
	})
}

func docID(uri string) TextDocumentIdentifier {
	return TextDocumentIdentifier{URI: uri}
}

func TestServer_Initialize(t *testing.T) {
	c := &client{t: t}
	id := c.request("initialize", InitializeParams{RootURI: "file:///nb"})
	c.notify("initialized", struct{}{})
	shutdown := c.request("shutdown", nil)

	msgs := c.run(testWorkspace(t))

	var result InitializeResult
	response(t, msgs, id, &result)
	caps := result.Capabilities
	require.NotNil(t, caps.TextDocumentSync)
	assert.Equal(t, TextDocumentSyncKindFull, caps.TextDocumentSync.Change)
	assert.True(t, caps.HoverProvider)
	require.NotNil(t, caps.CompletionProvider)
	assert.Contains(t, caps.CompletionProvider.TriggerCharacters, ".")
	require.NotNil(t, caps.ExecuteCommandProvider)
	assert.ElementsMatch(t, []string{CommandSwitchLanguage, CommandCycleLanguage}, caps.ExecuteCommandProvider.Commands)

	assert.Nil(t, responseError(t, msgs, shutdown))
}

func TestServer_OpenDetectsQueryCell(t *testing.T) {
	c := &client{t: t}
	openCell(c, `_df = mo.sql(f"""SELECT * FROM orders""", engine=pg)`)
	id := c.request("cellsql/hostCode", CellParams{TextDocument: docID(cellURI)})

	ws := testWorkspace(t)
	msgs := c.run(ws)

	edits := byMethod(msgs, "workspace/applyEdit")
	require.Len(t, edits, 1)
	var params ApplyWorkspaceEditParams
	require.NoError(t, json.Unmarshal(edits[0].Params, &params))
	changes := params.Edit.Changes[cellURI]
	require.Len(t, changes, 1)
	assert.Equal(t, "SELECT * FROM orders", changes[0].NewText)
	assert.Equal(t, Position{Line: 0, Character: 52}, changes[0].Range.End)

	var state CellState
	response(t, msgs, id, &state)
	assert.Equal(t, "sql", state.Language)
	assert.Equal(t, "SELECT * FROM orders", state.Text)
	assert.Equal(t, "postgresql", state.Dialect)
	assert.Contains(t, state.HostCode, "engine=pg")

	meta, err := language.UnmarshalMetadata(language.SQL, state.Metadata)
	require.NoError(t, err)
	assert.Equal(t, "pg", meta.(language.SQLMetadata).Engine)
	assert.Equal(t, "pg", ws.Engines.Latest())
}

func TestServer_OpenPlainPythonKeepsText(t *testing.T) {
	c := &client{t: t}
	openCell(c, "x = 1\n")
	msgs := c.run(testWorkspace(t))

	assert.Empty(t, byMethod(msgs, "workspace/applyEdit"))
	diags := byMethod(msgs, "textDocument/publishDiagnostics")
	require.Len(t, diags, 1)
	var params PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(diags[0].Params, &params))
	assert.Empty(t, params.Diagnostics)
}

func TestServer_Completion(t *testing.T) {
	c := &client{t: t}
	openCell(c, `_df = mo.sql(f"""SELECT * FROM ord""", engine=pg)`)
	id := c.request("textDocument/completion", CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: docID(cellURI),
			Position:     Position{Line: 0, Character: 17},
		},
	})

	msgs := c.run(testWorkspace(t))

	var list CompletionList
	response(t, msgs, id, &list)
	require.NotEmpty(t, list.Items)

	var orders *CompletionItem
	for i := range list.Items {
		if list.Items[i].Label == "orders" {
			orders = &list.Items[i]
		}
	}
	require.NotNil(t, orders, "items: %+v", list.Items)
	assert.Equal(t, CompletionItemKindClass, orders.Kind)
	require.NotNil(t, orders.TextEdit)
	assert.Equal(t, "orders", orders.TextEdit.NewText)
	assert.Equal(t, Position{Line: 0, Character: 14}, orders.TextEdit.Range.Start)
	assert.Equal(t, Position{Line: 0, Character: 17}, orders.TextEdit.Range.End)
}

func TestServer_CompletionOutsideSQL(t *testing.T) {
	c := &client{t: t}
	openCell(c, "x = 1")
	id := c.request("textDocument/completion", CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{TextDocument: docID(cellURI)},
	})

	var list CompletionList
	response(t, c.run(testWorkspace(t)), id, &list)
	assert.Empty(t, list.Items)
}

func TestServer_HoverTable(t *testing.T) {
	c := &client{t: t}
	openCell(c, `_df = mo.sql(f"""SELECT * FROM orders""", engine=pg)`)
	id := c.request("textDocument/hover", HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: docID(cellURI),
			Position:     Position{Line: 0, Character: 16},
		},
	})

	var hover Hover
	response(t, c.run(testWorkspace(t)), id, &hover)
	assert.Equal(t, MarkupKindMarkdown, hover.Contents.Kind)
	assert.Contains(t, hover.Contents.Value, "**public.orders** table")
	assert.Contains(t, hover.Contents.Value, "- `total`")
}

func TestServer_SwitchAndCycle(t *testing.T) {
	c := &client{t: t}
	openCell(c, "x = 1")
	toSQL := c.request("cellsql/switchLanguage", SwitchLanguageParams{
		TextDocument: docID(cellURI),
		Language:     "sql",
		KeepCodeAsIs: true,
	})
	again := c.request("cellsql/switchLanguage", SwitchLanguageParams{
		TextDocument: docID(cellURI),
		Language:     "sql",
	})
	bad := c.request("cellsql/switchLanguage", SwitchLanguageParams{
		TextDocument: docID(cellURI),
		Language:     "rust",
	})
	missing := c.request("cellsql/cycleLanguage", CellParams{TextDocument: docID("file:///nb/none.py")})

	msgs := c.run(testWorkspace(t))

	var state CellState
	response(t, msgs, toSQL, &state)
	assert.True(t, state.Changed)
	assert.Equal(t, "sql", state.Language)
	assert.Equal(t, "x = 1", state.Text, "code kept as is")

	response(t, msgs, again, &state)
	assert.False(t, state.Changed)

	rpcErr := responseError(t, msgs, bad)
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeInvalidParams, rpcErr.Code)

	rpcErr = responseError(t, msgs, missing)
	require.NotNil(t, rpcErr)
	assert.Contains(t, rpcErr.Message, "document not open")
}

func TestServer_CodeActionsAndExecuteCommand(t *testing.T) {
	c := &client{t: t}
	openCell(c, `_df = mo.sql(f"""SELECT 1""")`)
	actionsID := c.request("textDocument/codeAction", CodeActionParams{TextDocument: docID(cellURI)})
	execID := c.request("workspace/executeCommand", map[string]any{
		"command":   CommandSwitchLanguage,
		"arguments": []any{cellURI, "python", false},
	})

	msgs := c.run(testWorkspace(t))

	var actions []CodeAction
	response(t, msgs, actionsID, &actions)
	titles := make([]string, 0, len(actions))
	for _, a := range actions {
		titles = append(titles, a.Title)
		require.NotNil(t, a.Command)
		assert.Equal(t, CommandSwitchLanguage, a.Command.Command)
	}
	assert.Contains(t, titles, "Convert to Python")
	assert.Contains(t, titles, "Switch to Markdown (keep code as is)")

	var state CellState
	response(t, msgs, execID, &state)
	assert.True(t, state.Changed)
	assert.Equal(t, "python", state.Language)
	assert.Contains(t, state.Text, "mo.sql(")
	assert.Equal(t, state.HostCode, state.Text)

	// Open, then the switch back to Python.
	assert.Len(t, byMethod(msgs, "workspace/applyEdit"), 2)
}

func TestServer_SetEngine(t *testing.T) {
	c := &client{t: t}
	openCell(c, `_df = mo.sql(f"""SELECT 1""")`)
	id := c.request("cellsql/setEngine", SetEngineParams{TextDocument: docID(cellURI), Engine: "pg"})

	ws := testWorkspace(t)
	msgs := c.run(ws)

	var state CellState
	response(t, msgs, id, &state)
	assert.Contains(t, state.HostCode, "engine=pg")
	assert.Equal(t, "postgresql", state.Dialect)
	assert.Equal(t, "pg", ws.Engines.Latest())
}

func TestServer_SaveCell(t *testing.T) {
	c := &client{t: t}
	openCell(c, `_df = mo.sql(f"""SELECT 1""")`)
	id := c.request("cellsql/saveCell", CellParams{TextDocument: docID(cellURI)})

	ws := testWorkspace(t)
	msgs := c.run(ws)

	var saved struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Language string `json:"language"`
	}
	response(t, msgs, id, &saved)
	assert.Equal(t, "orders", saved.Name)
	assert.Equal(t, "sql", saved.Language)

	cell, err := ws.Store.GetCellByName(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, cell.ID)
	assert.Equal(t, language.SQL, cell.Language)
}

func TestServer_DidChangeSyncsBuffer(t *testing.T) {
	c := &client{t: t}
	openCell(c, `_df = mo.sql(f"""SELECT 1""")`)
	c.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: docID(cellURI), Version: 3},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "SELECT 2"}},
	})
	id := c.request("cellsql/hostCode", CellParams{TextDocument: docID(cellURI)})

	var state CellState
	response(t, c.run(testWorkspace(t)), id, &state)
	assert.Equal(t, "SELECT 2", state.Text)
	assert.Contains(t, state.HostCode, "SELECT 2")
}

func TestServer_UnknownMethodAndClientResponse(t *testing.T) {
	c := &client{t: t}
	// A response to one of our requests must not be answered.
	c.write(map[string]any{"id": 1, "result": map[string]any{"applied": true}})
	id := c.request("textDocument/definition", struct{}{})

	msgs := c.run(testWorkspace(t))
	require.Len(t, msgs, 1)
	rpcErr := responseError(t, msgs, id)
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeMethodNotFound, rpcErr.Code)
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/editor"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// EditOptions holds options for the edit command.
type EditOptions struct {
	Code string
	Cell string
}

// NewEditCommand creates the edit command.
func NewEditCommand() *cobra.Command {
	opts := &EditOptions{}

	cmd := &cobra.Command{
		Use:   "edit [file]",
		Short: "Edit a cell interactively",
		Long: `Open a cell in an interactive editor session.

Lines typed at the prompt are appended to the cell in its current view.
Dot commands switch the view, change the query engine and save the cell.
Tab completes dot commands, and table, column and keyword names in the SQL
view. Without a file or --cell the session starts with an empty cell.`,
		Example: `  # Edit a cell file
  cellsql edit cell.py

  # Edit a stored cell
  cellsql edit --cell orders`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, args, opts)
		},
	}

	addCodeFlag(cmd, &opts.Code)
	cmd.Flags().StringVar(&opts.Cell, "cell", "", "Stored cell to open (ID or name)")

	return cmd
}

func runEdit(cmd *cobra.Command, args []string, opts *EditOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ed := &cellEditor{
		ws:  cmdCtx.Workspace,
		r:   cmdCtx.Renderer,
		cmd: cmd,
	}

	switch {
	case opts.Cell != "":
		if err := ed.open(opts.Cell); err != nil {
			return err
		}
	case len(args) > 0 || cmd.Flags().Changed("code"):
		host, err := readSource(cmd, args, opts.Code)
		if err != nil {
			return err
		}
		ed.session, ed.buf = ed.ws.OpenCell(host)
	default:
		ed.session, ed.buf = ed.ws.OpenCell("")
	}

	return ed.run(historyFile(cmdCtx.Cfg.StatePath))
}

// historyFile keeps the edit history next to the state database.
func historyFile(statePath string) string {
	if statePath == "" || statePath == ":memory:" {
		return ""
	}
	return filepath.Join(filepath.Dir(statePath), "edit_history")
}

// cellEditor is one interactive editing session over a single cell.
type cellEditor struct {
	ws      *workspace.Workspace
	r       *output.Renderer
	cmd     *cobra.Command
	session *editor.Session
	buf     *editor.Buffer
	name    string
	keep    bool
}

func (e *cellEditor) prompt() string {
	return fmt.Sprintf("%s> ", e.session.Language())
}

func (e *cellEditor) run(history string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          e.prompt(),
		HistoryFile:     history,
		AutoComplete:    &cellCompleter{ed: e},
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(e.cmd.InOrStdin()),
		Stdout:          e.cmd.OutOrStdout(),
		Stderr:          e.cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize editor: %w", err)
	}
	defer func() { _ = rl.Close() }()

	e.r.Printf("cellsql cell editor (%s view)\n", e.session.Language())
	e.r.Println("Type .help for commands, .quit to exit")
	e.r.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(line), ".") {
			quit, err := e.dot(strings.TrimSpace(line))
			if err != nil {
				e.r.Error(err.Error())
			}
			if quit {
				return nil
			}
			rl.SetPrompt(e.prompt())
			continue
		}

		e.appendLine(line)
	}
}

// appendLine adds line at the end of the view text.
func (e *cellEditor) appendLine(line string) {
	doc := e.buf.Doc()
	e.buf.SetCursor(len(doc))
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		line = "\n" + line
	}
	e.buf.Insert(line)
}

// dot runs a dot command. It reports true when the session should end.
func (e *cellEditor) dot(line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch command {
	case ".quit", ".exit":
		return true, nil

	case ".help":
		printEditHelp(e.r)

	case ".show":
		return false, renderCell(e.r, cellOutput(e.ws, e.session, e.buf, false), false)

	case ".host":
		e.r.Code(string(language.Python), e.session.HostCode())

	case ".lang":
		out := cellOutput(e.ws, e.session, e.buf, false)
		e.r.KeyValue("Language", output.Title(string(out.Language)))
		e.r.KeyValue("Supported", supportedList(out.Supported))
		e.r.KeyValue("Keep code as is", yesNo(e.keep))

	case ".switch":
		if arg == "" {
			return false, fmt.Errorf("usage: .switch <python|markdown|sql>")
		}
		target, err := language.ParseType(arg)
		if err != nil {
			return false, err
		}
		changed, err := e.session.SwitchLanguage(target, e.keep)
		if err != nil {
			return false, err
		}
		if !changed {
			e.r.Muted("already in " + string(target))
		}

	case ".keep":
		switch strings.ToLower(arg) {
		case "", "on", "true":
			e.keep = true
		case "off", "false":
			e.keep = false
		default:
			return false, fmt.Errorf("usage: .keep [on|off]")
		}
		e.r.Muted("keep code as is: " + yesNo(e.keep))

	case ".cycle":
		if lang, changed := e.session.Cycle(); !changed {
			e.r.Muted("no other view supports this cell, staying in " + string(lang))
		}

	case ".engine":
		return false, e.setEngine(arg)

	case ".df":
		return false, e.setDataframe(arg)

	case ".save":
		return false, e.save(arg)

	case ".open":
		if arg == "" {
			return false, fmt.Errorf("usage: .open <id|name>")
		}
		return false, e.open(arg)

	case ".undo":
		if !e.buf.Undo() {
			e.r.Muted("nothing to undo")
		}

	case ".clear":
		e.buf.SetText("")

	default:
		return false, fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}
	return false, nil
}

func (e *cellEditor) sqlMetadata(command string) (language.SQLMetadata, error) {
	meta, ok := e.session.Metadata().(language.SQLMetadata)
	if !ok {
		return language.SQLMetadata{}, fmt.Errorf("%s needs the sql view (.switch sql)", command)
	}
	return meta.Clone(), nil
}

func (e *cellEditor) setEngine(name string) error {
	meta, err := e.sqlMetadata(".engine")
	if err != nil {
		return err
	}
	if name == "" {
		e.r.KeyValue("Engine", meta.Engine)
		return nil
	}
	if _, ok := e.ws.Catalog.Connection(name); !ok {
		e.r.Warning(fmt.Sprintf("engine %q is not in the catalog", name))
	}
	meta.Engine = name
	if err := e.session.SetMetadata(meta); err != nil {
		return err
	}
	e.ws.Engines.SetLatest(name)
	return nil
}

func (e *cellEditor) setDataframe(name string) error {
	meta, err := e.sqlMetadata(".df")
	if err != nil {
		return err
	}
	if name == "" {
		e.r.KeyValue("Dataframe", meta.DataframeName)
		return nil
	}
	meta.DataframeName = name
	return e.session.SetMetadata(meta)
}

func (e *cellEditor) save(name string) error {
	if name == "" {
		name = e.name
	}
	if name == "" {
		return fmt.Errorf("usage: .save <name>")
	}
	cell, err := e.ws.SaveCell(e.cmd.Context(), name, e.session)
	if err != nil {
		return err
	}
	e.name = cell.Name
	e.r.Success(fmt.Sprintf("Saved cell %s as %s", cell.Name, cell.Language))
	return nil
}

func (e *cellEditor) open(ref string) error {
	cell, err := e.ws.FindCell(e.cmd.Context(), ref)
	if err != nil {
		return fmt.Errorf("cell %q: %w", ref, err)
	}
	session, buf, err := e.ws.RestoreCell(cell)
	if err != nil {
		return err
	}
	e.session, e.buf, e.name = session, buf, cell.Name
	return nil
}

var dotCommands = []string{
	".help", ".show", ".host", ".lang", ".switch", ".keep", ".cycle",
	".engine", ".df", ".save", ".open", ".undo", ".clear", ".quit", ".exit",
}

func printEditHelp(r *output.Renderer) {
	help := `
Commands:
  .help              Show this help message
  .show              Show the cell in its current view
  .host              Show the Python code of the cell
  .lang              Show the current view and the views that support the cell
  .switch <lang>     Switch to python, markdown or sql
  .keep [on|off]     Keep the text verbatim on .switch
  .cycle             Move to the next view that supports the cell
  .engine [name]     Show or set the query engine (sql view)
  .df [name]         Show or set the dataframe name (sql view)
  .save [name]       Store the cell
  .open <id|name>    Open a stored cell
  .undo              Undo the last edit
  .clear             Empty the cell
  .quit / .exit      Exit the editor

Tips:
  - Lines you type are appended to the cell
  - Tab completes tables, columns and keywords in the sql view
`
	r.Println(help)
}

// cellCompleter completes dot commands, and catalog names in the SQL view.
type cellCompleter struct {
	ed *cellEditor
}

// Do implements readline.AutoCompleter.
func (c *cellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	typed := string(line[:pos])

	if strings.HasPrefix(strings.TrimSpace(typed), ".") && !strings.Contains(strings.TrimSpace(typed), " ") {
		prefix := strings.TrimSpace(typed)
		return suffixes(dotCommands, prefix), len([]rune(prefix))
	}

	meta, ok := c.ed.session.Metadata().(language.SQLMetadata)
	if !ok {
		return nil, 0
	}

	doc := c.ed.buf.Doc()
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	text := doc + typed
	res := c.ed.ws.Complete(meta.Engine, text, len(text), true)
	if res == nil || res.From < len(doc) {
		return nil, 0
	}

	prefix := text[res.From:]
	labels := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		labels = append(labels, item.InsertText())
	}
	return suffixes(labels, prefix), len([]rune(prefix))
}

// suffixes returns the remainder of every candidate that extends prefix,
// compared case-insensitively.
func suffixes(candidates []string, prefix string) [][]rune {
	var out [][]rune
	lower := strings.ToLower(prefix)
	for _, c := range candidates {
		if len(c) < len(prefix) || !strings.HasPrefix(strings.ToLower(c), lower) {
			continue
		}
		out = append(out, []rune(c[len(prefix):]))
	}
	return out
}

package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/editor"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// Transform directions.
const (
	directionIn  = "in"
	directionOut = "out"
)

// CellOptions holds the options shared by the cell view commands.
type CellOptions struct {
	Code     string
	From     string
	ShowHost bool
}

func (o *CellOptions) addFlags(cmd *cobra.Command) {
	addCodeFlag(cmd, &o.Code)
	cmd.Flags().StringVar(&o.From, "from", "", "Language the cell is currently viewed in (default: detect)")
	cmd.Flags().BoolVar(&o.ShowHost, "show-host", false, "Also print the Python host code")
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &CellOptions{}
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect the view a cell opens in",
		Long: `Detect which language view a Python cell opens in and print the view text.

A cell whose whole body is an mo.md(...) call opens as Markdown, a cell that
assigns a single mo.sql(...) call opens as SQL, and anything else stays Python.`,
		Example: `  # Detect a cell stored in a file
  cellsql detect cell.py

  # Detect from stdin
  echo '_df = mo.sql(f"SELECT 1")' | cellsql detect

  # Detect inline code as JSON
  cellsql detect --code 'mo.md("# Title")' -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCellCommand(cmd, args, opts, func(session *editor.Session) (bool, error) {
				return false, nil
			})
		},
	}
	addCodeFlag(cmd, &opts.Code)
	cmd.Flags().BoolVar(&opts.ShowHost, "show-host", false, "Also print the Python host code")
	return cmd
}

// NewSwitchCommand creates the switch command.
func NewSwitchCommand() *cobra.Command {
	opts := &CellOptions{}
	var keepCodeAsIs bool

	cmd := &cobra.Command{
		Use:   "switch <language> [file]",
		Short: "Switch a cell to another language view",
		Long: `Switch a cell to another language view (python, markdown or sql).

The cell text is converted so that switching back yields the same Python
code. With --keep-code-as-is the text is kept verbatim and only the view
changes.`,
		Example: `  # Open a query cell as plain Python
  cellsql switch python cell.py

  # Turn Python text into a SQL view without converting it
  cellsql switch sql --keep-code-as-is --code 'SELECT 1'

  # Switch a SQL view back to Python and print the host code
  cellsql switch python --from sql --code 'SELECT 1' --show-host`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: languageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := language.ParseType(args[0])
			if err != nil {
				return err
			}
			return runCellCommand(cmd, args[1:], opts, func(session *editor.Session) (bool, error) {
				return session.SwitchLanguage(target, keepCodeAsIs)
			})
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&keepCodeAsIs, "keep-code-as-is", false, "Keep the text verbatim instead of converting it")
	return cmd
}

// NewCycleCommand creates the cycle command.
func NewCycleCommand() *cobra.Command {
	opts := &CellOptions{}
	cmd := &cobra.Command{
		Use:   "cycle [file]",
		Short: "Move a cell to the next view that supports it",
		Long: `Move a cell to the next language view, in the order python, markdown, sql,
skipping views that cannot represent the cell.`,
		Example: `  # Cycle a detected SQL cell
  cellsql cycle cell.py

  # Cycle from an explicit view
  cellsql cycle --from python --code '_df = mo.sql(f"SELECT 1")'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCellCommand(cmd, args, opts, func(session *editor.Session) (bool, error) {
				_, changed := session.Cycle()
				return changed, nil
			})
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// NewTransformCommand creates the transform command with its in and out
// subcommands.
func NewTransformCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Run one language adapter in one direction",
		Long: `Run a single language adapter without any editor state.

  in   converts Python host code to the view text and prints the metadata
  out  converts view text back to Python host code using the given metadata`,
	}
	cmd.AddCommand(newTransformDirectionCommand(directionIn), newTransformDirectionCommand(directionOut))
	return cmd
}

func newTransformDirectionCommand(direction string) *cobra.Command {
	var (
		code     string
		lang     string
		metadata string
	)

	cmd := &cobra.Command{
		Use:   direction + " [file]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Convert host code to view text",
		Example: `  # Extract the query of an mo.sql cell
  cellsql transform in --language sql cell.py -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(cmd, args, code)
			if err != nil {
				return err
			}
			return runTransform(cmd, direction, lang, text, metadata)
		},
	}
	if direction == directionOut {
		cmd.Short = "Convert view text to host code"
		cmd.Example = `  # Wrap a query in an mo.sql call bound to the pg engine
  cellsql transform out --language sql --metadata '{"engine":"pg","dataframeName":"orders"}' --code 'SELECT 1'`
		cmd.Flags().StringVar(&metadata, "metadata", "", "Adapter metadata as JSON (default: the adapter's defaults)")
	}
	addCodeFlag(cmd, &code)
	cmd.Flags().StringVarP(&lang, "language", "l", string(language.SQL), "Adapter language: python, markdown or sql")
	_ = cmd.RegisterFlagCompletionFunc("language", completeLanguages)
	return cmd
}

func runTransform(cmd *cobra.Command, direction, langName, text, metadata string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	lang, err := language.ParseType(langName)
	if err != nil {
		return err
	}
	adapter, err := cmdCtx.Workspace.Adapters.Get(lang)
	if err != nil {
		return err
	}

	out := output.TransformOutput{Language: lang, Direction: direction}
	switch direction {
	case directionIn:
		out.Text, out.Offset, out.Metadata = adapter.TransformIn(text)
	default:
		meta := adapter.DefaultMetadata()
		if metadata != "" {
			if meta, err = language.UnmarshalMetadata(lang, []byte(metadata)); err != nil {
				return fmt.Errorf("invalid --metadata: %w", err)
			}
		}
		out.Metadata = meta
		out.Text, out.Offset = adapter.TransformOut(text, meta)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Transform %s (%s)", direction, lang))
	r.KeyValue("Offset", fmt.Sprint(out.Offset))
	for _, kv := range metadataFields(out.Metadata) {
		r.KeyValue(kv[0], kv[1])
	}
	codeLang := string(lang)
	if direction == directionOut {
		codeLang = string(language.Python)
	}
	r.Code(codeLang, out.Text)
	return nil
}

// runCellCommand opens the cell, applies action and renders the result.
func runCellCommand(cmd *cobra.Command, args []string, opts *CellOptions, action func(*editor.Session) (bool, error)) error {
	host, err := readSource(cmd, args, opts.Code)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	session, buf, err := openCell(cmdCtx.Workspace, host, opts.From)
	if err != nil {
		return err
	}
	changed, err := action(session)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Debug("cell view", "language", session.Language(), "changed", changed)

	return renderCell(cmdCtx.Renderer, cellOutput(cmdCtx.Workspace, session, buf, changed), opts.ShowHost)
}

// openCell opens text in the view named by from, or detects the view when
// from is empty. In a named view text is that view's text, so it is first
// converted back to host code.
func openCell(ws *workspace.Workspace, text, from string) (*editor.Session, *editor.Buffer, error) {
	if from == "" {
		session, buf := ws.OpenCell(text)
		return session, buf, nil
	}
	lang, err := language.ParseType(from)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := ws.Adapters.Get(lang)
	if err != nil {
		return nil, nil, err
	}
	host, _ := adapter.TransformOut(text, adapter.DefaultMetadata())
	return ws.RestoreCell(&state.Cell{Language: lang, HostCode: host})
}

func cellOutput(ws *workspace.Workspace, session *editor.Session, buf *editor.Buffer, changed bool) output.CellOutput {
	host := session.HostCode()
	out := output.CellOutput{
		Language:  session.Language(),
		Changed:   changed,
		Text:      buf.Doc(),
		HostCode:  host,
		Metadata:  session.Metadata(),
		Supported: make(map[language.Type]bool, len(language.Types)),
	}
	if d := session.Dialect(); d != nil {
		out.Dialect = d.Name
	}
	for _, a := range ws.Adapters.List() {
		out.Supported[a.Type()] = a.IsSupported(host)
	}
	return out
}

func renderCell(r *output.Renderer, cell output.CellOutput, showHost bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(cell)
	}

	r.Header(1, "Cell")
	r.KeyValue("Language", output.Title(string(cell.Language)))
	if cell.Changed {
		r.KeyValue("Changed", "yes")
	}
	if cell.Dialect != "" {
		r.KeyValue("Dialect", cell.Dialect)
	}
	for _, kv := range metadataFields(cell.Metadata) {
		r.KeyValue(kv[0], kv[1])
	}
	r.KeyValue("Supported", supportedList(cell.Supported))
	r.Code(string(cell.Language), cell.Text)

	if showHost {
		r.Println()
		r.Header(2, "Host code")
		r.Code(string(language.Python), cell.HostCode)
	}
	return nil
}

// metadataFields lists the user-facing metadata of a view as key/value
// pairs in display order.
func metadataFields(meta language.Metadata) [][2]string {
	switch m := meta.(type) {
	case language.SQLMetadata:
		engine := m.Engine
		if engine == "" {
			engine = catalog.DefaultEngine + " (default)"
		}
		fields := [][2]string{
			{"Engine", engine},
			{"Dataframe", m.DataframeName},
			{"Show output", yesNo(m.ShowOutput)},
		}
		if len(m.CommentLines) > 0 {
			fields = append(fields, [2]string{"Comments", fmt.Sprint(len(m.CommentLines))})
		}
		return fields
	case language.MarkdownMetadata:
		prefix := m.QuotePrefix
		if prefix == "" {
			prefix = "(none)"
		}
		return [][2]string{{"Quote prefix", prefix}}
	default:
		return nil
	}
}

func supportedList(supported map[language.Type]bool) string {
	names := make([]string, 0, len(supported))
	for lang, ok := range supported {
		if ok {
			names = append(names, string(lang))
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func languageNames() []string {
	names := make([]string, len(language.Types))
	for i, t := range language.Types {
		names[i] = string(t)
	}
	return names
}

func completeLanguages(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return languageNames(), cobra.ShellCompDirectiveNoFileComp
}

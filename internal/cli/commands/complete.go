package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/completion"
)

// CompleteOptions holds options for the complete command.
type CompleteOptions struct {
	Code     string
	Engine   string
	Pos      int
	Explicit bool
	Limit    int
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	opts := &CompleteOptions{}

	cmd := &cobra.Command{
		Use:   "complete [file]",
		Short: "List completions for a query at a position",
		Long: `List completion candidates for the SQL text of a query cell.

Candidates come from the catalog tables and columns of the engine, host
variables inside {} blocks, and the keywords of the engine's dialect. The
position is a byte offset and defaults to the end of the text.`,
		Example: `  # Complete a table name for the pg engine
  cellsql complete --engine pg --code 'SELECT * FROM '

  # Complete columns after a table alias, as JSON
  cellsql complete --code 'SELECT o. FROM orders o' --pos 9 -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, args, opts)
		},
	}

	addCodeFlag(cmd, &opts.Code)
	cmd.Flags().StringVarP(&opts.Engine, "engine", "e", "", "Engine to complete against (default: latest selected engine)")
	cmd.Flags().IntVar(&opts.Pos, "pos", -1, "Cursor byte offset (default: end of text)")
	cmd.Flags().BoolVar(&opts.Explicit, "explicit", true, "Complete as if explicitly requested")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum items to show (0 = all)")
	_ = cmd.RegisterFlagCompletionFunc("engine", completeEngines)

	return cmd
}

func runComplete(cmd *cobra.Command, args []string, opts *CompleteOptions) error {
	text, err := readSource(cmd, args, opts.Code)
	if err != nil {
		return err
	}

	pos := opts.Pos
	if pos < 0 || pos > len(text) {
		pos = len(text)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := opts.Engine
	if engine == "" {
		engine = cmdCtx.Workspace.Engines.Latest()
	}
	if _, ok := cmdCtx.Workspace.Catalog.Connection(engine); !ok {
		cmdCtx.Renderer.Warning(fmt.Sprintf("engine %q is not in the catalog, completing keywords only", engine))
	}

	out := output.CompletionOutput{Engine: engine, Pos: pos, From: pos}
	if res := cmdCtx.Workspace.Complete(engine, text, pos, opts.Explicit); res != nil {
		out.From = res.From
		out.Items = res.Items
	}
	if opts.Limit > 0 && len(out.Items) > opts.Limit {
		out.Items = out.Items[:opts.Limit]
	}
	if out.Items == nil {
		out.Items = []completion.Item{}
	}

	return renderCompletion(cmdCtx.Renderer, text, out)
}

func renderCompletion(r *output.Renderer, text string, out output.CompletionOutput) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Completions")
	r.KeyValue("Engine", out.Engine)
	from := min(max(out.From, 0), out.Pos)
	r.KeyValue("Prefix", fmt.Sprintf("%q", text[from:out.Pos]))
	r.Println()

	rows := make([][]string, len(out.Items))
	for i, item := range out.Items {
		rows[i] = []string{item.Label, string(item.Kind), item.Detail}
	}
	r.Table([]string{"Label", "Kind", "Detail"}, rows)
	return nil
}

// completeEngines offers the catalog's connection names for --engine.
func completeEngines(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ws, err := workspace.New(ctx, getConfig().WorkspaceConfig(nil))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer func() { _ = ws.Close() }()

	var names []string
	for _, conn := range ws.Catalog.Connections() {
		names = append(names, conn.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

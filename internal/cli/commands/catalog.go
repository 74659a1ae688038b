package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// NewCatalogCommand creates the catalog command and its subcommands.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and update the data catalog",
		Long: `Inspect and update the data catalog that drives query completion.

The catalog is loaded from the catalog file at startup, falling back to the
last snapshot recorded in the state database. Every update is recorded as a
new snapshot.`,
	}

	cmd.AddCommand(
		newCatalogShowCommand(),
		newCatalogConnectionsCommand(),
		newCatalogDialectCommand(),
		newCatalogSchemaCommand(),
		newCatalogIntrospectCommand(),
		newCatalogReloadCommand(),
		newCatalogImportCommand(),
		newCatalogExportCommand(),
	)
	return cmd
}

func newCatalogShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current catalog snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			snap := cmdCtx.Workspace.Catalog.Snapshot()
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(snap)
			}

			data, err := yaml.Marshal(snap)
			if err != nil {
				return fmt.Errorf("failed to encode catalog: %w", err)
			}
			r.Header(1, "Catalog")
			if file := cmdCtx.Workspace.CatalogFile(); file != "" {
				r.KeyValue("File", file)
			}
			r.Code("yaml", string(data))
			return nil
		},
	}
}

func newCatalogConnectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "connections",
		Aliases: []string{"ls"},
		Short:   "List catalog connections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws := cmdCtx.Workspace
			latest := ws.Engines.Latest()
			var infos []output.ConnectionInfo
			for _, conn := range ws.Catalog.Connections() {
				infos = append(infos, output.ConnectionInfo{
					Name:          conn.Name,
					Label:         conn.Label(),
					Dialect:       conn.Dialect,
					Source:        conn.Source,
					Tables:        conn.TableCount(),
					DefaultSchema: conn.DefaultSchema,
					Cached:        ws.Completion.Cached(conn.Name),
					Latest:        conn.Name == latest,
				})
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				if infos == nil {
					infos = []output.ConnectionInfo{}
				}
				return r.JSON(infos)
			}

			r.Header(1, fmt.Sprintf("Connections (%d)", len(infos)))
			rows := make([][]string, len(infos))
			for i, info := range infos {
				name := info.Name
				if info.Latest {
					name += " *"
				}
				rows[i] = []string{name, info.Label, info.Dialect, fmt.Sprint(info.Tables), yesNo(info.Cached)}
			}
			r.Table([]string{"Name", "Label", "Dialect", "Tables", "Cached"}, rows)
			r.Muted("* latest selected engine")
			return nil
		},
	}
}

func newCatalogDialectCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "dialect <connection>",
		Short:             "Show the SQL dialect a connection resolves to",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeEngineArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			name := args[0]
			d := cmdCtx.Workspace.Completion.GetDialect(name)
			out := output.DialectOutput{
				Connection:    name,
				Name:          d.Name,
				DisplayName:   d.DisplayName,
				DefaultSchema: d.DefaultSchema,
				Quote:         d.Identifiers.Quote,
				Keywords:      len(d.Keywords()),
				Functions:     len(d.Functions()),
				DataTypes:     d.DataTypes(),
			}
			if _, ok := cmdCtx.Workspace.Catalog.Connection(name); !ok {
				cmdCtx.Renderer.Warning(fmt.Sprintf("connection %q is not in the catalog, showing the default dialect", name))
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(out)
			}
			r.Header(1, "Dialect: "+out.DisplayName)
			r.KeyValue("Connection", out.Connection)
			r.KeyValue("Name", out.Name)
			if out.DefaultSchema != "" {
				r.KeyValue("Default schema", out.DefaultSchema)
			}
			r.KeyValue("Quote", out.Quote)
			r.KeyValue("Keywords", fmt.Sprint(out.Keywords))
			r.KeyValue("Functions", fmt.Sprint(out.Functions))
			r.KeyValue("Data types", strings.Join(out.DataTypes, ", "))
			return nil
		},
	}
}

func newCatalogSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "schema <connection>",
		Short:             "Show the completion schema derived for a connection",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeEngineArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			derived, err := cmdCtx.Workspace.Completion.Derived(args[0])
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(derived)
			}
			r.Header(1, "Schema: "+args[0])
			if derived.DefaultSchema != "" {
				r.KeyValue("Default schema", derived.DefaultSchema)
			}
			r.Println()
			if len(derived.Schema.Names()) == 0 {
				r.Muted("(no tables)")
				return nil
			}
			printNamespace(r, derived.Schema, 0)
			return nil
		},
	}
}

// printNamespace writes ns as a nested list, tables with their columns.
func printNamespace(r *output.Renderer, ns *catalog.Namespace, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, name := range ns.Names() {
		child, _ := ns.Child(name)
		if child.IsLeaf() {
			r.Printf("%s- %s (%s)\n", indent, name, strings.Join(child.Columns, ", "))
			continue
		}
		r.Printf("%s- %s\n", indent, name)
		printNamespace(r, child, depth+1)
	}
}

func newCatalogIntrospectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "introspect",
		Short: "Read tables and columns from the configured connections",
		Long: `Connect to every connection listed under "connections" in the project
config, read its tables and columns, and merge the result into the catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			changed, err := cmdCtx.Workspace.Introspect(cmd.Context())
			if err != nil {
				return err
			}
			return renderChanged(cmdCtx.Renderer, "introspect", changed)
		},
	}
}

func newCatalogReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			changed, err := cmdCtx.Workspace.Reload(cmd.Context())
			if err != nil {
				return err
			}
			return renderChanged(cmdCtx.Renderer, cmdCtx.Workspace.CatalogFile(), changed)
		},
	}
}

func newCatalogImportCommand() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Apply a catalog snapshot from a YAML file",
		Long: `Apply a catalog snapshot from a YAML file and record it in the state
database. With --write the snapshot also replaces the project catalog file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			changed, err := cmdCtx.Workspace.Apply(cmd.Context(), args[0], snap)
			if err != nil {
				return err
			}
			if write {
				target := cmdCtx.Workspace.CatalogFile()
				if target == "" {
					return fmt.Errorf("--write: %w", workspace.ErrNoCatalogFile)
				}
				if err := catalog.WriteFile(target, snap); err != nil {
					return err
				}
				cmdCtx.Logger.Info("catalog file written", "path", target)
			}
			return renderChanged(cmdCtx.Renderer, args[0], changed)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Also write the snapshot to the project catalog file")
	return cmd
}

func newCatalogExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the current catalog as YAML",
		Long:  `Write the current catalog snapshot as YAML to a file, or to stdout.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			snap := cmdCtx.Workspace.Catalog.Snapshot()
			if len(args) == 0 {
				data, err := yaml.Marshal(snap)
				if err != nil {
					return fmt.Errorf("failed to encode catalog: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := catalog.WriteFile(args[0], snap); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Wrote %d connections to %s", len(snap.Connections), args[0]))
			return nil
		},
	}
}

func renderChanged(r *output.Renderer, source string, changed []string) error {
	if changed == nil {
		changed = []string{}
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.ChangedOutput{Source: source, Changed: changed})
	}
	if len(changed) == 0 {
		r.Success("Catalog unchanged")
		return nil
	}
	r.Success(fmt.Sprintf("Catalog updated from %s: %s", source, strings.Join(changed, ", ")))
	return nil
}

// completeEngineArgs offers connection names as the first positional argument.
func completeEngineArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeEngines(cmd, args, toComplete)
}

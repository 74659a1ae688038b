package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// NewCellsCommand creates the cells command and its subcommands.
func NewCellsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cells",
		Short: "Manage cells stored in the state database",
		Long: `Manage cells stored in the state database.

A stored cell keeps its Python host code together with the language view it
was saved in, so "cells get" reopens it in the same view.`,
	}
	cmd.AddCommand(
		newCellsListCommand(),
		newCellsGetCommand(),
		newCellsSaveCommand(),
		newCellsDeleteCommand(),
	)
	return cmd
}

func newCellsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored cells",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cells, err := cmdCtx.Workspace.Store.ListCells(cmd.Context())
			if err != nil {
				return err
			}

			infos := make([]output.CellInfo, len(cells))
			for i, c := range cells {
				infos[i] = output.CellInfo{
					ID:        c.ID,
					Name:      c.Name,
					Language:  c.Language,
					Lines:     strings.Count(c.HostCode, "\n") + 1,
					UpdatedAt: c.UpdatedAt,
				}
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(infos)
			}
			r.Header(1, fmt.Sprintf("Cells (%d)", len(infos)))
			rows := make([][]string, len(infos))
			for i, info := range infos {
				rows[i] = []string{info.Name, string(info.Language), fmt.Sprint(info.Lines), info.UpdatedAt.Format("2006-01-02 15:04"), info.ID}
			}
			r.Table([]string{"Name", "Language", "Lines", "Updated", "ID"}, rows)
			return nil
		},
	}
}

func newCellsGetCommand() *cobra.Command {
	var showHost bool

	cmd := &cobra.Command{
		Use:   "get <id|name>",
		Short: "Open a stored cell in the view it was saved in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws := cmdCtx.Workspace
			cell, err := ws.FindCell(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cell %q: %w", args[0], err)
			}
			session, buf, err := ws.RestoreCell(cell)
			if err != nil {
				return err
			}
			return renderCell(cmdCtx.Renderer, cellOutput(ws, session, buf, false), showHost)
		},
	}
	cmd.Flags().BoolVar(&showHost, "show-host", false, "Also print the Python host code")
	return cmd
}

func newCellsSaveCommand() *cobra.Command {
	var (
		code string
		lang string
	)

	cmd := &cobra.Command{
		Use:   "save <name> [file]",
		Short: "Store a cell under a name",
		Long: `Store Python host code as a named cell. The cell is saved in its
detected view unless --language picks one. Saving under an existing name
replaces that cell.`,
		Example: `  # Save a query cell from a file
  cellsql cells save orders cell.py

  # Save inline code as a Python view
  cellsql cells save setup --language python --code 'import marimo as mo'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := readSource(cmd, args[1:], code)
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws := cmdCtx.Workspace
			session, _ := ws.OpenCell(host)
			if lang != "" {
				target, err := language.ParseType(lang)
				if err != nil {
					return err
				}
				if _, err := session.SwitchLanguage(target, false); err != nil {
					return err
				}
			}

			cell, err := ws.SaveCell(cmd.Context(), args[0], session)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(cell)
			}
			r.Success(fmt.Sprintf("Saved cell %s as %s (%s)", cellLabel(cell), cell.Language, cell.ID))
			return nil
		},
	}
	addCodeFlag(cmd, &code)
	cmd.Flags().StringVarP(&lang, "language", "l", "", "View to save the cell in (default: detect)")
	_ = cmd.RegisterFlagCompletionFunc("language", completeLanguages)
	return cmd
}

func newCellsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|name>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored cell",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws := cmdCtx.Workspace
			cell, err := ws.FindCell(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cell %q: %w", args[0], err)
			}
			if err := ws.Store.DeleteCell(cmd.Context(), cell.ID); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Deleted cell %s", cellLabel(cell)))
			return nil
		},
	}
}

// cellLabel returns the name of a stored cell, or its ID when unnamed.
func cellLabel(cell *state.Cell) string {
	if cell.Name != "" {
		return cell.Name
	}
	return cell.ID
}

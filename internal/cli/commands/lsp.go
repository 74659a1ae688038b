package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/config"
	"github.com/leapstack-labs/cellsql/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. Python cell
documents get language detection, view switching through code actions,
and catalog completion inside query cells. The project config and catalog
are located from the client's initialization request (rootUri parameter).`,
		Example: `  # Start LSP server (usually called by an editor)
  cellsql lsp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command) error {
	logger := config.GetLogger(cmd.Context())
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.Options{Logger: logger})
	return server.Run()
}

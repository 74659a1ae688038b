package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/config"
	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Workspace *workspace.Workspace
	Renderer  *output.Renderer
}

// NewCommandContext creates a CommandContext with an open workspace.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutWorkspace(cmd)

	ws, err := workspace.New(cmd.Context(), cmdCtx.Cfg.WorkspaceConfig(cmdCtx.Logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	cmdCtx.Workspace = ws

	cleanup := func() {
		_ = ws.Close()
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutWorkspace creates a CommandContext without a workspace.
// Useful for commands that don't touch the catalog or the state store.
func NewCommandContextWithoutWorkspace(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration.
// Without a loaded config it falls back to defaults rooted at the CWD.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	root, _ := os.Getwd()
	return &config.Config{
		CatalogFile:   config.DefaultCatalogFile,
		StatePath:     config.DefaultStateFile,
		DefaultEngine: config.DefaultEngine,
		Environment:   config.DefaultEnv,
		OutputFormat:  config.DefaultOutput,
		LogLevel:      config.DefaultLogLevel,
		ProjectRoot:   root,
	}
}

// readSource returns the cell text a command works on: the --code value
// when given, otherwise the named file, otherwise stdin ("-" or no argument).
func readSource(cmd *cobra.Command, args []string, code string) (string, error) {
	if cmd.Flags().Changed("code") {
		return code, nil
	}
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

// addCodeFlag registers the --code flag read by readSource.
func addCodeFlag(cmd *cobra.Command, code *string) {
	cmd.Flags().StringVar(code, "code", "", "Cell text (instead of a file or stdin)")
}

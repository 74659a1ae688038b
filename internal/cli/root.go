// Package cli provides the command-line interface for cellsql.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/commands"
	"github.com/leapstack-labs/cellsql/internal/cli/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig lists commands that run without loading the project config.
var skipConfig = map[string]bool{
	"help":                          true,
	"completion":                    true,
	cobra.ShellCompRequestCmd:       true,
	cobra.ShellCompNoDescRequestCmd: true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "cellsql",
		Short: "cellsql - Language views for notebook SQL cells",
		Long: `cellsql edits notebook cells in the language they are written in.

A cell is Python source. Cells that wrap a query in mo.sql(f"""...""") open
as SQL, cells that wrap prose in mo.md(...) open as Markdown, and everything
else stays Python. Switching views rewrites the cell losslessly, and the SQL
view completes tables, columns and keywords from a catalog of connections in
the dialect of the cell's engine.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := config.NewLogger(cmd.ErrOrStderr(), cfg)
			cmd.SetContext(context.WithValue(ctx, config.LoggerKey(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					logger.Debug("using config file", "path", configFile)
				}
				if cfg.Environment != "" {
					logger.Debug("using environment", "name", cfg.Environment)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Language views and catalog completion for notebook SQL cells
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./cellsql.yaml)")
	flags.String("project-dir", "", "Project directory (default: nearest directory with cellsql.yaml)")
	flags.String("catalog", "", "Path to the catalog file")
	flags.String("state", "", "Path to state database (:memory: for none)")
	flags.String("engine", "", "Default query engine for new cells")
	flags.String("env", "", "Environment name")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("env", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return environmentNames(cfgFile), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddGroup(
		&cobra.Group{ID: "cells", Title: "Cell Commands:"},
		&cobra.Group{ID: "catalog", Title: "Catalog Commands:"},
		&cobra.Group{ID: "project", Title: "Project Commands:"},
	)

	for _, cmd := range []*cobra.Command{
		commands.NewDetectCommand(),
		commands.NewSwitchCommand(),
		commands.NewCycleCommand(),
		commands.NewTransformCommand(),
		commands.NewEditCommand(),
		commands.NewCellsCommand(),
	} {
		cmd.GroupID = "cells"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{
		commands.NewCompleteCommand(),
		commands.NewCatalogCommand(),
	} {
		cmd.GroupID = "catalog"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{
		commands.NewInitCommand(),
		commands.NewDoctorCommand(),
		commands.NewServeCommand(Version),
		commands.NewLSPCommand(),
	} {
		cmd.GroupID = "project"
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
	}))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// environmentNames lists the environments declared in the project config,
// for shell completion. Errors yield no suggestions.
func environmentNames(cfgFile string) []string {
	cfg, err := config.LoadConfig(cfgFile, nil)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(cfg.Environments))
	for name := range cfg.Environments {
		names = append(names, name)
	}
	return names
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cellsql.

To load completions:

Bash:
  $ source <(cellsql completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ cellsql completion bash > /etc/bash_completion.d/cellsql
  # macOS:
  $ cellsql completion bash > $(brew --prefix)/etc/bash_completion.d/cellsql

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ cellsql completion zsh > "${fpath[1]}/_cellsql"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ cellsql completion fish | source

  # To load completions for each session, execute once:
  $ cellsql completion fish > ~/.config/fish/completions/cellsql.fish

PowerShell:
  PS> cellsql completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> cellsql completion powershell > cellsql.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

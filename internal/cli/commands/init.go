package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/output"
	intconfig "github.com/leapstack-labs/cellsql/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new cellsql project",
		Long: `Initialize a new cellsql project with a default configuration.

This creates:
  - cellsql.yaml configuration file
  - catalog.yaml catalog snapshot with the built-in duckdb engine
  - .gitignore excluding the state directory

Use --example to also create sample cells and a catalog with a Postgres
warehouse and a SQLite database to try completion against.`,
		Example: `  # Initialize in current directory
  cellsql init

  # Initialize with example cells and catalog
  cellsql init --example

  # Initialize in a new directory
  cellsql init my-notebook --example

  # Force overwrite existing files
  cellsql init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			r := NewCommandContextWithoutWorkspace(cmd).Renderer
			template := templateMinimal
			if example {
				template = templateExample
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create sample cells and a richer catalog")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if existing := intconfig.FindConfigFile(dir); existing != "" && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", filepath.Base(existing))
	}

	files, err := copyTemplate(template, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	config, cells := groupTemplateFiles(files)
	r.Header(2, "Configuration")
	printTemplateFiles(r, config)
	if len(cells) > 0 {
		r.Println("")
		r.Header(2, "Cells")
		printTemplateFiles(r, cells)
	}

	r.Println("")
	r.Success("cellsql project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  cellsql catalog connections   List the engines query cells can target")
	if len(cells) > 0 {
		r.Println("  cellsql detect cells/orders.py   Open a sample cell in its view")
		r.Println("  cellsql complete --engine pg --code 'SELECT * FROM '")
	} else {
		r.Println("  cellsql detect <cell.py>      Open a cell in its view")
	}
	r.Println("  cellsql edit                  Edit a cell interactively")

	return nil
}

func printTemplateFiles(r *output.Renderer, files []templateFile) {
	for _, f := range files {
		if f.Skipped {
			r.StatusLine(f.Path, "warning", "exists, skipped")
			continue
		}
		r.StatusLine(f.Path, "success", "")
	}
}

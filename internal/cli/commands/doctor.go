package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cellsql/internal/cli/config"
	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/internal/introspect"
	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/dialect"
)

// Check groups, in report order.
const (
	groupConfiguration = "configuration"
	groupCatalog       = "catalog"
	groupState         = "state"
	groupConnections   = "connections"
	groupDialects      = "dialects"
)

// Check statuses.
const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
	statusSkipped = "skipped"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project setup",
		Long: `Check that the project configuration, catalog and state database are usable.

The doctor command reports:
- Configuration: config file and validation
- Catalog: catalog file and the snapshot it holds
- State: state database and schema version
- Connections: introspection drivers and database files
- Dialects: the SQL dialect each catalog connection resolves to

It exits with an error when any check fails.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format (-o json)`,
		Example: `  # Run health check
  cellsql doctor

  # Output as JSON
  cellsql doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}

	return cmd
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutWorkspace(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	out := &output.DoctorOutput{ConfigFile: config.GetConfigFileUsed()}
	add := func(group, name, status, detail string) {
		out.Checks = append(out.Checks, output.CheckResult{Group: group, Name: name, Status: status, Detail: detail})
	}

	checkConfiguration(cfg, out.ConfigFile, add)
	snap, catalogBroken := checkCatalogFile(cfg, add)

	// The workspace loads the catalog file too, so a broken file would
	// fail here again under the wrong name.
	if catalogBroken {
		add(groupState, "State database", statusSkipped, "catalog file failed to load")
	} else if ws, err := workspace.New(cmd.Context(), cfg.WorkspaceConfig(cmdCtx.Logger)); err != nil {
		add(groupState, "State database", statusError, err.Error())
	} else {
		defer func() { _ = ws.Close() }()
		checkState(cmd, ws, add)
		if snap == nil {
			snap = ws.Catalog.Snapshot()
		}
	}

	checkConnections(cfg, add)
	if snap != nil {
		checkDialects(snap, add)
	}

	out.Score = calculateHealthScore(out.Checks)
	out.Healthy = true
	for _, c := range out.Checks {
		if c.Status == statusError {
			out.Healthy = false
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(out); err != nil {
			return err
		}
	default:
		renderDoctor(r, out)
	}

	if !out.Healthy {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

type addCheck func(group, name, status, detail string)

func checkConfiguration(cfg *config.Config, configFile string, add addCheck) {
	if configFile == "" {
		add(groupConfiguration, "Config file", statusWarning, "none found, using defaults (run 'cellsql init')")
	} else {
		add(groupConfiguration, "Config file", statusSuccess, configFile)
	}
	if err := cfg.Validate(); err != nil {
		add(groupConfiguration, "Validation", statusError, err.Error())
		return
	}
	detail := "environment " + cfg.Environment
	if cfg.Environment == "" {
		detail = ""
	}
	add(groupConfiguration, "Validation", statusSuccess, detail)
}

// checkCatalogFile loads the catalog file, returning its snapshot when it
// is usable. broken reports a file that exists but cannot be decoded.
func checkCatalogFile(cfg *config.Config, add addCheck) (snap *catalog.Snapshot, broken bool) {
	if err := cfg.ValidateCatalogFile(); err != nil {
		add(groupCatalog, "Catalog file", statusWarning, firstLine(err.Error()))
		return nil, false
	}
	snap, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		add(groupCatalog, "Catalog file", statusError, err.Error())
		return nil, true
	}

	tables := 0
	for i := range snap.Connections {
		tables += snap.Connections[i].TableCount()
	}
	add(groupCatalog, "Catalog file", statusSuccess,
		fmt.Sprintf("%d connections, %d tables", len(snap.Connections), tables))
	return snap, false
}

func checkState(cmd *cobra.Command, ws *workspace.Workspace, add addCheck) {
	ctx := cmd.Context()

	if store, ok := ws.Store.(*state.SQLiteStore); ok {
		version, err := store.GetMigrationVersion()
		if err != nil {
			add(groupState, "Schema version", statusError, err.Error())
		} else {
			add(groupState, "Schema version", statusSuccess, fmt.Sprintf("migration %d", version))
		}
	}

	cells, err := ws.Store.ListCells(ctx)
	if err != nil {
		add(groupState, "Stored cells", statusError, err.Error())
		return
	}
	add(groupState, "Stored cells", statusSuccess, fmt.Sprint(len(cells)))
	add(groupState, "Latest engine", statusSuccess, ws.Engines.Latest())
}

func checkConnections(cfg *config.Config, add addCheck) {
	if len(cfg.Connections) == 0 {
		add(groupConnections, "Live connections", statusSuccess, "none configured")
		return
	}
	for i := range cfg.Connections {
		conn := cfg.Connections[i].ToIntrospectConfig()
		name := fmt.Sprintf("%s (%s)", conn.Name, conn.Type)
		if !introspect.IsRegistered(conn.Type) {
			add(groupConnections, name, statusError,
				"no driver, available: "+strings.Join(introspect.List(), ", "))
			continue
		}
		if conn.Host == "" && conn.Path != "" && conn.Path != ":memory:" {
			if _, err := os.Stat(conn.Path); err != nil {
				add(groupConnections, name, statusWarning, "database file not found: "+conn.Path)
				continue
			}
		}
		add(groupConnections, name, statusSuccess, "")
	}
}

func checkDialects(snap *catalog.Snapshot, add addCheck) {
	for i := range snap.Connections {
		conn := &snap.Connections[i]
		d, ok := dialect.Guess(conn.Dialect)
		if !ok {
			add(groupDialects, conn.Name, statusWarning,
				fmt.Sprintf("unknown dialect %q, using %s", conn.Dialect, dialect.Default().DisplayName))
			continue
		}
		add(groupDialects, conn.Name, statusSuccess, d.DisplayName)
	}
}

// calculateHealthScore computes a health score from 0-100. Errors count
// four times as much as warnings.
func calculateHealthScore(checks []output.CheckResult) int {
	score := 100
	for _, c := range checks {
		switch c.Status {
		case statusError:
			score -= 20
		case statusWarning:
			score -= 5
		}
	}
	return max(score, 0)
}

func renderDoctor(r *output.Renderer, out *output.DoctorOutput) {
	r.Header(1, "cellsql Project Health Report")

	group := ""
	for _, c := range out.Checks {
		if c.Group != group {
			if group != "" {
				r.Println("")
			}
			group = c.Group
			r.Header(2, output.Title(group))
		}
		r.StatusLine(c.Name, c.Status, c.Detail)
	}

	r.Println("")
	r.KeyValue("Health score", fmt.Sprintf("%d/100", out.Score))
	if out.Healthy {
		r.Success("No problems found")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

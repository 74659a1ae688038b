package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/cli/config"
	"github.com/leapstack-labs/cellsql/internal/cli/output"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []output.CheckResult
		want   int
	}{
		{
			name: "no checks returns 100",
			want: 100,
		},
		{
			name: "all passing returns 100",
			checks: []output.CheckResult{
				{Name: "Config file", Status: statusSuccess},
				{Name: "Catalog file", Status: statusSuccess},
			},
			want: 100,
		},
		{
			name: "warnings reduce score",
			checks: []output.CheckResult{
				{Name: "Config file", Status: statusWarning},
				{Name: "Catalog file", Status: statusSuccess},
			},
			want: 95,
		},
		{
			name: "errors reduce score more",
			checks: []output.CheckResult{
				{Name: "pg (oracle)", Status: statusError},
				{Name: "Config file", Status: statusWarning},
			},
			want: 75,
		},
		{
			name: "skipped checks do not count",
			checks: []output.CheckResult{
				{Name: "Catalog file", Status: statusSuccess},
				{Name: "State database", Status: statusSkipped},
			},
			want: 100,
		},
		{
			name: "score never goes below zero",
			checks: []output.CheckResult{
				{Status: statusError}, {Status: statusError}, {Status: statusError},
				{Status: statusError}, {Status: statusError}, {Status: statusError},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}

// collect returns an addCheck that records into checks.
func collect(checks *[]output.CheckResult) addCheck {
	return func(group, name, status, detail string) {
		*checks = append(*checks, output.CheckResult{Group: group, Name: name, Status: status, Detail: detail})
	}
}

func TestCheckDialects(t *testing.T) {
	snap := &catalog.Snapshot{Connections: []catalog.Connection{
		{Name: "pg", Dialect: "postgresql"},
		{Name: "mystery", Dialect: "teradata"},
	}}

	var checks []output.CheckResult
	checkDialects(snap, collect(&checks))

	require.Len(t, checks, 2)
	assert.Equal(t, statusSuccess, checks[0].Status)
	assert.Equal(t, groupDialects, checks[0].Group)
	assert.Equal(t, statusWarning, checks[1].Status)
	assert.Contains(t, checks[1].Detail, "teradata")
}

func TestCheckConnections(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "local.duckdb")
	require.NoError(t, os.WriteFile(existing, nil, 0600))

	cfg := &config.Config{Connections: []config.ConnectionConfig{
		{Name: "local", Type: "duckdb", Path: existing},
		{Name: "gone", Type: "sqlite", Path: filepath.Join(dir, "missing.db")},
		{Name: "legacy", Type: "oracle"},
		{Name: "mem", Type: "DuckDB", Path: ":memory:"},
	}}

	var checks []output.CheckResult
	checkConnections(cfg, collect(&checks))

	require.Len(t, checks, 4)
	assert.Equal(t, statusSuccess, checks[0].Status)
	assert.Equal(t, statusWarning, checks[1].Status)
	assert.Contains(t, checks[1].Detail, "missing.db")
	assert.Equal(t, statusError, checks[2].Status)
	assert.Contains(t, checks[2].Detail, "postgres")
	assert.Equal(t, statusSuccess, checks[3].Status)
}

func TestCheckConnections_None(t *testing.T) {
	var checks []output.CheckResult
	checkConnections(&config.Config{}, collect(&checks))

	require.Len(t, checks, 1)
	assert.Equal(t, statusSuccess, checks[0].Status)
	assert.Equal(t, "none configured", checks[0].Detail)
}

func TestRunDoctor_Healthy(t *testing.T) {
	setupProject(t, "json")

	stdout, _, err := execute(t, NewDoctorCommand())
	require.NoError(t, err)

	var out output.DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out), stdout)
	assert.True(t, out.Healthy)
	assert.Equal(t, 100, out.Score)
	assert.NotEmpty(t, out.ConfigFile)

	groups := map[string]int{}
	for _, c := range out.Checks {
		groups[c.Group]++
	}
	assert.Equal(t, 3, groups[groupDialects], "one check per catalog connection")
	assert.Contains(t, groups, groupState)
	assert.Contains(t, groups, groupCatalog)
}

func TestRunDoctor_BrokenCatalog(t *testing.T) {
	dir := setupProject(t, "json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte("connections: [\n"), 0600))

	stdout, _, err := execute(t, NewDoctorCommand())
	require.Error(t, err)

	var out output.DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out), stdout)
	assert.False(t, out.Healthy)
	assert.Less(t, out.Score, 100)

	byName := map[string]output.CheckResult{}
	failures := 0
	for _, c := range out.Checks {
		byName[c.Name] = c
		if c.Status == statusError {
			failures++
		}
	}
	assert.Equal(t, statusError, byName["Catalog file"].Status)
	assert.Equal(t, statusSkipped, byName["State database"].Status)
	assert.Equal(t, 1, failures, "the catalog failure is reported once")
}

func TestRunDoctor_Markdown(t *testing.T) {
	setupProject(t, "markdown")

	stdout, _, err := execute(t, NewDoctorCommand())
	require.NoError(t, err)
	assert.Contains(t, stdout, "Project Health Report")
	assert.Contains(t, stdout, "Health score")
}

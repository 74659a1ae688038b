// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/cellsql/internal/cli/config"
	"github.com/leapstack-labs/cellsql/internal/cli/output"
)

// Catalog used by SetupTestProject: the built-in engine, a Postgres
// warehouse and a schemaless SQLite file.
const testCatalog = `connections:
  - name: duckdb
    dialect: duckdb
    source: duckdb
    display_name: DuckDB (In-Memory)
  - name: pg
    dialect: postgresql
    source: postgres
    display_name: Warehouse
    default_database: analytics
    default_schema: public
    databases:
      - name: analytics
        schemas:
          - name: public
            tables:
              - name: orders
                columns:
                  - name: id
                  - name: customer_id
                  - name: amount
              - name: customers
                columns:
                  - name: id
                  - name: name
  - name: lite
    dialect: sqlite
    source: sqlite
    databases:
      - name: main
        schemas:
          - name: ""
            tables:
              - name: notes
                columns:
                  - name: body
variables:
  - min_amount
`

// TestQueryCell is the query cell written to cells/orders.py.
const TestQueryCell = `large_orders = mo.sql(
    f"""
    SELECT * FROM orders WHERE amount > {min_amount}
    """,
    engine=pg,
)`

// TestMarkdownCell is the prose cell written to cells/notes.py.
const TestMarkdownCell = `mo.md(r"""
# Orders
""")`

// SetupTestProject creates a temporary project with a config file, a
// catalog and two cells, and returns its directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tmpDir, "cells"), 0755); err != nil {
		t.Fatalf("failed to create cells directory: %v", err)
	}

	files := map[string]string{
		"cellsql.yaml": "catalog_file: catalog.yaml\nstate_path: .cellsql/state.db\ndefault_engine: duckdb\n",
		"catalog.yaml": testCatalog,
		filepath.Join("cells", "orders.py"): TestQueryCell,
		filepath.Join("cells", "notes.py"):  TestMarkdownCell,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	return tmpDir
}

// LoadTestConfig loads the project config of dir as the current CLI
// config, the way the root command does before running a subcommand.
func LoadTestConfig(t *testing.T, dir string, outputFormat string) *config.Config {
	t.Helper()

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cfg, err := config.LoadConfig(filepath.Join(dir, "cellsql.yaml"), nil)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if outputFormat != "" {
		cfg.OutputFormat = outputFormat
	}
	return cfg
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererAuto creates a new test renderer with auto mode detection.
// In tests, non-TTY defaults to markdown output.
func NewTestRendererAuto() *TestRenderer {
	return NewTestRenderer(output.ModeAuto, false)
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// AssertOutputMode checks that rendered output has the shape of the
// expected mode: no ANSI codes outside a terminal, and valid JSON in JSON
// mode.
func AssertOutputMode(t *testing.T, out string, expectedMode output.OutputMode) {
	t.Helper()

	switch expectedMode {
	case output.ModeMarkdown:
		AssertNoANSI(t, out)
		AssertValidMarkdown(t, out)
	case output.ModeJSON:
		AssertNoANSI(t, out)
		if !json.Valid([]byte(out)) {
			t.Errorf("output is not valid JSON: %q", out)
		}
	}
}

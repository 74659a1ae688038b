package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cellsql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("catalog", "", "catalog file")
	flags.String("state", "", "state database")
	flags.String("engine", "", "default engine")
	flags.String("env", "", "environment")
	flags.StringP("output", "o", "", "output format")
	flags.String("log-level", "", "log level")
	flags.BoolP("verbose", "v", false, "verbose output")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "{}\n")
	root := filepath.Dir(path)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, DefaultCatalogFile), cfg.CatalogFile)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultEngine, cfg.DefaultEngine)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, &ServerConfig{Host: DefaultServerHost, Port: DefaultServerPort}, cfg.GetServerConfig())
	assert.Equal(t, path, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `catalog_file: meta/catalog.yaml
state_path: ":memory:"
default_engine: pg
cache_capacity: 4
output: json
server:
  port: 9000
connections:
  - name: pg
    type: Postgres
    host: localhost
    database: shop
`)
	root := filepath.Dir(path)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "meta/catalog.yaml"), cfg.CatalogFile)
	assert.Equal(t, ":memory:", cfg.StatePath)
	assert.Equal(t, "pg", cfg.DefaultEngine)
	assert.Equal(t, 4, cfg.CacheCapacity)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, 9000, cfg.GetServerConfig().Port)
	assert.Equal(t, DefaultServerHost, cfg.GetServerConfig().Host)

	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, "postgres", cfg.Connections[0].Type)
	assert.Equal(t, 5432, cfg.Connections[0].Port)

	ws := cfg.WorkspaceConfig(nil)
	assert.Equal(t, cfg.CatalogFile, ws.CatalogFile)
	assert.Equal(t, "pg", ws.DefaultEngine)
	require.Len(t, ws.Connections, 1)
	assert.Equal(t, "shop", ws.Connections[0].Database)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad output", "output: yaml\n", "invalid output"},
		{"bad log level", "log_level: loud\n", "invalid log_level"},
		{"bad port", "server:\n  port: 70000\n", "out of range"},
		{"unknown driver", "connections:\n  - name: x\n    type: oracle\n", "unknown driver type"},
		{"duplicate connection", "connections:\n  - {name: x, type: duckdb}\n  - {name: x, type: sqlite}\n", "duplicate connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, GetCurrentConfig())
		})
	}
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars and config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "default_engine: from_file\n")
	t.Setenv("CELLSQL_DEFAULT_ENGINE", "from_env")

	flags := testFlags()
	require.NoError(t, flags.Set("engine", "from_flag"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.DefaultEngine, "flag value should override config file and env var")
}

// TestLoadConfig_EnvPrecedenceOverFile tests that env vars override config file.
func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "default_engine: from_file\nserver:\n  port: 9000\n")
	t.Setenv("CELLSQL_DEFAULT_ENGINE", "from_env")
	t.Setenv("CELLSQL_SERVER_PORT", "9100")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.DefaultEngine, "env var should override config file")
	assert.Equal(t, 9100, cfg.GetServerConfig().Port)
}

// TestLoadConfig_FlagNotSetUsesEnv tests that unset flags fall back to env vars.
func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "default_engine: from_file\n")
	t.Setenv("CELLSQL_DEFAULT_ENGINE", "from_env")

	cfg, err := LoadConfig(path, testFlags())
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.DefaultEngine, "env var should be used when flag is not set")
}

func TestLoadConfig_FlagPathsRelativeToCWD(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "{}\n")

	flags := testFlags()
	require.NoError(t, flags.Set("catalog", "elsewhere/catalog.yaml"))
	require.NoError(t, flags.Set("state", ":memory:"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("elsewhere/catalog.yaml")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.CatalogFile)
	assert.Equal(t, ":memory:", cfg.StatePath)
}

func TestLoadConfig_Environment(t *testing.T) {
	content := `default_engine: duckdb
connections:
  - {name: warehouse, type: postgres, host: dev-db}
  - {name: local, type: sqlite, path: local.db}
environments:
  prod:
    default_engine: warehouse
    state_path: prod/state.db
    connections:
      - {name: warehouse, type: postgres, host: prod-db}
      - {name: audit, type: duckdb}
`

	t.Run("selected by flag", func(t *testing.T) {
		ResetConfig()
		path := writeConfig(t, content)
		flags := testFlags()
		require.NoError(t, flags.Set("env", "prod"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)

		assert.Equal(t, "prod", cfg.Environment)
		assert.Equal(t, "warehouse", cfg.DefaultEngine)
		assert.Equal(t, filepath.Join(filepath.Dir(path), "prod/state.db"), cfg.StatePath)
		require.Len(t, cfg.Connections, 3)
		assert.Equal(t, "prod-db", cfg.Connections[0].Host)
		assert.Equal(t, "local", cfg.Connections[1].Name)
		assert.Equal(t, "audit", cfg.Connections[2].Name)
		assert.Equal(t, ":memory:", cfg.Connections[2].Path)
	})

	t.Run("undeclared environment keeps base", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfig(writeConfig(t, content), nil)
		require.NoError(t, err)

		assert.Equal(t, DefaultEnv, cfg.Environment)
		assert.Equal(t, "duckdb", cfg.DefaultEngine)
		require.Len(t, cfg.Connections, 2)
		assert.Equal(t, "dev-db", cfg.Connections[0].Host)
	})
}

func TestMergeConnections(t *testing.T) {
	base := []ConnectionConfig{{Name: "a", Type: "duckdb"}, {Name: "b", Type: "sqlite"}}

	assert.Equal(t, base, MergeConnections(base, nil))

	merged := MergeConnections(base, []ConnectionConfig{{Name: "b", Type: "postgres"}, {Name: "c", Type: "duckdb"}})
	assert.Equal(t, []ConnectionConfig{
		{Name: "a", Type: "duckdb"},
		{Name: "b", Type: "postgres"},
		{Name: "c", Type: "duckdb"},
	}, merged)
	assert.Equal(t, "sqlite", base[1].Type, "base is not modified")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CELLSQL_CATALOG_FILE": "catalog_file",
		"CELLSQL_SERVER_PORT":  "server.port",
		"CELLSQL_SERVER_HOST":  "server.host",
		"CELLSQL_VERBOSE":      "verbose",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, envKey(in))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"chatty", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, &Config{LogLevel: "info"})
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger = NewLogger(&buf, &Config{LogLevel: "error", Verbose: true})
	logger.Debug("verbose wins")
	assert.Contains(t, buf.String(), "verbose wins")
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(t.Context()))
}

func TestValidateCatalogFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("connections: []\n"), 0600))

	assert.NoError(t, (&Config{CatalogFile: existing}).ValidateCatalogFile())

	err := (&Config{CatalogFile: filepath.Join(dir, "missing.yaml")}).ValidateCatalogFile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	err = (&Config{}).ValidateCatalogFile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not set")
}

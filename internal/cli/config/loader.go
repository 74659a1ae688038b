package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/cellsql/internal/config"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// envPrefix is the prefix of environment variables read into the config.
const envPrefix = "CELLSQL_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys bridges short CLI flag names to config keys.
var flagKeys = map[string]string{
	"state":   "state_path",
	"catalog": "catalog_file",
	"engine":  "default_engine",
	"env":     "environment",
}

// nestedEnvPrefixes maps flattened env keys onto nested config sections,
// so CELLSQL_SERVER_PORT lands on server.port.
var nestedEnvPrefixes = []string{"server_"}

// findProjectRootUpward searches upward from startDir for a cellsql config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if intconfig.FindConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Explicit --project-dir flag
//  2. Directory of an explicit config file
//  3. Search upward from CWD for cellsql.yaml
//  4. Current working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if flags != nil && flags.Lookup("project-dir") != nil && flags.Changed("project-dir") {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" {
			if abs, err := filepath.Abs(projectDir); err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// flagPath returns the absolute form of a path flag when it was set
// explicitly. Flag paths are relative to the CWD, not the project root.
func flagPath(flags *pflag.FlagSet, name string) string {
	if flags == nil || flags.Lookup(name) == nil || !flags.Changed(name) {
		return ""
	}
	v, _ := flags.GetString(name)
	if v == "" || v == ":memory:" {
		return v
	}
	abs, err := filepath.Abs(v)
	if err != nil {
		return v
	}
	return abs
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile, flags)
	flagCatalog := flagPath(flags, "catalog")
	flagState := flagPath(flags, "state")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"catalog_file":   DefaultCatalogFile,
		"state_path":     DefaultStateFile,
		"default_engine": DefaultEngine,
		"environment":    DefaultEnv,
		"verbose":        false,
		"output":         DefaultOutput,
		"log_level":      DefaultLogLevel,
		"watch":          false,
		"server.host":    DefaultServerHost,
		"server.port":    DefaultServerPort,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = intconfig.FindConfigFile(projectRoot)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Load environment variables (CELLSQL_ prefix)
	// Transform: CELLSQL_CATALOG_FILE -> catalog_file, CELLSQL_SERVER_PORT -> server.port
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "config", "project_dir":
				return "", nil
			}
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// 6. Apply the selected environment's overrides
	cfg.applyEnvironment()

	// 7. Resolve paths: flags against the CWD, everything else against the
	// project root.
	if flagCatalog != "" {
		cfg.CatalogFile = flagCatalog
	} else {
		cfg.CatalogFile = intconfig.ResolvePath(cfg.CatalogFile, projectRoot)
	}
	if flagState != "" {
		cfg.StatePath = flagState
	} else if cfg.StatePath != ":memory:" {
		cfg.StatePath = intconfig.ResolvePath(cfg.StatePath, projectRoot)
	}

	for i := range cfg.Connections {
		cfg.Connections[i].ApplyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// envKey maps an environment variable name to a config key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, prefix := range nestedEnvPrefixes {
		if strings.HasPrefix(key, prefix) {
			return strings.TrimSuffix(prefix, "_") + "." + strings.TrimPrefix(key, prefix)
		}
	}
	return key
}

// applyEnvironment merges the selected environment over the base config.
// Connections are merged by name. An undeclared environment leaves the
// base config untouched.
func (c *Config) applyEnvironment() {
	envCfg, ok := c.Environments[c.Environment]
	if !ok {
		return
	}

	if envCfg.CatalogFile != "" {
		c.CatalogFile = envCfg.CatalogFile
	}
	if envCfg.StatePath != "" {
		c.StatePath = envCfg.StatePath
	}
	if envCfg.DefaultEngine != "" {
		c.DefaultEngine = envCfg.DefaultEngine
	}
	c.Connections = MergeConnections(c.Connections, envCfg.Connections)
}

// MergeConnections overlays override onto base by connection name. Base
// order is kept; new connections are appended.
func MergeConnections(base, override []ConnectionConfig) []ConnectionConfig {
	if len(override) == 0 {
		return base
	}
	merged := make([]ConnectionConfig, len(base), len(base)+len(override))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, c := range merged {
		index[c.Name] = i
	}
	for _, o := range override {
		if i, ok := index[o.Name]; ok {
			merged[i] = o
			continue
		}
		index[o.Name] = len(merged)
		merged = append(merged, o)
	}
	return merged
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.New(slog.DiscardHandler)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the CLI logger: a text handler at the configured level.
// Verbose forces debug.
func NewLogger(w io.Writer, cfg *Config) *slog.Logger {
	level := slog.LevelWarn
	if lvl, err := ParseLogLevel(cfg.LogLevel); err == nil {
		level = lvl
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

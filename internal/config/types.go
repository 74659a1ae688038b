// Package config provides shared configuration types for cellsql.
// This package is decoupled from CLI concerns and can be used by the LSP
// and other tools that need to load project configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/cellsql/internal/introspect"
	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// ConnectionConfig describes a live database that "catalog introspect"
// reads into the catalog.
type ConnectionConfig struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"` // duckdb, postgres, mysql, sqlite

	// File-based databases (DuckDB, SQLite)
	Path string `koanf:"path"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Schemas limits introspection to the listed schemas.
	Schemas []string `koanf:"schemas"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds driver-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params"`
}

// Validate checks if the connection configuration is valid.
// It uses the introspection registry to determine which types are available.
func (c *ConnectionConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("connection name is required")
	}
	if c.Type == "" {
		return fmt.Errorf("connection %s: type is required", c.Name)
	}
	if !introspect.IsRegistered(strings.ToLower(c.Type)) {
		return &introspect.UnknownDriverError{
			Type:      c.Type,
			Available: introspect.List(),
		}
	}
	return nil
}

// ToIntrospectConfig converts the configuration, expanding ${VAR}
// references in credentials and addresses.
func (c *ConnectionConfig) ToIntrospectConfig() introspect.Config {
	return introspect.Config{
		Name:     c.Name,
		Type:     strings.ToLower(c.Type),
		Path:     ExpandEnvVars(c.Path),
		Host:     ExpandEnvVars(c.Host),
		Port:     c.Port,
		Database: ExpandEnvVars(c.Database),
		Username: ExpandEnvVars(c.User),
		Password: ExpandEnvVars(c.Password),
		Schemas:  c.Schemas,
		Options:  c.Options,
		Params:   c.Params,
	}
}

// ProjectConfig holds the project configuration needed by tools like the LSP.
// The CLI extends it with flags and environment variables.
type ProjectConfig struct {
	CatalogFile   string             `koanf:"catalog_file"`
	StatePath     string             `koanf:"state_path"`
	DefaultEngine string             `koanf:"default_engine"`
	CacheCapacity int                `koanf:"cache_capacity"`
	Connections   []ConnectionConfig `koanf:"connections"`
}

// Validate checks every connection and rejects duplicate names.
func (c *ProjectConfig) Validate() error {
	if c.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must not be negative")
	}
	seen := make(map[string]struct{}, len(c.Connections))
	for i := range c.Connections {
		conn := &c.Connections[i]
		if err := conn.Validate(); err != nil {
			return err
		}
		if _, dup := seen[conn.Name]; dup {
			return fmt.Errorf("duplicate connection name %q", conn.Name)
		}
		seen[conn.Name] = struct{}{}
	}
	return nil
}

// WorkspaceConfig builds the workspace configuration, resolving relative
// paths against root.
func (c *ProjectConfig) WorkspaceConfig(root string, logger *slog.Logger) workspace.Config {
	conns := make([]introspect.Config, 0, len(c.Connections))
	for i := range c.Connections {
		ic := c.Connections[i].ToIntrospectConfig()
		if ic.Path != ":memory:" {
			ic.Path = ResolvePath(ic.Path, root)
		}
		conns = append(conns, ic)
	}
	statePath := c.StatePath
	if statePath != ":memory:" {
		statePath = ResolvePath(statePath, root)
	}
	return workspace.Config{
		CatalogFile:   ResolvePath(c.CatalogFile, root),
		StatePath:     statePath,
		CacheCapacity: c.CacheCapacity,
		DefaultEngine: c.DefaultEngine,
		Connections:   conns,
		Logger:        logger,
	}
}

// ResolvePath resolves path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

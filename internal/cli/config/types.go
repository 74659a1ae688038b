// Package config provides configuration management for the cellsql CLI.
//
// This package extends the shared project configuration from
// internal/config with CLI-specific fields: output mode, logging, the API
// server and named environments. ConnectionConfig is re-exported here so
// CLI code does not need to import internal/config.
package config

import (
	"log/slog"

	intconfig "github.com/leapstack-labs/cellsql/internal/config"
	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// ConnectionConfig is an alias for the shared connection configuration.
type ConnectionConfig = intconfig.ConnectionConfig

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: DefaultServerHost,
		Port: DefaultServerPort,
	}
}

// GetServerConfig returns the server config with defaults applied for any
// unset values.
func (c *Config) GetServerConfig() *ServerConfig {
	if c.Server == nil {
		return DefaultServerConfig()
	}
	srv := *c.Server
	if srv.Host == "" {
		srv.Host = DefaultServerHost
	}
	if srv.Port == 0 {
		srv.Port = DefaultServerPort
	}
	return &srv
}

// Config holds all CLI configuration options.
type Config struct {
	CatalogFile   string             `koanf:"catalog_file"`
	StatePath     string             `koanf:"state_path"`
	DefaultEngine string             `koanf:"default_engine"`
	CacheCapacity int                `koanf:"cache_capacity"`
	Connections   []ConnectionConfig `koanf:"connections"`

	Environment  string        `koanf:"environment"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	LogLevel     string        `koanf:"log_level"`
	Watch        bool          `koanf:"watch"`
	Server       *ServerConfig `koanf:"server"`

	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot anchors relative paths. It is inferred, never read.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	CatalogFile   string             `koanf:"catalog_file"`
	StatePath     string             `koanf:"state_path"`
	DefaultEngine string             `koanf:"default_engine"`
	Connections   []ConnectionConfig `koanf:"connections"`
}

// Project returns the shared project configuration view of c.
func (c *Config) Project() *intconfig.ProjectConfig {
	return &intconfig.ProjectConfig{
		CatalogFile:   c.CatalogFile,
		StatePath:     c.StatePath,
		DefaultEngine: c.DefaultEngine,
		CacheCapacity: c.CacheCapacity,
		Connections:   c.Connections,
	}
}

// WorkspaceConfig builds the workspace configuration rooted at the
// project root.
func (c *Config) WorkspaceConfig(logger *slog.Logger) workspace.Config {
	return c.Project().WorkspaceConfig(c.ProjectRoot, logger)
}

// Default configuration values.
const (
	DefaultCatalogFile = intconfig.DefaultCatalogFile
	DefaultStateFile   = intconfig.DefaultStateFile
	DefaultEngine      = intconfig.DefaultEngine
	DefaultEnv         = "dev"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel    = "warn"
	DefaultServerHost  = "127.0.0.1"
	DefaultServerPort  = 8766
)

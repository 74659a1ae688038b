package config

import (
	"strings"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// Default configuration values.
const (
	DefaultCatalogFile = "catalog.yaml"
	DefaultStateFile   = ".cellsql/state.db"
	DefaultEngine      = catalog.DefaultEngine
)

// ApplyDefaults applies default values to a ProjectConfig.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.CatalogFile == "" {
		c.CatalogFile = DefaultCatalogFile
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = catalog.DefaultCacheCapacity
	}
	for i := range c.Connections {
		c.Connections[i].ApplyDefaults()
	}
}

// ApplyDefaults applies type-specific defaults to a connection.
func (c *ConnectionConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	c.Type = strings.ToLower(c.Type)
	switch c.Type {
	case "postgres", "postgresql":
		c.Type = "postgres"
		if c.Port == 0 {
			c.Port = 5432
		}
	case "mysql", "mariadb":
		c.Type = "mysql"
		if c.Port == 0 {
			c.Port = 3306
		}
	case "duckdb":
		if c.Path == "" {
			c.Path = ":memory:"
		}
	}
}

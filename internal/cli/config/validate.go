package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"auto", "text", "markdown", "json"}

// ParseLogLevel parses a slog level name (debug, info, warn, error).
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: want debug, info, warn or error", s)
	}
	return level, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.OutputFormat != "" && !isOutputFormat(c.OutputFormat) {
		return fmt.Errorf("invalid output %q: want one of %s", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.Server != nil && (c.Server.Port < 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return c.Project().Validate()
}

// ValidateCatalogFile checks that the catalog file exists. Only commands
// that read the file call it, so help and fresh projects still work.
func (c *Config) ValidateCatalogFile() error {
	if c.CatalogFile == "" {
		return fmt.Errorf("catalog_file is not set\nHint: set catalog_file in cellsql.yaml or use --catalog")
	}
	if _, err := os.Stat(c.CatalogFile); os.IsNotExist(err) {
		return fmt.Errorf("catalog file does not exist: %s\nHint: create it or use --catalog to specify a different path", c.CatalogFile)
	}
	return nil
}

func isOutputFormat(s string) bool {
	for _, f := range OutputFormats {
		if s == f {
			return true
		}
	}
	return false
}

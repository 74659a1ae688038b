package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "cellsql.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "cellsql.yml"

// LoadFromDir loads a ProjectConfig from the given directory.
// It looks for cellsql.yaml or cellsql.yml in the directory.
// Returns nil, nil if no config file is found (not an error condition).
func LoadFromDir(dir string) (*ProjectConfig, error) {
	configPath := FindConfigFile(dir)
	if configPath == "" {
		return nil, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, err
	}

	var cfg ProjectConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func FindConfigFile(dir string) string {
	yamlPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}

	ymlPath := filepath.Join(dir, ConfigFileNameAlt)
	if _, err := os.Stat(ymlPath); err == nil {
		return ymlPath
	}

	return ""
}

// FindProjectRoot walks up from the given directory to find a directory
// containing cellsql.yaml or cellsql.yml.
// Returns empty string if not found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if FindConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

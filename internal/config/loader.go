package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultNames are the config filenames looked up in the config directory,
// in order.
var DefaultNames = []string{"imagebatch.yaml", "imagebatch.yml", "imagebatch.json"}

// Loader handles loading configuration files.
type Loader struct {
	configDir string
}

// NewLoader creates a new config loader.
func NewLoader(configDir string) *Loader {
	return &Loader{configDir: configDir}
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFile loads a configuration from a specific file path. Fields missing
// from the file keep their Default values. Environment variables are
// expanded before parsing; .yaml and .yml files are YAML, anything else is
// JSON.
func (l *Loader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	data, missing := ExpandEnvVarsBytes(data)

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	cfg.unresolved = missing

	return cfg, nil
}

// LoadAndValidate loads and validates a config file.
func (l *Loader) LoadAndValidate(path string) (*Config, error) {
	cfg, err := l.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed for %s:\n%w", path, err)
	}

	return cfg, nil
}

// Find returns the first of DefaultNames present in the config directory.
func (l *Loader) Find() (string, bool) {
	for _, name := range DefaultNames {
		p := filepath.Join(l.configDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// LoadDefault loads the config found in the config directory, or Default
// when there is none. The returned path is empty in the latter case.
func (l *Loader) LoadDefault() (*Config, string, error) {
	path, ok := l.Find()
	if !ok {
		return Default(), "", nil
	}
	cfg, err := l.LoadAndValidate(path)
	return cfg, path, err
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "sidecar"
	// ConfigFile is the JSON config file name
	ConfigFile = "config.json"
	// ConfigFileTOML is read when ConfigFile is absent
	ConfigFileTOML = "config.toml"
)

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader handles configuration loading with injected dependencies
type Loader struct {
	fs     FileSystem
	lookup LookupFunc
}

// NewLoader creates a production Loader using the real filesystem and the
// process environment overlaid on .env files in the working directory.
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}, lookup: DotEnvLookup(".env.local", ".env")}
}

// NewLoaderWithFS creates a Loader with a custom filesystem and environment (for testing)
func NewLoaderWithFS(fs FileSystem, lookup LookupFunc) *Loader {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Loader{fs: fs, lookup: lookup}
}

// Load reads configuration from ~/.config/sidecar/config.json (or
// config.toml when the JSON file is absent), merges it with defaults, then
// applies environment overrides.
// Returns default config if no config file exists.
// Returns error only for parse errors, permission issues, or validation failures.
//
// NOTE: This implementation decodes keys directly over the default configuration.
// This allows explicit zero values (e.g., 0, false, "") in the config file to override defaults.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	// Use defaults if the home dir can't be determined
	if homeDir, err := l.fs.UserHomeDir(); err == nil {
		dir := filepath.Join(homeDir, ".config", ConfigDir)
		if _, err := l.decodeFirst(cfg, filepath.Join(dir, ConfigFile), filepath.Join(dir, ConfigFileTOML)); err != nil {
			return nil, err
		}
	}

	return l.finish(cfg)
}

// LoadFile reads configuration from an explicit path. The extension selects
// the decoder; a missing file is an error.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	found, err := l.decodeFirst(cfg, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
	}

	return l.finish(cfg)
}

func (l *Loader) finish(cfg *Config) (*Config, error) {
	applyEnv(cfg, l.lookup)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFirst decodes the first existing path over cfg.
func (l *Loader) decodeFirst(cfg *Config, paths ...string) (bool, error) {
	for _, path := range paths {
		data, err := l.fs.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, err // Return error for permission issues
		}
		if err := decode(path, data, cfg); err != nil {
			return false, fmt.Errorf("parse %s: %w", path, err)
		}
		return true, nil
	}
	return false, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	// Present keys overwrite defaults (even if zero),
	// while missing keys leave the defaults untouched.
	return json.Unmarshal(data, cfg)
}

// Load is a convenience function using the default loader
func Load() (*Config, error) {
	return NewLoader().Load()
}

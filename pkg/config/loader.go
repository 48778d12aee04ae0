package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
)

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// defaultConfigNames are tried in order when no path is given.
var defaultConfigNames = []string{"devproxy.yaml", "devproxy.yml", "devproxy.json"}

// Load reads a Config from a JSON or YAML file. The format is auto-detected
// by extension (.yaml/.yml is YAML, otherwise JSON). Environment variable
// references in the file are expanded before parsing. When path is empty,
// the default config names are tried in the current directory.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := Discover(".")
		if err != nil {
			return nil, err
		}
		path = found
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	expanded := []byte(ExpandEnvVars(string(data)))

	var cfg *Config
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		cfg, err = ParseYAML(expanded)
	} else {
		cfg, err = ParseJSON(expanded)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover looks for a default-named config file in dir.
func Discover(dir string) (string, error) {
	for _, name := range defaultConfigNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no %s in %s",
		ErrFileNotFound, strings.Join(defaultConfigNames, ", "), dir)
}

// ParseYAML parses YAML bytes into a validated Config.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseJSON parses JSON bytes into a validated Config.
func ParseJSON(data []byte) (*Config, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a file using atomic rename, with the format chosen
// by extension. Parent directories are created if missing.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}

	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// ExpandEnvVars replaces ${VAR} and ${VAR:-default} references with their
// environment values. Unset variables without a default become empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}

// ApplyEnv overlays DEVPROXY_* environment knobs onto a loaded config. These
// win over the file so a developer can flip record mode or point at a
// different upstream without editing YAML.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DEVPROXY_UPSTREAM"); v != "" {
		c.Server.UpstreamOverride = v
	}
	if v := os.Getenv("DEVPROXY_RECORD"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Server.RecordMode = on
		}
	}
	if v := os.Getenv("DEVPROXY_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// ResolvePath resolves targetPath against basePath, honoring absolute paths
// and ~ expansion.
func ResolvePath(basePath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	if strings.HasPrefix(targetPath, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, targetPath[2:])
		}
	}
	return filepath.Join(basePath, targetPath)
}

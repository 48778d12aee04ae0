// Package config loads and validates the devproxy configuration file: the
// server settings, the project routing table, and references to seed files
// holding mock rules and scenarios.
package config

import (
	"github.com/shubapp/devproxy/pkg/routing"
	"github.com/shubapp/devproxy/pkg/rule"
)

// DefaultAdminPort is the admin API port when the config does not set one.
const DefaultAdminPort = 4040

// Config is the root of a devproxy.yaml / devproxy.json file.
type Config struct {
	// Version is the config schema version. Currently "1".
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Server holds process-wide settings.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Projects is the routing table, in declaration order. Order matters:
	// the first project whose domain pattern matches a request host wins.
	Projects []routing.ProjectRoute `json:"projects,omitempty" yaml:"projects,omitempty"`

	// Mocks references seed files with mock rules. Each entry is a path or
	// a glob (with ** support) relative to the config file's directory.
	Mocks []string `json:"mocks,omitempty" yaml:"mocks,omitempty"`

	// Scenarios references seed files with scenario definitions, same
	// path/glob semantics as Mocks.
	Scenarios []string `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// AdminPort is the port for the admin JSON API and the /events
	// WebSocket. 0 means DefaultAdminPort.
	AdminPort int `json:"adminPort,omitempty" yaml:"adminPort,omitempty"`

	// DataDir is where the file-backed rule store persists its state.
	// Empty means in-memory only.
	DataDir string `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`

	// UpstreamOverride forwards all unmatched traffic to this base URL
	// instead of each project's configured upstream host.
	UpstreamOverride string `json:"upstreamOverride,omitempty" yaml:"upstreamOverride,omitempty"`

	// RecordMode starts the proxy in record mode.
	RecordMode bool `json:"recordMode,omitempty" yaml:"recordMode,omitempty"`

	// DefaultScenario is activated at startup when the store has no
	// persisted active scenario.
	DefaultScenario string `json:"defaultScenario,omitempty" yaml:"defaultScenario,omitempty"`

	// MaxConns caps concurrent connections per proxy listener. 0 uses the
	// proxy package default.
	MaxConns int `json:"maxConns,omitempty" yaml:"maxConns,omitempty"`
}

// Seed is the merged content of all referenced mock and scenario files.
type Seed struct {
	Mocks     []*rule.MockRule
	Scenarios []*rule.Scenario
}

// AdminPort returns the effective admin port.
func (c *Config) AdminPort() int {
	if c.Server.AdminPort != 0 {
		return c.Server.AdminPort
	}
	return DefaultAdminPort
}

// Default returns a minimal runnable config: no projects, admin API on the
// default port, in-memory store.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

package config

import (
	"fmt"
	"strings"
)

// validLogLevels are the accepted server.logLevel values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats are the accepted server.logFormat values.
var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// ValidationError describes a single invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %q: %s", e.Field, e.Message)
}

// Validate checks the config for structural problems. Routing precedence
// (first declared project wins on host and port collisions) is intentional
// and not an error.
func (c *Config) Validate() error {
	if c.Server.AdminPort < 0 || c.Server.AdminPort > 65535 {
		return &ValidationError{Field: "server.adminPort", Message: "must be between 0 and 65535"}
	}
	if c.Server.LogLevel != "" && !validLogLevels[strings.ToLower(c.Server.LogLevel)] {
		return &ValidationError{
			Field:   "server.logLevel",
			Message: fmt.Sprintf("unknown level %q (debug, info, warn, error)", c.Server.LogLevel),
		}
	}
	if c.Server.LogFormat != "" && !validLogFormats[strings.ToLower(c.Server.LogFormat)] {
		return &ValidationError{
			Field:   "server.logFormat",
			Message: fmt.Sprintf("unknown format %q (text, json)", c.Server.LogFormat),
		}
	}
	if c.Server.MaxConns < 0 {
		return &ValidationError{Field: "server.maxConns", Message: "must not be negative"}
	}

	seenNames := make(map[string]bool, len(c.Projects))
	for i, p := range c.Projects {
		field := func(name string) string { return fmt.Sprintf("projects[%d].%s", i, name) }

		if p.Name == "" {
			return &ValidationError{Field: field("name"), Message: "is required"}
		}
		if seenNames[p.Name] {
			return &ValidationError{Field: field("name"), Message: fmt.Sprintf("duplicate project name %q", p.Name)}
		}
		seenNames[p.Name] = true

		if p.FixedProxyPort <= 0 || p.FixedProxyPort > 65535 {
			return &ValidationError{Field: field("fixedProxyPort"), Message: "must be between 1 and 65535"}
		}
		if p.FixedProxyPort == c.AdminPort() {
			return &ValidationError{
				Field:   field("fixedProxyPort"),
				Message: fmt.Sprintf("collides with admin port %d", c.AdminPort()),
			}
		}
		for j, pattern := range p.DomainPatterns {
			if strings.TrimSpace(pattern) == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("projects[%d].domainPatterns[%d]", i, j),
					Message: "must not be empty",
				}
			}
		}
	}

	return nil
}

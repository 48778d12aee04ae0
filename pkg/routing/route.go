// Package routing maps inbound connections to project routes. A route ties a
// listening port and a set of domain patterns to one front-end project's
// upstream and cookie-handling configuration.
package routing

import (
	"slices"
	"strings"
)

// PathClass labels a request path for logging and metrics. Classification
// never affects the mock-vs-proxy decision.
type PathClass string

const (
	// PathAPI is a backend API call.
	PathAPI PathClass = "api"
	// PathStatic is a static asset request.
	PathStatic PathClass = "static"
	// PathApplication is anything else (the application shell).
	PathApplication PathClass = "application"
)

// ProjectRoute is the static configuration for one front-end project.
type ProjectRoute struct {
	// Name identifies the project in logs and events.
	Name string `json:"name" yaml:"name"`

	// LocalDir is the project's working directory on the developer machine.
	LocalDir string `json:"localDir,omitempty" yaml:"localDir,omitempty"`

	// DevPort is the port the project's dev server listens on.
	DevPort int `json:"devPort,omitempty" yaml:"devPort,omitempty"`

	// FixedProxyPort is the public port the proxy listens on for this
	// project. Port resolution is an exact lookup against it.
	FixedProxyPort int `json:"fixedProxyPort" yaml:"fixedProxyPort"`

	// APIHost is the upstream API host template. A "{tenant}" placeholder
	// is replaced with the tenant label extracted from the request host.
	APIHost string `json:"apiHost,omitempty" yaml:"apiHost,omitempty"`

	// DomainPatterns are glob patterns matched against the request host.
	// A "*" segment stands for exactly one non-dot label.
	DomainPatterns []string `json:"domainPatterns,omitempty" yaml:"domainPatterns,omitempty"`

	// TenantAllowList, when non-empty, restricts which labels the wildcard
	// segment may match.
	TenantAllowList []string `json:"tenantAllowList,omitempty" yaml:"tenantAllowList,omitempty"`

	// APIPathPrefixes mark paths as API calls.
	APIPathPrefixes []string `json:"apiPathPrefixes,omitempty" yaml:"apiPathPrefixes,omitempty"`

	// StaticPathPrefixes mark paths as static assets.
	StaticPathPrefixes []string `json:"staticPathPrefixes,omitempty" yaml:"staticPathPrefixes,omitempty"`

	// SessionHookName selects the session rewrite hook for this project,
	// empty for none.
	SessionHookName string `json:"sessionHookName,omitempty" yaml:"sessionHookName,omitempty"`
}

// ClassifyPath labels path as API, static asset, or application. API
// prefixes take precedence over static prefixes.
func (p *ProjectRoute) ClassifyPath(path string) PathClass {
	for _, prefix := range p.APIPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return PathAPI
		}
	}
	for _, prefix := range p.StaticPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return PathStatic
		}
	}
	return PathApplication
}

// UpstreamHost renders the upstream API host for the given tenant label.
func (p *ProjectRoute) UpstreamHost(tenant string) string {
	return strings.ReplaceAll(p.APIHost, "{tenant}", tenant)
}

// HasUpstream reports whether an upstream API host is configured.
func (p *ProjectRoute) HasUpstream() bool {
	return p.APIHost != ""
}

// MatchDomain tests domain against the route's patterns and returns the
// tenant label captured by the first wildcard segment, if any.
func (p *ProjectRoute) MatchDomain(domain string) (tenant string, ok bool) {
	for _, pattern := range p.DomainPatterns {
		if tenant, ok = matchDomainPattern(pattern, domain); ok {
			if len(p.TenantAllowList) > 0 && tenant != "" && !slices.Contains(p.TenantAllowList, tenant) {
				continue
			}
			return tenant, true
		}
	}
	return "", false
}

// matchDomainPattern matches a dotted glob pattern against a domain,
// label by label. A "*" label matches exactly one non-empty label; the first
// wildcard's match is returned as the tenant.
func matchDomainPattern(pattern, domain string) (tenant string, ok bool) {
	patternLabels := strings.Split(strings.ToLower(pattern), ".")
	domainLabels := strings.Split(strings.ToLower(domain), ".")
	if len(patternLabels) != len(domainLabels) {
		return "", false
	}
	for i, pl := range patternLabels {
		dl := domainLabels[i]
		if pl == "*" {
			if dl == "" {
				return "", false
			}
			if tenant == "" {
				tenant = dl
			}
			continue
		}
		if pl != dl {
			return "", false
		}
	}
	return tenant, true
}

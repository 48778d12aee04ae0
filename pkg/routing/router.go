package routing

import (
	"errors"
	"net"
	"strings"
)

// ErrNoRoute is returned when no configured project matches a connection.
// This is a configuration error, never silently defaulted to forwarding.
var ErrNoRoute = errors.New("no project route matches")

// Match is the result of a successful resolution.
type Match struct {
	Route *ProjectRoute
	// Tenant is the label captured by the wildcard domain segment, empty
	// when resolution happened by port or the pattern had no wildcard.
	Tenant string
}

// Router resolves inbound connections to project routes. Routes are tested
// in configuration order; the first match wins.
type Router struct {
	routes []*ProjectRoute
	byPort map[int]*ProjectRoute
}

// NewRouter builds a Router over routes. Configuration order is preserved
// and determines precedence for overlapping domain patterns. The first route
// claiming a port wins that port.
func NewRouter(routes []ProjectRoute) *Router {
	r := &Router{byPort: make(map[int]*ProjectRoute, len(routes))}
	for i := range routes {
		route := &routes[i]
		r.routes = append(r.routes, route)
		if route.FixedProxyPort != 0 {
			if _, taken := r.byPort[route.FixedProxyPort]; !taken {
				r.byPort[route.FixedProxyPort] = route
			}
		}
	}
	return r
}

// Routes returns the configured routes in order.
func (r *Router) Routes() []*ProjectRoute {
	return r.routes
}

// ResolveByPort looks up the route listening on the given public port.
func (r *Router) ResolveByPort(port int) (*Match, error) {
	if route, ok := r.byPort[port]; ok {
		return &Match{Route: route}, nil
	}
	return nil, ErrNoRoute
}

// ResolveByHost strips any port suffix from hostHeader and tests the domain
// against each route's patterns in configuration order.
func (r *Router) ResolveByHost(hostHeader string) (*Match, error) {
	domain := stripPort(hostHeader)
	for _, route := range r.routes {
		if tenant, ok := route.MatchDomain(domain); ok {
			return &Match{Route: route, Tenant: tenant}, nil
		}
	}
	return nil, ErrNoRoute
}

// stripPort removes a trailing :port from a host header value.
func stripPort(hostHeader string) string {
	if host, _, err := net.SplitHostPort(hostHeader); err == nil {
		return host
	}
	return strings.TrimSuffix(hostHeader, ":")
}

// Package session provides per-project cookie rewrite hooks invoked around
// proxied traffic. Hooks are pure header transformers: they carry no state,
// have no side effects beyond the headers, and are idempotent when invoked
// twice on the same message.
package session

import (
	"net/http"
	"sync"
)

// Hook transforms cookies on traffic for a single project.
type Hook interface {
	// TransformOutgoingCookies rewrites the client's Cookie header before
	// the request is forwarded upstream.
	TransformOutgoingCookies(header http.Header, req *http.Request)

	// TransformIncomingCookies rewrites the upstream's Set-Cookie headers
	// before the response is sent back to the browser. status is the
	// upstream response status.
	TransformIncomingCookies(header http.Header, status int, req *http.Request)
}

// Registry maps hook names (referenced by route configuration) to hooks.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hook)}
}

// Default returns a Registry with the built-in hooks registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register("backoffice", NewBackofficeHook())
	return r
}

// Register adds or replaces a named hook.
func (r *Registry) Register(name string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = h
}

// Lookup returns the hook registered under name.
func (r *Registry) Lookup(name string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hooks[name]
	return h, ok
}

package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/shubapp/devproxy/pkg/routing"
)

// defaultMaxConns caps concurrent connections per listening port.
const defaultMaxConns = 512

// Server runs one HTTP listener per configured project proxy port, all
// backed by the same Dispatcher.
type Server struct {
	dispatcher *Dispatcher
	router     *routing.Router
	log        *slog.Logger

	// MaxConns limits concurrent connections per listener; 0 uses the
	// default.
	MaxConns int

	mu      sync.Mutex
	servers []*http.Server
}

// NewServer creates a Server for every route with a fixed proxy port.
func NewServer(d *Dispatcher, router *routing.Router, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{dispatcher: d, router: router, log: log}
}

// Start opens a listener per project port and serves until Shutdown. It
// returns after all listeners are bound; serving continues in background
// goroutines.
func (s *Server) Start() error {
	maxConns := s.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int]bool)
	for _, route := range s.router.Routes() {
		port := route.FixedProxyPort
		if port == 0 || seen[port] {
			continue
		}
		seen[port] = true

		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return fmt.Errorf("listen on port %d for project %s: %w", port, route.Name, err)
		}
		listener = netutil.LimitListener(listener, maxConns)

		srv := &http.Server{
			Handler:           s.dispatcher.HandlerForPort(port),
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.servers = append(s.servers, srv)
		s.log.Info("proxy listening", "project", route.Name, "port", port)

		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("proxy listener stopped", "error", err)
			}
		}(srv, listener)
	}
	return nil
}

// Shutdown gracefully stops all listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

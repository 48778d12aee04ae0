// Package admin exposes the control-plane JSON API: mock and scenario
// management, record mode, request logs, metrics, and the /events WebSocket.
// Proxied traffic never flows through this server.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shubapp/devproxy/pkg/events"
	"github.com/shubapp/devproxy/pkg/metrics"
	"github.com/shubapp/devproxy/pkg/proxy"
	"github.com/shubapp/devproxy/pkg/requestlog"
	"github.com/shubapp/devproxy/pkg/routing"
	"github.com/shubapp/devproxy/pkg/scenario"
	"github.com/shubapp/devproxy/pkg/store"
)

// API is the admin API server.
type API struct {
	store      store.Store
	switcher   *scenario.Switcher
	dispatcher *proxy.Dispatcher
	router     *routing.Router
	reqlog     requestlog.Store
	metrics    *metrics.Collector
	events     *events.Broadcaster

	httpServer *http.Server
	port       int
	startTime  time.Time
	version    string
	log        *slog.Logger
}

// Options carries the admin API collaborators. Store and Switcher are
// required; the rest degrade gracefully when nil.
type Options struct {
	Store      store.Store
	Switcher   *scenario.Switcher
	Dispatcher *proxy.Dispatcher
	Router     *routing.Router
	RequestLog requestlog.Store
	Metrics    *metrics.Collector
	Events     *events.Broadcaster
	Version    string
	Log        *slog.Logger
}

// New creates an admin API listening on the given port.
func New(port int, opts Options) *API {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	a := &API{
		store:      opts.Store,
		switcher:   opts.Switcher,
		dispatcher: opts.Dispatcher,
		router:     opts.Router,
		reqlog:     opts.RequestLog,
		metrics:    opts.Metrics,
		events:     opts.Events,
		port:       port,
		version:    opts.Version,
		log:        log,
	}
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// Handler builds the full admin handler, wrapped in request logging and
// permissive CORS. The API is a localhost developer tool; the dashboard and
// editor extensions call it cross-origin.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerRoutes(mux)
	return a.logMiddleware(corsMiddleware(mux))
}

// Start begins serving in the background.
func (a *API) Start() error {
	a.startTime = time.Now()
	a.log.Info("starting admin API", "port", a.port)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("admin API error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the admin server.
func (a *API) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.httpServer.Shutdown(ctx)
}

// Uptime returns seconds since Start.
func (a *API) Uptime() int {
	if a.startTime.IsZero() {
		return 0
	}
	return int(time.Since(a.startTime).Seconds())
}

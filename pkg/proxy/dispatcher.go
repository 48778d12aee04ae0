// Package proxy orchestrates the per-request mock-vs-proxy decision: resolve
// the project route, try the mock matcher against the active rule set, and
// either synthesize the mock response or forward to the project's upstream.
package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shubapp/devproxy/internal/matching"
	"github.com/shubapp/devproxy/pkg/events"
	"github.com/shubapp/devproxy/pkg/httputil"
	"github.com/shubapp/devproxy/pkg/metrics"
	"github.com/shubapp/devproxy/pkg/recording"
	"github.com/shubapp/devproxy/pkg/requestlog"
	"github.com/shubapp/devproxy/pkg/routing"
	"github.com/shubapp/devproxy/pkg/rule"
	"github.com/shubapp/devproxy/pkg/session"
)

const (
	// defaultMaxBodySize caps buffered request and response bodies (10MB).
	defaultMaxBodySize = 10 * 1024 * 1024

	// maxLoggedBody caps body content stored in request log entries.
	maxLoggedBody = 10 * 1024
)

// RuleSource supplies the active rule set snapshot. The dispatcher loads it
// once per request, so an activation mid-request never changes the set a
// match is running against.
type RuleSource interface {
	Current() *rule.ActiveRuleSet
}

// Options configures a Dispatcher.
type Options struct {
	// UpstreamOverride, when set, forwards all traffic to this base URL
	// instead of the per-route upstream host.
	UpstreamOverride string

	// RecordMode starts the dispatcher in record mode.
	RecordMode bool

	// Client is the upstream HTTP client. Defaults to a client with a
	// 30s timeout.
	Client *http.Client
}

// Dispatcher handles every proxied port's traffic.
type Dispatcher struct {
	router   *routing.Router
	matcher  *matching.Matcher
	rules    RuleSource
	recorder *recording.Recorder
	hooks    *session.Registry
	reqlog   requestlog.Logger
	metrics  *metrics.Collector
	events   *events.Broadcaster
	client   *http.Client
	log      *slog.Logger

	upstreamOverride string
	recordMode       atomic.Bool
}

// NewDispatcher wires a Dispatcher. recorder, hooks, reqlog, metrics and
// events may be nil; the corresponding behavior is skipped.
func NewDispatcher(
	router *routing.Router,
	matcher *matching.Matcher,
	rules RuleSource,
	recorder *recording.Recorder,
	hooks *session.Registry,
	reqlog requestlog.Logger,
	collector *metrics.Collector,
	broadcaster *events.Broadcaster,
	log *slog.Logger,
	opts Options,
) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	d := &Dispatcher{
		router:           router,
		matcher:          matcher,
		rules:            rules,
		recorder:         recorder,
		hooks:            hooks,
		reqlog:           reqlog,
		metrics:          collector,
		events:           broadcaster,
		client:           client,
		log:              log,
		upstreamOverride: opts.UpstreamOverride,
	}
	d.recordMode.Store(opts.RecordMode)
	return d
}

// SetRecordMode toggles record mode at runtime.
func (d *Dispatcher) SetRecordMode(on bool) {
	d.recordMode.Store(on)
}

// RecordMode reports whether record mode is on.
func (d *Dispatcher) RecordMode() bool {
	return d.recordMode.Load()
}

// HandlerForPort returns the handler for one listening port. Route
// resolution tries the Host header first and falls back to the port.
func (d *Dispatcher) HandlerForPort(port int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.dispatch(w, r, port)
	})
}

// ServeHTTP resolves purely by Host header.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.dispatch(w, r, 0)
}

func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request, port int) {
	start := time.Now()
	if d.metrics != nil {
		d.metrics.Request()
	}

	entry := &requestlog.Entry{
		Timestamp:   start,
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryString: r.URL.RawQuery,
		Headers:     r.Header,
		RemoteAddr:  r.RemoteAddr,
	}

	match, err := d.resolveRoute(r, port)
	if err != nil {
		d.log.Warn("no project route for request", "host", r.Host, "port", port, "path", r.URL.Path)
		if d.metrics != nil {
			d.metrics.RouteMiss()
		}
		entry.Outcome = requestlog.OutcomeNoRoute
		entry.ResponseStatus = http.StatusNotFound
		entry.Error = "no project route matches host or port"
		httputil.WriteNotFound(w, httputil.CodeRouteNotFound,
			"no project route matches host "+r.Host)
		d.finish(entry, start)
		return
	}
	route := match.Route
	entry.Project = route.Name
	entry.PathClass = string(route.ClassifyPath(r.URL.Path))

	// Buffer the request body so it can be matched against and forwarded.
	var reqBody []byte
	if r.Body != nil {
		reqBody, err = io.ReadAll(io.LimitReader(r.Body, defaultMaxBodySize))
		if err != nil {
			entry.Outcome = requestlog.OutcomeBadGateway
			entry.ResponseStatus = http.StatusBadGateway
			entry.Error = err.Error()
			httputil.WriteBadGateway(w, "error reading request body")
			d.finish(entry, start)
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}
	entry.Body = truncate(string(reqBody), maxLoggedBody)
	entry.BodySize = len(reqBody)

	if resolved := d.matcher.Find(d.rules.Current(), r, reqBody); resolved != nil {
		d.respondMock(w, r, resolved, entry, start)
		return
	}

	upstream := d.upstreamFor(route, match.Tenant)
	if upstream == "" {
		d.log.Debug("no upstream configured", "project", route.Name, "path", r.URL.Path)
		if d.metrics != nil {
			d.metrics.NoBackend()
		}
		entry.Outcome = requestlog.OutcomeNoBackend
		entry.ResponseStatus = http.StatusNotFound
		httputil.WriteNotFound(w, httputil.CodeBackendNotConfigured,
			"no mock matched and no upstream is configured for project "+route.Name)
		d.finish(entry, start)
		return
	}

	d.forward(w, r, route, upstream, reqBody, entry, start)
}

// resolveRoute tries the Host header first, then the listening port.
func (d *Dispatcher) resolveRoute(r *http.Request, port int) (*routing.Match, error) {
	if m, err := d.router.ResolveByHost(r.Host); err == nil {
		return m, nil
	}
	if port != 0 {
		return d.router.ResolveByPort(port)
	}
	return nil, routing.ErrNoRoute
}

// upstreamFor picks the upstream base for a request: the process-wide
// override when set, the route's host template otherwise.
func (d *Dispatcher) upstreamFor(route *routing.ProjectRoute, tenant string) string {
	if d.upstreamOverride != "" {
		return d.upstreamOverride
	}
	if !route.HasUpstream() {
		return ""
	}
	return route.UpstreamHost(tenant)
}

// respondMock writes the resolved rule's response verbatim, after any
// configured delay.
func (d *Dispatcher) respondMock(w http.ResponseWriter, r *http.Request, resolved *rule.ResolvedRule, entry *requestlog.Entry, start time.Time) {
	resp := resolved.Response
	sleepDelay(r.Context(), resp.DelayMs)

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		if httputil.LooksLikeJSON(resp.Body) {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp.Body)

	if d.metrics != nil {
		d.metrics.MockHit()
	}
	d.log.Info("mock hit",
		"mockId", resolved.Rule.ID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status)

	entry.Outcome = requestlog.OutcomeMock
	entry.MatchedMockID = resolved.Rule.ID
	entry.ResponseStatus = status
	entry.ResponseBody = truncate(resp.Body, maxLoggedBody)
	d.finish(entry, start)
}

// forward sends the request to the upstream and streams the response back.
func (d *Dispatcher) forward(w http.ResponseWriter, r *http.Request, route *routing.ProjectRoute, upstream string, reqBody []byte, entry *requestlog.Entry, start time.Time) {
	target, err := buildUpstreamURL(upstream, r)
	if err != nil {
		entry.Outcome = requestlog.OutcomeBadGateway
		entry.ResponseStatus = http.StatusBadGateway
		entry.Error = err.Error()
		httputil.WriteBadGateway(w, "invalid upstream address")
		d.finish(entry, start)
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), bytes.NewReader(reqBody))
	if err != nil {
		entry.Outcome = requestlog.OutcomeBadGateway
		entry.ResponseStatus = http.StatusBadGateway
		entry.Error = err.Error()
		httputil.WriteBadGateway(w, "error building upstream request")
		d.finish(entry, start)
		return
	}
	copyHeaders(outReq.Header, r.Header)
	removeHopByHopHeaders(outReq.Header)
	outReq.Host = target.Host
	outReq.Header.Set("X-Forwarded-For", r.RemoteAddr)
	outReq.Header.Set("X-Forwarded-Host", r.Host)

	hook := d.hookFor(route)
	if hook != nil {
		hook.TransformOutgoingCookies(outReq.Header, r)
	}

	resp, err := d.client.Do(outReq)
	if err != nil {
		d.log.Warn("upstream call failed", "upstream", target.Host, "error", err)
		if d.metrics != nil {
			d.metrics.UpstreamError()
		}
		entry.Outcome = requestlog.OutcomeBadGateway
		entry.ResponseStatus = http.StatusBadGateway
		entry.Error = err.Error()
		httputil.WriteBadGateway(w, "upstream call failed: "+err.Error())
		d.finish(entry, start)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if hook != nil {
		hook.TransformIncomingCookies(resp.Header, resp.StatusCode, r)
	}

	entry.Outcome = requestlog.OutcomeForwarded
	entry.ResponseStatus = resp.StatusCode
	if d.metrics != nil {
		d.metrics.Forward()
	}

	if d.recordMode.Load() && d.recorder != nil {
		d.forwardRecorded(w, r, route, resp, reqBody, entry, start)
		return
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
	d.finish(entry, start)
}

// forwardRecorded buffers the upstream response, persists it as an inactive
// mock rule, and then writes it to the client.
func (d *Dispatcher) forwardRecorded(w http.ResponseWriter, r *http.Request, route *routing.ProjectRoute, resp *http.Response, reqBody []byte, entry *requestlog.Entry, start time.Time) {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		entry.Outcome = requestlog.OutcomeBadGateway
		entry.Error = err.Error()
		entry.ResponseStatus = http.StatusBadGateway
		httputil.WriteBadGateway(w, "error reading upstream response")
		d.finish(entry, start)
		return
	}

	capture := &recording.Capture{
		Project:         route.Name,
		Method:          r.Method,
		Path:            r.URL.Path,
		Query:           r.URL.Query(),
		RequestHeaders:  r.Header,
		RequestBody:     reqBody,
		StatusCode:      resp.StatusCode,
		ResponseHeaders: resp.Header,
		ResponseBody:    respBody,
	}
	if recorded, err := d.recorder.Record(capture); err != nil {
		d.log.Warn("failed to record upstream response", "error", err)
	} else {
		entry.Outcome = requestlog.OutcomeRecorded
		entry.MatchedMockID = recorded.ID
		if d.metrics != nil {
			d.metrics.Recording()
		}
	}

	entry.ResponseBody = truncate(string(respBody), maxLoggedBody)
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
	d.finish(entry, start)
}

func (d *Dispatcher) hookFor(route *routing.ProjectRoute) session.Hook {
	if d.hooks == nil || route.SessionHookName == "" {
		return nil
	}
	hook, ok := d.hooks.Lookup(route.SessionHookName)
	if !ok {
		d.log.Warn("route references unknown session hook",
			"project", route.Name, "hook", route.SessionHookName)
		return nil
	}
	return hook
}

// finish records the entry and publishes it; both are fire-and-forget and
// never block the response path.
func (d *Dispatcher) finish(entry *requestlog.Entry, start time.Time) {
	entry.DurationMs = int(time.Since(start).Milliseconds())
	if d.reqlog != nil {
		d.reqlog.Log(entry)
	}
	if d.events != nil {
		d.events.Publish(events.TopicRequestLog, entry)
	}
}

// buildUpstreamURL joins the upstream base (host or URL) with the inbound
// request's path and query.
func buildUpstreamURL(upstream string, r *http.Request) (*url.URL, error) {
	base := upstream
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + r.URL.Path
	u.RawQuery = r.URL.RawQuery
	return u, nil
}

// sleepDelay waits for the rule's configured delay, aborting early if the
// client disconnects.
func sleepDelay(ctx context.Context, ms int) {
	if ms <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// copyHeaders copies headers from src to dst.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// removeHopByHopHeaders removes headers that should not be forwarded.
func removeHopByHopHeaders(h http.Header) {
	hopByHopHeaders := []string{
		"Connection",
		"Keep-Alive",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"Proxy-Connection",
		"TE",
		"Trailers",
		"Transfer-Encoding",
		"Upgrade",
	}
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}

// Package metrics tracks proxy traffic counters. Counters are atomic, cheap
// to bump on the request path, and exposed two ways: as JSON snapshots pushed
// periodically onto the event stream and as a Prometheus text endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shubapp/devproxy/pkg/events"
)

// Collector accumulates traffic counters for the whole process.
type Collector struct {
	started time.Time

	requests       atomic.Uint64
	mockHits       atomic.Uint64
	forwards       atomic.Uint64
	recordings     atomic.Uint64
	upstreamErrors atomic.Uint64
	routeMisses    atomic.Uint64
	noBackend      atomic.Uint64
}

// NewCollector creates a Collector.
func NewCollector() *Collector {
	return &Collector{started: time.Now()}
}

// Request counts an inbound request.
func (c *Collector) Request() { c.requests.Add(1) }

// MockHit counts a request answered from a mock rule.
func (c *Collector) MockHit() { c.mockHits.Add(1) }

// Forward counts a request forwarded upstream.
func (c *Collector) Forward() { c.forwards.Add(1) }

// Recording counts an auto-recorded mock rule.
func (c *Collector) Recording() { c.recordings.Add(1) }

// UpstreamError counts a failed upstream call.
func (c *Collector) UpstreamError() { c.upstreamErrors.Add(1) }

// RouteMiss counts a request no project route matched.
func (c *Collector) RouteMiss() { c.routeMisses.Add(1) }

// NoBackend counts a miss with no configured upstream.
func (c *Collector) NoBackend() { c.noBackend.Add(1) }

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	UptimeSeconds  float64   `json:"uptimeSeconds"`
	Requests       uint64    `json:"requests"`
	MockHits       uint64    `json:"mockHits"`
	Forwards       uint64    `json:"forwards"`
	Recordings     uint64    `json:"recordings"`
	UpstreamErrors uint64    `json:"upstreamErrors"`
	RouteMisses    uint64    `json:"routeMisses"`
	NoBackend      uint64    `json:"noBackend"`
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	now := time.Now()
	return Snapshot{
		Timestamp:      now,
		UptimeSeconds:  now.Sub(c.started).Seconds(),
		Requests:       c.requests.Load(),
		MockHits:       c.mockHits.Load(),
		Forwards:       c.forwards.Load(),
		Recordings:     c.recordings.Load(),
		UpstreamErrors: c.upstreamErrors.Load(),
		RouteMisses:    c.routeMisses.Load(),
		NoBackend:      c.noBackend.Load(),
	}
}

// PublishLoop pushes a snapshot onto the event stream every interval until
// ctx is canceled.
func (c *Collector) PublishLoop(ctx context.Context, b *events.Broadcaster, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Publish(events.TopicMetrics, c.Snapshot())
		}
	}
}

// Handler serves the counters in Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		snap := c.Snapshot()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		write := func(name, help string, value uint64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n", name, value)
		}
		write("devproxy_requests_total", "Total inbound requests.", snap.Requests)
		write("devproxy_mock_hits_total", "Requests answered from a mock rule.", snap.MockHits)
		write("devproxy_forwards_total", "Requests forwarded upstream.", snap.Forwards)
		write("devproxy_recordings_total", "Mock rules auto-recorded from upstream responses.", snap.Recordings)
		write("devproxy_upstream_errors_total", "Failed upstream calls.", snap.UpstreamErrors)
		write("devproxy_route_misses_total", "Requests no project route matched.", snap.RouteMisses)
		write("devproxy_no_backend_total", "Unmatched requests with no configured upstream.", snap.NoBackend)

		fmt.Fprintf(w, "# HELP devproxy_uptime_seconds Process uptime.\n")
		fmt.Fprintf(w, "# TYPE devproxy_uptime_seconds gauge\n")
		fmt.Fprintf(w, "devproxy_uptime_seconds %g\n", snap.UptimeSeconds)
	})
}

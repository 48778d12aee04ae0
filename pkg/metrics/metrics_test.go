package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubapp/devproxy/pkg/events"
)

func TestSnapshotCounters(t *testing.T) {
	c := NewCollector()
	c.Request()
	c.Request()
	c.MockHit()
	c.Forward()
	c.UpstreamError()
	c.RouteMiss()
	c.NoBackend()
	c.Recording()

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.Requests)
	assert.Equal(t, uint64(1), snap.MockHits)
	assert.Equal(t, uint64(1), snap.Forwards)
	assert.Equal(t, uint64(1), snap.Recordings)
	assert.Equal(t, uint64(1), snap.UpstreamErrors)
	assert.Equal(t, uint64(1), snap.RouteMisses)
	assert.Equal(t, uint64(1), snap.NoBackend)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestHandlerPrometheusFormat(t *testing.T) {
	c := NewCollector()
	c.Request()
	c.MockHit()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, out, "# TYPE devproxy_requests_total counter")
	assert.Contains(t, out, "devproxy_requests_total 1")
	assert.Contains(t, out, "devproxy_mock_hits_total 1")
	assert.Contains(t, out, "devproxy_uptime_seconds")
}

func TestPublishLoopEmitsSnapshots(t *testing.T) {
	c := NewCollector()
	c.Request()

	b := events.NewBroadcaster(nil)
	sub, unsub := b.Subscribe(events.TopicMetrics)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.PublishLoop(ctx, b, 10*time.Millisecond)

	select {
	case ev := <-sub:
		snap, ok := ev.Payload.(Snapshot)
		require.True(t, ok)
		assert.Equal(t, uint64(1), snap.Requests)
	case <-time.After(time.Second):
		t.Fatal("no metrics event received")
	}
}

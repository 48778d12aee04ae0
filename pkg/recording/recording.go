// Package recording turns observed upstream request/response pairs into mock
// rules. Recorded rules are always created inactive: they never reshape
// behavior until an operator activates them through a scenario.
package recording

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/shubapp/devproxy/internal/id"
	"github.com/shubapp/devproxy/pkg/events"
	"github.com/shubapp/devproxy/pkg/rule"
	"github.com/shubapp/devproxy/pkg/store"
)

// skipResponseHeaders are headers that should not be copied into recorded
// rules as they are dynamically generated or managed by the server.
var skipResponseHeaders = map[string]bool{
	"Date":              true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
	"Keep-Alive":        true,
	"Server":            true,
	"X-Powered-By":      true,
	"Age":               true,
	"Expires":           true,
	"Last-Modified":     true,
	"Etag":              true,
	"Set-Cookie":        true,
}

// Capture is one observed request/response pair.
type Capture struct {
	Project         string
	Method          string
	Path            string
	Query           url.Values
	RequestHeaders  http.Header
	RequestBody     []byte
	StatusCode      int
	ResponseHeaders http.Header
	ResponseBody    []byte
}

// ToMockRule converts a capture into an inactive mock rule. The response
// body is stored verbatim so a replay is byte-identical; parsing is only
// attempted to decide whether the payload is structured, for content-type
// defaulting and body matching.
func ToMockRule(c *Capture) *rule.MockRule {
	m := &rule.MockRule{
		ID:     id.Mock(),
		Name:   fmt.Sprintf("Recorded: %s %s", c.Method, c.Path),
		Method: c.Method,
		URL:    rule.URLMatch{Path: c.Path},
		Response: rule.Response{
			StatusCode: c.StatusCode,
			Body:       string(c.ResponseBody),
		},
		Active:    false,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if len(c.ResponseHeaders) > 0 {
		headers := make(map[string]string)
		for key, values := range c.ResponseHeaders {
			if skipResponseHeaders[http.CanonicalHeaderKey(key)] {
				continue
			}
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}
		if len(headers) > 0 {
			m.Response.Headers = headers
		}
	}

	// A mutating request with a structured body becomes part of the match
	// criteria, so replays distinguish different payloads to the same path.
	if rule.MutatingMethod(c.Method) && len(c.RequestBody) > 0 {
		if parsed, err := oj.Parse(c.RequestBody); err == nil {
			m.Body = &rule.BodyMatch{Value: parsed}
		}
	}

	return m
}

// Recorder persists captures as mock rules and announces them.
type Recorder struct {
	store  store.Store
	events *events.Broadcaster
	log    *slog.Logger
}

// NewRecorder creates a Recorder. events may be nil.
func NewRecorder(st store.Store, ev *events.Broadcaster, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Recorder{store: st, events: ev, log: log}
}

// Record converts and stores a capture, publishing a mock-set-changed event.
func (r *Recorder) Record(c *Capture) (*rule.MockRule, error) {
	m := ToMockRule(c)
	created, err := r.store.CreateMock(m)
	if err != nil {
		return nil, fmt.Errorf("persist recorded mock: %w", err)
	}
	r.log.Info("recorded mock from upstream response",
		"mockId", created.ID,
		"method", c.Method,
		"path", c.Path,
		"status", c.StatusCode)
	if r.events != nil {
		r.events.Publish(events.TopicMockSetChanged, map[string]any{
			"action": "recorded",
			"mockId": created.ID,
			"method": c.Method,
			"path":   c.Path,
		})
	}
	return created, nil
}

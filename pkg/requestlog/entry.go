package requestlog

import "time"

// Outcome constants for request logging.
const (
	OutcomeMock       = "mock"
	OutcomeForwarded  = "forwarded"
	OutcomeRecorded   = "recorded"
	OutcomeNoBackend  = "no-backend"
	OutcomeNoRoute    = "no-route"
	OutcomeBadGateway = "bad-gateway"
)

// Entry captures the details of one mocked or proxied request for later
// inspection via the admin API and the event stream.
type Entry struct {
	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	// Project is the resolved project route name (empty if none matched).
	Project string `json:"project,omitempty"`

	// PathClass labels the path as api, static, or application.
	PathClass string `json:"pathClass,omitempty"`

	// Outcome records how the request terminated (mock, forwarded,
	// recorded, no-backend, no-route, bad-gateway).
	Outcome string `json:"outcome"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Path is the request URL path.
	Path string `json:"path"`

	// QueryString is the raw query string.
	QueryString string `json:"queryString,omitempty"`

	// Headers are the request headers (multi-value).
	Headers map[string][]string `json:"headers,omitempty"`

	// Body is the request body content (truncated if > 10KB).
	Body string `json:"body,omitempty"`

	// BodySize is the original body size in bytes.
	BodySize int `json:"bodySize"`

	// RemoteAddr is the client address.
	RemoteAddr string `json:"remoteAddr"`

	// MatchedMockID is the matched rule's id (empty if no match).
	MatchedMockID string `json:"matchedMockId,omitempty"`

	// ResponseStatus is the status code returned to the client.
	ResponseStatus int `json:"responseStatus"`

	// ResponseBody is the response body content (truncated if > 10KB).
	ResponseBody string `json:"responseBody,omitempty"`

	// DurationMs is the request processing time in milliseconds.
	DurationMs int `json:"durationMs"`

	// Error contains the error message if the request failed.
	Error string `json:"error,omitempty"`
}

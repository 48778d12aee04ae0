// Package requestlog stores the history of mocked and proxied requests in a
// bounded in-memory ring, queryable via the admin API and subscribable for
// real-time streaming.
package requestlog

// Package matching implements the multi-criteria mock matching algorithm.
//
// A request is tested against each rule's criteria in a fixed order, short
// circuiting on the first failure: method, URL (exact path or pattern),
// headers, query parameters, structural body equality, JSONPath conditions,
// and finally an optional condition expression. Absent criteria are
// vacuously satisfied. Rules are scanned in priority order (descending,
// creation-order tie-break), and the first fully matching rule wins.
//
// Malformed rules (invalid pattern, JSONPath, or condition) are reported to
// the caller as errors so they can be logged and skipped; they never abort
// the matching pass.
package matching

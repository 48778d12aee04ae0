// Package id generates the identifiers used for mock rules, scenarios,
// request log entries, and events. All IDs are random; prefixed forms
// (mock_, scn_) exist purely to make IDs self-describing in logs and
// API payloads.
package id

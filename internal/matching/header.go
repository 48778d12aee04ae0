package matching

import (
	"net/http"
	"strings"
)

// MatchMethod checks if the request method matches.
func MatchMethod(expected, actual string) bool {
	return strings.EqualFold(expected, actual)
}

// MatchHeader checks if a specific header matches exactly.
// Header names are case-insensitive (per HTTP spec).
func MatchHeader(name, expectedValue string, headers http.Header) bool {
	return headers.Get(name) == expectedValue
}

// MatchHeaders checks if all specified headers match. The expected set is a
// subset requirement: extra request headers are ignored. Returns true only
// if ALL expected headers match.
func MatchHeaders(expected map[string]string, headers http.Header) bool {
	for name, value := range expected {
		if !MatchHeader(name, value, headers) {
			return false
		}
	}
	return true
}

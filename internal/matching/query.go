package matching

import (
	"net/url"
)

// MatchQueryParam checks if a specific query parameter matches exactly.
func MatchQueryParam(name, expectedValue string, params url.Values) bool {
	return params.Get(name) == expectedValue
}

// MatchQueryParams checks if all specified query parameters match. Subset
// requirement: extra request parameters are ignored.
func MatchQueryParams(expected map[string]string, params url.Values) bool {
	for name, value := range expected {
		if !MatchQueryParam(name, value, params) {
			return false
		}
	}
	return true
}

// Package httputil provides shared helpers for the JSON responses the proxy
// and admin API emit, including the stable machine-readable error codes of
// the error taxonomy.
package httputil

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"
)

// Stable error codes surfaced in JSON error bodies.
const (
	CodeRouteNotFound        = "route_not_found"
	CodeBackendNotConfigured = "backend_not_configured"
	CodeBadGateway           = "bad_gateway"
	CodeUnknownScenario      = "unknown_scenario"
	CodeCyclicInheritance    = "cyclic_inheritance"
	CodeValidationFailed     = "validation_failed"
	CodeNotFound             = "not_found"
	CodeDuplicateID          = "duplicate_id"
	CodeNotReady             = "not_ready"
	CodeInternalError        = "internal_error"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error body with a stable machine-readable code
// and a human-readable message.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errCode,
		"message": message,
	})
}

// WriteErrorWithDetails writes a JSON error body with additional details,
// for validation errors carrying field-specific information.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	WriteJSON(w, status, map[string]any{
		"error":   errCode,
		"message": message,
		"details": details,
	})
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response with the created resource.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteNotFound writes a 404 Not Found error response.
func WriteNotFound(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusNotFound, errCode, message)
}

// WriteBadRequest writes a 400 Bad Request error response.
func WriteBadRequest(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusBadRequest, errCode, message)
}

// WriteBadGateway writes a 502 Bad Gateway error response.
func WriteBadGateway(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeBadGateway, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// LooksLikeJSON reports whether body plausibly holds a JSON document, for
// defaulting the content type when a rule does not specify one.
func LooksLikeJSON(body string) bool {
	trimmed := strings.TrimLeftFunc(body, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	switch trimmed[0] {
	case '{', '[', '"':
		return true
	}
	return trimmed == "true" || trimmed == "false" || trimmed == "null" ||
		(trimmed[0] >= '0' && trimmed[0] <= '9') || trimmed[0] == '-'
}

package rule

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/ohler55/ojg/jp"
)

// ValidationError represents a validation failure with context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// validHTTPMethods are the allowed HTTP methods.
var validHTTPMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Validate checks if the MockRule is well-formed.
func (m *MockRule) Validate() error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}

	if m.Method != "" && !validHTTPMethods[m.Method] {
		return &ValidationError{Field: "method", Message: fmt.Sprintf("invalid HTTP method: %s", m.Method)}
	}

	if m.URL.IsZero() {
		return &ValidationError{Field: "url", Message: "one of path or pattern is required"}
	}
	if m.URL.Path != "" && m.URL.Pattern != "" {
		return &ValidationError{Field: "url", Message: "path and pattern are mutually exclusive"}
	}
	if m.URL.Pattern != "" {
		if _, err := regexp.Compile(m.URL.Pattern); err != nil {
			return &ValidationError{Field: "url.pattern", Message: fmt.Sprintf("invalid pattern: %v", err)}
		}
	}

	for path := range m.BodyJSONPath {
		if _, err := jp.ParseString(path); err != nil {
			return &ValidationError{Field: "bodyJsonPath", Message: fmt.Sprintf("invalid JSONPath %q: %v", path, err)}
		}
	}

	if m.Condition != "" {
		if _, err := expr.Compile(m.Condition); err != nil {
			return &ValidationError{Field: "condition", Message: fmt.Sprintf("invalid expression: %v", err)}
		}
	}

	if m.Response.StatusCode < 100 || m.Response.StatusCode > 599 {
		return &ValidationError{Field: "response.statusCode", Message: fmt.Sprintf("invalid status code: %d", m.Response.StatusCode)}
	}

	return nil
}

// Validate checks if the Scenario is well-formed. Parent-graph acyclicity is
// a whole-set property checked by the scenario switcher, not here.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if s.Parent == s.ID {
		return &ValidationError{Field: "parent", Message: "scenario cannot be its own parent"}
	}
	seen := make(map[string]bool, len(s.Mocks))
	for i, m := range s.Mocks {
		if m.MockID == "" {
			return &ValidationError{Field: fmt.Sprintf("mocks[%d].mockId", i), Message: "mockId is required"}
		}
		if seen[m.MockID] {
			return &ValidationError{Field: fmt.Sprintf("mocks[%d].mockId", i), Message: fmt.Sprintf("duplicate mockId: %s", m.MockID)}
		}
		seen[m.MockID] = true
	}
	return nil
}

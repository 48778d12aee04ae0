// Package rule provides the MockRule and Scenario types shared by the
// matcher, the scenario switcher, and the rule store.
package rule

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// MockRule is a stored request-matching criterion plus a canned response.
type MockRule struct {
	// ID is a unique identifier for the rule (prefixed: mock_xxx)
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable name for the rule
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description is an optional longer description
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Method is the HTTP verb to match. Empty matches any verb.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// URL is the path criterion. Exactly one of Path or Pattern must be set.
	URL URLMatch `json:"url" yaml:"url"`

	// Headers maps header name -> required value. The rule's header set is a
	// subset requirement: extra request headers are ignored, names are
	// case-insensitive, values compared exactly.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Query maps query-parameter name -> required value (subset, exact).
	Query map[string]string `json:"query,omitempty" yaml:"query,omitempty"`

	// Body is an optional structural-equality criterion against the parsed
	// request body. Applies only to mutating methods (POST, PUT, PATCH).
	Body *BodyMatch `json:"body,omitempty" yaml:"body,omitempty"`

	// BodyJSONPath maps JSONPath expressions to expected values. All
	// conditions must hold for the rule to match.
	BodyJSONPath map[string]any `json:"bodyJsonPath,omitempty" yaml:"bodyJsonPath,omitempty"`

	// Condition is an optional expression evaluated against the request
	// (method, path, headers, query). A compile or eval failure makes the
	// rule a non-match for that request.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Response is the canned response returned on a match.
	Response Response `json:"response" yaml:"response"`

	// Priority determines matching order. Higher priority rules are
	// evaluated first; ties break by CreatedAt ascending.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Active indicates whether this rule participates in matching. Mutated
	// only by the scenario switcher.
	Active bool `json:"active" yaml:"active"`

	// CreatedAt is when the rule was created
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	// UpdatedAt is when the rule was last modified
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a copy of the rule that can be mutated independently of the
// receiver. Criterion maps and response headers are copied; the parsed body
// criterion value is shared, it is never mutated after creation.
func (m *MockRule) Clone() *MockRule {
	out := *m
	if m.Headers != nil {
		out.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			out.Headers[k] = v
		}
	}
	if m.Query != nil {
		out.Query = make(map[string]string, len(m.Query))
		for k, v := range m.Query {
			out.Query[k] = v
		}
	}
	if m.BodyJSONPath != nil {
		out.BodyJSONPath = make(map[string]any, len(m.BodyJSONPath))
		for k, v := range m.BodyJSONPath {
			out.BodyJSONPath[k] = v
		}
	}
	if m.Body != nil {
		b := *m.Body
		out.Body = &b
	}
	if m.Response.Headers != nil {
		out.Response.Headers = make(map[string]string, len(m.Response.Headers))
		for k, v := range m.Response.Headers {
			out.Response.Headers[k] = v
		}
	}
	return &out
}

// URLMatch is the path criterion of a rule: a tagged union of an exact path
// and a regular-expression pattern. Matched against the request path with
// the query string stripped.
type URLMatch struct {
	// Path is an exact path requiring byte-equality.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Pattern is an RE2 regular expression tested against the path.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// IsZero reports whether neither form is set.
func (u URLMatch) IsZero() bool {
	return u.Path == "" && u.Pattern == ""
}

// BodyMatch holds the parsed-body structural-equality criterion. Value is
// the decoded JSON document the request body must equal.
type BodyMatch struct {
	Value any `json:"value" yaml:"value"`
}

// MutatingMethod reports whether method carries a request body the body
// criterion applies to.
func MutatingMethod(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// Response specifies the canned HTTP response to return.
type Response struct {
	StatusCode int               `json:"statusCode" yaml:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       string            `json:"body" yaml:"body"`
	DelayMs    int               `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

// UnmarshalJSON handles the Body field accepting both a string and a JSON
// object/array. When body is a JSON object (e.g., {"id": 1}) or array, it is
// stored as its raw JSON text. This lets config files use body: {"id": 1}
// instead of body: '{"id": 1}'.
func (r *Response) UnmarshalJSON(data []byte) error {
	var proxy struct {
		StatusCode int               `json:"statusCode"`
		Headers    map[string]string `json:"headers,omitempty"`
		Body       json.RawMessage   `json:"body"`
		DelayMs    int               `json:"delayMs,omitempty"`
	}
	if err := json.Unmarshal(data, &proxy); err != nil {
		return err
	}

	r.StatusCode = proxy.StatusCode
	r.Headers = proxy.Headers
	r.DelayMs = proxy.DelayMs

	if len(proxy.Body) == 0 {
		r.Body = ""
		return nil
	}

	// String body is the common case
	var s string
	if err := json.Unmarshal(proxy.Body, &s); err == nil {
		r.Body = s
		return nil
	}

	// Object, array, number, or boolean: keep the raw JSON text
	r.Body = string(proxy.Body)
	return nil
}

// UnmarshalYAML handles the Body field accepting both a string and a YAML
// mapping/sequence, which is re-encoded as a JSON string.
func (r *Response) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping node, got %d", value.Kind)
	}

	type responseAlias Response
	var alias responseAlias

	var bodyNode *yaml.Node
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "body" {
			orig := *value.Content[i+1]
			value.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Value: "", Tag: "!!str"}
			if err := value.Decode(&alias); err != nil {
				return err
			}
			*value.Content[i+1] = orig
			bodyNode = value.Content[i+1]
			break
		}
	}

	if bodyNode == nil {
		if err := value.Decode(&alias); err != nil {
			return err
		}
		*r = Response(alias)
		return nil
	}

	*r = Response(alias)

	if bodyNode.Kind == yaml.ScalarNode {
		r.Body = bodyNode.Value
		return nil
	}

	var bodyObj any
	if err := bodyNode.Decode(&bodyObj); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	bodyJSON, err := json.Marshal(bodyObj)
	if err != nil {
		return fmt.Errorf("failed to marshal body to JSON: %w", err)
	}
	r.Body = string(bodyJSON)
	return nil
}

// ResponseOverride is a partial replacement of a rule's Response, applied
// only while the owning scenario is active. Nil fields leave the base
// response field untouched.
type ResponseOverride struct {
	StatusCode *int              `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       *string           `json:"body,omitempty" yaml:"body,omitempty"`
	DelayMs    *int              `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

// Apply returns base with the override's non-nil fields patched in.
// Headers replace the base header map wholesale when present.
func (o *ResponseOverride) Apply(base Response) Response {
	if o == nil {
		return base
	}
	out := base
	if o.StatusCode != nil {
		out.StatusCode = *o.StatusCode
	}
	if o.Headers != nil {
		out.Headers = o.Headers
	}
	if o.Body != nil {
		out.Body = *o.Body
	}
	if o.DelayMs != nil {
		out.DelayMs = *o.DelayMs
	}
	return out
}

// Scenario is a named, orderable bundle of rule activations representing one
// backend "world". At most one scenario is active process-wide at any time.
type Scenario struct {
	// ID is a unique identifier for the scenario (prefixed: scn_xxx)
	ID string `json:"id" yaml:"id"`

	// Name is the display name
	Name string `json:"name" yaml:"name"`

	// Description is an optional longer description
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Tags are free-form labels used for filtering in listings
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Parent optionally references another scenario. Inheritance is
	// single-parent and must be acyclic.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`

	// Mocks is the ordered list of rule activations. An entry for a mockId
	// already activated by an ancestor replaces that ancestor's entry.
	Mocks []ScenarioMock `json:"mocks" yaml:"mocks"`

	// Variables are free-form key/values carried along on Clone.
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// CreatedAt is when the scenario was created
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	// UpdatedAt is when the scenario was last modified
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// ScenarioMock references a rule plus an optional partial response override.
type ScenarioMock struct {
	MockID   string            `json:"mockId" yaml:"mockId"`
	Override *ResponseOverride `json:"responseOverride,omitempty" yaml:"responseOverride,omitempty"`
}

// Clone returns a deep copy of the scenario's mocks, variables, and tags
// under a fresh identity. The caller assigns ID, Name and timestamps.
func (s *Scenario) Clone() *Scenario {
	out := &Scenario{
		Description: s.Description,
		Parent:      s.Parent,
	}
	if len(s.Tags) > 0 {
		out.Tags = append([]string(nil), s.Tags...)
	}
	if len(s.Variables) > 0 {
		out.Variables = make(map[string]string, len(s.Variables))
		for k, v := range s.Variables {
			out.Variables[k] = v
		}
	}
	out.Mocks = make([]ScenarioMock, len(s.Mocks))
	for i, m := range s.Mocks {
		out.Mocks[i] = ScenarioMock{MockID: m.MockID}
		if m.Override != nil {
			ov := *m.Override
			if m.Override.Headers != nil {
				ov.Headers = make(map[string]string, len(m.Override.Headers))
				for k, v := range m.Override.Headers {
					ov.Headers[k] = v
				}
			}
			out.Mocks[i].Override = &ov
		}
	}
	return out
}

// Copy returns a deep copy of the scenario, identity and timestamps
// included.
func (s *Scenario) Copy() *Scenario {
	out := s.Clone()
	out.ID = s.ID
	out.Name = s.Name
	out.CreatedAt = s.CreatedAt
	out.UpdatedAt = s.UpdatedAt
	return out
}

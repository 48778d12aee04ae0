package rule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestResponseUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBody string
	}{
		{
			name:     "string body",
			input:    `{"statusCode": 200, "body": "hello"}`,
			wantBody: "hello",
		},
		{
			name:     "object body",
			input:    `{"statusCode": 200, "body": {"id": 1, "name": "A"}}`,
			wantBody: `{"id": 1, "name": "A"}`,
		},
		{
			name:     "array body",
			input:    `{"statusCode": 200, "body": [1, 2, 3]}`,
			wantBody: `[1, 2, 3]`,
		},
		{
			name:     "missing body",
			input:    `{"statusCode": 204}`,
			wantBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Response
			require.NoError(t, json.Unmarshal([]byte(tt.input), &r))
			assert.Equal(t, tt.wantBody, r.Body)
		})
	}
}

func TestResponseUnmarshalYAML(t *testing.T) {
	input := `
statusCode: 201
headers:
  X-Request-Id: abc
body:
  id: 7
delayMs: 150
`
	var r Response
	require.NoError(t, yaml.Unmarshal([]byte(input), &r))
	assert.Equal(t, 201, r.StatusCode)
	assert.Equal(t, "abc", r.Headers["X-Request-Id"])
	assert.JSONEq(t, `{"id":7}`, r.Body)
	assert.Equal(t, 150, r.DelayMs)
}

func TestResponseOverrideApply(t *testing.T) {
	base := Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"ok":true}`,
		DelayMs:    10,
	}

	t.Run("nil override returns base", func(t *testing.T) {
		var o *ResponseOverride
		assert.Equal(t, base, o.Apply(base))
	})

	t.Run("partial patch", func(t *testing.T) {
		status := 500
		body := `{"error":"boom"}`
		o := &ResponseOverride{StatusCode: &status, Body: &body}
		got := o.Apply(base)
		assert.Equal(t, 500, got.StatusCode)
		assert.Equal(t, body, got.Body)
		assert.Equal(t, base.Headers, got.Headers)
		assert.Equal(t, 10, got.DelayMs)
	})

	t.Run("headers replace wholesale", func(t *testing.T) {
		o := &ResponseOverride{Headers: map[string]string{"X-Env": "err"}}
		got := o.Apply(base)
		assert.Equal(t, map[string]string{"X-Env": "err"}, got.Headers)
	})
}

func TestMockRuleValidate(t *testing.T) {
	valid := func() *MockRule {
		return &MockRule{
			ID:       "mock_0011223344556677",
			Method:   "GET",
			URL:      URLMatch{Path: "/api/users/1"},
			Response: Response{StatusCode: 200},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*MockRule)
		wantErr string
	}{
		{"valid", func(m *MockRule) {}, ""},
		{"missing id", func(m *MockRule) { m.ID = "" }, "id"},
		{"bad method", func(m *MockRule) { m.Method = "FETCH" }, "method"},
		{"no url", func(m *MockRule) { m.URL = URLMatch{} }, "url"},
		{"both url forms", func(m *MockRule) { m.URL.Pattern = "^/x$" }, "url"},
		{"bad pattern", func(m *MockRule) { m.URL = URLMatch{Pattern: "[invalid"} }, "url.pattern"},
		{"bad jsonpath", func(m *MockRule) { m.BodyJSONPath = map[string]any{"$[": 1} }, "bodyJsonPath"},
		{"bad condition", func(m *MockRule) { m.Condition = "method ==" }, "condition"},
		{"bad status", func(m *MockRule) { m.Response.StatusCode = 0 }, "response.statusCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestScenarioValidate(t *testing.T) {
	s := &Scenario{ID: "scn_1", Name: "errors", Mocks: []ScenarioMock{{MockID: "mock_a"}}}
	assert.NoError(t, s.Validate())

	s.Parent = "scn_1"
	assert.Error(t, s.Validate())
	s.Parent = ""

	s.Mocks = append(s.Mocks, ScenarioMock{MockID: "mock_a"})
	assert.Error(t, s.Validate())
}

func TestScenarioClone(t *testing.T) {
	status := 404
	src := &Scenario{
		ID:        "scn_src",
		Name:      "base",
		Parent:    "scn_root",
		Tags:      []string{"error-cases"},
		Variables: map[string]string{"tenant": "coffee"},
		Mocks: []ScenarioMock{
			{MockID: "mock_a", Override: &ResponseOverride{StatusCode: &status, Headers: map[string]string{"X": "1"}}},
		},
		CreatedAt: time.Now(),
	}

	got := src.Clone()
	require.Len(t, got.Mocks, 1)
	assert.Equal(t, "scn_root", got.Parent)
	assert.Equal(t, src.Tags, got.Tags)
	assert.Equal(t, src.Variables, got.Variables)

	// Deep copy: mutating the clone must not touch the source
	*got.Mocks[0].Override.StatusCode = 500
	got.Mocks[0].Override.Headers["X"] = "2"
	got.Variables["tenant"] = "beep"
	assert.Equal(t, 404, *src.Mocks[0].Override.StatusCode)
	assert.Equal(t, "1", src.Mocks[0].Override.Headers["X"])
	assert.Equal(t, "coffee", src.Variables["tenant"])
}

func TestMutatingMethod(t *testing.T) {
	assert.True(t, MutatingMethod("POST"))
	assert.True(t, MutatingMethod("PUT"))
	assert.True(t, MutatingMethod("PATCH"))
	assert.False(t, MutatingMethod("GET"))
	assert.False(t, MutatingMethod("DELETE"))
}

package matching

import (
	"encoding/json"
	"reflect"

	"github.com/ohler55/ojg/jp"
)

// MatchJSONPath evaluates JSONPath conditions against a JSON body. All
// conditions must hold. A body that is not valid JSON is a plain non-match;
// an unparsable JSONPath expression is a malformed rule and returns an error.
func MatchJSONPath(conditions map[string]any, body []byte) (bool, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		// Not valid JSON - doesn't match, but isn't a rule defect
		return false, nil
	}

	for path, expected := range conditions {
		expr, err := jp.ParseString(path)
		if err != nil {
			return false, err
		}
		if !matchSingleJSONPath(expr, expected, data) {
			return false, nil
		}
	}
	return true, nil
}

// matchSingleJSONPath evaluates a single parsed JSONPath condition.
func matchSingleJSONPath(expr jp.Expr, expected any, data any) bool {
	results := expr.Get(data)
	if len(results) == 0 {
		return false
	}

	// A nil expectation asserts mere existence of the path
	if expected == nil {
		return true
	}

	for _, result := range results {
		if jsonValueEqual(result, expected) {
			return true
		}
	}
	return false
}

// jsonValueEqual compares two values with JSON number semantics: ints and
// floats that denote the same number compare equal.
func jsonValueEqual(a, b any) bool {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

package matching

import (
	"fmt"
	"net/http"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// conditionCache compiles and caches rule condition expressions.
type conditionCache struct {
	programs *lru.Cache[string, *vm.Program]
}

func newConditionCache(size int) *conditionCache {
	programs, _ := lru.New[string, *vm.Program](size)
	return &conditionCache{programs: programs}
}

// eval runs a condition expression against the request. The environment
// exposes method, path, headers (first value, canonical names), and query
// (first value). A compile error marks the rule malformed; an eval error or
// non-boolean result is likewise reported so the rule is skipped, not the
// request aborted.
func (c *conditionCache) eval(condition string, r *http.Request) (bool, error) {
	program, ok := c.programs.Get(condition)
	if !ok {
		var err error
		program, err = expr.Compile(condition, expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("compile condition: %w", err)
		}
		c.programs.Add(condition, program)
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	env := map[string]any{
		"method":  r.Method,
		"path":    r.URL.Path,
		"headers": headers,
		"query":   query,
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition: %w", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not evaluate to a boolean")
	}
	return result, nil
}

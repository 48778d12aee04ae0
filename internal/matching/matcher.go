// Package matching provides the per-request rule matching algorithm.
package matching

import (
	"log/slog"
	"net/http"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shubapp/devproxy/pkg/rule"
)

// patternCacheSize bounds the compiled-regex and compiled-condition caches.
const patternCacheSize = 256

// Matcher evaluates requests against an ActiveRuleSet. Criteria are checked
// in a fixed order, short-circuiting on the first failure:
// method, URL, headers, query, body, JSONPath, condition.
type Matcher struct {
	log        *slog.Logger
	patterns   *lru.Cache[string, *regexp.Regexp]
	conditions *conditionCache
}

// New creates a Matcher. log may be nil.
func New(log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	patterns, _ := lru.New[string, *regexp.Regexp](patternCacheSize)
	return &Matcher{
		log:        log,
		patterns:   patterns,
		conditions: newConditionCache(patternCacheSize),
	}
}

// Find returns the first rule in set that fully matches r, or nil. Rules are
// scanned in set order (priority descending, creation order on ties).
// A malformed rule is logged and skipped: matcher failures never abort the
// request.
func (m *Matcher) Find(set *rule.ActiveRuleSet, r *http.Request, body []byte) *rule.ResolvedRule {
	for _, rr := range set.Rules {
		ok, err := m.Matches(rr.Rule, r, body)
		if err != nil {
			m.log.Warn("skipping malformed rule",
				"rule_id", rr.Rule.ID,
				"error", err,
			)
			continue
		}
		if ok {
			return rr
		}
	}
	return nil
}

// Matches reports whether a single rule matches the request. The returned
// error is non-nil only when the rule itself is malformed (invalid pattern,
// JSONPath, or condition); the caller treats that as a non-match.
func (m *Matcher) Matches(mr *rule.MockRule, r *http.Request, body []byte) (bool, error) {
	if mr.Method != "" && !MatchMethod(mr.Method, r.Method) {
		return false, nil
	}

	// r.URL.Path carries no query string, satisfying the stripped-path
	// requirement for both exact and pattern matching.
	ok, err := m.matchURL(mr.URL, r.URL.Path)
	if err != nil || !ok {
		return false, err
	}

	if !MatchHeaders(mr.Headers, r.Header) {
		return false, nil
	}

	if !MatchQueryParams(mr.Query, r.URL.Query()) {
		return false, nil
	}

	if mr.Body != nil && rule.MutatingMethod(r.Method) {
		ok, err := MatchBodyStructural(mr.Body.Value, body)
		if err != nil || !ok {
			return false, err
		}
	}

	if len(mr.BodyJSONPath) > 0 {
		ok, err := MatchJSONPath(mr.BodyJSONPath, body)
		if err != nil || !ok {
			return false, err
		}
	}

	if mr.Condition != "" {
		ok, err := m.conditions.eval(mr.Condition, r)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

// matchURL applies the tagged-union URL criterion.
func (m *Matcher) matchURL(u rule.URLMatch, path string) (bool, error) {
	if u.Path != "" {
		return u.Path == path, nil
	}
	re, err := m.compile(u.Pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(path), nil
}

// compile returns the compiled regex for pattern, consulting the LRU cache.
func (m *Matcher) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.patterns.Add(pattern, re)
	return re, nil
}

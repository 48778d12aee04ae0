package rule

import "sort"

// ResolvedRule is a rule paired with its effective response after scenario
// overrides have been applied.
type ResolvedRule struct {
	Rule     *MockRule
	Response Response
}

// ActiveRuleSet is the materialized, currently effective set of rules derived
// from the active scenario's inheritance chain. It is immutable: a scenario
// switch builds a brand-new set and swaps a pointer; no set is ever mutated
// while requests may be reading it.
type ActiveRuleSet struct {
	// ScenarioID is the scenario this set was materialized from ("" = none).
	ScenarioID string
	// Version increments on every swap, for observability.
	Version uint64
	// Rules are ordered priority descending, CreatedAt ascending on ties.
	Rules []*ResolvedRule

	byID map[string]*ResolvedRule
}

// NewActiveRuleSet builds a set from resolved rules, sorting them into
// matching order: priority descending, ties broken by creation time
// ascending (first-created wins).
func NewActiveRuleSet(scenarioID string, version uint64, rules []*ResolvedRule) *ActiveRuleSet {
	sorted := append([]*ResolvedRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rule.Priority != sorted[j].Rule.Priority {
			return sorted[i].Rule.Priority > sorted[j].Rule.Priority
		}
		return sorted[i].Rule.CreatedAt.Before(sorted[j].Rule.CreatedAt)
	})

	byID := make(map[string]*ResolvedRule, len(sorted))
	for _, rr := range sorted {
		byID[rr.Rule.ID] = rr
	}

	return &ActiveRuleSet{
		ScenarioID: scenarioID,
		Version:    version,
		Rules:      sorted,
		byID:       byID,
	}
}

// EmptyRuleSet returns a set with no rules and no scenario.
func EmptyRuleSet() *ActiveRuleSet {
	return NewActiveRuleSet("", 0, nil)
}

// Len returns the number of rules in the set.
func (s *ActiveRuleSet) Len() int {
	return len(s.Rules)
}

// Lookup returns the resolved rule for id, or nil.
func (s *ActiveRuleSet) Lookup(id string) *ResolvedRule {
	return s.byID[id]
}

// MockIDs returns the ids of all rules in the set, in matching order.
func (s *ActiveRuleSet) MockIDs() []string {
	ids := make([]string, len(s.Rules))
	for i, rr := range s.Rules {
		ids[i] = rr.Rule.ID
	}
	return ids
}

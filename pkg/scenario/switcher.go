// Package scenario holds the process-wide scenario state machine. The
// Switcher materializes the active scenario's inheritance chain into an
// immutable rule set and swaps it atomically, so request handling always
// observes either the fully-old or fully-new set.
package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shubapp/devproxy/internal/id"
	"github.com/shubapp/devproxy/pkg/events"
	"github.com/shubapp/devproxy/pkg/rule"
	"github.com/shubapp/devproxy/pkg/store"
)

var (
	// ErrNotInitialized is returned when the switcher is used before
	// Initialize has completed.
	ErrNotInitialized = errors.New("scenario switcher not initialized")
	// ErrUnknownScenario is returned when a scenario id does not exist.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrCyclicInheritance is returned when a scenario's parent chain
	// revisits an ancestor.
	ErrCyclicInheritance = errors.New("cyclic scenario inheritance")
)

// Publisher is the event sink the switcher notifies on every switch.
type Publisher interface {
	Publish(topic string, payload any)
}

// SwitchEvent is the payload published on every successful activation.
type SwitchEvent struct {
	ScenarioID   string `json:"scenarioId"`
	ScenarioName string `json:"scenarioName,omitempty"`
	RuleCount    int    `json:"ruleCount"`
	Version      uint64 `json:"version"`
}

// Switcher resolves scenario inheritance and publishes the active rule set.
// Activations are serialized; readers use Current, which is lock-free.
type Switcher struct {
	store  store.Store
	events Publisher
	log    *slog.Logger

	mu      sync.Mutex // serializes Initialize and Activate
	version uint64     // guarded by mu, increments on each committed swap
	ready   atomic.Bool
	current atomic.Pointer[rule.ActiveRuleSet]
}

// New creates a Switcher in the Uninitialized state. events may be nil.
func New(st store.Store, ev Publisher, log *slog.Logger) *Switcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Switcher{store: st, events: ev, log: log}
	s.current.Store(rule.EmptyRuleSet())
	return s
}

// Initialize loads all scenarios, validates the parent graph is acyclic, and
// restores the previously-persisted active scenario. It fails fast on cycles.
func (s *Switcher) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scenarios, err := s.store.ListScenarios()
	if err != nil {
		return fmt.Errorf("list scenarios: %w", err)
	}
	byID := make(map[string]*rule.Scenario, len(scenarios))
	for _, sc := range scenarios {
		byID[sc.ID] = sc
	}
	for _, sc := range scenarios {
		if err := checkAcyclic(byID, sc.ID); err != nil {
			return err
		}
	}

	if err := s.restoreLocked(byID); err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

// restoreLocked re-activates the persisted active scenario, or installs the
// empty set when none is persisted or it no longer exists.
func (s *Switcher) restoreLocked(byID map[string]*rule.Scenario) error {
	activeID, err := s.store.ActiveScenarioID()
	if err != nil {
		return fmt.Errorf("restore active scenario: %w", err)
	}
	if activeID == "" {
		s.current.Store(rule.EmptyRuleSet())
		return nil
	}
	if _, ok := byID[activeID]; !ok {
		s.log.Warn("persisted active scenario no longer exists, starting with none",
			"scenarioId", activeID)
		s.current.Store(rule.EmptyRuleSet())
		return nil
	}
	return s.activateLocked(activeID)
}

// checkAcyclic walks the parent chain of start and errors if it revisits a
// scenario.
func checkAcyclic(byID map[string]*rule.Scenario, start string) error {
	seen := make(map[string]bool)
	for cur := start; cur != ""; {
		if seen[cur] {
			return fmt.Errorf("scenario %s: %w", start, ErrCyclicInheritance)
		}
		seen[cur] = true
		sc, ok := byID[cur]
		if !ok {
			return fmt.Errorf("scenario %s references parent %s: %w", start, cur, ErrUnknownScenario)
		}
		cur = sc.Parent
	}
	return nil
}

// Ready reports whether Initialize has completed.
func (s *Switcher) Ready() bool {
	return s.ready.Load()
}

// Current returns the active rule set snapshot. Callers keep matching
// against the snapshot they loaded even if a swap happens mid-request.
func (s *Switcher) Current() *rule.ActiveRuleSet {
	if set := s.current.Load(); set != nil {
		return set
	}
	return rule.EmptyRuleSet()
}

// ActiveScenarioID returns the id of the active scenario, "" for none.
func (s *Switcher) ActiveScenarioID() string {
	return s.Current().ScenarioID
}

// Activate recomputes the effective rule set for scenarioID and swaps it in.
// The swap is all-or-nothing: any resolution failure leaves the previous set
// intact. Concurrent calls are serialized, last-committed-wins.
func (s *Switcher) Activate(scenarioID string) error {
	if !s.ready.Load() {
		return ErrNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activateLocked(scenarioID)
}

// Deactivate switches to "no scenario": an empty rule set.
func (s *Switcher) Deactivate() error {
	return s.Activate("")
}

func (s *Switcher) activateLocked(scenarioID string) error {
	var (
		resolved []*rule.ResolvedRule
		name     string
		err      error
	)
	if scenarioID != "" {
		resolved, name, err = s.resolve(scenarioID)
		if err != nil {
			return err
		}
	}

	next := rule.NewActiveRuleSet(scenarioID, s.version+1, resolved)

	// Persist the pointer first so a store failure leaves the stored rule
	// flags untouched; roll it back if the flag updates fail afterwards.
	prevID, err := s.store.ActiveScenarioID()
	if err != nil {
		return fmt.Errorf("read active scenario: %w", err)
	}
	if err := s.store.SetActiveScenarioID(scenarioID); err != nil {
		return fmt.Errorf("persist active scenario: %w", err)
	}
	if err := s.markActiveFlags(next); err != nil {
		if rbErr := s.store.SetActiveScenarioID(prevID); rbErr != nil {
			s.log.Error("active scenario rollback failed",
				"scenarioId", prevID, "error", rbErr)
		}
		return err
	}

	s.version++
	s.current.Store(next)

	s.log.Info("scenario activated",
		"scenarioId", scenarioID,
		"scenario", name,
		"rules", next.Len(),
		"version", next.Version)
	if s.events != nil {
		s.events.Publish(events.TopicScenarioSwitched, SwitchEvent{
			ScenarioID:   scenarioID,
			ScenarioName: name,
			RuleCount:    next.Len(),
			Version:      next.Version,
		})
	}
	return nil
}

// resolve walks scenarioID's parent chain root-to-leaf and materializes the
// effective rules. A child's entry for a mockId already present from an
// ancestor replaces that ancestor's entry wholesale.
func (s *Switcher) resolve(scenarioID string) ([]*rule.ResolvedRule, string, error) {
	chain, err := s.chain(scenarioID)
	if err != nil {
		return nil, "", err
	}

	var (
		entries []rule.ScenarioMock
		index   = make(map[string]int)
		vars    = make(map[string]string)
	)
	for _, sc := range chain {
		for k, v := range sc.Variables {
			vars[k] = v
		}
		for _, sm := range sc.Mocks {
			if i, ok := index[sm.MockID]; ok {
				entries[i] = sm
			} else {
				index[sm.MockID] = len(entries)
				entries = append(entries, sm)
			}
		}
	}

	resolved := make([]*rule.ResolvedRule, 0, len(entries))
	for _, sm := range entries {
		m, err := s.store.GetMock(sm.MockID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.log.Warn("scenario references missing mock, skipping",
					"scenarioId", scenarioID, "mockId", sm.MockID)
				continue
			}
			return nil, "", fmt.Errorf("load mock %s: %w", sm.MockID, err)
		}
		resp := m.Response
		if sm.Override != nil {
			resp = sm.Override.Apply(resp)
		}
		resp = expandVariables(resp, vars)
		resolved = append(resolved, &rule.ResolvedRule{Rule: m, Response: resp})
	}
	leaf := chain[len(chain)-1]
	return resolved, leaf.Name, nil
}

// chain loads scenarioID and its ancestors, returned root-first.
func (s *Switcher) chain(scenarioID string) ([]*rule.Scenario, error) {
	var out []*rule.Scenario
	seen := make(map[string]bool)
	for cur := scenarioID; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("scenario %s: %w", scenarioID, ErrCyclicInheritance)
		}
		seen[cur] = true
		sc, err := s.store.GetScenario(cur)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("scenario %s: %w", cur, ErrUnknownScenario)
			}
			return nil, fmt.Errorf("load scenario %s: %w", cur, err)
		}
		out = append(out, sc)
		cur = sc.Parent
	}
	slices.Reverse(out)
	return out, nil
}

// markActiveFlags sets Active on every stored rule in next and clears it on
// every rule not in next. The store hands out copies, so the flag is flipped
// locally and committed through UpdateMock.
func (s *Switcher) markActiveFlags(next *rule.ActiveRuleSet) error {
	mocks, err := s.store.ListMocks()
	if err != nil {
		return fmt.Errorf("list mocks: %w", err)
	}
	for _, m := range mocks {
		want := next.Lookup(m.ID) != nil
		if m.Active == want {
			continue
		}
		m.Active = want
		if err := s.store.UpdateMock(m); err != nil {
			return fmt.Errorf("update mock %s: %w", m.ID, err)
		}
	}
	return nil
}

// Clone copies scenarioID into a new scenario with a fresh id and a derived
// name. The active scenario is unaffected.
func (s *Switcher) Clone(scenarioID string) (*rule.Scenario, error) {
	if !s.ready.Load() {
		return nil, ErrNotInitialized
	}
	src, err := s.store.GetScenario(scenarioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("scenario %s: %w", scenarioID, ErrUnknownScenario)
		}
		return nil, err
	}
	cp := src.Clone()
	cp.ID = id.Scenario()
	cp.Name = src.Name + " (copy)"
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	return s.store.CreateScenario(cp)
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.-]+)\}`)

// expandVariables substitutes ${name} placeholders in the response body and
// header values from the merged scenario variables. Unknown placeholders are
// left untouched.
func expandVariables(resp rule.Response, vars map[string]string) rule.Response {
	if len(vars) == 0 {
		return resp
	}
	expand := func(s string) string {
		return varPattern.ReplaceAllStringFunc(s, func(m string) string {
			name := m[2 : len(m)-1]
			if v, ok := vars[name]; ok {
				return v
			}
			return m
		})
	}
	resp.Body = expand(resp.Body)
	if len(resp.Headers) > 0 {
		headers := make(map[string]string, len(resp.Headers))
		for k, v := range resp.Headers {
			headers[k] = expand(v)
		}
		resp.Headers = headers
	}
	return resp
}

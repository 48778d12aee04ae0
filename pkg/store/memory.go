package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shubapp/devproxy/pkg/rule"
)

// MemoryStore is a thread-safe in-memory implementation of Store. It is the
// default for tests and ephemeral runs. All reads return copies and all
// writes store copies, so callers never share mutable state with the store
// or with each other.
type MemoryStore struct {
	mu        sync.RWMutex
	mocks     map[string]*rule.MockRule
	scenarios map[string]*rule.Scenario
	activeID  string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mocks:     make(map[string]*rule.MockRule),
		scenarios: make(map[string]*rule.Scenario),
	}
}

// ListMocks returns all stored rules sorted by priority (descending) then by
// creation time (ascending).
func (s *MemoryStore) ListMocks() ([]*rule.MockRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rule.MockRule, 0, len(s.mocks))
	for _, m := range s.mocks {
		result = append(result, m.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// GetMock retrieves a rule by id.
func (s *MemoryStore) GetMock(id string) (*rule.MockRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mocks[id]
	if !ok {
		return nil, fmt.Errorf("mock %s: %w", id, ErrNotFound)
	}
	return m.Clone(), nil
}

// CreateMock stores a new rule.
func (s *MemoryStore) CreateMock(m *rule.MockRule) (*rule.MockRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mocks[m.ID]; exists {
		return nil, fmt.Errorf("mock %s: %w", m.ID, ErrDuplicateID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.UpdatedAt = m.CreatedAt
	s.mocks[m.ID] = m.Clone()
	return m, nil
}

// UpdateMock replaces a stored rule.
func (s *MemoryStore) UpdateMock(m *rule.MockRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mocks[m.ID]; !exists {
		return fmt.Errorf("mock %s: %w", m.ID, ErrNotFound)
	}
	m.UpdatedAt = time.Now()
	s.mocks[m.ID] = m.Clone()
	return nil
}

// DeleteMock removes a rule by id.
func (s *MemoryStore) DeleteMock(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mocks[id]; !exists {
		return fmt.Errorf("mock %s: %w", id, ErrNotFound)
	}
	delete(s.mocks, id)
	return nil
}

// ListScenarios returns all stored scenarios sorted by creation time.
func (s *MemoryStore) ListScenarios() ([]*rule.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rule.Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		result = append(result, sc.Copy())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// GetScenario retrieves a scenario by id.
func (s *MemoryStore) GetScenario(id string) (*rule.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	return sc.Copy(), nil
}

// CreateScenario stores a new scenario.
func (s *MemoryStore) CreateScenario(sc *rule.Scenario) (*rule.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scenarios[sc.ID]; exists {
		return nil, fmt.Errorf("scenario %s: %w", sc.ID, ErrDuplicateID)
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	sc.UpdatedAt = sc.CreatedAt
	s.scenarios[sc.ID] = sc.Copy()
	return sc, nil
}

// ActiveScenarioID returns the persisted active-scenario id.
func (s *MemoryStore) ActiveScenarioID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, nil
}

// SetActiveScenarioID persists the active-scenario id.
func (s *MemoryStore) SetActiveScenarioID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// Package store defines the rule store collaborator: persistence for mock
// rules, scenarios, and the active-scenario pointer. The proxy core treats
// every call as potentially failing and assumes no ordering guarantees
// beyond what it requests.
package store

import (
	"errors"

	"github.com/shubapp/devproxy/pkg/rule"
)

// Common store errors.
var (
	// ErrNotFound is returned when a mock or scenario id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when creating an entity whose id exists.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrReadOnly is returned by stores opened in read-only mode.
	ErrReadOnly = errors.New("store is read-only")
)

// Store is the persistence interface for mock rules and scenarios.
// Implementations own their data: reads return copies the caller may
// mutate freely, and writes take copies of the caller's values.
type Store interface {
	// ListMocks returns all stored rules sorted by priority descending,
	// creation time ascending on ties.
	ListMocks() ([]*rule.MockRule, error)

	// GetMock retrieves a rule by id. Returns ErrNotFound if missing.
	GetMock(id string) (*rule.MockRule, error)

	// CreateMock stores a new rule and returns it. Returns ErrDuplicateID
	// if the id is taken.
	CreateMock(m *rule.MockRule) (*rule.MockRule, error)

	// UpdateMock replaces a stored rule. Returns ErrNotFound if missing.
	UpdateMock(m *rule.MockRule) error

	// DeleteMock removes a rule by id. Returns ErrNotFound if missing.
	DeleteMock(id string) error

	// ListScenarios returns all stored scenarios sorted by creation time.
	ListScenarios() ([]*rule.Scenario, error)

	// GetScenario retrieves a scenario by id. Returns ErrNotFound if missing.
	GetScenario(id string) (*rule.Scenario, error)

	// CreateScenario stores a new scenario and returns it.
	CreateScenario(s *rule.Scenario) (*rule.Scenario, error)

	// ActiveScenarioID returns the persisted active-scenario id ("" = none).
	ActiveScenarioID() (string, error)

	// SetActiveScenarioID persists the active-scenario id.
	SetActiveScenarioID(id string) error
}

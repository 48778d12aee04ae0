package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubapp/devproxy/pkg/rule"
)

func TestMemoryStoreMockCRUD(t *testing.T) {
	s := NewMemoryStore()

	m := &rule.MockRule{
		ID:       "mock_1",
		Method:   "GET",
		URL:      rule.URLMatch{Path: "/api/users"},
		Response: rule.Response{StatusCode: 200},
	}
	created, err := s.CreateMock(m)
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = s.CreateMock(&rule.MockRule{ID: "mock_1"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	got, err := s.GetMock("mock_1")
	require.NoError(t, err)
	assert.Equal(t, "/api/users", got.URL.Path)

	got.Response.StatusCode = 404
	require.NoError(t, s.UpdateMock(got))
	got, err = s.GetMock("mock_1")
	require.NoError(t, err)
	assert.Equal(t, 404, got.Response.StatusCode)

	require.NoError(t, s.DeleteMock("mock_1"))
	_, err = s.GetMock("mock_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteMock("mock_1"), ErrNotFound)
	assert.ErrorIs(t, s.UpdateMock(m), ErrNotFound)
}

func TestMemoryStoreHandsOutCopies(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.CreateMock(&rule.MockRule{
		ID:       "mock_1",
		URL:      rule.URLMatch{Path: "/api/users"},
		Headers:  map[string]string{"Accept": "application/json"},
		Response: rule.Response{StatusCode: 200, Headers: map[string]string{"X-Mode": "a"}},
	})
	require.NoError(t, err)

	got, err := s.GetMock("mock_1")
	require.NoError(t, err)
	got.Active = true
	got.Headers["Accept"] = "text/html"
	got.Response.Headers["X-Mode"] = "b"

	fresh, err := s.GetMock("mock_1")
	require.NoError(t, err)
	assert.False(t, fresh.Active)
	assert.Equal(t, "application/json", fresh.Headers["Accept"])
	assert.Equal(t, "a", fresh.Response.Headers["X-Mode"])

	listed, err := s.ListMocks()
	require.NoError(t, err)
	listed[0].Active = true
	fresh, err = s.GetMock("mock_1")
	require.NoError(t, err)
	assert.False(t, fresh.Active)

	_, err = s.CreateScenario(&rule.Scenario{
		ID:    "scn_base",
		Name:  "base",
		Mocks: []rule.ScenarioMock{{MockID: "mock_1"}},
	})
	require.NoError(t, err)
	sc, err := s.GetScenario("scn_base")
	require.NoError(t, err)
	sc.Mocks[0].MockID = "mock_other"
	fresh2, err := s.GetScenario("scn_base")
	require.NoError(t, err)
	assert.Equal(t, "mock_1", fresh2.Mocks[0].MockID)
}

func TestMemoryStoreListMocksOrder(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mocks := []*rule.MockRule{
		{ID: "low", Priority: 1, CreatedAt: base},
		{ID: "high", Priority: 10, CreatedAt: base.Add(time.Hour)},
		{ID: "mid-old", Priority: 5, CreatedAt: base},
		{ID: "mid-new", Priority: 5, CreatedAt: base.Add(time.Minute)},
	}
	for _, m := range mocks {
		_, err := s.CreateMock(m)
		require.NoError(t, err)
	}

	listed, err := s.ListMocks()
	require.NoError(t, err)
	require.Len(t, listed, 4)

	ids := make([]string, len(listed))
	for i, m := range listed {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"high", "mid-old", "mid-new", "low"}, ids)
}

func TestMemoryStoreScenarios(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.CreateScenario(&rule.Scenario{ID: "scn_base", Name: "base"})
	require.NoError(t, err)
	_, err = s.CreateScenario(&rule.Scenario{ID: "scn_base"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	got, err := s.GetScenario("scn_base")
	require.NoError(t, err)
	assert.Equal(t, "base", got.Name)

	_, err = s.GetScenario("scn_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := s.ActiveScenarioID()
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.SetActiveScenarioID("scn_base"))
	active, err = s.ActiveScenarioID()
	require.NoError(t, err)
	assert.Equal(t, "scn_base", active)
}

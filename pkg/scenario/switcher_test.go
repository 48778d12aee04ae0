package scenario

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubapp/devproxy/pkg/events"
	"github.com/shubapp/devproxy/pkg/rule"
	"github.com/shubapp/devproxy/pkg/store"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func seedStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mocks := []*rule.MockRule{
		{
			ID:        "mock_users",
			Method:    "GET",
			URL:       rule.URLMatch{Path: "/api/users"},
			Response:  rule.Response{StatusCode: 200, Body: `{"users":[]}`},
			Priority:  5,
			CreatedAt: base,
		},
		{
			ID:        "mock_login",
			Method:    "POST",
			URL:       rule.URLMatch{Path: "/api/login"},
			Response:  rule.Response{StatusCode: 200, Body: `{"token":"${token}"}`},
			Priority:  1,
			CreatedAt: base.Add(time.Minute),
		},
	}
	for _, m := range mocks {
		_, err := st.CreateMock(m)
		require.NoError(t, err)
	}

	scenarios := []*rule.Scenario{
		{
			ID:   "scn_base",
			Name: "base",
			Mocks: []rule.ScenarioMock{
				{MockID: "mock_users"},
				{MockID: "mock_login"},
			},
			Variables: map[string]string{"token": "parent-token"},
		},
		{
			ID:     "scn_errors",
			Name:   "errors",
			Parent: "scn_base",
			Mocks: []rule.ScenarioMock{
				{MockID: "mock_users", Override: &rule.ResponseOverride{
					StatusCode: intPtr(500),
					Body:       strPtr(`{"error":"boom"}`),
				}},
			},
		},
	}
	for _, sc := range scenarios {
		_, err := st.CreateScenario(sc)
		require.NoError(t, err)
	}
	return st
}

func TestActivateUnknownScenario(t *testing.T) {
	s := New(seedStore(t), nil, nil)
	require.NoError(t, s.Initialize())

	err := s.Activate("scn_missing")
	assert.ErrorIs(t, err, ErrUnknownScenario)
	// Previous (empty) set stays intact.
	assert.Equal(t, 0, s.Current().Len())
}

func TestActivateBeforeInitialize(t *testing.T) {
	s := New(seedStore(t), nil, nil)
	assert.ErrorIs(t, s.Activate("scn_base"), ErrNotInitialized)
	_, err := s.Clone("scn_base")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeFailsFastOnCycle(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.CreateScenario(&rule.Scenario{ID: "scn_a", Name: "a", Parent: "scn_b"})
	require.NoError(t, err)
	_, err = st.CreateScenario(&rule.Scenario{ID: "scn_b", Name: "b", Parent: "scn_a"})
	require.NoError(t, err)

	s := New(st, nil, nil)
	assert.ErrorIs(t, s.Initialize(), ErrCyclicInheritance)
	assert.False(t, s.Ready())
}

func TestInitializeRestoresPersistedActive(t *testing.T) {
	st := seedStore(t)
	require.NoError(t, st.SetActiveScenarioID("scn_base"))

	s := New(st, nil, nil)
	require.NoError(t, s.Initialize())
	assert.Equal(t, "scn_base", s.ActiveScenarioID())
	assert.Equal(t, 2, s.Current().Len())
}

func TestChildOverrideReplacesParentEntry(t *testing.T) {
	s := New(seedStore(t), nil, nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Activate("scn_errors"))

	set := s.Current()
	require.Equal(t, 2, set.Len())

	users := set.Lookup("mock_users")
	require.NotNil(t, users)
	assert.Equal(t, 500, users.Response.StatusCode)
	assert.Equal(t, `{"error":"boom"}`, users.Response.Body)

	// The non-overridden rule is inherited untouched, with the parent's
	// variable expanded.
	login := set.Lookup("mock_login")
	require.NotNil(t, login)
	assert.Equal(t, 200, login.Response.StatusCode)
	assert.Equal(t, `{"token":"parent-token"}`, login.Response.Body)
}

func TestReactivationIsIdempotent(t *testing.T) {
	st := seedStore(t)
	s := New(st, nil, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Activate("scn_base"))
	first := s.Current()

	require.NoError(t, s.Activate("scn_errors"))
	require.NoError(t, s.Activate("scn_base"))
	second := s.Current()

	assert.Equal(t, first.MockIDs(), second.MockIDs())
	for _, mid := range first.MockIDs() {
		assert.Equal(t, first.Lookup(mid).Response, second.Lookup(mid).Response)
	}

	// No stale active flags accumulate across switches.
	mocks, err := st.ListMocks()
	require.NoError(t, err)
	for _, m := range mocks {
		assert.True(t, m.Active, "mock %s should be active under scn_base", m.ID)
	}
}

func TestDeactivateClearsActiveFlags(t *testing.T) {
	st := seedStore(t)
	s := New(st, nil, nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Activate("scn_base"))

	require.NoError(t, s.Deactivate())
	assert.Equal(t, "", s.ActiveScenarioID())
	assert.Equal(t, 0, s.Current().Len())

	mocks, err := st.ListMocks()
	require.NoError(t, err)
	for _, m := range mocks {
		assert.False(t, m.Active)
	}
	activeID, err := st.ActiveScenarioID()
	require.NoError(t, err)
	assert.Equal(t, "", activeID)
}

func TestActivatePublishesSwitchEvent(t *testing.T) {
	b := events.NewBroadcaster(nil)
	sub, unsub := b.Subscribe(events.TopicScenarioSwitched)
	defer unsub()

	s := New(seedStore(t), b, nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Activate("scn_errors"))

	ev := <-sub
	payload, ok := ev.Payload.(SwitchEvent)
	require.True(t, ok)
	assert.Equal(t, "scn_errors", payload.ScenarioID)
	assert.Equal(t, "errors", payload.ScenarioName)
	assert.Equal(t, 2, payload.RuleCount)
}

func TestConcurrentActivateSnapshotAtomicity(t *testing.T) {
	s := New(seedStore(t), nil, nil)
	require.NoError(t, s.Initialize())

	done := make(chan struct{})
	readerDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, s.Activate("scn_base"))
			assert.NoError(t, s.Activate("scn_errors"))
		}
	}()
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			set := s.Current()
			// Every observed snapshot is complete: both scenarios
			// resolve to exactly these two rules.
			if set.Len() != 0 {
				assert.Equal(t, 2, set.Len())
				assert.NotNil(t, set.Lookup("mock_users"))
				assert.NotNil(t, set.Lookup("mock_login"))
			}
		}
	}()
	wg.Wait()
	close(done)
	<-readerDone
}

func TestCloneProducesIndependentScenario(t *testing.T) {
	st := seedStore(t)
	s := New(st, nil, nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Activate("scn_base"))

	cp, err := s.Clone("scn_errors")
	require.NoError(t, err)
	assert.NotEqual(t, "scn_errors", cp.ID)
	assert.Equal(t, "errors (copy)", cp.Name)
	assert.Equal(t, "scn_base", cp.Parent)
	require.Len(t, cp.Mocks, 1)
	assert.Equal(t, "mock_users", cp.Mocks[0].MockID)

	// Cloning does not touch the active scenario.
	assert.Equal(t, "scn_base", s.ActiveScenarioID())

	_, err = s.Clone("scn_missing")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestScenarioSkipsMissingMock(t *testing.T) {
	st := seedStore(t)
	_, err := st.CreateScenario(&rule.Scenario{
		ID:   "scn_stale",
		Name: "stale",
		Mocks: []rule.ScenarioMock{
			{MockID: "mock_gone"},
			{MockID: "mock_users"},
		},
	})
	require.NoError(t, err)

	s := New(st, nil, nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Activate("scn_stale"))
	assert.Equal(t, []string{"mock_users"}, s.Current().MockIDs())
}

// faultyStore injects failures into selected Store calls.
type faultyStore struct {
	store.Store
	failSetActive bool
	failUpdate    bool
	failActiveID  bool
}

func (f *faultyStore) SetActiveScenarioID(id string) error {
	if f.failSetActive {
		return store.ErrReadOnly
	}
	return f.Store.SetActiveScenarioID(id)
}

func (f *faultyStore) UpdateMock(m *rule.MockRule) error {
	if f.failUpdate {
		return store.ErrReadOnly
	}
	return f.Store.UpdateMock(m)
}

func (f *faultyStore) ActiveScenarioID() (string, error) {
	if f.failActiveID {
		return "", errors.New("data file unreadable")
	}
	return f.Store.ActiveScenarioID()
}

func TestListedMocksSafeToEncodeDuringActivate(t *testing.T) {
	st := seedStore(t)
	s := New(st, nil, nil)
	require.NoError(t, s.Initialize())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, s.Activate("scn_base"))
			assert.NoError(t, s.Deactivate())
		}
	}()
	// Listed rules are store copies: encoding them while activations flip
	// active flags must not observe concurrent writes.
	for i := 0; i < 50; i++ {
		mocks, err := st.ListMocks()
		require.NoError(t, err)
		_, err = json.Marshal(mocks)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestFailedPersistLeavesFlagsUntouched(t *testing.T) {
	fs := &faultyStore{Store: seedStore(t)}
	s := New(fs, nil, nil)
	require.NoError(t, s.Initialize())

	fs.failSetActive = true
	err := s.Activate("scn_base")
	require.Error(t, err)

	// The previous world stays fully intact: no flags flipped, no pointer
	// persisted, no snapshot swapped.
	mocks, listErr := fs.ListMocks()
	require.NoError(t, listErr)
	for _, m := range mocks {
		assert.False(t, m.Active, "mock %s must not be flagged by a failed activation", m.ID)
	}
	assert.Equal(t, "", s.ActiveScenarioID())
	assert.Equal(t, 0, s.Current().Len())

	fs.failSetActive = false
	require.NoError(t, s.Activate("scn_base"))
	assert.Equal(t, "scn_base", s.ActiveScenarioID())
}

func TestFailedFlagUpdateRollsBackActiveID(t *testing.T) {
	fs := &faultyStore{Store: seedStore(t)}
	s := New(fs, nil, nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Activate("scn_base"))

	fs.failUpdate = true
	require.Error(t, s.Deactivate())

	activeID, err := fs.ActiveScenarioID()
	require.NoError(t, err)
	assert.Equal(t, "scn_base", activeID)
	assert.Equal(t, "scn_base", s.ActiveScenarioID())
	assert.Equal(t, 2, s.Current().Len())
}

func TestInitializeFailureLeavesUninitialized(t *testing.T) {
	fs := &faultyStore{Store: seedStore(t), failActiveID: true}
	s := New(fs, nil, nil)

	require.Error(t, s.Initialize())
	assert.False(t, s.Ready())
	assert.ErrorIs(t, s.Activate("scn_base"), ErrNotInitialized)
}

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubapp/devproxy/pkg/rule"
	"github.com/shubapp/devproxy/pkg/store"
)

func newTestStore(t *testing.T, dir string) *FileStore {
	t.Helper()
	fs := New(Config{DataDir: dir}, nil)
	require.NoError(t, fs.Open(context.Background()))
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	fs := newTestStore(t, dir)
	_, err := fs.CreateMock(&rule.MockRule{
		ID:       "mock_1",
		Method:   "GET",
		URL:      rule.URLMatch{Path: "/api/ping"},
		Response: rule.Response{StatusCode: 200, Body: `{"ok":true}`},
		Priority: 3,
		Active:   true,
	})
	require.NoError(t, err)
	_, err = fs.CreateScenario(&rule.Scenario{ID: "scn_1", Name: "happy-path"})
	require.NoError(t, err)
	require.NoError(t, fs.SetActiveScenarioID("scn_1"))
	require.NoError(t, fs.ForceSave())
	require.NoError(t, fs.Close())

	reopened := newTestStore(t, dir)
	m, err := reopened.GetMock("mock_1")
	require.NoError(t, err)
	assert.Equal(t, "/api/ping", m.URL.Path)
	assert.Equal(t, `{"ok":true}`, m.Response.Body)
	assert.True(t, m.Active)

	sc, err := reopened.GetScenario("scn_1")
	require.NoError(t, err)
	assert.Equal(t, "happy-path", sc.Name)

	active, err := reopened.ActiveScenarioID()
	require.NoError(t, err)
	assert.Equal(t, "scn_1", active)
}

func TestFileStoreHandsOutCopies(t *testing.T) {
	fs := newTestStore(t, t.TempDir())
	_, err := fs.CreateMock(&rule.MockRule{
		ID:       "mock_1",
		URL:      rule.URLMatch{Path: "/api/ping"},
		Response: rule.Response{StatusCode: 200},
	})
	require.NoError(t, err)

	got, err := fs.GetMock("mock_1")
	require.NoError(t, err)
	got.Active = true

	fresh, err := fs.GetMock("mock_1")
	require.NoError(t, err)
	assert.False(t, fresh.Active)

	listed, err := fs.ListMocks()
	require.NoError(t, err)
	listed[0].Response.StatusCode = 500
	fresh, err = fs.GetMock("mock_1")
	require.NoError(t, err)
	assert.Equal(t, 200, fresh.Response.StatusCode)
}

func TestFileStoreAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	fs := newTestStore(t, dir)

	_, err := fs.CreateMock(&rule.MockRule{ID: "mock_1", Method: "GET"})
	require.NoError(t, err)
	require.NoError(t, fs.ForceSave())

	// No temp file should be left behind after a save.
	_, err = os.Stat(filepath.Join(dir, dataFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, dataFileName))
	assert.NoError(t, err)
}

func TestFileStoreReadOnly(t *testing.T) {
	dir := t.TempDir()
	fs := New(Config{DataDir: dir, ReadOnly: true}, nil)
	require.NoError(t, fs.Open(context.Background()))
	t.Cleanup(func() { _ = fs.Close() })

	_, err := fs.CreateMock(&rule.MockRule{ID: "mock_1"})
	assert.ErrorIs(t, err, store.ErrReadOnly)
	assert.ErrorIs(t, fs.UpdateMock(&rule.MockRule{ID: "mock_1"}), store.ErrReadOnly)
	assert.ErrorIs(t, fs.DeleteMock("mock_1"), store.ErrReadOnly)
	assert.ErrorIs(t, fs.SetActiveScenarioID("x"), store.ErrReadOnly)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), []byte("{{not yaml"), 0600))

	fs := New(Config{DataDir: dir}, nil)
	err := fs.Open(context.Background())
	assert.Error(t, err)
	_ = fs.Close()
}

func TestFileStoreDelete(t *testing.T) {
	fs := newTestStore(t, t.TempDir())

	_, err := fs.CreateMock(&rule.MockRule{ID: "mock_1"})
	require.NoError(t, err)
	require.NoError(t, fs.DeleteMock("mock_1"))
	assert.ErrorIs(t, fs.DeleteMock("mock_1"), store.ErrNotFound)

	listed, err := fs.ListMocks()
	require.NoError(t, err)
	assert.Empty(t, listed)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedSingleAndArray(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mocks/users.yaml", `
id: mock_users
name: Users list
method: GET
url:
  path: /api/users
response:
  statusCode: 200
  body: '[]'
`)
	writeFile(t, dir, "mocks/auth.yaml", `
- id: mock_login
  method: POST
  url:
    path: /api/login
  response:
    statusCode: 200
    body: '{"ok":true}'
- id: mock_logout
  method: POST
  url:
    path: /api/logout
  response:
    statusCode: 204
`)

	cfg := &Config{Mocks: []string{"mocks/**/*.yaml"}}
	seed, err := LoadSeed(cfg, dir)
	require.NoError(t, err)
	require.Len(t, seed.Mocks, 3)

	// Glob expansion is sorted, so auth.yaml loads before users.yaml.
	assert.Equal(t, "mock_login", seed.Mocks[0].ID)
	assert.Equal(t, "mock_logout", seed.Mocks[1].ID)
	assert.Equal(t, "mock_users", seed.Mocks[2].ID)
}

func TestLoadSeedScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios.yaml", `
- id: scn_base
  name: Base
  mocks:
    - mockId: mock_users
- id: scn_errors
  name: Errors
  parent: scn_base
  mocks:
    - mockId: mock_users
      override:
        statusCode: 500
`)

	cfg := &Config{Scenarios: []string{"scenarios.yaml"}}
	seed, err := LoadSeed(cfg, dir)
	require.NoError(t, err)
	require.Len(t, seed.Scenarios, 2)
	assert.Equal(t, "scn_base", seed.Scenarios[1].Parent)
	require.NotNil(t, seed.Scenarios[1].Mocks[0].Override)
	assert.Equal(t, 500, *seed.Scenarios[1].Mocks[0].Override.StatusCode)
}

func TestLoadSeedJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mocks.json",
		`[{"id":"mock_a","method":"GET","url":{"path":"/a"},"response":{"statusCode":200,"body":"a"}}]`)

	cfg := &Config{Mocks: []string{"mocks.json"}}
	seed, err := LoadSeed(cfg, dir)
	require.NoError(t, err)
	require.Len(t, seed.Mocks, 1)
	assert.Equal(t, "mock_a", seed.Mocks[0].ID)
}

func TestLoadSeedErrors(t *testing.T) {
	dir := t.TempDir()

	// A plain path that does not exist is an error.
	cfg := &Config{Mocks: []string{"missing.yaml"}}
	_, err := LoadSeed(cfg, dir)
	assert.ErrorIs(t, err, ErrFileNotFound)

	// A glob with no matches is not.
	cfg = &Config{Mocks: []string{"missing/**/*.yaml"}}
	seed, err := LoadSeed(cfg, dir)
	require.NoError(t, err)
	assert.Empty(t, seed.Mocks)

	// Invalid rules are rejected at load time.
	writeFile(t, dir, "invalid.yaml", `
id: mock_bad
method: GET
url:
  path: /a
  pattern: "^/a$"
response:
  statusCode: 200
`)
	cfg = &Config{Mocks: []string{"invalid.yaml"}}
	_, err = LoadSeed(cfg, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock_bad")
}

func TestLoadSeedEnvExpansion(t *testing.T) {
	t.Setenv("DEVPROXY_TEST_TOKEN", "tok-123")
	dir := t.TempDir()
	writeFile(t, dir, "mock.yaml", `
id: mock_token
method: GET
url:
  path: /api/token
response:
  statusCode: 200
  body: '{"token":"${DEVPROXY_TEST_TOKEN}"}'
`)

	cfg := &Config{Mocks: []string{"mock.yaml"}}
	seed, err := LoadSeed(cfg, dir)
	require.NoError(t, err)
	require.Len(t, seed.Mocks, 1)
	assert.Equal(t, `{"token":"tok-123"}`, seed.Mocks[0].Response.Body)
}

package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, CodeBackendNotConfigured, "no upstream configured for project")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeBackendNotConfigured, body["error"])
	assert.Equal(t, "no upstream configured for project", body["message"])
}

func TestWriteBadGateway(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBadGateway(rec, "connection refused")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeBadGateway, body["error"])
}

func TestWriteErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorWithDetails(rec, http.StatusBadRequest, CodeValidationFailed, "invalid rule", []string{"method: required"})

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeValidationFailed, body["error"])
	assert.Len(t, body["details"], 1)
}

func TestLooksLikeJSON(t *testing.T) {
	assert.True(t, LooksLikeJSON(`{"id":1}`))
	assert.True(t, LooksLikeJSON(`  [1,2,3]`))
	assert.True(t, LooksLikeJSON(`"text"`))
	assert.True(t, LooksLikeJSON(`42`))
	assert.True(t, LooksLikeJSON(`-1.5`))
	assert.True(t, LooksLikeJSON(`true`))
	assert.True(t, LooksLikeJSON(`null`))
	assert.False(t, LooksLikeJSON(``))
	assert.False(t, LooksLikeJSON(`hello world`))
	assert.False(t, LooksLikeJSON(`<html></html>`))
}

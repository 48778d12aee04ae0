package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginRequest(t *testing.T) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.Host = "admin.backoffice.local.shub.us"
	return req
}

func parseSetCookies(t *testing.T, header http.Header) map[string]*http.Cookie {
	t.Helper()
	out := make(map[string]*http.Cookie)
	for _, c := range (&http.Response{Header: header}).Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestIncomingLoginDerivesFatCookie(t *testing.T) {
	hook := NewBackofficeHook()
	expires := time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)

	header := http.Header{}
	header.Add("Set-Cookie", (&http.Cookie{
		Name:    "connect.sid",
		Value:   "abc123",
		Path:    "/",
		Expires: expires,
	}).String())

	hook.TransformIncomingCookies(header, http.StatusOK, loginRequest(t))

	cookies := parseSetCookies(t, header)
	assert.NotContains(t, cookies, "connect.sid", "primary cookie must be stripped")

	fat, ok := cookies["connect.sid.fat"]
	require.True(t, ok)
	assert.Equal(t, "abc123", fat.Value)
	assert.Equal(t, ".backoffice.local.shub.us", fat.Domain)
	assert.True(t, fat.Expires.Equal(expires))
	assert.True(t, fat.HttpOnly)
}

func TestIncomingNonLoginStripsPrimaryOnly(t *testing.T) {
	hook := NewBackofficeHook()

	header := http.Header{}
	header.Add("Set-Cookie", "connect.sid=abc123; Path=/")
	header.Add("Set-Cookie", "theme=dark; Path=/")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Host = "admin.backoffice.local.shub.us"
	hook.TransformIncomingCookies(header, http.StatusOK, req)

	cookies := parseSetCookies(t, header)
	assert.NotContains(t, cookies, "connect.sid")
	assert.NotContains(t, cookies, "connect.sid.fat")
	assert.Contains(t, cookies, "theme")
}

func TestIncomingFailedLoginDoesNotDerive(t *testing.T) {
	hook := NewBackofficeHook()

	header := http.Header{}
	header.Add("Set-Cookie", "connect.sid=abc123; Path=/")

	hook.TransformIncomingCookies(header, http.StatusUnauthorized, loginRequest(t))

	cookies := parseSetCookies(t, header)
	assert.Empty(t, cookies)
}

func TestIncomingIsIdempotent(t *testing.T) {
	hook := NewBackofficeHook()

	header := http.Header{}
	header.Add("Set-Cookie", "connect.sid=abc123; Path=/")

	req := loginRequest(t)
	hook.TransformIncomingCookies(header, http.StatusOK, req)
	first := append([]string(nil), header.Values("Set-Cookie")...)

	hook.TransformIncomingCookies(header, http.StatusOK, req)
	assert.Equal(t, first, header.Values("Set-Cookie"))
}

func TestOutgoingRestoresPrimaryFromDurable(t *testing.T) {
	hook := NewBackofficeHook()

	header := http.Header{}
	header.Set("Cookie", "theme=dark; connect.sid.fat=abc123")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	hook.TransformOutgoingCookies(header, req)

	assert.Equal(t, "theme=dark; connect.sid.fat=abc123; connect.sid=abc123", header.Get("Cookie"))
}

func TestOutgoingOverwritesStalePrimary(t *testing.T) {
	hook := NewBackofficeHook()

	header := http.Header{}
	header.Set("Cookie", "connect.sid=stale; connect.sid.fat=abc123")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	hook.TransformOutgoingCookies(header, req)
	assert.Equal(t, "connect.sid=abc123; connect.sid.fat=abc123", header.Get("Cookie"))

	// Running twice leaves the header unchanged.
	hook.TransformOutgoingCookies(header, req)
	assert.Equal(t, "connect.sid=abc123; connect.sid.fat=abc123", header.Get("Cookie"))
}

func TestOutgoingWithoutDurableIsNoop(t *testing.T) {
	hook := NewBackofficeHook()

	header := http.Header{}
	header.Set("Cookie", "connect.sid=abc123; theme=dark")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	hook.TransformOutgoingCookies(header, req)
	assert.Equal(t, "connect.sid=abc123; theme=dark", header.Get("Cookie"))
}

func TestRegistryLookup(t *testing.T) {
	reg := Default()

	h, ok := reg.Lookup("backoffice")
	assert.True(t, ok)
	assert.NotNil(t, h)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

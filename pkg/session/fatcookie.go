package session

import (
	"net"
	"net/http"
	"strings"
)

// FatCookieHook keeps a login session alive across tenant subdomains. The
// upstream issues a tenant-scoped primary session cookie; the hook derives a
// durable ("fat") copy scoped to the parent domain on login, strips the
// primary from responses so the browser never trusts it directly, and
// restores the primary from the durable copy on outgoing requests.
type FatCookieHook struct {
	// Primary is the upstream's session cookie name.
	Primary string
	// Durable is the parent-domain cookie name derived from Primary.
	Durable string
	// LoginPathPrefixes mark the endpoints whose successful responses
	// trigger derivation of the durable cookie.
	LoginPathPrefixes []string
}

// NewBackofficeHook returns the hook for the backoffice project's
// connect.sid session.
func NewBackofficeHook() *FatCookieHook {
	return &FatCookieHook{
		Primary:           "connect.sid",
		Durable:           "connect.sid.fat",
		LoginPathPrefixes: []string{"/api/login", "/login"},
	}
}

// TransformOutgoingCookies overwrites (or inserts) the primary session
// cookie from the durable one, so the upstream sees a valid session even
// after a tenant switch.
func (h *FatCookieHook) TransformOutgoingCookies(header http.Header, req *http.Request) {
	cookies := readCookies(header)
	var durable *http.Cookie
	for _, c := range cookies {
		if c.Name == h.Durable {
			durable = c
			break
		}
	}
	if durable == nil {
		return
	}

	pairs := make([]string, 0, len(cookies)+1)
	replaced := false
	for _, c := range cookies {
		if c.Name == h.Primary {
			c.Value = durable.Value
			replaced = true
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	if !replaced {
		pairs = append(pairs, h.Primary+"="+durable.Value)
	}
	header.Set("Cookie", strings.Join(pairs, "; "))
}

// TransformIncomingCookies strips the primary session cookie from the
// response. On a successful login it derives the durable cookie from the
// primary's value and expiry, scoped to the parent domain so it is shared
// across tenant subdomains.
func (h *FatCookieHook) TransformIncomingCookies(header http.Header, status int, req *http.Request) {
	setCookies := readSetCookies(header)
	if len(setCookies) == 0 {
		return
	}

	var primary *http.Cookie
	for _, c := range setCookies {
		if c.Name == h.Primary {
			primary = c
			break
		}
	}
	derive := primary != nil && status < 400 && h.isLoginPath(req.URL.Path)

	kept := setCookies[:0]
	for _, c := range setCookies {
		switch c.Name {
		case h.Primary:
			// Never passed through to the browser.
		case h.Durable:
			// Replaced below when re-deriving, kept otherwise so a
			// second invocation leaves the message unchanged.
			if !derive {
				kept = append(kept, c)
			}
		default:
			kept = append(kept, c)
		}
	}

	header.Del("Set-Cookie")
	for _, c := range kept {
		header.Add("Set-Cookie", c.String())
	}
	if derive {
		fat := &http.Cookie{
			Name:     h.Durable,
			Value:    primary.Value,
			Path:     "/",
			Domain:   parentDomain(req.Host),
			Expires:  primary.Expires,
			MaxAge:   primary.MaxAge,
			HttpOnly: true,
		}
		header.Add("Set-Cookie", fat.String())
	}
}

func (h *FatCookieHook) isLoginPath(path string) bool {
	for _, prefix := range h.LoginPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// parentDomain strips the tenant label (and any port) from host, returning a
// dot-prefixed domain shared across tenant subdomains:
// "admin.backoffice.local.shub.us" -> ".backoffice.local.shub.us".
func parentDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[i:]
	}
	return host
}

func readCookies(header http.Header) []*http.Cookie {
	return (&http.Request{Header: header}).Cookies()
}

func readSetCookies(header http.Header) []*http.Cookie {
	return (&http.Response{Header: header}).Cookies()
}

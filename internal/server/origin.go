package server

import (
	"net/http"
	"net/url"
	"strings"
)

type builtinOrigin struct {
	scheme  string
	host    string
	portAny bool
}

var builtinOrigins = []builtinOrigin{
	{scheme: "http", host: "localhost", portAny: true},
	{scheme: "http", host: "127.0.0.1", portAny: true},
	{scheme: "http", host: "::1", portAny: true},
	{scheme: "https", host: "localhost", portAny: true},
}

func isBuiltinOrigin(u *url.URL) bool {
	if u == nil {
		return false
	}
	hostname := u.Hostname()
	port := u.Port()
	for _, b := range builtinOrigins {
		if u.Scheme != b.scheme {
			continue
		}
		if hostname != b.host {
			continue
		}
		if !b.portAny && port != "" {
			continue
		}
		return true
	}
	return false
}

// originAllowed accepts requests without an Origin header, same-host
// origins, and loopback development origins.
func originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return isBuiltinOrigin(u)
}

package ws

import (
	"net/http"
	"net/url"
	"strings"
)

// originAllowed reports whether the request's Origin is the server's own
// host or one of the configured origins. Requests without an Origin are
// not from a browser page and are allowed.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	origin = strings.TrimSuffix(origin, "/")
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(origin, strings.TrimSuffix(allowed, "/")) {
			return true
		}
	}
	return false
}

package server

import (
	"net"
	"net/http"
	"strings"
)

const (
	forbiddenClientMessage = "Forbidden for client IP."
	forbiddenOriginMessage = "Forbidden for origin."
)

// clientIP extracts the caller address, trusting X-Forwarded-For first so the
// allow rules keep working behind a local reverse proxy.
func clientIP(r *http.Request) net.IP {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

// withClientFilter rejects callers outside the allow rules before any
// routing happens.
func (s *Server) withClientFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.IsAllowedClient(clientIP(r)) {
			writeError(w, http.StatusForbidden, forbiddenClientMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withOriginGuard rejects cross-site browser requests on state-changing and
// streaming routes.
func (s *Server) withOriginGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requiresOriginCheck(r) && !originAllowed(r) {
			writeError(w, http.StatusForbidden, forbiddenOriginMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requiresOriginCheck(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	return strings.HasSuffix(r.URL.Path, "/stream")
}

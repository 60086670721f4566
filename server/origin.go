package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// originAllowed accepts a browser request whose Origin matches the host the
// client addressed, is loopback, or shares its registrable domain. Requests
// without an Origin header pass; they do not come from a browser page.
func originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	originHost := parsed.Hostname()
	requestHost := clientHost(r)
	if strings.EqualFold(originHost, requestHost) {
		return true
	}
	if isLoopbackHost(originHost) {
		return true
	}
	originDomain, err := topDomain(originHost)
	if err != nil || originDomain == "" {
		return false
	}
	requestDomain, err := topDomain(requestHost)
	if err != nil || requestDomain == "" {
		return false
	}
	return strings.EqualFold(originDomain, requestDomain)
}

// clientHost returns the browser-visible host, considering proxies. It looks
// at Forwarded, X-Forwarded-Host, then falls back to r.Host.
func clientHost(r *http.Request) string {
	// RFC 7239 Forwarded: host=; proto=
	if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "host=") {
				value := strings.Trim(strings.TrimPrefix(part, "host="), "\"")
				if value != "" {
					return stripPort(value)
				}
			}
		}
	}
	if forwardedHost := r.Header.Get("X-Forwarded-Host"); forwardedHost != "" {
		value := strings.TrimSpace(strings.Split(forwardedHost, ",")[0])
		if value != "" {
			return stripPort(value)
		}
	}
	return stripPort(r.Host)
}

// topDomain returns eTLD+1 for a host (e.g. app.example.co.uk ->
// example.co.uk); empty for IPs and localhost, which compare directly.
func topDomain(host string) (string, error) {
	if host == "" || isIPHost(host) || isLoopbackHost(host) {
		return "", nil
	}
	return publicsuffix.EffectiveTLDPlusOne(stripPort(host))
}

func isIPHost(host string) bool {
	return net.ParseIP(stripPort(host)) != nil
}

func isLoopbackHost(host string) bool {
	lowered := strings.ToLower(stripPort(host))
	if lowered == "localhost" || strings.HasSuffix(lowered, ".localhost") {
		return true
	}
	if ip := net.ParseIP(lowered); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

func stripPort(host string) string {
	if bare, _, err := net.SplitHostPort(host); err == nil {
		return bare
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a mood stream.
type originPolicy struct {
	frontend string
	allowDev bool
}

// NewCheckOrigin returns the upgrader's CheckOrigin function.
//
// Browsers always send Origin on a websocket handshake, so only the frontend served from
// appURL is accepted from them. Native players and scripts that stream a user's mood send
// no Origin at all and are let through; they still need a valid user id. In development any
// loopback origin is allowed so a local frontend dev server can connect.
func NewCheckOrigin(appURL string, isDevelopment bool) func(r *http.Request) bool {
	p := originPolicy{frontend: extractOrigin(appURL), allowDev: isDevelopment}
	return p.check
}

func (p originPolicy) check(r *http.Request) bool {
	raw := r.Header.Get("Origin")
	if raw == "" {
		return true
	}

	origin := extractOrigin(raw)
	if origin != "" && origin == p.frontend {
		return true
	}
	if p.allowDev && isLoopbackOrigin(raw) {
		return true
	}

	slog.Warn("WebSocket origin rejected", "origin", raw, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	return false
}

// extractOrigin reduces a URL to scheme://host[:port], lowercased and without the scheme's
// default port, or "" when rawURL has no host.
func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port == "" {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		return scheme + "://" + host
	}
	return scheme + "://" + net.JoinHostPort(host, port)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

package http

import (
	"net"
	"net/http"
)

// ClientIP returns the request's source IP. The router applies a RealIP
// middleware first, so RemoteAddr already reflects trusted proxy headers.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

package requests

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is the (scheme, host, port) identity used to key connection
// pools. Two requests whose URLs resolve to the same Endpoint share a
// Pool and its Connections.
type Endpoint struct {
	Scheme string // "http" or "https"
	Host   string
	Port   int

	// SNI overrides the TLS ServerName; empty means use Host.
	SNI string
}

// String renders the endpoint as it would appear in a URL authority.
func (e Endpoint) String() string {
	if (e.Scheme == "https" && e.Port == 443) || (e.Scheme == "http" && e.Port == 80) {
		return fmt.Sprintf("%s://%s", e.Scheme, e.Host)
	}
	return fmt.Sprintf("%s://%s:%d", e.Scheme, e.Host, e.Port)
}

// endpointFromURL derives the Endpoint identity for u, applying the
// scheme's default port when none is present.
func endpointFromURL(u *url.URL) (Endpoint, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Endpoint{}, fmt.Errorf("requests: unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("requests: url %q has no host", u.String())
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			return Endpoint{}, fmt.Errorf("requests: invalid port %q: %w", p, err)
		}
	}

	return Endpoint{Scheme: scheme, Host: host, Port: port}, nil
}

package requests

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/net/publicsuffix"
)

// Cookie is one stored cookie record. Values here come from net/http's
// own Set-Cookie parser (see ResponseHead.rawCookies); this type only
// adds the bookkeeping RFC 6265 §5.1.4's selection algorithm needs.
type Cookie struct {
	Domain   string
	Path     string
	Name     string
	Value    string
	Expires  time.Time // zero means a session cookie
	Secure   bool
	HTTPOnly bool
	SameSite string
	HostOnly bool
	Created  time.Time
}

type cookieKey struct {
	Domain, Path, Name string
}

// CookieJar stores cookies across requests within a Session and
// implements RFC 6265 §5.1.4 selection: longest path first, then
// earliest creation time, filtering out anything expired, scheme- or
// host-mismatched.
type CookieJar struct {
	mu      sync.RWMutex
	cookies map[cookieKey]*Cookie
	clock   clockwork.Clock
}

// NewCookieJar returns an empty jar using the real wall clock.
func NewCookieJar() *CookieJar {
	return &CookieJar{cookies: make(map[cookieKey]*Cookie), clock: clockwork.NewRealClock()}
}

// Ingest records every Set-Cookie value from a response made against
// requestURL, replacing any existing record with the same
// (domain, path, name) and deleting records an explicit Max-Age<0 or
// past Expires marks for removal.
func (j *CookieJar) Ingest(cookies []*http.Cookie, requestURL *url.URL) {
	if len(cookies) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.clock.Now()

	for _, c := range cookies {
		domain := strings.ToLower(c.Domain)
		hostOnly := false
		if domain == "" {
			domain = strings.ToLower(requestURL.Hostname())
			hostOnly = true
		} else {
			domain = strings.TrimPrefix(domain, ".")
			if !domainMatches(requestURL.Hostname(), domain) {
				continue
			}
		}

		path := c.Path
		if path == "" {
			path = defaultCookiePath(requestURL.Path)
		}

		key := cookieKey{Domain: domain, Path: path, Name: c.Name}

		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(j.cookies, key)
			continue
		}

		var expires time.Time
		switch {
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			expires = c.Expires
		}

		j.cookies[key] = &Cookie{
			Domain:   domain,
			Path:     path,
			Name:     c.Name,
			Value:    c.Value,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: sameSiteString(c.SameSite),
			HostOnly: hostOnly,
			Created:  now,
		}
	}
}

// Select returns the cookies that apply to a request against u,
// ordered longest-path-first then earliest-created, per RFC 6265
// §5.1.4.
func (j *CookieJar) Select(u *url.URL) []*Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()

	now := j.clock.Now()
	host := strings.ToLower(u.Hostname())
	secure := u.Scheme == "https"
	path := u.Path
	if path == "" {
		path = "/"
	}

	var matches []*Cookie
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		if c.HostOnly {
			if c.Domain != host {
				continue
			}
		} else if !domainMatches(host, c.Domain) {
			continue
		}
		if !pathMatches(c.Path, path) {
			continue
		}
		if c.Secure && !secure {
			continue
		}
		matches = append(matches, c)
	}

	sort.SliceStable(matches, func(i, k int) bool {
		if len(matches[i].Path) != len(matches[k].Path) {
			return len(matches[i].Path) > len(matches[k].Path)
		}
		return matches[i].Created.Before(matches[k].Created)
	})
	return matches
}

// AttachHeader sets req's Cookie header from whatever Select(u)
// returns, leaving the header untouched if nothing matches.
func (j *CookieJar) AttachHeader(req *Request, u *url.URL) {
	cookies := j.Select(u)
	if len(cookies) == 0 {
		return
	}
	var b strings.Builder
	for i, c := range cookies {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
	}
	req.Header.Set("Cookie", b.String())
}

// domainMatches reports whether domain (already lowercased, no
// leading dot) is a valid cookie-domain match for host: an exact
// match, or a suffix of host that is not itself a public suffix.
func domainMatches(host, domain string) bool {
	host = strings.ToLower(host)
	if host == domain {
		return true
	}
	if !strings.HasSuffix(host, "."+domain) {
		return false
	}
	if eTLD, icann := publicsuffix.PublicSuffix(domain); icann && eTLD == domain {
		return false
	}
	return true
}

// defaultCookiePath implements RFC 6265 §5.1.4's default-path
// algorithm for a request whose Set-Cookie response carried no Path
// attribute.
func defaultCookiePath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	idx := strings.LastIndex(requestPath, "/")
	if idx <= 0 {
		return "/"
	}
	return requestPath[:idx]
}

func pathMatches(cookiePath, requestPath string) bool {
	if cookiePath == requestPath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	if strings.HasSuffix(cookiePath, "/") {
		return true
	}
	return len(requestPath) > len(cookiePath) && requestPath[len(cookiePath)] == '/'
}

func sameSiteString(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}

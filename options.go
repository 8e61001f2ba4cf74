package requests

import (
	"crypto/tls"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// RedirectPolicy constrains which endpoints a Session may follow a
// redirect to.
type RedirectPolicy int

const (
	// RedirectNone rejects every redirect.
	RedirectNone RedirectPolicy = iota
	// RedirectSameEndpoint allows only S == T.
	RedirectSameEndpoint
	// RedirectSameHost allows S.Host == T.Host.
	RedirectSameHost
	// RedirectSamePort allows S.Host==T.Host && S.Port==T.Port.
	RedirectSamePort
	// RedirectSameScheme allows S.Scheme == T.Scheme.
	RedirectSameScheme
	// RedirectAny allows any target endpoint.
	RedirectAny
)

func (p RedirectPolicy) allows(from, to Endpoint) bool {
	switch p {
	case RedirectNone:
		return false
	case RedirectSameEndpoint:
		return from == to
	case RedirectSameHost:
		return from.Host == to.Host
	case RedirectSamePort:
		return from.Host == to.Host && from.Port == to.Port
	case RedirectSameScheme:
		return from.Scheme == to.Scheme
	case RedirectAny:
		return true
	default:
		return false
	}
}

// Options is session-wide configuration. A Session clones its Options
// on construction; Options is read-only for the lifetime of the
// Session.
type Options struct {
	// EnforceTLS rejects any http:// URL, including redirect targets.
	EnforceTLS bool

	// MaxRedirects bounds history.size (default 5).
	MaxRedirects int

	// RedirectPolicy selects which endpoints a redirect may target.
	RedirectPolicy RedirectPolicy

	// MaxConnsPerEndpoint bounds concurrent connections to one
	// endpoint (default 8).
	MaxConnsPerEndpoint int

	// MaxPending bounds the number of callers waiting for a slot in
	// one endpoint's pool before Acquire fails fast (0 = unbounded).
	MaxPending int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// TLSConfig is used for https:// endpoints; nil means a sensible
	// default (see dial.go).
	TLSConfig *tls.Config

	// Clock abstracts time for keep-alive expiry and timeouts so
	// tests can use clockwork.NewFakeClock().
	Clock clockwork.Clock

	// Logger receives structured lifecycle events (dial, dial
	// failure, reuse, redirect, cookie ingest). Never consulted for
	// control flow.
	Logger *logrus.Entry

	// Jar is the cookie jar consulted and updated by every request.
	// A nil Jar disables cookie handling entirely.
	Jar *CookieJar

	// UserAgent is sent unless the caller's Request.Header already
	// sets one.
	UserAgent string
}

// DefaultOptions returns the Options a new Session uses when the
// caller supplies none: one function that fills in every sensible
// zero value.
func DefaultOptions() Options {
	return Options{
		EnforceTLS:          false,
		MaxRedirects:        5,
		RedirectPolicy:      RedirectSameScheme,
		MaxConnsPerEndpoint: 8,
		MaxPending:          0,
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		Clock:               clockwork.NewRealClock(),
		Logger:              logrus.NewEntry(logrus.StandardLogger()),
		Jar:                 NewCookieJar(),
		UserAgent:           "requests-go/1.0",
	}
}

// Option configures a Session at construction time.
type Option func(*Options)

// WithEnforceTLS rejects plain http:// URLs and redirect targets.
func WithEnforceTLS(v bool) Option {
	return func(o *Options) { o.EnforceTLS = v }
}

// WithMaxRedirects sets the redirect bound.
func WithMaxRedirects(n int) Option {
	return func(o *Options) { o.MaxRedirects = n }
}

// WithRedirectPolicy sets which endpoints a redirect may target.
func WithRedirectPolicy(p RedirectPolicy) Option {
	return func(o *Options) { o.RedirectPolicy = p }
}

// WithMaxConnsPerEndpoint bounds per-endpoint connection concurrency.
func WithMaxConnsPerEndpoint(n int) Option {
	return func(o *Options) { o.MaxConnsPerEndpoint = n }
}

// WithMaxPending bounds the per-endpoint waiter queue length.
func WithMaxPending(n int) Option {
	return func(o *Options) { o.MaxPending = n }
}

// WithConnectTimeout bounds a single dial.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

// WithReadTimeout bounds a single wire read.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

// WithWriteTimeout bounds a single wire write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// WithTLSConfig sets the *tls.Config used for https:// endpoints.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *Options) { o.TLSConfig = cfg }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithLogger overrides the structured logger.
func WithLogger(l *logrus.Entry) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCookieJar overrides the cookie jar; pass nil to disable cookies.
func WithCookieJar(j *CookieJar) Option {
	return func(o *Options) { o.Jar = j }
}

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *Options) { o.UserAgent = ua }
}

// clone returns a shallow copy; Options holds no mutable shared state
// itself (the Jar and Clock are already safe for concurrent use).
func (o Options) clone() Options {
	return o
}

package requests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJar(clock clockwork.Clock) *CookieJar {
	j := NewCookieJar()
	j.clock = clock
	return j
}

func TestCookieJarIngestAndSelect(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/account/profile")

	jar.Ingest([]*http.Cookie{{Name: "session", Value: "abc", Path: "/account"}}, u)

	selected := jar.Select(u)
	require.Len(t, selected, 1)
	assert.Equal(t, "abc", selected[0].Value)
}

func TestCookieJarDefaultPath(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/a/b/c")

	jar.Ingest([]*http.Cookie{{Name: "x", Value: "1"}}, u)

	other, _ := url.Parse("https://example.com/a/b/other")
	require.Len(t, jar.Select(other), 1)

	unrelated, _ := url.Parse("https://example.com/z")
	assert.Empty(t, jar.Select(unrelated))
}

func TestCookieJarHostOnlyDoesNotMatchSubdomain(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/")
	jar.Ingest([]*http.Cookie{{Name: "x", Value: "1"}}, u) // no Domain attr -> host-only

	sub, _ := url.Parse("https://sub.example.com/")
	assert.Empty(t, jar.Select(sub))
}

func TestCookieJarExplicitDomainMatchesSubdomains(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://www.example.com/")
	jar.Ingest([]*http.Cookie{{Name: "x", Value: "1", Domain: "example.com"}}, u)

	sub, _ := url.Parse("https://sub.example.com/")
	assert.Len(t, jar.Select(sub), 1)
}

func TestCookieJarRejectsPublicSuffixDomain(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.co.uk/")
	jar.Ingest([]*http.Cookie{{Name: "x", Value: "1", Domain: "co.uk"}}, u)

	assert.Empty(t, jar.Select(u))
}

func TestCookieJarSecureCookieWithheldFromPlainHTTP(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/")
	jar.Ingest([]*http.Cookie{{Name: "x", Value: "1", Secure: true}}, u)

	plain, _ := url.Parse("http://example.com/")
	assert.Empty(t, jar.Select(plain))
	assert.Len(t, jar.Select(u), 1)
}

func TestCookieJarExpiryRemovesCookie(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/")
	jar.Ingest([]*http.Cookie{{Name: "x", Value: "1", MaxAge: 5}}, u)
	require.Len(t, jar.Select(u), 1)

	clock.Advance(10 * time.Second)
	assert.Empty(t, jar.Select(u))
}

func TestCookieJarNegativeMaxAgeDeletesCookie(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/")
	jar.Ingest([]*http.Cookie{{Name: "x", Value: "1"}}, u)
	require.Len(t, jar.Select(u), 1)

	jar.Ingest([]*http.Cookie{{Name: "x", Value: "", MaxAge: -1}}, u)
	assert.Empty(t, jar.Select(u))
}

func TestCookieJarSelectionOrderLongestPathFirst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/a/b")
	jar.Ingest([]*http.Cookie{{Name: "short", Value: "1", Path: "/a"}}, u)
	clock.Advance(time.Second)
	jar.Ingest([]*http.Cookie{{Name: "long", Value: "2", Path: "/a/b"}}, u)

	selected := jar.Select(u)
	require.Len(t, selected, 2)
	assert.Equal(t, "long", selected[0].Name)
	assert.Equal(t, "short", selected[1].Name)
}

func TestCookieJarAttachHeaderJoinsWithSemicolons(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar := newTestJar(clock)
	u, _ := url.Parse("https://example.com/")
	jar.Ingest([]*http.Cookie{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
	}, u)

	req := NewRequest("GET", "/", EmptyBody{})
	jar.AttachHeader(req, u)
	assert.Contains(t, req.Header.Get("Cookie"), "a=1")
	assert.Contains(t, req.Header.Get("Cookie"), "b=2")
}

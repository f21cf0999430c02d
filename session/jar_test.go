package session

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newFixedJar() *Jar {
	j := NewJar()
	j.now = func() time.Time { return fixedNow }
	return j
}

func cookieNames(cookies []*http.Cookie) []string {
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return names
}

func TestJar_HostOnlyAndDomainCookies(t *testing.T) {
	j := newFixedJar()
	j.SetCookies(mustURL(t, "https://www.faz.net/mein-faz-net/"), []*http.Cookie{
		{Name: "host", Value: "1", Path: "/"},
		{Name: "domain", Value: "2", Path: "/", Domain: ".faz.net"},
	})

	assert.ElementsMatch(t, []string{"host", "domain"}, cookieNames(j.Cookies(mustURL(t, "https://www.faz.net/"))))
	assert.Equal(t, []string{"domain"}, cookieNames(j.Cookies(mustURL(t, "https://epaper.faz.net/"))))
	assert.Empty(t, j.Cookies(mustURL(t, "https://example.com/")))
}

func TestJar_RejectsForeignAndPublicSuffixDomains(t *testing.T) {
	j := newFixedJar()
	j.SetCookies(mustURL(t, "https://www.faz.net/"), []*http.Cookie{
		{Name: "foreign", Value: "1", Domain: "example.com"},
		{Name: "tld", Value: "1", Domain: "net"},
	})

	assert.Equal(t, 0, j.Len())
}

func TestJar_PathMatching(t *testing.T) {
	j := newFixedJar()
	j.SetCookies(mustURL(t, "https://epaper.faz.net/"), []*http.Cookie{
		{Name: "root", Value: "1", Path: "/"},
		{Name: "api", Value: "1", Path: "/api"},
	})

	assert.Equal(t, []string{"api", "root"}, cookieNames(j.Cookies(mustURL(t, "https://epaper.faz.net/api/epaper"))))
	assert.Equal(t, []string{"root"}, cookieNames(j.Cookies(mustURL(t, "https://epaper.faz.net/apix"))))
}

func TestJar_DefaultPath(t *testing.T) {
	j := newFixedJar()
	j.SetCookies(mustURL(t, "https://epaper.faz.net/epaper/download/1"), []*http.Cookie{
		{Name: "dl", Value: "1"},
	})

	entries := j.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "/epaper/download", entries[0].Path)
}

func TestJar_SecureOnlyOverHTTPS(t *testing.T) {
	j := newFixedJar()
	j.SetCookies(mustURL(t, "https://www.faz.net/"), []*http.Cookie{
		{Name: "secure", Value: "1", Path: "/", Secure: true},
	})

	assert.Len(t, j.Cookies(mustURL(t, "https://www.faz.net/")), 1)
	assert.Empty(t, j.Cookies(mustURL(t, "http://www.faz.net/")))
}

func TestJar_ExpiryAndDeletion(t *testing.T) {
	j := newFixedJar()
	u := mustURL(t, "https://www.faz.net/")

	j.SetCookies(u, []*http.Cookie{
		{Name: "maxage", Value: "1", Path: "/", MaxAge: 60},
		{Name: "expires", Value: "1", Path: "/", Expires: fixedNow.Add(time.Hour)},
		{Name: "session", Value: "1", Path: "/"},
	})

	entries := j.Entries()
	require.Len(t, entries, 3)
	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, fixedNow.Add(time.Minute), byName["maxage"].Expires)
	assert.False(t, byName["maxage"].Discard)
	assert.False(t, byName["expires"].Discard)
	assert.True(t, byName["session"].Discard)

	j.SetCookies(u, []*http.Cookie{
		{Name: "maxage", Path: "/", MaxAge: -1},
		{Name: "expires", Path: "/", Expires: fixedNow.Add(-time.Hour)},
	})
	assert.Equal(t, []string{"session"}, cookieNames(j.Cookies(u)))

	j.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	j.Add(Entry{Name: "stale", Value: "1", Domain: "www.faz.net", HostOnly: true, Path: "/", Expires: fixedNow})
	assert.Equal(t, []string{"session"}, cookieNames(j.Cookies(u)))
}

package session

import (
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Entry is a single cookie as held by the Jar and stored in the cookie file.
type Entry struct {
	Name  string
	Value string
	// Domain never carries a leading dot; HostOnly tells whether the cookie
	// applies to subdomains.
	Domain   string
	HostOnly bool
	Path     string
	Secure   bool
	HttpOnly bool
	// Expires is zero for session cookies.
	Expires time.Time
	// Discard marks a session-only cookie that is not kept across runs.
	Discard bool
}

func (e *Entry) key() string {
	return e.Domain + ";" + e.Path + ";" + e.Name
}

func (e *Entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

func (e *Entry) domainMatch(host string) bool {
	if host == e.Domain {
		return true
	}
	return !e.HostOnly && strings.HasSuffix(host, "."+e.Domain)
}

func (e *Entry) pathMatch(path string) bool {
	if path == e.Path {
		return true
	}
	if strings.HasPrefix(path, e.Path) {
		return strings.HasSuffix(e.Path, "/") || path[len(e.Path)] == '/'
	}
	return false
}

// Jar is an http.CookieJar that, unlike net/http/cookiejar, exposes its
// entries so they can be written to and read from a cookie file.
type Jar struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewJar creates an empty cookie jar.
func NewJar() *Jar {
	return &Jar{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	host, ok := canonicalHost(u.Host)
	if !ok {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, c := range cookies {
		domain, hostOnly, ok := cookieDomain(host, c.Domain)
		if !ok {
			continue
		}

		path := c.Path
		if path == "" || path[0] != '/' {
			path = defaultPath(u.Path)
		}

		e := &Entry{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			HostOnly: hostOnly,
			Path:     path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}

		switch {
		case c.MaxAge < 0:
			delete(j.entries, e.key())
			continue
		case c.MaxAge > 0:
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				delete(j.entries, e.key())
				continue
			}
			e.Expires = c.Expires
		default:
			e.Discard = true
		}

		j.entries[e.key()] = e
	}
}

// Cookies implements http.CookieJar. Cookies with longer paths are listed
// first.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	host, ok := canonicalHost(u.Host)
	if !ok {
		return nil
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	https := u.Scheme == "https"

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	var selected []*Entry
	for k, e := range j.entries {
		if e.expired(now) {
			delete(j.entries, k)
			continue
		}
		if !e.domainMatch(host) || !e.pathMatch(path) || (e.Secure && !https) {
			continue
		}
		selected = append(selected, e)
	}

	sort.SliceStable(selected, func(a, b int) bool {
		if len(selected[a].Path) != len(selected[b].Path) {
			return len(selected[a].Path) > len(selected[b].Path)
		}
		return selected[a].Name < selected[b].Name
	})

	cookies := make([]*http.Cookie, 0, len(selected))
	for _, e := range selected {
		cookies = append(cookies, &http.Cookie{Name: e.Name, Value: e.Value})
	}
	return cookies
}

// Entries returns a copy of every unexpired cookie, ordered by domain, path
// and name.
func (j *Jar) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	entries := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if e.expired(now) {
			continue
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].key() < entries[b].key()
	})
	return entries
}

// Add stores entries as-is, replacing cookies with the same domain, path and
// name.
func (j *Jar) Add(entries ...Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range entries {
		j.entries[e.key()] = &e
	}
}

// Len returns the number of stored cookies, expired ones included.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// canonicalHost strips the port and trailing dot and lowercases the host.
func canonicalHost(host string) (string, bool) {
	if host == "" {
		return "", false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return host, host != ""
}

// cookieDomain decides which domain a cookie set by host applies to. A
// cookie without Domain attribute is host-only; a Domain attribute must
// cover host and must not be a public suffix.
func cookieDomain(host, domain string) (string, bool, bool) {
	if domain == "" {
		return host, true, true
	}

	domain = strings.TrimSuffix(strings.ToLower(strings.TrimPrefix(domain, ".")), ".")
	if domain == "" {
		return host, true, true
	}

	if net.ParseIP(host) != nil {
		return host, true, domain == host
	}

	if domain == host {
		return domain, false, true
	}

	if !strings.HasSuffix(host, "."+domain) {
		return "", false, false
	}

	if ps, _ := publicsuffix.PublicSuffix(domain); ps == domain {
		return "", false, false
	}

	return domain, false, true
}

// defaultPath computes the RFC 6265 default-path of a request path.
func defaultPath(path string) string {
	if path == "" || path[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(path, "/")
	if i == 0 {
		return "/"
	}
	return path[:i]
}

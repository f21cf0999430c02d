package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	lwpMagic      = "#LWP-Cookies-2.0"
	lwpLinePrefix = "Set-Cookie3:"
	lwpTimeLayout = "2006-01-02 15:04:05Z"
)

// ErrUnknownCookieFormat is returned when a cookie file is neither in LWP nor
// in Netscape format.
var ErrUnknownCookieFormat = errors.New("cookie file is neither LWP nor Netscape format")

var (
	lwpMagicRe      = regexp.MustCompile(`^#LWP-Cookies-\d+\.\d+`)
	netscapeMagicRe = regexp.MustCompile(`^#( Netscape)? HTTP Cookie File`)
	headerTokenRe   = regexp.MustCompile(`^\w+$`)
)

// ReadCookies reads cookies from an LWP ("Set-Cookie3") or Netscape format
// cookie file. Expired cookies are dropped, and so are session cookies
// unless keepSession is set.
func ReadCookies(r io.Reader, keepSession bool, now time.Time) ([]Entry, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	first = strings.TrimRight(first, "\r\n")

	var entries []Entry
	switch {
	case lwpMagicRe.MatchString(first):
		entries, err = readLWP(br)
	case netscapeMagicRe.MatchString(first):
		entries, err = readNetscape(br)
	default:
		return nil, ErrUnknownCookieFormat
	}
	if err != nil {
		return nil, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.expired(now) {
			continue
		}
		if e.Discard && !keepSession {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// WriteLWP writes entries in libwww-perl Set-Cookie3 format. Session cookies
// are only written when keepSession is set.
func WriteLWP(w io.Writer, entries []Entry, keepSession bool, now time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, lwpMagic)
	for _, e := range entries {
		if e.expired(now) {
			continue
		}
		if e.Discard && !keepSession {
			continue
		}
		fmt.Fprintf(bw, "%s %s\n", lwpLinePrefix, formatLWP(e))
	}
	return bw.Flush()
}

// formatLWP renders one entry the way libwww-perl's as_lwp_str does.
func formatLWP(e Entry) string {
	domain := e.Domain
	if !e.HostOnly {
		domain = "." + domain
	}

	words := []string{
		joinHeaderWord(e.Name, e.Value),
		joinHeaderWord("path", e.Path),
		joinHeaderWord("domain", domain),
		"path_spec",
	}
	if !e.HostOnly {
		words = append(words, "domain_dot")
	}
	if e.Secure {
		words = append(words, "secure")
	}
	if !e.Expires.IsZero() {
		words = append(words, joinHeaderWord("expires", e.Expires.UTC().Format(lwpTimeLayout)))
	}
	if e.Discard {
		words = append(words, "discard")
	}
	if e.HttpOnly {
		words = append(words, "HttpOnly=None")
	}
	words = append(words, "version=0")
	return strings.Join(words, "; ")
}

func joinHeaderWord(key, value string) string {
	if !headerTokenRe.MatchString(value) {
		value = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
		value = `"` + value + `"`
	}
	return key + "=" + value
}

func readLWP(br *bufio.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(br)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, lwpLinePrefix) {
			continue
		}
		e, ok := parseLWP(strings.TrimSpace(line[len(lwpLinePrefix):]))
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read LWP cookie file: %w", err)
	}
	return entries, nil
}

func parseLWP(line string) (Entry, bool) {
	words := splitHeaderWords(line)
	if len(words) == 0 || !words[0].hasValue || words[0].key == "" {
		return Entry{}, false
	}

	e := Entry{
		Name:     words[0].key,
		Value:    words[0].value,
		Path:     "/",
		HostOnly: true,
	}
	for _, w := range words[1:] {
		switch strings.ToLower(w.key) {
		case "path":
			e.Path = w.value
		case "domain":
			e.HostOnly = !strings.HasPrefix(w.value, ".")
			e.Domain = strings.ToLower(strings.TrimPrefix(w.value, "."))
		case "secure":
			e.Secure = true
		case "expires":
			t, err := time.Parse(lwpTimeLayout, w.value)
			if err != nil {
				return Entry{}, false
			}
			e.Expires = t
		case "discard":
			e.Discard = true
		case "httponly":
			e.HttpOnly = true
		}
	}
	if e.Domain == "" {
		return Entry{}, false
	}
	if e.Expires.IsZero() {
		e.Discard = true
	}
	return e, true
}

type headerWord struct {
	key      string
	value    string
	hasValue bool
}

// splitHeaderWords splits "a=1; b="x;y"; c" into key/value words, honouring
// double-quoted values with backslash escapes.
func splitHeaderWords(s string) []headerWord {
	var words []headerWord
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return words
		}

		i := strings.IndexAny(s, "=;")
		if i < 0 {
			return append(words, headerWord{key: strings.TrimSpace(s)})
		}

		key := strings.TrimSpace(s[:i])
		if s[i] == ';' {
			if key != "" {
				words = append(words, headerWord{key: key})
			}
			s = s[i+1:]
			continue
		}

		s = strings.TrimLeft(s[i+1:], " \t")
		var value string
		if strings.HasPrefix(s, `"`) {
			value, s = readQuoted(s[1:])
		} else {
			j := strings.IndexByte(s, ';')
			if j < 0 {
				value, s = s, ""
			} else {
				value, s = s[:j], s[j:]
			}
			value = strings.TrimSpace(value)
		}
		words = append(words, headerWord{key: key, value: value, hasValue: true})

		if j := strings.IndexByte(s, ';'); j >= 0 {
			s = s[j+1:]
		} else {
			s = ""
		}
	}
}

func readQuoted(s string) (string, string) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case '"':
			return b.String(), s[i+1:]
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), ""
}

// readNetscape parses the tab-separated cookies.txt format exported by
// browsers and curl. An expiry of 0 marks a session cookie.
func readNetscape(br *bufio.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(br)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			httpOnly = true
			line = line[len("#HttpOnly_"):]
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		expiry, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}

		domain := fields[0]
		e := Entry{
			Name:     fields[5],
			Value:    fields[6],
			Domain:   strings.ToLower(strings.TrimPrefix(domain, ".")),
			HostOnly: !strings.EqualFold(fields[1], "TRUE") && !strings.HasPrefix(domain, "."),
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if expiry > 0 {
			e.Expires = time.Unix(expiry, 0).UTC()
		} else {
			e.Discard = true
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Netscape cookie file: %w", err)
	}
	return entries, nil
}

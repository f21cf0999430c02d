package session

import "fmt"

// StatusError is returned when the portal answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected HTTP status %s", e.Method, e.URL, e.Status)
}

// ParseError is returned when a response that should be JSON or HTML cannot
// be parsed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CookieFileError describes a failure to load or save the cookie file. It
// is never fatal: callers log it and carry on.
type CookieFileError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *CookieFileError) Error() string {
	return fmt.Sprintf("failed to %s cookie file %s: %v", e.Op, e.Path, e.Err)
}

func (e *CookieFileError) Unwrap() error {
	return e.Err
}

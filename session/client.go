// Package session implements the browser-like HTTP session paperboy uses to
// talk to the newspaper portal: a persistent cookie jar, a fixed set of
// browser headers and Referer chaining from one request to the next.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/paperboy/logger"
	"github.com/spf13/afero"
)

// DefaultTimeout bounds connecting to the portal and waiting for response
// headers.
const DefaultTimeout = 30 * time.Second

const jsonAccept = "application/json, text/javascript, */*; q=0.01"

// Config configures a Client.
type Config struct {
	UserAgent  string
	CookieFile string
	// KeepSessionCookies also persists cookies the server marked as
	// session-only.
	KeepSessionCookies bool
	Timeout            time.Duration
	// Fs holds the cookie file. Defaults to the OS filesystem.
	Fs     afero.Fs
	Logger logger.Logger
}

// Client performs requests the way a browser navigating the portal would.
// Every request carries the URL of the previous one as Referer, so a Client
// must only be used from one goroutine.
type Client struct {
	cfg        Config
	httpClient *http.Client
	jar        *Jar
	headers    http.Header
	lastURL    string
	fs         afero.Fs
	log        logger.Logger
	now        func() time.Time
}

// New creates a Client and loads its cookie jar. A missing cookie file is
// not an error; any other load failure is logged at debug level and the
// client starts with an empty jar.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	jar := NewJar()
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		IdleConnTimeout:       90 * time.Second,
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
		jar: jar,
		headers: http.Header{
			"User-Agent":      {cfg.UserAgent},
			"Dnt":             {"1"},
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Encoding": {"gzip, deflate"},
			"Accept-Language": {"en,en-gb;q=0.8,en-us;q=0.5,de;q=0.3"},
		},
		fs:  cfg.Fs,
		log: cfg.Logger,
		now: time.Now,
	}

	if err := c.LoadCookies(); err != nil {
		c.log.Debug("%v", err)
	}

	return c
}

// Jar returns the client's cookie jar.
func (c *Client) Jar() *Jar {
	return c.jar
}

// LastURL returns the URL of the most recent request, which becomes the
// Referer of the next one.
func (c *Client) LastURL() string {
	return c.lastURL
}

// Get issues a GET request. The response body is not read: callers stream it
// and must close it.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	c.log.Debug("Browser GET %s", rawURL)
	return c.do(ctx, http.MethodGet, rawURL, nil, header)
}

// Post issues a POST request with a form-encoded body. Callers must close
// the response body.
func (c *Client) Post(ctx context.Context, rawURL string, form url.Values, header http.Header) (*http.Response, error) {
	c.log.Debug("Browser POST %s", rawURL)
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), h)
}

// GetJSON issues an XMLHttpRequest-style GET and decodes the JSON response
// into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	c.log.Debug("Browser GET %s", rawURL)
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, jsonHeader())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp.Body, rawURL, out)
}

// PostJSON posts payload as JSON in XMLHttpRequest style and decodes the
// JSON response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload, out any) error {
	c.log.Debug("Browser POST %s", rawURL)
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	h := jsonHeader()
	h.Set("Content-Type", "application/json")
	resp, err := c.do(ctx, http.MethodPost, rawURL, bytes.NewReader(data), h)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(resp.Body, rawURL, out)
}

// GetHTML issues a GET request and parses the response as HTML.
func (c *Client) GetHTML(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}
	return doc, nil
}

// LoadCookies replaces the jar contents with the cookies from the cookie
// file. A missing file leaves the jar empty and is not an error.
func (c *Client) LoadCookies() error {
	if c.cfg.CookieFile == "" {
		return nil
	}

	f, err := c.fs.Open(c.cfg.CookieFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &CookieFileError{Op: "load", Path: c.cfg.CookieFile, Err: err}
	}
	defer f.Close()

	entries, err := ReadCookies(f, c.cfg.KeepSessionCookies, c.now())
	if err != nil {
		return &CookieFileError{Op: "load", Path: c.cfg.CookieFile, Err: err}
	}

	c.jar.Add(entries...)
	c.log.Debug("loaded %d cookies from %s", len(entries), c.cfg.CookieFile)
	return nil
}

// SaveCookies writes the jar to the cookie file in LWP format.
func (c *Client) SaveCookies() error {
	if c.cfg.CookieFile == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := WriteLWP(&buf, c.jar.Entries(), c.cfg.KeepSessionCookies, c.now()); err != nil {
		return &CookieFileError{Op: "save", Path: c.cfg.CookieFile, Err: err}
	}
	if err := afero.WriteFile(c.fs, c.cfg.CookieFile, buf.Bytes(), 0o600); err != nil {
		return &CookieFileError{Op: "save", Path: c.cfg.CookieFile, Err: err}
	}
	return nil
}

// Close persists the cookie jar. The returned *CookieFileError is meant to
// be logged and ignored; a run never fails because cookies were not saved.
func (c *Client) Close() error {
	c.log.Debug("saving cookies")
	c.httpClient.CloseIdleConnections()
	return c.SaveCookies()
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (*http.Response, error) {
	// The previous URL becomes the Referer whatever happens to this request.
	referer := c.lastURL
	c.lastURL = rawURL

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", method, rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	if err := decodeBody(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}

func jsonHeader() http.Header {
	return http.Header{
		"Accept":           {jsonAccept},
		"X-Requested-With": {"XMLHttpRequest"},
		"Connection":       {"keep-alive"},
	}
}

// decodeJSON rejects bodies that carry anything after the JSON value, such
// as an error page appended to a valid answer.
func decodeJSON(r io.Reader, rawURL string, out any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(out); err != nil {
		return &ParseError{URL: rawURL, Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
		return &ParseError{URL: rawURL, Err: err}
	}
	return nil
}

// Package discovery enumerates the newspaper issues currently available on
// the portal and resolves each to a download token. The portal has served
// its issue list in more than one shape over time; each shape is a Discoverer
// backend.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/paperboy/logger"
	"github.com/pevans/paperboy/scraper"
)

// Newspaper identifies a title sold on the portal.
type Newspaper string

const (
	FAZ   Newspaper = "FAZ"
	Woche Newspaper = "WOCHE"
	FAS   Newspaper = "FAS"
)

// Newspapers lists the supported titles in the order the portal shows them.
var Newspapers = []Newspaper{FAZ, Woche, FAS}

// Issue is one dated edition of a newspaper.
type Issue struct {
	Newspaper Newspaper
	// ReleaseDate is in the portal's format, DD.MM.YYYY.
	ReleaseDate string
	// Link is the opaque token the download URL is built from.
	Link string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s - %s", i.Newspaper, i.ReleaseDate)
}

// SortableDate turns the release date around so that it sorts: 05.03.2024
// becomes 20240305.
func (i Issue) SortableDate() string {
	parts := strings.Split(i.ReleaseDate, ".")
	slices.Reverse(parts)
	return strings.Join(parts, "")
}

// Discoverer lists the issues available for download.
type Discoverer interface {
	Discover(ctx context.Context) ([]Issue, error)
}

// Browser is the part of the session client the backends need.
type Browser interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error)
	GetHTML(ctx context.Context, rawURL string) (*goquery.Document, error)
	GetJSON(ctx context.Context, rawURL string, out any) error
	PostJSON(ctx context.Context, rawURL string, payload, out any) error
}

// Backend names accepted by New.
const (
	BackendDropdown = "dropdown"
	BackendListing  = "listing"
	BackendFeed     = "feed"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown discovery backend")

// New returns the Discoverer for the named backend.
func New(backend string, browser Browser, site scraper.SiteConfig, log logger.Logger) (Discoverer, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	switch backend {
	case "", BackendDropdown:
		return NewDropdownDiscoverer(browser, site, log), nil
	case BackendListing:
		if site.ListingURL == "" {
			return nil, fmt.Errorf("discovery backend %q needs site.listing_url", backend)
		}
		return NewListingDiscoverer(browser, site, log), nil
	case BackendFeed:
		if site.FeedURL == "" {
			return nil, fmt.Errorf("discovery backend %q needs site.feed_url", backend)
		}
		return NewFeedDiscoverer(browser, site, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// ParseNewspaper matches s case-insensitively against the supported titles.
func ParseNewspaper(s string) (Newspaper, bool) {
	for _, n := range Newspapers {
		if strings.EqualFold(strings.TrimSpace(s), string(n)) {
			return n, true
		}
	}
	return "", false
}

package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pevans/paperboy/logger"
	"github.com/pevans/paperboy/scraper"
	"github.com/pevans/paperboy/session"
)

// ListingDiscoverer reads a JSON issue listing per newspaper. The listing
// already carries the download token, so no second call is needed.
type ListingDiscoverer struct {
	browser    Browser
	site       scraper.SiteConfig
	newspapers []Newspaper
	log        logger.Logger
}

// NewListingDiscoverer creates a listing backend for all supported
// newspapers.
func NewListingDiscoverer(browser Browser, site scraper.SiteConfig, log logger.Logger) *ListingDiscoverer {
	return &ListingDiscoverer{
		browser:    browser,
		site:       site,
		newspapers: Newspapers,
		log:        log,
	}
}

type listingResponse struct {
	Issues []listingEntry `json:"issues"`
}

type listingEntry struct {
	ReleaseDate string `json:"releaseDate"`
	Slug        string `json:"slug"`
	Link        string `json:"link"`
}

// Discover implements Discoverer. A newspaper whose listing is not valid
// JSON is logged and left out.
func (l *ListingDiscoverer) Discover(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	for _, newspaper := range l.newspapers {
		listingURL := l.site.ListingLink(string(newspaper))

		var listing listingResponse
		if err := l.browser.GetJSON(ctx, listingURL, &listing); err != nil {
			var parseErr *session.ParseError
			if errors.As(err, &parseErr) {
				l.log.Warning("Unreadable issue listing for %s: %v", newspaper, err)
				continue
			}
			return nil, fmt.Errorf("failed to fetch issue listing for %s: %w", newspaper, err)
		}

		for _, entry := range listing.Issues {
			if entry.Slug != "" && entry.Slug != string(newspaper) {
				l.log.Warning("Strange listing entry for %s: %+v", newspaper, entry)
				continue
			}

			releaseDate := strings.TrimSpace(entry.ReleaseDate)
			if releaseDate == "" {
				l.log.Warning("Listing entry without release date for %s: %+v", newspaper, entry)
				continue
			}

			if strings.TrimSpace(entry.Link) == "" {
				l.log.Warning("No subscription for this issue: %s - %s?", newspaper, releaseDate)
				continue
			}

			issues = append(issues, Issue{
				Newspaper:   newspaper,
				ReleaseDate: releaseDate,
				Link:        strings.TrimSpace(entry.Link),
			})
		}
	}

	return issues, nil
}

package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/paperboy/logger"
	"github.com/pevans/paperboy/scraper"
	"github.com/pevans/paperboy/session"
)

// DropdownDiscoverer reads the issue dropdowns on the e-paper page and asks
// the portal, one release date at a time, for the matching reader link.
type DropdownDiscoverer struct {
	browser    Browser
	site       scraper.SiteConfig
	newspapers []Newspaper
	log        logger.Logger
}

// NewDropdownDiscoverer creates a dropdown backend for all supported
// newspapers.
func NewDropdownDiscoverer(browser Browser, site scraper.SiteConfig, log logger.Logger) *DropdownDiscoverer {
	return &DropdownDiscoverer{
		browser:    browser,
		site:       site,
		newspapers: Newspapers,
		log:        log,
	}
}

type releaseDateRequest struct {
	ReleaseDate string `json:"releaseDate"`
	Slug        string `json:"slug"`
}

type releaseDateResponse struct {
	HTMLContent string `json:"htmlContent"`
}

// Discover implements Discoverer. Dropdown entries without a usable reader
// link are logged and left out.
func (d *DropdownDiscoverer) Discover(ctx context.Context) ([]Issue, error) {
	doc, err := d.browser.GetHTML(ctx, d.site.EpaperURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch e-paper page: %w", err)
	}

	// The dropdowns appear in the same order as Newspapers.
	lists := doc.Find(d.site.Selectors.IssueList)

	var issues []Issue
	for i, newspaper := range d.newspapers {
		if i >= lists.Length() {
			d.log.Warning("No issue list for %s on %s", newspaper, d.site.EpaperURL)
			continue
		}

		items := lists.Eq(i).Find(d.site.Selectors.IssueItem)
		for j := range items.Length() {
			item := items.Eq(j)

			if slug := item.AttrOr("data-slug", ""); slug != string(newspaper) {
				d.log.Warning("Strange dropdown item: %s", outerHTML(item))
				continue
			}

			releaseDate := strings.TrimSpace(item.AttrOr("data-release-date", ""))
			if releaseDate == "" {
				d.log.Warning("Dropdown item without release date: %s", outerHTML(item))
				continue
			}

			link, err := d.resolve(ctx, newspaper, releaseDate)
			if err != nil {
				return nil, err
			}
			if link == "" {
				continue
			}

			issues = append(issues, Issue{
				Newspaper:   newspaper,
				ReleaseDate: releaseDate,
				Link:        link,
			})
		}
	}

	return issues, nil
}

// resolve switches the reader to the given release date and extracts the
// download token from the returned HTML fragment. An empty token means the
// issue is not downloadable, which includes answers that are not JSON.
func (d *DropdownDiscoverer) resolve(ctx context.Context, newspaper Newspaper, releaseDate string) (string, error) {
	var answer releaseDateResponse
	req := releaseDateRequest{ReleaseDate: releaseDate, Slug: string(newspaper)}
	if err := d.browser.PostJSON(ctx, d.site.ReleaseDateURL, req, &answer); err != nil {
		var parseErr *session.ParseError
		if errors.As(err, &parseErr) {
			d.log.Warning("Unreadable answer for %s - %s: %v", newspaper, releaseDate, err)
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve %s - %s: %w", newspaper, releaseDate, err)
	}

	fragment, err := goquery.NewDocumentFromReader(strings.NewReader(answer.HTMLContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML for %s - %s: %w", newspaper, releaseDate, err)
	}

	links := fragment.Find(d.site.Selectors.ReaderLink)
	if links.Length() != 1 {
		d.log.Warning("No subscription for this issue: %s - %s?", newspaper, releaseDate)
		return "", nil
	}

	// Reader links look like /webreader/<token>.
	href := links.AttrOr("href", "")
	parts := strings.Split(href, "/")
	if len(parts) < 3 || parts[2] == "" {
		d.log.Warning("Unexpected reader link for %s - %s: %q", newspaper, releaseDate, href)
		return "", nil
	}

	return parts[2], nil
}

func outerHTML(s *goquery.Selection) string {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return s.Text()
	}
	return html
}

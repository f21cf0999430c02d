package discovery

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/paperboy/logger"
	"github.com/pevans/paperboy/scraper"
)

const releaseDateLayout = "02.01.2006"

// FeedDiscoverer reads an RSS or Atom feed announcing new editions. Each
// item names its newspaper as a category and links to the edition; the last
// path segment of that link is the download token.
type FeedDiscoverer struct {
	browser    Browser
	site       scraper.SiteConfig
	newspapers []Newspaper
	log        logger.Logger
}

// NewFeedDiscoverer creates a feed backend for all supported newspapers.
func NewFeedDiscoverer(browser Browser, site scraper.SiteConfig, log logger.Logger) *FeedDiscoverer {
	return &FeedDiscoverer{
		browser:    browser,
		site:       site,
		newspapers: Newspapers,
		log:        log,
	}
}

// Discover implements Discoverer. The feed is fetched through the session so
// that it carries the login cookies. Issues are grouped by newspaper in the
// usual order.
func (f *FeedDiscoverer) Discover(ctx context.Context) ([]Issue, error) {
	resp, err := f.browser.Get(ctx, f.site.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	byNewspaper := make(map[Newspaper][]Issue)
	for _, item := range feed.Items {
		issue, ok := f.itemToIssue(item)
		if !ok {
			continue
		}
		byNewspaper[issue.Newspaper] = append(byNewspaper[issue.Newspaper], issue)
	}

	var issues []Issue
	for _, newspaper := range f.newspapers {
		issues = append(issues, byNewspaper[newspaper]...)
	}
	return issues, nil
}

func (f *FeedDiscoverer) itemToIssue(item *gofeed.Item) (Issue, bool) {
	var newspaper Newspaper
	for _, category := range item.Categories {
		if n, ok := ParseNewspaper(category); ok {
			newspaper = n
			break
		}
	}
	if newspaper == "" {
		f.log.Warning("Feed item without known newspaper: %q", item.Title)
		return Issue{}, false
	}

	var published *time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed
	default:
		f.log.Warning("Feed item without date: %q", item.Title)
		return Issue{}, false
	}

	link, err := url.Parse(item.Link)
	if err != nil {
		f.log.Warning("Feed item with invalid link %q: %v", item.Link, err)
		return Issue{}, false
	}
	token := path.Base(link.Path)
	if token == "" || token == "/" || token == "." {
		f.log.Warning("No subscription for this issue: %s - %s?", newspaper, published.Format(releaseDateLayout))
		return Issue{}, false
	}

	return Issue{
		Newspaper:   newspaper,
		ReleaseDate: published.Format(releaseDateLayout),
		Link:        token,
	}, true
}

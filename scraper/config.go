package scraper

import (
	"net/url"
	"strings"
)

// SiteConfig describes where the portal's pages and endpoints live and how
// to read them. Every field can be overridden from the config file.
type SiteConfig struct {
	BaseURL        string    `yaml:"base_url"`
	AccountURL     string    `yaml:"account_url"`
	LoginURL       string    `yaml:"login_url"`
	LoginRedirect  string    `yaml:"login_redirect"`
	EpaperURL      string    `yaml:"epaper_url"`
	ReleaseDateURL string    `yaml:"release_date_url"`
	ListingURL     string    `yaml:"listing_url,omitempty"` // contains {newspaper}
	FeedURL        string    `yaml:"feed_url,omitempty"`
	DownloadURL    string    `yaml:"download_url"` // contains {link}
	Selectors      Selectors `yaml:"selectors"`
}

// Selectors are the CSS selectors used to read the portal's HTML.
type Selectors struct {
	Username   string `yaml:"username"`    // present only when logged in
	IssueList  string `yaml:"issue_list"`  // one dropdown per newspaper
	IssueItem  string `yaml:"issue_item"`  // entries within a dropdown
	ReaderLink string `yaml:"reader_link"` // link inside the release-date fragment
}

// DefaultSiteConfig returns the configuration for the FAZ e-paper portal.
// ListingURL and FeedURL have no default: the portal currently serves
// neither, so the backends using them must be configured explicitly.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		BaseURL:        "http://www.faz.net",
		AccountURL:     "https://www.faz.net/mein-faz-net/?redirectUrl=%2Faktuell%2F",
		LoginURL:       "https://www.faz.net/membership/loginNoScript",
		LoginRedirect:  "/epaper/",
		EpaperURL:      "http://epaper.faz.net/",
		ReleaseDateURL: "http://epaper.faz.net/api/epaper/change-release-date",
		DownloadURL:    "http://epaper.faz.net/epaper/download/{link}",
		Selectors: Selectors{
			Username:   "span.Username",
			IssueList:  ".dropdown-issues-list",
			IssueItem:  "li a",
			ReaderLink: `a[href*="webreader"]`,
		},
	}
}

// DownloadLink returns the PDF URL for an issue's download token.
func (s SiteConfig) DownloadLink(link string) string {
	return strings.ReplaceAll(s.DownloadURL, "{link}", url.PathEscape(link))
}

// ListingLink returns the JSON listing URL for a newspaper.
func (s SiteConfig) ListingLink(newspaper string) string {
	return strings.ReplaceAll(s.ListingURL, "{newspaper}", url.QueryEscape(newspaper))
}

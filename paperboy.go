// Package paperboy downloads the daily PDF editions of the FAZ, the WOCHE
// and the FAS from the FAZ e-paper portal. A Workflow logs in with stored
// credentials, discovers the issues on offer and saves every issue that is
// not yet present in the output directory.
package paperboy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pevans/paperboy/config"
	"github.com/pevans/paperboy/discovery"
	"github.com/pevans/paperboy/ledger"
	"github.com/pevans/paperboy/logger"
	"github.com/pevans/paperboy/scraper"
	"github.com/pevans/paperboy/session"
	"github.com/spf13/afero"
)

// ErrAuthentication is returned by Run when the portal still shows the
// visitor as logged out after the login attempt.
var ErrAuthentication = errors.New("incorrect credentials")

// Browser is the session a Workflow navigates the portal with.
type Browser interface {
	discovery.Browser
	Post(ctx context.Context, rawURL string, form url.Values, header http.Header) (*http.Response, error)
}

var _ Browser = (*session.Client)(nil)

// Recorder receives every completed download.
type Recorder interface {
	Record(newspaper, releaseDate, filename string, bytes int64) (*ledger.Entry, error)
}

var _ Recorder = (*ledger.Ledger)(nil)

// Options configures a Workflow.
type Options struct {
	Username string
	Password string

	OutputDirectory string
	// FilenameTemplate may contain {date} and {newspaper}. The value
	// "unchanged" keeps the filename sent by the portal.
	FilenameTemplate string

	Site  scraper.SiteConfig
	Delay Delay
	// Debug dumps the account page after a login attempt to
	// login_page.html.
	Debug bool
	// Progress receives progress bars when set.
	Progress io.Writer
	// Ledger is optional.
	Ledger Recorder

	Fs     afero.Fs
	Logger logger.Logger
}

// Result summarizes a run.
type Result struct {
	Discovered int
	Downloaded int
	// Skipped counts issues whose file already existed.
	Skipped int
	// Failed counts issues left out because the portal's answer was
	// unusable.
	Failed int
	// LoggedIn reports whether the portal accepted the session, either
	// from stored cookies or after posting the credentials.
	LoggedIn bool
}

// Workflow runs the login, discovery and download sequence once.
type Workflow struct {
	browser    Browser
	discoverer discovery.Discoverer
	opts       Options
	fs         afero.Fs
	log        logger.Logger
}

// New creates a Workflow. Zero-valued options fall back to the OS
// filesystem, a silent logger, the default site and the default filename
// template.
func New(browser Browser, discoverer discovery.Discoverer, opts Options) *Workflow {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Site.BaseURL == "" {
		opts.Site = scraper.DefaultSiteConfig()
	}
	if opts.FilenameTemplate == "" {
		opts.FilenameTemplate = config.DefaultFilenameTemplate
	}

	return &Workflow{
		browser:    browser,
		discoverer: discoverer,
		opts:       opts,
		fs:         opts.Fs,
		log:        opts.Logger,
	}
}

// Run logs in, discovers the available issues and downloads the missing
// ones. It returns ErrAuthentication if the login fails; no download is
// attempted in that case. Network errors abort the run. The returned Result
// is never nil.
func (w *Workflow) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := w.login(ctx); err != nil {
		return result, err
	}
	result.LoggedIn = true

	if err := w.opts.Delay.Sleep(ctx); err != nil {
		return result, err
	}
	issues, err := w.discoverer.Discover(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to discover issues: %w", err)
	}
	result.Discovered = len(issues)
	w.log.Debug("Discovered %d issues", len(issues))

	if err := w.fs.MkdirAll(w.opts.OutputDirectory, 0o755); err != nil {
		return result, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.downloadAll(ctx, issues, result); err != nil {
		return result, err
	}

	return result, nil
}

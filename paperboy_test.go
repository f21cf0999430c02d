package paperboy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pevans/paperboy/discovery"
	"github.com/pevans/paperboy/ledger"
	"github.com/pevans/paperboy/logger"
	"github.com/pevans/paperboy/scraper"
	"github.com/pevans/paperboy/session"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outputDir = "/papers"

// portal is a minimal stand-in for the e-paper site. The account page shows
// a username once the login cookie is set; downloads are served under
// /download/<token>.
type portal struct {
	t        *testing.T
	srv      *httptest.Server
	password string

	mu        sync.Mutex
	hits      map[string]int
	downloads map[string]string // token -> Content-Disposition
}

func newPortal(t *testing.T) *portal {
	p := &portal{
		t:        t,
		password: "correct horse",
		hits:     make(map[string]int),
		downloads: map[string]string{
			"FAZ-05032024":   `attachment; filename="FAZ_2024-03-05.pdf"`,
			"WOCHE-01032024": `attachment; filename="WOCHE_2024-03-01.pdf"`,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		p.hit("index")
		fmt.Fprint(w, `<html><body>FAZ.NET</body></html>`)
	})
	mux.HandleFunc("/mein-faz-net/", func(w http.ResponseWriter, r *http.Request) {
		p.hit("account")
		if c, err := r.Cookie("login"); err == nil && c.Value == "ok" {
			fmt.Fprint(w, `<html><body><span class="Username">reader</span></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/login">Anmelden</a></body></html>`)
	})
	mux.HandleFunc("/membership/loginNoScript", func(w http.ResponseWriter, r *http.Request) {
		p.hit("login")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "reader", r.PostForm.Get("loginName"))
		assert.Equal(t, "/epaper/", r.PostForm.Get("redirectUrl"))
		assert.Equal(t, "on", r.PostForm.Get("rememberMe"))
		if r.PostForm.Get("password") == p.password {
			http.SetCookie(w, &http.Cookie{Name: "login", Value: "ok", Path: "/", MaxAge: 3600})
		}
		fmt.Fprint(w, `<html><body>redirecting</body></html>`)
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.URL.Path, "/download/")
		p.hit("download:" + token)

		p.mu.Lock()
		disposition, ok := p.downloads[token]
		p.mu.Unlock()
		if !ok {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		if disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		}
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprintf(w, "%%PDF-1.4 %s", token)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *portal) hit(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits[name]++
}

func (p *portal) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[name]
}

func (p *portal) site() scraper.SiteConfig {
	site := scraper.DefaultSiteConfig()
	site.BaseURL = p.srv.URL + "/"
	site.AccountURL = p.srv.URL + "/mein-faz-net/?redirectUrl=%2Faktuell%2F"
	site.LoginURL = p.srv.URL + "/membership/loginNoScript"
	site.DownloadURL = p.srv.URL + "/download/{link}"
	return site
}

// stubDiscoverer returns a fixed issue list.
type stubDiscoverer struct {
	issues []discovery.Issue
	err    error
	calls  int
}

func (s *stubDiscoverer) Discover(ctx context.Context) ([]discovery.Issue, error) {
	s.calls++
	return s.issues, s.err
}

// recorder collects ledger entries in memory.
type recorder struct {
	filenames []string
	err       error
}

func (r *recorder) Record(newspaper, releaseDate, filename string, bytes int64) (*ledger.Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.filenames = append(r.filenames, filename)
	return &ledger.Entry{Newspaper: newspaper, ReleaseDate: releaseDate, Filename: filename, Bytes: bytes}, nil
}

func testIssues() []discovery.Issue {
	return []discovery.Issue{
		{Newspaper: discovery.FAZ, ReleaseDate: "05.03.2024", Link: "FAZ-05032024"},
		{Newspaper: discovery.Woche, ReleaseDate: "01.03.2024", Link: "WOCHE-01032024"},
	}
}

type fixture struct {
	portal     *portal
	browser    *session.Client
	discoverer *stubDiscoverer
	fs         afero.Fs
	log        *logger.MockLogger
	ledger     *recorder
}

func newFixture(t *testing.T) *fixture {
	p := newPortal(t)
	return &fixture{
		portal:     p,
		browser:    session.New(session.Config{UserAgent: "test", Fs: afero.NewMemMapFs()}),
		discoverer: &stubDiscoverer{issues: testIssues()},
		fs:         afero.NewMemMapFs(),
		log:        logger.NewMockLogger(),
		ledger:     &recorder{},
	}
}

func (f *fixture) workflow(modify ...func(o *Options)) *Workflow {
	opts := Options{
		Username:        "reader",
		Password:        f.portal.password,
		OutputDirectory: outputDir,
		Site:            f.portal.site(),
		Delay:           Delay{Disabled: true},
		Ledger:          f.ledger,
		Fs:              f.fs,
		Logger:          f.log,
	}
	for _, m := range modify {
		m(&opts)
	}
	return New(f.browser, f.discoverer, opts)
}

func (f *fixture) readFile(t *testing.T, name string) string {
	data, err := afero.ReadFile(f.fs, filepath.Join(outputDir, name))
	require.NoError(t, err)
	return string(data)
}

func TestRun_DownloadsIssues(t *testing.T) {
	f := newFixture(t)

	result, err := f.workflow().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Result{Discovered: 2, Downloaded: 2, LoggedIn: true}, result)
	assert.Equal(t, "%PDF-1.4 FAZ-05032024", f.readFile(t, "20240305_FAZ.pdf"))
	assert.Equal(t, "%PDF-1.4 WOCHE-01032024", f.readFile(t, "20240301_WOCHE.pdf"))
	assert.Equal(t, []string{"20240305_FAZ.pdf", "20240301_WOCHE.pdf"}, f.ledger.filenames)

	assert.Equal(t, 1, f.portal.count("index"))
	assert.Equal(t, 1, f.portal.count("login"))
	assert.Equal(t, 2, f.portal.count("account"))
	assert.Contains(t, f.log.InfoCalls, "Not logged in yet, trying to log in.")
	assert.Contains(t, f.log.InfoCalls, "Downloading 20240305_FAZ.pdf...")

	partials, err := afero.Glob(f.fs, filepath.Join(outputDir, "*.part"))
	require.NoError(t, err)
	assert.Empty(t, partials)
}

func TestRun_SecondRunSkipsExisting(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow().Run(context.Background())
	require.NoError(t, err)

	result, err := f.workflow().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Result{Discovered: 2, Skipped: 2, LoggedIn: true}, result)
	assert.Equal(t, 1, f.portal.count("download:FAZ-05032024"))
	assert.Equal(t, 1, f.portal.count("download:WOCHE-01032024"))
	// The cookie from the first run keeps the session logged in.
	assert.Equal(t, 1, f.portal.count("login"))
	assert.Contains(t, f.log.InfoCalls, "Already logged in.")
	assert.Contains(t, f.log.InfoCalls, "20240305_FAZ.pdf already downloaded... ")
	assert.Equal(t, 2, f.discoverer.calls)
}

func TestRun_AuthenticationFailure(t *testing.T) {
	f := newFixture(t)

	result, err := f.workflow(func(o *Options) {
		o.Password = "wrong"
		o.Debug = true
	}).Run(context.Background())

	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, &Result{}, result)
	assert.Equal(t, 0, f.discoverer.calls)
	assert.Equal(t, 0, f.portal.count("download:FAZ-05032024"))
	assert.Equal(t, []string{"Incorrect credentials?"}, f.log.ErrorCalls)

	dump, err := afero.ReadFile(f.fs, loginPageDump)
	require.NoError(t, err)
	assert.Contains(t, string(dump), "Anmelden")

	exists, err := afero.DirExists(f.fs, outputDir)
	require.NoError(t, err)
	assert.False(t, exists, "nothing is written before a successful login")
}

func TestRun_NoDumpWithoutDebug(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow(func(o *Options) { o.Password = "wrong" }).Run(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)

	exists, err := afero.Exists(f.fs, loginPageDump)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_UnchangedFilenames(t *testing.T) {
	f := newFixture(t)
	f.portal.downloads["FAZ-05032024"] = `attachment; filename="../../FAZ 2024-03-05.pdf"`
	f.portal.downloads["WOCHE-01032024"] = ""

	result, err := f.workflow(func(o *Options) { o.FilenameTemplate = "unchanged" }).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Result{Discovered: 2, Downloaded: 1, Failed: 1, LoggedIn: true}, result)
	assert.Equal(t, "%PDF-1.4 FAZ-05032024", f.readFile(t, "FAZ 2024-03-05.pdf"))
	require.Len(t, f.log.WarningCalls, 1)
	assert.Contains(t, f.log.WarningCalls[0], "Something wrong with this issue: WOCHE - 01.03.2024 ?")
}

func TestRun_UnchangedFilenamesSkipExisting(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.MkdirAll(outputDir, 0o755))
	require.NoError(t, afero.WriteFile(f.fs, filepath.Join(outputDir, "FAZ_2024-03-05.pdf"), []byte("old"), 0o644))

	result, err := f.workflow(func(o *Options) { o.FilenameTemplate = "unchanged" }).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Result{Discovered: 2, Downloaded: 1, Skipped: 1, LoggedIn: true}, result)
	assert.Equal(t, "old", f.readFile(t, "FAZ_2024-03-05.pdf"), "existing file must not be overwritten")
	assert.Equal(t, "%PDF-1.4 WOCHE-01032024", f.readFile(t, "WOCHE_2024-03-01.pdf"))
}

func TestRun_DownloadFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.discoverer.issues = []discovery.Issue{
		{Newspaper: discovery.FAS, ReleaseDate: "03.03.2024", Link: "missing"},
		{Newspaper: discovery.FAZ, ReleaseDate: "05.03.2024", Link: "FAZ-05032024"},
	}

	result, err := f.workflow().Run(context.Background())

	var statusErr *session.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, 0, result.Downloaded)
	assert.True(t, result.LoggedIn, "the login happened before the failure")

	exists, err := afero.Exists(f.fs, filepath.Join(outputDir, "20240303_FAS.pdf"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, f.portal.count("download:FAZ-05032024"), "the run stops at the first failure")
}

func TestRun_DiscoveryError(t *testing.T) {
	f := newFixture(t)
	f.discoverer.err = errors.New("portal redesign")

	_, err := f.workflow().Run(context.Background())
	assert.ErrorContains(t, err, "failed to discover issues: portal redesign")
}

func TestRun_LedgerFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.ledger.err = errors.New("disk full")

	result, err := f.workflow().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Downloaded)
	assert.Len(t, f.log.WarningCalls, 2)
}

func TestRun_WithProgress(t *testing.T) {
	f := newFixture(t)

	result, err := f.workflow(func(o *Options) { o.Progress = io.Discard }).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Downloaded)
}

func TestRun_TemplateSubdirectories(t *testing.T) {
	f := newFixture(t)

	result, err := f.workflow(func(o *Options) { o.FilenameTemplate = "{newspaper}/{date}.pdf" }).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, "%PDF-1.4 FAZ-05032024", f.readFile(t, "FAZ/20240305.pdf"))
	assert.Equal(t, "%PDF-1.4 WOCHE-01032024", f.readFile(t, "WOCHE/20240301.pdf"))
}

// statErrorFs fails every Stat on a PDF, like a directory the process may
// not read.
type statErrorFs struct {
	afero.Fs
}

func (s statErrorFs) Stat(name string) (fs.FileInfo, error) {
	if strings.HasSuffix(name, ".pdf") {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrPermission}
	}
	return s.Fs.Stat(name)
}

func TestRun_UnreadableOutputDirectory(t *testing.T) {
	f := newFixture(t)
	f.fs = statErrorFs{Fs: f.fs}

	result, err := f.workflow().Run(context.Background())

	require.ErrorIs(t, err, fs.ErrPermission)
	assert.ErrorContains(t, err, "failed to check 20240305_FAZ.pdf")
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, f.portal.count("download:FAZ-05032024"))
	assert.NotContains(t, f.log.InfoCalls, "20240305_FAZ.pdf already downloaded... ")
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.workflow().Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.portal.count("index"))
}

func TestRenderFilename(t *testing.T) {
	issue := discovery.Issue{Newspaper: discovery.FAZ, ReleaseDate: "05.03.2024"}

	assert.Equal(t, "20240305_FAZ.pdf", RenderFilename("{date}_{newspaper}.pdf", issue))
	assert.Equal(t, "FAZ/2024-issue-20240305.pdf", RenderFilename("{newspaper}/2024-issue-{date}.pdf", issue))
}

func TestContentDispositionFilename(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"quoted", `attachment; filename="FAZ_20240305.pdf"`, "FAZ_20240305.pdf", true},
		{"unquoted", `attachment; filename=FAZ.pdf`, "FAZ.pdf", true},
		{"unparseable falls back to quotes", `attachment; filename="F.A.Z. 05.03.2024.pdf"; size=`, "F.A.Z. 05.03.2024.pdf", true},
		{"path stripped", `attachment; filename="../etc/passwd"`, "passwd", true},
		{"windows path stripped", `attachment; filename="C:\\tmp\\FAZ.pdf"`, "FAZ.pdf", true},
		{"empty header", "", "", false},
		{"no filename", "inline", "", false},
		{"dot dot", `attachment; filename=".."`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ContentDispositionFilename(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

package paperboy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"
)

const loginPageDump = "login_page.html"

// login makes sure the session is logged in, reusing the cookies of an
// earlier run when they are still valid.
func (w *Workflow) login(ctx context.Context) error {
	if err := w.warmUp(ctx); err != nil {
		return err
	}

	loggedIn, _, err := w.probe(ctx)
	if err != nil {
		return err
	}
	if err := w.opts.Delay.Sleep(ctx); err != nil {
		return err
	}

	if loggedIn {
		w.log.Info("Already logged in.")
		return nil
	}

	w.log.Info("Not logged in yet, trying to log in.")
	form := url.Values{
		"loginName":   {w.opts.Username},
		"password":    {w.opts.Password},
		"redirectUrl": {w.opts.Site.LoginRedirect},
		"rememberMe":  {"on"},
	}
	resp, err := w.browser.Post(ctx, w.opts.Site.LoginURL, form, nil)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	loggedIn, page, err := w.probe(ctx)
	if err != nil {
		return err
	}

	if w.opts.Debug {
		if err := afero.WriteFile(w.fs, loginPageDump, page, 0o600); err != nil {
			w.log.Warning("Could not write %s: %v", loginPageDump, err)
		}
	}

	if !loggedIn {
		w.log.Error("Incorrect credentials?")
		return ErrAuthentication
	}

	return nil
}

// warmUp visits the site root first, like a reader arriving at the portal.
// The root page cannot tell whether we are logged in: the username is only
// filled in by script.
func (w *Workflow) warmUp(ctx context.Context) error {
	if err := w.opts.Delay.Sleep(ctx); err != nil {
		return err
	}

	resp, err := w.browser.Get(ctx, w.opts.Site.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.opts.Site.BaseURL, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return w.opts.Delay.Sleep(ctx)
}

// probe fetches the account page and reports whether it shows a username.
// The raw page is returned for debugging.
func (w *Workflow) probe(ctx context.Context) (bool, []byte, error) {
	resp, err := w.browser.Get(ctx, w.opts.Site.AccountURL, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open account page: %w", err)
	}
	defer resp.Body.Close()

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read account page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return false, page, fmt.Errorf("failed to parse account page: %w", err)
	}

	return doc.Find(w.opts.Site.Selectors.Username).Length() > 0, page, nil
}

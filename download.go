package paperboy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pevans/paperboy/config"
	"github.com/pevans/paperboy/discovery"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const chunkSize = 1024

// Some portals send Content-Disposition values mime cannot parse, such as
// unquoted spaces; the filename is then taken as-is from between quotes.
var filenamePattern = regexp.MustCompile(`filename="(.*)"`)

// RenderFilename fills the {date} and {newspaper} placeholders of template.
// The date is rendered as YYYYMMDD so that filenames sort by date.
func RenderFilename(template string, issue discovery.Issue) string {
	return strings.NewReplacer(
		"{date}", issue.SortableDate(),
		"{newspaper}", string(issue.Newspaper),
	).Replace(template)
}

// ContentDispositionFilename extracts the filename from a Content-Disposition
// header. Directory components are dropped so the result can always be
// joined to the output directory.
func ContentDispositionFilename(header string) (string, bool) {
	if strings.TrimSpace(header) == "" {
		return "", false
	}

	var name string
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if m := filenamePattern.FindStringSubmatch(header); m != nil {
			name = m[1]
		}
	}

	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return "", false
	}
	return name, true
}

func (w *Workflow) downloadAll(ctx context.Context, issues []discovery.Issue, result *Result) error {
	var progress *mpb.Progress
	if w.opts.Progress != nil {
		progress = mpb.NewWithContext(ctx, mpb.WithOutput(w.opts.Progress), mpb.WithWidth(64))
		defer progress.Wait()
	}

	if err := w.opts.Delay.Sleep(ctx); err != nil {
		return err
	}

	for _, issue := range issues {
		var err error
		if w.opts.FilenameTemplate == config.UnchangedFilename {
			err = w.downloadServerNamed(ctx, progress, issue, result)
		} else {
			err = w.downloadTemplated(ctx, progress, issue, result)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *Workflow) downloadTemplated(ctx context.Context, progress *mpb.Progress, issue discovery.Issue, result *Result) error {
	filename := RenderFilename(w.opts.FilenameTemplate, issue)
	exists, err := w.exists(filename)
	if err != nil {
		return err
	}
	if exists {
		w.log.Info("%s already downloaded... ", filename)
		result.Skipped++
		return nil
	}

	resp, err := w.browser.Get(ctx, w.opts.Site.DownloadLink(issue.Link), nil)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", issue, err)
	}
	defer resp.Body.Close()

	return w.save(progress, issue, resp, filename, result)
}

// downloadServerNamed only learns the filename from the response, so the
// request is made before the existence check.
func (w *Workflow) downloadServerNamed(ctx context.Context, progress *mpb.Progress, issue discovery.Issue, result *Result) error {
	if err := w.opts.Delay.Sleep(ctx); err != nil {
		return err
	}

	resp, err := w.browser.Get(ctx, w.opts.Site.DownloadLink(issue.Link), nil)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", issue, err)
	}
	defer resp.Body.Close()

	filename, ok := ContentDispositionFilename(resp.Header.Get("Content-Disposition"))
	if !ok {
		w.log.Warning("Something wrong with this issue: %s ?", issue)
		result.Failed++
		return nil
	}

	exists, err := w.exists(filename)
	if err != nil {
		return err
	}
	if exists {
		w.log.Info("%s already downloaded... ", filename)
		result.Skipped++
		return nil
	}

	return w.save(progress, issue, resp, filename, result)
}

// save streams the response into <filename>.part and renames it once the
// transfer is complete, so that an aborted transfer never passes the
// existence check of a later run.
func (w *Workflow) save(progress *mpb.Progress, issue discovery.Issue, resp *http.Response, filename string, result *Result) error {
	w.log.Info("Downloading %s...", filename)

	target := filepath.Join(w.opts.OutputDirectory, filename)
	partial := target + ".part"

	// Templates may place issues in subdirectories.
	if err := w.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}

	f, err := w.fs.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partial, err)
	}

	var body io.Reader = resp.Body
	var bar *mpb.Bar
	if progress != nil {
		bar = newBar(progress, filename, resp.ContentLength)
		body = bar.ProxyReader(resp.Body)
	}

	n, err := io.CopyBuffer(struct{ io.Writer }{f}, body, make([]byte, chunkSize))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if bar != nil {
			bar.Abort(false)
		}
		w.fs.Remove(partial)
		return fmt.Errorf("failed to download %s: %w", filename, err)
	}
	if bar != nil {
		bar.SetTotal(-1, true)
	}

	if err := w.fs.Rename(partial, target); err != nil {
		w.fs.Remove(partial)
		return fmt.Errorf("failed to move %s into place: %w", filename, err)
	}

	result.Downloaded++
	w.log.Debug("Saved %s (%d bytes)", target, n)

	if w.opts.Ledger != nil {
		if _, err := w.opts.Ledger.Record(string(issue.Newspaper), issue.ReleaseDate, filename, n); err != nil {
			w.log.Warning("Could not record %s in ledger: %v", filename, err)
		}
	}

	return nil
}

// exists reports whether filename is already present in the output
// directory. Errors other than a missing file are returned, so that an
// unreadable directory is not mistaken for a complete one.
func (w *Workflow) exists(filename string) (bool, error) {
	_, err := w.fs.Stat(filepath.Join(w.opts.OutputDirectory, filename))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check %s: %w", filename, err)
	}
}

func newBar(p *mpb.Progress, name string, total int64) *mpb.Bar {
	if total < 0 {
		total = 0
	}
	return p.New(total,
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "Complete",
			),
		),
		mpb.AppendDecorators(
			decor.AverageSpeed(decor.SizeB1024(0), "% .2f"),
		),
	)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pevans/paperboy"
	"github.com/pevans/paperboy/config"
	"github.com/pevans/paperboy/credentials"
	"github.com/pevans/paperboy/discovery"
	"github.com/pevans/paperboy/ledger"
	"github.com/pevans/paperboy/logger"
	"github.com/pevans/paperboy/session"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

const (
	exitOK     = 0
	exitAuth   = 1
	exitConfig = 2
	exitRun    = 3
)

// configError marks errors detected before any request is made.
type configError struct {
	err error
}

func (e *configError) Error() string {
	return e.err.Error()
}

func (e *configError) Unwrap() error {
	return e.err
}

// exitCode maps the error returned by the app to the process exit status.
func exitCode(err error) int {
	var cfgErr *configError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, paperboy.ErrAuthentication):
		return exitAuth
	case errors.As(err, &cfgErr):
		return exitConfig
	default:
		return exitRun
	}
}

type passwordStore interface {
	Password(username string) (string, error)
	SetPassword(username, password string) error
}

type runFunc func(ctx context.Context, s *config.Settings, log logger.Logger) (*paperboy.Result, error)

// app holds what the command needs from the outside world, so that tests
// can replace it.
type app struct {
	fs     afero.Fs
	store  passwordStore
	stderr io.Writer
	ctx    context.Context
	run    runFunc
}

func newApp(a *app) *cli.App {
	cliApp := cli.NewApp()
	cliApp.Name = "paperboy"
	cliApp.HelpName = "paperboy"
	cliApp.Usage = "download the FAZ, WOCHE and FAS e-paper editions"
	cliApp.Version = version
	cliApp.Writer = a.stderr
	cliApp.ErrWriter = a.stderr
	cliApp.Flags = runFlags
	cliApp.OnUsageError = func(ctx *cli.Context, err error, _ bool) error {
		fmt.Fprintf(a.stderr, "Incorrect Usage: %v\n\n", err)
		cli.ShowAppHelp(ctx)
		return &configError{err: err}
	}
	cliApp.Action = a.action
	return cliApp
}

func (a *app) action(c *cli.Context) error {
	s, err := a.resolveSettings(c)
	if err != nil {
		return err
	}

	log := logger.NewConsoleLogger(a.stderr, s.Debug)
	if s.Password == "" {
		s.Password = a.storedPassword(s.Username, log)
	}
	if err := s.Validate(); err != nil {
		return &configError{err: err}
	}

	result, err := a.run(a.ctx, s, log)

	// Only a password the portal has accepted is worth keeping.
	if c.Bool("save-password") && result != nil && result.LoggedIn {
		if err := a.store.SetPassword(s.Username, s.Password); err != nil {
			log.Warning("%v", err)
		} else {
			log.Info("Password for %s stored in the keyring.", s.Username)
		}
	}

	if err != nil {
		return err
	}

	log.Info("Done: %d issues found, %d downloaded, %d already present, %d unusable.",
		result.Discovered, result.Downloaded, result.Skipped, result.Failed)
	return nil
}

// resolveSettings layers the config file, the environment and the flags
// over the defaults.
func (a *app) resolveSettings(c *cli.Context) (*config.Settings, error) {
	s := config.Default()

	configPath, err := config.ExpandHome(c.String("config"))
	if err != nil {
		return nil, &configError{err: err}
	}
	if err := config.LoadConfigFile(a.fs, configPath, s); err != nil {
		return nil, &configError{err: err}
	}

	s.ApplyEnv()

	for name, dst := range map[string]*string{
		"user-agent":        &s.UserAgent,
		"output-directory":  &s.OutputDirectory,
		"username":          &s.Username,
		"password":          &s.Password,
		"cookie-file":       &s.CookieFile,
		"filename-template": &s.FilenameTemplate,
	} {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.Bool("debug") {
		s.Debug = true
	}
	if c.Bool("keep-session-cookies") {
		s.KeepSessionCookies = true
	}
	if c.Bool("no-delay") {
		s.Delay.Disabled = true
	}
	if c.Bool("progress") {
		s.Progress = true
	}

	if err := s.ExpandPaths(); err != nil {
		return nil, &configError{err: err}
	}

	return s, nil
}

func (a *app) storedPassword(username string, log logger.Logger) string {
	if username == "" || a.store == nil {
		return ""
	}

	password, err := a.store.Password(username)
	if errors.Is(err, credentials.ErrNotFound) {
		return ""
	}
	if err != nil {
		log.Debug("%v", err)
		return ""
	}

	log.Debug("Using password for %s from the keyring", username)
	return password
}

// runWorkflow wires the session, discovery backend and ledger together and
// runs one download pass.
func runWorkflow(ctx context.Context, s *config.Settings, log logger.Logger) (*paperboy.Result, error) {
	client := session.New(session.Config{
		UserAgent:          s.UserAgent,
		CookieFile:         s.CookieFile,
		KeepSessionCookies: s.KeepSessionCookies,
		Timeout:            s.Timeout,
		Logger:             log,
	})
	defer func() {
		if err := client.Close(); err != nil {
			log.Debug("%v", err)
		}
	}()

	discoverer, err := discovery.New(s.Discovery.Backend, client, s.Site, log)
	if err != nil {
		return nil, &configError{err: err}
	}

	opts := paperboy.Options{
		Username:         s.Username,
		Password:         s.Password,
		OutputDirectory:  s.OutputDirectory,
		FilenameTemplate: s.FilenameTemplate,
		Site:             s.Site,
		Delay: paperboy.Delay{
			Min:      s.Delay.Min,
			Max:      s.Delay.Max,
			Disabled: s.Delay.Disabled,
		},
		Debug:  s.Debug,
		Logger: log,
	}
	if s.Progress {
		opts.Progress = os.Stderr
	}

	if s.Ledger != "" {
		if l, err := openLedger(s.Ledger); err != nil {
			log.Warning("Download ledger disabled: %v", err)
		} else {
			defer l.Close()
			opts.Ledger = l
		}
	}

	return paperboy.New(client, discoverer, opts).Run(ctx)
}

func openLedger(path string) (*ledger.Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return ledger.NewLedger(path)
}

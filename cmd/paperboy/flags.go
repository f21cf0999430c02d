package main

import (
	"github.com/pevans/paperboy/config"
	"github.com/urfave/cli"
)

var runFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "user-agent, ua",
		Usage:  "user agent paperboy sends to the portal",
		EnvVar: config.EnvUserAgent,
	},
	cli.StringFlag{
		Name:   "output-directory, o",
		Usage:  "directory to store the PDFs of the downloaded newspaper issues (created if missing)",
		EnvVar: config.EnvOutputDirectory,
	},
	cli.StringFlag{
		Name:   "username, u",
		Usage:  "user name to log in at faz.net for the e-paper download",
		EnvVar: config.EnvUsername,
	},
	cli.StringFlag{
		Name:   "password, p",
		Usage:  "password for the user given by --username (looked up in the keyring if omitted)",
		EnvVar: config.EnvPassword,
	},
	cli.StringFlag{
		Name:   "cookie-file, c",
		Usage:  "file to store the cookies in",
		EnvVar: config.EnvCookieFile,
		Value:  config.DefaultCookieFile,
	},
	cli.StringFlag{
		Name:   "filename-template, t",
		Usage:  `template for the output filenames; use "unchanged" to keep the portal's filenames`,
		EnvVar: config.EnvFilenameTemplate,
		Value:  config.DefaultFilenameTemplate,
	},
	cli.BoolFlag{
		Name:  "debug, d",
		Usage: "increase verbosity and dump the login page to login_page.html",
	},
	cli.BoolFlag{
		Name:   "keep-session-cookies",
		Usage:  "also persist cookies the portal marks as session-only",
		EnvVar: config.EnvKeepSessionCookies,
	},
	cli.BoolFlag{
		Name:  "save-password",
		Usage: "store the password in the OS keyring after a successful login",
	},
	cli.BoolFlag{
		Name:  "no-delay",
		Usage: "do not pause between requests",
	},
	cli.BoolFlag{
		Name:  "progress",
		Usage: "show download progress bars on stderr",
	},
	cli.StringFlag{
		Name:   "config",
		Usage:  "path of the YAML config file",
		EnvVar: config.EnvConfig,
		Value:  config.DefaultConfigFile,
	},
}

// Package config resolves paperboy's settings. Values are layered: built-in
// defaults, then the YAML config file, then PAPERBOY_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pevans/paperboy/discovery"
	"github.com/pevans/paperboy/scraper"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile       = "~/.paperboy/config.yaml"
	DefaultCookieFile       = "~/.FAZ-paperboy_cookies.txt"
	DefaultLedger           = "~/.paperboy/ledger.db"
	DefaultFilenameTemplate = "{date}_{newspaper}.pdf"

	// UnchangedFilename as filename template keeps the name the portal
	// sends in Content-Disposition.
	UnchangedFilename = "unchanged"
)

// Settings is everything a run needs. The YAML keys double as the config
// file format, e.g. ~/.paperboy/config.yaml:
//
//	user_agent: "Mozilla/5.0 ..."
//	output_directory: ~/newspapers
//	username: reader@example.com
//	delay:
//	  min: 1s
//	  max: 4s
//	discovery:
//	  backend: dropdown
type Settings struct {
	UserAgent          string             `yaml:"user_agent"`
	OutputDirectory    string             `yaml:"output_directory"`
	Username           string             `yaml:"username"`
	Password           string             `yaml:"password,omitempty"`
	CookieFile         string             `yaml:"cookie_file"`
	FilenameTemplate   string             `yaml:"filename_template"`
	KeepSessionCookies bool               `yaml:"keep_session_cookies"`
	Debug              bool               `yaml:"debug"`
	Progress           bool               `yaml:"progress"`
	Timeout            time.Duration      `yaml:"timeout"`
	Delay              DelaySettings      `yaml:"delay"`
	Discovery          DiscoverySettings  `yaml:"discovery"`
	Site               scraper.SiteConfig `yaml:"site"`
	// Ledger is the path of the download ledger. Empty disables it.
	Ledger string `yaml:"ledger"`
}

// DelaySettings bounds the random pauses between navigation steps.
type DelaySettings struct {
	Min      time.Duration `yaml:"min"`
	Max      time.Duration `yaml:"max"`
	Disabled bool          `yaml:"disabled"`
}

// DiscoverySettings selects how issues are found on the portal.
type DiscoverySettings struct {
	Backend string `yaml:"backend"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		CookieFile:       DefaultCookieFile,
		FilenameTemplate: DefaultFilenameTemplate,
		Timeout:          30 * time.Second,
		Delay: DelaySettings{
			Min: 600 * time.Millisecond,
			Max: 5300 * time.Millisecond,
		},
		Discovery: DiscoverySettings{Backend: discovery.BackendDropdown},
		Site:      scraper.DefaultSiteConfig(),
		Ledger:    DefaultLedger,
	}
}

// LoadConfigFile reads the YAML file at path over s. Keys missing from the
// file keep their current values. A missing file is not an error.
func LoadConfigFile(fsys afero.Fs, path string, s *Settings) error {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

// ExpandPaths applies ExpandHome to every path setting.
func (s *Settings) ExpandPaths() error {
	for _, p := range []*string{&s.OutputDirectory, &s.CookieFile, &s.Ledger} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pevans/paperboy/discovery"
)

// Environment variables read by ApplyEnv.
const (
	EnvUserAgent          = "PAPERBOY_USER_AGENT"
	EnvOutputDirectory    = "PAPERBOY_OUTPUT_DIRECTORY"
	EnvUsername           = "PAPERBOY_USERNAME"
	EnvPassword           = "PAPERBOY_PASSWORD"
	EnvCookieFile         = "PAPERBOY_COOKIE_FILE"
	EnvFilenameTemplate   = "PAPERBOY_FILENAME_TEMPLATE"
	EnvKeepSessionCookies = "PAPERBOY_KEEP_SESSION_COOKIES"
	EnvTimeout            = "PAPERBOY_TIMEOUT"
	EnvDiscoveryBackend   = "PAPERBOY_DISCOVERY_BACKEND"
	EnvLedger             = "PAPERBOY_LEDGER_DSN"
	EnvConfig             = "PAPERBOY_CONFIG"
)

// ErrInvalidSettings wraps every error returned by Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool parses a boolean from environment variable or returns default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// ApplyEnv overrides s with any PAPERBOY_* environment variables that are
// set. Unparseable values are ignored.
func (s *Settings) ApplyEnv() {
	s.UserAgent = getEnv(EnvUserAgent, s.UserAgent)
	s.OutputDirectory = getEnv(EnvOutputDirectory, s.OutputDirectory)
	s.Username = getEnv(EnvUsername, s.Username)
	s.Password = getEnv(EnvPassword, s.Password)
	s.CookieFile = getEnv(EnvCookieFile, s.CookieFile)
	s.FilenameTemplate = getEnv(EnvFilenameTemplate, s.FilenameTemplate)
	s.KeepSessionCookies = getEnvBool(EnvKeepSessionCookies, s.KeepSessionCookies)
	s.Timeout = getEnvDuration(EnvTimeout, s.Timeout)
	s.Discovery.Backend = getEnv(EnvDiscoveryBackend, s.Discovery.Backend)
	s.Ledger = getEnv(EnvLedger, s.Ledger)
}

// Validate reports every missing required value and every inconsistent
// one. The password is checked too, so any keyring lookup must happen
// first.
func (s *Settings) Validate() error {
	var missing []string
	if strings.TrimSpace(s.UserAgent) == "" {
		missing = append(missing, "user agent (--user-agent)")
	}
	if strings.TrimSpace(s.OutputDirectory) == "" {
		missing = append(missing, "output directory (--output-directory)")
	}
	if strings.TrimSpace(s.Username) == "" {
		missing = append(missing, "username (--username)")
	}
	if s.Password == "" {
		missing = append(missing, "password (--password)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSettings, strings.Join(missing, ", "))
	}

	if s.FilenameTemplate == "" {
		return fmt.Errorf("%w: filename template must not be empty", ErrInvalidSettings)
	}
	if s.FilenameTemplate != UnchangedFilename &&
		!strings.Contains(s.FilenameTemplate, "{date}") &&
		!strings.Contains(s.FilenameTemplate, "{newspaper}") {
		return fmt.Errorf("%w: filename template %q names every issue the same", ErrInvalidSettings, s.FilenameTemplate)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidSettings)
	}
	if s.Delay.Min < 0 || s.Delay.Max < s.Delay.Min {
		return fmt.Errorf("%w: delay must satisfy 0 <= min <= max, got %s..%s", ErrInvalidSettings, s.Delay.Min, s.Delay.Max)
	}

	switch s.Discovery.Backend {
	case "", discovery.BackendDropdown:
	case discovery.BackendListing:
		if s.Site.ListingURL == "" {
			return fmt.Errorf("%w: discovery backend %q needs site.listing_url", ErrInvalidSettings, s.Discovery.Backend)
		}
	case discovery.BackendFeed:
		if s.Site.FeedURL == "" {
			return fmt.Errorf("%w: discovery backend %q needs site.feed_url", ErrInvalidSettings, s.Discovery.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown discovery backend %q", ErrInvalidSettings, s.Discovery.Backend)
	}

	return nil
}

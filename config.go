package gitpress

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eringen/gitpress/clock"
)

// SiteConfig holds all configuration for a gitpress server.
type SiteConfig struct {
	Name        string // Site name (default "gitpress")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for feeds and meta tags

	Addr string // Listen address (default ":3000")

	RepoName        string // Content repository name in every user's account (default "gitpress-content")
	RepoDescription string // Description set on repositories that have none
	PrivateRepos    bool   // Create content repositories as private
	GitHubAPIURL    string // GitHub REST base URL (default "https://api.github.com")

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	CacheTTL         time.Duration // Listing cache TTL (default 5min)
	CacheMaxEntries  int           // Entries per cache (default 500)
	RequestTimeout   time.Duration // Per remote call (default 10s)
	RetryMaxAttempts int           // Including the first call (default 3)
	RetryBaseDelay   time.Duration // Default 200ms
	RetryMaxDelay    time.Duration // Default 2s

	LoginAttempts int           // Failed logins allowed per IP per LoginWindow (default 5)
	LoginWindow   time.Duration // Default 1min
	WriteLimit    int           // Mutations allowed per user per WriteWindow (default 60)
	WriteWindow   time.Duration // Default 1min

	// LocalStorePath switches to the SQLite store instead of GitHub.
	// LocalToken and LocalUser are then the only accepted credential.
	LocalStorePath string
	LocalToken     string
	LocalUser      string

	LogFile  string // Rotated log file; empty logs to stderr
	LogLevel string // debug, info, warn or error (default info)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "gitpress"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.RepoName == "" {
		c.RepoName = "gitpress-content"
	}
	if c.GitHubAPIURL == "" {
		c.GitHubAPIURL = "https://api.github.com"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.CacheMaxEntries == 0 {
		c.CacheMaxEntries = 500
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RetryMaxAttempts == 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = 2 * time.Second
	}
	if c.LoginAttempts == 0 {
		c.LoginAttempts = 5
	}
	if c.LoginWindow == 0 {
		c.LoginWindow = time.Minute
	}
	if c.WriteLimit == 0 {
		c.WriteLimit = 60
	}
	if c.WriteWindow == 0 {
		c.WriteWindow = time.Minute
	}
	if c.LocalUser == "" {
		c.LocalUser = "local"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Local reports whether content is kept in SQLite rather than on GitHub.
func (c SiteConfig) Local() bool {
	return c.LocalStorePath != ""
}

func (c SiteConfig) validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("gitpress: SessionSecret is required")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("gitpress: SessionSecret must be at least 32 bytes")
	}
	if c.Local() && c.LocalToken == "" {
		return fmt.Errorf("gitpress: LocalToken is required with LocalStorePath")
	}
	return nil
}

// LoadConfig reads configuration from GITPRESS_* environment variables and,
// if file is non-empty, a config file in any format viper understands.
// Environment variables win over the file.
func LoadConfig(file string) (SiteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("GITPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return SiteConfig{}, fmt.Errorf("gitpress: reading config %s: %w", file, err)
		}
	}

	cfg := SiteConfig{
		Name:             v.GetString("name"),
		URL:              v.GetString("url"),
		Description:      v.GetString("description"),
		Addr:             v.GetString("addr"),
		RepoName:         v.GetString("repo_name"),
		RepoDescription:  v.GetString("repo_description"),
		PrivateRepos:     v.GetBool("private_repos"),
		GitHubAPIURL:     v.GetString("github_api_url"),
		SessionSecret:    v.GetString("session_secret"),
		CookieSecure:     v.GetBool("cookie_secure"),
		CacheTTL:         v.GetDuration("cache_ttl"),
		CacheMaxEntries:  v.GetInt("cache_max_entries"),
		RequestTimeout:   v.GetDuration("request_timeout"),
		RetryMaxAttempts: v.GetInt("retry_max_attempts"),
		RetryBaseDelay:   v.GetDuration("retry_base_delay"),
		RetryMaxDelay:    v.GetDuration("retry_max_delay"),
		LoginAttempts:    v.GetInt("login_attempts"),
		LoginWindow:      v.GetDuration("login_window"),
		WriteLimit:       v.GetInt("write_limit"),
		WriteWindow:      v.GetDuration("write_window"),
		LocalStorePath:   v.GetString("local_store_path"),
		LocalToken:       v.GetString("local_token"),
		LocalUser:        v.GetString("local_user"),
		LogFile:          v.GetString("log_file"),
		LogLevel:         v.GetString("log_level"),
	}
	cfg.setDefaults()
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithBackend replaces the backend chosen from the configuration.
func WithBackend(b Backend) Option {
	return func(a *App) {
		a.Backend = b
	}
}

// WithLogger sets the structured logger used by the App and everything it
// creates. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) Option {
	return func(a *App) {
		a.clock = clk
	}
}

// Package config handles loading the CodeNexus admin configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/fileutil"
)

// AdminConfig names the single account allowed to use the tool.
type AdminConfig struct {
	Email string `toml:"email"`
}

// FirestoreConfig holds remote document store settings.
type FirestoreConfig struct {
	ProjectID    string  `toml:"project_id"`
	Database     string  `toml:"database"`
	RateLimitQPS float64 `toml:"rate_limit_qps"` // <= 0 disables rate limiting
}

// OAuthConfig holds OAuth configuration.
type OAuthConfig struct {
	ClientSecrets string `toml:"client_secrets"`
}

// CacheConfig controls the local dataset cache.
type CacheConfig struct {
	QuotaBytes int64 `toml:"quota_bytes"`
	Disabled   bool  `toml:"disabled"` // keep the cache in memory for this run only
}

// ViewConfig controls table paging.
type ViewConfig struct {
	PageSize int `toml:"page_size"`
}

// EmailConfig holds bulk send defaults.
type EmailConfig struct {
	BatchSize    int    `toml:"batch_size"`
	AutoDispatch bool   `toml:"auto_dispatch"`
	Mode         string `toml:"mode"` // "bcc" or "personalized"
}

// Config represents the CodeNexus admin configuration.
type Config struct {
	Admin     AdminConfig     `toml:"admin"`
	Firestore FirestoreConfig `toml:"firestore"`
	OAuth     OAuthConfig     `toml:"oauth"`
	Cache     CacheConfig     `toml:"cache"`
	View      ViewConfig      `toml:"view"`
	Email     EmailConfig     `toml:"email"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	ConfigPath string `toml:"-"`
}

// envOverrides are applied after the config file. Unset variables leave
// the file value alone.
type envOverrides struct {
	AdminEmail    *string  `env:"CODENEXUS_ADMIN_EMAIL"`
	ProjectID     *string  `env:"CODENEXUS_PROJECT_ID"`
	ClientSecrets *string  `env:"CODENEXUS_CLIENT_SECRETS"`
	QuotaBytes    *int64   `env:"CODENEXUS_CACHE_QUOTA_BYTES"`
	RateLimitQPS  *float64 `env:"CODENEXUS_RATE_LIMIT_QPS"`
}

// Defaults applied before the config file is read.
const (
	DefaultQuotaBytes   = 5 << 20 // browser localStorage budget
	DefaultRateLimitQPS = 10
	DefaultPageSize     = 50
	DefaultBatchSize    = 100
	DefaultMode         = "bcc"
	DefaultDatabase     = "(default)"
)

// DefaultHome returns the default home directory.
// Respects the CODENEXUS_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("CODENEXUS_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codenexus-admin"
	}
	return filepath.Join(home, ".codenexus-admin")
}

// Load reads the configuration. An empty homeDir means DefaultHome; an
// empty path means config.toml in the home directory. A missing file
// yields the defaults.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	}
	homeDir = expandPath(homeDir)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := &Config{
		HomeDir:    homeDir,
		ConfigPath: path,
		Firestore: FirestoreConfig{
			Database:     DefaultDatabase,
			RateLimitQPS: DefaultRateLimitQPS,
		},
		Cache: CacheConfig{
			QuotaBytes: DefaultQuotaBytes,
		},
		View: ViewConfig{
			PageSize: DefaultPageSize,
		},
		Email: EmailConfig{
			BatchSize: DefaultBatchSize,
			Mode:      DefaultMode,
		},
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else if !os.IsNotExist(err) || explicit {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.OAuth.ClientSecrets = expandPath(cfg.OAuth.ClientSecrets)
	cfg.Admin.Email = strings.TrimSpace(cfg.Admin.Email)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.AdminEmail != nil {
		c.Admin.Email = *o.AdminEmail
	}
	if o.ProjectID != nil {
		c.Firestore.ProjectID = *o.ProjectID
	}
	if o.ClientSecrets != nil {
		c.OAuth.ClientSecrets = *o.ClientSecrets
	}
	if o.QuotaBytes != nil {
		c.Cache.QuotaBytes = *o.QuotaBytes
	}
	if o.RateLimitQPS != nil {
		c.Firestore.RateLimitQPS = *o.RateLimitQPS
	}
	return nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.View.PageSize < 1 {
		return fmt.Errorf("view.page_size must be at least 1, got %d", c.View.PageSize)
	}
	if c.Email.BatchSize < 1 {
		return fmt.Errorf("email.batch_size must be at least 1, got %d", c.Email.BatchSize)
	}
	if c.Cache.QuotaBytes < 0 {
		return fmt.Errorf("cache.quota_bytes must not be negative, got %d", c.Cache.QuotaBytes)
	}
	switch c.Email.Mode {
	case "bcc", "personalized":
	default:
		return fmt.Errorf("email.mode must be bcc or personalized, got %q", c.Email.Mode)
	}
	return nil
}

// RequireRemote reports what is missing before the document store can be
// reached.
func (c *Config) RequireRemote() error {
	var missing []string
	if c.Admin.Email == "" {
		missing = append(missing, "admin.email")
	}
	if c.Firestore.ProjectID == "" {
		missing = append(missing, "firestore.project_id")
	}
	if c.OAuth.ClientSecrets == "" {
		missing = append(missing, "oauth.client_secrets")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s (set in %s or the environment)", strings.Join(missing, ", "), c.ConfigPath)
	}
	return nil
}

// EnsureHomeDir creates the home directory with owner-only permissions.
func (c *Config) EnsureHomeDir() error {
	if err := fileutil.MkdirPrivate(c.HomeDir); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	return nil
}

// CachePath returns the path to the SQLite cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.HomeDir, "cache.db")
}

// SessionPath returns the path to the admin session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.HomeDir, "session.json")
}

// TokenPath returns the path to the stored OAuth token.
func (c *Config) TokenPath() string {
	return filepath.Join(c.HomeDir, "token.json")
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if len(path) > 1 && path[1] != '/' && path[1] != filepath.Separator {
		return path // ~user is not supported
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

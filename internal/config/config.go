package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendConfig selects and configures the calendar data source.
type BackendConfig struct {
	// Driver is "rest" (Supabase RPC over HTTP), "postgres" or "dir".
	Driver string `yaml:"driver" json:"driver"`
	// URL is the Supabase project URL, a Postgres DSN, or a fixture
	// directory, depending on Driver.
	URL string `yaml:"url" json:"url"`
	// APIKey is the Supabase anon/service key (rest driver only).
	APIKey string `yaml:"api_key" json:"-"`
	// Timeout bounds a single backend call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// CacheConfig controls the in-memory month cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
	MaxEntries int           `yaml:"max_entries" json:"max_entries"`
	// Dedupe coalesces concurrent fetches of the same month. A pointer so
	// that an explicit false survives Normalize.
	Dedupe *bool `yaml:"dedupe,omitempty" json:"dedupe,omitempty"`
}

// RetryConfig controls backoff of failed backend calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
}

// WatchConfig is an entity whose current and next month are kept warm.
type WatchConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	ID   string `yaml:"id" json:"id"`
	// Name is a human-friendly label used in logs and the UI.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// CaptureConfig controls PNG snapshots of the month page.
type CaptureConfig struct {
	Width   int           `yaml:"width" json:"width"`
	Height  int           `yaml:"height" json:"height"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// PublicURL is how the headless browser reaches this server when
	// capturing previews. Defaults to http://<listen>.
	PublicURL string `yaml:"public_url,omitempty" json:"public_url,omitempty"`

	// Timezone is the IANA timezone in which dates are interpreted.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogJSON switches logs to one JSON object per line.
	LogJSON bool `yaml:"log_json" json:"log_json"`

	Backend BackendConfig `yaml:"backend" json:"backend"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Retry   RetryConfig   `yaml:"retry" json:"retry"`

	// FallbackStatus is the status of events with neither a status token
	// nor tickets: "cancelled" (default) or "unlisted".
	FallbackStatus string `yaml:"fallback_status" json:"fallback_status"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// driving the cache prewarm of watched entities.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// PrewarmConcurrency bounds parallel backend calls during prewarm.
	PrewarmConcurrency int `yaml:"prewarm_concurrency" json:"prewarm_concurrency"`

	// Watch is the list of prewarmed entities.
	Watch []WatchConfig `yaml:"watch" json:"watch"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "UTC",
		LogLevel:       "info",
		FallbackStatus: "cancelled",
		RefreshCron:    "*/15 * * * *",
		Backend: BackendConfig{
			Driver: "rest",
		},
		Retry: RetryConfig{MaxRetries: 2},
		Watch: []WatchConfig{},
	}
	cfg.Normalize()
	return cfg
}

// DedupeEnabled reports the effective de-duplication setting.
func (c *Config) DedupeEnabled() bool {
	return c.Cache.Dedupe == nil || *c.Cache.Dedupe
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://" + c.Listen
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = "rest"
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 15 * time.Second
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.MaxEntries < 0 {
		c.Cache.MaxEntries = 0
	}
	// MaxRetries of zero is a valid setting; only negatives are reset.
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 2
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 250 * time.Millisecond
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 4 * time.Second
	}
	if c.FallbackStatus == "" {
		c.FallbackStatus = "cancelled"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.PrewarmConcurrency <= 0 {
		c.PrewarmConcurrency = 4
	}
	if c.Watch == nil {
		c.Watch = []WatchConfig{}
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 960
	}
	if c.Capture.Timeout <= 0 {
		c.Capture.Timeout = 30 * time.Second
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Retry.MaxRetries has a meaningful zero, so seed the default before
	// unmarshalling instead of patching it in Normalize.
	cfg := Config{Retry: RetryConfig{MaxRetries: 2}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the file may hold an API key).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".entcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

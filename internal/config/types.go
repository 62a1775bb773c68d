package config

import (
	"time"

	"github.com/chr1sbest/imagebatch/internal/hostpage"
)

// Config is the run configuration, loaded from JSON or YAML.
type Config struct {
	Name          string             `json:"name,omitempty" yaml:"name,omitempty"`
	Browser       BrowserConfig      `json:"browser" yaml:"browser"`
	Timing        TimingConfig       `json:"timing" yaml:"timing"`
	Selectors     hostpage.Selectors `json:"selectors" yaml:"selectors"`
	DownloadDir   string             `json:"download_dir" yaml:"download_dir"`
	FailurePolicy string             `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty"` // "abort" (default) or "skip"
	LogLevel      string             `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFile       string             `json:"log_file,omitempty" yaml:"log_file,omitempty"`

	// unresolved lists ${VAR} references that had no value and no default.
	unresolved []string
}

// BrowserConfig selects how the host tab is reached.
type BrowserConfig struct {
	Driver      string `json:"driver,omitempty" yaml:"driver,omitempty"`         // "chromedp" (default) or "rod"
	RemoteURL   string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"` // DevTools endpoint of a running Chrome
	Headless    bool   `json:"headless,omitempty" yaml:"headless,omitempty"`
	UserDataDir string `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	HostURL     string `json:"host_url,omitempty" yaml:"host_url,omitempty"`
	Fetch       string `json:"fetch,omitempty" yaml:"fetch,omitempty"`               // "page", "http" or "auto" (default)
	HTTPTimeout string `json:"http_timeout,omitempty" yaml:"http_timeout,omitempty"` // e.g. "30s"
}

// TimingConfig holds the waits and delays of the per-item script. Durations
// are strings such as "5s" or "500ms".
type TimingConfig struct {
	ElementTimeout   string `json:"element_timeout,omitempty" yaml:"element_timeout,omitempty"`
	PollInterval     string `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	ImageIterations  int    `json:"image_iterations,omitempty" yaml:"image_iterations,omitempty"`
	DetailIterations int    `json:"detail_iterations,omitempty" yaml:"detail_iterations,omitempty"`
	SettleDelay      string `json:"settle_delay,omitempty" yaml:"settle_delay,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Name:          "default",
		Browser:       BrowserConfig{Driver: "chromedp", Fetch: "auto"},
		DownloadDir:   "downloads",
		FailurePolicy: "abort",
		LogLevel:      "info",
	}
}

// ResolvedSelectors returns the default selectors with every configured
// override applied.
func (c *Config) ResolvedSelectors() hostpage.Selectors {
	return hostpage.DefaultSelectors().Merge(c.Selectors)
}

// UnresolvedEnv returns the environment variables referenced without a value
// or default.
func (c *Config) UnresolvedEnv() []string {
	return c.unresolved
}

// GetHTTPTimeout returns the direct download timeout (default 30s).
func (b BrowserConfig) GetHTTPTimeout() time.Duration {
	return parseDuration(b.HTTPTimeout, 30*time.Second)
}

// GetElementTimeout returns how long to wait for an element (default 5s).
func (t TimingConfig) GetElementTimeout() time.Duration {
	return parseDuration(t.ElementTimeout, 5*time.Second)
}

// GetPollInterval returns the change polling interval (default 1s).
func (t TimingConfig) GetPollInterval() time.Duration {
	return parseDuration(t.PollInterval, time.Second)
}

// GetSettleDelay returns the pause between steps (default 500ms).
func (t TimingConfig) GetSettleDelay() time.Duration {
	return parseDuration(t.SettleDelay, 500*time.Millisecond)
}

// GetImageIterations returns how many polls to wait for images (default 60).
func (t TimingConfig) GetImageIterations() int {
	if t.ImageIterations <= 0 {
		return 60
	}
	return t.ImageIterations
}

// GetDetailIterations returns how many polls to wait for the detail view
// (default 60).
func (t TimingConfig) GetDetailIterations() int {
	if t.DetailIterations <= 0 {
		return 60
	}
	return t.DetailIterations
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

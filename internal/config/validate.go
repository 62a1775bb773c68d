package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chr1sbest/imagebatch/internal/logger"
)

// ValidationError holds details about a configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
	Context string
}

func (e ValidationError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Field, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, "  - "+e.Error())
	}
	return fmt.Sprintf("validation failed with %d error(s):\n%s", len(errs), strings.Join(msgs, "\n"))
}

// HasErrors returns true if there are any validation errors.
func (errs ValidationErrors) HasErrors() bool {
	return len(errs) > 0
}

var (
	knownDrivers  = []string{"chromedp", "rod"}
	knownFetchers = []string{"auto", "page", "http"}
	knownPolicies = []string{"abort", "skip"}
)

// Validator validates run configurations.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a config for errors and returns every problem found.
func (v *Validator) Validate(cfg *Config) ValidationErrors {
	var errs ValidationErrors
	add := func(field, context, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Context: context})
	}

	b := cfg.Browser
	if b.Driver != "" && !oneOf(b.Driver, knownDrivers) {
		add("driver", "browser", "unknown driver %q, known drivers: %s", b.Driver, strings.Join(knownDrivers, ", "))
	}
	if b.Fetch != "" && !oneOf(b.Fetch, knownFetchers) {
		add("fetch", "browser", "unknown fetch mode %q, known modes: %s", b.Fetch, strings.Join(knownFetchers, ", "))
	}
	if b.RemoteURL == "" && b.HostURL == "" {
		add("host_url", "browser", "host_url is required when launching a browser")
	}
	if b.RemoteURL != "" {
		if u, err := url.Parse(b.RemoteURL); err != nil || u.Host == "" {
			add("remote_url", "browser", "invalid DevTools URL %q", b.RemoteURL)
		}
	}
	if b.HostURL != "" {
		if u, err := url.Parse(b.HostURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			add("host_url", "browser", "host_url must be an http(s) URL, got %q", b.HostURL)
		}
	}
	checkDuration(add, "http_timeout", "browser", b.HTTPTimeout)

	t := cfg.Timing
	checkDuration(add, "element_timeout", "timing", t.ElementTimeout)
	checkDuration(add, "poll_interval", "timing", t.PollInterval)
	checkDuration(add, "settle_delay", "timing", t.SettleDelay)
	if t.ImageIterations < 0 {
		add("image_iterations", "timing", "must not be negative")
	}
	if t.DetailIterations < 0 {
		add("detail_iterations", "timing", "must not be negative")
	}

	for _, name := range cfg.ResolvedSelectors().Missing() {
		add(name, "selectors", "selector is required")
	}

	if strings.TrimSpace(cfg.DownloadDir) == "" {
		add("download_dir", "", "download directory is required")
	}
	if cfg.FailurePolicy != "" && !oneOf(cfg.FailurePolicy, knownPolicies) {
		add("failure_policy", "", "unknown policy %q, known policies: %s", cfg.FailurePolicy, strings.Join(knownPolicies, ", "))
	}
	if cfg.LogLevel != "" {
		if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
			add("log_level", "", "%v", err)
		}
	}

	return errs
}

func checkDuration(add func(field, context, format string, args ...any), field, context, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		add(field, context, "invalid duration %q", value)
		return
	}
	if d < 0 {
		add(field, context, "duration must not be negative")
	}
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// ValidateConfig is a convenience function to validate a config.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	errs := validator.Validate(cfg)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/site-harvester/pkg/classify"
	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

var reportFormats = map[string]bool{
	"text":     true,
	"markdown": true,
	"html":     true,
	"json":     true,
	"yaml":     true,
}

// IsReportFormat reports whether name is a supported report format
func IsReportFormat(name string) bool {
	return reportFormats[strings.ToLower(name)]
}

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = DefaultUserAgent
	}

	// DefaultDelay
	if c.DefaultDelay < 0 {
		warnings = append(warnings, fmt.Sprintf("default_delay cannot be negative, defaulting to %v", DefaultDelay))
		c.DefaultDelay = DefaultDelay
	}

	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 1 (sequential)")
		c.NumWorkers = 1
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, fmt.Sprintf(
			"max_requests_per_host should be > 0, defaulting to num_workers (%d)", c.NumWorkers))
		c.MaxRequestsPerHost = c.NumWorkers
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './harvester_state'")
		c.StateDir = "./harvester_state"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 2
	}

	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 15 * time.Second
		}
	}

	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	// GlobalCrawlTimeout
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	// RobotsTimeout
	if c.RobotsTimeout <= 0 {
		c.RobotsTimeout = 10 * time.Second
	}

	// MaxBodyBytes
	if c.MaxBodyBytes < 0 {
		warnings = append(warnings, "max_body_bytes cannot be negative, using default")
		c.MaxBodyBytes = 0
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}

	c.validateHTTPClientSettings()

	return warnings, nil // AppConfig validation never fails fatally
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 15 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 10 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks TargetConfig fields and applies defaults.
// A seed without a scheme is prefixed with https://.
// Invalid numeric values are replaced by defaults with a warning rather than failing.
func (c *TargetConfig) Validate() (warnings []string, err error) {
	seed := strings.TrimSpace(c.SeedURL)
	if seed == "" {
		return nil, fmt.Errorf("%w: target has no seed_url", utils.ErrConfigValidation)
	}
	if !strings.Contains(seed, "://") {
		warnings = append(warnings, fmt.Sprintf("seed_url '%s' has no scheme, assuming https://", seed))
		seed = "https://" + seed
	}
	u, parseErr := url.Parse(seed)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: invalid seed_url '%s': %v", utils.ErrConfigValidation, c.SeedURL, parseErr)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: seed_url scheme must be http or https, got '%s'", utils.ErrConfigValidation, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: seed_url '%s' has no host", utils.ErrConfigValidation, c.SeedURL)
	}
	c.SeedURL = seed

	// Classifiers
	if len(c.Classifiers) == 0 {
		c.Classifiers = append([]string(nil), DefaultClassifiers...)
	}
	for i, name := range c.Classifiers {
		name = strings.ToLower(strings.TrimSpace(name))
		if !classify.IsKnown(name) {
			return nil, fmt.Errorf("%w: unknown classifier '%s' (known: %s)",
				utils.ErrConfigValidation, c.Classifiers[i], strings.Join(classify.Names(), ", "))
		}
		c.Classifiers[i] = name
	}

	// MaxDepth
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		warnings = append(warnings, fmt.Sprintf("max_depth cannot be negative, defaulting to %d", DefaultMaxDepth))
		d := DefaultMaxDepth
		c.MaxDepth = &d
	}

	// MaxPages
	if c.MaxPages < 0 {
		warnings = append(warnings, "max_pages cannot be negative, setting to 0 (unlimited)")
		c.MaxPages = 0
	}

	// Delay
	if c.Delay < 0 {
		warnings = append(warnings, fmt.Sprintf("delay cannot be negative, defaulting to %v", DefaultDelay))
		c.Delay = DefaultDelay
	}

	// NumWorkers
	if c.NumWorkers < 0 {
		warnings = append(warnings, "num_workers cannot be negative, using global setting")
		c.NumWorkers = 0
	}

	// ReportFormat
	if c.ReportFormat != "" {
		if !IsReportFormat(c.ReportFormat) {
			warnings = append(warnings, fmt.Sprintf("report_format '%s' is not supported, defaulting to '%s'", c.ReportFormat, DefaultReportFormat))
			c.ReportFormat = DefaultReportFormat
		} else {
			c.ReportFormat = strings.ToLower(c.ReportFormat)
		}
	}

	// DisallowedPathPatterns must compile
	if _, err := utils.CompileRegexPatterns(c.DisallowedPathPatterns); err != nil {
		return nil, err
	}

	return warnings, nil
}

package config

import "time"

const (
	DefaultUserAgent    = "site-harvester/1.0 (+https://github.com/Sriram-PR/site-harvester)"
	DefaultMaxDepth     = 5
	DefaultDelay        = 500 * time.Millisecond
	DefaultReportFormat = "text"
	DefaultMaxBodyBytes = 10 * 1024 * 1024
)

// DefaultClassifiers is used when a target does not name any classifier
var DefaultClassifiers = []string{"email"}

// TargetConfig holds configuration specific to a single crawl target (one domain)
type TargetConfig struct {
	SeedURL                string        `yaml:"seed_url"`
	Classifiers            []string      `yaml:"classifiers,omitempty"` // Any of: email, sensitive, pdf
	MaxDepth               *int          `yaml:"max_depth,omitempty"`   // nil = DefaultMaxDepth
	MaxPages               int           `yaml:"max_pages,omitempty"`   // 0 = unlimited
	Delay                  time.Duration `yaml:"delay,omitempty"`       // Politeness delay after each fetch
	UserAgent              string        `yaml:"user_agent,omitempty"`
	NumWorkers             int           `yaml:"num_workers,omitempty"`
	DisallowedPathPatterns []string      `yaml:"disallowed_path_patterns,omitempty"` // Regex patterns for paths to exclude
	RespectRobots          *bool         `yaml:"respect_robots,omitempty"`
	PersistState           *bool         `yaml:"persist_state,omitempty"`
	ReportFormat           string        `yaml:"report_format,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent        string                  `yaml:"default_user_agent"`
	DefaultDelay            time.Duration           `yaml:"default_delay"`
	NumWorkers              int                     `yaml:"num_workers"`
	MaxRequestsPerHost      int                     `yaml:"max_requests_per_host"`
	StateDir                string                  `yaml:"state_dir"`
	MaxRetries              int                     `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration           `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration           `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration           `yaml:"semaphore_acquire_timeout,omitempty"`
	GlobalCrawlTimeout      time.Duration           `yaml:"global_crawl_timeout,omitempty"`
	RobotsTimeout           time.Duration           `yaml:"robots_timeout,omitempty"`
	MaxBodyBytes            int64                   `yaml:"max_body_bytes,omitempty"`
	PersistState            bool                    `yaml:"persist_state,omitempty"`
	HTTPClientSettings      HTTPClientConfig        `yaml:"http_client_settings,omitempty"`
	Targets                 map[string]TargetConfig `yaml:"targets"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// GetEffectiveUserAgent returns the target user agent, falling back to the global one
func GetEffectiveUserAgent(targetCfg TargetConfig, appCfg AppConfig) string {
	if targetCfg.UserAgent != "" {
		return targetCfg.UserAgent
	}
	if appCfg.DefaultUserAgent != "" {
		return appCfg.DefaultUserAgent
	}
	return DefaultUserAgent
}

// GetEffectiveDelay determines the politeness delay applied after each fetch
func GetEffectiveDelay(targetCfg TargetConfig, appCfg AppConfig) time.Duration {
	if targetCfg.Delay > 0 {
		return targetCfg.Delay
	}
	return appCfg.DefaultDelay
}

// GetEffectiveMaxDepth returns the depth bound, DefaultMaxDepth when unset
func GetEffectiveMaxDepth(targetCfg TargetConfig) int {
	if targetCfg.MaxDepth != nil {
		return *targetCfg.MaxDepth
	}
	return DefaultMaxDepth
}

// GetEffectiveNumWorkers determines the worker count for a target
func GetEffectiveNumWorkers(targetCfg TargetConfig, appCfg AppConfig) int {
	if targetCfg.NumWorkers > 0 {
		return targetCfg.NumWorkers
	}
	if appCfg.NumWorkers > 0 {
		return appCfg.NumWorkers
	}
	return 1
}

// GetEffectiveRespectRobots determines whether robots.txt is enforced (default true)
func GetEffectiveRespectRobots(targetCfg TargetConfig) bool {
	if targetCfg.RespectRobots != nil {
		return *targetCfg.RespectRobots
	}
	return true
}

// GetEffectivePersistState determines whether crawl state is kept in badger
func GetEffectivePersistState(targetCfg TargetConfig, appCfg AppConfig) bool {
	if targetCfg.PersistState != nil {
		return *targetCfg.PersistState
	}
	return appCfg.PersistState
}

// GetEffectiveClassifiers returns the configured classifier names, or the default set
func GetEffectiveClassifiers(targetCfg TargetConfig) []string {
	if len(targetCfg.Classifiers) > 0 {
		return targetCfg.Classifiers
	}
	return DefaultClassifiers
}

// GetEffectiveReportFormat returns the report format, "text" when unset
func GetEffectiveReportFormat(targetCfg TargetConfig) string {
	if targetCfg.ReportFormat != "" {
		return targetCfg.ReportFormat
	}
	return DefaultReportFormat
}

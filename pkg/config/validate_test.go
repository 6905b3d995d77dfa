package config

import (
	"strings"
	"testing"
	"time"

	"github.com/Sriram-PR/site-harvester/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)

	assert.Equal(t, DefaultUserAgent, cfg.DefaultUserAgent)
	assert.Equal(t, 1, cfg.NumWorkers)
	assert.Equal(t, 1, cfg.MaxRequestsPerHost)
	assert.Equal(t, "./harvester_state", cfg.StateDir)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 15*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.SemaphoreAcquireTimeout)
	assert.Equal(t, 10*time.Second, cfg.RobotsTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)

	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.DialerTimeout)

	assert.True(t, containsWarning(warnings, "num_workers should be > 0"))
	assert.True(t, containsWarning(warnings, "max_requests_per_host should be > 0"))
	assert.True(t, containsWarning(warnings, "state_dir is empty"))
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		NumWorkers:         4,
		MaxRequestsPerHost: 2,
		StateDir:           "/state",
		MaxRetries:         5,
		InitialRetryDelay:  2 * time.Second,
		MaxRetryDelay:      60 * time.Second,
		DefaultDelay:       time.Second,
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 4, cfg.NumWorkers)
	assert.Equal(t, 2, cfg.MaxRequestsPerHost)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.DefaultDelay)
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*AppConfig)
		wantWarning string
		check       func(*testing.T, *AppConfig)
	}{
		{
			name: "negative max_retries",
			setup: func(c *AppConfig) {
				c.MaxRetries = -1
				c.InitialRetryDelay = 1 * time.Second // Prevent default retries
			},
			wantWarning: "max_retries cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 0, c.MaxRetries)
			},
		},
		{
			name: "negative global_crawl_timeout",
			setup: func(c *AppConfig) {
				c.GlobalCrawlTimeout = -1 * time.Second
			},
			wantWarning: "global_crawl_timeout cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, time.Duration(0), c.GlobalCrawlTimeout)
			},
		},
		{
			name: "negative default_delay",
			setup: func(c *AppConfig) {
				c.DefaultDelay = -time.Second
			},
			wantWarning: "default_delay cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, DefaultDelay, c.DefaultDelay)
			},
		},
		{
			name: "negative max_body_bytes",
			setup: func(c *AppConfig) {
				c.MaxBodyBytes = -1
			},
			wantWarning: "max_body_bytes cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, int64(DefaultMaxBodyBytes), c.MaxBodyBytes)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{NumWorkers: 1, MaxRequestsPerHost: 1, StateDir: "/state"}
			tt.setup(&cfg)

			warnings, err := cfg.Validate()

			require.NoError(t, err)
			assert.True(t, containsWarning(warnings, tt.wantWarning),
				"expected warning containing %q, got %v", tt.wantWarning, warnings)
			tt.check(t, &cfg)
		})
	}
}

func TestAppConfig_Validate_RetryDelayInversion(t *testing.T) {
	cfg := AppConfig{
		NumWorkers:         1,
		MaxRequestsPerHost: 1,
		StateDir:           "/state",
		MaxRetries:         3,
		InitialRetryDelay:  60 * time.Second, // Greater than max
		MaxRetryDelay:      10 * time.Second,
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.True(t, containsWarning(warnings, "initial_retry_delay"))
	assert.Equal(t, 10*time.Second, cfg.InitialRetryDelay)
}

func TestTargetConfig_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TargetConfig
		wantErr string
	}{
		{
			name:    "missing seed_url",
			cfg:     TargetConfig{},
			wantErr: "no seed_url",
		},
		{
			name:    "unsupported scheme",
			cfg:     TargetConfig{SeedURL: "ftp://example.com"},
			wantErr: "scheme must be http or https",
		},
		{
			name:    "unknown classifier",
			cfg:     TargetConfig{SeedURL: "https://example.com", Classifiers: []string{"email", "phone"}},
			wantErr: "unknown classifier 'phone'",
		},
		{
			name:    "invalid disallowed pattern",
			cfg:     TargetConfig{SeedURL: "https://example.com", DisallowedPathPatterns: []string{"[oops"}},
			wantErr: "invalid regex pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTargetConfig_Validate_SeedSchemePrefix(t *testing.T) {
	cfg := TargetConfig{SeedURL: "example.com"}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.SeedURL)
	assert.True(t, containsWarning(warnings, "assuming https://"))
}

func TestTargetConfig_Validate_Defaults(t *testing.T) {
	cfg := TargetConfig{SeedURL: "https://example.com"}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"email"}, cfg.Classifiers)
	assert.Nil(t, cfg.MaxDepth)
	assert.Equal(t, DefaultMaxDepth, GetEffectiveMaxDepth(cfg))
	assert.Equal(t, DefaultReportFormat, GetEffectiveReportFormat(cfg))
}

func TestTargetConfig_Validate_ReplacesInvalidValues(t *testing.T) {
	negDepth := -3
	cfg := TargetConfig{
		SeedURL:      "https://example.com",
		Classifiers:  []string{" PDF ", "Sensitive"},
		MaxDepth:     &negDepth,
		MaxPages:     -10,
		Delay:        -time.Second,
		ReportFormat: "docx",
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, []string{"pdf", "sensitive"}, cfg.Classifiers)
	require.NotNil(t, cfg.MaxDepth)
	assert.Equal(t, DefaultMaxDepth, *cfg.MaxDepth)
	assert.Equal(t, 0, cfg.MaxPages)
	assert.Equal(t, DefaultDelay, cfg.Delay)
	assert.Equal(t, "text", cfg.ReportFormat)

	assert.True(t, containsWarning(warnings, "max_depth cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_pages cannot be negative"))
	assert.True(t, containsWarning(warnings, "delay cannot be negative"))
	assert.True(t, containsWarning(warnings, "report_format 'docx'"))
}

// containsWarning checks if any warning contains the substring.
func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

// Package config loads the resolver's runtime configuration: an optional
// YAML file overridden by MAILSEEK_-prefixed environment variables, with
// defaults for every knob. Load returns an instance; there is no
// process-global configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration for one resolution run.
type Config struct {
	Mailbox string        `mapstructure:"mailbox"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Session SessionConfig `mapstructure:"session"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Output  OutputConfig  `mapstructure:"output"`
}

// FeedConfig controls the fast feed channel.
type FeedConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Insecure  bool          `mapstructure:"insecure"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SessionConfig controls the interactive browser channel.
type SessionConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Headless       bool          `mapstructure:"headless"`
	Channel        string        `mapstructure:"channel"`
	StorageState   string        `mapstructure:"storage_state"`
	InjectCookies  bool          `mapstructure:"inject_cookies"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ScanConfig bounds the interactive channel's traversal.
type ScanConfig struct {
	MaxRows          int           `mapstructure:"max_rows"`
	MaxPages         int           `mapstructure:"max_pages"`
	DateWindowDays   int           `mapstructure:"date_window_days"`
	HydrationTimeout time.Duration `mapstructure:"hydration_timeout"`
	ZeroRowRetries   int           `mapstructure:"zero_row_retries"`
	ZeroRowRefreshes int           `mapstructure:"zero_row_refreshes"`
	MaxStrategies    int           `mapstructure:"max_strategies"`
	IncludeBody      bool          `mapstructure:"include_body"`
}

// OutputConfig controls result emission.
type OutputConfig struct {
	Path              string `mapstructure:"path"`
	ExitNonzeroOnMiss bool   `mapstructure:"exit_nonzero_on_miss"`
	Verbose           bool   `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mailbox", "0")

	v.SetDefault("feed.enabled", true)
	v.SetDefault("feed.timeout", 20*time.Second)
	v.SetDefault("feed.insecure", false)

	v.SetDefault("session.enabled", true)
	v.SetDefault("session.headless", true)
	v.SetDefault("session.channel", "chrome")
	v.SetDefault("session.inject_cookies", true)
	v.SetDefault("session.default_timeout", 30*time.Second)

	v.SetDefault("scan.max_rows", 40)
	v.SetDefault("scan.max_pages", 6)
	v.SetDefault("scan.date_window_days", 1)
	v.SetDefault("scan.hydration_timeout", 7*time.Second)
	v.SetDefault("scan.zero_row_retries", 2)
	v.SetDefault("scan.zero_row_refreshes", 1)
	v.SetDefault("scan.max_strategies", 0)
	v.SetDefault("scan.include_body", false)

	v.SetDefault("output.exit_nonzero_on_miss", false)
	v.SetDefault("output.verbose", false)
}

// Load reads configuration from the optional YAML file at path, applies
// environment overrides, and returns the merged instance. An empty path
// loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("MAILSEEK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

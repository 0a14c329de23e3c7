// Package config loads treeline settings from config file, environment, and
// flags via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the effective treeline configuration.
type Config struct {
	Jira struct {
		URL      string `mapstructure:"url"`
		Username string `mapstructure:"username"`
		APIToken string `mapstructure:"api_token"`
		Project  string `mapstructure:"project"`
	} `mapstructure:"jira"`

	Bulk struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		Concurrency int           `mapstructure:"concurrency"`
	} `mapstructure:"bulk"`

	Store struct {
		// Backend is one of "file", "redis", "sqlite".
		Backend   string        `mapstructure:"backend"`
		Path      string        `mapstructure:"path"`
		RedisAddr string        `mapstructure:"redis_addr"`
		RedisDB   int           `mapstructure:"redis_db"`
		TTL       time.Duration `mapstructure:"ttl"`
	} `mapstructure:"store"`

	Telemetry struct {
		Enabled      bool   `mapstructure:"enabled"`
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"telemetry"`

	// Color is "auto", "always", or "never".
	Color string `mapstructure:"color"`
}

// DefaultStateDir is where the file/sqlite manifest backends keep state.
func DefaultStateDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".treeline")
	}
	return ".treeline"
}

// Load reads configuration from an optional explicit file, the default
// config location (~/.config/treeline/config.yaml), and TREELINE_* env vars.
func Load(file string) (*Config, error) {
	v := viper.New()

	// Register every key so AutomaticEnv-sourced values survive Unmarshal.
	v.SetDefault("jira.url", "")
	v.SetDefault("jira.username", "")
	v.SetDefault("jira.api_token", "")
	v.SetDefault("jira.project", "")
	v.SetDefault("bulk.timeout", 30*time.Second)
	v.SetDefault("bulk.concurrency", 16)
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", DefaultStateDir())
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.ttl", 24*time.Hour)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("color", "auto")

	v.SetEnvPrefix("TREELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "treeline"))
		}
		v.AddConfigPath(".")
		// Missing default config is fine; env vars may carry everything.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed before talking to Jira.
func (c *Config) Validate() error {
	if c.Jira.URL == "" {
		return fmt.Errorf("jira URL not configured (set jira.url or TREELINE_JIRA_URL)")
	}
	if c.Jira.APIToken == "" {
		return fmt.Errorf("jira API token not configured (set jira.api_token or TREELINE_JIRA_API_TOKEN)")
	}
	switch c.Store.Backend {
	case "file", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q (want file, redis, or sqlite)", c.Store.Backend)
	}
	return nil
}

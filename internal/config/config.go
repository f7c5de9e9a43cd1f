package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Feed       FeedConfig       `mapstructure:"feed"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Effects    EffectsConfig    `mapstructure:"effects"`
	Server     ServerConfig     `mapstructure:"server"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// FeedConfig holds upstream surveillance feed configuration
type FeedConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	EventLimit   int           `mapstructure:"event_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ClassifierConfig holds the suspicion rule thresholds
type ClassifierConfig struct {
	AmountThreshold     int64   `mapstructure:"amount_threshold"`
	CountThreshold      int     `mapstructure:"count_threshold"`
	MarketAvgMultiplier float64 `mapstructure:"market_avg_multiplier"`
	LinkAmountThreshold int64   `mapstructure:"link_amount_threshold"`
	LinkCountThreshold  int     `mapstructure:"link_count_threshold"`
}

// DashboardConfig holds incident view behavior configuration
type DashboardConfig struct {
	MaxIncidents int `mapstructure:"max_incidents"`
}

// EffectsConfig holds the visual effect windows
type EffectsConfig struct {
	HighlightTTL  time.Duration `mapstructure:"highlight_ttl"`
	BannedGlowTTL time.Duration `mapstructure:"banned_glow_ttl"`
	LinkBoostTTL  time.Duration `mapstructure:"link_boost_ttl"`
	ReducedMotion bool          `mapstructure:"reduced_motion"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Enabled    bool   `mapstructure:"enabled"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// StorageConfig holds the audit database configuration
type StorageConfig struct {
	Path           string `mapstructure:"path"`
	MaxTransitions int    `mapstructure:"max_transitions"`
	Enabled        bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("SUSANOH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.base_url", "http://localhost:8000")
	v.SetDefault("feed.poll_interval", "3s")
	v.SetDefault("feed.event_limit", 50)
	v.SetDefault("feed.timeout", "10s")

	v.SetDefault("classifier.amount_threshold", 1_000_000)
	v.SetDefault("classifier.count_threshold", 10)
	v.SetDefault("classifier.market_avg_multiplier", 100.0)
	v.SetDefault("classifier.link_amount_threshold", 500_000)
	v.SetDefault("classifier.link_count_threshold", 3)

	v.SetDefault("dashboard.max_incidents", 8)

	v.SetDefault("effects.highlight_ttl", "3s")
	v.SetDefault("effects.banned_glow_ttl", "6s")
	v.SetDefault("effects.link_boost_ttl", "4s")
	v.SetDefault("effects.reduced_motion", false)

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.enabled", true)

	v.SetDefault("storage.path", "./data/susanoh.db")
	v.SetDefault("storage.max_transitions", 10_000)
	v.SetDefault("storage.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("feed.poll_interval must be at least 500ms")
	}
	if c.Feed.EventLimit < 1 || c.Feed.EventLimit > 1000 {
		return fmt.Errorf("feed.event_limit must be between 1 and 1000")
	}
	if c.Feed.Timeout < 1*time.Second {
		return fmt.Errorf("feed.timeout must be at least 1 second")
	}

	if c.Classifier.AmountThreshold < 1 {
		return fmt.Errorf("classifier.amount_threshold must be positive")
	}
	if c.Classifier.CountThreshold < 1 {
		return fmt.Errorf("classifier.count_threshold must be positive")
	}
	if c.Classifier.MarketAvgMultiplier <= 0 {
		return fmt.Errorf("classifier.market_avg_multiplier must be positive")
	}
	if c.Classifier.LinkAmountThreshold < 1 {
		return fmt.Errorf("classifier.link_amount_threshold must be positive")
	}
	if c.Classifier.LinkCountThreshold < 1 {
		return fmt.Errorf("classifier.link_count_threshold must be positive")
	}

	if c.Dashboard.MaxIncidents < 1 {
		return fmt.Errorf("dashboard.max_incidents must be at least 1")
	}

	if c.Effects.HighlightTTL < 100*time.Millisecond {
		return fmt.Errorf("effects.highlight_ttl must be at least 100ms")
	}
	if c.Effects.BannedGlowTTL < 100*time.Millisecond {
		return fmt.Errorf("effects.banned_glow_ttl must be at least 100ms")
	}
	if c.Effects.LinkBoostTTL < 100*time.Millisecond {
		return fmt.Errorf("effects.link_boost_ttl must be at least 100ms")
	}

	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required when the server is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.Enabled {
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when storage is enabled")
		}
		if c.Storage.MaxTransitions < 100 {
			return fmt.Errorf("storage.max_transitions must be at least 100")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

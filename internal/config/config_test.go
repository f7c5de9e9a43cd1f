package config

import (
	"os"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			BaseURL:      "http://localhost:8000",
			PollInterval: 3 * time.Second,
			EventLimit:   50,
			Timeout:      10 * time.Second,
		},
		Classifier: ClassifierConfig{
			AmountThreshold:     1_000_000,
			CountThreshold:      10,
			MarketAvgMultiplier: 100,
			LinkAmountThreshold: 500_000,
			LinkCountThreshold:  3,
		},
		Dashboard: DashboardConfig{MaxIncidents: 8},
		Effects: EffectsConfig{
			HighlightTTL:  3 * time.Second,
			BannedGlowTTL: 6 * time.Second,
			LinkBoostTTL:  4 * time.Second,
		},
		Server:  ServerConfig{ListenAddr: ":8080", Enabled: true},
		Storage: StorageConfig{Path: "./data/test.db", MaxTransitions: 1000},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestLoadAndValidate(t *testing.T) {
	content := `
feed:
  base_url: "http://localhost:9000"
  poll_interval: 2s
  event_limit: 25

classifier:
  amount_threshold: 2000000
  link_count_threshold: 5

effects:
  highlight_ttl: 1s
  reduced_motion: true

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

logging:
  level: "debug"
  format: "text"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.BaseURL != "http://localhost:9000" {
		t.Errorf("Unexpected feed base url: %s", cfg.Feed.BaseURL)
	}
	if cfg.Feed.PollInterval != 2*time.Second {
		t.Errorf("Unexpected poll interval: %v", cfg.Feed.PollInterval)
	}
	if cfg.Classifier.AmountThreshold != 2_000_000 {
		t.Errorf("Unexpected amount threshold: %d", cfg.Classifier.AmountThreshold)
	}
	if cfg.Classifier.CountThreshold != 10 {
		t.Errorf("Default count threshold not applied: %d", cfg.Classifier.CountThreshold)
	}
	if cfg.Effects.HighlightTTL != 1*time.Second {
		t.Errorf("Unexpected highlight ttl: %v", cfg.Effects.HighlightTTL)
	}
	if !cfg.Effects.ReducedMotion {
		t.Error("reduced_motion not read")
	}
	if cfg.Effects.BannedGlowTTL != 6*time.Second {
		t.Errorf("Default glow ttl not applied: %v", cfg.Effects.BannedGlowTTL)
	}
	if cfg.Dashboard.MaxIncidents != 8 {
		t.Errorf("Default max incidents not applied: %d", cfg.Dashboard.MaxIncidents)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing feed base url",
			mutate:  func(c *Config) { c.Feed.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *Config) { c.Feed.PollInterval = 100 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "event limit out of range",
			mutate:  func(c *Config) { c.Feed.EventLimit = 5000 },
			wantErr: true,
		},
		{
			name:    "zero amount threshold",
			mutate:  func(c *Config) { c.Classifier.AmountThreshold = 0 },
			wantErr: true,
		},
		{
			name:    "negative multiplier",
			mutate:  func(c *Config) { c.Classifier.MarketAvgMultiplier = -1 },
			wantErr: true,
		},
		{
			name:    "zero max incidents",
			mutate:  func(c *Config) { c.Dashboard.MaxIncidents = 0 },
			wantErr: true,
		},
		{
			name:    "highlight ttl too short",
			mutate:  func(c *Config) { c.Effects.HighlightTTL = time.Millisecond },
			wantErr: true,
		},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.ChatID = "chat"
			},
			wantErr: true,
		},
		{
			name: "missing storage path when enabled",
			mutate: func(c *Config) {
				c.Storage.Enabled = true
				c.Storage.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Review:   ReviewConfig{ReviewerIDs: []int64{42}},
		Paystack: PaystackConfig{SecretKey: "sk_test_x"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Session.Backend != SessionBackendMemory {
		t.Fatalf("session backend = %q", cfg.Session.Backend)
	}
	if cfg.Paystack.BaseURL != "https://api.paystack.co" {
		t.Fatalf("paystack base url = %q", cfg.Paystack.BaseURL)
	}
	if cfg.Scheduler.ReminderInterval != time.Hour {
		t.Fatalf("reminder interval = %v", cfg.Scheduler.ReminderInterval)
	}
	if cfg.Scheduler.BroadcastDelay != 20*time.Second {
		t.Fatalf("broadcast delay = %v", cfg.Scheduler.BroadcastDelay)
	}
	if cfg.Journal.Dir != "data" {
		t.Fatalf("journal dir = %q", cfg.Journal.Dir)
	}
}

func TestNormalizeRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no token", func(c *Config) { c.Telegram.Token = "" }, "telegram token"},
		{"no reviewers", func(c *Config) { c.Review.ReviewerIDs = nil }, "reviewer_ids"},
		{"no paystack key", func(c *Config) { c.Paystack.SecretKey = "" }, "paystack secret"},
		{"redis without url", func(c *Config) { c.Session.Backend = "redis" }, "redis_url"},
		{"webhook without url", func(c *Config) { c.Telegram.RunMode = "webhook" }, "webhook.url"},
		{"bad exclude", func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"nope"} }, "exclude_updates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := Normalize(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q", cfg.Telegram.RunMode)
	}
}

func TestDatabaseSectionDecodes(t *testing.T) {
	raw := `
database:
  host: localhost
  port: "5432"
  user: bot
  password: secret
  name: listings
  sslmode: disable
  max_connections: 8
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != "5432" {
		t.Fatalf("host/port = %q/%q", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "listings" || cfg.Database.MaxConnections != 8 {
		t.Fatalf("name/max_connections = %q/%d", cfg.Database.Name, cfg.Database.MaxConnections)
	}
}

func TestIsReviewer(t *testing.T) {
	cfg := validConfig()
	if !cfg.IsReviewer(42) {
		t.Fatal("expected 42 to be a reviewer")
	}
	if cfg.IsReviewer(7) {
		t.Fatal("unexpected reviewer 7")
	}
}

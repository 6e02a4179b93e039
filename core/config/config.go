package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// ReviewConfig lists the reviewer accounts that receive applications and may
// run admin commands.
type ReviewConfig struct {
	ReviewerIDs []int64 `yaml:"reviewer_ids" envconfig:"REVIEWER_IDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// SessionConfig selects the conversation session backend.
type SessionConfig struct {
	Backend  string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTL      time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	RedisURL string        `yaml:"redis_url" envconfig:"SESSION_REDIS_URL"`
}

// PaystackConfig holds payment provider credentials and endpoints.
type PaystackConfig struct {
	SecretKey   string `yaml:"secret_key" envconfig:"PAYSTACK_SECRET_KEY"`
	BaseURL     string `yaml:"base_url" envconfig:"PAYSTACK_BASE_URL"`
	CallbackURL string `yaml:"callback_url" envconfig:"PAYSTACK_CALLBACK_URL"`
}

// SchedulerConfig tunes the background sweep loops.
type SchedulerConfig struct {
	ReminderInterval   time.Duration `yaml:"reminder_interval" envconfig:"SCHEDULER_REMINDER_INTERVAL"`
	InactivityInterval time.Duration `yaml:"inactivity_interval" envconfig:"SCHEDULER_INACTIVITY_INTERVAL"`
	BroadcastDelay     time.Duration `yaml:"broadcast_delay" envconfig:"SCHEDULER_BROADCAST_DELAY"`
}

// LinksConfig holds the external URLs shown to applicants.
type LinksConfig struct {
	Support  string `yaml:"support" envconfig:"LINK_SUPPORT"`
	CACAgent string `yaml:"cac_agent" envconfig:"LINK_CAC_AGENT"`
}

// DatabaseConfig holds the postgres connection section. It mirrors
// database.Config field for field but is declared here so this package
// imports no other core package; bot code converts it when wiring the
// database layer.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// JournalConfig locates the on-disk JSON journals.
type JournalConfig struct {
	Dir string `yaml:"dir" envconfig:"JOURNAL_DIR"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// SessionBackendMemory keeps sessions in process memory.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps sessions in Redis.
	SessionBackendRedis = "redis"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the full bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Review    ReviewConfig    `yaml:"review"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Paystack  PaystackConfig  `yaml:"paystack"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Journal   JournalConfig   `yaml:"journal"`
	Links     LinksConfig     `yaml:"links"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if len(cfg.Review.ReviewerIDs) == 0 {
		return fmt.Errorf("review.reviewer_ids must list at least one account")
	}
	if cfg.Paystack.SecretKey == "" {
		return fmt.Errorf("paystack secret key is required")
	}
	if cfg.Paystack.BaseURL == "" {
		cfg.Paystack.BaseURL = "https://api.paystack.co"
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	sb := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	if sb == "" {
		sb = SessionBackendMemory
	}
	switch sb {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if strings.TrimSpace(cfg.Session.RedisURL) == "" {
			return fmt.Errorf("session.redis_url is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", cfg.Session.Backend)
	}
	cfg.Session.Backend = sb

	if cfg.Scheduler.ReminderInterval <= 0 {
		cfg.Scheduler.ReminderInterval = time.Hour
	}
	if cfg.Scheduler.InactivityInterval <= 0 {
		cfg.Scheduler.InactivityInterval = time.Hour
	}
	if cfg.Scheduler.BroadcastDelay <= 0 {
		cfg.Scheduler.BroadcastDelay = 20 * time.Second
	}
	if strings.TrimSpace(cfg.Journal.Dir) == "" {
		cfg.Journal.Dir = "data"
	}

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// IsReviewer reports whether the given Telegram account is on the reviewer
// allow-list.
func (c *Config) IsReviewer(id int64) bool {
	for _, rid := range c.Review.ReviewerIDs {
		if rid == id {
			return true
		}
	}
	return false
}

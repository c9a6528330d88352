// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type WebhookConfig struct {
	Domain string `yaml:"domain"`
	Path   string `yaml:"path"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
}

type BotConfig struct {
	Token     string        `yaml:"token"`
	Mode      string        `yaml:"mode"`    // polling | webhook
	Workers   int           `yaml:"workers"` // update handling workers
	RateLimit int           `yaml:"rate_limit"`
	Webhook   WebhookConfig `yaml:"webhook"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"` // sqlite | postgres
	SQLitePath string `yaml:"sqlite_path"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL         string        `yaml:"url"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	TTL         time.Duration `yaml:"ttl"`
	SettingsTTL time.Duration `yaml:"settings_ttl"`
}

type TTSConfig struct {
	BaseURL                string        `yaml:"base_url"`
	Timeout                time.Duration `yaml:"timeout"`
	MaxConcurrentDownloads int           `yaml:"max_concurrent_downloads"`
	MaxArtifactBytes       int64         `yaml:"max_artifact_bytes"` // Telegram bot uploads stop at 50 MB
}

// DeliveryConfig tunes the polling engine.
type DeliveryConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	MaxRounds        int           `yaml:"max_rounds"`
	CaptionLimit     int           `yaml:"caption_limit"`
	FailedLinesLimit int           `yaml:"failed_lines_limit"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`    // 0 keeps a fixed cadence
	StatusRetries    int           `yaml:"status_retries"` // 0 aborts on the first status error
	LedgerTTL        time.Duration `yaml:"ledger_ttl"`
}

type SweeperConfig struct {
	Cron       string        `yaml:"cron"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	TTS      TTSConfig      `yaml:"tts"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies an optional .env file
// and environment overrides, fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse builds a Config from raw YAML. Exposed for tests.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Bot.Token, "TELEGRAM_BOT_TOKEN")
	override(&c.Bot.Webhook.Domain, "TELEGRAM_WEBHOOK_DOMAIN")
	override(&c.Bot.Webhook.Secret, "TELEGRAM_WEBHOOK_SECRET")
	override(&c.TTS.BaseURL, "TTS_SERVICE_BASE_URL")
	override(&c.Store.SQLitePath, "BOT_DB_PATH")
	override(&c.Database.URL, "DATABASE_URL")
	override(&c.Redis.URL, "REDIS_URL")
	override(&c.Admin.JWTSecret, "ADMIN_JWT_SECRET")
}

func (c *Config) applyDefaults() {
	if c.Bot.Mode == "" {
		c.Bot.Mode = "polling"
	}
	if c.Bot.Workers <= 0 {
		c.Bot.Workers = 8
	}
	if c.Bot.RateLimit <= 0 {
		c.Bot.RateLimit = 30
	}
	if c.Bot.Webhook.Path == "" {
		c.Bot.Webhook.Path = "/telegram/webhook"
	}
	if c.Bot.Webhook.Port == 0 {
		c.Bot.Webhook.Port = 3000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8080
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/bot.db"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL, time.Hour)
	c.Redis.SettingsTTL = normalizeTTL(c.Redis.SettingsTTL, 90*24*time.Hour)
	if c.TTS.BaseURL == "" {
		c.TTS.BaseURL = "http://127.0.0.1:8000"
	}
	if c.TTS.Timeout <= 0 {
		c.TTS.Timeout = 30 * time.Second
	}
	if c.TTS.MaxConcurrentDownloads <= 0 {
		c.TTS.MaxConcurrentDownloads = 4
	}
	if c.TTS.MaxArtifactBytes <= 0 {
		c.TTS.MaxArtifactBytes = 50 << 20
	}
	if c.Delivery.PollInterval <= 0 {
		c.Delivery.PollInterval = 3 * time.Second
	}
	if c.Delivery.MaxRounds <= 0 {
		c.Delivery.MaxRounds = 240
	}
	if c.Delivery.CaptionLimit <= 0 {
		c.Delivery.CaptionLimit = 1024
	}
	if c.Delivery.FailedLinesLimit <= 0 {
		c.Delivery.FailedLinesLimit = 5
	}
	if c.Delivery.StatusRetries < 0 {
		c.Delivery.StatusRetries = 0
	}
	c.Delivery.LedgerTTL = normalizeTTL(c.Delivery.LedgerTTL, 24*time.Hour)
	if c.Sweeper.Cron == "" {
		c.Sweeper.Cron = "@every 10m"
	}
	c.Sweeper.StaleAfter = normalizeTTL(c.Sweeper.StaleAfter, 30*time.Minute)
}

func (c *Config) validate() error {
	if c.Bot.Token == "" && !c.Runtime.Dev {
		return errors.New("bot.token is required")
	}
	switch strings.ToLower(c.Bot.Mode) {
	case "polling":
	case "webhook":
		if c.Bot.Webhook.Domain == "" {
			return errors.New("bot.webhook.domain is required in webhook mode")
		}
	default:
		return fmt.Errorf("bot.mode %q is not supported", c.Bot.Mode)
	}
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	// A live session may sit in a backoff delay without touching its record.
	if c.Delivery.MaxBackoff >= c.Sweeper.StaleAfter {
		return fmt.Errorf("delivery.max_backoff (%s) must be below sweeper.stale_after (%s)",
			c.Delivery.MaxBackoff, c.Sweeper.StaleAfter)
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

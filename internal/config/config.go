package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the API process reads from config.env or the
// environment.
type Config struct {
	AppEnv      string `mapstructure:"APP_ENV"`
	ListenAddr  string `mapstructure:"LISTEN_ADDR"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	StoreDriver    string `mapstructure:"STORE_DRIVER"`
	DSN            string `mapstructure:"DSN"`
	MigrateOnStart bool   `mapstructure:"MIGRATE_ON_START"`

	JWTSecret          string  `mapstructure:"JWT_SECRET"`
	MidtransServerKey  string  `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransProduction bool    `mapstructure:"MIDTRANS_PRODUCTION"`
	WebhookSecret      string  `mapstructure:"WEBHOOK_SECRET"`
	CronSecret         string  `mapstructure:"CRON_SECRET"`
	WebhookRate        float64 `mapstructure:"WEBHOOK_RATE"`
	WebhookBurst       int     `mapstructure:"WEBHOOK_BURST"`

	PaymentChannel      string        `mapstructure:"PAYMENT_CHANNEL"`
	Lookback            time.Duration `mapstructure:"LOOKBACK"`
	SentinelAmount      int64         `mapstructure:"SENTINEL_AMOUNT"`
	AllowAmountFallback bool          `mapstructure:"ALLOW_AMOUNT_FALLBACK"`

	Retention       time.Duration `mapstructure:"RETENTION"`
	ArchiveInterval time.Duration `mapstructure:"ARCHIVE_INTERVAL"`
	Timezone        string        `mapstructure:"TIMEZONE"`
	LeaderboardTopN int           `mapstructure:"LEADERBOARD_TOP_N"`

	RedisAddr           string        `mapstructure:"REDIS_ADDR"`
	RedisPassword       string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int           `mapstructure:"REDIS_DB"`
	LeaderboardCacheTTL time.Duration `mapstructure:"LEADERBOARD_CACHE_TTL"`

	ClickHouseAddr     string `mapstructure:"CLICKHOUSE_ADDR"`
	ClickHouseDB       string `mapstructure:"CLICKHOUSE_DB"`
	ClickHouseUser     string `mapstructure:"CLICKHOUSE_USER"`
	ClickHousePassword string `mapstructure:"CLICKHOUSE_PASSWORD"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
}

var defaults = map[string]interface{}{
	"APP_ENV":               "development",
	"LISTEN_ADDR":           ":8080",
	"CORS_ORIGINS":          "*",
	"STORE_DRIVER":          "postgres",
	"DSN":                   "",
	"MIGRATE_ON_START":      true,
	"JWT_SECRET":            "",
	"MIDTRANS_SERVER_KEY":   "",
	"MIDTRANS_PRODUCTION":   false,
	"WEBHOOK_SECRET":        "",
	"CRON_SECRET":           "",
	"WEBHOOK_RATE":          5.0,
	"WEBHOOK_BURST":         20,
	"PAYMENT_CHANNEL":       "gopay",
	"LOOKBACK":              "60m",
	"SENTINEL_AMOUNT":       1000,
	"ALLOW_AMOUNT_FALLBACK": false,
	"RETENTION":             "24h",
	"ARCHIVE_INTERVAL":      "1h",
	"TIMEZONE":              "Asia/Jakarta",
	"LEADERBOARD_TOP_N":     10,
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"LEADERBOARD_CACHE_TTL": "5m",
	"CLICKHOUSE_ADDR":       "",
	"CLICKHOUSE_DB":         "default",
	"CLICKHOUSE_USER":       "default",
	"CLICKHOUSE_PASSWORD":   "",
	"TELEGRAM_BOT_TOKEN":    "",
}

// Load reads config.env from path (if present) and lets environment
// variables override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every key gets a default.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DSN == "" {
			return errors.New("config: DSN is required for the postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.Lookback <= 0 {
		return errors.New("config: LOOKBACK must be positive")
	}
	if c.Retention <= 0 {
		return errors.New("config: RETENTION must be positive")
	}
	if c.ArchiveInterval < 0 {
		return errors.New("config: ARCHIVE_INTERVAL cannot be negative")
	}
	if strings.TrimSpace(c.PaymentChannel) == "" {
		return errors.New("config: PAYMENT_CHANNEL is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the platform timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Development reports whether the process runs with dev logging.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// Origins splits CORS_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

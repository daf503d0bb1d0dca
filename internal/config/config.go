// Package config defines the top-level configuration for the PolyEdge
// evaluation service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYEDGE_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Evaluation EvaluationConfig `toml:"evaluation"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	// Store is "postgres" (Postgres records, Redis KV) or "memory" (both
	// in-process, for local runs and demos).
	Store string `toml:"store"`
}

// PostgresConfig holds the record store connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters used by the
// evaluation archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PolymarketConfig holds the public market data endpoints. Mirrors are URL
// templates; "{url}" is replaced with the escaped target and "{raw}" with the
// unescaped one. An empty mirror list means direct requests.
type PolymarketConfig struct {
	GammaHost      string   `toml:"gamma_host"`
	DataHost       string   `toml:"data_host"`
	Mirrors        []string `toml:"mirrors"`
	RequestTimeout duration `toml:"request_timeout"`
	MarketCacheTTL duration `toml:"market_cache_ttl"`
	MarketLimit    int      `toml:"market_limit"`
}

// EvaluationConfig holds rule-engine knobs and the expiry sweeper cadence.
type EvaluationConfig struct {
	// Precedence is "last_check_wins" or "failure_first".
	Precedence     string   `toml:"precedence"`
	SweepInterval  duration `toml:"sweep_interval"`
	LockTTL        duration `toml:"lock_ttl"`
	ArchiveOnClose bool     `toml:"archive_on_close"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled      bool     `toml:"enabled"`
	Port         int      `toml:"port"`
	APIKey       string   `toml:"api_key"`
	CORSOrigins  []string `toml:"cors_origins"`
	RateLimit    int      `toml:"rate_limit"`
	RateLimitWin duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyedge",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyedge-archive",
			ForcePathStyle: true,
		},
		Polymarket: PolymarketConfig{
			GammaHost:      "https://gamma-api.polymarket.com",
			DataHost:       "https://data-api.polymarket.com",
			RequestTimeout: duration{10 * time.Second},
			MarketCacheTTL: duration{30 * time.Second},
			MarketLimit:    30,
		},
		Evaluation: EvaluationConfig{
			Precedence:     "last_check_wins",
			SweepInterval:  duration{time.Minute},
			LockTTL:        duration{10 * time.Second},
			ArchiveOnClose: true,
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:    120,
			RateLimitWin: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"evaluation_failed", "evaluation_passed", "evaluation_promoted"},
		},
		Mode:     "full",
		Store:    "postgres",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server": true,
	"sweep":  true,
	"full":   true,
}

var validStores = map[string]bool{
	"postgres": true,
	"memory":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validPrecedence = map[string]bool{
	"last_check_wins": true,
	"failure_first":   true,
}

// Validate checks the configuration for obvious mistakes and returns every
// problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, sweep, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if !validStores[strings.ToLower(c.Store)] {
		errs = append(errs, fmt.Sprintf("unknown store %q (valid: postgres, memory)", c.Store))
	}

	if c.UsesPostgres() && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.UsesPostgres() {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	for _, m := range c.Polymarket.Mirrors {
		if !strings.Contains(m, "{url}") && !strings.Contains(m, "{raw}") {
			errs = append(errs, fmt.Sprintf("polymarket: mirror %q must contain {url} or {raw}", m))
		}
	}
	if c.Polymarket.RequestTimeout.Duration <= 0 {
		errs = append(errs, "polymarket: request_timeout must be > 0")
	}
	if c.Polymarket.MarketLimit < 1 {
		errs = append(errs, "polymarket: market_limit must be >= 1")
	}

	if !validPrecedence[strings.ToLower(c.Evaluation.Precedence)] {
		errs = append(errs, fmt.Sprintf("evaluation: unknown precedence %q (valid: last_check_wins, failure_first)", c.Evaluation.Precedence))
	}
	if c.Evaluation.SweepInterval.Duration <= 0 {
		errs = append(errs, "evaluation: sweep_interval must be > 0")
	}
	if c.Evaluation.LockTTL.Duration <= 0 {
		errs = append(errs, "evaluation: lock_ttl must be > 0")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// UsesPostgres reports whether records live in Postgres and shared state in
// Redis.
func (c *Config) UsesPostgres() bool {
	return strings.ToLower(c.Store) != "memory"
}

// PostgresDSN returns the explicit DSN or one assembled from the discrete
// connection fields.
func (c *Config) PostgresDSN() string {
	if dsn := strings.TrimSpace(c.Postgres.DSN); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User, c.Postgres.Password, c.Postgres.Host,
		c.Postgres.Port, c.Postgres.Database, c.Postgres.SSLMode)
}

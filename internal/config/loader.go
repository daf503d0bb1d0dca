package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYEDGE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYEDGE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "POLYEDGE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYEDGE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYEDGE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYEDGE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYEDGE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYEDGE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYEDGE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYEDGE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYEDGE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYEDGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYEDGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYEDGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYEDGE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYEDGE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYEDGE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYEDGE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYEDGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYEDGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYEDGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYEDGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYEDGE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYEDGE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYEDGE_S3_FORCE_PATH_STYLE")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYEDGE_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYEDGE_POLYMARKET_DATA_HOST")
	setStringSlice(&cfg.Polymarket.Mirrors, "POLYEDGE_POLYMARKET_MIRRORS")
	setDuration(&cfg.Polymarket.RequestTimeout, "POLYEDGE_POLYMARKET_REQUEST_TIMEOUT")
	setDuration(&cfg.Polymarket.MarketCacheTTL, "POLYEDGE_POLYMARKET_MARKET_CACHE_TTL")
	setInt(&cfg.Polymarket.MarketLimit, "POLYEDGE_POLYMARKET_MARKET_LIMIT")

	// ── Evaluation ──
	setStr(&cfg.Evaluation.Precedence, "POLYEDGE_EVALUATION_PRECEDENCE")
	setDuration(&cfg.Evaluation.SweepInterval, "POLYEDGE_EVALUATION_SWEEP_INTERVAL")
	setDuration(&cfg.Evaluation.LockTTL, "POLYEDGE_EVALUATION_LOCK_TTL")
	setBool(&cfg.Evaluation.ArchiveOnClose, "POLYEDGE_EVALUATION_ARCHIVE_ON_CLOSE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYEDGE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYEDGE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "POLYEDGE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYEDGE_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "POLYEDGE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWin, "POLYEDGE_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYEDGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYEDGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYEDGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYEDGE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYEDGE_MODE")
	setStr(&cfg.Store, "POLYEDGE_STORE")
	setStr(&cfg.LogLevel, "POLYEDGE_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

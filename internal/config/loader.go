package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKSTOCK_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the defaults
// and environment alone are used. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOOKSTOCK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Store ──
	setStr(&cfg.Store.Driver, "BOOKSTOCK_STORE_DRIVER")
	setStr(&cfg.Store.SeedFile, "BOOKSTOCK_STORE_SEED_FILE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BOOKSTOCK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform alias
	setStr(&cfg.Postgres.Host, "BOOKSTOCK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BOOKSTOCK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BOOKSTOCK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BOOKSTOCK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BOOKSTOCK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BOOKSTOCK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BOOKSTOCK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BOOKSTOCK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BOOKSTOCK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BOOKSTOCK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BOOKSTOCK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKSTOCK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKSTOCK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKSTOCK_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "BOOKSTOCK_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "BOOKSTOCK_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.SummaryTTL, "BOOKSTOCK_REDIS_SUMMARY_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BOOKSTOCK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BOOKSTOCK_S3_REGION")
	setStr(&cfg.S3.Bucket, "BOOKSTOCK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BOOKSTOCK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BOOKSTOCK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BOOKSTOCK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BOOKSTOCK_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "BOOKSTOCK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BOOKSTOCK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BOOKSTOCK_SERVER_API_KEY")
	setStr(&cfg.Server.APIKeyHash, "BOOKSTOCK_SERVER_API_KEY_HASH")
	setInt(&cfg.Server.RateLimit, "BOOKSTOCK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BOOKSTOCK_SERVER_RATE_WINDOW")

	// ── Orders ──
	setInt(&cfg.Orders.RateLimit, "BOOKSTOCK_ORDERS_RATE_LIMIT")
	setDuration(&cfg.Orders.RateWindow, "BOOKSTOCK_ORDERS_RATE_WINDOW")
	setBool(&cfg.Orders.StrictTransitions, "BOOKSTOCK_ORDERS_STRICT_TRANSITIONS")

	// ── Alert ──
	setDuration(&cfg.Alert.SweepInterval, "BOOKSTOCK_ALERT_SWEEP_INTERVAL")
	setBool(&cfg.Alert.SweepOnStart, "BOOKSTOCK_ALERT_SWEEP_ON_START")
	setInt(&cfg.Alert.CriticalThreshold, "BOOKSTOCK_ALERT_CRITICAL_THRESHOLD")
	setDuration(&cfg.Alert.LockTTL, "BOOKSTOCK_ALERT_LOCK_TTL")

	// ── Report ──
	setBool(&cfg.Report.Enabled, "BOOKSTOCK_REPORT_ENABLED")
	setDuration(&cfg.Report.Interval, "BOOKSTOCK_REPORT_INTERVAL")
	setStr(&cfg.Report.Cron, "BOOKSTOCK_REPORT_CRON")
	setStr(&cfg.Report.Prefix, "BOOKSTOCK_REPORT_PREFIX")
	setInt(&cfg.Report.RetentionDays, "BOOKSTOCK_REPORT_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BOOKSTOCK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BOOKSTOCK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BOOKSTOCK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BOOKSTOCK_NOTIFY_EVENTS")

	// ── Log ──
	setStr(&cfg.Log.File, "BOOKSTOCK_LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "BOOKSTOCK_LOG_MAX_SIZE_MB")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOOKSTOCK_MODE")
	setStr(&cfg.LogLevel, "BOOKSTOCK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

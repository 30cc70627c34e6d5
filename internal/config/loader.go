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
// built-in defaults, applies VERDICT_* environment variable overrides, and
// returns the final Config. The caller should invoke Config.Validate() after
// Load. An empty path skips the file and uses defaults plus environment.
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

// applyEnvOverrides reads VERDICT_* environment variables and overwrites the
// corresponding Config fields when a variable is set and non-empty.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "VERDICT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "VERDICT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "VERDICT_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "VERDICT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "VERDICT_CHAIN_ID")
	setStr(&cfg.Chain.RouterAddress, "VERDICT_CHAIN_ROUTER_ADDRESS")
	setStr(&cfg.Chain.GasPriceGwei, "VERDICT_CHAIN_GAS_PRICE_GWEI")
	setUint64(&cfg.Chain.GasLimit, "VERDICT_CHAIN_GAS_LIMIT")
	setDuration(&cfg.Chain.SettleDelay, "VERDICT_CHAIN_SETTLE_DELAY")
	setDuration(&cfg.Chain.ConfirmTimeout, "VERDICT_CHAIN_CONFIRM_TIMEOUT")
	setDuration(&cfg.Chain.SwitchTimeout, "VERDICT_CHAIN_SWITCH_TIMEOUT")
	setDuration(&cfg.Chain.PollInterval, "VERDICT_CHAIN_POLL_INTERVAL")
	setDuration(&cfg.Chain.LockTTL, "VERDICT_CHAIN_LOCK_TTL")

	// ── Engine ──
	setStr(&cfg.Engine.BaseURL, "VERDICT_ENGINE_BASE_URL")
	setDuration(&cfg.Engine.Timeout, "VERDICT_ENGINE_TIMEOUT")
	setDuration(&cfg.Engine.CacheTTL, "VERDICT_ENGINE_CACHE_TTL")

	// ── Oracle ──
	setDuration(&cfg.Oracle.Timeout, "VERDICT_ORACLE_TIMEOUT")
	setStr(&cfg.Oracle.PriceField, "VERDICT_ORACLE_PRICE_FIELD")
	setInt(&cfg.Oracle.MaxConcurrency, "VERDICT_ORACLE_MAX_CONCURRENCY")
	setFloat64(&cfg.Oracle.RequestsPerSecond, "VERDICT_ORACLE_REQUESTS_PER_SECOND")
	setInt(&cfg.Oracle.BreakerFailures, "VERDICT_ORACLE_BREAKER_FAILURES")
	setDuration(&cfg.Oracle.BreakerCooldown, "VERDICT_ORACLE_BREAKER_COOLDOWN")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "VERDICT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "VERDICT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VERDICT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VERDICT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VERDICT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VERDICT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VERDICT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VERDICT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VERDICT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VERDICT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VERDICT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VERDICT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VERDICT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VERDICT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VERDICT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VERDICT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "VERDICT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VERDICT_S3_REGION")
	setStr(&cfg.S3.Bucket, "VERDICT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VERDICT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VERDICT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VERDICT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VERDICT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "VERDICT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "VERDICT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "VERDICT_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "VERDICT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VERDICT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "VERDICT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "VERDICT_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VERDICT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VERDICT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VERDICT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VERDICT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VERDICT_MODE")
	setStr(&cfg.LogLevel, "VERDICT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses cleanly.
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

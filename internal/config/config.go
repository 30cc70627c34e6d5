// Package config defines the top-level configuration for the verdict service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by VERDICT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Engine   EngineConfig   `toml:"engine"`
	Oracle   OracleConfig   `toml:"oracle"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the credentials of the service-side signing wallet.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds ledger RPC endpoints, contract addresses and the
// transaction timing knobs used by the redemption flow.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	ChainID       int64  `toml:"chain_id"`
	RouterAddress string `toml:"router_address"`
	GasPriceGwei  string `toml:"gas_price_gwei"`
	GasLimit      uint64 `toml:"gas_limit"`
	// SettleDelay is the pause between an approval receipt and the allowance re-read.
	SettleDelay duration `toml:"settle_delay"`
	// ConfirmTimeout bounds receipt waits. Zero waits forever.
	ConfirmTimeout duration `toml:"confirm_timeout"`
	// SwitchTimeout bounds a wallet network switch. Zero waits forever.
	SwitchTimeout duration `toml:"switch_timeout"`
	PollInterval  duration `toml:"poll_interval"`
	// LockTTL bounds the per-market redemption lock. It must outlast an
	// approval plus a redeem confirmation.
	LockTTL duration `toml:"lock_ttl"`
	// AltRPCURLs maps a chain id (decimal string) to an RPC endpoint the
	// wallet may switch to.
	AltRPCURLs map[string]string `toml:"alt_rpc_urls"`
}

// EngineConfig points at the market engine that owns market lifecycles.
type EngineConfig struct {
	BaseURL  string   `toml:"base_url"`
	Timeout  duration `toml:"timeout"`
	CacheTTL duration `toml:"cache_ttl"`
}

// OracleConfig tunes how price feeds are fetched during an audit.
type OracleConfig struct {
	Timeout           duration `toml:"timeout"`
	PriceField        string   `toml:"price_field"`
	MaxConcurrency    int      `toml:"max_concurrency"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	BreakerFailures   int      `toml:"breaker_failures"`
	BreakerCooldown   duration `toml:"breaker_cooldown"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls how often old history rows are moved to S3.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
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
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	APIKey             string   `toml:"api_key"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
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
		Chain: ChainConfig{
			RPCURL:         "https://evmrpc-testnet.0g.ai",
			ChainID:        16602,
			RouterAddress:  "0x0000000000000000000000000000000000000000",
			GasPriceGwei:   "4",
			GasLimit:       500_000,
			SettleDelay:    duration{time.Second},
			ConfirmTimeout: duration{5 * time.Minute},
			SwitchTimeout:  duration{0},
			PollInterval:   duration{2 * time.Second},
			LockTTL:        duration{30 * time.Minute},
			AltRPCURLs:     map[string]string{},
		},
		Engine: EngineConfig{
			BaseURL:  "http://localhost:3001",
			Timeout:  duration{15 * time.Second},
			CacheTTL: duration{5 * time.Minute},
		},
		Oracle: OracleConfig{
			Timeout:           duration{10 * time.Second},
			PriceField:        "Price",
			MaxConcurrency:    8,
			RequestsPerSecond: 20,
			BreakerFailures:   5,
			BreakerCooldown:   duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
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
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "verdict-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"redemption_done", "redemption_failed", "audit_incomplete"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server": true,
	"audit":  true,
	"redeem": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, audit, redeem)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet: only the one-shot redeem mode signs with a service-held key.
	if c.Mode == "redeem" && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode redeem")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Chain.RouterAddress) {
		errs = append(errs, fmt.Sprintf("chain: router_address %q is not a hex address", c.Chain.RouterAddress))
	}
	if _, err := c.Chain.GasPriceWei(); err != nil {
		errs = append(errs, "chain: "+err.Error())
	}
	if c.Chain.GasLimit == 0 {
		errs = append(errs, "chain: gas_limit must be > 0")
	}
	if c.Chain.SettleDelay.Duration < 0 {
		errs = append(errs, "chain: settle_delay must not be negative")
	}
	if c.Chain.ConfirmTimeout.Duration < 0 || c.Chain.SwitchTimeout.Duration < 0 {
		errs = append(errs, "chain: timeouts must not be negative (0 means unbounded)")
	}
	if c.Chain.PollInterval.Duration <= 0 {
		errs = append(errs, "chain: poll_interval must be > 0")
	}
	if c.Chain.LockTTL.Duration <= 0 {
		errs = append(errs, "chain: lock_ttl must be > 0")
	} else if ct := c.Chain.ConfirmTimeout.Duration; ct > 0 {
		if need := 2*ct + c.Chain.SettleDelay.Duration; c.Chain.LockTTL.Duration <= need {
			errs = append(errs, fmt.Sprintf("chain: lock_ttl must exceed 2*confirm_timeout + settle_delay (%s)", need))
		}
	}

	// Engine
	if c.Engine.BaseURL == "" {
		errs = append(errs, "engine: base_url must not be empty")
	}

	// Oracle
	if c.Oracle.PriceField == "" {
		errs = append(errs, "oracle: price_field must not be empty")
	}
	if c.Oracle.MaxConcurrency < 1 {
		errs = append(errs, "oracle: max_concurrency must be >= 1")
	}
	if c.Oracle.RequestsPerSecond <= 0 {
		errs = append(errs, "oracle: requests_per_second must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
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
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 and archival
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Server
	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMinute < 0 {
			errs = append(errs, "server: rate_limit_per_minute must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

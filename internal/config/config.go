// Package config defines the top-level configuration for the bond oracle
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BONDORACLE_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Oracle   OracleConfig   `toml:"oracle"`
	Wallet   WalletConfig   `toml:"wallet"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the JSON-RPC endpoint and the bond aggregator contract.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
	// ChainID, when non-zero, must match the endpoint's chain.
	ChainID    uint64 `toml:"chain_id"`
	Aggregator string `toml:"aggregator"`
}

// OracleConfig selects the price engine and seeds access control.
type OracleConfig struct {
	Variant string `toml:"variant"`
	// Owner is written only when the store has no owner yet.
	Owner         string   `toml:"owner"`
	SequencerFeed string   `toml:"sequencer_feed"`
	GracePeriod   duration `toml:"grace_period"`
	// LockWait bounds how long a mutation waits for the cross-replica lock.
	LockWait duration `toml:"lock_wait"`
}

// WalletConfig holds the operator key used by oraclectl to sign requests.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. When
// disabled the registry lives in memory.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters. When disabled, events stay
// in process and no cross-replica lock or rate limit is applied.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshots.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// RestoreOnStart loads the newest snapshot into an in-memory registry.
	RestoreOnStart bool `toml:"restore_on_start"`
	// KeepSnapshots prunes older snapshots after each write; 0 keeps all.
	KeepSnapshots int `toml:"keep_snapshots"`
	// Schedule is a standard five-field cron expression for periodic
	// snapshots in server mode. Empty disables it.
	Schedule string `toml:"schedule"`
}

// duration wraps time.Duration so TOML can carry strings like "1h".
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
	Port          int      `toml:"port"`
	CORSOrigins   []string `toml:"cors_origins"`
	APIKey        string   `toml:"api_key"`
	SignatureSkew duration `toml:"signature_skew"`
	RateLimit     int      `toml:"rate_limit"`
	RateWindow    duration `toml:"rate_window"`
	Metrics       bool     `toml:"metrics"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Enabled reports whether any notification channel is configured.
func (n NotifyConfig) Enabled() bool {
	return (n.TelegramToken != "" && n.TelegramChatID != "") || n.DiscordWebhookURL != ""
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL: "http://localhost:8545",
		},
		Oracle: OracleConfig{
			Variant:     "feed",
			GracePeriod: duration{time.Hour},
			LockWait:    duration{2 * time.Second},
		},
		Supabase: SupabaseConfig{
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
			Bucket:         "bondoracle",
			ForcePathStyle: true,
			KeepSnapshots:  30,
		},
		Server: ServerConfig{
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000"},
			SignatureSkew: duration{5 * time.Minute},
			RateLimit:     50,
			RateWindow:    duration{time.Second},
			Metrics:       true,
		},
		Notify: NotifyConfig{
			Events: []string{"market_registered", "pair_updated", "auctioneer_updated", "owner_transferred"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":   true,
	"snapshot": true,
}

var validVariants = map[string]bool{
	"feed":   true,
	"l2feed": true,
	"twap":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
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

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, snapshot)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if !isAddress(c.Chain.Aggregator) {
		errs = append(errs, fmt.Sprintf("chain: aggregator must be a non-zero address, got %q", c.Chain.Aggregator))
	}

	// Oracle
	variant := strings.ToLower(c.Oracle.Variant)
	if !validVariants[variant] {
		errs = append(errs, fmt.Sprintf("oracle: unknown variant %q (valid: feed, l2feed, twap)", c.Oracle.Variant))
	}
	if variant == "l2feed" {
		if !isAddress(c.Oracle.SequencerFeed) {
			errs = append(errs, "oracle: sequencer_feed must be set for variant l2feed")
		}
		if c.Oracle.GracePeriod.Duration <= 0 {
			errs = append(errs, "oracle: grace_period must be > 0")
		}
	}
	if c.Oracle.Owner != "" && !isAddress(c.Oracle.Owner) {
		errs = append(errs, fmt.Sprintf("oracle: owner must be a non-zero address, got %q", c.Oracle.Owner))
	}
	if c.Oracle.Owner == "" && !c.Supabase.Enabled && !c.S3.RestoreOnStart {
		errs = append(errs, "oracle: owner is required when the registry is not persisted")
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.KeepSnapshots < 0 {
			errs = append(errs, "s3: keep_snapshots must be >= 0")
		}
		if c.S3.Schedule != "" {
			if _, err := cron.ParseStandard(c.S3.Schedule); err != nil {
				errs = append(errs, fmt.Sprintf("s3: invalid schedule %q: %v", c.S3.Schedule, err))
			}
		}
	}
	if mode == "snapshot" && !c.S3.Enabled {
		errs = append(errs, "s3: must be enabled for mode snapshot")
	}
	if c.S3.RestoreOnStart && (!c.S3.Enabled || c.Supabase.Enabled) {
		errs = append(errs, "s3: restore_on_start needs s3 enabled and an in-memory registry")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.SignatureSkew.Duration <= 0 {
		errs = append(errs, "server: signature_skew must be > 0")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}

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
// built-in defaults, applies BONDORACLE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
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

// applyEnvOverrides reads well-known BONDORACLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "BONDORACLE_CHAIN_RPC_URL")
	setUint64(&cfg.Chain.ChainID, "BONDORACLE_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.Aggregator, "BONDORACLE_CHAIN_AGGREGATOR")

	// ── Oracle ──
	setStr(&cfg.Oracle.Variant, "BONDORACLE_ORACLE_VARIANT")
	setStr(&cfg.Oracle.Owner, "BONDORACLE_ORACLE_OWNER")
	setStr(&cfg.Oracle.SequencerFeed, "BONDORACLE_ORACLE_SEQUENCER_FEED")
	setDuration(&cfg.Oracle.GracePeriod, "BONDORACLE_ORACLE_GRACE_PERIOD")
	setDuration(&cfg.Oracle.LockWait, "BONDORACLE_ORACLE_LOCK_WAIT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "BONDORACLE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "BONDORACLE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "BONDORACLE_WALLET_KEY_PASSWORD")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "BONDORACLE_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "BONDORACLE_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "BONDORACLE_DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "BONDORACLE_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "BONDORACLE_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "BONDORACLE_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "BONDORACLE_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "BONDORACLE_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "BONDORACLE_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "BONDORACLE_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "BONDORACLE_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "BONDORACLE_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BONDORACLE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BONDORACLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BONDORACLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BONDORACLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BONDORACLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BONDORACLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BONDORACLE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BONDORACLE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BONDORACLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BONDORACLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "BONDORACLE_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "BONDORACLE_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "BONDORACLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BONDORACLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BONDORACLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BONDORACLE_S3_FORCE_PATH_STYLE")
	setBool(&cfg.S3.RestoreOnStart, "BONDORACLE_S3_RESTORE_ON_START")
	setInt(&cfg.S3.KeepSnapshots, "BONDORACLE_S3_KEEP_SNAPSHOTS")
	setStr(&cfg.S3.Schedule, "BONDORACLE_S3_SCHEDULE")

	// ── Server ──
	setInt(&cfg.Server.Port, "BONDORACLE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BONDORACLE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BONDORACLE_SERVER_API_KEY")
	setDuration(&cfg.Server.SignatureSkew, "BONDORACLE_SERVER_SIGNATURE_SKEW")
	setInt(&cfg.Server.RateLimit, "BONDORACLE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BONDORACLE_SERVER_RATE_WINDOW")
	setBool(&cfg.Server.Metrics, "BONDORACLE_SERVER_METRICS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BONDORACLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BONDORACLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BONDORACLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BONDORACLE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BONDORACLE_MODE")
	setStr(&cfg.LogLevel, "BONDORACLE_LOG_LEVEL")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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

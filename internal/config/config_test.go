package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "server"
log_level = "debug"

[chain]
rpc_url = "https://rpc.example/v1/key"
chain_id = 42161
aggregator = "0x00000000000000000000000000000000000000a1"

[oracle]
variant = "l2feed"
owner = "0x00000000000000000000000000000000000000b2"
sequencer_feed = "0x00000000000000000000000000000000000000c3"
grace_period = "30m"

[server]
port = 9090
api_key = "secret"
signature_skew = "2m"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOntoDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "l2feed", cfg.Oracle.Variant)
	assert.Equal(t, 30*time.Minute, cfg.Oracle.GracePeriod.Duration)
	assert.Equal(t, uint64(42161), cfg.Chain.ChainID)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.SignatureSkew.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Oracle.LockWait.Duration)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BONDORACLE_ORACLE_VARIANT", "twap")
	t.Setenv("BONDORACLE_SERVER_PORT", "7000")
	t.Setenv("BONDORACLE_CHAIN_CHAIN_ID", "10")
	t.Setenv("BONDORACLE_SERVER_RATE_WINDOW", "5s")
	t.Setenv("BONDORACLE_SERVER_CORS_ORIGINS", " https://a.example, ,https://b.example ")
	t.Setenv("BONDORACLE_REDIS_ENABLED", "true")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "twap", cfg.Oracle.Variant)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, uint64(10), cfg.Chain.ChainID)
	assert.Equal(t, 5*time.Second, cfg.Server.RateWindow.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "feed", cfg.Oracle.Variant)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Defaults()
		c.Chain.Aggregator = "0x00000000000000000000000000000000000000a1"
		c.Oracle.Owner = "0x00000000000000000000000000000000000000b2"
		return c
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "trade" }, "unknown mode"},
		{"variant", func(c *Config) { c.Oracle.Variant = "spot" }, "unknown variant"},
		{"aggregator", func(c *Config) { c.Chain.Aggregator = "0x0000000000000000000000000000000000000000" }, "chain: aggregator"},
		{"sequencer", func(c *Config) { c.Oracle.Variant = "l2feed" }, "sequencer_feed"},
		{"owner", func(c *Config) { c.Oracle.Owner = "" }, "owner is required"},
		{"owner format", func(c *Config) { c.Oracle.Owner = "alice" }, "owner must be"},
		{"snapshot needs s3", func(c *Config) { c.Mode = "snapshot" }, "mode snapshot"},
		{"restore needs memory", func(c *Config) {
			c.S3.Enabled, c.S3.RestoreOnStart, c.Supabase.Enabled = true, true, true
		}, "restore_on_start"},
		{"pool", func(c *Config) { c.Supabase.Enabled = true; c.Supabase.PoolMinConns = 20 }, "pool_min_conns"},
		{"schedule", func(c *Config) { c.S3.Enabled = true; c.S3.Schedule = "every tuesday" }, "invalid schedule"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
		{"key password", func(c *Config) { c.Wallet.EncryptedKeyPath = "/k.json" }, "key_password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Server.APIKey = "secret"
	cfg.S3.SecretKey = "s3"

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Wallet.PrivateKey)
	assert.Equal(t, redacted, out.Server.APIKey)
	assert.Equal(t, redacted, out.S3.SecretKey)
	assert.Empty(t, out.Redis.Password)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}

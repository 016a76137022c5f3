package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondoracle/internal/chain"
	"github.com/alanyoungcy/bondoracle/internal/config"
	"github.com/alanyoungcy/bondoracle/internal/domain"
)

func TestNewEngineSelectsVariant(t *testing.T) {
	reader := chain.NewReader(nil)

	cases := []struct {
		variant string
		want    domain.Variant
	}{
		{"feed", domain.VariantFeed},
		{"TWAP", domain.VariantTWAP},
	}
	for _, tc := range cases {
		e, err := newEngine(config.OracleConfig{Variant: tc.variant}, reader)
		require.NoError(t, err)
		assert.Equal(t, tc.want, e.Variant())
	}

	cfg := config.Defaults().Oracle
	cfg.Variant = "l2feed"
	cfg.SequencerFeed = "0x00000000000000000000000000000000000000c3"
	e, err := newEngine(cfg, reader)
	require.NoError(t, err)
	assert.Equal(t, domain.VariantL2Feed, e.Variant())

	cfg.SequencerFeed = "nope"
	_, err = newEngine(cfg, reader)
	assert.Error(t, err)

	_, err = newEngine(config.OracleConfig{Variant: "spot"}, reader)
	assert.Error(t, err)
}

func TestNewSenders(t *testing.T) {
	assert.Empty(t, newSenders(config.NotifyConfig{TelegramToken: "t"}))

	senders := newSenders(config.NotifyConfig{
		TelegramToken:     "t",
		TelegramChatID:    "1",
		DiscordWebhookURL: "https://discord.example/hook",
	})
	require.Len(t, senders, 2)
	assert.Equal(t, "telegram", senders[0].Name())
	assert.Equal(t, "discord", senders[1].Name())
}

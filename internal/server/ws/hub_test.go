package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

type chanBus struct {
	ch         chan []byte
	subscribed chan string
}

func (b *chanBus) Publish(context.Context, string, []byte) error { return nil }

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.subscribed <- channel
	return b.ch, nil
}

func TestHubForwardsEvents(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1), subscribed: make(chan string, 1)}
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Variant: domain.VariantTWAP})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	select {
	case ch := <-bus.subscribed:
		assert.Equal(t, domain.EventChannel, ch)
	case <-time.After(2 * time.Second):
		t.Fatal("hub never subscribed")
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var status envelope
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "oracle_status", status.Type)
	assert.Contains(t, string(status.Payload), `"variant":"twap"`)
	assert.Equal(t, 1, hub.clientCount())

	bus.ch <- []byte(`{"type":"market_registered","market_id":7}`)

	var evt envelope
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "event", evt.Type)
	assert.Equal(t, domain.EventChannel, evt.Channel)

	var payload domain.OracleEvent
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, domain.EventMarketRegistered, payload.Type)
	require.NotNil(t, payload.MarketID)
	assert.Equal(t, uint64(7), *payload.MarketID)
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{"oracle:events": true}}
	assert.True(t, c.isSubscribed("oracle:events"))
	assert.False(t, c.isSubscribed("oracle:other"))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"oracle:*"}})
	assert.True(t, c.isSubscribed("oracle:other"))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"oracle:*", "oracle:events"}})
	assert.False(t, c.isSubscribed("oracle:events"))
}

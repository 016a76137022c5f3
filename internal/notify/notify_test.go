package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondoracle/internal/cache/local"
	"github.com/alanyoungcy/bondoracle/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingSender struct {
	mu     sync.Mutex
	name   string
	err    error
	titles []string
	bodies []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.titles)
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"market_registered", " "}, discard())

	require.NoError(t, n.Notify(context.Background(), "pair_updated", "t", "m"))
	assert.Equal(t, 0, s.count())

	require.NoError(t, n.Notify(context.Background(), "market_registered", "t", "m"))
	assert.Equal(t, 1, s.count())

	require.NoError(t, n.NotifyAll(context.Background(), "t", "m"))
	assert.Equal(t, 2, s.count())
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordingSender{name: "bad", err: boom}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, good.count())
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42", srv.URL+"/")
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

func TestFormatEvent(t *testing.T) {
	id := uint64(5)
	pair := domain.NewPairKey(common.HexToAddress("0x0a"), common.HexToAddress("0x0b"))
	title, body := FormatEvent(domain.OracleEvent{
		Type:     domain.EventMarketRegistered,
		MarketID: &id,
		Pair:     &pair,
		Caller:   common.HexToAddress("0x02"),
	})
	assert.Equal(t, "Market registered", title)
	assert.Contains(t, body, "market: 5")
	assert.Contains(t, body, "pair: "+pair.String())
	assert.Contains(t, body, "by: 0x0000000000000000000000000000000000000002")
}

func TestForwarderRelaysBusEvents(t *testing.T) {
	bus := local.NewBus()
	s := &recordingSender{name: "rec"}
	fwd := NewForwarder(bus, NewNotifier([]Sender{s}, nil, discard()), discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	enabled := true
	addr := common.HexToAddress("0x03")
	payload, err := json.Marshal(domain.OracleEvent{Type: domain.EventAuctioneerUpdated, Address: &addr, Enabled: &enabled})
	require.NoError(t, err)

	// The subscription is registered asynchronously; republish until seen.
	require.Eventually(t, func() bool {
		_ = bus.Publish(context.Background(), domain.EventChannel, payload)
		return s.count() > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, "Auctioneer updated", s.titles[0])
	assert.Contains(t, s.bodies[0], "enabled: true")
}

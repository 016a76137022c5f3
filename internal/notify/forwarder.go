package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// Forwarder relays registry events from the signal bus to a Notifier.
type Forwarder struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_forwarder")),
	}
}

// Run subscribes to the event channel and forwards until ctx is cancelled.
// Delivery failures are logged and do not stop the loop.
func (f *Forwarder) Run(ctx context.Context) error {
	msgs, err := f.bus.Subscribe(ctx, domain.EventChannel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.EventChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-msgs:
			if !ok {
				return nil
			}
			var evt domain.OracleEvent
			if err := json.Unmarshal(data, &evt); err != nil {
				f.logger.WarnContext(ctx, "undecodable event",
					slog.String("error", err.Error()),
				)
				continue
			}
			title, body := FormatEvent(evt)
			if err := f.notifier.Notify(ctx, string(evt.Type), title, body); err != nil {
				f.logger.WarnContext(ctx, "notification failed",
					slog.String("event", string(evt.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// FormatEvent renders an event as a notification title and body.
func FormatEvent(evt domain.OracleEvent) (title, body string) {
	var lines []string
	switch evt.Type {
	case domain.EventMarketRegistered:
		title = "Market registered"
	case domain.EventPairUpdated:
		title = "Pair updated"
	case domain.EventAuctioneerUpdated:
		title = "Auctioneer updated"
	case domain.EventOwnerTransferred:
		title = "Ownership transferred"
	default:
		title = string(evt.Type)
	}

	if evt.MarketID != nil {
		lines = append(lines, fmt.Sprintf("market: %d", *evt.MarketID))
	}
	if evt.Pair != nil {
		lines = append(lines, "pair: "+evt.Pair.String())
	}
	if evt.Address != nil {
		lines = append(lines, "address: "+evt.Address.Hex())
	}
	if evt.Enabled != nil {
		lines = append(lines, fmt.Sprintf("enabled: %t", *evt.Enabled))
	}
	lines = append(lines, "by: "+evt.Caller.Hex())
	if !evt.OccurredAt.IsZero() {
		lines = append(lines, "at: "+evt.OccurredAt.UTC().Format("2006-01-02 15:04:05Z"))
	}
	return title, strings.Join(lines, "\n")
}

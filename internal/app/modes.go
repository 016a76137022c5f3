package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/metrics"
	"github.com/alanyoungcy/bondoracle/internal/notify"
	"github.com/alanyoungcy/bondoracle/internal/server"
	"github.com/alanyoungcy/bondoracle/internal/server/handler"
	"github.com/alanyoungcy/bondoracle/internal/server/ws"
	"github.com/alanyoungcy/bondoracle/internal/service"
)

// snapshotDebounce coalesces bursts of registry events into one snapshot.
const snapshotDebounce = 5 * time.Second

// ServerMode runs the HTTP API, the WebSocket hub, the notification
// forwarder and, with S3 configured, the snapshot loops: on change for an
// in-memory registry, and on the cron schedule when one is set.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Variant:   deps.Registry.Variant(),
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	if a.cfg.Notify.Enabled() {
		fwd := notify.NewForwarder(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error { return fwd.Run(ctx) })

		msg := fmt.Sprintf("variant %s listening on :%d", deps.Registry.Variant(), a.cfg.Server.Port)
		if err := deps.Notifier.NotifyAll(ctx, "bondoracle started", msg); err != nil {
			a.logger.WarnContext(ctx, "startup notification failed", slog.String("error", err.Error()))
		}
	}

	if deps.Snapshots != nil && !deps.Persistent {
		g.Go(func() error { return a.snapshotOnChange(ctx, deps) })
	}
	if deps.Snapshots != nil && a.cfg.S3.Schedule != "" {
		g.Go(func() error { return a.scheduledSnapshots(ctx, deps.Snapshots) })
	}

	a.startHTTPServer(ctx, g, deps, hub)

	return g.Wait()
}

// SnapshotMode writes one snapshot, prunes old ones and returns.
func (a *App) SnapshotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting snapshot mode")
	if deps.Snapshots == nil {
		return errors.New("snapshot mode: s3 is not configured")
	}
	return a.writeSnapshot(ctx, deps.Snapshots)
}

// startHTTPServer adds the API server to g and shuts it down gracefully when
// ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	var snapshots handler.Snapshotter
	if deps.Snapshots != nil {
		snapshots = deps.Snapshots
	}

	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		APIKey:        a.cfg.Server.APIKey,
		SignatureSkew: a.cfg.Server.SignatureSkew.Duration,
		RateLimit:     a.cfg.Server.RateLimit,
		RateWindow:    a.cfg.Server.RateWindow.Duration,
		Metrics:       a.cfg.Server.Metrics,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Registry.Variant(), deps.Checks, a.logger),
		Markets: handler.NewMarketHandler(deps.Registry, a.logger),
		Pairs:   handler.NewPairHandler(deps.Registry, a.logger),
		Access:  handler.NewAccessHandler(deps.Registry, a.logger),
		Admin:   handler.NewAdminHandler(deps.Registry.Owner, snapshots, deps.Store.Audit, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// snapshotOnChange persists an in-memory registry after every burst of
// mutations, and once more on shutdown if anything changed since.
func (a *App) snapshotOnChange(ctx context.Context, deps *Dependencies) error {
	events, err := deps.SignalBus.Subscribe(ctx, domain.EventChannel)
	if err != nil {
		return fmt.Errorf("snapshot loop: subscribe: %w", err)
	}

	timer := time.NewTimer(snapshotDebounce)
	timer.Stop()
	dirty := false

	for {
		select {
		case <-ctx.Done():
			if dirty {
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return a.writeSnapshot(flushCtx, deps.Snapshots)
			}
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			if !dirty {
				dirty = true
				timer.Reset(snapshotDebounce)
			}
		case <-timer.C:
			dirty = false
			if err := a.writeSnapshot(ctx, deps.Snapshots); err != nil {
				a.logger.ErrorContext(ctx, "snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}

// scheduledSnapshots writes a snapshot on every tick of the configured cron
// schedule until ctx is cancelled.
func (a *App) scheduledSnapshots(ctx context.Context, snaps *service.SnapshotService) error {
	c := cron.New(cron.WithLogger(cron.PrintfLogger(slog.NewLogLogger(a.logger.Handler(), slog.LevelError))))
	_, err := c.AddFunc(a.cfg.S3.Schedule, func() {
		if err := a.writeSnapshot(ctx, snaps); err != nil {
			a.logger.ErrorContext(ctx, "scheduled snapshot failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("snapshot schedule: %w", err)
	}

	a.logger.InfoContext(ctx, "snapshot schedule started", slog.String("schedule", a.cfg.S3.Schedule))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (a *App) writeSnapshot(ctx context.Context, snaps *service.SnapshotService) error {
	path, err := snaps.Write(ctx)
	metrics.ObserveSnapshot(err)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	a.logger.InfoContext(ctx, "snapshot written", slog.String("path", path))

	if keep := a.cfg.S3.KeepSnapshots; keep > 0 {
		if _, err := snaps.Prune(ctx, keep); err != nil {
			a.logger.WarnContext(ctx, "snapshot prune failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/bondoracle/internal/blob/s3"
	"github.com/alanyoungcy/bondoracle/internal/cache/local"
	"github.com/alanyoungcy/bondoracle/internal/cache/redis"
	"github.com/alanyoungcy/bondoracle/internal/chain"
	"github.com/alanyoungcy/bondoracle/internal/config"
	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/notify"
	"github.com/alanyoungcy/bondoracle/internal/oracle"
	"github.com/alanyoungcy/bondoracle/internal/server/handler"
	"github.com/alanyoungcy/bondoracle/internal/service"
	"github.com/alanyoungcy/bondoracle/internal/store/memory"
	"github.com/alanyoungcy/bondoracle/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *oracle.Registry
	Store    domain.RegistryStore
	// Persistent is false when the registry lives in memory.
	Persistent bool

	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter // nil without Redis

	Snapshots *service.SnapshotService // nil without S3
	Notifier  *notify.Notifier

	// Checks feed the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- Chain ---
	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: chain: %w", err))
	}
	closers = append(closers, chainClient.Close)
	deps.Checks["chain"] = chainClient.Ping

	engine, err := newEngine(cfg.Oracle, chainClient.Reader())
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}

	// --- Registry store ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Store = pgClient.Stores()
		deps.Persistent = true
		deps.Checks["postgres"] = pgClient.Ping
	} else {
		deps.Store = memory.NewRegistryStore()
	}

	// --- Redis or in-process bus ---
	var regOpts []oracle.RegistryOption
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			MaxRetries:  cfg.Redis.MaxRetries,
			TLSEnabled:  cfg.Redis.TLSEnabled,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		regOpts = append(regOpts, oracle.WithLockManager(redis.NewLockManager(redisClient, cfg.Oracle.LockWait.Duration)))
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = local.NewBus()
	}
	regOpts = append(regOpts, oracle.WithSignalBus(deps.SignalBus))

	// --- S3 snapshots ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Snapshots = service.NewSnapshotService(
			deps.Store,
			s3blob.NewWriter(s3Client, 0),
			s3blob.NewReader(s3Client),
			engine.Variant(),
			logger,
		)
		deps.Checks["s3"] = s3Client.Health

		if cfg.S3.RestoreOnStart && !deps.Persistent {
			if err := deps.Snapshots.RestoreLatest(ctx); err != nil {
				return fail(fmt.Errorf("wire: restore snapshot: %w", err))
			}
		}
	}

	// --- Registry ---
	aggregator := chainClient.Aggregator(common.HexToAddress(cfg.Chain.Aggregator))
	deps.Registry = oracle.NewRegistry(engine, aggregator, deps.Store, logger, regOpts...)

	var initialOwner common.Address
	if cfg.Oracle.Owner != "" {
		initialOwner = common.HexToAddress(cfg.Oracle.Owner)
	}
	owner, err := deps.Registry.EnsureOwner(ctx, initialOwner)
	if err != nil {
		return fail(fmt.Errorf("wire: owner: %w", err))
	}
	logger.InfoContext(ctx, "registry ready",
		slog.String("variant", string(engine.Variant())),
		slog.String("owner", owner.Hex()),
		slog.Bool("persistent", deps.Persistent),
	)

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(newSenders(cfg.Notify), cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// newEngine builds the price engine selected by cfg.Variant.
func newEngine(cfg config.OracleConfig, reader *chain.Reader) (oracle.Engine, error) {
	switch domain.Variant(strings.ToLower(cfg.Variant)) {
	case domain.VariantFeed:
		return oracle.NewFeedEngine(reader), nil
	case domain.VariantL2Feed:
		if !common.IsHexAddress(cfg.SequencerFeed) {
			return nil, fmt.Errorf("l2feed: invalid sequencer feed %q", cfg.SequencerFeed)
		}
		seq := reader.SequencerFeed(common.HexToAddress(cfg.SequencerFeed))
		return oracle.NewL2FeedEngine(reader, seq, cfg.GracePeriod.Duration), nil
	case domain.VariantTWAP:
		return oracle.NewTWAPEngine(reader), nil
	default:
		return nil, fmt.Errorf("unknown oracle variant %q", cfg.Variant)
	}
}

func newSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID, ""))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// lockTTL bounds how long a replica may hold a registry write lock.
const lockTTL = 10 * time.Second

// Registry binds market ids to pairs and dispatches price queries to the
// active engine. Writes are serialised in-process and, when a LockManager is
// configured, across replicas.
type Registry struct {
	engine     Engine
	aggregator domain.Aggregator
	store      domain.RegistryStore
	locks      domain.LockManager
	bus        domain.SignalBus
	now        Clock
	mu         sync.Mutex
	logger     *slog.Logger
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithLockManager serialises writes across replicas.
func WithLockManager(lm domain.LockManager) RegistryOption {
	return func(r *Registry) { r.locks = lm }
}

// WithSignalBus publishes committed mutations on domain.EventChannel.
func WithSignalBus(bus domain.SignalBus) RegistryOption {
	return func(r *Registry) { r.bus = bus }
}

// WithRegistryClock overrides the timestamp source for stored records.
func WithRegistryClock(c Clock) RegistryOption {
	return func(r *Registry) { r.now = c }
}

// NewRegistry creates a Registry. store.Audit may be nil.
func NewRegistry(engine Engine, aggregator domain.Aggregator, store domain.RegistryStore, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		engine:     engine,
		aggregator: aggregator,
		store:      store,
		now:        systemClock,
		logger:     logger.With(slog.String("component", "registry")),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Variant reports the active engine.
func (r *Registry) Variant() domain.Variant { return r.engine.Variant() }

// EnsureOwner records initial as owner if none is stored yet.
func (r *Registry) EnsureOwner(ctx context.Context, initial common.Address) (common.Address, error) {
	owner, err := r.store.Owner.Owner(ctx)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return common.Address{}, fmt.Errorf("registry: read owner: %w", err)
	}
	if initial == (common.Address{}) {
		return common.Address{}, fmt.Errorf("registry: no owner configured: %w", domain.ErrInvalidParams)
	}
	if err := r.store.Owner.SetOwner(ctx, initial); err != nil {
		return common.Address{}, fmt.Errorf("registry: set owner: %w", err)
	}
	r.logger.InfoContext(ctx, "owner initialised", slog.String("owner", initial.Hex()))
	return initial, nil
}

// Owner returns the current administrator.
func (r *Registry) Owner(ctx context.Context) (common.Address, error) {
	owner, err := r.store.Owner.Owner(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("registry: read owner: %w", err)
	}
	return owner, nil
}

// RegisterMarket binds marketID to (quote, payout). The caller must be an
// enabled auctioneer and the aggregator's auctioneer of record for the id.
func (r *Registry) RegisterMarket(ctx context.Context, caller common.Address, marketID uint64, quote, payout common.Address) error {
	pair := domain.NewPairKey(quote, payout)

	return r.withWriteLock(ctx, "market:"+strconv.FormatUint(marketID, 10), func() error {
		ok, err := r.store.Auctioneers.IsAuctioneer(ctx, caller)
		if err != nil {
			return fmt.Errorf("registry: check auctioneer: %w", err)
		}
		if !ok {
			return fmt.Errorf("registry: %s: %w", caller.Hex(), domain.ErrNotAuctioneer)
		}

		recorded, err := r.aggregator.AuctioneerOf(ctx, marketID)
		if err != nil {
			return fmt.Errorf("registry: aggregator lookup for market %d: %w", marketID, err)
		}
		if recorded != caller {
			return fmt.Errorf("registry: market %d belongs to auctioneer %s: %w", marketID, recorded.Hex(), domain.ErrInvalidParams)
		}

		if _, err := r.supportedRecord(ctx, pair); err != nil {
			return err
		}

		m := domain.MarketRegistration{
			MarketID:     marketID,
			Pair:         pair,
			Auctioneer:   caller,
			RegisteredAt: r.now().UTC(),
		}
		if err := r.store.Markets.CreateMarket(ctx, m); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return fmt.Errorf("registry: market %d already registered: %w", marketID, domain.ErrInvalidParams)
			}
			return fmt.Errorf("registry: create market %d: %w", marketID, err)
		}

		r.logger.InfoContext(ctx, "market registered",
			slog.Uint64("market_id", marketID),
			slog.String("pair", pair.String()),
			slog.String("auctioneer", caller.Hex()),
		)
		r.record(ctx, domain.OracleEvent{Type: domain.EventMarketRegistered, MarketID: &marketID, Pair: &pair, Caller: caller})
		return nil
	})
}

// Market returns the registration for marketID.
func (r *Registry) Market(ctx context.Context, marketID uint64) (domain.MarketRegistration, error) {
	m, err := r.store.Markets.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MarketRegistration{}, fmt.Errorf("registry: market %d: %w", marketID, domain.ErrMarketNotRegistered)
		}
		return domain.MarketRegistration{}, fmt.Errorf("registry: get market %d: %w", marketID, err)
	}
	return m, nil
}

// Markets lists registrations by ascending id.
func (r *Registry) Markets(ctx context.Context, opts domain.ListOpts) ([]domain.MarketRegistration, error) {
	ms, err := r.store.Markets.ListMarkets(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("registry: list markets: %w", err)
	}
	return ms, nil
}

// CurrentPrice returns the price of a registered market.
func (r *Registry) CurrentPrice(ctx context.Context, marketID uint64) (*big.Int, error) {
	m, err := r.Market(ctx, marketID)
	if err != nil {
		return nil, err
	}
	return r.CurrentPriceOf(ctx, m.Pair.Quote, m.Pair.Payout)
}

// Decimals returns the price precision of a registered market.
func (r *Registry) Decimals(ctx context.Context, marketID uint64) (uint8, error) {
	m, err := r.Market(ctx, marketID)
	if err != nil {
		return 0, err
	}
	return r.DecimalsOf(ctx, m.Pair.Quote, m.Pair.Payout)
}

// CurrentPriceOf returns the price of payout in quote.
func (r *Registry) CurrentPriceOf(ctx context.Context, quote, payout common.Address) (*big.Int, error) {
	pair := domain.NewPairKey(quote, payout)
	rec, err := r.supportedRecord(ctx, pair)
	if err != nil {
		return nil, err
	}
	price, err := r.engine.Price(ctx, pair, rec.Config)
	if err != nil {
		return nil, fmt.Errorf("registry: price %s: %w", pair, err)
	}
	return price, nil
}

// DecimalsOf returns the configured precision for a pair.
func (r *Registry) DecimalsOf(ctx context.Context, quote, payout common.Address) (uint8, error) {
	pair := domain.NewPairKey(quote, payout)
	rec, err := r.supportedRecord(ctx, pair)
	if err != nil {
		return 0, err
	}
	return r.engine.Decimals(rec.Config)
}

// PairConfig returns the stored record for a pair. Unconfigured pairs come
// back as an unsupported zero record.
func (r *Registry) PairConfig(ctx context.Context, quote, payout common.Address) (domain.PairRecord, error) {
	pair := domain.NewPairKey(quote, payout)
	rec, err := r.store.Pairs.GetPair(ctx, pair)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PairRecord{Pair: pair}, nil
		}
		return domain.PairRecord{}, fmt.Errorf("registry: get pair %s: %w", pair, err)
	}
	return rec, nil
}

// SetPair stores or clears the engine configuration for a pair. Removal
// ignores data and zeroes the stored config.
func (r *Registry) SetPair(ctx context.Context, caller, quote, payout common.Address, supported bool, data []byte) error {
	pair := domain.NewPairKey(quote, payout)
	if err := pair.Validate(); err != nil {
		return fmt.Errorf("registry: %v: %w", err, domain.ErrInvalidParams)
	}

	return r.withWriteLock(ctx, "pair:"+pair.String(), func() error {
		if err := r.requireOwner(ctx, caller); err != nil {
			return err
		}

		rec := domain.PairRecord{Pair: pair, UpdatedAt: r.now().UTC()}
		if supported {
			if err := r.engine.ValidatePair(ctx, pair, data); err != nil {
				return fmt.Errorf("registry: set pair %s: %w", pair, err)
			}
			rec.Variant = r.engine.Variant()
			rec.Supported = true
			rec.Config = append([]byte(nil), data...)
		}
		if err := r.store.Pairs.PutPair(ctx, rec); err != nil {
			return fmt.Errorf("registry: store pair %s: %w", pair, err)
		}

		r.logger.InfoContext(ctx, "pair updated",
			slog.String("pair", pair.String()),
			slog.Bool("supported", supported),
			slog.String("variant", string(rec.Variant)),
		)
		r.record(ctx, domain.OracleEvent{Type: domain.EventPairUpdated, Pair: &pair, Enabled: &supported, Caller: caller})
		return nil
	})
}

// SetAuctioneer enables or disables an auctioneer. Requesting the current
// state fails with ErrInvalidParams.
func (r *Registry) SetAuctioneer(ctx context.Context, caller, addr common.Address, enabled bool) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("registry: auctioneer is zero address: %w", domain.ErrInvalidParams)
	}

	return r.withWriteLock(ctx, "auctioneer:"+addr.Hex(), func() error {
		if err := r.requireOwner(ctx, caller); err != nil {
			return err
		}
		current, err := r.store.Auctioneers.IsAuctioneer(ctx, addr)
		if err != nil {
			return fmt.Errorf("registry: check auctioneer: %w", err)
		}
		if current == enabled {
			return fmt.Errorf("registry: auctioneer %s already enabled=%t: %w", addr.Hex(), enabled, domain.ErrInvalidParams)
		}
		if err := r.store.Auctioneers.SetAuctioneer(ctx, addr, enabled); err != nil {
			return fmt.Errorf("registry: set auctioneer %s: %w", addr.Hex(), err)
		}

		r.logger.InfoContext(ctx, "auctioneer updated",
			slog.String("auctioneer", addr.Hex()),
			slog.Bool("enabled", enabled),
		)
		r.record(ctx, domain.OracleEvent{Type: domain.EventAuctioneerUpdated, Address: &addr, Enabled: &enabled, Caller: caller})
		return nil
	})
}

// Auctioneers lists every auctioneer ever configured.
func (r *Registry) Auctioneers(ctx context.Context) ([]domain.AuctioneerEntry, error) {
	list, err := r.store.Auctioneers.ListAuctioneers(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list auctioneers: %w", err)
	}
	return list, nil
}

// TransferOwnership hands administration to newOwner.
func (r *Registry) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	if newOwner == (common.Address{}) {
		return fmt.Errorf("registry: new owner is zero address: %w", domain.ErrInvalidParams)
	}
	return r.withWriteLock(ctx, "owner", func() error {
		if err := r.requireOwner(ctx, caller); err != nil {
			return err
		}
		if err := r.store.Owner.SetOwner(ctx, newOwner); err != nil {
			return fmt.Errorf("registry: set owner: %w", err)
		}
		r.logger.InfoContext(ctx, "ownership transferred",
			slog.String("from", caller.Hex()),
			slog.String("to", newOwner.Hex()),
		)
		r.record(ctx, domain.OracleEvent{Type: domain.EventOwnerTransferred, Address: &newOwner, Caller: caller})
		return nil
	})
}

func (r *Registry) supportedRecord(ctx context.Context, pair domain.PairKey) (domain.PairRecord, error) {
	if err := pair.Validate(); err != nil {
		return domain.PairRecord{}, fmt.Errorf("registry: %w", err)
	}
	rec, err := r.store.Pairs.GetPair(ctx, pair)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PairRecord{}, fmt.Errorf("registry: pair %s: %w", pair, domain.ErrPairNotSupported)
		}
		return domain.PairRecord{}, fmt.Errorf("registry: get pair %s: %w", pair, err)
	}
	if !rec.Supported || rec.Variant != r.engine.Variant() {
		return domain.PairRecord{}, fmt.Errorf("registry: pair %s: %w", pair, domain.ErrPairNotSupported)
	}
	return rec, nil
}

func (r *Registry) requireOwner(ctx context.Context, caller common.Address) error {
	owner, err := r.store.Owner.Owner(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("registry: no owner: %w", domain.ErrUnauthorized)
		}
		return fmt.Errorf("registry: read owner: %w", err)
	}
	if caller != owner {
		return fmt.Errorf("registry: %s is not owner: %w", caller.Hex(), domain.ErrUnauthorized)
	}
	return nil
}

func (r *Registry) withWriteLock(ctx context.Context, key string, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, "oracle:"+key, lockTTL)
		if err != nil {
			return fmt.Errorf("registry: lock %s: %w", key, err)
		}
		defer unlock()
	}
	return fn()
}

// record writes the audit entry and publishes the event. Both happen after
// the mutation committed, so failures are logged rather than returned.
func (r *Registry) record(ctx context.Context, evt domain.OracleEvent) {
	evt.OccurredAt = r.now().UTC()

	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.ErrorContext(ctx, "marshal oracle event failed", slog.String("error", err.Error()))
		return
	}

	if r.store.Audit != nil {
		if err := r.store.Audit.Log(ctx, string(evt.Type), evt.Detail()); err != nil {
			r.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.bus != nil {
		if err := r.bus.Publish(ctx, domain.EventChannel, payload); err != nil {
			r.logger.WarnContext(ctx, "publish oracle event failed",
				slog.String("event", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}

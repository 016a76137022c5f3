package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Market ids are
// full uint64 values, so they are stored as NUMERIC and exchanged as text.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// CreateMarket inserts a registration. The primary key makes concurrent
// registrations of one id race to a single winner; losers get ErrAlreadyExists.
func (s *MarketStore) CreateMarket(ctx context.Context, m domain.MarketRegistration) error {
	const query = `
		INSERT INTO oracle_markets (market_id, quote, payout, auctioneer, registered_at)
		VALUES ($1::numeric, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		strconv.FormatUint(m.MarketID, 10),
		m.Pair.Quote.Hex(), m.Pair.Payout.Hex(),
		m.Auctioneer.Hex(), m.RegisteredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create market %d: %w", m.MarketID, err)
	}
	return nil
}

// GetMarket returns the registration for id, or ErrNotFound.
func (s *MarketStore) GetMarket(ctx context.Context, id uint64) (domain.MarketRegistration, error) {
	const query = `
		SELECT market_id::text, quote, payout, auctioneer, registered_at
		FROM oracle_markets
		WHERE market_id = $1::numeric`

	m, err := scanMarket(s.pool.QueryRow(ctx, query, strconv.FormatUint(id, 10)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketRegistration{}, domain.ErrNotFound
		}
		return domain.MarketRegistration{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// ListMarkets returns registrations ordered by id with optional time filtering.
func (s *MarketStore) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.MarketRegistration, error) {
	query, args := withListOpts(
		`SELECT market_id::text, quote, payout, auctioneer, registered_at FROM oracle_markets WHERE 1=1`,
		"registered_at", "market_id", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketRegistration
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return out, nil
}

func scanMarket(row pgx.Row) (domain.MarketRegistration, error) {
	var (
		m                         domain.MarketRegistration
		id, quote, payout, caller string
	)
	if err := row.Scan(&id, &quote, &payout, &caller, &m.RegisteredAt); err != nil {
		return domain.MarketRegistration{}, err
	}
	parsed, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return domain.MarketRegistration{}, fmt.Errorf("market id %q: %w", id, err)
	}
	m.MarketID = parsed
	m.Pair = domain.NewPairKey(common.HexToAddress(quote), common.HexToAddress(payout))
	m.Auctioneer = common.HexToAddress(caller)
	return m, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)

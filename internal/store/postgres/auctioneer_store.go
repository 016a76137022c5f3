package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// AuctioneerStore implements domain.AuctioneerStore using PostgreSQL.
type AuctioneerStore struct {
	pool *pgxpool.Pool
}

// NewAuctioneerStore creates a new AuctioneerStore backed by the given pool.
func NewAuctioneerStore(pool *pgxpool.Pool) *AuctioneerStore {
	return &AuctioneerStore{pool: pool}
}

func (s *AuctioneerStore) IsAuctioneer(ctx context.Context, addr common.Address) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx,
		`SELECT enabled FROM oracle_auctioneers WHERE address = $1`, addr.Hex(),
	).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: get auctioneer %s: %w", addr.Hex(), err)
	}
	return enabled, nil
}

func (s *AuctioneerStore) SetAuctioneer(ctx context.Context, addr common.Address, enabled bool) error {
	const query = `
		INSERT INTO oracle_auctioneers (address, enabled, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE SET
			enabled    = EXCLUDED.enabled,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, addr.Hex(), enabled); err != nil {
		return fmt.Errorf("postgres: set auctioneer %s: %w", addr.Hex(), err)
	}
	return nil
}

func (s *AuctioneerStore) ListAuctioneers(ctx context.Context) ([]domain.AuctioneerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address, enabled, updated_at FROM oracle_auctioneers ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctioneers: %w", err)
	}
	defer rows.Close()

	var out []domain.AuctioneerEntry
	for rows.Next() {
		var (
			e    domain.AuctioneerEntry
			addr string
		)
		if err := rows.Scan(&addr, &e.Enabled, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan auctioneer: %w", err)
		}
		e.Address = common.HexToAddress(addr)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list auctioneers rows: %w", err)
	}
	return out, nil
}

// OwnerStore implements domain.OwnerStore as a single-row table.
type OwnerStore struct {
	pool *pgxpool.Pool
}

// NewOwnerStore creates a new OwnerStore backed by the given pool.
func NewOwnerStore(pool *pgxpool.Pool) *OwnerStore {
	return &OwnerStore{pool: pool}
}

func (s *OwnerStore) Owner(ctx context.Context) (common.Address, error) {
	var addr string
	err := s.pool.QueryRow(ctx, `SELECT address FROM oracle_owner WHERE id = 1`).Scan(&addr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Address{}, domain.ErrNotFound
		}
		return common.Address{}, fmt.Errorf("postgres: get owner: %w", err)
	}
	return common.HexToAddress(addr), nil
}

func (s *OwnerStore) SetOwner(ctx context.Context, owner common.Address) error {
	const query = `
		INSERT INTO oracle_owner (id, address, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			address    = EXCLUDED.address,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, owner.Hex()); err != nil {
		return fmt.Errorf("postgres: set owner: %w", err)
	}
	return nil
}

var (
	_ domain.AuctioneerStore = (*AuctioneerStore)(nil)
	_ domain.OwnerStore      = (*OwnerStore)(nil)
)

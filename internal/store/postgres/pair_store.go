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

// PairStore implements domain.PairStore using PostgreSQL.
type PairStore struct {
	pool *pgxpool.Pool
}

// NewPairStore creates a new PairStore backed by the given connection pool.
func NewPairStore(pool *pgxpool.Pool) *PairStore {
	return &PairStore{pool: pool}
}

// GetPair returns the stored record, or ErrNotFound.
func (s *PairStore) GetPair(ctx context.Context, key domain.PairKey) (domain.PairRecord, error) {
	const query = `
		SELECT quote, payout, variant, supported, config, updated_at
		FROM oracle_pairs
		WHERE quote = $1 AND payout = $2`

	rec, err := scanPair(s.pool.QueryRow(ctx, query, key.Quote.Hex(), key.Payout.Hex()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PairRecord{}, domain.ErrNotFound
		}
		return domain.PairRecord{}, fmt.Errorf("postgres: get pair %s: %w", key, err)
	}
	return rec, nil
}

// PutPair inserts or replaces the record for rec.Pair.
func (s *PairStore) PutPair(ctx context.Context, rec domain.PairRecord) error {
	const query = `
		INSERT INTO oracle_pairs (quote, payout, variant, supported, config, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (quote, payout) DO UPDATE SET
			variant    = EXCLUDED.variant,
			supported  = EXCLUDED.supported,
			config     = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		rec.Pair.Quote.Hex(), rec.Pair.Payout.Hex(),
		string(rec.Variant), rec.Supported, rec.Config, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: put pair %s: %w", rec.Pair, err)
	}
	return nil
}

// ListPairs returns every stored pair, supported or not.
func (s *PairStore) ListPairs(ctx context.Context) ([]domain.PairRecord, error) {
	const query = `
		SELECT quote, payout, variant, supported, config, updated_at
		FROM oracle_pairs
		ORDER BY quote, payout`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pairs: %w", err)
	}
	defer rows.Close()

	var out []domain.PairRecord
	for rows.Next() {
		rec, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pair: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pairs rows: %w", err)
	}
	return out, nil
}

func scanPair(row pgx.Row) (domain.PairRecord, error) {
	var (
		rec           domain.PairRecord
		quote, payout string
		variant       string
	)
	if err := row.Scan(&quote, &payout, &variant, &rec.Supported, &rec.Config, &rec.UpdatedAt); err != nil {
		return domain.PairRecord{}, err
	}
	rec.Pair = domain.NewPairKey(common.HexToAddress(quote), common.HexToAddress(payout))
	rec.Variant = domain.Variant(variant)
	return rec, nil
}

var _ domain.PairStore = (*PairStore)(nil)

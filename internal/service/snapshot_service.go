package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

const (
	snapshotPrefix  = "snapshots/"
	snapshotVersion = 1
)

// Snapshot is a point-in-time copy of the registry.
type Snapshot struct {
	Version     int                         `json:"version"`
	TakenAt     time.Time                   `json:"taken_at"`
	Variant     domain.Variant              `json:"variant"`
	Owner       *common.Address             `json:"owner,omitempty"`
	Auctioneers []domain.AuctioneerEntry    `json:"auctioneers"`
	Pairs       []domain.PairRecord         `json:"pairs"`
	Markets     []domain.MarketRegistration `json:"markets"`
}

// SnapshotService writes registry snapshots to object storage and restores
// them. The reader is optional; without it Latest, Restore and Prune fail.
type SnapshotService struct {
	store   domain.RegistryStore
	writer  domain.BlobWriter
	reader  domain.BlobReader
	variant domain.Variant
	now     func() time.Time
	logger  *slog.Logger
}

// NewSnapshotService creates a SnapshotService.
func NewSnapshotService(
	store domain.RegistryStore,
	writer domain.BlobWriter,
	reader domain.BlobReader,
	variant domain.Variant,
	logger *slog.Logger,
) *SnapshotService {
	return &SnapshotService{
		store:   store,
		writer:  writer,
		reader:  reader,
		variant: variant,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "snapshot")),
	}
}

// Take reads the whole registry.
func (s *SnapshotService) Take(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Version: snapshotVersion,
		TakenAt: s.now().UTC(),
		Variant: s.variant,
	}

	owner, err := s.store.Owner.Owner(ctx)
	switch {
	case err == nil:
		snap.Owner = &owner
	case !errors.Is(err, domain.ErrNotFound):
		return Snapshot{}, fmt.Errorf("snapshot: read owner: %w", err)
	}

	if snap.Auctioneers, err = s.store.Auctioneers.ListAuctioneers(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: list auctioneers: %w", err)
	}
	if snap.Pairs, err = s.store.Pairs.ListPairs(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: list pairs: %w", err)
	}
	if snap.Markets, err = s.store.Markets.ListMarkets(ctx, domain.ListOpts{}); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: list markets: %w", err)
	}
	return snap, nil
}

// Write takes a snapshot and uploads it to snapshots/<date>/<uuid>.json,
// returning the path.
func (s *SnapshotService) Write(ctx context.Context) (string, error) {
	snap, err := s.Take(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal: %w", err)
	}

	path := snapshotPath(snap.TakenAt, uuid.New())
	if err := s.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("snapshot: upload: %w", err)
	}

	if s.store.Audit != nil {
		if err := s.store.Audit.Log(ctx, "snapshot.written", map[string]any{
			"path":    path,
			"pairs":   len(snap.Pairs),
			"markets": len(snap.Markets),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit snapshot failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "snapshot written",
		slog.String("path", path),
		slog.Int("pairs", len(snap.Pairs)),
		slog.Int("markets", len(snap.Markets)),
		slog.Int("auctioneers", len(snap.Auctioneers)),
	)
	return path, nil
}

// Latest downloads the most recently written snapshot. It returns
// domain.ErrNotFound when none exist.
func (s *SnapshotService) Latest(ctx context.Context) (Snapshot, string, error) {
	infos, err := s.list(ctx)
	if err != nil {
		return Snapshot{}, "", err
	}
	if len(infos) == 0 {
		return Snapshot{}, "", fmt.Errorf("snapshot: none stored: %w", domain.ErrNotFound)
	}
	path := infos[0].Path

	body, err := s.reader.Get(ctx, path)
	if err != nil {
		return Snapshot{}, "", fmt.Errorf("snapshot: get %s: %w", path, err)
	}
	defer body.Close()

	var snap Snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return Snapshot{}, "", fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	if snap.Version != snapshotVersion {
		return Snapshot{}, "", fmt.Errorf("snapshot: %s has version %d: %w", path, snap.Version, domain.ErrInvalidParams)
	}
	return snap, path, nil
}

// Restore loads a snapshot into the stores. Markets already present are
// kept; everything else is overwritten. Pair configs recorded under another
// engine variant are restored but stay inert until that variant runs.
func (s *SnapshotService) Restore(ctx context.Context, snap Snapshot) error {
	if snap.Owner != nil {
		if err := s.store.Owner.SetOwner(ctx, *snap.Owner); err != nil {
			return fmt.Errorf("snapshot: restore owner: %w", err)
		}
	}
	for _, a := range snap.Auctioneers {
		if err := s.store.Auctioneers.SetAuctioneer(ctx, a.Address, a.Enabled); err != nil {
			return fmt.Errorf("snapshot: restore auctioneer %s: %w", a.Address.Hex(), err)
		}
	}
	for _, p := range snap.Pairs {
		if err := s.store.Pairs.PutPair(ctx, p); err != nil {
			return fmt.Errorf("snapshot: restore pair %s: %w", p.Pair, err)
		}
	}

	skipped := 0
	for _, m := range snap.Markets {
		err := s.store.Markets.CreateMarket(ctx, m)
		if errors.Is(err, domain.ErrAlreadyExists) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("snapshot: restore market %d: %w", m.MarketID, err)
		}
	}

	if snap.Variant != s.variant {
		s.logger.WarnContext(ctx, "snapshot taken under another variant",
			slog.String("snapshot_variant", string(snap.Variant)),
			slog.String("variant", string(s.variant)),
		)
	}
	s.logger.InfoContext(ctx, "snapshot restored",
		slog.Time("taken_at", snap.TakenAt),
		slog.Int("pairs", len(snap.Pairs)),
		slog.Int("markets", len(snap.Markets)-skipped),
		slog.Int("markets_skipped", skipped),
	)
	return nil
}

// RestoreLatest restores the newest snapshot, if any. A missing snapshot is
// not an error.
func (s *SnapshotService) RestoreLatest(ctx context.Context) error {
	snap, path, err := s.Latest(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.InfoContext(ctx, "no snapshot to restore")
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "restoring snapshot", slog.String("path", path))
	return s.Restore(ctx, snap)
}

// Prune deletes all but the newest keep snapshots and returns how many were
// removed.
func (s *SnapshotService) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("snapshot: keep %d: %w", keep, domain.ErrInvalidParams)
	}
	infos, err := s.list(ctx)
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	removed := 0
	for _, info := range infos[keep:] {
		if err := s.reader.Delete(ctx, info.Path); err != nil {
			return removed, fmt.Errorf("snapshot: delete %s: %w", info.Path, err)
		}
		removed++
	}
	s.logger.InfoContext(ctx, "snapshots pruned", slog.Int("removed", removed), slog.Int("kept", keep))
	return removed, nil
}

// list returns stored snapshots newest first.
func (s *SnapshotService) list(ctx context.Context) ([]domain.BlobInfo, error) {
	if s.reader == nil {
		return nil, errors.New("snapshot: no blob reader configured")
	}
	infos, err := s.reader.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}

	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Path, ".json") {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

func snapshotPath(at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s.json", snapshotPrefix, at.Format("2006-01-02"), id)
}

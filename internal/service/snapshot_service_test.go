package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/store/memory"
)

// memBlob is an in-memory BlobWriter and BlobReader.
type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	mtime   map[string]time.Time
	clock   time.Time
}

func newMemBlob() *memBlob {
	return &memBlob{
		objects: make(map[string][]byte),
		mtime:   make(map[string]time.Time),
		clock:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (b *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = b.clock.Add(time.Minute)
	b.objects[path] = raw
	b.mtime[path] = b.clock
	return nil
}

func (b *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *memBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.BlobInfo
	for p, raw := range b.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(raw)), LastModified: b.mtime[p]})
		}
	}
	return out, nil
}

func (b *memBlob) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	return nil
}

var (
	owner      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	auctioneer = common.HexToAddress("0x2000000000000000000000000000000000000002")
	quote      = common.HexToAddress("0x000000000000000000000000000000000000000b")
	payout     = common.HexToAddress("0x000000000000000000000000000000000000000a")
)

func seededStore(t *testing.T) domain.RegistryStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewRegistryStore()
	require.NoError(t, store.Owner.SetOwner(ctx, owner))
	require.NoError(t, store.Auctioneers.SetAuctioneer(ctx, auctioneer, true))
	require.NoError(t, store.Pairs.PutPair(ctx, domain.PairRecord{
		Pair:      domain.NewPairKey(quote, payout),
		Variant:   domain.VariantTWAP,
		Supported: true,
		Config:    []byte{0xde, 0xad},
	}))
	require.NoError(t, store.Markets.CreateMarket(ctx, domain.MarketRegistration{
		MarketID:   1,
		Pair:       domain.NewPairKey(quote, payout),
		Auctioneer: auctioneer,
	}))
	return store
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSnapshotService_WriteAndRestore(t *testing.T) {
	ctx := context.Background()
	blob := newMemBlob()
	src := NewSnapshotService(seededStore(t), blob, blob, domain.VariantTWAP, discardLogger())

	path, err := src.Write(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "snapshots/"))
	assert.True(t, strings.HasSuffix(path, ".json"))

	target := memory.NewRegistryStore()
	dst := NewSnapshotService(target, blob, blob, domain.VariantTWAP, discardLogger())
	require.NoError(t, dst.RestoreLatest(ctx))

	got, err := target.Owner.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	ok, err := target.Auctioneers.IsAuctioneer(ctx, auctioneer)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := target.Pairs.GetPair(ctx, domain.NewPairKey(quote, payout))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, rec.Config)

	m, err := target.Markets.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, auctioneer, m.Auctioneer)

	// Restoring twice keeps existing markets.
	require.NoError(t, dst.RestoreLatest(ctx))
}

func TestSnapshotService_RestoreLatestWithoutSnapshots(t *testing.T) {
	blob := newMemBlob()
	svc := NewSnapshotService(memory.NewRegistryStore(), blob, blob, domain.VariantFeed, discardLogger())

	assert.NoError(t, svc.RestoreLatest(context.Background()))

	_, _, err := svc.Latest(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotService_Prune(t *testing.T) {
	ctx := context.Background()
	blob := newMemBlob()
	svc := NewSnapshotService(seededStore(t), blob, blob, domain.VariantTWAP, discardLogger())

	var paths []string
	for i := 0; i < 4; i++ {
		p, err := svc.Write(ctx)
		require.NoError(t, err)
		paths = append(paths, p)
	}

	removed, err := svc.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, paths[3], latest)

	left, err := blob.List(ctx, snapshotPrefix)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	_, err = svc.Prune(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestSnapshotService_WithoutReader(t *testing.T) {
	svc := NewSnapshotService(memory.NewRegistryStore(), newMemBlob(), nil, domain.VariantFeed, discardLogger())

	_, err := svc.Write(context.Background())
	require.NoError(t, err)

	_, _, err = svc.Latest(context.Background())
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Put(context.Context, string, io.Reader, string) error {
	return errors.New("bucket gone")
}

func TestSnapshotService_UploadFailure(t *testing.T) {
	svc := NewSnapshotService(seededStore(t), failingWriter{}, nil, domain.VariantFeed, discardLogger())

	_, err := svc.Write(context.Background())
	assert.ErrorContains(t, err, "bucket gone")
}

func TestSnapshotPath(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	id := [16]byte{1}
	assert.Equal(t, "snapshots/2026-10-18/01000000-0000-0000-0000-000000000000.json", snapshotPath(at, id))
}

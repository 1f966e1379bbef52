package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/model"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(path string) *model.FileRecord {
	return &model.FileRecord{
		Path:         path,
		Size:         123,
		ModifiedTime: 1700000000,
		Digest:       "aa11",
		Version:      1,
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")
	ctx := context.Background()

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.UpsertFile(ctx, sampleRecord("a.txt")))
	require.NoError(t, s1.Close())

	// Re-opening applies no destructive schema changes.
	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	rec, err := s2.GetFile(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(123), rec.Size)
}

func TestUpsertFile_InsertAndReplace(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	rec := sampleRecord("docs/readme.md")
	require.NoError(t, s.UpsertFile(ctx, rec))

	got, err := s.GetFile(ctx, rec.Path)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	rec2 := *rec
	rec2.Size = 456
	rec2.Digest = "bb22"
	rec2.Version = 2
	require.NoError(t, s.UpsertFile(ctx, &rec2))

	got, err = s.GetFile(ctx, rec.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(456), got.Size)
	assert.Equal(t, "bb22", got.Digest)
	assert.Equal(t, int32(2), got.Version)
}

func TestGetFile_NotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.GetFile(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListLive_ExcludesTombstones(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFile(ctx, sampleRecord("live.txt")))
	require.NoError(t, s.UpsertFile(ctx, sampleRecord("gone.txt")))
	require.NoError(t, s.Tombstone(ctx, "gone.txt"))

	live, err := s.ListLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "live.txt", live[0].Path)

	// The tombstoned row is still readable directly.
	rec, err := s.GetFile(ctx, "gone.txt")
	require.NoError(t, err)
	assert.True(t, rec.Deleted)
}

func TestTombstone_BumpsVersion(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	rec := sampleRecord("v.txt")
	rec.Version = 3
	require.NoError(t, s.UpsertFile(ctx, rec))
	require.NoError(t, s.Tombstone(ctx, "v.txt"))

	got, err := s.GetFile(ctx, "v.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(4), got.Version)
}

func TestTombstone_NotFound(t *testing.T) {
	s := setupStore(t)
	assert.ErrorIs(t, s.Tombstone(context.Background(), "nope"), common.ErrNotFound)
}

func TestModifiedSince(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	old := sampleRecord("old.txt")
	old.ModifiedTime = 100
	recent := sampleRecord("recent.txt")
	recent.ModifiedTime = 200
	require.NoError(t, s.UpsertFile(ctx, old))
	require.NoError(t, s.UpsertFile(ctx, recent))

	got, err := s.ModifiedSince(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent.txt", got[0].Path)

	all, err := s.ModifiedSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBindings_OrderedByIndex(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	// Inserted out of order on purpose.
	require.NoError(t, s.InsertBinding(ctx, "f", 2, "h2", 200, 100))
	require.NoError(t, s.InsertBinding(ctx, "f", 0, "h0", 0, 100))
	require.NoError(t, s.InsertBinding(ctx, "f", 1, "h1", 100, 100))

	bindings, err := s.BindingsFor(ctx, "f")
	require.NoError(t, err)
	require.Len(t, bindings, 3)
	for i, b := range bindings {
		assert.Equal(t, int32(i), b.Index)
		assert.Equal(t, "f", b.Path)
	}
	assert.Equal(t, "h1", bindings[1].Digest)
}

func TestInsertBinding_UpsertSameIndex(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBinding(ctx, "f", 0, "old", 0, 10))
	require.NoError(t, s.InsertBinding(ctx, "f", 0, "new", 0, 20))

	bindings, err := s.BindingsFor(ctx, "f")
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "new", bindings[0].Digest)
	assert.Equal(t, int32(20), bindings[0].Size)
}

func TestDeleteBindingsFrom_TrimsTail(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for i := int32(0); i < 5; i++ {
		require.NoError(t, s.InsertBinding(ctx, "f", i, "h", int64(i)*10, 10))
	}
	require.NoError(t, s.DeleteBindingsFrom(ctx, "f", 3))

	bindings, err := s.BindingsFor(ctx, "f")
	require.NoError(t, err)
	assert.Len(t, bindings, 3)
}

func TestChunkExists(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBinding(ctx, "f", 0, "present", 0, 10))

	ok, err := s.ChunkExists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ChunkExists(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncState_DefaultAndRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	got, err := s.GetLastSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, got)

	require.NoError(t, s.SetLastSync(ctx, 1700001234))
	got, err = s.GetLastSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700001234), got)

	require.NoError(t, s.SetLastSync(ctx, 1700005678))
	got, err = s.GetLastSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700005678), got)
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(q *Queries) error {
		return q.UpsertFile(ctx, sampleRecord("committed.txt"))
	})
	require.NoError(t, err)

	_, err = s.GetFile(ctx, "committed.txt")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(q *Queries) error {
		if err := q.UpsertFile(ctx, sampleRecord("discarded.txt")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetFile(ctx, "discarded.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

package annlsh

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStore_IdsIn_MissingBucketReturnsNoEntries(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ids, err := store.IdsIn(context.Background(), []HashCode{7}, []MagnitudeKey{"1d0"})

	require.NoError(t, err)
	assert.Empty(t, ids)
}

// S4: a crash mid-append can leave global_idx.txt (or a bucket's idx.txt)
// with a partial last line; readers must tolerate and skip it rather than
// surface a synthetic, truncated id.
func TestFilesystemStore_IdsIn_ToleratesPartialLastLine(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "a", HashCode(3), MagnitudeKey("1d0")))
	require.NoError(t, store.Put(ctx, "b", HashCode(3), MagnitudeKey("1d0")))

	bucketFile := filepath.Join(store.bucketDir(HashCode(3), MagnitudeKey("1d0")), "idx.txt")
	data, err := os.ReadFile(bucketFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bucketFile, append(data, []byte("truncated-i")...), 0o644))

	ids, err := store.IdsIn(ctx, []HashCode{3}, []MagnitudeKey{"1d0"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []VectorId{"a", "b"}, ids)
	assert.NotContains(t, ids, VectorId("truncated-i"))
}

func TestFilesystemStore_IdsIn_ToleratesFileWithOnlyAPartialLine(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	bucketFile := filepath.Join(store.bucketDir(HashCode(9), MagnitudeKey("0d0")), "idx.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(bucketFile), 0o755))
	require.NoError(t, os.WriteFile(bucketFile, []byte("no-newline-yet"), 0o644))

	ids, err := store.IdsIn(ctx, []HashCode{9}, []MagnitudeKey{"0d0"})

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFilesystemStore_Put_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "a", HashCode(1), MagnitudeKey("1d0")))
	require.NoError(t, store.Put(ctx, "a", HashCode(1), MagnitudeKey("1d0")))

	ids, err := store.IdsIn(ctx, []HashCode{1}, []MagnitudeKey{"1d0"})
	require.NoError(t, err)

	count := 0
	for _, id := range ids {
		if id == "a" {
			count++
		}
	}
	assert.Equal(t, 1, count, "a set-semantics read must collapse duplicate appends")
}

func TestFilesystemStore_ReadParams_RejectsTruncatedHashTableFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFilesystemStore(dir)
	require.NoError(t, err)
	defer store.Close()

	params := ProjectorParams{NumTables: 2, HashSize: 2, Dimension: 3}
	matrices := [][]float64{
		{1, 2, 3, 4, 5, 6},
		{1, 2, 3, 4, 5, 6},
	}
	require.NoError(t, store.WriteParams(ctx, params, matrices))

	htPath := filepath.Join(store.hashTablesDir(), "ht0.bin")
	require.NoError(t, os.WriteFile(htPath, []byte("short"), 0o644))

	_, _, _, err = store.ReadParams(ctx)

	require.Error(t, err)
}

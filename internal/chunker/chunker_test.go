package chunker

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/chunksync/internal/hashing"
	"github.com/dmitrijs2005/chunksync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBuf(t *testing.T, seed int64, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	r := rand.New(rand.NewSource(seed))
	_, err := r.Read(buf)
	require.NoError(t, err)
	return buf
}

func digestSet(chunks []model.ChunkInfo) map[string]struct{} {
	set := make(map[string]struct{}, len(chunks))
	for _, ch := range chunks {
		set[ch.Digest] = struct{}{}
	}
	return set
}

func TestChunkData_EmptyInput(t *testing.T) {
	c := New()
	chunks := c.ChunkData(nil)

	assert.Empty(t, chunks)
	assert.Equal(t, Stats{}, c.LastStats())
}

func TestChunkData_Deterministic(t *testing.T) {
	buf := randomBuf(t, 1, 2<<20)

	a := New().ChunkData(buf)
	b := New().ChunkData(buf)
	require.Equal(t, a, b)
}

func TestChunkData_PartitionReproducesInput(t *testing.T) {
	buf := randomBuf(t, 2, 3<<20)
	chunks := New().ChunkData(buf)

	var rebuilt []byte
	var total int64
	var expectOffset int64
	for _, ch := range chunks {
		require.Equal(t, expectOffset, ch.Offset, "chunks must be contiguous")
		rebuilt = append(rebuilt, buf[ch.Offset:ch.Offset+int64(ch.Size)]...)
		total += int64(ch.Size)
		expectOffset += int64(ch.Size)
	}
	assert.Equal(t, int64(len(buf)), total)
	assert.True(t, bytes.Equal(buf, rebuilt))
}

func TestChunkData_SizeBounds(t *testing.T) {
	buf := randomBuf(t, 3, 5<<20)
	chunks := New().ChunkData(buf)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.Size, int32(MaxChunkSize))
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, ch.Size, int32(MinChunkSize), "non-terminal chunk %d", i)
		}
	}
}

func TestChunkData_ChunkDigestsMatchContent(t *testing.T) {
	buf := randomBuf(t, 4, 1<<20)
	chunks := New().ChunkData(buf)

	for _, ch := range chunks {
		assert.Equal(t, hashing.SumBytes(buf[ch.Offset:ch.Offset+int64(ch.Size)]), ch.Digest)
	}
}

func TestChunkData_AllZeros256KiB(t *testing.T) {
	buf := make([]byte, 262144)
	c := New()
	chunks := c.ChunkData(buf)

	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks), 64)
	for i, ch := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, ch.Size, int32(MinChunkSize))
		}
		assert.LessOrEqual(t, ch.Size, int32(MaxChunkSize))
	}

	var total int64
	for _, ch := range chunks {
		total += int64(ch.Size)
	}
	assert.Equal(t, int64(len(buf)), total)
}

func TestChunkData_SingleByteFlipLocality(t *testing.T) {
	const size = 10 << 20
	const flipAt = 5242880

	b1 := randomBuf(t, 5, size)
	b2 := make([]byte, size)
	copy(b2, b1)
	b2[flipAt] ^= 0xff

	set1 := digestSet(New().ChunkData(b1))
	chunks2 := New().ChunkData(b2)

	var fresh int
	seen := make(map[string]struct{})
	for _, ch := range chunks2 {
		if _, dup := seen[ch.Digest]; dup {
			continue
		}
		seen[ch.Digest] = struct{}{}
		if _, ok := set1[ch.Digest]; !ok {
			fresh++
		}
	}
	assert.LessOrEqual(t, fresh, 3, "a one-byte flip must invalidate at most a few chunks")
}

func TestChunkData_Stats(t *testing.T) {
	buf := randomBuf(t, 6, 1<<20)
	c := New()
	chunks := c.ChunkData(buf)
	stats := c.LastStats()

	require.Equal(t, len(chunks), stats.TotalChunks)

	var total, min, max int
	for i, ch := range chunks {
		s := int(ch.Size)
		total += s
		if i == 0 || s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	assert.Equal(t, min, stats.MinSize)
	assert.Equal(t, max, stats.MaxSize)
	assert.InDelta(t, float64(total)/float64(len(chunks)), stats.AvgSize, 0.001)
}

func TestChunkFile_MatchesChunkData(t *testing.T) {
	buf := randomBuf(t, 7, 300<<10)
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	fromFile, err := New().ChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, New().ChunkData(buf), fromFile)
}

func TestChunkFile_MissingFile(t *testing.T) {
	_, err := New().ChunkFile(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

// Package delta computes the minimal chunk set a client must transfer:
// chunk the local file, then partition by membership in the set of digests
// the remote side already holds.
package delta

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/chunksync/internal/chunker"
	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/hashing"
	"github.com/dmitrijs2005/chunksync/internal/model"
)

// Engine partitions local files into new and already-known chunks. Like the
// chunker it wraps, an Engine is not safe for concurrent use.
type Engine struct {
	chunker *chunker.Chunker
}

func NewEngine() *Engine {
	return &Engine{chunker: chunker.New()}
}

// ComputeDelta chunks the file at path and splits the result by membership
// in known, the set of digests the remote party already possesses. Lookups
// are O(1) expected.
func (e *Engine) ComputeDelta(path string, known map[string]struct{}) (*model.Delta, error) {
	chunks, err := e.chunker.ChunkFile(path)
	if err != nil {
		return nil, fmt.Errorf("chunk local file: %w", err)
	}

	delta := &model.Delta{}
	for _, ch := range chunks {
		if _, ok := known[ch.Digest]; ok {
			delta.ExistingChunks = append(delta.ExistingChunks, ch)
			continue
		}
		delta.NewChunks = append(delta.NewChunks, ch)
		delta.BytesToTransfer += int64(ch.Size)
	}
	return delta, nil
}

// DigestSet builds the lookup set ComputeDelta expects.
func DigestSet(digests []string) map[string]struct{} {
	set := make(map[string]struct{}, len(digests))
	for _, d := range digests {
		set[d] = struct{}{}
	}
	return set
}

// ApplyDelta writes the chunk payloads to path sequentially. data must be
// the concatenation of the payloads in the same order as chunks; a length
// mismatch fails before anything is interpreted.
func ApplyDelta(path string, chunks []model.ChunkInfo, data []byte) error {
	var declared int64
	for _, ch := range chunks {
		declared += int64(ch.Size)
	}
	if declared != int64(len(data)) {
		return fmt.Errorf("declared %d bytes, got %d: %w", declared, len(data), common.ErrInvalidArgument)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w: %v", path, common.ErrIO, err)
	}
	defer f.Close()

	offset := int64(0)
	for _, ch := range chunks {
		if _, err := f.Write(data[offset : offset+int64(ch.Size)]); err != nil {
			return fmt.Errorf("write %s: %w: %v", path, common.ErrIO, err)
		}
		offset += int64(ch.Size)
	}
	return nil
}

// AreIdentical reports whether both files hash to the same non-empty digest.
func AreIdentical(path1, path2 string) bool {
	h1 := hashing.SumFile(path1)
	h2 := hashing.SumFile(path2)
	return h1 != "" && h1 == h2
}

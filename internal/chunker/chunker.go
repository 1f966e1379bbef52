// Package chunker splits byte streams into variable-size chunks with
// content-defined boundaries (FastCDC style). Identical input always yields
// identical (offset, size, digest) sequences, and a localized edit
// invalidates only the chunks around the edited window.
package chunker

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/chunksync/internal/hashing"
	"github.com/dmitrijs2005/chunksync/internal/model"
)

// Chunking constants. Together with the rolling-hash parameters these form
// the wire contract: any two implementations with the same constants must
// produce identical boundaries for identical input.
const (
	MinChunkSize = 4 * 1024
	AvgChunkSize = 64 * 1024
	MaxChunkSize = 1024 * 1024

	MaskBits = 16
	Mask     = (1 << MaskBits) - 1

	WindowSize = 48

	// normalSize splits the region between MIN and AVG. Below it the
	// boundary test uses the halved mask (Mask>>1), which requires only the
	// low 15 bits to be zero instead of 16 and therefore cuts more often.
	normalSize = MinChunkSize + (AvgChunkSize-MinChunkSize)/2
)

// Stats summarizes the chunker's most recent run.
type Stats struct {
	TotalChunks int
	MinSize     int
	MaxSize     int
	AvgSize     float64
}

// Chunker performs content-defined chunking. It is not safe for concurrent
// use; each goroutine should own its own instance.
type Chunker struct {
	lastStats Stats
}

func New() *Chunker {
	return &Chunker{}
}

// ChunkData splits data into chunks. Empty input yields an empty slice and
// zeroed stats.
func (c *Chunker) ChunkData(data []byte) []model.ChunkInfo {
	if len(data) == 0 {
		c.lastStats = Stats{}
		return nil
	}

	var chunks []model.ChunkInfo
	var minSize, maxSize, totalSize int

	rh := hashing.NewRollingHash(WindowSize)
	chunkStart := 0

	for i := 0; i < len(data); i++ {
		size := i + 1 - chunkStart
		if size <= WindowSize {
			rh.Append(data[i])
		} else {
			rh.Update(data[i], data[i-WindowSize])
		}

		boundary := false
		switch {
		case size >= MinChunkSize && size < normalSize:
			boundary = rh.Sum64()&(Mask>>1) == 0
		case size >= normalSize:
			boundary = rh.Sum64()&Mask == 0
		}

		if boundary || size >= MaxChunkSize || i == len(data)-1 {
			chunk := model.ChunkInfo{
				Offset: int64(chunkStart),
				Size:   int32(size),
				Digest: hashing.SumBytes(data[chunkStart : i+1]),
			}
			chunks = append(chunks, chunk)

			if minSize == 0 || size < minSize {
				minSize = size
			}
			if size > maxSize {
				maxSize = size
			}
			totalSize += size

			chunkStart = i + 1
			rh.Reset()
		}
	}

	c.lastStats = Stats{
		TotalChunks: len(chunks),
		MinSize:     minSize,
		MaxSize:     maxSize,
		AvgSize:     float64(totalSize) / float64(len(chunks)),
	}
	return chunks
}

// ChunkFile splits the contents of the file at path.
func (c *Chunker) ChunkFile(path string) ([]model.ChunkInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c.ChunkData(data), nil
}

// LastStats returns statistics from the most recent ChunkData/ChunkFile run.
func (c *Chunker) LastStats() Stats {
	return c.lastStats
}

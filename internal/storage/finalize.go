package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/filex"
	"github.com/dmitrijs2005/chunksync/internal/hashing"
	"github.com/dmitrijs2005/chunksync/internal/metadata"
	"github.com/dmitrijs2005/chunksync/internal/model"
)

// FinalizeFile assembles the uploaded chunks of path into a staging file,
// hashes it and commits a new FileRecord. All-or-nothing: a failed
// reconstruction leaves no record behind, and the metadata transaction
// rolls back.
//
// Concurrent finalizes of the same (client, path) are serialized by the
// metadata store's write transactions; the later one wins the next version.
func (m *Manager) FinalizeFile(ctx context.Context, clientID, path string, totalChunks int32) (*model.FileRecord, error) {
	started := time.Now()

	rel, ok := filex.NormalizeRelPath(path)
	if !ok {
		return nil, fmt.Errorf("path %q: %w", path, common.ErrInvalidArgument)
	}
	if totalChunks <= 0 {
		return nil, fmt.Errorf("total chunks %d: %w", totalChunks, common.ErrInvalidArgument)
	}

	store, err := m.clientStore(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var rec *model.FileRecord
	err = store.WithTx(ctx, func(q *metadata.Queries) error {
		bindings, err := q.BindingsFor(ctx, rel)
		if err != nil {
			return err
		}
		if int32(len(bindings)) < totalChunks {
			return fmt.Errorf("have %d of %d chunks for %s: %w",
				len(bindings), totalChunks, rel, common.ErrIncomplete)
		}

		// Bindings arrive ordered by index. The first totalChunks entries
		// must be the contiguous prefix 0..totalChunks-1; anything beyond
		// is a stale tail from a previous, larger upload.
		for i := int32(0); i < totalChunks; i++ {
			if bindings[i].Index != i {
				return fmt.Errorf("missing chunk %d for %s: %w", i, rel, common.ErrIncomplete)
			}
		}
		if int32(len(bindings)) > totalChunks {
			if err := q.DeleteBindingsFrom(ctx, rel, totalChunks); err != nil {
				return err
			}
			bindings = bindings[:totalChunks]
		}

		size, digest, err := m.reconstruct(ctx, clientID, rel, bindings)
		if err != nil {
			return err
		}

		// Fix up offsets now that the chunk order is final.
		var offset int64
		for _, b := range bindings {
			if b.Offset != offset {
				if err := q.InsertBinding(ctx, rel, b.Index, b.Digest, offset, b.Size); err != nil {
					return err
				}
			}
			offset += int64(b.Size)
		}

		version := int32(1)
		if prior, err := q.GetFile(ctx, rel); err == nil {
			version = prior.Version + 1
		} else if !isNotFound(err) {
			return err
		}

		rec = &model.FileRecord{
			Path:         rel,
			Size:         size,
			ModifiedTime: m.now(),
			Digest:       digest,
			Version:      version,
			IsDirectory:  false,
			Deleted:      false,
		}
		return q.UpsertFile(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	m.metrics.FilesFinalized.Inc()
	m.metrics.FinalizeSeconds.Observe(time.Since(started).Seconds())
	m.log.Info(ctx, "file finalized", "client", clientID, "path", rel,
		"version", rec.Version, "size", rec.Size, "chunks", totalChunks)

	m.publish(clientID, model.FileChange{Path: rel, Type: changeTypeFor(rec.Version), Digest: rec.Digest})
	return rec, nil
}

func changeTypeFor(version int32) model.ChangeType {
	if version == 1 {
		return model.ChangeCreated
	}
	return model.ChangeModified
}

// reconstruct streams the bound chunks in index order into the client's
// staging path and returns the observed size and whole-file digest. The
// staging file appears atomically via a temp file and rename.
func (m *Manager) reconstruct(ctx context.Context, clientID, rel string, bindings []model.ChunkBinding) (int64, string, error) {
	target := filepath.Join(m.root, "clients", clientID, "files", filepath.FromSlash(rel))
	if _, err := filex.EnsureDir(filepath.Dir(target)); err != nil {
		return 0, "", fmt.Errorf("staging dir: %w", err)
	}

	tmp := target + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return 0, "", fmt.Errorf("create staging file: %w: %v", common.ErrIO, err)
	}
	defer func() {
		f.Close()
		_ = os.Remove(tmp)
	}()

	var size int64
	for _, b := range bindings {
		data, err := m.blobs.Get(ctx, b.Digest)
		if err != nil {
			return 0, "", fmt.Errorf("chunk %d of %s: %w", b.Index, rel, err)
		}
		n, err := f.Write(data)
		if err != nil {
			return 0, "", fmt.Errorf("write staging file: %w: %v", common.ErrIO, err)
		}
		size += int64(n)
	}
	if err := f.Close(); err != nil {
		return 0, "", fmt.Errorf("close staging file: %w: %v", common.ErrIO, err)
	}

	digest := hashing.SumFile(tmp)
	if digest == "" {
		return 0, "", fmt.Errorf("hash staging file %s: %w", tmp, common.ErrIO)
	}
	if err := os.Rename(tmp, target); err != nil {
		return 0, "", fmt.Errorf("rename staging file: %w: %v", common.ErrIO, err)
	}
	return size, digest, nil
}

func (m *Manager) publish(clientID string, change model.FileChange) {
	if m.publisher != nil {
		m.publisher.Publish(clientID, change)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

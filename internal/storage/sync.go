package storage

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/chunksync/internal/blobstore"
	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/filex"
	"github.com/dmitrijs2005/chunksync/internal/model"
)

// ListFiles returns the client's live (non-tombstoned) files.
func (m *Manager) ListFiles(ctx context.Context, clientID string) ([]*model.FileRecord, error) {
	store, err := m.clientStore(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return store.ListLive(ctx)
}

// GetMetadata returns the record for one path, tombstoned or not.
func (m *Manager) GetMetadata(ctx context.Context, clientID, path string) (*model.FileRecord, error) {
	rel, ok := filex.NormalizeRelPath(path)
	if !ok {
		return nil, fmt.Errorf("path %q: %w", path, common.ErrInvalidArgument)
	}
	store, err := m.clientStore(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return store.GetFile(ctx, rel)
}

// DeleteFile tombstones the record. Blobs are not removed; garbage
// collection across clients is out of scope.
func (m *Manager) DeleteFile(ctx context.Context, clientID, path string) error {
	rel, ok := filex.NormalizeRelPath(path)
	if !ok {
		return fmt.Errorf("path %q: %w", path, common.ErrInvalidArgument)
	}
	store, err := m.clientStore(ctx, clientID)
	if err != nil {
		return err
	}
	if err := store.Tombstone(ctx, rel); err != nil {
		return err
	}

	m.log.Info(ctx, "file tombstoned", "client", clientID, "path", rel)
	m.publish(clientID, model.FileChange{Path: rel, Type: model.ChangeDeleted})
	return nil
}

// GetManifest returns the ordered chunk list for a finalized path, with
// offsets accumulated in index order. Clients downloading a file walk this
// list and skip digests they already hold.
func (m *Manager) GetManifest(ctx context.Context, clientID, path string) ([]model.ChunkInfo, error) {
	rel, ok := filex.NormalizeRelPath(path)
	if !ok {
		return nil, fmt.Errorf("path %q: %w", path, common.ErrInvalidArgument)
	}
	store, err := m.clientStore(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if _, err := store.GetFile(ctx, rel); err != nil {
		return nil, err
	}
	bindings, err := store.BindingsFor(ctx, rel)
	if err != nil {
		return nil, err
	}

	manifest := make([]model.ChunkInfo, 0, len(bindings))
	var offset int64
	for _, b := range bindings {
		manifest = append(manifest, model.ChunkInfo{Offset: offset, Size: b.Size, Digest: b.Digest})
		offset += int64(b.Size)
	}
	return manifest, nil
}

// ComputeChanges serves a sync probe: the server's view of clientID's files
// diffed against the client-supplied local list.
//
// For each server file: a matching path with a differing digest is reported
// MODIFIED; a path the client lacks is reported CREATED when its mtime is
// newer than lastSync. The inverse direction (client has it, server does
// not) is the client's upload path and is not reported here. At most one
// change per path.
func (m *Manager) ComputeChanges(ctx context.Context, clientID string, localFiles []model.FileSummary, lastSync int64) ([]model.FileChange, error) {
	store, err := m.clientStore(ctx, clientID)
	if err != nil {
		return nil, err
	}
	m.metrics.SyncRequests.Inc()

	serverFiles, err := store.ListLive(ctx)
	if err != nil {
		return nil, err
	}

	local := make(map[string]model.FileSummary, len(localFiles))
	for _, f := range localFiles {
		if rel, ok := filex.NormalizeRelPath(f.Path); ok {
			f.Path = rel
			local[rel] = f
		}
	}

	var changes []model.FileChange
	for _, server := range serverFiles {
		if client, ok := local[server.Path]; ok {
			if client.Digest != server.Digest {
				changes = append(changes, model.FileChange{
					Path: server.Path, Type: model.ChangeModified, Digest: server.Digest,
				})
			}
			continue
		}
		if server.ModifiedTime > lastSync {
			changes = append(changes, model.FileChange{
				Path: server.Path, Type: model.ChangeCreated, Digest: server.Digest,
			})
		}
	}

	if err := store.SetLastSync(ctx, m.now()); err != nil {
		return nil, err
	}

	m.log.Debug(ctx, "sync probe served", "client", clientID,
		"server_files", len(serverFiles), "local_files", len(localFiles), "changes", len(changes))
	return changes, nil
}

// Stats reports the shared blob population.
func (m *Manager) Stats(ctx context.Context) (blobstore.Stats, error) {
	stats, err := m.blobs.Stats(ctx)
	if err != nil {
		return stats, err
	}
	m.log.Debug(ctx, "storage stats", "chunks", stats.TotalChunks,
		"bytes", humanize.IBytes(uint64(stats.TotalBytes)))
	return stats, nil
}

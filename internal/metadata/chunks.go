package metadata

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chunksync/internal/model"
)

// InsertBinding upserts the chunk binding keyed by (path, index). Reissuing
// the same tuple yields the same state.
func (q *Queries) InsertBinding(ctx context.Context, path string, index int32, digest string, offset int64, size int32) error {
	query := ` INSERT INTO chunks (file_path, chunk_index, hash, chunk_offset, size)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(file_path, chunk_index) DO UPDATE SET
				hash = excluded.hash,
				chunk_offset = excluded.chunk_offset,
				size = excluded.size
	`
	_, err := q.db.ExecContext(ctx, query, path, index, digest, offset, size)
	if err != nil {
		return fmt.Errorf("failed to upsert binding %s[%d]: %w", path, index, err)
	}
	return nil
}

// BindingsFor returns the chunk bindings for path ordered by chunk index
// ascending. The ordering is load-bearing for file reconstruction.
func (q *Queries) BindingsFor(ctx context.Context, path string) ([]model.ChunkBinding, error) {
	query := `SELECT file_path, chunk_index, hash, chunk_offset, size
			FROM chunks WHERE file_path = ? ORDER BY chunk_index ASC`
	rows, err := q.db.QueryContext(ctx, query, path)
	if err != nil {
		return nil, fmt.Errorf("failed to select bindings: %w", err)
	}
	defer rows.Close()

	var result []model.ChunkBinding
	for rows.Next() {
		var b model.ChunkBinding
		if err := rows.Scan(&b.Path, &b.Index, &b.Digest, &b.Offset, &b.Size); err != nil {
			return nil, fmt.Errorf("failed to scan binding row: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate binding rows: %w", err)
	}
	return result, nil
}

// DeleteBindingsFrom removes bindings of path with chunk_index >= from.
// Used to trim stale tail bindings when a re-uploaded file shrank.
func (q *Queries) DeleteBindingsFrom(ctx context.Context, path string, from int32) error {
	query := `DELETE FROM chunks WHERE file_path = ? AND chunk_index >= ?`
	if _, err := q.db.ExecContext(ctx, query, path, from); err != nil {
		return fmt.Errorf("failed to delete bindings %s[%d:]: %w", path, from, err)
	}
	return nil
}

// ChunkExists reports whether any binding references the given digest.
func (q *Queries) ChunkExists(ctx context.Context, digest string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chunks WHERE hash = ?)`
	var exists int
	if err := q.db.QueryRowContext(ctx, query, digest).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check chunk %s: %w", digest, err)
	}
	return exists != 0, nil
}

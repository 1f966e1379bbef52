package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/model"
)

const fileColumns = `path, size, modified_time, hash, version, is_directory, deleted, last_sync_time`

// UpsertFile atomically replaces the row keyed by rec.Path.
func (q *Queries) UpsertFile(ctx context.Context, rec *model.FileRecord) error {
	query := ` INSERT INTO files (path, size, modified_time, hash, version, is_directory, deleted, last_sync_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				size = excluded.size,
				modified_time = excluded.modified_time,
				hash = excluded.hash,
				version = excluded.version,
				is_directory = excluded.is_directory,
				deleted = excluded.deleted,
				last_sync_time = excluded.last_sync_time
	`
	_, err := q.db.ExecContext(ctx, query,
		rec.Path, rec.Size, rec.ModifiedTime, rec.Digest, rec.Version,
		boolToInt(rec.IsDirectory), boolToInt(rec.Deleted), rec.LastSyncTime)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	return nil
}

// GetFile returns the record for path, tombstoned or not.
// Returns common.ErrNotFound when no row exists.
func (q *Queries) GetFile(ctx context.Context, path string) (*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE path = ?`
	rec, err := scanFileRecord(q.db.QueryRowContext(ctx, query, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", path, err)
	}
	return rec, nil
}

// ListLive returns all non-tombstoned records, unordered.
func (q *Queries) ListLive(ctx context.Context) ([]*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE deleted = 0`
	return q.selectFiles(ctx, query)
}

// ModifiedSince returns all records (tombstones included) with a modified
// time strictly greater than t.
func (q *Queries) ModifiedSince(ctx context.Context, t int64) ([]*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE modified_time > ?`
	return q.selectFiles(ctx, query, t)
}

// Tombstone marks the record as deleted without removing the row, bumping
// the version. Returns common.ErrNotFound when the path is untracked.
func (q *Queries) Tombstone(ctx context.Context, path string) error {
	query := `UPDATE files SET deleted = 1, version = version + 1 WHERE path = ?`
	result, err := q.db.ExecContext(ctx, query, path)
	if err != nil {
		return fmt.Errorf("failed to tombstone %s: %w", path, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (q *Queries) selectFiles(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file rows: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRecord(row rowScanner) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	var isDir, deleted int
	err := row.Scan(&rec.Path, &rec.Size, &rec.ModifiedTime, &rec.Digest,
		&rec.Version, &isDir, &deleted, &rec.LastSyncTime)
	if err != nil {
		return nil, err
	}
	rec.IsDirectory = isDir != 0
	rec.Deleted = deleted != 0
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

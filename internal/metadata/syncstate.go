package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetLastSync returns the stored last-sync timestamp, or 0 when none has
// been recorded yet.
func (q *Queries) GetLastSync(ctx context.Context) (int64, error) {
	query := `SELECT value FROM sync_state WHERE key = ?`
	var value int64
	err := q.db.QueryRowContext(ctx, query, syncStateLastSyncKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last sync time: %w", err)
	}
	return value, nil
}

// SetLastSync stores the last-sync timestamp.
func (q *Queries) SetLastSync(ctx context.Context, t int64) error {
	query := ` INSERT INTO sync_state (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := q.db.ExecContext(ctx, query, syncStateLastSyncKey, t); err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}
	return nil
}

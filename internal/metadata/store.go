// Package metadata implements the per-client durable record of files, their
// chunk compositions and sync state, backed by an embedded SQLite database.
//
// One Store corresponds to one client. Write transactions are serialized by
// the underlying database; scoped transactions commit on success and roll
// back on error or panic.
package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/chunksync/internal/dbx"
	"github.com/dmitrijs2005/chunksync/internal/metadata/migrations"
)

// syncStateLastSyncKey is the sync_state row holding the last-sync timestamp.
const syncStateLastSyncKey = "last_sync_time"

var migrateOnce sync.Once

// Store is a per-client metadata database handle. The embedded Queries run
// against the plain connection; WithTx provides the transactional scope.
type Store struct {
	db   *sql.DB
	path string
	*Queries
}

// Open opens (or creates) the metadata database at path and applies the
// embedded schema migrations. Opening an already-initialized database is a
// no-op for the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata db %s: %w", path, err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate metadata db %s: %w", path, err)
	}

	return &Store{db: db, path: path, Queries: NewQueries(db)}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	var onceErr error
	migrateOnce.Do(func() {
		goose.SetBaseFS(migrations.Migrations)
		goose.SetLogger(goose.NopLogger())
		onceErr = goose.SetDialect("sqlite3")
	})
	if onceErr != nil {
		return onceErr
	}
	return goose.UpContext(ctx, db, ".")
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the database file.
func (s *Store) Path() string {
	return s.path
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics; a failed
// commit leaves the store in its pre-transaction state.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(NewQueries(tx))
	})
}

// Queries bundles all metadata operations over a dbx.DBTX, so the same code
// runs both on the bare connection and inside a transaction.
type Queries struct {
	db dbx.DBTX
}

func NewQueries(db dbx.DBTX) *Queries {
	return &Queries{db: db}
}

// Package storage orchestrates the chunk store and the per-client metadata
// stores: it accepts chunk uploads, finalizes files, serves sync probes and
// tombstones files.
//
// One blob store is shared by all clients; metadata stores live in a
// registry keyed by client id. The registry behaves like an arena: handles
// are created on first reference and stay valid for the process lifetime.
// Acquisition takes a brief exclusive lock; operations on an acquired
// handle do not touch the registry lock again.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/dmitrijs2005/chunksync/internal/blobstore"
	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/filex"
	"github.com/dmitrijs2005/chunksync/internal/hashing"
	"github.com/dmitrijs2005/chunksync/internal/logging"
	"github.com/dmitrijs2005/chunksync/internal/metadata"
	"github.com/dmitrijs2005/chunksync/internal/metrics"
	"github.com/dmitrijs2005/chunksync/internal/model"
)

// ChangePublisher receives server-side file changes as they commit. The
// HTTP adapter plugs its broadcaster in here; a nil publisher is allowed.
type ChangePublisher interface {
	Publish(clientID string, change model.FileChange)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock. Tests use this to pin mtimes.
func WithClock(now func() int64) Option {
	return func(m *Manager) { m.now = now }
}

// WithPublisher wires a change publisher.
func WithPublisher(p ChangePublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithBlobOptions forwards options to the underlying blob store.
func WithBlobOptions(opts ...blobstore.Option) Option {
	return func(m *Manager) { m.blobOpts = opts }
}

// Manager is the storage orchestrator.
type Manager struct {
	root      string
	blobs     *blobstore.Store
	blobOpts  []blobstore.Option
	log       logging.Logger
	metrics   *metrics.Metrics
	publisher ChangePublisher
	now       func() int64

	mu     sync.Mutex
	stores map[string]*metadata.Store
}

// NewManager creates a Manager rooted at root, creating the directory
// skeleton if needed.
func NewManager(root string, log logging.Logger, m *metrics.Metrics, opts ...Option) (*Manager, error) {
	mgr := &Manager{
		root:    root,
		log:     log.With("module", "storage"),
		metrics: m,
		now:     func() int64 { return time.Now().Unix() },
		stores:  make(map[string]*metadata.Store),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	if _, err := filex.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("init storage root: %w", err)
	}
	if _, err := filex.EnsureDir(filepath.Join(root, "clients")); err != nil {
		return nil, fmt.Errorf("init clients dir: %w", err)
	}

	fs := afero.NewBasePathFs(afero.NewOsFs(), root)
	mgr.blobs = blobstore.New(fs, log, mgr.blobOpts...)

	mgr.log.Info(context.Background(), "storage manager initialized", "root", root)
	return mgr, nil
}

// Close releases every client metadata store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, s := range m.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close metadata store %s: %w", id, err)
		}
	}
	m.stores = make(map[string]*metadata.Store)
	return firstErr
}

// clientStore returns the metadata store for clientID, opening it on first
// reference. The registry lock covers lookup and insertion only.
func (m *Manager) clientStore(ctx context.Context, clientID string) (*metadata.Store, error) {
	if err := validateClientID(clientID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[clientID]; ok {
		return s, nil
	}

	dir, err := filex.EnsureDir(filepath.Join(m.root, "clients", clientID))
	if err != nil {
		return nil, fmt.Errorf("client dir %s: %w", clientID, err)
	}
	s, err := metadata.Open(ctx, filepath.Join(dir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("open metadata for %s: %w", clientID, err)
	}

	m.stores[clientID] = s
	m.log.Info(ctx, "client metadata store opened", "client", clientID)
	return s, nil
}

func validateClientID(clientID string) error {
	if clientID == "" || strings.ContainsAny(clientID, "/\\") || clientID == "." || clientID == ".." {
		return fmt.Errorf("client id %q: %w", clientID, common.ErrInvalidArgument)
	}
	return nil
}

// StoreChunk writes the blob if absent and records the (path, index)
// binding. Reissuing the same tuple yields the same state in both stores.
func (m *Manager) StoreChunk(ctx context.Context, clientID, path string, index int32, data []byte, digest string) error {
	started := time.Now()

	rel, ok := filex.NormalizeRelPath(path)
	if !ok {
		return fmt.Errorf("path %q: %w", path, common.ErrInvalidArgument)
	}
	if index < 0 {
		return fmt.Errorf("chunk index %d: %w", index, common.ErrInvalidArgument)
	}
	if len(data) == 0 || len(data) > common.MaxChunkSize {
		return fmt.Errorf("chunk size %d: %w", len(data), common.ErrInvalidArgument)
	}
	if !hashing.IsValidDigest(digest) {
		return fmt.Errorf("digest %q: %w", digest, common.ErrInvalidArgument)
	}
	if got := hashing.SumBytes(data); got != digest {
		return fmt.Errorf("chunk %s[%d] hashes to %s, declared %s: %w",
			rel, index, got, digest, common.ErrIntegrity)
	}

	store, err := m.clientStore(ctx, clientID)
	if err != nil {
		return err
	}

	exists, err := m.blobs.Exists(ctx, digest)
	if err != nil {
		return err
	}
	if exists {
		m.metrics.DedupHits.Inc()
	} else {
		if err := m.blobs.Put(ctx, digest, data); err != nil {
			return err
		}
		m.metrics.ChunksStored.Inc()
		m.metrics.BytesWritten.Add(float64(len(data)))
	}

	if err := store.InsertBinding(ctx, rel, index, digest, 0, int32(len(data))); err != nil {
		return err
	}

	m.metrics.UploadSeconds.Observe(time.Since(started).Seconds())
	m.log.Debug(ctx, "chunk stored", "client", clientID, "path", rel,
		"index", index, "size", humanize.IBytes(uint64(len(data))), "dedup", exists)
	return nil
}

// GetChunk returns the blob content for digest.
func (m *Manager) GetChunk(ctx context.Context, digest string) ([]byte, error) {
	return m.blobs.Get(ctx, digest)
}

// HasChunk reports whether the blob store holds digest.
func (m *Manager) HasChunk(ctx context.Context, digest string) (bool, error) {
	return m.blobs.Exists(ctx, digest)
}

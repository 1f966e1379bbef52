// Package blobstore implements the content-addressed chunk store: each blob
// lives at chunks/<h[:2]>/<h> under the storage root, where h is the SHA-256
// hex digest of the content. Writes are crash-atomic (temp file in the target
// directory, then rename) and deduplicated (an existing digest is a no-op).
//
// There is no in-process lock; filesystem atomicity is the mutual-exclusion
// primitive. Two concurrent puts of the same digest both rename identical
// content into place, which is idempotent.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/hashing"
	"github.com/dmitrijs2005/chunksync/internal/logging"
)

const chunksDirName = "chunks"

// Option customizes a Store.
type Option func(*Store)

// WithVerifyOnRead makes Get recompute the content digest and fail with an
// integrity error on mismatch. Off by default; reads trust the filename.
func WithVerifyOnRead() Option {
	return func(s *Store) { s.verifyOnRead = true }
}

// Store is a deduplicated blob store over an afero filesystem rooted at the
// storage root.
type Store struct {
	fs           afero.Fs
	log          logging.Logger
	verifyOnRead bool
}

// New creates a Store on fs. The chunks directory is created lazily on the
// first write.
func New(fs afero.Fs, log logging.Logger, opts ...Option) *Store {
	s := &Store{fs: fs, log: log.With("module", "blobstore")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// blobPath returns the fan-out path for a digest: chunks/<h[:2]>/<h>.
// The two-character fan-out keeps per-directory entry counts bounded.
func blobPath(digest string) string {
	return path.Join(chunksDirName, digest[:2], digest)
}

// Put stores data under its digest. If the blob already exists the call is a
// no-op. The digest must be a well-formed lowercase hex digest; content is
// not re-hashed here; the caller owns that contract.
func (s *Store) Put(ctx context.Context, digest string, data []byte) error {
	if !hashing.IsValidDigest(digest) {
		return fmt.Errorf("put %q: %w", digest, common.ErrInvalidArgument)
	}

	target := blobPath(digest)
	if ok, err := afero.Exists(s.fs, target); err != nil {
		return fmt.Errorf("stat blob %s: %w: %v", digest, common.ErrIO, err)
	} else if ok {
		s.log.Debug(ctx, "chunk already stored", "digest", digest)
		return nil
	}

	dir := path.Dir(target)
	if err := s.fs.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w: %v", dir, common.ErrIO, err)
	}

	// Temp file in the target directory so the rename never crosses a
	// filesystem boundary.
	tmp := path.Join(dir, ".tmp-"+digest[:8]+"-"+uuid.NewString())
	if err := afero.WriteFile(s.fs, tmp, data, 0o660); err != nil {
		return fmt.Errorf("write blob %s: %w: %v", digest, common.ErrIO, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename blob %s: %w: %v", digest, common.ErrIO, err)
	}
	return nil
}

// Get returns the full blob content for digest.
func (s *Store) Get(ctx context.Context, digest string) ([]byte, error) {
	if !hashing.IsValidDigest(digest) {
		return nil, fmt.Errorf("get %q: %w", digest, common.ErrInvalidArgument)
	}

	data, err := afero.ReadFile(s.fs, blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", digest, common.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %s: %w: %v", digest, common.ErrIO, err)
	}

	if s.verifyOnRead {
		if got := hashing.SumBytes(data); got != digest {
			return nil, fmt.Errorf("blob %s has digest %s: %w", digest, got, common.ErrIntegrity)
		}
	}
	return data, nil
}

// Exists reports whether a blob with the given digest is stored.
func (s *Store) Exists(ctx context.Context, digest string) (bool, error) {
	if !hashing.IsValidDigest(digest) {
		return false, fmt.Errorf("exists %q: %w", digest, common.ErrInvalidArgument)
	}
	ok, err := afero.Exists(s.fs, blobPath(digest))
	if err != nil {
		return false, fmt.Errorf("stat blob %s: %w: %v", digest, common.ErrIO, err)
	}
	return ok, nil
}

// Stats describes the stored blob population.
type Stats struct {
	TotalChunks int64
	TotalBytes  int64
}

// Stats walks the chunk tree and counts blobs and bytes. Temp files from
// in-flight writes are skipped.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	exists, err := afero.DirExists(s.fs, chunksDirName)
	if err != nil {
		return stats, fmt.Errorf("stat chunks dir: %w: %v", common.ErrIO, err)
	}
	if !exists {
		return stats, nil
	}

	err = afero.Walk(s.fs, chunksDirName, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !hashing.IsValidDigest(info.Name()) {
			return nil
		}
		stats.TotalChunks++
		stats.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("walk chunks dir: %w: %v", common.ErrIO, err)
	}
	return stats, nil
}

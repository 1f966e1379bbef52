// Package model defines the data types shared by the storage engine:
// chunk descriptors, file records and sync change sets.
package model

// FileRecord describes one tracked path for one client.
//
// Size equals the sum of the chunk sizes bound to the path, and Digest is the
// SHA-256 of the chunk bytes concatenated in index order. Version starts at 1
// and increases strictly on every state-changing write. A record with
// Deleted=true is a tombstone: excluded from live listings, never purged.
type FileRecord struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ModifiedTime int64  `json:"modified_time"`
	Digest       string `json:"digest"`
	Version      int32  `json:"version"`
	IsDirectory  bool   `json:"is_directory"`
	Deleted      bool   `json:"deleted"`
	LastSyncTime int64  `json:"last_sync_time"`
}

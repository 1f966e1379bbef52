// Package conflict detects divergent file versions and applies a resolution
// policy. Detection is part of sync; resolution is a policy layer on top of
// the storage invariants and never mutates stored state itself.
package conflict

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Strategy selects how a detected conflict is resolved.
type Strategy int32

const (
	// KeepLocal keeps the client's copy under the original path.
	KeepLocal Strategy = iota
	// KeepRemote keeps the server's copy under the original path.
	KeepRemote
	// KeepBoth keeps the remote copy at the original path and renames the
	// local copy to a conflicted-copy name.
	KeepBoth
	// Manual defers the decision to a human; Resolve returns no path.
	Manual
)

// Info carries both sides of a suspected conflict.
type Info struct {
	Path               string
	LocalDigest        string
	RemoteDigest       string
	LocalModifiedTime  int64
	RemoteModifiedTime int64
	LocalVersion       int32
	RemoteVersion      int32
}

// Resolver applies conflict policy.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// HasConflict reports whether info describes a real conflict: digests
// disagree and both sides carry a committed version.
func (r *Resolver) HasConflict(info Info) bool {
	if info.LocalDigest == info.RemoteDigest {
		return false
	}
	return info.LocalVersion > 0 && info.RemoteVersion > 0
}

// Resolve returns the path the surviving local copy should live at. For
// KeepLocal and KeepRemote that is the original path; for KeepBoth it is a
// conflicted-copy name; for Manual it is empty.
func (r *Resolver) Resolve(info Info, strategy Strategy, tag string, now time.Time) string {
	switch strategy {
	case KeepLocal, KeepRemote:
		return info.Path
	case KeepBoth:
		return ConflictedCopyName(info.Path, tag, now)
	default:
		return ""
	}
}

// AutoResolve picks a strategy by last-write-wins on modification times,
// keeping both copies on a tie.
func (r *Resolver) AutoResolve(info Info) Strategy {
	switch {
	case info.LocalModifiedTime > info.RemoteModifiedTime:
		return KeepLocal
	case info.RemoteModifiedTime > info.LocalModifiedTime:
		return KeepRemote
	default:
		return KeepBoth
	}
}

// ConflictedCopyName derives the renamed-copy path:
//
//	docs/plan.txt -> docs/plan (conflicted copy laptop 2026-08-05 14-03-59).txt
func ConflictedCopyName(original, tag string, now time.Time) string {
	dir := path.Dir(original)
	base := path.Base(original)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	name := fmt.Sprintf("%s (conflicted copy %s %s)%s",
		stem, tag, now.Format("2006-01-02 15-04-05"), ext)
	if dir == "." {
		return name
	}
	return path.Join(dir, name)
}

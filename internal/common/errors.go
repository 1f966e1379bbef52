// Package common defines shared constants and sentinel errors used across
// the storage engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Storage-level errors.
	ErrIO        = errors.New("i/o failure")
	ErrIntegrity = errors.New("integrity failure")

	// Upload lifecycle errors.
	ErrIncomplete = errors.New("incomplete upload")

	// Validation errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// Sync errors. A conflict is reported as a change, not as a failure;
	// the sync probe and the conflict resolver do not return this sentinel.
	ErrConflict = errors.New("conflict detected")
)

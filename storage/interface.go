// Package storage defines the local byte-storage abstraction consumed by the
// attachment queue and syncing service, plus a default filesystem-backed
// implementation.
package storage

import "context"

// LocalStorageAdapter saves, reads and deletes attachment files on local
// storage. Paths are plain filesystem paths resolved by the caller.
type LocalStorageAdapter interface {
	// Save writes data to path, creating parent directories as needed, and
	// returns the number of bytes written.
	Save(ctx context.Context, path string, data []byte) (int64, error)

	// Read returns the full contents of the file at path. A missing file
	// yields common.ErrorNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the file at path. A missing file yields
	// common.ErrorNotFound.
	Delete(ctx context.Context, path string) error

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// MakeDir creates the directory at path, including parents.
	MakeDir(ctx context.Context, path string) error

	// RemoveDir removes the directory at path and everything below it.
	RemoveDir(ctx context.Context, path string) error

	// Copy duplicates the file at from into to.
	Copy(ctx context.Context, from, to string) error
}
